package cloudsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstance_DSN(t *testing.T) {
	tests := []struct {
		name    string
		inst    Instance
		want    string
		wantErr bool
	}{
		{
			name: "password",
			inst: Instance{ConnectionName: "proj:australia-southeast1:events", User: "pulse", Password: "s3cret", Database: "citypulse"},
			want: "host=/cloudsql/proj:australia-southeast1:events user=pulse password=s3cret dbname=citypulse sslmode=disable",
		},
		{
			name: "iam",
			inst: Instance{ConnectionName: "proj:australia-southeast1:events", User: "pulse", Database: "citypulse"},
			want: "host=/cloudsql/proj:australia-southeast1:events user=pulse dbname=citypulse sslmode=disable",
		},
		{name: "missing instance", inst: Instance{User: "pulse", Database: "citypulse"}, wantErr: true},
		{name: "missing user", inst: Instance{ConnectionName: "p:r:i", Database: "citypulse"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.inst.DSN()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("INSTANCE_CONNECTION_NAME", "")
	_, ok := FromEnv()
	assert.False(t, ok)

	t.Setenv("INSTANCE_CONNECTION_NAME", "p:r:i")
	t.Setenv("DB_USER", "pulse")
	t.Setenv("DB_NAME", "citypulse")
	inst, ok := FromEnv()
	require.True(t, ok)
	assert.Equal(t, "/cloudsql/p:r:i", inst.SocketPath())
}

func TestRedact(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			in:   "postgres://pulse:s3cret@db:5432/citypulse",
			want: "postgres://pulse:***@db:5432/citypulse",
		},
		{
			in:   "postgresql://pulse@db/citypulse",
			want: "postgresql://pulse@db/citypulse",
		},
		{
			in:   "host=/cloudsql/p:r:i user=pulse password=s3cret dbname=x",
			want: "host=/cloudsql/p:r:i user=pulse password=*** dbname=x",
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Redact(tt.in), tt.in)
	}
}
