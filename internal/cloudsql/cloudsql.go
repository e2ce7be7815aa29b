// Package cloudsql builds PostgreSQL connection strings for Google Cloud SQL
// instances mounted into Cloud Run.
package cloudsql

import (
	"fmt"
	"os"
	"strings"
)

// Instance describes a Cloud SQL database reached over the Unix socket that
// Cloud Run mounts at /cloudsql/<connection name>.
type Instance struct {
	ConnectionName string // project:region:instance
	User           string
	Password       string // empty for IAM authentication
	Database       string
}

// FromEnv reads INSTANCE_CONNECTION_NAME, DB_USER, DB_PASSWORD and DB_NAME.
// ok is false when no instance is configured.
func FromEnv() (inst Instance, ok bool) {
	inst = Instance{
		ConnectionName: os.Getenv("INSTANCE_CONNECTION_NAME"),
		User:           os.Getenv("DB_USER"),
		Password:       os.Getenv("DB_PASSWORD"),
		Database:       os.Getenv("DB_NAME"),
	}
	return inst, inst.ConnectionName != ""
}

// SocketPath is where Cloud Run exposes the instance.
func (i Instance) SocketPath() string {
	return fmt.Sprintf("/cloudsql/%s", i.ConnectionName)
}

// DSN returns a lib/pq keyword connection string for the instance.
func (i Instance) DSN() (string, error) {
	if i.ConnectionName == "" {
		return "", fmt.Errorf("INSTANCE_CONNECTION_NAME is not set")
	}
	if i.User == "" || i.Database == "" {
		return "", fmt.Errorf("DB_USER and DB_NAME must be set when using INSTANCE_CONNECTION_NAME")
	}

	if i.Password != "" {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
			i.SocketPath(), i.User, i.Password, i.Database), nil
	}
	return fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable",
		i.SocketPath(), i.User, i.Database), nil
}

// Redact hides the password in a postgres URL or keyword connection string.
func Redact(connStr string) string {
	if strings.HasPrefix(connStr, "postgresql://") || strings.HasPrefix(connStr, "postgres://") {
		parts := strings.SplitN(connStr, "@", 2)
		if len(parts) == 2 {
			userParts := strings.Split(parts[0], ":")
			if len(userParts) >= 3 {
				return userParts[0] + ":" + userParts[1] + ":***@" + parts[1]
			}
		}
		return connStr
	}

	fields := strings.Fields(connStr)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=***"
		}
	}
	return strings.Join(fields, " ")
}
