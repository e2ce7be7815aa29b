package ingestion

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/STRATINT/citypulse/internal/models"
)

var priceAmountPattern = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`)

// ParsePrice reads advertised prices such as "Free", "$25" or "A$25 - A$60".
// Text without a recognizable amount yields nil.
func ParsePrice(text, currency string) *models.Price {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if strings.Contains(strings.ToLower(text), "free") {
		return &models.Price{IsFree: true, Currency: currency}
	}

	var amounts []float64
	for _, m := range priceAmountPattern.FindAllString(text, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			continue
		}
		amounts = append(amounts, v)
	}
	if len(amounts) == 0 {
		return nil
	}

	lo, hi := amounts[0], amounts[0]
	for _, v := range amounts[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return &models.Price{
		Min:      &lo,
		Max:      &hi,
		Currency: currency,
		IsFree:   hi == 0,
	}
}
