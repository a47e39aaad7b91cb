package feed

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseNumber reads a price or quantity written with either "." or "," as the
// decimal separator. Text that is not a number reads as zero.
func ParseNumber(text string) decimal.Decimal {
	d, _ := parseNumber(text)
	return d
}

func parseNumber(text string) (decimal.Decimal, bool) {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", "."))
	if text == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseQuantity reads a stock value as a whole number, dropping any fraction.
func ParseQuantity(text string) int64 {
	return ParseNumber(text).IntPart()
}
