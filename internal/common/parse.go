package common

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var nonDecimalChars = regexp.MustCompile(`[^\d.]`)

// ParseDecimal converts a raw display fragment ("₹1,234.50", "Rs. 12", 42) into a number.
// Every rune that is not a digit or '.' is stripped before parsing. Nil, empty,
// digit-free or unparsable input yields zero; it never fails, callers decide
// whether zero is a meaningful value.
func ParseDecimal(raw any) decimal.Decimal {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return v
	case *string:
		if v == nil {
			return decimal.Zero
		}
		return parseDecimalString(*v)
	case string:
		return parseDecimalString(v)
	case float64:
		return decimal.NewFromFloat(v)
	case float32:
		return decimal.NewFromFloat32(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int32:
		return decimal.NewFromInt32(v)
	case int64:
		return decimal.NewFromInt(v)
	default:
		return decimal.Zero
	}
}

// ParseSignedDecimal is ParseDecimal for change readings such as "-12.30" or "(-0.31%)",
// where a leading minus must survive.
func ParseSignedDecimal(s string) decimal.Decimal {
	d := ParseDecimal(s)
	if strings.HasPrefix(strings.TrimLeft(s, " ("), "-") {
		return d.Neg()
	}
	return d
}

func parseDecimalString(s string) decimal.Decimal {
	cleaned := nonDecimalChars.ReplaceAllString(s, "")
	if cleaned == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// NumericOnly keeps only digits and '.' of s, the form stored for previous-close values.
func NumericOnly(s string) string {
	return nonDecimalChars.ReplaceAllString(s, "")
}

// CollapseSpaces trims s and folds internal whitespace runs into single spaces.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
