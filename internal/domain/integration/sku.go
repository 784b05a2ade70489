package integration

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxSKULength is the maximum SKU length in characters
const MaxSKULength = 100

// NormalizeSKU trims and upper-cases a merchant SKU and validates it.
func NormalizeSKU(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", NewValidationError("sku", "must be valid UTF-8")
	}
	sku := strings.ToUpper(strings.TrimSpace(raw))
	if sku == "" {
		return "", NewValidationError("sku", "must not be empty")
	}
	if utf8.RuneCountInString(sku) > MaxSKULength {
		return "", NewValidationError("sku", "must be at most 100 characters")
	}
	for _, r := range sku {
		if unicode.IsControl(r) {
			return "", NewValidationError("sku", "must not contain control characters")
		}
	}
	return sku, nil
}
