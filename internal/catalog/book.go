// Package catalog loads the book records that bookbrief enriches.
package catalog

import (
	"math/big"
	"strings"
	"unicode"
)

// Book is one catalog row. It is read-only input to the summary pipeline.
type Book struct {
	ID      string
	Title   string
	Authors string
	ISBN    string
}

// PrimaryAuthor returns the first name of the comma-separated author list.
func (b Book) PrimaryAuthor() string {
	first, _, _ := strings.Cut(b.Authors, ",")
	return strings.TrimSpace(first)
}

// NormalizeISBN reduces an ISBN value to its digits. Spreadsheet exports
// often store ISBN-13s as floats ("9.780439023e+12"); those are expanded
// before the digits are taken. Returns "" when no digits remain.
func NormalizeISBN(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "=")
	raw = strings.Trim(raw, "\"")
	if raw == "" || strings.EqualFold(raw, "nan") {
		return ""
	}

	if strings.ContainsAny(raw, "eE") {
		if f, ok := new(big.Float).SetPrec(200).SetString(raw); ok {
			if i, _ := f.Int(nil); i != nil && i.Sign() > 0 {
				raw = i.String()
			}
		}
	} else if whole, frac, ok := strings.Cut(raw, "."); ok && strings.Trim(frac, "0") == "" {
		// "9780441172719.0"
		raw = whole
	}

	var sb strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
