package pageindex

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// naturalWidth is the width numeric runs are padded to so that "page 2"
// sorts before "page 10".
const naturalWidth = 8

// SortKey returns the case and locale insensitive key used to order
// siblings and to resolve names typed by users.
//
// The basename is NFKC-normalized and case folded. Every run of decimal
// digits is left padded with zeros so numbers compare by value.
func SortKey(basename string) string {
	folded := cases.Fold().String(norm.NFKC.String(basename))

	var b strings.Builder

	b.Grow(len(folded) + naturalWidth)

	runes := []rune(folded)
	for i := 0; i < len(runes); {
		if !isASCIIDigit(runes[i]) {
			b.WriteRune(runes[i])
			i++

			continue
		}

		j := i
		for j < len(runes) && isASCIIDigit(runes[j]) {
			j++
		}

		digits := strings.TrimLeft(string(runes[i:j]), "0")
		if digits == "" {
			digits = "0"
		}

		for k := len(digits); k < naturalWidth; k++ {
			b.WriteByte('0')
		}

		b.WriteString(digits)

		i = j
	}

	return b.String()
}

func isASCIIDigit(r rune) bool {
	return r < unicode.MaxASCII && unicode.IsDigit(r)
}
