package geocode

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// cacheKey returns the SHA-256 hex of the normalized address. Case, accents
// and repeated whitespace do not change the key, so "Jávea" and "JAVEA" share
// an entry.
func cacheKey(addr AddressInput) string {
	normalized := fmt.Sprintf("%s|%s|%s",
		normalizePart(addr.Street),
		normalizePart(addr.Town),
		normalizePart(addr.Province),
	)
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

func normalizePart(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
