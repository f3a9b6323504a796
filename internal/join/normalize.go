package join

import (
	"strings"

	"github.com/FatmaElik/risk-map/internal/textnorm"
)

// KeySeparator joins the parts of a composite key.
const KeySeparator = "|"

// NormalizeKeyText folds s into the canonical form used for key matching:
// trimmed, whitespace collapsed, Turkish-aware lowercase, diacritics removed.
func NormalizeKeyText(s string) string {
	return textnorm.Key(s)
}

// MakeJoinKey builds the composite key of a neighborhood.
func MakeJoinKey(city, district, neighborhood string) string {
	return strings.Join([]string{
		NormalizeKeyText(city),
		NormalizeKeyText(district),
		NormalizeKeyText(neighborhood),
	}, KeySeparator)
}

func idKey(city, id string) string {
	return NormalizeKeyText(city) + "#" + NormalizeKeyText(id)
}
