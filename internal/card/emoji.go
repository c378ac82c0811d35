package card

import (
	"strings"

	"github.com/grocery-field/card/internal/domain"
)

var categoryEmoji = []struct {
	keys  []string
	emoji string
}{
	{[]string{"mejeri", "dairy", "milk", "mjölk"}, "🥛"},
	{[]string{"kött", "meat", "fisk", "fish", "seafood"}, "🥩"},
	{[]string{"grönsak", "vegetable"}, "🥦"},
	{[]string{"frukt", "fruit"}, "🍎"},
	{[]string{"bröd", "bread", "cereal", "spannmål", "grain"}, "🍞"},
	{[]string{"konserv", "canned"}, "🥫"},
	{[]string{"frys", "frozen"}, "❄️"},
	{[]string{"dryck", "beverage", "drink"}, "🥤"},
	{[]string{"krydda", "spice", "sauce", "sås"}, "🧂"},
	{[]string{"ägg", "egg"}, "🥚"},
	{[]string{"godis", "candy", "snack", "chocolate", "choklad"}, "🍫"},
}

// CategoryEmoji picks an icon by substring match on the category.
func CategoryEmoji(category string) string {
	c := strings.ToLower(category)
	if c == "" {
		return "🛒"
	}
	for _, entry := range categoryEmoji {
		for _, k := range entry.keys {
			if strings.Contains(c, k) {
				return entry.emoji
			}
		}
	}
	return "🛒"
}

// LocationEmoji returns the icon of a storage location, or "" when unset.
func LocationEmoji(loc domain.Location) string {
	switch loc {
	case domain.LocationFridge:
		return "🧊"
	case domain.LocationFreezer:
		return "❄️"
	case domain.LocationPantry:
		return "🏠"
	}
	return ""
}
