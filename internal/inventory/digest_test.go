package inventory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grocery-field/card/internal/domain"
)

func TestBuildDigest(t *testing.T) {
	t.Parallel()

	items := []domain.InventoryItem{
		{Name: "Mjölk", Quantity: 1, Unit: "l", ExpiryDate: day(-1)},
		{Name: "Ost", Quantity: 1, Unit: "st", ExpiryDate: day(2)},
		{Name: "Mjöl", Quantity: 1, Unit: "kg", MinQuantity: 2},
		{Name: "Ris", Quantity: 3, Unit: "kg"},
	}
	d := BuildDigest(items, today)
	require.True(t, d.Due())
	require.Len(t, d.Expired, 1)
	require.Len(t, d.ExpiringSoon, 1)
	require.Len(t, d.LowStock, 1)

	text := d.Text()
	require.True(t, strings.HasPrefix(text, "🔴 Utgångna:\n  • Mjölk (2024-05-09)"))
	require.Contains(t, text, "🟡 Går ut snart:\n  • Ost (bäst före 2024-05-12)")
	require.Contains(t, text, "🟠 Lågt lager:\n  • Mjöl (1/2 kg)")
	require.Contains(t, text, "📦 I lager: Mjölk (1 l), Ost (1 st), Mjöl (1 kg), Ris (3 kg)")
}

func TestDigestNotDueForLowStockOnly(t *testing.T) {
	t.Parallel()

	d := BuildDigest([]domain.InventoryItem{{Name: "Mjöl", Quantity: 0, MinQuantity: 1}}, today)
	require.False(t, d.Due())
}
