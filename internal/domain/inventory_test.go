package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	t.Parallel()

	cases := map[string]Location{
		"":         LocationUnset,
		"kyl":      LocationFridge,
		"Fridge":   LocationFridge,
		"frys":     LocationFreezer,
		"skafferi": LocationPantry,
		"pantry":   LocationPantry,
	}
	for raw, want := range cases {
		got, ok := ParseLocation(raw)
		require.True(t, ok, raw)
		require.Equal(t, want, got, raw)
	}
	_, ok := ParseLocation("garage")
	require.False(t, ok)
	require.Equal(t, LocationFridge, LocationUnset.Effective())
	require.Equal(t, "kyl", LocationUnset.Code())
	require.Equal(t, "frys", LocationFreezer.Code())
	require.Equal(t, "skafferi", LocationPantry.Code())
}

func TestParseLocationFilter(t *testing.T) {
	t.Parallel()

	f, ok := ParseLocationFilter("ALL")
	require.True(t, ok)
	require.Equal(t, FilterAll, f)

	f, ok = ParseLocationFilter("frys")
	require.True(t, ok)
	require.Equal(t, LocationFilter(LocationFreezer), f)

	_, ok = ParseLocationFilter("")
	require.False(t, ok)
}

func TestSnapshotBadgeAndLowStock(t *testing.T) {
	t.Parallel()

	snap := HostSnapshot{ExpiringSoon: 2, Expired: 1, LowStock: 3}
	require.Equal(t, 6, snap.Badge())

	require.True(t, InventoryItem{Quantity: 1, MinQuantity: 2}.LowStock())
	require.True(t, InventoryItem{Quantity: 2, MinQuantity: 2}.LowStock())
	require.False(t, InventoryItem{Quantity: 0}.LowStock())
}

func TestDay(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("CET", 3600)
	got := Day(time.Date(2024, 5, 3, 23, 30, 0, 0, loc))
	require.Equal(t, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), got)

	parsed, err := ParseDay("2024-05-03")
	require.NoError(t, err)
	require.True(t, parsed.Equal(got))

	_, err = ParseDay("03/05/2024")
	require.Error(t, err)
}
