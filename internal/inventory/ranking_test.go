package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grocery-field/card/internal/domain"
)

var today = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

func day(offset int) *time.Time {
	t := today.AddDate(0, 0, offset)
	return &t
}

func names(ranked []Ranked) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Item.Name
	}
	return out
}

func TestClassifyBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		item domain.InventoryItem
		want domain.UrgencyRank
	}{
		{"yesterday", domain.InventoryItem{ExpiryDate: day(-1)}, domain.RankExpired},
		{"today", domain.InventoryItem{ExpiryDate: day(0)}, domain.RankExpiringSoon},
		{"tomorrow", domain.InventoryItem{ExpiryDate: day(1)}, domain.RankExpiringSoon},
		{"two days", domain.InventoryItem{ExpiryDate: day(2)}, domain.RankExpiringSoon},
		{"three days", domain.InventoryItem{ExpiryDate: day(3)}, domain.RankNormal},
		{"low stock", domain.InventoryItem{Quantity: 1, MinQuantity: 2}, domain.RankLowStock},
		{"at threshold", domain.InventoryItem{Quantity: 2, MinQuantity: 2}, domain.RankLowStock},
		{"no threshold", domain.InventoryItem{Quantity: 0}, domain.RankNormal},
		{"expired beats low stock", domain.InventoryItem{ExpiryDate: day(-3), Quantity: 0, MinQuantity: 1}, domain.RankExpired},
		{"far expiry low stock", domain.InventoryItem{ExpiryDate: day(30), Quantity: 0, MinQuantity: 1}, domain.RankLowStock},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Classify(tc.item, today))
		})
	}
}

func TestClassifyIgnoresTimeOfDay(t *testing.T) {
	t.Parallel()

	afternoon := today.Add(17 * time.Hour)
	expiry := today.Add(-2 * time.Hour)
	require.Equal(t, domain.RankExpired, Classify(domain.InventoryItem{ExpiryDate: &expiry}, afternoon))

	morning := today.Add(9 * time.Hour)
	require.Equal(t, domain.RankExpiringSoon, Classify(domain.InventoryItem{ExpiryDate: &morning}, afternoon))
}

func TestRankMixedUrgency(t *testing.T) {
	t.Parallel()

	items := []domain.InventoryItem{
		{Name: "Flour", Quantity: 1, MinQuantity: 2},
		{Name: "Eggs", ExpiryDate: day(1)},
		{Name: "Milk", ExpiryDate: day(-1)},
	}
	ranked := Rank(items, domain.FilterAll, today)
	require.Equal(t, []string{"Milk", "Eggs", "Flour"}, names(ranked))
	require.Equal(t, domain.RankExpired, ranked[0].Urgency)
	require.Equal(t, domain.RankExpiringSoon, ranked[1].Urgency)
	require.Equal(t, domain.RankLowStock, ranked[2].Urgency)
	require.Equal(t, "Flour", items[0].Name, "input must not be reordered")
}

func TestRankExpiryThenNameWithinRank(t *testing.T) {
	t.Parallel()

	items := []domain.InventoryItem{
		{Name: "Zucchini"},
		{Name: "Ost", ExpiryDate: day(20)},
		{Name: "apelsin"},
		{Name: "Bröd", ExpiryDate: day(5)},
		{Name: "Ägg"},
		{Name: "Banan"},
	}
	ranked := Rank(items, domain.FilterAll, today)
	require.Equal(t, []string{"Bröd", "Ost", "apelsin", "Banan", "Zucchini", "Ägg"}, names(ranked))
}

func TestRankIsStable(t *testing.T) {
	t.Parallel()

	items := []domain.InventoryItem{
		{ID: "a", Name: "Mjölk", ExpiryDate: day(1)},
		{ID: "b", Name: "mjölk", ExpiryDate: day(1)},
		{ID: "c", Name: "Mjölk", ExpiryDate: day(1)},
	}
	ranked := Rank(items, domain.FilterAll, today)
	ids := []string{ranked[0].Item.ID, ranked[1].Item.ID, ranked[2].Item.ID}
	require.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestFilterByLocation(t *testing.T) {
	t.Parallel()

	items := []domain.InventoryItem{
		{Name: "Smör"},
		{Name: "Glass", Location: domain.LocationFreezer},
		{Name: "Pasta", Location: domain.LocationPantry},
		{Name: "Yoghurt", Location: domain.LocationFridge},
	}

	require.Equal(t, []string{"Smör", "Yoghurt"}, names(Rank(items, domain.LocationFilter(domain.LocationFridge), today)))
	require.Equal(t, []string{"Glass"}, names(Rank(items, domain.LocationFilter(domain.LocationFreezer), today)))
	require.Len(t, Rank(items, domain.FilterAll, today), len(items))

	total := 0
	for _, loc := range domain.Locations {
		total += len(Filter(items, domain.LocationFilter(loc)))
	}
	require.Equal(t, len(items), total)
}

func TestCountByLocation(t *testing.T) {
	t.Parallel()

	counts := CountByLocation([]domain.InventoryItem{
		{Name: "Smör"},
		{Name: "Glass", Location: domain.LocationFreezer},
		{Name: "Ärtor", Location: domain.LocationFreezer},
	})
	require.Equal(t, 3, counts.All)
	require.Equal(t, 1, counts.ByLocation[domain.LocationFridge])
	require.Equal(t, 2, counts.ByLocation[domain.LocationFreezer])
	require.Equal(t, 0, counts.ByLocation[domain.LocationPantry])
}

func TestNewRankerFallsBackToSwedish(t *testing.T) {
	t.Parallel()

	require.Equal(t, "sv", NewRanker("not a tag!").Locale.String())
	require.Equal(t, "en", NewRanker("en").Locale.String())

	items := []domain.InventoryItem{{Name: "Ägg"}, {Name: "Banan"}}
	require.Equal(t, []string{"Banan", "Ägg"}, names(NewRanker("sv").Rank(items, domain.FilterAll, today)))
}
