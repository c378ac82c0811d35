// Package inventory orders and filters the host's inventory snapshot for display.
package inventory

import (
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/grocery-field/card/internal/domain"
)

// SoonWindow is how far past today an expiry still counts as expiring soon.
const SoonWindow = 2 * 24 * time.Hour

// Ranked pairs an item with its derived urgency.
type Ranked struct {
	Item    domain.InventoryItem
	Urgency domain.UrgencyRank
}

// Ranker sorts inventory items using a locale for the name tiebreak.
// The zero value compares names with Swedish collation.
type Ranker struct {
	Locale language.Tag
}

// NewRanker returns a Ranker for the given BCP 47 locale, falling back to Swedish.
func NewRanker(locale string) Ranker {
	tag, err := language.Parse(locale)
	if err != nil || tag == language.Und {
		tag = language.Swedish
	}
	return Ranker{Locale: tag}
}

// Classify derives the urgency of item relative to today's calendar date.
func Classify(item domain.InventoryItem, today time.Time) domain.UrgencyRank {
	if item.ExpiryDate != nil {
		day := domain.Day(today)
		exp := domain.Day(*item.ExpiryDate)
		switch {
		case exp.Before(day):
			return domain.RankExpired
		case !exp.After(day.Add(SoonWindow)):
			return domain.RankExpiringSoon
		}
	}
	if item.LowStock() {
		return domain.RankLowStock
	}
	return domain.RankNormal
}

// Matches reports whether item passes filter. Items without a location count as fridge items.
func Matches(item domain.InventoryItem, filter domain.LocationFilter) bool {
	if filter == domain.FilterAll || filter == "" {
		return true
	}
	return domain.LocationFilter(item.Location.Effective()) == filter
}

// Filter returns the items passing filter in their original order.
func Filter(items []domain.InventoryItem, filter domain.LocationFilter) []domain.InventoryItem {
	out := make([]domain.InventoryItem, 0, len(items))
	for _, item := range items {
		if Matches(item, filter) {
			out = append(out, item)
		}
	}
	return out
}

// Rank filters items and orders them by urgency, then expiry date (undated
// last), then collated case-insensitive name. Equal keys keep input order.
// The input slice is not modified.
func (r Ranker) Rank(items []domain.InventoryItem, filter domain.LocationFilter, today time.Time) []Ranked {
	kept := Filter(items, filter)
	out := make([]Ranked, len(kept))
	for i, item := range kept {
		out[i] = Ranked{Item: item, Urgency: Classify(item, today)}
	}

	tag := r.Locale
	if tag == language.Und {
		tag = language.Swedish
	}
	col := collate.New(tag, collate.IgnoreCase)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Urgency != b.Urgency {
			return a.Urgency < b.Urgency
		}
		ea, eb := a.Item.ExpiryDate, b.Item.ExpiryDate
		switch {
		case ea != nil && eb == nil:
			return true
		case ea == nil && eb != nil:
			return false
		case ea != nil && eb != nil:
			da, db := domain.Day(*ea), domain.Day(*eb)
			if !da.Equal(db) {
				return da.Before(db)
			}
		}
		return col.CompareString(a.Item.Name, b.Item.Name) < 0
	})
	return out
}

// Rank orders items with the default Swedish collation.
func Rank(items []domain.InventoryItem, filter domain.LocationFilter, today time.Time) []Ranked {
	return Ranker{}.Rank(items, filter, today)
}

// LocationCounts holds item totals for the filter buttons.
type LocationCounts struct {
	All        int                     `json:"all"`
	ByLocation map[domain.Location]int `json:"by_location"`
}

// CountByLocation tallies items per effective location.
func CountByLocation(items []domain.InventoryItem) LocationCounts {
	counts := LocationCounts{All: len(items), ByLocation: make(map[domain.Location]int, len(domain.Locations))}
	for _, loc := range domain.Locations {
		counts.ByLocation[loc] = 0
	}
	for _, item := range items {
		counts.ByLocation[item.Location.Effective()]++
	}
	return counts
}
