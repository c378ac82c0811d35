package domain

import (
	"strings"
	"time"
)

// Location is the storage area an inventory item lives in.
type Location string

const (
	LocationUnset   Location = ""
	LocationFridge  Location = "fridge"
	LocationFreezer Location = "freezer"
	LocationPantry  Location = "pantry"
)

// Locations lists the storage areas in display order.
var Locations = []Location{LocationFridge, LocationFreezer, LocationPantry}

// ParseLocation accepts the canonical names and the host's Swedish codes.
func ParseLocation(raw string) (Location, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return LocationUnset, true
	case "fridge", "kyl":
		return LocationFridge, true
	case "freezer", "frys":
		return LocationFreezer, true
	case "pantry", "skafferi":
		return LocationPantry, true
	}
	return LocationUnset, false
}

// Effective resolves an unset location to the fridge.
func (l Location) Effective() Location {
	if l == LocationUnset {
		return LocationFridge
	}
	return l
}

// Code returns the host's wire code for the location. Unset maps to the fridge.
func (l Location) Code() string {
	switch l.Effective() {
	case LocationFreezer:
		return "frys"
	case LocationPantry:
		return "skafferi"
	}
	return "kyl"
}

// LocationFilter selects the items shown in the inventory view.
type LocationFilter string

// FilterAll keeps every item.
const FilterAll LocationFilter = "all"

// ParseLocationFilter accepts "all" or any location name.
func ParseLocationFilter(raw string) (LocationFilter, bool) {
	if strings.EqualFold(strings.TrimSpace(raw), string(FilterAll)) {
		return FilterAll, true
	}
	loc, ok := ParseLocation(raw)
	if !ok || loc == LocationUnset {
		return "", false
	}
	return LocationFilter(loc), true
}

// InventoryItem is a read-only snapshot of one item tracked by the host.
type InventoryItem struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Quantity    int        `json:"quantity"`
	Unit        string     `json:"unit,omitempty"`
	Category    string     `json:"category,omitempty"`
	Barcode     string     `json:"barcode,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	Location    Location   `json:"location,omitempty"`
	MinQuantity int        `json:"min_quantity,omitempty"`
}

// LowStock reports whether the item is at or below its restock threshold.
func (i InventoryItem) LowStock() bool {
	return i.MinQuantity > 0 && i.Quantity <= i.MinQuantity
}

// HostSnapshot is the inventory state last pushed by the host.
type HostSnapshot struct {
	Items        []InventoryItem `json:"items"`
	ExpiringSoon int             `json:"expiring_soon"`
	Expired      int             `json:"expired"`
	LowStock     int             `json:"low_stock"`
}

// Badge is the attention count shown next to the card title.
func (s HostSnapshot) Badge() int {
	return s.ExpiringSoon + s.Expired + s.LowStock
}

// UrgencyRank orders items by how soon they need attention. Lower sorts first.
type UrgencyRank int

const (
	RankExpired UrgencyRank = iota
	RankExpiringSoon
	RankLowStock
	RankNormal
)

func (r UrgencyRank) String() string {
	switch r {
	case RankExpired:
		return "expired"
	case RankExpiringSoon:
		return "expiring_soon"
	case RankLowStock:
		return "low_stock"
	default:
		return "normal"
	}
}

// Day truncates t to its calendar date at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(raw string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, strings.TrimSpace(raw), time.UTC)
}
