package host

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/grocery-field/card/internal/domain"
)

// Sensor entities published by the inventory backend.
const (
	SensorTotalItems   = "sensor.grocery_total_items"
	SensorExpiringSoon = "sensor.grocery_expiring_soon"
	SensorExpired      = "sensor.grocery_expired"
	SensorLowStock     = "sensor.grocery_low_stock"
)

// Sensors lists every entity the card tracks.
var Sensors = []string{SensorTotalItems, SensorExpiringSoon, SensorExpired, SensorLowStock}

// EntityState is one entity as served by the host's state API.
type EntityState struct {
	EntityID   string          `json:"entity_id"`
	State      string          `json:"state"`
	Attributes json.RawMessage `json:"attributes,omitempty"`
}

type wireItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Quantity    flexInt `json:"quantity"`
	Unit        string  `json:"unit"`
	Category    string  `json:"category"`
	Barcode     string  `json:"barcode"`
	ImageURL    string  `json:"image_url"`
	ExpiryDate  *string `json:"expiry_date"`
	Location    string  `json:"location"`
	MinQuantity flexInt `json:"min_quantity"`
}

// flexInt accepts numbers, numeric strings and null.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*f = 0
		return nil
	}
	*f = flexInt(int(v))
	return nil
}

func (w wireItem) toDomain() domain.InventoryItem {
	item := domain.InventoryItem{
		ID:          w.ID,
		Name:        w.Name,
		Quantity:    int(w.Quantity),
		Unit:        w.Unit,
		Category:    w.Category,
		Barcode:     w.Barcode,
		ImageURL:    w.ImageURL,
		MinQuantity: int(w.MinQuantity),
	}
	if loc, ok := domain.ParseLocation(w.Location); ok {
		item.Location = loc
	}
	if w.ExpiryDate != nil {
		if day, ok := parseExpiry(*w.ExpiryDate); ok {
			item.ExpiryDate = &day
		}
	}
	return item
}

// parseExpiry accepts a date or a timestamp and keeps only the calendar day.
// Anything else counts as no expiry.
func parseExpiry(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if day, err := domain.ParseDay(raw); err == nil {
		return day, true
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return domain.Day(ts), true
	}
	if len(raw) > len(time.DateOnly) {
		if day, err := domain.ParseDay(raw[:len(time.DateOnly)]); err == nil {
			return day, true
		}
	}
	return time.Time{}, false
}

// DecodeItems reads the items attribute of the total-items sensor.
// Malformed entries are skipped.
func DecodeItems(attributes json.RawMessage) []domain.InventoryItem {
	if len(attributes) == 0 {
		return nil
	}
	var attrs struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(attributes, &attrs); err != nil {
		return nil
	}
	items := make([]domain.InventoryItem, 0, len(attrs.Items))
	for _, raw := range attrs.Items {
		var w wireItem
		if err := json.Unmarshal(raw, &w); err != nil {
			continue
		}
		items = append(items, w.toDomain())
	}
	return items
}

// counter parses a sensor state as a count. Unknown states count as zero.
func counter(state string) int {
	v, err := strconv.ParseFloat(strings.TrimSpace(state), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(v)
}

// Apply folds one entity state into snap and reports whether it was tracked.
func Apply(snap *domain.HostSnapshot, st EntityState) bool {
	switch st.EntityID {
	case SensorTotalItems:
		snap.Items = DecodeItems(st.Attributes)
	case SensorExpiringSoon:
		snap.ExpiringSoon = counter(st.State)
	case SensorExpired:
		snap.Expired = counter(st.State)
	case SensorLowStock:
		snap.LowStock = counter(st.State)
	default:
		return false
	}
	return true
}
