package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/grocery-field/card/internal/domain"
)

const (
	// DigestTitle heads the daily report notification.
	DigestTitle = "🍽️ Kylskåpsrapporten"

	digestStockLimit = 20
)

// Digest is the daily expiry report.
type Digest struct {
	Expired      []domain.InventoryItem
	ExpiringSoon []domain.InventoryItem
	LowStock     []domain.InventoryItem
	Stock        []domain.InventoryItem
}

// Due reports whether the report has anything to announce. Low stock alone
// does not trigger a report.
func (d Digest) Due() bool {
	return len(d.Expired) > 0 || len(d.ExpiringSoon) > 0
}

// BuildDigest groups items by urgency, preserving ranking order in each group.
func BuildDigest(items []domain.InventoryItem, today time.Time) Digest {
	d := Digest{Stock: items}
	for _, r := range Rank(items, domain.FilterAll, today) {
		switch r.Urgency {
		case domain.RankExpired:
			d.Expired = append(d.Expired, r.Item)
		case domain.RankExpiringSoon:
			d.ExpiringSoon = append(d.ExpiringSoon, r.Item)
		case domain.RankLowStock:
			d.LowStock = append(d.LowStock, r.Item)
		}
	}
	return d
}

// Text renders the report body.
func (d Digest) Text() string {
	var lines []string
	if len(d.Expired) > 0 {
		lines = append(lines, "🔴 Utgångna:")
		for _, item := range d.Expired {
			lines = append(lines, fmt.Sprintf("  • %s (%s)", item.Name, expiryText(item)))
		}
	}
	if len(d.ExpiringSoon) > 0 {
		lines = append(lines, "🟡 Går ut snart:")
		for _, item := range d.ExpiringSoon {
			lines = append(lines, fmt.Sprintf("  • %s (bäst före %s)", item.Name, expiryText(item)))
		}
	}
	if len(d.LowStock) > 0 {
		lines = append(lines, "🟠 Lågt lager:")
		for _, item := range d.LowStock {
			lines = append(lines, fmt.Sprintf("  • %s (%d/%d %s)", item.Name, item.Quantity, item.MinQuantity, item.Unit))
		}
	}

	stock := make([]string, 0, digestStockLimit)
	for i, item := range d.Stock {
		if i == digestStockLimit {
			break
		}
		entry := item.Name
		if item.Unit != "" {
			entry += fmt.Sprintf(" (%d %s)", item.Quantity, item.Unit)
		}
		stock = append(stock, entry)
	}

	msg := strings.Join(lines, "\n")
	if len(stock) > 0 {
		msg += "\n\n📦 I lager: " + strings.Join(stock, ", ")
	}
	return strings.TrimLeft(msg, "\n")
}

func expiryText(item domain.InventoryItem) string {
	if item.ExpiryDate == nil {
		return "?"
	}
	return item.ExpiryDate.Format(time.DateOnly)
}
