package domain

// Host commands understood by the inventory backend.
const (
	CommandScanAdd      = "grocery_scan_add"
	CommandScanRemove   = "grocery_scan_remove"
	CommandManualAdd    = "grocery_manual_add"
	CommandManualRemove = "grocery_manual_remove"
	CommandSetExpiry    = "grocery_set_expiry"
)

// SourceMobile tags commands issued from the scanner card.
const SourceMobile = "mobile"

// Command is a named request forwarded to the host.
type Command struct {
	Name    string         `json:"command"`
	Payload map[string]any `json:"data"`
}
