package domain

// SessionState is the state of a scan acquisition session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateCheckingPermission
	StateLiveScanning
	StateConfirm
	StateFallbackGuidance
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingPermission:
		return "checking_permission"
	case StateLiveScanning:
		return "live_scanning"
	case StateConfirm:
		return "confirm"
	case StateFallbackGuidance:
		return "fallback_guidance"
	}
	return "unknown"
}

// MarshalText renders the state name.
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ProductRecord is the display metadata resolved for a scanned code.
type ProductRecord struct {
	Name     string `json:"name,omitempty"`
	Brand    string `json:"brand,omitempty"`
	Category string `json:"category,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}
