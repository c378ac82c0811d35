package observability

import "unicode"

// clean drops control characters (keeping whitespace controls) and caps the rune count.
func clean(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	out := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return string(out)
}

// SanitizeRoute makes a route pattern safe to log.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clean(route, 180)
}

// SanitizeMethod makes an HTTP method safe to log.
func SanitizeMethod(method string) string {
	return clean(method, 10)
}

// SanitizeBarcode limits scanned payloads before they reach log lines.
func SanitizeBarcode(code string) string {
	return clean(code, 64)
}
