// Package product resolves scanned barcodes against the Open Food Facts catalogue.
package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/grocery-field/card/internal/domain"
)

const (
	// DefaultBaseURL is the Open Food Facts v2 product endpoint.
	DefaultBaseURL = "https://world.openfoodfacts.org/api/v2/product"
	// DefaultUserAgent identifies the integration to the catalogue.
	DefaultUserAgent = "HomeAssistant-GroceryTracker/1.0"
	// DefaultLocale selects the preferred localized product name.
	DefaultLocale = "sv"

	maxResponseBytes = 4 << 20
)

// HTTPClient matches the subset of http.Client used by Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client queries the product catalogue.
type Client struct {
	base      *url.URL
	client    HTTPClient
	userAgent string
	locale    string
	text      *bluemonday.Policy
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) {
		if c != nil {
			cl.client = c
		}
	}
}

// WithUserAgent overrides the identifying header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			cl.userAgent = ua
		}
	}
}

// WithLocale sets the language whose product_name_<locale> field is preferred.
func WithLocale(locale string) Option {
	return func(cl *Client) {
		if locale = strings.ToLower(strings.TrimSpace(locale)); locale != "" {
			cl.locale = locale
		}
	}
}

// NewClient returns a Client for baseURL, or DefaultBaseURL when empty.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("product: parse base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("product: base URL must be absolute")
	}
	c := &Client{
		base:      parsed,
		client:    http.DefaultClient,
		userAgent: DefaultUserAgent,
		locale:    DefaultLocale,
		text:      bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Lookup issues one catalogue request. A non-2xx response or a not-found
// status yields (nil, nil); only transport and decode failures are errors.
func (c *Client) Lookup(ctx context.Context, barcode string) (*domain.ProductRecord, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(barcode), nil)
	if err != nil {
		return nil, fmt.Errorf("product: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("product: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil, nil
	}

	var payload lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("product: decode response: %w", err)
	}
	if !payload.Status.found() || payload.Product == nil {
		return nil, nil
	}
	return c.derive(payload.Product), nil
}

func (c *Client) endpoint(barcode string) string {
	ref := &url.URL{Path: c.base.Path + "/" + url.PathEscape(barcode) + ".json"}
	return c.base.ResolveReference(ref).String()
}

type lookupResponse struct {
	Status  lookupStatus   `json:"status"`
	Product map[string]any `json:"product"`
}

// lookupStatus accepts the v2 numeric flag and the v3 string form.
type lookupStatus struct {
	raw json.RawMessage
}

func (s *lookupStatus) UnmarshalJSON(data []byte) error {
	s.raw = append(s.raw[:0], data...)
	return nil
}

func (s lookupStatus) found() bool {
	var n json.Number
	if err := json.Unmarshal(s.raw, &n); err == nil {
		return n.String() == "1"
	}
	var str string
	if err := json.Unmarshal(s.raw, &str); err == nil {
		switch strings.ToLower(strings.TrimSpace(str)) {
		case "1", "success", "success_with_warnings":
			return true
		}
	}
	return false
}

func (c *Client) derive(p map[string]any) *domain.ProductRecord {
	name := firstNonEmpty(
		c.field(p, "product_name_"+c.locale),
		c.field(p, "product_name"),
		c.field(p, "product_name_en"),
	)
	image := firstNonEmpty(c.field(p, "image_small_url"), c.field(p, "image_url"))
	return &domain.ProductRecord{
		Name:     name,
		Brand:    c.field(p, "brands"),
		Category: c.category(p["categories_tags"]),
		ImageURL: image,
	}
}

func (c *Client) field(p map[string]any, key string) string {
	v, ok := p[key].(string)
	if !ok {
		return ""
	}
	return c.plain(v)
}

// plain strips markup and decodes the entities the sanitizer leaves behind.
func (c *Client) plain(v string) string {
	return strings.TrimSpace(html.UnescapeString(c.text.Sanitize(v)))
}

// category takes the most specific tag, drops its language prefix and turns
// separators into spaces.
func (c *Client) category(raw any) string {
	tags, ok := raw.([]any)
	if !ok || len(tags) == 0 {
		return ""
	}
	last, ok := tags[len(tags)-1].(string)
	if !ok {
		return ""
	}
	if prefix, rest, found := strings.Cut(last, ":"); found && len(prefix) == 2 {
		last = rest
	}
	last = strings.ReplaceAll(last, "-", " ")
	return c.plain(last)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
