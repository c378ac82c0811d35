package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/grocery-field/card/internal/domain"
)

// DefaultDomain is the integration that hosts the inventory services.
const DefaultDomain = "pyscript"

// HTTPClient matches the subset of http.Client used by RESTClient.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// RESTClient calls the host's REST API with a long-lived access token.
type RESTClient struct {
	base        *url.URL
	token       string
	integration string
	client      HTTPClient
}

// NewRESTClient builds a client for baseURL. integration defaults to DefaultDomain.
func NewRESTClient(baseURL, token, integration string, client HTTPClient) (*RESTClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("host: base URL is required")
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("host: parse base URL: %w", err)
	}
	if strings.TrimSpace(integration) == "" {
		integration = DefaultDomain
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &RESTClient{base: parsed, token: strings.TrimSpace(token), integration: integration, client: client}, nil
}

// BaseURL returns the host base URL.
func (c *RESTClient) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// Token returns the access token used for API calls.
func (c *RESTClient) Token() string { return c.token }

// Call invokes the backend service named by cmd with its payload.
func (c *RESTClient) Call(ctx context.Context, cmd domain.Command) error {
	if err := validCommand(cmd); err != nil {
		return err
	}
	payload := cmd.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("host: encode %s: %w", cmd.Name, err)
	}
	endpoint := path.Join("/api/services", url.PathEscape(c.integration), url.PathEscape(cmd.Name))
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %d", ErrHostUnavailable, cmd.Name, resp.StatusCode)
	}
	return nil
}

// State reads one entity. A missing entity returns (nil, nil).
func (c *RESTClient) State(ctx context.Context, entityID string) (*EntityState, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path.Join("/api/states", url.PathEscape(entityID)), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: state %s returned %d", ErrHostUnavailable, entityID, resp.StatusCode)
	}
	var st EntityState
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&st); err != nil {
		return nil, fmt.Errorf("host: decode state %s: %w", entityID, err)
	}
	return &st, nil
}

// Snapshot reads every tracked sensor. Missing sensors leave their fields empty.
func (c *RESTClient) Snapshot(ctx context.Context) (domain.HostSnapshot, error) {
	var snap domain.HostSnapshot
	for _, id := range Sensors {
		st, err := c.State(ctx, id)
		if err != nil {
			return domain.HostSnapshot{}, err
		}
		if st != nil {
			Apply(&snap, *st)
		}
	}
	return snap, nil
}

func (c *RESTClient) do(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHostUnavailable, err)
	}
	return resp, nil
}

func (c *RESTClient) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	ref := &url.URL{Path: c.base.Path + endpoint}
	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), body)
	if err != nil {
		return nil, fmt.Errorf("host: build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
