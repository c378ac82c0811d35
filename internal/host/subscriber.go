package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/grocery-field/card/internal/domain"
)

// ErrAuthInvalid is returned when the host rejects the access token.
var ErrAuthInvalid = errors.New("host: websocket authentication rejected")

const (
	msgAuthRequired = "auth_required"
	msgAuthOK       = "auth_ok"
	msgAuthInvalid  = "auth_invalid"
	msgResult       = "result"
	msgEvent        = "event"

	eventStateChanged = "state_changed"

	getStatesID = 1
	subscribeID = 2
)

type wsMessage struct {
	ID        int             `json:"id,omitempty"`
	Type      string          `json:"type"`
	Success   *bool           `json:"success,omitempty"`
	Message   string          `json:"message,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Event     *wsEvent        `json:"event,omitempty"`
	EventType string          `json:"event_type,omitempty"`
}

type wsEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		EntityID string       `json:"entity_id"`
		NewState *EntityState `json:"new_state"`
	} `json:"data"`
}

// Subscriber keeps a HostSnapshot current from the host's websocket event
// stream, reconnecting with exponential backoff.
type Subscriber struct {
	endpoint string
	token    string
	dialer   *websocket.Dialer
	onUpdate func(domain.HostSnapshot)
	logger   func(ctx context.Context, event string, fields map[string]any)

	initialInterval time.Duration
	maxInterval     time.Duration

	mu   sync.Mutex
	snap domain.HostSnapshot
}

// SubscriberOption customises a Subscriber.
type SubscriberOption func(*Subscriber)

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) SubscriberOption {
	return func(s *Subscriber) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithSubscriberLogger sets the event logger.
func WithSubscriberLogger(logger func(ctx context.Context, event string, fields map[string]any)) SubscriberOption {
	return func(s *Subscriber) { s.logger = logger }
}

// WithReconnectIntervals bounds the reconnect backoff.
func WithReconnectIntervals(initial, maxWait time.Duration) SubscriberOption {
	return func(s *Subscriber) {
		if initial > 0 {
			s.initialInterval = initial
		}
		if maxWait > 0 {
			s.maxInterval = maxWait
		}
	}
}

// NewSubscriber targets the websocket API of the host at baseURL.
func NewSubscriber(baseURL, token string, onUpdate func(domain.HostSnapshot), opts ...SubscriberOption) (*Subscriber, error) {
	endpoint, err := websocketURL(baseURL)
	if err != nil {
		return nil, err
	}
	s := &Subscriber{
		endpoint:        endpoint,
		token:           strings.TrimSpace(token),
		dialer:          websocket.DefaultDialer,
		onUpdate:        onUpdate,
		initialInterval: time.Second,
		maxInterval:     time.Minute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func websocketURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return "", fmt.Errorf("host: parse base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("host: unsupported scheme %q", u.Scheme)
	}
	u.Path += "/api/websocket"
	return u.String(), nil
}

// Snapshot returns the latest tracked state.
func (s *Subscriber) Snapshot() domain.HostSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSnapshot(s.snap)
}

// Run connects and follows state changes until ctx is done. Rejected
// credentials stop the loop; every other failure reconnects.
func (s *Subscriber) Run(ctx context.Context) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.initialInterval
	exp.MaxInterval = s.maxInterval
	exp.MaxElapsedTime = 0

	var authErr error
	operation := func() error {
		err := s.session(ctx, exp.Reset)
		if errors.Is(err, ErrAuthInvalid) {
			authErr = err
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("host: websocket closed")
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.log(ctx, "host.subscribe.retry", map[string]any{"error": err, "wait": wait.String()})
	}
	err := backoff.RetryNotify(operation, backoff.WithContext(exp, ctx), notify)
	if authErr != nil {
		return authErr
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// session runs one connection. connected is called once subscribed.
func (s *Subscriber) session(ctx context.Context, connected func()) error {
	conn, _, err := s.dialer.DialContext(ctx, s.endpoint, http.Header{})
	if err != nil {
		return fmt.Errorf("%w: dial: %v", ErrHostUnavailable, err)
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	if err := s.authenticate(conn); err != nil {
		return err
	}
	if err := conn.WriteJSON(map[string]any{"id": getStatesID, "type": "get_states"}); err != nil {
		return fmt.Errorf("host: request states: %w", err)
	}
	if err := conn.WriteJSON(map[string]any{"id": subscribeID, "type": "subscribe_events", "event_type": eventStateChanged}); err != nil {
		return fmt.Errorf("host: subscribe: %w", err)
	}
	s.log(ctx, "host.subscribe.connected", map[string]any{"endpoint": s.endpoint})
	connected()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("host: read: %w", err)
		}
		switch msg.Type {
		case msgResult:
			if msg.Success != nil && !*msg.Success {
				return fmt.Errorf("%w: request %d failed", ErrHostUnavailable, msg.ID)
			}
			if msg.ID == getStatesID {
				s.applyStates(msg.Result)
			}
		case msgEvent:
			if msg.Event != nil && msg.Event.EventType == eventStateChanged && msg.Event.Data.NewState != nil {
				s.applyStates(nil, *msg.Event.Data.NewState)
			}
		}
	}
}

func (s *Subscriber) authenticate(conn *websocket.Conn) error {
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("host: read greeting: %w", err)
	}
	if msg.Type != msgAuthRequired {
		return fmt.Errorf("host: unexpected greeting %q", msg.Type)
	}
	if err := conn.WriteJSON(map[string]string{"type": "auth", "access_token": s.token}); err != nil {
		return fmt.Errorf("host: send auth: %w", err)
	}
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("host: read auth reply: %w", err)
	}
	switch msg.Type {
	case msgAuthOK:
		return nil
	case msgAuthInvalid:
		return fmt.Errorf("%w: %s", ErrAuthInvalid, msg.Message)
	}
	return fmt.Errorf("host: unexpected auth reply %q", msg.Type)
}

// applyStates folds a get_states result and any extra states into the
// snapshot and notifies the callback when a tracked sensor changed.
func (s *Subscriber) applyStates(result json.RawMessage, extra ...EntityState) {
	var states []EntityState
	if len(result) > 0 {
		_ = json.Unmarshal(result, &states)
	}
	states = append(states, extra...)

	s.mu.Lock()
	changed := false
	for _, st := range states {
		if Apply(&s.snap, st) {
			changed = true
		}
	}
	snap := cloneSnapshot(s.snap)
	s.mu.Unlock()

	if changed && s.onUpdate != nil {
		s.onUpdate(snap)
	}
}

func (s *Subscriber) log(ctx context.Context, event string, fields map[string]any) {
	if s.logger != nil {
		s.logger(ctx, event, fields)
	}
}

func cloneSnapshot(in domain.HostSnapshot) domain.HostSnapshot {
	out := in
	out.Items = append([]domain.InventoryItem(nil), in.Items...)
	return out
}
