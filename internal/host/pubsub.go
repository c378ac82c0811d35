package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"

	"github.com/grocery-field/card/internal/domain"
)

// PubSubChannel publishes commands to a topic consumed by a bridge on the host side.
type PubSubChannel struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
	newID   func() string
}

// NewPubSubChannel wraps topic.
func NewPubSubChannel(topic *pubsub.Topic) (*PubSubChannel, error) {
	if topic == nil {
		return nil, errors.New("pubsub command channel: topic is required")
	}
	return &PubSubChannel{
		topic:   topic,
		marshal: json.Marshal,
		newID:   func() string { return ulid.Make().String() },
	}, nil
}

// Call publishes cmd and waits for the server acknowledgement.
func (p *PubSubChannel) Call(ctx context.Context, cmd domain.Command) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub command channel: not initialised")
	}
	if err := validCommand(cmd); err != nil {
		return err
	}
	if cmd.Payload == nil {
		cmd.Payload = map[string]any{}
	}
	data, err := p.marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command %s: %w", cmd.Name, err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "command", cmd.Name)
	setAttr(attrs, "requestId", p.newID())
	if source, ok := cmd.Payload["source"].(string); ok {
		setAttr(attrs, "source", source)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("%w: publish %s: %v", ErrHostUnavailable, cmd.Name, err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
