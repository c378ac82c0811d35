package host

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/grocery-field/card/internal/domain"
)

func TestPubSubChannelPublishesCommand(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "grocery-commands")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	channel, err := NewPubSubChannel(topic)
	if err != nil {
		t.Fatalf("NewPubSubChannel: %v", err)
	}

	cmd := domain.Command{
		Name:    domain.CommandScanAdd,
		Payload: map[string]any{"barcode": "7310865004703", "quantity": 2, "source": domain.SourceMobile},
	}
	if err := channel.Call(ctx, cmd); err != nil {
		t.Fatalf("Call: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload domain.Command
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Name != domain.CommandScanAdd || payload.Payload["barcode"] != "7310865004703" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	attrs := messages[0].Attributes
	if attrs["command"] != domain.CommandScanAdd {
		t.Fatalf("expected command attribute, got %q", attrs["command"])
	}
	if attrs["source"] != domain.SourceMobile {
		t.Fatalf("expected source attribute, got %q", attrs["source"])
	}
	if len(attrs["requestId"]) != 26 {
		t.Fatalf("expected ulid request id, got %q", attrs["requestId"])
	}
}

func TestNewPubSubChannelRequiresTopic(t *testing.T) {
	if _, err := NewPubSubChannel(nil); err == nil {
		t.Fatal("expected error for nil topic")
	}
}
