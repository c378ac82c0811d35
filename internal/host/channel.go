// Package host talks to the home-automation host: it reads the inventory
// sensors and forwards card commands to the backend services.
package host

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/grocery-field/card/internal/domain"
)

// ErrHostUnavailable is returned when the host cannot be reached or rejects a call.
var ErrHostUnavailable = errors.New("host: unavailable")

// CommandChannel delivers commands to the backend.
type CommandChannel interface {
	Call(ctx context.Context, cmd domain.Command) error
}

// SnapshotSource reads the current inventory state.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (domain.HostSnapshot, error)
}

var (
	tracer         = otel.Tracer("github.com/grocery-field/card/internal/host")
	meter          = otel.Meter("github.com/grocery-field/card/internal/host")
	commandCounter metric.Int64Counter
	counterOnce    sync.Once
)

func commands() metric.Int64Counter {
	counterOnce.Do(func() {
		commandCounter, _ = meter.Int64Counter("host.commands", metric.WithDescription("Commands sent to the host by outcome"))
	})
	return commandCounter
}

// Instrumented wraps a channel with a span, a counter and logging.
type Instrumented struct {
	next   CommandChannel
	logger func(ctx context.Context, event string, fields map[string]any)
}

// Instrument wraps next. logger may be nil.
func Instrument(next CommandChannel, logger func(ctx context.Context, event string, fields map[string]any)) *Instrumented {
	return &Instrumented{next: next, logger: logger}
}

// Call forwards cmd and records the outcome.
func (i *Instrumented) Call(ctx context.Context, cmd domain.Command) error {
	if i == nil || i.next == nil {
		return ErrHostUnavailable
	}
	ctx, span := tracer.Start(ctx, "host.Call", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("host.command", cmd.Name))

	err := i.next.Call(ctx, cmd)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "command failed")
	}
	if c := commands(); c != nil {
		c.Add(ctx, 1, metric.WithAttributes(
			attribute.String("command", cmd.Name),
			attribute.String("outcome", outcome),
		))
	}
	if i.logger != nil {
		fields := map[string]any{"command": cmd.Name}
		event := "host.command.sent"
		if err != nil {
			event = "host.command.failed"
			fields["error"] = err
		}
		i.logger(ctx, event, fields)
	}
	return err
}

// Recorder is an in-memory channel that keeps every command it receives.
type Recorder struct {
	mu   sync.Mutex
	cmds []domain.Command
	Err  error
}

func (r *Recorder) Call(_ context.Context, cmd domain.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	return r.Err
}

// Commands returns the commands recorded so far.
func (r *Recorder) Commands() []domain.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Command(nil), r.cmds...)
}

func validCommand(cmd domain.Command) error {
	if strings.TrimSpace(cmd.Name) == "" {
		return errors.New("host: command name is required")
	}
	return nil
}
