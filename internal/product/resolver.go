package product

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/grocery-field/card/internal/domain"
)

// Looker is the catalogue query Resolver depends on.
type Looker interface {
	Lookup(ctx context.Context, barcode string) (*domain.ProductRecord, error)
}

// Lookup outcomes recorded on the product.lookups counter.
const (
	ResultFound    = "found"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

var (
	tracer        = otel.Tracer("github.com/grocery-field/card/internal/product")
	meter         = otel.Meter("github.com/grocery-field/card/internal/product")
	lookupCounter metric.Int64Counter
	counterOnce   sync.Once
)

func lookups() metric.Int64Counter {
	counterOnce.Do(func() {
		lookupCounter, _ = meter.Int64Counter("product.lookups", metric.WithDescription("Product catalogue lookups by result"))
	})
	return lookupCounter
}

// Resolver turns a scanned code into an optional ProductRecord. Every failure
// is absorbed into a nil record.
type Resolver struct {
	looker Looker
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewResolver wraps looker. logger may be nil.
func NewResolver(looker Looker, logger func(ctx context.Context, event string, fields map[string]any)) *Resolver {
	return &Resolver{looker: looker, logger: logger}
}

// Resolve performs one lookup with no retry.
func (r *Resolver) Resolve(ctx context.Context, code string) *domain.ProductRecord {
	if r == nil || r.looker == nil || code == "" {
		return nil
	}
	ctx, span := tracer.Start(ctx, "product.Resolve", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	record, err := r.looker.Lookup(ctx, code)
	result := ResultFound
	switch {
	case err != nil:
		result = ResultError
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		r.log(ctx, "product.lookup.failed", map[string]any{"barcode": code, "error": err})
		record = nil
	case record == nil:
		result = ResultNotFound
	}
	span.SetAttributes(attribute.String("product.result", result))
	if c := lookups(); c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
	return record
}

func (r *Resolver) log(ctx context.Context, event string, fields map[string]any) {
	if r.logger != nil {
		r.logger(ctx, event, fields)
	}
}
