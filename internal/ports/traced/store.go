// Package traced wraps a DocumentStore with OpenTelemetry spans.
package traced

import (
	"context"
	"encoding/json"
	"errors"

	"duelhall/internal/ports"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "duelhall/internal/ports/traced"

// Store starts one span per DocumentStore call. ErrNotFound and
// ErrVersionConflict are normal coordination outcomes and are recorded as an
// attribute rather than as span errors.
type Store struct {
	next   ports.DocumentStore
	tracer trace.Tracer
}

// NewStore wraps next. A nil provider uses the global one.
func NewStore(next ports.DocumentStore, provider trace.TracerProvider) *Store {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Store{next: next, tracer: provider.Tracer(instrumentationName)}
}

func refAttributes(ref ports.Ref) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("store.collection", ref.Collection),
		attribute.String("store.owner", ref.Owner),
		attribute.String("store.key", ref.Key),
	}
}

func (s *Store) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "DocumentStore."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func finish(span trace.Span, err error) {
	defer span.End()
	switch {
	case err == nil:
		span.SetAttributes(attribute.String("store.outcome", "ok"))
	case errors.Is(err, ports.ErrNotFound):
		span.SetAttributes(attribute.String("store.outcome", "not_found"))
	case errors.Is(err, ports.ErrVersionConflict):
		span.SetAttributes(attribute.String("store.outcome", "conflict"))
	default:
		span.SetAttributes(attribute.String("store.outcome", "error"))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (s *Store) Get(ctx context.Context, ref ports.Ref) (*ports.Document, error) {
	ctx, span := s.start(ctx, "Get", refAttributes(ref)...)
	doc, err := s.next.Get(ctx, ref)
	if err == nil {
		span.SetAttributes(attribute.String("store.version", doc.Version))
	}
	finish(span, err)
	return doc, err
}

func (s *Store) Put(ctx context.Context, ref ports.Ref, value json.RawMessage, version string) (string, error) {
	attrs := append(refAttributes(ref),
		attribute.String("store.precondition", precondition(version)),
		attribute.Int("store.bytes", len(value)),
	)
	ctx, span := s.start(ctx, "Put", attrs...)
	next, err := s.next.Put(ctx, ref, value, version)
	if err == nil {
		span.SetAttributes(attribute.String("store.version", next))
	}
	finish(span, err)
	return next, err
}

func (s *Store) Delete(ctx context.Context, ref ports.Ref, version string) error {
	attrs := append(refAttributes(ref), attribute.String("store.precondition", precondition(version)))
	ctx, span := s.start(ctx, "Delete", attrs...)
	err := s.next.Delete(ctx, ref, version)
	finish(span, err)
	return err
}

func (s *Store) List(ctx context.Context, collection, owner string) ([]*ports.Document, error) {
	ctx, span := s.start(ctx, "List",
		attribute.String("store.collection", collection),
		attribute.String("store.owner", owner),
	)
	docs, err := s.next.List(ctx, collection, owner)
	span.SetAttributes(attribute.Int("store.count", len(docs)))
	finish(span, err)
	return docs, err
}

func precondition(version string) string {
	switch version {
	case ports.AnyVersion:
		return "any"
	case ports.CreateOnly:
		return "create"
	default:
		return "match"
	}
}

var _ ports.DocumentStore = (*Store)(nil)
