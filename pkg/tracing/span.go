// Package tracing times the phases of one request. Spans nest through the
// context; finishing the root logs the whole tree as a single debug record.
package tracing

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

type ctxKey struct{}

type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	EndTime   time.Time
	Children  []*Span
	Attrs     map[string]any

	mu sync.Mutex
}

// StartSpan begins a root span for traceID.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{Name: name, TraceID: traceID, StartTime: time.Now()}
	return context.WithValue(ctx, ctxKey{}, s), s
}

// StartChildSpan begins a span under the one in ctx, or a detached span when
// ctx carries none.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{Name: name, StartTime: time.Now()}
	if parent := SpanFromContext(ctx); parent != nil {
		s.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.Children = append(parent.Children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, ctxKey{}, s), s
}

func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(ctxKey{}).(*Span)
	return s
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Attrs == nil {
		s.Attrs = make(map[string]any)
	}
	s.Attrs[key] = value
}

func (s *Span) End() {
	s.mu.Lock()
	s.EndTime = time.Now()
	s.mu.Unlock()
}

// Duration is zero until End.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Finish ends s and logs its tree.
func (s *Span) Finish() {
	s.End()
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	slog.Debug("trace", "trace_id", s.TraceID, "tree", s.group())
}

// group renders the span as nested slog groups: duration, attributes, then
// one subgroup per child. Repeated child names get an index suffix.
func (s *Span) group() slog.Value {
	s.mu.Lock()
	var ms int64
	if !s.EndTime.IsZero() {
		ms = s.EndTime.Sub(s.StartTime).Milliseconds()
	}
	attrs := []slog.Attr{slog.String("span", s.Name), slog.Int64("duration_ms", ms)}
	for k, v := range s.Attrs {
		attrs = append(attrs, slog.Any(k, v))
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	seen := make(map[string]int, len(children))
	for _, c := range children {
		key := c.Name
		if n := seen[c.Name]; n > 0 {
			key = key + "#" + strconv.Itoa(n)
		}
		seen[c.Name]++
		attrs = append(attrs, slog.Attr{Key: key, Value: c.group()})
	}
	return slog.GroupValue(attrs...)
}

// Trace runs fn in a child span, recording its error as an attribute.
func Trace(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := StartChildSpan(ctx, name)
	defer span.End()
	err := fn(ctx)
	if err != nil {
		span.SetAttr("error", err.Error())
	}
	return err
}
