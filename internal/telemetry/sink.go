package telemetry

import (
	"context"
	"log/slog"

	"github.com/voznyak/flarex/internal/domain"
)

// SlogSink records events as structured log lines. It is the default sink
// when no external bus is configured.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a SlogSink.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger.With(slog.String("component", "event_sink"))}
}

// RecordEvent logs the event with its stable kind label.
func (s *SlogSink) RecordEvent(ctx context.Context, kind string, payload any) {
	s.logger.InfoContext(ctx, "event",
		slog.String("kind", kind),
		slog.Any("payload", payload),
	)
}

// MultiSink fans one event out to several sinks.
type MultiSink []domain.EventSink

// RecordEvent forwards the event to every sink in order.
func (m MultiSink) RecordEvent(ctx context.Context, kind string, payload any) {
	for _, s := range m {
		s.RecordEvent(ctx, kind, payload)
	}
}

// Compile-time interface checks.
var (
	_ domain.EventSink = (*SlogSink)(nil)
	_ domain.EventSink = (MultiSink)(nil)
)
