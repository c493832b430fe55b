package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voznyak/flarex/internal/domain"
)

// streamMaxLen is the approximate maximum length for the event stream,
// enforced via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// RedisSink publishes events to a Redis Pub/Sub channel for live consumers
// and appends them to a capped Redis stream so the external stats surface
// can replay recent history. Publish failures are logged, never propagated:
// telemetry must not slow the detection path.
type RedisSink struct {
	rdb     *redis.Client
	channel string
	stream  string
	logger  *slog.Logger
}

// NewRedisSink connects to Redis and returns a sink. The connection is
// verified with a short ping so a misconfigured bus fails at startup rather
// than silently dropping events.
func NewRedisSink(ctx context.Context, addr, password string, db int, channel, stream string, logger *slog.Logger) (*RedisSink, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &RedisSink{
		rdb:     rdb,
		channel: channel,
		stream:  stream,
		logger:  logger.With(slog.String("component", "redis_sink")),
	}, nil
}

// event is the wire shape published on the bus.
type event struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// RecordEvent publishes the event to the Pub/Sub channel and appends it to
// the capped stream.
func (s *RedisSink) RecordEvent(ctx context.Context, kind string, payload any) {
	data, err := json.Marshal(event{Kind: kind, At: time.Now().UTC(), Data: payload})
	if err != nil {
		s.logger.Warn("event marshal failed", slog.String("kind", kind), slog.String("error", err.Error()))
		return
	}
	if err := s.rdb.Publish(ctx, s.channel, data).Err(); err != nil {
		s.logger.Warn("event publish failed", slog.String("kind", kind), slog.String("error", err.Error()))
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": data},
	}
	if err := s.rdb.XAdd(ctx, args).Err(); err != nil {
		s.logger.Warn("event stream append failed", slog.String("kind", kind), slog.String("error", err.Error()))
	}
}

// Close releases the Redis connection.
func (s *RedisSink) Close() error { return s.rdb.Close() }

// Compile-time interface check.
var _ domain.EventSink = (*RedisSink)(nil)
