// Package feed maintains live per-asset prices from the streaming oracle and
// triggers detection on materially relevant moves.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/voznyak/flarex/internal/domain"
	"github.com/voznyak/flarex/internal/telemetry"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// MoveHandler is invoked for every materially relevant price move. It must
// not block: the subscriber hands off and returns to reading the stream.
type MoveHandler func(symbol string, prev, price int64)

// Subscriber maintains a persistent oracle websocket subscription for an
// explicit symbol set. It updates the shared price State on every message and
// invokes the handler only when the relative change since the last update
// exceeds the configured threshold.
type Subscriber struct {
	wsURL   string
	symbols map[string]string // feed id -> symbol
	state   *State
	onMove  MoveHandler

	moveThreshold float64
	maxReconnects int

	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// SubscriberConfig configures a Subscriber.
type SubscriberConfig struct {
	WSURL         string
	Symbols       map[string]string
	MoveThreshold float64
	MaxReconnects int
}

// NewSubscriber creates a Subscriber. The handler receives prices in ticks.
func NewSubscriber(cfg SubscriberConfig, state *State, onMove MoveHandler, metrics *telemetry.Metrics, logger *slog.Logger) *Subscriber {
	symbols := make(map[string]string, len(cfg.Symbols))
	for id, sym := range cfg.Symbols {
		symbols[id] = sym
	}
	return &Subscriber{
		wsURL:         cfg.WSURL,
		symbols:       symbols,
		state:         state,
		onMove:        onMove,
		moveThreshold: cfg.MoveThreshold,
		maxReconnects: cfg.MaxReconnects,
		metrics:       metrics,
		logger:        logger.With(slog.String("component", "price_feed")),
	}
}

// Run connects, subscribes to the full symbol set, and processes messages
// until ctx is cancelled. On disconnect it reconnects with exponential
// backoff and re-subscribes; exhausting the reconnect budget is a fatal
// degradation reported as domain.ErrFeedExhausted.
func (s *Subscriber) Run(ctx context.Context) error {
	bo := &backoff.Backoff{
		Min:    time.Second,
		Max:    60 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	attempts := 0

	for {
		started := time.Now()
		err := s.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A session that survived a while counts as a recovery; the budget
		// only guards against tight reconnect storms.
		if time.Since(started) > time.Minute {
			attempts = 0
			bo.Reset()
		}

		attempts++
		if attempts > s.maxReconnects {
			s.logger.Error("price feed degraded: reconnect attempts exhausted",
				slog.Int("attempts", attempts-1),
				slog.String("last_error", err.Error()),
			)
			return fmt.Errorf("feed: %w: %v", domain.ErrFeedExhausted, err)
		}

		s.metrics.FeedReconnects.Add(1)
		delay := bo.Duration()
		s.logger.Warn("price feed disconnected, reconnecting",
			slog.Int("attempt", attempts),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// runConnection drives one websocket session: dial, subscribe, read until
// failure or cancellation. A healthy message resets the reconnect budget via
// the returned error path (only abnormal exits return).
func (s *Subscriber) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.wsURL, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := s.subscribe(conn); err != nil {
		return err
	}
	s.logger.Info("price feed subscribed", slog.Int("symbols", len(s.symbols)))

	// Close the connection when ctx ends so the blocked read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	go s.pingLoop(ctx, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		s.handleMessage(raw)
	}
}

// subscribeCommand is the oracle subscription wire shape.
type subscribeCommand struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids"`
}

func (s *Subscriber) subscribe(conn *websocket.Conn) error {
	ids := make([]string, 0, len(s.symbols))
	for id := range s.symbols {
		ids = append(ids, id)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(subscribeCommand{Type: "subscribe", IDs: ids}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (s *Subscriber) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// priceMessage is one oracle price update: a fixed-point price plus exponent.
type priceMessage struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Price       string `json:"price"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

// handleMessage decodes one update, records it, and triggers the handler on
// a material move. Unparseable messages are dropped silently.
func (s *Subscriber) handleMessage(raw []byte) {
	var msg priceMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Type != "price_update" {
		return
	}
	symbol, ok := s.symbols[msg.ID]
	if !ok {
		return
	}
	price, err := normalizePrice(msg.Price, msg.Expo)
	if err != nil || price <= 0 {
		return
	}
	s.metrics.FeedMessages.Add(1)

	at := time.Unix(msg.PublishTime, 0).UTC()
	prev, hadPrev := s.state.Update(symbol, price, at)
	if !hadPrev {
		return
	}
	if RelativeMove(prev, price) < s.moveThreshold {
		return
	}

	s.metrics.FeedTriggers.Add(1)
	s.logger.Debug("material price move",
		slog.String("symbol", symbol),
		slog.Int64("prev", prev),
		slog.Int64("price", price),
	)
	s.onMove(symbol, prev, price)
}

// normalizePrice converts an integer price with a decimal exponent to ticks.
func normalizePrice(raw string, expo int32) (int64, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	scaled := float64(v) * math.Pow10(int(expo)) * domain.PriceScale
	if scaled > math.MaxInt64 || scaled < 0 {
		return 0, fmt.Errorf("price out of range: %s e%d", raw, expo)
	}
	return int64(scaled), nil
}
