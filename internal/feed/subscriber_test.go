package feed

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voznyak/flarex/internal/domain"
	"github.com/voznyak/flarex/internal/telemetry"
)

type trigger struct {
	symbol string
	prev   int64
	price  int64
}

func newTestSubscriber(threshold float64) (*Subscriber, *[]trigger, *telemetry.Metrics) {
	var triggers []trigger
	metrics := telemetry.NewMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSubscriber(SubscriberConfig{
		WSURL:         "wss://example.invalid/ws",
		Symbols:       map[string]string{"feed-sol": "SOL"},
		MoveThreshold: threshold,
		MaxReconnects: 3,
	}, NewState(), func(symbol string, prev, price int64) {
		triggers = append(triggers, trigger{symbol, prev, price})
	}, metrics, logger)
	return s, &triggers, metrics
}

func priceUpdate(id, price string, expo int32) []byte {
	return []byte(fmt.Sprintf(
		`{"type":"price_update","id":%q,"price":%q,"expo":%d,"publish_time":%d}`,
		id, price, expo, time.Now().Unix()))
}

func TestHandleMessageFirstObservationNeverTriggers(t *testing.T) {
	s, triggers, metrics := newTestSubscriber(0.001)

	s.handleMessage(priceUpdate("feed-sol", "10000000000", -8)) // 100.00

	assert.Empty(t, *triggers)
	assert.Equal(t, int64(1), metrics.FeedMessages.Load())
	assert.Equal(t, int64(0), metrics.FeedTriggers.Load())
}

func TestHandleMessageGatesSmallMoves(t *testing.T) {
	s, triggers, _ := newTestSubscriber(0.001)

	s.handleMessage(priceUpdate("feed-sol", "10000000000", -8)) // 100.00
	s.handleMessage(priceUpdate("feed-sol", "10000500000", -8)) // 100.005, 0.005% move

	assert.Empty(t, *triggers, "sub-threshold move must not trigger")
}

func TestHandleMessageTriggersOnMaterialMove(t *testing.T) {
	s, triggers, metrics := newTestSubscriber(0.001)

	s.handleMessage(priceUpdate("feed-sol", "10000000000", -8)) // 100.00
	s.handleMessage(priceUpdate("feed-sol", "9800000000", -8))  // 98.00, 2% drop

	require.Len(t, *triggers, 1)
	got := (*triggers)[0]
	assert.Equal(t, "SOL", got.symbol)
	assert.Equal(t, int64(100*domain.PriceScale), got.prev)
	assert.Equal(t, int64(98*domain.PriceScale), got.price)
	assert.Equal(t, int64(1), metrics.FeedTriggers.Load())
}

func TestHandleMessageIgnoresUnknownSymbolsAndJunk(t *testing.T) {
	s, triggers, metrics := newTestSubscriber(0.001)

	s.handleMessage([]byte(`not json`))
	s.handleMessage([]byte(`{"type":"heartbeat"}`))
	s.handleMessage(priceUpdate("feed-eth", "200000000000", -8))
	s.handleMessage(priceUpdate("feed-sol", "-5", -8))

	assert.Empty(t, *triggers)
	assert.Equal(t, int64(0), metrics.FeedMessages.Load())
}

func TestNormalizePrice(t *testing.T) {
	ticks, err := normalizePrice("10070000000", -8)
	require.NoError(t, err)
	assert.Equal(t, int64(100_700_000), ticks) // 100.70

	ticks, err = normalizePrice("42", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(42*domain.PriceScale), ticks)

	_, err = normalizePrice("not-a-number", -8)
	assert.Error(t, err)
}

func TestRelativeMove(t *testing.T) {
	assert.InDelta(t, 0.02, RelativeMove(100*domain.PriceScale, 98*domain.PriceScale), 1e-9)
	assert.InDelta(t, 0.02, RelativeMove(100*domain.PriceScale, 102*domain.PriceScale), 1e-9)
	assert.Zero(t, RelativeMove(0, 5))
}

func TestStateUpdate(t *testing.T) {
	st := NewState()
	prev, had := st.Update("SOL", 100, time.Now())
	assert.False(t, had)
	assert.Zero(t, prev)

	prev, had = st.Update("SOL", 98, time.Now())
	assert.True(t, had)
	assert.Equal(t, int64(100), prev)

	pt, ok := st.Last("SOL")
	require.True(t, ok)
	assert.Equal(t, int64(98), pt.Price)
}
