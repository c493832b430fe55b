package ledger

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voznyak/flarex/internal/domain"
)

type countingReader struct {
	mu    sync.Mutex
	calls []string
}

func (c *countingReader) record(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, id)
}

func (c *countingReader) Enumerate(ctx context.Context, f domain.Filter) ([]string, error) {
	c.record("enumerate")
	return []string{"a", "b"}, nil
}

func (c *countingReader) FetchMany(ctx context.Context, ids []string) ([][]byte, error) {
	c.record("fetch:" + ids[0])
	return make([][]byte, len(ids)), nil
}

func (c *countingReader) SubscribeLogs(ctx context.Context, target string, fn func(domain.LogEvent)) error {
	c.record("subscribe")
	return nil
}

func TestThrottledDelegates(t *testing.T) {
	inner := &countingReader{}
	tr := NewThrottled(inner, 1000)

	ids, err := tr.Enumerate(context.Background(), domain.Filter{Market: "m"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	_, err = tr.FetchMany(context.Background(), []string{"x"})
	require.NoError(t, err)

	require.NoError(t, tr.SubscribeLogs(context.Background(), "p", nil))
	assert.Equal(t, []string{"enumerate", "fetch:x", "subscribe"}, inner.calls)
}

func TestThrottledHonorsCancellation(t *testing.T) {
	inner := &countingReader{}
	// One request per ten seconds: the second caller must wait, and a
	// cancelled context frees it with an error instead.
	tr := NewThrottled(inner, 0.1)

	_, err := tr.Enumerate(context.Background(), domain.Filter{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tr.FetchMany(ctx, []string{"x"})
	assert.Error(t, err)
	assert.Equal(t, []string{"enumerate"}, inner.calls, "throttled call never reached the reader")
}

func TestConfirmWindowExpiryIsTimeoutSentinel(t *testing.T) {
	c := NewClient("http://unreachable", "ws://unreachable", slog.New(slog.NewTextHandler(io.Discard, nil)))

	// An already-expired deadline collapses the confirmation window without
	// any polling; the error must carry the timeout sentinel so callers can
	// tell ambiguity apart from an on-chain rejection.
	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()
	err := c.Confirm(ctx, "sig-timeout")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfirmTimeout)
}

func TestConfirmCancellationIsNotTimeout(t *testing.T) {
	c := NewClient("http://unreachable", "ws://unreachable", slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Confirm(ctx, "sig-cancelled")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrConfirmTimeout)
}

func TestParseTradeLine(t *testing.T) {
	v, asset, notional, ok := parseTradeLine("Program log: trade venue=ammA asset=SOL notional=12500000000")
	require.True(t, ok)
	assert.Equal(t, "ammA", v)
	assert.Equal(t, "SOL", asset)
	assert.Equal(t, int64(12_500_000_000), notional)

	_, _, _, ok = parseTradeLine("Program log: transfer 5 lamports")
	assert.False(t, ok)
}

func TestDecodeLogNotification(t *testing.T) {
	raw := []byte(`{
		"method": "logsNotification",
		"params": {"result": {"value": {
			"signature": "sig123",
			"logs": [
				"Program invoke [1]",
				"Program log: trade venue=ammA asset=SOL notional=20000000000"
			]
		}}}
	}`)
	ev, ok := decodeLogNotification("program-x", raw)
	require.True(t, ok)
	assert.Equal(t, "program-x", ev.Target)
	assert.Equal(t, "sig123", ev.Signature)
	assert.Equal(t, "ammA", ev.Venue)
	assert.Equal(t, "SOL", ev.Asset)
	assert.Equal(t, int64(20_000_000_000), ev.Notional)

	_, ok = decodeLogNotification("program-x", []byte(`{"method":"other"}`))
	assert.False(t, ok)
}
