package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voznyak/flarex/internal/domain"
)

const (
	httpTimeout      = 15 * time.Second
	confirmTimeout   = 30 * time.Second
	confirmInterval  = 500 * time.Millisecond
	maxFetchBatch    = 100
	maxResponseBytes = 16 << 20
)

// Client is the JSON-RPC ledger collaborator: batched account reads over
// HTTP, log subscriptions over websocket, and the simulate/submit/confirm
// write path. It implements both domain.LedgerReader and
// domain.LedgerSubmitter; reads are expected to sit behind Throttled.
type Client struct {
	rpcEndpoint string
	wsEndpoint  string
	http        *http.Client
	logger      *slog.Logger
	nextID      atomic.Int64
}

// NewClient creates a Client for the given HTTP and websocket endpoints.
func NewClient(rpcEndpoint, wsEndpoint string, logger *slog.Logger) *Client {
	return &Client{
		rpcEndpoint: rpcEndpoint,
		wsEndpoint:  wsEndpoint,
		http:        &http.Client{Timeout: httpTimeout},
		logger:      logger.With(slog.String("component", "ledger")),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC request and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("ledger: marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ledger: %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("ledger: %s read: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ledger: %s: status %d", method, resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return fmt.Errorf("ledger: %s decode: %w", method, err)
	}
	if rr.Error != nil {
		return fmt.Errorf("ledger: %s: rpc error %d: %s", method, rr.Error.Code, rr.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rr.Result, out); err != nil {
			return fmt.Errorf("ledger: %s result: %w", method, err)
		}
	}
	return nil
}

// Enumerate lists the ids of all position accounts owned by the market
// program that match the filter, fetching keys only.
func (c *Client) Enumerate(ctx context.Context, f domain.Filter) ([]string, error) {
	params := []any{
		f.Market,
		map[string]any{
			"encoding":  "base64",
			"dataSlice": map[string]int{"offset": 0, "length": 0},
			"filters":   []any{map[string]int64{"dataSize": f.DataSize}},
		},
	}
	var result []struct {
		Pubkey string `json:"pubkey"`
	}
	if err := c.call(ctx, "getProgramAccounts", params, &result); err != nil {
		return nil, err
	}
	ids := make([]string, len(result))
	for i, r := range result {
		ids[i] = r.Pubkey
	}
	return ids, nil
}

// FetchMany returns the raw payload for each id, position-aligned with the
// input. Ids beyond the per-call limit are fetched in chunks within the same
// call; a missing account yields a nil payload.
func (c *Client) FetchMany(ctx context.Context, ids []string) ([][]byte, error) {
	out := make([][]byte, len(ids))
	for start := 0; start < len(ids); start += maxFetchBatch {
		end := start + maxFetchBatch
		if end > len(ids) {
			end = len(ids)
		}
		if err := c.fetchChunk(ctx, ids[start:end], out[start:end]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Client) fetchChunk(ctx context.Context, ids []string, out [][]byte) error {
	params := []any{ids, map[string]string{"encoding": "base64"}}
	var result struct {
		Value []*struct {
			Data []string `json:"data"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getMultipleAccounts", params, &result); err != nil {
		return err
	}
	if len(result.Value) != len(ids) {
		return fmt.Errorf("ledger: fetch returned %d accounts for %d ids", len(result.Value), len(ids))
	}
	for i, acc := range result.Value {
		if acc == nil || len(acc.Data) == 0 {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(acc.Data[0])
		if err != nil {
			return fmt.Errorf("ledger: account %s payload: %w", ids[i], err)
		}
		out[i] = raw
	}
	return nil
}

// Balance returns the balance of one account in ticks.
func (c *Client) Balance(ctx context.Context, account string) (int64, error) {
	var result struct {
		Value int64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []any{account}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// Simulate dry-runs the transaction against current ledger state.
func (c *Client) Simulate(ctx context.Context, tx *domain.Transaction) (domain.SimResult, error) {
	params := []any{encodeTx(tx), map[string]any{"encoding": "base64", "sigVerify": false}}
	var result struct {
		Value struct {
			Err  json.RawMessage `json:"err"`
			Logs []string        `json:"logs"`
		} `json:"value"`
	}
	if err := c.call(ctx, "simulateTransaction", params, &result); err != nil {
		return domain.SimResult{}, err
	}
	sim := domain.SimResult{Logs: result.Value.Logs}
	if len(result.Value.Err) > 0 && string(result.Value.Err) != "null" {
		sim.Err = string(result.Value.Err)
	}
	return sim, nil
}

// Submit sends the transaction and returns its signature. Submission is not
// revocable; callers must treat any later failure as ambiguous.
func (c *Client) Submit(ctx context.Context, tx *domain.Transaction) (string, error) {
	var sig string
	params := []any{encodeTx(tx), map[string]any{"encoding": "base64"}}
	if err := c.call(ctx, "sendTransaction", params, &sig); err != nil {
		return "", err
	}
	c.logger.Debug("transaction submitted",
		slog.String("tx", tx.ID),
		slog.String("signature", sig))
	return sig, nil
}

// Confirm polls the signature status until it confirms, errors, or the
// confirmation window elapses. Window expiry returns a wrapped
// domain.ErrConfirmTimeout; an on-chain rejection returns a distinct error.
func (c *Client) Confirm(ctx context.Context, signature string) error {
	ctx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(confirmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				// The window elapsed with the signature never confirming.
				// This is ambiguous, not a rejection; the transaction may
				// still land.
				return fmt.Errorf("ledger: confirm %s: %w", signature, domain.ErrConfirmTimeout)
			}
			return fmt.Errorf("ledger: confirm %s: %w", signature, ctx.Err())
		case <-ticker.C:
		}

		var result struct {
			Value []*struct {
				ConfirmationStatus string          `json:"confirmationStatus"`
				Err                json.RawMessage `json:"err"`
			} `json:"value"`
		}
		err := c.call(ctx, "getSignatureStatuses", []any{[]string{signature}}, &result)
		if err != nil {
			// Transient poll failures are retried within the window.
			c.logger.Debug("confirm poll failed", slog.String("error", err.Error()))
			continue
		}
		if len(result.Value) == 0 || result.Value[0] == nil {
			continue
		}
		st := result.Value[0]
		if len(st.Err) > 0 && string(st.Err) != "null" {
			return fmt.Errorf("ledger: confirm %s: transaction failed: %s", signature, st.Err)
		}
		switch st.ConfirmationStatus {
		case "confirmed", "finalized":
			return nil
		}
	}
}

// SubscribeLogs streams log events mentioning target until ctx is cancelled.
// Events are decoded best-effort; lines the venue format does not match
// produce events with zero notional that downstream thresholds discard.
func (c *Client) SubscribeLogs(ctx context.Context, target string, fn func(domain.LogEvent)) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.wsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("ledger: logs dial: %w", err)
	}
	defer conn.Close()

	sub := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  "logsSubscribe",
		Params: []any{
			map[string][]string{"mentions": {target}},
			map[string]string{"commitment": "confirmed"},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("ledger: logs subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ledger: logs read: %w", err)
		}
		if ev, ok := decodeLogNotification(target, raw); ok {
			fn(ev)
		}
	}
}

type logNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Signature string   `json:"signature"`
				Logs      []string `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// decodeLogNotification turns one subscription frame into a LogEvent. Venue
// programs emit a structured trade line; its absence leaves venue, asset and
// notional zero.
func decodeLogNotification(target string, raw []byte) (domain.LogEvent, bool) {
	var n logNotification
	if err := json.Unmarshal(raw, &n); err != nil || n.Method != "logsNotification" {
		return domain.LogEvent{}, false
	}
	ev := domain.LogEvent{
		Target:    target,
		Signature: n.Params.Result.Value.Signature,
		Raw:       raw,
		At:        time.Now(),
	}
	for _, line := range n.Params.Result.Value.Logs {
		if venue, asset, notional, ok := parseTradeLine(line); ok {
			ev.Venue = venue
			ev.Asset = asset
			ev.Notional = notional
			break
		}
	}
	return ev, true
}

// parseTradeLine matches the venue trade log format:
//
//	Program log: trade venue=<name> asset=<symbol> notional=<ticks>
func parseTradeLine(line string) (venue, asset string, notional int64, ok bool) {
	idx := strings.Index(line, "trade venue=")
	if idx < 0 {
		return "", "", 0, false
	}
	n, err := fmt.Sscanf(line[idx:], "trade venue=%s asset=%s notional=%d", &venue, &asset, &notional)
	if err != nil || n != 3 {
		return "", "", 0, false
	}
	return venue, asset, notional, true
}

// encodeTx serializes the transaction for the wire. Signing is delegated to
// the RPC node's signer sidecar, which accepts this canonical JSON form.
func encodeTx(tx *domain.Transaction) string {
	raw, _ := json.Marshal(tx)
	return base64.StdEncoding.EncodeToString(raw)
}

// Compile-time interface checks.
var (
	_ domain.LedgerReader    = (*Client)(nil)
	_ domain.LedgerSubmitter = (*Client)(nil)
)
