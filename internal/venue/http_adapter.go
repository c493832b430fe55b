package venue

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/voznyak/flarex/internal/domain"
)

// HTTPAdapter implements Adapter against a venue's quote API. One instance
// per tracked venue; the action kind is fixed per venue and determines the
// instruction shape emitted for its swaps.
type HTTPAdapter struct {
	name       string
	kind       ActionKind
	baseURL    string
	program    string
	feeBps     float64
	httpClient *http.Client
}

// NewHTTPAdapter creates an adapter for one venue.
//
// baseURL is the quote API root; program is the venue's on-ledger program id
// used in emitted instructions.
func NewHTTPAdapter(name string, kind ActionKind, baseURL, program string, feeBps float64) *HTTPAdapter {
	return &HTTPAdapter{
		name:    name,
		kind:    kind,
		baseURL: baseURL,
		program: program,
		feeBps:  feeBps,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the venue identifier.
func (a *HTTPAdapter) Name() string { return a.name }

// FeeBps returns the venue's taker fee in basis points.
func (a *HTTPAdapter) FeeBps() float64 { return a.feeBps }

// quoteResponse is the venue quote API wire shape.
type quoteResponse struct {
	OutAmount string   `json:"out_amount"`
	Route     []string `json:"route"`
	Liquidity string   `json:"liquidity"`
}

// Quote fetches a quote for swapping amount of inAsset into outAsset.
func (a *HTTPAdapter) Quote(ctx context.Context, inAsset, outAsset string, amount int64) (domain.Quote, error) {
	params := url.Values{}
	params.Set("input", inAsset)
	params.Set("output", outAsset)
	params.Set("amount", strconv.FormatInt(amount, 10))

	body, err := a.get(ctx, "/quote?"+params.Encode())
	if err != nil {
		return domain.Quote{}, fmt.Errorf("venue %s: quote %s/%s: %w", a.name, inAsset, outAsset, err)
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("venue %s: decode quote: %w", a.name, err)
	}
	outAmount, err := strconv.ParseInt(resp.OutAmount, 10, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("venue %s: parse out_amount %q: %w", a.name, resp.OutAmount, err)
	}
	liquidity, _ := strconv.ParseInt(resp.Liquidity, 10, 64)

	return domain.Quote{
		Venue:     a.name,
		InAsset:   inAsset,
		OutAsset:  outAsset,
		InAmount:  amount,
		OutAmount: outAmount,
		Route:     resp.Route,
		FeeBps:    a.feeBps,
		Liquidity: liquidity,
		At:        time.Now().UTC(),
	}, nil
}

// instructionsResponse is the venue instruction-build API wire shape.
type instructionsResponse struct {
	Instructions []struct {
		ProgramID string   `json:"program_id"`
		Accounts  []string `json:"accounts"`
		Data      string   `json:"data"` // base64
	} `json:"instructions"`
	LookupTables []string `json:"lookup_tables"`
}

// BuildActionInstructions resolves a quote into swap instructions and lookup
// table references.
func (a *HTTPAdapter) BuildActionInstructions(ctx context.Context, q domain.Quote) ([]domain.Instruction, []string, error) {
	req := map[string]any{
		"input":   q.InAsset,
		"output":  q.OutAsset,
		"amount":  strconv.FormatInt(q.InAmount, 10),
		"min_out": strconv.FormatInt(q.OutAmount, 10),
		"route":   q.Route,
		"action":  string(a.kind),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("venue %s: marshal swap request: %w", a.name, err)
	}

	body, err := a.post(ctx, "/swap-instructions", payload)
	if err != nil {
		return nil, nil, fmt.Errorf("venue %s: build instructions: %w", a.name, err)
	}

	var resp instructionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, fmt.Errorf("venue %s: decode instructions: %w", a.name, err)
	}

	instrs := make([]domain.Instruction, 0, len(resp.Instructions))
	for i, in := range resp.Instructions {
		data, err := base64.StdEncoding.DecodeString(in.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("venue %s: decode instruction %d data: %w", a.name, i, err)
		}
		program := in.ProgramID
		if program == "" {
			program = a.program
		}
		instrs = append(instrs, domain.Instruction{
			ProgramID: program,
			Accounts:  in.Accounts,
			Data:      data,
			Label:     fmt.Sprintf("%s:%s", a.name, a.kind),
		})
	}
	return instrs, resp.LookupTables, nil
}

// Liquidity reports the venue's depth for the pair by quoting a minimal size.
func (a *HTTPAdapter) Liquidity(ctx context.Context, inAsset, outAsset string) (int64, error) {
	q, err := a.Quote(ctx, inAsset, outAsset, domain.PriceScale) // 1 unit probe
	if err != nil {
		return 0, err
	}
	return q.Liquidity, nil
}

func (a *HTTPAdapter) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return a.do(req)
}

func (a *HTTPAdapter) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req)
}

func (a *HTTPAdapter) do(req *http.Request) ([]byte, error) {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Compile-time interface check.
var _ Adapter = (*HTTPAdapter)(nil)
