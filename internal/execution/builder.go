package execution

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/voznyak/flarex/internal/domain"
	"github.com/voznyak/flarex/internal/venue"
)

// BuilderConfig carries the static inputs of transaction assembly.
type BuilderConfig struct {
	Payer        string
	Market       string
	ReserveAsset string

	MinProfit           int64
	LiquidationBonusBps int

	TipShare    float64
	TipFloor    int64
	TipMaxShare float64
	TipAccount  string
}

// TxBuilder assembles flash-financed transactions in two passes: first the
// action instructions with fresh quotes, then the financing wrapper around
// them. The wrapper goes on last because the repay instruction must reference
// the borrow's final position in the assembled transaction.
type TxBuilder struct {
	cfg     BuilderConfig
	reserve domain.FinancingReserve
	venues  map[string]venue.Adapter
}

// NewTxBuilder creates a TxBuilder over the configured venues.
func NewTxBuilder(cfg BuilderConfig, reserve domain.FinancingReserve, venues []venue.Adapter) *TxBuilder {
	byName := make(map[string]venue.Adapter, len(venues))
	for _, v := range venues {
		byName[v.Name()] = v
	}
	return &TxBuilder{cfg: cfg, reserve: reserve, venues: byName}
}

// Build assembles the complete transaction for an opportunity and returns it
// with the expected net profit under fresh quotes. Quote failures wrap
// ErrQuoteUnavailable; a fresh-quote net below the floor wraps
// ErrNotProfitable. Neither means anything went wrong.
func (b *TxBuilder) Build(ctx context.Context, op *domain.Opportunity) (*domain.Transaction, int64, error) {
	var (
		actions []domain.Instruction
		tables  []string
		net     int64
		err     error
	)
	switch op.Kind {
	case domain.OpportunityLiquidation:
		actions, tables, net, err = b.buildLiquidation(ctx, op)
	case domain.OpportunityCrossVenue:
		actions, tables, net, err = b.buildCrossVenue(ctx, op)
	default:
		return nil, 0, fmt.Errorf("execution: unknown opportunity kind %q", op.Kind)
	}
	if err != nil {
		return nil, 0, err
	}
	if net < b.cfg.MinProfit {
		return nil, net, fmt.Errorf("execution: fresh net %d below floor: %w", net, domain.ErrNotProfitable)
	}

	flashFee := int64(float64(op.Amount) * b.reserve.FeeBps() / 10_000)

	instrs := make([]domain.Instruction, 0, len(actions)+3)
	instrs = append(instrs, b.reserve.BuildBorrow(op.Asset, op.Amount))
	borrowIndex := len(instrs) - 1
	instrs = append(instrs, actions...)
	instrs = append(instrs, b.tipInstruction(net))
	instrs = append(instrs, b.reserve.BuildRepay(op.Asset, op.Amount+flashFee, borrowIndex))

	return &domain.Transaction{
		ID:           uuid.NewString(),
		Payer:        b.cfg.Payer,
		Instructions: instrs,
		LookupTables: tables,
	}, net, nil
}

// buildLiquidation produces the repay-and-seize call on the lending market
// followed by the sale of the seized collateral on the chosen venue.
func (b *TxBuilder) buildLiquidation(ctx context.Context, op *domain.Opportunity) ([]domain.Instruction, []string, int64, error) {
	v, ok := b.venues[op.SellVenue]
	if !ok {
		return nil, nil, 0, fmt.Errorf("execution: venue %q not configured", op.SellVenue)
	}

	bonus := 1 + float64(b.cfg.LiquidationBonusBps)/10_000
	saleIn := int64(float64(op.RepayAmount) * bonus)
	quote, err := v.Quote(ctx, op.CollateralAsset, op.Asset, saleIn)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("execution: sale quote on %s: %w: %v", v.Name(), domain.ErrQuoteUnavailable, err)
	}
	sale, tables, err := v.BuildActionInstructions(ctx, quote)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("execution: sale instructions on %s: %w", v.Name(), err)
	}

	flashFee := int64(float64(op.RepayAmount) * b.reserve.FeeBps() / 10_000)
	net := quote.OutAmount - op.RepayAmount - flashFee

	instrs := make([]domain.Instruction, 0, len(sale)+1)
	instrs = append(instrs, b.liquidateInstruction(op))
	instrs = append(instrs, sale...)
	return instrs, tables, net, nil
}

// buildCrossVenue produces the buy leg on the cheap venue and the sell leg on
// the rich venue, the sell sized by the buy's fresh output.
func (b *TxBuilder) buildCrossVenue(ctx context.Context, op *domain.Opportunity) ([]domain.Instruction, []string, int64, error) {
	buy, ok := b.venues[op.BuyVenue]
	if !ok {
		return nil, nil, 0, fmt.Errorf("execution: venue %q not configured", op.BuyVenue)
	}
	sell, ok := b.venues[op.SellVenue]
	if !ok {
		return nil, nil, 0, fmt.Errorf("execution: venue %q not configured", op.SellVenue)
	}

	buyQuote, err := buy.Quote(ctx, b.cfg.ReserveAsset, op.Asset, op.Amount)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("execution: buy quote on %s: %w: %v", buy.Name(), domain.ErrQuoteUnavailable, err)
	}
	sellQuote, err := sell.Quote(ctx, op.Asset, b.cfg.ReserveAsset, buyQuote.OutAmount)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("execution: sell quote on %s: %w: %v", sell.Name(), domain.ErrQuoteUnavailable, err)
	}

	buyInstrs, buyTables, err := buy.BuildActionInstructions(ctx, buyQuote)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("execution: buy instructions on %s: %w", buy.Name(), err)
	}
	sellInstrs, sellTables, err := sell.BuildActionInstructions(ctx, sellQuote)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("execution: sell instructions on %s: %w", sell.Name(), err)
	}

	flashFee := int64(float64(op.Amount) * b.reserve.FeeBps() / 10_000)
	net := sellQuote.OutAmount - op.Amount - flashFee

	instrs := append(buyInstrs, sellInstrs...)
	tables := append(buyTables, sellTables...)
	return instrs, tables, net, nil
}

// liquidateInstruction encodes the lending market's repay-and-seize call.
func (b *TxBuilder) liquidateInstruction(op *domain.Opportunity) domain.Instruction {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(op.RepayAmount))
	return domain.Instruction{
		ProgramID: b.cfg.Market,
		Accounts:  []string{b.cfg.Market, op.ObligationID, b.cfg.Payer},
		Data:      data,
		Label:     "liquidate",
	}
}

// tipInstruction builds the validator tip transfer. The tip is a share of the
// expected net, clamped between an absolute floor and a maximum share so a
// huge win never tips away most of the profit and a tiny win still tips
// enough to land.
func (b *TxBuilder) tipInstruction(net int64) domain.Instruction {
	tip := int64(float64(net) * b.cfg.TipShare)
	if tip < b.cfg.TipFloor {
		tip = b.cfg.TipFloor
	}
	if max := int64(float64(net) * b.cfg.TipMaxShare); tip > max && max >= b.cfg.TipFloor {
		tip = max
	}
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(tip))
	return domain.Instruction{
		ProgramID: "system",
		Accounts:  []string{b.cfg.Payer, b.cfg.TipAccount},
		Data:      data,
		Label:     "tip",
	}
}
