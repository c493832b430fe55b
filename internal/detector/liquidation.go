package detector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voznyak/flarex/internal/domain"
)

// OnPriceDrop is the liquidation strategy's entry point, called by the price
// feed when an oracle price moves down past the gating threshold. It scans
// only the index buckets the move crossed, so cost tracks the move size, not
// the book size.
func (d *Detector) OnPriceDrop(ctx context.Context, symbol string, oldPrice, newPrice int64) {
	if newPrice >= oldPrice {
		return
	}
	snap := d.snapshots.Current()
	if snap == nil {
		d.logger.Warn("price drop before first index build", slog.String("symbol", symbol))
		return
	}
	size := snap.BucketSize(symbol)
	if size <= 0 {
		return
	}

	from := domain.BucketFor(newPrice, size)
	to := domain.BucketFor(oldPrice, size)
	candidates := snap.Scan(symbol, from, to)
	if len(candidates) == 0 {
		return
	}
	d.logger.Debug("scanning liquidation candidates",
		slog.String("symbol", symbol),
		slog.Int64("old_price", oldPrice),
		slog.Int64("new_price", newPrice),
		slog.Int("candidates", len(candidates)))

	for _, ob := range candidates {
		for i := range ob.Collateral {
			pos := &ob.Collateral[i]
			if pos.Symbol != symbol || pos.LiquidationPrice < newPrice {
				continue
			}
			// One bad candidate must never abort the scan; the rest of the
			// bucket range may still hold profitable liquidations.
			if err := d.evaluateLiquidation(ctx, ob, pos, newPrice); err != nil {
				d.logger.Debug("liquidation candidate skipped",
					slog.String("obligation", ob.ID),
					slog.String("error", err.Error()))
			}
		}
	}
}

// evaluateLiquidation prices one liquidatable obligation: how much debt the
// close factor lets us repay, what the seized collateral fetches on the best
// venue, and what the financing costs. Publishes when the net clears the
// profit floor.
func (d *Detector) evaluateLiquidation(ctx context.Context, ob *domain.Obligation, pos *domain.CollateralPosition, price int64) error {
	debt := largestDebt(ob)
	if debt == nil {
		return fmt.Errorf("detector: obligation %s has no debt", ob.ID)
	}

	repay := int64(d.cfg.CloseFactor * float64(debt.USDValue))
	if repay <= 0 {
		return fmt.Errorf("detector: obligation %s repay rounds to zero", ob.ID)
	}
	bonus := 1 + float64(d.cfg.LiquidationBonusBps)/10_000
	seizeUSD := int64(float64(repay) * bonus)
	seizeUnits := int64(float64(seizeUSD) / float64(price) * domain.PriceScale)

	// The position may hold less than the close factor allows to seize; scale
	// the whole trade down to what is actually there.
	if seizeUnits > pos.Amount {
		scale := float64(pos.Amount) / float64(seizeUnits)
		seizeUnits = pos.Amount
		repay = int64(float64(repay) * scale)
		if repay <= 0 {
			return fmt.Errorf("detector: obligation %s collateral too small", ob.ID)
		}
	}

	quote, err := d.bestSale(ctx, pos.Symbol, debt.Symbol, seizeUnits)
	if err != nil {
		return err
	}

	flashFee := int64(float64(repay) * d.reserve.FeeBps() / 10_000)
	net := quote.OutAmount - repay - flashFee
	if net < d.cfg.MinProfit {
		return nil
	}

	d.publish(&domain.Opportunity{
		Kind:            domain.OpportunityLiquidation,
		Asset:           debt.Symbol,
		Amount:          repay,
		NetProfit:       net,
		ObligationID:    ob.ID,
		CollateralAsset: pos.Symbol,
		RepayAmount:     repay,
		SellVenue:       quote.Venue,
		Reason: fmt.Sprintf("liq price %.4f >= oracle %.4f, ltv %.3f",
			domain.USD(pos.LiquidationPrice), domain.USD(price), ob.LTV),
	})
	return nil
}

// bestSale quotes the collateral sale on every venue and keeps the best
// answer. Venues that cannot quote are skipped; at least one must answer.
func (d *Detector) bestSale(ctx context.Context, in, out string, amount int64) (domain.Quote, error) {
	var best domain.Quote
	ok := false
	for _, v := range d.venues {
		q, err := d.quotes.Get(ctx, v, in, out, amount)
		if err != nil {
			continue
		}
		if !ok || q.OutAmount > best.OutAmount {
			best = q
			ok = true
		}
	}
	if !ok {
		return domain.Quote{}, fmt.Errorf("detector: sell %s/%s: %w", in, out, domain.ErrQuoteUnavailable)
	}
	return best, nil
}

func largestDebt(ob *domain.Obligation) *domain.DebtPosition {
	var best *domain.DebtPosition
	for i := range ob.Debt {
		if best == nil || ob.Debt[i].USDValue > best.USDValue {
			best = &ob.Debt[i]
		}
	}
	return best
}
