package detector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voznyak/flarex/internal/domain"
	"github.com/voznyak/flarex/internal/sizing"
)

// OnLargeTrade is the cross-venue strategy's entry point, called by the
// ledger log subscription when a venue program emits a trade. Large trades
// are the moments venues fall out of line with each other; small ones are
// ignored wholesale.
func (d *Detector) OnLargeTrade(ctx context.Context, ev domain.LogEvent) {
	if ev.Asset == "" || ev.Notional < d.cfg.TradeNotional {
		return
	}
	d.metrics.TradeTriggers.Add(1)

	quotes := d.quoteAllVenues(ctx, ev.Asset)
	// Fewer than two answers means there is no spread to measure. Quiet
	// abort: throttled or failing quote endpoints are routine.
	if len(quotes) < 2 {
		return
	}

	buy, sell := bestPair(quotes)
	spread := (sell.Price() - buy.Price()) / buy.Price()
	if spread < d.cfg.SpreadThreshold {
		return
	}

	liquidity := buy.Liquidity
	if sell.Liquidity < liquidity {
		liquidity = sell.Liquidity
	}
	reserveLiq, err := d.reserve.AvailableLiquidity(ctx, d.cfg.ReserveAsset)
	if err != nil {
		d.logger.Warn("reserve liquidity unavailable", slog.String("error", err.Error()))
		return
	}

	result, ok := d.sizer.Choose(sizing.Inputs{
		SpreadPct:        spread,
		VenueFeesBps:     buy.FeeBps + sell.FeeBps,
		FlashFeeBps:      d.reserve.FeeBps(),
		VenueLiquidity:   liquidity,
		ReserveLiquidity: reserveLiq,
	})
	if !ok {
		return
	}

	d.publish(&domain.Opportunity{
		Kind:      domain.OpportunityCrossVenue,
		Asset:     ev.Asset,
		Amount:    result.Size,
		NetProfit: result.NetProfit,
		BuyVenue:  buy.Venue,
		SellVenue: sell.Venue,
		SpreadBps: spread * 10_000,
		Reason: fmt.Sprintf("trade %.0f on %s moved %s, spread %.2f bps",
			domain.USD(ev.Notional), ev.Venue, ev.Asset, spread*10_000),
	})
}

// quoteAllVenues collects the price of asset in the reserve asset on every
// configured venue. Errors drop the venue from the comparison.
func (d *Detector) quoteAllVenues(ctx context.Context, asset string) []domain.Quote {
	quotes := make([]domain.Quote, 0, len(d.venues))
	for _, v := range d.venues {
		q, err := d.quotes.Get(ctx, v, asset, d.cfg.ReserveAsset, d.cfg.TradeNotional)
		if err != nil {
			continue
		}
		if q.InAmount <= 0 || q.OutAmount <= 0 {
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes
}

// bestPair returns the cheapest venue (buy side) and the richest (sell side).
func bestPair(quotes []domain.Quote) (buy, sell domain.Quote) {
	buy, sell = quotes[0], quotes[0]
	for _, q := range quotes[1:] {
		if q.Price() < buy.Price() {
			buy = q
		}
		if q.Price() > sell.Price() {
			sell = q
		}
	}
	return buy, sell
}
