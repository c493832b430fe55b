package index

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/voznyak/flarex/internal/domain"
)

// Obligation payload layout (little-endian):
//
//	[32]byte  owner
//	uint32    collateral count
//	uint32    debt count
//	per collateral: [8]byte symbol, uint64 amount, uint64 usd value
//	per debt:       [8]byte symbol, uint64 amount, uint64 usd value
//
// Amounts and USD values are fixed-point at domain.PriceScale. Sub-positions
// with a zero USD value are placeholders left by the protocol and are
// skipped.
const (
	ownerLen  = 32
	symbolLen = 8
	headerLen = ownerLen + 8
	posLen    = symbolLen + 16
)

// decodeObligation parses one raw account payload. It returns nil (no error)
// for obligations with zero aggregate debt: those are not indexable by
// invariant. liqThreshold is the protocol's liquidation threshold ratio.
func decodeObligation(id string, raw []byte, liqThreshold float64) (*domain.Obligation, error) {
	if len(raw) < headerLen {
		return nil, fmt.Errorf("payload too short: %d bytes", len(raw))
	}
	owner := hex.EncodeToString(raw[:ownerLen])
	nColl := binary.LittleEndian.Uint32(raw[ownerLen:])
	nDebt := binary.LittleEndian.Uint32(raw[ownerLen+4:])

	need := headerLen + (int(nColl)+int(nDebt))*posLen
	if len(raw) < need {
		return nil, fmt.Errorf("payload truncated: have %d bytes, need %d", len(raw), need)
	}

	ob := &domain.Obligation{
		ID:    id,
		Owner: owner,
	}

	off := headerLen
	for i := 0; i < int(nColl); i++ {
		sym, amount, usd := decodePosition(raw[off:])
		off += posLen
		if usd == 0 || amount == 0 {
			continue
		}
		ob.Collateral = append(ob.Collateral, domain.CollateralPosition{
			Symbol:   sym,
			Amount:   amount,
			USDValue: usd,
		})
		ob.CollateralUSD += usd
	}
	for i := 0; i < int(nDebt); i++ {
		sym, amount, usd := decodePosition(raw[off:])
		off += posLen
		if usd == 0 {
			continue
		}
		ob.Debt = append(ob.Debt, domain.DebtPosition{
			Symbol:   sym,
			Amount:   amount,
			USDValue: usd,
		})
		ob.DebtUSD += usd
	}

	if ob.DebtUSD == 0 {
		return nil, nil
	}
	if ob.CollateralUSD > 0 {
		ob.LTV = float64(ob.DebtUSD) / float64(ob.CollateralUSD)
	}

	// Approximate, per collateral position, the oracle price at which the
	// obligation becomes liquidatable, holding every other position and
	// price fixed. Known approximation for multi-collateral obligations;
	// the periodic rebuild and the simulation gate bound its error.
	for i := range ob.Collateral {
		c := &ob.Collateral[i]
		c.LiquidationPrice = liquidationPrice(ob.DebtUSD, c.Amount, liqThreshold)
	}

	return ob, nil
}

// liquidationPrice returns the price ticks at which collateral of the given
// amount stops covering debtUSD at the liquidation threshold.
func liquidationPrice(debtUSD, collateralAmount int64, liqThreshold float64) int64 {
	if collateralAmount <= 0 {
		return 0
	}
	// price = debtUSD / (amount in whole units) * threshold
	return int64(float64(debtUSD) * liqThreshold / float64(collateralAmount) * domain.PriceScale)
}

func decodePosition(raw []byte) (symbol string, amount, usd int64) {
	symbol = strings.TrimRight(string(raw[:symbolLen]), "\x00")
	amount = int64(binary.LittleEndian.Uint64(raw[symbolLen:]))
	usd = int64(binary.LittleEndian.Uint64(raw[symbolLen+8:]))
	return symbol, amount, usd
}
