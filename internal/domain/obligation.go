package domain

import "time"

// PriceScale is the fixed-point scale used for all USD values, prices, and
// native token amounts throughout the engine: 1e6 units per whole.
const PriceScale = 1_000_000

// USD converts a fixed-point value to a display float. Display only; all
// arithmetic stays in int64 ticks.
func USD(v int64) float64 {
	return float64(v) / PriceScale
}

// CollateralPosition is one collateral leg of an obligation.
type CollateralPosition struct {
	Symbol   string
	Amount   int64 // native units, fixed-point
	USDValue int64
	// LiquidationPrice is the approximate oracle price (ticks) at which the
	// obligation becomes liquidatable through this position, holding all
	// other positions and prices fixed. Multi-collateral obligations carry
	// one approximation per position; the periodic rebuild and the final
	// simulation gate bound the error of the approximation.
	LiquidationPrice int64
}

// DebtPosition is one borrow leg of an obligation.
type DebtPosition struct {
	Symbol   string
	Amount   int64
	USDValue int64
}

// Obligation is a borrower's position on the lending protocol: collateral
// plus debt. Obligations are produced wholesale by each index rebuild and
// never mutated in place.
type Obligation struct {
	ID            string
	Owner         string
	Collateral    []CollateralPosition
	Debt          []DebtPosition
	CollateralUSD int64
	DebtUSD       int64
	LTV           float64
}

// BuildStats summarizes a single index rebuild.
type BuildStats struct {
	Enumerated      int
	Fetched         int
	Decoded         int
	Indexed         int
	SkippedZeroDebt int
	ParseErrors     int
	DroppedBatches  int
	Elapsed         time.Duration
}

// Snapshot is one complete, immutable build of the obligation index. Readers
// always observe either the previous complete snapshot or this one; the
// builder swaps snapshots atomically.
type Snapshot struct {
	BuiltAt     time.Time
	Obligations []*Obligation
	// Buckets maps symbol -> discretized price bucket -> obligations whose
	// liquidation price for that symbol falls in the bucket.
	Buckets map[string]map[int64][]*Obligation
	// BucketSizes maps symbol -> bucket width in price ticks.
	BucketSizes map[string]int64
	Stats       BuildStats
}

// BucketFor returns the index bucket for a price given a bucket width.
func BucketFor(price, bucketSize int64) int64 {
	if bucketSize <= 0 {
		return 0
	}
	return price / bucketSize
}

// Scan returns the obligations in Buckets[symbol] whose bucket lies in
// [fromBucket, toBucket] inclusive. Cost is proportional to the matched
// buckets, not to the total obligation count.
func (s *Snapshot) Scan(symbol string, fromBucket, toBucket int64) []*Obligation {
	if s == nil {
		return nil
	}
	buckets, ok := s.Buckets[symbol]
	if !ok {
		return nil
	}
	var out []*Obligation
	for b := fromBucket; b <= toBucket; b++ {
		out = append(out, buckets[b]...)
	}
	return out
}

// BucketSize returns the bucket width for symbol, or 0 when the symbol is not
// indexed.
func (s *Snapshot) BucketSize(symbol string) int64 {
	if s == nil {
		return 0
	}
	return s.BucketSizes[symbol]
}
