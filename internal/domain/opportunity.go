package domain

import "time"

// OpportunityKind identifies which detection strategy produced an opportunity.
type OpportunityKind string

const (
	OpportunityLiquidation OpportunityKind = "liquidation"
	OpportunityCrossVenue  OpportunityKind = "cross_venue"
)

// Opportunity is the shared output type of both detection strategies. It
// names the financed asset and size chosen by the sizer, the expected net
// profit after all modeled costs, and either the target obligation
// (liquidation) or the venue pair (cross-venue).
type Opportunity struct {
	ID        string
	Kind      OpportunityKind
	Asset     string
	Amount    int64 // financed notional, ticks
	NetProfit int64 // expected, ticks

	// Liquidation fields.
	ObligationID    string
	CollateralAsset string
	RepayAmount     int64

	// Cross-venue fields.
	BuyVenue  string
	SellVenue string
	SpreadBps float64

	Reason     string
	DetectedAt time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the opportunity is past its expiry at the given
// instant. Zero ExpiresAt never expires.
func (o Opportunity) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}
