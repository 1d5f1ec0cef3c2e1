package model

// SeasonSettings carries the per-season values the reservation and
// payment flows need.  It is loaded by the caller and passed in, never
// cached process-wide.
//
// Fields:
//
//	Season             – season year.
//	MembershipEventID  – the season registration event.
//	FixedCostCents     – fixed part of the gateway transaction cost.
//	PercentageRate     – proportional part of the transaction cost, e.g. 0.029.
//	Currency           – ISO currency code sent to the gateway.
type SeasonSettings struct {
	Season            int
	MembershipEventID uint64
	FixedCostCents    int64
	PercentageRate    float64
	Currency          string
}
