package state

import (
	"PerpMark/internal/fixedpoint"
)

// MarketSkewState is the per-market aggregate open interest, USD scale.
type MarketSkewState struct {
	MarketID          string
	LongOpenInterest  fixedpoint.Dec // USD scale, non-negative
	ShortOpenInterest fixedpoint.Dec // USD scale, non-negative
}

// Skew is long minus short open interest: the market's directional imbalance.
func (m MarketSkewState) Skew() fixedpoint.Dec {
	return m.LongOpenInterest.Sub(m.ShortOpenInterest)
}

// MarketPricingConfig holds the pricing constants for one market. Treated as
// immutable for the duration of a valuation call.
type MarketPricingConfig struct {
	MarketID   string
	AssetClass string

	// MaxSkewScale is the USD notional at which skew premium saturates.
	// Configuration invariant: strictly positive.
	MaxSkewScale fixedpoint.Dec // USD scale

	// MaxFundingRate is the funding rate accrued per full funding interval
	// at 100% skew utilization.
	MaxFundingRate  fixedpoint.Dec // rate scale
	FundingInterval int64          // seconds

	// BaseBorrowingRate is the borrowing rate accrued per borrowing interval
	// against reserved value.
	BaseBorrowingRate fixedpoint.Dec // rate scale
	BorrowingInterval int64          // seconds

	DecreasePositionFeeRateBPS int64
}

// AssetClassAccrualState is the ledger's cumulative borrowing-rate checkpoint
// for one asset class. The engine only ever reads a per-call snapshot; the
// ledger mutates it between calls.
type AssetClassAccrualState struct {
	AssetClass        string
	SumBorrowingRate  fixedpoint.Dec // rate scale, cumulative since genesis
	LastBorrowingTime int64          // unix seconds of last accrual checkpoint
}

// MarketFundingState is the per-market cumulative funding-rate checkpoint.
type MarketFundingState struct {
	MarketID           string
	CurrentFundingRate fixedpoint.Dec // rate scale, signed cumulative
	LastFundingTime    int64          // unix seconds
}

// ReferencePriceState tracks the latest raw oracle quote per market.
type ReferencePriceState struct {
	Price         fixedpoint.Dec // oracle scale
	PriceSequence int64          // monotonic per market
	Timestamp     int64          // unix seconds
}
