package valuation

import (
	"fmt"

	"PerpMark/internal/fixedpoint"
	"PerpMark/internal/pricing"
	"PerpMark/internal/state"
)

// Valuation is the complete mark of one position. All fields are USD scale.
// The five outputs are produced together or not at all: any internal failure
// aborts the valuation and surfaces one error.
type Valuation struct {
	MarkPrice     fixedpoint.Dec
	UnrealizedPnl fixedpoint.Dec
	BorrowingFee  fixedpoint.Dec
	FundingFee    fixedpoint.Dec
	TradingFee    fixedpoint.Dec
}

// Inputs carries the per-call state snapshots a valuation reads. Nothing in
// here is mutated; callers pass copies of ledger state, never live
// references.
type Inputs struct {
	Market         state.MarketSkewState
	Config         state.MarketPricingConfig
	ReferencePrice fixedpoint.Dec // USD scale
	Accrual        state.AssetClassAccrualState
	Funding        state.MarketFundingState

	// Projected rate deltas between the last checkpoint and valuation time.
	NextBorrowingDelta fixedpoint.Dec
	NextFundingDelta   fixedpoint.Dec

	// StrictAccrual rejects negative borrowing accrual instead of passing
	// the rebate through.
	StrictAccrual bool
}

// Value marks a position to market. The mark price closes the position
// against the book (sizeDelta = -size), which is the convention for valuing
// an existing position's exit.
func Value(pos *state.Position, in Inputs) (*Valuation, error) {
	markPrice, err := pricing.AdaptivePrice(in.Market.Skew(), in.Config.MaxSkewScale, pos.Size.Neg(), in.ReferencePrice)
	if err != nil {
		return nil, fmt.Errorf("mark price: %w", err)
	}

	// A position with a zero entry price cannot exist; this is an invariant
	// violation, not a recoverable condition.
	if pos.AvgEntryPrice.IsZero() {
		return nil, fmt.Errorf("avg entry price: %w", fixedpoint.ErrDivisionByZero)
	}
	unrealizedPnl, err := markPrice.Sub(pos.AvgEntryPrice).Mul(pos.Size).Quo(pos.AvgEntryPrice)
	if err != nil {
		return nil, fmt.Errorf("unrealized pnl: %w", err)
	}

	borrowingFee, err := pricing.BorrowingFeeOwed(
		pos.EntryBorrowingRate,
		in.Accrual.SumBorrowingRate,
		in.NextBorrowingDelta,
		pos.ReserveValue,
		in.StrictAccrual,
	)
	if err != nil {
		return nil, fmt.Errorf("borrowing fee: %w", err)
	}

	fundingFee := pricing.FundingFeeOwed(
		pos.EntryFundingRate,
		in.Funding.CurrentFundingRate,
		in.NextFundingDelta,
		pos.Size,
	)

	tradingFee, err := pos.Size.Abs().MulInt64(in.Config.DecreasePositionFeeRateBPS).Quo(bpsDenominator)
	if err != nil {
		return nil, fmt.Errorf("trading fee: %w", err)
	}

	return &Valuation{
		MarkPrice:     markPrice,
		UnrealizedPnl: unrealizedPnl,
		BorrowingFee:  borrowingFee,
		FundingFee:    fundingFee,
		TradingFee:    tradingFee,
	}, nil
}

var bpsDenominator = fixedpoint.New(10_000, 0)
