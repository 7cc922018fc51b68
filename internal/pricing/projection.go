package pricing

import (
	"fmt"

	"PerpMark/internal/fixedpoint"
	"PerpMark/internal/state"
)

// NextBorrowingRateDelta projects the borrowing rate that will have accrued
// between the asset class's last checkpoint and now: the per-interval base
// rate times the number of whole intervals elapsed. Partial intervals accrue
// nothing, matching the ledger's discrete checkpointing.
func NextBorrowingRateDelta(cfg state.MarketPricingConfig, accrual state.AssetClassAccrualState, now int64) fixedpoint.Dec {
	if cfg.BorrowingInterval <= 0 || now <= accrual.LastBorrowingTime {
		return fixedpoint.Zero(fixedpoint.RateDecimals)
	}
	intervals := (now - accrual.LastBorrowingTime) / cfg.BorrowingInterval
	return cfg.BaseBorrowingRate.MulInt64(intervals)
}

// NextFundingRateDelta projects the funding rate accrued since the market's
// last checkpoint: the max funding rate scaled by skew utilization
// (skew / maxSkewScale, clamped to ±1) and by the elapsed fraction of the
// funding interval.
func NextFundingRateDelta(cfg state.MarketPricingConfig, market state.MarketSkewState, funding state.MarketFundingState, now int64) (fixedpoint.Dec, error) {
	if cfg.FundingInterval <= 0 || now <= funding.LastFundingTime {
		return fixedpoint.Zero(fixedpoint.RateDecimals), nil
	}
	if cfg.MaxSkewScale.IsZero() {
		return fixedpoint.Dec{}, fmt.Errorf("max skew scale: %w", fixedpoint.ErrDivisionByZero)
	}

	utilization, err := market.Skew().Quo(cfg.MaxSkewScale)
	if err != nil {
		return fixedpoint.Dec{}, err
	}
	utilization = clampUnit(utilization)

	elapsed := now - funding.LastFundingTime
	delta := cfg.MaxFundingRate.Mul(utilization.Rescale(fixedpoint.RateDecimals))
	delta = delta.MulInt64(elapsed)
	return delta.Quo(fixedpoint.New(cfg.FundingInterval, 0))
}

func clampUnit(d fixedpoint.Dec) fixedpoint.Dec {
	one := fixedpoint.One(d.Decimals())
	if d.Cmp(one) > 0 {
		return one
	}
	if d.Cmp(one.Neg()) < 0 {
		return one.Neg()
	}
	return d
}
