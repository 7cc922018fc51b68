package pricing

import (
	"errors"

	"PerpMark/internal/fixedpoint"
)

// ErrNegativeAccrual is returned by BorrowingFeeOwed under the strict policy
// when the effective rate delta since entry is negative.
var ErrNegativeAccrual = errors.New("pricing: negative borrowing accrual")

// BorrowingFeeOwed computes the borrowing fee accrued against a position's
// reserved value since entry:
//
//	effectiveRate = currentSumRate + nextRateDelta - entryRate
//	fee           = reserveValue * effectiveRate
//
// Rates are rate scale, reserveValue and the fee USD scale. By default a
// negative effective rate passes through unmodified (the rate decreased
// since entry, a rebate); strict forbids rebates and errors instead.
func BorrowingFeeOwed(entryRate, currentSumRate, nextRateDelta, reserveValue fixedpoint.Dec, strict bool) (fixedpoint.Dec, error) {
	effectiveRate := currentSumRate.Add(nextRateDelta).Sub(entryRate)
	if strict && effectiveRate.Sign() < 0 {
		return fixedpoint.Dec{}, ErrNegativeAccrual
	}
	return reserveValue.Mul(effectiveRate), nil
}

// FundingFeeOwed computes the funding fee owed by a position:
//
//	effectiveRate = currentFundingRate + nextFundingDelta - entryFundingRate
//	rawFee        = |positionSize| * effectiveRate
//
// Sign follows the standard perpetual convention: a positive effective rate
// charges longs (negative fee) and pays shorts (positive fee).
func FundingFeeOwed(entryFundingRate, currentFundingRate, nextFundingDelta, positionSize fixedpoint.Dec) fixedpoint.Dec {
	effectiveRate := currentFundingRate.Add(nextFundingDelta).Sub(entryFundingRate)
	rawFee := positionSize.Abs().Mul(effectiveRate)

	switch positionSize.Sign() {
	case 1:
		return rawFee.Neg()
	case -1:
		return rawFee
	default:
		return fixedpoint.Zero(positionSize.Decimals())
	}
}
