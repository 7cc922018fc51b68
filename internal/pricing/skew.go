package pricing

import (
	"fmt"

	"PerpMark/internal/fixedpoint"
)

// AdaptivePrice computes the impact-adjusted price for a market given its
// current skew, a proposed size delta, and a raw reference price. All inputs
// are USD scale.
//
// The premium is averaged over the trade: (premiumBefore + premiumAfter)/2,
// the mid-impact approximation of integrating a linear impact curve across
// the trade size. A sizeDelta of zero yields the pure before-trade adaptive
// price, which is the mark-price use case.
//
// A zero reference price propagates zero: it means "no quote", not a
// malformed input.
func AdaptivePrice(skew, maxSkewScale, sizeDelta, referencePrice fixedpoint.Dec) (fixedpoint.Dec, error) {
	if maxSkewScale.IsZero() {
		return fixedpoint.Dec{}, fmt.Errorf("max skew scale: %w", fixedpoint.ErrDivisionByZero)
	}

	premiumBefore, err := skew.Quo(maxSkewScale)
	if err != nil {
		return fixedpoint.Dec{}, err
	}
	premiumAfter, err := skew.Add(sizeDelta).Quo(maxSkewScale)
	if err != nil {
		return fixedpoint.Dec{}, err
	}

	premiumMedian, err := premiumBefore.Add(premiumAfter).Quo(two)
	if err != nil {
		return fixedpoint.Dec{}, err
	}

	factor := fixedpoint.One(fixedpoint.USDDecimals).Add(premiumMedian)
	return referencePrice.Mul(factor), nil
}

var two = fixedpoint.New(2, 0)
