package state

import (
	"PerpMark/internal/fixedpoint"
)

// MarketManager holds the latest externally published market state: pricing
// configs, open-interest snapshots, accrual checkpoints, and raw reference
// prices. Readers get value copies, never live references, so a valuation
// call always works on an immutable snapshot.
//
// Not thread-safe: accessed only from the single-threaded engine loop.
type MarketManager struct {
	configs       map[string]MarketPricingConfig    // market_id
	skews         map[string]MarketSkewState        // market_id
	funding       map[string]MarketFundingState     // market_id
	accruals      map[string]AssetClassAccrualState // asset_class
	refPrices     map[string]ReferencePriceState    // market_id
	marketsSorted []string
}

func NewMarketManager() *MarketManager {
	return &MarketManager{
		configs:   make(map[string]MarketPricingConfig),
		skews:     make(map[string]MarketSkewState),
		funding:   make(map[string]MarketFundingState),
		accruals:  make(map[string]AssetClassAccrualState),
		refPrices: make(map[string]ReferencePriceState),
	}
}

// SetConfig stores a market's pricing config.
func (mm *MarketManager) SetConfig(cfg MarketPricingConfig) {
	if _, known := mm.configs[cfg.MarketID]; !known {
		mm.marketsSorted = insertSorted(mm.marketsSorted, cfg.MarketID)
	}
	mm.configs[cfg.MarketID] = cfg
}

// Config returns the pricing config for a market.
func (mm *MarketManager) Config(marketID string) (MarketPricingConfig, bool) {
	cfg, ok := mm.configs[marketID]
	return cfg, ok
}

// SetSkew stores a market's open-interest snapshot.
func (mm *MarketManager) SetSkew(skew MarketSkewState) {
	mm.skews[skew.MarketID] = skew
}

// Skew returns the open-interest snapshot for a market. An unseen market is
// reported as flat rather than missing: zero open interest on both sides.
func (mm *MarketManager) Skew(marketID string) MarketSkewState {
	if s, ok := mm.skews[marketID]; ok {
		return s
	}
	return MarketSkewState{
		MarketID:          marketID,
		LongOpenInterest:  fixedpoint.Zero(fixedpoint.USDDecimals),
		ShortOpenInterest: fixedpoint.Zero(fixedpoint.USDDecimals),
	}
}

// SetFunding stores a market's cumulative funding checkpoint.
func (mm *MarketManager) SetFunding(f MarketFundingState) {
	mm.funding[f.MarketID] = f
}

// Funding returns the funding checkpoint for a market.
func (mm *MarketManager) Funding(marketID string) (MarketFundingState, bool) {
	f, ok := mm.funding[marketID]
	return f, ok
}

// SetAccrual stores an asset class's borrowing checkpoint.
func (mm *MarketManager) SetAccrual(a AssetClassAccrualState) {
	mm.accruals[a.AssetClass] = a
}

// Accrual returns the borrowing checkpoint for an asset class.
func (mm *MarketManager) Accrual(assetClass string) (AssetClassAccrualState, bool) {
	a, ok := mm.accruals[assetClass]
	return a, ok
}

// SetReferencePrice stores the latest raw oracle quote for a market.
func (mm *MarketManager) SetReferencePrice(marketID string, rp ReferencePriceState) {
	mm.refPrices[marketID] = rp
}

// ReferencePrice returns the latest raw oracle quote for a market.
func (mm *MarketManager) ReferencePrice(marketID string) (ReferencePriceState, bool) {
	rp, ok := mm.refPrices[marketID]
	return rp, ok
}

// Markets returns all configured market IDs in lexicographic order. The
// stable ordering is what gives oracle payload indices their meaning.
func (mm *MarketManager) Markets() []string {
	out := make([]string, len(mm.marketsSorted))
	copy(out, mm.marketsSorted)
	return out
}

func insertSorted(sorted []string, s string) []string {
	i := 0
	for i < len(sorted) && sorted[i] < s {
		i++
	}
	sorted = append(sorted, "")
	copy(sorted[i+1:], sorted[i:])
	sorted[i] = s
	return sorted
}
