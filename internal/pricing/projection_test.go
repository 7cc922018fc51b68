package pricing

import (
	"testing"

	"PerpMark/internal/fixedpoint"
	"PerpMark/internal/state"
)

func testConfig() state.MarketPricingConfig {
	return state.MarketPricingConfig{
		MarketID:          "ETH-USD",
		AssetClass:        "crypto",
		MaxSkewScale:      usd("1000000"),
		MaxFundingRate:    rate("0.0008"),
		FundingInterval:   3600,
		BaseBorrowingRate: rate("0.0001"),
		BorrowingInterval: 3600,
	}
}

func TestNextBorrowingRateDelta(t *testing.T) {
	cfg := testConfig()
	accrual := state.AssetClassAccrualState{
		AssetClass:        "crypto",
		SumBorrowingRate:  rate("0.05"),
		LastBorrowingTime: 1_700_000_000,
	}

	tests := []struct {
		name string
		now  int64
		want string
	}{
		{"no time elapsed", 1_700_000_000, "0"},
		{"partial interval accrues nothing", 1_700_000_000 + 3599, "0"},
		{"one interval", 1_700_000_000 + 3600, "0.0001"},
		{"two and a half intervals", 1_700_000_000 + 9000, "0.0002"},
		{"clock behind checkpoint", 1_700_000_000 - 100, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextBorrowingRateDelta(cfg, accrual, tt.now)
			if !got.Equal(rate(tt.want)) {
				t.Errorf("delta = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNextBorrowingRateDeltaZeroInterval(t *testing.T) {
	cfg := testConfig()
	cfg.BorrowingInterval = 0
	got := NextBorrowingRateDelta(cfg, state.AssetClassAccrualState{LastBorrowingTime: 0}, 7200)
	if !got.IsZero() {
		t.Errorf("delta = %s, want 0 for unset interval", got)
	}
}

func TestNextFundingRateDelta(t *testing.T) {
	cfg := testConfig()
	funding := state.MarketFundingState{
		MarketID:        "ETH-USD",
		LastFundingTime: 1_700_000_000,
	}

	// Half utilization, full interval elapsed: half the max rate.
	market := state.MarketSkewState{
		MarketID:          "ETH-USD",
		LongOpenInterest:  usd("500000"),
		ShortOpenInterest: usd("0"),
	}
	got, err := NextFundingRateDelta(cfg, market, funding, 1_700_000_000+3600)
	if err != nil {
		t.Fatalf("NextFundingRateDelta: %v", err)
	}
	if !got.Equal(rate("0.0004")) {
		t.Errorf("delta = %s, want 0.0004", got)
	}
}

func TestNextFundingRateDeltaPartialInterval(t *testing.T) {
	cfg := testConfig()
	funding := state.MarketFundingState{LastFundingTime: 1_700_000_000}
	market := state.MarketSkewState{
		LongOpenInterest:  usd("1000000"),
		ShortOpenInterest: usd("0"),
	}

	// Full utilization, quarter interval: quarter of the max rate.
	got, err := NextFundingRateDelta(cfg, market, funding, 1_700_000_000+900)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(rate("0.0002")) {
		t.Errorf("delta = %s, want 0.0002", got)
	}
}

func TestNextFundingRateDeltaClampsUtilization(t *testing.T) {
	cfg := testConfig()
	funding := state.MarketFundingState{LastFundingTime: 1_700_000_000}

	// Skew beyond the scale saturates at 100% utilization.
	market := state.MarketSkewState{
		LongOpenInterest:  usd("5000000"),
		ShortOpenInterest: usd("0"),
	}
	got, err := NextFundingRateDelta(cfg, market, funding, 1_700_000_000+3600)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(cfg.MaxFundingRate) {
		t.Errorf("delta = %s, want max rate %s", got, cfg.MaxFundingRate)
	}

	// And symmetrically for short-heavy markets.
	market = state.MarketSkewState{
		LongOpenInterest:  usd("0"),
		ShortOpenInterest: usd("5000000"),
	}
	got, err = NextFundingRateDelta(cfg, market, funding, 1_700_000_000+3600)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(cfg.MaxFundingRate.Neg()) {
		t.Errorf("delta = %s, want -max rate", got)
	}
}

func TestNextFundingRateDeltaNoElapsed(t *testing.T) {
	cfg := testConfig()
	funding := state.MarketFundingState{LastFundingTime: 1_700_000_000}
	market := state.MarketSkewState{
		LongOpenInterest:  usd("500000"),
		ShortOpenInterest: usd("0"),
	}

	got, err := NextFundingRateDelta(cfg, market, funding, 1_700_000_000)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsZero() {
		t.Errorf("delta = %s, want 0", got)
	}
}

func TestNextFundingRateDeltaZeroSkewScale(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSkewScale = fixedpoint.Zero(fixedpoint.USDDecimals)
	funding := state.MarketFundingState{LastFundingTime: 0}

	_, err := NextFundingRateDelta(cfg, state.MarketSkewState{}, funding, 3600)
	if err == nil {
		t.Fatal("expected error for zero max skew scale")
	}
}
