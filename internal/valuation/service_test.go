package valuation

import (
	"testing"

	"PerpMark/internal/fixedpoint"
	"PerpMark/internal/state"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestService(t *testing.T) (*Service, *state.MarketManager, *state.PositionManager) {
	t.Helper()
	markets := state.NewMarketManager()
	positions := state.NewPositionManager()
	svc := NewService(markets, positions, zerolog.Nop(), nil, false)
	svc.SetClock(func() int64 { return 1_700_000_000 })
	return svc, markets, positions
}

func seedMarket(markets *state.MarketManager) {
	markets.SetConfig(baseConfig())
	markets.SetReferencePrice("ETH-USD", state.ReferencePriceState{
		Price:         fixedpoint.MustParse("1100", fixedpoint.OracleDecimals),
		PriceSequence: 1,
		Timestamp:     1_700_000_000,
	})
}

func TestServiceValuePosition(t *testing.T) {
	svc, markets, _ := newTestService(t)
	seedMarket(markets)
	markets.SetSkew(state.MarketSkewState{
		MarketID:          "ETH-USD",
		LongOpenInterest:  usd("5"),
		ShortOpenInterest: usd("0"),
	})

	val, err := svc.ValuePosition(longPosition("10", "1000"))
	if err != nil {
		t.Fatalf("ValuePosition: %v", err)
	}
	// Reference arrives at oracle scale and is widened to USD scale for the
	// mark; skew of half the position keeps the mark on the reference.
	if !val.MarkPrice.Equal(usd("1100")) {
		t.Errorf("mark = %s, want 1100", val.MarkPrice)
	}
	if !val.UnrealizedPnl.Equal(usd("1")) {
		t.Errorf("upnl = %s, want 1", val.UnrealizedPnl)
	}
}

func TestServiceMissingConfig(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.ValuePosition(longPosition("10", "1000")); err == nil {
		t.Fatal("expected error for unconfigured market")
	}
}

func TestServiceMissingReferencePrice(t *testing.T) {
	svc, markets, _ := newTestService(t)
	markets.SetConfig(baseConfig())

	if _, err := svc.ValuePosition(longPosition("10", "1000")); err == nil {
		t.Fatal("expected error for market without a quote")
	}
}

func TestServiceDefaultsMissingCheckpoints(t *testing.T) {
	// No accrual or funding checkpoint has ever arrived: the market owes
	// nothing yet, so both fees are zero rather than an error.
	svc, markets, _ := newTestService(t)
	seedMarket(markets)

	pos := longPosition("10", "1000")
	pos.ReserveValue = usd("5000")

	val, err := svc.ValuePosition(pos)
	if err != nil {
		t.Fatalf("ValuePosition: %v", err)
	}
	if !val.BorrowingFee.IsZero() {
		t.Errorf("borrowing fee = %s, want 0", val.BorrowingFee)
	}
	if !val.FundingFee.IsZero() {
		t.Errorf("funding fee = %s, want 0", val.FundingFee)
	}
}

func TestServiceValueMarketSkipsFailures(t *testing.T) {
	svc, markets, positions := newTestService(t)
	seedMarket(markets)

	good := longPosition("10", "1000")
	good.SourceSequence = 1
	positions.Apply(good)

	// Zero entry price violates the position invariant; it must be skipped,
	// not sink the whole sweep.
	bad := &state.Position{
		AccountID:      uuid.New(),
		MarketID:       "ETH-USD",
		Size:           usd("5"),
		AvgEntryPrice:  usd("0"),
		SourceSequence: 1,
	}
	positions.Apply(bad)

	vals := svc.ValueMarket("ETH-USD")
	if len(vals) != 1 {
		t.Fatalf("got %d valuations, want 1", len(vals))
	}
	if vals[0].AccountID != good.AccountID {
		t.Errorf("surviving valuation belongs to %s, want %s", vals[0].AccountID, good.AccountID)
	}
}

func TestServiceValueAll(t *testing.T) {
	svc, markets, positions := newTestService(t)
	seedMarket(markets)

	markets.SetConfig(state.MarketPricingConfig{
		MarketID:                   "BTC-USD",
		AssetClass:                 "crypto",
		MaxSkewScale:               usd("2000000"),
		FundingInterval:            3600,
		BorrowingInterval:          3600,
		DecreasePositionFeeRateBPS: 10,
	})
	markets.SetReferencePrice("BTC-USD", state.ReferencePriceState{
		Price:         fixedpoint.MustParse("42000", fixedpoint.OracleDecimals),
		PriceSequence: 1,
		Timestamp:     1_700_000_000,
	})

	eth := longPosition("10", "1000")
	eth.SourceSequence = 1
	positions.Apply(eth)

	btc := longPosition("3", "40000")
	btc.MarketID = "BTC-USD"
	btc.SourceSequence = 1
	positions.Apply(btc)

	vals := svc.ValueAll()
	if len(vals) != 2 {
		t.Fatalf("got %d valuations, want 2", len(vals))
	}
}
