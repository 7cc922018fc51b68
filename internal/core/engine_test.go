package core

import (
	"testing"

	"PerpMark/internal/event"
	"PerpMark/internal/fixedpoint"
	"PerpMark/internal/oracle"
	"PerpMark/internal/state"
	"PerpMark/internal/valuation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type recordingSink struct {
	payloads []*oracle.UpdatePayload
	markets  [][]string
}

func (s *recordingSink) Deliver(p *oracle.UpdatePayload, markets []string) error {
	s.payloads = append(s.payloads, p)
	s.markets = append(s.markets, markets)
	return nil
}

func usd(s string) fixedpoint.Dec {
	return fixedpoint.MustParse(s, fixedpoint.USDDecimals)
}

func rate(s string) fixedpoint.Dec {
	return fixedpoint.MustParse(s, fixedpoint.RateDecimals)
}

func oraclePrice(s string) fixedpoint.Dec {
	return fixedpoint.MustParse(s, fixedpoint.OracleDecimals)
}

func newTestEngine(t *testing.T) (*Engine, *recordingSink) {
	t.Helper()
	markets := state.NewMarketManager()
	positions := state.NewPositionManager()
	valuator := valuation.NewService(markets, positions, zerolog.Nop(), nil, false)
	valuator.SetClock(func() int64 { return 1_700_000_000 })
	builder := oracle.NewBuilder(oracle.NewCodec(fixedpoint.OracleDecimals))
	sink := &recordingSink{}
	eng := NewEngine(markets, positions, valuator, builder, sink, nil, zerolog.Nop())
	return eng, sink
}

func configEvent(market string, seq int64) *event.MarketConfigUpdate {
	return &event.MarketConfigUpdate{
		Market:                     market,
		AssetClass:                 "crypto",
		MaxSkewScale:               usd("1000000"),
		MaxFundingRate:             rate("0.0008"),
		FundingInterval:            3600,
		BaseBorrowingRate:          rate("0.0001"),
		BorrowingInterval:          3600,
		DecreasePositionFeeRateBPS: 10,
		Sequence:                   seq,
	}
}

func priceEvent(market string, seq, ts int64, price string) *event.ReferencePriceUpdate {
	return &event.ReferencePriceUpdate{
		Market:         market,
		Price:          oraclePrice(price),
		PriceSequence:  seq,
		PriceTimestamp: ts,
	}
}

func TestEngineBuildsPayloadOnPrice(t *testing.T) {
	eng, sink := newTestEngine(t)

	if err := eng.ProcessEvent(configEvent("ETH-USD", 1)); err != nil {
		t.Fatalf("config: %v", err)
	}
	if err := eng.ProcessEvent(priceEvent("ETH-USD", 1, 1_700_000_000, "1900.02")); err != nil {
		t.Fatalf("price: %v", err)
	}

	if len(sink.payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(sink.payloads))
	}
	p := sink.payloads[0]
	if len(p.Ticks) != 1 || len(p.TimeOffsets) != 1 {
		t.Fatalf("payload shape: %d ticks, %d offsets", len(p.Ticks), len(p.TimeOffsets))
	}
	if p.BaselineTime != 1_700_000_000 || p.TimeOffsets[0] != 0 {
		t.Errorf("baseline=%d offset=%d", p.BaselineTime, p.TimeOffsets[0])
	}
	if got := sink.markets[0]; len(got) != 1 || got[0] != "ETH-USD" {
		t.Errorf("markets = %v", got)
	}
}

func TestEngineDuplicateIsNoOp(t *testing.T) {
	eng, sink := newTestEngine(t)

	if err := eng.ProcessEvent(configEvent("ETH-USD", 1)); err != nil {
		t.Fatal(err)
	}
	evt := priceEvent("ETH-USD", 1, 1_700_000_000, "1900.02")
	if err := eng.ProcessEvent(evt); err != nil {
		t.Fatal(err)
	}
	if err := eng.ProcessEvent(evt); err != nil {
		t.Fatalf("duplicate must be a silent no-op, got %v", err)
	}

	if len(sink.payloads) != 1 {
		t.Errorf("duplicate rebuilt the payload: %d deliveries", len(sink.payloads))
	}
}

func TestEngineStalePriceSkipped(t *testing.T) {
	eng, sink := newTestEngine(t)

	if err := eng.ProcessEvent(configEvent("ETH-USD", 1)); err != nil {
		t.Fatal(err)
	}
	if err := eng.ProcessEvent(priceEvent("ETH-USD", 5, 1_700_000_000, "1900.02")); err != nil {
		t.Fatal(err)
	}
	// Lower sequence, different idempotency key: stale, silently skipped.
	if err := eng.ProcessEvent(priceEvent("ETH-USD", 4, 1_700_000_100, "1800")); err != nil {
		t.Fatalf("stale price must not error: %v", err)
	}

	if len(sink.payloads) != 1 {
		t.Fatalf("stale price triggered a payload: %d deliveries", len(sink.payloads))
	}
	// A price gap (1 → 5 after cold start counts from the first seen) is
	// tolerated; the fresh quote above still went through.
	if got := eng.Sequences().LastApplied("price:ETH-USD"); got != 5 {
		t.Errorf("last applied price seq = %d, want 5", got)
	}
}

func TestEnginePayloadOrderingAndOffsets(t *testing.T) {
	eng, sink := newTestEngine(t)

	// Configs arrive out of lexicographic order.
	if err := eng.ProcessEvent(configEvent("ETH-USD", 1)); err != nil {
		t.Fatal(err)
	}
	if err := eng.ProcessEvent(configEvent("BTC-USD", 1)); err != nil {
		t.Fatal(err)
	}

	if err := eng.ProcessEvent(priceEvent("ETH-USD", 1, 1_700_000_000, "1900.02")); err != nil {
		t.Fatal(err)
	}
	if err := eng.ProcessEvent(priceEvent("BTC-USD", 1, 1_700_000_005, "42000")); err != nil {
		t.Fatal(err)
	}

	last := sink.payloads[len(sink.payloads)-1]
	lastMarkets := sink.markets[len(sink.markets)-1]

	if len(lastMarkets) != 2 || lastMarkets[0] != "BTC-USD" || lastMarkets[1] != "ETH-USD" {
		t.Fatalf("markets = %v, want lexicographic [BTC-USD ETH-USD]", lastMarkets)
	}
	// Baseline is the newest quote; offsets count backwards from it.
	if last.BaselineTime != 1_700_000_005 {
		t.Errorf("baseline = %d", last.BaselineTime)
	}
	if last.TimeOffsets[0] != 0 || last.TimeOffsets[1] != 5 {
		t.Errorf("offsets = %v, want [0 5]", last.TimeOffsets)
	}
}

func TestEngineNonPositivePriceDoesNotWedgePayloads(t *testing.T) {
	eng, sink := newTestEngine(t)

	if err := eng.ProcessEvent(configEvent("AAA-USD", 1)); err != nil {
		t.Fatal(err)
	}
	if err := eng.ProcessEvent(configEvent("BBB-USD", 1)); err != nil {
		t.Fatal(err)
	}

	// A zero quote must be dropped, not stored: once in market state it would
	// fail tick encoding on every later rebuild and starve all other markets.
	if err := eng.ProcessEvent(priceEvent("AAA-USD", 1, 1_700_000_000, "0")); err != nil {
		t.Fatalf("zero price must be dropped, not errored: %v", err)
	}
	if err := eng.ProcessEvent(priceEvent("BBB-USD", 1, 1_700_000_000, "1900.02")); err != nil {
		t.Fatalf("valid price after a dropped quote: %v", err)
	}

	if len(sink.payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(sink.payloads))
	}
	if got := sink.markets[0]; len(got) != 1 || got[0] != "BBB-USD" {
		t.Errorf("markets = %v, want [BBB-USD]", got)
	}
}

func TestEngineValuesPositionsOnPrice(t *testing.T) {
	eng, _ := newTestEngine(t)

	if err := eng.ProcessEvent(configEvent("ETH-USD", 1)); err != nil {
		t.Fatal(err)
	}
	if err := eng.ProcessEvent(&event.OpenInterestUpdate{
		Market:            "ETH-USD",
		LongOpenInterest:  usd("5"),
		ShortOpenInterest: usd("0"),
		Sequence:          1,
		Timestamp:         1_700_000_000,
	}); err != nil {
		t.Fatal(err)
	}
	if err := eng.ProcessEvent(&event.PositionSnapshot{
		AccountID:          uuid.New(),
		Market:             "ETH-USD",
		Size:               usd("10"),
		AvgEntryPrice:      usd("1000"),
		EntryBorrowingRate: rate("0"),
		EntryFundingRate:   rate("0"),
		ReserveValue:       usd("5000"),
		Sequence:           1,
		Timestamp:          1_700_000_000,
	}); err != nil {
		t.Fatal(err)
	}
	if err := eng.ProcessEvent(priceEvent("ETH-USD", 1, 1_700_000_000, "1100")); err != nil {
		t.Fatal(err)
	}

	vals := eng.LastValuations("ETH-USD")
	if len(vals) != 1 {
		t.Fatalf("got %d valuations, want 1", len(vals))
	}
	// Skew of half the position keeps the closing mark on the reference.
	if !vals[0].Valuation.MarkPrice.Equal(usd("1100")) {
		t.Errorf("mark = %s, want 1100", vals[0].Valuation.MarkPrice)
	}
	if !vals[0].Valuation.UnrealizedPnl.Equal(usd("1")) {
		t.Errorf("upnl = %s, want 1", vals[0].Valuation.UnrealizedPnl)
	}
}

func TestEngineFlatPositionRemoved(t *testing.T) {
	eng, _ := newTestEngine(t)

	if err := eng.ProcessEvent(configEvent("ETH-USD", 1)); err != nil {
		t.Fatal(err)
	}
	acct := uuid.New()
	open := &event.PositionSnapshot{
		AccountID:     acct,
		Market:        "ETH-USD",
		Size:          usd("10"),
		AvgEntryPrice: usd("1000"),
		Sequence:      1,
	}
	if err := eng.ProcessEvent(open); err != nil {
		t.Fatal(err)
	}
	closed := &event.PositionSnapshot{
		AccountID:     acct,
		Market:        "ETH-USD",
		Size:          usd("0"),
		AvgEntryPrice: usd("1000"),
		Sequence:      2,
	}
	if err := eng.ProcessEvent(closed); err != nil {
		t.Fatal(err)
	}

	if err := eng.ProcessEvent(priceEvent("ETH-USD", 1, 1_700_000_000, "1100")); err != nil {
		t.Fatal(err)
	}
	if vals := eng.LastValuations("ETH-USD"); len(vals) != 0 {
		t.Errorf("flat position still valued: %d valuations", len(vals))
	}
}

func TestEngineStaleSnapshotsIgnored(t *testing.T) {
	eng, _ := newTestEngine(t)

	if err := eng.ProcessEvent(configEvent("ETH-USD", 2)); err != nil {
		t.Fatal(err)
	}
	if err := eng.ProcessEvent(&event.OpenInterestUpdate{
		Market:           "ETH-USD",
		LongOpenInterest: usd("100"),
		Sequence:         5,
	}); err != nil {
		t.Fatal(err)
	}
	// Older OI snapshot: ignored, state keeps the newer value.
	if err := eng.ProcessEvent(&event.OpenInterestUpdate{
		Market:           "ETH-USD",
		LongOpenInterest: usd("999"),
		Sequence:         3,
	}); err != nil {
		t.Fatal(err)
	}

	if got := eng.Sequences().LastApplied("oi:ETH-USD"); got != 5 {
		t.Errorf("last applied oi seq = %d, want 5", got)
	}
}

func TestEngineRateSnapshots(t *testing.T) {
	eng, _ := newTestEngine(t)

	if err := eng.ProcessEvent(&event.BorrowingRateSnapshot{
		AssetClass:        "crypto",
		SumBorrowingRate:  rate("0.01"),
		LastBorrowingTime: 1_699_999_000,
		Sequence:          1,
	}); err != nil {
		t.Fatal(err)
	}
	if err := eng.ProcessEvent(&event.FundingRateSnapshot{
		Market:             "ETH-USD",
		CurrentFundingRate: rate("0.0002"),
		LastFundingTime:    1_699_999_000,
		Sequence:           1,
	}); err != nil {
		t.Fatal(err)
	}

	if eng.IdempotencySize() != 2 {
		t.Errorf("idempotency size = %d, want 2", eng.IdempotencySize())
	}
}
