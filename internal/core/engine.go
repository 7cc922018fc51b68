package core

import (
	"fmt"

	"PerpMark/internal/event"
	"PerpMark/internal/fixedpoint"
	"PerpMark/internal/observability"
	"PerpMark/internal/oracle"
	"PerpMark/internal/state"
	"PerpMark/internal/valuation"

	"github.com/rs/zerolog"
)

// PayloadSink receives assembled oracle update payloads. Markets lists the
// market IDs behind each payload index, in payload order. Publishing the
// payload anywhere is the sink's concern, not the engine's.
type PayloadSink interface {
	Deliver(payload *oracle.UpdatePayload, markets []string) error
}

// NopSink discards payloads. Used when no downstream consumer is wired.
type NopSink struct{}

func (NopSink) Deliver(*oracle.UpdatePayload, []string) error { return nil }

// Engine is the single-threaded event processor. It owns the market and
// position state, applies snapshot events in arrival order, and on every
// fresh reference price revalues the affected market and rebuilds the oracle
// update payload.
type Engine struct {
	markets   *state.MarketManager
	positions *state.PositionManager
	valuator  *valuation.Service
	builder   *oracle.Builder
	sink      PayloadSink

	idempotency *IdempotencyLRU
	sequences   *SequenceValidator
	metrics     *observability.Metrics
	logger      zerolog.Logger

	// lastValuations holds the most recent per-market valuation sweep,
	// refreshed on each applied reference price.
	lastValuations map[string][]valuation.AccountValuation
}

func NewEngine(
	markets *state.MarketManager,
	positions *state.PositionManager,
	valuator *valuation.Service,
	builder *oracle.Builder,
	sink PayloadSink,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	return &Engine{
		markets:        markets,
		positions:      positions,
		valuator:       valuator,
		builder:        builder,
		sink:           sink,
		idempotency:    NewIdempotencyLRU(1_000_000),
		sequences:      NewSequenceValidator(),
		metrics:        metrics,
		logger:         logger,
		lastValuations: make(map[string][]valuation.AccountValuation),
	}
}

// ProcessEvent is the main processing pipeline: dedup, staleness check,
// state application, and for price updates the valuation + payload rebuild.
func (e *Engine) ProcessEvent(evt event.Event) error {
	eventType := evt.EventType().String()
	dedupKey := eventType + ":" + evt.IdempotencyKey()

	if e.idempotency.Contains(dedupKey) {
		if e.metrics != nil {
			e.metrics.IngestRejectedTotal.WithLabelValues(eventType, "duplicate").Inc()
		}
		return nil
	}

	var err error
	switch ev := evt.(type) {
	case *event.ReferencePriceUpdate:
		err = e.applyReferencePrice(ev)
	case *event.OpenInterestUpdate:
		e.applyOpenInterest(ev)
	case *event.BorrowingRateSnapshot:
		e.applyBorrowingRate(ev)
	case *event.FundingRateSnapshot:
		e.applyFundingRate(ev)
	case *event.PositionSnapshot:
		e.applyPosition(ev)
	case *event.MarketConfigUpdate:
		e.applyMarketConfig(ev)
	default:
		return fmt.Errorf("unknown event type: %T", evt)
	}
	if err != nil {
		return err
	}

	e.idempotency.Add(dedupKey)
	if e.metrics != nil {
		e.metrics.IngestEventsTotal.WithLabelValues(eventType).Inc()
	}
	return nil
}

// applyReferencePrice stores a fresh quote, revalues the market's positions,
// and rebuilds the oracle payload across all priced markets. A stale price
// sequence is skipped silently.
func (e *Engine) applyReferencePrice(evt *event.ReferencePriceUpdate) error {
	// The parser already rejects non-positive quotes; this guard keeps a bad
	// producer from wedging payload rebuilds for every other market.
	if evt.Price.Sign() <= 0 {
		if e.metrics != nil {
			e.metrics.IngestRejectedTotal.WithLabelValues(evt.EventType().String(), "invalid").Inc()
		}
		e.logger.Warn().
			Str("market", evt.Market).
			Str("price", evt.Price.String()).
			Msg("non-positive reference price dropped")
		return nil
	}

	if !e.sequences.FreshPrice(evt.Market, evt.PriceSequence) {
		if e.metrics != nil {
			e.metrics.IngestRejectedTotal.WithLabelValues(evt.EventType().String(), "stale").Inc()
		}
		e.logger.Debug().
			Str("market", evt.Market).
			Int64("price_sequence", evt.PriceSequence).
			Msg("stale reference price skipped")
		return nil
	}

	e.markets.SetReferencePrice(evt.Market, state.ReferencePriceState{
		Price:         evt.Price,
		PriceSequence: evt.PriceSequence,
		Timestamp:     evt.PriceTimestamp,
	})
	if e.metrics != nil {
		e.metrics.ReferencePrice.WithLabelValues(evt.Market).Set(evt.Price.Float64())
	}

	e.lastValuations[evt.Market] = e.valuator.ValueMarket(evt.Market)

	if err := e.publishPayload(); err != nil {
		return fmt.Errorf("oracle payload for %s: %w", evt.Market, err)
	}
	return nil
}

func (e *Engine) applyOpenInterest(evt *event.OpenInterestUpdate) {
	if !e.sequences.Fresh("oi:"+evt.Market, evt.Sequence) {
		return
	}
	e.markets.SetSkew(state.MarketSkewState{
		MarketID:          evt.Market,
		LongOpenInterest:  evt.LongOpenInterest,
		ShortOpenInterest: evt.ShortOpenInterest,
	})
}

func (e *Engine) applyBorrowingRate(evt *event.BorrowingRateSnapshot) {
	if !e.sequences.Fresh("borrow:"+evt.AssetClass, evt.Sequence) {
		return
	}
	e.markets.SetAccrual(state.AssetClassAccrualState{
		AssetClass:        evt.AssetClass,
		SumBorrowingRate:  evt.SumBorrowingRate,
		LastBorrowingTime: evt.LastBorrowingTime,
	})
}

func (e *Engine) applyFundingRate(evt *event.FundingRateSnapshot) {
	if !e.sequences.Fresh("funding:"+evt.Market, evt.Sequence) {
		return
	}
	e.markets.SetFunding(state.MarketFundingState{
		MarketID:           evt.Market,
		CurrentFundingRate: evt.CurrentFundingRate,
		LastFundingTime:    evt.LastFundingTime,
	})
}

func (e *Engine) applyPosition(evt *event.PositionSnapshot) {
	// PositionManager.Apply handles per-position staleness itself
	e.positions.Apply(&state.Position{
		AccountID:          evt.AccountID,
		MarketID:           evt.Market,
		Size:               evt.Size,
		AvgEntryPrice:      evt.AvgEntryPrice,
		EntryBorrowingRate: evt.EntryBorrowingRate,
		EntryFundingRate:   evt.EntryFundingRate,
		ReserveValue:       evt.ReserveValue,
		SourceSequence:     evt.Sequence,
	})
	if e.metrics != nil {
		e.metrics.PositionsTracked.Set(float64(e.positions.Len()))
	}
}

func (e *Engine) applyMarketConfig(evt *event.MarketConfigUpdate) {
	if !e.sequences.Fresh("config:"+evt.Market, evt.Sequence) {
		return
	}
	e.markets.SetConfig(state.MarketPricingConfig{
		MarketID:                   evt.Market,
		AssetClass:                 evt.AssetClass,
		MaxSkewScale:               evt.MaxSkewScale,
		MaxFundingRate:             evt.MaxFundingRate,
		FundingInterval:            evt.FundingInterval,
		BaseBorrowingRate:          evt.BaseBorrowingRate,
		BorrowingInterval:          evt.BorrowingInterval,
		DecreasePositionFeeRateBPS: evt.DecreasePositionFeeRateBPS,
	})
}

// publishPayload rebuilds the oracle update across every market that has a
// reference price and hands it to the sink. Markets appear in lexicographic
// order; that stable ordering is what gives payload indices their meaning.
// The payload is all-or-nothing: one unencodable price fails the whole batch.
func (e *Engine) publishPayload() error {
	var (
		markets  []string
		prices   []fixedpoint.Dec
		stamps   []int64
		baseline int64
	)

	for _, marketID := range e.markets.Markets() {
		rp, ok := e.markets.ReferencePrice(marketID)
		if !ok {
			continue
		}
		markets = append(markets, marketID)
		prices = append(prices, rp.Price)
		stamps = append(stamps, rp.Timestamp)
		if rp.Timestamp > baseline {
			baseline = rp.Timestamp
		}
	}
	if len(markets) == 0 {
		return nil
	}

	// Offsets are measured backwards from the newest quote in the batch, so
	// they are always non-negative.
	offsets := make([]int64, len(stamps))
	for i, ts := range stamps {
		offsets[i] = baseline - ts
	}

	payload, err := e.builder.BuildBatch(prices, offsets, baseline)
	if err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.TicksEncodedTotal.Add(float64(len(payload.Ticks)))
		e.metrics.PayloadBatchesTotal.Inc()
		e.metrics.PayloadBatchSize.Observe(float64(len(payload.Ticks)))
	}

	if err := e.sink.Deliver(payload, markets); err != nil {
		return fmt.Errorf("payload sink: %w", err)
	}
	return nil
}

// LastValuations returns the most recent valuation sweep for a market, or
// nil if the market has never been priced.
func (e *Engine) LastValuations(marketID string) []valuation.AccountValuation {
	return e.lastValuations[marketID]
}

// Sequences exposes the sequence validator (warm start, tests).
func (e *Engine) Sequences() *SequenceValidator {
	return e.sequences
}

// IdempotencySize returns the current dedup cache occupancy.
func (e *Engine) IdempotencySize() int {
	return e.idempotency.Size()
}
