package valuation

import (
	"fmt"
	"time"

	"PerpMark/internal/fixedpoint"
	"PerpMark/internal/observability"
	"PerpMark/internal/pricing"
	"PerpMark/internal/state"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AccountValuation pairs a valuation with the position it belongs to.
type AccountValuation struct {
	AccountID uuid.UUID
	MarketID  string
	Valuation *Valuation
}

// Service values tracked positions against the latest state snapshots. Each
// position is valued from its own immutable argument set, so callers may
// also fan ValuePosition out across goroutines without coordination.
type Service struct {
	markets   *state.MarketManager
	positions *state.PositionManager
	logger    zerolog.Logger
	metrics   *observability.Metrics
	strict    bool
	now       func() int64 // unix seconds; injectable for tests
}

func NewService(
	markets *state.MarketManager,
	positions *state.PositionManager,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	strict bool,
) *Service {
	return &Service{
		markets:   markets,
		positions: positions,
		logger:    logger,
		metrics:   metrics,
		strict:    strict,
		now:       func() int64 { return time.Now().Unix() },
	}
}

// SetClock overrides the valuation clock (tests).
func (s *Service) SetClock(now func() int64) {
	s.now = now
}

// ValuePosition gathers the snapshots for a position's market and values it.
func (s *Service) ValuePosition(pos *state.Position) (*Valuation, error) {
	start := time.Now()

	in, err := s.inputsFor(pos.MarketID)
	if err != nil {
		return nil, err
	}

	val, err := Value(pos, in)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ValuationErrorsTotal.WithLabelValues(pos.MarketID, "compute").Inc()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ValuationsTotal.WithLabelValues(pos.MarketID).Inc()
		s.metrics.ValuationDuration.Observe(time.Since(start).Seconds())
	}
	return val, nil
}

// ValueMarket values every tracked position in one market. Failures are
// logged and skipped; one bad position never blocks the rest.
func (s *Service) ValueMarket(marketID string) []AccountValuation {
	return s.valueAll(s.positions.ForMarket(marketID))
}

// ValueAll values every tracked position.
func (s *Service) ValueAll() []AccountValuation {
	return s.valueAll(s.positions.All())
}

func (s *Service) valueAll(positions []*state.Position) []AccountValuation {
	result := make([]AccountValuation, 0, len(positions))
	for _, pos := range positions {
		val, err := s.ValuePosition(pos)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("account_id", pos.AccountID.String()).
				Str("market", pos.MarketID).
				Msg("valuation failed")
			continue
		}
		result = append(result, AccountValuation{
			AccountID: pos.AccountID,
			MarketID:  pos.MarketID,
			Valuation: val,
		})
	}
	return result
}

// inputsFor assembles the per-call snapshot set for a market. Missing config
// or reference price makes the market unvaluable; missing accrual or funding
// checkpoints degrade to zero accrued rates (a market that has never
// checkpointed owes nothing yet).
func (s *Service) inputsFor(marketID string) (Inputs, error) {
	cfg, ok := s.markets.Config(marketID)
	if !ok {
		return Inputs{}, fmt.Errorf("no pricing config for market %s", marketID)
	}

	refPrice, ok := s.markets.ReferencePrice(marketID)
	if !ok {
		return Inputs{}, fmt.Errorf("no reference price for market %s", marketID)
	}

	skew := s.markets.Skew(marketID)
	now := s.now()

	accrual, ok := s.markets.Accrual(cfg.AssetClass)
	if !ok {
		accrual = state.AssetClassAccrualState{
			AssetClass:        cfg.AssetClass,
			SumBorrowingRate:  fixedpoint.Zero(fixedpoint.RateDecimals),
			LastBorrowingTime: now,
		}
	}

	funding, ok := s.markets.Funding(marketID)
	if !ok {
		funding = state.MarketFundingState{
			MarketID:           marketID,
			CurrentFundingRate: fixedpoint.Zero(fixedpoint.RateDecimals),
			LastFundingTime:    now,
		}
	}

	nextBorrowing := pricing.NextBorrowingRateDelta(cfg, accrual, now)
	nextFunding, err := pricing.NextFundingRateDelta(cfg, skew, funding, now)
	if err != nil {
		return Inputs{}, fmt.Errorf("funding projection for market %s: %w", marketID, err)
	}

	return Inputs{
		Market:             skew,
		Config:             cfg,
		ReferencePrice:     refPrice.Price.Rescale(fixedpoint.USDDecimals),
		Accrual:            accrual,
		Funding:            funding,
		NextBorrowingDelta: nextBorrowing,
		NextFundingDelta:   nextFunding,
		StrictAccrual:      s.strict,
	}, nil
}
