package event

import (
	"fmt"

	"PerpMark/internal/fixedpoint"
)

// ReferencePriceUpdate carries a raw oracle quote for one market.
type ReferencePriceUpdate struct {
	Market         string
	Price          fixedpoint.Dec // oracle scale
	PriceSequence  int64          // monotonic per market
	PriceTimestamp int64          // unix seconds (versioned input)
}

func (e *ReferencePriceUpdate) IdempotencyKey() string {
	return fmt.Sprintf("%s:price:%d", e.Market, e.PriceSequence)
}

func (e *ReferencePriceUpdate) EventType() EventType {
	return EventTypeReferencePriceUpdate
}

func (e *ReferencePriceUpdate) MarketID() *string {
	return &e.Market
}

func (e *ReferencePriceUpdate) SourceSequence() int64 {
	return e.PriceSequence
}
