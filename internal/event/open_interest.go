package event

import (
	"fmt"

	"PerpMark/internal/fixedpoint"
)

// OpenInterestUpdate carries a market's aggregate long/short open interest.
type OpenInterestUpdate struct {
	Market            string
	LongOpenInterest  fixedpoint.Dec // USD scale
	ShortOpenInterest fixedpoint.Dec // USD scale
	Sequence          int64
	Timestamp         int64 // unix seconds
}

func (e *OpenInterestUpdate) IdempotencyKey() string {
	return fmt.Sprintf("%s:oi:%d", e.Market, e.Sequence)
}

func (e *OpenInterestUpdate) EventType() EventType {
	return EventTypeOpenInterestUpdate
}

func (e *OpenInterestUpdate) MarketID() *string {
	return &e.Market
}

func (e *OpenInterestUpdate) SourceSequence() int64 {
	return e.Sequence
}
