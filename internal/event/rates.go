package event

import (
	"fmt"

	"PerpMark/internal/fixedpoint"
)

// BorrowingRateSnapshot carries an asset class's cumulative borrowing-rate
// checkpoint from the ledger.
type BorrowingRateSnapshot struct {
	AssetClass        string
	SumBorrowingRate  fixedpoint.Dec // rate scale, cumulative since genesis
	LastBorrowingTime int64          // unix seconds
	Sequence          int64
}

func (e *BorrowingRateSnapshot) IdempotencyKey() string {
	return fmt.Sprintf("%s:borrow:%d", e.AssetClass, e.Sequence)
}

func (e *BorrowingRateSnapshot) EventType() EventType {
	return EventTypeBorrowingRateSnapshot
}

// MarketID is nil: borrowing accrues per asset class, not per market.
func (e *BorrowingRateSnapshot) MarketID() *string {
	return nil
}

func (e *BorrowingRateSnapshot) SourceSequence() int64 {
	return e.Sequence
}

// FundingRateSnapshot carries a market's cumulative funding-rate checkpoint.
type FundingRateSnapshot struct {
	Market             string
	CurrentFundingRate fixedpoint.Dec // rate scale, signed cumulative
	LastFundingTime    int64          // unix seconds
	Sequence           int64
}

func (e *FundingRateSnapshot) IdempotencyKey() string {
	return fmt.Sprintf("%s:funding:%d", e.Market, e.Sequence)
}

func (e *FundingRateSnapshot) EventType() EventType {
	return EventTypeFundingRateSnapshot
}

func (e *FundingRateSnapshot) MarketID() *string {
	return &e.Market
}

func (e *FundingRateSnapshot) SourceSequence() int64 {
	return e.Sequence
}
