package event

import (
	"fmt"

	"PerpMark/internal/fixedpoint"
)

// MarketConfigUpdate carries a market's pricing constants.
type MarketConfigUpdate struct {
	Market                     string
	AssetClass                 string
	MaxSkewScale               fixedpoint.Dec // USD scale, strictly positive
	MaxFundingRate             fixedpoint.Dec // rate scale, per funding interval
	FundingInterval            int64          // seconds
	BaseBorrowingRate          fixedpoint.Dec // rate scale, per borrowing interval
	BorrowingInterval          int64          // seconds
	DecreasePositionFeeRateBPS int64
	Sequence                   int64
}

func (e *MarketConfigUpdate) IdempotencyKey() string {
	return fmt.Sprintf("%s:config:%d", e.Market, e.Sequence)
}

func (e *MarketConfigUpdate) EventType() EventType {
	return EventTypeMarketConfigUpdate
}

func (e *MarketConfigUpdate) MarketID() *string {
	return &e.Market
}

func (e *MarketConfigUpdate) SourceSequence() int64 {
	return e.Sequence
}
