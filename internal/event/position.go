package event

import (
	"fmt"

	"PerpMark/internal/fixedpoint"

	"github.com/google/uuid"
)

// PositionSnapshot carries the ledger's stored fields for one position. The
// entry fields are the blended values at the position's last size change.
type PositionSnapshot struct {
	AccountID          uuid.UUID
	Market             string
	Size               fixedpoint.Dec // USD scale, signed: positive = long
	AvgEntryPrice      fixedpoint.Dec // USD scale
	EntryBorrowingRate fixedpoint.Dec // rate scale
	EntryFundingRate   fixedpoint.Dec // rate scale
	ReserveValue       fixedpoint.Dec // USD scale
	Sequence           int64
	Timestamp          int64 // unix seconds
}

func (e *PositionSnapshot) IdempotencyKey() string {
	return fmt.Sprintf("%s:%s:pos:%d", e.AccountID, e.Market, e.Sequence)
}

func (e *PositionSnapshot) EventType() EventType {
	return EventTypePositionSnapshot
}

func (e *PositionSnapshot) MarketID() *string {
	return &e.Market
}

func (e *PositionSnapshot) SourceSequence() int64 {
	return e.Sequence
}
