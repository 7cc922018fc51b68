package state

import (
	"PerpMark/internal/fixedpoint"

	"github.com/google/uuid"
)

// Position is one account's stored exposure in a market. Entry fields are
// the blended values written by the ledger at the last size change; this
// engine only reads them.
type Position struct {
	AccountID uuid.UUID
	MarketID  string

	// Size is signed USD-scale exposure: positive = long, negative = short.
	Size fixedpoint.Dec

	AvgEntryPrice      fixedpoint.Dec // USD scale
	EntryBorrowingRate fixedpoint.Dec // rate scale, sum rate at entry
	EntryFundingRate   fixedpoint.Dec // rate scale, cumulative rate at entry
	ReserveValue       fixedpoint.Dec // USD scale, collateral backing the position

	// SourceSequence orders position snapshots from upstream.
	SourceSequence int64
}

// IsFlat returns true if the position has no exposure.
func (p *Position) IsFlat() bool {
	return p.Size.IsZero()
}

// IsLong returns true for positive size.
func (p *Position) IsLong() bool {
	return p.Size.Sign() > 0
}

// SideSign returns +1 for long, -1 for short, 0 for flat.
func (p *Position) SideSign() int64 {
	switch p.Size.Sign() {
	case 1:
		return 1
	case -1:
		return -1
	default:
		return 0
	}
}
