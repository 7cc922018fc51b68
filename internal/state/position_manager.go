package state

import (
	"github.com/google/uuid"
)

// PositionManager tracks the latest position snapshot per (account, market).
// Snapshots arrive from the ledger; a zero-size snapshot removes the entry.
//
// Not thread-safe: accessed only from the single-threaded engine loop.
type PositionManager struct {
	positions map[PositionKey]*Position
}

type PositionKey struct {
	AccountID uuid.UUID
	MarketID  string
}

func NewPositionManager() *PositionManager {
	return &PositionManager{
		positions: make(map[PositionKey]*Position),
	}
}

// Apply stores a position snapshot, dropping the entry when the ledger
// reports the position flat. Stale snapshots (older source sequence) are
// ignored.
func (pm *PositionManager) Apply(pos *Position) {
	key := PositionKey{AccountID: pos.AccountID, MarketID: pos.MarketID}

	if existing, ok := pm.positions[key]; ok && pos.SourceSequence <= existing.SourceSequence {
		return
	}

	if pos.IsFlat() {
		delete(pm.positions, key)
		return
	}
	pm.positions[key] = pos
}

// Get returns the tracked position or nil.
func (pm *PositionManager) Get(accountID uuid.UUID, marketID string) *Position {
	return pm.positions[PositionKey{AccountID: accountID, MarketID: marketID}]
}

// ForMarket returns all tracked positions in a market.
func (pm *PositionManager) ForMarket(marketID string) []*Position {
	result := make([]*Position, 0)
	for key, pos := range pm.positions {
		if key.MarketID == marketID {
			result = append(result, pos)
		}
	}
	return result
}

// ForAccount returns all tracked positions for an account.
func (pm *PositionManager) ForAccount(accountID uuid.UUID) []*Position {
	result := make([]*Position, 0)
	for key, pos := range pm.positions {
		if key.AccountID == accountID {
			result = append(result, pos)
		}
	}
	return result
}

// All returns every tracked position.
func (pm *PositionManager) All() []*Position {
	result := make([]*Position, 0, len(pm.positions))
	for _, pos := range pm.positions {
		result = append(result, pos)
	}
	return result
}

// Len returns the number of tracked positions.
func (pm *PositionManager) Len() int {
	return len(pm.positions)
}
