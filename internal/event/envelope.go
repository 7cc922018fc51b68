package event

// EventType discriminator for snapshot event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeReferencePriceUpdate
	EventTypeOpenInterestUpdate
	EventTypeBorrowingRateSnapshot
	EventTypeFundingRateSnapshot
	EventTypePositionSnapshot
	EventTypeMarketConfigUpdate
)

// Event is the interface all snapshot payloads implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// MarketID returns the market context (nil for asset-class-wide events)
	MarketID() *string

	// SourceSequence returns upstream ordering key
	SourceSequence() int64
}

func (et EventType) String() string {
	switch et {
	case EventTypeReferencePriceUpdate:
		return "ReferencePriceUpdate"
	case EventTypeOpenInterestUpdate:
		return "OpenInterestUpdate"
	case EventTypeBorrowingRateSnapshot:
		return "BorrowingRateSnapshot"
	case EventTypeFundingRateSnapshot:
		return "FundingRateSnapshot"
	case EventTypePositionSnapshot:
		return "PositionSnapshot"
	case EventTypeMarketConfigUpdate:
		return "MarketConfigUpdate"
	default:
		return "Unknown"
	}
}
