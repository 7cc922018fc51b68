package oracle

import (
	"errors"
	"fmt"
	"math"

	"PerpMark/internal/fixedpoint"
)

var (
	ErrInvalidOffset  = errors.New("oracle: publish-time offset must be non-negative")
	ErrLengthMismatch = errors.New("oracle: prices and offsets must have equal length")
)

// UpdatePayload is the transmittable form of a price batch: one tick per
// asset, one publish-time offset per asset, and a single baseline publish
// time the offsets are measured from. Index i of Ticks corresponds to index
// i of TimeOffsets; the asset-index ordering itself is the caller's
// contract with the consumer.
type UpdatePayload struct {
	Ticks        []Tick
	TimeOffsets  []uint32
	BaselineTime int64
}

// Builder assembles update payloads. All methods are pure transformations;
// handing the payload to a transport is the caller's concern.
type Builder struct {
	codec *Codec
}

func NewBuilder(codec *Codec) *Builder {
	return &Builder{codec: codec}
}

// BuildPriceUpdate encodes every price onto the tick grid. The first invalid
// price aborts the whole batch.
func (b *Builder) BuildPriceUpdate(prices []fixedpoint.Dec) ([]Tick, error) {
	ticks := make([]Tick, len(prices))
	for i, price := range prices {
		tick, err := b.codec.EncodeTick(price)
		if err != nil {
			return nil, fmt.Errorf("price[%d]: %w", i, err)
		}
		ticks[i] = tick
	}
	return ticks, nil
}

// BuildPublishTimeUpdate validates and narrows per-asset publish-time
// offsets (seconds relative to the batch baseline).
func (b *Builder) BuildPublishTimeUpdate(offsets []int64) ([]uint32, error) {
	out := make([]uint32, len(offsets))
	for i, off := range offsets {
		if off < 0 || off > math.MaxUint32 {
			return nil, fmt.Errorf("offset[%d]=%d: %w", i, off, ErrInvalidOffset)
		}
		out[i] = uint32(off)
	}
	return out, nil
}

// BuildBatch combines prices and offsets into one payload. Either the whole
// payload is built or nothing is: no partially constructed batches.
func (b *Builder) BuildBatch(prices []fixedpoint.Dec, offsets []int64, baselineTime int64) (*UpdatePayload, error) {
	if len(prices) != len(offsets) {
		return nil, fmt.Errorf("%w: %d prices, %d offsets", ErrLengthMismatch, len(prices), len(offsets))
	}

	ticks, err := b.BuildPriceUpdate(prices)
	if err != nil {
		return nil, err
	}
	timeOffsets, err := b.BuildPublishTimeUpdate(offsets)
	if err != nil {
		return nil, err
	}

	return &UpdatePayload{
		Ticks:        ticks,
		TimeOffsets:  timeOffsets,
		BaselineTime: baselineTime,
	}, nil
}
