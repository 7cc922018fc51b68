package ingestion

import (
	"encoding/json"
	"fmt"

	"PerpMark/internal/event"
	"PerpMark/internal/fixedpoint"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The ingestion shell validates, parses, and converts raw
// events before they reach the engine.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "ReferencePriceUpdate":
		return parseReferencePriceUpdate(raw.Data)
	case "OpenInterestUpdate":
		return parseOpenInterestUpdate(raw.Data)
	case "BorrowingRateSnapshot":
		return parseBorrowingRateSnapshot(raw.Data)
	case "FundingRateSnapshot":
		return parseFundingRateSnapshot(raw.Data)
	case "PositionSnapshot":
		return parsePositionSnapshot(raw.Data)
	case "MarketConfigUpdate":
		return parseMarketConfigUpdate(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// parseDec reads a decimal string into a Dec at the given scale, exactly.
// Digits beyond the declared scale are rejected, never truncated: a producer
// quoting more precision than the scale carries is a bug worth surfacing.
func parseDec(s string, decimals int32) (fixedpoint.Dec, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fixedpoint.Dec{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	shifted := d.Shift(decimals)
	if !shifted.IsInteger() {
		return fixedpoint.Dec{}, fmt.Errorf("%q exceeds %d decimal places", s, decimals)
	}
	return fixedpoint.FromBigInt(shifted.BigInt(), decimals), nil
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS. Numeric
// price/rate fields are decimal strings so producers never round through
// floats; field names use snake_case to match upstream producers.

type referencePriceJSON struct {
	Market        string `json:"market"`
	Price         string `json:"price"` // oracle scale (8 dp)
	PriceSequence int64  `json:"price_sequence"`
	TimestampS    int64  `json:"timestamp_s"`
}

func parseReferencePriceUpdate(data []byte) (*event.ReferencePriceUpdate, error) {
	var j referencePriceJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ReferencePriceUpdate: %w", err)
	}

	price, err := parseDec(j.Price, fixedpoint.OracleDecimals)
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	if price.Sign() <= 0 {
		return nil, fmt.Errorf("price must be strictly positive")
	}

	return &event.ReferencePriceUpdate{
		Market:         j.Market,
		Price:          price,
		PriceSequence:  j.PriceSequence,
		PriceTimestamp: j.TimestampS,
	}, nil
}

type openInterestJSON struct {
	Market     string `json:"market"`
	LongOI     string `json:"long_oi"`  // USD scale
	ShortOI    string `json:"short_oi"` // USD scale
	Sequence   int64  `json:"sequence"`
	TimestampS int64  `json:"timestamp_s"`
}

func parseOpenInterestUpdate(data []byte) (*event.OpenInterestUpdate, error) {
	var j openInterestJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse OpenInterestUpdate: %w", err)
	}

	longOI, err := parseDec(j.LongOI, fixedpoint.USDDecimals)
	if err != nil {
		return nil, fmt.Errorf("parse long_oi: %w", err)
	}
	shortOI, err := parseDec(j.ShortOI, fixedpoint.USDDecimals)
	if err != nil {
		return nil, fmt.Errorf("parse short_oi: %w", err)
	}
	if longOI.Sign() < 0 || shortOI.Sign() < 0 {
		return nil, fmt.Errorf("open interest must be non-negative")
	}

	return &event.OpenInterestUpdate{
		Market:            j.Market,
		LongOpenInterest:  longOI,
		ShortOpenInterest: shortOI,
		Sequence:          j.Sequence,
		Timestamp:         j.TimestampS,
	}, nil
}

type borrowingRateJSON struct {
	AssetClass        string `json:"asset_class"`
	SumBorrowingRate  string `json:"sum_borrowing_rate"` // rate scale
	LastBorrowingTime int64  `json:"last_borrowing_time_s"`
	Sequence          int64  `json:"sequence"`
}

func parseBorrowingRateSnapshot(data []byte) (*event.BorrowingRateSnapshot, error) {
	var j borrowingRateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse BorrowingRateSnapshot: %w", err)
	}

	sumRate, err := parseDec(j.SumBorrowingRate, fixedpoint.RateDecimals)
	if err != nil {
		return nil, fmt.Errorf("parse sum_borrowing_rate: %w", err)
	}

	return &event.BorrowingRateSnapshot{
		AssetClass:        j.AssetClass,
		SumBorrowingRate:  sumRate,
		LastBorrowingTime: j.LastBorrowingTime,
		Sequence:          j.Sequence,
	}, nil
}

type fundingRateJSON struct {
	Market             string `json:"market"`
	CurrentFundingRate string `json:"current_funding_rate"` // rate scale, signed
	LastFundingTime    int64  `json:"last_funding_time_s"`
	Sequence           int64  `json:"sequence"`
}

func parseFundingRateSnapshot(data []byte) (*event.FundingRateSnapshot, error) {
	var j fundingRateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse FundingRateSnapshot: %w", err)
	}

	rate, err := parseDec(j.CurrentFundingRate, fixedpoint.RateDecimals)
	if err != nil {
		return nil, fmt.Errorf("parse current_funding_rate: %w", err)
	}

	return &event.FundingRateSnapshot{
		Market:             j.Market,
		CurrentFundingRate: rate,
		LastFundingTime:    j.LastFundingTime,
		Sequence:           j.Sequence,
	}, nil
}

type positionSnapshotJSON struct {
	AccountID          string `json:"account_id"`
	Market             string `json:"market"`
	Size               string `json:"size"`            // USD scale, signed
	AvgEntryPrice      string `json:"avg_entry_price"` // USD scale
	EntryBorrowingRate string `json:"entry_borrowing_rate"`
	EntryFundingRate   string `json:"entry_funding_rate"`
	ReserveValue       string `json:"reserve_value"` // USD scale
	Sequence           int64  `json:"sequence"`
	TimestampS         int64  `json:"timestamp_s"`
}

func parsePositionSnapshot(data []byte) (*event.PositionSnapshot, error) {
	var j positionSnapshotJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PositionSnapshot: %w", err)
	}

	accountID, err := uuid.Parse(j.AccountID)
	if err != nil {
		return nil, fmt.Errorf("parse account_id: %w", err)
	}

	size, err := parseDec(j.Size, fixedpoint.USDDecimals)
	if err != nil {
		return nil, fmt.Errorf("parse size: %w", err)
	}
	avgEntry, err := parseDec(j.AvgEntryPrice, fixedpoint.USDDecimals)
	if err != nil {
		return nil, fmt.Errorf("parse avg_entry_price: %w", err)
	}
	entryBorrowing, err := parseDec(j.EntryBorrowingRate, fixedpoint.RateDecimals)
	if err != nil {
		return nil, fmt.Errorf("parse entry_borrowing_rate: %w", err)
	}
	entryFunding, err := parseDec(j.EntryFundingRate, fixedpoint.RateDecimals)
	if err != nil {
		return nil, fmt.Errorf("parse entry_funding_rate: %w", err)
	}
	reserve, err := parseDec(j.ReserveValue, fixedpoint.USDDecimals)
	if err != nil {
		return nil, fmt.Errorf("parse reserve_value: %w", err)
	}

	return &event.PositionSnapshot{
		AccountID:          accountID,
		Market:             j.Market,
		Size:               size,
		AvgEntryPrice:      avgEntry,
		EntryBorrowingRate: entryBorrowing,
		EntryFundingRate:   entryFunding,
		ReserveValue:       reserve,
		Sequence:           j.Sequence,
		Timestamp:          j.TimestampS,
	}, nil
}

type marketConfigJSON struct {
	Market                     string `json:"market"`
	AssetClass                 string `json:"asset_class"`
	MaxSkewScale               string `json:"max_skew_scale"`   // USD scale
	MaxFundingRate             string `json:"max_funding_rate"` // rate scale
	FundingIntervalS           int64  `json:"funding_interval_s"`
	BaseBorrowingRate          string `json:"base_borrowing_rate"` // rate scale
	BorrowingIntervalS         int64  `json:"borrowing_interval_s"`
	DecreasePositionFeeRateBPS int64  `json:"decrease_position_fee_rate_bps"`
	Sequence                   int64  `json:"sequence"`
}

func parseMarketConfigUpdate(data []byte) (*event.MarketConfigUpdate, error) {
	var j marketConfigJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse MarketConfigUpdate: %w", err)
	}

	maxSkewScale, err := parseDec(j.MaxSkewScale, fixedpoint.USDDecimals)
	if err != nil {
		return nil, fmt.Errorf("parse max_skew_scale: %w", err)
	}
	if maxSkewScale.Sign() <= 0 {
		return nil, fmt.Errorf("max_skew_scale must be strictly positive")
	}
	maxFundingRate, err := parseDec(j.MaxFundingRate, fixedpoint.RateDecimals)
	if err != nil {
		return nil, fmt.Errorf("parse max_funding_rate: %w", err)
	}
	baseBorrowingRate, err := parseDec(j.BaseBorrowingRate, fixedpoint.RateDecimals)
	if err != nil {
		return nil, fmt.Errorf("parse base_borrowing_rate: %w", err)
	}

	return &event.MarketConfigUpdate{
		Market:                     j.Market,
		AssetClass:                 j.AssetClass,
		MaxSkewScale:               maxSkewScale,
		MaxFundingRate:             maxFundingRate,
		FundingInterval:            j.FundingIntervalS,
		BaseBorrowingRate:          baseBorrowingRate,
		BorrowingInterval:          j.BorrowingIntervalS,
		DecreasePositionFeeRateBPS: j.DecreasePositionFeeRateBPS,
		Sequence:                   j.Sequence,
	}, nil
}
