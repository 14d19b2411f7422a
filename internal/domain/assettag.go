package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidAssetTag is returned when an asset symbol or confidence is out of
// range.
var ErrInvalidAssetTag = errors.New("invalid asset tag")

var assetSymbolPattern = regexp.MustCompile(`^[A-Z]{1,10}$`)

// ConfidenceBand groups asset-mention confidence into coarse buckets.
type ConfidenceBand string

// Confidence bands: high above 0.8, medium in [0.5, 0.8], low below 0.5.
const (
	ConfidenceHigh   ConfidenceBand = "high"
	ConfidenceMedium ConfidenceBand = "medium"
	ConfidenceLow    ConfidenceBand = "low"
)

// AssetTag marks a detected mention of a crypto asset in a piece of content.
type AssetTag struct {
	Symbol     string  `json:"symbol"`
	Confidence float64 `json:"confidence"`
}

// NewAssetTag validates the symbol and confidence. The symbol is upper-cased
// before validation.
func NewAssetTag(symbol string, confidence float64) (AssetTag, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !assetSymbolPattern.MatchString(symbol) {
		return AssetTag{}, fmt.Errorf("%w: symbol %q must be 1-10 uppercase letters", ErrInvalidAssetTag, symbol)
	}
	if confidence < 0 || confidence > 1 {
		return AssetTag{}, fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidAssetTag, confidence)
	}
	return AssetTag{Symbol: symbol, Confidence: confidence}, nil
}

// Band returns the confidence band for the tag.
func (t AssetTag) Band() ConfidenceBand {
	switch {
	case t.Confidence > 0.8:
		return ConfidenceHigh
	case t.Confidence >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
