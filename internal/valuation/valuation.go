// Package valuation turns an item's value and uncertainty into the price
// range shown to the player.
package valuation

import (
	"math"

	"github.com/talgya/pawnbroker/internal/shop"
)

// ComputeRange returns the visible range for an item. The range is centred on
// the perceived value when one is set, otherwise on the real value, and spans
// ±uncertainty of that anchor. Bounds are rounded to human-friendly figures.
func ComputeRange(realValue float64, perceived *float64, uncertainty float64) shop.Range {
	anchor := realValue
	if perceived != nil {
		anchor = *perceived
	}
	if uncertainty <= 0 {
		v := HumanRound(anchor)
		return shop.Range{v, v}
	}

	low := HumanRound(anchor * (1 - uncertainty))
	high := HumanRound(anchor * (1 + uncertainty))
	if anchor >= 0 && low < 0 {
		low = 0
	}
	return shop.Range{low, high}.Normalize()
}

// HumanRound rounds to the nearest whole number below 100 and to the nearest
// ten at or above it.
func HumanRound(v float64) float64 {
	if math.Abs(v) < 100 {
		return math.Round(v)
	}
	return math.Round(v/10) * 10
}
