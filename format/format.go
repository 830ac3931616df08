// Package format turns raw numeric and time fields into display-safe
// strings. Every function tolerates missing or malformed input and returns
// the sentinel instead of failing.
package format

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/wurong98/feature-hft-exchange/models"
)

// Missing is rendered for absent or non-numeric values.
const Missing = "—"

// Amount renders a balance-like value with magnitude scaling: |v| >= 1M gets
// an "M" suffix, |v| >= 1K a "K" suffix, both at 2 decimals; anything smaller
// is fixed-point at the given decimal count.
func Amount(n models.Number, decimals int) string {
	v, ok := n.Value()
	if !ok {
		return Missing
	}
	if decimals < 0 {
		decimals = 2
	}
	switch {
	case math.Abs(v) >= 1_000_000:
		return strconv.FormatFloat(v/1_000_000, 'f', 2, 64) + "M"
	case math.Abs(v) >= 1_000:
		return strconv.FormatFloat(v/1_000, 'f', 2, 64) + "K"
	default:
		return strconv.FormatFloat(v, 'f', decimals, 64)
	}
}

// Signed is Amount with an explicit "+" on non-negative values, the way PnL
// and ROI cells are rendered.
func Signed(n models.Number, decimals int) string {
	v, ok := n.Value()
	if !ok {
		return Missing
	}
	if v >= 0 {
		return "+" + Amount(n, decimals)
	}
	return Amount(n, decimals)
}

// Price renders a price with tiered precision: low-price instruments need
// sub-cent resolution.
func Price(n models.Number) string {
	v, ok := n.Value()
	if !ok {
		return Missing
	}
	switch {
	case v >= 1000:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case v >= 1:
		return strconv.FormatFloat(v, 'f', 4, 64)
	default:
		return strconv.FormatFloat(v, 'f', 6, 64)
	}
}

// RelativeTime renders how long ago ts happened relative to now, falling
// back to an absolute local date past 24h.
func RelativeTime(ts time.Time, now time.Time) string {
	if ts.IsZero() {
		return Missing
	}
	diff := now.Sub(ts)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return ts.Local().Format("Jan 2 15:04")
	}
}

// TrendClass maps a signed value to its display styling class. Missing
// values count as flat, which styles positive.
func TrendClass(n models.Number) string {
	if n.Float() >= 0 {
		return "positive"
	}
	return "negative"
}

// Leverage renders a leverage multiple, e.g. "10x". Averaged leverage can be
// fractional and keeps one decimal, e.g. "7.5x".
func Leverage(n models.Number) string {
	v, ok := n.Value()
	if !ok {
		return Missing
	}
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64) + "x"
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + "x"
}
