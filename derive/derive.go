// Package derive computes display and risk metrics from a strategy's raw
// stats and position set. Missing or malformed raw fields degrade to 0; no
// derived value is ever NaN.
package derive

import (
	"github.com/wurong98/feature-hft-exchange/models"
)

// RiskTier is the coarse margin-utilization label.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// Metrics are the derived per-strategy figures the detail panel renders.
type Metrics struct {
	TotalEquity   float64
	MarginUsage   float64 // percent of initial balance frozen as margin
	Risk          RiskTier
	UnrealizedPnl float64
	AvgLeverage   float64
	PositionCount int
}

// Compute derives Metrics from raw stats and the current position set.
func Compute(stats models.Strategy, positions []models.Position) Metrics {
	available := stats.Available.Float()
	frozen := stats.Frozen.Float()
	initial := stats.InitialBalance.Float()

	m := Metrics{
		TotalEquity:   available + frozen,
		PositionCount: len(positions),
	}

	if initial > 0 {
		m.MarginUsage = frozen / initial * 100
	}
	m.Risk = riskTier(m.MarginUsage)

	for _, p := range positions {
		m.UnrealizedPnl += p.UnrealizedPnl.Float()
		m.AvgLeverage += p.Leverage.Float()
	}
	if len(positions) > 0 {
		m.AvgLeverage /= float64(len(positions))
	}
	return m
}

// riskTier resolves highest-first so the strictest matching tier wins.
func riskTier(marginUsage float64) RiskTier {
	switch {
	case marginUsage > 50:
		return RiskHigh
	case marginUsage > 20:
		return RiskMedium
	default:
		return RiskLow
	}
}
