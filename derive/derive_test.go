package derive

import (
	"testing"

	"github.com/wurong98/feature-hft-exchange/models"
)

func statsWith(available, frozen, initial float64) models.Strategy {
	return models.Strategy{
		Available:      models.Num(available),
		Frozen:         models.Num(frozen),
		InitialBalance: models.Num(initial),
	}
}

func TestComputeEquityAndMargin(t *testing.T) {
	m := Compute(statsWith(7000, 3000, 10000), nil)
	if m.TotalEquity != 10000 {
		t.Errorf("equity: got %v", m.TotalEquity)
	}
	if m.MarginUsage != 30 {
		t.Errorf("margin usage: got %v", m.MarginUsage)
	}
}

func TestComputeZeroInitialBalance(t *testing.T) {
	m := Compute(statsWith(100, 50, 0), nil)
	if m.MarginUsage != 0 {
		t.Errorf("zero initial balance must not divide: got %v", m.MarginUsage)
	}
	if m.Risk != RiskLow {
		t.Errorf("risk: got %s", m.Risk)
	}
}

func TestComputeMissingStats(t *testing.T) {
	m := Compute(models.Strategy{}, nil)
	if m.TotalEquity != 0 || m.MarginUsage != 0 || m.UnrealizedPnl != 0 || m.AvgLeverage != 0 {
		t.Errorf("missing raw stats must degrade to zero: %+v", m)
	}
}

func TestRiskTiers(t *testing.T) {
	cases := []struct {
		frozen float64
		want   RiskTier
	}{
		{1000, RiskLow},    // 10%
		{3000, RiskMedium}, // 30%
		{6000, RiskHigh},   // 60%
		{2000, RiskLow},    // exactly 20% stays low
		{5000, RiskMedium}, // exactly 50% stays medium
	}
	for _, c := range cases {
		m := Compute(statsWith(0, c.frozen, 10000), nil)
		if m.Risk != c.want {
			t.Errorf("frozen=%v: got %s want %s", c.frozen, m.Risk, c.want)
		}
	}
}

func TestPositionAggregates(t *testing.T) {
	positions := []models.Position{
		{UnrealizedPnl: models.Num(120), Leverage: models.Num(10)},
		{UnrealizedPnl: models.Num(-20), Leverage: models.Num(20)},
	}
	m := Compute(statsWith(0, 0, 0), positions)
	if m.UnrealizedPnl != 100 {
		t.Errorf("aggregate upnl: got %v", m.UnrealizedPnl)
	}
	if m.AvgLeverage != 15 {
		t.Errorf("avg leverage: got %v", m.AvgLeverage)
	}
	if m.PositionCount != 2 {
		t.Errorf("position count: got %d", m.PositionCount)
	}
}

func TestEmptyPositionSet(t *testing.T) {
	m := Compute(statsWith(0, 0, 0), nil)
	if m.AvgLeverage != 0 || m.UnrealizedPnl != 0 {
		t.Errorf("empty set must not produce NaN: %+v", m)
	}
}
