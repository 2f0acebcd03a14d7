package analyzer

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"okx-stoch-sentry/internal/metrics"
	"okx-stoch-sentry/internal/strategy/indicators"
	"okx-stoch-sentry/pkg/types"
)

func fallingWindow(n int) types.PriceWindow {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.KLine, n)
	for i := range bars {
		high := 1000 - float64(i)
		bars[i] = types.KLine{OpenTime: start.Add(time.Duration(i) * time.Hour), Open: high, High: high, Low: high - 1, Close: high - 1}
	}
	return types.PriceWindow{Symbol: "BTC-USDT-SWAP", Granularity: types.Granularity1h, Bars: bars}
}

func newEngine(t *testing.T) *AnalysisEngine {
	t.Helper()
	profile, err := indicators.ProfileByName(indicators.ProfileMedium, nil, 2)
	require.NoError(t, err)
	return NewAnalysisEngine(profile, NewCooldownRegistry(5), nil)
}

func TestAnalysisEngine_Evaluate(t *testing.T) {
	engine := newEngine(t)

	assert.Equal(t, indicators.ProfileMedium, engine.Profile().Name)
	results, set := engine.Evaluate(fallingWindow(150))

	assert.Len(t, results, 4)
	assert.True(t, set.Oversold)
	assert.False(t, set.Overbought)
}

func TestAnalysisEngine_GateAppliesCooldown(t *testing.T) {
	profile, err := indicators.ProfileByName(indicators.ProfileMedium, nil, 2)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	recorder := metrics.New(reg)
	engine := NewAnalysisEngine(profile, NewCooldownRegistry(5), recorder)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	set := types.SignalSet{Oversold: true}

	events := engine.Gate("BTC-USDT-SWAP", types.Granularity1h, set, t0)
	require.Len(t, events, 1)
	assert.Equal(t, "BTC-USDT-SWAP 1h - 超卖信号", events[0].Subject)
	assert.Equal(t, types.AlertOversold, events[0].Kind)
	assert.Contains(t, events[0].RenderedLine, "color: red;")

	assert.Empty(t, engine.Gate("BTC-USDT-SWAP", types.Granularity1h, set, t0.Add(time.Hour)))
	assert.Len(t, engine.Gate("BTC-USDT-SWAP", types.Granularity1h, set, t0.Add(5*time.Hour)), 1)

	count, err := testutil.GatherAndCount(reg, "sentry_alerts_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAnalysisEngine_GateNoSignal(t *testing.T) {
	engine := newEngine(t)
	assert.Empty(t, engine.Gate("BTC-USDT-SWAP", types.Granularity1h, types.SignalSet{}, time.Now()))
}
