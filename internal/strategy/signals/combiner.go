package signals

import "okx-stoch-sentry/pkg/types"

const (
	// OversoldThreshold 所有K/D严格低于该值视为超卖
	OversoldThreshold = 20.0
	// OverboughtThreshold 所有K/D严格高于该值视为超买
	OverboughtThreshold = 80.0
)

// Combine 把多个振荡器的K/D合成为一组信号
// 未定义的值不参与判断；过滤后K或D为空时不给出任何信号
func Combine(results []types.StochasticResult) types.SignalSet {
	kValues := make([]float64, 0, len(results))
	dValues := make([]float64, 0, len(results))
	for _, r := range results {
		if r.K != nil {
			kValues = append(kValues, *r.K)
		}
		if r.D != nil {
			dValues = append(dValues, *r.D)
		}
	}

	if len(kValues) == 0 || len(dValues) == 0 {
		return types.SignalSet{}
	}

	below := func(v float64) bool { return v < OversoldThreshold }
	above := func(v float64) bool { return v > OverboughtThreshold }

	return types.SignalSet{
		Oversold:   all(kValues, below) && all(dValues, below),
		Overbought: all(kValues, above) && all(dValues, above),
	}
}

func all(values []float64, pred func(float64) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}
