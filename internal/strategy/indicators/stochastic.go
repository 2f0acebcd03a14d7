package indicators

import (
	"math"

	"okx-stoch-sentry/pkg/types"
)

// DefaultExtraSmoothing K/D最后一道简单移动平均的周期
const DefaultExtraSmoothing = 2

// StochasticCalculator 平滑随机振荡器计算器
type StochasticCalculator struct {
	config         types.OscillatorConfig
	extraSmoothing int
}

// NewStochasticCalculator 创建随机振荡器计算器
func NewStochasticCalculator(config types.OscillatorConfig, extraSmoothing int) *StochasticCalculator {
	if extraSmoothing < 1 {
		extraSmoothing = DefaultExtraSmoothing
	}
	return &StochasticCalculator{
		config:         config,
		extraSmoothing: extraSmoothing,
	}
}

// Calculate 计算最新K线上的K/D值
// 原始%K = 100 × (close − 最低价) / (最高价 − 最低价)，先做EMA(smoothK)得到K，
// 再对K做EMA(smoothD)得到D，最后两者各做一次SMA(extraSmoothing)
func (sc *StochasticCalculator) Calculate(klines []types.KLine) types.StochasticResult {
	cfg := sc.config
	if cfg.Length < 1 || cfg.SmoothK < 1 || cfg.SmoothD < 1 || len(klines) < cfg.Length {
		return types.StochasticResult{}
	}

	rawK := sc.calculateRawK(klines)
	// 最新一根K线区间为零时无法给出判断
	if math.IsNaN(rawK[len(rawK)-1]) {
		return types.StochasticResult{}
	}

	smoothedK := ema(rawK, cfg.SmoothK)
	smoothedD := ema(smoothedK, cfg.SmoothD)

	finalK := sma(smoothedK, sc.extraSmoothing)
	finalD := sma(smoothedD, sc.extraSmoothing)

	return types.StochasticResult{
		K: bounded(finalK[len(finalK)-1]),
		D: bounded(finalD[len(finalD)-1]),
	}
}

// calculateRawK 计算原始%K序列，预热不足或区间为零的位置为NaN
func (sc *StochasticCalculator) calculateRawK(klines []types.KLine) []float64 {
	length := sc.config.Length
	result := make([]float64, len(klines))

	for i := range klines {
		if i+1 < length {
			result[i] = math.NaN()
			continue
		}

		highest := klines[i-length+1].High
		lowest := klines[i-length+1].Low
		for j := i - length + 2; j <= i; j++ {
			if klines[j].High > highest {
				highest = klines[j].High
			}
			if klines[j].Low < lowest {
				lowest = klines[j].Low
			}
		}

		priceRange := highest - lowest
		if priceRange == 0 || math.IsNaN(priceRange) || math.IsInf(priceRange, 0) {
			result[i] = math.NaN()
			continue
		}

		result[i] = clamp(100 * (klines[i].Close - lowest) / priceRange)
	}

	return result
}

// ema 指数移动平均，alpha = 2/(span+1)，以第一个有效值为种子
// 中途出现NaN时输出沿用上一个平均值，但旧值的权重仍按(1-alpha)逐根衰减，
// 下一个有效值到来时按 (w·prev + alpha·v) / (w + alpha) 合并
func ema(values []float64, span int) []float64 {
	result := make([]float64, len(values))
	alpha := 2.0 / float64(span+1)

	prev := math.NaN()
	oldWeight := 1.0
	for i, v := range values {
		switch {
		case math.IsNaN(prev):
			if !math.IsNaN(v) {
				prev = v
			}
		default:
			oldWeight *= 1 - alpha
			if !math.IsNaN(v) {
				prev = (oldWeight*prev + alpha*v) / (oldWeight + alpha)
				oldWeight = 1
			}
		}
		result[i] = prev
	}

	return result
}

// sma 简单移动平均，窗口内任一值为NaN时结果为NaN
func sma(values []float64, period int) []float64 {
	result := make([]float64, len(values))

	for i := range values {
		if i+1 < period {
			result[i] = math.NaN()
			continue
		}

		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += values[j]
		}
		result[i] = sum / float64(period)
	}

	return result
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func bounded(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	v = clamp(v)
	return &v
}

// ComputeStochastic 计算单个参数组在窗口末端的K/D值
func ComputeStochastic(window types.PriceWindow, config types.OscillatorConfig, extraSmoothing int) types.StochasticResult {
	return NewStochasticCalculator(config, extraSmoothing).Calculate(window.Bars)
}

// ComputeAll 按声明顺序计算策略中全部参数组
func ComputeAll(window types.PriceWindow, profile Profile) []types.StochasticResult {
	results := make([]types.StochasticResult, 0, len(profile.Configs))
	for _, config := range profile.Configs {
		results = append(results, ComputeStochastic(window, config, profile.ExtraSmoothing))
	}
	return results
}
