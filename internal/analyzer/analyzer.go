package analyzer

import (
	"time"

	"go.uber.org/zap"
	"okx-stoch-sentry/internal/metrics"
	"okx-stoch-sentry/internal/strategy/indicators"
	"okx-stoch-sentry/internal/strategy/signals"
	"okx-stoch-sentry/pkg/types"
)

// AnalysisEngine 分析引擎：计算多重随机振荡器并经冷却表过滤出预警
type AnalysisEngine struct {
	profile  indicators.Profile
	registry *CooldownRegistry
	metrics  *metrics.Recorder
}

func NewAnalysisEngine(profile indicators.Profile, registry *CooldownRegistry, recorder *metrics.Recorder) *AnalysisEngine {
	return &AnalysisEngine{
		profile:  profile,
		registry: registry,
		metrics:  recorder,
	}
}

// Profile 当前使用的参数组
func (ae *AnalysisEngine) Profile() indicators.Profile {
	return ae.profile
}

// Evaluate 计算窗口的合成信号，不修改任何状态，可并发调用
func (ae *AnalysisEngine) Evaluate(window types.PriceWindow) ([]types.StochasticResult, types.SignalSet) {
	results := indicators.ComputeAll(window, ae.profile)
	return results, signals.Combine(results)
}

// Gate 对信号做冷却检查，返回允许发送的预警
// 会修改冷却表，调用方需保证同一时刻只有一个写入者
func (ae *AnalysisEngine) Gate(symbol string, granularity types.Granularity, set types.SignalSet, now time.Time) []types.AlertEvent {
	var events []types.AlertEvent

	for _, kind := range set.Kinds() {
		subject := SubjectLine(symbol, granularity, kind)
		if !ae.registry.TryFire(subject, granularity, now) {
			ae.metrics.RecordAlert(string(kind), false)
			zap.L().Debug("⏳ 冷却中，跳过预警",
				zap.String("subject", subject),
				zap.Duration("cooldown", ae.registry.Window(granularity)))
			continue
		}

		ae.metrics.RecordAlert(string(kind), true)
		events = append(events, types.AlertEvent{
			Symbol:       symbol,
			Granularity:  granularity,
			Kind:         kind,
			Subject:      subject,
			RenderedLine: RenderLine(subject, kind),
		})
	}

	return events
}
