package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 交易对评估结果
const (
	OutcomeOK               = "ok"
	OutcomeInsufficientData = "insufficient_data"
	OutcomeRateLimited      = "rate_limited"
	OutcomeError            = "error"
)

// Recorder Prometheus指标记录器，nil 接收者上的方法均为空操作
type Recorder struct {
	cycles           prometheus.Counter
	cycleDuration    prometheus.Histogram
	pairEvaluations  *prometheus.CounterVec
	fetchAttempts    prometheus.Counter
	fetchRetries     prometheus.Counter
	alerts           *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	deliveryAttempts prometheus.Counter
}

// New 在reg上注册全部指标，reg为nil时使用默认注册表
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		cycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentry_cycles_total",
			Help: "Total number of completed evaluation cycles",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentry_cycle_duration_seconds",
			Help:    "Duration of one evaluation cycle",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		pairEvaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_pair_evaluations_total",
			Help: "Instrument/granularity evaluations by outcome",
		}, []string{"outcome"}),
		fetchAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentry_fetch_attempts_total",
			Help: "Candle requests sent to the market data source",
		}),
		fetchRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentry_fetch_retries_total",
			Help: "Candle requests retried after rate limiting",
		}),
		alerts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_alerts_total",
			Help: "Alerts by kind and cooldown result",
		}, []string{"kind", "result"}),
		dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_dispatches_total",
			Help: "Batched notifications by delivery result",
		}, []string{"result"}),
		deliveryAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentry_delivery_attempts_total",
			Help: "Notification delivery attempts",
		}),
	}
}

// RecordCycle 记录一轮评估
func (r *Recorder) RecordCycle(d time.Duration) {
	if r == nil {
		return
	}
	r.cycles.Inc()
	r.cycleDuration.Observe(d.Seconds())
}

// RecordPair 记录单个交易对/周期的评估结果
func (r *Recorder) RecordPair(outcome string) {
	if r == nil {
		return
	}
	r.pairEvaluations.WithLabelValues(outcome).Inc()
}

// RecordFetch 记录一次K线请求，retried表示之后还会再试
func (r *Recorder) RecordFetch(retried bool) {
	if r == nil {
		return
	}
	r.fetchAttempts.Inc()
	if retried {
		r.fetchRetries.Inc()
	}
}

// RecordAlert 记录预警是否通过冷却检查
func (r *Recorder) RecordAlert(kind string, fired bool) {
	if r == nil {
		return
	}
	result := "suppressed"
	if fired {
		result = "fired"
	}
	r.alerts.WithLabelValues(kind, result).Inc()
}

// RecordDispatch 记录一次批量通知的最终结果和尝试次数
func (r *Recorder) RecordDispatch(delivered bool, attempts int) {
	if r == nil {
		return
	}
	result := "failed"
	if delivered {
		result = "delivered"
	}
	r.dispatches.WithLabelValues(result).Inc()
	r.deliveryAttempts.Add(float64(attempts))
}
