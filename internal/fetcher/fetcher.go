package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"go.uber.org/zap"
	"okx-stoch-sentry/internal/metrics"
	"okx-stoch-sentry/pkg/retry"
	"okx-stoch-sentry/pkg/types"
)

// DataSource K线数据源
type DataSource interface {
	Candles(ctx context.Context, symbol string, g types.Granularity, limit int) ([]types.KLine, error)
}

// DataFetcher 带限频重试的K线获取器
type DataFetcher struct {
	source  DataSource
	config  types.FetchConfig
	backoff retry.Backoff
	sleep   func(ctx context.Context, d time.Duration) error
	metrics *metrics.Recorder
}

// NewDataFetcher 创建K线获取器
func NewDataFetcher(source DataSource, config types.FetchConfig, recorder *metrics.Recorder) *DataFetcher {
	if config.Limit < 1 {
		config.Limit = 200
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 5
	}

	return &DataFetcher{
		source:  source,
		config:  config,
		backoff: retry.ExponentialJitter(config.BaseDelay, config.JitterMin, config.JitterMax, rand.New(rand.NewSource(time.Now().UnixNano()))),
		sleep:   retry.SleepContext,
		metrics: recorder,
	}
}

// Fetch 获取交易对最近的K线窗口
// 限频或超时时按 base×2^i + 抖动 退避重试；其他错误立即返回；
// K线数量少于minBars时返回ErrInsufficientData，minBars<=0时使用配置值
func (f *DataFetcher) Fetch(ctx context.Context, symbol string, g types.Granularity, minBars int) (types.PriceWindow, error) {
	if minBars <= 0 {
		minBars = f.config.MinBars
	}

	policy := retry.Policy{
		MaxAttempts: f.config.MaxAttempts,
		Backoff:     f.backoff,
		Sleep:       f.sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			zap.L().Warn("🔄 请求受限，稍后重试",
				zap.String("symbol", symbol),
				zap.String("granularity", g.String()),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(err))
		},
	}

	bars, attempts, err := retry.Do(ctx, policy, f.classify(ctx), func(ctx context.Context, attempt int) ([]types.KLine, error) {
		attemptCtx := ctx
		if f.config.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, f.config.Timeout)
			defer cancel()
		}

		bars, err := f.source.Candles(attemptCtx, symbol, g, f.config.Limit)
		f.metrics.RecordFetch(err != nil && attempt+1 < f.config.MaxAttempts && f.classify(ctx)(err) == retry.Transient)
		return bars, err
	})
	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			return types.PriceWindow{}, fmt.Errorf("%w: %s %s: %w", types.ErrFetchExhausted, symbol, g, err)
		}
		return types.PriceWindow{}, fmt.Errorf("fetch %s %s: %w", symbol, g, err)
	}

	if len(bars) < minBars {
		return types.PriceWindow{}, fmt.Errorf("%w: %s %s got %d bars, need %d",
			types.ErrInsufficientData, symbol, g, len(bars), minBars)
	}

	window := types.PriceWindow{Symbol: symbol, Granularity: g, Bars: bars}
	last, _ := window.Last()
	zap.L().Debug("✅ K线获取完成",
		zap.String("symbol", symbol),
		zap.String("granularity", g.String()),
		zap.Int("bars", window.Len()),
		zap.Time("last_bar", last.OpenTime),
		zap.Int("attempts", attempts))

	return window, nil
}

// classify 限频与单次请求超时可重试；调用方取消不重试
func (f *DataFetcher) classify(parent context.Context) retry.Classifier {
	return func(err error) retry.Class {
		if parent.Err() != nil {
			return retry.Permanent
		}
		if errors.Is(err, types.ErrRateLimited) || errors.Is(err, context.DeadlineExceeded) {
			return retry.Transient
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return retry.Transient
		}
		return retry.Permanent
	}
}
