package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"okx-stoch-sentry/internal/analyzer"
	"okx-stoch-sentry/internal/metrics"
	"okx-stoch-sentry/pkg/retry"
	"okx-stoch-sentry/pkg/types"
)

// WindowFetcher K线窗口获取
type WindowFetcher interface {
	Fetch(ctx context.Context, symbol string, g types.Granularity, minBars int) (types.PriceWindow, error)
}

// Sender 批量通知发送
type Sender interface {
	Send(ctx context.Context, subject, body string, recipients []string) bool
	SendAsync(ctx context.Context, subject, body string, recipients []string) <-chan bool
}

// Archiver K线归档，失败不影响预警
type Archiver interface {
	SaveWindow(ctx context.Context, window types.PriceWindow) error
}

// Options 调度参数
type Options struct {
	Interval time.Duration // 两轮之间的等待
	Workers  int           // 1 表示顺序执行
	MinBars  int
	Async    bool // 通知是否在后台发送
}

// CycleReport 一轮评估的结果汇总
type CycleReport struct {
	Pairs      int
	Evaluated  int
	Skipped    int
	Alerts     []types.AlertEvent
	Dispatched bool
}

// ErrPanic 评估过程中出现的未预期错误，调度循环随之退出
var ErrPanic = errors.New("unexpected panic in monitoring cycle")

// Scheduler 监控调度器
type Scheduler struct {
	fetcher       WindowFetcher
	engine        *analyzer.AnalysisEngine
	sender        Sender
	archiver      Archiver
	metrics       *metrics.Recorder
	symbols       []string
	granularities []types.Granularity
	recipients    []string
	options       Options

	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	state   atomic.Int32
	pending sync.WaitGroup
}

func NewScheduler(
	fetcher WindowFetcher,
	engine *analyzer.AnalysisEngine,
	sender Sender,
	symbols []string,
	granularities []types.Granularity,
	recipients []string,
	options Options,
	recorder *metrics.Recorder,
) *Scheduler {
	if options.Interval <= 0 {
		options.Interval = 5 * time.Minute
	}
	if options.Workers < 1 {
		options.Workers = 1
	}

	return &Scheduler{
		fetcher:       fetcher,
		engine:        engine,
		sender:        sender,
		metrics:       recorder,
		symbols:       symbols,
		granularities: granularities,
		recipients:    recipients,
		options:       options,
		now:           time.Now,
		sleep:         retry.SleepContext,
	}
}

// SetArchiver 启用K线归档
func (s *Scheduler) SetArchiver(archiver Archiver) {
	s.archiver = archiver
}

// State 当前状态
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) setState(state State) {
	s.state.Store(int32(state))
}

// Start 循环执行评估直到ctx取消；出现未预期错误时记录日志并返回该错误
func (s *Scheduler) Start(ctx context.Context) error {
	zap.L().Info("🚀 调度器启动",
		zap.String("profile", s.engine.Profile().Name),
		zap.Int("symbols", len(s.symbols)),
		zap.Int("granularities", len(s.granularities)),
		zap.Int("workers", s.options.Workers),
		zap.Duration("interval", s.options.Interval))
	defer s.pending.Wait()

	for {
		report, err := s.runCycleSafely(ctx)
		if err != nil {
			if ctx.Err() != nil {
				zap.L().Info("📴 调度器已停止")
				return nil
			}
			zap.L().Error("❌ 调度循环异常退出", zap.Error(err))
			return err
		}

		zap.L().Info("本轮监控完成，等待下一轮...",
			zap.Int("pairs", report.Pairs),
			zap.Int("evaluated", report.Evaluated),
			zap.Int("skipped", report.Skipped),
			zap.Int("alerts", len(report.Alerts)),
			zap.Duration("next_in", s.options.Interval))

		if err := s.sleep(ctx, s.options.Interval); err != nil {
			zap.L().Info("📴 调度器已停止")
			return nil
		}
	}
}

func (s *Scheduler) runCycleSafely(ctx context.Context) (report CycleReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		s.setState(StateIdle)
	}()
	return s.RunCycle(ctx)
}

type pair struct {
	index       int
	symbol      string
	granularity types.Granularity
}

type pairResult struct {
	pair
	signals types.SignalSet
	err     error
	panic   any
}

// RunCycle 执行一轮：获取 → 计算 → 汇总 → 发送
// 交易对按名称排序，周期按配置顺序；单个交易对失败只记录日志
func (s *Scheduler) RunCycle(ctx context.Context) (CycleReport, error) {
	started := time.Now()
	pairs := s.pairs()
	report := CycleReport{Pairs: len(pairs)}

	results, err := s.evaluateAll(ctx, pairs)
	if err != nil {
		return report, err
	}

	s.setState(StateAggregating)
	for _, result := range results {
		if result.panic != nil {
			panic(result.panic)
		}
		if result.err != nil {
			report.Skipped++
			s.logPairError(result)
			continue
		}
		report.Evaluated++
		s.metrics.RecordPair(metrics.OutcomeOK)
		report.Alerts = append(report.Alerts, s.engine.Gate(result.symbol, result.granularity, result.signals, s.now())...)
	}

	if len(report.Alerts) > 0 {
		s.setState(StateDispatching)
		s.dispatch(ctx, report.Alerts)
		report.Dispatched = true
	}

	s.setState(StateIdle)
	s.metrics.RecordCycle(time.Since(started))
	return report, nil
}

func (s *Scheduler) pairs() []pair {
	symbols := append([]string(nil), s.symbols...)
	sort.Strings(symbols)

	pairs := make([]pair, 0, len(symbols)*len(s.granularities))
	for _, symbol := range symbols {
		for _, g := range s.granularities {
			pairs = append(pairs, pair{index: len(pairs), symbol: symbol, granularity: g})
		}
	}
	return pairs
}

// evaluateAll 获取并计算全部交易对，结果按pairs的顺序返回
func (s *Scheduler) evaluateAll(ctx context.Context, pairs []pair) ([]pairResult, error) {
	results := make([]pairResult, len(pairs))

	if s.options.Workers == 1 {
		for _, p := range pairs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[p.index] = s.evaluatePair(ctx, p)
		}
		return results, nil
	}

	jobs := make(chan pair)
	out := make(chan pairResult)

	var wg sync.WaitGroup
	for i := 0; i < s.options.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				out <- s.evaluatePair(ctx, p)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range pairs {
			select {
			case jobs <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	for result := range out {
		results[result.index] = result
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// evaluatePair 获取窗口并计算信号，不触碰冷却表
func (s *Scheduler) evaluatePair(ctx context.Context, p pair) (result pairResult) {
	result.pair = p
	defer func() {
		if r := recover(); r != nil {
			result.panic = r
		}
	}()

	s.setState(StateFetching)
	window, err := s.fetcher.Fetch(ctx, p.symbol, p.granularity, s.options.MinBars)
	if err != nil {
		result.err = err
		return result
	}

	if s.archiver != nil {
		if err := s.archiver.SaveWindow(ctx, window); err != nil {
			zap.L().Warn("K线归档失败", zap.String("symbol", p.symbol), zap.String("granularity", p.granularity.String()), zap.Error(err))
		}
	}

	s.setState(StateEvaluating)
	_, result.signals = s.engine.Evaluate(window)
	return result
}

func (s *Scheduler) logPairError(result pairResult) {
	fields := []zap.Field{
		zap.String("symbol", result.symbol),
		zap.String("granularity", result.granularity.String()),
		zap.Error(result.err),
	}

	switch {
	case errors.Is(result.err, types.ErrInsufficientData):
		s.metrics.RecordPair(metrics.OutcomeInsufficientData)
		zap.L().Info("数据不足，跳过", fields...)
	case errors.Is(result.err, types.ErrFetchExhausted):
		s.metrics.RecordPair(metrics.OutcomeRateLimited)
		zap.L().Warn("⚠️ 请求持续受限，跳过", fields...)
	default:
		s.metrics.RecordPair(metrics.OutcomeError)
		zap.L().Error("❌ 分析出错", fields...)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, events []types.AlertEvent) {
	subject, body := analyzer.BuildMessage(events, s.now())
	zap.L().Info("📨 发送本轮预警", zap.String("subject", subject), zap.Int("alerts", len(events)))

	if !s.options.Async {
		s.sender.Send(ctx, subject, body, s.recipients)
		return
	}

	done := s.sender.SendAsync(ctx, subject, body, s.recipients)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		<-done
	}()
}
