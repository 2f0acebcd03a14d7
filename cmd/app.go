package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"okx-stoch-sentry/internal/analyzer"
	"okx-stoch-sentry/internal/fetcher"
	"okx-stoch-sentry/internal/metrics"
	"okx-stoch-sentry/internal/notifier"
	"okx-stoch-sentry/internal/scheduler"
	"okx-stoch-sentry/internal/storage"
	"okx-stoch-sentry/internal/strategy/indicators"
	"okx-stoch-sentry/internal/universe"
	"okx-stoch-sentry/pkg/types"
)

// App 应用程序管理器
type App struct {
	config *types.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	scheduler     *scheduler.Scheduler
	metricsServer *metrics.Server
	closers       []func() error
	done          chan struct{}
	err           error
}

// NewApp 创建应用程序实例并装配各模块
func NewApp(config *types.Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if err := app.setup(); err != nil {
		cancel()
		app.close()
		return nil, err
	}
	return app, nil
}

func (app *App) setup() error {
	cfg := app.config

	profile, err := indicators.ProfileByName(cfg.Strategy.Profile, cfg.Strategy.Custom, cfg.Strategy.ExtraSmoothing)
	if err != nil {
		return err
	}
	granularities, err := types.ParseGranularities(cfg.Strategy.Granularities)
	if err != nil {
		return err
	}
	if cfg.Fetch.MinBars < profile.MaxLookback() {
		zap.L().Warn("⚠️ fetch.min_bars 小于最长回看周期，慢线可能始终无有效值",
			zap.Int("min_bars", cfg.Fetch.MinBars),
			zap.Int("max_lookback", profile.MaxLookback()))
	}

	recorder := metrics.New(nil)
	if cfg.Metrics.Addr != "" {
		app.metricsServer = metrics.NewServer(cfg.Metrics.Addr, nil)
	}

	httpClient := fetcher.NewHTTPClient(cfg.Network)
	okxClient := fetcher.NewOKXClient(cfg.OKX.BaseURL, httpClient)
	dataFetcher := fetcher.NewDataFetcher(okxClient, cfg.Fetch, recorder)

	symbols := universe.NewResolver(okxClient, cfg.Universe).Resolve(app.ctx)
	if len(symbols) == 0 {
		return errors.New("no instruments to monitor")
	}

	recipients, err := universe.LoadLines(cfg.Notify.RecipientsFile)
	if err != nil {
		zap.L().Warn("⚠️ 读取收件人列表失败", zap.String("file", cfg.Notify.RecipientsFile), zap.Error(err))
	}

	transport, err := notifier.NewTransport(cfg, httpClient)
	if err != nil {
		return fmt.Errorf("创建通知渠道失败: %w", err)
	}
	if redisTransport, ok := transport.(*notifier.RedisTransport); ok {
		app.closers = append(app.closers, redisTransport.Shutdown)
	}
	dispatcher := notifier.NewDispatcher(transport, cfg.Notify.From, notifier.OptionsFromConfig(cfg.Notify), recorder)

	engine := analyzer.NewAnalysisEngine(profile, analyzer.NewCooldownRegistry(cfg.Alert.CooldownMultiplier), recorder)
	app.scheduler = scheduler.NewScheduler(
		dataFetcher,
		engine,
		dispatcher,
		symbols,
		granularities,
		recipients,
		scheduler.Options{
			Interval: cfg.Scheduler.Interval,
			Workers:  cfg.Scheduler.Workers,
			MinBars:  cfg.Fetch.MinBars,
			Async:    cfg.Notify.Mode == "async",
		},
		recorder,
	)

	// K线归档可选，连接失败不影响预警
	if cfg.Database.MySQL.Enabled {
		archive, err := storage.Open(cfg.Database.MySQL)
		if err != nil {
			zap.L().Error("❌ 初始化K线归档失败，继续运行", zap.Error(err))
		} else {
			app.scheduler.SetArchiver(archive)
			app.closers = append(app.closers, archive.Close)
		}
	}

	zap.L().Info("📋 监控配置",
		zap.String("profile", profile.Name),
		zap.Strings("symbols", symbols),
		zap.Strings("granularities", cfg.Strategy.Granularities),
		zap.Int("recipients", len(recipients)),
		zap.String("transport", transport.Name()),
		zap.String("mode", cfg.Notify.Mode))

	return nil
}

// Start 启动应用程序
func (app *App) Start() {
	zap.L().Info("🚀 OKX Stoch Sentry 启动中...")

	if app.metricsServer != nil {
		app.metricsServer.Start()
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		defer close(app.done)
		if err := app.scheduler.Start(app.ctx); err != nil {
			zap.L().Error("❌ 调度器异常退出", zap.Error(err))
			app.err = err
		}
	}()

	zap.L().Info("✅ OKX Stoch Sentry 已启动")
}

// Stop 停止应用程序
func (app *App) Stop() {
	zap.L().Info("🛑 收到停止信号，正在优雅关闭...")
	app.cancel()

	// 等待所有goroutine结束，最多等待30秒
	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("✅ OKX Stoch Sentry 已安全关闭")
	case <-time.After(30 * time.Second):
		zap.L().Warn("⚠️ 强制关闭超时")
	}

	if app.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.metricsServer.Stop(ctx); err != nil {
			zap.L().Warn("⚠️ 关闭指标服务失败", zap.Error(err))
		}
	}
	app.close()
}

// WaitForShutdown 等待关闭信号，调度器自行退出时也会返回
func (app *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
	case <-app.done:
	}
}

// Err 调度器异常退出时返回对应错误，仍在运行或正常停止时返回nil
func (app *App) Err() error {
	select {
	case <-app.done:
		return app.err
	default:
		return nil
	}
}

func (app *App) close() {
	for _, closer := range app.closers {
		if err := closer(); err != nil {
			zap.L().Warn("⚠️ 释放资源失败", zap.Error(err))
		}
	}
	app.closers = nil
}
