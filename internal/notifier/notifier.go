package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"okx-stoch-sentry/internal/metrics"
	"okx-stoch-sentry/pkg/retry"
	"okx-stoch-sentry/pkg/types"
)

// Message 一次批量通知
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
	HTML    bool
}

// Session 与通知渠道的一次连接，每次尝试独占一个
type Session interface {
	Deliver(ctx context.Context, msg Message) error
	Close() error
}

// Transport 通知渠道
type Transport interface {
	Name() string
	Open(ctx context.Context) (Session, error)
	// Classify 判断错误是否值得重试
	Classify(err error) retry.Class
}

// Options 发送策略
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration // 单次尝试超时
	HTML       bool
}

// AsyncOptions 异步发送：最多3次，HTML正文
func AsyncOptions() Options {
	return Options{MaxRetries: 3, RetryDelay: 5 * time.Second, Timeout: 30 * time.Second, HTML: true}
}

// SyncOptions 同步发送：最多10次，纯文本正文
func SyncOptions() Options {
	return Options{MaxRetries: 10, RetryDelay: 5 * time.Second, Timeout: 30 * time.Second, HTML: false}
}

// OptionsFromConfig 按mode选择预设，再用配置中的非零值覆盖
func OptionsFromConfig(cfg types.NotifyConfig) Options {
	options := AsyncOptions()
	if cfg.Mode == "sync" {
		options = SyncOptions()
	}
	if cfg.MaxRetries > 0 {
		options.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		options.RetryDelay = cfg.RetryDelay
	}
	if cfg.Timeout > 0 {
		options.Timeout = cfg.Timeout
	}
	return options
}

// Dispatcher 带重试的通知发送器
type Dispatcher struct {
	transport Transport
	from      string
	options   Options
	sleep     func(ctx context.Context, d time.Duration) error
	metrics   *metrics.Recorder
}

// NewDispatcher 创建通知发送器
func NewDispatcher(transport Transport, from string, options Options, recorder *metrics.Recorder) *Dispatcher {
	if options.MaxRetries < 1 {
		options.MaxRetries = 1
	}
	return &Dispatcher{
		transport: transport,
		from:      from,
		options:   options,
		sleep:     retry.SleepContext,
		metrics:   recorder,
	}
}

// Send 发送消息，只有确认送达才返回true
// 临时性错误按 retryDelay×2^attempt 退避重试，永久性错误立即放弃；不会向调用方抛出panic
func (d *Dispatcher) Send(ctx context.Context, subject, body string, recipients []string) (delivered bool) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("❌ 通知发送异常", zap.String("subject", subject), zap.Any("panic", r))
			delivered = false
		}
	}()

	msg := Message{
		From:    d.from,
		To:      recipients,
		Subject: subject,
		Body:    body,
		HTML:    d.options.HTML,
	}

	policy := retry.Policy{
		MaxAttempts: d.options.MaxRetries,
		Backoff:     retry.Exponential(d.options.RetryDelay),
		Sleep:       d.sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			zap.L().Warn("⚠️ 通知发送失败，稍后重试",
				zap.String("transport", d.transport.Name()),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", d.options.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(err))
		},
	}

	_, attempts, err := retry.Do(ctx, policy, d.classify(ctx), func(ctx context.Context, _ int) (struct{}, error) {
		return struct{}{}, d.attempt(ctx, msg)
	})
	d.metrics.RecordDispatch(err == nil, attempts)

	switch {
	case err == nil:
		zap.L().Info("✅ 通知发送成功",
			zap.String("transport", d.transport.Name()),
			zap.String("subject", subject),
			zap.Int("attempts", attempts))
		return true
	case errors.Is(err, retry.ErrExhausted):
		zap.L().Error("❌ 通知发送失败，已达到最大重试次数，本轮预警丢弃",
			zap.String("transport", d.transport.Name()),
			zap.String("subject", subject),
			zap.Error(fmt.Errorf("%w: %w", types.ErrDeliveryExhausted, err)))
	default:
		zap.L().Error("❌ 通知发送失败",
			zap.String("transport", d.transport.Name()),
			zap.String("subject", subject),
			zap.Int("attempts", attempts),
			zap.Error(fmt.Errorf("%w: %w", types.ErrDeliveryPermanent, err)))
	}
	return false
}

// SendAsync 在后台发送，结果写入返回的channel
func (d *Dispatcher) SendAsync(ctx context.Context, subject, body string, recipients []string) <-chan bool {
	result := make(chan bool, 1)
	go func() {
		result <- d.Send(ctx, subject, body, recipients)
	}()
	return result
}

// attempt 打开会话并投递；会话在任何退出路径上都会关闭，关闭失败只记录日志
func (d *Dispatcher) attempt(ctx context.Context, msg Message) error {
	if d.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.options.Timeout)
		defer cancel()
	}

	session, err := d.transport.Open(ctx)
	if err != nil {
		return fmt.Errorf("open %s session: %w", d.transport.Name(), err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			zap.L().Warn("关闭通知会话失败", zap.String("transport", d.transport.Name()), zap.Error(closeErr))
		}
	}()

	return session.Deliver(ctx, msg)
}

func (d *Dispatcher) classify(parent context.Context) retry.Classifier {
	return func(err error) retry.Class {
		if parent.Err() != nil {
			return retry.Permanent
		}
		return d.transport.Classify(err)
	}
}
