// Package retry 提供拉取行情与发送通知共用的重试组合子
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Class 错误分类
type Class int

const (
	// Permanent 重试无意义，立即返回
	Permanent Class = iota
	// Transient 可能在重试后成功
	Transient
)

func (c Class) String() string {
	if c == Transient {
		return "transient"
	}
	return "permanent"
}

// Classifier 对操作返回的错误分类
type Classifier func(err error) Class

// Backoff 返回第attempt次（从0开始）失败后的等待时长
type Backoff func(attempt int) time.Duration

// ErrExhausted 达到最大尝试次数
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy 重试策略
type Policy struct {
	MaxAttempts int
	Backoff     Backoff

	// Sleep 可替换的等待函数，默认按ctx可取消地等待
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry 每次决定重试前回调，用于记录日志和指标
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Exponential base × 2^attempt
func Exponential(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base << uint(attempt)
	}
}

// ExponentialJitter base × 2^attempt + U(minJitter, maxJitter)
func ExponentialJitter(base, minJitter, maxJitter time.Duration, rnd *rand.Rand) Backoff {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	var mu sync.Mutex
	return func(attempt int) time.Duration {
		jitter := minJitter
		if span := maxJitter - minJitter; span > 0 {
			mu.Lock()
			jitter += time.Duration(rnd.Int63n(int64(span) + 1))
			mu.Unlock()
		}
		return (base << uint(attempt)) + jitter
	}
}

// Do 执行op直到成功、遇到永久性错误、ctx取消或次数用尽
// 返回结果、实际尝试次数和最终错误；次数用尽时错误同时包装ErrExhausted和最后一次错误
// 连续两次等待时长不会递减
func Do[T any](ctx context.Context, p Policy, classify Classifier, op func(ctx context.Context, attempt int) (T, error)) (T, int, error) {
	var zero T
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var (
		lastErr   error
		prevDelay time.Duration
	)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt, err
		}

		result, err := op(ctx, attempt)
		if err == nil {
			return result, attempt + 1, nil
		}
		lastErr = err

		if classify(err) == Permanent {
			return zero, attempt + 1, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff(attempt)
		}
		if delay < prevDelay {
			delay = prevDelay
		}
		prevDelay = delay

		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, attempt + 1, err
		}
	}

	return zero, maxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, lastErr)
}

// SleepContext 等待d或ctx取消
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
