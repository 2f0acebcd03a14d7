package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"okx-stoch-sentry/internal/analyzer"
	"okx-stoch-sentry/internal/scheduler"
	"okx-stoch-sentry/internal/strategy/indicators"
	"okx-stoch-sentry/pkg/types"
)

type stubFetcher struct {
	panics bool
}

func (f *stubFetcher) Fetch(ctx context.Context, symbol string, g types.Granularity, minBars int) (types.PriceWindow, error) {
	if f.panics {
		panic("corrupted window")
	}
	return types.PriceWindow{}, types.ErrInsufficientData
}

type stubSender struct{}

func (stubSender) Send(ctx context.Context, subject, body string, recipients []string) bool {
	return true
}

func (stubSender) SendAsync(ctx context.Context, subject, body string, recipients []string) <-chan bool {
	result := make(chan bool, 1)
	result <- true
	return result
}

func newTestApp(t *testing.T, fetcher scheduler.WindowFetcher) *App {
	t.Helper()
	profile, err := indicators.ProfileByName(indicators.ProfileMedium, nil, 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return &App{
		config: &types.Config{},
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		scheduler: scheduler.NewScheduler(
			fetcher,
			analyzer.NewAnalysisEngine(profile, analyzer.NewCooldownRegistry(5), nil),
			stubSender{},
			[]string{"BTC-USDT-SWAP"},
			[]types.Granularity{types.Granularity1h},
			nil,
			scheduler.Options{Interval: time.Hour},
			nil,
		),
	}
}

func TestApp_SchedulerPanicExitsNonZero(t *testing.T) {
	app := newTestApp(t, &stubFetcher{panics: true})

	app.Start()
	select {
	case <-app.done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not exit")
	}
	app.Stop()

	assert.ErrorIs(t, app.Err(), scheduler.ErrPanic)
	assert.Equal(t, 1, exitCode(app.Err()))
}

func TestApp_CleanShutdownExitsZero(t *testing.T) {
	app := newTestApp(t, &stubFetcher{})

	app.Start()
	assert.NoError(t, app.Err())
	app.Stop()

	assert.NoError(t, app.Err())
	assert.Equal(t, 0, exitCode(app.Err()))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}
