package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"okx-stoch-sentry/internal/analyzer"
	"okx-stoch-sentry/internal/strategy/indicators"
	"okx-stoch-sentry/pkg/types"
)

func makeBars(n int, bar func(i int) types.KLine) []types.KLine {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.KLine, n)
	for i := range bars {
		bars[i] = bar(i)
		bars[i].OpenTime = start.Add(time.Duration(i) * time.Hour)
	}
	return bars
}

// oversoldBars 每根K线都收在最低点
func oversoldBars() []types.KLine {
	return makeBars(150, func(i int) types.KLine {
		high := 1000 - float64(i)
		return types.KLine{Open: high, High: high, Low: high - 1, Close: high - 1}
	})
}

// neutralBars 收盘价始终在区间中部
func neutralBars() []types.KLine {
	return makeBars(150, func(i int) types.KLine {
		return types.KLine{Open: 10, High: 11, Low: 9, Close: 10}
	})
}

type fetchKey struct {
	symbol      string
	granularity types.Granularity
}

type fakeFetcher struct {
	mu     sync.Mutex
	bars   map[fetchKey][]types.KLine
	errs   map[fetchKey]error
	panics map[fetchKey]bool
	calls  []fetchKey
}

func (f *fakeFetcher) Fetch(ctx context.Context, symbol string, g types.Granularity, minBars int) (types.PriceWindow, error) {
	key := fetchKey{symbol, g}
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()

	if f.panics[key] {
		panic("corrupted state")
	}
	if err, ok := f.errs[key]; ok {
		return types.PriceWindow{}, err
	}
	bars, ok := f.bars[key]
	if !ok {
		bars = neutralBars()
	}
	return types.PriceWindow{Symbol: symbol, Granularity: g, Bars: bars}, nil
}

type sentMessage struct {
	subject    string
	body       string
	recipients []string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (s *fakeSender) Send(ctx context.Context, subject, body string, recipients []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{subject, body, recipients})
	return true
}

func (s *fakeSender) SendAsync(ctx context.Context, subject, body string, recipients []string) <-chan bool {
	result := make(chan bool, 1)
	go func() { result <- s.Send(ctx, subject, body, recipients) }()
	return result
}

func (s *fakeSender) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

type fakeArchiver struct {
	mu    sync.Mutex
	saved int
	err   error
}

func (a *fakeArchiver) SaveWindow(ctx context.Context, window types.PriceWindow) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved++
	return a.err
}

var now = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, fetcher WindowFetcher, sender Sender, options Options) *Scheduler {
	t.Helper()
	profile, err := indicators.ProfileByName(indicators.ProfileMedium, nil, 2)
	require.NoError(t, err)
	engine := analyzer.NewAnalysisEngine(profile, analyzer.NewCooldownRegistry(5), nil)

	s := NewScheduler(
		fetcher,
		engine,
		sender,
		[]string{"B-USDT-SWAP", "A-USDT-SWAP"},
		[]types.Granularity{types.Granularity1h, types.Granularity4h},
		[]string{"ops@example.com"},
		options,
		nil,
	)
	s.now = func() time.Time { return now }
	return s
}

func expectedBody() string {
	subject := analyzer.SubjectLine("A-USDT-SWAP", types.Granularity1h, types.AlertOversold)
	return analyzer.RenderLine(subject, types.AlertOversold) + "<br>\n"
}

func TestRunCycle_SingleBatchedAlert(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			fetcher := &fakeFetcher{bars: map[fetchKey][]types.KLine{
				{"A-USDT-SWAP", types.Granularity1h}: oversoldBars(),
			}}
			sender := &fakeSender{}
			s := newTestScheduler(t, fetcher, sender, Options{Workers: workers})

			report, err := s.RunCycle(context.Background())

			require.NoError(t, err)
			assert.Equal(t, 4, report.Pairs)
			assert.Equal(t, 4, report.Evaluated)
			require.Len(t, report.Alerts, 1)
			assert.True(t, report.Dispatched)

			messages := sender.messages()
			require.Len(t, messages, 1)
			assert.Equal(t, "2024-06-01 08:00:00-订阅信息", messages[0].subject)
			assert.Equal(t, expectedBody(), messages[0].body)
			assert.Equal(t, []string{"ops@example.com"}, messages[0].recipients)
			assert.Equal(t, StateIdle, s.State())
		})
	}
}

func TestRunCycle_DeterministicOrder(t *testing.T) {
	fetcher := &fakeFetcher{}
	s := newTestScheduler(t, fetcher, &fakeSender{}, Options{Workers: 1})

	_, err := s.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []fetchKey{
		{"A-USDT-SWAP", types.Granularity1h},
		{"A-USDT-SWAP", types.Granularity4h},
		{"B-USDT-SWAP", types.Granularity1h},
		{"B-USDT-SWAP", types.Granularity4h},
	}, fetcher.calls)
}

func TestRunCycle_CooldownSuppressesNextCycle(t *testing.T) {
	fetcher := &fakeFetcher{bars: map[fetchKey][]types.KLine{
		{"A-USDT-SWAP", types.Granularity1h}: oversoldBars(),
	}}
	sender := &fakeSender{}
	s := newTestScheduler(t, fetcher, sender, Options{Workers: 1})

	_, err := s.RunCycle(context.Background())
	require.NoError(t, err)

	s.now = func() time.Time { return now.Add(5 * time.Minute) }

	report, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Alerts)
	assert.False(t, report.Dispatched)
	assert.Len(t, sender.messages(), 1)
}

func TestRunCycle_PairErrorsAreIsolated(t *testing.T) {
	fetcher := &fakeFetcher{
		bars: map[fetchKey][]types.KLine{
			{"A-USDT-SWAP", types.Granularity1h}: oversoldBars(),
		},
		errs: map[fetchKey]error{
			{"A-USDT-SWAP", types.Granularity4h}: fmt.Errorf("%w: got 12 bars", types.ErrInsufficientData),
			{"B-USDT-SWAP", types.Granularity1h}: fmt.Errorf("%w: rate limited", types.ErrFetchExhausted),
			{"B-USDT-SWAP", types.Granularity4h}: errors.New("okx api error: code=51001"),
		},
	}
	sender := &fakeSender{}
	s := newTestScheduler(t, fetcher, sender, Options{Workers: 2})

	report, err := s.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 3, report.Skipped)
	require.Len(t, sender.messages(), 1)
	assert.Equal(t, expectedBody(), sender.messages()[0].body)
}

func TestRunCycle_NoAlertsNoDispatch(t *testing.T) {
	sender := &fakeSender{}
	s := newTestScheduler(t, &fakeFetcher{}, sender, Options{Workers: 1})

	report, err := s.RunCycle(context.Background())

	require.NoError(t, err)
	assert.False(t, report.Dispatched)
	assert.Empty(t, sender.messages())
}

func TestRunCycle_ArchivesWindows(t *testing.T) {
	archiver := &fakeArchiver{err: errors.New("db down")}
	s := newTestScheduler(t, &fakeFetcher{}, &fakeSender{}, Options{Workers: 1})
	s.SetArchiver(archiver)

	report, err := s.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 4, archiver.saved)
	assert.Equal(t, 4, report.Evaluated)
}

func TestStart_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &fakeFetcher{bars: map[fetchKey][]types.KLine{
		{"A-USDT-SWAP", types.Granularity1h}: oversoldBars(),
	}}
	sender := &fakeSender{}
	s := newTestScheduler(t, fetcher, sender, Options{Workers: 1, Async: true, Interval: time.Minute})

	var slept []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		cancel()
		return ctx.Err()
	}

	err := s.Start(ctx)

	assert.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Minute}, slept)
	// Start 返回前等待后台发送完成
	assert.Len(t, sender.messages(), 1)
}

func TestStart_PanicTerminatesLoop(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			fetcher := &fakeFetcher{panics: map[fetchKey]bool{
				{"B-USDT-SWAP", types.Granularity4h}: true,
			}}
			sender := &fakeSender{}
			s := newTestScheduler(t, fetcher, sender, Options{Workers: workers})
			s.sleep = func(ctx context.Context, d time.Duration) error {
				t.Fatal("loop should not continue after a panic")
				return nil
			}

			err := s.Start(context.Background())

			assert.ErrorIs(t, err, ErrPanic)
			assert.Empty(t, sender.messages())
			assert.Equal(t, StateIdle, s.State())
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "DISPATCHING", StateDispatching.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
