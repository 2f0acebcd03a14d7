package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"okx-stoch-sentry/pkg/types"
)

func event(symbol string, g types.Granularity, kind types.AlertKind) types.AlertEvent {
	subject := SubjectLine(symbol, g, kind)
	return types.AlertEvent{
		Symbol:       symbol,
		Granularity:  g,
		Kind:         kind,
		Subject:      subject,
		RenderedLine: RenderLine(subject, kind),
	}
}

func TestSubjectLine(t *testing.T) {
	assert.Equal(t, "BTC-USDT-SWAP 1h - 超卖信号", SubjectLine("BTC-USDT-SWAP", types.Granularity1h, types.AlertOversold))
	assert.Equal(t, "ETH-USDT-SWAP 1d - 超买信号", SubjectLine("ETH-USDT-SWAP", types.Granularity1d, types.AlertOverbought))
}

func TestRenderLine_Colors(t *testing.T) {
	assert.Contains(t, RenderLine("x", types.AlertOversold), "color: red;")
	assert.Contains(t, RenderLine("x", types.AlertOverbought), "color: green;")
}

func TestBuildMessage(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)
	events := []types.AlertEvent{
		event("BTC-USDT-SWAP", types.Granularity1h, types.AlertOversold),
		event("BTC-USDT-SWAP", types.Granularity4h, types.AlertOversold),
		event("ETH-USDT-SWAP", types.Granularity5m, types.AlertOverbought),
	}

	subject, body := BuildMessage(events, now)

	assert.Equal(t, "2024-05-06 07:08:09-订阅信息", subject)
	want := events[0].RenderedLine + events[1].RenderedLine + "<br>\n" + events[2].RenderedLine + "<br>\n"
	assert.Equal(t, want, body)
}

func TestBuildMessage_Empty(t *testing.T) {
	subject, body := BuildMessage(nil, time.Now())
	assert.Empty(t, subject)
	assert.Empty(t, body)
}
