package notifier

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleTransport(t *testing.T) {
	var out bytes.Buffer
	d, _ := newTestDispatcher(NewConsoleTransport(&out), AsyncOptions())

	body := `<div style="font-weight: bold; color: red;">BTC-USDT-SWAP 1h - 超卖信号</div>` + "\n<br>\n"
	require.True(t, d.Send(context.Background(), "2024-05-06 07:08:09-订阅信息", body, nil))

	printed := out.String()
	assert.Contains(t, printed, "🚨 2024-05-06 07:08:09-订阅信息")
	assert.Contains(t, printed, "║ BTC-USDT-SWAP 1h - 超卖信号")
	assert.NotContains(t, printed, "<div")
}

func TestSafePadding(t *testing.T) {
	assert.Equal(t, 0, safePadding("a very long line that does not fit into the box at all, really", 20))
	assert.Equal(t, 14, safePadding("超卖信号", 20))
}
