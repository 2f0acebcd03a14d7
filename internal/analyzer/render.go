package analyzer

import (
	"fmt"
	"strings"
	"time"

	"okx-stoch-sentry/pkg/types"
)

// SubjectLine 预警主题，例如 "BTC-USDT-SWAP 1h - 超卖信号"
func SubjectLine(symbol string, granularity types.Granularity, kind types.AlertKind) string {
	return fmt.Sprintf("%s %s - %s", symbol, granularity, kind.Label())
}

// RenderLine 邮件正文中的一行：超卖红色（看多），超买绿色（看空）
func RenderLine(subject string, kind types.AlertKind) string {
	color := "green"
	if kind == types.AlertOversold {
		color = "red"
	}
	return fmt.Sprintf(`<div style="font-weight: bold; color: %s;">%s</div>`+"\n", color, subject)
}

// BuildMessage 把一轮的预警合并为一封消息，同一交易对的行连续排列，交易对之间用<br>分隔
func BuildMessage(events []types.AlertEvent, now time.Time) (subject, body string) {
	if len(events) == 0 {
		return "", ""
	}

	var sb strings.Builder
	for i, event := range events {
		sb.WriteString(event.RenderedLine)
		if i == len(events)-1 || events[i+1].Symbol != event.Symbol {
			sb.WriteString("<br>\n")
		}
	}

	return now.Format("2006-01-02 15:04:05") + "-订阅信息", sb.String()
}
