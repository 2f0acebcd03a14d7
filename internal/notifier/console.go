package notifier

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"okx-stoch-sentry/pkg/retry"
)

// ConsoleTransport 控制台输出，未配置任何通知渠道时使用
type ConsoleTransport struct {
	out io.Writer
}

// NewConsoleTransport 创建控制台渠道，out为nil时输出到标准输出
func NewConsoleTransport(out io.Writer) *ConsoleTransport {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleTransport{out: out}
}

func (t *ConsoleTransport) Name() string {
	return "console"
}

func (t *ConsoleTransport) Open(_ context.Context) (Session, error) {
	return &consoleSession{out: t.out}, nil
}

func (t *ConsoleTransport) Classify(error) retry.Class {
	return retry.Permanent
}

type consoleSession struct {
	out io.Writer
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Deliver 打印预警框
func (s *consoleSession) Deliver(_ context.Context, msg Message) error {
	const width = 60
	border := "╔" + strings.Repeat("═", width) + "╗"
	bottomBorder := "╚" + strings.Repeat("═", width) + "╝"

	var sb strings.Builder
	sb.WriteString("\n" + border + "\n")
	writeBoxLine(&sb, "🚨 "+msg.Subject, width)
	sb.WriteString("║" + strings.Repeat(" ", width) + "║\n")

	for _, line := range strings.Split(tagPattern.ReplaceAllString(msg.Body, ""), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		writeBoxLine(&sb, line, width)
	}

	sb.WriteString(bottomBorder + "\n\n")

	_, err := io.WriteString(s.out, sb.String())
	return err
}

func (s *consoleSession) Close() error {
	return nil
}

func writeBoxLine(sb *strings.Builder, content string, width int) {
	fmt.Fprintf(sb, "║ %s%s ║\n", content, strings.Repeat(" ", safePadding(content, width)))
}

// safePadding 安全地计算填充空格数量，避免负数
func safePadding(content string, totalWidth int) int {
	padding := totalWidth - utf8.RuneCountInString(content) - 2
	if padding < 0 {
		padding = 0
	}
	return padding
}
