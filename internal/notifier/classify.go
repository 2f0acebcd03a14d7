package notifier

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"okx-stoch-sentry/pkg/retry"
	"okx-stoch-sentry/pkg/types"
)

// classifyNetwork 各渠道共用的网络错误分类：超时、EOF、连接重置可重试
// 第二个返回值表示是否已识别
func classifyNetwork(err error) (retry.Class, bool) {
	switch {
	case errors.Is(err, types.ErrDeliveryTransient):
		return retry.Transient, true
	case errors.Is(err, types.ErrDeliveryPermanent):
		return retry.Permanent, true
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return retry.Transient, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return retry.Transient, true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"eof", "connection reset", "connection closed", "broken pipe"} {
		if strings.Contains(msg, marker) {
			return retry.Transient, true
		}
	}

	return retry.Permanent, false
}
