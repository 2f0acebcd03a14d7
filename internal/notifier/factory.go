package notifier

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"okx-stoch-sentry/pkg/types"
)

// NewTransport 按配置选择通知渠道
// notify.channel 为空时依次尝试 smtp、dingtalk、redis，都未配置则使用控制台
func NewTransport(cfg *types.Config, httpClient *http.Client) (Transport, error) {
	channel := cfg.Notify.Channel
	if channel == "" {
		switch {
		case cfg.SMTP.Host != "":
			channel = "smtp"
		case cfg.DingTalk.WebhookURL != "":
			channel = "dingtalk"
		case cfg.Redis.URL != "":
			channel = "redis"
		default:
			channel = "console"
		}
	}

	switch channel {
	case "smtp":
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("notify channel smtp requires smtp.host")
		}
		if cfg.Notify.From == "" {
			zap.L().Warn("⚠️ 未配置发件人地址 notify.from")
		}
		zap.L().Info("✅ 已配置邮件通知", zap.String("host", cfg.SMTP.Host), zap.Int("port", cfg.SMTP.Port))
		return NewSMTPTransport(cfg.SMTP), nil
	case "dingtalk":
		if cfg.DingTalk.WebhookURL == "" {
			return nil, fmt.Errorf("notify channel dingtalk requires dingtalk.webhook_url")
		}
		if cfg.DingTalk.Secret != "" {
			zap.L().Info("✅ 已配置钉钉通知服务（含加签验证）")
		} else {
			zap.L().Warn("⚠️ 钉钉通知已配置，但未设置secret（建议配置加签验证）")
		}
		return NewDingTalkTransport(cfg.DingTalk, httpClient), nil
	case "redis":
		transport, err := NewRedisTransport(cfg.Redis)
		if err != nil {
			return nil, err
		}
		zap.L().Info("✅ 已配置Redis通知频道", zap.String("channel", transport.channel))
		return transport, nil
	case "console":
		zap.L().Info("🔧 未配置通知渠道，使用控制台输出模式")
		return NewConsoleTransport(nil), nil
	default:
		return nil, fmt.Errorf("unknown notify channel: %q", channel)
	}
}
