package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"okx-stoch-sentry/pkg/retry"
	"okx-stoch-sentry/pkg/types"
)

// RedisTransport 把批量预警发布到Redis频道，由下游订阅者转发
type RedisTransport struct {
	client  *redis.Client
	channel string
}

// redisPayload 发布到频道的JSON
type redisPayload struct {
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	HTML       bool      `json:"html"`
	Recipients []string  `json:"recipients,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

// NewRedisTransport 创建Redis渠道
func NewRedisTransport(cfg types.RedisConfig) (*RedisTransport, error) {
	options, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		options.Password = cfg.Password
	}
	if cfg.DB != 0 {
		options.DB = cfg.DB
	}

	channel := cfg.Channel
	if channel == "" {
		channel = "okx:stoch:alerts"
	}

	return &RedisTransport{
		client:  redis.NewClient(options),
		channel: channel,
	}, nil
}

func (t *RedisTransport) Name() string {
	return "redis"
}

// Open 复用连接池，会话只是对客户端的包装
func (t *RedisTransport) Open(_ context.Context) (Session, error) {
	return &redisSession{transport: t}, nil
}

// Classify 网络类错误可重试，其余（如权限、命令错误）不重试
func (t *RedisTransport) Classify(err error) retry.Class {
	class, _ := classifyNetwork(err)
	return class
}

// Shutdown 关闭连接池
func (t *RedisTransport) Shutdown() error {
	return t.client.Close()
}

type redisSession struct {
	transport *RedisTransport
}

func (s *redisSession) Deliver(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(redisPayload{
		Subject:    msg.Subject,
		Body:       msg.Body,
		HTML:       msg.HTML,
		Recipients: msg.To,
		SentAt:     time.Now(),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrDeliveryPermanent, err)
	}

	return s.transport.client.Publish(ctx, s.transport.channel, payload).Err()
}

func (s *redisSession) Close() error {
	return nil
}
