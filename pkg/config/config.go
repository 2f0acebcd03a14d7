package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"okx-stoch-sentry/pkg/types"
)

// Load 加载配置：configs/config.local.yaml > configs/config.yaml > 默认值，环境变量优先
func Load() (*types.Config, error) {
	v := newViper()
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// 优先尝试读取本地配置文件
	v.SetConfigName("config.local")
	if err := v.ReadInConfig(); err != nil {
		// 如果本地配置文件不存在，尝试读取默认配置文件
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, err
			}
		}
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// SMTP_HOST / SMTP_USER 这类环境变量可直接覆盖 smtp.host / smtp.username
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)
	return v
}

func decode(v *viper.Viper) (*types.Config, error) {
	var config types.Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate 校验配置字段
func Validate(config *types.Config) error {
	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := types.ParseGranularities(config.Strategy.Granularities); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// bindLegacyEnv 兼容旧版 .env 中的变量名
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("smtp.username", "SMTP_USER", "SMTP_USERNAME")
	_ = v.BindEnv("smtp.password", "SMTP_PASS", "SMTP_PASSWORD")
	_ = v.BindEnv("smtp.host", "SMTP_SERVER", "SMTP_HOST")
	_ = v.BindEnv("notify.from", "EMAIL_FROM", "NOTIFY_FROM")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_path", "logs")
	v.SetDefault("log.max_size", 200)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.compress", false)

	v.SetDefault("network.proxy", "")
	v.SetDefault("network.timeout", 30*time.Second)

	v.SetDefault("okx.base_url", "https://www.okx.com")

	v.SetDefault("universe.top_n", 3)
	v.SetDefault("universe.symbols_file", "symbols.txt")
	v.SetDefault("universe.quote", "USDT")
	v.SetDefault("universe.inst_type", "SWAP")
	v.SetDefault("universe.min_listing_age", 30*24*time.Hour)

	v.SetDefault("strategy.profile", "custom")
	v.SetDefault("strategy.extra_smoothing", 2)
	v.SetDefault("strategy.granularities", []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "1d", "1w"})

	v.SetDefault("fetch.limit", 200)
	v.SetDefault("fetch.min_bars", 100)
	v.SetDefault("fetch.max_attempts", 5)
	v.SetDefault("fetch.base_delay", 500*time.Millisecond)
	v.SetDefault("fetch.jitter_min", 200*time.Millisecond)
	v.SetDefault("fetch.jitter_max", time.Second)
	v.SetDefault("fetch.timeout", 30*time.Second)

	v.SetDefault("alert.cooldown_multiplier", 5)

	v.SetDefault("scheduler.interval", 5*time.Minute)
	v.SetDefault("scheduler.workers", 1)

	v.SetDefault("notify.channel", "")
	v.SetDefault("notify.mode", "async")
	v.SetDefault("notify.recipients_file", "emails.txt")
	v.SetDefault("notify.from", "")
	v.SetDefault("notify.max_retries", 0) // 0 表示使用 mode 对应的默认值
	v.SetDefault("notify.retry_delay", 5*time.Second)
	v.SetDefault("notify.timeout", 30*time.Second)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")

	v.SetDefault("dingtalk.webhook_url", "")
	v.SetDefault("dingtalk.secret", "")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "okx:stoch:alerts")

	v.SetDefault("database.mysql.enabled", false)
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.max_idle_conns", 2)
	v.SetDefault("database.mysql.max_open_conns", 5)

	v.SetDefault("metrics.addr", "")
}
