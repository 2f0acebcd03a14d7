package types

import "time"

// Config 主配置结构
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Network   NetworkConfig   `mapstructure:"network"`
	OKX       OKXConfig       `mapstructure:"okx"`
	Universe  UniverseConfig  `mapstructure:"universe"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Alert     AlertConfig     `mapstructure:"alert"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	DingTalk  DingTalkConfig  `mapstructure:"dingtalk"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"` // 日志级别
	FilePath   string `mapstructure:"file_path"`                                    // 日志输出目录，为空则只输出到控制台
	MaxSize    int    `mapstructure:"max_size" validate:"gte=0"`                    // 单位：MB，超限后自动切割
	MaxAge     int    `mapstructure:"max_age" validate:"gte=0"`                     // 单位：天
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

// NetworkConfig 网络配置
type NetworkConfig struct {
	Proxy   string        `mapstructure:"proxy"`   // HTTP代理地址，如 http://127.0.0.1:7890
	Timeout time.Duration `mapstructure:"timeout"` // 单次请求超时
}

// OKXConfig 交易所REST配置
type OKXConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// UniverseConfig 监控标的配置
type UniverseConfig struct {
	TopN          int           `mapstructure:"top_n" validate:"gte=0"`
	SymbolsFile   string        `mapstructure:"symbols_file"`
	Quote         string        `mapstructure:"quote" validate:"required"`
	InstType      string        `mapstructure:"inst_type" validate:"oneof=SPOT SWAP FUTURES"`
	MinListingAge time.Duration `mapstructure:"min_listing_age"`
}

// StrategyConfig 多重随机振荡器策略配置
type StrategyConfig struct {
	Profile        string             `mapstructure:"profile" validate:"oneof=short medium long custom"`
	ExtraSmoothing int                `mapstructure:"extra_smoothing" validate:"gte=1"`
	Custom         []OscillatorConfig `mapstructure:"custom" validate:"dive"`
	Granularities  []string           `mapstructure:"granularities" validate:"required,min=1"`
}

// FetchConfig K线获取配置
type FetchConfig struct {
	Limit       int           `mapstructure:"limit" validate:"gte=1,lte=300"`
	MinBars     int           `mapstructure:"min_bars" validate:"gte=1"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	JitterMin   time.Duration `mapstructure:"jitter_min"`
	JitterMax   time.Duration `mapstructure:"jitter_max" validate:"gtefield=JitterMin"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// AlertConfig 预警配置
type AlertConfig struct {
	CooldownMultiplier int `mapstructure:"cooldown_multiplier" validate:"gte=1"` // 冷却时长 = 周期分钟数 × 倍数
}

// SchedulerConfig 调度配置
type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Workers  int           `mapstructure:"workers" validate:"gte=1"`
}

// NotifyConfig 通知配置
type NotifyConfig struct {
	Channel        string        `mapstructure:"channel" validate:"omitempty,oneof=smtp dingtalk redis console"`
	Mode           string        `mapstructure:"mode" validate:"oneof=async sync"`
	RecipientsFile string        `mapstructure:"recipients_file"`
	From           string        `mapstructure:"from"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=0"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// SMTPConfig 邮件服务配置
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// DingTalkConfig 钉钉配置
type DingTalkConfig struct {
	WebhookURL string `mapstructure:"webhook_url" validate:"omitempty,url"`
	Secret     string `mapstructure:"secret"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
}

// MySQLConfig MySQL配置
type MySQLConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database" validate:"required_if=Enabled true"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// MetricsConfig Prometheus指标配置
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // 为空则不启动 /metrics
}
