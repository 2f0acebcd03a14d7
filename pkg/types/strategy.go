package types

// OscillatorConfig 单个随机振荡器参数
type OscillatorConfig struct {
	Length  int `mapstructure:"length" validate:"gte=1"`   // 回看周期
	SmoothK int `mapstructure:"smooth_k" validate:"gte=1"` // K值EMA平滑周期
	SmoothD int `mapstructure:"smooth_d" validate:"gte=1"` // D值EMA平滑周期
}

// AlertKind 预警类型
type AlertKind string

const (
	AlertOversold   AlertKind = "OVERSOLD"
	AlertOverbought AlertKind = "OVERBOUGHT"
)

// Label 预警类型的展示名称
func (k AlertKind) Label() string {
	switch k {
	case AlertOversold:
		return "超卖信号"
	case AlertOverbought:
		return "超买信号"
	default:
		return string(k)
	}
}

// AlertEvent 通过冷却检查的预警
type AlertEvent struct {
	Symbol       string      `json:"symbol"`
	Granularity  Granularity `json:"granularity"`
	Kind         AlertKind   `json:"kind"`
	Subject      string      `json:"subject"`       // 去重主题，同时作为冷却键
	RenderedLine string      `json:"rendered_line"` // 邮件正文中的一行
}
