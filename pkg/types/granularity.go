package types

import (
	"fmt"
	"time"
)

// Granularity K线周期
type Granularity string

const (
	Granularity1m  Granularity = "1m"
	Granularity3m  Granularity = "3m"
	Granularity5m  Granularity = "5m"
	Granularity15m Granularity = "15m"
	Granularity30m Granularity = "30m"
	Granularity1h  Granularity = "1h"
	Granularity2h  Granularity = "2h"
	Granularity4h  Granularity = "4h"
	Granularity1d  Granularity = "1d"
	Granularity1w  Granularity = "1w"
)

// 各周期对应的分钟数
var granularityMinutes = map[Granularity]int{
	Granularity1m:  1,
	Granularity3m:  3,
	Granularity5m:  5,
	Granularity15m: 15,
	Granularity30m: 30,
	Granularity1h:  60,
	Granularity2h:  120,
	Granularity4h:  240,
	Granularity1d:  1440,
	Granularity1w:  10080,
}

// AllGranularities 按声明顺序返回全部支持的周期
func AllGranularities() []Granularity {
	return []Granularity{
		Granularity1m,
		Granularity3m,
		Granularity5m,
		Granularity15m,
		Granularity30m,
		Granularity1h,
		Granularity2h,
		Granularity4h,
		Granularity1d,
		Granularity1w,
	}
}

// Minutes 返回周期的分钟数
func (g Granularity) Minutes() (int, error) {
	m, ok := granularityMinutes[g]
	if !ok {
		return 0, fmt.Errorf("unsupported granularity: %s", g)
	}
	return m, nil
}

// Duration 返回周期时长
func (g Granularity) Duration() (time.Duration, error) {
	m, err := g.Minutes()
	if err != nil {
		return 0, err
	}
	return time.Duration(m) * time.Minute, nil
}

// IsValid 检查周期是否受支持
func (g Granularity) IsValid() bool {
	_, ok := granularityMinutes[g]
	return ok
}

func (g Granularity) String() string {
	return string(g)
}

// ParseGranularities 解析配置中的周期列表，保持声明顺序
func ParseGranularities(values []string) ([]Granularity, error) {
	result := make([]Granularity, 0, len(values))
	seen := make(map[Granularity]bool, len(values))
	for _, v := range values {
		g := Granularity(v)
		if !g.IsValid() {
			return nil, fmt.Errorf("unsupported granularity: %q", v)
		}
		if seen[g] {
			continue
		}
		seen[g] = true
		result = append(result, g)
	}
	return result, nil
}
