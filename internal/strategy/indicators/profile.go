package indicators

import (
	"fmt"

	"okx-stoch-sentry/pkg/types"
)

// Profile 一组随机振荡器参数（快/中/慢），启动时选定，运行期不再修改
type Profile struct {
	Name           string
	Configs        []types.OscillatorConfig
	ExtraSmoothing int
}

const (
	ProfileShort  = "short"  // 短线（激进型）
	ProfileMedium = "medium" // 中线（平衡型）
	ProfileLong   = "long"   // 长线（稳健型）
	ProfileCustom = "custom" // 自定义
)

var builtinProfiles = map[string][]types.OscillatorConfig{
	ProfileShort: {
		{Length: 5, SmoothK: 2, SmoothD: 2},
		{Length: 9, SmoothK: 1, SmoothD: 2},
		{Length: 21, SmoothK: 3, SmoothD: 2},
		{Length: 34, SmoothK: 5, SmoothD: 1},
	},
	ProfileMedium: {
		{Length: 7, SmoothK: 3, SmoothD: 3},
		{Length: 14, SmoothK: 3, SmoothD: 3},
		{Length: 21, SmoothK: 5, SmoothD: 3},
		{Length: 55, SmoothK: 8, SmoothD: 3},
	},
	ProfileLong: {
		{Length: 14, SmoothK: 5, SmoothD: 5},
		{Length: 21, SmoothK: 5, SmoothD: 5},
		{Length: 34, SmoothK: 8, SmoothD: 5},
		{Length: 89, SmoothK: 13, SmoothD: 5},
	},
	ProfileCustom: {
		{Length: 21, SmoothK: 3, SmoothD: 3},
		{Length: 34, SmoothK: 3, SmoothD: 3},
		{Length: 55, SmoothK: 5, SmoothD: 3},
		{Length: 89, SmoothK: 10, SmoothD: 3},
	},
}

// ProfileByName 按名称选择参数组；custom为空时使用自定义模式的默认参数
func ProfileByName(name string, custom []types.OscillatorConfig, extraSmoothing int) (Profile, error) {
	configs, ok := builtinProfiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown strategy profile: %q", name)
	}
	if name == ProfileCustom && len(custom) > 0 {
		configs = custom
	}
	if extraSmoothing < 1 {
		extraSmoothing = DefaultExtraSmoothing
	}

	// 复制一份，避免调用方修改内置表
	copied := make([]types.OscillatorConfig, len(configs))
	copy(copied, configs)

	return Profile{
		Name:           name,
		Configs:        copied,
		ExtraSmoothing: extraSmoothing,
	}, nil
}

// MaxLookback 最长回看周期，短于它的窗口无法产出任何有效值
func (p Profile) MaxLookback() int {
	longest := 0
	for _, c := range p.Configs {
		if c.Length > longest {
			longest = c.Length
		}
	}
	return longest
}
