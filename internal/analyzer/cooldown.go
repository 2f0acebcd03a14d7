package analyzer

import (
	"sync"
	"time"

	"okx-stoch-sentry/pkg/types"
)

// DefaultCooldownMultiplier 冷却时长 = 周期分钟数 × 5
const DefaultCooldownMultiplier = 5

// CooldownKey 冷却键：预警主题 + 周期
type CooldownKey struct {
	Subject     string
	Granularity types.Granularity
}

// CooldownRegistry 记录每个主题最近一次放行的时间，防止同一预警刷屏
// 只在内存中保存，进程重启后清空
type CooldownRegistry struct {
	mu         sync.Mutex
	lastFire   map[CooldownKey]time.Time
	multiplier int
}

// NewCooldownRegistry 创建冷却表
func NewCooldownRegistry(multiplier int) *CooldownRegistry {
	if multiplier < 1 {
		multiplier = DefaultCooldownMultiplier
	}
	return &CooldownRegistry{
		lastFire:   make(map[CooldownKey]time.Time),
		multiplier: multiplier,
	}
}

// TryFire 判断主题是否允许再次预警；放行时记录now，被抑制时保持原记录不变
func (r *CooldownRegistry) TryFire(subject string, granularity types.Granularity, now time.Time) bool {
	key := CooldownKey{Subject: subject, Granularity: granularity}

	r.mu.Lock()
	defer r.mu.Unlock()

	last, exists := r.lastFire[key]
	if !exists {
		r.lastFire[key] = now
		return true
	}

	if now.Sub(last) >= r.Window(granularity) {
		r.lastFire[key] = now
		return true
	}

	return false
}

// Window 返回周期对应的冷却时长；未知周期不冷却
func (r *CooldownRegistry) Window(granularity types.Granularity) time.Duration {
	minutes, err := granularity.Minutes()
	if err != nil {
		return 0
	}
	return time.Duration(minutes*r.multiplier) * time.Minute
}

// Len 已记录的主题数量
func (r *CooldownRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lastFire)
}
