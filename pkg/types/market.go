package types

import "time"

// KLine K线数据（一根价格柱）
type KLine struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// PriceWindow 按时间升序排列的K线序列
type PriceWindow struct {
	Symbol      string
	Granularity Granularity
	Bars        []KLine
}

// Len 返回K线数量
func (w PriceWindow) Len() int {
	return len(w.Bars)
}

// Last 返回最新一根K线，窗口为空时返回false
func (w PriceWindow) Last() (KLine, bool) {
	if len(w.Bars) == 0 {
		return KLine{}, false
	}
	return w.Bars[len(w.Bars)-1], true
}
