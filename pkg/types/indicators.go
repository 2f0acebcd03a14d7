package types

// StochasticResult 单个振荡器在最新K线上的K/D值，nil表示预热不足或无法计算
type StochasticResult struct {
	K *float64 `json:"k"`
	D *float64 `json:"d"`
}

// Defined K和D都有值
func (r StochasticResult) Defined() bool {
	return r.K != nil && r.D != nil
}

// SignalSet 多振荡器合成信号
type SignalSet struct {
	Oversold   bool `json:"oversold"`
	Overbought bool `json:"overbought"`
}

// Kinds 返回触发的预警类型，超卖在前
func (s SignalSet) Kinds() []AlertKind {
	var kinds []AlertKind
	if s.Oversold {
		kinds = append(kinds, AlertOversold)
	}
	if s.Overbought {
		kinds = append(kinds, AlertOverbought)
	}
	return kinds
}
