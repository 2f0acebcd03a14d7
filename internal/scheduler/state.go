package scheduler

// State 调度器状态
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateEvaluating
	StateAggregating
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFetching:
		return "FETCHING"
	case StateEvaluating:
		return "EVALUATING"
	case StateAggregating:
		return "AGGREGATING"
	case StateDispatching:
		return "DISPATCHING"
	default:
		return "UNKNOWN"
	}
}
