package diag

import "sync"

// 进程内计数器：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - reject_total{reason}
// - op_duration_ms{comp,stage}（累计）
var (
	metricsMu sync.Mutex
	ops       = map[string]int64{}
	errs      = map[string]int64{}
	rejects   = map[string]int64{}
	durations = map[string]int64{}
)

// Counters 为计数器快照。
type Counters struct {
	Ops        map[string]int64
	Errors     map[string]int64
	Rejects    map[string]int64
	DurationMS map[string]int64
}

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) {
	add(ops, comp+"/"+stage+"/"+result, 1)
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	add(errs, comp+"/"+code, 1)
}

// IncReject 按拒收原因累加（n 条）。
func IncReject(reason string, n int64) {
	if n <= 0 {
		return
	}
	add(rejects, reason, n)
}

// ObserveDuration 记录阶段耗时（毫秒，累计）。
func ObserveDuration(comp, stage string, durMS int64) {
	add(durations, comp+"/"+stage, durMS)
}

func add(m map[string]int64, key string, n int64) {
	metricsMu.Lock()
	m[key] += n
	metricsMu.Unlock()
}

// Snapshot 返回当前计数器的副本。
func Snapshot() Counters {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return Counters{
		Ops:        clone(ops),
		Errors:     clone(errs),
		Rejects:    clone(rejects),
		DurationMS: clone(durations),
	}
}

// Reset 清空计数器（每次运行开始与测试用）。
func Reset() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	for _, m := range []map[string]int64{ops, errs, rejects, durations} {
		for k := range m {
			delete(m, k)
		}
	}
}

func clone(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
