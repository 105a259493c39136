package diag

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger: 结构化日志器（zerolog 后端），单行 JSON。
// 事件字段：level / ts / corr_id / comp / stage(start|finish|error) / code / dur_ms / count / chunk / kv / msg。
// nil *Logger 合法且静默。
type Logger struct {
	zl   zerolog.Logger
	sink io.Closer
}

// NewLogger 按配置初始化：stderr=true 时写 stderr，否则写入 dir 下的轮转文件（10MiB）。
func NewLogger(corrID, level, dir string, stderr bool) *Logger {
	if stderr {
		return NewLoggerTo(os.Stderr, corrID, level)
	}
	if strings.TrimSpace(dir) == "" {
		dir = "logs"
	}
	rf := NewRotatingFile(dir, 10*1024*1024)
	l := NewLoggerTo(&fallback{w: rf}, corrID, level)
	l.sink = rf
	return l
}

// NewLoggerTo 写入任意 io.Writer（测试与嵌入）；写入经 zerolog.SyncWriter 串行化。
func NewLoggerTo(w io.Writer, corrID, level string) *Logger {
	zl := zerolog.New(zerolog.SyncWriter(w)).Level(parseLevel(level)).With().Str("corr_id", corrID).Logger()
	return &Logger{zl: zl}
}

// Close 关闭文件 sink；stderr/自定义 writer 为空操作。
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

func parseLevel(s string) zerolog.Level {
	lv, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lv == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lv
}

// Event 为标准事件结构。Chunk < 0 表示不涉及具体分块。
type Event struct {
	Comp  string
	Stage string
	Code  string
	DurMS int64
	Count int64
	Chunk int
	Msg   string
	KV    map[string]string
}

// NoChunk: 事件不关联分块。
const NoChunk = -1

// log 写出事件；低于当前级别的事件由 zerolog 直接丢弃。
func (l *Logger) log(lv zerolog.Level, ev Event) {
	if l == nil {
		return
	}
	e := l.zl.WithLevel(lv)
	if e == nil {
		return
	}
	e = e.Str("ts", NowUTC()).Str("comp", ev.Comp).Str("stage", ev.Stage)
	if ev.Code != "" {
		e = e.Str("code", ev.Code)
	}
	if ev.DurMS > 0 {
		e = e.Int64("dur_ms", ev.DurMS)
	}
	if ev.Count > 0 {
		e = e.Int64("count", ev.Count)
	}
	if ev.Chunk >= 0 {
		e = e.Int("chunk", ev.Chunk)
	}
	if len(ev.KV) > 0 {
		d := zerolog.Dict()
		for k, v := range ev.KV {
			d = d.Str(k, v)
		}
		e = e.Dict("kv", d)
	}
	e.Msg(ev.Msg)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	l.log(zerolog.InfoLevel, Event{Comp: comp, Stage: "start", Chunk: NoChunk, Msg: msg})
	return &Timer{l: l, comp: comp, chunk: NoChunk, t0: time.Now()}
}

// StartWith 记录带 chunk 的 start。
func (l *Logger) StartWith(comp, msg string, chunk int) *Timer {
	l.log(zerolog.InfoLevel, Event{Comp: comp, Stage: "start", Chunk: chunk, Msg: msg})
	return &Timer{l: l, comp: comp, chunk: chunk, t0: time.Now()}
}

// StartWithKV 记录带 chunk 与键值的 start。
func (l *Logger) StartWithKV(comp, msg string, chunk int, kv map[string]string) *Timer {
	l.log(zerolog.InfoLevel, Event{Comp: comp, Stage: "start", Chunk: chunk, Msg: msg, KV: kv})
	return &Timer{l: l, comp: comp, chunk: chunk, t0: time.Now()}
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, NoChunk, nil)
}

// ErrorWith 支持 chunk。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, chunk int) {
	l.ErrorWithKV(comp, code, msg, durSince, chunk, nil)
}

// ErrorWithKV 支持附带键值对（例如区间、来源标识）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, chunk int, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(zerolog.ErrorLevel, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Chunk: chunk, Msg: msg, KV: kv})
}

// Warn 记录 warn 级别的 finish 类事件（非致命异常，例如关闭资源失败）。
func (l *Logger) Warn(comp, msg string, kv map[string]string) {
	l.log(zerolog.WarnLevel, Event{Comp: comp, Stage: "finish", Chunk: NoChunk, Msg: msg, KV: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.log(zerolog.InfoLevel, Event{Comp: comp, Stage: "finish", DurMS: time.Since(start).Milliseconds(), Count: count, Chunk: NoChunk, Msg: msg})
}

// DebugStart 输出调试级别的 start 事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg string, chunk int, kv map[string]string) {
	l.log(zerolog.DebugLevel, Event{Comp: comp, Stage: "start", Chunk: chunk, Msg: msg, KV: kv})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l     *Logger
	comp  string
	chunk int
	t0    time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	t.FinishKV(msg, count, nil)
}

// FinishKV 记录带键值的 finish。
func (t *Timer) FinishKV(msg string, count int64, kv map[string]string) {
	if t == nil || t.l == nil {
		return
	}
	t.l.log(zerolog.InfoLevel, Event{Comp: t.comp, Stage: "finish", DurMS: time.Since(t.t0).Milliseconds(), Count: count, Chunk: t.chunk, Msg: msg, KV: kv})
}

// Since 返回计时起点（用于 Error 的 durSince）。
func (t *Timer) Since() *time.Time {
	if t == nil {
		return nil
	}
	return &t.t0
}

// fallback: 主 sink 写失败时改写 stderr。
type fallback struct {
	w  io.Writer
	mu sync.Mutex
}

func (f *fallback) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.w.Write(p); err != nil {
		fmt.Fprintf(os.Stderr, "logger sink error: %v\n", err)
		return os.Stderr.Write(p)
	}
	return len(p), nil
}
