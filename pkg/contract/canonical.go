package contract

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// Canonical 将解码器产出的任意值收敛到 Record 允许的值形状：
// 整数/无符号/float32 → float64；[]byte → string；[]T → []any；
// map[any]any / map[string]T → map[string]any；time.Time → RFC3339 字符串。
// 无法识别的标量退化为 fmt.Sprint。
func Canonical(v any) any {
	switch t := v.(type) {
	case nil, string, float64, bool:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Canonical(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Canonical(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[cast.ToString(k)] = Canonical(e)
		}
		return out
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32:
		return cast.ToFloat64(t)
	}
	return fmt.Sprint(v)
}

// CanonicalRecord 对映射的每个值做 Canonical 并包装为 MapRecord。
func CanonicalRecord(m map[string]any) MapRecord {
	out := make(MapRecord, len(m))
	for k, v := range m {
		out[k] = Canonical(v)
	}
	return out
}
