package contract

import (
	"reflect"
)

// Record: 单条原始目录记录的只读字段视图。
// 约束：
//   - Get 对缺失键返回 (nil, false)，不得 panic；
//   - 值形状限定为 string / float64 / bool / []any / map[string]any / nil；
//   - 记录在流水线内只读，不得回写。
type Record interface {
	Get(key string) (any, bool)
}

// MapRecord: 最小 Record 实现（内存映射）。
type MapRecord map[string]any

// Get 实现 Record。
func (m MapRecord) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// Present: 显式的“存在且非空”判定（键存在且 Truthy）。
func Present(rec Record, key string) (any, bool) {
	if rec == nil {
		return nil, false
	}
	v, ok := rec.Get(key)
	if !ok {
		return nil, false
	}
	return v, Truthy(v)
}

// Truthy: 枚举式非空判定。
// nil、空串、空列表、空映射、false、数值 0 视为空；其余类型视为非空。
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	case bool:
		return t
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	}
	// 其余切片/映射（例如 []map[string]any）按长度判定
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	}
	return true
}

// Text: 读取字段并在其为字符串时返回；缺失或非字符串返回 ""。
func Text(rec Record, key string) string {
	if rec == nil {
		return ""
	}
	v, ok := rec.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
