package price

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"pricecorpus/pkg/contract"
)

// Range: 可接受价格的闭区间 [Min, Max]。
type Range struct {
	Min float64 `koanf:"min"`
	Max float64 `koanf:"max"`
}

// DefaultRange 返回默认区间 [0.5, 999.49]。
func DefaultRange() Range { return Range{Min: 0.5, Max: 999.49} }

// Validate 校验区间本身。
func (r Range) Validate() error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min > r.Max {
		return fmt.Errorf("%w: price range [%v, %v]", contract.ErrInvalidInput, r.Min, r.Max)
	}
	return nil
}

// Accept 尝试将原始价格字段转为数值并做区间判定。
// 缺失、非数值、越界均静默拒收（返回 false），不是错误。
// 接受时返回未取整的原值。
func (r Range) Accept(raw any) (float64, bool) {
	p, ok := coerce(raw)
	if !ok {
		return 0, false
	}
	// NaN 在比较中恒为 false
	if p >= r.Min && p <= r.Max {
		return p, true
	}
	return 0, false
}

func coerce(raw any) (float64, bool) {
	switch t := raw.(type) {
	case nil:
		return 0, false
	case string:
		return parseDecimal(t)
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case []any, []string, map[string]any:
		return 0, false
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseDecimal 解析十进制价格串：去首尾空白；不接受十六进制写法；
// 下划线只允许夹在两个数字之间（"1_000.5"），其余位置视为非法。
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "xX") {
		return 0, false
	}
	if strings.Contains(s, "_") {
		for i := 0; i < len(s); i++ {
			if s[i] != '_' {
				continue
			}
			if i == 0 || i == len(s)-1 || !isASCIIDigit(s[i-1]) || !isASCIIDigit(s[i+1]) {
				return 0, false
			}
		}
		s = strings.ReplaceAll(s, "_", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isASCIIDigit(c byte) bool { return c >= '0' && c <= '9' }
