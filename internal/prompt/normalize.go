package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/spf13/cast"

	"pricecorpus/pkg/contract"
)

// 结构性噪声：冒号、方括号、双引号、花括号、全角方头括号与任意空白（含 Unicode 空白）。
var structural = regexp.MustCompile(`[:\[\]"{}【】\s\v\p{Z}\x{85}\x{1c}-\x{1f}]+`)

// codeWordMinLen: 长度达到该值且含数字的词视为编码噪声（SKU、型号等）。
const codeWordMinLen = 7

// Normalize 清洗自由文本：
//   - 空/假值返回 ""；非字符串先经 Stringify 强转；
//   - 结构性字符连续段折叠为单个空格并去首尾空白；
//   - 修复逗号：" ," → ","，",,," → ","，",," → ","（按此顺序）；
//   - 按单空格切词，丢弃 rune 长度 ≥7 且含数字的词，再以单空格拼回。
//
// 纯函数，无副作用。
func Normalize(v any) string {
	if !contract.Truthy(v) {
		return ""
	}
	s := Stringify(v)
	s = strings.TrimSpace(structural.ReplaceAllString(s, " "))
	s = strings.ReplaceAll(s, " ,", ",")
	s = strings.ReplaceAll(s, ",,,", ",")
	s = strings.ReplaceAll(s, ",,", ",")

	words := strings.Split(s, " ")
	kept := words[:0]
	for _, w := range words {
		if keepWord(w) {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func keepWord(w string) bool {
	n := 0
	digit := false
	for _, r := range w {
		n++
		if !digit && isDigit(r) {
			digit = true
		}
	}
	return n < codeWordMinLen || !digit
}

// isDigit: 十进制数字（Nd）以及上标、下标、带圈等数字型字符（Numeric_Type=Digit）。
// 分数、罗马数字等其他数值字符不算。
func isDigit(r rune) bool {
	return unicode.IsDigit(r) || unicode.Is(digitLike, r)
}

// digitLike: Numeric_Type=Digit 但不属于 Nd 的字符。
var digitLike = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x00b2, Hi: 0x00b3, Stride: 1},
		{Lo: 0x00b9, Hi: 0x00b9, Stride: 1},
		{Lo: 0x1369, Hi: 0x1371, Stride: 1},
		{Lo: 0x19da, Hi: 0x19da, Stride: 1},
		{Lo: 0x2070, Hi: 0x2070, Stride: 1},
		{Lo: 0x2074, Hi: 0x2079, Stride: 1},
		{Lo: 0x2080, Hi: 0x2089, Stride: 1},
		{Lo: 0x2460, Hi: 0x2468, Stride: 1},
		{Lo: 0x2474, Hi: 0x247c, Stride: 1},
		{Lo: 0x2488, Hi: 0x2490, Stride: 1},
		{Lo: 0x24ea, Hi: 0x24ea, Stride: 1},
		{Lo: 0x24f5, Hi: 0x24fd, Stride: 1},
		{Lo: 0x24ff, Hi: 0x24ff, Stride: 1},
		{Lo: 0x2776, Hi: 0x277e, Stride: 1},
		{Lo: 0x2780, Hi: 0x2788, Stride: 1},
		{Lo: 0x278a, Hi: 0x2792, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x10a40, Hi: 0x10a43, Stride: 1},
		{Lo: 0x10e60, Hi: 0x10e68, Stride: 1},
		{Lo: 0x11052, Hi: 0x1105a, Stride: 1},
		{Lo: 0x1f100, Hi: 0x1f10a, Stride: 1},
	},
	LatinOffset: 2,
}

// Stringify 通用字符串强转。
// 字符串原样返回；列表/映射渲染为 ['a', 'b'] / {'k': 'v'}（映射按键排序，保证确定性）；
// 标量经 cast 转换。
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any, []string, map[string]any:
		return repr(t)
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

// repr: 容器字面量渲染（元素为字符串时加引号）。
func repr(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case string:
		return quote(t)
	case bool:
		if t {
			return "True"
		}
		return "False"
	case []string:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = quote(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = repr(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = quote(k) + ": " + repr(t[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return Stringify(v)
}

// quote: 默认单引号；内容含单引号且不含双引号时改用双引号。
func quote(s string) string {
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}
