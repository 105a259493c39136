package prompt

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"pricecorpus/pkg/contract"
)

// Template: 提示词固定部分。
type Template struct {
	Question      string `koanf:"question"`
	Prefix        string `koanf:"prefix"`
	CategoryField string `koanf:"category_field"`
}

// DefaultTemplate 返回默认模板。
func DefaultTemplate() Template {
	return Template{
		Question:      "How much does this book cost to the nearest dollar?",
		Prefix:        "Price is $",
		CategoryField: "main_category",
	}
}

// Validate 校验模板：问题与前缀非空，前缀单行且不出现在问题中（保证前缀在 Prompt 中唯一）。
func (t Template) Validate() error {
	switch {
	case strings.TrimSpace(t.Question) == "":
		return fmt.Errorf("%w: prompt.question empty", contract.ErrInvalidInput)
	case t.Prefix == "":
		return fmt.Errorf("%w: prompt.prefix empty", contract.ErrInvalidInput)
	case strings.ContainsAny(t.Prefix, "\r\n"):
		return fmt.Errorf("%w: prompt.prefix must be single-line", contract.ErrInvalidInput)
	case strings.Contains(t.Question, t.Prefix):
		return fmt.Errorf("%w: prompt.question contains prefix", contract.ErrInvalidInput)
	}
	return nil
}

// 源记录字段（固定拼装顺序：description → features → details → categories → author）。
const (
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldFeatures    = "features"
	fieldDetails     = "details"
	fieldCategories  = "categories"
	fieldAuthor      = "author"
)

// Builder: 入选判定 + 清洗 + 截断 + Prompt 渲染。
// 约束：
//   - 每个 Builder 独占一个 Tokenizer，不跨 worker 共享；
//   - 纯计算，不做 I/O；
//   - 记录级拒收以 Item.Include=false 返回，不产生错误。
type Builder struct {
	tok    contract.Tokenizer
	budget Budget
	tpl    Template
}

// NewBuilder 创建 Builder。
func NewBuilder(tok contract.Tokenizer, budget Budget, tpl Template) (*Builder, error) {
	if tok == nil {
		return nil, fmt.Errorf("%w: nil tokenizer", contract.ErrInvalidInput)
	}
	if err := budget.Validate(); err != nil {
		return nil, err
	}
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	return &Builder{tok: tok, budget: budget, tpl: tpl}, nil
}

// Build 对一条已通过价格过滤的记录做完整判定。
func (b *Builder) Build(rec contract.Record, price float64) Item {
	if rec == nil {
		rec = contract.MapRecord{}
	}
	it := Item{
		Title:    field(rec, fieldTitle),
		Price:    price,
		Category: field(rec, b.tpl.CategoryField),
	}
	if v, ok := rec.Get(fieldDetails); ok && v != nil {
		raw := Stringify(v)
		it.Details = &raw
	}

	contents := assemble(rec)
	if utf8.RuneCountInString(contents) <= b.budget.MinChars {
		it.reason = ReasonTooShort
		return it
	}
	contents = truncateRunes(contents, b.budget.CharCeiling())

	text := Normalize(it.Title) + "\n" + Normalize(contents)
	ids := b.tok.Encode(text, false)
	if len(ids) <= b.budget.MinTokens {
		it.reason = ReasonTooFewTokens
		return it
	}
	if len(ids) > b.budget.MaxTokens {
		ids = ids[:b.budget.MaxTokens]
	}
	// 解码可能改变表面形式（空白/标点），以解码结果为准；
	// 截断可能切开多字节字符，残缺字节替换为 U+FFFD
	body := strings.ToValidUTF8(b.tok.Decode(ids), "\uFFFD")
	if strings.Contains(body, b.tpl.Prefix) {
		it.reason = ReasonPrefixInBody
		return it
	}

	head := b.tpl.Question + "\n\n" + body + "\n\n" + b.tpl.Prefix
	it.Prompt = head + answer(price)
	it.answerAt = len(head)
	it.TokenCount = len(b.tok.Encode(it.Prompt, false))
	if it.TokenCount <= 0 {
		it.Prompt, it.answerAt, it.TokenCount = "", 0, 0
		it.reason = ReasonTooFewTokens
		return it
	}
	it.Include = true
	return it
}

// answer: 价格四舍六入五成双取整后追加 ".00"。
func answer(price float64) string {
	return strconv.FormatFloat(math.RoundToEven(price), 'f', 0, 64) + ".00"
}

// assemble 按固定顺序拼装原始内容块；缺失/空字段跳过。
func assemble(rec contract.Record) string {
	var sb strings.Builder
	if v, ok := contract.Present(rec, fieldDescription); ok {
		writeBlock(&sb, v)
	}
	if v, ok := contract.Present(rec, fieldFeatures); ok {
		writeBlock(&sb, v)
	}
	if v, ok := contract.Present(rec, fieldDetails); ok {
		sb.WriteString(Normalize(v))
		sb.WriteByte('\n')
	}
	if v, ok := contract.Present(rec, fieldCategories); ok {
		sb.WriteString("Categories: ")
		sb.WriteString(strings.Join(listOf(v), ", "))
		sb.WriteByte('\n')
	}
	if v, ok := contract.Present(rec, fieldAuthor); ok {
		sb.WriteString("Author: ")
		sb.WriteString(Stringify(v))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// writeBlock: 列表按换行拼接，标量强转；末尾追加换行。
func writeBlock(sb *strings.Builder, v any) {
	switch v.(type) {
	case []any, []string:
		sb.WriteString(strings.Join(listOf(v), "\n"))
	default:
		sb.WriteString(Stringify(v))
	}
	sb.WriteByte('\n')
}

// listOf: 列表元素逐个强转；标量视为单元素列表。
func listOf(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, len(t))
		for i, e := range t {
			out[i] = Stringify(e)
		}
		return out
	}
	return []string{Stringify(v)}
}

// field 读取字段并强转；缺失为 ""。
func field(rec contract.Record, key string) string {
	if key == "" {
		return ""
	}
	v, ok := rec.Get(key)
	if !ok {
		return ""
	}
	return Stringify(v)
}

// truncateRunes 截断到至多 n 个 rune。
func truncateRunes(s string, n int) string {
	if n < 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
