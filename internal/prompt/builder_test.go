package prompt

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecorpus/pkg/contract"
	"pricecorpus/plugins/tokenizer/vocab"
)

const prose = "The quick brown fox jumps over the lazy dog while the patient reader turns another page. "

// text 生成恰好 n 个字符的英文散文。
func text(n int) string {
	return strings.Repeat(prose, n/len(prose)+1)[:n]
}

func newTestBuilder(t *testing.T, tok contract.Tokenizer) *Builder {
	t.Helper()
	if tok == nil {
		tok = vocab.NewTokenizer(nil)
	}
	b, err := NewBuilder(tok, DefaultBudget(), DefaultTemplate())
	require.NoError(t, err)
	return b
}

// upperTok: 解码时改写表面形式的分词器。
type upperTok struct{ *vocab.Tokenizer }

func (u upperTok) Decode(ids []int) string { return strings.ToUpper(u.Tokenizer.Decode(ids)) }

// UT-BLD-01: 正常记录入选，前缀唯一，答案为取整价格
func TestBuildIncluded(t *testing.T) {
	tok := vocab.NewTokenizer(nil)
	b := newTestBuilder(t, tok)
	rec := contract.MapRecord{
		"title":         "Go Book",
		"description":   text(400),
		"main_category": "Books",
	}
	it := b.Build(rec, 19.99)
	require.True(t, it.Include, "应入选，reason=%q", it.Reason())
	assert.Equal(t, ReasonNone, it.Reason())
	assert.Equal(t, "Go Book", it.Title)
	assert.Equal(t, "Books", it.Category)
	assert.Equal(t, 19.99, it.Price)
	assert.Nil(t, it.Details, "无 details 键时应为 nil")

	q := DefaultTemplate().Question
	assert.True(t, strings.HasPrefix(it.Prompt, q+"\n\nGo Book\n"))
	assert.True(t, strings.HasSuffix(it.Prompt, "\n\nPrice is $20.00"))
	assert.Equal(t, 1, strings.Count(it.Prompt, "Price is $"))
	assert.Equal(t, len(tok.Encode(it.Prompt, false)), it.TokenCount)

	// 字节回退分词器：正文恰为 MaxTokens 个字节
	body := strings.TrimSuffix(strings.TrimPrefix(it.Prompt, q+"\n\n"), "\n\nPrice is $20.00")
	assert.Len(t, body, DefaultBudget().MaxTokens)
}

// UT-BLD-02: 内容过短拒收，不产生 Prompt
func TestBuildTooShort(t *testing.T) {
	b := newTestBuilder(t, nil)
	it := b.Build(contract.MapRecord{"title": "Thin", "description": text(250)}, 10)
	assert.False(t, it.Include)
	assert.Equal(t, ReasonTooShort, it.Reason())
	assert.Empty(t, it.Prompt)
	assert.Zero(t, it.TokenCount)

	_, err := it.TestPrompt()
	assert.True(t, errors.Is(err, contract.ErrInvalidInput))
}

// UT-BLD-03: 字符阈值边界（内容块末尾换行计入长度）
func TestBuildMinCharsBoundary(t *testing.T) {
	b := newTestBuilder(t, nil)
	at := b.Build(contract.MapRecord{"title": "T", "description": text(299)}, 10)
	assert.Equal(t, ReasonTooShort, at.Reason(), "恰好 300 字符应拒收")
	over := b.Build(contract.MapRecord{"title": "T", "description": text(300)}, 10)
	assert.True(t, over.Include, "301 字符应进入后续判定")
}

// UT-BLD-04: token 数不足拒收
func TestBuildTooFewTokens(t *testing.T) {
	tok := vocab.NewTokenizer([]string{"lorem", " lorem"})
	b := newTestBuilder(t, tok)
	desc := strings.TrimSpace(strings.Repeat("lorem ", 60))
	it := b.Build(contract.MapRecord{"title": "T", "description": desc}, 10)
	assert.False(t, it.Include)
	assert.Equal(t, ReasonTooFewTokens, it.Reason())
	assert.Empty(t, it.Prompt)
}

// UT-BLD-05: 编码词在正文中被丢弃，details 原值保留
func TestBuildDropsCodeWords(t *testing.T) {
	b := newTestBuilder(t, nil)
	details := "Publisher: Penguin ABC123456 Classics. " + text(320)
	it := b.Build(contract.MapRecord{"title": "Novel", "details": details}, 12.5)
	require.True(t, it.Include)
	assert.Contains(t, it.Prompt, "Penguin Classics")
	assert.NotContains(t, it.Prompt, "ABC123456")
	require.NotNil(t, it.Details)
	assert.Contains(t, *it.Details, "ABC123456")
	assert.True(t, strings.HasSuffix(it.Prompt, "Price is $12.00"), "12.5 应按银行家舍入取 12")
}

// UT-BLD-06: 推理期提示为 Prompt 去掉答案
func TestTestPrompt(t *testing.T) {
	b := newTestBuilder(t, nil)
	it := b.Build(contract.MapRecord{"title": "Go Book", "description": text(400)}, 19.99)
	require.True(t, it.Include)
	tp, err := it.TestPrompt()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(tp, "Price is $"))
	assert.True(t, strings.HasPrefix(it.Prompt, tp))
	assert.Equal(t, "20.00", it.Prompt[len(tp):])
}

// UT-BLD-07: 以解码结果为准渲染正文
func TestBuildUsesDecodedBody(t *testing.T) {
	b := newTestBuilder(t, upperTok{vocab.NewTokenizer(nil)})
	it := b.Build(contract.MapRecord{"title": "Go Book", "description": text(400)}, 5)
	require.True(t, it.Include)
	assert.Contains(t, it.Prompt, "\n\nGO BOOK\nTHE QUICK BROWN FOX")
}

// 按字节回退时 token 截断落在多字节字符中间：Prompt 仍为合法 UTF-8
func TestBuildTruncationKeepsValidUTF8(t *testing.T) {
	tok := vocab.NewTokenizer(nil)
	b := newTestBuilder(t, tok)
	rec := contract.MapRecord{
		"title":       "Go",
		"description": strings.Repeat("中文书籍价格", 60),
	}
	// "Go\n" 占 3 字节，剩余 157 字节 = 52 个汉字 + 1 个残缺字节
	it := b.Build(rec, 10)
	require.True(t, it.Include, "应入选，reason=%q", it.Reason())
	assert.True(t, utf8.ValidString(it.Prompt), "Prompt 含非法 UTF-8: %q", it.Prompt)
	assert.Contains(t, it.Prompt, "\uFFFD", "被切开的字符应替换为 U+FFFD")
	assert.True(t, strings.HasSuffix(it.Prompt, "\n\nPrice is $10.00"))
	assert.Equal(t, len(tok.Encode(it.Prompt, false)), it.TokenCount)

	tp, err := it.TestPrompt()
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(tp))
}

// UT-BLD-08: 正文含价格前缀时拒收，保证前缀唯一
func TestBuildPrefixInBody(t *testing.T) {
	b := newTestBuilder(t, nil)
	desc := "Price is $5 only this week. " + text(320)
	it := b.Build(contract.MapRecord{"title": "Deal", "description": desc}, 5)
	assert.False(t, it.Include)
	assert.Equal(t, ReasonPrefixInBody, it.Reason())
}

// UT-BLD-09: 内容块拼装顺序
func TestAssemble(t *testing.T) {
	rec := contract.MapRecord{
		"author":      "Jane Doe",
		"categories":  []any{"Books", "Fiction"},
		"details":     map[string]any{"Pages": 320},
		"features":    []any{"f1", "f2"},
		"description": []any{"d1", "d2"},
	}
	want := "d1\nd2\nf1\nf2\n'Pages' 320\nCategories: Books, Fiction\nAuthor: Jane Doe\n"
	assert.Equal(t, want, assemble(rec))

	// 空字段与缺失字段跳过；标量分类视为单元素列表
	rec = contract.MapRecord{"description": "", "features": []any{}, "categories": "Books"}
	assert.Equal(t, "Categories: Books\n", assemble(rec))
}

func TestAnswerRounding(t *testing.T) {
	tests := map[float64]string{
		19.99:  "20.00",
		0.5:    "0.00",
		1.5:    "2.00",
		2.5:    "2.00",
		3.49:   "3.00",
		999.49: "999.00",
	}
	for in, want := range tests {
		assert.Equal(t, want, answer(in), "price=%v", in)
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "hé", truncateRunes("héllo", 2))
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "", truncateRunes("abc", 0))
}

func TestBuildCustomCategoryField(t *testing.T) {
	tpl := DefaultTemplate()
	tpl.CategoryField = "group"
	b, err := NewBuilder(vocab.NewTokenizer(nil), DefaultBudget(), tpl)
	require.NoError(t, err)
	it := b.Build(contract.MapRecord{"group": "Comics", "main_category": "Books"}, 3)
	assert.Equal(t, "Comics", it.Category)

	it = b.Build(nil, 3)
	assert.Equal(t, ReasonTooShort, it.Reason(), "nil 记录视为空记录")
}

func TestNewBuilderInvalid(t *testing.T) {
	_, err := NewBuilder(nil, DefaultBudget(), DefaultTemplate())
	assert.True(t, errors.Is(err, contract.ErrInvalidInput))

	tpl := DefaultTemplate()
	tpl.Question = "Price is $ what?"
	_, err = NewBuilder(vocab.NewTokenizer(nil), DefaultBudget(), tpl)
	assert.True(t, errors.Is(err, contract.ErrInvalidInput), "问题含前缀应拒绝")

	tpl = DefaultTemplate()
	tpl.Prefix = "Price\nis"
	_, err = NewBuilder(vocab.NewTokenizer(nil), DefaultBudget(), tpl)
	assert.True(t, errors.Is(err, contract.ErrInvalidInput))

	item := Item{Title: "Go", Price: 1.5}
	assert.Equal(t, "<Go = $1.5>", item.String())
}
