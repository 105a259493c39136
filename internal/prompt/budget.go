package prompt

import (
	"fmt"

	"pricecorpus/pkg/contract"
)

// Budget: 记录入选的长度/token 预算。
// - MinChars:      拼装内容的 rune 数必须严格大于该值；
// - MinTokens:     候选文本的 token 数必须严格大于该值；
// - MaxTokens:     正文截断到的 token 上限；
// - CharsPerToken: 分词前的字符预截断系数（CharCeiling = MaxTokens × CharsPerToken）。
//
// 预截断只是为了限制分词器的工作量，不追求精确。
type Budget struct {
	MinChars      int `koanf:"min_chars"`
	MinTokens     int `koanf:"min_tokens"`
	MaxTokens     int `koanf:"max_tokens"`
	CharsPerToken int `koanf:"chars_per_token"`
}

// DefaultBudget 返回默认预算：300 字符 / 150~160 token / 每 token 7 字符。
func DefaultBudget() Budget {
	return Budget{MinChars: 300, MinTokens: 150, MaxTokens: 160, CharsPerToken: 7}
}

// CharCeiling 返回分词前的字符上限。
func (b Budget) CharCeiling() int { return b.MaxTokens * b.CharsPerToken }

// Validate 校验预算取值。
func (b Budget) Validate() error {
	switch {
	case b.MinChars < 0:
		return fmt.Errorf("%w: budget.min_chars must be >= 0", contract.ErrInvalidInput)
	case b.MinTokens < 0:
		return fmt.Errorf("%w: budget.min_tokens must be >= 0", contract.ErrInvalidInput)
	case b.MaxTokens <= b.MinTokens:
		return fmt.Errorf("%w: budget.max_tokens(%d) must be > min_tokens(%d)", contract.ErrInvalidInput, b.MaxTokens, b.MinTokens)
	case b.CharsPerToken <= 0:
		return fmt.Errorf("%w: budget.chars_per_token must be > 0", contract.ErrInvalidInput)
	}
	return nil
}
