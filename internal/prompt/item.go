package prompt

import (
	"fmt"
	"strconv"

	"pricecorpus/pkg/contract"
)

// Reason: 拒收原因（仅用于计数，不是错误）。
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonTooShort     Reason = "too_short"
	ReasonTooFewTokens Reason = "too_few_tokens"
	ReasonPrefixInBody Reason = "prefix_in_body"
)

// Item: 单条记录的判定结果，由 Builder.Build 一次性构造，之后只读。
// 不变量：
//   - Include 为 true 时 Prompt 非空且 TokenCount > 0；
//   - Prompt 中价格前缀恰好出现一次，其后为 round(Price) + ".00"；
//   - TokenCount 为完整 Prompt 的编码长度。
type Item struct {
	Title    string
	Price    float64
	Category string
	// Details: 未清洗的 details 原值（字符串化）；源记录无该键时为 nil。
	Details    *string
	Prompt     string
	TokenCount int
	Include    bool

	reason Reason
	// answerAt: Prompt 中答案（价格数字）起始的字节偏移。
	answerAt int
}

// Reason 返回拒收原因；入选条目为 ReasonNone。
func (it Item) Reason() Reason { return it.reason }

// TestPrompt 返回推理期提示：Prompt 截至价格前缀（含），不含答案。
func (it Item) TestPrompt() (string, error) {
	if !it.Include || it.Prompt == "" {
		return "", fmt.Errorf("%w: item not included", contract.ErrInvalidInput)
	}
	if it.answerAt <= 0 || it.answerAt > len(it.Prompt) {
		return "", fmt.Errorf("%w: answer offset out of range", contract.ErrInvariantViolation)
	}
	return it.Prompt[:it.answerAt], nil
}

func (it Item) String() string {
	return fmt.Sprintf("<%s = $%s>", it.Title, strconv.FormatFloat(it.Price, 'f', -1, 64))
}
