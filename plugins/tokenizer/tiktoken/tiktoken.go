package tiktoken

import (
	"fmt"
	"strings"

	tke "github.com/pkoukk/tiktoken-go"

	"pricecorpus/pkg/contract"
)

// Options: BPE 编码选择；Model 优先于 Encoding。
type Options struct {
	// Encoding: 编码名（cl100k_base / o200k_base / p50k_base / r50k_base ...）。默认 cl100k_base。
	Encoding string `json:"encoding"`
	// Model: 模型名（例如 gpt-4o），按模型推导编码。
	Model string `json:"model"`
}

const defaultEncoding = "cl100k_base"

// Tokenizer 包装 tiktoken 编码器。BPE 编码无 BOS/EOS 概念，addSpecial 被忽略；
// 输入中的特殊 token 字面量按普通文本编码。
type Tokenizer struct {
	enc *tke.Tiktoken
}

var _ contract.Tokenizer = (*Tokenizer)(nil)

// New 返回工厂；每次调用构造独立的编码器实例（各 worker 独占）。
// 编码表首次加载可能需要访问 TIKTOKEN_CACHE_DIR 或网络，失败时返回 ErrTokenizerInit。
func New(opts *Options) (contract.TokenizerFactory, error) {
	enc, model := defaultEncoding, ""
	if opts != nil {
		if s := strings.TrimSpace(opts.Encoding); s != "" {
			enc = s
		}
		model = strings.TrimSpace(opts.Model)
	}
	return func() (contract.Tokenizer, error) {
		var (
			t   *tke.Tiktoken
			err error
		)
		if model != "" {
			t, err = tke.EncodingForModel(model)
		} else {
			t, err = tke.GetEncoding(enc)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: tiktoken: %v", contract.ErrTokenizerInit, err)
		}
		return &Tokenizer{enc: t}, nil
	}, nil
}

// Encode 实现 contract.Tokenizer。
func (t *Tokenizer) Encode(text string, _ bool) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode 实现 contract.Tokenizer。
func (t *Tokenizer) Decode(ids []int) string {
	return t.enc.Decode(ids)
}
