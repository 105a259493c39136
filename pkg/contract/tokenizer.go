package contract

// Tokenizer: 文本与 token id 序列的双向映射。
// 约束：
//   - 对同一模型标识确定性；
//   - 初始化后只读（不修改词表），可重入；
//   - addSpecial 控制是否附加 BOS/EOS 等特殊 token（无该概念的实现可忽略）。
type Tokenizer interface {
	Encode(text string, addSpecial bool) []int
	Decode(ids []int) string
}

// TokenizerFactory: 构造一个独立的 Tokenizer 实例。
// 编排层为每个 worker 调用一次，实例之间不共享可变缓存。
type TokenizerFactory func() (Tokenizer, error)
