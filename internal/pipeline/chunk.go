package pipeline

import (
	"fmt"

	"pricecorpus/internal/price"
	"pricecorpus/internal/prompt"
	"pricecorpus/pkg/contract"
)

// Chunk: 源集合上的半开区间 [From, To)，Index 为提交顺序。
type Chunk struct {
	Index int
	From  int
	To    int
}

// Len 返回分块记录数。
func (c Chunk) Len() int { return c.To - c.From }

func (c Chunk) String() string { return fmt.Sprintf("#%d[%d,%d)", c.Index, c.From, c.To) }

// Partition 按固定大小切分长度为 n 的集合；末块可更短。
// 边界只取决于 n 与 size；n == 0 返回空切片。
func Partition(n, size int) ([]Chunk, error) {
	if n < 0 || size <= 0 {
		return nil, fmt.Errorf("%w: partition n=%d size=%d", contract.ErrInvalidInput, n, size)
	}
	out := make([]Chunk, 0, (n+size-1)/size)
	for from := 0; from < n; from += size {
		to := from + size
		if to > n {
			to = n
		}
		out = append(out, Chunk{Index: len(out), From: from, To: to})
	}
	return out, nil
}

// Tally: 分块内的判定计数。
type Tally struct {
	Records       int
	Accepted      int
	PriceRejected int
	Rejected      map[prompt.Reason]int
}

// Add 合并另一份计数。
func (t *Tally) Add(o Tally) {
	t.Records += o.Records
	t.Accepted += o.Accepted
	t.PriceRejected += o.PriceRejected
	for r, n := range o.Rejected {
		if t.Rejected == nil {
			t.Rejected = make(map[prompt.Reason]int)
		}
		t.Rejected[r] += n
	}
}

// 价格字段键。
const fieldPrice = "price"

// ProcessChunk 对一个分块逐条执行 价格过滤 → Builder 判定，仅保留入选条目，保持块内顺序。
// 拒收只计数，不是错误。
func ProcessChunk(b *prompt.Builder, r price.Range, recs []contract.Record) ([]prompt.Item, Tally) {
	tally := Tally{Records: len(recs), Rejected: make(map[prompt.Reason]int)}
	items := make([]prompt.Item, 0, len(recs)/4+1)
	for _, rec := range recs {
		if rec == nil {
			tally.PriceRejected++
			continue
		}
		raw, _ := rec.Get(fieldPrice)
		p, ok := r.Accept(raw)
		if !ok {
			tally.PriceRejected++
			continue
		}
		it := b.Build(rec, p)
		if !it.Include {
			tally.Rejected[it.Reason()]++
			continue
		}
		items = append(items, it)
	}
	tally.Accepted = len(items)
	return items, tally
}

// verify 检查入选条目的不变量（Prompt 非空且 TokenCount > 0）。
func verify(c Chunk, items []prompt.Item) error {
	for i, it := range items {
		if !it.Include || it.Prompt == "" || it.TokenCount <= 0 {
			return fmt.Errorf("%w: chunk %s item %d", contract.ErrInvariantViolation, c, i)
		}
	}
	return nil
}
