package main

import (
	"io"
	"math"
	"sort"

	"pricecorpus/internal/diag"
	"pricecorpus/internal/prompt"
)

// Summary: 单次运行的汇总。
type Summary struct {
	Records  int
	Accepted int
	// Rejected: 按原因计数（"price" 与各内容拒收原因）。
	Rejected  map[string]int
	MinTokens int
	MaxTokens int
	AvgTokens float64
}

func summarize(items []prompt.Item, c diag.Counters) Summary {
	s := Summary{Accepted: len(items), Rejected: map[string]int{}}
	s.Records = s.Accepted
	for reason, n := range c.Rejects {
		s.Rejected[reason] = int(n)
		s.Records += int(n)
	}
	if len(items) == 0 {
		return s
	}
	s.MinTokens = math.MaxInt
	total := 0
	for _, it := range items {
		total += it.TokenCount
		s.MinTokens = min(s.MinTokens, it.TokenCount)
		s.MaxTokens = max(s.MaxTokens, it.TokenCount)
	}
	s.AvgTokens = float64(total) / float64(len(items))
	return s
}

// Print 输出汇总；拒收原因按名称排序。
func (s Summary) Print(w io.Writer) {
	fprintf(w, "记录 %d | 入选 %d | 拒收 %d\n", s.Records, s.Accepted, s.Records-s.Accepted)
	reasons := make([]string, 0, len(s.Rejected))
	for r := range s.Rejected {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fprintf(w, "  拒收[%s] %d\n", r, s.Rejected[r])
	}
	if s.Accepted > 0 {
		fprintf(w, "token 最小 %d | 平均 %.1f | 最大 %d\n", s.MinTokens, s.AvgTokens, s.MaxTokens)
	}
}

// printSamples 打印前 n 条入选条目的推理期提示。
func printSamples(w io.Writer, items []prompt.Item, n int) {
	for i := 0; i < n && i < len(items); i++ {
		it := items[i]
		tp, err := it.TestPrompt()
		if err != nil {
			continue
		}
		fprintf(w, "\n--- #%d %s (tokens %d)\n%s\n", i, it, it.TokenCount, tp)
	}
}
