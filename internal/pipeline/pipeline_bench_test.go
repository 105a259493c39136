package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"testing"

	"pricecorpus/internal/price"
	"pricecorpus/internal/prompt"
	"pricecorpus/plugins/source/memory"
	"pricecorpus/plugins/tokenizer/vocab"
)

// BenchmarkProcessChunk 单块处理（单 worker 热路径）。
func BenchmarkProcessChunk(b *testing.B) {
	recs := catalog(1000)
	bl, err := prompt.NewBuilder(vocab.NewTokenizer(nil), prompt.DefaultBudget(), prompt.DefaultTemplate())
	if err != nil {
		b.Fatalf("builder: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ProcessChunk(bl, price.DefaultRange(), recs)
	}
}

// BenchmarkRun 完整流水线在不同并发度下的吞吐。
func BenchmarkRun(b *testing.B) {
	src := memory.FromRecords(catalog(5000))
	for _, w := range []int{1, runtime.NumCPU()} {
		b.Run(fmt.Sprintf("W=%d", w), func(b *testing.B) {
			comp := components(src)
			set := Settings{ChunkSize: 250, Workers: w}
			ctx := context.Background()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := Run(ctx, comp, set, nil); err != nil {
					b.Fatalf("运行失败: %v", err)
				}
			}
		})
	}
}
