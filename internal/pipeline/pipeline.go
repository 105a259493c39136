package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pricecorpus/internal/diag"
	"pricecorpus/internal/price"
	"pricecorpus/internal/prompt"
	"pricecorpus/pkg/contract"
)

// - 单点并发：仅此层管理并发与背压；Source/Builder/Tokenizer 均为同步实现。
// - 单生产者：Source.Select 只在生产者协程中按分块顺序调用，内存占用受通道容量约束。
// - worker 独占：每个 worker 通过工厂构造自己的 Tokenizer 与 Builder，不共享可变状态。
// - 顺序门闩：结果按分块 Index 连续冲刷；乱序结果暂存。
// - 首错取消：任一致命错误取消整体并返回该错误；不重试、不返回部分结果。

// 默认运行参数。
const (
	DefaultChunkSize = 1000
	DefaultWorkers   = 8
)

// Components 聚合运行所需的组件。
type Components struct {
	Source       contract.Source
	NewTokenizer contract.TokenizerFactory
	Range        price.Range
	Budget       prompt.Budget
	Template     prompt.Template
}

// Settings 运行期配置，启动后不变。
type Settings struct {
	ChunkSize int
	Workers   int
	// Label: 来源展示名（日志与终端提示）。
	Label string
}

// Run 执行分块并行流水线：Partition → Select → (worker: PriceFilter → Builder) → 有序合并。
// 输出顺序 = 分块顺序拼接；块内保持记录原顺序。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) ([]prompt.Item, error) {
	set, err := sanity(comp, set)
	if err != nil {
		return nil, fmt.Errorf("sanity: %w", err)
	}
	runStart := time.Now()
	rtimer := logger.StartWithKV("pipeline", "run", diag.NoChunk, map[string]string{
		"source":     set.Label,
		"chunk_size": strconv.Itoa(set.ChunkSize),
		"workers":    strconv.Itoa(set.Workers),
	})

	n, err := comp.Source.Len(ctx)
	if err != nil {
		fail(logger, "source", "len failed", err, diag.NoChunk, nil)
		return nil, fmt.Errorf("source len: %w", err)
	}
	chunks, err := Partition(n, set.ChunkSize)
	if err != nil {
		return nil, err
	}
	term := diag.GetTerminal()
	term.RunStart(set.Workers, set.Label, len(chunks))
	ok := false
	accepted := 0
	defer func() { term.RunFinish(ok, n, accepted, time.Since(runStart)) }()

	type job struct {
		c    Chunk
		recs []contract.Record
	}
	type res struct {
		c     Chunk
		items []prompt.Item
		tally Tally
	}
	// 有界通道：2×worker，形成自然背压
	inCh := make(chan job, set.Workers*2)
	outCh := make(chan res, set.Workers*2)

	g, gctx := errgroup.WithContext(ctx)

	// 生产者：按顺序选取分块
	g.Go(func() error {
		defer close(inCh)
		for _, c := range chunks {
			recs, err := comp.Source.Select(gctx, c.From, c.To)
			if err != nil {
				fail(logger, "source", "select failed", err, c.Index, map[string]string{"range": c.String()})
				return fmt.Errorf("select chunk %s: %w", c, err)
			}
			if len(recs) != c.Len() {
				err := fmt.Errorf("%w: select chunk %s returned %d records", contract.ErrInvariantViolation, c, len(recs))
				fail(logger, "source", "select size mismatch", err, c.Index, nil)
				return err
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case inCh <- job{c: c, recs: recs}:
			}
		}
		return nil
	})

	// workers
	var wg sync.WaitGroup
	wg.Add(set.Workers)
	for w := 0; w < set.Workers; w++ {
		w := w
		g.Go(func() error {
			defer wg.Done()
			b, err := newWorkerBuilder(comp)
			if err != nil {
				fail(logger, "worker", "init failed", err, diag.NoChunk, map[string]string{"worker": strconv.Itoa(w)})
				return fmt.Errorf("worker %d: %w", w, err)
			}
			for j := range inCh {
				if err := gctx.Err(); err != nil {
					return err
				}
				ctimer := logger.StartWith("worker", "chunk", j.c.Index)
				items, tally := ProcessChunk(b, comp.Range, j.recs)
				if err := verify(j.c, items); err != nil {
					fail(logger, "worker", "invariant broken", err, j.c.Index, nil)
					return err
				}
				ctimer.FinishKV("chunk", int64(tally.Accepted), map[string]string{"records": strconv.Itoa(tally.Records)})
				diag.IncOp("worker", "chunk", "success")
				select {
				case <-gctx.Done():
					return gctx.Err()
				case outCh <- res{c: j.c, items: items, tally: tally}:
				}
			}
			return nil
		})
	}
	// 由 workers 生命周期决定 outCh 关闭
	go func() {
		wg.Wait()
		close(outCh)
	}()

	// 提交门闩：按分块 Index 连续冲刷
	expect := 0
	buf := make(map[int]res)
	out := make([]prompt.Item, 0)
	var total Tally
	done := 0
	for r := range outCh {
		done++
		accepted += len(r.items)
		term.Progress(done, len(chunks), accepted)
		buf[r.c.Index] = r
		for {
			rr, hit := buf[expect]
			if !hit {
				break
			}
			out = append(out, rr.items...)
			total.Add(rr.tally)
			delete(buf, expect)
			expect++
		}
	}

	if err := g.Wait(); err != nil {
		code := diag.Classify(err)
		logger.Error("pipeline", string(code), "run failed", rtimer.Since())
		diag.IncOp("pipeline", "run", "error")
		return nil, err
	}
	if expect != len(chunks) {
		err := fmt.Errorf("%w: merged %d of %d chunks", contract.ErrInvariantViolation, expect, len(chunks))
		fail(logger, "pipeline", "merge incomplete", err, diag.NoChunk, nil)
		return nil, err
	}

	diag.IncReject("price", int64(total.PriceRejected))
	for reason, c := range total.Rejected {
		diag.IncReject(string(reason), int64(c))
	}
	diag.IncOp("pipeline", "run", "success")
	diag.ObserveDuration("pipeline", "run", time.Since(runStart).Milliseconds())
	rtimer.FinishKV("run", int64(len(out)), map[string]string{
		"records":        strconv.Itoa(total.Records),
		"price_rejected": strconv.Itoa(total.PriceRejected),
		"chunks":         strconv.Itoa(len(chunks)),
	})
	ok = true
	return out, nil
}

// newWorkerBuilder 为单个 worker 构造独占的 Tokenizer 与 Builder。
func newWorkerBuilder(comp Components) (*prompt.Builder, error) {
	tok, err := comp.NewTokenizer()
	if err != nil {
		if !errors.Is(err, contract.ErrTokenizerInit) {
			err = fmt.Errorf("%w: %v", contract.ErrTokenizerInit, err)
		}
		return nil, err
	}
	if tok == nil {
		return nil, fmt.Errorf("%w: factory returned nil tokenizer", contract.ErrTokenizerInit)
	}
	return prompt.NewBuilder(tok, comp.Budget, comp.Template)
}

// fail 记录错误事件与计数。
func fail(logger *diag.Logger, comp, msg string, err error, chunk int, kv map[string]string) {
	code := diag.Classify(err)
	logger.ErrorWithKV(comp, string(code), msg+": "+err.Error(), nil, chunk, kv)
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
}

func sanity(c Components, s Settings) (Settings, error) {
	if c.Source == nil || c.NewTokenizer == nil {
		return s, fmt.Errorf("%w: pipeline: missing components", contract.ErrInvalidInput)
	}
	if err := c.Range.Validate(); err != nil {
		return s, err
	}
	if err := c.Budget.Validate(); err != nil {
		return s, err
	}
	if err := c.Template.Validate(); err != nil {
		return s, err
	}
	if s.ChunkSize < 0 || s.Workers < 0 {
		return s, fmt.Errorf("%w: pipeline: chunk_size=%d workers=%d", contract.ErrInvalidInput, s.ChunkSize, s.Workers)
	}
	if s.ChunkSize == 0 {
		s.ChunkSize = DefaultChunkSize
	}
	if s.Workers == 0 {
		s.Workers = DefaultWorkers
	}
	return s, nil
}
