package memory

import (
	"context"

	"pricecorpus/pkg/contract"
)

// Options: 内联记录（测试与小规模试跑）。
type Options struct {
	Records []map[string]any `json:"records"`
}

// Source: 内存记录集合；构造后只读。
type Source struct {
	recs []contract.Record
}

var _ contract.Source = (*Source)(nil)

// New 由 Options 构造；记录值先经 contract.Canonical 收敛。
func New(opts *Options) *Source {
	if opts == nil {
		return &Source{}
	}
	return FromMaps(opts.Records)
}

// FromMaps 由原始映射构造。
func FromMaps(maps []map[string]any) *Source {
	recs := make([]contract.Record, len(maps))
	for i, m := range maps {
		recs[i] = contract.CanonicalRecord(m)
	}
	return &Source{recs: recs}
}

// FromRecords 直接包装已有记录（不复制记录本身）。
func FromRecords(recs []contract.Record) *Source {
	return &Source{recs: recs}
}

// Len 实现 contract.Source。
func (s *Source) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(s.recs), nil
}

// Select 实现 contract.Source；返回切片为副本，调用方可自由持有。
func (s *Source) Select(ctx context.Context, from, to int) ([]contract.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := contract.CheckRange(from, to, len(s.recs)); err != nil {
		return nil, err
	}
	out := make([]contract.Record, to-from)
	copy(out, s.recs[from:to])
	return out, nil
}
