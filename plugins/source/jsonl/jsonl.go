package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"pricecorpus/pkg/contract"
)

// Options: JSON Lines 数据源选项。
type Options struct {
	// Path: 文件路径；"-" 或空表示 STDIN。
	Path string `json:"path"`
	// BufSize: 建立行索引时的读缓冲（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
}

const defaultBuf = 64 * 1024

// span: 一行 JSON 对象在底层数据中的字节区间 [off, off+n)。
type span struct {
	off int64
	n   int
}

// Source: JSON Lines 数据源。
// - 打开时顺序扫描一遍，校验每个非空行为 JSON 对象并记录偏移；
// - Select 按偏移随机读取，内存只保留索引；
// - STDIN 无法随机访问，整体读入内存。
type Source struct {
	id    contract.SourceID
	r     io.ReaderAt
	c     io.Closer
	lines []span
}

var _ contract.Source = (*Source)(nil)

// Open 打开数据源并建立行索引。
func Open(opts *Options) (*Source, error) {
	path, bufSize := "-", defaultBuf
	if opts != nil {
		if p := strings.TrimSpace(opts.Path); p != "" {
			path = p
		}
		if opts.BufSize > 0 {
			bufSize = opts.BufSize
		}
	}

	if path == "-" {
		data, err := io.ReadAll(bufio.NewReaderSize(os.Stdin, bufSize))
		if err != nil {
			return nil, fmt.Errorf("%w: read stdin: %v", contract.ErrSourceUnavailable, err)
		}
		return FromBytes(data)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrSourceUnavailable, err)
	}
	s := &Source{id: contract.NormalizeSourceID(path), r: f, c: f}
	if err := s.index(bufio.NewReaderSize(f, bufSize)); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// FromBytes 由内存数据构造（STDIN 与测试）。
func FromBytes(data []byte) (*Source, error) {
	s := &Source{id: "stdin", r: bytes.NewReader(data)}
	if err := s.index(bufio.NewReader(bytes.NewReader(data))); err != nil {
		return nil, err
	}
	return s, nil
}

// ID 返回规范化的来源标识。
func (s *Source) ID() contract.SourceID { return s.id }

func (s *Source) index(br *bufio.Reader) error {
	var off int64
	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			n := len(line)
			body := bytes.TrimRight(line, "\r\n")
			if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 {
				if !gjson.ValidBytes(trimmed) || !gjson.ParseBytes(trimmed).IsObject() {
					return fmt.Errorf("%w: %s:%d: not a JSON object", contract.ErrInvalidInput, s.id, lineNo)
				}
				s.lines = append(s.lines, span{off: off, n: len(body)})
			}
			off += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", contract.ErrSourceUnavailable, s.id, err)
		}
	}
}

// Len 实现 contract.Source。
func (s *Source) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(s.lines), nil
}

// Select 实现 contract.Source；一次读取区间覆盖的连续字节块再切分。
func (s *Source) Select(ctx context.Context, from, to int) ([]contract.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := contract.CheckRange(from, to, len(s.lines)); err != nil {
		return nil, err
	}
	if from == to {
		return []contract.Record{}, nil
	}
	first, last := s.lines[from], s.lines[to-1]
	buf := make([]byte, last.off+int64(last.n)-first.off)
	if _, err := s.r.ReadAt(buf, first.off); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: %v", contract.ErrSourceUnavailable, s.id, err)
	}
	out := make([]contract.Record, 0, to-from)
	for _, sp := range s.lines[from:to] {
		start := sp.off - first.off
		out = append(out, Record(buf[start:start+int64(sp.n)]))
	}
	return out, nil
}

// Close 释放底层文件；STDIN/内存数据源为空操作。
func (s *Source) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}

// Record: 以原始 JSON 文本承载的记录；字段按需由 gjson 解析。
type Record string

// Get 实现 contract.Record。
func (r Record) Get(key string) (any, bool) {
	res := gjson.Get(string(r), escapeKey(key))
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}

// escapeKey 转义 gjson 路径元字符，使 key 按字面量匹配顶层字段。
func escapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
