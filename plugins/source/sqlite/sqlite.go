package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"pricecorpus/pkg/contract"
	"pricecorpus/plugins/source/sqltable"
)

// Options: SQLite 表数据源选项。OrderBy 默认 rowid。
type Options struct {
	Path string `json:"path"`
	sqltable.Options
}

// Source: SQLite 表数据源；长度在首次查询后缓存（运行期集合不变）。
type Source struct {
	db   *sql.DB
	q    *sqltable.Query
	id   contract.SourceID
	n    int
	hasN bool
}

var _ contract.Source = (*Source)(nil)

// Open 以只读方式打开数据库文件。
func Open(opts *Options) (*Source, error) {
	if opts == nil || strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("%w: sqlite: path required", contract.ErrInvalidInput)
	}
	q, err := sqltable.NewQuery(opts.Options, "rowid", sq.Question)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", "file:"+opts.Path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: sqlite: %v", contract.ErrSourceUnavailable, err)
	}
	return &Source{db: db, q: q, id: contract.NormalizeSourceID(opts.Path)}, nil
}

// ID 返回规范化的来源标识。
func (s *Source) ID() contract.SourceID { return s.id }

// Len 实现 contract.Source。
func (s *Source) Len(ctx context.Context) (int, error) {
	if s.hasN {
		return s.n, nil
	}
	query, args, err := s.q.Count()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: sqlite: %v", contract.ErrSourceUnavailable, err)
	}
	s.n, s.hasN = n, true
	return n, nil
}

// Select 实现 contract.Source。
func (s *Source) Select(ctx context.Context, from, to int) ([]contract.Record, error) {
	n, err := s.Len(ctx)
	if err != nil {
		return nil, err
	}
	if err := contract.CheckRange(from, to, n); err != nil {
		return nil, err
	}
	if from == to {
		return []contract.Record{}, nil
	}
	query, args, err := s.q.Range(from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: sqlite: %v", contract.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: sqlite: %v", contract.ErrSourceUnavailable, err)
	}
	out := make([]contract.Record, 0, to-from)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: sqlite: %v", contract.ErrSourceUnavailable, err)
		}
		out = append(out, s.q.Record(cols, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: sqlite: %v", contract.ErrSourceUnavailable, err)
	}
	if len(out) != to-from {
		return nil, fmt.Errorf("%w: sqlite: got %d rows for [%d,%d)", contract.ErrInvariantViolation, len(out), from, to)
	}
	return out, nil
}

// Close 关闭数据库句柄。
func (s *Source) Close() error { return s.db.Close() }
