// Package sqltable 汇集 SQL 表数据源（sqlite / postgres）共用的查询构造与行转换。
package sqltable

import (
	"fmt"
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/tidwall/gjson"

	"pricecorpus/pkg/contract"
)

// Options: SQL 表数据源的公共选项。
type Options struct {
	// Table: 表名（可带 schema 前缀）。
	Table string `json:"table"`
	// OrderBy: 稳定排序列；区间选择依赖该列给出确定顺序。
	OrderBy string `json:"order_by"`
	// JSONColumns: 以 JSON 文本存储列表/对象的列，读出后解码。
	JSONColumns []string `json:"json_columns"`
}

// DefaultJSONColumns: 目录记录中常见的列表字段。
// details 不在其中：按原文清洗，JSON 引号作为结构性噪声去除。
var DefaultJSONColumns = []string{"description", "features", "categories"}

var ident = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Query: 已校验的查询规格。表名与排序列直接拼入 SQL，因此只接受标识符。
type Query struct {
	table   string
	orderBy string
	jsonCol map[string]struct{}
	format  sq.PlaceholderFormat
}

// NewQuery 校验选项并补默认值。
func NewQuery(opts Options, defaultOrder string, format sq.PlaceholderFormat) (*Query, error) {
	table := strings.TrimSpace(opts.Table)
	if table == "" {
		table = "books"
	}
	order := strings.TrimSpace(opts.OrderBy)
	if order == "" {
		order = defaultOrder
	}
	if !ident.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table %q", contract.ErrInvalidInput, table)
	}
	if !ident.MatchString(order) {
		return nil, fmt.Errorf("%w: invalid order_by %q", contract.ErrInvalidInput, order)
	}
	cols := opts.JSONColumns
	if cols == nil {
		cols = DefaultJSONColumns
	}
	q := &Query{table: table, orderBy: order, jsonCol: make(map[string]struct{}, len(cols)), format: format}
	for _, c := range cols {
		q.jsonCol[c] = struct{}{}
	}
	return q, nil
}

// Count 返回计数语句。
func (q *Query) Count() (string, []any, error) {
	return sq.Select("COUNT(*)").From(q.table).PlaceholderFormat(q.format).ToSql()
}

// Range 返回 [from, to) 区间的选择语句。
func (q *Query) Range(from, to int) (string, []any, error) {
	return sq.Select("*").
		From(q.table).
		OrderBy(q.orderBy).
		Limit(uint64(to - from)).
		Offset(uint64(from)).
		PlaceholderFormat(q.format).
		ToSql()
}

// Record 将一行（列名 + 值）转换为记录：值经 contract.Canonical 收敛，
// JSON 列中形如数组/对象的文本被解码；非法 JSON 保留原文。
func (q *Query) Record(cols []string, vals []any) contract.MapRecord {
	rec := make(contract.MapRecord, len(cols))
	for i, c := range cols {
		v := contract.Canonical(vals[i])
		if s, ok := v.(string); ok {
			if _, isJSON := q.jsonCol[c]; isJSON {
				v = decodeJSON(s)
			}
		}
		rec[c] = v
	}
	return rec
}

func decodeJSON(s string) any {
	t := strings.TrimSpace(s)
	if t == "" || (t[0] != '[' && t[0] != '{') || !gjson.Valid(t) {
		return s
	}
	return gjson.Parse(t).Value()
}
