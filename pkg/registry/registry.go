package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"pricecorpus/pkg/contract"
	sjl "pricecorpus/plugins/source/jsonl"
	smem "pricecorpus/plugins/source/memory"
	spg "pricecorpus/plugins/source/postgres"
	ssql "pricecorpus/plugins/source/sqlite"
	syml "pricecorpus/plugins/source/yamlfile"
	ttk "pricecorpus/plugins/tokenizer/tiktoken"
	tvb "pricecorpus/plugins/tokenizer/vocab"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: options: %v", contract.ErrInvalidInput, err)
	}
	return nil
}

// NewSource 工厂签名：接收原样 JSON Options。
// 返回的 Source 若实现 io.Closer，由调用方负责关闭。
type NewSource func(raw json.RawMessage) (contract.Source, error)

// NewTokenizer 工厂签名：返回按 worker 构造实例的 TokenizerFactory。
type NewTokenizer func(raw json.RawMessage) (contract.TokenizerFactory, error)

// Source 工厂注册表（显式、零反射）。
var Source = map[string]NewSource{
	// memory: 内联记录
	"memory": func(raw json.RawMessage) (contract.Source, error) {
		var opts smem.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return smem.New(&opts), nil
	},
	// jsonl: JSON Lines 文件或 STDIN
	"jsonl": func(raw json.RawMessage) (contract.Source, error) {
		var opts sjl.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sjl.Open(&opts)
	},
	// yaml: YAML 记录序列
	"yaml": func(raw json.RawMessage) (contract.Source, error) {
		var opts syml.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return syml.Open(&opts)
	},
	// sqlite: SQLite 表
	"sqlite": func(raw json.RawMessage) (contract.Source, error) {
		var opts ssql.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ssql.Open(&opts)
	},
	// postgres: PostgreSQL 表
	"postgres": func(raw json.RawMessage) (contract.Source, error) {
		var opts spg.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return spg.Open(context.Background(), &opts)
	},
}

// Tokenizer 工厂注册表。
var Tokenizer = map[string]NewTokenizer{
	// tiktoken: BPE 编码（cl100k_base 等）
	"tiktoken": func(raw json.RawMessage) (contract.TokenizerFactory, error) {
		var opts ttk.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ttk.New(&opts)
	},
	// vocab: 固定词表 + 字节回退（离线、确定性）
	"vocab": func(raw json.RawMessage) (contract.TokenizerFactory, error) {
		var opts tvb.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return tvb.New(&opts)
	},
}
