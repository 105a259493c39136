package yamlfile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pricecorpus/pkg/contract"
	"pricecorpus/plugins/source/memory"
)

// Options: YAML 数据源选项。
type Options struct {
	Path string `json:"path"`
	// Key: 记录序列所在的顶层键；为空时文档本身即序列。
	Key string `json:"key"`
}

// Source: 整体载入内存的 YAML 记录序列。
type Source struct {
	*memory.Source
	id contract.SourceID
}

var _ contract.Source = (*Source)(nil)

// Open 读取并解析文件。
func Open(opts *Options) (*Source, error) {
	if opts == nil || strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("%w: yamlfile: path required", contract.ErrInvalidInput)
	}
	data, err := os.ReadFile(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrSourceUnavailable, err)
	}
	maps, err := Parse(data, opts.Key)
	if err != nil {
		return nil, err
	}
	return &Source{Source: memory.FromMaps(maps), id: contract.NormalizeSourceID(opts.Path)}, nil
}

// ID 返回规范化的来源标识。
func (s *Source) ID() contract.SourceID { return s.id }

// Parse 解析 YAML 文档并取出记录序列；序列元素必须为映射。
func Parse(data []byte, key string) ([]map[string]any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: yaml: %v", contract.ErrInvalidInput, err)
	}
	if doc == nil {
		return nil, nil
	}
	if key != "" {
		m, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: yaml: top level is not a mapping", contract.ErrInvalidInput)
		}
		doc = m[key]
	}
	seq, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: yaml: records must be a sequence", contract.ErrInvalidInput)
	}
	out := make([]map[string]any, len(seq))
	for i, e := range seq {
		switch m := e.(type) {
		case map[string]any:
			out[i] = m
		case map[any]any:
			out[i] = contract.Canonical(m).(map[string]any)
		default:
			return nil, fmt.Errorf("%w: yaml: record %d is not a mapping", contract.ErrInvalidInput, i)
		}
	}
	return out, nil
}
