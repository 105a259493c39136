package config

import (
	"encoding/json"
	"fmt"
	"io"

	"pricecorpus/internal/pipeline"
	"pricecorpus/pkg/contract"
	"pricecorpus/pkg/registry"
)

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
// 返回的 Source 若实现 io.Closer，由调用方负责关闭。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	srcRaw, err := rawOptions("source", cfg.Options.Source)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	tokRaw, err := rawOptions("tokenizer", cfg.Options.Tokenizer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	// 分词器先于数据源构造：其失败不应遗留已打开的数据源
	newTok, err := registry.Tokenizer[cfg.Components.Tokenizer](tokRaw)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	src, err := registry.Source[cfg.Components.Source](srcRaw)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	comp := pipeline.Components{
		Source:       src,
		NewTokenizer: newTok,
		Range:        cfg.Price,
		Budget:       cfg.Budget,
		Template:     cfg.Prompt,
	}
	set := pipeline.Settings{
		ChunkSize: cfg.Pipeline.ChunkSize,
		Workers:   cfg.Pipeline.Workers,
		Label:     label(src, cfg.Components.Source),
	}
	return comp, set, nil
}

// Close 关闭实现了 io.Closer 的数据源；其余为空操作。
func Close(src contract.Source) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func rawOptions(name string, m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: config: options.%s: %v", contract.ErrInvalidInput, name, err)
	}
	return raw, nil
}

// label: 优先使用数据源自身的标识（通常为路径），否则用组件名。
func label(src contract.Source, name string) string {
	if s, ok := src.(interface{ ID() contract.SourceID }); ok {
		if id := string(s.ID()); id != "" {
			return id
		}
	}
	return name
}
