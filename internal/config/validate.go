package config

import (
	"fmt"

	"pricecorpus/pkg/contract"
	"pricecorpus/pkg/registry"
)

// Validate 对最小必要边界做静态校验；错误均包装 ErrInvalidInput。
func Validate(cfg Config) error {
	if cfg.Pipeline.ChunkSize < 1 {
		return fmt.Errorf("%w: config: pipeline.chunk_size must be >= 1", contract.ErrInvalidInput)
	}
	if cfg.Pipeline.Workers < 1 {
		return fmt.Errorf("%w: config: pipeline.workers must be >= 1", contract.ErrInvalidInput)
	}
	if err := cfg.Budget.Validate(); err != nil {
		return err
	}
	if err := cfg.Price.Validate(); err != nil {
		return err
	}
	if err := cfg.Prompt.Validate(); err != nil {
		return err
	}
	if registry.Source[cfg.Components.Source] == nil {
		return fmt.Errorf("%w: config: source %q not registered", contract.ErrInvalidInput, cfg.Components.Source)
	}
	if registry.Tokenizer[cfg.Components.Tokenizer] == nil {
		return fmt.Errorf("%w: config: tokenizer %q not registered", contract.ErrInvalidInput, cfg.Components.Tokenizer)
	}
	return nil
}
