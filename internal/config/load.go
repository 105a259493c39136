package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"

	"pricecorpus/internal/pipeline"
	"pricecorpus/internal/price"
	"pricecorpus/internal/prompt"
	"pricecorpus/pkg/contract"
)

// EnvPrefix: 环境变量前缀；层级以 "__" 分隔，例如 PRICECORPUS_PIPELINE__WORKERS=4。
const EnvPrefix = "PRICECORPUS_"

// Defaults 返回内置默认值（扁平键）。
func Defaults() map[string]any {
	b, r, t := prompt.DefaultBudget(), price.DefaultRange(), prompt.DefaultTemplate()
	return map[string]any{
		"logging.level":          "info",
		"logging.dir":            "logs",
		"logging.stderr":         false,
		"pipeline.chunk_size":    pipeline.DefaultChunkSize,
		"pipeline.workers":       pipeline.DefaultWorkers,
		"budget.min_chars":       b.MinChars,
		"budget.min_tokens":      b.MinTokens,
		"budget.max_tokens":      b.MaxTokens,
		"budget.chars_per_token": b.CharsPerToken,
		"price.min":              r.Min,
		"price.max":              r.Max,
		"prompt.question":        t.Question,
		"prompt.prefix":          t.Prefix,
		"prompt.category_field":  t.CategoryField,
		"components.source":      "jsonl",
		"components.tokenizer":   "tiktoken",
	}
}

// Load 按 默认值 → TOML 文件 → 环境变量 → overrides 的顺序叠加，后者覆盖前者。
// path 为空时跳过文件层；overrides 使用扁平键（如 "pipeline.workers"），通常来自命令行。
func Load(path string, overrides map[string]any) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: defaults: %w", err)
	}
	if strings.TrimSpace(path) != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return Config{}, fmt.Errorf("%w: config: load %s: %v", contract.ErrInvalidInput, path, err)
		}
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("config: env: %w", err)
	}
	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return Config{}, fmt.Errorf("config: overrides: %w", err)
		}
	}
	return decode(k)
}

// Parse 从内存中的 TOML 文本加载（叠加在默认值之上，不读环境变量）。
func Parse(data []byte) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: defaults: %w", err)
	}
	m, err := toml.Parser().Unmarshal(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: config: %v", contract.ErrInvalidInput, err)
	}
	if err := k.Load(confmap.Provider(m, ""), nil); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return decode(k)
}

// decode: 未知键报错；字符串按目标类型弱转换（环境变量取值均为字符串）。
func decode(k *koanf.Koanf) (Config, error) {
	var cfg Config
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			ErrorUnused:      true,
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	})
	if err != nil {
		return Config{}, fmt.Errorf("%w: config: %v", contract.ErrInvalidInput, err)
	}
	return cfg, nil
}

// envKey: PRICECORPUS_OPTIONS__SOURCE__PATH → options.source.path。
// 不含 "__" 的变量不属于配置树，跳过（返回空键）。
// options 子树的取值若是合法 JSON 标量/数组/对象则按 JSON 解析，其余保持字符串。
func envKey(k, v string) (string, any) {
	k = strings.TrimPrefix(k, EnvPrefix)
	if !strings.Contains(k, "__") {
		return "", nil
	}
	key := strings.ToLower(strings.ReplaceAll(k, "__", "."))
	if strings.HasPrefix(key, "options.") && gjson.Valid(v) {
		return key, gjson.Parse(v).Value()
	}
	return key, v
}
