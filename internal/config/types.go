package config

import (
	"pricecorpus/internal/price"
	"pricecorpus/internal/prompt"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// 键使用 snake_case；未知键在解析期失败。
type Config struct {
	Logging    Logging         `koanf:"logging"`
	Pipeline   Pipeline        `koanf:"pipeline"`
	Budget     prompt.Budget   `koanf:"budget"`
	Price      price.Range     `koanf:"price"`
	Prompt     prompt.Template `koanf:"prompt"`
	Components Components      `koanf:"components"`
	// 组件 Options 子树，转为 JSON 后交给注册表工厂严格解码。
	Options Options `koanf:"options"`
}

// Logging: 等级与输出位置；Stderr=true 时忽略 Dir。
type Logging struct {
	Level  string `koanf:"level"`
	Dir    string `koanf:"dir"`
	Stderr bool   `koanf:"stderr"`
}

// Pipeline: 分块大小与 worker 数。
type Pipeline struct {
	ChunkSize int `koanf:"chunk_size"`
	Workers   int `koanf:"workers"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Source    string `koanf:"source"`
	Tokenizer string `koanf:"tokenizer"`
}

// Options: 各组件的原样 Options。
type Options struct {
	Source    map[string]any `koanf:"source"`
	Tokenizer map[string]any `koanf:"tokenizer"`
}
