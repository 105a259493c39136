package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// 模板文件名。
const (
	FileName     = "pricecorpus.toml"
	DotEnvName   = ".env"
	templateTOML = `# pricecorpus 配置（由 init-config 生成）
# 优先级：命令行 > 环境变量(.env) > 本文件 > 内置默认

[logging]
level = "info"      # debug | info | warn | error
dir = "logs"        # 轮转日志目录
stderr = false      # true 时日志写入 stderr

[pipeline]
chunk_size = 1000
workers = 8

[budget]
min_chars = 300
min_tokens = 150
max_tokens = 160
chars_per_token = 7

[price]
min = 0.5
max = 999.49

[prompt]
question = "How much does this book cost to the nearest dollar?"
prefix = "Price is $"
category_field = "main_category"

[components]
source = "jsonl"        # memory | jsonl | yaml | sqlite | postgres
tokenizer = "tiktoken"  # tiktoken | vocab

[options.source]
path = "-"              # "-" 表示 STDIN
buf_size = 65536

[options.tokenizer]
encoding = "cl100k_base"
model = ""
`
	templateDotEnv = `# pricecorpus .env 模板（由 init-config 生成）
# 层级以 "__" 分隔；空值表示未设置，按需填写后取消注释。

# PRICECORPUS_LOGGING__LEVEL=
# PRICECORPUS_PIPELINE__CHUNK_SIZE=
# PRICECORPUS_PIPELINE__WORKERS=
# PRICECORPUS_COMPONENTS__SOURCE=
# PRICECORPUS_COMPONENTS__TOKENIZER=
# PRICECORPUS_OPTIONS__SOURCE__PATH=
# PRICECORPUS_OPTIONS__SOURCE__DSN=

# tiktoken 编码表缓存目录（离线环境）
# TIKTOKEN_CACHE_DIR=
`
)

// TemplateTOML 返回默认配置模板文本；解析结果与 Defaults 一致（options 除外）。
func TemplateTOML() string { return templateTOML }

// WriteTemplates 在 dir 下生成 pricecorpus.toml 与 .env；已存在的文件跳过，不覆盖。
// 返回实际写入的文件路径。
func WriteTemplates(dir string) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	for _, f := range []struct{ name, body string }{
		{FileName, templateTOML},
		{DotEnvName, templateDotEnv},
	} {
		p := filepath.Join(dir, f.name)
		ok, err := writeExclusive(p, f.body)
		if err != nil {
			return written, fmt.Errorf("config: write %s: %w", p, err)
		}
		if ok {
			written = append(written, p)
		}
	}
	return written, nil
}

func writeExclusive(path, body string) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	if _, err := f.WriteString(body); err != nil {
		_ = f.Close()
		return false, err
	}
	return true, f.Close()
}
