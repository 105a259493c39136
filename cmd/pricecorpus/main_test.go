package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecorpus/internal/diag"
	"pricecorpus/internal/pipeline"
	"pricecorpus/internal/prompt"
	"pricecorpus/pkg/contract"
)

const catalogJSONL = `{"title":"Learning Go","price":31.5,"description":"A practical book about the Go programming language.","main_category":"Books"}
{"title":"Free","price":0,"description":"A practical book that costs nothing at all, which is odd."}
{"title":"Tiny","price":12,"description":"tiny"}
`

// writeFixture 在临时目录写入数据与配置，返回配置路径。
func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "books.jsonl")
	require.NoError(t, os.WriteFile(data, []byte(catalogJSONL), 0o644))
	cfg := fmt.Sprintf(`[logging]
level = "error"
stderr = true

[pipeline]
chunk_size = 2
workers = 2

[budget]
min_chars = 10
min_tokens = 5
max_tokens = 200
chars_per_token = 4

[components]
source = "jsonl"
tokenizer = "vocab"

[options.source]
path = %q
`, data)
	path := filepath.Join(dir, "pricecorpus.toml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func runCLI(args ...string) (int, string, string) {
	var out, errb bytes.Buffer
	code := run(append([]string{"pricecorpus"}, args...), &out, &errb)
	return code, out.String(), errb.String()
}

func TestRunInitConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	code, out, _ := runCLI("init-config", "--dir", dir)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "pricecorpus.toml")
	for _, name := range []string{"pricecorpus.toml", ".env"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, "%s 未生成", name)
	}
	code, out, _ = runCLI("init-config", "--dir", dir)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "未写入")
}

func TestRunSuccess(t *testing.T) {
	cfg := writeFixture(t)
	code, out, errOut := runCLI("run", "--config", cfg, "--status=false", "--show", "1")
	require.Equal(t, 0, code, "stderr: %s", errOut)
	assert.Contains(t, out, "记录 3 | 入选 1 | 拒收 2")
	assert.Contains(t, out, "拒收[price] 1")
	assert.Contains(t, out, "拒收[too_short] 1")
	assert.Contains(t, out, "<Learning Go = $31.5>")
	assert.Contains(t, out, "How much does this book cost to the nearest dollar?")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "Price is $"), "样例应截止于价格前缀: %q", out)
}

func TestRunFlagOverrides(t *testing.T) {
	cfg := writeFixture(t)
	var got pipeline.Settings
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) ([]prompt.Item, error) {
		got = set
		return nil, nil
	}
	defer func() { pipelineRun = orig }()

	code, out, _ := runCLI("run", "--config", cfg, "--status=false", "--workers", "5", "--chunk-size", "7")
	require.Equal(t, 0, code)
	assert.Equal(t, 5, got.Workers)
	assert.Equal(t, 7, got.ChunkSize)
	assert.Contains(t, out, "记录 0 | 入选 0")
}

func TestRunConfigErrors(t *testing.T) {
	cfg := writeFixture(t)
	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"run", "--config", filepath.Join(t.TempDir(), "absent.toml")}},
		{"unknown source", []string{"run", "--config", cfg, "--source", "nope"}},
		{"bad workers", []string{"run", "--config", cfg, "--workers", "-1"}},
		{"missing data", []string{"run", "--config", cfg, "--path", filepath.Join(t.TempDir(), "absent.jsonl")}},
		{"bad flag", []string{"run", "--no-such-flag"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(tt.args...)
			assert.Equal(t, 3, code)
		})
	}
}

func TestRunPipelineFailure(t *testing.T) {
	cfg := writeFixture(t)
	orig := pipelineRun
	defer func() { pipelineRun = orig }()

	pipelineRun = func(context.Context, pipeline.Components, pipeline.Settings, *diag.Logger) ([]prompt.Item, error) {
		return nil, fmt.Errorf("select: %w", contract.ErrSourceUnavailable)
	}
	code, _, errOut := runCLI("run", "--config", cfg, "--status=false")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "运行失败")

	pipelineRun = func(context.Context, pipeline.Components, pipeline.Settings, *diag.Logger) ([]prompt.Item, error) {
		return nil, context.Canceled
	}
	code, _, errOut = runCLI("run", "--config", cfg, "--status=false")
	assert.Equal(t, 1, code)
	assert.NotContains(t, errOut, "运行失败", "取消不应打印错误")
}

func TestValidateCommand(t *testing.T) {
	cfg := writeFixture(t)
	code, out, _ := runCLI("validate", "--config", cfg)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "配置有效")

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[pipeline]\nworkerz = 1\n"), 0o644))
	code, _, errOut := runCLI("validate", "--config", bad)
	assert.Equal(t, 3, code)
	assert.Contains(t, errOut, "配置解析失败")
}

func TestSummarize(t *testing.T) {
	items := []prompt.Item{{Title: "a", TokenCount: 10}, {Title: "b", TokenCount: 20}, {Title: "c", TokenCount: 30}}
	s := summarize(items, diag.Counters{Rejects: map[string]int64{"price": 2, "too_short": 1}})
	assert.Equal(t, 6, s.Records)
	assert.Equal(t, 3, s.Accepted)
	assert.Equal(t, 10, s.MinTokens)
	assert.Equal(t, 30, s.MaxTokens)
	assert.InDelta(t, 20.0, s.AvgTokens, 1e-9)

	var buf bytes.Buffer
	s.Print(&buf)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "记录 6 | 入选 3 | 拒收 3", lines[0])
	assert.Equal(t, "  拒收[price] 2", lines[1])
	assert.Equal(t, "  拒收[too_short] 1", lines[2])

	empty := summarize(nil, diag.Counters{})
	assert.Equal(t, Summary{Rejected: map[string]int{}}, empty)
}

func TestPrintSamplesSkipsExcluded(t *testing.T) {
	var buf bytes.Buffer
	printSamples(&buf, []prompt.Item{{Title: "x"}}, 3)
	assert.Empty(t, buf.String())
}
