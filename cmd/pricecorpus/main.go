package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	cfgpkg "pricecorpus/internal/config"
	"pricecorpus/internal/diag"
	"pricecorpus/internal/pipeline"
)

var pipelineRun = pipeline.Run

// 退出码：0 成功；1 运行期失败；3 配置/装配失败。
const (
	exitOK     = 0
	exitRun    = 1
	exitConfig = 3
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	app := newApp(stdout, stderr)
	if err := app.Run(args); err != nil {
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			if msg := strings.TrimSpace(err.Error()); msg != "" {
				fprintf(stderr, "%s\n", msg)
			}
			return ec.ExitCode()
		}
		// 旗标解析等 CLI 层错误
		fprintf(stderr, "参数错误: %v\n", err)
		return exitConfig
	}
	return exitOK
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "pricecorpus",
		Usage:     "从商品目录记录生成带价格答案的提示词语料",
		Writer:    stdout,
		ErrWriter: stderr,
		// 退出码由 run 统一处理，不在库内 os.Exit
		ExitErrHandler: func(*cli.Context, error) {},
		Before: func(*cli.Context) error {
			// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV；文件不存在时忽略）
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				fprintf(stderr, "提示：.env 解析失败（已跳过）：%v\n", err)
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand(stdout, stderr),
			validateCommand(stdout),
			initCommand(stdout),
		},
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "配置文件 `FILE`（TOML）；缺省读取 ./pricecorpus.toml（若存在）",
		EnvVars: []string{"PRICECORPUS_CONFIG_FILE"},
	}
}

func runCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "运行流水线并打印汇总与样例提示词",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "source", Usage: "数据源组件名（覆盖配置）"},
			&cli.StringFlag{Name: "path", Usage: "数据源路径（覆盖 options.source.path）"},
			&cli.StringFlag{Name: "tokenizer", Usage: "分词器组件名（覆盖配置）"},
			&cli.IntFlag{Name: "chunk-size", Usage: "分块大小（覆盖配置）"},
			&cli.IntFlag{Name: "workers", Usage: "worker 数（覆盖配置）"},
			&cli.IntFlag{Name: "show", Value: 1, Usage: "打印前 N 条入选条目的推理期提示"},
			&cli.BoolFlag{Name: "status", Value: true, Usage: "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出"},
		},
		Action: func(c *cli.Context) error {
			return runPipeline(c, stdout, stderr)
		},
	}
}

func validateCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "加载并校验配置，不运行流水线",
		Flags: []cli.Flag{configFlag()},
		Action: func(c *cli.Context) error {
			if _, err := loadConfig(c); err != nil {
				return cli.Exit(err.Error(), exitConfig)
			}
			fprintf(stdout, "配置有效\n")
			return nil
		},
	}
}

func initCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "init-config",
		Usage: "生成默认配置 pricecorpus.toml 与 .env 模板（已存在则跳过，不覆盖）",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: ".", Usage: "输出目录"},
		},
		Action: func(c *cli.Context) error {
			written, err := cfgpkg.WriteTemplates(c.String("dir"))
			if err != nil {
				return cli.Exit("生成默认配置失败: "+err.Error(), exitConfig)
			}
			if len(written) == 0 {
				fprintf(stdout, "模板均已存在，未写入\n")
			}
			for _, p := range written {
				fprintf(stdout, "已生成 %s\n", p)
			}
			return nil
		},
	}
}

// loadConfig: 文件 → ENV → 命令行覆盖，并做静态校验。
func loadConfig(c *cli.Context) (cfgpkg.Config, error) {
	path := c.String("config")
	if path == "" {
		if _, err := os.Stat(cfgpkg.FileName); err == nil {
			path = cfgpkg.FileName
		}
	}
	over := map[string]any{}
	for flag, key := range map[string]string{
		"source":    "components.source",
		"tokenizer": "components.tokenizer",
		"path":      "options.source.path",
	} {
		if c.IsSet(flag) {
			over[key] = c.String(flag)
		}
	}
	if c.IsSet("chunk-size") {
		over["pipeline.chunk_size"] = c.Int("chunk-size")
	}
	if c.IsSet("workers") {
		over["pipeline.workers"] = c.Int("workers")
	}
	cfg, err := cfgpkg.Load(path, over)
	if err != nil {
		return cfg, fmt.Errorf("配置解析失败: %w", err)
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		return cfg, fmt.Errorf("配置校验失败: %w", err)
	}
	return cfg, nil
}

func runPipeline(c *cli.Context, stdout, stderr io.Writer) error {
	start := time.Now()
	corrID := uuid.NewString()

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}
	logger := diag.NewLogger(corrID, cfg.Logging.Level, cfg.Logging.Dir, cfg.Logging.Stderr)
	defer logger.Close()

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		logger.Error("pipeline", string(diag.Classify(err)), "assemble failed", &start)
		return cli.Exit("装配失败: "+err.Error(), exitConfig)
	}
	defer func() {
		if err := cfgpkg.Close(comp.Source); err != nil {
			logger.Warn("source", "close failed", map[string]string{"err": err.Error()})
		}
	}()

	logger.DebugStart("config", "effective", diag.NoChunk, map[string]string{
		"source":     cfg.Components.Source,
		"tokenizer":  cfg.Components.Tokenizer,
		"chunk_size": fmt.Sprint(cfg.Pipeline.ChunkSize),
		"workers":    fmt.Sprint(cfg.Pipeline.Workers),
		"price":      fmt.Sprintf("[%v, %v]", cfg.Price.Min, cfg.Price.Max),
		"label":      set.Label,
	})

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	diag.SetTerminal(diag.NewTerminal(stderr, c.Bool("status")))
	defer diag.SetTerminal(nil)
	diag.Reset()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	items, err := pipelineRun(ctx, comp, set, logger)
	if err != nil {
		logger.Error("pipeline", string(diag.Classify(err)), "first error", &start)
		if errors.Is(err, context.Canceled) {
			return cli.Exit("", exitRun)
		}
		return cli.Exit("运行失败: "+err.Error(), exitRun)
	}

	sum := summarize(items, diag.Snapshot())
	sum.Print(stdout)
	printSamples(stdout, items, c.Int("show"))
	return nil
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }
