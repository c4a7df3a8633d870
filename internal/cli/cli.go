// Package cli 实现 html2img 命令行。
//
// 子命令：
//   - render：标记 → PNG
//   - svg：标记 → SVG
//   - rasterize：SVG → PNG
//   - layout：输出布局调试 JSON
//   - fonts：列出配置中的字体目录
//
// 所有命令支持 --config 指定 TOML 配置，-v 打开调试日志。
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ByLCY/html2img/config"
	"github.com/ByLCY/html2img/pipeline"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI 保存各子命令共享的状态。
type CLI struct {
	Logger     *log.Logger
	configPath string
	out        io.Writer
}

// New 创建带时间戳日志的 CLI。
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level), out: os.Stdout}
}

// SetLogLevel 更新日志等级。
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand 创建注册了全部子命令的根命令。
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "html2img",
		Short:         "html2img 把结构化标记渲染为 SVG 与 PNG",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "TOML 配置文件路径")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.svgCommand())
	root.AddCommand(c.rasterizeCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.fontsCommand())
	return root
}

// loadConfig 读取 --config，未指定时使用默认配置。
func (c *CLI) loadConfig() (pipeline.Config, error) {
	if c.configPath == "" {
		return pipeline.DefaultConfig(), nil
	}
	return config.Load(c.configPath)
}

// newService 构建服务；相对图片路径按输入文件所在目录解析。
func (c *CLI) newService(ctx context.Context, input string) (*pipeline.Service, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := loggerFromContext(ctx)
	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if input != "" {
		opts = append(opts, pipeline.WithBaseDir(filepath.Dir(input)))
	}
	return pipeline.New(cfg, opts...)
}
