package canvasrenderer

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/ByLCY/html2img/layout"
	"github.com/ByLCY/html2img/markup"
	"github.com/ByLCY/html2img/options"
)

var _ layout.Engine = (*Engine)(nil)

// Options configures the canvas layout engine.
type Options struct {
	// BaseDir 用于解析相对路径的图片；为空时相对路径按当前目录解析。
	BaseDir string
	// HTTPClient 用于下载 http(s) 图片，为空时使用 http.DefaultClient。
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Engine 是基于 github.com/tdewolff/canvas 的默认布局引擎：
// layout.Build 计算盒子，session 负责换行测量与 SVG 输出。
// Engine 本身无可变状态，可被并发调用。
type Engine struct {
	images *imageLoader
	logger *log.Logger
}

// NewEngine creates a canvas-based layout engine.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Engine{
		images: &imageLoader{baseDir: opts.BaseDir, client: client},
		logger: logger,
	}
}

// Layout 只做盒子计算，返回可序列化为调试 JSON 的布局结果。
func (e *Engine) Layout(ctx context.Context, tree *markup.Node, sizing layout.Sizing, opts options.Layout) (*layout.Result, error) {
	s := newSession(ctx, e.images, opts.EmbedFont)
	return e.build(s, tree, sizing, opts)
}

// Render 排版并输出 SVG。
func (e *Engine) Render(ctx context.Context, tree *markup.Node, sizing layout.Sizing, opts options.Layout) ([]byte, error) {
	s := newSession(ctx, e.images, opts.EmbedFont)
	res, err := e.build(s, tree, sizing, opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	svg, err := s.Render(res)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("svg rendered", "width", res.Width, "height", res.Height,
		"texts", len(res.Texts), "images", len(res.Images), "bytes", len(svg))
	return svg, nil
}

func (e *Engine) build(s *session, tree *markup.Node, sizing layout.Sizing, opts options.Layout) (*layout.Result, error) {
	res, err := layout.Build(tree, sizing, layout.BuildOptions{
		Typesetter:     s,
		Fonts:          opts.Fonts,
		GraphemeImages: opts.GraphemeImages,
		Debug:          layout.DebugOptions{Outlines: opts.Debug, RawUnits: opts.Debug},
	})
	if err != nil {
		return nil, fmt.Errorf("计算布局失败: %w", err)
	}
	return res, nil
}
