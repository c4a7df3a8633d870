// Package pipeline 把字体目录、选项合并与两个阶段组合为对外服务。
//
// Service 由 New 一次性构建：字体目录、布局默认值与光栅默认值只在 New 中写入，
// 之后只读，因此所有方法都可以被并发调用。每次调用先合并选项，再交给对应阶段。
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ByLCY/html2img/errors"
	"github.com/ByLCY/html2img/fonts"
	"github.com/ByLCY/html2img/layout"
	"github.com/ByLCY/html2img/markup"
	"github.com/ByLCY/html2img/options"
	"github.com/ByLCY/html2img/raster"
	canvasrenderer "github.com/ByLCY/html2img/renderer/canvas"
)

// Config 是服务启动时的配置。
type Config struct {
	// Fonts 是启动时加载的字体目录，任一文件不可读则启动失败。
	Fonts []fonts.Descriptor
	// Layout 是布局默认值；字体目录中的字体排在 Layout.Fonts 之前。
	Layout options.Layout
	// Raster 是光栅默认值；字体目录的路径排在 Raster.Font.FontFiles 之前。
	Raster options.Raster
}

// DefaultConfig 返回没有字体的默认配置。
func DefaultConfig() Config {
	return Config{Layout: options.DefaultLayout(), Raster: options.DefaultRaster()}
}

// Option 配置 Service 的可选依赖。
type Option func(*settings)

type settings struct {
	logger       *log.Logger
	layoutEngine layout.Engine
	rasterEngine raster.Engine
	baseDir      string
}

// WithLogger 设置服务日志，默认丢弃。
func WithLogger(l *log.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithLayoutEngine 替换默认的 canvas 布局引擎。
func WithLayoutEngine(e layout.Engine) Option {
	return func(s *settings) { s.layoutEngine = e }
}

// WithRasterEngine 替换默认的 canvas 光栅引擎。
func WithRasterEngine(e raster.Engine) Option {
	return func(s *settings) { s.rasterEngine = e }
}

// WithBaseDir 设置默认布局引擎解析相对图片路径的目录。
func WithBaseDir(dir string) Option {
	return func(s *settings) { s.baseDir = dir }
}

// Service 是渲染服务。
type Service struct {
	registry       *fonts.Registry
	layoutDefaults options.Layout
	rasterDefaults options.Raster
	layoutEngine   layout.Engine
	layout         *layout.Stage
	raster         *raster.Stage
	logger         *log.Logger
}

// New 加载字体目录并派生两个阶段的默认选项。
// 字体缺失（FONT_NOT_FOUND）或默认选项非法（INVALID_CONFIG）时返回错误，不会返回部分构建的服务。
func New(cfg Config, opts ...Option) (*Service, error) {
	st := settings{}
	for _, opt := range opts {
		opt(&st)
	}
	if st.logger == nil {
		st.logger = log.New(io.Discard)
	}

	registry, err := fonts.NewRegistry(cfg.Fonts)
	if err != nil {
		return nil, err
	}

	layoutDefaults := options.MergeLayout(cfg.Layout, nil)
	layoutDefaults.Fonts = append(registry.Records(), cfg.Layout.Fonts...)

	rasterDefaults := options.MergeRaster(cfg.Raster, nil)
	rasterDefaults.Font.FontFiles = append(registry.Paths(), cfg.Raster.Font.FontFiles...)
	if err := rasterDefaults.Validate(); err != nil {
		return nil, errors.Wrap(errors.CodeInvalidConfig, err, "光栅默认选项非法")
	}

	if st.layoutEngine == nil {
		st.layoutEngine = canvasrenderer.NewEngine(canvasrenderer.Options{
			BaseDir: st.baseDir,
			Logger:  st.logger.WithPrefix("layout"),
		})
	}
	if st.rasterEngine == nil {
		st.rasterEngine = canvasrenderer.NewRasterizer(st.logger.WithPrefix("raster"))
	}

	st.logger.Info("service ready", "fonts", registry.Len(),
		"embedFont", layoutDefaults.EmbedFont, "dpi", rasterDefaults.DPI, "fitTo", rasterDefaults.FitTo.String())
	return &Service{
		registry:       registry,
		layoutDefaults: layoutDefaults,
		rasterDefaults: rasterDefaults,
		layoutEngine:   st.layoutEngine,
		layout:         layout.NewStage(st.layoutEngine),
		raster:         raster.NewStage(st.rasterEngine),
		logger:         st.logger,
	}, nil
}

// Fonts 返回字体目录的副本。
func (s *Service) Fonts() []fonts.Record { return s.registry.Records() }

// LayoutDefaults 返回布局默认值的副本。
func (s *Service) LayoutDefaults() options.Layout { return options.MergeLayout(s.layoutDefaults, nil) }

// RasterDefaults 返回光栅默认值的副本。
func (s *Service) RasterDefaults() options.Raster { return options.MergeRaster(s.rasterDefaults, nil) }

// RenderToVector 把标记树排版为 SVG。
func (s *Service) RenderToVector(ctx context.Context, tree *markup.Node, sizing layout.Sizing, o *options.LayoutOverride) ([]byte, error) {
	logger := s.callLogger("vector")
	return s.renderVector(ctx, logger, tree, sizing, o)
}

// Rasterize 把 SVG 转为 PNG。
func (s *Service) Rasterize(ctx context.Context, svg []byte, o *options.RasterOverride) (*raster.Image, error) {
	logger := s.callLogger("raster")
	return s.rasterize(ctx, logger, svg, o)
}

// RenderToRaster 依次执行两个阶段；布局失败时直接返回该错误，不再光栅化。
func (s *Service) RenderToRaster(ctx context.Context, tree *markup.Node, sizing layout.Sizing, lo *options.LayoutOverride, ro *options.RasterOverride) (*raster.Image, error) {
	logger := s.callLogger("render")
	svg, err := s.renderVector(ctx, logger, tree, sizing, lo)
	if err != nil {
		return nil, err
	}
	return s.rasterize(ctx, logger, svg, ro)
}

// inspector 是能够单独输出布局结果的引擎。
type inspector interface {
	Layout(ctx context.Context, tree *markup.Node, sizing layout.Sizing, opts options.Layout) (*layout.Result, error)
}

// Layout 只计算布局并返回结果，供调试 JSON 使用；引擎不支持时返回 LAYOUT_ERROR。
func (s *Service) Layout(ctx context.Context, tree *markup.Node, sizing layout.Sizing, o *options.LayoutOverride) (*layout.Result, error) {
	if err := sizing.Validate(); err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, errors.New(errors.CodeLayout, "布局阶段: 标记树为空")
	}
	in, ok := s.layoutEngine.(inspector)
	if !ok {
		return nil, errors.New(errors.CodeLayout, "布局引擎 %T 不支持输出布局结果", s.layoutEngine)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := in.Layout(ctx, tree, sizing, options.MergeLayout(s.layoutDefaults, o))
	if err != nil {
		if errors.GetCode(err) != "" || ctx.Err() != nil {
			return nil, err
		}
		return nil, errors.Wrap(errors.CodeLayout, err, "布局阶段: 排版 <%s> (%s) 失败", tree.Tag, sizing)
	}
	return res, nil
}

func (s *Service) callLogger(op string) *log.Logger {
	return s.logger.With("call", uuid.NewString(), "op", op)
}

func (s *Service) renderVector(ctx context.Context, logger *log.Logger, tree *markup.Node, sizing layout.Sizing, o *options.LayoutOverride) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	eff := options.MergeLayout(s.layoutDefaults, o)
	start := time.Now()
	svg, err := s.layout.Render(ctx, tree, sizing, eff)
	if err != nil {
		logger.Warn("layout failed", "sizing", sizing.String(), "code", errors.GetCode(err), "err", err)
		return nil, err
	}
	logger.Debug("layout done", "sizing", sizing.String(), "fonts", len(eff.Fonts),
		"bytes", len(svg), "elapsed", time.Since(start).Round(time.Millisecond))
	return svg, nil
}

func (s *Service) rasterize(ctx context.Context, logger *log.Logger, svg []byte, o *options.RasterOverride) (*raster.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	eff := options.MergeRaster(s.rasterDefaults, o)
	start := time.Now()
	img, err := s.raster.Rasterize(ctx, svg, eff)
	if err != nil {
		logger.Warn("raster failed", "code", errors.GetCode(err), "err", err)
		return nil, err
	}
	logger.Debug("raster done", "width", img.Width, "height", img.Height,
		"fitTo", eff.FitTo.String(), "elapsed", time.Since(start).Round(time.Millisecond))
	return img, nil
}
