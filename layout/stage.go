package layout

import (
	"context"
	"fmt"

	"github.com/ByLCY/html2img/errors"
	"github.com/ByLCY/html2img/markup"
	"github.com/ByLCY/html2img/options"
)

// Sizing 是画布尺寸约束，宽高至少给出一个；缺失的一边由内容尺寸推断。
type Sizing struct {
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
}

// Size 返回同时指定宽高的约束。
func Size(width, height float64) Sizing { return Sizing{Width: &width, Height: &height} }

// FixedWidth 返回只指定宽度的约束。
func FixedWidth(width float64) Sizing { return Sizing{Width: &width} }

// FixedHeight 返回只指定高度的约束。
func FixedHeight(height float64) Sizing { return Sizing{Height: &height} }

// Validate 检查宽高至少给出一个且均为正数。
func (s Sizing) Validate() error {
	if s.Width == nil && s.Height == nil {
		return errors.New(errors.CodeInvalidSizing, "宽度与高度至少需要提供一个")
	}
	if s.Width != nil && *s.Width <= 0 {
		return errors.New(errors.CodeInvalidSizing, "宽度必须大于 0，实际为 %g", *s.Width)
	}
	if s.Height != nil && *s.Height <= 0 {
		return errors.New(errors.CodeInvalidSizing, "高度必须大于 0，实际为 %g", *s.Height)
	}
	return nil
}

func (s Sizing) String() string {
	switch {
	case s.Width != nil && s.Height != nil:
		return fmt.Sprintf("%gx%g", *s.Width, *s.Height)
	case s.Width != nil:
		return fmt.Sprintf("%gx?", *s.Width)
	case s.Height != nil:
		return fmt.Sprintf("?x%g", *s.Height)
	default:
		return "?x?"
	}
}

// Engine 把标记树排版为矢量图（SVG）。
type Engine interface {
	Render(ctx context.Context, tree *markup.Node, sizing Sizing, opts options.Layout) ([]byte, error)
}

// EngineFunc 让普通函数实现 Engine。
type EngineFunc func(ctx context.Context, tree *markup.Node, sizing Sizing, opts options.Layout) ([]byte, error)

// Render 实现 Engine。
func (f EngineFunc) Render(ctx context.Context, tree *markup.Node, sizing Sizing, opts options.Layout) ([]byte, error) {
	return f(ctx, tree, sizing, opts)
}

// Stage 是布局阶段：校验输入后调用 Engine，并把失败归类为 LAYOUT_ERROR。
type Stage struct {
	engine Engine
}

// NewStage 创建布局阶段。
func NewStage(engine Engine) *Stage {
	return &Stage{engine: engine}
}

// Render 排版标记树并返回 SVG。引擎失败不重试。
func (s *Stage) Render(ctx context.Context, tree *markup.Node, sizing Sizing, opts options.Layout) ([]byte, error) {
	if err := sizing.Validate(); err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, errors.New(errors.CodeLayout, "布局阶段: 标记树为空")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	svg, err := s.engine.Render(ctx, tree, sizing, opts)
	if err != nil {
		if errors.GetCode(err) != "" || ctx.Err() != nil {
			return nil, err
		}
		return nil, errors.Wrap(errors.CodeLayout, err, "布局阶段: 排版 <%s> (%s) 失败", tree.Tag, sizing)
	}
	if len(svg) == 0 {
		return nil, errors.New(errors.CodeLayout, "布局阶段: 引擎返回了空的矢量图")
	}
	return svg, nil
}
