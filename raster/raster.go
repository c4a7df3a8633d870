// Package raster 是光栅阶段：把矢量图（SVG）交给 Engine 转为位图。
//
// Stage 在调用引擎前校验输入与选项，引擎失败统一归类为 RASTER_ERROR，不重试。
// Stage 只读取选项中的字体路径列表，不会修改字体目录。
package raster

import (
	"bytes"
	"context"

	"github.com/ByLCY/html2img/errors"
	"github.com/ByLCY/html2img/options"
)

// Image 是编码后的位图（PNG）及其像素尺寸。
type Image struct {
	Data   []byte
	Width  int
	Height int
}

// Engine 把 SVG 转为位图。
type Engine interface {
	Rasterize(ctx context.Context, svg []byte, opts options.Raster) (*Image, error)
}

// EngineFunc 让普通函数实现 Engine。
type EngineFunc func(ctx context.Context, svg []byte, opts options.Raster) (*Image, error)

// Rasterize 实现 Engine。
func (f EngineFunc) Rasterize(ctx context.Context, svg []byte, opts options.Raster) (*Image, error) {
	return f(ctx, svg, opts)
}

// Stage 是光栅阶段。
type Stage struct {
	engine Engine
}

// NewStage 创建光栅阶段。
func NewStage(engine Engine) *Stage {
	return &Stage{engine: engine}
}

// Rasterize 校验输入后调用引擎。
func (s *Stage) Rasterize(ctx context.Context, svg []byte, opts options.Raster) (*Image, error) {
	if len(bytes.TrimSpace(svg)) == 0 {
		return nil, errors.New(errors.CodeRaster, "光栅阶段: 矢量输入为空")
	}
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(errors.CodeRaster, err, "光栅阶段: 选项非法")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := s.engine.Rasterize(ctx, svg, opts)
	if err != nil {
		if errors.GetCode(err) != "" || ctx.Err() != nil {
			return nil, err
		}
		return nil, errors.Wrap(errors.CodeRaster, err, "光栅阶段: 转换 %d 字节的 SVG（fitTo=%s, dpi=%g）失败", len(svg), opts.FitTo, opts.DPI)
	}
	if img == nil || len(img.Data) == 0 {
		return nil, errors.New(errors.CodeRaster, "光栅阶段: 引擎返回了空图像")
	}
	return img, nil
}
