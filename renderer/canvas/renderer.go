package canvasrenderer

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/svg"

	"github.com/ByLCY/html2img/fonts"
	"github.com/ByLCY/html2img/layout"
	"github.com/ByLCY/html2img/renderer"
)

var (
	_ renderer.Renderer = (*session)(nil)
	_ layout.Typesetter = (*session)(nil)
)

// session 保存一次调用内的字体面缓存，不跨调用共享。
type session struct {
	ctx      context.Context
	images   *imageLoader
	embed    bool
	families map[string]*fontFamilyEntry
}

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

func newSession(ctx context.Context, images *imageLoader, embed bool) *session {
	return &session{
		ctx:      ctx,
		images:   images,
		embed:    embed,
		families: map[string]*fontFamilyEntry{},
	}
}

// Render 把布局结果绘制为 SVG。embed 为 true 时字形输出为路径，否则输出 <text> 并内嵌字体。
func (s *session) Render(result *layout.Result) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if result.Width <= 0 || result.Height <= 0 {
		return nil, fmt.Errorf("画布尺寸非法: %gx%g", result.Width, result.Height)
	}

	w, h := toMm(result.Width), toMm(result.Height)
	c := canvas.New(w, h)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点

	// 背景与边框在文字和图片之前绘制
	s.drawRects(ctx, result.Rects)
	for _, tb := range result.Texts {
		font, ok := result.Resources.Fonts[tb.Font]
		if !ok {
			return nil, fmt.Errorf("文本 %q 引用了未登记的字体 %s", truncate(tb.Content, 16), tb.Font)
		}
		if err := s.drawTextBox(ctx, tb, font); err != nil {
			return nil, err
		}
	}
	if err := s.drawImages(ctx, result.Images); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := svg.New(&buf, w, h, &svg.Options{
		EmbedFonts:    true,
		SubsetFonts:   true,
		ImageEncoding: canvas.Lossless,
	})
	c.RenderTo(writer)
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 SVG 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// LayoutLines 实现 layout.Typesetter 接口，使用贪心换行算法。
// 约定：width/fontSize/lineHeight 入参均为 px。渲染器内部与字体系统交互使用 pt 与 mm，并在边界换算。
func (s *session) LayoutLines(content string, width float64, font fonts.Record, fontSize, lineHeight float64, wrap string) ([]layout.TextLine, error) {
	face, err := s.fontFace(font, fontSize, layout.Color{A: 255})
	if err != nil {
		return nil, err
	}
	if wrap == "" {
		wrap = "anywhere"
	}
	measure := func(str string) float64 { return toPx(face.TextWidth(str)) }
	lines := greedyWrapTokens(content, width, measure, wrap)

	textHeight := toPx(face.Metrics().LineHeight)
	if textHeight <= 0 {
		textHeight = lineHeight
	}
	leading := math.Max(lineHeight-textHeight, 0)
	if len(lines) == 0 {
		lines = []layout.TextLine{{Content: "", Width: 0}}
	}
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = textHeight
		}
		if i == 0 {
			lines[i].GapBefore = 0
		} else {
			lines[i].GapBefore = leading
		}
	}
	return lines, nil
}

// Measure 实现 layout.Typesetter 接口，返回单行文本的 px 宽度。
func (s *session) Measure(content string, font fonts.Record, fontSize float64) (float64, error) {
	face, err := s.fontFace(font, fontSize, layout.Color{A: 255})
	if err != nil {
		return 0, err
	}
	return toPx(face.TextWidth(content)), nil
}

func (s *session) drawTextBox(ctx *canvas.Context, tb layout.TextBox, font fonts.Record) error {
	if tb.Color.Transparent() {
		return nil
	}
	face, err := s.fontFace(font, tb.FontSize, tb.Color)
	if err != nil {
		return err
	}
	ascent := toPx(face.Metrics().Ascent)

	cursorY := tb.Y
	for _, line := range tb.Lines {
		cursorY += line.GapBefore
		lineHeight := line.Height
		if lineHeight <= 0 {
			lineHeight = tb.LineHeight
		}
		// 基线位置：以行顶部加上字体上升部
		baseline := cursorY + ascent
		for _, run := range line.Runs {
			if !s.embed {
				text := canvas.NewTextLine(face, run.Content, canvas.Left)
				ctx.DrawText(toMm(tb.X+run.X), toMm(baseline), text)
				continue
			}
			if err := s.drawGlyphs(ctx, face, run.Content, tb.Color, toMm(tb.X+run.X), toMm(baseline)); err != nil {
				return err
			}
		}
		cursorY += lineHeight
	}
	return nil
}

// drawGlyphs 把文字转为路径绘制，SVG 中不再出现 <text>，查看器无需对应字体。
func (s *session) drawGlyphs(ctx *canvas.Context, face *canvas.FontFace, content string, col layout.Color, x, y float64) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	p, _, err := face.ToPath(content)
	if err != nil {
		return fmt.Errorf("文本 %q 转换为路径失败: %w", truncate(content, 16), err)
	}
	if p.Empty() {
		return nil
	}
	// 字形坐标 y 轴向上，画布为 CartesianIV，需要翻转
	p = p.Transform(canvas.Identity.ReflectY())
	ctx.Push()
	ctx.SetFillColor(colorFromLayout(col))
	ctx.SetStrokeColor(canvas.Transparent)
	ctx.SetStrokeWidth(0)
	ctx.DrawPath(x, y, p)
	ctx.Pop()
	return nil
}

func (s *session) drawImages(ctx *canvas.Context, images []layout.ImageBox) error {
	for _, box := range images {
		if err := s.ctx.Err(); err != nil {
			return err
		}
		if box.Width <= 0 || box.Height <= 0 || box.Opacity <= 0 {
			continue
		}
		src, err := s.images.load(s.ctx, box.Src)
		if err != nil {
			return err
		}
		img, x, y, w := fitImage(src, box)
		if box.Opacity < 1 {
			img = fade(img, box.Opacity)
		}
		dpmm := float64(img.Bounds().Dx()) / toMm(w)
		if dpmm <= 0 || math.IsInf(dpmm, 0) {
			continue
		}
		ctx.DrawImage(toMm(x), toMm(y), img, canvas.DPMM(dpmm))
	}
	return nil
}

// drawRects 绘制背景、边框与调试轮廓。
func (s *session) drawRects(ctx *canvas.Context, rects []layout.Rect) {
	for _, rc := range rects {
		if rc.Width <= 0 || rc.Height <= 0 {
			continue
		}
		if rc.FillColor != nil {
			ctx.SetFillColor(colorFromLayout(*rc.FillColor))
		} else {
			ctx.SetFillColor(color.RGBA{0, 0, 0, 0})
		}
		if rc.StrokeWidth > 0 {
			ctx.SetStrokeColor(colorFromLayout(rc.StrokeColor))
			ctx.SetStrokeWidth(toMm(rc.StrokeWidth))
		} else {
			ctx.SetStrokeColor(color.RGBA{0, 0, 0, 0})
			ctx.SetStrokeWidth(0)
		}
		w, h := toMm(rc.Width), toMm(rc.Height)
		var path *canvas.Path
		if r := toMm(rc.Radius); r > 0 {
			path = canvas.RoundedRectangle(w, h, math.Min(r, math.Min(w, h)/2))
		} else {
			path = canvas.Rectangle(w, h)
		}
		ctx.DrawPath(toMm(rc.X), toMm(rc.Y), path)
	}
}

// fontFace 按 px 字号创建字体面；同一 session 内每个字体只解析一次。
func (s *session) fontFace(font fonts.Record, sizePx float64, col layout.Color) (*canvas.FontFace, error) {
	if len(font.Data) == 0 {
		font = fonts.Fallback()
	}
	key := font.Key()
	entry, ok := s.families[key]
	if !ok {
		style := fontStyle(font)
		family := canvas.NewFontFamily(font.Name)
		if err := family.LoadFont(font.Data, 0, style); err != nil {
			return nil, fmt.Errorf("加载字体 %s (%s) 失败: %w", font.Name, font.Path, err)
		}
		entry = &fontFamilyEntry{family: family, style: style}
		s.families[key] = entry
	}
	return entry.family.Face(toPt(sizePx), colorFromLayout(col), entry.style, canvas.FontNormal), nil
}

func fontStyle(font fonts.Record) canvas.FontStyle {
	var style canvas.FontStyle
	switch w := font.Weight; {
	case w == 0:
		style = canvas.FontRegular
	case w <= fonts.WeightLight:
		style = canvas.FontLight
	case w <= fonts.WeightNormal:
		style = canvas.FontRegular
	case w == fonts.WeightMedium:
		style = canvas.FontMedium
	case w == fonts.WeightSemiBold:
		style = canvas.FontSemiBold
	case w == fonts.WeightBold:
		style = canvas.FontBold
	case w == fonts.WeightExtraBold:
		style = canvas.FontExtraBold
	default:
		style = canvas.FontBlack
	}
	if font.Style == fonts.StyleItalic {
		style |= canvas.FontItalic
	}
	return style
}

func colorFromLayout(c layout.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, float64(c.A)/255.0)
}

// toMm 将像素(px)转换为毫米(mm)。
func toMm(px float64) float64 { return px * layout.PxToMm }

// toPx 将毫米(mm)转换为像素(px)。
func toPx(mm float64) float64 { return mm * layout.MmToPx }

// toPt 将像素(px)字号转换为点(pt)。
func toPt(px float64) float64 { return px * layout.PxToPt }

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
