package canvasrenderer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	xdraw "golang.org/x/image/draw"

	"github.com/ByLCY/html2img/options"
	"github.com/ByLCY/html2img/raster"
)

var _ raster.Engine = (*Rasterizer)(nil)

// Rasterizer 是默认的光栅引擎：把 <text> 转为字形路径后交给 canvas 解析 SVG 并光栅化，输出 PNG。
// 字体库在每次调用中重新构建，解析过的字体文件按路径缓存；Rasterizer 可被并发调用。
type Rasterizer struct {
	logger *log.Logger
	faces  *faceCache
}

// NewRasterizer creates a raster engine; a nil logger discards output.
func NewRasterizer(logger *log.Logger) *Rasterizer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Rasterizer{logger: logger, faces: newFaceCache()}
}

// Rasterize 实现 raster.Engine。
func (r *Rasterizer) Rasterize(ctx context.Context, svg []byte, opts options.Raster) (*raster.Image, error) {
	logger := r.logger.With("engine", "canvas")
	logger.SetLevel(logLevel(opts.LogLevel))

	db, err := newFontDB(opts.Font, r.faces, logger)
	if err != nil {
		return nil, err
	}
	if n := db.addEmbedded(svg); n > 0 {
		logger.Debug("embedded fonts loaded", "count", n)
	}

	doc := svg
	if bytes.Contains(doc, []byte("<text")) {
		o := &outliner{
			db:      db,
			mode:    opts.TextRendering,
			pxPerMM: func(w, h float64) float64 { return pixelsPerMM(opts, w, h) },
		}
		defaults := textProps{size: opts.Font.DefaultFontSize, weight: 400}
		if doc, err = o.outlineText(ctx, doc, defaults); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc = normalizeColors(doc)

	c, err := canvas.ParseSVG(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("解析 SVG 失败: %w", err)
	}
	if c.W <= 0 || c.H <= 0 {
		return nil, fmt.Errorf("SVG 尺寸非法: %gx%g mm", c.W, c.H)
	}

	dpmm := pixelsPerMM(opts, c.W, c.H)
	if err := checkPixels(c.W*dpmm, c.H*dpmm); err != nil {
		return nil, err
	}
	width, height := int(math.Round(c.W*dpmm)), int(math.Round(c.H*dpmm))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("输出尺寸过小: %dx%d", width, height)
	}
	renderDPMM := dpmm
	if opts.ImageRendering == options.ImageSpeed {
		// 以基准分辨率光栅化，再用最近邻缩放到目标尺寸
		renderDPMM = opts.DPI / 25.4
	}
	if err := checkPixels(c.W*renderDPMM, c.H*renderDPMM); err != nil {
		return nil, fmt.Errorf("光栅化尺寸: %w", err)
	}
	logger.Debug("rasterizing", "mm", fmt.Sprintf("%.2fx%.2f", c.W, c.H),
		"px", fmt.Sprintf("%dx%d", width, height), "fitTo", opts.FitTo.String(),
		"shape", opts.ShapeRendering, "image", opts.ImageRendering)

	img := rasterizer.Draw(c, canvas.DPMM(renderDPMM), canvas.DefaultColorSpace)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.ShapeRendering != options.ShapeGeometricPrecision {
		hardenEdges(img)
	}
	var out image.Image = img
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		scaler := xdraw.Scaler(xdraw.CatmullRom)
		if opts.ImageRendering == options.ImageSpeed {
			scaler = xdraw.NearestNeighbor
		}
		scaler.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		out = dst
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if opts.ImageRendering == options.ImageSpeed {
		enc.CompressionLevel = png.BestSpeed
	}
	if err := enc.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("编码 PNG 失败: %w", err)
	}
	logger.Info("rasterized", "width", width, "height", height, "bytes", buf.Len())
	return &raster.Image{Data: buf.Bytes(), Width: width, Height: height}, nil
}

const (
	// maxSide 与 maxPixels 限制单张输出，超出时报错而不是尝试分配。
	maxSide   = 1 << 15
	maxPixels = 1 << 26
)

// checkPixels 检查 w×h 像素的画布能否分配。
func checkPixels(w, h float64) error {
	if math.IsNaN(w) || math.IsNaN(h) || math.IsInf(w, 0) || math.IsInf(h, 0) {
		return fmt.Errorf("输出尺寸非法: %gx%g", w, h)
	}
	if w > maxSide || h > maxSide || w*h > maxPixels {
		return fmt.Errorf("输出尺寸 %.0fx%.0f 超出上限（单边 %d，总计 %d 像素）", w, h, maxSide, maxPixels)
	}
	return nil
}

var rgbaFunc = regexp.MustCompile(`rgba\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*([0-9.eE+-]+%?)\s*\)`)

// normalizeColors 把 alpha 为小数的 rgba() 改写为 #rrggbbaa；canvas 的 SVG 解析器只接受 0~255 的整数分量。
func normalizeColors(doc []byte) []byte {
	if !bytes.Contains(doc, []byte("rgba(")) {
		return doc
	}
	return rgbaFunc.ReplaceAllFunc(doc, func(m []byte) []byte {
		sub := rgbaFunc.FindSubmatch(m)
		var comp [3]int
		for i := range comp {
			v, err := strconv.Atoi(string(sub[i+1]))
			if err != nil {
				return m
			}
			comp[i] = min(v, 0xff)
		}
		raw := string(sub[4])
		scale := 1.0
		if strings.HasSuffix(raw, "%") {
			raw, scale = strings.TrimSuffix(raw, "%"), 0.01
		}
		a, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return m
		}
		a = math.Max(0, math.Min(a*scale, 1))
		return fmt.Appendf(nil, "#%02x%02x%02x%02x", comp[0], comp[1], comp[2], int(math.Round(a*0xff)))
	})
}

// pixelsPerMM 由 DPI（96 dpi 为 1 倍）与缩放模式计算最终分辨率。
func pixelsPerMM(opts options.Raster, wMM, hMM float64) float64 {
	base := opts.DPI / 25.4
	switch opts.FitTo.Mode {
	case options.FitWidth:
		if wMM > 0 {
			return opts.FitTo.Value / wMM
		}
	case options.FitHeight:
		if hMM > 0 {
			return opts.FitTo.Value / hMM
		}
	case options.FitZoom:
		return base * opts.FitTo.Value
	}
	return base
}

// hardenEdges 把抗锯齿覆盖率二值化，对应 crispEdges/optimizeSpeed。
func hardenEdges(img *image.RGBA) {
	pix := img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		a := pix[i+3]
		if a == 0 || a == 0xff {
			continue
		}
		if a < 0x80 {
			pix[i], pix[i+1], pix[i+2], pix[i+3] = 0, 0, 0, 0
			continue
		}
		// 预乘颜色还原为不透明
		for c := 0; c < 3; c++ {
			pix[i+c] = uint8(min(int(pix[i+c])*0xff/int(a), 0xff))
		}
		pix[i+3] = 0xff
	}
}

// logLevel 把配置的日志等级映射到 charmbracelet/log；off 高于任何等级。
func logLevel(l options.LogLevel) log.Level {
	switch l {
	case options.LogOff:
		return log.FatalLevel + 1
	case options.LogError:
		return log.ErrorLevel
	case options.LogWarn:
		return log.WarnLevel
	case options.LogDebug, options.LogTrace:
		return log.DebugLevel
	default:
		return log.InfoLevel
	}
}
