package canvasrenderer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/ByLCY/html2img/layout"
)

// maxImageBytes 限制单张远程图片的大小。
const maxImageBytes = 32 << 20

// imageLoader 解析图片来源：data URI、http(s) URL 或文件路径。
type imageLoader struct {
	baseDir string
	client  *http.Client
}

func (l *imageLoader) load(ctx context.Context, src string) (image.Image, error) {
	data, err := l.fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s 失败: %w", truncate(src, 48), err)
	}
	return img, nil
}

func (l *imageLoader) fetch(ctx context.Context, src string) ([]byte, error) {
	switch {
	case src == "":
		return nil, fmt.Errorf("图片缺少 src")
	case strings.HasPrefix(src, "data:"):
		return decodeDataURI(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return l.download(ctx, src)
	}
	path := src
	if u, err := url.Parse(src); err == nil && u.Scheme == "file" {
		path = u.Path
	}
	if !filepath.IsAbs(path) && l.baseDir != "" {
		path = filepath.Join(l.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", src, err)
	}
	return data, nil
}

func (l *imageLoader) download(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("构造图片请求 %s 失败: %w", src, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("下载图片 %s 失败: %w", src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载图片 %s 失败: HTTP %d", src, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", src, err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("图片 %s 超过 %d 字节", src, maxImageBytes)
	}
	return data, nil
}

// decodeDataURI 支持 data:[<mediatype>][;base64],<data>。
func decodeDataURI(uri string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("data URI 缺少逗号分隔符")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("data URI 的 base64 内容非法: %w", err)
		}
		return data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("data URI 内容非法: %w", err)
	}
	return []byte(text), nil
}

// fitImage 按 object-fit 返回实际绘制的图片及其 px 位置与宽度。
// fill 拉伸填满盒子，contain 等比缩放后居中，cover 等比裁剪后铺满。
func fitImage(src image.Image, box layout.ImageBox) (image.Image, float64, float64, float64) {
	b := src.Bounds()
	iw, ih := float64(b.Dx()), float64(b.Dy())
	if iw <= 0 || ih <= 0 {
		return src, box.X, box.Y, box.Width
	}
	boxRatio := box.Width / box.Height
	imgRatio := iw / ih

	switch box.Fit {
	case "contain":
		w, h := box.Width, box.Width/imgRatio
		if h > box.Height {
			w, h = box.Height*imgRatio, box.Height
		}
		return src, box.X + (box.Width-w)/2, box.Y + (box.Height-h)/2, w
	case "cover":
		crop := b
		if imgRatio > boxRatio {
			cw := int(ih*boxRatio + 0.5)
			x0 := b.Min.X + (b.Dx()-cw)/2
			crop = image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
		} else {
			ch := int(iw/boxRatio + 0.5)
			y0 := b.Min.Y + (b.Dy()-ch)/2
			crop = image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
		}
		return subImage(src, crop), box.X, box.Y, box.Width
	default:
		if abs(imgRatio-boxRatio) < 1e-3 {
			return src, box.X, box.Y, box.Width
		}
		// 保持较大的一边不变，另一边按盒子比例重采样
		w, h := iw, iw/boxRatio
		if h < ih {
			w, h = ih*boxRatio, ih
		}
		dst := image.NewNRGBA(image.Rect(0, 0, int(w+0.5), int(h+0.5)))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
		return dst, box.X, box.Y, box.Width
	}
}

func subImage(src image.Image, r image.Rectangle) image.Image {
	if s, ok := src.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return s.SubImage(r)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.Copy(dst, image.Point{}, src, r, xdraw.Src, nil)
	return dst
}

// fade 按不透明度整体衰减图片 alpha。
func fade(src image.Image, opacity float64) image.Image {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
	xdraw.DrawMask(dst, dst.Bounds(), src, b.Min, mask, image.Point{}, xdraw.Over)
	return dst
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
