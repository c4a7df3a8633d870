package options

import (
	"fmt"
	"strconv"
	"strings"
)

// ShapeRendering 对应 SVG shape-rendering 的三档质量。
type ShapeRendering int

const (
	ShapeSpeed ShapeRendering = iota
	ShapeCrispEdges
	ShapeGeometricPrecision
)

func (s ShapeRendering) String() string {
	switch s {
	case ShapeSpeed:
		return "optimizeSpeed"
	case ShapeCrispEdges:
		return "crispEdges"
	case ShapeGeometricPrecision:
		return "geometricPrecision"
	default:
		return fmt.Sprintf("ShapeRendering(%d)", int(s))
	}
}

// TextRendering 对应 SVG text-rendering 的三档质量。
type TextRendering int

const (
	TextSpeed TextRendering = iota
	TextLegibility
	TextGeometricPrecision
)

func (t TextRendering) String() string {
	switch t {
	case TextSpeed:
		return "optimizeSpeed"
	case TextLegibility:
		return "optimizeLegibility"
	case TextGeometricPrecision:
		return "geometricPrecision"
	default:
		return fmt.Sprintf("TextRendering(%d)", int(t))
	}
}

// ImageRendering 对应 SVG image-rendering 的两档质量。
type ImageRendering int

const (
	ImageQuality ImageRendering = iota
	ImageSpeed
)

func (i ImageRendering) String() string {
	switch i {
	case ImageQuality:
		return "optimizeQuality"
	case ImageSpeed:
		return "optimizeSpeed"
	default:
		return fmt.Sprintf("ImageRendering(%d)", int(i))
	}
}

// LogLevel 是光栅引擎的日志等级。
type LogLevel string

const (
	LogOff   LogLevel = "off"
	LogError LogLevel = "error"
	LogWarn  LogLevel = "warn"
	LogInfo  LogLevel = "info"
	LogDebug LogLevel = "debug"
	LogTrace LogLevel = "trace"
)

// Valid 报告日志等级是否为已知取值。
func (l LogLevel) Valid() bool {
	switch l {
	case LogOff, LogError, LogWarn, LogInfo, LogDebug, LogTrace:
		return true
	default:
		return false
	}
}

// FitMode 是缩放模式的标签。
type FitMode string

const (
	FitOriginal FitMode = "original"
	FitWidth    FitMode = "width"
	FitHeight   FitMode = "height"
	FitZoom     FitMode = "zoom"
)

// FitTo 是带标签的缩放模式：original 不使用 Value，
// width/height 的 Value 为目标像素，zoom 的 Value 为倍数。
type FitTo struct {
	Mode  FitMode `json:"mode" toml:"mode"`
	Value float64 `json:"value,omitempty" toml:"value,omitempty"`
}

// Original 返回按原尺寸输出的缩放模式。
func Original() FitTo { return FitTo{Mode: FitOriginal} }

// Width 返回固定宽度的缩放模式。
func Width(px float64) FitTo { return FitTo{Mode: FitWidth, Value: px} }

// Height 返回固定高度的缩放模式。
func Height(px float64) FitTo { return FitTo{Mode: FitHeight, Value: px} }

// Zoom 返回按倍数缩放的缩放模式。
func Zoom(factor float64) FitTo { return FitTo{Mode: FitZoom, Value: factor} }

// Validate 检查模式与取值是否匹配。
func (f FitTo) Validate() error {
	switch f.Mode {
	case FitOriginal:
		return nil
	case FitWidth, FitHeight, FitZoom:
		if f.Value <= 0 {
			return fmt.Errorf("fitTo %s 的取值必须大于 0，实际为 %g", f.Mode, f.Value)
		}
		return nil
	default:
		return fmt.Errorf("未知的 fitTo 模式 %q", f.Mode)
	}
}

func (f FitTo) String() string {
	if f.Mode == FitOriginal {
		return string(f.Mode)
	}
	return fmt.Sprintf("%s:%g", f.Mode, f.Value)
}

// ParseFitTo 解析 "original"、"width:800"、"height:600"、"zoom:2" 形式的字符串。
func ParseFitTo(s string) (FitTo, error) {
	mode, value, hasValue := strings.Cut(strings.TrimSpace(s), ":")
	fit := FitTo{Mode: FitMode(strings.ToLower(mode))}
	if hasValue {
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return FitTo{}, fmt.Errorf("无法解析 fitTo 取值 %q: %w", value, err)
		}
		fit.Value = v
	}
	if fit.Mode != FitOriginal && !hasValue {
		return FitTo{}, fmt.Errorf("fitTo %q 缺少取值", s)
	}
	if err := fit.Validate(); err != nil {
		return FitTo{}, err
	}
	return fit, nil
}

// FontOptions 是光栅引擎的字体子选项。
type FontOptions struct {
	LoadSystemFonts bool    `json:"loadSystemFonts"`
	DefaultFontSize float64 `json:"defaultFontSize"`
	DefaultFamily   string  `json:"defaultFontFamily"`
	SerifFamily     string  `json:"serifFamily"`
	SansSerifFamily string  `json:"sansSerifFamily"`
	CursiveFamily   string  `json:"cursiveFamily"`
	FantasyFamily   string  `json:"fantasyFamily"`
	MonospaceFamily string  `json:"monospaceFamily"`
	// FontFiles 是交给光栅引擎自行加载的字体文件路径。
	FontFiles []string `json:"fontFiles,omitempty"`
}

// Raster 是光栅阶段（SVG → 位图）的有效选项。
type Raster struct {
	Font           FontOptions    `json:"font"`
	DPI            float64        `json:"dpi"`
	ShapeRendering ShapeRendering `json:"shapeRendering"`
	TextRendering  TextRendering  `json:"textRendering"`
	ImageRendering ImageRendering `json:"imageRendering"`
	FitTo          FitTo          `json:"fitTo"`
	LogLevel       LogLevel       `json:"logLevel"`
}

// DefaultRaster 返回未配置时的光栅默认值。
func DefaultRaster() Raster {
	return Raster{
		Font:           FontOptions{DefaultFontSize: 12},
		DPI:            192,
		ShapeRendering: ShapeGeometricPrecision,
		TextRendering:  TextGeometricPrecision,
		ImageRendering: ImageQuality,
		FitTo:          Zoom(1.25),
		LogLevel:       LogInfo,
	}
}

// Validate 检查光栅选项是否可以交给引擎。
func (r Raster) Validate() error {
	if r.DPI <= 0 {
		return fmt.Errorf("dpi 必须大于 0，实际为 %g", r.DPI)
	}
	if r.Font.DefaultFontSize <= 0 {
		return fmt.Errorf("defaultFontSize 必须大于 0，实际为 %g", r.Font.DefaultFontSize)
	}
	if r.ShapeRendering < ShapeSpeed || r.ShapeRendering > ShapeGeometricPrecision {
		return fmt.Errorf("未知的 shapeRendering %d", int(r.ShapeRendering))
	}
	if r.TextRendering < TextSpeed || r.TextRendering > TextGeometricPrecision {
		return fmt.Errorf("未知的 textRendering %d", int(r.TextRendering))
	}
	if r.ImageRendering < ImageQuality || r.ImageRendering > ImageSpeed {
		return fmt.Errorf("未知的 imageRendering %d", int(r.ImageRendering))
	}
	if !r.LogLevel.Valid() {
		return fmt.Errorf("未知的 logLevel %q", r.LogLevel)
	}
	return r.FitTo.Validate()
}

// FontOverride 是按次提供的部分字体子选项。
type FontOverride struct {
	LoadSystemFonts *bool    `json:"loadSystemFonts,omitempty"`
	DefaultFontSize *float64 `json:"defaultFontSize,omitempty"`
	DefaultFamily   *string  `json:"defaultFontFamily,omitempty"`
	SerifFamily     *string  `json:"serifFamily,omitempty"`
	SansSerifFamily *string  `json:"sansSerifFamily,omitempty"`
	CursiveFamily   *string  `json:"cursiveFamily,omitempty"`
	FantasyFamily   *string  `json:"fantasyFamily,omitempty"`
	MonospaceFamily *string  `json:"monospaceFamily,omitempty"`
	// FontFiles 追加在默认列表之后。
	FontFiles []string `json:"fontFiles,omitempty"`
}

// RasterOverride 是按次提供的部分光栅选项。
type RasterOverride struct {
	Font           *FontOverride   `json:"font,omitempty"`
	DPI            *float64        `json:"dpi,omitempty"`
	ShapeRendering *ShapeRendering `json:"shapeRendering,omitempty"`
	TextRendering  *TextRendering  `json:"textRendering,omitempty"`
	ImageRendering *ImageRendering `json:"imageRendering,omitempty"`
	// FitTo 存在时整体替换默认的缩放模式。
	FitTo    *FitTo    `json:"fitTo,omitempty"`
	LogLevel *LogLevel `json:"logLevel,omitempty"`
}

// MergeRaster 合并默认值与覆盖值，o 为 nil 时返回与 def 等值的新结构。
func MergeRaster(def Raster, o *RasterOverride) Raster {
	if o == nil {
		o = &RasterOverride{}
	}
	return Raster{
		Font:           mergeFont(def.Font, o.Font),
		DPI:            pick(def.DPI, o.DPI),
		ShapeRendering: pick(def.ShapeRendering, o.ShapeRendering),
		TextRendering:  pick(def.TextRendering, o.TextRendering),
		ImageRendering: pick(def.ImageRendering, o.ImageRendering),
		FitTo:          pick(def.FitTo, o.FitTo),
		LogLevel:       pick(def.LogLevel, o.LogLevel),
	}
}

func mergeFont(def FontOptions, o *FontOverride) FontOptions {
	if o == nil {
		o = &FontOverride{}
	}
	return FontOptions{
		LoadSystemFonts: pick(def.LoadSystemFonts, o.LoadSystemFonts),
		DefaultFontSize: pick(def.DefaultFontSize, o.DefaultFontSize),
		DefaultFamily:   pick(def.DefaultFamily, o.DefaultFamily),
		SerifFamily:     pick(def.SerifFamily, o.SerifFamily),
		SansSerifFamily: pick(def.SansSerifFamily, o.SansSerifFamily),
		CursiveFamily:   pick(def.CursiveFamily, o.CursiveFamily),
		FantasyFamily:   pick(def.FantasyFamily, o.FantasyFamily),
		MonospaceFamily: pick(def.MonospaceFamily, o.MonospaceFamily),
		FontFiles:       concat(def.FontFiles, o.FontFiles),
	}
}
