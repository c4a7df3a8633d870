package layout

import "github.com/ByLCY/html2img/fonts"

// 该文件定义布局结果，供布局计算、矢量输出与调试 JSON 共用。
// 所有坐标与尺寸均以 CSS 像素（px）为单位，原点在画布左上角。

// Result 保存一次布局的画布尺寸、可直接绘制的元素与用到的字体。
type Result struct {
	Width     float64     `json:"width"`
	Height    float64     `json:"height"`
	Rects     []Rect      `json:"rects,omitempty"`
	Images    []ImageBox  `json:"images,omitempty"`
	Texts     []TextBox   `json:"texts,omitempty"`
	Resources ResourceSet `json:"resources"`
}

// ResourceSet 记录布局中实际用到的字体，键为 fonts.Record.Key()。
type ResourceSet struct {
	Fonts map[string]fonts.Record `json:"fonts"`
}

// Color 采用 0-255 的 RGBA 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
	A int `json:"a"`
}

// Transparent 报告颜色是否完全透明。
func (c Color) Transparent() bool { return c.A == 0 }

// TextBox 表示一个已经排好坐标的文本块。
type TextBox struct {
	Content    string        `json:"content"`
	X          float64       `json:"x"`
	Y          float64       `json:"y"`
	Width      float64       `json:"width"`
	LineHeight float64       `json:"lineHeight"`
	Font       string        `json:"font"` // ResourceSet.Fonts 的键
	FontSize   float64       `json:"fontSize"`
	Color      Color         `json:"color"`
	Lines      []TextLine    `json:"lines"`
	Height     float64       `json:"height"`
	Align      string        `json:"align,omitempty"` // left/center/right（默认 left）
	Wrap       string        `json:"wrap,omitempty"`  // anywhere(默认)/break-word/nowrap
	Debug      *TextBoxDebug `json:"debug,omitempty"`
}

// TextLine 表示排版后的一行文本内容及其宽高。
// Runs 是对齐后的绘制片段，X 相对 TextBox.X；被字素图片替换的字素不出现在 Runs 中。
type TextLine struct {
	Content   string    `json:"content"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	GapBefore float64   `json:"gapBefore,omitempty"`
	Runs      []TextRun `json:"runs,omitempty"`
}

// TextRun 是一行中连续绘制的一段文字。
type TextRun struct {
	Content string  `json:"content"`
	X       float64 `json:"x"`
	Width   float64 `json:"width"`
}

// TextBoxDebug holds optional debug info displayed only when enabled by BuildOptions.
type TextBoxDebug struct {
	RawUnits *RawUnits `json:"rawUnits,omitempty"`
}

// RawUnits describes original author-specified units for key fields.
type RawUnits struct {
	FontSize   *RawLengthJSON     `json:"fontSize,omitempty"`
	LineHeight *RawLineHeightJSON `json:"lineHeight,omitempty"`
}

// RawLengthJSON is a JSON-friendly representation of Length.
type RawLengthJSON struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// RawLineHeightJSON is a JSON-friendly representation of LineHeightSpec.
type RawLineHeightJSON struct {
	Kind   string  `json:"kind"` // "factor" | "absolute"
	Factor float64 `json:"factor,omitempty"`
	Value  float64 `json:"value,omitempty"`
	Unit   string  `json:"unit,omitempty"`
}

// ImageBox 描述图片位置与尺寸。Src 可以是 URL、data URI 或文件路径。
type ImageBox struct {
	Src     string  `json:"src"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Fit     string  `json:"fit,omitempty"` // fill(默认)/contain/cover
	Opacity float64 `json:"opacity"`
}

// Rect 表示一个矩形：背景、边框或调试轮廓。
type Rect struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Radius      float64 `json:"radius,omitempty"`
	StrokeColor Color   `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`         // <=0 时不描边
	FillColor   *Color  `json:"fillColor,omitempty"` // 为空表示不填充
}
