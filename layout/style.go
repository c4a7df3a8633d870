package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ByLCY/html2img/fonts"
	"github.com/ByLCY/html2img/markup"
)

const defaultFontSize = 16.0

var defaultColor = Color{R: 0, G: 0, B: 0, A: 255}

// edges 是上右下左四个方向的 px 值。
type edges struct {
	Top, Right, Bottom, Left float64
}

func (e edges) horizontal() float64 { return e.Left + e.Right }
func (e edges) vertical() float64   { return e.Top + e.Bottom }

// textStyle 是沿标记树向下继承的文本样式。
type textStyle struct {
	FontSize    float64
	FontSizeRaw string
	Families    []string
	Weight      fonts.Weight
	Style       fonts.Style
	LineHeight  LineHeightSpec
	LineRaw     string
	Color       Color
	Align       string
	Wrap        string
	PreserveWS  bool
}

func rootTextStyle() textStyle {
	return textStyle{
		FontSize:   defaultFontSize,
		Weight:     fonts.WeightNormal,
		Style:      fonts.StyleNormal,
		LineHeight: defaultLineHeight,
		Color:      defaultColor,
		Wrap:       "anywhere",
	}
}

// inherit 用元素属性覆盖父级文本样式。
func (p textStyle) inherit(n *markup.Node) (textStyle, error) {
	s := p
	if v := n.Prop("fontSize"); v != "" {
		l, ok := ParseLength(v)
		if !ok {
			return s, fmt.Errorf("<%s> fontSize %q 无法解析", n.Tag, v)
		}
		px, ok := l.Resolve(p.FontSize, p.FontSize)
		if !ok || px <= 0 {
			return s, fmt.Errorf("<%s> fontSize %q 必须大于 0", n.Tag, v)
		}
		s.FontSize = px
		s.FontSizeRaw = v
	}
	if v := n.Prop("fontFamily"); v != "" {
		s.Families = parseFamilies(v)
	}
	if v := n.Prop("fontWeight"); v != "" {
		w, err := parseWeight(v)
		if err != nil {
			return s, fmt.Errorf("<%s> %w", n.Tag, err)
		}
		s.Weight = w
	}
	if v := strings.ToLower(strings.TrimSpace(n.Prop("fontStyle"))); v != "" {
		switch v {
		case "normal":
			s.Style = fonts.StyleNormal
		case "italic", "oblique":
			s.Style = fonts.StyleItalic
		default:
			return s, fmt.Errorf("<%s> fontStyle %q 仅支持 normal/italic", n.Tag, v)
		}
	}
	if v := n.Prop("lineHeight"); v != "" {
		spec, ok := ParseLineHeight(v)
		if !ok {
			return s, fmt.Errorf("<%s> lineHeight %q 无法解析", n.Tag, v)
		}
		s.LineHeight = spec
		s.LineRaw = v
	}
	if v := n.Prop("color"); v != "" {
		c, err := parseColor(v)
		if err != nil {
			return s, fmt.Errorf("<%s> color: %w", n.Tag, err)
		}
		s.Color = c
	}
	if v := strings.ToLower(strings.TrimSpace(n.Prop("textAlign"))); v != "" {
		s.Align = normalizeAlign(v)
	}
	if v := n.Prop("whiteSpace"); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "nowrap":
			s.Wrap, s.PreserveWS = "nowrap", false
		case "pre":
			s.Wrap, s.PreserveWS = "nowrap", true
		case "pre-wrap", "pre-line":
			s.Wrap, s.PreserveWS = "anywhere", true
		default:
			s.Wrap, s.PreserveWS = "anywhere", false
		}
	}
	if v := n.Prop("wordBreak"); v != "" && s.Wrap != "nowrap" {
		s.Wrap = normalizeWrap(v)
	}
	return s, nil
}

func normalizeAlign(v string) string {
	switch v {
	case "start", "left":
		return "left"
	case "end", "right":
		return "right"
	case "center":
		return "center"
	default:
		return ""
	}
}

func normalizeWrap(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "", "auto", "anywhere", "normal", "keep-all":
		return "anywhere"
	case "break-all", "break-word":
		return "break-word"
	case "nowrap", "no-wrap":
		return "nowrap"
	default:
		return "anywhere"
	}
}

func parseFamilies(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		name := strings.Trim(strings.TrimSpace(part), `"'`)
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func parseWeight(v string) (fonts.Weight, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "normal":
		return fonts.WeightNormal, nil
	case "bold":
		return fonts.WeightBold, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	w := fonts.Weight(n)
	if err != nil || w == 0 || !w.Valid() {
		return 0, fmt.Errorf("fontWeight %q 不在 100~900 刻度上", v)
	}
	return w, nil
}

// boxStyle 是不继承的盒模型属性。
type boxStyle struct {
	Width, Height *Length
	Padding       edges
	Margin        edges
	Gap           float64
	Column        bool
	Justify       string
	AlignItems    string
	Grow          float64
	Background    *Color
	BorderWidth   float64
	BorderColor   Color
	BorderRadius  float64
	Opacity       float64
	ObjectFit     string
}

func parseBoxStyle(n *markup.Node, ts textStyle) (boxStyle, error) {
	s := boxStyle{
		Justify:     "flex-start",
		AlignItems:  "stretch",
		BorderColor: ts.Color,
		Opacity:     1,
	}
	var err error
	if s.Width, err = optionalLength(n, "width"); err != nil {
		return s, err
	}
	if s.Height, err = optionalLength(n, "height"); err != nil {
		return s, err
	}
	if s.Padding, err = parseEdges(n, "padding", ts.FontSize); err != nil {
		return s, err
	}
	if s.Margin, err = parseEdges(n, "margin", ts.FontSize); err != nil {
		return s, err
	}
	if v := n.Prop("gap"); v != "" {
		if s.Gap, err = absoluteLength(n.Tag, "gap", v, ts.FontSize); err != nil {
			return s, err
		}
	}
	switch strings.ToLower(n.Prop("flexDirection")) {
	case "", "row", "row-reverse":
	case "column", "column-reverse":
		s.Column = true
	default:
		return s, fmt.Errorf("<%s> flexDirection %q 仅支持 row/column", n.Tag, n.Prop("flexDirection"))
	}
	if v := strings.ToLower(n.Prop("justifyContent")); v != "" {
		s.Justify = normalizeFlexAlign(v)
	}
	if v := strings.ToLower(n.Prop("alignItems")); v != "" {
		s.AlignItems = normalizeFlexAlign(v)
	}
	if v := n.Prop("flexGrow"); v != "" {
		g, perr := strconv.ParseFloat(v, 64)
		if perr != nil || g < 0 {
			return s, fmt.Errorf("<%s> flexGrow %q 必须是非负数", n.Tag, v)
		}
		s.Grow = g
	}
	if v := n.Prop("backgroundColor"); v != "" {
		c, cerr := parseColor(v)
		if cerr != nil {
			return s, fmt.Errorf("<%s> backgroundColor: %w", n.Tag, cerr)
		}
		if !c.Transparent() {
			s.Background = &c
		}
	}
	if v := n.Prop("borderWidth"); v != "" {
		if s.BorderWidth, err = absoluteLength(n.Tag, "borderWidth", v, ts.FontSize); err != nil {
			return s, err
		}
	}
	if v := n.Prop("borderColor"); v != "" {
		c, cerr := parseColor(v)
		if cerr != nil {
			return s, fmt.Errorf("<%s> borderColor: %w", n.Tag, cerr)
		}
		s.BorderColor = c
	}
	if v := n.Prop("borderRadius"); v != "" {
		if s.BorderRadius, err = absoluteLength(n.Tag, "borderRadius", v, ts.FontSize); err != nil {
			return s, err
		}
	}
	if v := n.Prop("opacity"); v != "" {
		o, perr := strconv.ParseFloat(v, 64)
		if perr != nil || o < 0 || o > 1 {
			return s, fmt.Errorf("<%s> opacity %q 必须在 0~1 之间", n.Tag, v)
		}
		s.Opacity = o
	}
	s.ObjectFit = strings.ToLower(n.Prop("objectFit"))
	return s, nil
}

func normalizeFlexAlign(v string) string {
	switch v {
	case "start", "flex-start", "left", "top":
		return "flex-start"
	case "end", "flex-end", "right", "bottom":
		return "flex-end"
	case "center", "middle":
		return "center"
	case "space-between", "stretch":
		return v
	default:
		return "flex-start"
	}
}

func optionalLength(n *markup.Node, key string) (*Length, error) {
	v := n.Prop(key)
	if v == "" || strings.EqualFold(v, "auto") {
		return nil, nil
	}
	l, ok := ParseLength(v)
	if !ok || l.Value < 0 {
		return nil, fmt.Errorf("<%s> %s %q 无法解析", n.Tag, key, v)
	}
	return &l, nil
}

// absoluteLength 解析不接受百分比的长度。
func absoluteLength(tag, key, v string, fontSize float64) (float64, error) {
	l, ok := ParseLength(v)
	if !ok || l.Unit == UnitPercent || l.Value < 0 {
		return 0, fmt.Errorf("<%s> %s %q 无法解析", tag, key, v)
	}
	px, _ := l.Resolve(fontSize, 0)
	return px, nil
}

// parseEdges 解析 padding/margin 的 1~4 值简写，再用 paddingTop 等单边属性覆盖。
func parseEdges(n *markup.Node, prefix string, fontSize float64) (edges, error) {
	var e edges
	if v := n.Prop(prefix); v != "" {
		parts := strings.Fields(v)
		vals := make([]float64, len(parts))
		for i, p := range parts {
			px, err := absoluteLength(n.Tag, prefix, p, fontSize)
			if err != nil {
				return e, err
			}
			vals[i] = px
		}
		switch len(vals) {
		case 1:
			e = edges{vals[0], vals[0], vals[0], vals[0]}
		case 2:
			e = edges{vals[0], vals[1], vals[0], vals[1]}
		case 3:
			e = edges{vals[0], vals[1], vals[2], vals[1]}
		case 4:
			e = edges{vals[0], vals[1], vals[2], vals[3]}
		default:
			return e, fmt.Errorf("<%s> %s 最多接受 4 个取值", n.Tag, prefix)
		}
	}
	for _, side := range []struct {
		suffix string
		dst    *float64
	}{{"Top", &e.Top}, {"Right", &e.Right}, {"Bottom", &e.Bottom}, {"Left", &e.Left}} {
		if v := n.Prop(prefix + side.suffix); v != "" {
			px, err := absoluteLength(n.Tag, prefix+side.suffix, v, fontSize)
			if err != nil {
				return e, err
			}
			*side.dst = px
		}
	}
	return e, nil
}

var namedColors = map[string]Color{
	"black":       {0, 0, 0, 255},
	"white":       {255, 255, 255, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 128, 0, 255},
	"blue":        {0, 0, 255, 255},
	"gray":        {128, 128, 128, 255},
	"grey":        {128, 128, 128, 255},
	"transparent": {0, 0, 0, 0},
}

// parseColor 支持 #rgb、#rgba、#rrggbb、#rrggbbaa、rgb()/rgba() 与少量颜色名。
func parseColor(value string) (Color, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if c, ok := namedColors[v]; ok {
		return c, nil
	}
	if strings.HasPrefix(v, "rgb") {
		return parseRGBFunc(v)
	}
	if !strings.HasPrefix(v, "#") {
		return Color{}, fmt.Errorf("无法识别的颜色 %q", value)
	}
	hex := v[1:]
	if len(hex) == 3 || len(hex) == 4 {
		var b strings.Builder
		for _, r := range hex {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		hex = b.String()
	}
	if len(hex) != 6 && len(hex) != 8 {
		return Color{}, fmt.Errorf("无法识别的颜色 %q", value)
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("无法识别的颜色 %q", value)
	}
	return Color{R: int(n >> 24 & 0xff), G: int(n >> 16 & 0xff), B: int(n >> 8 & 0xff), A: int(n & 0xff)}, nil
}

func parseRGBFunc(v string) (Color, error) {
	open := strings.IndexByte(v, '(')
	if open < 0 || !strings.HasSuffix(v, ")") {
		return Color{}, fmt.Errorf("无法识别的颜色 %q", v)
	}
	parts := strings.Split(v[open+1:len(v)-1], ",")
	if len(parts) != 3 && len(parts) != 4 {
		return Color{}, fmt.Errorf("无法识别的颜色 %q", v)
	}
	var ch [4]int
	ch[3] = 255
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Color{}, fmt.Errorf("无法识别的颜色 %q", v)
		}
		if i == 3 {
			f *= 255
		}
		ch[i] = clampByte(f)
	}
	return Color{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

func clampByte(f float64) int {
	switch {
	case f < 0:
		return 0
	case f > 255:
		return 255
	default:
		return int(f + 0.5)
	}
}
