package canvasrenderer

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/ByLCY/html2img/fonts"
	"github.com/ByLCY/html2img/options"
)

// textProps 是 <text> 及其祖先上可继承的字体属性，尺寸为用户单位。
type textProps struct {
	families []string
	size     float64
	weight   fonts.Weight
	italic   bool
	fill     string
	anchor   string
}

// outliner 把 SVG 中的 <text> 替换为字形路径，使光栅阶段不依赖 SVG 解析器的文字支持。
type outliner struct {
	db      *fontDB
	mode    options.TextRendering
	// pxPerMM 在读到根元素后给出最终每毫米像素数，用于像素对齐。
	pxPerMM func(wMM, hMM float64) float64
	unitPx  float64
	buf     sfnt.Buffer
}

// outlineText 逐个替换 <text> 元素的字节区间，其余内容原样保留。
func (o *outliner) outlineText(ctx context.Context, doc []byte, defaults textProps) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.Strict = false

	var (
		out   bytes.Buffer
		last  int64
		stack = []textProps{defaults}
		root  = true
	)
	for {
		start := dec.InputOffset()
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("解析 SVG 失败: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			props := inheritProps(stack[len(stack)-1], t.Attr)
			if root {
				o.readRoot(t.Attr)
				root = false
			}
			if t.Name.Local != "text" {
				stack = append(stack, props)
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			group, err := o.textElement(dec, t, props)
			if err != nil {
				return nil, err
			}
			out.Write(doc[last:start])
			out.WriteString(group)
			last = dec.InputOffset()
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	out.Write(doc[last:])
	return out.Bytes(), nil
}

// readRoot 根据根元素的 width 与 viewBox 计算每个用户单位对应的像素数。
func (o *outliner) readRoot(attrs []xml.Attr) {
	o.unitPx = 0
	wMM, okW := parseAbsolute(attrValue(attrs, "width"))
	hMM, okH := parseAbsolute(attrValue(attrs, "height"))
	vb := strings.Fields(strings.ReplaceAll(attrValue(attrs, "viewBox"), ",", " "))
	mmPerUnit := 25.4 / 96
	if len(vb) == 4 && okW {
		if vw, err := strconv.ParseFloat(vb[2], 64); err == nil && vw > 0 {
			mmPerUnit = wMM / vw
		}
	}
	if okW && okH && o.pxPerMM != nil {
		o.unitPx = mmPerUnit * o.pxPerMM(wMM, hMM)
	}
}

// span 是一段连续排版的文字及其起点。
type span struct {
	text  string
	x, y  *float64
	props textProps
}

func (o *outliner) textElement(dec *xml.Decoder, start xml.StartElement, props textProps) (string, error) {
	spans := []span{{x: firstCoord(start.Attr, "x"), y: firstCoord(start.Attr, "y"), props: props}}
	stack := []textProps{props}
	for depth := 1; depth > 0; {
		tok, err := dec.RawToken()
		if err != nil {
			return "", fmt.Errorf("解析 <text> 失败: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			p := inheritProps(stack[len(stack)-1], t.Attr)
			stack = append(stack, p)
			spans = append(spans, span{x: firstCoord(t.Attr, "x"), y: firstCoord(t.Attr, "y"), props: p})
		case xml.EndElement:
			depth--
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
				// 子元素结束后继续使用外层属性
				spans = append(spans, span{props: stack[len(stack)-1]})
			}
		case xml.CharData:
			spans[len(spans)-1].text += string(t)
		}
	}

	var b strings.Builder
	b.WriteString("<g")
	if tr := attrValue(start.Attr, "transform"); tr != "" {
		writeAttr(&b, "transform", tr)
	}
	b.WriteString(">")

	var penX, penY float64
	first := true
	for _, sp := range spans {
		if sp.x != nil {
			penX = *sp.x
		}
		if sp.y != nil {
			penY = *sp.y
		}
		content := collapseWhitespace(sp.text, first)
		if content == "" {
			continue
		}
		first = false
		d, advance, err := o.outline(content, sp.props, penX, penY)
		if err != nil {
			return "", err
		}
		penX += advance
		if d == "" || sp.props.fill == "none" {
			continue
		}
		b.WriteString(`<path d="`)
		b.WriteString(d)
		b.WriteString(`"`)
		if sp.props.fill != "" {
			writeAttr(&b, "fill", sp.props.fill)
		}
		b.WriteString("/>")
	}
	b.WriteString("</g>")
	return b.String(), nil
}

// outline 返回文字在 (x, y) 基线处的路径数据与总前进宽度。
func (o *outliner) outline(content string, props textProps, x, y float64) (string, float64, error) {
	f, err := o.db.match(props.families, props.weight, props.italic)
	if err != nil {
		return "", 0, err
	}
	upem := f.font.UnitsPerEm()
	ppem := fixed.I(int(upem))
	scale := props.size / float64(upem)

	type glyph struct {
		index sfnt.GlyphIndex
		x     float64
	}
	var glyphs []glyph
	pen := 0.0
	var prev sfnt.GlyphIndex
	for i, r := range content {
		idx, err := f.font.GlyphIndex(&o.buf, r)
		if err != nil {
			return "", 0, fmt.Errorf("查找字形 %q 失败: %w", r, err)
		}
		if i > 0 {
			if k, err := f.font.Kern(&o.buf, prev, idx, ppem, font.HintingNone); err == nil {
				pen += fromFixed(k) * scale
			}
		}
		glyphs = append(glyphs, glyph{index: idx, x: pen})
		adv, err := f.font.GlyphAdvance(&o.buf, idx, ppem, font.HintingNone)
		if err != nil {
			return "", 0, fmt.Errorf("读取字形宽度失败: %w", err)
		}
		pen += fromFixed(adv) * scale
		prev = idx
	}

	switch props.anchor {
	case "middle":
		x -= pen / 2
	case "end":
		x -= pen
	}
	if o.mode != options.TextGeometricPrecision {
		y = o.snap(y)
	}

	var d strings.Builder
	for _, g := range glyphs {
		segs, err := f.font.LoadGlyph(&o.buf, g.index, ppem, nil)
		if err != nil {
			return "", 0, fmt.Errorf("读取字形轮廓失败: %w", err)
		}
		gx := x + g.x
		if o.mode == options.TextSpeed {
			gx = o.snap(gx)
		}
		pt := func(p fixed.Point26_6) string {
			return formatFloat(gx+fromFixed(p.X)*scale) + " " + formatFloat(y+fromFixed(p.Y)*scale)
		}
		open := false
		for _, seg := range segs {
			switch seg.Op {
			case sfnt.SegmentOpMoveTo:
				if open {
					d.WriteString("Z")
				}
				d.WriteString("M" + pt(seg.Args[0]))
				open = true
			case sfnt.SegmentOpLineTo:
				d.WriteString("L" + pt(seg.Args[0]))
			case sfnt.SegmentOpQuadTo:
				d.WriteString("Q" + pt(seg.Args[0]) + " " + pt(seg.Args[1]))
			case sfnt.SegmentOpCubeTo:
				d.WriteString("C" + pt(seg.Args[0]) + " " + pt(seg.Args[1]) + " " + pt(seg.Args[2]))
			}
		}
		if open {
			d.WriteString("Z")
		}
	}
	return d.String(), pen, nil
}

// snap 把用户单位坐标对齐到最终位图的像素网格。
func (o *outliner) snap(v float64) float64 {
	if o.unitPx <= 0 {
		return v
	}
	return math.Round(v*o.unitPx) / o.unitPx
}

func inheritProps(parent textProps, attrs []xml.Attr) textProps {
	p := parent
	decl := map[string]string{}
	for _, a := range attrs {
		decl[a.Name.Local] = a.Value
	}
	// style 中的声明优先于表现属性
	for _, item := range strings.Split(decl["style"], ";") {
		k, v, ok := strings.Cut(item, ":")
		if ok {
			decl[strings.TrimSpace(strings.ToLower(k))] = strings.TrimSpace(v)
		}
	}
	if v, ok := decl["font"]; ok {
		applyFontShorthand(&p, v, parent.size)
	}
	if v, ok := decl["font-family"]; ok {
		p.families = splitFamilies(v)
	}
	if v, ok := decl["font-size"]; ok {
		if size, ok := parseFontSize(v, parent.size); ok {
			p.size = size
		}
	}
	if v, ok := decl["font-weight"]; ok {
		p.weight = parseCSSWeight(v)
	}
	if v, ok := decl["font-style"]; ok {
		p.italic = v == "italic" || v == "oblique"
	}
	if v, ok := decl["fill"]; ok {
		p.fill = v
	}
	if v, ok := decl["text-anchor"]; ok {
		p.anchor = v
	}
	return p
}

// applyFontShorthand 解析 "italic bold 12px Family, serif" 形式的 font 简写。
func applyFontShorthand(p *textProps, v string, parentSize float64) {
	fields := strings.Fields(v)
	for i, f := range fields {
		switch {
		case f == "italic" || f == "oblique":
			p.italic = true
		case f == "normal":
		case f == "bold" || f == "bolder" || f == "lighter" || (len(f) == 3 && f[0] >= '1' && f[0] <= '9' && strings.HasSuffix(f, "00")):
			p.weight = parseCSSWeight(f)
		default:
			sizePart, _, _ := strings.Cut(f, "/")
			if size, ok := parseFontSize(sizePart, parentSize); ok {
				p.size = size
				if rest := strings.Join(fields[i+1:], " "); rest != "" {
					p.families = splitFamilies(rest)
				}
				return
			}
		}
	}
}

func splitFamilies(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		name := strings.Trim(strings.TrimSpace(part), `'"`)
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// parseFontSize 把字号换算为用户单位；px 与无单位视为用户单位。
func parseFontSize(v string, parent float64) (float64, bool) {
	v = strings.TrimSpace(v)
	factor := 1.0
	switch {
	case strings.HasSuffix(v, "px"):
		v = strings.TrimSuffix(v, "px")
	case strings.HasSuffix(v, "pt"):
		v, factor = strings.TrimSuffix(v, "pt"), 96.0/72
	case strings.HasSuffix(v, "em"):
		v, factor = strings.TrimSuffix(v, "em"), parent
	case strings.HasSuffix(v, "%"):
		v, factor = strings.TrimSuffix(v, "%"), parent/100
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n * factor, true
}

// parseAbsolute 把带单位的长度换算为毫米，无单位按 px 处理。
func parseAbsolute(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasSuffix(v, "%") {
		return 0, false
	}
	units := []struct {
		suffix string
		mm     float64
	}{
		{"mm", 1}, {"cm", 10}, {"in", 25.4}, {"pt", 25.4 / 72}, {"pc", 25.4 / 6}, {"px", 25.4 / 96},
	}
	factor := 25.4 / 96
	for _, u := range units {
		if strings.HasSuffix(v, u.suffix) {
			v, factor = strings.TrimSuffix(v, u.suffix), u.mm
			break
		}
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n * factor, true
}

// writeAttr 写出 ` name="value"`，值按 XML 规则转义；RawToken 读到的属性值已经反转义。
func writeAttr(b *strings.Builder, name, value string) {
	b.WriteString(" ")
	b.WriteString(name)
	b.WriteString(`="`)
	_ = xml.EscapeText(b, []byte(value))
	b.WriteString(`"`)
}

func attrValue(attrs []xml.Attr, name string) string {
	for _, a := range attrs {
		if a.Name.Local == name && a.Name.Space == "" {
			return a.Value
		}
	}
	return ""
}

// firstCoord 读取坐标列表中的第一个值。
func firstCoord(attrs []xml.Attr, name string) *float64 {
	fields := strings.Fields(strings.ReplaceAll(attrValue(attrs, name), ",", " "))
	if len(fields) == 0 {
		return nil
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil
	}
	return &v
}

// collapseWhitespace 按 SVG 默认规则合并空白；leading 为 true 时去掉开头空白。
func collapseWhitespace(s string, leading bool) string {
	var b strings.Builder
	space := leading
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || r == ' ' {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		b.WriteRune(r)
		space = false
	}
	return b.String()
}

func fromFixed(v fixed.Int26_6) float64 { return float64(v) / 64 }

func formatFloat(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}
