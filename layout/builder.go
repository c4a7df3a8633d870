package layout

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"

	"github.com/ByLCY/html2img/fonts"
	"github.com/ByLCY/html2img/markup"
)

// minLineLimit 在剩余宽度耗尽时仍让排版后端逐字折行，而不是视为不限宽。
const minLineLimit = 1e-3

var debugOutlineColor = Color{R: 255, G: 0, B: 0, A: 160}

// box 是布局过程中的盒子：元素、图片或文本。
type box struct {
	node     *markup.Node
	text     textStyle
	style    boxStyle
	children []*box

	isText  bool
	isImage bool
	content string
	font    fonts.Record
	lines   []TextLine
	lineH   float64

	x, y, w, h float64
}

func (bx *box) margin() edges {
	if bx.isText {
		return edges{}
	}
	return bx.style.Margin
}

// stretchable 报告盒子能否在交叉轴上被拉伸到容器宽度。
func (bx *box) stretchable() bool {
	return !bx.isImage && (bx.isText || bx.style.Width == nil)
}

type builder struct {
	opts BuildOptions
	res  *Result
}

// Build 根据标记树与尺寸约束计算布局结果（单位 px）。
// 只给出宽度或高度时，另一边由内容尺寸推断。
func Build(tree *markup.Node, sizing Sizing, opts BuildOptions) (*Result, error) {
	if tree == nil {
		return nil, fmt.Errorf("标记树为空")
	}
	if opts.Typesetter == nil {
		return nil, fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}
	if err := sizing.Validate(); err != nil {
		return nil, err
	}

	b := &builder{
		opts: opts,
		res:  &Result{Resources: ResourceSet{Fonts: map[string]fonts.Record{}}},
	}
	root, err := b.newBox(tree, rootTextStyle())
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("标记树没有可绘制的内容")
	}

	m := root.margin()
	avail := math.Inf(1)
	var forcedW, forcedH float64
	if sizing.Width != nil {
		avail = math.Max(*sizing.Width-m.horizontal(), 0)
		forcedW = avail
	}
	if sizing.Height != nil {
		forcedH = math.Max(*sizing.Height-m.vertical(), 0)
	}
	if err := b.measure(root, avail, forcedW, forcedH); err != nil {
		return nil, err
	}
	b.place(root, m.Left, m.Top)

	b.res.Width = root.w + m.horizontal()
	if sizing.Width != nil {
		b.res.Width = *sizing.Width
	}
	b.res.Height = root.h + m.vertical()
	if sizing.Height != nil {
		b.res.Height = *sizing.Height
	}
	if b.res.Width <= 0 || b.res.Height <= 0 {
		return nil, fmt.Errorf("无法从内容推断画布尺寸 (%gx%g)", b.res.Width, b.res.Height)
	}

	if err := b.emit(root); err != nil {
		return nil, err
	}
	return b.res, nil
}

// newBox 递归构建盒子树；只含空白的文本节点返回 nil。
func (b *builder) newBox(n *markup.Node, parent textStyle) (*box, error) {
	if n.IsText() {
		content := n.Text
		if !parent.PreserveWS {
			content = collapseSpace(content)
		}
		if strings.TrimSpace(content) == "" {
			return nil, nil
		}
		font, err := matchFont(b.opts.Fonts, parent.Families, parent.Weight, parent.Style)
		if err != nil {
			return nil, err
		}
		b.res.Resources.Fonts[font.Key()] = font
		return &box{node: n, text: parent, isText: true, content: content, font: font}, nil
	}

	ts, err := parent.inherit(n)
	if err != nil {
		return nil, err
	}
	bs, err := parseBoxStyle(n, ts)
	if err != nil {
		return nil, err
	}
	bx := &box{node: n, text: ts, style: bs, isImage: n.Tag == "img"}
	if bx.isImage {
		if n.Prop("src") == "" {
			return nil, fmt.Errorf("<img> 缺少 src")
		}
		return bx, nil
	}
	for _, c := range n.Children {
		child, err := b.newBox(c, ts)
		if err != nil {
			return nil, err
		}
		if child != nil {
			bx.children = append(bx.children, child)
		}
	}
	return bx, nil
}

// collapseSpace 把连续空白（含换行）折叠为一个空格并去掉首尾空白。
func collapseSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

func resolveLength(l *Length, fontSize, reference float64) float64 {
	if l == nil {
		return 0
	}
	if math.IsInf(reference, 1) {
		reference = 0
	}
	px, ok := l.Resolve(fontSize, reference)
	if !ok {
		return 0
	}
	return px
}

// measure 计算盒子尺寸。avail 为可用宽度（可能为 +Inf），forcedW/forcedH>0 时强制使用该尺寸。
func (b *builder) measure(bx *box, avail, forcedW, forcedH float64) error {
	switch {
	case bx.isText:
		return b.measureText(bx, avail, forcedW)
	case bx.isImage:
		return b.measureImage(bx, avail, forcedW)
	}

	s := bx.style
	hPad := s.Padding.horizontal() + 2*s.BorderWidth
	vPad := s.Padding.vertical() + 2*s.BorderWidth

	w := forcedW
	if w <= 0 {
		w = resolveLength(s.Width, bx.text.FontSize, avail)
	}
	known := w > 0
	inner := avail - hPad
	if known {
		inner = w - hPad
	}
	inner = math.Max(inner, 0)

	var contentW, contentH float64
	var err error
	if s.Column {
		contentW, contentH, err = b.measureColumn(bx, inner, known)
	} else {
		contentW, contentH, err = b.measureRow(bx, inner, known)
	}
	if err != nil {
		return err
	}

	if !known {
		w = math.Min(contentW+hPad, avail)
		if s.Column && s.AlignItems == "stretch" {
			if contentH, err = b.stretchColumn(bx, math.Max(w-hPad, 0)); err != nil {
				return err
			}
		}
	}

	h := forcedH
	if h <= 0 {
		h = resolveLength(s.Height, bx.text.FontSize, 0)
	}
	if h <= 0 {
		h = contentH + vPad
	}
	bx.w, bx.h = w, h

	if !s.Column && s.AlignItems == "stretch" {
		innerH := math.Max(h-vPad, 0)
		for _, c := range bx.children {
			if c.isText || c.isImage || c.style.Height != nil {
				continue
			}
			c.h = math.Max(innerH-c.margin().vertical(), c.h)
		}
	}
	return nil
}

func (b *builder) measureColumn(bx *box, inner float64, known bool) (float64, float64, error) {
	var maxW, sumH float64
	for i, c := range bx.children {
		m := c.margin()
		avail := math.Max(inner-m.horizontal(), 0)
		forced := 0.0
		if known && bx.style.AlignItems == "stretch" && c.stretchable() {
			forced = avail
		}
		if err := b.measure(c, avail, forced, 0); err != nil {
			return 0, 0, err
		}
		maxW = math.Max(maxW, c.w+m.horizontal())
		sumH += c.h + m.vertical()
		if i > 0 {
			sumH += bx.style.Gap
		}
	}
	return maxW, sumH, nil
}

// stretchColumn 在容器宽度确定后把可拉伸的子盒子拉到内宽，返回新的内容高度。
func (b *builder) stretchColumn(bx *box, inner float64) (float64, error) {
	var sumH float64
	for i, c := range bx.children {
		m := c.margin()
		if c.stretchable() {
			width := math.Max(inner-m.horizontal(), 0)
			if c.w != width {
				if err := b.measure(c, width, width, 0); err != nil {
					return 0, err
				}
			}
		}
		sumH += c.h + m.vertical()
		if i > 0 {
			sumH += bx.style.Gap
		}
	}
	return sumH, nil
}

func (b *builder) measureRow(bx *box, inner float64, known bool) (float64, float64, error) {
	gap := bx.style.Gap
	remaining := inner
	for i, c := range bx.children {
		m := c.margin()
		if i > 0 {
			remaining -= gap
		}
		if err := b.measure(c, math.Max(remaining-m.horizontal(), 0), 0, 0); err != nil {
			return 0, 0, err
		}
		remaining -= c.w + m.horizontal()
	}

	sumW := rowWidth(bx)
	if known {
		var grow float64
		for _, c := range bx.children {
			if !c.isText {
				grow += c.style.Grow
			}
		}
		if free := inner - sumW; free > 0 && grow > 0 {
			for _, c := range bx.children {
				if c.isText || c.style.Grow == 0 {
					continue
				}
				width := c.w + free*c.style.Grow/grow
				if err := b.measure(c, width, width, 0); err != nil {
					return 0, 0, err
				}
			}
			sumW = rowWidth(bx)
		}
	}

	var maxH float64
	for _, c := range bx.children {
		maxH = math.Max(maxH, c.h+c.margin().vertical())
	}
	return sumW, maxH, nil
}

func rowWidth(bx *box) float64 {
	var sum float64
	for i, c := range bx.children {
		sum += c.w + c.margin().horizontal()
		if i > 0 {
			sum += bx.style.Gap
		}
	}
	return sum
}

func (b *builder) measureText(bx *box, avail, forced float64) error {
	ts := bx.text
	limit := avail
	if forced > 0 {
		limit = forced
	}
	switch {
	case math.IsInf(limit, 1):
		limit = 0
	case limit <= 0:
		limit = minLineLimit
	}

	bx.lineH = ts.LineHeight.Resolve(ts.FontSize)
	lines, err := layoutLines(bx.content, limit, bx.font, ts.FontSize, bx.lineH, b.opts.Typesetter, ts.Wrap)
	if err != nil {
		return err
	}

	var maxW, total float64
	leading := math.Max(bx.lineH-ts.FontSize, 0)
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = ts.FontSize
		}
		if i == 0 {
			lines[i].GapBefore = 0
		} else if lines[i].GapBefore <= 0 {
			lines[i].GapBefore = leading
		}
		total += lines[i].GapBefore + lines[i].Height
		maxW = math.Max(maxW, lines[i].Width)
	}
	bx.lines = lines
	bx.w = maxW
	if forced > 0 {
		bx.w = forced
	}
	bx.h = total
	return nil
}

func layoutLines(content string, width float64, font fonts.Record, fontSize, lineHeight float64, ts Typesetter, wrap string) ([]TextLine, error) {
	lines, err := ts.LayoutLines(content, width, font, fontSize, lineHeight, wrap)
	if err != nil {
		return nil, fmt.Errorf("排版文本 %q 失败: %w", truncate(content, 24), err)
	}
	if len(lines) == 0 {
		lines = []TextLine{{Content: "", Width: 0, Height: fontSize}}
	}
	return lines, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func (b *builder) measureImage(bx *box, avail, forced float64) error {
	s := bx.style
	w := forced
	if w <= 0 {
		w = resolveLength(s.Width, bx.text.FontSize, avail)
	}
	h := resolveLength(s.Height, bx.text.FontSize, 0)
	switch {
	case w <= 0 && h <= 0:
		return fmt.Errorf("<img src=%q> 需要 width 或 height", bx.node.Prop("src"))
	case w <= 0:
		w = h
	case h <= 0:
		h = w
	}
	bx.w, bx.h = w, h
	return nil
}

// place 递归确定盒子位置：主轴按 justifyContent 分配剩余空间，交叉轴按 alignItems 对齐。
func (b *builder) place(bx *box, x, y float64) {
	bx.x, bx.y = x, y
	if bx.isText || bx.isImage || len(bx.children) == 0 {
		return
	}
	s := bx.style
	ix := x + s.Padding.Left + s.BorderWidth
	iy := y + s.Padding.Top + s.BorderWidth
	innerW := bx.w - s.Padding.horizontal() - 2*s.BorderWidth
	innerH := bx.h - s.Padding.vertical() - 2*s.BorderWidth

	var used float64
	for _, c := range bx.children {
		m := c.margin()
		if s.Column {
			used += c.h + m.vertical()
		} else {
			used += c.w + m.horizontal()
		}
	}
	used += s.Gap * float64(len(bx.children)-1)
	free := innerW - used
	if s.Column {
		free = innerH - used
	}
	cursor, between := justify(s.Justify, free, len(bx.children), s.Gap)

	for _, c := range bx.children {
		m := c.margin()
		if s.Column {
			cross := crossOffset(s.AlignItems, innerW-c.w-m.horizontal())
			b.place(c, ix+m.Left+cross, iy+cursor+m.Top)
			cursor += c.h + m.vertical() + between
		} else {
			cross := crossOffset(s.AlignItems, innerH-c.h-m.vertical())
			b.place(c, ix+cursor+m.Left, iy+m.Top+cross)
			cursor += c.w + m.horizontal() + between
		}
	}
}

// justify 返回主轴起始偏移与相邻子盒子的间距。
func justify(mode string, free float64, n int, gap float64) (float64, float64) {
	free = math.Max(free, 0)
	switch mode {
	case "center":
		return free / 2, gap
	case "flex-end":
		return free, gap
	case "space-between":
		if n > 1 {
			return 0, gap + free/float64(n-1)
		}
		return 0, gap
	default:
		return 0, gap
	}
}

func crossOffset(mode string, free float64) float64 {
	free = math.Max(free, 0)
	switch mode {
	case "center":
		return free / 2
	case "flex-end":
		return free
	default:
		return 0
	}
}

func alignOffset(container, width float64, align string) float64 {
	if container <= width {
		return 0
	}
	switch align {
	case "center":
		return (container - width) / 2
	case "right":
		return container - width
	default:
		return 0
	}
}

// emit 按先序把盒子转换为可绘制元素。
func (b *builder) emit(bx *box) error {
	if bx.isText {
		return b.emitText(bx)
	}
	s := bx.style
	if bx.isImage {
		b.res.Images = append(b.res.Images, ImageBox{
			Src:     bx.node.Prop("src"),
			X:       bx.x,
			Y:       bx.y,
			Width:   bx.w,
			Height:  bx.h,
			Fit:     s.ObjectFit,
			Opacity: s.Opacity,
		})
		b.outline(bx)
		return nil
	}

	if s.Background != nil || s.BorderWidth > 0 {
		rect := Rect{X: bx.x, Y: bx.y, Width: bx.w, Height: bx.h, Radius: s.BorderRadius}
		if s.Background != nil {
			fill := *s.Background
			fill.A = int(float64(fill.A)*s.Opacity + 0.5)
			rect.FillColor = &fill
		}
		if bw := s.BorderWidth; bw > 0 {
			// 描边以路径为中心，向内收缩半个线宽使边框落在盒子内。
			rect.X += bw / 2
			rect.Y += bw / 2
			rect.Width -= bw
			rect.Height -= bw
			rect.StrokeColor = s.BorderColor
			rect.StrokeWidth = bw
		}
		b.res.Rects = append(b.res.Rects, rect)
	}
	b.outline(bx)
	for _, c := range bx.children {
		if err := b.emit(c); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) outline(bx *box) {
	if !b.opts.Debug.Outlines {
		return
	}
	b.res.Rects = append(b.res.Rects, Rect{
		X: bx.x, Y: bx.y, Width: bx.w, Height: bx.h,
		StrokeColor: debugOutlineColor,
		StrokeWidth: 1,
	})
}

func (b *builder) emitText(bx *box) error {
	ts := bx.text
	tb := TextBox{
		Content:    bx.content,
		X:          bx.x,
		Y:          bx.y,
		Width:      bx.w,
		LineHeight: bx.lineH,
		Font:       bx.font.Key(),
		FontSize:   ts.FontSize,
		Color:      ts.Color,
		Lines:      append([]TextLine(nil), bx.lines...),
		Height:     bx.h,
		Align:      ts.Align,
		Wrap:       ts.Wrap,
	}
	cursorY := bx.y
	for i := range tb.Lines {
		line := &tb.Lines[i]
		cursorY += line.GapBefore
		runs, images, width, err := b.segment(*line, bx.font, ts.FontSize)
		if err != nil {
			return err
		}
		offset := alignOffset(bx.w, width, ts.Align)
		for j := range runs {
			runs[j].X += offset
		}
		for _, img := range images {
			img.X += bx.x + offset
			img.Y = cursorY + (line.Height-img.Height)/2
			b.res.Images = append(b.res.Images, img)
		}
		line.Runs = runs
		line.Width = width
		cursorY += line.Height
	}
	if b.opts.Debug.RawUnits {
		tb.Debug = &TextBoxDebug{RawUnits: rawUnits(ts)}
	}
	b.res.Texts = append(b.res.Texts, tb)
	b.outline(bx)
	return nil
}

// segment 把一行拆成文字片段与字素图片；X 相对行首。
func (b *builder) segment(line TextLine, font fonts.Record, fontSize float64) ([]TextRun, []ImageBox, float64, error) {
	if len(b.opts.GraphemeImages) == 0 || line.Content == "" {
		if line.Content == "" {
			return nil, nil, line.Width, nil
		}
		return []TextRun{{Content: line.Content, Width: line.Width}}, nil, line.Width, nil
	}

	var (
		runs   []TextRun
		images []ImageBox
		buf    strings.Builder
		x      float64
	)
	flush := func() error {
		if buf.Len() == 0 {
			return nil
		}
		w, err := b.opts.Typesetter.Measure(buf.String(), font, fontSize)
		if err != nil {
			return fmt.Errorf("测量文本失败: %w", err)
		}
		runs = append(runs, TextRun{Content: buf.String(), X: x, Width: w})
		x += w
		buf.Reset()
		return nil
	}

	gr := uniseg.NewGraphemes(line.Content)
	for gr.Next() {
		cluster := gr.Str()
		src, ok := b.opts.GraphemeImages[cluster]
		if !ok {
			buf.WriteString(cluster)
			continue
		}
		if err := flush(); err != nil {
			return nil, nil, 0, err
		}
		images = append(images, ImageBox{Src: src, X: x, Width: fontSize, Height: fontSize, Opacity: 1})
		x += fontSize
	}
	if err := flush(); err != nil {
		return nil, nil, 0, err
	}
	return runs, images, x, nil
}

func rawUnits(ts textStyle) *RawUnits {
	sizeRaw := RawLengthJSON{Value: defaultFontSize, Unit: "px"}
	if l, ok := ParseLength(ts.FontSizeRaw); ok && l.Value > 0 {
		unit := l.Unit
		if unit == UnitNone {
			unit = UnitPX
		}
		sizeRaw = RawLengthJSON{Value: l.Value, Unit: UnitToString(unit)}
	}
	lhRaw := RawLineHeightJSON{Kind: "factor", Factor: defaultLineHeight.Factor}
	if spec, ok := ParseLineHeight(ts.LineRaw); ok {
		switch spec.Kind {
		case LineHeightFactor:
			lhRaw = RawLineHeightJSON{Kind: "factor", Factor: spec.Factor}
		case LineHeightAbsolute:
			unit := spec.Len.Unit
			if unit == UnitNone {
				unit = UnitPX
			}
			lhRaw = RawLineHeightJSON{Kind: "absolute", Value: spec.Len.Value, Unit: UnitToString(unit)}
		}
	}
	return &RawUnits{FontSize: &sizeRaw, LineHeight: &lhRaw}
}
