package layout

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/html2img/errors"
	"github.com/ByLCY/html2img/fonts"
	"github.com/ByLCY/html2img/markup"
)

// stubTypesetter 是一个最小实现，仅用于测试，避免引入 renderer 造成循环依赖。
// 每个字符宽度为半个字号，超宽时按字符数硬折行。
type stubTypesetter struct{}

func (s *stubTypesetter) LayoutLines(content string, width float64, font fonts.Record, fontSize float64, lineHeight float64, wrap string) ([]TextLine, error) {
	cw := fontSize / 2
	var lines []TextLine
	for _, part := range strings.Split(content, "\n") {
		runes := []rune(part)
		per := len(runes)
		if width > 0 && wrap != "nowrap" {
			per = int(math.Max(1, math.Floor(width/cw+1e-9)))
		}
		if per == 0 {
			per = 1
		}
		for start := 0; start < len(runes) || start == 0; start += per {
			end := min(start+per, len(runes))
			chunk := runes[start:end]
			lines = append(lines, TextLine{Content: string(chunk), Width: float64(len(chunk)) * cw, Height: fontSize})
			if end == len(runes) {
				break
			}
		}
	}
	// 不设置 GapBefore（保持 0），由 measureText 根据默认 leading 回填。
	return lines, nil
}

func (s *stubTypesetter) Measure(content string, font fonts.Record, fontSize float64) (float64, error) {
	return float64(len([]rune(content))) * fontSize / 2, nil
}

var testFonts = []fonts.Record{
	{Descriptor: fonts.Descriptor{Name: "Body", Path: "body.ttf", Weight: fonts.WeightNormal}},
}

func el(tag string, props map[string]string, children ...*markup.Node) *markup.Node {
	return markup.Element(tag, props, children...)
}

func build(t *testing.T, tree *markup.Node, sizing Sizing, mutate ...func(*BuildOptions)) *Result {
	t.Helper()
	opts := BuildOptions{Typesetter: &stubTypesetter{}, Fonts: testFonts}
	for _, m := range mutate {
		m(&opts)
	}
	res, err := Build(tree, sizing, opts)
	if err != nil {
		t.Fatalf("布局计算失败: %v", err)
	}
	return res
}

func eq(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

// TestTextBoxTotalHeightInvariant 断言：TextBox.Height == Σ(line.Height + line.GapBefore)。
func TestTextBoxTotalHeightInvariant(t *testing.T) {
	tree := el("div", map[string]string{"fontSize": "10", "lineHeight": "1.5"}, markup.Text("aaaa bbbb cccc"))
	res := build(t, tree, FixedWidth(40))
	if len(res.Texts) != 1 {
		t.Fatalf("expected 1 text box, got %d", len(res.Texts))
	}
	tb := res.Texts[0]
	if len(tb.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(tb.Lines))
	}
	total := 0.0
	for _, ln := range tb.Lines {
		total += ln.GapBefore + ln.Height
	}
	if !eq(total, tb.Height) || !eq(tb.Height, 25) {
		t.Fatalf("TextBox.Height 不变式不成立: got=%g sum=%g", tb.Height, total)
	}
}

func TestWidthOnlyInfersHeight(t *testing.T) {
	tree := el("div", map[string]string{"padding": "10"}, markup.Text("Hi"))
	res := build(t, tree, FixedWidth(200))
	if !eq(res.Width, 200) || !eq(res.Height, 36) {
		t.Fatalf("canvas = %gx%g, want 200x36", res.Width, res.Height)
	}
	tb := res.Texts[0]
	if !eq(tb.X, 10) || !eq(tb.Y, 10) {
		t.Fatalf("text at (%g,%g), want (10,10)", tb.X, tb.Y)
	}
}

func TestHeightOnlyInfersWidth(t *testing.T) {
	tree := el("div", map[string]string{"padding": "4", "fontSize": "10"}, markup.Text("abcd"))
	res := build(t, tree, FixedHeight(40))
	if !eq(res.Width, 28) || !eq(res.Height, 40) {
		t.Fatalf("canvas = %gx%g, want 28x40", res.Width, res.Height)
	}
}

func TestBuildRejectsMissingSizing(t *testing.T) {
	_, err := Build(markup.Text("x"), Sizing{}, BuildOptions{Typesetter: &stubTypesetter{}})
	if !errors.Is(err, errors.CodeInvalidSizing) {
		t.Fatalf("expected INVALID_SIZING, got %v", err)
	}
}

func TestColumnStretchAndJustify(t *testing.T) {
	tree := el("div", map[string]string{"flexDirection": "column", "justifyContent": "center"},
		el("div", map[string]string{"height": "20", "backgroundColor": "#f00"}),
	)
	res := build(t, tree, Size(100, 100))
	want := []Rect{{X: 0, Y: 40, Width: 100, Height: 20, FillColor: &Color{R: 255, A: 255}}}
	if diff := cmp.Diff(want, res.Rects); diff != "" {
		t.Fatalf("rects (-want +got):\n%s", diff)
	}
}

func TestRowFlexGrowAndStretch(t *testing.T) {
	tree := el("div", nil,
		el("div", map[string]string{"width": "20", "backgroundColor": "red"}),
		el("div", map[string]string{"flexGrow": "1", "backgroundColor": "blue"}),
	)
	res := build(t, tree, Size(100, 50))
	want := []Rect{
		{X: 0, Y: 0, Width: 20, Height: 50, FillColor: &Color{R: 255, A: 255}},
		{X: 20, Y: 0, Width: 80, Height: 50, FillColor: &Color{B: 255, A: 255}},
	}
	if diff := cmp.Diff(want, res.Rects); diff != "" {
		t.Fatalf("rects (-want +got):\n%s", diff)
	}
}

func TestBorderIsInsetByHalfWidth(t *testing.T) {
	tree := el("div", map[string]string{"borderWidth": "2", "borderColor": "#000"})
	res := build(t, tree, Size(10, 10))
	want := []Rect{{X: 1, Y: 1, Width: 8, Height: 8, StrokeColor: Color{A: 255}, StrokeWidth: 2}}
	if diff := cmp.Diff(want, res.Rects); diff != "" {
		t.Fatalf("rects (-want +got):\n%s", diff)
	}
}

func TestTextAlignCenter(t *testing.T) {
	tree := el("div", map[string]string{"flexDirection": "column", "textAlign": "center", "fontSize": "10"}, markup.Text("ab"))
	res := build(t, tree, Size(100, 20))
	tb := res.Texts[0]
	if tb.Align != "center" || !eq(tb.Width, 100) {
		t.Fatalf("text box align=%q width=%g", tb.Align, tb.Width)
	}
	if runs := tb.Lines[0].Runs; len(runs) != 1 || !eq(runs[0].X, 45) {
		t.Fatalf("centered run offset wrong: %+v", runs)
	}
}

func TestGraphemeImagesReplaceClusters(t *testing.T) {
	tree := el("div", map[string]string{"fontSize": "10"}, markup.Text("a★b"))
	res := build(t, tree, Size(100, 20), func(o *BuildOptions) {
		o.GraphemeImages = map[string]string{"★": "https://example.com/star.png"}
	})
	wantImages := []ImageBox{{Src: "https://example.com/star.png", X: 5, Y: 0, Width: 10, Height: 10, Opacity: 1}}
	if diff := cmp.Diff(wantImages, res.Images); diff != "" {
		t.Fatalf("images (-want +got):\n%s", diff)
	}
	wantRuns := []TextRun{{Content: "a", X: 0, Width: 5}, {Content: "b", X: 15, Width: 5}}
	if diff := cmp.Diff(wantRuns, res.Texts[0].Lines[0].Runs); diff != "" {
		t.Fatalf("runs (-want +got):\n%s", diff)
	}
}

func TestFontFamilyResolution(t *testing.T) {
	_, err := Build(el("div", map[string]string{"fontFamily": "Missing"}, markup.Text("x")), Size(10, 10),
		BuildOptions{Typesetter: &stubTypesetter{}, Fonts: testFonts})
	if err == nil || !strings.Contains(err.Error(), "Missing") {
		t.Fatalf("expected unknown family error, got %v", err)
	}

	for _, family := range []string{"Missing, Body", "'body'", "sans-serif"} {
		res := build(t, el("div", map[string]string{"fontFamily": family}, markup.Text("x")), Size(10, 10))
		if got := res.Texts[0].Font; got != testFonts[0].Key() {
			t.Fatalf("fontFamily %q resolved to %q", family, got)
		}
		if _, ok := res.Resources.Fonts[testFonts[0].Key()]; !ok {
			t.Fatalf("used font missing from resources")
		}
	}
}

func TestDebugOutlines(t *testing.T) {
	tree := el("div", nil, markup.Text("x"))
	res := build(t, tree, Size(10, 10), func(o *BuildOptions) { o.Debug.Outlines = true })
	if len(res.Rects) != 2 {
		t.Fatalf("expected outlines for box and text, got %d rects", len(res.Rects))
	}
	for _, r := range res.Rects {
		if r.StrokeColor != debugOutlineColor || r.FillColor != nil {
			t.Fatalf("unexpected outline %+v", r)
		}
	}
}

// TestDebugRawUnitsOutput 验证在开启 Debug.RawUnits 后，JSON 里会输出 debug.rawUnits，且语义正确。
func TestDebugRawUnitsOutput(t *testing.T) {
	tree := el("div", map[string]string{"fontSize": "12pt", "lineHeight": "18px"}, markup.Text("x"))
	res := build(t, tree, Size(100, 100), func(o *BuildOptions) { o.Debug.RawUnits = true })
	raw := res.Texts[0].Debug.RawUnits
	if raw.FontSize.Unit != "pt" || raw.FontSize.Value != 12 {
		t.Fatalf("字号应为 12pt，实际: %#v", raw.FontSize)
	}
	if raw.LineHeight.Kind != "absolute" || raw.LineHeight.Unit != "px" || raw.LineHeight.Value != 18 {
		t.Fatalf("行高应为 18px 绝对值，实际: %#v", raw.LineHeight)
	}

	res = build(t, el("div", nil, markup.Text("x")), Size(100, 100), func(o *BuildOptions) { o.Debug.RawUnits = true })
	raw = res.Texts[0].Debug.RawUnits
	if raw.FontSize.Value != 16 || raw.LineHeight.Kind != "factor" {
		t.Fatalf("默认值错误: %#v %#v", raw.FontSize, raw.LineHeight)
	}
}

func TestImageSizing(t *testing.T) {
	_, err := Build(el("div", nil, el("img", map[string]string{"src": "a.png"})), Size(10, 10), BuildOptions{Typesetter: &stubTypesetter{}})
	if err == nil {
		t.Fatalf("expected error for unsized image")
	}
	res := build(t, el("div", nil, el("img", map[string]string{"src": "a.png", "width": "20"})), Size(50, 50))
	if len(res.Images) != 1 || !eq(res.Images[0].Width, 20) || !eq(res.Images[0].Height, 20) {
		t.Fatalf("unexpected images %+v", res.Images)
	}
}

func TestWhitespaceCollapsing(t *testing.T) {
	tree := el("div", nil, markup.Text("\n  "), el("span", nil, markup.Text("  a \n  b ")))
	res := build(t, tree, Size(100, 20))
	if len(res.Texts) != 1 || res.Texts[0].Content != "a b" {
		t.Fatalf("unexpected texts %+v", res.Texts)
	}
	pre := build(t, el("div", map[string]string{"whiteSpace": "pre"}, markup.Text("a\nb")), FixedWidth(100))
	if n := len(pre.Texts[0].Lines); n != 2 {
		t.Fatalf("pre should keep newline, got %d lines", n)
	}
}

func TestInvalidStyleIsReported(t *testing.T) {
	cases := []map[string]string{
		{"fontSize": "big"},
		{"color": "#12"},
		{"flexDirection": "diagonal"},
		{"fontWeight": "450"},
		{"padding": "1 2 3 4 5"},
	}
	for _, props := range cases {
		if _, err := Build(el("div", props, markup.Text("x")), Size(10, 10), BuildOptions{Typesetter: &stubTypesetter{}}); err == nil {
			t.Fatalf("expected error for %v", props)
		}
	}
}
