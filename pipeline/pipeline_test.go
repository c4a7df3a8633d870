package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	stderrors "errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/ByLCY/html2img/errors"
	"github.com/ByLCY/html2img/fonts"
	"github.com/ByLCY/html2img/layout"
	"github.com/ByLCY/html2img/markup"
	"github.com/ByLCY/html2img/options"
	"github.com/ByLCY/html2img/raster"
)

func writeBodyFont(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Body.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatalf("write font: %v", err)
	}
	return path
}

func bodyConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Fonts = []fonts.Descriptor{{Name: "Body", Path: writeBodyFont(t)}}
	return cfg
}

type fakeLayout struct {
	mu    sync.Mutex
	calls int
	seen  options.Layout
	err   error
}

func (f *fakeLayout) Render(ctx context.Context, tree *markup.Node, sizing layout.Sizing, opts options.Layout) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = opts
	if f.err != nil {
		return nil, f.err
	}
	return []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"/>`), nil
}

type fakeRaster struct {
	mu    sync.Mutex
	calls int
	seen  options.Raster
}

func (f *fakeRaster) Rasterize(ctx context.Context, svg []byte, opts options.Raster) (*raster.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = opts
	return &raster.Image{Data: []byte{0x89}, Width: 10, Height: 10}, nil
}

func hello() *markup.Node {
	return markup.Element("div", map[string]string{"padding": "8", "backgroundColor": "#ffffff"},
		markup.Element("span", map[string]string{"fontSize": "20"}, markup.Text("Hello, world")))
}

func TestNewFailsOnMissingFont(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fonts = []fonts.Descriptor{{Name: "Body", Path: filepath.Join(t.TempDir(), "missing.ttf")}}
	svc, err := New(cfg)
	if svc != nil {
		t.Fatalf("partial service returned")
	}
	if !errors.Is(err, errors.CodeFontNotFound) {
		t.Fatalf("expected FONT_NOT_FOUND, got %v", err)
	}
}

func TestNewRejectsInvalidRasterDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Raster.DPI = 0
	if _, err := New(cfg); !errors.Is(err, errors.CodeInvalidConfig) {
		t.Fatalf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestNewDerivesDefaultsFromCatalog(t *testing.T) {
	cfg := bodyConfig(t)
	cfg.Raster.Font.FontFiles = []string{"/extra/a.ttf"}
	svc, err := New(cfg, WithLayoutEngine(&fakeLayout{}), WithRasterEngine(&fakeRaster{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := []string{cfg.Fonts[0].Path, "/extra/a.ttf"}
	if diff := cmp.Diff(want, svc.RasterDefaults().Font.FontFiles); diff != "" {
		t.Fatalf("raster font files mismatch (-want +got):\n%s", diff)
	}
	layoutFonts := svc.LayoutDefaults().Fonts
	if len(layoutFonts) != 1 || layoutFonts[0].Name != "Body" || !bytes.Equal(layoutFonts[0].Data, goregular.TTF) {
		t.Fatalf("layout defaults should carry the catalog records: %+v", layoutFonts)
	}
	if got := svc.Fonts(); len(got) != 1 || got[0].Path != cfg.Fonts[0].Path {
		t.Fatalf("Fonts() = %+v", got)
	}
}

func TestOverridesAreMergedPerCall(t *testing.T) {
	fl, fr := &fakeLayout{}, &fakeRaster{}
	svc, err := New(bodyConfig(t), WithLayoutEngine(fl), WithRasterEngine(fr))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	extra := fonts.Record{Descriptor: fonts.Descriptor{Name: "Extra", Path: "extra.ttf"}}
	embed := false
	fit := options.Width(640)
	_, err = svc.RenderToRaster(context.Background(), hello(), layout.FixedWidth(100),
		&options.LayoutOverride{EmbedFont: &embed, Fonts: []fonts.Record{extra}, GraphemeImages: map[string]string{"★": "star.png"}},
		&options.RasterOverride{FitTo: &fit, Font: &options.FontOverride{FontFiles: []string{"/call.ttf"}}})
	if err != nil {
		t.Fatalf("RenderToRaster: %v", err)
	}
	if fl.seen.EmbedFont || len(fl.seen.Fonts) != 2 || fl.seen.Fonts[1].Name != "Extra" || fl.seen.GraphemeImages["★"] != "star.png" {
		t.Fatalf("layout override not applied: %+v", fl.seen)
	}
	if fr.seen.FitTo != fit || fr.seen.Font.FontFiles[len(fr.seen.Font.FontFiles)-1] != "/call.ttf" {
		t.Fatalf("raster override not applied: %+v", fr.seen)
	}

	// 覆盖值不能泄漏到下一次调用
	if _, err := svc.RenderToRaster(context.Background(), hello(), layout.FixedWidth(100), nil, nil); err != nil {
		t.Fatalf("RenderToRaster: %v", err)
	}
	if !fl.seen.EmbedFont || len(fl.seen.Fonts) != 1 || fl.seen.GraphemeImages != nil {
		t.Fatalf("defaults were mutated by a previous override: %+v", fl.seen)
	}
	if fr.seen.FitTo != options.Zoom(1.25) || len(fr.seen.Font.FontFiles) != 1 {
		t.Fatalf("raster defaults were mutated: %+v", fr.seen)
	}
}

func TestRenderToRasterShortCircuitsOnLayoutFailure(t *testing.T) {
	cause := errors.New(errors.CodeLayout, "boom")
	fl, fr := &fakeLayout{err: cause}, &fakeRaster{}
	svc, err := New(DefaultConfig(), WithLayoutEngine(fl), WithRasterEngine(fr))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = svc.RenderToRaster(context.Background(), hello(), layout.FixedWidth(100), nil, nil)
	if !stderrors.Is(err, cause) {
		t.Fatalf("layout error should be returned unchanged, got %v", err)
	}
	if fr.calls != 0 {
		t.Fatalf("raster engine called %d times after layout failure", fr.calls)
	}
}

func TestInvalidSizingNeverReachesEngines(t *testing.T) {
	fl, fr := &fakeLayout{}, &fakeRaster{}
	svc, err := New(DefaultConfig(), WithLayoutEngine(fl), WithRasterEngine(fr))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = svc.RenderToRaster(context.Background(), hello(), layout.Sizing{}, nil, nil)
	if !errors.Is(err, errors.CodeInvalidSizing) {
		t.Fatalf("expected INVALID_SIZING, got %v", err)
	}
	if fl.calls != 0 || fr.calls != 0 {
		t.Fatalf("engines called: layout=%d raster=%d", fl.calls, fr.calls)
	}
}

func TestRasterizeRejectsEmptyInput(t *testing.T) {
	fr := &fakeRaster{}
	svc, err := New(DefaultConfig(), WithLayoutEngine(&fakeLayout{}), WithRasterEngine(fr))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := svc.Rasterize(context.Background(), nil, nil); !errors.Is(err, errors.CodeRaster) {
		t.Fatalf("expected RASTER_ERROR, got %v", err)
	}
	dpi := -1.0
	if _, err := svc.Rasterize(context.Background(), []byte("<svg/>"), &options.RasterOverride{DPI: &dpi}); !errors.Is(err, errors.CodeRaster) {
		t.Fatalf("expected RASTER_ERROR for dpi, got %v", err)
	}
	if fr.calls != 0 {
		t.Fatalf("raster engine should not run")
	}
}

func TestCancelledContext(t *testing.T) {
	fl := &fakeLayout{}
	svc, err := New(DefaultConfig(), WithLayoutEngine(fl), WithRasterEngine(&fakeRaster{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.RenderToVector(ctx, hello(), layout.FixedWidth(10), nil); !stderrors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if fl.calls != 0 {
		t.Fatalf("engine called with a cancelled context")
	}
}

func TestCallIDIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	svc, err := New(DefaultConfig(), WithLogger(logger), WithLayoutEngine(&fakeLayout{}), WithRasterEngine(&fakeRaster{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := svc.RenderToVector(context.Background(), hello(), layout.FixedWidth(10), nil); err != nil {
		t.Fatalf("RenderToVector: %v", err)
	}
	if !strings.Contains(buf.String(), "call=") {
		t.Fatalf("expected a call id in the log output:\n%s", buf.String())
	}
}

func TestEndToEndWithCanvasEngines(t *testing.T) {
	svc, err := New(bodyConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	first, err := svc.RenderToRaster(ctx, hello(), layout.FixedWidth(240), nil, nil)
	if err != nil {
		t.Fatalf("RenderToRaster: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(first.Data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != first.Width || b.Dy() != first.Height || first.Width <= 0 || first.Height <= 0 {
		t.Fatalf("reported %dx%d, decoded %v", first.Width, first.Height, b)
	}

	second, err := svc.RenderToRaster(ctx, hello(), layout.FixedWidth(240), nil, nil)
	if err != nil {
		t.Fatalf("RenderToRaster: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatalf("identical input produced different images")
	}

	svg, err := svc.RenderToVector(ctx, hello(), layout.FixedWidth(240), nil)
	if err != nil {
		t.Fatalf("RenderToVector: %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) {
		t.Fatalf("RenderToVector did not return SVG")
	}

	res, err := svc.Layout(ctx, hello(), layout.FixedWidth(240), nil)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if res.Width != 240 || res.Height <= 0 || len(res.Texts) != 1 {
		t.Fatalf("unexpected layout result %+v", res)
	}

	on, off := true, false
	tests := []struct {
		name     string
		tree     *markup.Node
		lo       *options.LayoutOverride
		contains []string
		excludes []string
	}{
		{
			name:     "outlined glyphs",
			tree:     hello(),
			contains: []string{"<path"},
			excludes: []string{"<text"},
		},
		{
			name:     "debug outlines",
			tree:     hello(),
			lo:       &options.LayoutOverride{Debug: &on},
			excludes: []string{"<text"},
		},
		{
			name: "translucent background",
			tree: markup.Element("div", map[string]string{"padding": "8", "backgroundColor": "rgba(0,0,0,0.5)"},
				markup.Text("Hello")),
			contains: []string{"rgba("},
		},
		{
			name: "translucent text",
			tree: markup.Element("span", map[string]string{"color": "rgba(255,0,0,0.6)"},
				markup.Text("Hello")),
			contains: []string{"rgba("},
		},
		{
			name:     "text elements with embedded font",
			tree:     hello(),
			lo:       &options.LayoutOverride{EmbedFont: &off},
			contains: []string{"<text", "@font-face"},
		},
		{
			name:     "grapheme images",
			tree:     markup.Element("span", nil, markup.Text("Go ★ now")),
			lo:       &options.LayoutOverride{GraphemeImages: map[string]string{"★": pngDataURI(t)}},
			contains: []string{"<image"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svg, err := svc.RenderToVector(ctx, tt.tree, layout.FixedWidth(200), tt.lo)
			if err != nil {
				t.Fatalf("RenderToVector: %v", err)
			}
			for _, want := range tt.contains {
				if !bytes.Contains(svg, []byte(want)) {
					t.Fatalf("SVG should contain %q: %.300s", want, svg)
				}
			}
			for _, unwanted := range tt.excludes {
				if bytes.Contains(svg, []byte(unwanted)) {
					t.Fatalf("SVG should not contain %q: %.300s", unwanted, svg)
				}
			}

			img, err := svc.RenderToRaster(ctx, tt.tree, layout.FixedWidth(200), tt.lo, nil)
			if err != nil {
				t.Fatalf("RenderToRaster: %v", err)
			}
			decoded, err := png.Decode(bytes.NewReader(img.Data))
			if err != nil {
				t.Fatalf("output is not a PNG: %v", err)
			}
			if b := decoded.Bounds(); b.Dx() != img.Width || b.Dy() != img.Height {
				t.Fatalf("reported %dx%d, decoded %v", img.Width, img.Height, b)
			}
		})
	}
}

func pngDataURI(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 0xff, 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestRenderToRasterOversizedFit(t *testing.T) {
	svc, err := New(bodyConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fit := options.Zoom(1e6)
	_, err = svc.RenderToRaster(context.Background(), hello(), layout.FixedWidth(100), nil,
		&options.RasterOverride{FitTo: &fit})
	if !errors.Is(err, errors.CodeRaster) {
		t.Fatalf("expected RASTER_ERROR, got %v", err)
	}
}

// inspectingLayout 额外实现 Layout，错误由 layoutErr 决定。
type inspectingLayout struct {
	fakeLayout
	layoutErr func(ctx context.Context) error
}

func (f *inspectingLayout) Layout(ctx context.Context, tree *markup.Node, sizing layout.Sizing, opts options.Layout) (*layout.Result, error) {
	if err := f.layoutErr(ctx); err != nil {
		return nil, err
	}
	return &layout.Result{Width: 10, Height: 10}, nil
}

func TestLayoutErrorClassification(t *testing.T) {
	var cancel context.CancelFunc
	tests := []struct {
		name  string
		err   func(ctx context.Context) error
		check func(error) bool
	}{
		{
			name:  "coded error keeps its code",
			err:   func(context.Context) error { return errors.New(errors.CodeFontNotFound, "字体缺失") },
			check: func(err error) bool { return errors.GetCode(err) == errors.CodeFontNotFound },
		},
		{
			name:  "plain error becomes LAYOUT_ERROR",
			err:   func(context.Context) error { return stderrors.New("boom") },
			check: func(err error) bool { return errors.Is(err, errors.CodeLayout) },
		},
		{
			name: "cancellation passes through",
			err: func(ctx context.Context) error {
				cancel()
				return ctx.Err()
			},
			check: func(err error) bool {
				return stderrors.Is(err, context.Canceled) && errors.GetCode(err) == ""
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			defer cancel()
			svc, err := New(DefaultConfig(), WithLayoutEngine(&inspectingLayout{layoutErr: tt.err}), WithRasterEngine(&fakeRaster{}))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			_, err = svc.Layout(ctx, hello(), layout.FixedWidth(100), nil)
			if err == nil || !tt.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestLayoutCancelledBeforeEngine(t *testing.T) {
	calls := 0
	engine := &inspectingLayout{layoutErr: func(context.Context) error {
		calls++
		return nil
	}}
	svc, err := New(DefaultConfig(), WithLayoutEngine(engine), WithRasterEngine(&fakeRaster{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Layout(ctx, hello(), layout.FixedWidth(100), nil); !stderrors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("engine called %d times after cancellation", calls)
	}
}

func TestConcurrentRenderToRaster(t *testing.T) {
	svc, err := New(bodyConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want, err := svc.RenderToRaster(context.Background(), hello(), layout.Size(200, 60), nil, nil)
	if err != nil {
		t.Fatalf("RenderToRaster: %v", err)
	}

	const workers = 8
	results := make([]*raster.Image, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.RenderToRaster(context.Background(), hello(), layout.Size(200, 60), nil, nil)
		}(i)
	}
	wg.Wait()
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if !bytes.Equal(results[i].Data, want.Data) {
			t.Fatalf("worker %d produced a different image", i)
		}
	}
}
