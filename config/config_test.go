package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ByLCY/html2img/errors"
	"github.com/ByLCY/html2img/fonts"
	"github.com/ByLCY/html2img/options"
	"github.com/ByLCY/html2img/pipeline"
)

func TestParseEmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil, "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(pipeline.DefaultConfig(), cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
	if !cfg.Layout.EmbedFont || cfg.Raster.DPI != 192 || cfg.Raster.FitTo != options.Zoom(1.25) ||
		cfg.Raster.Font.DefaultFontSize != 12 || cfg.Raster.LogLevel != options.LogInfo {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseFullConfig(t *testing.T) {
	doc := `
[[fonts]]
name = "Body"
path = "fonts/Body.ttf"
weight = 700
style = "Italic"
lang = "en"

[[fonts]]
name = "Mono"
path = "/abs/Mono.ttf"

[layout]
embedFont = false
debug = true
[layout.graphemeImages]
"★" = "https://example.com/star.png"

[raster]
dpi = 300
shapeRendering = 1
textRendering = 0
imageRendering = 1
logLevel = "DEBUG"
[raster.font]
loadSystemFonts = true
defaultFontSize = 14
defaultFontFamily = "Body"
monospaceFamily = "Mono"
fontFiles = ["extra/A.ttf"]
[raster.fitTo]
mode = "width"
value = 800
`
	cfg, err := Parse([]byte(doc), "/etc/html2img")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	wantFonts := []fonts.Descriptor{
		{Name: "Body", Path: filepath.Join("/etc/html2img", "fonts/Body.ttf"), Weight: 700, Style: fonts.StyleItalic, Lang: "en"},
		{Name: "Mono", Path: "/abs/Mono.ttf"},
	}
	if diff := cmp.Diff(wantFonts, cfg.Fonts); diff != "" {
		t.Fatalf("fonts mismatch (-want +got):\n%s", diff)
	}
	wantLayout := options.Layout{EmbedFont: false, Debug: true, GraphemeImages: map[string]string{"★": "https://example.com/star.png"}}
	if diff := cmp.Diff(wantLayout, cfg.Layout); diff != "" {
		t.Fatalf("layout mismatch (-want +got):\n%s", diff)
	}
	wantRaster := options.Raster{
		Font: options.FontOptions{
			LoadSystemFonts: true,
			DefaultFontSize: 14,
			DefaultFamily:   "Body",
			MonospaceFamily: "Mono",
			FontFiles:       []string{filepath.Join("/etc/html2img", "extra/A.ttf")},
		},
		DPI:            300,
		ShapeRendering: options.ShapeCrispEdges,
		TextRendering:  options.TextSpeed,
		ImageRendering: options.ImageSpeed,
		FitTo:          options.Width(800),
		LogLevel:       options.LogDebug,
	}
	if diff := cmp.Diff(wantRaster, cfg.Raster); diff != "" {
		t.Fatalf("raster mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "[raster]\ndpii = 3\n", "raster.dpii"},
		{"unknown section", "[server]\nport = 1\n", "server"},
		{"syntax", "[layout\n", ""},
		{"bad fit mode", "[raster.fitTo]\nmode = \"stretch\"\n", "fitTo"},
		{"missing fit value", "[raster.fitTo]\nmode = \"zoom\"\n", "fitTo"},
		{"zero dpi", "[raster]\ndpi = 0\n", "dpi"},
		{"bad log level", "[raster]\nlogLevel = \"loud\"\n", "logLevel"},
		{"bad enum", "[raster]\nshapeRendering = 7\n", "shapeRendering"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc), "")
			if !errors.Is(err, errors.CodeInvalidConfig) {
				t.Fatalf("expected INVALID_CONFIG, got %v", err)
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadResolvesRelativeToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "html2img.toml")
	if err := os.WriteFile(path, []byte("[[fonts]]\nname = \"Body\"\npath = \"Body.ttf\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, want := cfg.Fonts[0].Path, filepath.Join(dir, "Body.ttf"); got != want {
		t.Fatalf("font path = %s, want %s", got, want)
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); !errors.Is(err, errors.CodeInvalidConfig) {
		t.Fatalf("missing file: expected INVALID_CONFIG, got %v", err)
	}
}
