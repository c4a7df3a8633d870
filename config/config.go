// Package config 从 TOML 文件读取服务配置。
//
// 未出现的键取默认值，未知的键视为错误；字体路径相对于配置文件所在目录。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ByLCY/html2img/errors"
	"github.com/ByLCY/html2img/fonts"
	"github.com/ByLCY/html2img/options"
	"github.com/ByLCY/html2img/pipeline"
)

type file struct {
	Fonts  []fontEntry `toml:"fonts"`
	Layout layout      `toml:"layout"`
	Raster raster      `toml:"raster"`
}

type fontEntry struct {
	Name   string `toml:"name"`
	Path   string `toml:"path"`
	Weight int    `toml:"weight"`
	Style  string `toml:"style"`
	Lang   string `toml:"lang"`
}

type layout struct {
	EmbedFont      *bool             `toml:"embedFont"`
	Debug          *bool             `toml:"debug"`
	GraphemeImages map[string]string `toml:"graphemeImages"`
}

type raster struct {
	DPI            *float64 `toml:"dpi"`
	ShapeRendering *int     `toml:"shapeRendering"`
	TextRendering  *int     `toml:"textRendering"`
	ImageRendering *int     `toml:"imageRendering"`
	LogLevel       *string  `toml:"logLevel"`
	Font           *font    `toml:"font"`
	FitTo          *fitTo   `toml:"fitTo"`
}

type font struct {
	LoadSystemFonts   *bool    `toml:"loadSystemFonts"`
	DefaultFontSize   *float64 `toml:"defaultFontSize"`
	DefaultFontFamily *string  `toml:"defaultFontFamily"`
	SerifFamily       *string  `toml:"serifFamily"`
	SansSerifFamily   *string  `toml:"sansSerifFamily"`
	CursiveFamily     *string  `toml:"cursiveFamily"`
	FantasyFamily     *string  `toml:"fantasyFamily"`
	MonospaceFamily   *string  `toml:"monospaceFamily"`
	FontFiles         []string `toml:"fontFiles"`
}

type fitTo struct {
	Mode  string   `toml:"mode"`
	Value *float64 `toml:"value"`
}

// Load 读取并解析配置文件。
func Load(path string) (pipeline.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Config{}, errors.Wrap(errors.CodeInvalidConfig, err, "读取配置文件 %s 失败", path)
	}
	cfg, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse 解析 TOML 内容，baseDir 用于解析相对的字体路径。
func Parse(data []byte, baseDir string) (pipeline.Config, error) {
	var f file
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return pipeline.Config{}, errors.Wrap(errors.CodeInvalidConfig, err, "解析 TOML 失败")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return pipeline.Config{}, errors.New(errors.CodeInvalidConfig, "未知的配置项: %s", strings.Join(keys, ", "))
	}

	cfg := pipeline.DefaultConfig()
	for _, fe := range f.Fonts {
		cfg.Fonts = append(cfg.Fonts, fonts.Descriptor{
			Name:   fe.Name,
			Path:   resolve(baseDir, fe.Path),
			Weight: fonts.Weight(fe.Weight),
			Style:  fonts.Style(strings.ToLower(fe.Style)),
			Lang:   fe.Lang,
		})
	}
	cfg.Layout = options.MergeLayout(cfg.Layout, &options.LayoutOverride{
		EmbedFont:      f.Layout.EmbedFont,
		Debug:          f.Layout.Debug,
		GraphemeImages: f.Layout.GraphemeImages,
	})

	override, err := f.Raster.override(baseDir)
	if err != nil {
		return pipeline.Config{}, err
	}
	cfg.Raster = options.MergeRaster(cfg.Raster, override)
	if err := cfg.Raster.Validate(); err != nil {
		return pipeline.Config{}, errors.Wrap(errors.CodeInvalidConfig, err, "[raster] 配置非法")
	}
	return cfg, nil
}

func (r raster) override(baseDir string) (*options.RasterOverride, error) {
	o := &options.RasterOverride{DPI: r.DPI}
	if r.ShapeRendering != nil {
		v := options.ShapeRendering(*r.ShapeRendering)
		o.ShapeRendering = &v
	}
	if r.TextRendering != nil {
		v := options.TextRendering(*r.TextRendering)
		o.TextRendering = &v
	}
	if r.ImageRendering != nil {
		v := options.ImageRendering(*r.ImageRendering)
		o.ImageRendering = &v
	}
	if r.LogLevel != nil {
		v := options.LogLevel(strings.ToLower(*r.LogLevel))
		o.LogLevel = &v
	}
	if r.FitTo != nil {
		fit := options.FitTo{Mode: options.FitMode(strings.ToLower(r.FitTo.Mode))}
		if r.FitTo.Value != nil {
			fit.Value = *r.FitTo.Value
		}
		if err := fit.Validate(); err != nil {
			return nil, errors.Wrap(errors.CodeInvalidConfig, err, "[raster.fitTo] 配置非法")
		}
		o.FitTo = &fit
	}
	if f := r.Font; f != nil {
		files := make([]string, len(f.FontFiles))
		for i, p := range f.FontFiles {
			files[i] = resolve(baseDir, p)
		}
		o.Font = &options.FontOverride{
			LoadSystemFonts: f.LoadSystemFonts,
			DefaultFontSize: f.DefaultFontSize,
			DefaultFamily:   f.DefaultFontFamily,
			SerifFamily:     f.SerifFamily,
			SansSerifFamily: f.SansSerifFamily,
			CursiveFamily:   f.CursiveFamily,
			FantasyFamily:   f.FantasyFamily,
			MonospaceFamily: f.MonospaceFamily,
			FontFiles:       files,
		}
	}
	return o, nil
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
