package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ByLCY/html2img/binding"
	"github.com/ByLCY/html2img/layout"
	"github.com/ByLCY/html2img/markup"
	"github.com/ByLCY/html2img/options"
)

// layoutFlags 是排版类命令共享的参数。
type layoutFlags struct {
	width     float64
	height    float64
	data      string
	embedFont bool
	debug     bool
	graphemes []string
}

func (f *layoutFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64VarP(&f.width, "width", "W", 0, "画布宽度（px）")
	cmd.Flags().Float64VarP(&f.height, "height", "H", 0, "画布高度（px）")
	cmd.Flags().StringVarP(&f.data, "data", "d", "", "绑定到标记的 JSON 数据文件")
	cmd.Flags().BoolVar(&f.embedFont, "embed-font", true, "把文字转为路径嵌入 SVG")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "绘制盒子调试轮廓")
	cmd.Flags().StringArrayVar(&f.graphemes, "grapheme", nil, "字素图片映射，形如 ★=star.png，可重复")
}

// sizing 只采用命令行中显式给出的宽高。
func (f *layoutFlags) sizing(cmd *cobra.Command) layout.Sizing {
	var s layout.Sizing
	if cmd.Flags().Changed("width") {
		w := f.width
		s.Width = &w
	}
	if cmd.Flags().Changed("height") {
		h := f.height
		s.Height = &h
	}
	return s
}

// override 只包含命令行中显式给出的选项，其余沿用配置默认值。
func (f *layoutFlags) override(cmd *cobra.Command) (*options.LayoutOverride, error) {
	o := &options.LayoutOverride{}
	if cmd.Flags().Changed("embed-font") {
		v := f.embedFont
		o.EmbedFont = &v
	}
	if cmd.Flags().Changed("debug") {
		v := f.debug
		o.Debug = &v
	}
	for _, g := range f.graphemes {
		key, src, ok := strings.Cut(g, "=")
		if !ok || key == "" || src == "" {
			return nil, fmt.Errorf("--grapheme %q 应为 字素=图片 形式", g)
		}
		if o.GraphemeImages == nil {
			o.GraphemeImages = map[string]string{}
		}
		o.GraphemeImages[key] = src
	}
	return o, nil
}

// readTree 读取标记文件：.json 按元素树 JSON 解析，其余按紧凑语法解析；
// 给出 data 时先做 ${...} 插值。
func (f *layoutFlags) readTree(path string) (*markup.Node, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取标记文件 %s: %w", path, err)
	}
	var tree *markup.Node
	if strings.EqualFold(filepath.Ext(path), ".json") {
		tree, err = markup.FromJSON(src)
	} else {
		tree, err = markup.Parse(bytes.NewReader(src))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.data == "" {
		return tree, nil
	}
	raw, err := os.ReadFile(f.data)
	if err != nil {
		return nil, fmt.Errorf("无法读取数据文件 %s: %w", f.data, err)
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("解析 data JSON 失败: %w", err)
	}
	return binding.Apply(tree, data), nil
}

// rasterFlags 是光栅类命令共享的参数。
type rasterFlags struct {
	fit       string
	dpi       float64
	system    bool
	fontFiles []string
}

func (f *rasterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.fit, "fit", "", `缩放模式：original、width:800、height:600、zoom:2`)
	cmd.Flags().Float64Var(&f.dpi, "dpi", 0, "光栅分辨率（96 为 1 倍）")
	cmd.Flags().BoolVar(&f.system, "system-fonts", false, "加载系统字体")
	cmd.Flags().StringArrayVar(&f.fontFiles, "font-file", nil, "额外的光栅字体文件，可重复")
}

func (f *rasterFlags) override(cmd *cobra.Command) (*options.RasterOverride, error) {
	o := &options.RasterOverride{}
	if f.fit != "" {
		fit, err := options.ParseFitTo(f.fit)
		if err != nil {
			return nil, fmt.Errorf("--fit: %w", err)
		}
		o.FitTo = &fit
	}
	if cmd.Flags().Changed("dpi") {
		v := f.dpi
		o.DPI = &v
	}
	if cmd.Flags().Changed("system-fonts") || len(f.fontFiles) > 0 {
		o.Font = &options.FontOverride{FontFiles: f.fontFiles}
		if cmd.Flags().Changed("system-fonts") {
			v := f.system
			o.Font.LoadSystemFonts = &v
		}
	}
	return o, nil
}

// writeOutput 写入文件，路径为 "-" 时写到标准输出。
func (c *CLI) writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := c.out.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	return nil
}
