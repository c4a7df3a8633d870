package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ByLCY/html2img/layout"
)

func (c *CLI) renderCommand() *cobra.Command {
	var (
		lf  layoutFlags
		rf  rasterFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "render <markup>",
		Short: "把标记渲染为 PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tree, err := lf.readTree(args[0])
			if err != nil {
				return err
			}
			lo, err := lf.override(cmd)
			if err != nil {
				return err
			}
			ro, err := rf.override(cmd)
			if err != nil {
				return err
			}
			svc, err := c.newService(ctx, args[0])
			if err != nil {
				return err
			}
			prog := newProgress(loggerFromContext(ctx))
			img, err := svc.RenderToRaster(ctx, tree, lf.sizing(cmd), lo, ro)
			if err != nil {
				return err
			}
			if err := c.writeOutput(out, img.Data); err != nil {
				return err
			}
			prog.done("rendered", "width", img.Width, "height", img.Height)
			if out != "-" {
				printSuccess(os.Stderr, "%s %s %s", args[0], iconArrow, styleValue.Render(fmt.Sprintf("%s (%dx%d)", out, img.Width, img.Height)))
			}
			return nil
		},
	}
	lf.register(cmd)
	rf.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "out.png", `PNG 输出路径，"-" 表示标准输出`)
	return cmd
}

func (c *CLI) svgCommand() *cobra.Command {
	var (
		lf  layoutFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "svg <markup>",
		Short: "把标记排版为 SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tree, err := lf.readTree(args[0])
			if err != nil {
				return err
			}
			lo, err := lf.override(cmd)
			if err != nil {
				return err
			}
			svc, err := c.newService(ctx, args[0])
			if err != nil {
				return err
			}
			svg, err := svc.RenderToVector(ctx, tree, lf.sizing(cmd), lo)
			if err != nil {
				return err
			}
			if err := c.writeOutput(out, svg); err != nil {
				return err
			}
			if out != "-" {
				printSuccess(os.Stderr, "%s %s %s", args[0], iconArrow, styleValue.Render(out))
			}
			return nil
		},
	}
	lf.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "out.svg", `SVG 输出路径，"-" 表示标准输出`)
	return cmd
}

func (c *CLI) rasterizeCommand() *cobra.Command {
	var (
		rf  rasterFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "rasterize <svg>",
		Short: "把 SVG 转为 PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svg, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("无法读取 SVG 文件 %s: %w", args[0], err)
			}
			ro, err := rf.override(cmd)
			if err != nil {
				return err
			}
			svc, err := c.newService(ctx, "")
			if err != nil {
				return err
			}
			img, err := svc.Rasterize(ctx, svg, ro)
			if err != nil {
				return err
			}
			if err := c.writeOutput(out, img.Data); err != nil {
				return err
			}
			if out != "-" {
				printSuccess(os.Stderr, "%s %s %s", args[0], iconArrow, styleValue.Render(fmt.Sprintf("%s (%dx%d)", out, img.Width, img.Height)))
			}
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "out.png", `PNG 输出路径，"-" 表示标准输出`)
	return cmd
}

func (c *CLI) layoutCommand() *cobra.Command {
	var (
		lf  layoutFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "layout <markup>",
		Short: "输出布局调试 JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tree, err := lf.readTree(args[0])
			if err != nil {
				return err
			}
			lo, err := lf.override(cmd)
			if err != nil {
				return err
			}
			svc, err := c.newService(ctx, args[0])
			if err != nil {
				return err
			}
			res, err := svc.Layout(ctx, tree, lf.sizing(cmd), lo)
			if err != nil {
				return err
			}
			if out != "-" {
				if err := layout.WriteDebugJSON(res, out); err != nil {
					return fmt.Errorf("输出调试 JSON 失败: %w", err)
				}
				printSuccess(os.Stderr, "%s %s %s", args[0], iconArrow, styleValue.Render(out))
				return nil
			}
			var buf bytes.Buffer
			if err := layout.EncodeDebugJSON(res, &buf); err != nil {
				return fmt.Errorf("输出调试 JSON 失败: %w", err)
			}
			return c.writeOutput(out, buf.Bytes())
		},
	}
	lf.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "-", `JSON 输出路径，"-" 表示标准输出`)
	return cmd
}

func (c *CLI) fontsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fonts",
		Short: "列出配置中的字体目录",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.newService(cmd.Context(), "")
			if err != nil {
				return err
			}
			records := svc.Fonts()
			fmt.Fprintln(c.out, styleTitle.Render(fmt.Sprintf("字体目录（%d）", len(records))))
			for _, rec := range records {
				weight := "-"
				if rec.Weight != 0 {
					weight = fmt.Sprint(int(rec.Weight))
				}
				style := string(rec.Style)
				if style == "" {
					style = "-"
				}
				fmt.Fprintf(c.out, "  %s %s %s %s\n",
					styleValue.Render(rec.Name), weight, style, styleDim.Render(rec.Path))
			}
			files := svc.RasterDefaults().Font.FontFiles
			if extra := len(files) - len(records); extra > 0 {
				fmt.Fprintln(c.out, styleDim.Render(fmt.Sprintf("另有 %d 个光栅专用字体文件", extra)))
			}
			return nil
		},
	}
}
