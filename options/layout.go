// Package options 定义布局与光栅两个阶段的选项，以及默认值与按次覆盖的合并规则。
//
// 合并规则：
//   - 标量字段：覆盖值存在（非 nil）时替换默认值；
//   - 字体列表：默认列表在前、覆盖列表在后拼接，不去重（引擎按先匹配先得解析字体）；
//   - 嵌套结构（光栅字体子选项）：逐字段递归合并；
//   - FitTo：整体替换，不跨模式合并。
//
// 合并函数是纯函数：不做 I/O，不修改默认值，也不把默认值的切片或映射别名到结果中。
package options

import "github.com/ByLCY/html2img/fonts"

// Layout 是布局阶段（标记 → SVG）的有效选项。
type Layout struct {
	// EmbedFont 为 true 时文字转为路径嵌入 SVG。
	EmbedFont bool `json:"embedFont"`
	// Debug 为 true 时绘制每个盒子的边框。
	Debug bool `json:"debug"`
	// GraphemeImages 把单个字素映射为图片 URL。
	GraphemeImages map[string]string `json:"graphemeImages,omitempty"`
	// Fonts 是可用于排版的字体，顺序即匹配优先级。
	Fonts []fonts.Record `json:"fonts,omitempty"`
}

// LayoutOverride 是按次调用提供的部分布局选项。
type LayoutOverride struct {
	EmbedFont      *bool             `json:"embedFont,omitempty"`
	Debug          *bool             `json:"debug,omitempty"`
	GraphemeImages map[string]string `json:"graphemeImages,omitempty"`
	// Fonts 追加在默认字体之后。
	Fonts []fonts.Record `json:"fonts,omitempty"`
}

// DefaultLayout 返回未配置时的布局默认值。
func DefaultLayout() Layout {
	return Layout{EmbedFont: true}
}

// MergeLayout 合并默认值与覆盖值，o 为 nil 时返回与 def 等值的新结构。
func MergeLayout(def Layout, o *LayoutOverride) Layout {
	out := Layout{
		EmbedFont:      def.EmbedFont,
		Debug:          def.Debug,
		GraphemeImages: mergeMap(def.GraphemeImages, nil),
		Fonts:          concat(def.Fonts, nil),
	}
	if o == nil {
		return out
	}
	out.EmbedFont = pick(def.EmbedFont, o.EmbedFont)
	out.Debug = pick(def.Debug, o.Debug)
	out.GraphemeImages = mergeMap(def.GraphemeImages, o.GraphemeImages)
	out.Fonts = concat(def.Fonts, o.Fonts)
	return out
}

// pick 在覆盖值存在时返回覆盖值。
func pick[T any](def T, override *T) T {
	if override != nil {
		return *override
	}
	return def
}

// concat 返回 a 后接 b 的新切片；二者都为空时返回 nil，保证与未合并的默认值等值。
func concat[T any](a, b []T) []T {
	if len(a) == 0 && len(b) == 0 {
		if a == nil {
			return nil
		}
		return []T{}
	}
	out := make([]T, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// mergeMap 按键合并，覆盖键优先。
func mergeMap(def, override map[string]string) map[string]string {
	if def == nil && override == nil {
		return nil
	}
	out := make(map[string]string, len(def)+len(override))
	for k, v := range def {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
