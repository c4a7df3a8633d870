package layout

import "github.com/ByLCY/html2img/fonts"

// BuildOptions 配置布局计算所需的依赖与资源。
type BuildOptions struct {
	Typesetter Typesetter
	// Fonts 是可用字体，顺序即匹配优先级；为空时使用内置兜底字体。
	Fonts []fonts.Record
	// GraphemeImages 中出现的字素以等于字号的方形图片绘制。
	GraphemeImages map[string]string
	Debug          DebugOptions
}

// DebugOptions 控制调试相关输出。
type DebugOptions struct {
	Outlines bool // 为每个盒子输出调试轮廓
	RawUnits bool // 在调试 JSON 中输出 debug.rawUnits 影子字段
}

// Typesetter 负责根据字体与宽度约束将文本拆成可绘制的行。
// 约定：宽度、字号与行高均为 px；width<=0 表示不限宽。
type Typesetter interface {
	LayoutLines(content string, width float64, font fonts.Record, fontSize float64, lineHeight float64, wrap string) ([]TextLine, error)
	Measure(content string, font fonts.Record, fontSize float64) (float64, error)
}
