package fonts

import "fmt"

// Weight 是 CSS 字重刻度上的取值（100~900，步长 100），0 表示未指定。
type Weight int

const (
	WeightThin       Weight = 100
	WeightExtraLight Weight = 200
	WeightLight      Weight = 300
	WeightNormal     Weight = 400
	WeightMedium     Weight = 500
	WeightSemiBold   Weight = 600
	WeightBold       Weight = 700
	WeightExtraBold  Weight = 800
	WeightBlack      Weight = 900
)

// Valid 报告字重是否在刻度上；未指定（0）也视为合法。
func (w Weight) Valid() bool {
	return w == 0 || (w >= WeightThin && w <= WeightBlack && w%100 == 0)
}

// Style 是字体样式，空字符串表示未指定。
type Style string

const (
	StyleNormal Style = "normal"
	StyleItalic Style = "italic"
)

// Valid 报告样式是否为已知取值。
func (s Style) Valid() bool {
	switch s {
	case "", StyleNormal, StyleItalic:
		return true
	default:
		return false
	}
}

// Descriptor 是用户声明的一条字体配置。
type Descriptor struct {
	Name   string `json:"name" toml:"name"`
	Path   string `json:"path" toml:"path"`
	Weight Weight `json:"weight,omitempty" toml:"weight,omitempty"`
	Style  Style  `json:"style,omitempty" toml:"style,omitempty"`
	Lang   string `json:"lang,omitempty" toml:"lang,omitempty"`
}

// validate 检查与文件无关的字段。
func (d Descriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("字体名称不能为空（path=%s）", d.Path)
	}
	if d.Path == "" {
		return fmt.Errorf("字体 %q 缺少文件路径", d.Name)
	}
	if !d.Weight.Valid() {
		return fmt.Errorf("字体 %q 的字重 %d 不在 100~900 刻度上", d.Name, d.Weight)
	}
	if !d.Style.Valid() {
		return fmt.Errorf("字体 %q 的样式 %q 仅支持 normal/italic", d.Name, d.Style)
	}
	return nil
}

// Record 是注册表持有的字体：声明字段加上只读取一次的二进制内容。
// Data 在服务生命周期内只读，布局与光栅两个阶段共享同一份切片。
type Record struct {
	Descriptor
	Data []byte `json:"-"`
}

// Key 返回用于缓存字体面的唯一键。
func (r Record) Key() string {
	return fmt.Sprintf("%s|%s|%d|%s", r.Name, r.Path, r.Weight, r.Style)
}
