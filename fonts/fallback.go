package fonts

import "golang.org/x/image/font/gofont/goregular"

// FallbackName 是内置兜底字体的名称。
const FallbackName = "Go"

// Fallback 返回内置的 Go Regular 字体，目录为空时布局引擎用它排版。
func Fallback() Record {
	return Record{
		Descriptor: Descriptor{Name: FallbackName, Path: "builtin:go-regular", Weight: WeightNormal, Style: StyleNormal},
		Data:       goregular.TTF,
	}
}
