// Package renderer 定义把布局结果输出为矢量图的接口。
package renderer

import "github.com/ByLCY/html2img/layout"

// Renderer 将布局结果输出为最终文件，例如 SVG。
// Render 返回生成的二进制数据以及可能的错误。
type Renderer interface {
	Render(result *layout.Result) ([]byte, error)
}
