// Package fonts 负责加载、校验并共享字体资源。
//
// Registry 在服务启动时构建一次，之后只读：布局阶段通过 Records 取得字体字节，
// 光栅阶段通过 Paths 取得文件路径。两种视图来自同一次文件读取。
package fonts

import (
	"os"

	"github.com/ByLCY/html2img/errors"
)

// Registry 是不可变的字体目录。
type Registry struct {
	records []Record
}

// NewRegistry 按声明顺序读取每个字体文件。
// 任一字体非法或文件不可读时返回错误，不会返回部分构建的目录。
func NewRegistry(descs []Descriptor) (*Registry, error) {
	records := make([]Record, 0, len(descs))
	for _, d := range descs {
		rec, err := Load(d)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return &Registry{records: records}, nil
}

// Load 校验并读取单个字体，供调用方构造按次追加的字体。
func Load(d Descriptor) (Record, error) {
	if err := d.validate(); err != nil {
		return Record{}, errors.Wrap(errors.CodeInvalidFont, err, "字体配置非法")
	}
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return Record{}, errors.Wrap(errors.CodeFontNotFound, err, "字体 %q 的文件 %s 不可读", d.Name, d.Path)
	}
	return Record{Descriptor: d, Data: data}, nil
}

// Len 返回字体数量。
func (r *Registry) Len() int { return len(r.records) }

// Records 返回字体记录的副本切片，Data 与注册表共享。
func (r *Registry) Records() []Record {
	return append([]Record(nil), r.records...)
}

// Paths 返回与 Records 顺序一致的文件路径。
func (r *Registry) Paths() []string {
	paths := make([]string, len(r.records))
	for i, rec := range r.records {
		paths[i] = rec.Path
	}
	return paths
}

// Lookup 返回同名的全部字体，保持声明顺序。
func (r *Registry) Lookup(name string) []Record {
	var out []Record
	for _, rec := range r.records {
		if rec.Name == name {
			out = append(out, rec)
		}
	}
	return out
}
