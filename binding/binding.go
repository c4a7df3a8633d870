// Package binding 把 JSON 数据绑定到标记树中的 ${path.to.value} 占位符。
package binding

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ByLCY/html2img/markup"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Apply 返回插值后的标记树副本，原树不被修改。
// 文本节点内容与全部属性值都会参与插值。
func Apply(tree *markup.Node, data any) *markup.Node {
	out := tree.Clone()
	if data == nil {
		return out
	}
	_ = out.Walk(func(n *markup.Node) error {
		if n.IsText() {
			n.Text = Interpolate(n.Text, data)
			return nil
		}
		for k, v := range n.Props {
			n.Props[k] = Interpolate(v, data)
		}
		return nil
	})
	return out
}

// Interpolate 将文本中的 ${path.to.value} 替换为 data 中的值，
// 路径支持 a.b[0].c 形式。data 为空或路径不存在时保留原占位符。
func Interpolate(text string, data any) string {
	if data == nil || !strings.Contains(text, "${") {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-1])
		if path == "" {
			return match
		}
		if val, ok := resolvePath(data, path); ok {
			return format(val)
		}
		return match
	})
}

// format 避免 JSON 数字以科学计数法输出。
func format(val any) string {
	switch v := val.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func resolvePath(data any, path string) (any, bool) {
	current := data
	for _, segment := range strings.Split(path, ".") {
		name, indexes, ok := parseSegment(segment)
		if !ok {
			return nil, false
		}
		if name != "" {
			m, isMap := current.(map[string]any)
			if !isMap {
				return nil, false
			}
			if current, ok = m[name]; !ok {
				return nil, false
			}
		}
		for _, idx := range indexes {
			arr, isArr := current.([]any)
			if !isArr || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			current = arr[idx]
		}
	}
	return current, true
}

// parseSegment 拆分 name[0][1] 形式的路径片段。
func parseSegment(segment string) (string, []int, bool) {
	name, rest, found := strings.Cut(segment, "[")
	if !found {
		return segment, nil, true
	}
	rest = "[" + rest
	var indexes []int
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, false
		}
		end := strings.IndexByte(rest, ']')
		if end == -1 {
			return "", nil, false
		}
		idx, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return "", nil, false
		}
		indexes = append(indexes, idx)
		rest = rest[end+1:]
	}
	return name, indexes, true
}
