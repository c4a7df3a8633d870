package markup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// FromJSON 解析元素树 JSON：
//
//	{"type": "div", "props": {"style": {"fontSize": 24}, "children": ["Hi"]}}
//
// 字符串与数字子节点成为文本节点，null 与布尔值被忽略，嵌套数组会被展开。
// props.style 中的键与其他 props 合并到 Node.Props。
func FromJSON(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("解析元素 JSON 失败: %w", err)
	}
	nodes, err := convertChild(raw, "$")
	if err != nil {
		return nil, err
	}
	if len(nodes) != 1 {
		return nil, fmt.Errorf("元素 JSON 必须只有一个根节点，实际为 %d 个", len(nodes))
	}
	return nodes[0], nil
}

func convertChild(v any, path string) ([]*Node, error) {
	switch c := v.(type) {
	case nil, bool:
		return nil, nil
	case string:
		return []*Node{Text(c)}, nil
	case json.Number:
		return []*Node{Text(c.String())}, nil
	case []any:
		var out []*Node
		for i, item := range c {
			nodes, err := convertChild(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, nodes...)
		}
		return out, nil
	case map[string]any:
		n, err := convertElement(c, path)
		if err != nil {
			return nil, err
		}
		return []*Node{n}, nil
	default:
		return nil, fmt.Errorf("%s: 不支持的节点类型 %T", path, v)
	}
}

func convertElement(obj map[string]any, path string) (*Node, error) {
	tag, ok := obj["type"].(string)
	if !ok || tag == "" {
		return nil, fmt.Errorf("%s: 元素缺少字符串类型的 type", path)
	}
	n := &Node{Tag: tag}
	props, _ := obj["props"].(map[string]any)
	for _, key := range sortedKeys(props) {
		val := props[key]
		switch key {
		case "children":
			children, err := convertChild(val, path+".children")
			if err != nil {
				return nil, err
			}
			n.Children = children
		case "style":
			style, ok := val.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s.style: 必须是对象", path)
			}
			for _, sk := range sortedKeys(style) {
				if err := n.setProp(sk, style[sk], path+".style"); err != nil {
					return nil, err
				}
			}
		default:
			if err := n.setProp(key, val, path); err != nil {
				return nil, err
			}
		}
	}
	return n, nil
}

func (n *Node) setProp(key string, val any, path string) error {
	var s string
	switch v := val.(type) {
	case nil:
		return nil
	case string:
		s = v
	case json.Number:
		s = v.String()
	case bool:
		s = strconv.FormatBool(v)
	default:
		return fmt.Errorf("%s.%s: 属性值必须是字符串、数字或布尔值", path, key)
	}
	if n.Props == nil {
		n.Props = map[string]string{}
	}
	n.Props[key] = s
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
