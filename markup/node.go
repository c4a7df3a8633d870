// Package markup 定义与 UI 框架无关的标记树：标签、属性与子节点。
//
// 文本节点只有 Text；元素节点有 Tag、Props 与 Children。样式属性（如 width、
// fontSize、backgroundColor）与普通属性（如 img 的 src）同样放在 Props 中。
package markup

// Node 是标记树中的一个节点。
type Node struct {
	Tag      string            `json:"tag,omitempty"`
	Text     string            `json:"text,omitempty"`
	Props    map[string]string `json:"props,omitempty"`
	Children []*Node           `json:"children,omitempty"`
}

// Text 创建文本节点。
func Text(s string) *Node { return &Node{Text: s} }

// Element 创建元素节点。
func Element(tag string, props map[string]string, children ...*Node) *Node {
	return &Node{Tag: tag, Props: props, Children: children}
}

// IsText 报告节点是否为文本节点。
func (n *Node) IsText() bool { return n != nil && n.Tag == "" }

// Prop 返回属性值，不存在时返回空字符串。
func (n *Node) Prop(key string) string {
	if n == nil {
		return ""
	}
	return n.Props[key]
}

// Clone 深拷贝整棵子树。
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Tag: n.Tag, Text: n.Text}
	if n.Props != nil {
		out.Props = make(map[string]string, len(n.Props))
		for k, v := range n.Props {
			out.Props[k] = v
		}
	}
	if len(n.Children) > 0 {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Walk 先序遍历子树，fn 返回错误时停止。
func (n *Node) Walk(fn func(*Node) error) error {
	if n == nil {
		return nil
	}
	if err := fn(n); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := c.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}
