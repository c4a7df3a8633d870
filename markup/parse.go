package markup

import (
	"fmt"
	"io"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// 紧凑文本语法：
//
//	div (width: 100%, padding: 8, backgroundColor: #fff) {
//	  span (fontSize: 24, color: #333) { "Hi" }
//	  img (src: "logo.png", width: 16, height: 16)
//	}
//
// 属性之间的逗号与子节点之间的分号都是可选的。
var (
	markupLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		{Name: "Color", Pattern: `#(?:[0-9A-Fa-f]{8}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{4}|[0-9A-Fa-f]{3})`},
		{Name: "Number", Pattern: `-?(?:\d+\.\d+|\d+|\.\d+)(?:px|%|em)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Punct", Pattern: `[(){},:;]`},
	})

	markupParser = participle.MustBuild[document](
		participle.Lexer(markupLexer),
		participle.Elide("Whitespace", "LineComment", "BlockComment"),
	)
)

type document struct {
	Root *element `parser:"@@"`
}

type element struct {
	Pos      lexer.Position `parser:""`
	Tag      string         `parser:"@Ident"`
	Props    []*prop        `parser:"( '(' ( @@ ','? )* ')' )?"`
	Children []*child       `parser:"( '{' ( @@ ';'? )* '}' )?"`
}

type prop struct {
	Pos   lexer.Position `parser:""`
	Key   string         `parser:"@Ident ':'"`
	Value *value         `parser:"@@"`
}

type value struct {
	String *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Color  *string        `parser:"| @Color"`
	Ident  *string        `parser:"| @Ident"`
}

func (v *value) raw() string {
	switch {
	case v.String != nil:
		return string(*v.String)
	case v.Number != nil:
		return *v.Number
	case v.Color != nil:
		return *v.Color
	case v.Ident != nil:
		return *v.Ident
	default:
		return ""
	}
}

type child struct {
	Text    *StringLiteral `parser:"  @String"`
	Element *element       `parser:"| @@"`
}

// StringLiteral 在捕获时按 Go 语法去掉引号与转义。
type StringLiteral string

// Capture 实现 participle.Capture。
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// Parse 从 io.Reader 解析紧凑语法。
func Parse(r io.Reader) (*Node, error) {
	doc, err := markupParser.Parse("", r)
	if err != nil {
		return nil, fmt.Errorf("解析标记失败: %w", err)
	}
	return doc.Root.toNode()
}

// ParseString 从字符串解析紧凑语法。
func ParseString(input string) (*Node, error) {
	doc, err := markupParser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("解析标记失败: %w", err)
	}
	return doc.Root.toNode()
}

func (e *element) toNode() (*Node, error) {
	n := &Node{Tag: e.Tag}
	for _, p := range e.Props {
		if n.Props == nil {
			n.Props = make(map[string]string, len(e.Props))
		}
		if _, dup := n.Props[p.Key]; dup {
			return nil, fmt.Errorf("%s: 元素 %s 的属性 %s 重复", p.Pos, e.Tag, p.Key)
		}
		n.Props[p.Key] = p.Value.raw()
	}
	for _, c := range e.Children {
		if c.Text != nil {
			n.Children = append(n.Children, Text(string(*c.Text)))
			continue
		}
		child, err := c.Element.toNode()
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}
