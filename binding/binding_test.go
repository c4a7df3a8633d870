package binding

import (
	"encoding/json"
	"testing"

	"github.com/ByLCY/html2img/markup"
)

func mustData(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("解析测试数据失败: %v", err)
	}
	return v
}

func TestInterpolate(t *testing.T) {
	data := mustData(t, `{"user": {"name": "Ada", "tags": ["a", "b"]}, "n": 1000000, "items": [{"price": 2.5}]}`)
	cases := map[string]string{
		"Hello, ${user.name}!":       "Hello, Ada!",
		"${user.tags[1]}":                 "b",
		"${ n }":                                   "1000000",
		"${items[0].price}":             "2.5",
		"${user.missing}":                 "${user.missing}",
		"${user.tags[9]}":                 "${user.tags[9]}",
		"${user[0]}":                           "${user[0]}",
		"${user.tags[x]}":                 "${user.tags[x]}",
		"no placeholders":                 "no placeholders",
		"${user.name}${user.name}": "AdaAda",
	}
	for in, want := range cases {
		if got := Interpolate(in, data); got != want {
			t.Fatalf("Interpolate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInterpolateNilData(t *testing.T) {
	if got := Interpolate("${a}", nil); got != "${a}" {
		t.Fatalf("nil data should keep placeholder, got %q", got)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	tree := markup.Element("div", map[string]string{"title": "${title}"},
		markup.Element("span", nil, markup.Text("Hi ${user.name}")),
	)
	data := mustData(t, `{"title": "Card", "user": {"name": "Ada"}}`)

	out := Apply(tree, data)
	if out.Props["title"] != "Card" || out.Children[0].Children[0].Text != "Hi Ada" {
		t.Fatalf("interpolation not applied: %+v", out)
	}
	if tree.Props["title"] != "${title}" || tree.Children[0].Children[0].Text != "Hi ${user.name}" {
		t.Fatalf("input tree mutated")
	}
}
