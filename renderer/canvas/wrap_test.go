package canvasrenderer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// 每个字符宽 10px，便于手算折行结果。
func fixedWidth(s string) float64 { return float64(len([]rune(s))) * 10 }

func contents(t *testing.T, content string, width float64, wrap string) []string {
	t.Helper()
	var out []string
	for _, l := range greedyWrapTokens(content, width, fixedWidth, wrap) {
		out = append(out, l.Content)
	}
	return out
}

func TestGreedyWrapModes(t *testing.T) {
	cases := []struct {
		name    string
		content string
		width   float64
		wrap    string
		want    []string
	}{
		{"fits", "ab cd", 100, "anywhere", []string{"ab cd"}},
		{"break at space", "ab cd ef", 50, "anywhere", []string{"ab cd", "ef"}},
		{"split long word", "abcdefgh", 30, "anywhere", []string{"abc", "def", "gh"}},
		{"unbounded", "ab cd ef", 0, "anywhere", []string{"ab cd ef"}},
		{"nowrap keeps lines", "ab cd ef\ngh", 20, "nowrap", []string{"ab cd ef", "gh"}},
		{"break-word ignores spaces", "ab cd", 30, "break-word", []string{"ab ", "cd"}},
		{"explicit blank line", "a\n\nb", 100, "anywhere", []string{"a", "", "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, contents(t, tc.content, tc.width, tc.wrap)); diff != "" {
				t.Fatalf("lines mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGreedyWrapWidthsMatchContent(t *testing.T) {
	for _, l := range greedyWrapTokens("hello wide world", 60, fixedWidth, "") {
		if l.Width != fixedWidth(l.Content) {
			t.Fatalf("line %q width %g", l.Content, l.Width)
		}
		if l.Width > 60 {
			t.Fatalf("line %q exceeds limit", l.Content)
		}
	}
}
