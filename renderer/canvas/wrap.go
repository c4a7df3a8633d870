package canvasrenderer

import (
	"math"
	"strings"
	"unicode"

	"github.com/ByLCY/html2img/layout"
)

// measureFunc 返回单行文本的 px 宽度。
type measureFunc func(string) float64

// greedyWrapTokens 按 wrap 模式贪心折行，宽度单位为 px；width<=0 表示不限宽。
func greedyWrapTokens(content string, width float64, measure measureFunc, wrap string) []layout.TextLine {
	limit := width
	if limit <= 0 {
		limit = math.MaxFloat64
	}

	// nowrap：仅按显式换行划分，不基于宽度折行
	if wrap == "nowrap" {
		parts := strings.Split(strings.ReplaceAll(content, "\r", ""), "\n")
		lines := make([]layout.TextLine, 0, len(parts))
		for _, p := range parts {
			lines = append(lines, layout.TextLine{Content: p, Width: measure(p)})
		}
		return lines
	}

	var lines []layout.TextLine
	var builder strings.Builder
	current := 0.0
	emit := func(force bool) {
		if builder.Len() == 0 {
			if force {
				lines = append(lines, layout.TextLine{Content: "", Width: 0})
			}
			return
		}
		lines = append(lines, layout.TextLine{Content: builder.String(), Width: current})
		builder.Reset()
		current = 0
	}
	// pending 表示刚因宽度折行，此时遇到显式换行不再追加空行。
	pending := false
	push := func(s string) {
		builder.WriteString(s)
		current = measure(builder.String())
		pending = false
	}
	breakLine := func() {
		emit(false)
		pending = true
	}

	// break-word：忽略空白机会，纯按宽度切分（但仍然尊重显式换行）
	if wrap == "break-word" {
		for _, r := range content {
			if r == '\r' {
				continue
			}
			if r == '\n' {
				if !pending {
					emit(true)
				}
				pending = false
				continue
			}
			s := string(r)
			if current > 0 && measure(builder.String()+s) > limit {
				breakLine()
			}
			push(s)
		}
		if !pending || builder.Len() > 0 {
			emit(true)
		}
		return lines
	}

	// 默认（anywhere/normal 等）：优先在空白处分割，超过限制时在词内拆分
	for _, token := range tokenizeContent(content) {
		if token == "\n" {
			if !pending {
				emit(true)
			}
			pending = false
			continue
		}
		if current > 0 && measure(builder.String()+token) > limit {
			breakLine()
			// 行首不保留空白
			if isSpace(token) {
				continue
			}
		}
		if measure(token) <= limit {
			push(token)
			continue
		}
		for _, chunk := range splitTokenByWidth(token, limit, measure) {
			if current > 0 && measure(builder.String()+chunk) > limit {
				breakLine()
			}
			push(chunk)
		}
	}
	if !pending || builder.Len() > 0 {
		emit(true)
	}
	return trimTrailingSpace(lines, measure)
}

func tokenizeContent(s string) []string {
	var tokens []string
	var builder strings.Builder
	lastWasSpace := false
	flush := func() {
		if builder.Len() == 0 {
			return
		}
		tokens = append(tokens, builder.String())
		builder.Reset()
	}

	for _, r := range s {
		if r == '\r' {
			continue
		}
		if r == '\n' {
			flush()
			tokens = append(tokens, "\n")
			lastWasSpace = false
			continue
		}
		space := unicode.IsSpace(r)
		if builder.Len() == 0 {
			lastWasSpace = space
		} else if lastWasSpace != space {
			flush()
			lastWasSpace = space
		}
		builder.WriteRune(r)
	}
	flush()
	return tokens
}

func splitTokenByWidth(token string, limit float64, measure measureFunc) []string {
	if limit <= 0 || limit == math.MaxFloat64 {
		return []string{token}
	}
	var parts []string
	var builder strings.Builder
	for _, r := range token {
		builder.WriteRune(r)
		if measure(builder.String()) > limit && builder.Len() > len(string(r)) {
			runes := []rune(builder.String())
			parts = append(parts, string(runes[:len(runes)-1]))
			builder.Reset()
			builder.WriteRune(r)
		}
	}
	if builder.Len() > 0 {
		parts = append(parts, builder.String())
	}
	return parts
}

func isSpace(s string) bool {
	return strings.TrimSpace(s) == ""
}

// trimTrailingSpace 去掉因折行而挂在行尾的空白，宽度随之重算。
func trimTrailingSpace(lines []layout.TextLine, measure measureFunc) []layout.TextLine {
	for i := range lines {
		trimmed := strings.TrimRightFunc(lines[i].Content, unicode.IsSpace)
		if trimmed != lines[i].Content && trimmed != "" {
			lines[i].Content = trimmed
			lines[i].Width = measure(trimmed)
		}
	}
	return lines
}
