package layout

import (
	"fmt"
	"strings"

	"github.com/ByLCY/html2img/fonts"
)

// genericFamilies 在目录中找不到同名字体时退回目录首个字体，而不是报错。
var genericFamilies = map[string]bool{
	"serif":      true,
	"sans-serif": true,
	"monospace":  true,
	"cursive":    true,
	"fantasy":    true,
	"system-ui":  true,
}

// matchFont 按 fontFamily 列表依次查找，先匹配先得；同一家族内先比样式，再取最接近的字重，
// 仍相同时取声明靠前者。families 为空时使用目录首个字体所在的家族。
func matchFont(catalog []fonts.Record, families []string, weight fonts.Weight, style fonts.Style) (fonts.Record, error) {
	if len(catalog) == 0 {
		return fonts.Fallback(), nil
	}
	if len(families) == 0 {
		families = []string{catalog[0].Name}
	}
	for _, family := range families {
		var candidates []fonts.Record
		for _, rec := range catalog {
			if strings.EqualFold(rec.Name, family) {
				candidates = append(candidates, rec)
			}
		}
		if len(candidates) > 0 {
			return closest(candidates, weight, style), nil
		}
	}
	for _, family := range families {
		if genericFamilies[strings.ToLower(family)] {
			return matchFont(catalog, nil, weight, style)
		}
	}
	return fonts.Record{}, fmt.Errorf("字体 %q 未注册", strings.Join(families, ", "))
}

func closest(candidates []fonts.Record, weight fonts.Weight, style fonts.Style) fonts.Record {
	if weight == 0 {
		weight = fonts.WeightNormal
	}
	best := candidates[0]
	bestScore := score(best, weight, style)
	for _, rec := range candidates[1:] {
		if s := score(rec, weight, style); s < bestScore {
			best, bestScore = rec, s
		}
	}
	return best
}

// score 越小越匹配：样式不符的代价大于任何字重差。
func score(rec fonts.Record, weight fonts.Weight, style fonts.Style) int {
	recStyle := rec.Style
	if recStyle == "" {
		recStyle = fonts.StyleNormal
	}
	recWeight := rec.Weight
	if recWeight == 0 {
		recWeight = fonts.WeightNormal
	}
	s := int(recWeight - weight)
	if s < 0 {
		s = -s
	}
	if recStyle != style {
		s += 1000
	}
	return s
}
