package canvasrenderer

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/flopp/go-findfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"

	"github.com/ByLCY/html2img/fonts"
	"github.com/ByLCY/html2img/options"
)

// dbFont 是光栅字体库中的一个字形来源。
type dbFont struct {
	family string
	weight fonts.Weight
	italic bool
	font   *sfnt.Font
	source string
}

// fontDB 是单次光栅调用的字体库：SVG 内嵌字体优先，其次是 FontFiles，最后是系统字体。
type fontDB struct {
	fonts   []*dbFont
	generic map[string]string
	def     string
	logger  *log.Logger
	buf     sfnt.Buffer
}

func newFontDB(opts options.FontOptions, cache *faceCache, logger *log.Logger) (*fontDB, error) {
	db := &fontDB{
		generic: map[string]string{
			"serif":      opts.SerifFamily,
			"sans-serif": opts.SansSerifFamily,
			"cursive":    opts.CursiveFamily,
			"fantasy":    opts.FantasyFamily,
			"monospace":  opts.MonospaceFamily,
		},
		def:    opts.DefaultFamily,
		logger: logger,
	}
	for _, path := range opts.FontFiles {
		faces, err := cache.load(path)
		if err != nil {
			return nil, err
		}
		db.addFaces(faces, path, "")
	}
	if opts.LoadSystemFonts {
		db.addSystem(cache)
	}
	logger.Debug("font database ready", "fonts", len(db.fonts), "system", opts.LoadSystemFonts)
	return db, nil
}

// add 解析字体或字体集合；family 非空时覆盖字体自带的家族名。
func (db *fontDB) add(data []byte, source, family string) error {
	faces, err := parseFaces(data, source)
	if err != nil {
		return err
	}
	db.addFaces(faces, source, family)
	return nil
}

func (db *fontDB) addFaces(faces []*sfnt.Font, source, family string) {
	for _, f := range faces {
		entry := db.describe(f, source)
		if family != "" {
			entry.family = family
		}
		db.fonts = append(db.fonts, entry)
	}
}

func (db *fontDB) describe(f *sfnt.Font, source string) *dbFont {
	family, err := f.Name(&db.buf, sfnt.NameIDTypographicFamily)
	if err != nil || family == "" {
		family, _ = f.Name(&db.buf, sfnt.NameIDFamily)
	}
	sub, err := f.Name(&db.buf, sfnt.NameIDTypographicSubfamily)
	if err != nil || sub == "" {
		sub, _ = f.Name(&db.buf, sfnt.NameIDSubfamily)
	}
	weight, italic := parseSubfamily(sub)
	return &dbFont{family: family, weight: weight, italic: italic, font: f, source: source}
}

// addSystem 扫描系统字体目录，无法解析的文件只记录日志。
func (db *fontDB) addSystem(cache *faceCache) {
	for _, path := range findfont.List() {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".ttf", ".otf", ".ttc":
		default:
			continue
		}
		faces, err := cache.load(path)
		if err != nil {
			db.logger.Debug("skip system font", "path", path, "err", err)
			continue
		}
		db.addFaces(faces, path, "")
	}
}

var (
	fontFaceRule   = regexp.MustCompile(`@font-face\s*\{([^}]*)\}`)
	fontFaceFamily = regexp.MustCompile(`font-family\s*:\s*['"]?([^;'"]+)`)
	fontFaceWeight = regexp.MustCompile(`font-weight\s*:\s*([a-z0-9]+)`)
	fontFaceStyle  = regexp.MustCompile(`font-style\s*:\s*([a-z]+)`)
	fontFaceData   = regexp.MustCompile(`url\(\s*['"]?data:[^;,]*;base64,([A-Za-z0-9+/=\s]+)`)
)

// addEmbedded 读取 SVG 中以 data URI 内嵌的 @font-face，返回成功加载的数量。
// 内嵌字体放在字体库最前面，使同名家族优先匹配到文档自带的字形。
func (db *fontDB) addEmbedded(doc []byte) int {
	var embedded []*dbFont
	for _, m := range fontFaceRule.FindAllSubmatch(doc, -1) {
		rule := m[1]
		fam := fontFaceFamily.FindSubmatch(rule)
		src := fontFaceData.FindSubmatch(rule)
		if fam == nil || src == nil {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(string(src[1])), ""))
		if err != nil {
			db.logger.Debug("skip embedded font", "family", string(fam[1]), "err", err)
			continue
		}
		f, err := sfnt.Parse(data)
		if err != nil {
			db.logger.Debug("skip embedded font", "family", string(fam[1]), "err", err)
			continue
		}
		entry := &dbFont{family: strings.TrimSpace(string(fam[1])), weight: fonts.WeightNormal, font: f, source: "embedded"}
		if w := fontFaceWeight.FindSubmatch(rule); w != nil {
			entry.weight = parseCSSWeight(string(w[1]))
		}
		if s := fontFaceStyle.FindSubmatch(rule); s != nil {
			entry.italic = string(s[1]) == "italic" || string(s[1]) == "oblique"
		}
		embedded = append(embedded, entry)
	}
	db.fonts = append(embedded, db.fonts...)
	return len(embedded)
}

// match 依次尝试 font-family 列表、通用家族映射、默认家族，最后退回库中首个字体或内置字体。
func (db *fontDB) match(families []string, weight fonts.Weight, italic bool) (*dbFont, error) {
	for _, family := range families {
		name := family
		if mapped, ok := db.generic[strings.ToLower(family)]; ok {
			if mapped == "" {
				continue
			}
			name = mapped
		}
		if f := db.closest(name, weight, italic); f != nil {
			return f, nil
		}
	}
	if db.def != "" {
		if f := db.closest(db.def, weight, italic); f != nil {
			return f, nil
		}
	}
	if len(db.fonts) > 0 {
		return db.fonts[0], nil
	}
	f, err := sfnt.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	fallback := &dbFont{family: fonts.FallbackName, weight: fonts.WeightNormal, font: f, source: "builtin"}
	db.fonts = append(db.fonts, fallback)
	return fallback, nil
}

func (db *fontDB) closest(family string, weight fonts.Weight, italic bool) *dbFont {
	var best *dbFont
	bestScore := 0
	for _, f := range db.fonts {
		if !strings.EqualFold(f.family, family) {
			continue
		}
		score := int(f.weight - weight)
		if score < 0 {
			score = -score
		}
		if f.italic != italic {
			score += 1000
		}
		if best == nil || score < bestScore {
			best, bestScore = f, score
		}
	}
	return best
}

// parseSubfamily 从 "Bold Italic" 一类的子家族名推断字重与斜体。
func parseSubfamily(sub string) (fonts.Weight, bool) {
	s := strings.ToLower(strings.ReplaceAll(sub, " ", ""))
	italic := strings.Contains(s, "italic") || strings.Contains(s, "oblique")
	switch {
	case strings.Contains(s, "thin") || strings.Contains(s, "hairline"):
		return fonts.WeightThin, italic
	case strings.Contains(s, "extralight") || strings.Contains(s, "ultralight"):
		return fonts.WeightExtraLight, italic
	case strings.Contains(s, "semibold") || strings.Contains(s, "demibold"):
		return fonts.WeightSemiBold, italic
	case strings.Contains(s, "extrabold") || strings.Contains(s, "ultrabold"):
		return fonts.WeightExtraBold, italic
	case strings.Contains(s, "black") || strings.Contains(s, "heavy"):
		return fonts.WeightBlack, italic
	case strings.Contains(s, "light"):
		return fonts.WeightLight, italic
	case strings.Contains(s, "medium"):
		return fonts.WeightMedium, italic
	case strings.Contains(s, "bold"):
		return fonts.WeightBold, italic
	default:
		return fonts.WeightNormal, italic
	}
}

// parseCSSWeight 解析 font-weight 的数值或关键字。
func parseCSSWeight(v string) fonts.Weight {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "bold", "bolder":
		return fonts.WeightBold
	case "lighter":
		return fonts.WeightLight
	case "", "normal":
		return fonts.WeightNormal
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n >= 100 && n <= 900 {
		return fonts.Weight(n / 100 * 100)
	}
	return fonts.WeightNormal
}
