package layout

import (
	"strconv"
	"strings"
)

// This file defines unit-safe types and helpers for length and line-height.

// Unit represents the original unit of a length value as specified in markup.
type Unit int

const (
	UnitNone    Unit = iota // unit-less numbers, treated as px for lengths
	UnitPX                  // CSS pixels
	UnitPT                  // points
	UnitEM                  // relative to the current font size
	UnitPercent             // relative to the containing block
)

// Conversion constants between px, pt and mm (CSS reference: 96px = 1in).
const (
	PxToPt = 0.75
	PtToPx = 1.0 / PxToPt
	PxToMm = 25.4 / 96
	MmToPx = 1.0 / PxToMm
)

// UnitToString returns a short string for a Unit value.
func UnitToString(u Unit) string {
	switch u {
	case UnitPX:
		return "px"
	case UnitPT:
		return "pt"
	case UnitEM:
		return "em"
	case UnitPercent:
		return "%"
	default:
		return ""
	}
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

func (l Length) IsZero() bool { return l.Value == 0 }

// Resolve converts the length to px. fontSize resolves em, reference resolves %.
// A percentage against an unknown (<=0) reference is unresolvable.
func (l Length) Resolve(fontSize, reference float64) (float64, bool) {
	switch l.Unit {
	case UnitNone, UnitPX:
		return l.Value, true
	case UnitPT:
		return l.Value * PtToPx, true
	case UnitEM:
		return l.Value * fontSize, true
	case UnitPercent:
		if reference <= 0 {
			return 0, false
		}
		return reference * l.Value / 100, true
	default:
		return l.Value, true
	}
}

// ParseLength parses a markup length such as "12", "12px", "9pt", "1.5em" or "50%".
// "auto" and empty strings report ok=false.
func ParseLength(value string) (Length, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || v == "auto" {
		return Length{}, false
	}
	unit := UnitNone
	num := v
	for _, suf := range []struct {
		s string
		u Unit
	}{{"px", UnitPX}, {"pt", UnitPT}, {"em", UnitEM}, {"%", UnitPercent}} {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{}, false
	}
	return Length{Value: f, Unit: unit}, true
}

// LineHeightKind distinguishes factor-based vs absolute line-height specification.
type LineHeightKind int

const (
	LineHeightFactor LineHeightKind = iota
	LineHeightAbsolute
)

// LineHeightSpec preserves original author intent: either a factor (e.g., 1.2) or an absolute length (e.g., 18px).
type LineHeightSpec struct {
	Kind   LineHeightKind `json:"kind"`
	Factor float64        `json:"factor,omitempty"`
	Len    Length         `json:"len,omitempty"`
}

// defaultLineHeight matches the "normal" line-height of most UI fonts.
var defaultLineHeight = LineHeightSpec{Kind: LineHeightFactor, Factor: 1.2}

// ParseLineHeight parses "normal", a bare factor ("1.4", "1.4x") or an absolute length ("18px").
// A bare number is a factor, following CSS.
func ParseLineHeight(value string) (LineHeightSpec, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || v == "normal" {
		return defaultLineHeight, v == "normal"
	}
	if f, err := strconv.ParseFloat(strings.TrimSuffix(v, "x"), 64); err == nil {
		if f <= 0 {
			return defaultLineHeight, false
		}
		return LineHeightSpec{Kind: LineHeightFactor, Factor: f}, true
	}
	l, ok := ParseLength(v)
	if !ok || l.Value <= 0 {
		return defaultLineHeight, false
	}
	if l.Unit == UnitPercent {
		return LineHeightSpec{Kind: LineHeightFactor, Factor: l.Value / 100}, true
	}
	return LineHeightSpec{Kind: LineHeightAbsolute, Len: l}, true
}

// Resolve computes the absolute line height in px for the given font size in px.
func (s LineHeightSpec) Resolve(fontSize float64) float64 {
	switch s.Kind {
	case LineHeightFactor:
		return fontSize * s.Factor
	case LineHeightAbsolute:
		px, _ := s.Len.Resolve(fontSize, 0)
		return px
	default:
		return fontSize * defaultLineHeight.Factor
	}
}
