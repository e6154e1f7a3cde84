// Package preset ships the built-in presets: Mini, a small utility set that
// exercises every engine feature, and Declarative, which builds a preset
// from plain data such as a YAML config section.
package preset

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/yacobolo/atomcss/internal/core"
	"github.com/yacobolo/atomcss/internal/preflight"
)

// Dark mode strategies for the dark: variant.
const (
	DarkClass = "class"
	DarkMedia = "media"
)

// MiniOptions tunes the Mini preset.
type MiniOptions struct {
	// DarkMode is DarkClass (default) or DarkMedia.
	DarkMode string
	// Prefix is back-filled onto every rule of the preset.
	Prefix string
	// NoPreflight drops the box-sizing reset.
	NoPreflight bool
}

// MiniTheme is the theme Mini starts from. User themes merge over it.
func MiniTheme() core.Theme {
	return core.Theme{
		"colors": map[string]any{
			"white": "#fff",
			"black": "#000",
			"red":   map[string]any{"DEFAULT": "#ef4444", "100": "#fee2e2", "500": "#ef4444", "900": "#7f1d1d"},
			"green": map[string]any{"DEFAULT": "#22c55e", "100": "#dcfce7", "500": "#22c55e", "900": "#14532d"},
			"blue":  map[string]any{"DEFAULT": "#3b82f6", "100": "#dbeafe", "500": "#3b82f6", "900": "#1e3a8a"},
			"gray":  map[string]any{"DEFAULT": "#6b7280", "100": "#f3f4f6", "500": "#6b7280", "900": "#111827"},
		},
		"fontSize": map[string]any{
			"xs":   "0.75rem",
			"sm":   "0.875rem",
			"base": "1rem",
			"lg":   "1.125rem",
			"xl":   "1.25rem",
		},
		"breakpoints": map[string]any{
			"sm": "640px",
			"md": "768px",
			"lg": "1024px",
			"xl": "1280px",
		},
		"spacing": map[string]any{},
	}
}

// Mini returns the built-in utility preset.
func Mini(opts MiniOptions) *core.Preset {
	p := &core.Preset{
		Name: "mini",
		ConfigBase: core.ConfigBase{
			Theme:    MiniTheme(),
			Rules:    miniRules(),
			Variants: miniVariants(cmp.Or(opts.DarkMode, DarkClass)),
		},
	}
	if opts.Prefix != "" {
		p.Prefix = []string{opts.Prefix}
	}
	if !opts.NoPreflight {
		p.Preflights = []*core.Preflight{
			preflight.Static(core.LayerPreflights, "*,::before,::after{box-sizing:border-box;border-width:0;border-style:solid;}"),
		}
	}
	return p
}

var sides = map[string][]string{
	"":  {""},
	"x": {"-left", "-right"},
	"y": {"-top", "-bottom"},
	"t": {"-top"},
	"r": {"-right"},
	"b": {"-bottom"},
	"l": {"-left"},
}

func miniRules() []*core.Rule {
	return []*core.Rule{
		core.StaticRule("block", core.E("display", "block")),
		core.StaticRule("inline-block", core.E("display", "inline-block")),
		core.StaticRule("flex", core.E("display", "flex")),
		core.StaticRule("hidden", core.E("display", "none")),
		core.StaticRule("sr-only", core.CSSObject{
			"position": "absolute",
			"width":    "1px",
			"height":   "1px",
			"overflow": "hidden",
		}),
		{Static: "container", Handler: container},

		core.DynamicRule(`^(m|p)([xytrbl])?-(.+)$`, spacing),
		core.DynamicRule(`^text-(.+)$`, colorRule("color")),
		core.DynamicRule(`^text-(.+)$`, fontSize),
		core.DynamicRule(`^bg-(.+)$`, colorRule("background-color")),
	}
}

func spacing(_ context.Context, m []string, rc *core.RuleContext) (core.CSSValue, error) {
	prop := map[string]string{"m": "margin", "p": "padding"}[m[1]]
	value, ok := spacingValue(rc.Theme, m[3], prop == "margin")
	if !ok {
		return nil, nil
	}
	entries := make(core.CSSEntries, 0, 2)
	for _, side := range sides[m[2]] {
		entries = append(entries, core.CSSEntry{Prop: prop + side, Value: value})
	}
	return entries, nil
}

func spacingValue(theme core.Theme, raw string, allowAuto bool) (string, bool) {
	if v, ok := arbitrary(raw); ok {
		return v, true
	}
	if v, ok := theme.String("spacing." + raw); ok {
		return v, true
	}
	switch raw {
	case "px":
		return "1px", true
	case "0":
		return "0", true
	case "auto":
		return "auto", allowAuto
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || n < 0 {
		return "", false
	}
	return strconv.FormatFloat(n*0.25, 'f', -1, 64) + "rem", true
}

// arbitrary unwraps bracket values such as [10px] or [1px_solid_red].
func arbitrary(raw string) (string, bool) {
	if len(raw) < 3 || raw[0] != '[' || raw[len(raw)-1] != ']' {
		return "", false
	}
	return strings.ReplaceAll(raw[1:len(raw)-1], "_", " "), true
}

func colorRule(prop string) core.RuleHandler {
	return func(_ context.Context, m []string, rc *core.RuleContext) (core.CSSValue, error) {
		color, ok := colorValue(rc.Theme, m[1])
		if !ok {
			return nil, nil
		}
		return core.E(prop, color), nil
	}
}

// colorValue resolves "red-500" to colors.red.500 and "red" to its
// DEFAULT shade.
func colorValue(theme core.Theme, name string) (string, bool) {
	if v, ok := arbitrary(name); ok {
		return v, true
	}
	path := "colors." + strings.ReplaceAll(name, "-", ".")
	if v, ok := theme.String(path); ok {
		return v, true
	}
	return theme.String(path + ".DEFAULT")
}

func fontSize(_ context.Context, m []string, rc *core.RuleContext) (core.CSSValue, error) {
	size, ok := rc.Theme.String("fontSize." + m[1])
	if !ok {
		return nil, nil
	}
	return core.E("font-size", size), nil
}

// container emits a full-width base plus one max-width block per
// breakpoint.
func container(_ context.Context, _ []string, rc *core.RuleContext) (core.CSSValue, error) {
	out := core.CSSList{core.E("width", "100%")}
	for _, bp := range breakpoints(rc.Theme) {
		block := rc.ConstructCSS(core.E("max-width", bp.width), "")
		if block == "" {
			continue
		}
		out = append(out, core.RawCSS(bp.media()+"{"+block+"}"))
	}
	return out, nil
}

type breakpoint struct {
	name  string
	width string
	px    float64
}

func (b breakpoint) media() string {
	return "@media (min-width: " + b.width + ")"
}

// breakpoints returns the theme breakpoints ordered by width.
func breakpoints(theme core.Theme) []breakpoint {
	var out []breakpoint
	for name, v := range theme.Map("breakpoints") {
		width, ok := v.(string)
		if !ok {
			continue
		}
		px, _ := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSuffix(width, "px"), "rem"), 64)
		if strings.HasSuffix(width, "rem") {
			px *= 16
		}
		out = append(out, breakpoint{name: name, width: width, px: px})
	}
	slices.SortFunc(out, func(a, b breakpoint) int {
		return cmp.Or(cmp.Compare(a.px, b.px), strings.Compare(a.name, b.name))
	})
	return out
}

var pseudoClasses = []string{"hover", "focus", "active", "disabled", "first", "last", "visited"}

func pseudoSelector(name string) string {
	switch name {
	case "first":
		return ":first-child"
	case "last":
		return ":last-child"
	default:
		return ":" + name
	}
}

func miniVariants(darkMode string) []*core.Variant {
	variants := []*core.Variant{
		{Name: "important", Match: important},
		{Name: "breakpoints", Match: breakpointVariant},
		{Name: "dark", Match: darkVariant(darkMode)},
		{Name: "group-hover", Match: prefixed("group-hover", func(s string) string { return ".group:hover " + s })},
	}
	for _, name := range pseudoClasses {
		pseudo := pseudoSelector(name)
		variants = append(variants, &core.Variant{
			Name:  name,
			Match: prefixed(name, func(s string) string { return s + pseudo }),
		})
	}
	return variants
}

// cutVariant strips name followed by any configured separator.
func cutVariant(token, name string, separators []string) (string, bool) {
	for _, sep := range separators {
		if rest, ok := strings.CutPrefix(token, name+sep); ok && rest != "" {
			return rest, true
		}
	}
	return "", false
}

func prefixed(name string, selector func(string) string) core.VariantMatchFunc {
	return func(_ context.Context, token string, vc *core.VariantContext) ([]*core.VariantHandler, error) {
		rest, ok := cutVariant(token, name, vc.Separators)
		if !ok {
			return nil, nil
		}
		return []*core.VariantHandler{{
			Matcher:  rest,
			Selector: func(s string, _ core.CSSEntries) string { return selector(s) },
		}}, nil
	}
}

func important(_ context.Context, token string, _ *core.VariantContext) ([]*core.VariantHandler, error) {
	rest, ok := strings.CutPrefix(token, "!")
	if !ok || rest == "" {
		return nil, nil
	}
	return []*core.VariantHandler{{
		Matcher: rest,
		Body: func(entries core.CSSEntries) core.CSSEntries {
			out := make(core.CSSEntries, len(entries))
			for i, e := range entries {
				if !strings.HasSuffix(e.Value, "!important") {
					e.Value += " !important"
				}
				out[i] = e
			}
			return out
		},
	}}, nil
}

func breakpointVariant(_ context.Context, token string, vc *core.VariantContext) ([]*core.VariantHandler, error) {
	for i, bp := range breakpoints(vc.Theme) {
		if rest, ok := cutVariant(token, bp.name, vc.Separators); ok {
			return []*core.VariantHandler{{
				Matcher:     rest,
				Parent:      bp.media(),
				ParentOrder: i + 1,
			}}, nil
		}
	}
	return nil, nil
}

func darkVariant(mode string) core.VariantMatchFunc {
	if mode == DarkMedia {
		return func(_ context.Context, token string, vc *core.VariantContext) ([]*core.VariantHandler, error) {
			rest, ok := cutVariant(token, "dark", vc.Separators)
			if !ok {
				return nil, nil
			}
			return []*core.VariantHandler{{Matcher: rest, Parent: "@media (prefers-color-scheme: dark)"}}, nil
		}
	}
	return prefixed("dark", func(s string) string { return ".dark " + s })
}
