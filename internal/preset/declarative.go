package preset

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yacobolo/atomcss/internal/core"
)

// RuleSpec declares a rule as data. Exactly one of Name or Pattern is set.
// CSS values of pattern rules may reference submatches as $1 or ${1}.
type RuleSpec struct {
	Name    string            `koanf:"name"`
	Pattern string            `koanf:"pattern"`
	CSS     map[string]string `koanf:"css"`
	Layer   string            `koanf:"layer"`
	Sort    int               `koanf:"sort"`
	NoMerge bool              `koanf:"no-merge"`
}

// ShortcutSpec declares a shortcut as data. Expand may reference
// submatches of Pattern the same way rule templates do.
type ShortcutSpec struct {
	Name    string `koanf:"name"`
	Pattern string `koanf:"pattern"`
	Expand  string `koanf:"expand"`
	Layer   string `koanf:"layer"`
}

// VariantSpec declares a prefix variant. Selector is a template where &
// stands for the current selector; Parent wraps the rule in an at-rule.
type VariantSpec struct {
	Prefix      string `koanf:"prefix"`
	Selector    string `koanf:"selector"`
	Parent      string `koanf:"parent"`
	ParentOrder int    `koanf:"parent-order"`
	Layer       string `koanf:"layer"`
	Order       int    `koanf:"order"`
}

// DeclarativeSpec is the data form of a preset.
type DeclarativeSpec struct {
	Name      string         `koanf:"name"`
	Prefix    string         `koanf:"prefix"`
	Layer     string         `koanf:"layer"`
	Rules     []RuleSpec     `koanf:"rules"`
	Shortcuts []ShortcutSpec `koanf:"shortcuts"`
	Variants  []VariantSpec  `koanf:"variants"`
	Theme     map[string]any `koanf:"theme"`
	Layers    map[string]int `koanf:"layers"`
}

// Declarative builds a preset from spec. Patterns are compiled eagerly so
// a bad config fails before any generation.
func Declarative(spec DeclarativeSpec) (*core.Preset, error) {
	p := &core.Preset{
		Name:  spec.Name,
		Layer: spec.Layer,
		ConfigBase: core.ConfigBase{
			Theme:  core.Theme(spec.Theme),
			Layers: spec.Layers,
		},
	}
	if spec.Prefix != "" {
		p.Prefix = []string{spec.Prefix}
	}

	for i, rs := range spec.Rules {
		r, err := ruleFromSpec(rs)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		p.Rules = append(p.Rules, r)
	}
	for i, ss := range spec.Shortcuts {
		s, err := shortcutFromSpec(ss)
		if err != nil {
			return nil, fmt.Errorf("shortcut %d: %w", i, err)
		}
		p.Shortcuts = append(p.Shortcuts, s)
	}
	for i, vs := range spec.Variants {
		if vs.Prefix == "" {
			return nil, fmt.Errorf("variant %d: prefix is required", i)
		}
		p.Variants = append(p.Variants, variantFromSpec(vs))
	}
	return p, nil
}

func metaOf(layer string, sort int, noMerge bool) *core.RuleMeta {
	if layer == "" && sort == 0 && !noMerge {
		return nil
	}
	return &core.RuleMeta{Layer: layer, Sort: sort, NoMerge: noMerge}
}

func ruleFromSpec(rs RuleSpec) (*core.Rule, error) {
	if len(rs.CSS) == 0 {
		return nil, fmt.Errorf("%s%s: css is empty", rs.Name, rs.Pattern)
	}
	meta := metaOf(rs.Layer, rs.Sort, rs.NoMerge)
	switch {
	case rs.Name != "" && rs.Pattern != "":
		return nil, fmt.Errorf("%s: name and pattern are exclusive", rs.Name)
	case rs.Name != "":
		return &core.Rule{Static: rs.Name, CSS: core.CSSObject(rs.CSS), Meta: meta}, nil
	case rs.Pattern != "":
		re, err := regexp.Compile(rs.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", rs.Pattern, err)
		}
		css := rs.CSS
		return &core.Rule{
			Pattern: re,
			Meta:    meta,
			Handler: func(_ context.Context, m []string, _ *core.RuleContext) (core.CSSValue, error) {
				obj := make(core.CSSObject, len(css))
				for prop, tmpl := range css {
					obj[prop] = expandTemplate(tmpl, m)
				}
				return obj, nil
			},
		}, nil
	default:
		return nil, fmt.Errorf("name or pattern is required")
	}
}

func shortcutFromSpec(ss ShortcutSpec) (*core.Shortcut, error) {
	if strings.TrimSpace(ss.Expand) == "" {
		return nil, fmt.Errorf("%s%s: expand is empty", ss.Name, ss.Pattern)
	}
	meta := metaOf(ss.Layer, 0, false)
	switch {
	case ss.Name != "" && ss.Pattern != "":
		return nil, fmt.Errorf("%s: name and pattern are exclusive", ss.Name)
	case ss.Name != "":
		return &core.Shortcut{Static: ss.Name, Expansion: core.Expand(ss.Expand), Meta: meta}, nil
	case ss.Pattern != "":
		re, err := regexp.Compile(ss.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", ss.Pattern, err)
		}
		expand := ss.Expand
		return &core.Shortcut{
			Pattern: re,
			Meta:    meta,
			Handler: func(_ context.Context, m []string, _ *core.RuleContext) (core.ShortcutExpansion, error) {
				return core.Expand(expandTemplate(expand, m)), nil
			},
		}, nil
	default:
		return nil, fmt.Errorf("name or pattern is required")
	}
}

func variantFromSpec(vs VariantSpec) *core.Variant {
	return &core.Variant{
		Name:  vs.Prefix,
		Order: vs.Order,
		Match: func(_ context.Context, token string, vc *core.VariantContext) ([]*core.VariantHandler, error) {
			rest, ok := cutVariant(token, vs.Prefix, vc.Separators)
			if !ok {
				return nil, nil
			}
			h := &core.VariantHandler{
				Matcher:     rest,
				Order:       vs.Order,
				Parent:      vs.Parent,
				ParentOrder: vs.ParentOrder,
				Layer:       vs.Layer,
			}
			if vs.Selector != "" {
				tmpl := vs.Selector
				h.Selector = func(s string, _ core.CSSEntries) string {
					return strings.ReplaceAll(tmpl, "&", s)
				}
			}
			return []*core.VariantHandler{h}, nil
		},
	}
}

var templateRef = regexp.MustCompile(`\$\{(\d+)\}|\$(\d)`)

// expandTemplate substitutes $N and ${N} with submatch N. Out of range
// references expand to nothing.
func expandTemplate(tmpl string, match []string) string {
	return templateRef.ReplaceAllStringFunc(tmpl, func(ref string) string {
		sub := templateRef.FindStringSubmatch(ref)
		n, err := strconv.Atoi(sub[1] + sub[2])
		if err != nil || n >= len(match) {
			return ""
		}
		return match[n]
	})
}
