package core

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"slices"
)

// ResolveConfig merges defaults, user config and every preset into a single
// immutable ResolvedConfig. Presets are flattened depth-first, de-duplicated
// by name, and ordered pre, default, post; the user config is merged last so
// it wins ties.
func ResolveConfig(ctx context.Context, user, defaults UserConfig) (*ResolvedConfig, error) {
	cfg := mergeUserConfig(defaults, user)

	var presets []*Preset
	for _, src := range cfg.Presets {
		flat, err := flattenPreset(ctx, src)
		if err != nil {
			return nil, err
		}
		presets = append(presets, flat...)
	}
	presets = uniquePresets(presets)

	sorted := make([]*Preset, 0, len(presets))
	for _, enforce := range []Enforce{EnforcePre, EnforceDefault, EnforcePost} {
		for _, p := range presets {
			if p.Enforce == enforce {
				sorted = append(sorted, p)
			}
		}
	}

	sources := make([]*ConfigBase, 0, len(sorted)+1)
	for _, p := range sorted {
		sources = append(sources, presetBase(p))
	}
	sources = append(sources, &cfg.ConfigBase)

	resolved := &ResolvedConfig{
		Presets:        sorted,
		EnvMode:        cmp.Or(cfg.EnvMode, "build"),
		Warn:           boolOr(cfg.Warn, true),
		MergeSelectors: boolOr(cfg.MergeSelectors, true),
		ShortcutsLayer: cmp.Or(cfg.ShortcutsLayer, LayerShortcuts),
		SortLayers:     cfg.SortLayers,
		Logger:         cfg.Logger,
	}
	resolved.Details = boolOr(cfg.Details, resolved.EnvMode == "dev")
	if resolved.Logger == nil {
		resolved.Logger = slog.Default()
	}
	if cfg.OutputToCSSLayers != nil {
		resolved.OutputToCSSLayers = cfg.OutputToCSSLayers
	}

	resolved.Layers = maps.Clone(DefaultLayers)
	for _, s := range sources {
		maps.Copy(resolved.Layers, s.Layers)
	}

	resolved.Extractors = resolveExtractors(sources)

	if err := resolveRules(resolved, mergeUnique(sources, func(s *ConfigBase) []*Rule { return s.Rules })); err != nil {
		return nil, err
	}
	if err := resolveShortcuts(resolved, mergeUnique(sources, func(s *ConfigBase) []*Shortcut { return s.Shortcuts })); err != nil {
		return nil, err
	}

	resolved.Variants = mergeUnique(sources, func(s *ConfigBase) []*Variant { return s.Variants })
	slices.SortStableFunc(resolved.Variants, func(a, b *Variant) int { return cmp.Compare(a.Order, b.Order) })

	resolved.Preflights = mergeUnique(sources, func(s *ConfigBase) []*Preflight { return s.Preflights })
	resolved.Safelist = mergeUnique(sources, func(s *ConfigBase) []string { return s.Safelist })
	resolved.SafelistFuncs = mergeAll(sources, func(s *ConfigBase) []SafelistFunc { return s.SafelistFuncs })
	resolved.Blocklist = mergeUnique(sources, func(s *ConfigBase) []*BlocklistRule { return s.Blocklist })
	resolved.Preprocess = mergeAll(sources, func(s *ConfigBase) []Preprocessor { return s.Preprocess })
	resolved.Postprocess = mergeAll(sources, func(s *ConfigBase) []Postprocessor { return s.Postprocess })
	resolved.Transformers = uniqueTransformers(mergeUnique(sources, func(s *ConfigBase) []*Transformer { return s.Transformers }))

	resolved.Separators = mergeUnique(sources, func(s *ConfigBase) []string { return s.Separators })
	if len(resolved.Separators) == 0 {
		resolved.Separators = []string{":", "-"}
	}
	resolved.variantGroup = variantGroupPattern(resolved.Separators)

	for _, s := range sources {
		resolved.Content.Filesystem = append(resolved.Content.Filesystem, s.Content.Filesystem...)
		resolved.Content.Exclude = append(resolved.Content.Exclude, s.Content.Exclude...)
		resolved.Content.Inline = append(resolved.Content.Inline, s.Content.Inline...)
	}
	resolved.Content.Filesystem = uniqueValues(resolved.Content.Filesystem)
	resolved.Content.Exclude = uniqueValues(resolved.Content.Exclude)

	theme := Theme{}
	for _, s := range sources {
		theme = MergeTheme(theme, s.Theme)
	}
	for _, extend := range mergeAll(sources, func(s *ConfigBase) []func(Theme, *ResolvedConfig) Theme { return s.ExtendTheme }) {
		resolved.Theme = theme
		if next := extend(theme.Clone(), resolved); next != nil {
			theme = MergeTheme(Theme{}, next)
		}
	}
	resolved.Theme = theme

	for _, s := range sources {
		if s.ConfigResolved != nil {
			s.ConfigResolved(resolved)
		}
	}
	return resolved, nil
}

// mergeUserConfig lays user over defaults field by field: any field the
// user sets replaces the default wholesale.
func mergeUserConfig(defaults, user UserConfig) UserConfig {
	out := defaults
	base, ub := &out.ConfigBase, user.ConfigBase
	overrideSlice(&base.Rules, ub.Rules)
	overrideSlice(&base.Variants, ub.Variants)
	overrideSlice(&base.Shortcuts, ub.Shortcuts)
	overrideSlice(&base.Extractors, ub.Extractors)
	overrideSlice(&base.Preflights, ub.Preflights)
	overrideSlice(&base.Safelist, ub.Safelist)
	overrideSlice(&base.SafelistFuncs, ub.SafelistFuncs)
	overrideSlice(&base.Blocklist, ub.Blocklist)
	overrideSlice(&base.Preprocess, ub.Preprocess)
	overrideSlice(&base.Postprocess, ub.Postprocess)
	overrideSlice(&base.ExtendTheme, ub.ExtendTheme)
	overrideSlice(&base.Transformers, ub.Transformers)
	overrideSlice(&base.Separators, ub.Separators)
	overrideSlice(&out.Presets, user.Presets)
	if ub.Theme != nil {
		base.Theme = ub.Theme
	}
	if ub.Layers != nil {
		base.Layers = ub.Layers
	}
	if ub.ExtractorDefault != nil || ub.DisableDefaultExtractor {
		base.ExtractorDefault = ub.ExtractorDefault
		base.DisableDefaultExtractor = ub.DisableDefaultExtractor
	}
	if ub.ConfigResolved != nil {
		base.ConfigResolved = ub.ConfigResolved
	}
	if len(ub.Content.Filesystem) > 0 || len(ub.Content.Inline) > 0 || len(ub.Content.Exclude) > 0 {
		base.Content = ub.Content
	}
	out.EnvMode = cmp.Or(user.EnvMode, defaults.EnvMode)
	out.ShortcutsLayer = cmp.Or(user.ShortcutsLayer, defaults.ShortcutsLayer)
	if user.Details != nil {
		out.Details = user.Details
	}
	if user.Warn != nil {
		out.Warn = user.Warn
	}
	if user.MergeSelectors != nil {
		out.MergeSelectors = user.MergeSelectors
	}
	if user.SortLayers != nil {
		out.SortLayers = user.SortLayers
	}
	if user.OutputToCSSLayers != nil {
		out.OutputToCSSLayers = user.OutputToCSSLayers
	}
	if user.Logger != nil {
		out.Logger = user.Logger
	}
	return out
}

func overrideSlice[T any](dst *[]T, src []T) {
	if src != nil {
		*dst = src
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// flattenPreset loads src and its nested presets, root first.
func flattenPreset(ctx context.Context, src PresetSource) ([]*Preset, error) {
	if src == nil {
		return nil, nil
	}
	p, err := src.LoadPreset(ctx)
	if err != nil {
		return nil, fmt.Errorf("load preset: %w", err)
	}
	if p == nil {
		return nil, nil
	}
	out := []*Preset{p}
	for _, nested := range p.Presets {
		flat, err := flattenPreset(ctx, nested)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.Name, err)
		}
		out = append(out, flat...)
	}
	return out, nil
}

// uniquePresets drops later presets that reuse an earlier name. Unnamed
// presets are kept unless they are the same instance.
func uniquePresets(presets []*Preset) []*Preset {
	names := make(map[string]bool)
	out := make([]*Preset, 0, len(presets))
	for _, p := range presets {
		if slices.Contains(out, p) {
			continue
		}
		if p.Name != "" {
			if names[p.Name] {
				continue
			}
			names[p.Name] = true
		}
		out = append(out, p)
	}
	return out
}

// presetBase returns the preset's config with its prefix and layer
// back-filled onto rules and shortcuts. The preset itself is not modified.
func presetBase(p *Preset) *ConfigBase {
	base := p.ConfigBase
	if len(p.Prefix) == 0 && p.Layer == "" {
		return &base
	}
	fill := func(meta *RuleMeta) (*RuleMeta, bool) {
		needPrefix := len(p.Prefix) > 0 && (meta == nil || meta.Prefix == nil)
		needLayer := p.Layer != "" && (meta == nil || meta.Layer == "")
		if !needPrefix && !needLayer {
			return meta, false
		}
		m := meta.clone()
		if needPrefix {
			m.Prefix = slices.Clone(p.Prefix)
		}
		if needLayer {
			m.Layer = p.Layer
		}
		return m, true
	}
	base.Rules = make([]*Rule, len(p.Rules))
	for i, r := range p.Rules {
		base.Rules[i] = r
		if m, changed := fill(r.Meta); changed {
			c := *r
			c.Meta = m
			base.Rules[i] = &c
		}
	}
	base.Shortcuts = make([]*Shortcut, len(p.Shortcuts))
	for i, s := range p.Shortcuts {
		base.Shortcuts[i] = s
		if m, changed := fill(s.Meta); changed {
			c := *s
			c.Meta = m
			base.Shortcuts[i] = &c
		}
	}
	return &base
}

func resolveExtractors(sources []*ConfigBase) []*Extractor {
	extractors := mergeUnique(sources, func(s *ConfigBase) []*Extractor { return s.Extractors })

	defaultExtractor := SplitExtractor
	for i := len(sources) - 1; i >= 0; i-- {
		if sources[i].ExtractorDefault != nil || sources[i].DisableDefaultExtractor {
			defaultExtractor = sources[i].ExtractorDefault
			break
		}
	}
	if defaultExtractor != nil && !slices.Contains(extractors, defaultExtractor) {
		extractors = append([]*Extractor{defaultExtractor}, extractors...)
	}
	slices.SortStableFunc(extractors, func(a, b *Extractor) int { return cmp.Compare(a.Order, b.Order) })
	return extractors
}

// resolveRules splits rules into the static lookup map and the dynamic list.
// Dynamic rules are reversed so the last declared rule is tried first.
func resolveRules(c *ResolvedConfig, rules []*Rule) error {
	c.Rules = rules
	c.RulesStaticMap = make(map[string]*Rule)
	c.ruleIndex = make(map[*Rule]int, len(rules))
	for i, r := range rules {
		c.ruleIndex[r] = i
		if r.IsStatic() {
			if r.Static == "" {
				return fmt.Errorf("rule %d: static rule without token", i)
			}
			prefixes := r.meta().Prefix
			if len(prefixes) == 0 {
				prefixes = []string{""}
			}
			for _, prefix := range prefixes {
				c.RulesStaticMap[prefix+r.Static] = r
			}
			continue
		}
		if r.Handler == nil {
			return fmt.Errorf("rule %d (%s): dynamic rule without handler", i, r.Name())
		}
		pattern := r.Pattern
		if pattern == nil {
			pattern = regexp.MustCompile("^" + regexp.QuoteMeta(r.Static) + "$")
		}
		c.RulesDynamic = append(c.RulesDynamic, r)
		c.dynamic = append(c.dynamic, compiledRule{rule: r, pattern: pattern, index: i})
	}
	slices.Reverse(c.RulesDynamic)
	slices.Reverse(c.dynamic)
	return nil
}

func resolveShortcuts(c *ResolvedConfig, shortcuts []*Shortcut) error {
	for i, s := range shortcuts {
		pattern := s.Pattern
		switch {
		case pattern == nil && s.Static == "":
			return fmt.Errorf("shortcut %d: neither token nor pattern", i)
		case pattern != nil && s.Handler == nil:
			return fmt.Errorf("shortcut %d (%s): pattern without handler", i, pattern)
		case pattern == nil && s.Handler != nil:
			pattern = regexp.MustCompile("^" + regexp.QuoteMeta(s.Static) + "$")
		}
		c.Shortcuts = append(c.Shortcuts, s)
		c.shortcuts = append(c.shortcuts, compiledShortcut{shortcut: s, pattern: pattern})
	}
	slices.Reverse(c.Shortcuts)
	slices.Reverse(c.shortcuts)
	return nil
}

// mergeUnique concatenates a field across sources, dropping repeated values.
func mergeUnique[T comparable](sources []*ConfigBase, field func(*ConfigBase) []T) []T {
	var out []T
	seen := make(map[T]bool)
	for _, s := range sources {
		for _, v := range field(s) {
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// mergeAll concatenates a field of incomparable values such as funcs.
func mergeAll[T any](sources []*ConfigBase, field func(*ConfigBase) []T) []T {
	var out []T
	for _, s := range sources {
		out = append(out, field(s)...)
	}
	return out
}

func uniqueTransformers(ts []*Transformer) []*Transformer {
	names := make(map[string]bool)
	out := make([]*Transformer, 0, len(ts))
	for _, t := range ts {
		if names[t.Name] {
			continue
		}
		names[t.Name] = true
		out = append(out, t)
	}
	return out
}

func uniqueValues(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
