package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// parseUtil matches the stripped token of vr against the rules. Static rules
// are looked up first; dynamic rules are tried in match order and the first
// rule producing CSS wins. A nil result means no rule matched.
//
// shortcutPrefix is set when the token comes from a prefixed shortcut: the
// pieces are already unprefixed, so a prefixed rule only needs to share one
// prefix with the shortcut.
func (p *pass) parseUtil(ctx context.Context, vr VariantMatchedResult, rc *RuleContext, internal bool, shortcutPrefix []string) ([]ParsedUtil, error) {
	raw, current := vr.Raw, vr.Current

	if r, ok := p.cfg.RulesStaticMap[current]; ok && (internal || !r.meta().Internal) {
		units, err := normalizeCSSValue(r.CSS)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Static, err)
		}
		if len(units) > 0 {
			p.activate(r)
			rc.recordRule(r)
			return p.toParsed(p.cfg.RuleIndex(r), raw, units, r.meta(), vr.Handlers), nil
		}
	}

	for _, cr := range p.cfg.dynamic {
		meta := cr.rule.meta()
		if meta.Internal && !internal {
			continue
		}
		unprefixed := current
		if len(meta.Prefix) > 0 {
			if len(shortcutPrefix) > 0 {
				if !slices.ContainsFunc(meta.Prefix, func(pf string) bool { return slices.Contains(shortcutPrefix, pf) }) {
					continue
				}
			} else {
				pf, ok := matchPrefix(current, meta.Prefix)
				if !ok {
					continue
				}
				unprefixed = current[len(pf):]
			}
		}

		match := cr.pattern.FindStringSubmatch(unprefixed)
		if match == nil {
			continue
		}
		value, err := cr.rule.Handler(ctx, match, rc)
		if err != nil {
			return nil, fmt.Errorf("rule %s on %q: %w", cr.rule.Name(), raw, err)
		}
		units, err := normalizeCSSValue(value)
		if err != nil {
			return nil, fmt.Errorf("rule %s on %q: %w", cr.rule.Name(), raw, err)
		}
		if len(units) == 0 {
			continue
		}
		p.activate(cr.rule)
		rc.recordRule(cr.rule)
		return p.toParsed(cr.index, raw, units, meta, vr.Handlers), nil
	}
	return nil, nil
}

// toParsed turns normalized blocks into parsed utilities, folding any
// RuleOutput controls into the handler chain and meta.
func (p *pass) toParsed(index int, raw string, units []cssUnit, meta *RuleMeta, handlers []*VariantHandler) []ParsedUtil {
	out := make([]ParsedUtil, 0, len(units))
	for _, u := range units {
		if u.isRaw {
			out = append(out, ParsedUtil{Index: index, Raw: raw, Meta: meta, IsRaw: true, RawCSS: u.raw})
			continue
		}
		if u.out == nil {
			out = append(out, ParsedUtil{Index: index, Raw: raw, Entries: u.entries, Meta: meta, Handlers: handlers})
			continue
		}

		o := u.out
		hs := slices.Clone(handlers)
		if o.VariantsFunc != nil {
			hs = o.VariantsFunc(hs)
		}
		var extra []*VariantHandler
		extra = append(extra, o.Variants...)
		if o.Parent != "" {
			extra = append(extra, &VariantHandler{Parent: o.Parent})
		}
		if o.Selector != nil {
			rewrite := o.Selector
			extra = append(extra, &VariantHandler{Selector: func(s string, _ CSSEntries) string { return rewrite(s) }})
		}
		hs = append(extra, hs...)

		m := meta
		if o.Layer != "" || o.Sort != 0 || o.NoMerge {
			m = meta.clone()
			if o.Layer != "" {
				m.Layer = o.Layer
			}
			if o.Sort != 0 {
				m.Sort = o.Sort
			}
			m.NoMerge = m.NoMerge || o.NoMerge
		}
		out = append(out, ParsedUtil{Index: index, Raw: raw, Entries: u.entries, Meta: m, Handlers: hs})
	}
	return out
}

// matchPrefix returns the first prefix s starts with.
func matchPrefix(s string, prefixes []string) (string, bool) {
	for _, pf := range prefixes {
		if strings.HasPrefix(s, pf) {
			return pf, true
		}
	}
	return "", false
}
