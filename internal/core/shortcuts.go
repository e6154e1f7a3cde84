package core

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
)

// shortcutDepth bounds nested shortcut expansion.
const shortcutDepth = 5

// maxIndex sorts inline shortcut CSS after every rule.
const maxIndex = math.MaxInt

// shortcutPiece is one leaf of an expanded shortcut: either a token still to
// be matched against rules or inline CSS.
type shortcutPiece struct {
	token    string
	inline   CSSEntries
	isInline bool
	// handlers are variant handlers reattached to inline CSS.
	handlers []*VariantHandler
}

// expandShortcut expands input into its leaf pieces. It returns nil pieces
// when input is not a shortcut or the depth budget is spent.
func (p *pass) expandShortcut(ctx context.Context, input string, rc *RuleContext, depth int) ([]shortcutPiece, *RuleMeta, error) {
	if depth <= 0 {
		return nil, nil, nil
	}

	expansion, meta, err := p.matchShortcut(ctx, input, rc)
	if err != nil {
		return nil, nil, err
	}

	if expansion == nil {
		// Not a shortcut itself; it may be one behind variants, e.g. "sm:btn".
		results, err := p.matchVariants(ctx, input, input)
		if err != nil {
			return nil, nil, err
		}
		var pieces []shortcutPiece
		for _, r := range results {
			if r.Current == input {
				continue
			}
			sub, subMeta, err := p.expandShortcut(ctx, r.Current, rc, depth-1)
			if err != nil {
				return nil, nil, err
			}
			if sub == nil {
				continue
			}
			meta = subMeta
			for _, piece := range sub {
				if piece.isInline {
					piece.handlers = append(slices.Clone(piece.handlers), r.Handlers...)
				} else {
					piece.token = strings.Replace(input, r.Current, piece.token, 1)
				}
				pieces = append(pieces, piece)
			}
		}
		if pieces == nil {
			return nil, nil, nil
		}
		return pieces, meta, nil
	}

	var items []shortcutPiece
	for _, part := range expansion {
		tokens, ok := part.(Tokens)
		if !ok {
			if entries := normalizeShortcutCSS(part); len(entries) > 0 {
				items = append(items, shortcutPiece{inline: entries, isInline: true})
			}
			continue
		}
		fields := strings.Fields(expandVariantGroup(string(tokens), p.cfg.variantGroup, variantGroupDepth))
		for _, tok := range uniqueValues(fields) {
			items = append(items, shortcutPiece{token: tok})
		}
	}

	pieces := make([]shortcutPiece, 0, len(items))
	for _, item := range items {
		if item.isInline {
			pieces = append(pieces, item)
			continue
		}
		sub, _, err := p.expandShortcut(ctx, item.token, rc, depth-1)
		if err != nil {
			return nil, nil, err
		}
		if sub == nil {
			pieces = append(pieces, item)
			continue
		}
		pieces = append(pieces, sub...)
	}
	return pieces, meta, nil
}

// matchShortcut finds the first shortcut matching input in match order.
func (p *pass) matchShortcut(ctx context.Context, input string, rc *RuleContext) (ShortcutExpansion, *RuleMeta, error) {
	for _, cs := range p.cfg.shortcuts {
		s := cs.shortcut
		meta := shortcutMeta(s)
		unprefixed := input
		if len(meta.Prefix) > 0 {
			pf, ok := matchPrefix(input, meta.Prefix)
			if !ok {
				continue
			}
			unprefixed = input[len(pf):]
		}

		var expansion ShortcutExpansion
		if s.Handler == nil {
			if unprefixed != s.Static {
				continue
			}
			expansion = s.Expansion
		} else {
			match := cs.pattern.FindStringSubmatch(unprefixed)
			if match == nil {
				continue
			}
			exp, err := s.Handler(ctx, match, rc)
			if err != nil {
				return nil, nil, fmt.Errorf("shortcut %s on %q: %w", s.Name(), input, err)
			}
			if exp == nil {
				continue
			}
			expansion = exp
		}
		rc.recordShortcut(s)
		return expansion, meta, nil
	}
	return nil, nil, nil
}

// stringifyShortcuts matches every piece of an expanded shortcut and groups
// the results by layer, selector and parent so each group renders as a
// single rule.
func (p *pass) stringifyShortcuts(ctx context.Context, parent VariantMatchedResult, rc *RuleContext, pieces []shortcutPiece, meta *RuleMeta) ([]StringifiedUtil, error) {
	if meta == nil {
		meta = &RuleMeta{}
	}
	layer := meta.Layer
	if layer == "" {
		layer = p.cfg.ShortcutsLayer
	}

	var parsed []ParsedUtil
	for _, piece := range pieces {
		if piece.isInline {
			parsed = append(parsed, ParsedUtil{
				Index:    maxIndex,
				Raw:      parent.Raw,
				Entries:  piece.inline,
				Meta:     meta,
				Handlers: piece.handlers,
			})
			continue
		}
		results, err := p.matchVariants(ctx, piece.token, piece.token)
		if err != nil {
			return nil, err
		}
		found := false
		for _, r := range results {
			utils, err := p.parseUtil(ctx, r, rc, true, meta.Prefix)
			if err != nil {
				return nil, err
			}
			if utils != nil {
				found = true
				parsed = append(parsed, utils...)
			}
		}
		if !found {
			p.warnOnce(fmt.Sprintf("unmatched utility %q in shortcut %q", piece.token, parent.Raw))
		}
	}

	slices.SortStableFunc(parsed, func(a, b ParsedUtil) int { return cmp.Compare(a.Index, b.Index) })

	type groupKey struct{ layer, selector, parent string }
	type entrySet struct {
		entries CSSEntries
		sort    int
	}
	type group struct {
		key     groupKey
		index   int
		merged  []entrySet
		noMerge []entrySet
	}
	var groups []*group
	index := make(map[groupKey]*group)
	var raws []StringifiedUtil

	for _, item := range parsed {
		if item.IsRaw {
			rawMeta := *meta.clone()
			rawMeta.Layer = layer
			raws = append(raws, StringifiedUtil{Index: item.Index, Body: item.RawCSS, Meta: rawMeta, Context: rc})
			continue
		}
		item.Raw = parent.Raw
		item.Handlers = append(slices.Clone(item.Handlers), parent.Handlers...)
		obj := p.applyVariants(item)
		if len(obj.Entries) == 0 {
			continue
		}
		itemMeta := item.Meta
		if itemMeta == nil {
			itemMeta = &RuleMeta{}
		}
		key := groupKey{layer: cmp.Or(obj.Layer, layer), selector: obj.Selector, parent: obj.Parent}
		g, ok := index[key]
		if !ok {
			// parsed is sorted, so the first item holds the lowest rule index.
			g = &group{key: key, index: item.Index}
			index[key] = g
			groups = append(groups, g)
		}
		set := entrySet{entries: obj.Entries, sort: cmp.Or(obj.Sort, itemMeta.Sort)}
		if obj.NoMerge || itemMeta.NoMerge {
			g.noMerge = append(g.noMerge, set)
		} else {
			g.merged = append(g.merged, set)
		}
	}

	var out []StringifiedUtil
	for _, g := range groups {
		emit := func(sets []entrySet, noMerge bool) {
			var entries CSSEntries
			sort := 0
			for _, set := range sets {
				entries = append(entries, set.entries...)
				sort = max(sort, set.sort)
			}
			body := EntriesToCSS(entries)
			if body == "" {
				return
			}
			base := *meta.clone()
			base.Layer = g.key.layer
			base.Sort = sort
			out = append(out, StringifiedUtil{
				Index:    g.index,
				Selector: g.key.selector,
				Body:     body,
				Parent:   g.key.parent,
				Meta:     base,
				Context:  rc,
				NoMerge:  noMerge,
			})
		}
		// Unmergeable entry sets each render as their own rule.
		for _, set := range g.noMerge {
			emit([]entrySet{set}, true)
		}
		emit(g.merged, false)
	}
	return append(out, raws...), nil
}

func shortcutMeta(s *Shortcut) *RuleMeta {
	if s.Meta == nil {
		return &RuleMeta{}
	}
	return s.Meta
}
