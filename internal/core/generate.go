package core

import (
	"cmp"
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// GenerateOptions tunes a single Generate call. The zero value renders
// preflights and the safelist, unminified.
type GenerateOptions struct {
	// ID identifies the source for extractors and transformers.
	ID string
	// Scope prefixes every selector, e.g. ".app".
	Scope          string
	SkipPreflights bool
	SkipSafelist   bool
	Minify         bool
	// ExtendedInfo fills GenerateResult.MatchedInfo.
	ExtendedInfo bool
	// Concurrency bounds parallel token parsing. Zero uses GOMAXPROCS.
	Concurrency int
}

// ExtendedTokenInfo is the payload of a matched token.
type ExtendedTokenInfo struct {
	Data  []StringifiedUtil
	Count int
}

// GenerateResult holds the rendered layers of one generation.
type GenerateResult struct {
	// Layers lists the layers in output order.
	Layers      []string
	Matched     map[string]struct{}
	MatchedInfo map[string]ExtendedTokenInfo

	cfg          *ResolvedConfig
	opts         GenerateOptions
	sheet        map[string][]StringifiedUtil
	parents      []string
	preflightCSS map[string]string

	mu       sync.Mutex
	rendered map[string]string
}

// Generate extracts tokens from code and renders their CSS.
func (g *Generator) Generate(ctx context.Context, code string, opts GenerateOptions) (*GenerateResult, error) {
	tokens, err := applyExtractors(ctx, g.Config(), code, opts.ID, nil)
	if err != nil {
		return nil, err
	}
	return g.GenerateTokens(ctx, tokens, opts)
}

// GenerateTokens renders the CSS for an already extracted token set. The
// set is not modified.
func (g *Generator) GenerateTokens(ctx context.Context, tokens *CountableSet, opts GenerateOptions) (*GenerateResult, error) {
	cfg := g.Config()

	set := NewCountableSet()
	if tokens != nil {
		set = tokens.Clone()
	}
	if !opts.SkipSafelist {
		addOnce := func(t string) {
			if t != "" && !set.Has(t) {
				set.Add(t)
			}
		}
		for _, t := range cfg.Safelist {
			addOnce(t)
		}
		sc := &SafelistContext{Generator: g, Theme: cfg.Theme}
		for _, fn := range cfg.SafelistFuncs {
			for _, t := range fn(sc) {
				addOnce(t)
			}
		}
	}

	values := set.Values()
	results := make([][]StringifiedUtil, len(values))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(cmp.Or(opts.Concurrency, runtime.GOMAXPROCS(0)))
	for i, token := range values {
		eg.Go(func() error {
			utils, err := g.ParseToken(egCtx, token, "")
			if err != nil {
				return err
			}
			results[i] = utils
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res := &GenerateResult{
		Matched:      make(map[string]struct{}),
		cfg:          cfg,
		opts:         opts,
		sheet:        make(map[string][]StringifiedUtil),
		preflightCSS: make(map[string]string),
		rendered:     make(map[string]string),
	}
	if opts.ExtendedInfo {
		res.MatchedInfo = make(map[string]ExtendedTokenInfo)
	}

	layerSet := make(map[string]struct{})
	for i, token := range values {
		utils := results[i]
		if len(utils) == 0 {
			continue
		}
		res.Matched[token] = struct{}{}
		if opts.ExtendedInfo {
			res.MatchedInfo[token] = ExtendedTokenInfo{Data: utils, Count: set.Count(token)}
		}
		for _, u := range utils {
			res.sheet[u.Parent] = append(res.sheet[u.Parent], u)
			layerSet[utilLayer(u)] = struct{}{}
		}
	}

	if !opts.SkipPreflights {
		if err := res.buildPreflights(ctx, g, layerSet); err != nil {
			return nil, err
		}
	}

	res.Layers = sortLayers(cfg, layerSet)

	orders := g.parentOrderSnapshot()
	for parent := range res.sheet {
		res.parents = append(res.parents, parent)
	}
	slices.SortFunc(res.parents, func(a, b string) int {
		return cmp.Or(cmp.Compare(orders[a], orders[b]), strings.Compare(a, b))
	})
	return res, nil
}

func (r *GenerateResult) buildPreflights(ctx context.Context, g *Generator, layerSet map[string]struct{}) error {
	pc := &PreflightContext{Generator: g, Theme: r.cfg.Theme}
	parts := make(map[string][]string)
	for _, pf := range r.cfg.Preflights {
		layer := pf.layer()
		layerSet[layer] = struct{}{}
		if pf.GetCSS == nil {
			continue
		}
		css, err := pf.GetCSS(ctx, pc)
		if err != nil {
			return fmt.Errorf("preflight on layer %q: %w", layer, err)
		}
		if css != "" {
			parts[layer] = append(parts[layer], css)
		}
	}
	for layer, css := range parts {
		r.preflightCSS[layer] = strings.Join(css, r.nl())
	}
	return nil
}

// sortLayers orders layers by priority, then name, then the SortLayers hook.
func sortLayers(cfg *ResolvedConfig, layerSet map[string]struct{}) []string {
	layers := make([]string, 0, len(layerSet))
	for l := range layerSet {
		layers = append(layers, l)
	}
	slices.SortFunc(layers, func(a, b string) int {
		return cmp.Or(cmp.Compare(cfg.layerPriority(a), cfg.layerPriority(b)), strings.Compare(a, b))
	})
	if cfg.SortLayers != nil {
		layers = cfg.SortLayers(layers)
	}
	return layers
}

func utilLayer(u StringifiedUtil) string {
	return cmp.Or(u.Meta.Layer, LayerDefault)
}

func (r *GenerateResult) nl() string {
	if r.opts.Minify {
		return ""
	}
	return "\n"
}

// CSS renders every layer.
func (r *GenerateResult) CSS() string {
	return r.GetLayers(nil, nil)
}

// GetLayers renders the layers in output order. A nil includes renders all
// layers; excludes are always skipped.
func (r *GenerateResult) GetLayers(includes, excludes []string) string {
	nl := r.nl()
	var names, blocks []string
	for _, layer := range r.Layers {
		if (includes != nil && !slices.Contains(includes, layer)) || slices.Contains(excludes, layer) {
			continue
		}
		if alias, wrap := r.cfg.OutputToCSSLayers.alias(layer); wrap {
			names = append(names, alias)
		}
		if css := r.GetLayer(layer); css != "" {
			blocks = append(blocks, css)
		}
	}
	css := strings.Join(blocks, nl)
	if r.cfg.OutputToCSSLayers != nil && css != "" && len(names) > 0 {
		css = "@layer " + strings.Join(names, ", ") + ";" + nl + css
	}
	return css
}

// GetLayer renders one layer, preflights first. Rendered layers are cached
// on the result.
func (r *GenerateResult) GetLayer(layer string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if css, ok := r.rendered[layer]; ok {
		return css
	}
	css := r.renderLayer(layer)
	r.rendered[layer] = css
	return css
}

// SetLayer replaces the rendered text of layer with the output of fn.
func (r *GenerateResult) SetLayer(ctx context.Context, layer string, fn func(ctx context.Context, css string) (string, error)) error {
	css, err := fn(ctx, r.GetLayer(layer))
	if err != nil {
		return fmt.Errorf("set layer %q: %w", layer, err)
	}
	r.mu.Lock()
	r.rendered[layer] = css
	r.mu.Unlock()
	return nil
}

func (r *GenerateResult) renderLayer(layer string) string {
	nl := r.nl()
	var blocks []string
	if pf := r.preflightCSS[layer]; pf != "" {
		blocks = append(blocks, pf)
	}
	for _, parent := range r.parents {
		var items []StringifiedUtil
		for _, u := range r.sheet[parent] {
			if utilLayer(u) == layer {
				items = append(items, u)
			}
		}
		if len(items) == 0 {
			continue
		}
		rules := r.renderRules(items)
		if parent == "" {
			blocks = append(blocks, rules)
			continue
		}
		parents := strings.Split(parent, parentSep)
		blocks = append(blocks, strings.Join(parents, "{")+"{"+nl+rules+nl+strings.Repeat("}", len(parents)))
	}
	if len(blocks) == 0 {
		return ""
	}

	css := strings.Join(blocks, nl)
	marker := "/* layer: " + layer
	if r.cfg.OutputToCSSLayers != nil {
		if alias, wrap := r.cfg.OutputToCSSLayers.alias(layer); wrap {
			css = "@layer " + alias + "{" + nl + css + nl + "}"
			if alias != layer {
				marker += ", alias: " + alias
			}
		}
	}
	if !r.opts.Minify {
		css = marker + " */" + nl + css
	}
	return css
}

type selectorSort struct {
	selector string
	sort     int
}

type renderItem struct {
	selectors []selectorSort
	body      string
	noMerge   bool
}

// renderRules sorts the utilities of one parent and layer, then merges
// rules whose bodies are byte-identical unless either opts out.
func (r *GenerateResult) renderRules(utils []StringifiedUtil) string {
	nl := r.nl()
	slices.SortStableFunc(utils, compareUtils)

	items := make([]*renderItem, len(utils))
	for i, u := range utils {
		items[i] = &renderItem{
			selectors: []selectorSort{{selector: applyScope(u.Selector, r.opts.Scope), sort: u.Meta.Sort}},
			body:      u.Body,
			noMerge:   u.NoMerge,
		}
	}
	slices.Reverse(items)

	rules := make([]string, 0, len(items))
	for idx, it := range items {
		if !it.noMerge && r.cfg.MergeSelectors && mergeInto(items[idx+1:], it) {
			continue
		}
		slices.SortStableFunc(it.selectors, func(a, b selectorSort) int {
			return cmp.Or(cmp.Compare(a.sort, b.sort), strings.Compare(a.selector, b.selector))
		})
		var selectors []string
		for _, s := range it.selectors {
			if s.selector != "" && !slices.Contains(selectors, s.selector) {
				selectors = append(selectors, s.selector)
			}
		}
		if len(selectors) == 0 {
			rules = append(rules, it.body)
			continue
		}
		rules = append(rules, strings.Join(selectors, ","+nl)+"{"+it.body+"}")
	}
	slices.Reverse(rules)
	return strings.Join(rules, nl)
}

// mergeInto hands the selectors of it to the first mergeable rule in rest.
func mergeInto(rest []*renderItem, it *renderItem) bool {
	raw := it.selectors[0].selector == ""
	for _, cur := range rest {
		if cur.noMerge || cur.body != it.body || (cur.selectors[0].selector == "") != raw {
			continue
		}
		cur.selectors = append(cur.selectors, it.selectors...)
		return true
	}
	return false
}

// compareUtils orders utilities by rule index, sort, shortcut context
// selector, selector and body.
func compareUtils(a, b StringifiedUtil) int {
	return cmp.Or(
		cmp.Compare(a.Index, b.Index),
		cmp.Compare(a.Meta.Sort, b.Meta.Sort),
		strings.Compare(contextSelector(a), contextSelector(b)),
		strings.Compare(a.Selector, b.Selector),
		strings.Compare(a.Body, b.Body),
	)
}

func contextSelector(u StringifiedUtil) string {
	if u.Context == nil {
		return ""
	}
	return u.Context.CurrentSelector
}
