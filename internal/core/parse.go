package core

import (
	"context"
	"strconv"
)

// ParseToken resolves one raw token into its CSS. A nil result with a nil
// error means the token produces nothing; that outcome is cached as well and
// never retried until the config changes. When alias is set it replaces raw
// as the source of the generated selector.
func (g *Generator) ParseToken(ctx context.Context, raw, alias string) ([]StringifiedUtil, error) {
	p := g.snapshot()
	if g.Blocked(raw) {
		return nil, nil
	}
	key := CacheKey(raw, alias)
	if utils, ok := g.cache.Get(key); ok {
		return utils, nil
	}

	v, err, _ := g.flight.Do(strconv.FormatUint(p.epoch, 10)+"\x00"+key, func() (any, error) {
		if utils, ok := g.cache.Get(key); ok {
			return utils, nil
		}
		utils, blocked, err := p.parseToken(ctx, raw, alias)
		if err != nil {
			return nil, err
		}
		p.store(key, raw, utils, blocked)
		return utils, nil
	})
	if err != nil {
		return nil, err
	}
	utils, _ := v.([]StringifiedUtil)
	return utils, nil
}

func (p *pass) parseToken(ctx context.Context, raw, alias string) ([]StringifiedUtil, bool, error) {
	if p.cfg.IsBlocked(raw) {
		return nil, true, nil
	}
	current := raw
	for _, pre := range p.cfg.Preprocess {
		if current = pre(current); current == "" {
			return nil, false, nil
		}
	}
	if current != raw && p.cfg.IsBlocked(current) {
		return nil, true, nil
	}

	results, err := p.matchVariants(ctx, raw, current)
	if err != nil {
		return nil, false, err
	}
	for _, r := range results {
		if r.Current != current && p.cfg.IsBlocked(r.Current) {
			return nil, true, nil
		}
	}

	var utils []StringifiedUtil
	for _, r := range results {
		if alias != "" {
			r.Raw = alias
		}
		rc := &RuleContext{
			RawSelector:     raw,
			CurrentSelector: r.Current,
			Generator:       p.g,
			Theme:           p.cfg.Theme,
			VariantHandlers: r.Handlers,
			VariantMatch:    r,
			pass:            p,
		}
		if p.cfg.Details {
			rc.Variants = r.Applied
		}

		pieces, meta, err := p.expandShortcut(ctx, r.Current, rc, shortcutDepth)
		if err != nil {
			return nil, false, err
		}
		if pieces != nil {
			out, err := p.stringifyShortcuts(ctx, r, rc, pieces, meta)
			if err != nil {
				return nil, false, err
			}
			utils = append(utils, out...)
			continue
		}

		parsed, err := p.parseUtil(ctx, r, rc, false, nil)
		if err != nil {
			return nil, false, err
		}
		for _, u := range parsed {
			if s, ok := p.stringifyUtil(u, rc); ok {
				utils = append(utils, s)
			}
		}
	}
	return utils, false, nil
}

// store caches the outcome unless the config changed while it was computed.
func (p *pass) store(key, raw string, utils []StringifiedUtil, blocked bool) {
	if len(utils) == 0 {
		utils = nil
	}
	p.g.withState(p.epoch, func() {
		if blocked {
			p.g.blocked[raw] = struct{}{}
		}
		p.g.cache.set(key, utils)
	})
}
