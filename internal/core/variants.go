package core

import (
	"context"
	"fmt"
	"slices"
)

// maxVariantHandlers caps the handlers one token may collect.
const maxVariantHandlers = 500

// matchVariants peels variants off current until no variant applies. A
// variant returning several handlers forks the match; every leaf is
// returned.
func (p *pass) matchVariants(ctx context.Context, raw, current string) ([]VariantMatchedResult, error) {
	vc := &VariantContext{
		RawSelector: raw,
		Theme:       p.cfg.Theme,
		Separators:  p.cfg.Separators,
		Generator:   p.g,
	}
	return p.matchFrom(ctx, VariantMatchedResult{Raw: raw, Current: current}, vc)
}

func (p *pass) matchFrom(ctx context.Context, r VariantMatchedResult, vc *VariantContext) ([]VariantMatchedResult, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(r.Handlers) > maxVariantHandlers {
			return nil, fmt.Errorf("%w: %q collected more than %d handlers", ErrTooManyVariants, r.Raw, maxVariantHandlers)
		}

		applied := false
		for _, v := range p.cfg.Variants {
			if v.Match == nil || (!v.MultiPass && slices.Contains(r.Applied, v)) {
				continue
			}
			handlers, err := v.Match(ctx, r.Current, vc)
			if err != nil {
				return nil, fmt.Errorf("variant %s on %q: %w", variantName(v), r.Raw, err)
			}
			handlers = slices.DeleteFunc(handlers, func(h *VariantHandler) bool { return h == nil })

			switch len(handlers) {
			case 0:
				continue
			case 1:
				h := handlers[0]
				if h.rewriteOnly() && (h.Matcher == "" || h.Matcher == r.Current) {
					continue
				}
				r.apply(v, h)
				applied = true
			default:
				if v.MultiPass {
					return nil, fmt.Errorf("%w: variant %s on %q", ErrMultiPassBranch, variantName(v), r.Raw)
				}
				var leaves []VariantMatchedResult
				for _, h := range handlers {
					branch := r.clone()
					branch.apply(v, h)
					out, err := p.matchFrom(ctx, branch, vc)
					if err != nil {
						return nil, err
					}
					leaves = append(leaves, out...)
				}
				return leaves, nil
			}
			// A stripped token may unlock variants declared earlier.
			break
		}
		if !applied {
			return []VariantMatchedResult{r}, nil
		}
	}
}

func variantName(v *Variant) string {
	if v.Name == "" {
		return "(anonymous)"
	}
	return v.Name
}
