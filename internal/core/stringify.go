package core

import (
	"cmp"
	"slices"
)

// parentSep joins nested parent wrappers, e.g. "@media (min-width:640px) $$ @supports (x)".
const parentSep = " $$ "

// applyVariants folds the handler chain over the parsed utility. Handlers
// are sorted by Order and applied first to last, so the variant stripped
// last during matching ends up innermost. Postprocessors run on the result.
func (p *pass) applyVariants(u ParsedUtil) *UtilObject {
	handlers := slices.Clone(u.Handlers)
	slices.SortStableFunc(handlers, func(a, b *VariantHandler) int { return cmp.Compare(a.Order, b.Order) })

	chain := func(in VariantHandlerContext) VariantHandlerContext { return in }
	for i := len(handlers) - 1; i >= 0; i-- {
		h, next := handlers[i], chain
		chain = func(in VariantHandlerContext) VariantHandlerContext {
			if h.Body != nil {
				if entries := h.Body(in.Entries); entries != nil {
					in.Entries = entries
				}
			}
			if h.Selector != nil {
				if sel := h.Selector(in.Selector, in.Entries); sel != "" {
					in.Selector = sel
				}
			}
			if h.Parent != "" {
				if in.Parent != "" {
					in.Parent += parentSep + h.Parent
				} else {
					in.Parent = h.Parent
				}
			}
			if h.ParentOrder != 0 {
				in.ParentOrder = h.ParentOrder
			}
			in.Layer = cmp.Or(h.Layer, in.Layer)
			in.Sort = cmp.Or(h.Sort, in.Sort)
			in.NoMerge = in.NoMerge || h.NoMerge
			if h.Handle != nil {
				return h.Handle(in, next)
			}
			return next(in)
		}
	}

	out := chain(VariantHandlerContext{
		Selector: ToEscapedSelector(u.Raw),
		Entries:  u.Entries,
	})
	if out.Parent != "" && out.ParentOrder != 0 {
		p.setParentOrder(out.Parent, out.ParentOrder)
	}

	obj := &UtilObject{
		Selector: out.Prefix + out.Selector + out.Pseudo,
		Entries:  out.Entries,
		Parent:   out.Parent,
		Layer:    out.Layer,
		Sort:     out.Sort,
		NoMerge:  out.NoMerge,
	}
	for _, post := range p.cfg.Postprocess {
		post(obj)
	}
	return obj
}

// stringifyUtil serializes one parsed utility. It reports false when the
// utility renders no declarations.
func (p *pass) stringifyUtil(u ParsedUtil, rc *RuleContext) (StringifiedUtil, bool) {
	meta := *u.Meta.clone()
	if u.IsRaw {
		if u.RawCSS == "" {
			return StringifiedUtil{}, false
		}
		return StringifiedUtil{Index: u.Index, Body: u.RawCSS, Meta: meta, Context: p.details(rc)}, true
	}

	obj := p.applyVariants(u)
	body := EntriesToCSS(obj.Entries)
	if body == "" {
		return StringifiedUtil{}, false
	}
	meta.Layer = cmp.Or(obj.Layer, meta.Layer)
	meta.Sort = cmp.Or(obj.Sort, meta.Sort)
	return StringifiedUtil{
		Index:    u.Index,
		Selector: obj.Selector,
		Body:     body,
		Parent:   obj.Parent,
		Meta:     meta,
		Context:  p.details(rc),
		NoMerge:  obj.NoMerge || meta.NoMerge,
	}, true
}

func (p *pass) details(rc *RuleContext) *RuleContext {
	if p.cfg.Details {
		return rc
	}
	return nil
}
