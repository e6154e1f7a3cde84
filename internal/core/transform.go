package core

import (
	"context"
	"fmt"
)

// TransformerVariantGroup expands variant groups in source code so that
// extractors see plain tokens.
var TransformerVariantGroup = &Transformer{
	Name:    "variant-group",
	Enforce: EnforcePre,
	Transform: func(_ context.Context, code, _ string, g *Generator) (string, error) {
		return ExpandVariantGroup(code, g.Config().Separators...), nil
	},
}

// Transform runs the configured transformers over code in pre, default,
// post order. Transformers whose IDFilter rejects id are skipped.
func (g *Generator) Transform(ctx context.Context, code, id string) (string, error) {
	transformers := g.Config().Transformers
	for _, enforce := range []Enforce{EnforcePre, EnforceDefault, EnforcePost} {
		for _, t := range transformers {
			if t.Enforce != enforce || t.Transform == nil {
				continue
			}
			if t.IDFilter != nil && !t.IDFilter(id) {
				continue
			}
			out, err := t.Transform(ctx, code, id, g)
			if err != nil {
				return "", fmt.Errorf("transformer %q on %s: %w", t.Name, id, err)
			}
			code = out
		}
	}
	return code, nil
}
