package core

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func marginRule() *Rule {
	return DynamicRule(`^m-(\d+)$`, func(_ context.Context, m []string, _ *RuleContext) (CSSValue, error) {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, err
		}
		return E("margin", strconv.FormatFloat(n*0.25, 'f', -1, 64)+"rem"), nil
	})
}

// prefixVariant strips "name:" and appends ":name" to the selector.
func prefixVariant(name string) *Variant {
	return &Variant{
		Name: name,
		Match: func(_ context.Context, token string, _ *VariantContext) ([]*VariantHandler, error) {
			rest, ok := strings.CutPrefix(token, name+":")
			if !ok {
				return nil, nil
			}
			return []*VariantHandler{{
				Matcher:  rest,
				Selector: func(s string, _ CSSEntries) string { return s + ":" + name },
			}}, nil
		},
	}
}

// parentVariant strips "name:" and wraps the rule in parent.
func parentVariant(name, parent string, order int) *Variant {
	return &Variant{
		Name: name,
		Match: func(_ context.Context, token string, _ *VariantContext) ([]*VariantHandler, error) {
			rest, ok := strings.CutPrefix(token, name+":")
			if !ok {
				return nil, nil
			}
			return []*VariantHandler{{Matcher: rest, Parent: parent, ParentOrder: order}}, nil
		},
	}
}

func newGenerator(t *testing.T, cfg UserConfig) *Generator {
	t.Helper()
	quiet := false
	if cfg.Warn == nil {
		cfg.Warn = &quiet
	}
	g, err := CreateGenerator(context.Background(), cfg, UserConfig{})
	require.NoError(t, err)
	return g
}

func boolPtr(b bool) *bool { return &b }
