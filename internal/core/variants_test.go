package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchVariantsFixpoint(t *testing.T) {
	ctx := context.Background()
	a, b, c := prefixVariant("a"), prefixVariant("b"), prefixVariant("c")
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{
		Rules:    []*Rule{marginRule()},
		Variants: []*Variant{c, b, a},
	}})

	results, err := g.snapshot().matchVariants(ctx, "a:b:c:m-2", "a:b:c:m-2")
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "m-2", r.Current)
	assert.Len(t, r.Handlers, 3)
	assert.Equal(t, []*Variant{a, b, c}, r.Applied)

	utils, err := g.ParseToken(ctx, "a:b:c:m-2", "")
	require.NoError(t, err)
	require.Len(t, utils, 1)
	assert.Equal(t, `.a\:b\:c\:m-2:c:b:a`, utils[0].Selector)
}

func TestMatchVariantsNoop(t *testing.T) {
	calls := 0
	same := &Variant{
		Name: "same",
		Match: func(_ context.Context, token string, _ *VariantContext) ([]*VariantHandler, error) {
			calls++
			return Rewrite(token), nil
		},
	}
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{marginRule()}, Variants: []*Variant{same}}})

	results, err := g.snapshot().matchVariants(context.Background(), "m-2", "m-2")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Handlers)
	assert.Equal(t, 1, calls)
}

func TestMatchVariantsBranching(t *testing.T) {
	fork := &Variant{
		Name: "fork",
		Match: func(_ context.Context, token string, _ *VariantContext) ([]*VariantHandler, error) {
			rest, ok := strings.CutPrefix(token, "both:")
			if !ok {
				return nil, nil
			}
			return []*VariantHandler{
				{Matcher: rest, Parent: "@media print"},
				{Matcher: rest, Parent: "@media screen"},
			}, nil
		},
	}
	hover := prefixVariant("hover")
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{marginRule()}, Variants: []*Variant{fork, hover}}})

	utils, err := g.ParseToken(context.Background(), "both:hover:m-2", "")
	require.NoError(t, err)
	require.Len(t, utils, 2)
	assert.Equal(t, "@media print", utils[0].Parent)
	assert.Equal(t, "@media screen", utils[1].Parent)
	for _, u := range utils {
		assert.Equal(t, `.both\:hover\:m-2:hover`, u.Selector)
	}
}

func TestMatchVariantsErrors(t *testing.T) {
	ctx := context.Background()
	errBoom := errors.New("boom")

	tests := []struct {
		name    string
		variant *Variant
		err     error
	}{
		{
			name: "multi pass branch",
			variant: &Variant{
				Name:      "multi",
				MultiPass: true,
				Match: func(context.Context, string, *VariantContext) ([]*VariantHandler, error) {
					return []*VariantHandler{{Matcher: "m-1"}, {Matcher: "m-2"}}, nil
				},
			},
			err: ErrMultiPassBranch,
		},
		{
			name: "cycle hits ceiling",
			variant: &Variant{
				Name:      "loop",
				MultiPass: true,
				Match: func(_ context.Context, token string, _ *VariantContext) ([]*VariantHandler, error) {
					return []*VariantHandler{{Matcher: token, Sort: 1}}, nil
				},
			},
			err: ErrTooManyVariants,
		},
		{
			name: "handler error",
			variant: &Variant{
				Name: "broken",
				Match: func(context.Context, string, *VariantContext) ([]*VariantHandler, error) {
					return nil, errBoom
				},
			},
			err: errBoom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{marginRule()}, Variants: []*Variant{tt.variant}}})
			_, err := g.ParseToken(ctx, "x:m-2", "")
			require.ErrorIs(t, err, tt.err)
			assert.Contains(t, err.Error(), `"x:m-2"`)
		})
	}
}

func TestMatchVariantsMultiPass(t *testing.T) {
	important := &Variant{
		Name:      "important",
		MultiPass: true,
		Match: func(_ context.Context, token string, _ *VariantContext) ([]*VariantHandler, error) {
			rest, ok := strings.CutPrefix(token, "!")
			if !ok {
				return nil, nil
			}
			return []*VariantHandler{{
				Matcher: rest,
				Body: func(entries CSSEntries) CSSEntries {
					out := make(CSSEntries, len(entries))
					for i, e := range entries {
						out[i] = CSSEntry{Prop: e.Prop, Value: strings.TrimSuffix(e.Value, " !important") + " !important"}
					}
					return out
				},
			}}, nil
		},
	}
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{marginRule()}, Variants: []*Variant{important}}})

	results, err := g.snapshot().matchVariants(context.Background(), "!!m-2", "!!m-2")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Handlers, 2)

	utils, err := g.ParseToken(context.Background(), "!!m-2", "")
	require.NoError(t, err)
	require.Len(t, utils, 1)
	assert.Equal(t, "margin:0.5rem !important;", utils[0].Body)
}
