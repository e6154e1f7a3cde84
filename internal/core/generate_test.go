package core

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{marginRule()}}})

	res, err := g.Generate(ctx, "m-2 m-4 m-2", GenerateOptions{})
	require.NoError(t, err)

	assert.Len(t, res.Matched, 2)
	assert.Equal(t, []string{LayerDefault}, res.Layers)
	assert.Equal(t, "/* layer: default */\n.m-2{margin:0.5rem;}\n.m-4{margin:1rem;}", res.CSS())
}

func TestGenerateBlocklist(t *testing.T) {
	ctx := context.Background()
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{
		Rules:     []*Rule{marginRule()},
		Blocklist: []*BlocklistRule{Block("m-4")},
	}})

	res, err := g.Generate(ctx, "m-2 m-4", GenerateOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Matched, 1)
	assert.Contains(t, res.CSS(), ".m-2")
	assert.NotContains(t, res.CSS(), ".m-4")

	for range 2 {
		utils, err := g.ParseToken(ctx, "m-4", "")
		require.NoError(t, err)
		assert.Nil(t, utils)
	}
	assert.True(t, g.Blocked("m-4"))
}

func TestGenerateCSSLayers(t *testing.T) {
	ctx := context.Background()
	g := newGenerator(t, UserConfig{
		ConfigBase: ConfigBase{
			Rules: []*Rule{marginRule()},
			Preflights: []*Preflight{{
				Layer: "base",
				GetCSS: func(context.Context, *PreflightContext) (string, error) {
					return "*{box-sizing:border-box}", nil
				},
			}},
		},
		OutputToCSSLayers: &CSSLayerOutput{},
	})

	res, err := g.Generate(ctx, "m-2", GenerateOptions{})
	require.NoError(t, err)

	expected := strings.Join([]string{
		"@layer base, default;",
		"/* layer: base */",
		"@layer base{",
		"*{box-sizing:border-box}",
		"}",
		"/* layer: default */",
		"@layer default{",
		".m-2{margin:0.5rem;}",
		"}",
	}, "\n")
	assert.Equal(t, expected, res.CSS())
}

func TestGenerateCSSLayerAlias(t *testing.T) {
	ctx := context.Background()
	g := newGenerator(t, UserConfig{
		ConfigBase: ConfigBase{Rules: []*Rule{marginRule()}},
		OutputToCSSLayers: &CSSLayerOutput{CSSLayerName: func(layer string) (string, bool) {
			return "uno-" + layer, true
		}},
	})

	res, err := g.Generate(ctx, "m-2", GenerateOptions{Minify: true})
	require.NoError(t, err)
	assert.Equal(t, "@layer uno-default;@layer uno-default{.m-2{margin:0.5rem;}}", res.CSS())

	res, err = g.Generate(ctx, "m-2", GenerateOptions{})
	require.NoError(t, err)
	expected := strings.Join([]string{
		"@layer uno-default;",
		"/* layer: default, alias: uno-default */",
		"@layer uno-default{",
		".m-2{margin:0.5rem;}",
		"}",
	}, "\n")
	assert.Equal(t, expected, res.CSS())
}

func TestGenerateSelectorMerge(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		meta     RuleMeta
		expected string
	}{
		{name: "identical bodies merge", expected: ".a,\n.b{color:red;}"},
		{name: "no merge keeps rules apart", meta: RuleMeta{NoMerge: true}, expected: ".a{color:red;}\n.b{color:red;}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{
				StaticRule("a", E("color", "red")),
				StaticRule("b", E("color", "red"), tt.meta),
			}}})
			res, err := g.Generate(ctx, "b a", GenerateOptions{Minify: false})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, res.GetLayer(LayerDefault)[len("/* layer: default */\n"):])
		})
	}
}

func TestGenerateMergeSelectorsDisabled(t *testing.T) {
	g := newGenerator(t, UserConfig{
		ConfigBase: ConfigBase{Rules: []*Rule{
			StaticRule("a", E("color", "red")),
			StaticRule("b", E("color", "red")),
		}},
		MergeSelectors: boolPtr(false),
	})
	res, err := g.Generate(context.Background(), "a b", GenerateOptions{Minify: true})
	require.NoError(t, err)
	assert.Equal(t, ".a{color:red;}.b{color:red;}", res.CSS())
}

func TestGenerateParentOrder(t *testing.T) {
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{
		Rules: []*Rule{marginRule()},
		Variants: []*Variant{
			parentVariant("md", "@media (min-width:768px)", 2),
			parentVariant("sm", "@media (min-width:640px)", 1),
		},
	}})

	res, err := g.Generate(context.Background(), "md:m-2 sm:m-2 m-2", GenerateOptions{})
	require.NoError(t, err)

	expected := strings.Join([]string{
		"/* layer: default */",
		".m-2{margin:0.5rem;}",
		"@media (min-width:640px){",
		`.sm\:m-2{margin:0.5rem;}`,
		"}",
		"@media (min-width:768px){",
		`.md\:m-2{margin:0.5rem;}`,
		"}",
	}, "\n")
	assert.Equal(t, expected, res.CSS())
}

func TestGenerateNestedParents(t *testing.T) {
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{
		Rules: []*Rule{marginRule()},
		Variants: []*Variant{
			parentVariant("sm", "@media (min-width:640px)", 1),
			parentVariant("supports", "@supports (display:grid)", 0),
		},
	}})

	res, err := g.Generate(context.Background(), "sm:supports:m-2", GenerateOptions{Minify: true})
	require.NoError(t, err)
	assert.Equal(t, `@supports (display:grid){@media (min-width:640px){.sm\:supports\:m-2{margin:0.5rem;}}}`, res.CSS())
}

func TestGenerateIdempotent(t *testing.T) {
	ctx := context.Background()
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{
		Rules:    []*Rule{marginRule(), StaticRule("block", E("display", "block"))},
		Variants: []*Variant{prefixVariant("hover"), parentVariant("sm", "@media (min-width:640px)", 1)},
	}})
	code := "m-1 hover:m-2 sm:m-3 block sm:hover:block m-10 m-2"

	first, err := g.Generate(ctx, code, GenerateOptions{Concurrency: 8})
	require.NoError(t, err)
	second, err := g.Generate(ctx, code, GenerateOptions{Concurrency: 1})
	require.NoError(t, err)

	assert.Equal(t, first.CSS(), second.CSS())
	assert.Len(t, second.Matched, 7)
}

func TestGenerateOptions(t *testing.T) {
	ctx := context.Background()
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{
		Rules:    []*Rule{marginRule()},
		Safelist: []string{"m-8"},
		SafelistFuncs: []SafelistFunc{func(*SafelistContext) []string {
			return []string{"m-8", "m-16"}
		}},
		Preflights: []*Preflight{{GetCSS: func(context.Context, *PreflightContext) (string, error) {
			return "html{margin:0}", nil
		}}},
	}})

	t.Run("defaults", func(t *testing.T) {
		res, err := g.Generate(ctx, "m-2", GenerateOptions{Minify: true})
		require.NoError(t, err)
		assert.Equal(t, []string{LayerPreflights, LayerDefault}, res.Layers)
		assert.Equal(t, "html{margin:0}.m-16{margin:4rem;}.m-2{margin:0.5rem;}.m-8{margin:2rem;}", res.CSS())
	})

	t.Run("skip preflights and safelist", func(t *testing.T) {
		res, err := g.Generate(ctx, "m-2", GenerateOptions{Minify: true, SkipPreflights: true, SkipSafelist: true})
		require.NoError(t, err)
		assert.Equal(t, ".m-2{margin:0.5rem;}", res.CSS())
	})

	t.Run("scope", func(t *testing.T) {
		res, err := g.Generate(ctx, "m-2", GenerateOptions{Minify: true, SkipPreflights: true, SkipSafelist: true, Scope: ".app"})
		require.NoError(t, err)
		assert.Equal(t, ".app .m-2{margin:0.5rem;}", res.CSS())
	})

	t.Run("layer filters", func(t *testing.T) {
		res, err := g.Generate(ctx, "m-2", GenerateOptions{Minify: true})
		require.NoError(t, err)
		assert.Equal(t, "html{margin:0}", res.GetLayers([]string{LayerPreflights}, nil))
		assert.NotContains(t, res.GetLayers(nil, []string{LayerPreflights}), "html")
	})
}

func TestGenerateExtendedInfo(t *testing.T) {
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{marginRule()}}})

	res, err := g.GenerateTokens(context.Background(), NewCountableSet("m-2", "m-2", "m-4", "x"), GenerateOptions{ExtendedInfo: true})
	require.NoError(t, err)

	require.Len(t, res.MatchedInfo, 2)
	assert.Equal(t, 2, res.MatchedInfo["m-2"].Count)
	assert.Equal(t, "margin:0.5rem;", res.MatchedInfo["m-2"].Data[0].Body)
	assert.NotContains(t, res.MatchedInfo, "x")
}

func TestGenerateSetLayer(t *testing.T) {
	ctx := context.Background()
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{marginRule()}}})
	res, err := g.Generate(ctx, "m-2", GenerateOptions{Minify: true})
	require.NoError(t, err)

	err = res.SetLayer(ctx, LayerDefault, func(_ context.Context, css string) (string, error) {
		return strings.ToUpper(css), nil
	})
	require.NoError(t, err)
	assert.Equal(t, ".M-2{MARGIN:0.5REM;}", res.CSS())

	errBoom := errors.New("boom")
	err = res.SetLayer(ctx, LayerDefault, func(context.Context, string) (string, error) { return "", errBoom })
	assert.ErrorIs(t, err, errBoom)
}

func TestGeneratePreflightError(t *testing.T) {
	errBoom := errors.New("boom")
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{
		Preflights: []*Preflight{{GetCSS: func(context.Context, *PreflightContext) (string, error) { return "", errBoom }}},
	}})
	_, err := g.Generate(context.Background(), "", GenerateOptions{})
	assert.ErrorIs(t, err, errBoom)
}

func TestParseTokenCache(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	counting := DynamicRule(`^n-(\d+)$`, func(_ context.Context, m []string, _ *RuleContext) (CSSValue, error) {
		calls.Add(1)
		return E("order", m[1]), nil
	})
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{counting}}})

	first, err := g.ParseToken(ctx, "n-1", "")
	require.NoError(t, err)
	second, err := g.ParseToken(ctx, "n-1", "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, g.Cache().Has("n-1"))

	miss, err := g.ParseToken(ctx, "unknown", "")
	require.NoError(t, err)
	assert.Nil(t, miss)
	cached, ok := g.Cache().Get("unknown")
	assert.True(t, ok)
	assert.Nil(t, cached)
	assert.Equal(t, []*Rule{counting}, g.ActivatedRules())
}

func TestParseTokenAlias(t *testing.T) {
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{marginRule()}}})

	utils, err := g.ParseToken(context.Background(), "m-2", `[margin~="sm"]`)
	require.NoError(t, err)
	require.Len(t, utils, 1)
	assert.Equal(t, `[margin~="sm"]`, utils[0].Selector)
	assert.True(t, g.Cache().Has(CacheKey("m-2", `[margin~="sm"]`)))
	assert.False(t, g.Cache().Has("m-2"))
}

func TestParseTokenPreprocess(t *testing.T) {
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{
		Rules:      []*Rule{marginRule()},
		Preprocess: []Preprocessor{func(s string) string { return strings.TrimPrefix(s, "tw-") }},
		Blocklist:  []*BlocklistRule{Block("m-9")},
	}})
	ctx := context.Background()

	utils, err := g.ParseToken(ctx, "tw-m-2", "")
	require.NoError(t, err)
	require.Len(t, utils, 1)
	assert.Equal(t, ".tw-m-2", utils[0].Selector)

	utils, err = g.ParseToken(ctx, "tw-m-9", "")
	require.NoError(t, err)
	assert.Nil(t, utils)
	assert.True(t, g.Blocked("tw-m-9"))
}

func TestParseTokenRuleOutputs(t *testing.T) {
	ctx := context.Background()
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{
		DynamicRule(`^supports-red$`, func(context.Context, []string, *RuleContext) (CSSValue, error) {
			return &RuleOutput{
				Entries:  E("color", "red"),
				Parent:   "@supports (color:red)",
				Layer:    "utilities",
				Selector: func(s string) string { return s + " > *" },
				Sort:     2,
			}, nil
		}),
		DynamicRule(`^pair$`, func(context.Context, []string, *RuleContext) (CSSValue, error) {
			return CSSSeq(iter.Seq[CSSValue](func(yield func(CSSValue) bool) {
				if !yield(E("color", "red")) {
					return
				}
				yield(CSSObject{"background": "blue"})
			})), nil
		}),
		DynamicRule(`^raw$`, func(_ context.Context, _ []string, rc *RuleContext) (CSSValue, error) {
			return RawCSS(rc.ConstructCSS(E("color", "green"), "")), nil
		}),
		DynamicRule(`^empty$`, func(context.Context, []string, *RuleContext) (CSSValue, error) {
			return E("color", ""), nil
		}),
		DynamicRule(`^bad$`, func(context.Context, []string, *RuleContext) (CSSValue, error) {
			return CSSList{nil, badValue{}}, nil
		}),
	}}})

	utils, err := g.ParseToken(ctx, "supports-red", "")
	require.NoError(t, err)
	require.Len(t, utils, 1)
	assert.Equal(t, "@supports (color:red)", utils[0].Parent)
	assert.Equal(t, ".supports-red > *", utils[0].Selector)
	assert.Equal(t, "utilities", utils[0].Meta.Layer)
	assert.Equal(t, 2, utils[0].Meta.Sort)

	utils, err = g.ParseToken(ctx, "pair", "")
	require.NoError(t, err)
	require.Len(t, utils, 2)
	assert.Equal(t, "color:red;", utils[0].Body)
	assert.Equal(t, "background:blue;", utils[1].Body)

	utils, err = g.ParseToken(ctx, "raw", "")
	require.NoError(t, err)
	require.Len(t, utils, 1)
	assert.Empty(t, utils[0].Selector)
	assert.Equal(t, ".raw{color:green;}", utils[0].Body)

	utils, err = g.ParseToken(ctx, "empty", "")
	require.NoError(t, err)
	assert.Nil(t, utils)

	_, err = g.ParseToken(ctx, "bad", "")
	assert.ErrorIs(t, err, ErrInvalidRuleResult)
}

type badValue struct{ CSSEntries }

func TestParseTokenHandlerError(t *testing.T) {
	errBoom := errors.New("boom")
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{
		DynamicRule(`^fail$`, func(context.Context, []string, *RuleContext) (CSSValue, error) { return nil, errBoom }),
	}}})

	_, err := g.ParseToken(context.Background(), "fail", "")
	require.ErrorIs(t, err, errBoom)
	assert.False(t, g.Cache().Has("fail"))

	_, err = g.Generate(context.Background(), "fail", GenerateOptions{})
	assert.ErrorIs(t, err, errBoom)
}

func TestParseTokenDetails(t *testing.T) {
	rule := marginRule()
	hover := prefixVariant("hover")
	g := newGenerator(t, UserConfig{
		ConfigBase: ConfigBase{Rules: []*Rule{rule}, Variants: []*Variant{hover}},
		Details:    boolPtr(true),
	})

	utils, err := g.ParseToken(context.Background(), "hover:m-2", "")
	require.NoError(t, err)
	require.Len(t, utils, 1)
	require.NotNil(t, utils[0].Context)
	assert.Equal(t, "m-2", utils[0].Context.CurrentSelector)
	assert.Equal(t, []*Rule{rule}, utils[0].Context.Rules)
	assert.Equal(t, []*Variant{hover}, utils[0].Context.Variants)
}

func TestSetConfig(t *testing.T) {
	ctx := context.Background()
	g := newGenerator(t, UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{marginRule()}}})

	_, err := g.ParseToken(ctx, "m-2", "")
	require.NoError(t, err)
	require.Equal(t, 1, g.Cache().Len())

	var notified atomic.Int32
	unsubscribe := g.OnConfig(func(*ResolvedConfig) { notified.Add(1) })

	require.NoError(t, g.SetConfig(ctx, UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{StaticRule("m-2", E("margin", "2px"))}}}, UserConfig{}))
	assert.Equal(t, 0, g.Cache().Len())
	assert.Empty(t, g.ActivatedRules())
	assert.Equal(t, int32(1), notified.Load())

	utils, err := g.ParseToken(ctx, "m-2", "")
	require.NoError(t, err)
	require.Len(t, utils, 1)
	assert.Equal(t, "margin:2px;", utils[0].Body)

	old := g.Config()
	errBoom := errors.New("boom")
	failing := PresetFactory(func(context.Context) (*Preset, error) { return nil, errBoom })
	err = g.SetConfig(ctx, UserConfig{Presets: []PresetSource{failing}}, UserConfig{})
	assert.ErrorIs(t, err, errBoom)
	assert.Same(t, old, g.Config())

	unsubscribe()
	require.NoError(t, g.SetConfig(ctx, UserConfig{}, UserConfig{}))
	assert.Equal(t, int32(1), notified.Load())
}

func TestGenerateTieBreakOrder(t *testing.T) {
	sorts := map[string]int{"a": 2, "b": 1, "c": 0, "d": 0}
	sortedRule := DynamicRule(`^z-(\w)$`, func(_ context.Context, m []string, _ *RuleContext) (CSSValue, error) {
		return &RuleOutput{Entries: E("color", m[1]), Sort: sorts[m[1]]}, nil
	})

	tests := []struct {
		name     string
		cfg      UserConfig
		code     string
		expected string
	}{
		{
			name:     "entry sort beats selector",
			cfg:      UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{sortedRule}}},
			code:     "z-a z-b",
			expected: ".z-b{color:b;}.z-a{color:a;}",
		},
		{
			name:     "equal sort falls back to selector",
			cfg:      UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{sortedRule}}},
			code:     "z-d z-c",
			expected: ".z-c{color:c;}.z-d{color:d;}",
		},
		{
			name: "variant sort beats selector",
			cfg: UserConfig{ConfigBase: ConfigBase{
				Rules: []*Rule{sortedRule},
				Variants: []*Variant{{
					Name: "late",
					Match: func(_ context.Context, token string, _ *VariantContext) ([]*VariantHandler, error) {
						rest, ok := strings.CutPrefix(token, "late:")
						if !ok {
							return nil, nil
						}
						return []*VariantHandler{{Matcher: rest, Sort: 5}}, nil
					},
				}},
			}},
			code:     "late:z-c z-d",
			expected: `.z-d{color:d;}.late\:z-c{color:c;}`,
		},
		{
			name: "shortcut context selector beats outer selector",
			cfg: UserConfig{ConfigBase: ConfigBase{
				Rules:    []*Rule{marginRule()},
				Variants: []*Variant{prefixVariant("a"), prefixVariant("b")},
				Shortcuts: []*Shortcut{
					StaticShortcut("aa", Expand("m-1")),
					StaticShortcut("zz", Expand("m-2")),
				},
			}},
			code:     "a:zz b:aa",
			expected: `.b\:aa:b{margin:0.25rem;}.a\:zz:a{margin:0.5rem;}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGenerator(t, tt.cfg)
			res, err := g.Generate(context.Background(), tt.code, GenerateOptions{Minify: true})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, res.CSS())
		})
	}
}
