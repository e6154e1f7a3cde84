package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func colorRule(value string) *Rule {
	return DynamicRule(`^c-(.+)$`, func(context.Context, []string, *RuleContext) (CSSValue, error) {
		return E("color", value), nil
	})
}

func TestResolveRulePrecedence(t *testing.T) {
	ctx := context.Background()
	presetA := &Preset{Name: "a", Enforce: EnforcePre, ConfigBase: ConfigBase{Rules: []*Rule{colorRule("x")}}}
	presetB := &Preset{Name: "b", ConfigBase: ConfigBase{Rules: []*Rule{colorRule("y")}}}

	tests := []struct {
		name     string
		presets  []PresetSource
		rules    []*Rule
		expected string
	}{
		{name: "user config wins", presets: []PresetSource{presetB, presetA}, rules: []*Rule{colorRule("z")}, expected: "color:z;"},
		{name: "default preset beats pre preset", presets: []PresetSource{presetB, presetA}, expected: "color:y;"},
		{name: "pre preset alone", presets: []PresetSource{presetA}, expected: "color:x;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGenerator(t, UserConfig{Presets: tt.presets, ConfigBase: ConfigBase{Rules: tt.rules}})
			utils, err := g.ParseToken(ctx, "c-1", "")
			require.NoError(t, err)
			require.Len(t, utils, 1)
			assert.Equal(t, tt.expected, utils[0].Body)
		})
	}
}

func TestResolvePresetOrder(t *testing.T) {
	post := &Preset{Name: "post", Enforce: EnforcePost}
	pre := &Preset{Name: "pre", Enforce: EnforcePre}
	nested := &Preset{Name: "nested"}
	parent := &Preset{Name: "parent", Presets: []PresetSource{nested}}
	dup := &Preset{Name: "nested"}

	cfg, err := ResolveConfig(context.Background(), UserConfig{Presets: []PresetSource{post, parent, pre, dup}}, UserConfig{})
	require.NoError(t, err)

	names := make([]string, 0, len(cfg.Presets))
	for _, p := range cfg.Presets {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"pre", "parent", "nested", "post"}, names)
}

func TestResolvePresetFactoryError(t *testing.T) {
	errBoom := errors.New("boom")
	factory := PresetFactory(func(context.Context) (*Preset, error) { return nil, errBoom })

	_, err := CreateGenerator(context.Background(), UserConfig{Presets: []PresetSource{factory}}, UserConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
}

func TestResolvePresetBackfill(t *testing.T) {
	ctx := context.Background()
	preset := &Preset{
		Name:   "prefixed",
		Prefix: []string{"x-"},
		Layer:  "utilities",
		ConfigBase: ConfigBase{
			Rules: []*Rule{
				StaticRule("red", E("color", "red")),
				StaticRule("blue", E("color", "blue"), RuleMeta{Layer: "colors"}),
			},
		},
	}
	g := newGenerator(t, UserConfig{Presets: []PresetSource{preset}})

	utils, err := g.ParseToken(ctx, "x-red", "")
	require.NoError(t, err)
	require.Len(t, utils, 1)
	assert.Equal(t, "utilities", utils[0].Meta.Layer)

	utils, err = g.ParseToken(ctx, "red", "")
	require.NoError(t, err)
	assert.Nil(t, utils)

	utils, err = g.ParseToken(ctx, "x-blue", "")
	require.NoError(t, err)
	require.Len(t, utils, 1)
	assert.Equal(t, "colors", utils[0].Meta.Layer)

	assert.Nil(t, preset.Rules[0].Meta, "preset rules are not modified")
}

func TestResolveDefaultsAndOverrides(t *testing.T) {
	ctx := context.Background()
	defaults := UserConfig{
		ConfigBase: ConfigBase{
			Rules:  []*Rule{StaticRule("a", E("color", "red"))},
			Layers: map[string]int{"components": 5},
		},
		EnvMode: "dev",
	}

	cfg, err := ResolveConfig(ctx, UserConfig{}, defaults)
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.EnvMode)
	assert.True(t, cfg.Details)
	assert.True(t, cfg.Warn)
	assert.True(t, cfg.MergeSelectors)
	assert.Equal(t, LayerShortcuts, cfg.ShortcutsLayer)
	assert.Equal(t, []string{":", "-"}, cfg.Separators)
	assert.Equal(t, 5, cfg.Layers["components"])
	assert.Equal(t, -20, cfg.Layers[LayerPreflights])
	assert.Contains(t, cfg.RulesStaticMap, "a")

	cfg, err = ResolveConfig(ctx, UserConfig{ConfigBase: ConfigBase{Rules: []*Rule{StaticRule("b", E("color", "blue"))}}}, defaults)
	require.NoError(t, err)
	assert.NotContains(t, cfg.RulesStaticMap, "a")
	assert.Contains(t, cfg.RulesStaticMap, "b")
}

func TestResolveExtractors(t *testing.T) {
	ctx := context.Background()
	custom := &Extractor{Name: "custom", Order: -1}

	cfg, err := ResolveConfig(ctx, UserConfig{ConfigBase: ConfigBase{Extractors: []*Extractor{custom}}}, UserConfig{})
	require.NoError(t, err)
	require.Len(t, cfg.Extractors, 2)
	assert.Equal(t, "custom", cfg.Extractors[0].Name)
	assert.Equal(t, "split", cfg.Extractors[1].Name)

	cfg, err = ResolveConfig(ctx, UserConfig{ConfigBase: ConfigBase{DisableDefaultExtractor: true}}, UserConfig{})
	require.NoError(t, err)
	assert.Empty(t, cfg.Extractors)
}

func TestResolveExtendThemeAndHooks(t *testing.T) {
	var seen *ResolvedConfig
	cfg, err := ResolveConfig(context.Background(), UserConfig{
		ConfigBase: ConfigBase{
			Theme: Theme{"colors": map[string]any{"red": "#f00"}},
			ExtendTheme: []func(Theme, *ResolvedConfig) Theme{
				func(theme Theme, _ *ResolvedConfig) Theme {
					theme["colors"].(map[string]any)["blue"] = "#00f"
					return theme
				},
			},
			ConfigResolved: func(c *ResolvedConfig) { seen = c },
		},
	}, UserConfig{})
	require.NoError(t, err)

	v, ok := cfg.Theme.String("colors.blue")
	assert.True(t, ok)
	assert.Equal(t, "#00f", v)
	assert.Same(t, cfg, seen)
}

func TestResolveInvalidRule(t *testing.T) {
	_, err := ResolveConfig(context.Background(), UserConfig{
		ConfigBase: ConfigBase{Rules: []*Rule{{Static: ""}}},
	}, UserConfig{})
	assert.Error(t, err)
}
