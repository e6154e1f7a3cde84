package core

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
)

// ConfigBase holds the fields shared by presets and user configs.
type ConfigBase struct {
	Rules     []*Rule
	Variants  []*Variant
	Shortcuts []*Shortcut
	Theme     Theme
	Layers    map[string]int

	Extractors []*Extractor
	// ExtractorDefault replaces the split extractor. Set
	// DisableDefaultExtractor to drop the default entirely.
	ExtractorDefault        *Extractor
	DisableDefaultExtractor bool

	Preflights    []*Preflight
	Safelist      []string
	SafelistFuncs []SafelistFunc
	Blocklist     []*BlocklistRule
	Preprocess    []Preprocessor
	Postprocess   []Postprocessor
	ExtendTheme   []func(theme Theme, cfg *ResolvedConfig) Theme
	Transformers  []*Transformer
	Separators    []string
	Content       Content

	// ConfigResolved fires once the whole config is resolved. It must not
	// modify the config.
	ConfigResolved func(cfg *ResolvedConfig)
}

// PresetSource is anything that yields a preset, possibly with I/O.
type PresetSource interface {
	LoadPreset(ctx context.Context) (*Preset, error)
}

// Preset is a reusable bundle of config.
type Preset struct {
	ConfigBase

	Name    string
	Enforce Enforce
	// Prefix and Layer are back-filled onto the preset's rules and shortcuts
	// that do not declare their own.
	Prefix  []string
	Layer   string
	Presets []PresetSource
}

// LoadPreset implements PresetSource.
func (p *Preset) LoadPreset(context.Context) (*Preset, error) {
	return p, nil
}

// PresetFactory builds a preset lazily.
type PresetFactory func(ctx context.Context) (*Preset, error)

// LoadPreset implements PresetSource.
func (f PresetFactory) LoadPreset(ctx context.Context) (*Preset, error) {
	return f(ctx)
}

// UserConfig is the config a caller hands to CreateGenerator.
type UserConfig struct {
	ConfigBase

	Presets []PresetSource
	// EnvMode is "build" (default) or "dev".
	EnvMode string
	// Details records matched rules, shortcuts and variants on each token's
	// context. Defaults to EnvMode == "dev".
	Details *bool
	// Warn logs unmatched utilities inside shortcuts. Defaults to true.
	Warn *bool
	// MergeSelectors joins rules with identical bodies. Defaults to true.
	MergeSelectors *bool
	// ShortcutsLayer defaults to "shortcuts".
	ShortcutsLayer    string
	SortLayers        func(layers []string) []string
	OutputToCSSLayers *CSSLayerOutput
	Logger            *slog.Logger
}

// ResolvedConfig is the flattened, immutable result of ResolveConfig.
type ResolvedConfig struct {
	Presets []*Preset

	// Rules is the merged rule list in declaration order.
	Rules []*Rule
	// RulesStaticMap maps prefix+literal to a static rule.
	RulesStaticMap map[string]*Rule
	// RulesDynamic lists dynamic rules in match order (last declared first).
	RulesDynamic []*Rule

	Variants []*Variant
	// Shortcuts are in match order (last declared first).
	Shortcuts []*Shortcut

	Theme         Theme
	Layers        map[string]int
	Extractors    []*Extractor
	Preflights    []*Preflight
	Safelist      []string
	SafelistFuncs []SafelistFunc
	Blocklist     []*BlocklistRule
	Preprocess    []Preprocessor
	Postprocess   []Postprocessor
	Transformers  []*Transformer
	Separators    []string
	Content       Content

	EnvMode           string
	Details           bool
	Warn              bool
	MergeSelectors    bool
	ShortcutsLayer    string
	SortLayers        func(layers []string) []string
	OutputToCSSLayers *CSSLayerOutput
	Logger            *slog.Logger

	ruleIndex    map[*Rule]int
	dynamic      []compiledRule
	shortcuts    []compiledShortcut
	variantGroup *regexp.Regexp
}

type compiledRule struct {
	rule    *Rule
	pattern *regexp.Regexp
	index   int
}

type compiledShortcut struct {
	shortcut *Shortcut
	pattern  *regexp.Regexp
}

// RuleIndex returns the declaration index of r, or -1.
func (c *ResolvedConfig) RuleIndex(r *Rule) int {
	if i, ok := c.ruleIndex[r]; ok {
		return i
	}
	return -1
}

// IsBlocked reports whether any blocklist rule excludes token.
func (c *ResolvedConfig) IsBlocked(token string) bool {
	return slices.ContainsFunc(c.Blocklist, func(b *BlocklistRule) bool {
		return b.Blocks(token)
	})
}

func (c *ResolvedConfig) layerPriority(layer string) int {
	return c.Layers[layer]
}
