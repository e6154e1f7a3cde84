package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/yacobolo/atomcss"
	"github.com/yacobolo/atomcss/internal/core"
	"github.com/yacobolo/atomcss/internal/preflight"
	"github.com/yacobolo/atomcss/internal/preset"
)

const defaultConfigPath = ".atomcss.yaml"

var defaultContent = []string{"**/*.{html,htm,js,jsx,ts,tsx,vue,svelte,templ}"}

var k = koanf.New(".")

// loadConfig loads configuration with precedence: flags > env > file > defaults.
// It must be called after cobra parses flags (in PreRunE or RunE).
func loadConfig(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	envFile, _ := cmd.Flags().GetString("env-file")

	if err := loadConfigFromPath(configPath, envFile); err != nil {
		return err
	}

	// Only explicitly set flags override; defaults fill keys nothing else set.
	if err := k.Load(posflag.Provider(cmd.Flags(), ".", k), nil); err != nil {
		return fmt.Errorf("loading command flags: %w", err)
	}
	return nil
}

// loadConfigFromPath loads the .env file, the config file and environment
// variables. It is separate from loadConfig so tests can skip cobra.
func loadConfigFromPath(configPath, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("ATOMCSS_", ".", func(s string) string {
		// ATOMCSS_OUTPUT -> output
		// ATOMCSS_MINI_PREFIX -> mini.prefix
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "ATOMCSS_")),
			"_", ".",
		)
	}), nil); err != nil {
		return fmt.Errorf("loading environment variables: %w", err)
	}
	return nil
}

// preflightFile is one entry of the preflights list.
type preflightFile struct {
	Path  string `koanf:"path"`
	Layer string `koanf:"layer"`
}

// buildUserConfig constructs the engine config from koanf state.
func buildUserConfig() (core.UserConfig, error) {
	cfg := core.UserConfig{
		EnvMode:        getStringWithFallback("env-mode", "env-mode", "build"),
		ShortcutsLayer: k.String("shortcuts-layer"),
		Logger:         newLogger(),
	}
	cfg.MergeSelectors = boolPtr(getBoolWithFallback("merge-selectors", "merge-selectors", true))

	presets, err := buildPresets()
	if err != nil {
		return cfg, err
	}
	cfg.Presets = presets

	theme, err := buildTheme()
	if err != nil {
		return cfg, err
	}
	cfg.Theme = theme

	if k.Exists("layers") {
		cfg.Layers = k.IntMap("layers")
	}
	if getBoolWithFallback("css-layers", "css-layers", false) {
		cfg.OutputToCSSLayers = &core.CSSLayerOutput{}
	}
	if getBoolWithFallback("variant-group", "variant-group", true) {
		cfg.Transformers = []*core.Transformer{atomcss.TransformerVariantGroup}
	}

	cfg.Safelist = k.Strings("safelist")
	cfg.Separators = k.Strings("separators")
	blocklist, err := buildBlocklist(k.Strings("blocklist"))
	if err != nil {
		return cfg, err
	}
	cfg.Blocklist = blocklist

	cfg.Content = core.Content{
		Filesystem: getStringsWithFallback("include", "content.filesystem", defaultContent),
		Exclude:    getStringsWithFallback("exclude", "content.exclude", nil),
		Inline:     k.Strings("content.inline"),
	}

	var files []preflightFile
	if err := k.Unmarshal("preflights", &files); err != nil {
		return cfg, fmt.Errorf("preflights: %w", err)
	}
	minify := getBoolWithFallback("minify", "minify", false)
	for _, f := range files {
		pfs, err := preflight.Load(f.Path, f.Layer, minify)
		if err != nil {
			return cfg, err
		}
		cfg.Preflights = append(cfg.Preflights, pfs...)
	}
	return cfg, nil
}

// buildPresets resolves the presets list plus the inline rules, shortcuts
// and variants, which form a preset of their own declared last.
func buildPresets() ([]core.PresetSource, error) {
	names := getStringsWithFallback("presets", "presets", []string{"mini"})
	var out []core.PresetSource
	for _, name := range names {
		switch name {
		case "mini":
			out = append(out, preset.Mini(preset.MiniOptions{
				DarkMode:    k.String("mini.dark-mode"),
				Prefix:      k.String("mini.prefix"),
				NoPreflight: !getBoolWithFallback("mini.preflight", "mini.preflight", true),
			}))
		case "", "none":
		default:
			return nil, fmt.Errorf("unknown preset %q", name)
		}
	}

	spec := preset.DeclarativeSpec{Name: "config"}
	for key, dst := range map[string]any{
		"rules":     &spec.Rules,
		"shortcuts": &spec.Shortcuts,
		"variants":  &spec.Variants,
	} {
		if err := k.Unmarshal(key, dst); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	if len(spec.Rules)+len(spec.Shortcuts)+len(spec.Variants) > 0 {
		p, err := preset.Declarative(spec)
		if err != nil {
			return nil, fmt.Errorf("config preset: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// buildTheme merges the inline theme over the TOML theme file.
func buildTheme() (core.Theme, error) {
	var theme core.Theme
	if path := k.String("theme-file"); path != "" {
		// #nosec G304 - path comes from trusted configuration
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read theme file: %w", err)
		}
		var fromFile map[string]any
		if err := toml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("parse theme file %s: %w", path, err)
		}
		theme = core.Theme(fromFile)
	}
	if inline, ok := k.Get("theme").(map[string]any); ok {
		theme = core.MergeTheme(theme, core.Theme(inline))
	}
	return theme, nil
}

// buildBlocklist treats /.../ entries as patterns and everything else as
// literal tokens.
func buildBlocklist(entries []string) ([]*core.BlocklistRule, error) {
	out := make([]*core.BlocklistRule, 0, len(entries))
	for _, e := range entries {
		if len(e) > 2 && strings.HasPrefix(e, "/") && strings.HasSuffix(e, "/") {
			re, err := regexp.Compile(e[1 : len(e)-1])
			if err != nil {
				return nil, fmt.Errorf("blocklist %q: %w", e, err)
			}
			out = append(out, &core.BlocklistRule{Pattern: re})
			continue
		}
		out = append(out, core.Block(e))
	}
	return out, nil
}

// buildGenerateOptions constructs per-run options from koanf state.
func buildGenerateOptions() core.GenerateOptions {
	return core.GenerateOptions{
		Scope:          k.String("scope"),
		SkipPreflights: getBoolWithFallback("skip-preflights", "skip-preflights", false),
		SkipSafelist:   getBoolWithFallback("skip-safelist", "skip-safelist", false),
		Minify:         getBoolWithFallback("minify", "minify", false),
		ExtendedInfo:   getStringWithFallback("format", "format", "css") == "json",
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	switch {
	case getBoolWithFallback("quiet", "quiet", false):
		level = slog.LevelError
	case getBoolWithFallback("verbose", "verbose", false):
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func boolPtr(b bool) *bool { return &b }

// getStringWithFallback checks the flag key first, then the config file key, then returns the default.
func getStringWithFallback(flagKey, configKey, defaultVal string) string {
	if v := k.String(flagKey); v != "" {
		return v
	}
	if v := k.String(configKey); v != "" {
		return v
	}
	return defaultVal
}

// getStringsWithFallback checks the flag key first, then the config file key, then returns the default.
func getStringsWithFallback(flagKey, configKey string, defaultVal []string) []string {
	if v := k.Strings(flagKey); len(v) > 0 {
		return v
	}
	if v := k.Strings(configKey); len(v) > 0 {
		return v
	}
	return defaultVal
}

// getBoolWithFallback checks the flag key first, then the config file key, then returns the default.
func getBoolWithFallback(flagKey, configKey string, defaultVal bool) bool {
	if k.Exists(flagKey) {
		return k.Bool(flagKey)
	}
	if k.Exists(configKey) {
		return k.Bool(configKey)
	}
	return defaultVal
}
