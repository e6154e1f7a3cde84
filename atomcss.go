// Package atomcss is an on-demand atomic CSS engine.
//
// Tokens are extracted from source text, matched against rules, variants
// and shortcuts, and only the CSS that is actually used is emitted,
// organized into ordered layers.
//
// # Generation
//
// Build a generator from presets and generate CSS for a piece of markup:
//
//	gen, err := atomcss.CreateGenerator(ctx, atomcss.UserConfig{
//		Presets: []atomcss.PresetSource{preset.Mini(preset.MiniOptions{})},
//	})
//	res, err := gen.Generate(ctx, `<div class="m-2 hover:text-red-500">`, atomcss.GenerateOptions{})
//	fmt.Println(res.CSS())
//
// # Content
//
// GenerateContent reads the files and inline snippets named by the config's
// Content section, runs the transformers and extractors over them, and
// generates the stylesheet for everything found:
//
//	out, err := atomcss.GenerateContent(ctx, gen, ".", atomcss.GenerateOptions{Minify: true})
//
// # CLI Tool
//
// atomcss also provides a CLI tool. Install with:
//
//	go install github.com/yacobolo/atomcss/cmd/atomcss@latest
package atomcss

import (
	"context"
	"fmt"

	"github.com/yacobolo/atomcss/internal/content"
	"github.com/yacobolo/atomcss/internal/core"
)

// Re-exported engine types.
type (
	Generator       = core.Generator
	UserConfig      = core.UserConfig
	ConfigBase      = core.ConfigBase
	ResolvedConfig  = core.ResolvedConfig
	Preset          = core.Preset
	PresetSource    = core.PresetSource
	PresetFactory   = core.PresetFactory
	Rule            = core.Rule
	RuleMeta        = core.RuleMeta
	RuleContext     = core.RuleContext
	Variant         = core.Variant
	VariantHandler  = core.VariantHandler
	VariantContext  = core.VariantContext
	Shortcut        = core.Shortcut
	Theme           = core.Theme
	Preflight       = core.Preflight
	Extractor       = core.Extractor
	Transformer     = core.Transformer
	CSSValue        = core.CSSValue
	CSSEntries      = core.CSSEntries
	CSSObject       = core.CSSObject
	RawCSS          = core.RawCSS
	GenerateOptions = core.GenerateOptions
	GenerateResult  = core.GenerateResult
	StringifiedUtil = core.StringifiedUtil
	CountableSet    = core.CountableSet
	Content         = core.Content
	CSSLayerOutput  = core.CSSLayerOutput
	ScanStats       = content.ScanStats
)

// TransformerVariantGroup expands variant groups such as hover:(a b) in
// source text before extraction.
var TransformerVariantGroup = core.TransformerVariantGroup

// CreateGenerator resolves cfg and returns a ready generator.
func CreateGenerator(ctx context.Context, cfg UserConfig) (*Generator, error) {
	return core.CreateGenerator(ctx, cfg, UserConfig{})
}

// ContentResult is the outcome of GenerateContent.
type ContentResult struct {
	*GenerateResult
	// Tokens are every candidate extracted from the content, with counts.
	Tokens *CountableSet
	Scan   ScanStats
}

// Unmatched returns the extracted tokens that produced no CSS, in
// extraction order.
func (r *ContentResult) Unmatched() []string {
	var out []string
	for _, t := range r.Tokens.Values() {
		if _, ok := r.Matched[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

// GenerateContent scans the content configured on gen relative to root and
// generates CSS for every token found.
func GenerateContent(ctx context.Context, gen *Generator, root string, opts GenerateOptions) (*ContentResult, error) {
	cfg := gen.Config()
	scanner := content.NewScanner(root, cfg.Content.Exclude)
	sources, stats, err := scanner.Load(ctx, cfg.Content.Filesystem, cfg.Content.Inline)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}

	tokens := core.NewCountableSet()
	for _, src := range sources {
		code, err := gen.Transform(ctx, src.Code, src.ID)
		if err != nil {
			return nil, err
		}
		if _, err := gen.Extract(ctx, code, src.ID, tokens); err != nil {
			return nil, fmt.Errorf("extract %s: %w", src.ID, err)
		}
	}

	res, err := gen.GenerateTokens(ctx, tokens, opts)
	if err != nil {
		return nil, err
	}
	return &ContentResult{GenerateResult: res, Tokens: tokens, Scan: stats}, nil
}
