package core

import (
	"context"
	"fmt"
	"regexp"
)

var (
	splitPattern = regexp.MustCompile("[\\\\:]?[\\s'\"`;{}]+")
	validToken   = regexp.MustCompile(`[\w\x{00A0}-\x{FFFF}%-?]`)
)

// SplitExtractor splits source text on whitespace, quotes and braces. It is
// the default extractor unless a config replaces or disables it.
var SplitExtractor = &Extractor{
	Name: "split",
	Extract: func(_ context.Context, ec *ExtractorContext) ([]string, error) {
		return SplitCode(ec.Code), nil
	},
}

// SplitCode returns every candidate token in code, repeats included.
func SplitCode(code string) []string {
	parts := splitPattern.Split(code, -1)
	out := parts[:0]
	for _, p := range parts {
		if p != "" && validToken.MatchString(p) {
			out = append(out, p)
		}
	}
	return out
}

// Extract runs the extractor pipeline over code and adds the tokens to set,
// which is created when nil.
func (g *Generator) Extract(ctx context.Context, code, id string, set *CountableSet) (*CountableSet, error) {
	return applyExtractors(ctx, g.Config(), code, id, set)
}

func applyExtractors(ctx context.Context, cfg *ResolvedConfig, code, id string, set *CountableSet) (*CountableSet, error) {
	if set == nil {
		set = NewCountableSet()
	}
	ec := &ExtractorContext{Code: code, ID: id, Extracted: set, EnvMode: cfg.EnvMode}
	for _, e := range cfg.Extractors {
		if e.Extract == nil {
			continue
		}
		tokens, err := e.Extract(ctx, ec)
		if err != nil {
			return nil, fmt.Errorf("extractor %q: %w", e.Name, err)
		}
		for _, t := range tokens {
			if t != "" {
				set.Add(t)
			}
		}
	}
	return set, nil
}
