// Package optimize post-processes generated CSS with esbuild's CSS
// transformer: minification plus syntax lowering for browser targets.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

// Options selects what esbuild does to the stylesheet.
type Options struct {
	Minify bool
	// Targets are browser versions such as "chrome80" or "safari13.1".
	Targets []string
}

var engineNames = map[string]esbuild.EngineName{
	"chrome":  esbuild.EngineChrome,
	"edge":    esbuild.EngineEdge,
	"firefox": esbuild.EngineFirefox,
	"ie":      esbuild.EngineIE,
	"ios":     esbuild.EngineIOS,
	"opera":   esbuild.EngineOpera,
	"safari":  esbuild.EngineSafari,
}

// ParseTargets turns "chrome80"-style strings into esbuild engines.
func ParseTargets(targets []string) ([]esbuild.Engine, error) {
	engines := make([]esbuild.Engine, 0, len(targets))
	for _, raw := range targets {
		t := strings.ToLower(strings.TrimSpace(raw))
		if t == "" {
			continue
		}
		i := strings.IndexFunc(t, func(r rune) bool { return r >= '0' && r <= '9' })
		if i <= 0 {
			return nil, fmt.Errorf("target %q: expected a browser name followed by a version", raw)
		}
		name, ok := engineNames[t[:i]]
		if !ok {
			return nil, fmt.Errorf("target %q: unknown browser %q", raw, t[:i])
		}
		engines = append(engines, esbuild.Engine{Name: name, Version: t[i:]})
	}
	return engines, nil
}

// CSS runs the esbuild transform over css.
func CSS(css string, opts Options) (string, error) {
	if strings.TrimSpace(css) == "" {
		return css, nil
	}
	engines, err := ParseTargets(opts.Targets)
	if err != nil {
		return "", err
	}
	result := esbuild.Transform(css, esbuild.TransformOptions{
		Loader:           esbuild.LoaderCSS,
		Sourcefile:       "atomcss.css",
		MinifyWhitespace: opts.Minify,
		MinifySyntax:     opts.Minify,
		Engines:          engines,
		LegalComments:    esbuild.LegalCommentsNone,
		LogLevel:         esbuild.LogLevelSilent,
	})
	if err := collectErrors(result.Errors); err != nil {
		return "", err
	}
	out := string(result.Code)
	if opts.Minify {
		out = strings.TrimRight(out, "\n")
	}
	return out, nil
}

// Layer adapts CSS for GenerateResult.SetLayer.
func Layer(opts Options) func(ctx context.Context, css string) (string, error) {
	return func(ctx context.Context, css string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return CSS(css, opts)
	}
}

func collectErrors(msgs []esbuild.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	errs := make([]error, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			errs = append(errs, fmt.Errorf("esbuild: %d:%d: %s", m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		errs = append(errs, fmt.Errorf("esbuild: %s", m.Text))
	}
	return errors.Join(errs...)
}
