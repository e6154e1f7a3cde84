// Package preflight turns plain CSS files into generator preflights.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"

	"github.com/yacobolo/atomcss/internal/core"
)

// Block is the CSS of one layer found in a file.
type Block struct {
	Layer string
	CSS   string
}

// Split lexes content and separates top-level `@layer name { ... }` blocks
// from the rest, which is assigned to fallback. Comments are dropped and
// `@layer a, b;` statements are removed since the generator emits its own.
// With minify, insignificant whitespace is removed as well.
func Split(content, fallback string, minify bool) ([]Block, error) {
	lexer := css.NewLexer(parse.NewInputString(content))
	writers := map[string]*tokenWriter{}
	var order []string
	writer := func(layer string) *tokenWriter {
		if w, ok := writers[layer]; ok {
			return w
		}
		w := &tokenWriter{minify: minify}
		writers[layer] = w
		order = append(order, layer)
		return w
	}

	depth := 0
	layerDepth := -1
	current := fallback
	for {
		tt, text := lexer.Next()
		if tt == css.ErrorToken {
			if err := lexer.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("lex css: %w", err)
			}
			break
		}

		if tt == css.AtKeywordToken && depth == 0 && string(text) == "@layer" {
			name, opened := readLayerName(lexer)
			if opened {
				current = name
				if current == "" {
					current = fallback
				}
				layerDepth = depth
				depth++
			}
			continue
		}

		switch tt {
		case css.CommentToken:
			continue
		case css.LeftBraceToken:
			depth++
		case css.RightBraceToken:
			depth--
			if depth == layerDepth {
				layerDepth = -1
				current = fallback
				continue
			}
		}
		writer(current).write(tt, text)
	}

	blocks := make([]Block, 0, len(order))
	for _, layer := range order {
		if out := strings.TrimSpace(writers[layer].String()); out != "" {
			blocks = append(blocks, Block{Layer: layer, CSS: out})
		}
	}
	return blocks, nil
}

// readLayerName consumes an @layer prelude. It reports whether a block was
// opened; statements ending in ';' report false.
func readLayerName(lexer *css.Lexer) (string, bool) {
	var name strings.Builder
	for {
		tt, text := lexer.Next()
		switch tt {
		case css.ErrorToken, css.SemicolonToken:
			return "", false
		case css.LeftBraceToken:
			return name.String(), true
		case css.IdentToken, css.DelimToken:
			name.Write(text)
		}
	}
}

// tokenWriter re-serializes tokens, collapsing whitespace when minifying.
type tokenWriter struct {
	minify       bool
	b            strings.Builder
	pendingSpace bool
}

// Whitespace after tightAfter or before tightBefore never matters. A space
// before ':' does, as in "a :hover".
const (
	tightAfter  = "{};,>:("
	tightBefore = "{};,>)!"
)

func (w *tokenWriter) write(tt css.TokenType, text []byte) {
	if tt == css.WhitespaceToken {
		if w.minify {
			w.pendingSpace = w.b.Len() > 0
			return
		}
		w.b.Write(text)
		return
	}
	if w.pendingSpace {
		out := w.b.String()
		last := out[len(out)-1]
		if !strings.ContainsRune(tightAfter, rune(last)) && !strings.ContainsRune(tightBefore, rune(text[0])) {
			w.b.WriteByte(' ')
		}
		w.pendingSpace = false
	}
	w.b.Write(text)
}

func (w *tokenWriter) String() string {
	return w.b.String()
}

// InferLayer derives a layer from a path shaped like layers/{name}/... or
// layers/{name}.css, falling back to the preflights layer.
func InferLayer(path string) string {
	parts := strings.Split(strings.ReplaceAll(path, "\\", "/"), "/")
	if i := slices.Index(parts, "layers"); i >= 0 && i+1 < len(parts) {
		if name := strings.TrimSuffix(parts[i+1], ".css"); name != "" {
			return name
		}
	}
	return core.LayerPreflights
}

// Load reads a CSS file and returns one preflight per layer it contains.
// An empty layer is inferred from the path.
func Load(path, layer string, minify bool) ([]*core.Preflight, error) {
	// #nosec G304 - path comes from trusted configuration
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preflight: %w", err)
	}
	if layer == "" {
		layer = InferLayer(path)
	}
	blocks, err := Split(string(content), layer, minify)
	if err != nil {
		return nil, fmt.Errorf("preflight %s: %w", path, err)
	}
	preflights := make([]*core.Preflight, 0, len(blocks))
	for _, b := range blocks {
		preflights = append(preflights, Static(b.Layer, b.CSS))
	}
	return preflights, nil
}

// Static returns a preflight that always emits cssText.
func Static(layer, cssText string) *core.Preflight {
	return &core.Preflight{
		Layer: layer,
		GetCSS: func(context.Context, *core.PreflightContext) (string, error) {
			return cssText, nil
		},
	}
}
