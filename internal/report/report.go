// Package report prints what a generation produced: the stylesheet itself,
// a human summary, a JSON export, or per-token details for inspect.
package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/yacobolo/atomcss/internal/core"
)

// Format selects how a generation is written.
type Format string

const (
	// FormatCSS writes the stylesheet only.
	FormatCSS Format = "css"
	// FormatJSON exports layers, tokens and stats for tooling.
	FormatJSON Format = "json"
	// FormatSummary prints statistics for humans.
	FormatSummary Format = "summary"
)

// ParseFormat validates a --format value. Empty means FormatCSS.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatCSS, nil
	case FormatCSS, FormatJSON, FormatSummary:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want css, json or summary)", s)
	}
}

// Stats summarizes one generation.
type Stats struct {
	FilesScanned int
	FilesSkipped int
	Tokens       int // Distinct candidate tokens
	Matched      int // Tokens that produced CSS
	Layers       []string
	Bytes        int
	Output       string
	Duration     time.Duration
}

// MatchRate is the share of tokens that produced CSS, in percent.
func (s Stats) MatchRate() float64 {
	if s.Tokens == 0 {
		return 0
	}
	return float64(s.Matched) / float64(s.Tokens) * 100
}

// Generation bundles everything the writers need.
type Generation struct {
	Version string
	Time    time.Time
	Result  *core.GenerateResult
	CSS     string
	Stats   Stats
}

// Write renders gen in format.
func Write(w io.Writer, format Format, gen Generation, useColors bool) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, gen)
	case FormatSummary:
		NewReporter(w, useColors).PrintSummary(gen.Stats)
		return nil
	default:
		if gen.CSS == "" {
			return nil
		}
		_, err := io.WriteString(w, gen.CSS+"\n")
		return err
	}
}

// Reporter prints human readable output.
type Reporter struct {
	w         io.Writer
	useColors bool
}

// NewReporter creates a reporter writing to w.
func NewReporter(w io.Writer, useColors bool) *Reporter {
	return &Reporter{w: w, useColors: useColors}
}

// UseColors reports whether the reporter emits ANSI styles.
func (r *Reporter) UseColors() bool {
	return r.useColors
}

// PrintSummary outputs generation statistics.
func (r *Reporter) PrintSummary(s Stats) {
	fmt.Fprintln(r.w, RenderStyle(StyleHeader, "atomcss", r.useColors))
	fmt.Fprintln(r.w, "-------")

	fmt.Fprintf(r.w, "Files Scanned:   %d\n", s.FilesScanned)
	if s.FilesSkipped > 0 {
		fmt.Fprintf(r.w, "Files Skipped:   %d\n", s.FilesSkipped)
	}
	fmt.Fprintf(r.w, "Tokens:          %d\n", s.Tokens)
	fmt.Fprintf(r.w, "Matched:         %d\n", s.Matched)
	fmt.Fprintf(r.w, "Layers:          %s\n", strings.Join(s.Layers, ", "))
	fmt.Fprintf(r.w, "Size:            %s\n", formatBytes(s.Bytes))
	if s.Output != "" {
		fmt.Fprintf(r.w, "Output:          %s\n", s.Output)
	}
	if s.Duration > 0 {
		fmt.Fprintf(r.w, "Duration:        %s\n", s.Duration.Round(time.Millisecond))
	}

	fmt.Fprintln(r.w, "")
	fmt.Fprintln(r.w, RenderStyle(StyleHeader, "Match Rate", r.useColors))
	fmt.Fprintln(r.w, "----------")
	printProgressBar(r.w, s.MatchRate())
}

// PrintSuccess prints a one-line confirmation.
func (r *Reporter) PrintSuccess(s Stats) {
	fmt.Fprintf(r.w, "%s %d utilit%s, %s → %s\n",
		RenderStyle(StyleOK, "✓", r.useColors),
		s.Matched, pluralize(s.Matched, "y", "ies"),
		formatBytes(s.Bytes), s.Output)
}

// PrintInspect shows how a token was matched.
func (r *Reporter) PrintInspect(token string, utils []core.StringifiedUtil) {
	fmt.Fprintln(r.w, RenderStyle(StyleHeader, token, r.useColors))
	if len(utils) == 0 {
		fmt.Fprintf(r.w, "  %s\n", RenderStyle(StyleWarn, "no match", r.useColors))
		return
	}

	for i, u := range utils {
		if i > 0 {
			fmt.Fprintln(r.w, "  --")
		}
		selector := u.Selector
		if selector == "" {
			selector = "(raw css)"
		}
		r.field("selector", selector)
		if u.Parent != "" {
			r.field("parent", strings.ReplaceAll(u.Parent, " $$ ", " > "))
		}
		r.field("layer", cmp.Or(u.Meta.Layer, core.LayerDefault))
		r.field("body", u.Body)
		if u.Context == nil {
			continue
		}
		if names := ruleNames(u.Context); len(names) > 0 {
			r.field("rules", strings.Join(names, ", "))
		}
		if names := shortcutNames(u.Context); len(names) > 0 {
			r.field("shortcuts", strings.Join(names, ", "))
		}
		if names := variantNames(u.Context); len(names) > 0 {
			r.field("variants", strings.Join(names, ", "))
		}
	}
}

func (r *Reporter) field(name, value string) {
	if value == "" {
		value = "-"
	}
	fmt.Fprintf(r.w, "  %s %s\n", RenderStyle(StyleDim, fmt.Sprintf("%-9s", name), r.useColors), value)
}

// PrintUnmatched lists tokens that produced no CSS, at most limit of them.
func (r *Reporter) PrintUnmatched(tokens []string, limit int) {
	if len(tokens) == 0 {
		return
	}
	fmt.Fprintln(r.w, "")
	fmt.Fprintln(r.w, RenderStyle(StyleWarn, "Unmatched", r.useColors))
	fmt.Fprintln(r.w, "---------")
	for i, t := range tokens {
		if limit > 0 && i >= limit {
			fmt.Fprintf(r.w, "… and %d more\n", len(tokens)-limit)
			break
		}
		fmt.Fprintf(r.w, "• %s\n", t)
	}
}

func ruleNames(rc *core.RuleContext) []string {
	names := make([]string, 0, len(rc.Rules))
	for _, rule := range rc.Rules {
		if !slices.Contains(names, rule.Name()) {
			names = append(names, rule.Name())
		}
	}
	return names
}

func shortcutNames(rc *core.RuleContext) []string {
	names := make([]string, 0, len(rc.Shortcuts))
	for _, s := range rc.Shortcuts {
		names = append(names, s.Name())
	}
	return names
}

func variantNames(rc *core.RuleContext) []string {
	names := make([]string, 0, len(rc.Variants))
	for _, v := range rc.Variants {
		if v.Name != "" {
			names = append(names, v.Name)
		}
	}
	return names
}

func printProgressBar(w io.Writer, percentage float64) {
	barWidth := 20
	filled := int(percentage / 100 * float64(barWidth))
	fmt.Fprintf(w, "[%s%s] %.1f%%\n",
		strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled), percentage)
}

func formatBytes(n int) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%.1f KiB", float64(n)/1024)
}

func pluralize(count int, one, many string) string {
	if count == 1 {
		return one
	}
	return many
}
