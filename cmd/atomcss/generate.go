package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/yacobolo/atomcss"
	"github.com/yacobolo/atomcss/internal/optimize"
	"github.com/yacobolo/atomcss/internal/report"
)

var generateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"gen"},
	Short:   "Generate CSS for the utilities used in content files",
	Long: `Scan the configured content files, match every token against the
rules, variants and shortcuts of the configured presets, and write the
resulting stylesheet.`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	},
	RunE: runGenerate,
}

func init() {
	addGenerateFlags(generateCmd)
}

// addGenerateFlags registers the flags shared by generate, watch and the
// root command.
func addGenerateFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("output", "o", "", "Output CSS file (default: stdout)")
	f.String("format", "css", "Output format: css|json|summary")
	f.Bool("minify", false, "Minify the generated CSS")
	f.Bool("optimize", false, "Post-process the CSS with esbuild")
	f.StringSlice("targets", nil, "Browser targets for --optimize, e.g. chrome80,safari13")
	f.StringSlice("include", nil, "Glob patterns for content files")
	f.StringSlice("exclude", nil, "Glob patterns excluded from content")
	f.String("scope", "", "Selector prefixed to every rule, e.g. .app")
	f.Bool("skip-preflights", false, "Omit preflight CSS")
	f.Bool("skip-safelist", false, "Omit safelisted utilities")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := buildUserConfig()
	if err != nil {
		return err
	}
	gen, err := atomcss.CreateGenerator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}
	return generateAndWrite(ctx, gen, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// generation is one finished run plus what it reports.
type generation struct {
	report.Generation
	Unmatched []string
}

// generateOnce scans content and renders the stylesheet, optimizing it
// layer by layer when requested.
func generateOnce(ctx context.Context, gen *atomcss.Generator) (*generation, error) {
	start := time.Now()
	opts := buildGenerateOptions()

	out, err := atomcss.GenerateContent(ctx, gen, ".", opts)
	if err != nil {
		return nil, err
	}

	if getBoolWithFallback("optimize", "optimize", false) {
		optOpts := optimize.Options{
			Minify:  opts.Minify,
			Targets: getStringsWithFallback("targets", "targets", nil),
		}
		for _, layer := range out.Layers {
			if err := out.SetLayer(ctx, layer, optimize.Layer(optOpts)); err != nil {
				return nil, fmt.Errorf("optimize: %w", err)
			}
		}
	}

	css := out.CSS()
	return &generation{
		Generation: report.Generation{
			Version: version,
			Time:    start,
			Result:  out.GenerateResult,
			CSS:     css,
			Stats: report.Stats{
				FilesScanned: out.Scan.FilesScanned,
				FilesSkipped: out.Scan.FilesSkipped,
				Tokens:       out.Tokens.Len(),
				Matched:      len(out.Matched),
				Layers:       out.Layers,
				Bytes:        len(css),
				Output:       getStringWithFallback("output", "output", "stdout"),
				Duration:     time.Since(start),
			},
		},
		Unmatched: out.Unmatched(),
	}, nil
}

// generateAndWrite runs one generation and writes it to the configured
// output. Status lines go to status so stdout stays clean for CSS.
func generateAndWrite(ctx context.Context, gen *atomcss.Generator, stdout, status io.Writer) error {
	format, err := report.ParseFormat(getStringWithFallback("format", "format", "css"))
	if err != nil {
		return err
	}

	g, err := generateOnce(ctx, gen)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	quiet := getBoolWithFallback("quiet", "quiet", false)
	verbose := getBoolWithFallback("verbose", "verbose", false)
	useColors := report.UseColors(getBoolWithFallback("color", "color", false), os.Stderr)
	reporter := report.NewReporter(status, useColors)

	output := k.String("output")
	if output == "" {
		if err := report.Write(stdout, format, g.Generation, useColors); err != nil {
			return err
		}
	} else {
		if err := writeOutputFile(output, format, g.Generation); err != nil {
			return err
		}
		if !quiet && format != report.FormatSummary {
			reporter.PrintSuccess(g.Stats)
		}
	}

	if verbose && !quiet {
		reporter.PrintUnmatched(g.Unmatched, 50)
	}
	return nil
}

func writeOutputFile(path string, format report.Format, g report.Generation) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	// #nosec G304 - output path comes from trusted configuration
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := report.Write(f, format, g, false); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
