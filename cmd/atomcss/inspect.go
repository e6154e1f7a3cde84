package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yacobolo/atomcss"
	"github.com/yacobolo/atomcss/internal/report"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect TOKEN...",
	Short: "Show how tokens resolve to CSS",
	Long: `Resolve each token with the configured presets and print the
selector, parent, layer and body it produces, plus the rules, shortcuts
and variants that matched. Variant groups such as hover:(m-2 p-4) are
expanded first.`,
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	},
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := buildUserConfig()
	if err != nil {
		return err
	}
	cfg.Details = boolPtr(true)

	gen, err := atomcss.CreateGenerator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}

	reporter := report.NewReporter(cmd.OutOrStdout(),
		report.UseColors(getBoolWithFallback("color", "color", false), os.Stdout))

	var tokens []string
	for _, arg := range args {
		code, err := gen.Transform(ctx, arg, "inspect")
		if err != nil {
			return err
		}
		tokens = append(tokens, strings.Fields(code)...)
	}

	for i, token := range tokens {
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		utils, err := gen.ParseToken(ctx, token, "")
		if err != nil {
			return fmt.Errorf("inspect %q: %w", token, err)
		}
		reporter.PrintInspect(token, utils)
	}
	return nil
}
