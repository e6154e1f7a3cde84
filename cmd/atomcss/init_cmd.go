package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default .atomcss.yaml config file",
	Long:  `Create a .atomcss.yaml configuration file in the current directory with sensible defaults.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		force, _ := cmd.Flags().GetBool("force")

		if _, err := os.Stat(defaultConfigPath); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", defaultConfigPath)
		}

		if err := os.WriteFile(defaultConfigPath, []byte(defaultConfig), 0o644); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", defaultConfigPath)
		return nil
	},
}

const defaultConfig = `# atomcss configuration
# Every key can also be set as ATOMCSS_<KEY> (dots become underscores).

presets:
  - mini

mini:
  dark-mode: class      # class | media
  prefix: ""
  preflight: true

content:
  filesystem:
    - "**/*.{html,htm,js,jsx,ts,tsx,vue,svelte,templ}"
  exclude:
    - "node_modules/**"
  inline: []

# Output
output: ""              # empty writes to stdout
format: css             # css | json | summary
minify: false
optimize: false         # post-process with esbuild
targets: []             # e.g. [chrome80, safari13]
css-layers: false       # wrap layers in native @layer blocks
variant-group: true     # expand hover:(a b) before extraction

# Extra layers and their order (lower comes first)
layers: {}

safelist: []
blocklist: []           # literal tokens or /regex/

# theme-file: theme.toml

# Inline rules, shortcuts and variants
rules: []
#  - name: btn-reset
#    css: { border: none, background: transparent }
#  - pattern: "^gap-(\\d+)$"
#    css: { gap: "${1}px" }
shortcuts: []
#  - name: btn
#    expand: "p-4 bg-blue text-white hover:bg-blue-900"
variants: []
#  - prefix: print
#    parent: "@media print"

preflights: []
#  - path: styles/layers/base.css

watch:
  debounce: 100ms
`

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite existing config file")
}
