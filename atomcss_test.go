package atomcss_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yacobolo/atomcss"
	"github.com/yacobolo/atomcss/internal/preset"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestGenerateContent(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "index.html"), `<div class="hover:(m-2 p-4) nope"></div>`)
	writeFile(t, filepath.Join(root, "build", "out.html"), `<div class="m-9"></div>`)
	writeFile(t, filepath.Join(root, ".gitignore"), "build/\n")

	gen, err := atomcss.CreateGenerator(ctx, atomcss.UserConfig{
		ConfigBase: atomcss.ConfigBase{
			Transformers: []*atomcss.Transformer{atomcss.TransformerVariantGroup},
			Content: atomcss.Content{
				Filesystem: []string{"**/*.html"},
				Inline:     []string{"bg-red"},
			},
		},
		Presets: []atomcss.PresetSource{preset.Mini(preset.MiniOptions{})},
	})
	require.NoError(t, err)

	out, err := atomcss.GenerateContent(ctx, gen, root, atomcss.GenerateOptions{Minify: true, SkipPreflights: true})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Scan.FilesScanned)
	assert.Equal(t, 1, out.Scan.FilesSkipped)
	assert.Equal(t,
		`.hover\:m-2:hover{margin:0.5rem;}.hover\:p-4:hover{padding:1rem;}.bg-red{background-color:#ef4444;}`,
		out.CSS())
	assert.Contains(t, out.Unmatched(), "nope")
	assert.NotContains(t, out.Matched, "m-9")
	assert.True(t, out.Tokens.Has("hover:m-2"))
}

func TestGenerateContentBadGlob(t *testing.T) {
	gen, err := atomcss.CreateGenerator(context.Background(), atomcss.UserConfig{
		ConfigBase: atomcss.ConfigBase{Content: atomcss.Content{Filesystem: []string{"[*.html"}}},
	})
	require.NoError(t, err)

	_, err = atomcss.GenerateContent(context.Background(), gen, t.TempDir(), atomcss.GenerateOptions{})
	assert.ErrorContains(t, err, "load content")
}
