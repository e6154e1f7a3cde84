package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"

	"github.com/yacobolo/atomcss"
	"github.com/yacobolo/atomcss/internal/content"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Regenerate CSS whenever content or config changes",
	Long: `Generate once, then watch the directories holding content files and
the config file. Changes are debounced; a config change rebuilds the
generator before regenerating.`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	},
	RunE: runWatch,
}

func init() {
	addGenerateFlags(watchCmd)
	watchCmd.Flags().Duration("debounce", 100*time.Millisecond, "Delay before regenerating after a change")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !k.Exists("env-mode") {
		_ = k.Set("env-mode", "dev")
	}
	cfg, err := buildUserConfig()
	if err != nil {
		return err
	}
	gen, err := atomcss.CreateGenerator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}
	logger := cfg.Logger

	if err := generateAndWrite(ctx, gen, cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	configPath, _ := cmd.Flags().GetString("config")
	w := &contentWatcher{
		watcher:    watcher,
		logger:     logger,
		configPath: filepath.Clean(configPath),
		outputPath: filepath.Clean(k.String("output")),
	}
	if err := w.addDirs(gen.Config().Content); err != nil {
		return err
	}

	debounce := k.Duration("watch.debounce")
	if cmd.Flags().Changed("debounce") || debounce <= 0 {
		debounce, _ = cmd.Flags().GetDuration("debounce")
	}
	logger.Info("watching for changes", "dirs", len(watcher.WatchList()), "debounce", debounce)

	var (
		timer         *time.Timer
		fire          <-chan time.Time
		configChanged bool
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(evt) {
				continue
			}
			if filepath.Clean(evt.Name) == w.configPath {
				configChanged = true
			}
			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					_ = watcher.Add(evt.Name)
				}
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)

		case <-fire:
			fire = nil
			if configChanged {
				configChanged = false
				if err := reloadGenerator(ctx, cmd, gen); err != nil {
					logger.Error("reload config", "error", err)
					continue
				}
				if err := w.addDirs(gen.Config().Content); err != nil {
					logger.Warn("watch content", "error", err)
				}
			}
			if err := generateAndWrite(ctx, gen, cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
				logger.Error("regenerate", "error", err)
			}
		}
	}
}

// reloadGenerator re-reads configuration from scratch and swaps it into gen.
func reloadGenerator(ctx context.Context, cmd *cobra.Command, gen *atomcss.Generator) error {
	k = koanf.New(".")
	if err := loadConfig(cmd); err != nil {
		return err
	}
	if !k.Exists("env-mode") {
		_ = k.Set("env-mode", "dev")
	}
	cfg, err := buildUserConfig()
	if err != nil {
		return err
	}
	return gen.SetConfig(ctx, cfg, atomcss.UserConfig{})
}

type contentWatcher struct {
	watcher    *fsnotify.Watcher
	logger     *slog.Logger
	configPath string
	outputPath string
}

// addDirs watches every directory holding a content file, plus the
// directory of the config file.
func (w *contentWatcher) addDirs(c atomcss.Content) error {
	files, _, err := content.NewScanner(".", c.Exclude).Files(c.Filesystem)
	if err != nil {
		return err
	}
	dirs := append(content.Dirs(files), filepath.Dir(w.configPath))
	for _, dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Warn("watch directory", "dir", dir, "error", err)
		}
	}
	return nil
}

// relevant drops events for the generated output and chmod-only changes.
func (w *contentWatcher) relevant(evt fsnotify.Event) bool {
	if evt.Op == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(evt.Name) != w.outputPath
}
