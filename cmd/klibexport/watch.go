package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"klibexport/internal/driver"
)

const watchDebounce = 300 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch [flags] [klib...]",
	Short: "Re-export whenever an input klib changes",
	Long: `Watch runs export once, then re-runs it each time one of the input klibs
changes on disk. Unchanged klibs are served from memory between runs.`,
	RunE: runWatch,
}

func init() {
	registerExportFlags(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	opts, err := readExportOptions(cmd, args)
	if err != nil {
		return err
	}
	// прогресс-бар мешает повторным запускам
	opts.ui = uiModeOff
	opts.request.Memo = driver.NewModuleCache(len(opts.request.Inputs))
	if cache, ok := openDiskCache(cmd); ok {
		opts.request.Cache = cache
	}
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create file watcher")
	}
	defer watcher.Close()
	targets, err := addWatchTargets(watcher, opts.paths)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()
	rerun := func() {
		if err := exportOnce(ctx, cmd, opts); err != nil && !errors.Is(err, errStrict) {
			printFatal(stderr, err)
		}
	}
	rerun()
	fmt.Fprintf(stderr, "watching %d input(s); press Ctrl+C to stop\n", len(opts.paths))

	output, _ := filepath.Abs(opts.output)
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil || !targets.matches(name) || isUnder(name, output) {
				continue
			}
			// новые подкаталоги распакованного klib тоже отслеживаем
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(name); err == nil && info.IsDir() {
					_ = watcher.Add(name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			fmt.Fprintf(stderr, "change detected at %s, re-exporting\n", time.Now().Format(time.TimeOnly))
			rerun()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(stderr, "warning: watch: %v\n", err)
		}
	}
}

// watchTargets are the absolute input paths; directories match everything below them.
type watchTargets struct {
	dirs  []string
	files map[string]struct{}
}

func (t watchTargets) matches(abs string) bool {
	if _, ok := t.files[abs]; ok {
		return true
	}
	for _, d := range t.dirs {
		if isUnder(abs, d) {
			return true
		}
	}
	return false
}

// addWatchTargets registers every directory of unpacked klibs and the parent
// directory of each archive (editors and build tools replace files by rename).
func addWatchTargets(w *fsnotify.Watcher, paths []string) (watchTargets, error) {
	targets := watchTargets{files: make(map[string]struct{})}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return targets, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return targets, errors.Wrapf(err, "watch %s", p)
		}
		if !info.IsDir() {
			targets.files[abs] = struct{}{}
			if err := w.Add(filepath.Dir(abs)); err != nil {
				return targets, errors.Wrapf(err, "watch %s", filepath.Dir(abs))
			}
			continue
		}
		targets.dirs = append(targets.dirs, abs)
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return w.Add(path)
			}
			return nil
		})
		if err != nil {
			return targets, errors.Wrapf(err, "watch %s", p)
		}
	}
	return targets, nil
}

func isUnder(path, dir string) bool {
	if dir == "" {
		return false
	}
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
