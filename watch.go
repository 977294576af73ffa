package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const watchDebounce = 300 * time.Millisecond

func (a *app) newWatchCmd() *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the check whenever the mirrored partitions change",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runWatch(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), debounce)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watchDebounce, "quiet period before a re-check")
	return cmd
}

// runWatch checks once, then again after every burst of file system
// events below the mirrored partition roots. It returns when ctx is done.
func (a *app) runWatch(ctx context.Context, stdout, stderr io.Writer, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch init failed: %w", err)
	}
	defer watcher.Close()

	outDir, _ := filepath.Abs(a.cfg.Paths.OutputDir)
	watched := 0
	for _, root := range partitionRoots {
		n, err := addWatchRecursive(watcher, a.cfg.HostPath(root), outDir)
		if err != nil {
			return fmt.Errorf("watch failed: %w", err)
		}
		watched += n
	}
	if watched == 0 {
		return fmt.Errorf("nothing to watch below %s", a.cfg.Paths.MirrorRoot)
	}

	trigger := func() {
		rep, err := runCheck(a.cfg, a.log)
		if err == nil {
			err = writeOutputs(a.cfg, rep)
		}
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
			return
		}
		printHUD(stdout, stderr, rep)
	}
	trigger()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if isUnder(ev.Name, outDir) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if _, err := addWatchRecursive(watcher, ev.Name, outDir); err != nil {
						a.log.Warn("cannot watch new directory", "path", ev.Name, "error", err)
					}
				}
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(stderr, "ERROR: watch error: %v\n", err)
		}
	}
}

// addWatchRecursive watches root and its subdirectories, skipping skipDir.
// A missing root is not an error.
func addWatchRecursive(w *fsnotify.Watcher, root, skipDir string) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				return fs.SkipAll
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if isUnder(path, skipDir) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

func isUnder(path, dir string) bool {
	if dir == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator))
}
