package style

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/go-drift/lattice/pkg/errors"
)

// DefaultDebounce is how long the watcher waits for a burst of writes to
// settle before re-parsing.
const DefaultDebounce = 50 * time.Millisecond

// Watcher re-parses sheet files when they change on disk and hands each new
// sheet to OnReload. OnReload runs on the watcher goroutine, so it should
// queue the sheet for the scheduler rather than calling Store.Reload.
type Watcher struct {
	Name     string
	Paths    []string
	Debounce time.Duration
	OnReload func(*Sheet)
	Logger   *slog.Logger
}

// NewWatcher creates a watcher for the given sheet files.
func NewWatcher(name string, paths []string, onReload func(*Sheet)) *Watcher {
	return &Watcher{Name: name, Paths: paths, Debounce: DefaultDebounce, OnReload: onReload}
}

// Run watches until ctx is done. A sheet that fails to parse is reported
// and the previous sheet stays active.
func (w *Watcher) Run(ctx context.Context) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return &errors.LatticeError{Op: "style.Watcher.Run", Kind: errors.KindConfig, Err: err}
	}
	defer fw.Close()

	// Editors often replace files instead of writing them, so watch the
	// directories and filter by name.
	tracked := make(map[string]bool, len(w.Paths))
	dirs := make(map[string]bool)
	for _, p := range w.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return &errors.LatticeError{Op: "style.Watcher.Run", Kind: errors.KindConfig, Err: err}
		}
		tracked[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for d := range dirs {
		if err := fw.Add(d); err != nil {
			return &errors.LatticeError{Op: "style.Watcher.Run", Kind: errors.KindConfig, Err: err}
		}
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(ev.Name)
			if !tracked[abs] || !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			logger.Debug("style sheet changed", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			errors.Report(&errors.LatticeError{Op: "style.Watcher.Run", Kind: errors.KindConfig, Err: err})
		case <-timer.C:
			sheet, err := LoadFiles(w.Name, w.Paths...)
			if err != nil {
				errors.Report(asLatticeError("style.Watcher.Run", err))
				continue
			}
			logger.Info("style sheet reloaded", "sheet", w.Name, "rules", sheet.Len(), "warnings", len(sheet.Warnings()))
			if w.OnReload != nil {
				w.OnReload(sheet)
			}
		}
	}
}

func asLatticeError(op string, err error) *errors.LatticeError {
	if le, ok := err.(*errors.LatticeError); ok {
		return le
	}
	return &errors.LatticeError{Op: op, Kind: errors.KindStyle, Err: err}
}
