package app

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ludo-technologies/cblscan/domain"
	"github.com/ludo-technologies/cblscan/internal/constants"
)

// DefaultDebounce is how long the watcher waits for further changes before re-running
const DefaultDebounce = 300 * time.Millisecond

// WatchHandler receives the outcome of every analysis run
type WatchHandler func(result *AnalyzeResult, err error)

// WatchUseCase re-runs the analysis whenever a program or copybook changes
type WatchUseCase struct {
	analyze    *AnalyzeUseCase
	debounce   time.Duration
	extensions []string
	invalidate func()
	logger     *slog.Logger
}

// NewWatchUseCase creates a watch use case around an analyze use case
func NewWatchUseCase(analyze *AnalyzeUseCase) *WatchUseCase {
	exts := append([]string(nil), constants.DefaultSourceExtensions...)
	exts = append(exts, constants.DefaultCopybookExtensions...)
	return &WatchUseCase{
		analyze:    analyze,
		debounce:   DefaultDebounce,
		extensions: exts,
		logger:     analyze.logger,
	}
}

// WithDebounce sets the debounce window
func (uc *WatchUseCase) WithDebounce(d time.Duration) *WatchUseCase {
	if d > 0 {
		uc.debounce = d
	}
	return uc
}

// WithInvalidate registers a callback run before each re-analysis,
// used to drop cached copybook bodies.
func (uc *WatchUseCase) WithInvalidate(fn func()) *WatchUseCase {
	uc.invalidate = fn
	return uc
}

// Run analyzes once, then again after each batch of relevant changes.
// It blocks until ctx is cancelled.
func (uc *WatchUseCase) Run(ctx context.Context, req domain.AnalyzeRequest, handler WatchHandler) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return domain.NewAnalysisError("failed to start file watcher", err)
	}
	defer watcher.Close()

	roots := append(append([]string(nil), req.Paths...), req.IncludeDirs...)
	for _, root := range roots {
		if err := uc.addRecursive(watcher, root); err != nil {
			return domain.NewFileNotFoundError(root, err)
		}
	}

	uc.runOnce(ctx, req, handler)

	var timer *time.Timer
	var timerC <-chan time.Time
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = uc.addRecursive(watcher, event.Name)
					continue
				}
			}
			if !uc.relevant(event) {
				continue
			}
			pending[event.Name] = true
			if timer == nil {
				timer = time.NewTimer(uc.debounce)
				timerC = timer.C
			} else {
				timer.Reset(uc.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			uc.logger.Warn("file watcher error", slog.Any("error", err))

		case <-timerC:
			timer, timerC = nil, nil
			uc.logger.Info("changes detected", slog.Int("files", len(pending)))
			clear(pending)
			uc.runOnce(ctx, req, handler)
		}
	}
}

func (uc *WatchUseCase) runOnce(ctx context.Context, req domain.AnalyzeRequest, handler WatchHandler) {
	if uc.invalidate != nil {
		uc.invalidate()
	}
	result, err := uc.analyze.Execute(ctx, req)
	if handler != nil {
		handler(result, err)
	}
}

// relevant reports whether event touches a program or copybook
func (uc *WatchUseCase) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	ext := filepath.Ext(event.Name)
	for _, known := range uc.extensions {
		if strings.EqualFold(ext, known) {
			return true
		}
	}
	return false
}

// addRecursive watches root and every non-hidden directory below it.
// Directories matched by exclude patterns are watched too.
// A file root watches its parent directory.
func (uc *WatchUseCase) addRecursive(watcher *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return watcher.Add(filepath.Dir(root))
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
