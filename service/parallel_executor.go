package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ludo-technologies/cblscan/domain"
)

// DefaultTimeout bounds a whole batch when the request sets none
const DefaultTimeout = 5 * time.Minute

// DefaultTaskDescription labels the progress bar of a batch
const DefaultTaskDescription = "Structuring programs"

// ErrNotStarted marks tasks the batch deadline or a cancellation prevented from running
var ErrNotStarted = errors.New("not started")

// TaskError is the failure of one task in a batch
type TaskError struct {
	TaskName string
	Err      error

	// index is the submission position, used to report failures in input order
	index int
}

// Error implements the error interface
func (e TaskError) Error() string {
	return fmt.Sprintf("[%s] %v", e.TaskName, e.Err)
}

// Unwrap returns the underlying error
func (e TaskError) Unwrap() error {
	return e.Err
}

// AggregatedError collects every failed task of a batch in submission order
type AggregatedError struct {
	Errors []TaskError
}

// Error implements the error interface
func (e *AggregatedError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d programs failed:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Unwrap exposes every task failure to errors.Is and errors.As
func (e *AggregatedError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, te := range e.Errors {
		errs[i] = te
	}
	return errs
}

// NotStarted lists the names of tasks that never ran
func (e *AggregatedError) NotStarted() []string {
	var names []string
	for _, te := range e.Errors {
		if errors.Is(te.Err, ErrNotStarted) {
			names = append(names, te.TaskName)
		}
	}
	return names
}

// ParallelExecutorImpl implements domain.ParallelExecutor with an errgroup.
// A failing task never cancels its siblings; only the deadline does.
type ParallelExecutorImpl struct {
	mu             sync.RWMutex
	maxConcurrency int
	timeout        time.Duration
	description    string
	progress       domain.ProgressManager
	logger         *slog.Logger
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewParallelExecutor creates an executor running runtime.NumCPU() tasks at a
// time under DefaultTimeout
func NewParallelExecutor() *ParallelExecutorImpl {
	return &ParallelExecutorImpl{
		maxConcurrency: runtime.NumCPU(),
		timeout:        DefaultTimeout,
		description:    DefaultTaskDescription,
		logger:         discardLogger(),
	}
}

// SetMaxConcurrency sets how many tasks run at once. Non-positive values are ignored.
func (e *ParallelExecutorImpl) SetMaxConcurrency(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > 0 {
		e.maxConcurrency = n
	}
}

// SetTimeout sets the deadline of a whole batch. Non-positive values are ignored.
func (e *ParallelExecutorImpl) SetTimeout(timeout time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if timeout > 0 {
		e.timeout = timeout
	}
}

// SetDescription sets the progress bar label
func (e *ParallelExecutorImpl) SetDescription(description string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if description != "" {
		e.description = description
	}
}

// SetProgress sets the progress manager; nil disables progress reporting
func (e *ParallelExecutorImpl) SetProgress(pm domain.ProgressManager) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress = pm
}

// SetLogger sets the logger used for task tracing
func (e *ParallelExecutorImpl) SetLogger(logger *slog.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if logger != nil {
		e.logger = logger
	}
}

// Execute runs the enabled tasks and returns an *AggregatedError when any
// of them failed or never started
func (e *ParallelExecutorImpl) Execute(ctx context.Context, tasks []domain.ExecutableTask) error {
	e.mu.RLock()
	limit, timeout, description, progress, logger := e.maxConcurrency, e.timeout, e.description, e.progress, e.logger
	e.mu.RUnlock()

	type indexed struct {
		index int
		task  domain.ExecutableTask
	}
	var enabled []indexed
	for i, t := range tasks {
		if t != nil && t.IsEnabled() {
			enabled = append(enabled, indexed{i, t})
		}
	}
	if len(enabled) == 0 {
		return nil
	}

	logger.Debug("executing batch",
		slog.Int("tasks", len(enabled)),
		slog.Int("concurrency", limit),
		slog.Duration("timeout", timeout))

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bar domain.TaskProgress = &NoOpTaskProgress{}
	if progress != nil {
		bar = progress.StartTask(description, len(enabled))
	}
	defer bar.Complete()

	var (
		errMu    sync.Mutex
		failures []TaskError
	)
	fail := func(index int, name string, err error) {
		errMu.Lock()
		failures = append(failures, TaskError{TaskName: name, Err: err, index: index})
		errMu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(limit)
	for _, it := range enabled {
		it := it
		g.Go(func() error {
			name := it.task.Name()
			if err := runCtx.Err(); err != nil {
				fail(it.index, name, fmt.Errorf("%w: %w", ErrNotStarted, err))
				bar.Increment(1)
				return nil
			}

			bar.Describe(name)
			start := time.Now()
			_, err := it.task.Execute(runCtx)
			bar.Increment(1)
			logger.Debug("task finished",
				slog.String("task", name),
				slog.Duration("elapsed", time.Since(start)),
				slog.Bool("failed", err != nil))
			if err != nil {
				fail(it.index, name, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) == 0 {
		return nil
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].index < failures[j].index })
	return &AggregatedError{Errors: failures}
}
