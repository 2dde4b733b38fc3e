package service

import (
	"context"
	"sync"

	"github.com/ludo-technologies/cblscan/domain"
)

// ProgramTask structures one COBOL program as an executable task
type ProgramTask struct {
	service *ProgramServiceImpl
	path    string
	req     domain.AnalyzeRequest

	mu     sync.Mutex
	result *domain.ProgramGraph
	err    error
}

// NewProgramTask creates a task for path
func NewProgramTask(svc *ProgramServiceImpl, path string, req domain.AnalyzeRequest) *ProgramTask {
	return &ProgramTask{service: svc, path: path, req: req}
}

// Name returns the program path
func (t *ProgramTask) Name() string {
	return t.path
}

// IsEnabled reports whether the task has something to run
func (t *ProgramTask) IsEnabled() bool {
	return t.service != nil && t.path != ""
}

// Execute structures the program and keeps the result for Result
func (t *ProgramTask) Execute(ctx context.Context) (interface{}, error) {
	graph, err := t.service.AnalyzeFile(ctx, t.path, t.req)

	t.mu.Lock()
	t.result, t.err = graph, err
	t.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return graph, nil
}

// Result returns the graph and error of the last Execute
func (t *ProgramTask) Result() (*domain.ProgramGraph, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}
