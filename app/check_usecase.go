package app

import (
	"context"
	"time"

	"github.com/ludo-technologies/cblscan/domain"
)

// Checker evaluates an analysis response against quality thresholds
type Checker interface {
	Evaluate(response *domain.AnalyzeResponse, started time.Time) *domain.CheckResult
}

// CheckUseCase runs the analysis and evaluates it for CI gating
type CheckUseCase struct {
	analyze *AnalyzeUseCase
	checker Checker
}

// NewCheckUseCase creates a check use case. Output options on the request are ignored.
func NewCheckUseCase(service domain.ProgramService, checker Checker) *CheckUseCase {
	return &CheckUseCase{
		analyze: NewAnalyzeUseCase(service, nil, nil),
		checker: checker,
	}
}

// WithFileHelper sets the file helper used to collect programs
func (uc *CheckUseCase) WithFileHelper(fileHelper *FileHelper) *CheckUseCase {
	if fileHelper != nil {
		uc.analyze.fileHelper = fileHelper
	}
	return uc
}

// Execute analyzes req.Paths and returns the evaluated check result
func (uc *CheckUseCase) Execute(ctx context.Context, req domain.AnalyzeRequest) (*domain.CheckResult, error) {
	started := time.Now()
	if uc.checker == nil {
		return nil, domain.NewConfigError("no checker configured", nil)
	}

	response, _, err := uc.analyze.analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	return uc.checker.Evaluate(response, started), nil
}
