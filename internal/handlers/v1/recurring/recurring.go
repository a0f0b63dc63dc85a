// Package recurring exposes on-demand runs of the recurring scheduler.
package recurring

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/budget-ledger/internal/logging"
	"github.com/carson-networks/budget-ledger/internal/recurring"
)

// RunResult lists template IDs by what the run did with them.
type RunResult struct {
	Generated  []string `json:"generated" doc:"Templates that produced a transaction"`
	Skipped    []string `json:"skipped" doc:"Templates with a matching transaction already in the period"`
	Terminated []string `json:"terminated" doc:"Templates whose next occurrence passed their end date"`
	Errors     []string `json:"errors" doc:"Per-template failures; other templates still ran"`
}

type RunOutput struct {
	Body RunResult
}

type scheduler interface {
	Run(ctx context.Context) (recurring.Report, error)
}

// RunHandler handles POST /v1/recurring/run.
type RunHandler struct {
	RecurringService scheduler
}

func NewRunHandler(svc scheduler) *RunHandler {
	return &RunHandler{RecurringService: svc}
}

func (h *RunHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "run-recurring",
		Method:      http.MethodPost,
		Path:        "/v1/recurring/run",
		Summary:     "Run recurring templates",
		Description: "Generates the transaction of every due template that has none in the current period.",
		Tags:        []string{"Recurring"},
	}, h.handle)
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// handle reports per-template errors in the body; the run itself does not fail.
func (h *RunHandler) handle(ctx context.Context, _ *struct{}) (*RunOutput, error) {
	logData := logging.GetLogData(ctx)

	report, _ := h.RecurringService.Run(ctx)

	out := RunResult{
		Generated:  orEmpty(report.Generated),
		Skipped:    orEmpty(report.Skipped),
		Terminated: orEmpty(report.Terminated),
		Errors:     make([]string, len(report.Errors)),
	}
	for i, err := range report.Errors {
		out.Errors[i] = err.Error()
	}

	if logData != nil {
		logData.AddData("generated", len(out.Generated))
		logData.AddData("recurringErrors", len(out.Errors))
	}
	return &RunOutput{Body: out}, nil
}
