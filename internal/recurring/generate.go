package recurring

import (
	"context"
	"time"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/operator/actions"
	"github.com/carson-networks/budget-ledger/internal/storage"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

type outcome int

const (
	outcomeNotDue outcome = iota
	outcomeSkipped
	outcomeGenerated
	outcomeTerminated
)

var _ actions.IAction = (*generateAction)(nil)

// generateAction creates this period's transaction from a template and advances the
// template, or terminates it past its end date. Due and duplicate checks are repeated
// under the account lock against the latest state.
type generateAction struct {
	templateID  string
	today       time.Time
	now         time.Time
	generatedID string

	outcome outcome
}

func (g *generateAction) Validate() error {
	if g.templateID == "" {
		return &ledger.ValidationError{Field: "templateId", Reason: "must not be empty"}
	}
	return nil
}

func (g *generateAction) Accounts(reader storage.Reader) []string {
	if t, ok := reader.Transaction(g.templateID); ok {
		return []string{t.AccountID}
	}
	return nil
}

func (g *generateAction) Operation() syncqueue.Operation { return syncqueue.OperationBatch }

func (g *generateAction) Perform(ctx context.Context, writer *storage.Writer) error {
	g.outcome = outcomeNotDue

	template, err := writer.Transaction.FindByID(g.templateID)
	if err != nil {
		return err
	}
	if !IsDue(*template, g.today) {
		return nil
	}
	if _, dup := FindDuplicate(*template, writer.Transaction.List(), g.today); dup {
		g.outcome = outcomeSkipped
		return nil
	}

	generated := ledger.Transaction{
		ID:         g.generatedID,
		AccountID:  template.AccountID,
		CategoryID: template.CategoryID,
		Payee:      template.Payee,
		Type:       template.Type,
		Amount:     template.Amount,
		Date:       g.today,
		Notes:      template.Notes,
		CreatedAt:  g.now.UTC(),
	}
	if err := actions.Insert(writer, generated); err != nil {
		return err
	}

	next := Advance(g.today, template.Schedule.Interval)
	updated := *template
	if end := template.Schedule.EndDate; end != nil && next.After(*end) {
		updated.Schedule = nil
		g.outcome = outcomeTerminated
	} else {
		schedule := *template.Schedule
		schedule.NextOccurrence = next
		updated.Schedule = &schedule
		g.outcome = outcomeGenerated
	}
	return writer.Transaction.Update(updated)
}
