package recurring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/operator"
	"github.com/carson-networks/budget-ledger/internal/operator/actions"
)

// Source lists the transactions the scheduler scans for due templates.
type Source interface {
	Transactions() []ledger.Transaction
}

// Submitter runs actions through the command pipeline.
type Submitter interface {
	Process(ctx context.Context, action actions.IAction) (operator.Result, error)
}

// Report lists template ids by what a run did with them.
type Report struct {
	Generated  []string `json:"generated"`
	Skipped    []string `json:"skipped"`
	Terminated []string `json:"terminated"`
	Errors     []error  `json:"-"`
}

// Scheduler generates transactions from due templates. Runs are serialized, so two
// due-checks can never both pass the duplicate scan for the same period.
type Scheduler struct {
	mu        sync.Mutex
	source    Source
	submitter Submitter
	clock     func() time.Time
	logger    logrus.FieldLogger
}

func NewScheduler(source Source, submitter Submitter, clock func() time.Time, logger logrus.FieldLogger) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{
		source:    source,
		submitter: submitter,
		clock:     clock,
		logger:    logger,
	}
}

// Run checks every template once. Each due template is generated and advanced in a
// single action, so both commit or queue together. Failures for one template do not
// stop the others and are joined into the returned error.
func (s *Scheduler) Run(ctx context.Context) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	today := ledger.Day(now)
	var report Report

	for _, t := range s.source.Transactions() {
		if !IsDue(t, today) {
			continue
		}

		action := &generateAction{
			templateID:  t.ID,
			today:       today,
			now:         now,
			generatedID: ledger.NewID(),
		}
		if _, err := s.submitter.Process(ctx, action); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("template %s: %w", t.ID, err))
			s.logger.WithError(err).WithField("templateID", t.ID).Error("Scheduler.Run.generate failed")
			continue
		}

		switch action.outcome {
		case outcomeGenerated:
			report.Generated = append(report.Generated, t.ID)
		case outcomeTerminated:
			report.Generated = append(report.Generated, t.ID)
			report.Terminated = append(report.Terminated, t.ID)
		case outcomeSkipped:
			report.Skipped = append(report.Skipped, t.ID)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"generated":  len(report.Generated),
		"skipped":    len(report.Skipped),
		"terminated": len(report.Terminated),
		"errors":     len(report.Errors),
	}).Info("Scheduler.Run.complete")
	return report, errors.Join(report.Errors...)
}

// Start runs immediately and then every interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if _, err := s.Run(ctx); err != nil && ctx.Err() == nil {
			s.logger.WithError(err).Warn("Scheduler.Start.run had failures")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
