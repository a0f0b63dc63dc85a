package operator

import (
	"context"

	"github.com/carson-networks/budget-ledger/internal/operator/actions"
)

// Operator is the worker that processes items from the queue.
type Operator struct {
	pipeline *Pipeline
	queue    chan ActionItem
}

func NewOperator(p *Pipeline, queue chan ActionItem) *Operator {
	return &Operator{
		pipeline: p,
		queue:    queue,
	}
}

// Run listens to the queue and processes items. Exits when the queue is closed.
func (o *Operator) Run() {
	for item := range o.queue {
		o.processItem(item)
	}
}

func (o *Operator) processItem(item ActionItem) {
	if err := item.ctx.Err(); err != nil {
		item.response <- ActionItemResponse{err: err}
		return
	}

	result, err := o.pipeline.Execute(item.ctx, item.action)
	item.response <- ActionItemResponse{result: result, err: err}
}

type ActionItem struct {
	ctx      context.Context
	action   actions.IAction
	response chan ActionItemResponse
}

type ActionItemResponse struct {
	result Result
	err    error
}
