package bid

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"sjsage522/bidsniper/internal/model"
)

// Status is the result kind of one submission
type Status int

const (
	Submitted Status = iota + 1
	Aborted
	Failed
)

func (s Status) String() string {
	switch s {
	case Submitted:
		return "submitted"
	case Aborted:
		return "aborted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is what an executor reports for its single submission
type Result struct {
	Status Status
	Reason string
	// Price is the amount bid, or the price that caused an abort, when known
	Price *decimal.Decimal
}

// OutcomeStatus maps the result onto a task outcome status
func (r Result) OutcomeStatus() model.Status {
	switch r.Status {
	case Submitted:
		return model.StatusSubmitted
	case Aborted:
		return model.StatusAborted
	default:
		return model.StatusFailed
	}
}

func failed(format string, args ...interface{}) Result {
	return Result{Status: Failed, Reason: fmt.Sprintf(format, args...)}
}

// Executor submits one bid. Callers invoke Submit at most once per task.
type Executor interface {
	Submit(ctx context.Context, cfg model.TaskConfig) Result
}
