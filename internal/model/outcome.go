package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is how a task ended
type Status string

const (
	StatusSubmitted   Status = "submitted"
	StatusFailed      Status = "failed"
	StatusAborted     Status = "aborted"
	StatusSimulated   Status = "simulated"
	StatusExpired     Status = "expired"
	StatusCancelled   Status = "cancelled"
	StatusSyncFailed  Status = "sync_failed"
	StatusSetupFailed Status = "setup_failed"
)

// Outcome is the terminal record of a task, published once when it stops
type Outcome struct {
	TaskID     string           `json:"task_id"`
	Name       string           `json:"name"`
	URL        string           `json:"url"`
	Site       WebsiteType      `json:"site"`
	Status     Status           `json:"status"`
	Reason     string           `json:"reason,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	Deadline   *time.Time       `json:"deadline,omitempty"`
	FinishedAt time.Time        `json:"finished_at"`
}

// BidAttempted reports whether the outcome came from a bid action
func (o Outcome) BidAttempted() bool {
	return o.Status == StatusSubmitted || o.Status == StatusFailed
}
