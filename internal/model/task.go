package model

import (
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	bserrors "sjsage522/bidsniper/pkg/errors"
)

// Delivery preferences understood by the Taitung bid form
const (
	DeliveryShip   = "託運"
	DeliveryPickup = "自取"
)

// TaskConfig holds the tunable parameters of one auction task
type TaskConfig struct {
	Name string
	URL  string

	// TriggerMs is how many milliseconds before the deadline the bid fires
	TriggerMs int
	// SprintStartSec is the remaining time in seconds at which the sprint phase begins
	SprintStartSec int
	// SprintFreqMs is the refresh period in milliseconds while sprinting
	SprintFreqMs int
	// RealBid submits a live bid when set; otherwise the trigger is only logged
	RealBid bool
	// MaxPrice is the price ceiling; nil means no ceiling
	MaxPrice *decimal.Decimal
	// Delivery is the Taitung delivery preference (託運 or 自取)
	Delivery string
	// UsePost submits through HTTP form replay instead of the page's own controls
	UsePost bool
	// Manual bids once right after the page is ready instead of waiting for
	// the trigger offset
	Manual bool
}

// DefaultTaskConfig returns a config for url with the standard timings
func DefaultTaskConfig(rawURL string) TaskConfig {
	return TaskConfig{
		URL:            rawURL,
		TriggerMs:      2000,
		SprintStartSec: 60,
		SprintFreqMs:   1005,
		Delivery:       DeliveryShip,
	}
}

// TriggerOffset returns TriggerMs as a duration
func (c TaskConfig) TriggerOffset() time.Duration {
	return time.Duration(c.TriggerMs) * time.Millisecond
}

// SprintThreshold returns SprintStartSec as a duration
func (c TaskConfig) SprintThreshold() time.Duration {
	return time.Duration(c.SprintStartSec) * time.Second
}

// SprintPeriod returns SprintFreqMs as a duration
func (c TaskConfig) SprintPeriod() time.Duration {
	return time.Duration(c.SprintFreqMs) * time.Millisecond
}

// Validate checks the config for values the monitor cannot work with
func (c TaskConfig) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return bserrors.NewValidation(c.Name, fmt.Sprintf("invalid auction url %q", c.URL))
	}
	if c.TriggerMs < 0 {
		return bserrors.NewValidation(c.Name, "trigger offset must not be negative")
	}
	if c.SprintStartSec < 0 {
		return bserrors.NewValidation(c.Name, "sprint start must not be negative")
	}
	if c.SprintFreqMs <= 0 {
		return bserrors.NewValidation(c.Name, "sprint frequency must be positive")
	}
	if c.MaxPrice != nil && c.MaxPrice.IsNegative() {
		return bserrors.NewValidation(c.Name, "price ceiling must not be negative")
	}
	if c.Delivery != DeliveryShip && c.Delivery != DeliveryPickup {
		return bserrors.NewValidation(c.Name, fmt.Sprintf("unknown delivery preference %q", c.Delivery))
	}
	return nil
}

// Task is one auction being watched. The config may be replaced while the
// task runs; the monitor reads a point-in-time copy on every tick.
type Task struct {
	ID     string
	config atomic.Pointer[TaskConfig]
}

// NewTask creates a task with a fresh id
func NewTask(cfg TaskConfig) *Task {
	t := &Task{ID: uuid.NewString()}
	if cfg.Name == "" {
		cfg.Name = t.ID[:8]
	}
	t.Update(cfg)
	return t
}

// Config returns a copy of the current config
func (t *Task) Config() TaskConfig {
	cfg := *t.config.Load()
	if cfg.MaxPrice != nil {
		p := *cfg.MaxPrice
		cfg.MaxPrice = &p
	}
	return cfg
}

// Update replaces the config seen by subsequent ticks
func (t *Task) Update(cfg TaskConfig) {
	t.config.Store(&cfg)
}

// Reconfigure applies the tunables of cfg to a running task. The name and
// the fields fixed at session setup (url, use_post, manual) are kept.
func (t *Task) Reconfigure(cfg TaskConfig) {
	cur := t.config.Load()
	cfg.Name = cur.Name
	cfg.URL = cur.URL
	cfg.UsePost = cur.UsePost
	cfg.Manual = cur.Manual
	t.Update(cfg)
}

// Name returns the current task name
func (t *Task) Name() string {
	return t.config.Load().Name
}
