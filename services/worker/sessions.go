package worker

import (
	"context"
	"time"

	"sjsage522/bidsniper/internal/browser"
	"sjsage522/bidsniper/internal/model"
	"sjsage522/bidsniper/internal/monitor"
	"sjsage522/bidsniper/logger"
)

// BrowserFactory opens a fresh browser tab for one task
type BrowserFactory func() (browser.Browser, error)

// SessionRunner runs each task as a monitor session in its own tab
type SessionRunner struct {
	open BrowserFactory
	deps monitor.Deps
	now  func() time.Time
}

// NewSessionRunner creates a runner opening tabs through open
func NewSessionRunner(open BrowserFactory, deps monitor.Deps) *SessionRunner {
	return &SessionRunner{open: open, deps: deps, now: time.Now}
}

// Run opens a tab, runs the session and closes the tab
func (r *SessionRunner) Run(ctx context.Context, task *model.Task) model.Outcome {
	log := logger.ForTask(task.ID, task.Name())

	b, err := r.open()
	if err != nil {
		log.Error().Err(err).Msg("browser tab could not be opened")
		cfg := task.Config()
		return model.Outcome{
			TaskID:     task.ID,
			Name:       cfg.Name,
			URL:        cfg.URL,
			Status:     model.StatusSetupFailed,
			Reason:     err.Error(),
			FinishedAt: r.now(),
		}
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Debug().Err(err).Msg("browser tab close failed")
		}
	}()

	return monitor.NewSession(task, b, r.deps, log).Run(ctx)
}

var _ TaskRunner = (*SessionRunner)(nil)
