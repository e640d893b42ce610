package worker

import (
	"context"
	"os"
	"sync"
	"time"

	"sjsage522/bidsniper/internal/model"
	"sjsage522/bidsniper/logger"
	"sjsage522/bidsniper/services/publisher"
)

// TaskRunner runs one task to its outcome
type TaskRunner interface {
	Run(ctx context.Context, task *model.Task) model.Outcome
}

// TaskRunnerFunc adapts a function to TaskRunner
type TaskRunnerFunc func(ctx context.Context, task *model.Task) model.Outcome

func (f TaskRunnerFunc) Run(ctx context.Context, task *model.Task) model.Outcome {
	return f(ctx, task)
}

// Worker runs every task on its own goroutine and publishes each outcome
type Worker struct {
	ctx       context.Context
	tasks     []*model.Task
	runner    TaskRunner
	publisher publisher.Publisher
	logger    *logger.Logger
}

// NewWorker creates a new worker. pub may be nil when no event sink is configured.
func NewWorker(
	ctx context.Context,
	tasks []*model.Task,
	runner TaskRunner,
	pub publisher.Publisher,
	log *logger.Logger,
) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	return &Worker{
		ctx:       ctx,
		tasks:     tasks,
		runner:    runner,
		publisher: pub,
		logger:    log,
	}
}

// Start runs all tasks in parallel, waits for every one of them and returns
// the outcomes in task order
func (w *Worker) Start() []model.Outcome {
	start := time.Now()
	outcomes := make([]model.Outcome, len(w.tasks))

	var wg sync.WaitGroup
	for i, task := range w.tasks {
		wg.Add(1)
		go func(i int, task *model.Task) {
			defer wg.Done()
			outcomes[i] = w.runAndPublish(task)
		}(i, task)
	}
	wg.Wait()

	// Trim retained events once per run
	if w.publisher != nil {
		if err := w.publisher.TrimStreams(); err != nil {
			w.logger.Error().Err(err).Msg("stream trimming failed")
		}
	}

	w.logger.Info().
		Int("tasks", len(w.tasks)).
		Dur("elapsed", time.Since(start)).
		Msg("all tasks finished")
	return outcomes
}

// runAndPublish runs a task and publishes its outcome
func (w *Worker) runAndPublish(task *model.Task) model.Outcome {
	log := w.logger.WithFields(logger.Fields{"task": task.ID, "name": task.Name()})
	log.Info().Str("url", task.Config().URL).Msg("task started")

	out := w.runner.Run(w.ctx, task)

	event := log.Info()
	if !isSuccess(out.Status) {
		event = log.Warn()
	}
	event.Str("status", string(out.Status)).Str("reason", out.Reason).Msg("task finished")

	if w.publisher == nil {
		return out
	}
	if err := publisher.PublishOutcome(w.publisher, out); err != nil {
		log.Error().Err(err).Msg("outcome publishing failed")
		return out
	}
	if os.Getenv("BIDSNIPER_ENVIRONMENT") != "production" {
		log.Debug().Interface("outcome", out).Msg("outcome published")
	}
	return out
}

// Reconfigure applies reloaded task configs to the running tasks with the
// same url and returns how many were updated
func (w *Worker) Reconfigure(loaded []*model.Task) int {
	byURL := make(map[string]model.TaskConfig, len(loaded))
	for _, t := range loaded {
		cfg := t.Config()
		byURL[cfg.URL] = cfg
	}

	updated := 0
	for _, task := range w.tasks {
		cfg, ok := byURL[task.Config().URL]
		if !ok {
			continue
		}
		task.Reconfigure(cfg)
		updated++
		w.logger.Info().
			Str("task", task.ID).
			Str("ceiling", model.FormatPrice(cfg.MaxPrice)).
			Bool("real_bid", cfg.RealBid).
			Msg("task reconfigured")
	}
	return updated
}

func isSuccess(s model.Status) bool {
	return s == model.StatusSubmitted || s == model.StatusSimulated
}
