package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sjsage522/bidsniper/internal/bid"
	"sjsage522/bidsniper/internal/deadline"
	"sjsage522/bidsniper/internal/model"
	"sjsage522/bidsniper/internal/parser"
	"sjsage522/bidsniper/logger"
)

// State is the phase of a monitor loop
type State int

const (
	Locking State = iota
	Cruising
	Sprinting
	Triggered
	Terminated
)

func (s State) String() string {
	switch s {
	case Locking:
		return "locking"
	case Cruising:
		return "cruising"
	case Sprinting:
		return "sprinting"
	case Triggered:
		return "triggered"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// cruiseBoundary is the wall-clock second multiple on which cruise refreshes
const cruiseBoundary = 5

// Options are the loop constants shared by every task
type Options struct {
	// StaleGrace is how far past the deadline a trigger still counts as
	// ended-without-bidding instead of firing
	StaleGrace time.Duration
	// LockInterval separates lock attempts
	LockInterval time.Duration
	// ErrorBackoff is slept after a failed tick
	ErrorBackoff time.Duration
	// ReloadSettle is slept after a recovery reload
	ReloadSettle time.Duration
	// SyncFailThreshold lock failures trigger a reload
	SyncFailThreshold int
	// MaxSyncReloads bounds the reload recoveries before giving up
	MaxSyncReloads int
}

// DefaultOptions returns the standard loop constants
func DefaultOptions() Options {
	return Options{
		StaleGrace:        5 * time.Second,
		LockInterval:      100 * time.Millisecond,
		ErrorBackoff:      time.Second,
		ReloadSettle:      3 * time.Second,
		SyncFailThreshold: deadline.DefaultReloadThreshold,
		MaxSyncReloads:    20,
	}
}

// Loop is the phased scheduler of one task. It runs on the task's own
// goroutine and none of its state is shared.
type Loop struct {
	task     *model.Task
	strategy SiteStrategy
	tracker  *deadline.Tracker
	clock    Clock
	opts     Options
	log      *logger.Logger

	state            State
	bidSubmitted     bool
	lastPrice        *decimal.Decimal
	lastRefresh      time.Time
	lastCruiseSecond int64
	reloads          int
	outcome          *model.Outcome
}

// NewLoop creates a loop for task driving strategy
func NewLoop(task *model.Task, strategy SiteStrategy, clock Clock, opts Options, log *logger.Logger) *Loop {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Loop{
		task:     task,
		strategy: strategy,
		tracker:  deadline.NewTracker(clock.Now, opts.SyncFailThreshold),
		clock:    clock,
		opts:     opts,
		log:      log,
		state:    Locking,
	}
}

// State returns the current phase
func (l *Loop) State() State {
	return l.state
}

// Run ticks until the loop terminates or ctx is cancelled. Calling Run on a
// terminated loop returns the same outcome without ticking.
func (l *Loop) Run(ctx context.Context) model.Outcome {
	l.log.Tag(zerolog.InfoLevel, "Set").
		Stringer("site", l.strategy.Site()).
		Msg("monitor started")

	for {
		if l.state == Terminated {
			return *l.outcome
		}
		if ctx.Err() != nil {
			return l.cancelled()
		}

		sleep, err := l.tick(ctx)
		if l.state == Terminated {
			return *l.outcome
		}
		if err != nil {
			if ctx.Err() != nil {
				return l.cancelled()
			}
			l.log.Tag(zerolog.WarnLevel, "Error").Err(err).Msg("tick failed")
			sleep = l.opts.ErrorBackoff
		}

		if err := l.clock.Sleep(ctx, sleep); err != nil {
			return l.cancelled()
		}
	}
}

// tick runs one iteration and returns how long to sleep before the next
func (l *Loop) tick(ctx context.Context) (time.Duration, error) {
	if l.state == Terminated {
		return 0, nil
	}
	cfg := l.task.Config()

	if !l.tracker.Locked() {
		return l.lock(ctx, cfg)
	}

	remaining := l.tracker.Remaining()
	sprint := remaining <= cfg.SprintThreshold()
	l.enterPhase(sprint)

	if remaining <= cfg.TriggerOffset() {
		l.trigger(ctx, cfg, remaining)
		return 0, nil
	}

	pacing := l.strategy.Pacing()
	sleep := pacing.CruiseSleep
	if sprint {
		sleep = pacing.SprintSleep
	}

	if !l.refreshDue(cfg, sprint) {
		return sleep, nil
	}
	if err := l.refresh(ctx, cfg, sprint, remaining); err != nil {
		return sleep, err
	}
	return sleep, nil
}

func (l *Loop) lock(ctx context.Context, cfg model.TaskConfig) (time.Duration, error) {
	reading, err := l.strategy.ExtractSnapshot(ctx)
	if err == nil && l.tracker.Lock(reading.Snapshot) {
		deadlineAt, _ := l.tracker.Deadline()
		remaining := l.tracker.Remaining()
		l.lastPrice = reading.Price
		l.log.Tag(zerolog.InfoLevel, "Lock").
			Time("deadline", deadlineAt).
			Msgf("deadline locked at %s (%s left)", deadlineAt.Format("15:04:05.000"), remaining.Round(time.Millisecond))
		l.enterPhase(remaining <= cfg.SprintThreshold())
		return 0, nil
	}
	if err != nil {
		// a failed read counts like a read without a countdown
		l.tracker.Lock(model.Snapshot{})
	} else if reading.Remaining != nil {
		l.log.Tag(zerolog.TraceLevel, "Sync").Msg("countdown at zero, page not initialized yet")
	}

	if l.tracker.ShouldReload() {
		if l.reloads >= l.opts.MaxSyncReloads {
			l.log.Tag(zerolog.ErrorLevel, "STOP").Msgf("no countdown after %d reloads", l.reloads)
			l.finish(model.StatusSyncFailed, fmt.Sprintf("no countdown after %d reloads", l.reloads), nil)
			return 0, nil
		}
		l.reloads++
		l.log.Tag(zerolog.WarnLevel, "Warn").Int("reload", l.reloads).Msg("too many sync failures, reloading page")
		if rerr := l.strategy.Reload(ctx); rerr != nil {
			return 0, rerr
		}
		return l.opts.ReloadSettle, nil
	}
	return l.opts.LockInterval, err
}

func (l *Loop) enterPhase(sprint bool) {
	next := Cruising
	if sprint {
		next = Sprinting
	}
	if l.state == next {
		return
	}
	if next == Sprinting {
		l.log.Tag(zerolog.InfoLevel, "Dash").Msg("entering sprint phase")
	}
	l.state = next
}

// refreshDue reports whether this tick refreshes: every SprintPeriod while
// sprinting, once per 5-second wall-clock boundary while cruising
func (l *Loop) refreshDue(cfg model.TaskConfig, sprint bool) bool {
	now := l.clock.Now()
	if sprint {
		return now.Sub(l.lastRefresh) >= cfg.SprintPeriod()
	}
	sec := now.Unix()
	if sec%cruiseBoundary == 0 && sec != l.lastCruiseSecond {
		l.lastCruiseSecond = sec
		return true
	}
	return false
}

func (l *Loop) refresh(ctx context.Context, cfg model.TaskConfig, sprint bool, remaining time.Duration) error {
	defer func() { l.lastRefresh = l.clock.Now() }()

	if sprint {
		if err := l.strategy.Recompute(ctx); err != nil {
			l.log.Debug().Err(err).Msg("page recompute failed")
		}
		if err := l.clock.Sleep(ctx, l.strategy.Pacing().RecomputeSettle); err != nil {
			return err
		}
	}

	reading, err := l.strategy.ExtractSnapshot(ctx)
	if err != nil {
		return err
	}
	if reading.Price != nil {
		l.lastPrice = reading.Price
	}
	if sprint {
		if drift, ok := l.tracker.Resync(reading.Snapshot); ok && (drift > 50*time.Millisecond || drift < -50*time.Millisecond) {
			l.log.Tag(zerolog.DebugLevel, "Sync").Dur("drift", drift).Msg("deadline resynced")
		}
	}

	// sprint lines are thinned to roughly one per second
	if sprint && remaining.Milliseconds()%1000 >= 300 {
		return nil
	}
	l.log.Tag(zerolog.InfoLevel, "Time").Msg(l.timeLine(cfg, sprint, remaining))
	return nil
}

func (l *Loop) timeLine(cfg model.TaskConfig, sprint bool, remaining time.Duration) string {
	price := "[NULL]"
	if l.lastPrice != nil {
		price = "$" + l.lastPrice.String()
	}
	limit := ""
	if cfg.MaxPrice != nil {
		limit = " (上限:" + cfg.MaxPrice.String() + ")"
	}
	phase := "[Cruise]"
	if sprint {
		phase = "[Dash]"
	}
	deadlineAt, _ := l.tracker.Deadline()
	fireAt := deadlineAt.Add(-cfg.TriggerOffset())

	return fmt.Sprintf("%s | %s%s %s @ %s",
		parser.FormatCountdownMillis(remaining), price, limit, phase, fireAt.Format("15:04:05.000"))
}

// bidless is implemented by strategies that track a deadline without any
// bid action
type bidless interface {
	Bidless() bool
}

func canSubmit(s SiteStrategy) bool {
	b, ok := s.(bidless)
	return !ok || !b.Bidless()
}

func (l *Loop) trigger(ctx context.Context, cfg model.TaskConfig, remaining time.Duration) {
	if remaining < -l.opts.StaleGrace {
		l.log.Tag(zerolog.WarnLevel, "STOP").Msgf("deadline passed %s ago, ended without bidding", (-remaining).Round(time.Millisecond))
		l.finish(model.StatusExpired, "auction ended before the trigger fired", l.lastPrice)
		return
	}

	l.state = Triggered
	l.log.Tag(zerolog.InfoLevel, "Trig").Msgf("triggered with %dms left (threshold %dms)", remaining.Milliseconds(), cfg.TriggerMs)

	price := l.triggerPrice(ctx, remaining)
	l.fire(bid.WithTriggerHint(ctx, bid.TriggerHint{Price: price, Remaining: l.tracker.Remaining()}), cfg, price)
}

// triggerPrice reads the price within a budget taken from the time left and
// falls back to the last extracted price when the read fails or runs late
func (l *Loop) triggerPrice(ctx context.Context, remaining time.Duration) *decimal.Decimal {
	readCtx, cancel := context.WithTimeout(ctx, bid.PriceReadBudget(remaining))
	defer cancel()

	price, err := l.strategy.LatestPrice(readCtx)
	if err != nil {
		l.log.Debug().Err(err).Msg("trigger price read failed, using last page price")
	}
	if price == nil {
		return l.lastPrice
	}
	l.lastPrice = price
	return price
}

// fire applies the price guard and sends the single bid
func (l *Loop) fire(ctx context.Context, cfg model.TaskConfig, price *decimal.Decimal) {
	if bid.Decide(price, cfg.MaxPrice) == bid.Abort {
		reason := fmt.Sprintf("price %s exceeds ceiling %s", price, cfg.MaxPrice)
		l.log.Tag(zerolog.WarnLevel, "STOP").Msg(reason)
		l.finish(model.StatusAborted, reason, price)
		return
	}

	if !cfg.RealBid {
		l.log.Tag(zerolog.InfoLevel, "Safe").Msg("simulated trigger, no bid sent")
		l.finish(model.StatusSimulated, "dry run", l.lastPrice)
		return
	}
	if !canSubmit(l.strategy) {
		l.log.Tag(zerolog.InfoLevel, "Safe").Msg("no bid action for this site, trigger simulated")
		l.finish(model.StatusSimulated, "no bid action for this site", l.lastPrice)
		return
	}

	if l.bidSubmitted {
		l.finish(model.StatusFailed, "bid already submitted", l.lastPrice)
		return
	}
	l.bidSubmitted = true

	res := l.strategy.SubmitBid(ctx, cfg)
	if res.Price == nil {
		res.Price = l.lastPrice
	}
	switch res.Status {
	case bid.Submitted:
		l.log.Tag(zerolog.InfoLevel, "STOP").Msg("bid submitted")
	case bid.Aborted:
		l.log.Tag(zerolog.WarnLevel, "STOP").Msg(res.Reason)
	default:
		l.log.Tag(zerolog.ErrorLevel, "Error").Msgf("bid failed: %s", res.Reason)
	}
	l.finish(res.OutcomeStatus(), res.Reason, res.Price)
}

// FireNow skips the countdown: it syncs with the page once, checks the
// price and sends the single bid right away. A terminated loop returns its
// outcome unchanged.
func (l *Loop) FireNow(ctx context.Context) model.Outcome {
	if l.state == Terminated {
		return *l.outcome
	}
	if ctx.Err() != nil {
		return l.cancelled()
	}
	cfg := l.task.Config()
	l.log.Tag(zerolog.InfoLevel, "Manual").Stringer("site", l.strategy.Site()).Msg("manual bid")

	reading, err := l.strategy.ExtractSnapshot(ctx)
	switch {
	case err != nil:
		l.log.Tag(zerolog.WarnLevel, "Warn").Err(err).Msg("page read failed before manual bid")
	case l.tracker.Lock(reading.Snapshot):
		l.lastPrice = reading.Price
		l.log.Tag(zerolog.InfoLevel, "Sync").Msgf("%s left before the bid", l.tracker.Remaining().Round(time.Millisecond))
	default:
		l.lastPrice = reading.Price
	}

	l.state = Triggered
	price, err := l.strategy.LatestPrice(ctx)
	if err != nil {
		l.log.Debug().Err(err).Msg("manual price read failed, using page price")
	}
	if price == nil {
		price = l.lastPrice
	}
	l.lastPrice = price
	if price != nil {
		l.log.Tag(zerolog.InfoLevel, "Info").Msgf("current price %s", price)
	}

	l.fire(ctx, cfg, price)
	return *l.outcome
}

func (l *Loop) cancelled() model.Outcome {
	l.log.Tag(zerolog.InfoLevel, "STOP").Msg("monitor cancelled")
	l.finish(model.StatusCancelled, "cancelled", l.lastPrice)
	return *l.outcome
}

func (l *Loop) finish(status model.Status, reason string, price *decimal.Decimal) {
	cfg := l.task.Config()
	out := &model.Outcome{
		TaskID:     l.task.ID,
		Name:       cfg.Name,
		URL:        cfg.URL,
		Site:       l.strategy.Site(),
		Status:     status,
		Reason:     reason,
		Price:      price,
		FinishedAt: l.clock.Now(),
	}
	if d, ok := l.tracker.Deadline(); ok {
		out.Deadline = &d
	}
	l.outcome = out
	l.state = Terminated
}
