package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sjsage522/bidsniper/internal/bid"
	"sjsage522/bidsniper/internal/browser"
	"sjsage522/bidsniper/internal/diagnostics"
	"sjsage522/bidsniper/internal/model"
	"sjsage522/bidsniper/internal/parser"
	"sjsage522/bidsniper/logger"
)

// Page load waits
const (
	bodyWait      = 10 * time.Second
	countdownWait = 20 * time.Second
)

// Deps are the collaborators a session needs besides its browser tab
type Deps struct {
	Dumper *diagnostics.Dumper
	// Claims enables the cross-process bid claim when set
	Claims   bid.Claimer
	ClaimTTL time.Duration
	// Owner is stored as the claim value
	Owner   string
	Clock   Clock
	Options Options
}

// Session runs one task in one browser tab from navigation to outcome
type Session struct {
	task    *model.Task
	browser browser.Browser
	deps    Deps
	log     *logger.Logger

	extractor *parser.Extractor
	loop      *Loop
}

// NewSession creates a session for task on b
func NewSession(task *model.Task, b browser.Browser, deps Deps, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Nop()
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Options == (Options{}) {
		deps.Options = DefaultOptions()
	}
	return &Session{
		task:      task,
		browser:   b,
		deps:      deps,
		log:       log,
		extractor: parser.NewExtractor(log),
	}
}

// Run opens the page, picks the site strategy and runs the monitor loop, or
// bids at once for manual tasks
func (s *Session) Run(ctx context.Context) model.Outcome {
	cfg := s.task.Config()

	site, err := s.open(ctx, cfg.URL)
	if err != nil {
		s.log.Tag(zerolog.ErrorLevel, "Error").Err(err).Msg("page setup failed")
		return s.setupFailed(err)
	}

	strategy, err := s.strategy(ctx, site, cfg)
	if err != nil {
		s.log.Tag(zerolog.ErrorLevel, "Error").Err(err).Msg("bid setup failed")
		return s.setupFailed(err)
	}

	s.loop = NewLoop(s.task, strategy, s.deps.Clock, s.deps.Options, s.log)
	if cfg.Manual {
		return s.loop.FireNow(ctx)
	}
	return s.loop.Run(ctx)
}

// open navigates, waits for the page and detects the site
func (s *Session) open(ctx context.Context, url string) (model.WebsiteType, error) {
	s.log.Tag(zerolog.InfoLevel, "Nav").Msgf("opening %s", url)
	if err := s.browser.Navigate(ctx, url); err != nil {
		return model.SiteUnknown, err
	}
	if err := s.browser.WaitReady(ctx, "body", bodyWait); err != nil {
		s.log.Tag(zerolog.WarnLevel, "Warn").Err(err).Msg("page body not ready")
	}

	page, err := capture(ctx, s.browser)
	if err != nil {
		return model.SiteUnknown, err
	}
	site := s.extractor.Detect(page)
	s.log.Tag(zerolog.InfoLevel, "Site").Msgf("detected %s", site)

	switch site {
	case model.SiteTaipei:
		if err := s.browser.WaitReady(ctx, "#time_end", countdownWait); err != nil {
			s.log.Tag(zerolog.WarnLevel, "Warn").Err(err).Msg("countdown element not ready")
		}
	case model.SiteTaitung:
		if err := s.browser.WaitReady(ctx, "body", bodyWait); err != nil {
			s.log.Tag(zerolog.WarnLevel, "Warn").Err(err).Msg("page body not ready")
		}
	}

	s.dump(ctx, site, page)
	return site, nil
}

func (s *Session) dump(ctx context.Context, site model.WebsiteType, page *parser.Page) {
	if !s.deps.Dumper.Enabled() {
		return
	}
	title, _ := s.browser.Title(ctx)
	s.deps.Dumper.Page(diagnostics.PageContent{
		Site:  site.String(),
		URL:   page.URL,
		Title: title,
		Text:  page.Text,
		HTML:  page.HTML,
	})
	if png, err := s.browser.TakeScreenshot(ctx); err == nil {
		s.deps.Dumper.Screenshot(site.String(), png)
	}
}

// strategy builds the site strategy with its decorated bid executor
func (s *Session) strategy(ctx context.Context, site model.WebsiteType, cfg model.TaskConfig) (SiteStrategy, error) {
	base := pageStrategy{
		browser:   s.browser,
		extractor: s.extractor,
		now:       s.deps.Clock.Now,
		log:       s.log,
	}

	var (
		strategy SiteStrategy
		executor bid.Executor
	)
	switch site {
	case model.SiteTaipei:
		t := &TaipeiStrategy{pageStrategy: base}
		executor = bid.NewDOMExecutor(s.browser, site, s.log)
		strategy = t
	case model.SiteTaitung:
		t := &TaitungStrategy{pageStrategy: base, delivery: cfg.Delivery}
		if cfg.UsePost {
			url, err := s.browser.CurrentURL(ctx)
			if err != nil {
				return nil, err
			}
			replay := bid.NewFormReplay(s.browser, url, s.deps.Dumper, s.log)
			if err := replay.Prepare(ctx, cfg.Delivery); err != nil {
				// Submit captures the form again when it is still missing
				s.log.Tag(zerolog.WarnLevel, "Warn").Err(err).Msg("bid form not captured, retrying at trigger")
				replay.Reset()
			}
			t.replay = replay
			executor = replay
		} else {
			executor = bid.NewDOMExecutor(s.browser, site, s.log)
		}
		strategy = t
	default:
		s.log.Tag(zerolog.WarnLevel, "Warn").Msg("unknown site, tracking the deadline without a bid action")
		return &GenericStrategy{pageStrategy: base}, nil
	}

	if s.deps.Claims != nil {
		executor = bid.NewClaimed(executor, s.deps.Claims, s.deps.ClaimTTL, s.deps.Owner, s.log)
	}
	executor = bid.NewGuarded(executor, strategy.LatestPrice, s.log)

	switch t := strategy.(type) {
	case *TaipeiStrategy:
		t.executor = executor
	case *TaitungStrategy:
		t.executor = executor
	}
	return strategy, nil
}

func (s *Session) setupFailed(err error) model.Outcome {
	cfg := s.task.Config()
	site, _ := s.extractor.Site()
	return model.Outcome{
		TaskID:     s.task.ID,
		Name:       cfg.Name,
		URL:        cfg.URL,
		Site:       site,
		Status:     model.StatusSetupFailed,
		Reason:     err.Error(),
		FinishedAt: s.deps.Clock.Now(),
	}
}
