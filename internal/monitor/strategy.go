package monitor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"sjsage522/bidsniper/internal/bid"
	"sjsage522/bidsniper/internal/browser"
	"sjsage522/bidsniper/internal/model"
	"sjsage522/bidsniper/internal/parser"
	"sjsage522/bidsniper/logger"
)

// Reading is one extraction: the page snapshot plus the amount the site
// would bid right now
type Reading struct {
	model.Snapshot
	Price *decimal.Decimal
}

// Pacing holds the per-site sleeps of the loop
type Pacing struct {
	// SprintSleep and CruiseSleep separate ticks
	SprintSleep time.Duration
	CruiseSleep time.Duration
	// RecomputeSettle is how long the page needs after Recompute
	RecomputeSettle time.Duration
}

// SiteStrategy is what the loop needs from a site
type SiteStrategy interface {
	Site() model.WebsiteType

	// ExtractSnapshot reads the page once
	ExtractSnapshot(ctx context.Context) (Reading, error)

	// LatestPrice returns the freshest obtainable price
	LatestPrice(ctx context.Context) (*decimal.Decimal, error)

	// Recompute asks the page to refresh its own countdown and price
	Recompute(ctx context.Context) error

	// Reload reloads the page after repeated sync failures
	Reload(ctx context.Context) error

	// SubmitBid sends the single bid of the task
	SubmitBid(ctx context.Context, cfg model.TaskConfig) bid.Result

	Pacing() Pacing
}

// pageStrategy holds what every site shares: reading the page through the
// browser and extracting with the site's rules
type pageStrategy struct {
	browser   browser.Browser
	extractor *parser.Extractor
	now       func() time.Time
	executor  bid.Executor
	log       *logger.Logger
}

// capture reads the live page. The script capability is bound to ctx.
func capture(ctx context.Context, b browser.Browser) (*parser.Page, error) {
	text, err := b.BodyText(ctx)
	if err != nil {
		return nil, err
	}
	html, err := b.PageSource(ctx)
	if err != nil {
		return nil, err
	}
	url, err := b.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}
	return &parser.Page{
		URL:  url,
		Text: text,
		HTML: html,
		Script: func(js string) (interface{}, error) {
			return b.ExecuteScript(ctx, js)
		},
	}, nil
}

func (s *pageStrategy) read(ctx context.Context, price func(*parser.Page, model.Snapshot, time.Time) *decimal.Decimal) (Reading, error) {
	page, err := capture(ctx, s.browser)
	if err != nil {
		return Reading{}, err
	}
	now := s.now()
	snap := s.extractor.Extract(page, now)
	return Reading{Snapshot: snap, Price: price(page, snap, now)}, nil
}

func (s *pageStrategy) Reload(ctx context.Context) error {
	return s.browser.Reload(ctx)
}

func (s *pageStrategy) SubmitBid(ctx context.Context, cfg model.TaskConfig) bid.Result {
	if s.executor == nil {
		return bid.Result{Status: bid.Failed, Reason: "no bid executor"}
	}
	return s.executor.Submit(ctx, cfg)
}

func (s *pageStrategy) latest(ctx context.Context, read func(context.Context) (Reading, error)) (*decimal.Decimal, error) {
	r, err := read(ctx)
	if err != nil {
		return nil, err
	}
	return r.Price, nil
}

// TaipeiStrategy drives shwoo.gov.taipei pages
type TaipeiStrategy struct {
	pageStrategy
}

func (s *TaipeiStrategy) Site() model.WebsiteType { return model.SiteTaipei }

// ExtractSnapshot reads the page; the price is the next bid amount
func (s *TaipeiStrategy) ExtractSnapshot(ctx context.Context) (Reading, error) {
	return s.read(ctx, parser.TaipeiBidPrice)
}

func (s *TaipeiStrategy) LatestPrice(ctx context.Context) (*decimal.Decimal, error) {
	return s.latest(ctx, s.ExtractSnapshot)
}

// Recompute calls the page's own bid info refresh
func (s *TaipeiStrategy) Recompute(ctx context.Context) error {
	_, err := s.browser.ExecuteScript(ctx, "reloadVal = 0; reloadBidInfo();")
	return err
}

func (s *TaipeiStrategy) Pacing() Pacing {
	return Pacing{SprintSleep: time.Millisecond, CruiseSleep: 50 * time.Millisecond, RecomputeSettle: 150 * time.Millisecond}
}

// TaitungStrategy drives epai.taitung.gov.tw pages
type TaitungStrategy struct {
	pageStrategy
	// replay is set in POST mode and serves as the first price source
	replay   *bid.FormReplay
	delivery string
}

func (s *TaitungStrategy) Site() model.WebsiteType { return model.SiteTaitung }

func (s *TaitungStrategy) ExtractSnapshot(ctx context.Context) (Reading, error) {
	return s.read(ctx, parser.TaitungBidPrice)
}

// LatestPrice prefers the HTTP bid page in POST mode and falls back to the live page
func (s *TaitungStrategy) LatestPrice(ctx context.Context) (*decimal.Decimal, error) {
	if s.replay != nil {
		p, err := s.replay.RefreshPrice(ctx)
		if err == nil {
			return p, nil
		}
		s.log.Debug().Err(err).Msg("http price refresh failed, reading page")
	}
	return s.latest(ctx, s.ExtractSnapshot)
}

// Reload reloads the page and recaptures the bid form in POST mode
func (s *TaitungStrategy) Reload(ctx context.Context) error {
	if err := s.browser.Reload(ctx); err != nil {
		return err
	}
	if s.replay != nil {
		if err := s.replay.Prepare(ctx, s.delivery); err != nil {
			s.replay.Reset()
			s.log.Warn().Err(err).Msg("bid form not recaptured after reload")
		}
	}
	return nil
}

// Recompute calls the page's refresh function
func (s *TaitungStrategy) Recompute(ctx context.Context) error {
	_, err := s.browser.ExecuteScript(ctx, "refresh();")
	return err
}

func (s *TaitungStrategy) Pacing() Pacing {
	return Pacing{SprintSleep: time.Millisecond, CruiseSleep: 100 * time.Millisecond, RecomputeSettle: 500 * time.Millisecond}
}

// GenericStrategy reads unrecognized layouts with the generic rules. It
// tracks the deadline but has no bid action, so its triggers are simulated.
type GenericStrategy struct {
	pageStrategy
}

func (s *GenericStrategy) Bidless() bool { return true }

func (s *GenericStrategy) Site() model.WebsiteType { return model.SiteUnknown }

func (s *GenericStrategy) ExtractSnapshot(ctx context.Context) (Reading, error) {
	return s.read(ctx, func(_ *parser.Page, snap model.Snapshot, _ time.Time) *decimal.Decimal {
		return snap.CurrentPrice
	})
}

func (s *GenericStrategy) LatestPrice(ctx context.Context) (*decimal.Decimal, error) {
	return s.latest(ctx, s.ExtractSnapshot)
}

// Recompute has nothing to call on unknown pages
func (s *GenericStrategy) Recompute(context.Context) error { return nil }

func (s *GenericStrategy) Pacing() Pacing {
	return Pacing{SprintSleep: time.Millisecond, CruiseSleep: 100 * time.Millisecond}
}

var (
	_ SiteStrategy = (*TaipeiStrategy)(nil)
	_ SiteStrategy = (*TaitungStrategy)(nil)
	_ SiteStrategy = (*GenericStrategy)(nil)
)
