package parser

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sjsage522/bidsniper/internal/model"
	"sjsage522/bidsniper/logger"
)

type detectRule struct {
	name  string
	site  model.WebsiteType
	match func(p *Page) bool
}

func urlContains(s string) func(*Page) bool {
	return func(p *Page) bool { return strings.Contains(p.URL, s) }
}

func textContainsAny(words ...string) func(*Page) bool {
	return func(p *Page) bool {
		for _, w := range words {
			if strings.Contains(p.Text, w) {
				return true
			}
		}
		return false
	}
}

func htmlContainsAny(words ...string) func(*Page) bool {
	return func(p *Page) bool {
		for _, w := range words {
			if strings.Contains(p.HTML, w) {
				return true
			}
		}
		return false
	}
}

// URL first, then body keywords, then DOM markers.
var detectRules = []detectRule{
	{"url", model.SiteTaipei, urlContains("shwoo.gov.taipei")},
	{"url", model.SiteTaitung, urlContains("epai.taitung.gov.tw")},
	{"body", model.SiteTaipei, func(p *Page) bool {
		return textContainsAny("台北惜物網", "臺北惜物網", "惜物")(p) || htmlContainsAny("shwoo")(p)
	}},
	{"body", model.SiteTaitung, textContainsAny("台東E拍網", "臺東E拍網", "現在時間:", "截止時間:")},
	{"marker", model.SiteTaipei, htmlContainsAny("time_end", "bidprice")},
}

// Extractor turns page reads into snapshots. The site is detected once and
// cached because the page identity does not change during a run.
type Extractor struct {
	log      *logger.Logger
	site     model.WebsiteType
	detected bool
}

// NewExtractor creates an extractor for one task
func NewExtractor(log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{log: log}
}

// Detect returns the site of the page, detecting it on the first call
func (e *Extractor) Detect(p *Page) model.WebsiteType {
	if e.detected {
		return e.site
	}
	e.site = model.SiteUnknown
	for _, r := range detectRules {
		if r.match(p) {
			e.site = r.site
			e.log.Tag(zerolog.InfoLevel, "Detect").
				Str("rule", r.name).
				Stringer("site", r.site).
				Msg("site detected")
			break
		}
	}
	if e.site == model.SiteUnknown {
		e.log.Tag(zerolog.WarnLevel, "Detect").Msg("site not recognized, using generic rules")
	}
	e.detected = true
	return e.site
}

// Site returns the cached site and whether detection has run
func (e *Extractor) Site() (model.WebsiteType, bool) {
	return e.site, e.detected
}

// Extract reads a snapshot from p using the detected site's rules.
// Fields that no rule finds are left nil.
func (e *Extractor) Extract(p *Page, now time.Time) model.Snapshot {
	profile := ProfileFor(e.Detect(p))
	var snap model.Snapshot

	if v, rule, ok := firstMatch(profile.CurrentPrice, p, now); ok {
		snap.CurrentPrice = &v
		e.log.Trace().Str("rule", rule).Str("current_price", v.String()).Msg("field found")
	}
	if v, rule, ok := firstMatch(profile.StartPrice, p, now); ok {
		snap.StartPrice = &v
		e.log.Trace().Str("rule", rule).Str("start_price", v.String()).Msg("field found")
	}
	if v, rule, ok := firstMatch(profile.Status, p, now); ok {
		snap.Status = &v
		e.log.Trace().Str("rule", rule).Str("status", v).Msg("field found")
	}
	if v, rule, ok := firstMatch(profile.Remaining, p, now); ok {
		snap.Remaining = &v
		if v == 0 {
			e.log.Debug().Str("rule", rule).Msg("countdown reads zero, ended or not started")
		} else {
			e.log.Trace().Str("rule", rule).Dur("remaining", v).Msg("field found")
		}
	}
	return snap
}

// TaipeiIncrement returns the minimum raise over price on the Taipei site
func TaipeiIncrement(price decimal.Decimal) decimal.Decimal {
	switch {
	case price.LessThanOrEqual(decimal.NewFromInt(500)):
		return decimal.NewFromInt(10)
	case price.LessThanOrEqual(decimal.NewFromInt(1000)):
		return decimal.NewFromInt(30)
	case price.LessThanOrEqual(decimal.NewFromInt(10000)):
		return decimal.NewFromInt(100)
	case price.LessThanOrEqual(decimal.NewFromInt(50000)):
		return decimal.NewFromInt(500)
	case price.LessThanOrEqual(decimal.NewFromInt(100000)):
		return decimal.NewFromInt(1000)
	default:
		return decimal.NewFromInt(2000)
	}
}

// TaipeiBidPrice returns the amount a Taipei bid would submit: the selected
// #bidprice option, or the current price plus one increment.
func TaipeiBidPrice(p *Page, snap model.Snapshot, now time.Time) *decimal.Decimal {
	if v, _, ok := firstMatch(taipeiBidPriceRules, p, now); ok {
		return &v
	}
	if snap.CurrentPrice != nil {
		next := snap.CurrentPrice.Add(TaipeiIncrement(*snap.CurrentPrice))
		return &next
	}
	return nil
}

// TaitungBidPrice returns the current Taitung price, or the amount in the
// page's first select when the price text is missing.
func TaitungBidPrice(p *Page, snap model.Snapshot, now time.Time) *decimal.Decimal {
	if snap.CurrentPrice != nil {
		v := *snap.CurrentPrice
		return &v
	}
	if v, _, ok := firstMatch(taitungSelectPriceRules, p, now); ok {
		return &v
	}
	return nil
}

// CanBid reports whether the page shows an enabled bid control
func CanBid(p *Page) bool {
	doc := p.Document()
	found := false
	doc.Find("input[type='submit'], button, #bidButton, [class*='bid-button']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if _, disabled := s.Attr("disabled"); disabled {
			return true
		}
		label := s.AttrOr("value", "") + s.Text()
		if s.Is("#bidButton") || s.Is("[class*='bid-button']") ||
			strings.Contains(label, "出價") || strings.Contains(label, "競標") ||
			strings.Contains(label, "送出") || strings.Contains(label, "投標") {
			found = true
			return false
		}
		return true
	})
	return found
}
