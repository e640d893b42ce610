package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"sjsage522/bidsniper/internal/model"
)

// Profile is the extraction table for one site layout
type Profile struct {
	Site         model.WebsiteType
	CurrentPrice []Rule[decimal.Decimal]
	StartPrice   []Rule[decimal.Decimal]
	Status       []Rule[string]
	Remaining    []Rule[time.Duration]
}

const (
	taipeiCountdownJS = `try {
	if (typeof remainingSeconds !== 'undefined' && remainingSeconds > 0) return remainingSeconds;
	if (typeof timeLeft !== 'undefined' && timeLeft > 0) return timeLeft;
	if (typeof countdown !== 'undefined' && countdown > 0) return countdown;
	return null;
} catch (e) { return null; }`

	taitungCountdownJS = `return typeof difftime !== 'undefined' ? difftime : null;`
)

var genericProfile = Profile{
	Site: model.SiteUnknown,
	CurrentPrice: []Rule[decimal.Decimal]{
		labelPrice("目前價格"),
		labelPrice("當前價格"),
		labelPrice("最高價"),
		selectorPrice(".current-price"),
		selectorPrice("#currentPrice"),
	},
	StartPrice: []Rule[decimal.Decimal]{
		labelPrice("起標價"),
		labelPrice("底價"),
		selectorPrice(".start-price"),
	},
	Status: []Rule[string]{
		labelText("狀態"),
		labelText("競標狀態"),
		selectorText(".bid-status"),
	},
	Remaining: genericTimeRules,
}

var genericTimeRules = []Rule[time.Duration]{
	labelTime("剩餘時間"),
	labelTime("截止時間"),
	labelTime("結束時間"),
	labelTime("投標截止"),
	selectorTime("#countdown"),
	selectorTime(".countdown"),
	selectorTime("[class*='time-remaining']"),
	selectorTime("[class*='countdown']"),
}

var taipeiProfile = Profile{
	Site: model.SiteTaipei,
	CurrentPrice: []Rule[decimal.Decimal]{
		textPrice("current-bid", regexp.MustCompile(`目前出價\s+([0-9,]+)\s*元`)),
	},
	StartPrice: []Rule[decimal.Decimal]{
		textPrice("reserve", regexp.MustCompile(`底價\s+新台幣\s+([0-9,]+)\s+元`)),
	},
	Status: []Rule[string]{
		textStatus("bidders", regexp.MustCompile(`目前出價\s+[0-9,]+\s*元\s+/\s+(\d+)\s+人出價`),
			func(n string) string { return "進行中 (" + n + "人出價)" }),
		textStatus("bid-count", regexp.MustCompile(`本案您可出價\d+次，已出價(\d+)次`),
			func(n string) string { return "可競標 (已出價" + n + "次)" }),
		fixedStatus("進行中"),
	},
	Remaining: append([]Rule[time.Duration]{
		taipeiTimeEnd(),
		taipeiReciprocal(),
		scriptSeconds("script:countdown", taipeiCountdownJS),
	}, genericTimeRules...),
}

// taipeiTimeEnd reads the #time_end countdown. A zero countdown is returned
// as-is; the page shows all zeros before its timer script starts.
func taipeiTimeEnd() Rule[time.Duration] {
	return Rule[time.Duration]{
		Name: "time_end",
		Match: func(p *Page, now time.Time) (time.Duration, bool) {
			text := cleanText(p.Document().Find("#time_end").First().Text())
			if text == "" {
				return 0, false
			}
			return ParseCountdown(text, now)
		},
	}
}

func taipeiReciprocal() Rule[time.Duration] {
	return Rule[time.Duration]{
		Name: "reciprocal",
		Match: func(p *Page, now time.Time) (time.Duration, bool) {
			var (
				found time.Duration
				ok    bool
			)
			p.Document().Find(".reciprocal").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				text := cleanText(s.Text())
				if !strings.Contains(text, "天") || !strings.Contains(text, "秒") {
					return true
				}
				d, parsed := ParseCountdown(text, now)
				if parsed && d > 0 {
					found, ok = d, true
					return false
				}
				return true
			})
			return found, ok
		},
	}
}

var (
	taitungNowPattern = regexp.MustCompile(`現在時間:\s*(\d{3}\.\d{1,2}\.\d{1,2}\s+\d{1,2}:\d{2}:\d{2}(?:\.\d+)?)`)
	taitungEndPattern = regexp.MustCompile(`截止時間:\s*(\d{3}\.\d{1,2}\.\d{1,2}\s+\d{1,2}:\d{2}:\d{2})`)
)

// taitungServerClock computes the remaining time from the server's own clock
// and deadline printed on the page, so local clock skew does not matter.
func taitungServerClock() Rule[time.Duration] {
	return Rule[time.Duration]{
		Name: "server-clock",
		Match: func(p *Page, now time.Time) (time.Duration, bool) {
			nm := taitungNowPattern.FindStringSubmatch(p.Text)
			em := taitungEndPattern.FindStringSubmatch(p.Text)
			if nm == nil || em == nil {
				return 0, false
			}
			serverNow, ok1 := ParseROCTime(nm[1], now.Location())
			end, ok2 := ParseROCTime(em[1], now.Location())
			if !ok1 || !ok2 {
				return 0, false
			}
			remaining := end.Sub(serverNow)
			if remaining < 0 {
				remaining = 0
			}
			return remaining, true
		},
	}
}

var taitungProfile = Profile{
	Site: model.SiteTaitung,
	CurrentPrice: []Rule[decimal.Decimal]{
		textPrice("bid-price", regexp.MustCompile(`競價價格:\s*(\d+)`)),
		textPrice("bid-record", regexp.MustCompile(`1\s+(\d+)元`)),
	},
	StartPrice: []Rule[decimal.Decimal]{
		textPrice("reserve", regexp.MustCompile(`底價\s+新台幣\s*(\d+)\s*元`)),
	},
	Status: []Rule[string]{
		textStatus("tracking", regexp.MustCompile(`追蹤狀態\s+(.+?)(?:\r|\n|$)`),
			func(s string) string { return s }),
	},
	Remaining: append([]Rule[time.Duration]{
		taitungServerClock(),
		scriptSeconds("script:difftime", taitungCountdownJS),
	}, genericTimeRules...),
}

// ProfileFor returns the extraction table for site
func ProfileFor(site model.WebsiteType) *Profile {
	switch site {
	case model.SiteTaipei:
		return &taipeiProfile
	case model.SiteTaitung:
		return &taitungProfile
	default:
		return &genericProfile
	}
}

// Next-bid price sources. Taipei offers the next legal amount in #bidprice;
// Taitung's first select carries the amount the form will submit.
var (
	taipeiBidPriceRules = []Rule[decimal.Decimal]{
		scriptPrice("script:bidprice", `var s = document.getElementById('bidprice');
if (!s || s.selectedIndex < 0) return null;
return s.options[s.selectedIndex].text;`),
		selectedOptionPrice("#bidprice"),
	}

	taitungSelectPriceRules = []Rule[decimal.Decimal]{
		scriptPrice("script:select", `var s = document.getElementsByTagName('select')[0];
if (!s || s.selectedIndex < 0) return null;
return s.options[s.selectedIndex].text;`),
		selectedOptionPrice("select"),
	}
)

// selectedOptionPrice reads the selected option of the first matching select,
// falling back to its first option as a browser would.
func selectedOptionPrice(selector string) Rule[decimal.Decimal] {
	return Rule[decimal.Decimal]{
		Name: "option:" + selector,
		Match: func(p *Page, _ time.Time) (decimal.Decimal, bool) {
			sel := p.Document().Find(selector).First()
			if sel.Length() == 0 {
				return decimal.Decimal{}, false
			}
			opt := sel.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = sel.Find("option").First()
			}
			if opt.Length() == 0 {
				return decimal.Decimal{}, false
			}
			return parsePrice(strings.ReplaceAll(opt.Text(), "元", ""))
		},
	}
}
