package bid

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"sjsage522/bidsniper/internal/browser"
	"sjsage522/bidsniper/internal/model"
	"sjsage522/bidsniper/internal/parser"
	"sjsage522/bidsniper/logger"
)

const taipeiBidJS = `if (typeof goBid !== 'function') { return false; }
goBid();
return true;`

// taitungBidJS selects the delivery radio then clicks the bid button.
// The %s verb receives the JSON-quoted delivery preference.
const taitungBidJS = `var pref = %s;
var radios = document.getElementsByName('deliverway');
for (var i = 0; i < radios.length; i++) {
	if (radios[i].value.indexOf(pref) !== -1) { radios[i].checked = true; break; }
}
var btn = document.querySelector("input[type='submit']");
if (!btn) {
	var buttons = document.querySelectorAll('button');
	for (var j = 0; j < buttons.length; j++) {
		if (buttons[j].innerText.indexOf('投標') !== -1) { btn = buttons[j]; break; }
	}
}
if (!btn) { return false; }
btn.click();
return true;`

// DOMExecutor submits by running the site's own bid action in the page
type DOMExecutor struct {
	browser browser.Browser
	site    model.WebsiteType
	log     *logger.Logger
}

// NewDOMExecutor creates an executor for site
func NewDOMExecutor(b browser.Browser, site model.WebsiteType, log *logger.Logger) *DOMExecutor {
	if log == nil {
		log = logger.Nop()
	}
	return &DOMExecutor{browser: b, site: site, log: log}
}

// Script returns the bid script for the site and delivery preference
func (e *DOMExecutor) Script(delivery string) (string, bool) {
	switch e.site {
	case model.SiteTaipei:
		return taipeiBidJS, true
	case model.SiteTaitung:
		quoted, _ := json.Marshal(delivery)
		return fmt.Sprintf(taitungBidJS, quoted), true
	default:
		return "", false
	}
}

// Submit runs the bid script once
func (e *DOMExecutor) Submit(ctx context.Context, cfg model.TaskConfig) Result {
	js, ok := e.Script(cfg.Delivery)
	if !ok {
		return failed("no bid action for %s pages", e.site)
	}

	if !e.bidControlReady(ctx) {
		return failed("bid control disabled or missing")
	}

	e.log.Tag(zerolog.InfoLevel, "Submit").Msg("running page bid action")
	res, err := e.browser.ExecuteScript(ctx, js)
	if err != nil {
		return failed("bid script failed: %v", err)
	}
	if done, _ := res.(bool); !done {
		return failed("bid control not found on page")
	}

	e.log.Tag(zerolog.InfoLevel, "Clicked").Msg("bid action sent")
	return Result{Status: Submitted}
}

// bidControlReady checks the page for an enabled bid control. An unreadable
// or empty page does not block the bid.
func (e *DOMExecutor) bidControlReady(ctx context.Context) bool {
	html, err := e.browser.PageSource(ctx)
	if err != nil || html == "" {
		e.log.Debug().Err(err).Msg("page not readable, skipping bid control check")
		return true
	}
	return parser.CanBid(&parser.Page{HTML: html})
}
