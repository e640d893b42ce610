package bid

import (
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sjsage522/bidsniper/helpers"
	"sjsage522/bidsniper/internal/browser"
	"sjsage522/bidsniper/internal/diagnostics"
	"sjsage522/bidsniper/internal/model"
	"sjsage522/bidsniper/internal/parser"
	"sjsage522/bidsniper/logger"
	bserrors "sjsage522/bidsniper/pkg/errors"
)

// SuccessMarker is the text the site returns for an accepted bid
const SuccessMarker = "標價成功"

// Reasons reported for known alert messages
const (
	ReasonDelivery = "請選擇交貨方式"
	ReasonCaptcha  = "驗證碼錯誤"
	ReasonUnknown  = "unrecognized response"
)

// interceptSubmitJS lets the page fill its computed fields without leaving it
const interceptSubmitJS = `var f = document.getElementById('form1');
if (!f) { return false; }
f.submit = function () { return false; };
try { submitOK(); } catch (e) {}
return true;`

var (
	alertPattern = regexp.MustCompile(`alert\('([^']+)'\)`)
	auidPattern  = regexp.MustCompile(`auid=([^&]+)`)
	pcodePattern = regexp.MustCompile(`pcode=([^&]+)`)
)

// ClassifyResponse reads a bid response. known is false when the body
// matched nothing and should be kept for inspection.
func ClassifyResponse(body string) (res Result, known bool) {
	if strings.Contains(body, SuccessMarker) {
		return Result{Status: Submitted}, true
	}
	if strings.Contains(body, "alert(") {
		return Result{Status: Failed, Reason: alertReason(body)}, true
	}
	return Result{Status: Failed, Reason: ReasonUnknown}, false
}

func alertReason(body string) string {
	msg, ok := helpers.FirstGroup(alertPattern, body)
	if !ok {
		return "unreadable alert"
	}
	switch {
	case strings.Contains(msg, "請選") || strings.Contains(msg, "交貨"):
		return ReasonDelivery
	case strings.Contains(msg, "驗證碼"):
		return ReasonCaptcha
	default:
		return msg
	}
}

// FormReplay submits by posting the captured bid form over HTTP with the
// browser session's cookies. It belongs to one task and is not shared.
type FormReplay struct {
	browser browser.Browser
	pageURL string
	dumper  *diagnostics.Dumper
	log     *logger.Logger

	// Settle is how long the page gets to fill its fields before the form is read
	Settle  time.Duration
	Timeout time.Duration

	client *http.Client
	form   *Form
}

// NewFormReplay creates a replay executor for the bid page at pageURL
func NewFormReplay(b browser.Browser, pageURL string, dumper *diagnostics.Dumper, log *logger.Logger) *FormReplay {
	if log == nil {
		log = logger.Nop()
	}
	return &FormReplay{
		browser: b,
		pageURL: pageURL,
		dumper:  dumper,
		log:     log,
		Settle:  500 * time.Millisecond,
		Timeout: 10 * time.Second,
	}
}

// Form returns the captured form, nil before Prepare
func (r *FormReplay) Form() *Form {
	return r.form
}

// Reset drops the captured form so the next Submit captures it again
func (r *FormReplay) Reset() {
	r.form = nil
}

// httpClient returns the task's client, creating it on first use
func (r *FormReplay) httpClient() *http.Client {
	if r.client == nil {
		jar, _ := cookiejar.New(nil)
		r.client = &http.Client{Jar: jar, Timeout: r.Timeout}
	}
	return r.client
}

// Prepare captures the bid form from the current page and copies the
// session cookies into the HTTP client
func (r *FormReplay) Prepare(ctx context.Context, delivery string) error {
	r.log.Tag(zerolog.DebugLevel, "Parse").Msg("capturing bid form")

	if _, err := r.browser.ExecuteScript(ctx, interceptSubmitJS); err != nil {
		r.log.Debug().Err(err).Msg("form pre-fill script failed")
	}
	if r.Settle > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.Settle):
		}
	}

	html, err := r.browser.PageSource(ctx)
	if err != nil {
		return bserrors.NewBrowser("", "failed to read bid page", err)
	}
	form, err := ParseBidForm(html, r.pageURL, delivery)
	if err != nil {
		return bserrors.NewExtraction("", "failed to parse bid form", err)
	}
	r.form = form
	r.log.Tag(zerolog.InfoLevel, "OK").Msgf("bid form captured, %d fields", len(form.Fields))

	return r.TransferCookies(ctx)
}

// TransferCookies copies the browser's cookies into the HTTP client
func (r *FormReplay) TransferCookies(ctx context.Context) error {
	cookies, err := r.browser.Cookies(ctx)
	if err != nil {
		return bserrors.NewBrowser("", "failed to read session cookies", err)
	}
	u, err := url.Parse(r.pageURL)
	if err != nil {
		return bserrors.NewValidation("", "invalid page url")
	}
	r.httpClient().Jar.SetCookies(u, cookies)
	r.log.Tag(zerolog.DebugLevel, "Cookie").Msgf("transferred %d cookies", len(cookies))
	return nil
}

// Submit posts the captured form once, encoded in Big5
func (r *FormReplay) Submit(ctx context.Context, cfg model.TaskConfig) Result {
	if r.form == nil {
		r.log.Warn().Msg("bid form not captured yet, capturing now")
		if err := r.Prepare(ctx, cfg.Delivery); err != nil {
			return failed("bid form unavailable: %v", err)
		}
	}

	body, err := helpers.EncodeForm(r.form.Fields, helpers.Big5)
	if err != nil {
		return failed("failed to encode form: %v", err)
	}
	origin, err := helpers.Origin(r.pageURL)
	if err != nil {
		return failed("invalid page url: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.form.Action, strings.NewReader(body))
	if err != nil {
		return failed("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", helpers.UserAgent())
	req.Header.Set("Referer", r.pageURL)
	req.Header.Set("Origin", origin)

	r.log.Tag(zerolog.InfoLevel, "Submit").Msg("posting bid form")
	start := time.Now()
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return failed("bid request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return failed("failed to read bid response: %v", err)
	}
	text, err := helpers.DecodeBodyOr(raw, resp.Header.Get("Content-Type"), helpers.Big5)
	if err != nil {
		return failed("failed to decode bid response: %v", err)
	}
	r.log.Tag(zerolog.InfoLevel, "Response").Msgf("status %d in %s", resp.StatusCode, time.Since(start).Round(time.Millisecond))

	res, known := ClassifyResponse(text)
	res.Price = r.form.Price()
	if !known {
		if path := r.dumper.Response("TaitungBid", text); path != "" {
			res.Reason = fmt.Sprintf("%s, body saved to %s", res.Reason, path)
		}
	}
	return res
}

// RefreshPrice fetches the bid page over HTTP and reads the current amount
func (r *FormReplay) RefreshPrice(ctx context.Context) (*decimal.Decimal, error) {
	auid, ok := helpers.FirstGroup(auidPattern, r.pageURL)
	if !ok {
		return nil, bserrors.NewExtraction("", "page url has no auid", nil)
	}
	pcode, ok := helpers.FirstGroup(pcodePattern, r.pageURL)
	if !ok {
		return nil, bserrors.NewExtraction("", "page url has no pcode", nil)
	}
	origin, err := helpers.Origin(r.pageURL)
	if err != nil {
		return nil, bserrors.NewValidation("", "invalid page url")
	}

	priceURL := fmt.Sprintf("%s/bid.asp?op_=show&auid=%s&pcode=%s&%d", origin, auid, pcode, mathrand.Int63())
	req, err := http.NewRequest(http.MethodGet, priceURL, nil)
	if err != nil {
		return nil, bserrors.NewNetwork("", "failed to create price request", err)
	}
	helpers.SetBrowserHeaders(req, r.pageURL)

	html, err := helpers.Fetch(ctx, r.httpClient(), req, helpers.Big5)
	if err != nil {
		return nil, bserrors.NewNetwork("", "price request failed", err)
	}

	price, source, ok := parser.PriceFromBidPage(html)
	if !ok {
		r.dumper.Response("TaitungPrice", html)
		return nil, bserrors.NewExtraction("", "no price in bid page", nil)
	}
	r.log.Tag(zerolog.TraceLevel, "Price").Msgf("%s from %s", price, source)
	return &price, nil
}

var _ Executor = (*FormReplay)(nil)
