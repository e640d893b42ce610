package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"sjsage522/bidsniper/logger"
)

// Options configures how Chrome is reached
type Options struct {
	// RemoteURL is a DevTools websocket or http endpoint of a running browser.
	// When empty a local Chrome is started.
	RemoteURL string
	// ExecPath overrides the local Chrome binary
	ExecPath string
	Headless bool
	// Timeout bounds every single browser call
	Timeout time.Duration
}

// Launcher owns one browser process and opens a tab per task. Tabs share the
// browser's cookie store, so a session logged in on one tab is seen by all.
type Launcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	log         *logger.Logger

	mu sync.Mutex
	// rootCtx is the first tab; task tabs are created from it so they live
	// in the same browser process
	rootCtx    context.Context
	rootCancel context.CancelFunc
}

// NewLauncher prepares an allocator for opts. The browser starts with the first tab.
func NewLauncher(opts Options) *Launcher {
	var (
		allocCtx context.Context
		cancel   context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, cancel = chromedp.NewRemoteAllocator(context.Background(), opts.RemoteURL)
	} else {
		flags := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.WindowSize(1280, 900),
		)
		if opts.ExecPath != "" {
			flags = append(flags, chromedp.ExecPath(opts.ExecPath))
		}
		allocCtx, cancel = chromedp.NewExecAllocator(context.Background(), flags...)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Launcher{
		allocCtx:    allocCtx,
		allocCancel: cancel,
		timeout:     timeout,
		log:         logger.ForBrowser(),
	}
}

// root starts the browser on first use
func (l *Launcher) root() (context.Context, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rootCtx != nil {
		return l.rootCtx, nil
	}
	ctx, cancel := chromedp.NewContext(l.allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		l.log.Debug().Msgf(format, v...)
	}))
	// the first Run starts the browser and must use the tab context itself
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	l.rootCtx, l.rootCancel = ctx, cancel
	return ctx, nil
}

// Open creates a new tab in the shared browser
func (l *Launcher) Open() (*Chrome, error) {
	root, err := l.root()
	if err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(root)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return &Chrome{ctx: tabCtx, cancel: cancel, timeout: l.timeout}, nil
}

// Close shuts the browser down
func (l *Launcher) Close() {
	l.mu.Lock()
	if l.rootCancel != nil {
		l.rootCancel()
	}
	l.mu.Unlock()
	l.allocCancel()
}

// Chrome implements Browser over a chromedp tab
type Chrome struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// run executes actions on the tab, bounded by the per-call timeout and by ctx
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	return c.runWithin(ctx, c.timeout, actions...)
}

func (c *Chrome) runWithin(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url))
}

// Reload reloads the current page
func (c *Chrome) Reload(ctx context.Context) error {
	return c.run(ctx, chromedp.Reload())
}

// WaitReady waits for selector to appear in the document
func (c *Chrome) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	return c.runWithin(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// CurrentURL returns the page location
func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := c.run(ctx, chromedp.Location(&url))
	return url, err
}

// Title returns the document title
func (c *Chrome) Title(ctx context.Context) (string, error) {
	var title string
	err := c.run(ctx, chromedp.Title(&title))
	return title, err
}

const findElementsJS = `Array.from(document.querySelectorAll(%s)).map(function (e) {
	var attrs = {};
	for (var i = 0; i < e.attributes.length; i++) { attrs[e.attributes[i].name] = e.attributes[i].value; }
	return {
		tag: e.tagName.toLowerCase(),
		text: (e.innerText || e.value || e.textContent || '').trim(),
		attrs: attrs,
		visible: !!(e.offsetWidth || e.offsetHeight || e.getClientRects().length)
	};
})`

// FindElements returns every element matching the CSS selector
func (c *Chrome) FindElements(ctx context.Context, selector string) ([]Element, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return nil, err
	}
	var elements []Element
	if err := c.run(ctx, chromedp.Evaluate(fmt.Sprintf(findElementsJS, quoted), &elements)); err != nil {
		return nil, err
	}
	return elements, nil
}

// ExecuteScript runs js wrapped in a function and returns what it returns.
// undefined and null both come back as nil.
func (c *Chrome) ExecuteScript(ctx context.Context, js string) (interface{}, error) {
	var res interface{}
	err := c.run(ctx, chromedp.Evaluate("(function(){\n"+js+"\n})()", &res))
	if errors.Is(err, chromedp.ErrJSUndefined) || errors.Is(err, chromedp.ErrJSNull) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// TakeScreenshot captures the viewport
func (c *Chrome) TakeScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := c.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// ElementScreenshot captures the first element matching selector
func (c *Chrome) ElementScreenshot(ctx context.Context, selector string) ([]byte, error) {
	var buf []byte
	err := c.run(ctx, chromedp.Screenshot(selector, &buf, chromedp.ByQuery, chromedp.NodeVisible))
	return buf, err
}

// Cookies returns the cookies visible to the current page
func (c *Chrome) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var raw []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	cookies := make([]*http.Cookie, 0, len(raw))
	for _, rc := range raw {
		hc := &http.Cookie{
			Name:     rc.Name,
			Value:    rc.Value,
			Domain:   rc.Domain,
			Path:     rc.Path,
			Secure:   rc.Secure,
			HttpOnly: rc.HTTPOnly,
		}
		// session cookies report -1
		if rc.Expires > 0 {
			sec, frac := math.Modf(rc.Expires)
			hc.Expires = time.Unix(int64(sec), int64(frac*1e9))
		}
		cookies = append(cookies, hc)
	}
	return cookies, nil
}

// PageSource returns the document markup
func (c *Chrome) PageSource(ctx context.Context) (string, error) {
	var html string
	err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// BodyText returns document.body.innerText
func (c *Chrome) BodyText(ctx context.Context) (string, error) {
	var text string
	err := c.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &text))
	return text, err
}

// Close closes the tab
func (c *Chrome) Close() error {
	c.cancel()
	return nil
}

var _ Browser = (*Chrome)(nil)
