// Package browsertest provides a scriptable in-memory Browser for tests.
package browsertest

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"sjsage522/bidsniper/internal/browser"
)

// ErrNoScript is returned by ExecuteScript when no handler is set
var ErrNoScript = errors.New("browsertest: no script handler")

// Fake is a Browser whose page content is set directly by the test
type Fake struct {
	mu sync.Mutex

	URL       string
	PageTitle string
	Text      string
	HTML      string
	Elements  map[string][]browser.Element
	Jar       []*http.Cookie
	PNG       []byte

	// Script handles ExecuteScript; nil makes every script fail
	Script func(js string) (interface{}, error)
	// OnReload runs on every Reload, e.g. to change the page content
	OnReload func(f *Fake)

	NavigateErr error
	ReadErr     error
	WaitErr     error

	Navigations []string
	Scripts     []string
	Reloads     int
	Closed      bool
}

var _ browser.Browser = (*Fake)(nil)

// Navigate records url and makes it the current location
func (f *Fake) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Navigations = append(f.Navigations, url)
	if f.NavigateErr != nil {
		return f.NavigateErr
	}
	f.URL = url
	return nil
}

// Reload counts the reload and runs OnReload
func (f *Fake) Reload(_ context.Context) error {
	f.mu.Lock()
	f.Reloads++
	hook := f.OnReload
	f.mu.Unlock()
	if hook != nil {
		hook(f)
	}
	return nil
}

// WaitReady returns WaitErr
func (f *Fake) WaitReady(context.Context, string, time.Duration) error {
	return f.WaitErr
}

func (f *Fake) CurrentURL(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.URL, f.ReadErr
}

func (f *Fake) Title(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PageTitle, f.ReadErr
}

// FindElements returns the elements registered for selector
func (f *Fake) FindElements(_ context.Context, selector string) ([]browser.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Elements[selector], f.ReadErr
}

// ExecuteScript records js and hands it to Script
func (f *Fake) ExecuteScript(_ context.Context, js string) (interface{}, error) {
	f.mu.Lock()
	f.Scripts = append(f.Scripts, js)
	handler := f.Script
	f.mu.Unlock()
	if handler == nil {
		return nil, ErrNoScript
	}
	return handler(js)
}

// ScriptCount returns how many scripts contained substr
func (f *Fake) ScriptCount(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, js := range f.Scripts {
		if strings.Contains(js, substr) {
			n++
		}
	}
	return n
}

func (f *Fake) TakeScreenshot(context.Context) ([]byte, error) {
	return f.PNG, nil
}

func (f *Fake) ElementScreenshot(context.Context, string) ([]byte, error) {
	return f.PNG, nil
}

func (f *Fake) Cookies(context.Context) ([]*http.Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Jar, f.ReadErr
}

func (f *Fake) PageSource(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.HTML, f.ReadErr
}

func (f *Fake) BodyText(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Text, f.ReadErr
}

// SetPage replaces the page text and markup
func (f *Fake) SetPage(text, html string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Text = text
	f.HTML = html
}

func (f *Fake) Close() error {
	f.Closed = true
	return nil
}
