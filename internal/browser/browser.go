package browser

import (
	"context"
	"net/http"
	"time"
)

// Element is a snapshot of one DOM element returned by FindElements
type Element struct {
	Tag     string            `json:"tag"`
	Text    string            `json:"text"`
	Attrs   map[string]string `json:"attrs"`
	Visible bool              `json:"visible"`
}

// Attr returns the named attribute or an empty string
func (e Element) Attr(name string) string {
	return e.Attrs[name]
}

// Browser is the automation surface the monitor depends on. Implementations
// drive one page and are used by a single task.
type Browser interface {
	// Navigate loads url and waits for the document to be ready
	Navigate(ctx context.Context, url string) error

	// Reload reloads the current page
	Reload(ctx context.Context) error

	// WaitReady blocks until selector is present or timeout elapses
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error

	// CurrentURL returns the location of the page
	CurrentURL(ctx context.Context) (string, error)

	// Title returns the document title
	Title(ctx context.Context) (string, error)

	// FindElements returns every element matching the CSS selector
	FindElements(ctx context.Context, selector string) ([]Element, error)

	// ExecuteScript runs js as a function body and returns its result.
	// Scripts return values with a return statement.
	ExecuteScript(ctx context.Context, js string) (interface{}, error)

	// TakeScreenshot captures the visible viewport as PNG
	TakeScreenshot(ctx context.Context) ([]byte, error)

	// ElementScreenshot captures the first element matching selector as PNG
	ElementScreenshot(ctx context.Context, selector string) ([]byte, error)

	// Cookies returns the session cookies of the current page
	Cookies(ctx context.Context) ([]*http.Cookie, error)

	// PageSource returns the serialized document markup
	PageSource(ctx context.Context) (string, error)

	// BodyText returns the rendered text of the document body
	BodyText(ctx context.Context) (string, error)

	// Close releases the page
	Close() error
}
