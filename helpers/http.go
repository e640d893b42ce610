package helpers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"slices"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
)

// HTTP client and header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	}

	rnd = mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
)

// UserAgent returns a browser user agent string
func UserAgent() string {
	return userAgents[rnd.Intn(len(userAgents))]
}

// SetBrowserHeaders sets browser-like headers on req. referer is skipped when empty.
func SetBrowserHeaders(req *http.Request, referer string) {
	req.Header.Set("User-Agent", UserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
}

// Fetch sends req with client and returns the response body converted to UTF-8.
// fallback decodes bodies that declare no charset; nil keeps the detected one.
func Fetch(ctx context.Context, client *http.Client, req *http.Request, fallback encoding.Encoding) (string, error) {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	// Check for rate limiting
	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		return "", fmt.Errorf("rate limited; retry after %s", resp.Header.Get("Retry-After"))
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s unexpected status code: %d", req.URL, resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return DecodeBodyOr(bodyBytes, resp.Header.Get("Content-Type"), fallback)
}

// DecodeBody converts body to UTF-8 using the Content-Type header and any
// charset declared in the markup
func DecodeBody(body []byte, contentType string) (string, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)

	// If already UTF-8, return as is
	if name == "utf-8" || name == "UTF-8" {
		return string(body), nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return "", fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}

	return buf.String(), nil
}

// DecodeBodyOr is DecodeBody for sites that omit their charset: when neither
// the header nor the markup names one and the body is not UTF-8, fallback is used
func DecodeBodyOr(body []byte, contentType string, fallback encoding.Encoding) (string, error) {
	_, name, certain := charset.DetermineEncoding(body, contentType)
	if fallback == nil || certain || name != "windows-1252" {
		return DecodeBody(body, contentType)
	}

	decoded, err := fallback.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("failed to decode body: %w", err)
	}
	return string(decoded), nil
}
