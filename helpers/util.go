package helpers

import (
	"errors"
	"net/url"
	"regexp"
)

// Origin returns the scheme and host of rawURL, e.g. https://epai.taitung.gov.tw
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("url has no scheme or host")
	}
	return u.Scheme + "://" + u.Host, nil
}

// FirstGroup returns the first capture group of re in s
func FirstGroup(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}
