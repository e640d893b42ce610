package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WebsiteType identifies which extraction and bidding rules apply to a page
type WebsiteType int

const (
	// SiteUnknown is any page that neither site rule recognizes
	SiteUnknown WebsiteType = iota
	// SiteTaipei is the Taipei city auction site (shwoo.gov.taipei)
	SiteTaipei
	// SiteTaitung is the Taitung county auction site (epai.taitung.gov.tw)
	SiteTaitung
)

// String returns the short site name used in logs and dump file names
func (w WebsiteType) String() string {
	switch w {
	case SiteTaipei:
		return "Taipei"
	case SiteTaitung:
		return "Taitung"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (w WebsiteType) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(w.String())), nil
}

// Snapshot is one read of an auction page. Every field is optional;
// nil means the field was not found on this tick.
type Snapshot struct {
	CurrentPrice *decimal.Decimal
	StartPrice   *decimal.Decimal
	Status       *string
	Remaining    *time.Duration
}

// HasRemaining reports whether a remaining time was read
func (s Snapshot) HasRemaining() bool {
	return s.Remaining != nil
}

// String renders the snapshot for log lines
func (s Snapshot) String() string {
	return fmt.Sprintf("current=%s start=%s status=%s remaining=%s",
		FormatPrice(s.CurrentPrice), FormatPrice(s.StartPrice), str(s.Status), dur(s.Remaining))
}

// FormatPrice renders an optional price, "[NULL]" when absent
func FormatPrice(p *decimal.Decimal) string {
	if p == nil {
		return "[NULL]"
	}
	return p.String()
}

// Price returns a pointer to a decimal built from an integer amount
func Price(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// Text returns a pointer to s
func Text(s string) *string {
	return &s
}

// Duration returns a pointer to d
func Duration(d time.Duration) *time.Duration {
	return &d
}

func str(s *string) string {
	if s == nil {
		return "[NULL]"
	}
	return *s
}

func dur(d *time.Duration) string {
	if d == nil {
		return "[NULL]"
	}
	return d.String()
}
