package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type countdownPattern struct {
	name string
	re   *regexp.Regexp
	// units multiplies each captured group, in capture order
	units []time.Duration
	// skipOnDate keeps the clock pattern from eating the time part of an absolute date
	skipOnDate bool
}

const day = 24 * time.Hour

// Tried in order; the first match wins.
var countdownPatterns = []countdownPattern{
	{
		name:  "days",
		re:    regexp.MustCompile(`(\d+)\s*天\s*(\d+)\s*時\s*(\d+)\s*分\s*(\d+)\s*秒`),
		units: []time.Duration{day, time.Hour, time.Minute, time.Second},
	},
	{
		name:  "hours",
		re:    regexp.MustCompile(`(\d+)\s*時\s*(\d+)\s*分\s*(\d+)\s*秒`),
		units: []time.Duration{time.Hour, time.Minute, time.Second},
	},
	{
		name:  "minutes",
		re:    regexp.MustCompile(`(\d+)\s*分\s*(\d+)\s*秒`),
		units: []time.Duration{time.Minute, time.Second},
	},
	{
		name:  "seconds",
		re:    regexp.MustCompile(`(\d+)\s*秒`),
		units: []time.Duration{time.Second},
	},
	{
		name:       "clock",
		re:         regexp.MustCompile(`(\d+):(\d+):(\d+)`),
		units:      []time.Duration{time.Hour, time.Minute, time.Second},
		skipOnDate: true,
	},
}

var datePattern = regexp.MustCompile(`\d{4}[-/]\d{1,2}[-/]\d{1,2}|\d{1,2}/\d{1,2}/\d{4}`)

// dateTimePattern finds a date with its time inside surrounding words
var dateTimePattern = regexp.MustCompile(`(?:\d{4}[-/]\d{1,2}[-/]\d{1,2}|\d{1,2}/\d{1,2}/\d{4})\s+\d{1,2}:\d{2}(?::\d{2})?`)

// Absolute end-time layouts, tried in order when no countdown pattern matches
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"02/01/2006 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	time.RFC3339,
}

// ParseCountdown turns countdown text into a remaining duration. Text that is
// an absolute end time yields max(0, end-now). A zero result is valid: the
// countdown has either ended or not started yet, and the caller decides which.
func ParseCountdown(text string, now time.Time) (time.Duration, bool) {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "結束", "")
	text = strings.ReplaceAll(text, "剩餘", "")
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	hasDate := datePattern.MatchString(text)
	for _, p := range countdownPatterns {
		if p.skipOnDate && hasDate {
			continue
		}
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if d, ok := sumUnits(m[1:], p.units); ok {
			return d, true
		}
	}

	if end, ok := parseDateTime(text, now.Location()); ok {
		remaining := end.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		return remaining, true
	}
	return 0, false
}

func sumUnits(groups []string, units []time.Duration) (time.Duration, bool) {
	var total time.Duration
	for i, g := range groups {
		n, err := strconv.Atoi(g)
		if err != nil {
			return 0, false
		}
		total += time.Duration(n) * units[i]
	}
	return total, true
}

// parseDateTime reads text as an end time, or failing that the first date
// and time found inside it
func parseDateTime(text string, loc *time.Location) (time.Time, bool) {
	if t, ok := parseLayouts(text, loc); ok {
		return t, true
	}
	if m := dateTimePattern.FindString(text); m != "" {
		return parseLayouts(strings.Join(strings.Fields(m), " "), loc)
	}
	return time.Time{}, false
}

func parseLayouts(text string, loc *time.Location) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatCountdown renders d as DD天HH時MM分SS秒
func FormatCountdown(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	days := d / day
	d -= days * day
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%s%02d天%02d時%02d分%02d秒", sign, days, h, m, s)
}

// FormatCountdownMillis renders d as DD天HH時MM分SS秒.mmm
func FormatCountdownMillis(d time.Duration) string {
	abs := d
	if abs < 0 {
		abs = -abs
	}
	ms := (abs % time.Second) / time.Millisecond
	return fmt.Sprintf("%s.%03d", FormatCountdown(d), ms)
}

var rocPattern = regexp.MustCompile(`(\d{3})\.(\d{1,2})\.(\d{1,2})\s+(\d{1,2}):(\d{2}):(\d{2})(?:\.(\d+))?`)

// ParseROCTime parses a Minguo calendar timestamp such as "113.5.20 14:03:05".
// The year is offset by 1911.
func ParseROCTime(text string, loc *time.Location) (time.Time, bool) {
	m := rocPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	var parts [6]int
	for i := 0; i < 6; i++ {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return time.Time{}, false
		}
		parts[i] = n
	}
	nsec := 0
	if m[7] != "" {
		frac := m[7]
		if len(frac) > 9 {
			frac = frac[:9]
		}
		frac += strings.Repeat("0", 9-len(frac))
		nsec, _ = strconv.Atoi(frac)
	}
	if parts[1] < 1 || parts[1] > 12 || parts[2] < 1 || parts[2] > 31 {
		return time.Time{}, false
	}
	return time.Date(parts[0]+1911, time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], nsec, loc), true
}

var timeExclusions = []string{
	"拍賣案", "出價級距", "定義", "計算", "百分之", "不足", "以上", "規定", "說明",
	"注意", "提醒", "條件", "限制", "方式", "辦法", "規則", "流程", "步驟",
}

var timeMarkers = []string{"天", "時", "分", "秒", ":", "剩", "截止", "結束"}

// IsValidTimeText filters out rule text and long paragraphs that happen to mention time units
func IsValidTimeText(text string) bool {
	if strings.TrimSpace(text) == "" || len([]rune(text)) > 100 {
		return false
	}
	for _, k := range timeExclusions {
		if strings.Contains(text, k) {
			return false
		}
	}
	for _, k := range timeMarkers {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
