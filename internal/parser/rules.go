package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// Rule is one candidate source for a snapshot field. A profile holds an
// ordered list of rules per field and the first rule that yields a value wins,
// so supporting a new layout means appending rules, not branching.
type Rule[T any] struct {
	Name  string
	Match func(p *Page, now time.Time) (T, bool)
}

// firstMatch applies rules in order and reports which one matched
func firstMatch[T any](rules []Rule[T], p *Page, now time.Time) (T, string, bool) {
	for _, r := range rules {
		if v, ok := r.Match(p, now); ok {
			return v, r.Name, true
		}
	}
	var zero T
	return zero, "", false
}

var numberPattern = regexp.MustCompile(`[\d,]+`)

// parsePrice reads the first run of digits (with thousands separators) in s
func parsePrice(s string) (decimal.Decimal, bool) {
	m := numberPattern.FindString(s)
	m = strings.ReplaceAll(m, ",", "")
	if m == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// textPrice reads the first capture group of re in the page text as a price
func textPrice(name string, re *regexp.Regexp) Rule[decimal.Decimal] {
	return Rule[decimal.Decimal]{
		Name: name,
		Match: func(p *Page, _ time.Time) (decimal.Decimal, bool) {
			m := re.FindStringSubmatch(p.Text)
			if m == nil {
				return decimal.Decimal{}, false
			}
			return parsePrice(m[1])
		},
	}
}

// textStatus formats the first capture group of re in the page text
func textStatus(name string, re *regexp.Regexp, format func(string) string) Rule[string] {
	return Rule[string]{
		Name: name,
		Match: func(p *Page, _ time.Time) (string, bool) {
			m := re.FindStringSubmatch(p.Text)
			if m == nil {
				return "", false
			}
			s := strings.TrimSpace(format(m[1]))
			return s, s != ""
		},
	}
}

// fixedStatus always yields value; used as the last rule of a status list
func fixedStatus(value string) Rule[string] {
	return Rule[string]{
		Name:  "default",
		Match: func(*Page, time.Time) (string, bool) { return value, true },
	}
}

// labelCells finds the table cell following a cell whose own text contains label
func labelCells(doc *goquery.Document, label string) *goquery.Selection {
	return doc.Find("td").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(ownText(s), label)
	}).NextAllFiltered("td")
}

// labelPrice reads the price in the cell next to a label cell
func labelPrice(label string) Rule[decimal.Decimal] {
	return Rule[decimal.Decimal]{
		Name: "label:" + label,
		Match: func(p *Page, _ time.Time) (decimal.Decimal, bool) {
			cell := labelCells(p.Document(), label).First()
			if cell.Length() == 0 {
				return decimal.Decimal{}, false
			}
			return parsePrice(cleanText(cell.Text()))
		},
	}
}

// selectorPrice reads the price in the first element matching selector
func selectorPrice(selector string) Rule[decimal.Decimal] {
	return Rule[decimal.Decimal]{
		Name: "selector:" + selector,
		Match: func(p *Page, _ time.Time) (decimal.Decimal, bool) {
			el := p.Document().Find(selector).First()
			if el.Length() == 0 {
				return decimal.Decimal{}, false
			}
			return parsePrice(cleanText(el.Text()))
		},
	}
}

// labelText reads the cell next to a label cell as status text
func labelText(label string) Rule[string] {
	return Rule[string]{
		Name: "label:" + label,
		Match: func(p *Page, _ time.Time) (string, bool) {
			cell := labelCells(p.Document(), label).First()
			if cell.Length() == 0 {
				return "", false
			}
			s := cleanText(cell.Text())
			return s, s != ""
		},
	}
}

// selectorText reads the first element matching selector as status text
func selectorText(selector string) Rule[string] {
	return Rule[string]{
		Name: "selector:" + selector,
		Match: func(p *Page, _ time.Time) (string, bool) {
			el := p.Document().Find(selector).First()
			if el.Length() == 0 {
				return "", false
			}
			s := cleanText(el.Text())
			return s, s != ""
		},
	}
}

// timeIn parses every element in sel until one holds valid countdown text
func timeIn(sel *goquery.Selection, now time.Time) (time.Duration, bool) {
	var (
		found time.Duration
		ok    bool
	)
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if !IsValidTimeText(text) {
			return true
		}
		found, ok = ParseCountdown(text, now)
		return !ok
	})
	return found, ok
}

// labelTime parses the countdown in the cell next to a label cell
func labelTime(label string) Rule[time.Duration] {
	return Rule[time.Duration]{
		Name: "label:" + label,
		Match: func(p *Page, now time.Time) (time.Duration, bool) {
			return timeIn(labelCells(p.Document(), label), now)
		},
	}
}

// selectorTime parses the countdown in elements matching selector
func selectorTime(selector string) Rule[time.Duration] {
	return Rule[time.Duration]{
		Name: "selector:" + selector,
		Match: func(p *Page, now time.Time) (time.Duration, bool) {
			return timeIn(p.Document().Find(selector), now)
		},
	}
}

// scriptSeconds reads a positive number of seconds from a page script
func scriptSeconds(name, js string) Rule[time.Duration] {
	return Rule[time.Duration]{
		Name: name,
		Match: func(p *Page, _ time.Time) (time.Duration, bool) {
			v, ok := p.Eval(js)
			if !ok {
				return 0, false
			}
			secs, ok := toFloat(v)
			if !ok || secs <= 0 {
				return 0, false
			}
			return time.Duration(secs * float64(time.Second)), true
		},
	}
}

// scriptPrice reads a price from the text a page script returns
func scriptPrice(name, js string) Rule[decimal.Decimal] {
	return Rule[decimal.Decimal]{
		Name: name,
		Match: func(p *Page, _ time.Time) (decimal.Decimal, bool) {
			v, ok := p.Eval(js)
			if !ok {
				return decimal.Decimal{}, false
			}
			switch t := v.(type) {
			case string:
				return parsePrice(t)
			default:
				f, ok := toFloat(v)
				if !ok {
					return decimal.Decimal{}, false
				}
				return decimal.NewFromFloat(f), true
			}
		},
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
