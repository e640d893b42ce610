package bid

import (
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"sjsage522/bidsniper/helpers"
	"sjsage522/bidsniper/internal/parser"
)

const deliveryField = "deliverway"

// ErrNoBidForm is returned when the page has no bid form
var ErrNoBidForm = errors.New("bid form not found")

// Form is the field snapshot of a bid form, taken once per navigation
type Form struct {
	Action string
	Fields []helpers.FormField
}

// Get returns the value of the first field called name
func (f *Form) Get(name string) (string, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

// Price returns the bid amount carried by the form
func (f *Form) Price() *decimal.Decimal {
	raw, ok := f.Get(parser.TaitungPriceSelect)
	if !ok {
		return nil
	}
	p, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &p
}

// ParseBidForm captures the fields of the bid form in html. Each select
// contributes its selected option (else its first), the delivery radio
// matching delivery is chosen (else the first), and hidden and submit
// fields pass through verbatim.
func ParseBidForm(html, pageURL, delivery string) (*Form, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	form := doc.Find("form#form1").First()
	if form.Length() == 0 {
		form = doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find("select").Length() > 0
		}).First()
	}
	if form.Length() == 0 {
		return nil, ErrNoBidForm
	}

	out := &Form{Action: formAction(form, pageURL)}
	var deliveries []string
	deliveryAt := -1

	form.Find("input, select, button").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		if name == "" {
			return
		}
		kind := strings.ToLower(s.AttrOr("type", ""))
		value := s.AttrOr("value", "")

		switch {
		case goquery.NodeName(s) == "select":
			opt := s.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = s.Find("option").First()
			}
			if opt.Length() == 0 {
				return
			}
			out.Fields = append(out.Fields, helpers.FormField{Name: name, Value: opt.AttrOr("value", strings.TrimSpace(opt.Text()))})
		case kind == "radio" && name == deliveryField:
			if deliveryAt < 0 {
				deliveryAt = len(out.Fields)
			}
			deliveries = append(deliveries, value)
		case kind == "radio" || kind == "checkbox":
			if _, checked := s.Attr("checked"); checked {
				out.Fields = append(out.Fields, helpers.FormField{Name: name, Value: value})
			}
		case kind == "hidden" || kind == "submit":
			out.Fields = append(out.Fields, helpers.FormField{Name: name, Value: value})
		}
	})

	if len(deliveries) > 0 {
		chosen := deliveries[0]
		for _, v := range deliveries {
			if delivery != "" && strings.Contains(v, delivery) {
				chosen = v
				break
			}
		}
		field := helpers.FormField{Name: deliveryField, Value: chosen}
		out.Fields = append(out.Fields[:deliveryAt], append([]helpers.FormField{field}, out.Fields[deliveryAt:]...)...)
	}

	return out, nil
}

func formAction(form *goquery.Selection, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	action := strings.TrimSpace(form.AttrOr("action", ""))
	if action == "" {
		action = "bid.asp"
	}
	ref, err := url.Parse(action)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
