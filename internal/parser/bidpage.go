package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// Field names used by the Taitung bid form
const (
	TaitungPriceSelect = "X01456416"
	TaitungPriceHidden = "X02674328"
)

var (
	minSelectPrice = decimal.NewFromInt(10)
	maxSelectPrice = decimal.NewFromInt(10000)
)

// PriceFromBidPage reads the current amount from the Taitung bid form markup
// fetched over HTTP. It returns the source that matched.
func PriceFromBidPage(html string) (decimal.Decimal, string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return decimal.Decimal{}, "", false
	}

	sel := doc.Find("select[name='" + TaitungPriceSelect + "']").First()
	if sel.Length() > 0 {
		if v, ok := optionValue(sel.Find("option[selected]").First()); ok {
			return v, "select:selected", true
		}
		if v, ok := optionValue(sel.Find("option").First()); ok {
			return v, "select:first", true
		}
	}

	if hidden, ok := doc.Find("input[name='" + TaitungPriceHidden + "']").First().Attr("value"); ok {
		for _, part := range strings.Split(hidden, ",") {
			v, err := decimal.NewFromString(strings.TrimSpace(part))
			if err == nil && v.IsPositive() {
				return v, "hidden", true
			}
		}
	}

	var (
		found decimal.Decimal
		ok    bool
	)
	doc.Find("select").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, parsed := optionValue(s.Find("option[selected]").First())
		if parsed && v.GreaterThanOrEqual(minSelectPrice) && v.LessThanOrEqual(maxSelectPrice) {
			found, ok = v, true
			return false
		}
		return true
	})
	if ok {
		return found, "select:any", true
	}
	return decimal.Decimal{}, "", false
}

func optionValue(opt *goquery.Selection) (decimal.Decimal, bool) {
	if opt.Length() == 0 {
		return decimal.Decimal{}, false
	}
	raw, ok := opt.Attr("value")
	if !ok {
		return decimal.Decimal{}, false
	}
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return v, true
}
