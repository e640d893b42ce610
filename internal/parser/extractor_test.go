package parser

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/bidsniper/internal/model"
)

const taipeiHTML = `<html><body>
<div class="item">
  <p>目前出價 1,070元 / 3 人出價</p>
  <p>底價 新台幣 1,000 元</p>
  <span id="time_end">00天01時02分03秒</span>
  <select id="bidprice" name="bidprice">
    <option value="1100" selected>1,100元</option>
    <option value="1200">1,200元</option>
  </select>
  <button onclick="goBid()">出價</button>
</div>
</body></html>`

const taipeiText = "目前出價 1,070元 / 3 人出價\n底價 新台幣 1,000 元\n00天01時02分03秒\n出價"

const taitungText = "臺東E拍網\n現在時間:113.5.20 14:00:00.500\n截止時間:113.5.20 14:05:00\n競價價格: 300\n底價 新台幣 200 元\n追蹤狀態 未追蹤\n"

const genericHTML = `<html><body><table>
<tr><td>目前價格</td><td>NT$ 2,500</td></tr>
<tr><td>起標價</td><td>1,000元</td></tr>
<tr><td>狀態</td><td>競標中</td></tr>
<tr><td>剩餘時間</td><td>00天00時10分00秒</td></tr>
</table></body></html>`

func decimalPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestExtractTaipei(t *testing.T) {
	e := NewExtractor(nil)
	page := &Page{URL: "https://shwoo.gov.taipei/shwoo/product/product00/product?pid=1", Text: taipeiText, HTML: taipeiHTML}

	snap := e.Extract(page, time.Now())
	assert.Equal(t, model.SiteTaipei, e.Detect(page))

	require.NotNil(t, snap.CurrentPrice)
	assert.True(t, snap.CurrentPrice.Equal(decimal.NewFromInt(1070)))
	require.NotNil(t, snap.StartPrice)
	assert.True(t, snap.StartPrice.Equal(decimal.NewFromInt(1000)))
	require.NotNil(t, snap.Status)
	assert.Equal(t, "進行中 (3人出價)", *snap.Status)
	require.NotNil(t, snap.Remaining)
	assert.Equal(t, time.Hour+2*time.Minute+3*time.Second, *snap.Remaining)

	bid := TaipeiBidPrice(page, snap, time.Now())
	require.NotNil(t, bid)
	assert.True(t, bid.Equal(decimal.NewFromInt(1100)))
	assert.True(t, CanBid(page))
}

func TestTaipeiBidPriceFallsBackToIncrement(t *testing.T) {
	page := &Page{URL: "https://shwoo.gov.taipei/x", Text: "目前出價 1,070元", HTML: "<html><body></body></html>"}
	snap := model.Snapshot{CurrentPrice: decimalPtr(1070)}

	bid := TaipeiBidPrice(page, snap, time.Now())
	require.NotNil(t, bid)
	assert.True(t, bid.Equal(decimal.NewFromInt(1170)))

	assert.Nil(t, TaipeiBidPrice(page, model.Snapshot{}, time.Now()))
}

func TestTaipeiIncrement(t *testing.T) {
	tests := []struct {
		price int64
		want  int64
	}{
		{500, 10}, {501, 30}, {1000, 30}, {1001, 100}, {10000, 100},
		{10001, 500}, {50000, 500}, {50001, 1000}, {100000, 1000}, {100001, 2000},
	}
	for _, tt := range tests {
		got := TaipeiIncrement(decimal.NewFromInt(tt.price))
		assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), "price %d", tt.price)
	}
}

func TestTaipeiStatusFallbacks(t *testing.T) {
	e := NewExtractor(nil)
	page := &Page{URL: "https://shwoo.gov.taipei/x", Text: "本案您可出價3次，已出價1次", HTML: "<html></html>"}
	snap := e.Extract(page, time.Now())
	require.NotNil(t, snap.Status)
	assert.Equal(t, "可競標 (已出價1次)", *snap.Status)

	page = &Page{URL: "https://shwoo.gov.taipei/x", Text: "商品說明", HTML: "<html></html>"}
	snap = e.Extract(page, time.Now())
	require.NotNil(t, snap.Status)
	assert.Equal(t, "進行中", *snap.Status)
}

func TestTaipeiZeroCountdownIsReported(t *testing.T) {
	e := NewExtractor(nil)
	page := &Page{
		URL:  "https://shwoo.gov.taipei/x",
		HTML: `<html><body><span id="time_end">00天00時00分00秒</span></body></html>`,
	}
	snap := e.Extract(page, time.Now())
	require.NotNil(t, snap.Remaining, "zero is a reading, not a miss")
	assert.Equal(t, time.Duration(0), *snap.Remaining)
}

func TestTaipeiScriptCountdown(t *testing.T) {
	e := NewExtractor(nil)
	page := &Page{
		URL:  "https://shwoo.gov.taipei/x",
		HTML: "<html><body></body></html>",
		Script: func(js string) (interface{}, error) {
			if strings.Contains(js, "remainingSeconds") {
				return float64(125), nil
			}
			return nil, errors.New("unexpected script")
		},
	}
	snap := e.Extract(page, time.Now())
	require.NotNil(t, snap.Remaining)
	assert.Equal(t, 125*time.Second, *snap.Remaining)
}

func TestTaipeiReciprocal(t *testing.T) {
	e := NewExtractor(nil)
	page := &Page{
		URL:  "https://shwoo.gov.taipei/x",
		HTML: `<html><body><div class="reciprocal">剩餘 00天00時00分00秒</div><div class="reciprocal">00天00時00分42秒</div></body></html>`,
	}
	snap := e.Extract(page, time.Now())
	require.NotNil(t, snap.Remaining)
	assert.Equal(t, 42*time.Second, *snap.Remaining)
}

func TestExtractTaitung(t *testing.T) {
	e := NewExtractor(nil)
	page := &Page{URL: "https://epai.taitung.gov.tw/bid.asp?op_=show&auid=1&pcode=2", Text: taitungText, HTML: "<html></html>"}

	snap := e.Extract(page, time.Now())
	assert.Equal(t, model.SiteTaitung, e.Detect(page))

	require.NotNil(t, snap.CurrentPrice)
	assert.True(t, snap.CurrentPrice.Equal(decimal.NewFromInt(300)))
	require.NotNil(t, snap.StartPrice)
	assert.True(t, snap.StartPrice.Equal(decimal.NewFromInt(200)))
	require.NotNil(t, snap.Status)
	assert.Equal(t, "未追蹤", *snap.Status)
	require.NotNil(t, snap.Remaining)
	assert.Equal(t, 4*time.Minute+59*time.Second+500*time.Millisecond, *snap.Remaining)

	price := TaitungBidPrice(page, snap, time.Now())
	require.NotNil(t, price)
	assert.True(t, price.Equal(decimal.NewFromInt(300)))
}

func TestTaitungFallbacks(t *testing.T) {
	e := NewExtractor(nil)
	page := &Page{
		URL:  "https://epai.taitung.gov.tw/x",
		Text: "出價紀錄\n1 350元\n現在時間:113.5.20 14:10:00\n截止時間:113.5.20 14:05:00",
		HTML: `<html><body><select name="X01456416"><option value="360" selected>360</option></select></body></html>`,
	}
	snap := e.Extract(page, time.Now())
	require.NotNil(t, snap.CurrentPrice)
	assert.True(t, snap.CurrentPrice.Equal(decimal.NewFromInt(350)))
	require.NotNil(t, snap.Remaining)
	assert.Equal(t, time.Duration(0), *snap.Remaining, "past deadline clamps to zero")
	assert.Nil(t, snap.Status)

	price := TaitungBidPrice(page, model.Snapshot{}, time.Now())
	require.NotNil(t, price)
	assert.True(t, price.Equal(decimal.NewFromInt(360)))
}

func TestExtractGeneric(t *testing.T) {
	e := NewExtractor(nil)
	page := &Page{URL: "https://auction.example.com/item/9", Text: "商品", HTML: genericHTML}

	snap := e.Extract(page, time.Now())
	assert.Equal(t, model.SiteUnknown, e.Detect(page))

	require.NotNil(t, snap.CurrentPrice)
	assert.True(t, snap.CurrentPrice.Equal(decimal.NewFromInt(2500)))
	require.NotNil(t, snap.StartPrice)
	assert.True(t, snap.StartPrice.Equal(decimal.NewFromInt(1000)))
	require.NotNil(t, snap.Status)
	assert.Equal(t, "競標中", *snap.Status)
	require.NotNil(t, snap.Remaining)
	assert.Equal(t, 10*time.Minute, *snap.Remaining)
}

func TestExtractGenericSelectors(t *testing.T) {
	e := NewExtractor(nil)
	page := &Page{
		URL: "https://auction.example.com/item/9",
		HTML: `<html><body>
<span class="current-price">$ 880</span>
<div class="bid-status">open</div>
<p class="notice countdown">出價級距規定 10 分</p>
<div id="countdown">05分00秒</div>
</body></html>`,
	}
	snap := e.Extract(page, time.Now())
	require.NotNil(t, snap.CurrentPrice)
	assert.True(t, snap.CurrentPrice.Equal(decimal.NewFromInt(880)))
	require.NotNil(t, snap.Status)
	assert.Equal(t, "open", *snap.Status)
	require.NotNil(t, snap.Remaining)
	assert.Equal(t, 5*time.Minute, *snap.Remaining)
	assert.Nil(t, snap.StartPrice)
}

func TestExtractMissingFieldsAreNil(t *testing.T) {
	e := NewExtractor(nil)
	snap := e.Extract(&Page{URL: "https://auction.example.com/", HTML: "<html><body><p>hello</p></body></html>"}, time.Now())
	assert.Nil(t, snap.CurrentPrice)
	assert.Nil(t, snap.StartPrice)
	assert.Nil(t, snap.Status)
	assert.Nil(t, snap.Remaining)

	// malformed markup is not an error either
	snap = NewExtractor(nil).Extract(&Page{URL: "x", HTML: "<td><td><<<"}, time.Now())
	assert.Nil(t, snap.Remaining)
}

func TestDetectOrder(t *testing.T) {
	tests := []struct {
		name string
		page *Page
		want model.WebsiteType
	}{
		{"taipei url", &Page{URL: "https://shwoo.gov.taipei/a", Text: "臺東E拍網"}, model.SiteTaipei},
		{"taitung url beats body", &Page{URL: "https://epai.taitung.gov.tw/a", Text: "惜物"}, model.SiteTaitung},
		{"taipei body", &Page{URL: "https://mirror.example/a", Text: "臺北惜物網 現在時間:"}, model.SiteTaipei},
		{"taipei source keyword", &Page{URL: "https://mirror.example/a", HTML: `<img src="/shwoo/logo.png">`}, model.SiteTaipei},
		{"taitung body", &Page{URL: "https://mirror.example/a", Text: "截止時間:113.5.20 14:05:00"}, model.SiteTaitung},
		{"taipei marker", &Page{URL: "https://mirror.example/a", HTML: `<span id="time_end"></span>`}, model.SiteTaipei},
		{"unknown", &Page{URL: "https://mirror.example/a", Text: "hello"}, model.SiteUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewExtractor(nil).Detect(tt.page))
		})
	}
}

func TestDetectIsCached(t *testing.T) {
	e := NewExtractor(nil)
	_, detected := e.Site()
	assert.False(t, detected)

	assert.Equal(t, model.SiteTaitung, e.Detect(&Page{URL: "https://epai.taitung.gov.tw/a"}))
	assert.Equal(t, model.SiteTaitung, e.Detect(&Page{URL: "https://shwoo.gov.taipei/a"}))

	site, detected := e.Site()
	assert.True(t, detected)
	assert.Equal(t, model.SiteTaitung, site)
}

func TestCanBid(t *testing.T) {
	assert.True(t, CanBid(&Page{HTML: `<form><input type="submit" value="送出投標"></form>`}))
	assert.False(t, CanBid(&Page{HTML: `<form><input type="submit" value="送出" disabled></form>`}))
	assert.False(t, CanBid(&Page{HTML: `<form><button>回上頁</button></form>`}))
}

func TestPriceFromBidPage(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		want   int64
		source string
		ok     bool
	}{
		{
			name:   "selected option",
			html:   `<form><select name="X01456416"><option value="300">300</option><option value="310" selected>310</option></select></form>`,
			want:   310,
			source: "select:selected",
			ok:     true,
		},
		{
			name:   "first option",
			html:   `<form><select name="X01456416"><option value="300">300</option><option value="310">310</option></select></form>`,
			want:   300,
			source: "select:first",
			ok:     true,
		},
		{
			name:   "hidden list",
			html:   `<form><input type="hidden" name="X02674328" value="0, 450,460"></form>`,
			want:   450,
			source: "hidden",
			ok:     true,
		},
		{
			name:   "any select in range",
			html:   `<form><select name="qty"><option value="9999" selected>9999</option></select></form>`,
			want:   9999,
			source: "select:any",
			ok:     true,
		},
		{
			name: "any select out of range",
			html: `<form><select name="year"><option value="20000" selected>20000</option></select></form>`,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, source, ok := PriceFromBidPage(tt.html)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), got.String())
				assert.Equal(t, tt.source, source)
			}
		})
	}
}
