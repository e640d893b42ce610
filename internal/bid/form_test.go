package bid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/bidsniper/helpers"
	"sjsage522/bidsniper/internal/model"
)

const bidFormHTML = `<html><body>
<form name="other"><input type="hidden" name="q" value="search"></form>
<form id="form1" method="post" action="bid.asp">
  <input type="hidden" name="auid" value="A123">
  <input type="hidden" name="X02674328" value="450,460">
  <select name="X01456416">
    <option value="450">450元</option>
    <option value="460" selected>460元</option>
  </select>
  <input type="radio" name="deliverway" value="1託運">
  <input type="radio" name="deliverway" value="2自取">
  <input type="radio" name="agree" value="y" checked>
  <input type="text" name="captcha" value="">
  <input type="submit" name="ok" value="投標">
  <input type="hidden" value="nameless">
</form>
</body></html>`

func TestParseBidForm(t *testing.T) {
	form, err := ParseBidForm(bidFormHTML, "https://epai.taitung.gov.tw/bid.asp?op_=show&auid=A123", model.DeliveryPickup)
	require.NoError(t, err)

	assert.Equal(t, "https://epai.taitung.gov.tw/bid.asp", form.Action)
	assert.Equal(t, []helpers.FormField{
		{Name: "auid", Value: "A123"},
		{Name: "X02674328", Value: "450,460"},
		{Name: "X01456416", Value: "460"},
		{Name: "deliverway", Value: "2自取"},
		{Name: "agree", Value: "y"},
		{Name: "ok", Value: "投標"},
	}, form.Fields)
	assert.True(t, form.Price().Equal(*model.Price(460)))
}

func TestParseBidFormDeliveryFallsBackToFirst(t *testing.T) {
	form, err := ParseBidForm(bidFormHTML, "https://epai.taitung.gov.tw/bid.asp", "宅配")
	require.NoError(t, err)

	v, ok := form.Get("deliverway")
	assert.True(t, ok)
	assert.Equal(t, "1託運", v)
}

func TestParseBidFormFirstOption(t *testing.T) {
	html := `<form action="/post/bid.asp"><select name="X01456416"><option value="300">300</option><option value="310">310</option></select></form>`
	form, err := ParseBidForm(html, "https://epai.taitung.gov.tw/bid.asp", model.DeliveryShip)
	require.NoError(t, err)

	assert.Equal(t, "https://epai.taitung.gov.tw/post/bid.asp", form.Action)
	v, _ := form.Get("X01456416")
	assert.Equal(t, "300", v)
	_, ok := form.Get("deliverway")
	assert.False(t, ok)
}

func TestParseBidFormMissing(t *testing.T) {
	_, err := ParseBidForm(`<form><input type="hidden" name="q"></form>`, "https://epai.taitung.gov.tw/", "")
	assert.ErrorIs(t, err, ErrNoBidForm)
}
