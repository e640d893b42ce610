package bid

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"sjsage522/bidsniper/internal/browser/browsertest"
	"sjsage522/bidsniper/internal/model"
)

func TestDOMExecutorTaipei(t *testing.T) {
	fake := &browsertest.Fake{Script: func(js string) (interface{}, error) { return true, nil }}
	e := NewDOMExecutor(fake, model.SiteTaipei, nil)

	res := e.Submit(context.Background(), model.DefaultTaskConfig("https://shwoo.gov.taipei/x"))
	assert.Equal(t, Submitted, res.Status)
	assert.Equal(t, 1, fake.ScriptCount("goBid();"))
}

func TestDOMExecutorTaitungDelivery(t *testing.T) {
	fake := &browsertest.Fake{Script: func(js string) (interface{}, error) { return true, nil }}
	e := NewDOMExecutor(fake, model.SiteTaitung, nil)

	cfg := model.DefaultTaskConfig("https://epai.taitung.gov.tw/bid.asp")
	cfg.Delivery = model.DeliveryPickup
	res := e.Submit(context.Background(), cfg)

	assert.Equal(t, Submitted, res.Status)
	assert.Len(t, fake.Scripts, 1)
	assert.True(t, strings.HasPrefix(fake.Scripts[0], `var pref = "自取";`))
	assert.Contains(t, fake.Scripts[0], "deliverway")
}

func TestDOMExecutorFailures(t *testing.T) {
	cfg := model.DefaultTaskConfig("https://example.com/x")

	// missing capability
	fake := &browsertest.Fake{Script: func(js string) (interface{}, error) { return false, nil }}
	res := NewDOMExecutor(fake, model.SiteTaipei, nil).Submit(context.Background(), cfg)
	assert.Equal(t, Failed, res.Status)

	// script error
	fake = &browsertest.Fake{Script: func(js string) (interface{}, error) { return nil, errors.New("detached") }}
	res = NewDOMExecutor(fake, model.SiteTaitung, nil).Submit(context.Background(), cfg)
	assert.Equal(t, Failed, res.Status)
	assert.Contains(t, res.Reason, "detached")

	// no action for unknown sites
	fake = &browsertest.Fake{}
	res = NewDOMExecutor(fake, model.SiteUnknown, nil).Submit(context.Background(), cfg)
	assert.Equal(t, Failed, res.Status)
	assert.Empty(t, fake.Scripts)
}

func TestDOMExecutorChecksBidControl(t *testing.T) {
	cfg := model.DefaultTaskConfig("https://shwoo.gov.taipei/x")

	fake := &browsertest.Fake{
		HTML:   `<html><body><button disabled>出價</button></body></html>`,
		Script: func(js string) (interface{}, error) { return true, nil },
	}
	res := NewDOMExecutor(fake, model.SiteTaipei, nil).Submit(context.Background(), cfg)
	assert.Equal(t, Failed, res.Status)
	assert.Equal(t, "bid control disabled or missing", res.Reason)
	assert.Empty(t, fake.Scripts)

	fake.HTML = `<html><body><button onclick="goBid()">出價</button></body></html>`
	res = NewDOMExecutor(fake, model.SiteTaipei, nil).Submit(context.Background(), cfg)
	assert.Equal(t, Submitted, res.Status)
	assert.Equal(t, 1, fake.ScriptCount("goBid();"))
}

func TestDOMExecutorUnreadablePageStillBids(t *testing.T) {
	fake := &browsertest.Fake{
		ReadErr: errors.New("target closed"),
		Script:  func(js string) (interface{}, error) { return true, nil },
	}
	res := NewDOMExecutor(fake, model.SiteTaipei, nil).Submit(context.Background(), model.DefaultTaskConfig("https://shwoo.gov.taipei/x"))
	assert.Equal(t, Submitted, res.Status)
}
