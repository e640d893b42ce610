package bid

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/bidsniper/helpers"
	"sjsage522/bidsniper/internal/browser/browsertest"
	"sjsage522/bidsniper/internal/diagnostics"
	"sjsage522/bidsniper/internal/model"
)

func big5(t *testing.T, s string) []byte {
	t.Helper()
	out, err := helpers.Big5.NewEncoder().String(s)
	require.NoError(t, err)
	return []byte(out)
}

// bidSite is a stand-in for the Taitung bid endpoint
type bidSite struct {
	t         *testing.T
	response  string
	pricePage string
	posted    url.Values
	headers   http.Header
	cookie    string
}

func (s *bidSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie("ASPSESSIONID"); err == nil {
		s.cookie = c.Value
	}
	w.Header().Set("Content-Type", "text/html")
	switch r.Method {
	case http.MethodPost:
		raw, _ := io.ReadAll(r.Body)
		s.posted, _ = url.ParseQuery(string(raw))
		s.headers = r.Header.Clone()
		w.Write(big5(s.t, s.response))
	case http.MethodGet:
		if r.URL.Query().Get("op_") != "show" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(big5(s.t, s.pricePage))
	}
}

func newReplay(t *testing.T, site *bidSite, dumpDir string) (*FormReplay, *browsertest.Fake, string) {
	server := httptest.NewServer(site)
	t.Cleanup(server.Close)

	pageURL := server.URL + "/bid.asp?op_=show&auid=A123&pcode=P9"
	fake := &browsertest.Fake{
		URL:    pageURL,
		HTML:   bidFormHTML,
		Jar:    []*http.Cookie{{Name: "ASPSESSIONID", Value: "sess-1", Path: "/"}},
		Script: func(js string) (interface{}, error) { return true, nil },
	}
	r := NewFormReplay(fake, pageURL, diagnostics.NewDumper(dumpDir, nil), nil)
	r.Settle = 0
	return r, fake, server.URL
}

func decodeBig5Value(t *testing.T, v string) string {
	t.Helper()
	out, err := helpers.Big5.NewDecoder().String(v)
	require.NoError(t, err)
	return out
}

func TestFormReplaySubmitted(t *testing.T) {
	site := &bidSite{t: t, response: "<html><body>標價成功</body></html>"}
	r, fake, origin := newReplay(t, site, t.TempDir())

	cfg := model.DefaultTaskConfig(fake.URL)
	cfg.Delivery = model.DeliveryPickup
	require.NoError(t, r.Prepare(context.Background(), cfg.Delivery))
	assert.Equal(t, 1, fake.ScriptCount("submitOK()"))

	res := r.Submit(context.Background(), cfg)
	assert.Equal(t, Submitted, res.Status)
	assert.True(t, res.Price.Equal(*model.Price(460)))

	assert.Equal(t, "sess-1", site.cookie)
	assert.Equal(t, "application/x-www-form-urlencoded", site.headers.Get("Content-Type"))
	assert.Equal(t, fake.URL, site.headers.Get("Referer"))
	assert.Equal(t, origin, site.headers.Get("Origin"))
	assert.NotEmpty(t, site.headers.Get("User-Agent"))

	assert.Equal(t, "460", site.posted.Get("X01456416"))
	assert.Equal(t, "450,460", site.posted.Get("X02674328"))
	assert.Equal(t, "2自取", decodeBig5Value(t, site.posted.Get("deliverway")))
	assert.Equal(t, "投標", decodeBig5Value(t, site.posted.Get("ok")))
}

func TestFormReplayPreparesOnDemand(t *testing.T) {
	site := &bidSite{t: t, response: "標價成功"}
	r, fake, _ := newReplay(t, site, "")

	assert.Nil(t, r.Form())
	res := r.Submit(context.Background(), model.DefaultTaskConfig(fake.URL))
	assert.Equal(t, Submitted, res.Status)
	assert.NotNil(t, r.Form())
}

func TestFormReplayAlerts(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"<script>alert('請選擇交貨方式!');history.back();</script>", ReasonDelivery},
		{"<script>alert('驗證碼輸入錯誤');</script>", ReasonCaptcha},
		{"<script>alert('投標時間已截止');</script>", "投標時間已截止"},
	}

	for _, tt := range tests {
		site := &bidSite{t: t, response: tt.body}
		r, fake, _ := newReplay(t, site, "")
		res := r.Submit(context.Background(), model.DefaultTaskConfig(fake.URL))
		assert.Equal(t, Failed, res.Status)
		assert.Equal(t, tt.want, res.Reason)
	}
}

func TestFormReplayUnknownResponseIsDumped(t *testing.T) {
	dir := t.TempDir()
	site := &bidSite{t: t, response: "<html>系統忙碌中</html>"}
	r, fake, _ := newReplay(t, site, dir)

	res := r.Submit(context.Background(), model.DefaultTaskConfig(fake.URL))
	assert.Equal(t, Failed, res.Status)
	assert.Contains(t, res.Reason, ReasonUnknown)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "TaitungBid_Response_"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "系統忙碌中")
}

func TestFormReplayNoForm(t *testing.T) {
	site := &bidSite{t: t}
	r, fake, _ := newReplay(t, site, "")
	fake.HTML = "<html><body>請先登入</body></html>"

	res := r.Submit(context.Background(), model.DefaultTaskConfig(fake.URL))
	assert.Equal(t, Failed, res.Status)
	assert.Contains(t, res.Reason, "bid form unavailable")
	assert.Nil(t, site.posted)
}

func TestFormReplayRefreshPrice(t *testing.T) {
	site := &bidSite{t: t, pricePage: `<select name="X01456416"><option value="520" selected>520元</option></select>`}
	r, _, _ := newReplay(t, site, "")

	price, err := r.RefreshPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(*model.Price(520)))

	site.pricePage = "<html>維護中</html>"
	_, err = r.RefreshPrice(context.Background())
	assert.Error(t, err)
}

func TestRefreshPriceNeedsAuctionIDs(t *testing.T) {
	r := NewFormReplay(&browsertest.Fake{}, "https://epai.taitung.gov.tw/index.asp", nil, nil)
	_, err := r.RefreshPrice(context.Background())
	assert.Error(t, err)
}

func TestClassifyResponse(t *testing.T) {
	res, known := ClassifyResponse("<p>標價成功</p>")
	assert.True(t, known)
	assert.Equal(t, Submitted, res.Status)

	res, known = ClassifyResponse("alert(\"double quoted\")")
	assert.True(t, known)
	assert.Equal(t, "unreadable alert", res.Reason)

	_, known = ClassifyResponse("")
	assert.False(t, known)
}
