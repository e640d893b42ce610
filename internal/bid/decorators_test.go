package bid

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"sjsage522/bidsniper/internal/model"
)

type countingExecutor struct {
	calls  int
	result Result
}

func (c *countingExecutor) Submit(context.Context, model.TaskConfig) Result {
	c.calls++
	return c.result
}

func fixedPrice(p *decimal.Decimal, err error) PriceSource {
	return func(context.Context) (*decimal.Decimal, error) { return p, err }
}

func TestGuardedAbortsAboveCeiling(t *testing.T) {
	next := &countingExecutor{result: Result{Status: Submitted}}
	cfg := model.DefaultTaskConfig("https://shwoo.gov.taipei/x")
	cfg.MaxPrice = model.Price(100)

	res := NewGuarded(next, fixedPrice(model.Price(120), nil), nil).Submit(context.Background(), cfg)
	assert.Equal(t, Aborted, res.Status)
	assert.Contains(t, res.Reason, "exceeds ceiling")
	assert.True(t, res.Price.Equal(*model.Price(120)))
	assert.Equal(t, 0, next.calls)
}

func TestGuardedProceeds(t *testing.T) {
	cfg := model.DefaultTaskConfig("https://shwoo.gov.taipei/x")
	cfg.MaxPrice = model.Price(100)

	next := &countingExecutor{result: Result{Status: Submitted}}
	res := NewGuarded(next, fixedPrice(model.Price(80), nil), nil).Submit(context.Background(), cfg)
	assert.Equal(t, Submitted, res.Status)
	assert.True(t, res.Price.Equal(*model.Price(80)))
	assert.Equal(t, 1, next.calls)

	// a failed read never blocks
	next = &countingExecutor{result: Result{Status: Submitted}}
	res = NewGuarded(next, fixedPrice(nil, errors.New("timeout")), nil).Submit(context.Background(), cfg)
	assert.Equal(t, Submitted, res.Status)
	assert.Equal(t, 1, next.calls)

	// nor does a missing source
	next = &countingExecutor{result: Result{Status: Failed, Reason: "x"}}
	res = NewGuarded(next, nil, nil).Submit(context.Background(), cfg)
	assert.Equal(t, Failed, res.Status)
	assert.Equal(t, 1, next.calls)
}

func TestGuardedUsesFreshPriceOverEarlierRead(t *testing.T) {
	cfg := model.DefaultTaskConfig("https://epai.taitung.gov.tw/bid.asp")
	cfg.MaxPrice = model.Price(500)

	reads := []*decimal.Decimal{model.Price(450), model.Price(520)}
	source := func(context.Context) (*decimal.Decimal, error) {
		p := reads[0]
		reads = reads[1:]
		return p, nil
	}
	next := &countingExecutor{result: Result{Status: Submitted}}
	g := NewGuarded(next, source, nil)

	// the trigger tick saw 450; the pre-submit read sees 520
	_, _ = source(context.Background())
	res := g.Submit(context.Background(), cfg)
	assert.Equal(t, Aborted, res.Status)
	assert.Equal(t, 0, next.calls)
}

type fakeClaims struct {
	held map[string][]byte
	err  error
	ttl  time.Duration
}

func (f *fakeClaims) Add(key string, value []byte, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.held[key]; ok {
		return false, nil
	}
	f.held[key] = value
	f.ttl = ttl
	return true, nil
}

func TestClaimed(t *testing.T) {
	claims := &fakeClaims{held: map[string][]byte{}}
	cfg := model.DefaultTaskConfig("https://shwoo.gov.taipei/item/1")

	first := &countingExecutor{result: Result{Status: Submitted}}
	res := NewClaimed(first, claims, time.Minute, "task-a", nil).Submit(context.Background(), cfg)
	assert.Equal(t, Submitted, res.Status)
	assert.Equal(t, []byte("task-a"), claims.held[ClaimKey(cfg.URL)])
	assert.Equal(t, time.Minute, claims.ttl)

	second := &countingExecutor{result: Result{Status: Submitted}}
	res = NewClaimed(second, claims, time.Minute, "task-b", nil).Submit(context.Background(), cfg)
	assert.Equal(t, Aborted, res.Status)
	assert.Equal(t, 0, second.calls)
}

func TestClaimedProceedsWhenStoreIsDown(t *testing.T) {
	claims := &fakeClaims{err: errors.New("connection refused")}
	next := &countingExecutor{result: Result{Status: Submitted}}

	res := NewClaimed(next, claims, time.Minute, "task-a", nil).Submit(context.Background(), model.DefaultTaskConfig("https://x.test/"))
	assert.Equal(t, Submitted, res.Status)
	assert.Equal(t, 1, next.calls)
}

func TestClaimKey(t *testing.T) {
	key := ClaimKey("https://shwoo.gov.taipei/item/1")
	assert.Len(t, key, len("bidsniper:claim:")+40)
	assert.NotEqual(t, key, ClaimKey("https://shwoo.gov.taipei/item/2"))
}

func slowSource(context.Context) (*decimal.Decimal, error) {
	return nil, context.DeadlineExceeded
}

func TestGuardedBoundsReadUnderTriggerHint(t *testing.T) {
	cfg := model.DefaultTaskConfig("https://epai.taitung.gov.tw/bid.asp")
	cfg.MaxPrice = model.Price(500)

	var budget time.Duration
	source := func(ctx context.Context) (*decimal.Decimal, error) {
		d, ok := ctx.Deadline()
		if assert.True(t, ok) {
			budget = time.Until(d)
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	next := &countingExecutor{result: Result{Status: Submitted}}
	ctx := WithTriggerHint(context.Background(), TriggerHint{Price: model.Price(460), Remaining: 1900 * time.Millisecond})

	start := time.Now()
	res := NewGuarded(next, source, nil).Submit(ctx, cfg)

	assert.Less(t, time.Since(start), time.Second)
	assert.LessOrEqual(t, budget, maxPriceRead)
	assert.Equal(t, Submitted, res.Status)
	assert.True(t, res.Price.Equal(*model.Price(460)))
	assert.Equal(t, 1, next.calls)
}

func TestGuardedFallsBackToHintedPrice(t *testing.T) {
	cfg := model.DefaultTaskConfig("https://epai.taitung.gov.tw/bid.asp")
	cfg.MaxPrice = model.Price(500)
	next := &countingExecutor{result: Result{Status: Submitted}}
	ctx := WithTriggerHint(context.Background(), TriggerHint{Price: model.Price(520), Remaining: time.Second})

	res := NewGuarded(next, slowSource, nil).Submit(ctx, cfg)
	assert.Equal(t, Aborted, res.Status)
	assert.Equal(t, 0, next.calls)
}

func TestPriceReadBudget(t *testing.T) {
	assert.Equal(t, 300*time.Millisecond, PriceReadBudget(2*time.Second))
	assert.Equal(t, 200*time.Millisecond, PriceReadBudget(400*time.Millisecond))
	assert.Equal(t, 50*time.Millisecond, PriceReadBudget(0))
	assert.Equal(t, 50*time.Millisecond, PriceReadBudget(-3*time.Second))
}

func TestTriggerHintFrom(t *testing.T) {
	_, ok := TriggerHintFrom(context.Background())
	assert.False(t, ok)

	h, ok := TriggerHintFrom(WithTriggerHint(context.Background(), TriggerHint{Remaining: time.Second}))
	assert.True(t, ok)
	assert.Equal(t, time.Second, h.Remaining)
}
