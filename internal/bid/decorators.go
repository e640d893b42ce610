package bid

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sjsage522/bidsniper/internal/model"
	"sjsage522/bidsniper/logger"
)

// PriceSource returns the freshest obtainable price; nil means unknown
type PriceSource func(ctx context.Context) (*decimal.Decimal, error)

// Bounds of a price read made on the trigger path
const (
	maxPriceRead = 300 * time.Millisecond
	minPriceRead = 50 * time.Millisecond
)

// PriceReadBudget is how long a trigger-path price read may take with
// remaining left before the deadline: half of it, within 50ms..300ms
func PriceReadBudget(remaining time.Duration) time.Duration {
	b := remaining / 2
	if b > maxPriceRead {
		b = maxPriceRead
	}
	if b < minPriceRead {
		b = minPriceRead
	}
	return b
}

// TriggerHint is what the trigger tick knows when it asks for the bid
type TriggerHint struct {
	// Price was read on the trigger tick; it stands in when no fresher
	// price arrives in time
	Price *decimal.Decimal
	// Remaining is the time left before the deadline
	Remaining time.Duration
}

type triggerHintKey struct{}

// WithTriggerHint attaches h to ctx for the executors below the loop
func WithTriggerHint(ctx context.Context, h TriggerHint) context.Context {
	return context.WithValue(ctx, triggerHintKey{}, h)
}

// TriggerHintFrom returns the hint attached to ctx
func TriggerHintFrom(ctx context.Context) (TriggerHint, bool) {
	h, ok := ctx.Value(triggerHintKey{}).(TriggerHint)
	return h, ok
}

// Guarded re-reads the price immediately before submitting and aborts when
// it exceeds the task's ceiling. This check is authoritative over any price
// read earlier in the trigger tick. Under a trigger hint the read gets
// PriceReadBudget of the time left and falls back to the hinted price.
type Guarded struct {
	next   Executor
	source PriceSource
	log    *logger.Logger
}

// NewGuarded wraps next with a pre-submit price check
func NewGuarded(next Executor, source PriceSource, log *logger.Logger) *Guarded {
	if log == nil {
		log = logger.Nop()
	}
	return &Guarded{next: next, source: source, log: log}
}

// Submit checks the price then delegates
func (g *Guarded) Submit(ctx context.Context, cfg model.TaskConfig) Result {
	var latest *decimal.Decimal
	hint, hinted := TriggerHintFrom(ctx)
	if g.source != nil {
		readCtx, cancel := ctx, context.CancelFunc(func() {})
		if hinted {
			readCtx, cancel = context.WithTimeout(ctx, PriceReadBudget(hint.Remaining))
		}
		p, err := g.source(readCtx)
		cancel()
		if err != nil {
			g.log.Warn().Err(err).Msg("pre-submit price read failed")
		}
		latest = p
	}
	if latest == nil && hinted {
		latest = hint.Price
	}

	if Decide(latest, cfg.MaxPrice) == Abort {
		reason := fmt.Sprintf("price %s exceeds ceiling %s", latest, cfg.MaxPrice)
		g.log.Tag(zerolog.WarnLevel, "STOP").Msg(reason)
		return Result{Status: Aborted, Reason: reason, Price: latest}
	}

	res := g.next.Submit(ctx, cfg)
	if res.Price == nil {
		res.Price = latest
	}
	return res
}

// Claimer reserves a key for a period; Add reports false when another
// holder already has it
type Claimer interface {
	Add(key string, value []byte, expiration time.Duration) (bool, error)
}

// claimReader is implemented by claim stores that can report the holder
type claimReader interface {
	Get(key string) ([]byte, error)
}

// ClaimKey returns the claim key for an auction url
func ClaimKey(auctionURL string) string {
	sum := sha1.Sum([]byte(auctionURL))
	return "bidsniper:claim:" + hex.EncodeToString(sum[:])
}

// Claimed makes sure only one process bids on an auction. When the claim
// store cannot be reached the bid goes ahead.
type Claimed struct {
	next   Executor
	claims Claimer
	ttl    time.Duration
	owner  string
	log    *logger.Logger
}

// NewClaimed wraps next with a cross-process claim held for ttl by owner
func NewClaimed(next Executor, claims Claimer, ttl time.Duration, owner string, log *logger.Logger) *Claimed {
	if log == nil {
		log = logger.Nop()
	}
	return &Claimed{next: next, claims: claims, ttl: ttl, owner: owner, log: log}
}

// Submit takes the claim then delegates
func (c *Claimed) Submit(ctx context.Context, cfg model.TaskConfig) Result {
	key := ClaimKey(cfg.URL)
	added, err := c.claims.Add(key, []byte(c.owner), c.ttl)
	switch {
	case err != nil:
		c.log.Warn().Err(err).Msg("bid claim unavailable, proceeding unclaimed")
	case !added:
		ev := c.log.Tag(zerolog.WarnLevel, "STOP")
		if r, ok := c.claims.(claimReader); ok {
			if holder, err := r.Get(key); err == nil {
				ev = ev.Str("holder", string(holder))
			}
		}
		ev.Msg("auction already claimed by another bidder")
		return Result{Status: Aborted, Reason: "auction claimed elsewhere"}
	default:
		c.log.Tag(zerolog.DebugLevel, "Claim").Msgf("claimed for %s", c.ttl)
	}
	return c.next.Submit(ctx, cfg)
}
