package mailbox

import (
	"context"

	"golang.org/x/time/rate"

	"jobtrack-engine/internal/domain"
)

// Throttled limits the request rate of a wrapped Gateway.
type Throttled struct {
	next Gateway
	lim  *rate.Limiter
}

// NewThrottled allows reqPerSec upstream calls per second with the given
// burst. A non-positive rate disables limiting.
func NewThrottled(next Gateway, reqPerSec float64, burst int) *Throttled {
	limit := rate.Limit(reqPerSec)
	if reqPerSec <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{next: next, lim: rate.NewLimiter(limit, burst)}
}

func (t *Throttled) Search(ctx context.Context, query string) ([]string, error) {
	if err := t.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.Search(ctx, query)
}

func (t *Throttled) Fetch(ctx context.Context, id string) (domain.Message, error) {
	if err := t.lim.Wait(ctx); err != nil {
		return domain.Message{}, err
	}
	return t.next.Fetch(ctx, id)
}

func (t *Throttled) HistorySince(ctx context.Context, checkpoint string) ([]string, error) {
	if err := t.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.HistorySince(ctx, checkpoint)
}

func (t *Throttled) Profile(ctx context.Context) (Profile, error) {
	if err := t.lim.Wait(ctx); err != nil {
		return Profile{}, err
	}
	return t.next.Profile(ctx)
}
