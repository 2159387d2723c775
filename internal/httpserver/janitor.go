package httpserver

import (
	"context"
	"time"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

const DefaultIdleTTL = 24 * time.Hour

// Janitor evicts per-session state nobody will come back for: stored sessions
// past their token expiry, plus carts and checkout states untouched for IdleTTL.
type Janitor struct {
	Sessions *session.Manager
	Carts    *cart.Registry
	Tracker  *checkout.Tracker
	IdleTTL  time.Duration
	Now      func() time.Time
}

type SweepStats struct {
	Sessions int
	Carts    int
	States   int
}

// Sweep runs one pass. Expired sessions go first so their subscribers drop the
// matching carts before the idle scan.
func (j *Janitor) Sweep(ctx context.Context) (SweepStats, error) {
	var st SweepStats

	n, err := j.Sessions.SweepExpired(ctx)
	if err != nil {
		return st, err
	}
	st.Sessions = n

	ttl := j.IdleTTL
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	cutoff := now().Add(-ttl)
	st.Carts = j.Carts.Sweep(cutoff)
	st.States = j.Tracker.Sweep(cutoff)
	return st, nil
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	l := logging.FromContext(ctx).With("svc", "janitor")
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st, err := j.Sweep(ctx)
			if err != nil {
				l.Error("sweep_failed", "error", err)
				continue
			}
			if st.Sessions+st.Carts+st.States > 0 {
				l.Info("sweep_done",
					"sessions_expired", st.Sessions,
					"carts_dropped", st.Carts,
					"states_dropped", st.States,
					"carts_live", j.Carts.Len(),
				)
			}
		}
	}
}
