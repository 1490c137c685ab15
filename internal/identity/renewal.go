package identity

import (
	"context"
	"log"
	"time"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/repository"
)

// RenewalJob refreshes provider sessions before their access expires, so an
// active console never watches its session lapse mid-use. Sessions within the
// lead window of expiry are renewed each sweep; a failed renewal revokes the
// session (ProviderBackend.Renew fails closed) and the next request for it
// resolves anonymous.
type RenewalJob struct {
	backend  *ProviderBackend
	sessions repository.SessionRepository
	lead     time.Duration
	interval time.Duration
}

// NewRenewalJob creates the background renewal job. lead is how far before
// expiry a session becomes eligible for renewal; the sweep interval is half
// the lead so no eligible session is missed between sweeps.
func NewRenewalJob(backend *ProviderBackend, sessions repository.SessionRepository, lead time.Duration) *RenewalJob {
	if lead <= 0 {
		lead = 60 * time.Second
	}
	interval := lead / 2
	if interval < time.Second {
		interval = time.Second
	}
	return &RenewalJob{
		backend:  backend,
		sessions: sessions,
		lead:     lead,
		interval: interval,
	}
}

// Run sweeps until ctx is cancelled. Call in a goroutine.
func (j *RenewalJob) Run(ctx context.Context) {
	log.Printf("Session renewal job started (lead %s, interval %s)", j.lead, j.interval)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Session renewal job stopped")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep renews every provider session expiring within the lead window.
// Exported so the serve command can prime a sweep at startup and tests can
// drive the job without the ticker.
func (j *RenewalJob) Sweep(ctx context.Context) {
	expiring, err := j.sessions.ExpiringBefore(ctx, time.Now().Add(j.lead))
	if err != nil {
		log.Printf("Renewal sweep: list expiring sessions: %v", err)
		return
	}
	for i := range expiring {
		session := &expiring[i]
		if err := j.backend.Renew(ctx, session); err != nil {
			log.Printf("Renew session %s: %v", session.ID, err)
		}
	}
}
