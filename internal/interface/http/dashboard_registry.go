package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/storefront-admin/internal/application"
	"github.com/oksasatya/storefront-admin/internal/domain/entity"
	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
	"github.com/oksasatya/storefront-admin/pkg/clock"
)

// DashboardRegistry keeps one Dashboard per browser, keyed by the client_id
// cookie. Each Dashboard owns its own SessionManager.
type DashboardRegistry struct {
	Auth     repo.AuthProvider
	Products application.ProductCatalog
	Logger   *logrus.Logger
	Timeout  time.Duration
	IdleTTL  time.Duration
	Clock    clock.Clock
	// MaxEntries caps open dashboards; the least recently used is closed to
	// make room. Zero means no cap.
	MaxEntries int

	mu      sync.Mutex
	entries map[string]*dashboardEntry
	closed  bool
}

type dashboardEntry struct {
	dashboard *application.Dashboard
	session   *application.SessionManager
	lastUsed  time.Time
}

func NewDashboardRegistry(auth repo.AuthProvider, products application.ProductCatalog, logger *logrus.Logger, timeout, idleTTL time.Duration) *DashboardRegistry {
	return &DashboardRegistry{
		Auth:     auth,
		Products: products,
		Logger:   logger,
		Timeout:  timeout,
		IdleTTL:  idleTTL,
		Clock:    clock.RealClock{},
		entries:  make(map[string]*dashboardEntry),
	}
}

// Lookup returns the dashboard for clientID if one is open.
func (r *DashboardRegistry) Lookup(clientID string) (*application.Dashboard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[clientID]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.Clock.Now()
	return e.dashboard, true
}

// Acquire returns the dashboard for clientID, opening one when needed. A new
// dashboard resumes the session behind token, or signs in anonymously when
// there is no token or it no longer resolves.
func (r *DashboardRegistry) Acquire(ctx context.Context, clientID, token string) *application.Dashboard {
	if d, ok := r.Lookup(clientID); ok {
		return d
	}

	session := application.NewSessionManager(r.Auth, r.Logger, r.Timeout)
	d := application.NewDashboard(session, r.Products, r.Logger)
	if token != "" {
		if err := session.Restore(ctx, token); err != nil && r.Logger != nil {
			r.Logger.WithError(err).WithField("client_id", clientID).Info("stored session did not resolve")
		}
	}
	session.BootstrapAnonymous(ctx)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		d.Close()
		session.Close()
		return d
	}
	if e, ok := r.entries[clientID]; ok {
		// a concurrent request opened one first
		e.lastUsed = r.Clock.Now()
		r.mu.Unlock()
		d.Close()
		session.Close()
		return e.dashboard
	}
	var evicted *dashboardEntry
	if r.MaxEntries > 0 && len(r.entries) >= r.MaxEntries {
		evicted = r.evictLocked()
	}
	r.entries[clientID] = &dashboardEntry{dashboard: d, session: session, lastUsed: r.Clock.Now()}
	r.mu.Unlock()

	if evicted != nil {
		evicted.dashboard.Close()
		evicted.session.Close()
	}
	return d
}

// evictLocked removes and returns the least recently used entry.
func (r *DashboardRegistry) evictLocked() *dashboardEntry {
	var (
		oldestID string
		oldest   *dashboardEntry
	)
	for id, e := range r.entries {
		if oldest == nil || e.lastUsed.Before(oldest.lastUsed) {
			oldestID, oldest = id, e
		}
	}
	if oldest != nil {
		delete(r.entries, oldestID)
	}
	return oldest
}

// Touch marks clientID as in use, keeping long-lived streams from being swept.
func (r *DashboardRegistry) Touch(clientID string) {
	r.mu.Lock()
	if e, ok := r.entries[clientID]; ok {
		e.lastUsed = r.Clock.Now()
	}
	r.mu.Unlock()
}

// Len reports the number of open dashboards.
func (r *DashboardRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep closes dashboards idle for longer than IdleTTL and returns how many
// it closed.
func (r *DashboardRegistry) Sweep() int {
	if r.IdleTTL <= 0 {
		return 0
	}
	cutoff := r.Clock.Now().Add(-r.IdleTTL)

	r.mu.Lock()
	var idle []*dashboardEntry
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			idle = append(idle, e)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, e := range idle {
		e.dashboard.Close()
		e.session.Close()
	}
	if len(idle) > 0 && r.Logger != nil {
		r.Logger.WithField("count", len(idle)).Debug("closed idle dashboards")
	}
	return len(idle)
}

// Run sweeps every interval until ctx is done.
func (r *DashboardRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close closes every dashboard. Later Acquire calls return closed dashboards.
func (r *DashboardRegistry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*dashboardEntry)
	r.closed = true
	r.mu.Unlock()

	for _, e := range entries {
		e.dashboard.Close()
		e.session.Close()
	}
}

// IdentityFor returns the identity signed in on clientID's dashboard, or nil.
func (r *DashboardRegistry) IdentityFor(clientID string) *entity.Identity {
	d, ok := r.Lookup(clientID)
	if !ok {
		return nil
	}
	return d.Session.Current()
}
