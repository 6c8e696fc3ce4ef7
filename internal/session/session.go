// Package session implements the Session Manager (C12): create/get/touch/
// close/list operations over a single in-memory map guarded by one lock,
// plus a background reaper. Grounded on the teacher's internal/state
// package as a whole, adapted from "persist a single bundle to disk" into
// "track many live bundles in memory with TTL reclamation"; the
// advisory-lock jittered-retry idiom in internal/state/lock.go becomes the
// reaper's periodic-scan idiom here (a cancellable time.Ticker loop,
// mirrored from the same file's retry loop shape).
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/aoipipeline/inspectord/internal/apierr"
)

type State string

const (
	StateActive State = "active"
	StateClosed State = "closed"
)

// Session is a product-scoped, time-limited server-side inspection context.
type Session struct {
	ID           string
	ProductID    string
	ClientTag    string
	CreatedAt    time.Time
	LastActivity time.Time
	State        State
}

// Manager owns the live session map. Exclusively owns Session lifecycle;
// other components hold only short-lived references (ids/snapshots).
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	log      logr.Logger
}

func NewManager(ttl time.Duration, log logr.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		log:      log,
	}
}

// Create starts a new active session bound to productID. Binding is
// immutable for the session's lifetime.
func (m *Manager) Create(productID, clientTag string) (*Session, error) {
	if productID == "" {
		return nil, apierr.New(apierr.KindValidation, "product_id is required")
	}
	now := time.Now()
	s := &Session{
		ID:           uuid.NewString(),
		ProductID:    productID,
		ClientTag:    clientTag,
		CreatedAt:    now,
		LastActivity: now,
		State:        StateActive,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns a snapshot copy of the session for id.
func (m *Manager) Get(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, apierr.Newf(apierr.KindNotFound, "session %q not found", id)
	}
	return *s, nil
}

// Touch updates last-activity, rejecting product binding violations and
// closed sessions. Returns the refreshed snapshot.
func (m *Manager) Touch(id, productID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, apierr.Newf(apierr.KindNotFound, "session %q not found", id)
	}
	if s.State == StateClosed {
		return Session{}, apierr.Newf(apierr.KindGone, "session %q is closed", id)
	}
	if productID != "" && productID != s.ProductID {
		return Session{}, apierr.Newf(apierr.KindValidation, "session %q is bound to product %q, not %q", id, s.ProductID, productID)
	}
	s.LastActivity = time.Now()
	return *s, nil
}

// Close transitions a session to closed. Idempotent.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return apierr.Newf(apierr.KindNotFound, "session %q not found", id)
	}
	s.State = StateClosed
	return nil
}

// List returns a metadata-only snapshot of every active session.
func (m *Manager) List() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.State == StateActive {
			out = append(out, *s)
		}
	}
	return out
}

// RunReaper blocks, closing sessions whose last activity has aged past the
// TTL at each tick, until ctx is canceled. Intended to run in its own
// goroutine for the process lifetime.
func (m *Manager) RunReaper(ctx context.Context, cadence time.Duration) {
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reapOnce()
		}
	}
}

func (m *Manager) reapOnce() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, s := range m.sessions {
		if s.State == StateActive && now.Sub(s.LastActivity) > m.ttl {
			s.State = StateClosed
			m.log.V(1).Info("reaped expired session", "session_id", id, "product_id", s.ProductID)
		}
	}
}
