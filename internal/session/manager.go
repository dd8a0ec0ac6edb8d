package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/example/pantrysync/internal/household"
	"github.com/example/pantrysync/internal/models"
)

// HouseholdFinder looks up the household of a user.
type HouseholdFinder interface {
	FindForUser(ctx context.Context, u models.User) (*models.Household, error)
}

// Manager keeps one Session per signed in user.
type Manager struct {
	opts       Options
	households HouseholdFinder
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager.
func NewManager(opts Options, households HouseholdFinder) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		opts:       opts,
		households: households,
		logger:     opts.Logger.Named("sessions"),
		sessions:   make(map[string]*Session),
	}
}

// Get returns the running session of uid.
func (m *Manager) Get(uid string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[uid]
	return s, ok
}

// GetOrStart returns the session of u, starting it bound to u's household
// when there is none yet.
func (m *Manager) GetOrStart(ctx context.Context, u models.User) (*Session, error) {
	if u.ID == "" {
		return nil, errors.New("user ID is required to start a session")
	}
	if s, ok := m.Get(u.ID); ok {
		return s, nil
	}

	h, err := m.households.FindForUser(ctx, u)
	if err != nil {
		if !errors.Is(err, household.ErrNoHousehold) {
			return nil, fmt.Errorf("failed to start session for user '%s': %w", u.ID, err)
		}
		h = nil
	}

	m.mu.Lock()
	if s, ok := m.sessions[u.ID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	s := newSession(u, m.opts)
	m.sessions[u.ID] = s
	m.mu.Unlock()

	s.SetHousehold(h)
	m.logger.Info("Session started", zap.String("uid", u.ID), zap.Stringer("scope", s.Scope()))
	return s, nil
}

// End flushes and closes the session of uid, if any.
func (m *Manager) End(ctx context.Context, uid string) {
	m.mu.Lock()
	s, ok := m.sessions[uid]
	delete(m.sessions, uid)
	m.mu.Unlock()
	if ok {
		s.Flush(ctx)
		s.Close()
	}
}

// CloseAll flushes pending writes of every session and closes them.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Flush(ctx)
			s.Close()
		}(s)
	}
	wg.Wait()
	m.logger.Info("All sessions closed", zap.Int("count", len(sessions)))
}

// Len reports the number of running sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
