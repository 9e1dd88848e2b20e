package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pdf-qa-rag/internal/helper"
	"pdf-qa-rag/internal/metrics"
)

var ErrSessionNotFound = errors.New("session not found")

// Manager owns the live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	metrics  *metrics.Metrics
}

// NewManager creates a manager that expires sessions idle for longer than
// ttl. A zero ttl never expires sessions.
func NewManager(ttl time.Duration, m *metrics.Metrics) *Manager {
	return &Manager{sessions: make(map[string]*Session), ttl: ttl, metrics: m}
}

func (m *Manager) Create() (*Session, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	s := newSession(id, time.Now())

	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.setGauge(n)
	log.Info().Str("session", id).Msg("Created session")
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

// Delete removes the session and closes it.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.Close()
	m.setGauge(n)
	log.Info().Str("session", id).Msg("Deleted session")
	return nil
}

// Sweep closes sessions last used before now minus the ttl and returns how
// many were removed.
func (m *Manager) Sweep(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-m.ttl)

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		log.Info().Str("session", s.ID).Msg("Expired session")
	}
	m.setGauge(n)
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	m.setGauge(0)
}

func (m *Manager) setGauge(n int) {
	if m.metrics != nil {
		m.metrics.Sessions.Set(float64(n))
	}
}
