package session

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager keeps the live sessions of a process. Options act as the template
// for every session it creates.
type Manager struct {
	defaults Options
	logger   *slog.Logger
	newID    func() string

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(defaults Options) *Manager {
	logger := defaults.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		defaults: defaults,
		logger:   logger,
		newID:    uuid.NewString,
		sessions: map[string]*Session{},
	}
}

// Create starts a session for participant, or the default participant when
// empty.
func (m *Manager) Create(participant string) (*Session, error) {
	opts := m.defaults
	opts.ID = m.newID()
	if strings.TrimSpace(participant) != "" {
		opts.Participant = participant
	}
	sess, err := New(opts)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[sess.ID()] = sess
	m.mu.Unlock()
	m.logger.Info("session created", "session_id", sess.ID(), "participant", sess.Participant().ID)
	return sess, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

func (m *Manager) List() []*Session {
	m.mu.RLock()
	results := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		results = append(results, sess)
	}
	m.mu.RUnlock()
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt().Before(results[j].CreatedAt())
	})
	return results
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes and forgets sessions idle for longer than idleTTL and returns
// their ids.
func (m *Manager) Sweep(now time.Time, idleTTL time.Duration) []string {
	if idleTTL <= 0 {
		return nil
	}
	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		if now.Sub(sess.LastActive()) > idleTTL {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, sess := range expired {
		sess.Close()
		ids = append(ids, sess.ID())
	}
	sort.Strings(ids)
	if len(ids) > 0 {
		m.logger.Info("idle sessions expired", "count", len(ids))
	}
	return ids
}

func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()
	for _, sess := range sessions {
		sess.Close()
	}
}
