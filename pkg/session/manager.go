package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meansend/ladder/pkg/llm"
	"github.com/meansend/ladder/pkg/models"
	"github.com/meansend/ladder/pkg/store"
)

// ErrUnknownSession is returned when a session ID resolves to nothing, in
// cache or store.
var ErrUnknownSession = errors.New("session: unknown session")

// DefaultTTL is how long an idle session stays cached.
const DefaultTTL = 30 * time.Minute

// SessionStore is the persistence surface the manager needs. *store.Store
// satisfies it.
type SessionStore interface {
	InteractionStore
	SaveSession(id string, state any) error
	LoadSession(id string, state any) error
	SaveOrder(id string, order []string) error
	LoadOrder(id string) ([]string, error)
	DeleteSession(id string) error
}

// Manager caches live sessions with a TTL and loads evicted ones back from
// the store on demand. Each session is serialized behind its own mutex; a
// snapshot is persisted after every turn.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry

	ttl    time.Duration
	client *llm.Client
	store  SessionStore
	opts   Options
}

type entry struct {
	mu        sync.Mutex
	interview *Interview
	lastUsed  time.Time
}

// NewManager creates a session manager. ttl 0 uses DefaultTTL.
func NewManager(client *llm.Client, st SessionStore, opts Options, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		entries: map[string]*entry{},
		ttl:     ttl,
		client:  client,
		store:   st,
		opts:    opts,
	}
}

// cleanup drops idle entries. Caller holds m.mu. Evicted sessions are safe
// to drop because every turn already persisted a snapshot.
func (m *Manager) cleanup() {
	cutoff := time.Now().Add(-m.ttl)
	for id, e := range m.entries {
		if e.lastUsed.Before(cutoff) {
			delete(m.entries, id)
			slog.Info("Idle session evicted", "session_id", id)
		}
	}
}

// entryFor returns the cached entry, loading from the store or creating a
// fresh session as needed.
func (m *Manager) entryFor(id string, create bool) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanup()

	if e, ok := m.entries[id]; ok {
		e.lastUsed = time.Now()
		return e, nil
	}

	var snap State
	err := m.store.LoadSession(id, &snap)
	switch {
	case err == nil:
		iv, rerr := RestoreInterview(snap, m.client, m.store)
		if rerr != nil {
			return nil, rerr
		}
		slog.Info("Session restored from store", "session_id", id)
		e := &entry{interview: iv, lastUsed: time.Now()}
		m.entries[id] = e
		return e, nil
	case errors.Is(err, store.ErrNotFound):
		if !create {
			return nil, ErrUnknownSession
		}
		iv := NewInterview(id, m.client, m.store, m.opts)
		slog.Info("Session created", "session_id", id, "stimuli", len(m.opts.Stimuli))
		e := &entry{interview: iv, lastUsed: time.Now()}
		m.entries[id] = e
		return e, nil
	default:
		return nil, err
	}
}

// Chat runs one interview turn. An empty session ID starts a new session.
// The snapshot is persisted before returning.
func (m *Manager) Chat(ctx context.Context, sessionID, stimulus, message string, templateVars map[string]any) (models.InterviewResponse, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	e, err := m.entryFor(sessionID, true)
	if err != nil {
		return models.InterviewResponse{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	resp, err := e.interview.HandleInput(ctx, stimulus, message, templateVars)
	if err != nil {
		return models.InterviewResponse{}, err
	}
	if err := m.store.SaveSession(sessionID, e.interview.Snapshot()); err != nil {
		slog.Error("Snapshot save failed", "session_id", sessionID, "error", err)
	}
	return resp, nil
}

// History returns the transcript of a stored session.
func (m *Manager) History(sessionID string) (models.History, error) {
	e, err := m.entryFor(sessionID, false)
	if err != nil {
		return models.History{}, err
	}
	order, oerr := m.store.LoadOrder(sessionID)
	if oerr != nil && !errors.Is(oerr, store.ErrNotFound) {
		return models.History{}, oerr
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interview.Transcript(order), nil
}

// Messages returns one page of the flattened session transcript.
func (m *Manager) Messages(sessionID string, offset, limit int) (models.MessagesResponse, error) {
	e, err := m.entryFor(sessionID, false)
	if err != nil {
		return models.MessagesResponse{}, err
	}
	order, oerr := m.store.LoadOrder(sessionID)
	if oerr != nil && !errors.Is(oerr, store.ErrNotFound) {
		return models.MessagesResponse{}, oerr
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interview.Messages(order, offset, limit), nil
}

// SaveOrder persists the stimuli presentation order of a session.
func (m *Manager) SaveOrder(sessionID string, order []string) error {
	if _, err := m.entryFor(sessionID, false); err != nil {
		return err
	}
	return m.store.SaveOrder(sessionID, order)
}

// Delete removes a session from the cache and the store.
func (m *Manager) Delete(sessionID string) error {
	m.mu.Lock()
	_, cached := m.entries[sessionID]
	delete(m.entries, sessionID)
	m.mu.Unlock()

	if !cached && !m.storeHas(sessionID) {
		return ErrUnknownSession
	}
	return m.store.DeleteSession(sessionID)
}

func (m *Manager) storeHas(sessionID string) bool {
	var snap State
	return m.store.LoadSession(sessionID, &snap) == nil
}
