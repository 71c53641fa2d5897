// ABOUTME: ConversationMemory is the registry of per-session turn histories
// ABOUTME: Optional turn cap, idle TTL and LRU bound; optional write-through turn log
package core

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/harper/askdocs/internal/models"
)

// DefaultSessionID is used when a caller supplies no session id
const DefaultSessionID = "default"

// TurnLog durably stores session turns. sqlite.TurnStore implements it.
type TurnLog interface {
	Append(sessionID string, turns ...models.Turn) error
	BySession(sessionID string, limit int) ([]models.Turn, error)
	Trim(sessionID string, keep int) error
	DeleteSession(sessionID string) error
}

// MemoryConfig configures ConversationMemory. Zero values disable each limit.
type MemoryConfig struct {
	MaxTurns    int
	SessionTTL  time.Duration
	MaxSessions int
	Log         TurnLog
	Logger      *slog.Logger
}

// ConversationMemory maps session ids to their handles
type ConversationMemory struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *MemoryHandle]
	maxTurns int
	log      TurnLog
	logger   *slog.Logger

	// purges holds in-flight turn log deletions by session id. It has its own
	// lock because onEvict runs inside the LRU's lock, including from the
	// TTL sweeper goroutine.
	purgeMu sync.Mutex
	purges  map[string]*purgeJob
}

// purgeJob deletes one session's logged turns. done closes when it finishes.
type purgeJob struct {
	done chan struct{}
	err  error
}

// NewConversationMemory creates an empty registry
func NewConversationMemory(cfg MemoryConfig) *ConversationMemory {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cm := &ConversationMemory{
		maxTurns: cfg.MaxTurns,
		log:      cfg.Log,
		logger:   logger.With("component", "memory"),
		purges:   make(map[string]*purgeJob),
	}
	cm.sessions = expirable.NewLRU[string, *MemoryHandle](cfg.MaxSessions, cm.onEvict, cfg.SessionTTL)
	return cm
}

// NormalizeSessionID maps the empty id to DefaultSessionID
func NormalizeSessionID(sessionID string) string {
	if sessionID == "" {
		return DefaultSessionID
	}
	return sessionID
}

// Get returns the handle for sessionID, creating it on first reference.
// Each call counts as activity for the idle TTL. Logged turns are loaded by
// the handle on first use, outside the registry lock.
func (cm *ConversationMemory) Get(sessionID string) *MemoryHandle {
	id := NormalizeSessionID(sessionID)

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if h, ok := cm.sessions.Get(id); ok {
		cm.sessions.Add(id, h)
		return h
	}

	// Drop an expired entry that has not been swept yet so its eviction runs
	cm.sessions.Remove(id)

	h := &MemoryHandle{id: id, maxTurns: cm.maxTurns, log: cm.log, logger: cm.logger, memory: cm}
	cm.sessions.Add(id, h)
	return h
}

// History returns a session's turns without registering the session or
// counting as activity. Sessions that are not live are read from the turn log.
func (cm *ConversationMemory) History(sessionID string) ([]models.Turn, error) {
	if h, ok := cm.Peek(sessionID); ok {
		return h.LoadHistory(), nil
	}
	if cm.log == nil {
		return []models.Turn{}, nil
	}

	id := NormalizeSessionID(sessionID)
	if err := cm.waitPurge(id); err != nil {
		cm.logger.Warn("earlier turn deletion failed", "session", id, "error", err)
	}
	turns, err := cm.log.BySession(id, cm.maxTurns)
	if err != nil {
		return nil, PersistenceError("load history", fmt.Errorf("session %s: %w", id, err))
	}
	if turns == nil {
		turns = []models.Turn{}
	}
	return turns, nil
}

// Peek returns the live handle for sessionID without creating one or
// counting as activity
func (cm *ConversationMemory) Peek(sessionID string) (*MemoryHandle, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.sessions.Peek(NormalizeSessionID(sessionID))
}

// Remove forgets a session, including any turns in the turn log
func (cm *ConversationMemory) Remove(sessionID string) error {
	id := NormalizeSessionID(sessionID)

	cm.mu.Lock()
	live := cm.sessions.Remove(id)
	cm.mu.Unlock()

	if cm.log == nil {
		return nil
	}
	if !live {
		// Not live, but a previous process may have logged turns for it
		cm.schedulePurge(id)
	}
	if err := cm.waitPurge(id); err != nil {
		return PersistenceError("remove session", err)
	}
	return nil
}

// Sessions lists live session ids in sorted order
func (cm *ConversationMemory) Sessions() []string {
	cm.mu.Lock()
	ids := cm.sessions.Keys()
	cm.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions
func (cm *ConversationMemory) Len() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.sessions.Len()
}

// onEvict runs for TTL expiry, LRU overflow and Remove, inside the LRU's lock.
// The turn log deletion is handed to a goroutine.
func (cm *ConversationMemory) onEvict(id string, h *MemoryHandle) {
	h.mu.Lock()
	h.evicted = true
	n := len(h.turns)
	h.mu.Unlock()

	if cm.log != nil {
		cm.schedulePurge(id)
	}
	cm.logger.Debug("session evicted", "session", id, "turns", n)
}

// schedulePurge queues deletion of id's logged turns behind any earlier one
func (cm *ConversationMemory) schedulePurge(id string) {
	job := &purgeJob{done: make(chan struct{})}

	cm.purgeMu.Lock()
	prev := cm.purges[id]
	cm.purges[id] = job
	cm.purgeMu.Unlock()

	go func() {
		if prev != nil {
			<-prev.done
		}
		job.err = cm.log.DeleteSession(id)
		if job.err != nil {
			cm.logger.Warn("failed to delete evicted session turns", "session", id, "error", job.err)
		}

		cm.purgeMu.Lock()
		if cm.purges[id] == job {
			delete(cm.purges, id)
		}
		cm.purgeMu.Unlock()
		close(job.done)
	}()
}

// waitPurge blocks until the latest deletion queued for id has finished
func (cm *ConversationMemory) waitPurge(id string) error {
	cm.purgeMu.Lock()
	job := cm.purges[id]
	cm.purgeMu.Unlock()

	if job == nil {
		return nil
	}
	<-job.done
	return job.err
}

// MemoryHandle is one session's ordered history
type MemoryHandle struct {
	id       string
	maxTurns int
	log      TurnLog
	logger   *slog.Logger
	memory   *ConversationMemory

	// hydrate loads logged turns once, before the first read or write
	hydrate sync.Once

	// exclusive serializes whole read-modify-write sequences on this session
	exclusive sync.Mutex

	mu      sync.Mutex
	turns   []models.Turn
	evicted bool
}

// ID returns the session id
func (h *MemoryHandle) ID() string {
	return h.id
}

// Exclusive runs fn while holding the session's exclusive section.
// Other sessions are unaffected.
func (h *MemoryHandle) Exclusive(fn func() error) error {
	h.exclusive.Lock()
	defer h.exclusive.Unlock()
	return fn()
}

// ensureLoaded fills the handle from the turn log on first use. A deletion
// still pending for the same id (an earlier session that was evicted) is
// waited for so its turns are never resurrected.
func (h *MemoryHandle) ensureLoaded() {
	if h.log == nil {
		return
	}
	h.hydrate.Do(func() {
		h.mu.Lock()
		evicted := h.evicted
		h.mu.Unlock()
		if evicted {
			return
		}
		if h.memory != nil {
			if err := h.memory.waitPurge(h.id); err != nil {
				h.logger.Warn("earlier turn deletion failed", "session", h.id, "error", err)
			}
		}
		turns, err := h.log.BySession(h.id, h.maxTurns)
		if err != nil {
			h.logger.Warn("failed to load session history, starting empty", "session", h.id, "error", err)
			return
		}

		h.mu.Lock()
		h.turns = append(turns, h.turns...)
		h.mu.Unlock()
	})
}

// LoadHistory returns a chronological copy of the session's turns
func (h *MemoryHandle) LoadHistory() []models.Turn {
	h.ensureLoaded()
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]models.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of turns held
func (h *MemoryHandle) Len() int {
	h.ensureLoaded()
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// AppendTurn appends one turn
func (h *MemoryHandle) AppendTurn(role models.Role, text string) error {
	turn, err := models.NewTurn(role, text)
	if err != nil {
		return InvalidRequestError("append turn", err)
	}
	return h.append(turn)
}

// AppendExchange appends a question and its answer as one unit
func (h *MemoryHandle) AppendExchange(question, answer string) error {
	user, err := models.NewTurn(models.RoleUser, question)
	if err != nil {
		return InvalidRequestError("append exchange", err)
	}
	assistant, err := models.NewTurn(models.RoleAssistant, answer)
	if err != nil {
		return InvalidRequestError("append exchange", err)
	}
	assistant.Timestamp = user.Timestamp
	return h.append(user, assistant)
}

// append updates memory first; a turn log failure is returned but the
// in-memory history keeps the turns
func (h *MemoryHandle) append(turns ...models.Turn) error {
	h.ensureLoaded()
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, turns...)
	if h.maxTurns > 0 && len(h.turns) > h.maxTurns {
		kept := make([]models.Turn, h.maxTurns)
		copy(kept, h.turns[len(h.turns)-h.maxTurns:])
		h.turns = kept
	}

	if h.log == nil || h.evicted {
		return nil
	}
	if err := h.log.Append(h.id, turns...); err != nil {
		return PersistenceError("append turns", fmt.Errorf("session %s: %w", h.id, err))
	}
	if h.maxTurns > 0 {
		if err := h.log.Trim(h.id, h.maxTurns); err != nil {
			h.logger.Warn("failed to trim session turns", "session", h.id, "error", err)
		}
	}
	return nil
}
