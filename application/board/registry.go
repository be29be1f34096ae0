package board

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stackit/application/ports"
)

// MutableIdentity is an identity whose credential can be replaced per request
type MutableIdentity interface {
	ports.Identity
	SetToken(token string)
}

// Session is one client's board and the identity it acts as
type Session struct {
	Key      string
	Board    *Board
	Identity MutableIdentity
}

// Factory builds the board for a new session
type Factory func() (*Board, MutableIdentity)

// Registry keeps one board per client session and closes boards that have
// been idle longer than the TTL
type Registry struct {
	mu      sync.RWMutex
	items   map[string]*registryItem
	ttl     time.Duration
	factory Factory
	logger  *zap.Logger
	stop    chan struct{}
	once    sync.Once
}

type registryItem struct {
	session  *Session
	lastSeen time.Time
}

// NewRegistry creates a registry and starts its janitor
func NewRegistry(factory Factory, ttl time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		items:   make(map[string]*registryItem),
		ttl:     ttl,
		factory: factory,
		logger:  logger,
		stop:    make(chan struct{}),
	}

	if ttl > 0 {
		go r.cleanupExpired(janitorInterval(ttl))
	}

	return r
}

// Create starts a new session with a random key
func (r *Registry) Create() *Session {
	board, identity := r.factory()
	session := &Session{
		Key:      uuid.New().String(),
		Board:    board,
		Identity: identity,
	}

	r.mu.Lock()
	r.items[session.Key] = &registryItem{session: session, lastSeen: time.Now()}
	r.mu.Unlock()

	r.logger.Debug("session created", zap.String("session", session.Key))
	return session
}

// Get returns a live session and marks it as used
func (r *Registry) Get(key string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, exists := r.items[key]
	if !exists {
		return nil, false
	}
	if r.expired(item, time.Now()) {
		return nil, false
	}

	item.lastSeen = time.Now()
	return item.session, true
}

// GetOrCreate returns the session for key, creating it when missing
func (r *Registry) GetOrCreate(key string) (*Session, bool) {
	if session, ok := r.Get(key); ok {
		return session, false
	}

	board, identity := r.factory()
	session := &Session{Key: key, Board: board, Identity: identity}

	r.mu.Lock()
	if item, exists := r.items[key]; exists && !r.expired(item, time.Now()) {
		r.mu.Unlock()
		board.Close()
		return item.session, false
	}
	stale := r.items[key]
	r.items[key] = &registryItem{session: session, lastSeen: time.Now()}
	r.mu.Unlock()

	if stale != nil {
		stale.session.Board.Close()
	}
	return session, true
}

// Remove closes and forgets a session
func (r *Registry) Remove(key string) bool {
	r.mu.Lock()
	item, exists := r.items[key]
	delete(r.items, key)
	r.mu.Unlock()

	if !exists {
		return false
	}
	item.session.Board.Close()
	return true
}

// Len returns the number of tracked sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Close stops the janitor and closes every board
func (r *Registry) Close() {
	r.once.Do(func() { close(r.stop) })

	r.mu.Lock()
	items := r.items
	r.items = make(map[string]*registryItem)
	r.mu.Unlock()

	for _, item := range items {
		item.session.Board.Close()
	}
	for _, item := range items {
		item.session.Board.Wait()
	}
}

func (r *Registry) expired(item *registryItem, now time.Time) bool {
	return r.ttl > 0 && now.Sub(item.lastSeen) > r.ttl
}

// cleanupExpired periodically closes idle sessions
func (r *Registry) cleanupExpired(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.evictExpired(time.Now())
		}
	}
}

func (r *Registry) evictExpired(now time.Time) int {
	var evicted []*registryItem

	r.mu.Lock()
	for key, item := range r.items {
		if r.expired(item, now) {
			evicted = append(evicted, item)
			delete(r.items, key)
		}
	}
	r.mu.Unlock()

	for _, item := range evicted {
		item.session.Board.Close()
		r.logger.Debug("session expired", zap.String("session", item.session.Key))
	}
	return len(evicted)
}

func janitorInterval(ttl time.Duration) time.Duration {
	every := ttl / 4
	if every > time.Minute {
		every = time.Minute
	}
	if every < 10*time.Millisecond {
		every = 10 * time.Millisecond
	}
	return every
}
