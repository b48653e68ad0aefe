package mcp

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/khanglvm/ric/internal/learning"
)

// session is one client-visible recommendation session. mu serializes steps.
type session struct {
	mu      sync.Mutex
	id      string
	rec     *learning.SessionRecommender
	created time.Time
}

// registry tracks open sessions. Sessions share no mutable state; the
// registry lock only guards the map.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*session)}
}

// open registers rec under a new random id.
func (r *registry) open(rec *learning.SessionRecommender) *session {
	s := &session{
		id:      uuid.NewString(),
		rec:     rec,
		created: time.Now(),
	}

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()

	return s
}

func (r *registry) get(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	return s, ok
}

// close removes a session and reports whether it existed.
func (r *registry) close(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
