package session

import "sync"

type key struct {
	paperCode   string
	candidateID int
}

// Registry tracks the live sessions of this process, one per
// (paper, candidate). It does not defend against a candidate running
// sessions on two replicas; the store's conditional writes keep submissions
// single-shot even then.
type Registry struct {
	mu       sync.Mutex
	sessions map[key]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[key]*Session)}
}

// Get returns the live session for (paperCode, candidateID), or nil.
func (r *Registry) Get(paperCode string, candidateID int) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[key{paperCode, candidateID}]
}

// Put registers a session, replacing and closing any previous one for the
// same attempt (reconnect case: the resumed session takes over the timer).
func (r *Registry) Put(paperCode string, candidateID int, s *Session) {
	r.mu.Lock()
	old := r.sessions[key{paperCode, candidateID}]
	r.sessions[key{paperCode, candidateID}] = s
	r.mu.Unlock()

	if old != nil && old != s {
		old.Close()
	}
}

// Remove drops a session from the registry and cancels its countdown.
func (r *Registry) Remove(paperCode string, candidateID int) {
	r.mu.Lock()
	s := r.sessions[key{paperCode, candidateID}]
	delete(r.sessions, key{paperCode, candidateID})
	r.mu.Unlock()

	if s != nil {
		s.Close()
	}
}

// CloseAll cancels every live countdown. Called on shutdown; durable records
// keep the attempts resumable or sweepable.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, s := range r.sessions {
		s.Close()
		delete(r.sessions, k)
	}
}
