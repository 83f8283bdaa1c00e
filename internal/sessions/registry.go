// Package sessions tracks which live connection, if any, currently reaches a
// user, plus which connection initiated a locally-originated call.
package sessions

import "sync"

// Conn is the minimal contract a live connection must satisfy.
// Send must be safe for concurrent use.
type Conn interface {
	Send(v any) error
}

// Registry is the in-memory session registry.
//
// It is constructed at process start and injected into the components that
// need it; there is no ambient/global connection map.
//
// Semantics:
// - Register is last-write-wins per identity. The registry never closes the
//   replaced connection; that is the transport layer's job.
// - Unregister only removes the entry if the given handle still owns it, so a
//   replaced connection's teardown cannot evict its successor.
// - Lookup absence is a normal miss meaning "notify via push instead".
type Registry struct {
	mu         sync.Mutex
	byUser     map[string]Conn
	initiators map[string]Conn // internal call id -> initiating connection
}

func NewRegistry() *Registry {
	return &Registry{
		byUser:     map[string]Conn{},
		initiators: map[string]Conn{},
	}
}

func (r *Registry) Register(userID string, c Conn) {
	if userID == "" || c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = c
}

func (r *Registry) Unregister(userID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byUser[userID]; ok && cur == c {
		delete(r.byUser, userID)
	}
}

func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// BindCallInitiator remembers which connection started a call, for routing its
// asynchronous result back.
func (r *Registry) BindCallInitiator(callID string, c Conn) {
	if callID == "" || c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initiators[callID] = c
}

func (r *Registry) ResolveCallInitiator(callID string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.initiators[callID]
	return c, ok
}

// ReleaseCallInitiator drops the binding once the call reached a terminal state.
func (r *Registry) ReleaseCallInitiator(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.initiators, callID)
}
