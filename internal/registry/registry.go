// Package registry holds the process-wide session state: which connection
// carries which identity, in which room, guarded by which whitelist. It is
// the single resource shared across connection goroutines; every operation
// that reads and then writes the two views does so under one mutex so no
// caller can observe a partially-updated pair.
package registry

import (
	"errors"
	"sync"
)

// Registration failure causes. Both close the connection with a policy
// violation at the relay layer.
var (
	ErrEmptyUserID   = errors.New("user id must not be empty")
	ErrUserIDInUse   = errors.New("user id already in use")
	ErrNotRegistered = errors.New("connection has no session")
)

// Conn is the opaque transport handle a session is bound to. The registry
// references connections, it never owns them. Implementations must be
// comparable (pointer types are).
type Conn interface {
	ID() string
	Send(v any) error
}

// Session is the registered state of one live connection. UserID and Room
// are fixed at registration; only the whitelist is mutated afterwards, and
// only through Registry operations.
type Session struct {
	UserID    string
	Room      string
	whitelist *Whitelist
}

// NewSession builds a session ready for registration.
func NewSession(userID, room string, whitelist *Whitelist) *Session {
	return &Session{UserID: userID, Room: room, whitelist: whitelist}
}

// Registry maintains two consistent views over the same set of sessions:
// by connection and by user id. For every entry,
// byUserID[byConn[c].UserID] == c.
type Registry struct {
	mu       sync.Mutex
	byConn   map[Conn]*Session
	byUserID map[string]Conn
}

// New creates an empty registry. Construct once at process start.
func New() *Registry {
	return &Registry{
		byConn:   make(map[Conn]*Session),
		byUserID: make(map[string]Conn),
	}
}

// Register atomically checks user id uniqueness and installs the session
// into both views. On error no state is created.
func (r *Registry) Register(conn Conn, sess *Session) error {
	if sess.UserID == "" {
		return ErrEmptyUserID
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byUserID[sess.UserID]; taken {
		return ErrUserIDInUse
	}
	r.byConn[conn] = sess
	r.byUserID[sess.UserID] = conn
	return nil
}

// Deregister removes the connection's session from both views. Idempotent:
// a second call for the same connection is a no-op and reports false.
func (r *Registry) Deregister(conn Conn) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byConn[conn]
	if !ok {
		return nil, false
	}
	delete(r.byConn, conn)
	delete(r.byUserID, sess.UserID)
	return sess, true
}

// Lookup returns the session bound to a connection, if any.
func (r *Registry) Lookup(conn Conn) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.byConn[conn]
	return sess, ok
}

// LookupUser returns the connection registered under a user id, if any.
func (r *Registry) LookupUser(userID string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.byUserID[userID]
	return conn, ok
}

// Resolve performs the full routing check for a direct message in one
// atomic step: recipient presence, room match, and the recipient's
// whitelist. It returns the recipient's connection only when the message is
// deliverable; every failure cause collapses into the same false result so
// callers cannot distinguish absence from denial.
func (r *Registry) Resolve(sender Conn, recipientID string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	senderSess, ok := r.byConn[sender]
	if !ok {
		return nil, false
	}
	recipientConn, ok := r.byUserID[recipientID]
	if !ok {
		return nil, false
	}
	recipientSess := r.byConn[recipientConn]
	if recipientSess.Room != senderSess.Room {
		return nil, false
	}
	if !recipientSess.whitelist.Allows(senderSess.UserID) {
		return nil, false
	}
	return recipientConn, true
}

// AddAllowed inserts an id into the calling connection's whitelist,
// narrowing a wildcard to exactly that id. It returns the resulting
// entries and whether a wildcard conversion happened.
func (r *Registry) AddAllowed(conn Conn, id string) (entries []string, converted bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byConn[conn]
	if !ok {
		return nil, false, ErrNotRegistered
	}
	converted = sess.whitelist.Add(id)
	return sess.whitelist.Entries(), converted, nil
}

// RemoveAllowed discards an id from the calling connection's whitelist.
// Removing from a wildcard clears it to an empty allowed set.
func (r *Registry) RemoveAllowed(conn Conn, id string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byConn[conn]
	if !ok {
		return nil, ErrNotRegistered
	}
	sess.whitelist.Remove(id)
	return sess.whitelist.Entries(), nil
}

// SetWildcard toggles the calling connection's whitelist between wildcard
// and an empty allowed set.
func (r *Registry) SetWildcard(conn Conn, enabled bool) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byConn[conn]
	if !ok {
		return nil, ErrNotRegistered
	}
	sess.whitelist.SetWildcard(enabled)
	return sess.whitelist.Entries(), nil
}

// Stats returns the number of registered sessions and distinct rooms.
func (r *Registry) Stats() (sessions, rooms int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{})
	for _, sess := range r.byConn {
		seen[sess.Room] = struct{}{}
	}
	return len(r.byConn), len(seen)
}
