// Package registry holds the process-wide set of live sessions. A single
// mutex guards every mutation and traversal; traversals that perform
// network writes first copy the session list under the lock and release
// it, so a blocking write to one slow client can never stall registry
// access for others.
package registry

import (
	"errors"
	"sync"

	"github.com/cyberinferno/caro-server/logger"
	"github.com/cyberinferno/caro-server/protocol"
)

// ErrUserNotConnected is returned by SendTo when no live session belongs
// to the requested user.
var ErrUserNotConnected = errors.New("registry: user not connected")

// Session is the view of a live connection the registry needs: identity
// for lookups and a frame sink for delivery. The server's session type
// implements it.
type Session interface {
	// ID returns the connection id assigned at accept time.
	ID() uint32

	// UserID returns the authenticated user id, or false while the
	// session has not logged in.
	UserID() (int64, bool)

	// Send writes one frame to the session's socket. Safe for concurrent use.
	Send(msg protocol.Message) error
}

// Registry is the thread-safe collection of live sessions, keyed by
// connection id.
type Registry struct {
	mu       sync.Mutex
	sessions map[uint32]Session
	log      logger.Logger
}

// New returns an empty Registry logging through log.
func New(log logger.Logger) *Registry {
	return &Registry{
		sessions: make(map[uint32]Session),
		log:      log.With(logger.Field{Key: "component", Value: "registry"}),
	}
}

// Add registers a session under its connection id. Connection ids come
// from a monotone generator, so a collision means a programming error; the
// old session is replaced and the event logged.
//
// Parameters:
//   - s: The session to register
func (r *Registry) Add(s Session) {
	r.mu.Lock()
	if _, exists := r.sessions[s.ID()]; exists {
		r.log.Warn("replacing session with duplicate id", logger.Field{Key: "id", Value: s.ID()})
	}
	r.sessions[s.ID()] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.log.Debug("session added", logger.Field{Key: "id", Value: s.ID()}, logger.Field{Key: "total", Value: count})
}

// Remove deletes the session with the given connection id. Removing an
// absent id is a no-op, so disconnect paths may call it more than once.
//
// Parameters:
//   - id: The connection id to remove
func (r *Registry) Remove(id uint32) {
	r.mu.Lock()
	delete(r.sessions, id)
	count := len(r.sessions)
	r.mu.Unlock()

	r.log.Debug("session removed", logger.Field{Key: "id", Value: id}, logger.Field{Key: "total", Value: count})
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns a copy of the current session list, safe to iterate
// without holding the registry lock.
//
// Returns:
//   - A freshly allocated slice of all live sessions
func (r *Registry) Snapshot() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}

	return out
}

// FindByUserID returns the session authenticated as the given user, or
// nil when that user has no live session.
//
// Parameters:
//   - userID: The user id to look up
//
// Returns:
//   - The matching session, or nil
func (r *Registry) FindByUserID(userID int64) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if id, ok := s.UserID(); ok && id == userID {
			return s
		}
	}

	return nil
}

// SendTo delivers one frame to the session authenticated as userID.
//
// Parameters:
//   - userID: The target user id
//   - msg: The frame to deliver
//
// Returns:
//   - ErrUserNotConnected if the user has no live session, or the send error
func (r *Registry) SendTo(userID int64, msg protocol.Message) error {
	s := r.FindByUserID(userID)
	if s == nil {
		r.log.Debug("send to disconnected user", logger.Field{Key: "user_id", Value: userID})
		return ErrUserNotConnected
	}

	return s.Send(msg)
}

// Broadcast delivers one frame to every session except the one with
// connection id excludeID. Sends happen outside the registry lock;
// per-recipient failures are logged and do not abort delivery to the
// remaining recipients.
//
// Parameters:
//   - excludeID: Connection id to skip (the sender)
//   - msg: The frame to deliver
func (r *Registry) Broadcast(excludeID uint32, msg protocol.Message) {
	for _, s := range r.Snapshot() {
		if s.ID() == excludeID {
			continue
		}

		if err := s.Send(msg); err != nil {
			r.log.Warn("broadcast delivery failed",
				logger.Field{Key: "id", Value: s.ID()},
				logger.Field{Key: "error", Value: err})
		}
	}
}
