package command

import "time"

// Session is the per-connection state visible to commands. It is owned by
// the connection goroutine and must not be shared.
type Session struct {
	ID         string
	RemoteAddr string
	CreatedAt  time.Time

	authenticated bool
	closing       bool
	commands      uint64
}

// NewSession creates a session for a new connection.
func NewSession(id, remoteAddr string) *Session {
	return &Session{
		ID:         id,
		RemoteAddr: remoteAddr,
		CreatedAt:  time.Now(),
	}
}

// Authenticated reports whether AUTH succeeded on this connection.
func (s *Session) Authenticated() bool {
	return s.authenticated
}

// Closing reports whether the client asked to close the connection. The
// transport closes it after writing the pending reply.
func (s *Session) Closing() bool {
	return s.closing
}

// Commands returns the number of requests executed on this session.
func (s *Session) Commands() uint64 {
	return s.commands
}
