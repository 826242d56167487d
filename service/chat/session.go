package chat

import (
	"rentchat/module/rental/model"
	"rentchat/tools/errs"
)

type SessionState int

const (
	StateConnected SessionState = iota
	StateJoining
	StateActive
	StateBrowsing // authenticated owner, no room
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoining:
		return "joining"
	case StateActive:
		return "active"
	case StateBrowsing:
		return "browsing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the per-socket state machine. It is owned by the connection's
// read goroutine and is not safe for concurrent use.
type Session struct {
	ConnID string

	state      SessionState
	userID     string
	role       model.Role
	propertyID string
	chatID     string
	room       RoomKey
}

func NewSession(connID string) *Session {
	return &Session{ConnID: connID, state: StateConnected}
}

func (s *Session) State() SessionState { return s.state }
func (s *Session) UserID() string      { return s.userID }
func (s *Session) Role() model.Role    { return s.role }
func (s *Session) PropertyID() string  { return s.propertyID }
func (s *Session) ChatID() string      { return s.chatID }
func (s *Session) Room() RoomKey       { return s.room }

func (s *Session) IsActive() bool { return s.state == StateActive }

// BeginJoin moves the session into Joining. Joining again from Active or
// Browsing is allowed; the caller detaches the socket from its room first.
func (s *Session) BeginJoin() error {
	switch s.state {
	case StateConnected, StateActive, StateBrowsing:
		s.state = StateJoining
		s.room = ""
		s.chatID = ""
		return nil
	default:
		return errs.ErrProtocol.WrapMsg("join not allowed", "state", s.state)
	}
}

func (s *Session) Activate(user *model.User, propertyID, chatID string, room RoomKey) error {
	if s.state != StateJoining {
		return errs.ErrInternal.WrapMsg("activate outside join", "state", s.state)
	}
	s.state = StateActive
	s.userID = user.ID
	s.role = user.Role
	s.propertyID = propertyID
	s.chatID = chatID
	s.room = room
	return nil
}

func (s *Session) Browse(user *model.User) error {
	if s.state != StateJoining {
		return errs.ErrInternal.WrapMsg("browse outside join", "state", s.state)
	}
	s.state = StateBrowsing
	s.userID = user.ID
	s.role = user.Role
	s.propertyID = ""
	return nil
}

// Close is terminal. It reports whether the session was still open.
func (s *Session) Close() bool {
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	return true
}
