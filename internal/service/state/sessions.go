package state

import (
	"sync"

	"github.com/sandevgo/rpgai/internal/core"
)

// Sessions keeps per-chat persona and voice choices in memory. Unknown
// sessions start on the default persona with the session id as user id.
type Sessions struct {
	mu             sync.RWMutex
	sessions       map[string]core.Session
	defaultPersona string
	defaultVoice   bool
}

func NewSessions(defaultPersona string, defaultVoice bool) *Sessions {
	return &Sessions{
		sessions:       make(map[string]core.Session),
		defaultPersona: defaultPersona,
		defaultVoice:   defaultVoice,
	}
}

func (s *Sessions) Get(sessionID string) core.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess
	}
	return s.fresh(sessionID)
}

func (s *Sessions) fresh(sessionID string) core.Session {
	return core.Session{
		ID:        sessionID,
		UserID:    sessionID,
		PersonaID: s.defaultPersona,
		Voice:     s.defaultVoice,
	}
}

func (s *Sessions) update(sessionID string, fn func(*core.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = s.fresh(sessionID)
	}
	fn(&sess)
	s.sessions[sessionID] = sess
}

func (s *Sessions) SetPersona(sessionID, personaID string) {
	s.update(sessionID, func(sess *core.Session) { sess.PersonaID = personaID })
}

func (s *Sessions) SetVoice(sessionID string, on bool) {
	s.update(sessionID, func(sess *core.Session) { sess.Voice = on })
}

// SetUser binds the session to a user id other than the session id.
func (s *Sessions) SetUser(sessionID, userID string) {
	s.update(sessionID, func(sess *core.Session) { sess.UserID = userID })
}
