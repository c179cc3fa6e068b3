package bot

import (
	"sync"
	"time"
)

// State is the current step of the booking dialog.
type State string

const (
	StateIdle          State = "idle"
	StateChooseService State = "choose_service"
	StateChooseDate    State = "choose_date"
	StateChooseSlot    State = "choose_slot"
	StateConfirm       State = "confirm"
)

// DialogData accumulates the user's choices across the dialog.
type DialogData struct {
	ServiceID   int64
	ServiceName string
	Date        time.Time
	SlotTime    time.Time
}

// Session is one user's in-flight booking dialog.
type Session struct {
	State     State
	Data      DialogData
	UpdatedAt time.Time
	mu        sync.Mutex
}

func newSession() *Session {
	return &Session{State: StateChooseService, UpdatedAt: time.Now()}
}

// SetState moves the dialog forward and refreshes the expiry clock.
func (s *Session) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
	s.UpdatedAt = time.Now()
}

// GetState returns the current step.
func (s *Session) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

// Expired reports whether the dialog has been idle past the timeout.
func (s *Session) Expired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.UpdatedAt) > timeout
}

// SessionStore keeps per-user dialog sessions in memory. Abandoned
// dialogs expire; Cleanup sweeps them out periodically.
type SessionStore struct {
	sessions map[int64]*Session
	mu       sync.RWMutex
	timeout  time.Duration
}

func NewSessionStore(timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[int64]*Session),
		timeout:  timeout,
	}
}

// Get returns the user's live session, or nil if none or expired.
func (ss *SessionStore) Get(userID int64) *Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	session := ss.sessions[userID]
	if session == nil || session.Expired(ss.timeout) {
		return nil
	}
	return session
}

// Start begins a fresh dialog, discarding any previous one.
func (ss *SessionStore) Start(userID int64) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	session := newSession()
	ss.sessions[userID] = session
	return session
}

// Delete ends a dialog.
func (ss *SessionStore) Delete(userID int64) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, userID)
}

// Cleanup removes expired sessions and reports how many were dropped.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for userID, session := range ss.sessions {
		if session.Expired(ss.timeout) {
			delete(ss.sessions, userID)
			removed++
		}
	}
	return removed
}
