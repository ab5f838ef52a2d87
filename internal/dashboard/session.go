package dashboard

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/drillgis/internal/auth"
	"github.com/tinytelemetry/drillgis/internal/export"
)

// session is the per-browser state carried between cycles.
type session struct {
	mu       sync.Mutex
	id       string
	trigger  export.Trigger
	login    *loginCache
	lastSeen time.Time
}

// loginCache remembers the last authentication so repeated cycles with the
// same PIN and click count do not hit the directory again.
type loginCache struct {
	pin    string
	clicks int
	result auth.Result
}

// Sessions tracks live sessions and expires idle ones.
type Sessions struct {
	mu    sync.Mutex
	ttl   time.Duration
	byID  map[string]*session
	now   func() time.Time
	newID func() string
}

// NewSessions creates a session table with the given idle TTL.
func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Sessions{
		ttl:   ttl,
		byID:  make(map[string]*session),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// acquire returns the session for id, creating a fresh one when id is empty,
// unknown or expired. The returned session is locked; call release.
func (s *Sessions) acquire(id string) *session {
	s.mu.Lock()
	now := s.now()
	s.sweepLocked(now)

	sess, ok := s.byID[id]
	if !ok {
		if _, err := uuid.Parse(id); err != nil {
			id = s.newID()
		}
		sess = &session{id: id}
		s.byID[id] = sess
	}
	sess.lastSeen = now
	s.mu.Unlock()

	sess.mu.Lock()
	return sess
}

func (s *Sessions) release(sess *session) {
	sess.mu.Unlock()
}

// Sweep drops idle sessions and returns how many were dropped.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *Sessions) sweepLocked(now time.Time) int {
	n := 0
	for id, sess := range s.byID {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.byID, id)
			n++
		}
	}
	return n
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
