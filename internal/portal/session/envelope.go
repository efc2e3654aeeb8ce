package session

import "sync"

// LearnerEnvelope is the short-lived record written alongside a learner
// session. It carries the token plus a display name and is used only for
// learner-portal deep links.
type LearnerEnvelope struct {
	AccessToken string
	DisplayName string
}

// EnvelopeStore holds the learner envelope for the lifetime of the process.
// Unlike the persisted access token it never survives a restart, and it is
// cleared together with the session on logout.
type EnvelopeStore struct {
	mu       sync.RWMutex
	envelope *LearnerEnvelope
}

func (s *EnvelopeStore) Set(env LearnerEnvelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envelope = &env
}

func (s *EnvelopeStore) Get() (LearnerEnvelope, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.envelope == nil {
		return LearnerEnvelope{}, false
	}
	return *s.envelope, true
}

func (s *EnvelopeStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envelope = nil
}
