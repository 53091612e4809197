package relay

import (
	"sync"

	"github.com/aito-ai/voice-agent-backend/internal/models"
)

// sessionRegister is the single-slot holder for a connection's current
// session. All termination triggers race through Take, which empties the
// slot atomically, so at most one trigger finalizes the held session. The
// mutex makes the slot a single-writer critical section even when triggers
// arrive from different goroutines.
type sessionRegister struct {
	mu      sync.Mutex
	session *models.ConversationSession
}

func (r *sessionRegister) Set(session *models.ConversationSession) {
	r.mu.Lock()
	r.session = session
	r.mu.Unlock()
}

// Take empties the slot and returns what it held. Exactly one caller
// observes ok=true per stored session.
func (r *sessionRegister) Take() (*models.ConversationSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session := r.session
	r.session = nil
	return session, session != nil
}

// Current reads the slot without emptying it.
func (r *sessionRegister) Current() (*models.ConversationSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session, r.session != nil
}
