package draft

import (
	"github.com/rs/zerolog"

	"github.com/debemdeboas/postkey/internal/cache"
	"github.com/debemdeboas/postkey/internal/model"
)

var draftLogger zerolog.Logger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	draftLogger = l
}

// Store keeps at most one session per owner. Get hands out a copy and Put
// replaces the stored session wholesale.
type Store interface {
	Get(owner model.OwnerID) *Session
	Put(s *Session)
	Delete(owner model.OwnerID)
	Len() int
}

type MemoryStore struct { // implements Store
	sessions *cache.Cache[model.OwnerID, *Session]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: cache.NewCache[model.OwnerID, *Session](),
	}
}

// Get never returns nil: an owner without a session gets an idle one.
func (m *MemoryStore) Get(owner model.OwnerID) *Session {
	s, ok := m.sessions.Get(owner)
	if !ok {
		return NewIdle(owner)
	}
	return s.Clone()
}

func (m *MemoryStore) Put(s *Session) {
	if s.State == Idle && !s.Active() {
		m.Delete(s.Owner)
		return
	}

	prev, replaced := m.sessions.Swap(s.Owner, s.Clone())
	if replaced && prev.ID != s.ID {
		draftLogger.Debug().
			Str("owner", string(s.Owner)).
			Str("session_id", s.ID.String()).
			Str("replaced_session_id", prev.ID.String()).
			Msg("Draft replaced")
	}
}

func (m *MemoryStore) Delete(owner model.OwnerID) {
	m.sessions.Delete(owner)
}

func (m *MemoryStore) Len() int {
	return m.sessions.Len()
}
