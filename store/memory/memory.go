// Package memory provides mutex-guarded in-memory implementations of the
// store interfaces. They are the default for tests and single-node
// development; production deployments plug in the postgres variants or their
// own record stores.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bizware/authcore/store"
)

// AccountStore keeps accounts in two maps, by id and by identifier.
type AccountStore struct {
	mu           sync.RWMutex
	byID         map[string]*store.Account
	byIdentifier map[string]string // identifier -> id
}

// NewAccountStore returns an empty in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		byID:         make(map[string]*store.Account),
		byIdentifier: make(map[string]string),
	}
}

func cloneAccount(a *store.Account) *store.Account {
	cp := *a
	return &cp
}

func (s *AccountStore) GetByIdentifier(_ context.Context, identifier string) (*store.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdentifier[strings.ToLower(identifier)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneAccount(s.byID[id]), nil
}

func (s *AccountStore) GetByID(_ context.Context, id string) (*store.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *AccountStore) Create(_ context.Context, a *store.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(a.Identifier)
	if _, ok := s.byIdentifier[key]; ok {
		return store.ErrDuplicate
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	s.byID[a.ID] = cloneAccount(a)
	s.byIdentifier[key] = a.ID

	return nil
}

func (s *AccountStore) Update(_ context.Context, a *store.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[a.ID]; !ok {
		return store.ErrNotFound
	}
	s.byID[a.ID] = cloneAccount(a)

	return nil
}

// RefreshStore keeps refresh tokens keyed by their opaque value.
type RefreshStore struct {
	mu      sync.Mutex
	byToken map[string]*store.RefreshToken
}

// NewRefreshStore returns an empty in-memory refresh token store.
func NewRefreshStore() *RefreshStore {
	return &RefreshStore{byToken: make(map[string]*store.RefreshToken)}
}

func cloneToken(t *store.RefreshToken) *store.RefreshToken {
	cp := *t
	return &cp
}

func (s *RefreshStore) Get(_ context.Context, token string) (*store.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byToken[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneToken(t), nil
}

func (s *RefreshStore) GetForAccount(_ context.Context, token, accountID string) (*store.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byToken[token]
	if !ok || t.AccountID != accountID {
		return nil, store.ErrNotFound
	}
	return cloneToken(t), nil
}

func (s *RefreshStore) Create(_ context.Context, t *store.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byToken[t.Token]; ok {
		return store.ErrDuplicate
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.byToken[t.Token] = cloneToken(t)

	return nil
}

func (s *RefreshStore) Revoke(_ context.Context, token, replacedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byToken[token]
	if !ok {
		return store.ErrNotFound
	}
	// CAS gate: the first revoker wins, later ones observe the terminal
	// state and fail.
	if t.Revoked {
		return store.ErrAlreadyRevoked
	}

	t.Revoked = true
	t.RevokedAt = at
	t.ReplacedBy = replacedBy

	return nil
}

func (s *RefreshStore) RevokeAllFor(_ context.Context, accountID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.byToken {
		if t.AccountID == accountID && !t.Revoked {
			t.Revoked = true
			t.RevokedAt = at
			n++
		}
	}

	return n, nil
}

func (s *RefreshStore) TouchLastUsed(_ context.Context, token string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.byToken[token]; ok {
		t.LastUsedAt = at
	}
	return nil
}

func (s *RefreshStore) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, t := range s.byToken {
		if t.ExpiresAt.Before(before) {
			delete(s.byToken, key)
			n++
		}
	}

	return n, nil
}

// ActivityStore appends entries to a slice. Entries are copied on the way in
// and out so callers can never mutate a stored record.
type ActivityStore struct {
	mu      sync.Mutex
	entries []*store.ActivityEntry
}

// NewActivityStore returns an empty in-memory activity log.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{}
}

func (s *ActivityStore) Append(_ context.Context, e *store.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.Metadata != nil {
		md := make(map[string]string, len(cp.Metadata))
		for k, v := range cp.Metadata {
			md[k] = v
		}
		cp.Metadata = md
	}
	s.entries = append(s.entries, &cp)

	return nil
}

func (s *ActivityStore) ListForAccount(_ context.Context, accountID string, limit int) ([]*store.ActivityEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*store.ActivityEntry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].AccountID == accountID {
			cp := *s.entries[i]
			out = append(out, &cp)
		}
	}

	return out, nil
}

func (s *ActivityStore) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	n := 0
	for _, e := range s.entries {
		if e.Timestamp.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept

	return n, nil
}
