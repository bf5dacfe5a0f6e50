package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

// RevocationStore tracks revoked token ids and per-user cutoffs. A token
// whose iat is not after its user's cutoff is treated as revoked. Cutoffs
// are kept at whole seconds because iat is, so a token issued in the same
// second as a revoke-user call is revoked along with the older ones.
type RevocationStore interface {
	Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int, error)
	UserCutoff(ctx context.Context, userID string) (time.Time, bool, error)
	Entries(ctx context.Context) ([]RevocationInfo, error)
}

// RevocationInfo describes one revoked access token.
type RevocationInfo struct {
	JTI       string    `json:"jti"`
	UserID    string    `json:"user_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// cutoff invalidates every token a user was issued at or before at. It is
// forgotten at until, when the last such token has expired anyway.
type cutoff struct {
	at    time.Time
	until time.Time
}

// MemoryRevocationStore is the single-instance RevocationStore used when
// REDIS_URL is unset. Expired entries are swept every sweepEvery.
type MemoryRevocationStore struct {
	mu       sync.RWMutex
	tokens   map[string]RevocationInfo      // by jti
	byUser   map[string]map[string]struct{} // user id -> jtis
	cutoffs  map[string]cutoff
	tokenTTL time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

const sweepEvery = 5 * time.Minute

// NewMemoryRevocationStore starts the sweeper. tokenTTL bounds how long a
// per-user cutoff has to be kept.
func NewMemoryRevocationStore(tokenTTL time.Duration) *MemoryRevocationStore {
	s := &MemoryRevocationStore{
		tokens:   map[string]RevocationInfo{},
		byUser:   map[string]map[string]struct{}{},
		cutoffs:  map[string]cutoff{},
		tokenTTL: tokenTTL,
		stop:     make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, jti, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.tokens[jti]; ok && prev.UserID != userID {
		s.unlinkLocked(prev)
	}
	s.tokens[jti] = RevocationInfo{JTI: jti, UserID: userID, ExpiresAt: expiresAt}
	if userID == "" {
		return nil
	}
	set, ok := s.byUser[userID]
	if !ok {
		set = map[string]struct{}{}
		s.byUser[userID] = set
	}
	set[jti] = struct{}{}
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	_, ok := s.tokens[jti]
	s.mu.RUnlock()
	return ok, nil
}

// RevokeAllForUser records a cutoff at at, truncated to the second, and
// reports how many of the user's tokens were already individually revoked.
func (s *MemoryRevocationStore) RevokeAllForUser(_ context.Context, userID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at = at.Truncate(time.Second)
	s.cutoffs[userID] = cutoff{at: at, until: at.Add(s.tokenTTL)}
	return len(s.byUser[userID]), nil
}

func (s *MemoryRevocationStore) UserCutoff(_ context.Context, userID string) (time.Time, bool, error) {
	s.mu.RLock()
	c, ok := s.cutoffs[userID]
	s.mu.RUnlock()
	return c.at, ok, nil
}

// Count is the number of individually revoked tokens still tracked.
func (s *MemoryRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// Entries lists revoked tokens, soonest expiry first.
func (s *MemoryRevocationStore) Entries(_ context.Context) ([]RevocationInfo, error) {
	s.mu.RLock()
	out := make([]RevocationInfo, 0, len(s.tokens))
	for _, info := range s.tokens {
		out = append(out, info)
	}
	s.mu.RUnlock()

	sortRevocations(out)
	return out, nil
}

// Close stops the sweeper. It is safe to call more than once.
func (s *MemoryRevocationStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryRevocationStore) sweepLoop() {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-t.C:
			s.cleanup(now)
		}
	}
}

// cleanup drops tokens and cutoffs that expired before now.
func (s *MemoryRevocationStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, info := range s.tokens {
		if now.After(info.ExpiresAt) {
			delete(s.tokens, jti)
			s.unlinkLocked(info)
		}
	}
	for userID, c := range s.cutoffs {
		if now.After(c.until) {
			delete(s.cutoffs, userID)
		}
	}
}

func (s *MemoryRevocationStore) unlinkLocked(info RevocationInfo) {
	set, ok := s.byUser[info.UserID]
	if !ok {
		return
	}
	delete(set, info.JTI)
	if len(set) == 0 {
		delete(s.byUser, info.UserID)
	}
}

func sortRevocations(entries []RevocationInfo) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.ExpiresAt.Equal(b.ExpiresAt) {
			return a.ExpiresAt.Before(b.ExpiresAt)
		}
		return a.JTI < b.JTI
	})
}
