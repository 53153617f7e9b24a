package store

import (
	"context"
	"sort"
	"sync"

	"github.com/cyberinferno/caro-server/safeset"
)

// MemoryStore is an in-memory Store implementation used by tests and by
// standalone deployments that do not need accounts to survive a restart.
// A single RWMutex guards the user and friendship maps; banned ids live in
// their own concurrent set.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[int64]*User
	byName  map[string]int64
	friends map[int64]map[int64]struct{}
	banned  *safeset.SafeSet[int64]
	nextID  int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[int64]*User),
		byName:  make(map[string]int64),
		friends: make(map[int64]map[int64]struct{}),
		banned:  safeset.NewSafeSet[int64](),
	}
}

// rankLocked computes the 1-based rank of wins; caller holds s.mu.
func (s *MemoryStore) rankLocked(wins int) int {
	rank := 1
	for _, u := range s.users {
		if u.Wins > wins {
			rank++
		}
	}

	return rank
}

// snapshotLocked copies u with Rank filled in; caller holds s.mu.
func (s *MemoryStore) snapshotLocked(u *User) *User {
	cp := *u
	cp.Rank = s.rankLocked(u.Wins)
	return &cp
}

// VerifyCredentials implements Store.
func (s *MemoryStore) VerifyCredentials(ctx context.Context, username, password string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[username]
	if !ok {
		return nil, ErrWrongCredentials
	}

	u := s.users[id]
	if u.Password != password {
		return nil, ErrWrongCredentials
	}

	return s.snapshotLocked(u), nil
}

// UsernameExists implements Store.
func (s *MemoryStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byName[username]
	return ok, nil
}

// Register implements Store.
func (s *MemoryStore) Register(ctx context.Context, username, password, nickname, avatar string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[username]; ok {
		return nil, ErrDuplicateUsername
	}

	s.nextID++
	u := &User{
		ID:       s.nextID,
		Username: username,
		Password: password,
		Nickname: nickname,
		Avatar:   avatar,
	}
	s.users[u.ID] = u
	s.byName[username] = u.ID

	return s.snapshotLocked(u), nil
}

// GetByID implements Store.
func (s *MemoryStore) GetByID(ctx context.Context, userID int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}

	return s.snapshotLocked(u), nil
}

// IsBanned implements Store.
func (s *MemoryStore) IsBanned(ctx context.Context, userID int64) (bool, error) {
	return s.banned.Contains(userID), nil
}

// SetBanned implements Store.
func (s *MemoryStore) SetBanned(ctx context.Context, userID int64, banned bool) error {
	if banned {
		s.banned.Add(userID)
	} else {
		s.banned.Remove(userID)
	}

	return nil
}

// update applies fn to the user under the write lock.
func (s *MemoryStore) update(userID int64, fn func(u *User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}

	fn(u)
	return nil
}

// MarkOnline implements Store.
func (s *MemoryStore) MarkOnline(ctx context.Context, userID int64) error {
	return s.update(userID, func(u *User) { u.Online = true })
}

// MarkOffline implements Store.
func (s *MemoryStore) MarkOffline(ctx context.Context, userID int64) error {
	return s.update(userID, func(u *User) { u.Online = false })
}

// MarkPlaying implements Store.
func (s *MemoryStore) MarkPlaying(ctx context.Context, userID int64) error {
	return s.update(userID, func(u *User) { u.Playing = true })
}

// MarkNotPlaying implements Store.
func (s *MemoryStore) MarkNotPlaying(ctx context.Context, userID int64) error {
	return s.update(userID, func(u *User) { u.Playing = false })
}

// IncrementGame implements Store.
func (s *MemoryStore) IncrementGame(ctx context.Context, userID int64) error {
	return s.update(userID, func(u *User) { u.Games++ })
}

// DecrementGame implements Store.
func (s *MemoryStore) DecrementGame(ctx context.Context, userID int64) error {
	return s.update(userID, func(u *User) {
		if u.Games > 0 {
			u.Games--
		}
	})
}

// IncrementWin implements Store.
func (s *MemoryStore) IncrementWin(ctx context.Context, userID int64) error {
	return s.update(userID, func(u *User) { u.Wins++ })
}

// IncrementDraw implements Store.
func (s *MemoryStore) IncrementDraw(ctx context.Context, userID int64) error {
	return s.update(userID, func(u *User) { u.Draws++ })
}

// GetRank implements Store.
func (s *MemoryStore) GetRank(ctx context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return 0, ErrUserNotFound
	}

	return s.rankLocked(u.Wins), nil
}

// ListFriends implements Store.
func (s *MemoryStore) ListFriends(ctx context.Context, userID int64) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*User
	for fid := range s.friends[userID] {
		if u, ok := s.users[fid]; ok {
			out = append(out, s.snapshotLocked(u))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// IsFriend implements Store.
func (s *MemoryStore) IsFriend(ctx context.Context, userID, friendID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.friends[userID][friendID]
	return ok, nil
}

// MakeFriend implements Store.
func (s *MemoryStore) MakeFriend(ctx context.Context, userID, friendID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return ErrUserNotFound
	}
	if _, ok := s.users[friendID]; !ok {
		return ErrUserNotFound
	}

	if s.friends[userID] == nil {
		s.friends[userID] = make(map[int64]struct{})
	}
	if s.friends[friendID] == nil {
		s.friends[friendID] = make(map[int64]struct{})
	}

	s.friends[userID][friendID] = struct{}{}
	s.friends[friendID][userID] = struct{}{}
	return nil
}

// Rank100 implements Store.
func (s *MemoryStore) Rank100(ctx context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, s.snapshotLocked(u))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		if out[i].Games != out[j].Games {
			return out[i].Games < out[j].Games
		}
		return out[i].ID < out[j].ID
	})

	if len(out) > 100 {
		out = out[:100]
	}

	return out, nil
}

// ResetAllStatus implements Store.
func (s *MemoryStore) ResetAllStatus(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		u.Online = false
		u.Playing = false
	}

	return nil
}
