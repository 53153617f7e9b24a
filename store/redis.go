package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Key layout used by RedisStore. All keys share the "caro:" prefix so a
// shared redis instance can host other services.
const (
	keyNextID   = "caro:user:next_id"
	keyUsers    = "caro:users"
	keyBanned   = "caro:banned"
	keyRank     = "caro:rank"
	keyUserFmt  = "caro:user:%d"
	keyNameFmt  = "caro:username:%s"
	keyFriendsF = "caro:friends:%d"
)

// RedisStore is a Store implementation backed by redis hashes. Counters
// use HINCRBY so concurrent sessions never lose updates; the win
// leaderboard is kept in a sorted set updated alongside the win counter.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore on top of an existing redis client.
//
// Parameters:
//   - client: A connected go-redis client; the store does not close it
//
// Returns:
//   - A new RedisStore instance
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func userKey(id int64) string     { return fmt.Sprintf(keyUserFmt, id) }
func usernameKey(n string) string { return fmt.Sprintf(keyNameFmt, n) }
func friendsKey(id int64) string  { return fmt.Sprintf(keyFriendsF, id) }

// loadUser reads one user hash. Rank is not populated here.
func (s *RedisStore) loadUser(ctx context.Context, id int64) (*User, error) {
	fields, err := s.client.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis store: load user %d: %w", id, err)
	}

	if len(fields) == 0 {
		return nil, ErrUserNotFound
	}

	atoi := func(k string) int {
		n, _ := strconv.Atoi(fields[k])
		return n
	}

	return &User{
		ID:       id,
		Username: fields["username"],
		Password: fields["password"],
		Nickname: fields["nickname"],
		Avatar:   fields["avatar"],
		Games:    atoi("games"),
		Wins:     atoi("wins"),
		Draws:    atoi("draws"),
		Online:   fields["online"] == "1",
		Playing:  fields["playing"] == "1",
	}, nil
}

// rankOf computes the 1-based rank for a win count from the leaderboard zset.
func (s *RedisStore) rankOf(ctx context.Context, wins int) (int, error) {
	higher, err := s.client.ZCount(ctx, keyRank, "("+strconv.Itoa(wins), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("redis store: rank lookup: %w", err)
	}

	return int(higher) + 1, nil
}

// VerifyCredentials implements Store.
func (s *RedisStore) VerifyCredentials(ctx context.Context, username, password string) (*User, error) {
	idStr, err := s.client.Get(ctx, usernameKey(username)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrWrongCredentials
	} else if err != nil {
		return nil, fmt.Errorf("redis store: username lookup: %w", err)
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis store: corrupt username index for %q: %w", username, err)
	}

	u, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Password != password {
		return nil, ErrWrongCredentials
	}

	u.Rank, err = s.rankOf(ctx, u.Wins)
	if err != nil {
		return nil, err
	}

	return u, nil
}

// UsernameExists implements Store.
func (s *RedisStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	n, err := s.client.Exists(ctx, usernameKey(username)).Result()
	if err != nil {
		return false, fmt.Errorf("redis store: username exists: %w", err)
	}

	return n > 0, nil
}

// Register implements Store.
func (s *RedisStore) Register(ctx context.Context, username, password, nickname, avatar string) (*User, error) {
	id, err := s.client.Incr(ctx, keyNextID).Result()
	if err != nil {
		return nil, fmt.Errorf("redis store: allocate id: %w", err)
	}

	// SETNX is the uniqueness gate: a concurrent registration of the same
	// username loses here and the freshly allocated id is simply unused.
	ok, err := s.client.SetNX(ctx, usernameKey(username), id, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("redis store: reserve username: %w", err)
	}
	if !ok {
		return nil, ErrDuplicateUsername
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, userKey(id), map[string]any{
		"username": username,
		"password": password,
		"nickname": nickname,
		"avatar":   avatar,
		"games":    0,
		"wins":     0,
		"draws":    0,
		"online":   0,
		"playing":  0,
	})
	pipe.SAdd(ctx, keyUsers, id)
	pipe.ZAdd(ctx, keyRank, redis.Z{Score: 0, Member: strconv.FormatInt(id, 10)})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis store: create user: %w", err)
	}

	rank, err := s.rankOf(ctx, 0)
	if err != nil {
		return nil, err
	}

	return &User{
		ID: id, Username: username, Password: password,
		Nickname: nickname, Avatar: avatar, Rank: rank,
	}, nil
}

// GetByID implements Store.
func (s *RedisStore) GetByID(ctx context.Context, userID int64) (*User, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	u.Rank, err = s.rankOf(ctx, u.Wins)
	if err != nil {
		return nil, err
	}

	return u, nil
}

// IsBanned implements Store.
func (s *RedisStore) IsBanned(ctx context.Context, userID int64) (bool, error) {
	banned, err := s.client.SIsMember(ctx, keyBanned, userID).Result()
	if err != nil {
		return false, fmt.Errorf("redis store: banned check: %w", err)
	}

	return banned, nil
}

// SetBanned implements Store.
func (s *RedisStore) SetBanned(ctx context.Context, userID int64, banned bool) error {
	var err error
	if banned {
		err = s.client.SAdd(ctx, keyBanned, userID).Err()
	} else {
		err = s.client.SRem(ctx, keyBanned, userID).Err()
	}

	if err != nil {
		return fmt.Errorf("redis store: set banned: %w", err)
	}

	return nil
}

// setFlag writes a 0/1 hash field on the user.
func (s *RedisStore) setFlag(ctx context.Context, userID int64, field string, on bool) error {
	val := 0
	if on {
		val = 1
	}

	if err := s.client.HSet(ctx, userKey(userID), field, val).Err(); err != nil {
		return fmt.Errorf("redis store: set %s: %w", field, err)
	}

	return nil
}

// MarkOnline implements Store.
func (s *RedisStore) MarkOnline(ctx context.Context, userID int64) error {
	return s.setFlag(ctx, userID, "online", true)
}

// MarkOffline implements Store.
func (s *RedisStore) MarkOffline(ctx context.Context, userID int64) error {
	return s.setFlag(ctx, userID, "online", false)
}

// MarkPlaying implements Store.
func (s *RedisStore) MarkPlaying(ctx context.Context, userID int64) error {
	return s.setFlag(ctx, userID, "playing", true)
}

// MarkNotPlaying implements Store.
func (s *RedisStore) MarkNotPlaying(ctx context.Context, userID int64) error {
	return s.setFlag(ctx, userID, "playing", false)
}

// IncrementGame implements Store.
func (s *RedisStore) IncrementGame(ctx context.Context, userID int64) error {
	if err := s.client.HIncrBy(ctx, userKey(userID), "games", 1).Err(); err != nil {
		return fmt.Errorf("redis store: increment games: %w", err)
	}

	return nil
}

// DecrementGame implements Store.
func (s *RedisStore) DecrementGame(ctx context.Context, userID int64) error {
	val, err := s.client.HIncrBy(ctx, userKey(userID), "games", -1).Result()
	if err != nil {
		return fmt.Errorf("redis store: decrement games: %w", err)
	}

	if val < 0 {
		if err := s.client.HSet(ctx, userKey(userID), "games", 0).Err(); err != nil {
			return fmt.Errorf("redis store: clamp games: %w", err)
		}
	}

	return nil
}

// IncrementWin implements Store.
func (s *RedisStore) IncrementWin(ctx context.Context, userID int64) error {
	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, userKey(userID), "wins", 1)
	pipe.ZIncrBy(ctx, keyRank, 1, strconv.FormatInt(userID, 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store: increment wins: %w", err)
	}

	return nil
}

// IncrementDraw implements Store.
func (s *RedisStore) IncrementDraw(ctx context.Context, userID int64) error {
	if err := s.client.HIncrBy(ctx, userKey(userID), "draws", 1).Err(); err != nil {
		return fmt.Errorf("redis store: increment draws: %w", err)
	}

	return nil
}

// GetRank implements Store.
func (s *RedisStore) GetRank(ctx context.Context, userID int64) (int, error) {
	wins, err := s.client.HGet(ctx, userKey(userID), "wins").Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrUserNotFound
	} else if err != nil {
		return 0, fmt.Errorf("redis store: get wins: %w", err)
	}

	n, err := strconv.Atoi(wins)
	if err != nil {
		return 0, fmt.Errorf("redis store: corrupt wins for %d: %w", userID, err)
	}

	return s.rankOf(ctx, n)
}

// ListFriends implements Store.
func (s *RedisStore) ListFriends(ctx context.Context, userID int64) ([]*User, error) {
	ids, err := s.client.SMembers(ctx, friendsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis store: list friends: %w", err)
	}

	out := make([]*User, 0, len(ids))
	for _, idStr := range ids {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}

		u, err := s.GetByID(ctx, id)
		if errors.Is(err, ErrUserNotFound) {
			continue
		} else if err != nil {
			return nil, err
		}

		out = append(out, u)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// IsFriend implements Store.
func (s *RedisStore) IsFriend(ctx context.Context, userID, friendID int64) (bool, error) {
	ok, err := s.client.SIsMember(ctx, friendsKey(userID), friendID).Result()
	if err != nil {
		return false, fmt.Errorf("redis store: friend check: %w", err)
	}

	return ok, nil
}

// MakeFriend implements Store.
func (s *RedisStore) MakeFriend(ctx context.Context, userID, friendID int64) error {
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, friendsKey(userID), friendID)
	pipe.SAdd(ctx, friendsKey(friendID), userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store: make friend: %w", err)
	}

	return nil
}

// Rank100 implements Store.
func (s *RedisStore) Rank100(ctx context.Context) ([]*User, error) {
	// The zset orders by wins only; ties on game count are resolved after
	// loading the full records. 200 candidates cover tie groups straddling
	// the 100 cutoff.
	ids, err := s.client.ZRevRange(ctx, keyRank, 0, 199).Result()
	if err != nil {
		return nil, fmt.Errorf("redis store: leaderboard range: %w", err)
	}

	out := make([]*User, 0, len(ids))
	for _, idStr := range ids {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}

		u, err := s.loadUser(ctx, id)
		if errors.Is(err, ErrUserNotFound) {
			continue
		} else if err != nil {
			return nil, err
		}

		out = append(out, u)
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

	for i, u := range out {
		rank, err := s.rankOf(ctx, u.Wins)
		if err != nil {
			return nil, err
		}
		out[i].Rank = rank
	}

	return out, nil
}

// ResetAllStatus implements Store.
func (s *RedisStore) ResetAllStatus(ctx context.Context) error {
	ids, err := s.client.SMembers(ctx, keyUsers).Result()
	if err != nil {
		return fmt.Errorf("redis store: list users: %w", err)
	}

	pipe := s.client.Pipeline()
	for _, idStr := range ids {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}

		pipe.HSet(ctx, userKey(id), "online", 0, "playing", 0)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store: reset status: %w", err)
	}

	return nil
}
