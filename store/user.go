package store

import (
	"fmt"
	"strconv"
	"strings"
)

// User is a player account. Rank is a derived field (1-based position by
// win count) filled in by the store when the user is loaded.
type User struct {
	ID       int64
	Username string
	Password string
	Nickname string
	Avatar   string
	Games    int
	Wins     int
	Draws    int
	Online   bool
	Playing  bool
	Rank     int
}

// WireString encodes the user as the comma-separated field list carried in
// login-success and go-to-room frames:
//
//	id,username,password,nickname,avatar,games,wins,draws,rank
//
// The password field is always sent blank. The original implementation put
// the stored password on the wire here; the field position is kept so the
// frame shape is unchanged, but the value never leaves the server.
func (u *User) WireString() string {
	return fmt.Sprintf("%d,%s,,%s,%s,%d,%d,%d,%d",
		u.ID, u.Username, u.Nickname, u.Avatar, u.Games, u.Wins, u.Draws, u.Rank)
}

// UserFromWire decodes a WireString-encoded field list back into a User.
// Returns nil if the data has fewer than 9 fields or malformed numbers.
func UserFromWire(data string) *User {
	parts := strings.Split(data, ",")
	if len(parts) < 9 {
		return nil
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil
	}

	games, err1 := strconv.Atoi(parts[5])
	wins, err2 := strconv.Atoi(parts[6])
	draws, err3 := strconv.Atoi(parts[7])
	rank, err4 := strconv.Atoi(parts[8])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return nil
	}

	return &User{
		ID:       id,
		Username: parts[1],
		Nickname: parts[3],
		Avatar:   parts[4],
		Games:    games,
		Wins:     wins,
		Draws:    draws,
		Rank:     rank,
	}
}
