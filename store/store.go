// Package store defines the persistence collaborator consumed by the game
// core: account verification, status flags, and score accounting. The core
// treats every operation as opaque and possibly failing; implementations
// are an in-memory store and a redis-backed store.
package store

import (
	"context"
	"errors"
)

var (
	// ErrWrongCredentials is returned when username/password verification fails.
	ErrWrongCredentials = errors.New("store: wrong credentials")
	// ErrDuplicateUsername is returned when registering an existing username.
	ErrDuplicateUsername = errors.New("store: duplicate username")
	// ErrUserNotFound is returned when a user id does not exist.
	ErrUserNotFound = errors.New("store: user not found")
)

// Store is the persistence interface the session layer depends on. All
// methods are safe for concurrent use.
//
// Passwords are compared in the clear, matching the system this replaces;
// hashed credential storage is a known follow-up, not silently added here.
type Store interface {
	// VerifyCredentials checks a username/password pair and returns the
	// matching user with Rank populated, or ErrWrongCredentials.
	VerifyCredentials(ctx context.Context, username, password string) (*User, error)

	// UsernameExists reports whether a username is already taken.
	UsernameExists(ctx context.Context, username string) (bool, error)

	// Register creates a new account and returns it, or ErrDuplicateUsername.
	Register(ctx context.Context, username, password, nickname, avatar string) (*User, error)

	// GetByID returns the user with the given id and Rank populated, or
	// ErrUserNotFound.
	GetByID(ctx context.Context, userID int64) (*User, error)

	// IsBanned reports whether the user id is banned.
	IsBanned(ctx context.Context, userID int64) (bool, error)

	// SetBanned bans or unbans a user id.
	SetBanned(ctx context.Context, userID int64, banned bool) error

	// MarkOnline sets the user's online flag.
	MarkOnline(ctx context.Context, userID int64) error

	// MarkOffline clears the user's online flag.
	MarkOffline(ctx context.Context, userID int64) error

	// MarkPlaying sets the user's playing flag.
	MarkPlaying(ctx context.Context, userID int64) error

	// MarkNotPlaying clears the user's playing flag.
	MarkNotPlaying(ctx context.Context, userID int64) error

	// IncrementGame adds one to the user's lifetime game count.
	IncrementGame(ctx context.Context, userID int64) error

	// DecrementGame subtracts one from the user's game count, never going
	// below zero. It is the symmetric undo of IncrementGame for matches
	// abandoned before completion.
	DecrementGame(ctx context.Context, userID int64) error

	// IncrementWin adds one to the user's win count.
	IncrementWin(ctx context.Context, userID int64) error

	// IncrementDraw adds one to the user's draw count.
	IncrementDraw(ctx context.Context, userID int64) error

	// GetRank returns the user's 1-based rank: one plus the number of
	// users with strictly more wins.
	GetRank(ctx context.Context, userID int64) (int, error)

	// ListFriends returns the user's friends with their online/playing flags.
	ListFriends(ctx context.Context, userID int64) ([]*User, error)

	// IsFriend reports whether two users are friends.
	IsFriend(ctx context.Context, userID, friendID int64) (bool, error)

	// MakeFriend records a friendship between two users. The relation is
	// symmetric and idempotent.
	MakeFriend(ctx context.Context, userID, friendID int64) error

	// Rank100 returns up to 100 users ordered by wins descending, game
	// count ascending, with Rank populated.
	Rank100(ctx context.Context) ([]*User, error)

	// ResetAllStatus clears every user's online and playing flags, run at
	// server boot to recover from an unclean shutdown.
	ResetAllStatus(ctx context.Context) error
}
