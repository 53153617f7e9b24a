// Package room pairs exactly two sessions into one authoritative match:
// it owns the shared board, the match counter whose parity decides who
// moves first with which symbol, and the server-side turn flag. All
// mutation happens under a per-room mutex; outbound frames are written
// only after the lock is released.
package room

import (
	"errors"
	"sync"
	"time"

	"github.com/cyberinferno/caro-server/board"
	"github.com/cyberinferno/caro-server/logger"
	"github.com/cyberinferno/caro-server/protocol"
	"github.com/cyberinferno/caro-server/store"
)

var (
	// ErrRoomFull is returned when joining a room that already has two sides.
	ErrRoomFull = errors.New("room: room is full")
	// ErrWrongPassword is returned when the supplied room password does not match.
	ErrWrongPassword = errors.New("room: wrong password")
	// ErrNotYourTurn is returned for a move from the side whose turn it is not.
	ErrNotYourTurn = errors.New("room: not your turn")
	// ErrInvalidMove is returned for an out-of-bounds or occupied cell.
	ErrInvalidMove = errors.New("room: invalid move")
	// ErrNoCompetitor is returned for match operations before pairing.
	ErrNoCompetitor = errors.New("room: no competitor")
)

// Participant is the view of a session the room needs. The server's
// session type implements it.
type Participant interface {
	// ID returns the session's connection id.
	ID() uint32

	// User returns the authenticated account, or nil.
	User() *store.User

	// Addr returns the session's remote address, handed to the peer as
	// the rendezvous address for its direct connection.
	Addr() string

	// Send writes one frame to the session's socket. Safe for concurrent use.
	Send(msg protocol.Message) error

	// SetRoom updates the session's current room reference; nil clears it.
	SetRoom(r *Room)
}

// MoveResult describes the board state after an applied move.
type MoveResult struct {
	// Win is true when the move completed a five-in-a-row.
	Win bool
	// Draw is true when the move filled the board without a win.
	Draw bool
	// Line holds the winning cells when Win is true, for highlighting.
	Line []board.Point
}

// Room is one two-player match. The creating session is side A; the
// joining session is side B. Whose turn it is and which symbol each side
// plays are pure functions of the match counter's parity: an even counter
// means side A moves first and plays the first symbol, an odd counter
// inverts the roles. The parity rule is re-derived on every replay, never
// re-randomized.
type Room struct {
	id       uint32
	password string
	log      logger.Logger

	mu         sync.Mutex
	sideA      Participant
	sideB      Participant
	matchCount int
	board      *board.Board
	turn       Participant

	turnTimeout time.Duration
	onExpire    func(loser Participant)
	timer       *time.Timer
	timerGen    uint64
}

// New creates a room hosted by creator. The password may be empty for a
// public room. The match counter starts at zero, so the creator moves
// first in the first game.
func New(id uint32, creator Participant, password string, log logger.Logger) *Room {
	return &Room{
		id:       id,
		password: password,
		sideA:    creator,
		board:    board.New(),
		turn:     creator,
		log:      log.With(logger.Field{Key: "room_id", Value: id}),
	}
}

// ID returns the room's process-unique id.
func (r *Room) ID() uint32 { return r.id }

// Password returns the room password; "" marks a public room.
func (r *Room) Password() string { return r.password }

// Occupants returns 1 while the room waits for an opponent, 2 once paired.
func (r *Room) Occupants() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	if r.sideA != nil {
		n++
	}
	if r.sideB != nil {
		n++
	}

	return n
}

// MatchCount returns the current match counter.
func (r *Room) MatchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matchCount
}

// Join sets p as side B. The check-and-set is atomic under the room
// mutex: of two joiners racing for the last slot exactly one wins and the
// other receives ErrRoomFull, never a silent overwrite.
//
// Parameters:
//   - p: The joining session
//   - suppliedPassword: Password given by the joiner; ignored for public rooms
//
// Returns:
//   - ErrRoomFull, ErrWrongPassword, or nil on success
func (r *Room) Join(p Participant, suppliedPassword string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sideB != nil {
		return ErrRoomFull
	}

	if r.password != "" && suppliedPassword != r.password {
		return ErrWrongPassword
	}

	r.sideB = p
	return nil
}

// ForceJoin sets p as side B without a password check, used for duel
// pairings where both players already agreed.
//
// Parameters:
//   - p: The joining session
//
// Returns:
//   - ErrRoomFull if the room is already paired, nil on success
func (r *Room) ForceJoin(p Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sideB != nil {
		return ErrRoomFull
	}

	r.sideB = p
	return nil
}

// Competitor returns the side opposite the session with connection id id,
// or nil when there is none.
func (r *Room) Competitor(id uint32) Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.competitorLocked(id)
}

func (r *Room) competitorLocked(id uint32) Participant {
	if r.sideA != nil && r.sideA.ID() == id {
		return r.sideB
	}
	if r.sideB != nil && r.sideB.ID() == id {
		return r.sideA
	}

	return nil
}

// FirstMover returns the side that moves first (and plays the first
// symbol) for the current match counter: side A when the counter is even,
// side B when odd.
func (r *Room) FirstMover() Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firstMoverLocked()
}

func (r *Room) firstMoverLocked() Participant {
	if r.matchCount%2 == 0 {
		return r.sideA
	}

	return r.sideB
}

// IsFirstMover reports whether the session with connection id id moves
// first in the current match.
func (r *Room) IsFirstMover(id uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	fm := r.firstMoverLocked()
	return fm != nil && fm.ID() == id
}

// markOfLocked returns the symbol the given side plays this match.
func (r *Room) markOfLocked(p Participant) board.Mark {
	fm := r.firstMoverLocked()
	if fm != nil && fm.ID() == p.ID() {
		return board.X
	}

	return board.O
}

// ApplyMove places the move (pt) for the session with connection id
// moverID on the room's board and reports the resulting match state. The
// original system forwarded moves without checking whose turn it was,
// trusting each client's own turn flag; here the room tracks the turn
// server-side and rejects out-of-turn moves with ErrNotYourTurn.
//
// Parameters:
//   - moverID: Connection id of the moving session
//   - pt: The cell being played
//
// Returns:
//   - The MoveResult and nil, or ErrNoCompetitor, ErrNotYourTurn, ErrInvalidMove
func (r *Room) ApplyMove(moverID uint32, pt board.Point) (MoveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sideA == nil || r.sideB == nil {
		return MoveResult{}, ErrNoCompetitor
	}

	var mover Participant
	switch {
	case r.sideA.ID() == moverID:
		mover = r.sideA
	case r.sideB.ID() == moverID:
		mover = r.sideB
	default:
		return MoveResult{}, ErrNoCompetitor
	}

	if r.turn == nil || r.turn.ID() != moverID {
		return MoveResult{}, ErrNotYourTurn
	}

	mark := r.markOfLocked(mover)
	if !r.board.Place(pt, mark) {
		return MoveResult{}, ErrInvalidMove
	}

	res := MoveResult{}
	if r.board.CheckWin(pt, mark) {
		res.Win = true
		res.Line = r.board.WinningCells(pt, mark)
		r.stopTimerLocked()
	} else if r.board.IsFull() {
		res.Draw = true
		r.stopTimerLocked()
	} else {
		r.turn = r.competitorLocked(moverID)
		r.armTimerLocked()
	}

	return res, nil
}

// AdvanceMatch increments the match counter and resets the board for a
// replay within the same room. The first mover for the new game follows
// from the new counter's parity.
func (r *Room) AdvanceMatch() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.matchCount++
	r.board.Reset()
	r.turn = r.firstMoverLocked()
	if r.sideA != nil && r.sideB != nil {
		r.armTimerLocked()
	}
}

// BeginMatch arms the turn deadline for the opening move. Called once
// both sides are present.
func (r *Room) BeginMatch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armTimerLocked()
}

// Leave removes the session with connection id id from the room, stops
// any pending turn deadline, and returns the remaining side (or nil).
//
// Parameters:
//   - id: Connection id of the leaving session
//
// Returns:
//   - The remaining participant, or nil if the room is now empty
func (r *Room) Leave(id uint32) Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopTimerLocked()

	switch {
	case r.sideA != nil && r.sideA.ID() == id:
		r.sideA = nil
		return r.sideB
	case r.sideB != nil && r.sideB.ID() == id:
		r.sideB = nil
		return r.sideA
	}

	return nil
}

// Broadcast sends msg to both sides. Participant references are copied
// under the lock and the writes happen outside it; a failed send to one
// side never prevents delivery to the other.
//
// Parameters:
//   - msg: The frame to deliver
func (r *Room) Broadcast(msg protocol.Message) {
	r.mu.Lock()
	sides := make([]Participant, 0, 2)
	if r.sideA != nil {
		sides = append(sides, r.sideA)
	}
	if r.sideB != nil {
		sides = append(sides, r.sideB)
	}
	r.mu.Unlock()

	for _, p := range sides {
		if err := p.Send(msg); err != nil {
			r.log.Warn("room broadcast failed",
				logger.Field{Key: "session_id", Value: p.ID()},
				logger.Field{Key: "error", Value: err})
		}
	}
}

// Sides returns both participants; either may be nil.
func (r *Room) Sides() (a, b Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sideA, r.sideB
}

// Users returns the authenticated accounts of both sides; either entry
// may be nil.
func (r *Room) Users() (a, b *store.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sideA != nil {
		a = r.sideA.User()
	}
	if r.sideB != nil {
		b = r.sideB.User()
	}

	return a, b
}

// SetTurnDeadline enables the server-side per-turn deadline: when a side
// holds the turn for longer than d, onExpire fires with that side. A zero
// d disables enforcement (the default), matching the original system
// where timeouts were purely client-reported.
//
// Parameters:
//   - d: Per-turn deadline; 0 disables
//   - onExpire: Called off the room lock with the side that ran out of time
func (r *Room) SetTurnDeadline(d time.Duration, onExpire func(loser Participant)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turnTimeout = d
	r.onExpire = onExpire
}

// armTimerLocked schedules the turn deadline for the side currently on
// turn. The generation counter makes a stale fire (one scheduled before a
// move landed) a no-op.
func (r *Room) armTimerLocked() {
	if r.turnTimeout <= 0 || r.onExpire == nil {
		return
	}

	r.stopTimerLocked()
	r.timerGen++
	gen := r.timerGen
	loser := r.turn

	r.timer = time.AfterFunc(r.turnTimeout, func() {
		r.mu.Lock()
		if gen != r.timerGen || loser == nil || r.turn == nil || r.turn.ID() != loser.ID() {
			r.mu.Unlock()
			return
		}

		// Claim the expiry while still holding the lock. Clearing the turn
		// means a move racing with this callback fails ErrNotYourTurn
		// instead of landing on a match that is already forfeited.
		r.turn = nil
		r.timerGen++
		r.mu.Unlock()

		r.log.Info("turn deadline expired", logger.Field{Key: "session_id", Value: loser.ID()})
		r.onExpire(loser)
	})
}

func (r *Room) stopTimerLocked() {
	r.timerGen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
