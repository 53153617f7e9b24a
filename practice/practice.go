// Package practice runs an offline match between a human and the built-in
// move selector, for play without a server connection.
package practice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cyberinferno/caro-server/ai"
	"github.com/cyberinferno/caro-server/board"
)

var (
	// ErrMatchOver is returned for moves after a terminal outcome.
	ErrMatchOver = errors.New("practice: match is over")
	// ErrNotYourTurn is returned when a side moves out of turn.
	ErrNotYourTurn = errors.New("practice: not your turn")
	// ErrInvalidMove is returned for out-of-bounds or occupied cells.
	ErrInvalidMove = errors.New("practice: invalid move")
)

// Outcome is the terminal state of a practice match.
type Outcome int

const (
	// OutcomeNone means the match is still running.
	OutcomeNone Outcome = iota
	// OutcomeHumanWin means the human made five in a row.
	OutcomeHumanWin
	// OutcomeEngineWin means the engine made five in a row.
	OutcomeEngineWin
	// OutcomeDraw means the board filled with no winner.
	OutcomeDraw
)

// Match is a single human-versus-engine game on a private board. The first
// mover plays the first symbol. Safe for concurrent use, though a match is
// naturally driven by one caller alternating HumanMove and EngineMove.
type Match struct {
	mu         sync.Mutex
	board      *board.Board
	humanMark  board.Mark
	engineMark board.Mark
	humanTurn  bool
	outcome    Outcome
	thinkDelay time.Duration
}

// NewMatch starts a practice match.
//
// Parameters:
//   - humanFirst: Whether the human opens the match
//   - thinkDelay: Pause before each engine reply, so the opponent does not
//     answer instantly; 0 disables it
//
// Returns:
//   - A Match ready for its first move
func NewMatch(humanFirst bool, thinkDelay time.Duration) *Match {
	m := &Match{
		board:      board.New(),
		thinkDelay: thinkDelay,
	}
	m.assignMarks(humanFirst)

	return m
}

func (m *Match) assignMarks(humanFirst bool) {
	m.humanTurn = humanFirst
	if humanFirst {
		m.humanMark, m.engineMark = board.X, board.O
	} else {
		m.humanMark, m.engineMark = board.O, board.X
	}
}

// Outcome returns the match outcome, OutcomeNone while still running.
func (m *Match) Outcome() Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome
}

// Board returns a copy of the current position for rendering.
func (m *Match) Board() *board.Board {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := *m.board
	return &snapshot
}

// HumanMove plays the human's mark at pt.
//
// Parameters:
//   - pt: The target cell
//
// Returns:
//   - The outcome after the move
//   - ErrMatchOver, ErrNotYourTurn or ErrInvalidMove when the move is not
//     playable
func (m *Match) HumanMove(pt board.Point) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.outcome != OutcomeNone {
		return m.outcome, ErrMatchOver
	}
	if !m.humanTurn {
		return OutcomeNone, ErrNotYourTurn
	}
	if !m.board.Place(pt, m.humanMark) {
		return OutcomeNone, ErrInvalidMove
	}

	m.settleLocked(pt, m.humanMark, OutcomeHumanWin)
	m.humanTurn = false

	return m.outcome, nil
}

// EngineMove waits out the think delay, then plays the engine's reply.
//
// Parameters:
//   - ctx: Cancels the wait; a cancelled context leaves the board untouched
//
// Returns:
//   - The cell the engine played
//   - The outcome after the move
//   - ctx.Err() if cancelled, or a turn/terminal error
func (m *Match) EngineMove(ctx context.Context) (board.Point, Outcome, error) {
	if err := m.waitThink(ctx); err != nil {
		return board.Point{}, OutcomeNone, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.outcome != OutcomeNone {
		return board.Point{}, m.outcome, ErrMatchOver
	}
	if m.humanTurn {
		return board.Point{}, OutcomeNone, ErrNotYourTurn
	}

	pt, ok := ai.SelectMove(m.board, m.engineMark, m.humanMark)
	if !ok {
		m.outcome = OutcomeDraw
		return board.Point{}, m.outcome, nil
	}

	m.board.Place(pt, m.engineMark)
	m.settleLocked(pt, m.engineMark, OutcomeEngineWin)
	m.humanTurn = true

	return pt, m.outcome, nil
}

// waitThink blocks for the configured delay or until ctx is cancelled.
func (m *Match) waitThink(ctx context.Context) error {
	if m.thinkDelay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(m.thinkDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settleLocked records the outcome after mark was played at pt.
func (m *Match) settleLocked(pt board.Point, mark board.Mark, winOutcome Outcome) {
	switch {
	case m.board.CheckWin(pt, mark):
		m.outcome = winOutcome
	case m.board.IsFull():
		m.outcome = OutcomeDraw
	}
}

// Reset clears the board for a rematch.
//
// Parameters:
//   - humanFirst: Whether the human opens the new match
func (m *Match) Reset(humanFirst bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.board.Reset()
	m.outcome = OutcomeNone
	m.assignMarks(humanFirst)
}
