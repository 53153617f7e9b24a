// Package ai implements the heuristic move selector used by the practice
// mode and by timeout arbitration. The selector is stateless: it evaluates
// hypothetical moves on the caller's board and always undoes them before
// returning.
package ai

import (
	"math/rand"

	"github.com/cyberinferno/caro-server/board"
)

// neighborhood is the fixed scan order for the 8 Chebyshev-distance-1
// neighbors of a cell, row-major.
var neighborhood = [8]board.Point{
	{Row: -1, Col: -1}, {Row: -1, Col: 0}, {Row: -1, Col: 1},
	{Row: 0, Col: -1}, {Row: 0, Col: 1},
	{Row: 1, Col: -1}, {Row: 1, Col: 0}, {Row: 1, Col: 1},
}

// SelectMove picks a move for own against opp using a strict priority
// policy, each step scanning empty cells in row-major order:
//
//  1. Take an immediate win.
//  2. Block the opponent's immediate win.
//  3. Extend own marks into a run of at least three.
//  4. Play adjacent to any occupied cell.
//  5. Play a uniformly random empty cell.
//
// Only step 5 is non-deterministic, and it is reachable only when no cell
// on the board is occupied. The board is used as scratch space for
// hypothetical placements but is restored before SelectMove returns.
//
// Parameters:
//   - b: The board to evaluate; temporarily mutated, restored on return
//   - own: The selector's mark
//   - opp: The opponent's mark
//
// Returns:
//   - The chosen cell and true, or a zero Point and false if the board is full
func SelectMove(b *board.Board, own, opp board.Mark) (board.Point, bool) {
	if p, ok := findWinningMove(b, own); ok {
		return p, true
	}

	if p, ok := findWinningMove(b, opp); ok {
		return p, true
	}

	if p, ok := findThreatMove(b, own); ok {
		return p, true
	}

	if p, ok := findAdjacentMove(b); ok {
		return p, true
	}

	return randomMove(b)
}

// findWinningMove returns the first empty cell, in row-major order, where
// placing m would win immediately.
func findWinningMove(b *board.Board, m board.Mark) (board.Point, bool) {
	for p := range b.ValidMoves() {
		b.Place(p, m)
		won := b.CheckWin(p, m)
		b.Place(p, board.Empty)
		if won {
			return p, true
		}
	}

	return board.Point{}, false
}

// findThreatMove returns the first empty cell where placing m yields a run
// of at least three through that cell.
func findThreatMove(b *board.Board, m board.Mark) (board.Point, bool) {
	for p := range b.ValidMoves() {
		b.Place(p, m)
		run := b.MaxRun(p, m)
		b.Place(p, board.Empty)
		if run >= 3 {
			return p, true
		}
	}

	return board.Point{}, false
}

// findAdjacentMove returns the first empty cell adjacent to an occupied
// cell, scanning occupied cells in row-major order and each cell's
// neighborhood in a fixed order.
func findAdjacentMove(b *board.Board) (board.Point, bool) {
	for p := range b.Occupied() {
		for _, d := range neighborhood {
			n := board.Point{Row: p.Row + d.Row, Col: p.Col + d.Col}
			if board.InBounds(n) && b.At(n) == board.Empty {
				return n, true
			}
		}
	}

	return board.Point{}, false
}

// randomMove returns a uniformly random empty cell, or false on a full board.
func randomMove(b *board.Board) (board.Point, bool) {
	var moves []board.Point
	for p := range b.ValidMoves() {
		moves = append(moves, p)
	}

	if len(moves) == 0 {
		return board.Point{}, false
	}

	return moves[rand.Intn(len(moves))], true
}
