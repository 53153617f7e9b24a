// Package board implements the Caro (gomoku) board: a fixed-size square
// grid with win detection, draw detection, and move enumeration. All
// functions are pure with respect to their inputs and deterministic, so
// two independent implementations can be diffed cell by cell.
package board

import "iter"

const (
	// Size is the board edge length in cells.
	Size = 15
	// WinLength is the number of consecutive same-mark cells required to
	// win. It is independent of Size.
	WinLength = 5
)

// Mark is the content of a single board cell.
type Mark uint8

const (
	Empty Mark = iota
	X
	O
)

// Opponent returns the opposing mark. Calling it on Empty returns Empty.
func (m Mark) Opponent() Mark {
	switch m {
	case X:
		return O
	case O:
		return X
	}

	return Empty
}

// Point is a cell coordinate. Row and Col are zero-based.
type Point struct {
	Row int
	Col int
}

// directions holds the four axis vectors checked for a winning line:
// horizontal, vertical and the two diagonals. The reverse of each vector
// is walked explicitly, so four entries cover all eight rays.
var directions = [4]Point{
	{0, 1},
	{1, 0},
	{1, 1},
	{1, -1},
}

// Board is a Size x Size grid of marks. The zero value is an empty board
// ready for use. Board is not safe for concurrent use; callers that share
// a board across goroutines must synchronize externally.
type Board struct {
	cells [Size][Size]Mark
}

// New returns an empty board.
func New() *Board {
	return &Board{}
}

// InBounds reports whether p is a valid cell coordinate.
func InBounds(p Point) bool {
	return p.Row >= 0 && p.Row < Size && p.Col >= 0 && p.Col < Size
}

// At returns the mark at p. Out-of-bounds coordinates return Empty.
func (b *Board) At(p Point) Mark {
	if !InBounds(p) {
		return Empty
	}

	return b.cells[p.Row][p.Col]
}

// Place writes mark m at p. It reports whether the placement happened:
// out-of-bounds coordinates and occupied cells are rejected. Placing
// Empty clears the cell unconditionally (used to undo hypothetical moves).
func (b *Board) Place(p Point, m Mark) bool {
	if !InBounds(p) {
		return false
	}

	if m != Empty && b.cells[p.Row][p.Col] != Empty {
		return false
	}

	b.cells[p.Row][p.Col] = m
	return true
}

// Reset clears every cell, returning the board to its initial state.
func (b *Board) Reset() {
	b.cells = [Size][Size]Mark{}
}

// countRun counts consecutive cells holding m stepping from p in direction
// d, excluding p itself.
func (b *Board) countRun(p Point, d Point, m Mark) int {
	count := 0
	n := Point{Row: p.Row + d.Row, Col: p.Col + d.Col}
	for InBounds(n) && b.cells[n.Row][n.Col] == m {
		count++
		n.Row += d.Row
		n.Col += d.Col
	}

	return count
}

// CheckWin reports whether the mark m just played at p completes a run of
// at least WinLength along any of the four axes through p. The cell at p
// is counted whether or not it currently holds m, so callers may check a
// hypothetical move before committing it.
//
// Parameters:
//   - p: The cell of the move being evaluated
//   - m: The mark that was (or would be) placed at p
//
// Returns:
//   - true if the move completes a winning run, false otherwise
func (b *Board) CheckWin(p Point, m Mark) bool {
	if !InBounds(p) || m == Empty {
		return false
	}

	for _, d := range directions {
		total := 1 + b.countRun(p, d, m) + b.countRun(p, Point{Row: -d.Row, Col: -d.Col}, m)
		if total >= WinLength {
			return true
		}
	}

	return false
}

// MaxRun returns the longest run through p across the four axes, counting
// p itself as holding m. Used by the move selector to rate threats.
func (b *Board) MaxRun(p Point, m Mark) int {
	best := 0
	for _, d := range directions {
		total := 1 + b.countRun(p, d, m) + b.countRun(p, Point{Row: -d.Row, Col: -d.Col}, m)
		if total > best {
			best = total
		}
	}

	return best
}

// WinningCells returns the cells forming the winning line through p for
// mark m, for client-side highlighting. The played cell comes first,
// followed by the forward ray and then the backward ray of the first axis
// whose total reaches WinLength. Returns nil when the move does not win.
func (b *Board) WinningCells(p Point, m Mark) []Point {
	if !InBounds(p) || m == Empty {
		return nil
	}

	for _, d := range directions {
		cells := []Point{p}

		n := Point{Row: p.Row + d.Row, Col: p.Col + d.Col}
		for InBounds(n) && b.cells[n.Row][n.Col] == m {
			cells = append(cells, n)
			n.Row += d.Row
			n.Col += d.Col
		}

		n = Point{Row: p.Row - d.Row, Col: p.Col - d.Col}
		for InBounds(n) && b.cells[n.Row][n.Col] == m {
			cells = append(cells, n)
			n.Row -= d.Row
			n.Col -= d.Col
		}

		if len(cells) >= WinLength {
			return cells
		}
	}

	return nil
}

// IsFull reports whether no empty cell remains.
func (b *Board) IsFull() bool {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b.cells[r][c] == Empty {
				return false
			}
		}
	}

	return true
}

// ValidMoves returns a lazy sequence of all empty cells in row-major
// order. The sequence is finite and restartable: ranging over it twice
// yields the same cells as long as the board is unchanged in between.
func (b *Board) ValidMoves() iter.Seq[Point] {
	return func(yield func(Point) bool) {
		for r := 0; r < Size; r++ {
			for c := 0; c < Size; c++ {
				if b.cells[r][c] == Empty {
					if !yield(Point{Row: r, Col: c}) {
						return
					}
				}
			}
		}
	}
}

// Occupied returns a lazy sequence of all non-empty cells in row-major
// order, used by the move selector's proximity scan.
func (b *Board) Occupied() iter.Seq[Point] {
	return func(yield func(Point) bool) {
		for r := 0; r < Size; r++ {
			for c := 0; c < Size; c++ {
				if b.cells[r][c] != Empty {
					if !yield(Point{Row: r, Col: c}) {
						return
					}
				}
			}
		}
	}
}
