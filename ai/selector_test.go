package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/caro-server/board"
)

func place(t *testing.T, b *board.Board, r, c int, m board.Mark) {
	t.Helper()
	require.True(t, b.Place(board.Point{Row: r, Col: c}, m))
}

// row lays marks of m on row r at the given columns.
func row(t *testing.T, b *board.Board, r int, cols []int, m board.Mark) {
	t.Helper()
	for _, c := range cols {
		place(t, b, r, c, m)
	}
}

func TestSelectMove_TakesTheWin(t *testing.T) {
	b := board.New()
	row(t, b, 7, []int{3, 4, 5, 6}, board.X) // X wins at (7,2) or (7,7)

	p, ok := SelectMove(b, board.X, board.O)
	require.True(t, ok)
	assert.Equal(t, board.Point{Row: 7, Col: 2}, p, "first winning cell in row-major order")
}

func TestSelectMove_WinBeatsBlock(t *testing.T) {
	b := board.New()
	row(t, b, 2, []int{3, 4, 5, 6}, board.O)  // O threatens a win on row 2
	row(t, b, 10, []int{3, 4, 5, 6}, board.X) // X can win on row 10

	p, ok := SelectMove(b, board.X, board.O)
	require.True(t, ok)
	assert.Equal(t, 10, p.Row, "own win outranks blocking the opponent")
}

func TestSelectMove_BlockBeatsThreat(t *testing.T) {
	b := board.New()
	row(t, b, 2, []int{3, 4, 5, 6}, board.O) // O one move from winning
	row(t, b, 10, []int{3, 4}, board.X)      // X could build a three

	p, ok := SelectMove(b, board.X, board.O)
	require.True(t, ok)
	assert.Equal(t, 2, p.Row, "blocking outranks building a threat")
	b.Place(p, board.O)
	assert.True(t, b.CheckWin(p, board.O), "the block sits on the winning cell")
}

func TestSelectMove_ThreatBeatsProximity(t *testing.T) {
	b := board.New()
	place(t, b, 0, 0, board.O) // lone opponent mark, proximity bait
	row(t, b, 10, []int{5, 6}, board.X)

	p, ok := SelectMove(b, board.X, board.O)
	require.True(t, ok)

	b.Place(p, board.X)
	assert.GreaterOrEqual(t, b.MaxRun(p, board.X), 3, "move extends own pair into a three")
}

func TestSelectMove_ProximityFallback(t *testing.T) {
	b := board.New()
	place(t, b, 7, 7, board.O) // nothing to win, block, or build

	p, ok := SelectMove(b, board.X, board.O)
	require.True(t, ok)
	assert.Equal(t, board.Point{Row: 6, Col: 6}, p, "first neighbor in the fixed scan order")
}

func TestSelectMove_EmptyBoardIsRandomButValid(t *testing.T) {
	b := board.New()

	p, ok := SelectMove(b, board.X, board.O)
	require.True(t, ok)
	assert.True(t, board.InBounds(p))
	assert.Equal(t, board.Empty, b.At(p))
}

func TestSelectMove_FullBoardHasNoMove(t *testing.T) {
	b := board.New()
	// Fill the board with alternating marks, column-striped so that no
	// five in a row ever forms along a row; win state is irrelevant here.
	for r := 0; r < board.Size; r++ {
		for c := 0; c < board.Size; c++ {
			m := board.X
			if (c/2+r)%2 == 0 {
				m = board.O
			}
			place(t, b, r, c, m)
		}
	}

	_, ok := SelectMove(b, board.X, board.O)
	assert.False(t, ok)
}

func TestSelectMove_RestoresTheBoard(t *testing.T) {
	b := board.New()
	row(t, b, 2, []int{3, 4, 5, 6}, board.O)

	_, ok := SelectMove(b, board.X, board.O)
	require.True(t, ok)

	occupied := 0
	for range b.Occupied() {
		occupied++
	}
	assert.Equal(t, 4, occupied, "hypothetical placements were undone")
}
