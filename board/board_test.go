package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// place is a test helper that fails the test if the placement is rejected.
func place(t *testing.T, b *Board, r, c int, m Mark) {
	t.Helper()
	require.True(t, b.Place(Point{Row: r, Col: c}, m))
}

func TestBoard_Place(t *testing.T) {
	b := New()

	t.Run("empty cell accepts a mark", func(t *testing.T) {
		assert.True(t, b.Place(Point{Row: 7, Col: 7}, X))
		assert.Equal(t, X, b.At(Point{Row: 7, Col: 7}))
	})

	t.Run("occupied cell rejects a mark", func(t *testing.T) {
		assert.False(t, b.Place(Point{Row: 7, Col: 7}, O))
		assert.Equal(t, X, b.At(Point{Row: 7, Col: 7}))
	})

	t.Run("placing Empty clears the cell", func(t *testing.T) {
		assert.True(t, b.Place(Point{Row: 7, Col: 7}, Empty))
		assert.Equal(t, Empty, b.At(Point{Row: 7, Col: 7}))
	})

	t.Run("out of bounds is rejected", func(t *testing.T) {
		assert.False(t, b.Place(Point{Row: -1, Col: 0}, X))
		assert.False(t, b.Place(Point{Row: 0, Col: Size}, X))
	})
}

func TestBoard_CheckWin_AllAxes(t *testing.T) {
	cases := []struct {
		name string
		dr   int
		dc   int
	}{
		{"horizontal", 0, 1},
		{"vertical", 1, 0},
		{"diagonal down-right", 1, 1},
		{"diagonal down-left", 1, -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := New()
			start := Point{Row: 7, Col: 7}

			// Lay four marks, then confirm the fifth and only the fifth wins.
			for i := 0; i < 4; i++ {
				p := Point{Row: start.Row + i*tc.dr, Col: start.Col + i*tc.dc}
				require.True(t, b.Place(p, X))
				assert.False(t, b.CheckWin(p, X), "won before the fifth mark")
			}

			fifth := Point{Row: start.Row + 4*tc.dr, Col: start.Col + 4*tc.dc}
			require.True(t, b.Place(fifth, X))
			assert.True(t, b.CheckWin(fifth, X))
		})
	}
}

func TestBoard_CheckWin_CountsBothDirections(t *testing.T) {
	b := New()
	// X X _ X X with the gap filled last: the middle move must see both
	// sides of the line.
	for _, c := range []int{3, 4, 6, 7} {
		place(t, b, 5, c, X)
	}

	place(t, b, 5, 5, X)
	assert.True(t, b.CheckWin(Point{Row: 5, Col: 5}, X))
}

func TestBoard_CheckWin_BlockedFourIsNotAWin(t *testing.T) {
	b := New()
	place(t, b, 0, 0, O)
	for c := 1; c <= 4; c++ {
		place(t, b, 0, c, X)
	}
	place(t, b, 0, 5, O)

	for c := 1; c <= 4; c++ {
		assert.False(t, b.CheckWin(Point{Row: 0, Col: c}, X))
	}
}

func TestBoard_CheckWin_OpponentMarkBreaksRun(t *testing.T) {
	b := New()
	for c := 0; c < 5; c++ {
		m := X
		if c == 2 {
			m = O
		}
		place(t, b, 3, c, m)
	}

	assert.False(t, b.CheckWin(Point{Row: 3, Col: 4}, X))
}

func TestBoard_WinningCells(t *testing.T) {
	b := New()
	for c := 2; c <= 6; c++ {
		place(t, b, 9, c, O)
	}

	cells := b.WinningCells(Point{Row: 9, Col: 4}, O)
	require.Len(t, cells, 5)
	for _, p := range cells {
		assert.Equal(t, 9, p.Row)
		assert.GreaterOrEqual(t, p.Col, 2)
		assert.LessOrEqual(t, p.Col, 6)
	}

	assert.Nil(t, b.WinningCells(Point{Row: 0, Col: 0}, O))
}

func TestBoard_IsFull(t *testing.T) {
	b := New()
	assert.False(t, b.IsFull())

	mark := X
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			place(t, b, r, c, mark)
			mark = mark.Opponent()
		}
	}
	assert.True(t, b.IsFull())

	t.Run("one empty cell is not full", func(t *testing.T) {
		require.True(t, b.Place(Point{Row: 14, Col: 14}, Empty))
		assert.False(t, b.IsFull())
	})
}

func TestBoard_ValidMoves(t *testing.T) {
	b := New()
	place(t, b, 0, 0, X)
	place(t, b, 0, 1, O)

	t.Run("row-major order skipping occupied", func(t *testing.T) {
		var first Point
		for p := range b.ValidMoves() {
			first = p
			break
		}
		assert.Equal(t, Point{Row: 0, Col: 2}, first)
	})

	t.Run("restartable", func(t *testing.T) {
		count := func() int {
			n := 0
			for range b.ValidMoves() {
				n++
			}
			return n
		}
		assert.Equal(t, Size*Size-2, count())
		assert.Equal(t, Size*Size-2, count())
	})
}

func TestBoard_Reset(t *testing.T) {
	b := New()
	place(t, b, 4, 4, X)
	b.Reset()
	assert.Equal(t, Empty, b.At(Point{Row: 4, Col: 4}))
	assert.False(t, b.IsFull())
}

func TestMark_Opponent(t *testing.T) {
	assert.Equal(t, O, X.Opponent())
	assert.Equal(t, X, O.Opponent())
	assert.Equal(t, Empty, Empty.Opponent())
}
