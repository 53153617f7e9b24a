package room

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/caro-server/board"
	"github.com/cyberinferno/caro-server/logger"
	"github.com/cyberinferno/caro-server/protocol"
	"github.com/cyberinferno/caro-server/store"
)

// fakePlayer implements Participant for room tests.
type fakePlayer struct {
	id   uint32
	user *store.User
	mu   sync.Mutex
	sent []protocol.Message
	room *Room
}

func (f *fakePlayer) ID() uint32        { return f.id }
func (f *fakePlayer) User() *store.User { return f.user }
func (f *fakePlayer) Addr() string      { return "127.0.0.1" }
func (f *fakePlayer) SetRoom(r *Room)   { f.room = r }

func (f *fakePlayer) Send(msg protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakePlayer) received() []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Message(nil), f.sent...)
}

func pairedRoom(t *testing.T) (*Room, *fakePlayer, *fakePlayer) {
	t.Helper()
	a := &fakePlayer{id: 1, user: &store.User{ID: 10}}
	b := &fakePlayer{id: 2, user: &store.User{ID: 20}}
	r := New(100, a, "", logger.Nop())
	require.NoError(t, r.Join(b, ""))
	return r, a, b
}

func TestRoom_Join(t *testing.T) {
	t.Run("public room accepts any password", func(t *testing.T) {
		a := &fakePlayer{id: 1}
		r := New(100, a, "", logger.Nop())
		assert.NoError(t, r.Join(&fakePlayer{id: 2}, "whatever"))
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		a := &fakePlayer{id: 1}
		r := New(100, a, "hunter2", logger.Nop())
		assert.ErrorIs(t, r.Join(&fakePlayer{id: 2}, "nope"), ErrWrongPassword)
		assert.Equal(t, 1, r.Occupants())
	})

	t.Run("correct password accepted", func(t *testing.T) {
		a := &fakePlayer{id: 1}
		r := New(100, a, "hunter2", logger.Nop())
		assert.NoError(t, r.Join(&fakePlayer{id: 2}, "hunter2"))
		assert.Equal(t, 2, r.Occupants())
	})

	t.Run("full room rejected", func(t *testing.T) {
		r, _, _ := pairedRoom(t)
		assert.ErrorIs(t, r.Join(&fakePlayer{id: 3}, ""), ErrRoomFull)
	})
}

func TestRoom_Join_ExactlyOnceUnderRace(t *testing.T) {
	for i := 0; i < 20; i++ {
		a := &fakePlayer{id: 1}
		r := New(100, a, "", logger.Nop())

		var wg sync.WaitGroup
		results := make([]error, 2)
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				results[n] = r.Join(&fakePlayer{id: uint32(2 + n)}, "")
			}(j)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range results {
			if err == nil {
				succeeded++
			} else {
				require.ErrorIs(t, err, ErrRoomFull)
			}
		}
		assert.Equal(t, 1, succeeded, "exactly one joiner wins the last slot")
	}
}

func TestRoom_ForceJoin(t *testing.T) {
	a := &fakePlayer{id: 1}
	r := New(100, a, "hunter2", logger.Nop())

	assert.NoError(t, r.ForceJoin(&fakePlayer{id: 2}), "duel pairing bypasses the password")
	assert.ErrorIs(t, r.ForceJoin(&fakePlayer{id: 3}), ErrRoomFull)
}

func TestRoom_Competitor(t *testing.T) {
	r, a, b := pairedRoom(t)

	assert.Equal(t, Participant(b), r.Competitor(a.ID()))
	assert.Equal(t, Participant(a), r.Competitor(b.ID()))
	assert.Nil(t, r.Competitor(99))
}

func TestRoom_MatchCounterParity(t *testing.T) {
	r, a, b := pairedRoom(t)

	assert.True(t, r.IsFirstMover(a.ID()), "counter 0: creator moves first")
	assert.False(t, r.IsFirstMover(b.ID()))

	r.AdvanceMatch()
	assert.False(t, r.IsFirstMover(a.ID()), "counter 1: roles invert")
	assert.True(t, r.IsFirstMover(b.ID()))

	t.Run("alternation holds over ten advances", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			r.AdvanceMatch()
			wantA := r.MatchCount()%2 == 0
			assert.Equal(t, wantA, r.IsFirstMover(a.ID()), "counter %d", r.MatchCount())
			assert.Equal(t, !wantA, r.IsFirstMover(b.ID()))
		}
	})
}

func TestRoom_ApplyMove(t *testing.T) {
	t.Run("requires a competitor", func(t *testing.T) {
		a := &fakePlayer{id: 1}
		r := New(100, a, "", logger.Nop())
		_, err := r.ApplyMove(a.ID(), board.Point{Row: 7, Col: 7})
		assert.ErrorIs(t, err, ErrNoCompetitor)
	})

	t.Run("out-of-turn move rejected", func(t *testing.T) {
		r, _, b := pairedRoom(t)
		_, err := r.ApplyMove(b.ID(), board.Point{Row: 7, Col: 7})
		assert.ErrorIs(t, err, ErrNotYourTurn)
	})

	t.Run("turn alternates after each move", func(t *testing.T) {
		r, a, b := pairedRoom(t)

		_, err := r.ApplyMove(a.ID(), board.Point{Row: 7, Col: 7})
		require.NoError(t, err)

		_, err = r.ApplyMove(a.ID(), board.Point{Row: 7, Col: 8})
		assert.ErrorIs(t, err, ErrNotYourTurn)

		_, err = r.ApplyMove(b.ID(), board.Point{Row: 8, Col: 7})
		require.NoError(t, err)
	})

	t.Run("occupied cell rejected", func(t *testing.T) {
		r, a, b := pairedRoom(t)
		_, err := r.ApplyMove(a.ID(), board.Point{Row: 7, Col: 7})
		require.NoError(t, err)
		_, err = r.ApplyMove(b.ID(), board.Point{Row: 7, Col: 7})
		assert.ErrorIs(t, err, ErrInvalidMove)
	})

	t.Run("win reported on the fifth mark", func(t *testing.T) {
		r, a, b := pairedRoom(t)

		// A builds a row on row 0; B answers harmlessly on row 14.
		for i := 0; i < 4; i++ {
			res, err := r.ApplyMove(a.ID(), board.Point{Row: 0, Col: i})
			require.NoError(t, err)
			assert.False(t, res.Win)

			res, err = r.ApplyMove(b.ID(), board.Point{Row: 14, Col: i})
			require.NoError(t, err)
			assert.False(t, res.Win)
		}

		res, err := r.ApplyMove(a.ID(), board.Point{Row: 0, Col: 4})
		require.NoError(t, err)
		assert.True(t, res.Win)
		assert.Len(t, res.Line, 5)
	})
}

func TestRoom_Leave(t *testing.T) {
	r, a, b := pairedRoom(t)

	remaining := r.Leave(a.ID())
	assert.Equal(t, Participant(b), remaining)

	assert.Nil(t, r.Leave(a.ID()), "leaving twice is a no-op")
	assert.Nil(t, r.Leave(b.ID()), "last side out leaves an empty room")
}

func TestRoom_Broadcast(t *testing.T) {
	r, a, b := pairedRoom(t)

	r.Broadcast(protocol.New(protocol.CmdNewGame))

	require.Len(t, a.received(), 1)
	require.Len(t, b.received(), 1)
	assert.Equal(t, protocol.CmdNewGame, a.received()[0].Cmd)
}

func TestRoom_TurnDeadline(t *testing.T) {
	t.Run("expires against the side on turn", func(t *testing.T) {
		r, a, _ := pairedRoom(t)

		expired := make(chan Participant, 1)
		r.SetTurnDeadline(30*time.Millisecond, func(loser Participant) {
			expired <- loser
		})
		r.BeginMatch()

		select {
		case loser := <-expired:
			assert.Equal(t, a.ID(), loser.ID(), "first mover held the turn")
		case <-time.After(time.Second):
			t.Fatal("turn deadline never fired")
		}
	})

	t.Run("a move re-arms for the opponent", func(t *testing.T) {
		r, a, b := pairedRoom(t)

		expired := make(chan Participant, 1)
		r.SetTurnDeadline(60*time.Millisecond, func(loser Participant) {
			expired <- loser
		})
		r.BeginMatch()

		time.Sleep(20 * time.Millisecond)
		_, err := r.ApplyMove(a.ID(), board.Point{Row: 7, Col: 7})
		require.NoError(t, err)

		select {
		case loser := <-expired:
			assert.Equal(t, b.ID(), loser.ID(), "deadline moved to the next side")
		case <-time.After(time.Second):
			t.Fatal("turn deadline never fired")
		}
	})

	t.Run("expired side cannot slip in a late move", func(t *testing.T) {
		r, a, _ := pairedRoom(t)

		expired := make(chan Participant, 1)
		r.SetTurnDeadline(30*time.Millisecond, func(loser Participant) {
			expired <- loser
		})
		r.BeginMatch()

		select {
		case <-expired:
		case <-time.After(time.Second):
			t.Fatal("turn deadline never fired")
		}

		// The turn was forfeited when the deadline fired, so a move that
		// raced the expiry is rejected rather than applied.
		_, err := r.ApplyMove(a.ID(), board.Point{Row: 7, Col: 7})
		assert.ErrorIs(t, err, ErrNotYourTurn)
	})

	t.Run("leave cancels the deadline", func(t *testing.T) {
		r, a, _ := pairedRoom(t)

		expired := make(chan Participant, 1)
		r.SetTurnDeadline(30*time.Millisecond, func(loser Participant) {
			expired <- loser
		})
		r.BeginMatch()
		r.Leave(a.ID())

		select {
		case <-expired:
			t.Fatal("deadline fired after the room emptied")
		case <-time.After(100 * time.Millisecond):
		}
	})
}

func TestManager(t *testing.T) {
	m := NewManager(logger.Nop())

	t.Run("room ids start at MinRoomID", func(t *testing.T) {
		r := m.Create(&fakePlayer{id: 1}, "")
		assert.Equal(t, uint32(MinRoomID), r.ID())

		r2 := m.Create(&fakePlayer{id: 2}, "pw")
		assert.Equal(t, uint32(MinRoomID+1), r2.ID())
	})

	t.Run("get and remove", func(t *testing.T) {
		r, ok := m.Get(MinRoomID)
		require.True(t, ok)
		assert.Equal(t, uint32(MinRoomID), r.ID())

		m.Remove(MinRoomID)
		_, ok = m.Get(MinRoomID)
		assert.False(t, ok)
		m.Remove(MinRoomID) // idempotent
	})

	t.Run("find open skips private rooms", func(t *testing.T) {
		m := NewManager(logger.Nop())
		m.Create(&fakePlayer{id: 1}, "secret")
		assert.Nil(t, m.FindOpen())

		open := m.Create(&fakePlayer{id: 2}, "")
		assert.Equal(t, open.ID(), m.FindOpen().ID())
	})

	t.Run("find open skips paired rooms", func(t *testing.T) {
		m := NewManager(logger.Nop())
		r := m.Create(&fakePlayer{id: 1}, "")
		require.NoError(t, r.Join(&fakePlayer{id: 2}, ""))
		assert.Nil(t, m.FindOpen())
	})

	t.Run("open rooms respects the limit", func(t *testing.T) {
		m := NewManager(logger.Nop())
		for i := 0; i < 12; i++ {
			m.Create(&fakePlayer{id: uint32(i)}, "")
		}
		assert.Len(t, m.OpenRooms(8), 8)
	})
}
