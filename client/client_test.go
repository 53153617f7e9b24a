package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/caro-server/logger"
	"github.com/cyberinferno/caro-server/protocol"
	"github.com/cyberinferno/caro-server/server"
	"github.com/cyberinferno/caro-server/store"
)

func startServer(t *testing.T) *server.Server {
	t.Helper()

	st := store.NewMemoryStore()
	for _, name := range []string{"alice", "bob"} {
		_, err := st.Register(context.Background(), name, "pw", name+"-nick", "1")
		require.NoError(t, err)
	}

	srv := server.New(server.Config{Addr: "127.0.0.1:0"}, st, logger.Nop(), nil)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	return srv
}

// await receives one frame from ch or fails the test.
func await(t *testing.T, ch <-chan protocol.Message, what string) protocol.Message {
	t.Helper()

	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return protocol.Message{}
	}
}

// connect returns a connected client with a buffered channel per watched
// command.
func connect(t *testing.T, srv *server.Server, watch ...protocol.Command) (*Client, map[protocol.Command]chan protocol.Message) {
	t.Helper()

	c := New(DefaultConfig(srv.Addr()))
	chans := make(map[protocol.Command]chan protocol.Message, len(watch))
	for _, cmd := range watch {
		ch := make(chan protocol.Message, 16)
		chans[cmd] = ch
		c.On(cmd, func(msg protocol.Message) { ch <- msg })
	}

	require.NoError(t, c.Connect())
	t.Cleanup(func() { _ = c.Close() })

	return c, chans
}

func TestClient_ConnectAndLogin(t *testing.T) {
	srv := startServer(t)

	c, chans := connect(t, srv, protocol.CmdLoginSuccess)
	assert.True(t, c.IsConnected())

	require.NoError(t, c.Login("alice", "pw"))
	msg := await(t, chans[protocol.CmdLoginSuccess], "login-success")
	assert.Contains(t, msg.String(), "alice")

	t.Run("session id captured from the greeting", func(t *testing.T) {
		assert.NotZero(t, c.SessionID())
	})

	t.Run("double connect rejected", func(t *testing.T) {
		assert.Error(t, c.Connect())
	})
}

func TestClient_WrongCredentials(t *testing.T) {
	srv := startServer(t)

	c, chans := connect(t, srv, protocol.CmdWrongUser)
	require.NoError(t, c.Login("alice", "bad"))
	await(t, chans[protocol.CmdWrongUser], "wrong-user")
}

func TestClient_FullMatchFlow(t *testing.T) {
	srv := startServer(t)

	a, aChans := connect(t, srv,
		protocol.CmdLoginSuccess, protocol.CmdYourCreatedRoom,
		protocol.CmdGoToRoom, protocol.CmdDrawGame, protocol.CmdNewGame)
	b, bChans := connect(t, srv,
		protocol.CmdLoginSuccess, protocol.CmdGoToRoom,
		protocol.CmdCaro, protocol.CmdChat, protocol.CmdDrawRequest,
		protocol.CmdDrawGame, protocol.CmdNewGame)

	require.NoError(t, a.Login("alice", "pw"))
	await(t, aChans[protocol.CmdLoginSuccess], "alice login")
	require.NoError(t, b.Login("bob", "pw"))
	await(t, bChans[protocol.CmdLoginSuccess], "bob login")

	require.NoError(t, a.CreateRoom(""))
	created := await(t, aChans[protocol.CmdYourCreatedRoom], "room creation")
	require.Equal(t, "100", created.Arg(0))

	require.NoError(t, b.GoToRoom(100, ""))
	pairingA := await(t, aChans[protocol.CmdGoToRoom], "alice pairing")
	pairingB := await(t, bChans[protocol.CmdGoToRoom], "bob pairing")
	assert.Equal(t, "1", pairingA.Arg(2), "creator opens")
	assert.Equal(t, "0", pairingB.Arg(2))

	require.NoError(t, a.Move(7, 7))
	move := await(t, bChans[protocol.CmdCaro], "relayed move")
	assert.Equal(t, "caro,7,7", move.String())

	require.NoError(t, a.Chat("your move"))
	chat := await(t, bChans[protocol.CmdChat], "relayed chat")
	assert.Equal(t, "your move", chat.Arg(0))

	require.NoError(t, a.RequestDraw())
	await(t, bChans[protocol.CmdDrawRequest], "draw offer")

	require.NoError(t, b.ConfirmDraw())
	await(t, aChans[protocol.CmdDrawGame], "draw settled for alice")
	await(t, aChans[protocol.CmdNewGame], "next match for alice")
	await(t, bChans[protocol.CmdDrawGame], "draw settled for bob")
	await(t, bChans[protocol.CmdNewGame], "next match for bob")
}

func TestClient_StateTransitions(t *testing.T) {
	srv := startServer(t)

	c := New(DefaultConfig(srv.Addr()))

	var states []State
	c.OnState(func(s State, err error) { states = append(states, s) })

	require.NoError(t, c.Connect())
	require.NoError(t, c.Close())

	assert.Equal(t, []State{Connecting, Connected, Closed}, states)

	t.Run("closed client rejects reuse", func(t *testing.T) {
		assert.Error(t, c.Connect())
		assert.Error(t, c.Send(protocol.New(protocol.CmdQuickRoom)))
	})
}

func TestClient_SendBeforeConnect(t *testing.T) {
	c := New(DefaultConfig("127.0.0.1:1"))
	assert.Error(t, c.Move(0, 0))
}
