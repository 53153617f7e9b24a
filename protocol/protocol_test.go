package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("command with arguments", func(t *testing.T) {
		msg, err := Parse("client-verify,alice,secret")
		require.NoError(t, err)
		assert.Equal(t, CmdClientVerify, msg.Cmd)
		assert.Equal(t, []string{"alice", "secret"}, msg.Args)
	})

	t.Run("bare command", func(t *testing.T) {
		msg, err := Parse("quick-room")
		require.NoError(t, err)
		assert.Equal(t, CmdQuickRoom, msg.Cmd)
		assert.Empty(t, msg.Args)
	})

	t.Run("trailing CRLF is stripped", func(t *testing.T) {
		msg, err := Parse("lose\r\n")
		require.NoError(t, err)
		assert.Equal(t, CmdLose, msg.Cmd)
	})

	t.Run("empty argument is preserved", func(t *testing.T) {
		msg, err := Parse("go-to-room,100,")
		require.NoError(t, err)
		assert.Equal(t, []string{"100", ""}, msg.Args)
	})

	t.Run("server frames decode too", func(t *testing.T) {
		for _, line := range []string{
			"server-send-id,1",
			"login-success,1,alice,,Alice,1,10,4,2,1,1,0",
			"wrong-user,alice",
			"banned-user",
			"duplicate-username",
			"your-created-room,100",
			"room-list,100,0",
			"room-fully",
			"room-not-found",
			"room-wrong-password",
			"return-friend-list,2,Bob,1,0",
			"check-friend-response,1",
			"make-friend-request,1,Alice",
			"go-to-room,100,127.0.0.1,1,2,bob,,Bob,1,3,1,0,1,1",
			"draw-game",
			"new-game",
			"competitor-time-out",
			"duel-notice,1,Alice",
			"return-get-rank-charts",
		} {
			_, err := Parse(line)
			assert.NoError(t, err, line)
		}
	})

	t.Run("empty frame", func(t *testing.T) {
		_, err := Parse("")
		assert.ErrorIs(t, err, ErrEmptyFrame)
	})

	t.Run("unknown command", func(t *testing.T) {
		_, err := Parse("self-destruct,now")
		assert.ErrorIs(t, err, ErrUnknownCommand)
	})
}

func TestMessage_String(t *testing.T) {
	assert.Equal(t, "caro,7,7", New(CmdCaro, "7", "7").String())
	assert.Equal(t, "draw-request", New(CmdDrawRequest).String())
	assert.Equal(t, "your-created-room,100,hunter2", New(CmdYourCreatedRoom, "100", "hunter2").String())
}

func TestMessage_RoundTrip(t *testing.T) {
	original := New(CmdGoToRoom, "100", "pw")
	parsed, err := Parse(original.String())
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestMessage_Arg(t *testing.T) {
	msg := New(CmdCaro, "7", "8")
	assert.Equal(t, "7", msg.Arg(0))
	assert.Equal(t, "8", msg.Arg(1))
	assert.Equal(t, "", msg.Arg(2))
	assert.Equal(t, "", msg.Arg(-1))
}
