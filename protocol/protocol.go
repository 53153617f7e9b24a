// Package protocol defines the wire protocol spoken between clients and
// the game server: newline-terminated, comma-separated UTF-8 text frames
// of the form COMMAND,arg1,arg2,... Commands are decoded once at the
// transport boundary into a closed Command type so the session state
// machine can match on them exhaustively instead of re-comparing strings.
package protocol

import (
	"errors"
	"strings"
)

// Command identifies a protocol frame type.
type Command string

// Client to server commands.
const (
	CmdClientVerify      Command = "client-verify"
	CmdRegister          Command = "register"
	CmdOffline           Command = "offline"
	CmdChatServer        Command = "chat-server"
	CmdChat              Command = "chat"
	CmdViewFriendList    Command = "view-friend-list"
	CmdCheckFriend       Command = "check-friend"
	CmdMakeFriend        Command = "make-friend"
	CmdMakeFriendConfirm Command = "make-friend-confirm"
	CmdViewRoomList      Command = "view-room-list"
	CmdCreateRoom        Command = "create-room"
	CmdQuickRoom         Command = "quick-room"
	CmdGoToRoom          Command = "go-to-room"
	CmdJoinRoom          Command = "join-room"
	CmdCancelRoom        Command = "cancel-room"
	CmdCaro              Command = "caro"
	CmdWin               Command = "win"
	CmdLose              Command = "lose"
	CmdDrawRequest       Command = "draw-request"
	CmdDrawConfirm       Command = "draw-confirm"
	CmdDrawRefuse        Command = "draw-refuse"
	CmdGetRankCharts     Command = "get-rank-charts"
	CmdDuelRequest       Command = "duel-request"
	CmdAgreeDuel         Command = "agree-duel"
	CmdDisagreeDuel      Command = "disagree-duel"
	CmdVoiceMessage      Command = "voice-message"
	CmdLeftRoom          Command = "left-room"
)

// Server to client commands.
const (
	CmdServerSendID       Command = "server-send-id"
	CmdLoginSuccess       Command = "login-success"
	CmdWrongUser          Command = "wrong-user"
	CmdBannedUser         Command = "banned-user"
	CmdDuplicateUsername  Command = "duplicate-username"
	CmdReturnFriendList   Command = "return-friend-list"
	CmdCheckFriendResp    Command = "check-friend-response"
	CmdMakeFriendRequest  Command = "make-friend-request"
	CmdRoomList           Command = "room-list"
	CmdYourCreatedRoom    Command = "your-created-room"
	CmdRoomFully          Command = "room-fully"
	CmdRoomNotFound       Command = "room-not-found"
	CmdRoomWrongPassword  Command = "room-wrong-password"
	CmdDrawGame           Command = "draw-game"
	CmdNewGame            Command = "new-game"
	CmdCompetitorTimeOut  Command = "competitor-time-out"
	CmdDuelNotice         Command = "duel-notice"
	CmdReturnRankCharts   Command = "return-get-rank-charts"
)

// known is the closed set of commands in the protocol. Both directions
// share one set since the same codec decodes frames on the server and in
// the client. A frame whose command is not in this set is a protocol error.
var known = map[Command]struct{}{
	CmdClientVerify: {}, CmdRegister: {}, CmdOffline: {},
	CmdChatServer: {}, CmdChat: {},
	CmdViewFriendList: {}, CmdCheckFriend: {}, CmdMakeFriend: {}, CmdMakeFriendConfirm: {},
	CmdViewRoomList: {}, CmdCreateRoom: {}, CmdQuickRoom: {}, CmdGoToRoom: {},
	CmdJoinRoom: {}, CmdCancelRoom: {},
	CmdCaro: {}, CmdWin: {}, CmdLose: {},
	CmdDrawRequest: {}, CmdDrawConfirm: {}, CmdDrawRefuse: {},
	CmdGetRankCharts: {}, CmdDuelRequest: {}, CmdAgreeDuel: {}, CmdDisagreeDuel: {},
	CmdVoiceMessage: {}, CmdLeftRoom: {},

	CmdServerSendID: {}, CmdLoginSuccess: {}, CmdWrongUser: {}, CmdBannedUser: {},
	CmdDuplicateUsername: {}, CmdReturnFriendList: {}, CmdCheckFriendResp: {},
	CmdMakeFriendRequest: {}, CmdRoomList: {}, CmdYourCreatedRoom: {},
	CmdRoomFully: {}, CmdRoomNotFound: {}, CmdRoomWrongPassword: {},
	CmdDrawGame: {}, CmdNewGame: {}, CmdCompetitorTimeOut: {},
	CmdDuelNotice: {}, CmdReturnRankCharts: {},
}

var (
	// ErrEmptyFrame is returned when a frame contains no command.
	ErrEmptyFrame = errors.New("protocol: empty frame")
	// ErrUnknownCommand is returned when a frame's command is not part of
	// the protocol.
	ErrUnknownCommand = errors.New("protocol: unknown command")
)

// Message is a decoded protocol frame.
type Message struct {
	Cmd  Command
	Args []string
}

// Parse decodes one frame (without its trailing newline) into a Message.
// The command is validated against the closed command set; arguments are
// passed through untouched, so argument validation stays with the handler
// that knows the frame's shape.
//
// Parameters:
//   - line: One frame, newline already stripped
//
// Returns:
//   - The decoded Message
//   - ErrEmptyFrame or ErrUnknownCommand on malformed input
func Parse(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Message{}, ErrEmptyFrame
	}

	parts := strings.Split(line, ",")
	cmd := Command(parts[0])
	if _, ok := known[cmd]; !ok {
		return Message{}, ErrUnknownCommand
	}

	return Message{Cmd: cmd, Args: parts[1:]}, nil
}

// New builds a Message from a command and its arguments.
func New(cmd Command, args ...string) Message {
	return Message{Cmd: cmd, Args: args}
}

// String encodes the message as a wire frame without the trailing newline.
func (m Message) String() string {
	if len(m.Args) == 0 {
		return string(m.Cmd)
	}

	return string(m.Cmd) + "," + strings.Join(m.Args, ",")
}

// Arg returns the i-th argument, or "" when the frame is too short.
func (m Message) Arg(i int) string {
	if i < 0 || i >= len(m.Args) {
		return ""
	}

	return m.Args[i]
}
