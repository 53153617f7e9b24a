package server

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cyberinferno/caro-server/logger"
	"github.com/cyberinferno/caro-server/protocol"
	"github.com/cyberinferno/caro-server/room"
	"github.com/cyberinferno/caro-server/store"
)

// Session owns one client connection: a single read loop decodes frames in
// arrival order and dispatches them, writes go through a mutex so frames
// never interleave. The authenticated user and the current room are the
// only mutable state; both are guarded by mu and cleared through one
// cleanup path shared by explicit leave and disconnect.
type Session struct {
	id   uint32
	conn net.Conn
	srv  *Server
	log  logger.Logger
	addr string

	writeMu sync.Mutex

	mu     sync.Mutex
	user   *store.User
	room   *room.Room
	closed atomic.Bool

	teardown sync.Once
}

func newSession(id uint32, conn net.Conn, srv *Server) *Session {
	addr := "unknown"
	if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		addr = tcpAddr.IP.String()
	}

	return &Session{
		id:   id,
		conn: conn,
		srv:  srv,
		log:  srv.Log.With(logger.Field{Key: "session", Value: id}),
		addr: addr,
	}
}

// ID returns the connection id assigned at accept time.
func (s *Session) ID() uint32 { return s.id }

// Addr returns the client's IP, handed to the competitor at pairing time as
// the rendezvous address.
func (s *Session) Addr() string { return s.addr }

// UserID returns the authenticated user id, or false before login.
func (s *Session) UserID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return 0, false
	}

	return s.user.ID, true
}

// User returns the authenticated user, or nil before login.
func (s *Session) User() *store.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) setUser(u *store.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// Room returns the session's current room, or nil while unmatched.
func (s *Session) Room() *room.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// SetRoom installs or clears the session's room reference.
func (s *Session) SetRoom(r *room.Room) {
	s.mu.Lock()
	s.room = r
	s.mu.Unlock()
}

// Send writes one frame to the socket. Safe for concurrent use; no other
// lock is ever held around the write.
//
// Parameters:
//   - msg: The frame to send
//
// Returns:
//   - The write error, if any
func (s *Session) Send(msg protocol.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.Write([]byte(msg.String() + "\n"))
	return err
}

// Handle runs the session's read loop until the socket closes or an
// explicit disconnect, then tears the session down. Started in a goroutine
// by the accept loop.
func (s *Session) Handle() {
	defer s.cleanup()

	if err := s.Send(protocol.New(protocol.CmdServerSendID, formatUint(s.id))); err != nil {
		s.log.Warn("send session id failed", logger.Field{Key: "error", Value: err})
		return
	}

	reader := bufio.NewReader(s.conn)
	for !s.closed.Load() {
		line, err := reader.ReadString('\n')
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read loop ended", logger.Field{Key: "error", Value: err})
			}
			return
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		msg, err := protocol.Parse(line)
		if err != nil {
			s.log.Warn("dropping malformed frame",
				logger.Field{Key: "error", Value: err},
				logger.Field{Key: "frame", Value: strings.TrimSpace(line)})
			continue
		}

		s.dispatch(msg)
	}
}

// Close shuts the session down: further reads stop and the socket closes.
// Safe to call multiple times and from any goroutine; the read loop's
// deferred cleanup unwinds registry and room state exactly once.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	return s.conn.Close()
}

// dispatch routes one decoded frame to its handler. A handler panic is
// contained to this session.
func (s *Session) dispatch(msg protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("handler panic",
				logger.Field{Key: "cmd", Value: string(msg.Cmd)},
				logger.Field{Key: "panic", Value: r})
		}
	}()

	switch msg.Cmd {
	case protocol.CmdClientVerify:
		s.handleLogin(msg)
	case protocol.CmdRegister:
		s.handleRegister(msg)
	case protocol.CmdOffline:
		s.handleOffline()
	case protocol.CmdViewFriendList:
		s.handleViewFriendList()
	case protocol.CmdCheckFriend:
		s.handleCheckFriend(msg)
	case protocol.CmdMakeFriend:
		s.handleMakeFriend(msg)
	case protocol.CmdMakeFriendConfirm:
		s.handleMakeFriendConfirm(msg)
	case protocol.CmdViewRoomList:
		s.handleViewRoomList()
	case protocol.CmdCreateRoom:
		s.handleCreateRoom(msg)
	case protocol.CmdQuickRoom:
		s.handleQuickRoom()
	case protocol.CmdGoToRoom:
		s.handleGoToRoom(msg)
	case protocol.CmdJoinRoom:
		s.handleJoinRoom(msg)
	case protocol.CmdCancelRoom:
		s.handleLeftRoom()
	case protocol.CmdCaro:
		s.handleCaro(msg)
	case protocol.CmdWin:
		s.handleWin()
	case protocol.CmdLose:
		s.handleLose()
	case protocol.CmdDrawRequest:
		s.handleDrawRequest(msg)
	case protocol.CmdDrawConfirm:
		s.handleDrawConfirm()
	case protocol.CmdDrawRefuse:
		s.handleDrawRefuse()
	case protocol.CmdChatServer:
		s.handleChatServer(msg)
	case protocol.CmdChat:
		s.handleChat(msg)
	case protocol.CmdGetRankCharts:
		s.handleGetRankCharts()
	case protocol.CmdDuelRequest:
		s.handleDuelRequest(msg)
	case protocol.CmdAgreeDuel:
		s.handleAgreeDuel(msg)
	case protocol.CmdDisagreeDuel:
		s.handleDisagreeDuel(msg)
	case protocol.CmdVoiceMessage:
		s.handleVoiceMessage(msg)
	case protocol.CmdLeftRoom:
		s.handleLeftRoom()
	default:
		// Server-to-client commands parse but mean nothing inbound.
		s.log.Warn("dropping misdirected frame", logger.Field{Key: "cmd", Value: string(msg.Cmd)})
	}
}

// cleanup runs when the read loop exits, whether from a socket error, an
// explicit disconnect, or a forced takeover.
func (s *Session) cleanup() {
	s.detach(true)
	s.log.Debug("session closed")
}

// detach is the single teardown path. It unwinds room membership the same
// way an explicit left-room does, marks the user offline, and removes the
// session from the registry. The body runs exactly once; a second caller
// blocks until the first finishes, so a login takeover that detaches the
// old session synchronously is fully settled before the replacement marks
// the user online again. announce is false on takeover since the user is
// not actually leaving.
func (s *Session) detach(announce bool) {
	s.closed.Store(true)

	s.teardown.Do(func() {
		s.leaveRoom()

		if u := s.User(); u != nil {
			ctx := s.srv.ctx
			if err := s.srv.Store.MarkOffline(ctx, u.ID); err != nil {
				s.log.Error("mark offline failed", logger.Field{Key: "error", Value: err})
			}
			if err := s.srv.Store.MarkNotPlaying(ctx, u.ID); err != nil {
				s.log.Error("mark not playing failed", logger.Field{Key: "error", Value: err})
			}

			if announce {
				s.srv.Registry.Broadcast(s.id, protocol.New(protocol.CmdChatServer, u.Nickname+" went offline"))
				s.srv.Notifier.Event(u.Nickname + " went offline")
			}
			s.setUser(nil)
		}

		s.srv.Registry.Remove(s.id)
		_ = s.conn.Close()
	})
}
