package server

import (
	"errors"
	"strconv"

	"github.com/cyberinferno/caro-server/board"
	"github.com/cyberinferno/caro-server/logger"
	"github.com/cyberinferno/caro-server/protocol"
	"github.com/cyberinferno/caro-server/registry"
	"github.com/cyberinferno/caro-server/room"
	"github.com/cyberinferno/caro-server/store"
)

func formatUint(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

func formatInt64(v int64) string {
	return strconv.FormatInt(v, 10)
}

func boolArg(b bool) string {
	if b {
		return "1"
	}

	return "0"
}

// handleLogin verifies credentials and installs the user on the session.
// A user already logged in elsewhere has the old session force closed
// before the new login proceeds.
func (s *Session) handleLogin(msg protocol.Message) {
	if len(msg.Args) < 2 {
		return
	}

	ctx := s.srv.ctx
	username, password := msg.Arg(0), msg.Arg(1)

	u, err := s.srv.Store.VerifyCredentials(ctx, username, password)
	if errors.Is(err, store.ErrWrongCredentials) {
		_ = s.Send(protocol.New(protocol.CmdWrongUser, username))
		return
	}
	if err != nil {
		s.log.Error("verify credentials failed", logger.Field{Key: "error", Value: err})
		_ = s.Send(protocol.New(protocol.CmdWrongUser, username))
		return
	}

	banned, err := s.srv.Store.IsBanned(ctx, u.ID)
	if err != nil {
		s.log.Error("ban check failed", logger.Field{Key: "error", Value: err})
		return
	}
	if banned {
		_ = s.Send(protocol.New(protocol.CmdBannedUser, username))
		return
	}

	if old := s.srv.Registry.FindByUserID(u.ID); old != nil && old.ID() != s.id {
		s.log.Warn("duplicate login, closing old session",
			logger.Field{Key: "user", Value: u.ID},
			logger.Field{Key: "old_session", Value: old.ID()})
		s.forceClose(old)
	}

	s.setUser(u)
	s.finishLogin(u)
}

// forceClose detaches a superseded session synchronously so the store is
// settled (offline, not playing, room abandoned) before the replacement
// login marks the user online. The offline announcement is suppressed
// since the user is switching connections, not leaving.
func (s *Session) forceClose(old registry.Session) {
	if sess, ok := old.(*Session); ok {
		sess.detach(false)
		return
	}

	if closer, ok := old.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.srv.Registry.Remove(old.ID())
}

func (s *Session) finishLogin(u *store.User) {
	ctx := s.srv.ctx

	if err := s.srv.Store.MarkOnline(ctx, u.ID); err != nil {
		s.log.Error("mark online failed", logger.Field{Key: "error", Value: err})
	}

	_ = s.Send(protocol.New(protocol.CmdLoginSuccess, u.WireString()))
	s.srv.Registry.Broadcast(s.id, protocol.New(protocol.CmdChatServer, u.Nickname+" is online"))
	s.srv.Notifier.Event(u.Nickname + " is online")
}

// handleRegister creates an account and logs it straight in, mirroring the
// login flow on success.
func (s *Session) handleRegister(msg protocol.Message) {
	if len(msg.Args) < 4 {
		return
	}

	ctx := s.srv.ctx
	username, password := msg.Arg(0), msg.Arg(1)
	nickname, avatar := msg.Arg(2), msg.Arg(3)

	u, err := s.srv.Store.Register(ctx, username, password, nickname, avatar)
	if errors.Is(err, store.ErrDuplicateUsername) {
		_ = s.Send(protocol.New(protocol.CmdDuplicateUsername))
		return
	}
	if err != nil {
		s.log.Error("register failed", logger.Field{Key: "error", Value: err})
		return
	}

	s.setUser(u)
	s.finishLogin(u)
}

// handleOffline logs the user out without dropping the connection.
func (s *Session) handleOffline() {
	u := s.User()
	if u == nil {
		return
	}

	if err := s.srv.Store.MarkOffline(s.srv.ctx, u.ID); err != nil {
		s.log.Error("mark offline failed", logger.Field{Key: "error", Value: err})
	}

	s.srv.Registry.Broadcast(s.id, protocol.New(protocol.CmdChatServer, u.Nickname+" went offline"))
	s.srv.Notifier.Event(u.Nickname + " went offline")
	s.setUser(nil)
}

// handleViewFriendList answers with id, nickname, online and playing flags
// for each friend.
func (s *Session) handleViewFriendList() {
	u := s.User()
	if u == nil {
		return
	}

	friends, err := s.srv.Store.ListFriends(s.srv.ctx, u.ID)
	if err != nil {
		s.log.Error("list friends failed", logger.Field{Key: "error", Value: err})
		return
	}

	args := make([]string, 0, len(friends)*4)
	for _, f := range friends {
		args = append(args, formatInt64(f.ID), f.Nickname, boolArg(f.Online), boolArg(f.Playing))
	}

	_ = s.Send(protocol.New(protocol.CmdReturnFriendList, args...))
}

func (s *Session) handleCheckFriend(msg protocol.Message) {
	u := s.User()
	if u == nil || len(msg.Args) < 1 {
		return
	}

	friendID, err := strconv.ParseInt(msg.Arg(0), 10, 64)
	if err != nil {
		return
	}

	isFriend, err := s.srv.Store.IsFriend(s.srv.ctx, u.ID, friendID)
	if err != nil {
		s.log.Error("friend check failed", logger.Field{Key: "error", Value: err})
		return
	}

	_ = s.Send(protocol.New(protocol.CmdCheckFriendResp, boolArg(isFriend)))
}

// handleMakeFriend relays a friend request to the target user's live
// session. An offline target drops the request.
func (s *Session) handleMakeFriend(msg protocol.Message) {
	u := s.User()
	if u == nil || len(msg.Args) < 1 {
		return
	}

	friendID, err := strconv.ParseInt(msg.Arg(0), 10, 64)
	if err != nil {
		return
	}

	err = s.srv.Registry.SendTo(friendID,
		protocol.New(protocol.CmdMakeFriendRequest, formatInt64(u.ID), u.Nickname))
	if err != nil && !errors.Is(err, registry.ErrUserNotConnected) {
		s.log.Warn("friend request relay failed", logger.Field{Key: "error", Value: err})
	}
}

func (s *Session) handleMakeFriendConfirm(msg protocol.Message) {
	u := s.User()
	if u == nil || len(msg.Args) < 1 {
		return
	}

	friendID, err := strconv.ParseInt(msg.Arg(0), 10, 64)
	if err != nil {
		return
	}

	if err := s.srv.Store.MakeFriend(s.srv.ctx, u.ID, friendID); err != nil {
		s.log.Error("make friend failed", logger.Field{Key: "error", Value: err})
	}
}

// handleViewRoomList lists open rooms as id plus a has-password flag. Room
// passwords themselves never go on the wire.
func (s *Session) handleViewRoomList() {
	rooms := s.srv.Rooms.OpenRooms(8)

	args := make([]string, 0, len(rooms)*2)
	for _, r := range rooms {
		args = append(args, formatUint(r.ID()), boolArg(r.Password() != ""))
	}

	_ = s.Send(protocol.New(protocol.CmdRoomList, args...))
}

// handleCreateRoom opens a waiting room with the session as side A. The
// optional password is echoed back to its owner only.
func (s *Session) handleCreateRoom(msg protocol.Message) {
	u := s.User()
	if u == nil || s.Room() != nil {
		return
	}

	password := msg.Arg(0)
	r := s.srv.Rooms.Create(s, password)
	s.srv.configureRoom(r)
	s.SetRoom(r)

	if password != "" {
		_ = s.Send(protocol.New(protocol.CmdYourCreatedRoom, formatUint(r.ID()), password))
	} else {
		_ = s.Send(protocol.New(protocol.CmdYourCreatedRoom, formatUint(r.ID())))
	}

	if err := s.srv.Store.MarkPlaying(s.srv.ctx, u.ID); err != nil {
		s.log.Error("mark playing failed", logger.Field{Key: "error", Value: err})
	}
}

// handleQuickRoom pairs into any open public room, or hosts a new one when
// none is waiting. A joiner losing the race for the last slot falls through
// to the next open room.
func (s *Session) handleQuickRoom() {
	u := s.User()
	if u == nil || s.Room() != nil {
		return
	}

	for {
		r := s.srv.Rooms.FindOpen()
		if r == nil {
			break
		}

		if err := r.Join(s, ""); err != nil {
			continue
		}

		s.completePairing(r)
		return
	}

	r := s.srv.Rooms.Create(s, "")
	s.srv.configureRoom(r)
	s.SetRoom(r)

	_ = s.Send(protocol.New(protocol.CmdYourCreatedRoom, formatUint(r.ID())))

	if err := s.srv.Store.MarkPlaying(s.srv.ctx, u.ID); err != nil {
		s.log.Error("mark playing failed", logger.Field{Key: "error", Value: err})
	}
}

// handleGoToRoom joins a specific room by id, with the room's password
// check applied.
func (s *Session) handleGoToRoom(msg protocol.Message) {
	u := s.User()
	if u == nil || s.Room() != nil || len(msg.Args) < 1 {
		return
	}

	roomID, err := strconv.ParseUint(msg.Arg(0), 10, 32)
	if err != nil {
		_ = s.Send(protocol.New(protocol.CmdRoomNotFound))
		return
	}

	r, ok := s.srv.Rooms.Get(uint32(roomID))
	if !ok {
		_ = s.Send(protocol.New(protocol.CmdRoomNotFound))
		return
	}

	switch err := r.Join(s, msg.Arg(1)); {
	case errors.Is(err, room.ErrRoomFull):
		_ = s.Send(protocol.New(protocol.CmdRoomFully))
	case errors.Is(err, room.ErrWrongPassword):
		_ = s.Send(protocol.New(protocol.CmdRoomWrongPassword))
	case err == nil:
		s.completePairing(r)
	}
}

// handleJoinRoom joins a room by id without a password check, used after
// the room owner already admitted the joiner out of band.
func (s *Session) handleJoinRoom(msg protocol.Message) {
	u := s.User()
	if u == nil || s.Room() != nil || len(msg.Args) < 1 {
		return
	}

	roomID, err := strconv.ParseUint(msg.Arg(0), 10, 32)
	if err != nil {
		_ = s.Send(protocol.New(protocol.CmdRoomNotFound))
		return
	}

	r, ok := s.srv.Rooms.Get(uint32(roomID))
	if !ok {
		_ = s.Send(protocol.New(protocol.CmdRoomNotFound))
		return
	}

	if err := r.ForceJoin(s); err != nil {
		_ = s.Send(protocol.New(protocol.CmdRoomFully))
		return
	}

	s.completePairing(r)
}

// completePairing runs the side effects of a successful join: room
// reference, playing flags, the pairing game increment for both sides, the
// opening turn deadline, and the go-to-room exchange telling each side the
// peer's address, whether it moves first, and the peer's account fields.
func (s *Session) completePairing(r *room.Room) {
	ctx := s.srv.ctx
	s.SetRoom(r)

	sideA, sideB := r.Sides()
	if sideA == nil || sideB == nil {
		return
	}

	for _, p := range []room.Participant{sideA, sideB} {
		if u := p.User(); u != nil {
			if err := s.srv.Store.MarkPlaying(ctx, u.ID); err != nil {
				s.log.Error("mark playing failed", logger.Field{Key: "error", Value: err})
			}
			if err := s.srv.Store.IncrementGame(ctx, u.ID); err != nil {
				s.log.Error("increment game failed", logger.Field{Key: "error", Value: err})
			}
		}
	}

	r.BeginMatch()

	s.sendPairingFrame(r, sideA, sideB)
	s.sendPairingFrame(r, sideB, sideA)
}

// sendPairingFrame tells one side about its peer. Exactly one side sees
// isFirstMove set.
func (s *Session) sendPairingFrame(r *room.Room, to, peer room.Participant) {
	peerFields := ""
	if u := peer.User(); u != nil {
		peerFields = u.WireString()
	}

	err := to.Send(protocol.New(protocol.CmdGoToRoom,
		formatUint(r.ID()),
		peer.Addr(),
		boolArg(r.IsFirstMover(to.ID())),
		peerFields))
	if err != nil {
		s.log.Warn("pairing frame failed", logger.Field{Key: "error", Value: err})
	}
}

// handleCaro applies a move to the room's board. The server, not the
// client, decides win and draw: a winning fifth mark credits the mover and
// starts the next match, a full board records a draw for both. Out-of-turn
// and occupied-cell moves are dropped and logged.
func (s *Session) handleCaro(msg protocol.Message) {
	r := s.Room()
	if r == nil || len(msg.Args) < 2 {
		return
	}

	row, err1 := strconv.Atoi(msg.Arg(0))
	col, err2 := strconv.Atoi(msg.Arg(1))
	if err1 != nil || err2 != nil {
		s.log.Warn("dropping malformed move", logger.Field{Key: "frame", Value: msg.String()})
		return
	}

	res, err := r.ApplyMove(s.id, board.Point{Row: row, Col: col})
	if err != nil {
		s.log.Warn("dropping rejected move",
			logger.Field{Key: "error", Value: err},
			logger.Field{Key: "row", Value: row},
			logger.Field{Key: "col", Value: col})
		return
	}

	if competitor := r.Competitor(s.id); competitor != nil {
		if err := competitor.Send(msg); err != nil {
			s.log.Warn("move relay failed", logger.Field{Key: "error", Value: err})
		}
	}

	switch {
	case res.Win:
		s.srv.creditWin(s.srv.ctx, s.User(), competitorUser(r, s.id))
		r.Broadcast(protocol.New(protocol.CmdNewGame))
		r.AdvanceMatch()
	case res.Draw:
		a, b := r.Users()
		s.srv.creditDraw(s.srv.ctx, a, b)
		r.Broadcast(protocol.New(protocol.CmdDrawGame))
		r.Broadcast(protocol.New(protocol.CmdNewGame))
		r.AdvanceMatch()
	}
}

func competitorUser(r *room.Room, id uint32) *store.User {
	if c := r.Competitor(id); c != nil {
		return c.User()
	}

	return nil
}

// handleWin ignores client win claims. Wins are detected server side when
// the move arrives; the claim frame remains in the protocol for client
// compatibility only.
func (s *Session) handleWin() {
	s.log.Debug("ignoring client win claim")
}

// handleLose processes a client-reported timeout: the competitor is
// credited with the win and told the opponent timed out, the reporter gets
// the next-match signal.
func (s *Session) handleLose() {
	r := s.Room()
	if r == nil {
		return
	}

	competitor := r.Competitor(s.id)
	if competitor == nil {
		return
	}

	s.srv.creditWin(s.srv.ctx, competitor.User(), s.User())

	if err := competitor.Send(protocol.New(protocol.CmdCompetitorTimeOut)); err != nil {
		s.log.Warn("timeout notify failed", logger.Field{Key: "error", Value: err})
	}
	_ = s.Send(protocol.New(protocol.CmdNewGame))

	r.AdvanceMatch()
}

// handleDrawRequest forwards the offer to the competitor. With no
// competitor the request is silently ignored.
func (s *Session) handleDrawRequest(msg protocol.Message) {
	r := s.Room()
	if r == nil {
		return
	}

	if competitor := r.Competitor(s.id); competitor != nil {
		if err := competitor.Send(msg); err != nil {
			s.log.Warn("draw request relay failed", logger.Field{Key: "error", Value: err})
		}
	}
}

// handleDrawConfirm settles the match as a draw for both sides and starts
// the next one. The confirmer's frame, not the requester's, is what ends
// the match.
func (s *Session) handleDrawConfirm() {
	r := s.Room()
	if r == nil {
		return
	}

	if r.Competitor(s.id) == nil {
		return
	}

	a, b := r.Users()
	s.srv.creditDraw(s.srv.ctx, a, b)

	r.Broadcast(protocol.New(protocol.CmdDrawGame))
	r.Broadcast(protocol.New(protocol.CmdNewGame))
	r.AdvanceMatch()
}

func (s *Session) handleDrawRefuse() {
	r := s.Room()
	if r == nil {
		return
	}

	if competitor := r.Competitor(s.id); competitor != nil {
		if err := competitor.Send(protocol.New(protocol.CmdDrawRefuse)); err != nil {
			s.log.Warn("draw refuse relay failed", logger.Field{Key: "error", Value: err})
		}
	}
}

// handleChatServer broadcasts a lobby chat line to every other session.
func (s *Session) handleChatServer(msg protocol.Message) {
	u := s.User()
	if u == nil || len(msg.Args) < 1 {
		return
	}

	line := u.Nickname + " : " + msg.Arg(0)
	s.srv.Registry.Broadcast(s.id, protocol.New(protocol.CmdChatServer, line))
	s.srv.Notifier.Event(line)
}

// handleChat relays an in-room chat frame to the competitor verbatim.
func (s *Session) handleChat(msg protocol.Message) {
	r := s.Room()
	if r == nil {
		return
	}

	if competitor := r.Competitor(s.id); competitor != nil {
		if err := competitor.Send(msg); err != nil {
			s.log.Warn("chat relay failed", logger.Field{Key: "error", Value: err})
		}
	}
}

// handleGetRankCharts answers with the top 100 players by wins. The
// leaderboard is cached; concurrent cold requests collapse into one store
// query.
func (s *Session) handleGetRankCharts() {
	users, err := s.srv.rank100(s.srv.ctx)
	if err != nil {
		s.log.Error("rank chart fetch failed", logger.Field{Key: "error", Value: err})
		return
	}

	args := make([]string, 0, len(users))
	for _, u := range users {
		args = append(args, u.WireString())
	}

	_ = s.Send(protocol.New(protocol.CmdReturnRankCharts, args...))
}

// handleDuelRequest relays a challenge to the target user's session.
func (s *Session) handleDuelRequest(msg protocol.Message) {
	u := s.User()
	if u == nil || len(msg.Args) < 1 {
		return
	}

	targetID, err := strconv.ParseInt(msg.Arg(0), 10, 64)
	if err != nil {
		return
	}

	err = s.srv.Registry.SendTo(targetID,
		protocol.New(protocol.CmdDuelNotice, formatInt64(u.ID), u.Nickname))
	if err != nil && !errors.Is(err, registry.ErrUserNotConnected) {
		s.log.Warn("duel notice relay failed", logger.Field{Key: "error", Value: err})
	}
}

// handleAgreeDuel pairs the accepter with the challenger in a fresh room.
// The accepter hosts, so it moves first.
func (s *Session) handleAgreeDuel(msg protocol.Message) {
	u := s.User()
	if u == nil || s.Room() != nil || len(msg.Args) < 1 {
		return
	}

	challengerID, err := strconv.ParseInt(msg.Arg(0), 10, 64)
	if err != nil {
		return
	}

	challenger, ok := s.srv.Registry.FindByUserID(challengerID).(*Session)
	if !ok || challenger.Room() != nil {
		return
	}

	r := s.srv.Rooms.Create(s, "")
	s.srv.configureRoom(r)

	if err := r.ForceJoin(challenger); err != nil {
		s.srv.Rooms.Remove(r.ID())
		return
	}

	challenger.SetRoom(r)
	s.completePairing(r)
}

func (s *Session) handleDisagreeDuel(msg protocol.Message) {
	if len(msg.Args) < 1 {
		return
	}

	targetID, err := strconv.ParseInt(msg.Arg(0), 10, 64)
	if err != nil {
		return
	}

	err = s.srv.Registry.SendTo(targetID, protocol.New(protocol.CmdDisagreeDuel))
	if err != nil && !errors.Is(err, registry.ErrUserNotConnected) {
		s.log.Warn("duel refusal relay failed", logger.Field{Key: "error", Value: err})
	}
}

// handleVoiceMessage relays an audio frame to the competitor verbatim.
func (s *Session) handleVoiceMessage(msg protocol.Message) {
	r := s.Room()
	if r == nil {
		return
	}

	if competitor := r.Competitor(s.id); competitor != nil {
		if err := competitor.Send(msg); err != nil {
			s.log.Warn("voice relay failed", logger.Field{Key: "error", Value: err})
		}
	}
}

// handleLeftRoom is the explicit leave; disconnects funnel into the same
// leaveRoom path from cleanup.
func (s *Session) handleLeftRoom() {
	s.leaveRoom()
}

// leaveRoom detaches the session from its room. An abandoned pairing
// reverts the game increment made when the sides were matched, so an
// unfinished match nets zero on both players' game counts. The remaining
// side, if any, is told the opponent left and its room reference cleared.
func (s *Session) leaveRoom() {
	r := s.Room()
	if r == nil {
		return
	}

	ctx := s.srv.ctx
	s.SetRoom(nil)

	selfUser := s.User()
	remaining := r.Leave(s.id)
	s.srv.Rooms.Remove(r.ID())

	if selfUser != nil {
		if err := s.srv.Store.MarkNotPlaying(ctx, selfUser.ID); err != nil {
			s.log.Error("mark not playing failed", logger.Field{Key: "error", Value: err})
		}
	}

	if remaining == nil {
		return
	}

	for _, u := range []*store.User{selfUser, remaining.User()} {
		if u == nil {
			continue
		}

		if err := s.srv.Store.DecrementGame(ctx, u.ID); err != nil {
			s.log.Error("decrement game failed", logger.Field{Key: "error", Value: err})
		}
	}

	if u := remaining.User(); u != nil {
		if err := s.srv.Store.MarkNotPlaying(ctx, u.ID); err != nil {
			s.log.Error("mark not playing failed", logger.Field{Key: "error", Value: err})
		}
	}

	if err := remaining.Send(protocol.New(protocol.CmdLeftRoom)); err != nil {
		s.log.Warn("leave notify failed", logger.Field{Key: "error", Value: err})
	}
	remaining.SetRoom(nil)
}
