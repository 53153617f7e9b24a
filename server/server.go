// Package server hosts the TCP game service: an accept loop that hands each
// connection to a Session, the session registry, the room manager, and the
// protocol handlers that tie the board, store, and cache together.
package server

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/caro-server/cacher"
	"github.com/cyberinferno/caro-server/idgenerator"
	"github.com/cyberinferno/caro-server/logger"
	"github.com/cyberinferno/caro-server/protocol"
	"github.com/cyberinferno/caro-server/registry"
	"github.com/cyberinferno/caro-server/room"
	"github.com/cyberinferno/caro-server/store"
)

// rankCacheKey is the single cache key under which the leaderboard lives.
const rankCacheKey = "rank100"

// defaultRankTTL bounds how stale the leaderboard may get between win
// invalidations.
const defaultRankTTL = time.Minute

// Notifier receives informational events the service emits alongside its
// protocol traffic: logins, global chat, disconnects. The original system
// mirrored these to an admin panel; the default implementation logs them.
type Notifier interface {
	Event(msg string)
}

// LogNotifier is a Notifier that writes events to a Logger.
type LogNotifier struct {
	Log logger.Logger
}

func (n *LogNotifier) Event(msg string) {
	n.Log.Info("event", logger.Field{Key: "msg", Value: msg})
}

// Config carries the server's tunables.
type Config struct {
	// Addr is the TCP listen address, e.g. ":9999".
	Addr string

	// TurnTimeout, when positive, enables a server-side per-turn deadline:
	// a side that does not move within it forfeits the match. Zero leaves
	// timeout arbitration to the clients, which report it with a lose frame.
	TurnTimeout time.Duration

	// RankCacheTTL bounds leaderboard staleness. Zero selects a default.
	RankCacheTTL time.Duration
}

// Server accepts connections and runs one Session per connection. Cross
// session state lives in the Registry (live sessions) and the room Manager
// (active rooms); everything else is per-session.
type Server struct {
	Cfg      Config
	Log      logger.Logger
	Store    store.Store
	Registry *registry.Registry
	Rooms    *room.Manager
	Notifier Notifier

	ranks    cacher.Cacher[[]*store.User]
	ids      *idgenerator.IdGenerator
	listener net.Listener
	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// New builds a Server around its collaborators. Pass a nil notifier to log
// events through log.
//
// Parameters:
//   - cfg: Listen address and tunables
//   - st: The persistence backend
//   - log: Destination for structured logs
//   - notifier: Receiver for informational events, or nil
//
// Returns:
//   - A Server ready for Start
func New(cfg Config, st store.Store, log logger.Logger, notifier Notifier) *Server {
	if cfg.RankCacheTTL <= 0 {
		cfg.RankCacheTTL = defaultRankTTL
	}

	if notifier == nil {
		notifier = &LogNotifier{Log: log}
	}

	return &Server{
		Cfg:      cfg,
		Log:      log,
		Store:    st,
		Registry: registry.New(log),
		Rooms:    room.NewManager(log),
		Notifier: notifier,
		ranks:    cacher.NewMemoryCacher[[]*store.User](cfg.RankCacheTTL, 5*time.Minute),
		ids:      idgenerator.NewIdGenerator(0),
	}
}

// Start binds the listen address and begins the accept loop in a goroutine.
//
// Returns:
//   - An error if the server is already running or the listen fails
func (s *Server) Start() error {
	if s.running.Load() {
		s.Log.Error("server already running")
		return fmt.Errorf("server already running on %s", s.Cfg.Addr)
	}

	ln, err := net.Listen("tcp", s.Cfg.Addr)
	if err != nil {
		s.Log.Error("server failed to start", logger.Field{Key: "error", Value: err})
		return fmt.Errorf("server failed to start: %w", err)
	}

	s.listener = ln
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running.Store(true)

	s.Log.Info("server started", logger.Field{Key: "addr", Value: ln.Addr().String()})
	go s.acceptLoop()

	return nil
}

// Addr returns the bound listen address, useful when Cfg.Addr requested an
// ephemeral port. Valid only after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.Cfg.Addr
	}

	return s.listener.Addr().String()
}

// Stop closes the listener and every live session. Safe to call when the
// server is not running.
func (s *Server) Stop() {
	if !s.running.Load() {
		s.Log.Info("server not running")
		return
	}

	s.running.Store(false)
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}

	for _, sess := range s.Registry.Snapshot() {
		if closer, ok := sess.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}

	s.Log.Info("server stopped")
}

// acceptLoop accepts connections until the server stops. Each connection
// gets an id, a Session, a registry entry, and a handling goroutine; a
// failed accept never takes the loop down while the server runs.
func (s *Server) acceptLoop() {
	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}

			s.Log.Error("accept error", logger.Field{Key: "error", Value: err})
			continue
		}

		sess := newSession(s.ids.Id(), conn, s)
		s.Registry.Add(sess)
		go sess.Handle()
	}
}

// invalidateRanks drops the cached leaderboard after a win changes it.
func (s *Server) invalidateRanks(ctx context.Context) {
	if err := s.ranks.Delete(ctx, rankCacheKey); err != nil {
		s.Log.Warn("rank cache invalidation failed", logger.Field{Key: "error", Value: err})
	}
}

// rank100 returns the leaderboard, served from cache when fresh. Concurrent
// cold hits collapse into one store query.
func (s *Server) rank100(ctx context.Context) ([]*store.User, error) {
	return s.ranks.GetOrFetch(ctx, rankCacheKey, s.Cfg.RankCacheTTL, func(ctx context.Context) ([]*store.User, error) {
		return s.Store.Rank100(ctx)
	})
}

// configureRoom applies the server-side turn deadline to a freshly created
// room when one is configured.
func (s *Server) configureRoom(r *room.Room) {
	if s.Cfg.TurnTimeout <= 0 {
		return
	}

	r.SetTurnDeadline(s.Cfg.TurnTimeout, func(loser room.Participant) {
		s.handleTurnExpiry(r, loser)
	})
}

// handleTurnExpiry forfeits the match for the side that let its turn
// deadline lapse. The accounting matches a client-reported lose frame.
func (s *Server) handleTurnExpiry(r *room.Room, loser room.Participant) {
	winner := r.Competitor(loser.ID())
	if winner == nil {
		return
	}

	ctx := s.ctx
	s.creditWin(ctx, winner.User(), loser.User())

	if err := winner.Send(protocol.New(protocol.CmdCompetitorTimeOut)); err != nil {
		s.Log.Warn("turn expiry notify failed", logger.Field{Key: "error", Value: err})
	}
	if err := loser.Send(protocol.New(protocol.CmdNewGame)); err != nil {
		s.Log.Warn("turn expiry notify failed", logger.Field{Key: "error", Value: err})
	}

	r.AdvanceMatch()
}

/// creditWin records a finished match won by winner: the win counter, a game
// for both sides, and a leaderboard invalidation.
func (s *Server) creditWin(ctx context.Context, winner, loser *store.User) {
	if winner != nil {
		if err := s.Store.IncrementWin(ctx, winner.ID); err != nil {
			s.Log.Error("increment win failed", logger.Field{Key: "error", Value: err})
		}
		if err := s.Store.IncrementGame(ctx, winner.ID); err != nil {
			s.Log.Error("increment game failed", logger.Field{Key: "error", Value: err})
		}
	}

	if loser != nil {
		if err := s.Store.IncrementGame(ctx, loser.ID); err != nil {
			s.Log.Error("increment game failed", logger.Field{Key: "error", Value: err})
		}
	}

	s.invalidateRanks(ctx)
}

// creditDraw records a finished drawn match for both sides.
func (s *Server) creditDraw(ctx context.Context, a, b *store.User) {
	for _, u := range []*store.User{a, b} {
		if u == nil {
			continue
		}

		if err := s.Store.IncrementDraw(ctx, u.ID); err != nil {
			s.Log.Error("increment draw failed", logger.Field{Key: "error", Value: err})
		}
		if err := s.Store.IncrementGame(ctx, u.ID); err != nil {
			s.Log.Error("increment game failed", logger.Field{Key: "error", Value: err})
		}
	}
}
