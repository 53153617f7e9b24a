// Package client provides an event-driven client for the game protocol:
// callers register a handler per command and drive the session through
// typed send helpers. The GUI front end and integration tests both sit on
// top of it.
package client

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cyberinferno/caro-server/protocol"
)

// State represents the connection lifecycle.
type State int

const (
	Disconnected State = iota // Not connected
	Connecting                // Dial in progress
	Connected                 // Live session
	Closed                    // Closed, not reusable
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// MessageHandler is called for a received frame. Handlers run on the read
// goroutine, so frames are delivered in arrival order; a slow handler
// stalls the stream, not other clients.
type MessageHandler func(msg protocol.Message)

// StateHandler is called on connection state changes. err is non-nil when
// the change was caused by a failure.
type StateHandler func(state State, err error)

// Config holds connection settings.
type Config struct {
	// Address is the server's "host:port".
	Address string
	// DialTimeout limits connection establishment.
	DialTimeout time.Duration
	// WriteTimeout limits a single frame write; 0 disables it.
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible timeouts for address.
func DefaultConfig(address string) Config {
	return Config{
		Address:      address,
		DialTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Client is an event-driven connection to the game server. Register
// handlers before Connect; the read loop dispatches each decoded frame to
// the handler registered for its command. Safe for concurrent use.
type Client struct {
	cfg Config

	mu        sync.RWMutex
	conn      net.Conn
	state     State
	handlers  map[protocol.Command]MessageHandler
	onState   StateHandler
	fallback  MessageHandler
	sessionID uint32
	closed    bool

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// New creates a Client for the given config. Call Connect to establish the
// session and Close when done.
func New(cfg Config) *Client {
	return &Client{
		cfg:      cfg,
		state:    Disconnected,
		handlers: make(map[protocol.Command]MessageHandler),
	}
}

// On registers the handler for one command. Repeated calls replace the
// previous handler; nil clears it. Must not be called after Connect.
//
// Parameters:
//   - cmd: The command to handle
//   - handler: Function called with each matching frame
func (c *Client) On(cmd protocol.Command, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if handler == nil {
		delete(c.handlers, cmd)
		return
	}

	c.handlers[cmd] = handler
}

// OnUnhandled registers a catch-all for frames with no command handler.
func (c *Client) OnUnhandled(handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallback = handler
}

// OnState registers the handler for connection state changes.
func (c *Client) OnState(handler StateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = handler
}

// SessionID returns the connection id the server assigned, 0 before the
// greeting arrives.
func (c *Client) SessionID() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// GetState returns the current connection state.
func (c *Client) GetState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the session is live.
func (c *Client) IsConnected() bool {
	return c.GetState() == Connected
}

// Connect dials the server and starts the read loop.
//
// Returns:
//   - An error if the client is closed, already connected, or the dial fails
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client is closed")
	}
	if c.state == Connected || c.state == Connecting {
		c.mu.Unlock()
		return fmt.Errorf("already connected or connecting")
	}
	c.mu.Unlock()

	c.setState(Connecting, nil)

	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := dialer.Dial("tcp", c.cfg.Address)
	if err != nil {
		c.setState(Disconnected, err)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setState(Connected, nil)

	c.wg.Add(1)
	go c.readLoop(conn)

	return nil
}

// Close shuts the client down and waits for the read loop to exit.
// Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.setState(Closed, nil)

	return nil
}

// Send writes one frame to the server.
//
// Parameters:
//   - msg: The frame to send
//
// Returns:
//   - An error if not connected or the write fails
func (c *Client) Send(msg protocol.Message) error {
	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if state != Connected || conn == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			return err
		}

		defer func() {
			_ = conn.SetWriteDeadline(time.Time{})
		}()
	}

	_, err := conn.Write([]byte(msg.String() + "\n"))
	return err
}

func (c *Client) readLoop(conn net.Conn) {
	defer c.wg.Done()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if !c.isClosed() {
				c.setState(Disconnected, err)
			}
			return
		}

		msg, err := protocol.Parse(line)
		if err != nil {
			continue
		}

		if msg.Cmd == protocol.CmdServerSendID {
			if id, convErr := strconv.ParseUint(msg.Arg(0), 10, 32); convErr == nil {
				c.mu.Lock()
				c.sessionID = uint32(id)
				c.mu.Unlock()
			}
		}

		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg protocol.Message) {
	c.mu.RLock()
	handler, ok := c.handlers[msg.Cmd]
	if !ok {
		handler = c.fallback
	}
	c.mu.RUnlock()

	if handler != nil {
		handler(msg)
	}
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	c.state = state
	handler := c.onState
	c.mu.Unlock()

	if handler != nil {
		handler(state, err)
	}
}

// Login sends the credential check.
func (c *Client) Login(username, password string) error {
	return c.Send(protocol.New(protocol.CmdClientVerify, username, password))
}

// Register creates an account and logs in.
func (c *Client) Register(username, password, nickname, avatar string) error {
	return c.Send(protocol.New(protocol.CmdRegister, username, password, nickname, avatar))
}

// CreateRoom opens a waiting room; an empty password makes it public.
func (c *Client) CreateRoom(password string) error {
	if password == "" {
		return c.Send(protocol.New(protocol.CmdCreateRoom))
	}

	return c.Send(protocol.New(protocol.CmdCreateRoom, password))
}

// QuickRoom requests a quick match.
func (c *Client) QuickRoom() error {
	return c.Send(protocol.New(protocol.CmdQuickRoom))
}

// GoToRoom joins a room by id.
func (c *Client) GoToRoom(roomID uint32, password string) error {
	return c.Send(protocol.New(protocol.CmdGoToRoom, strconv.FormatUint(uint64(roomID), 10), password))
}

// Move plays a mark at row, col.
func (c *Client) Move(row, col int) error {
	return c.Send(protocol.New(protocol.CmdCaro, strconv.Itoa(row), strconv.Itoa(col)))
}

// RequestDraw offers the competitor a draw.
func (c *Client) RequestDraw() error {
	return c.Send(protocol.New(protocol.CmdDrawRequest))
}

// ConfirmDraw accepts a pending draw offer, ending the match.
func (c *Client) ConfirmDraw() error {
	return c.Send(protocol.New(protocol.CmdDrawConfirm))
}

// RefuseDraw declines a pending draw offer.
func (c *Client) RefuseDraw() error {
	return c.Send(protocol.New(protocol.CmdDrawRefuse))
}

// ReportTimeout concedes the match after the local countdown expired.
func (c *Client) ReportTimeout() error {
	return c.Send(protocol.New(protocol.CmdLose))
}

// Chat sends an in-room chat line to the competitor.
func (c *Client) Chat(text string) error {
	return c.Send(protocol.New(protocol.CmdChat, text))
}

// LobbyChat sends a chat line to every connected player.
func (c *Client) LobbyChat(text string) error {
	return c.Send(protocol.New(protocol.CmdChatServer, text))
}

// LeaveRoom leaves the current room.
func (c *Client) LeaveRoom() error {
	return c.Send(protocol.New(protocol.CmdLeftRoom))
}
