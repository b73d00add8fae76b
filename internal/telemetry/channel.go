package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"routebudget-telemetry/internal/location"
)

const (
	// reconnectDelay is deliberately fixed, no exponential growth and
	// no jitter, matching the dispatch backend's expectations.
	reconnectDelay = 5 * time.Second
	sendInterval   = 10 * time.Second
	dialTimeout    = 10 * time.Second
	writeTimeout   = 5 * time.Second
)

type ConnectionState int

const (
	StateClosed ConnectionState = iota
	StateConnecting
	StateOpen
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// RouteContext carries the trip's from/to labels attached to every
// location message.
type RouteContext struct {
	From string
	To   string
}

// PositionFunc supplies the current position for periodic sends and
// server-requested echoes. ok=false means no position is available
// yet and nothing is sent.
type PositionFunc func(ctx context.Context) (pos location.Position, rc RouteContext, ok bool)

// Session is a snapshot of the channel state.
type Session struct {
	DriverID        string     `json:"driver_id"`
	ConnectionState string     `json:"connection_state"`
	Tracking        bool       `json:"tracking"`
	LastSentAt      *time.Time `json:"last_sent_at,omitempty"`
}

// Channel is the persistent socket to the dispatch backend: it
// registers the driver, pushes periodic position updates while
// tracking, and reconnects on failure after a fixed delay. At most one
// socket is live at a time; every dial attempt carries a generation so
// a stale reconnect or read never replaces a newer connection.
type Channel struct {
	endpoint   string
	cabNumber  string
	logger     *slog.Logger
	positionFn PositionFunc

	// Overridden in tests.
	reconnectDelay time.Duration
	sendInterval   time.Duration

	onServerError func(string)
	onMessage     func(Envelope)

	mu           sync.Mutex
	ctx          context.Context
	driverID     string
	state        ConnectionState
	conn         *websocket.Conn
	gen          uint64
	tracking     bool
	trackingStop context.CancelFunc
	lastSentAt   time.Time
}

func NewChannel(endpoint, cabNumber string, positionFn PositionFunc, logger *slog.Logger) *Channel {
	return &Channel{
		endpoint:       endpoint,
		cabNumber:      cabNumber,
		logger:         logger,
		positionFn:     positionFn,
		reconnectDelay: reconnectDelay,
		sendInterval:   sendInterval,
		state:          StateClosed,
	}
}

// OnServerError registers the callback for ERROR frames; the message
// is surfaced verbatim.
func (c *Channel) OnServerError(fn func(message string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onServerError = fn
}

// OnMessage registers a callback invoked for every inbound frame,
// after the channel's own dispatch.
func (c *Channel) OnMessage(fn func(Envelope)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// Connect opens the channel. ctx bounds the whole channel lifetime
// including reconnects. driverID may be empty; registration is then
// deferred until SetDriverID and an explicit Register call.
func (c *Channel) Connect(ctx context.Context, driverID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateClosed {
		return
	}
	c.ctx = ctx
	c.driverID = driverID
	c.dialLocked()
}

func (c *Channel) dialLocked() {
	c.gen++
	c.state = StateConnecting
	go c.dial(c.gen)
}

func (c *Channel) dial(gen uint64) {
	dialCtx, cancel := context.WithTimeout(c.ctx, dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, c.endpoint, nil)
	cancel()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if err == nil {
			_ = conn.Close(websocket.StatusNormalClosure, "superseded")
		}
		return
	}
	if err != nil {
		c.state = StateClosed
		c.scheduleReconnectLocked(gen)
		c.mu.Unlock()
		c.logger.Warn("dispatch dial failed", "error", err)
		return
	}
	c.conn = conn
	c.state = StateOpen
	driverID := c.driverID
	c.mu.Unlock()

	c.logger.Info("dispatch channel open", "endpoint", c.endpoint)
	if driverID != "" {
		c.Register()
	}
	go c.readPump(conn, gen)
}

// SetDriverID records the driver identity once it resolves. A register
// message is not re-sent automatically; the caller issues Register.
func (c *Channel) SetDriverID(driverID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.driverID = driverID
}

// Register announces the driver to the dispatch backend. Dropped
// silently if the socket is not open or the driver id is unknown.
func (c *Channel) Register() {
	c.mu.Lock()
	conn, state, driverID := c.conn, c.state, c.driverID
	c.mu.Unlock()
	if state != StateOpen || driverID == "" {
		return
	}
	_ = c.write(conn, registerMessage{Type: TypeRegister, DriverID: driverID, Role: roleDriver})
}

func (c *Channel) readPump(conn *websocket.Conn, gen uint64) {
	for {
		var env Envelope
		if err := wsjson.Read(c.ctx, conn, &env); err != nil {
			c.handleClose(gen, err)
			return
		}
		c.handleMessage(env)
	}
}

func (c *Channel) handleClose(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateClosed
	c.scheduleReconnectLocked(gen)
	c.mu.Unlock()
	c.logger.Warn("dispatch channel closed", "error", cause)
}

// scheduleReconnectLocked arms a retry after the fixed delay. The
// retry checks it has not been superseded by a newer connect attempt
// before dialing, so rapid close/reopen never produces two sockets.
func (c *Channel) scheduleReconnectLocked(gen uint64) {
	if c.ctx.Err() != nil {
		return
	}
	time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen || c.state != StateClosed || c.ctx.Err() != nil {
			return
		}
		c.dialLocked()
	})
}

func (c *Channel) handleMessage(env Envelope) {
	switch env.Type {
	case TypeLocation:
		// The server requests an immediate echo of the current position.
		c.SendCurrent()
	case TypeRegisterConfirmation:
		c.logger.Debug("registration confirmed")
	case TypeError:
		var p errorPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.logger.Warn("malformed ERROR frame", "error", err)
			return
		}
		c.logger.Warn("dispatch reported error", "message", p.Message)
		c.mu.Lock()
		fn := c.onServerError
		c.mu.Unlock()
		if fn != nil {
			fn(p.Message)
		}
	default:
		c.logger.Debug("received unknown type message", "type", env.Type)
	}

	c.mu.Lock()
	fn := c.onMessage
	c.mu.Unlock()
	if fn != nil {
		fn(env)
	}
}

// StartTracking begins the periodic location sends: one immediately,
// then one per interval. Idempotent; a second call while tracking
// never stacks a second timer. A no-op before Connect, which provides
// the lifetime the sends are bound to.
func (c *Channel) StartTracking() {
	c.mu.Lock()
	if c.tracking || c.ctx == nil {
		c.mu.Unlock()
		return
	}
	c.tracking = true
	trackCtx, cancel := context.WithCancel(c.ctx)
	c.trackingStop = cancel
	c.mu.Unlock()

	go c.sendLoop(trackCtx)
}

// StopTracking cancels the periodic sends.
func (c *Channel) StopTracking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTrackingLocked()
}

func (c *Channel) stopTrackingLocked() {
	if !c.tracking {
		return
	}
	c.tracking = false
	if c.trackingStop != nil {
		c.trackingStop()
		c.trackingStop = nil
	}
}

func (c *Channel) sendLoop(ctx context.Context) {
	c.SendCurrent()
	ticker := time.NewTicker(c.sendInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.SendCurrent()
		case <-ctx.Done():
			return
		}
	}
}

// SendCurrent pushes the current position if the supplier has one.
func (c *Channel) SendCurrent() {
	pos, rc, ok := c.positionFn(c.ctx)
	if !ok {
		return
	}
	c.Send(pos, rc)
}

// Send pushes one location frame. Telemetry is best-effort: while the
// socket is not open the frame is silently dropped.
func (c *Channel) Send(pos location.Position, rc RouteContext) {
	c.mu.Lock()
	conn, state, driverID := c.conn, c.state, c.driverID
	c.mu.Unlock()
	if state != StateOpen {
		return
	}

	msg := locationMessage{
		Type:     TypeLocation,
		DriverID: driverID,
		Role:     roleDriver,
		Location: locationPayload{
			Latitude:  pos.Latitude,
			Longitude: pos.Longitude,
			Timestamp: pos.Timestamp.UTC().Format(time.RFC3339),
			From:      rc.From,
			To:        rc.To,
		},
	}
	if err := c.write(conn, msg); err == nil {
		c.mu.Lock()
		c.lastSentAt = time.Now()
		c.mu.Unlock()
	}
}

// Disconnect tears the channel down: tracking stops, a best-effort
// DRIVER_DISCONNECT frame is sent if the socket is still open, and
// any pending reconnect is superseded.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.stopTrackingLocked()
	conn := c.conn
	driverID := c.driverID
	c.conn = nil
	c.state = StateClosed
	c.gen++
	c.mu.Unlock()

	if conn == nil {
		return
	}
	// The lifetime ctx may already be cancelled during teardown; the
	// goodbye frame gets its own deadline.
	writeCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_ = wsjson.Write(writeCtx, conn, disconnectMessage{
		Type:    TypeDriverDisconnect,
		Payload: disconnectPayload{DriverID: driverID, CabNumber: c.cabNumber},
	})
	if err := conn.Close(websocket.StatusNormalClosure, "driver disconnect"); err != nil {
		c.logger.Debug("failed to close connection", "error", err)
	}
}

// Session reports the channel state for the API surface.
func (c *Channel) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Session{
		DriverID:        c.driverID,
		ConnectionState: c.state.String(),
		Tracking:        c.tracking,
	}
	if !c.lastSentAt.IsZero() {
		t := c.lastSentAt
		s.LastSentAt = &t
	}
	return s
}

func (c *Channel) write(conn *websocket.Conn, msg any) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, conn, msg); err != nil {
		c.logger.Warn("failed to write message", "error", err)
		return err
	}
	return nil
}
