package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rentline/internal/domain/inbox"
)

// Status is the connection lifecycle state.
type Status string

const (
	StatusDisconnected Status = "DISCONNECTED"
	StatusConnecting   Status = "CONNECTING"
	StatusOpen         Status = "OPEN"
	StatusClosing      Status = "CLOSING"
)

// ErrNotOpen is returned by Send while the socket is not open. The
// frame is dropped; the manager keeps no outbound queue.
var ErrNotOpen = errors.New("relay: connection not open")

// ErrClosed marks a manager that was torn down intentionally.
var ErrClosed = errors.New("relay: manager closed")

// FrameHandler receives the messages normalized out of one inbound
// frame, in frame order.
type FrameHandler func(msgs []inbox.Message)

// Focus names the conversation whose history is requested whenever the
// connection (re)opens.
type Focus struct {
	ItemID   string
	RenterID string
}

// Config carries the manager dependencies.
type Config struct {
	// URL of the relay websocket endpoint.
	URL string
	// Credentials is asked for a fresh bearer token before every
	// connect attempt.
	Credentials CredentialSource
	// Handler consumes inbound frames. Required.
	Handler FrameHandler
	// ReconnectDelay is the fixed pause before an automatic
	// reconnect. Defaults to 3s.
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer
	Logger         *slog.Logger
}

// Manager owns at most one live relay connection. A close or error on
// the socket schedules exactly one reconnect after a fixed delay;
// Close cancels any pending reconnect so a stale timer can never race
// a later session's connection.
type Manager struct {
	url     string
	creds   CredentialSource
	handler FrameHandler
	delay   time.Duration
	dialer  *websocket.Dialer
	logger  *slog.Logger

	mu         sync.Mutex
	status     Status
	conn       *websocket.Conn
	gen        uint64
	retryCount int
	lastErr    error
	timer      *time.Timer
	closed     bool
	focus      *Focus
}

// NewManager builds a disconnected manager. Call Connect to go live.
func NewManager(cfg Config) *Manager {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = 3 * time.Second
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		url:     cfg.URL,
		creds:   cfg.Credentials,
		handler: cfg.Handler,
		delay:   delay,
		dialer:  dialer,
		logger:  logger,
		status:  StatusDisconnected,
	}
}

// Connect opens the relay connection. Calling it while already
// connecting or open is a no-op. Failures are logged, never returned:
// credential and dial errors both leave the manager disconnected with
// a reconnect scheduled, since the credential is refreshed on every
// attempt anyway.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	if m.closed || m.status == StatusConnecting || m.status == StatusOpen {
		m.mu.Unlock()
		return
	}
	m.status = StatusConnecting
	m.retryCount++
	m.mu.Unlock()

	token, err := m.creds.Token(ctx)
	if err != nil {
		m.logger.Error("relay: credential refresh failed", "error", err)
		m.failAttempt(ctx, err)
		return
	}
	endpoint, err := authenticatedURL(m.url, token)
	if err != nil {
		m.logger.Error("relay: bad relay url", "url", m.url, "error", err)
		m.failAttempt(ctx, err)
		return
	}

	conn, resp, err := m.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		m.logger.Error("relay: dial failed", "error", err)
		m.failAttempt(ctx, err)
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.gen++
	gen := m.gen
	m.status = StatusOpen
	m.retryCount = 0
	m.lastErr = nil
	focus := m.focus
	m.mu.Unlock()

	m.logger.Info("relay: connected")
	if focus != nil {
		if err := m.Send(NewGetMessages(focus.ItemID, focus.RenterID)); err != nil {
			m.logger.Warn("relay: focus bootstrap request failed", "error", err)
		}
	}
	go m.readPump(ctx, conn, gen)
}

// Send writes one outbound frame. Valid only while open; otherwise the
// frame is dropped with a warning and ErrNotOpen. There is no delivery
// guarantee while disconnected.
func (m *Manager) Send(frame any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusOpen || m.conn == nil {
		m.logger.Warn("relay: send while not open, frame dropped", "status", m.status)
		return ErrNotOpen
	}
	if err := m.conn.WriteJSON(frame); err != nil {
		m.lastErr = err
		return fmt.Errorf("relay: send failed: %w", err)
	}
	return nil
}

// SetFocus records the active conversation and, when already open,
// requests its history immediately. The request is repeated after
// every reconnect.
func (m *Manager) SetFocus(itemID, renterID string) {
	m.mu.Lock()
	m.focus = &Focus{ItemID: itemID, RenterID: renterID}
	open := m.status == StatusOpen
	m.mu.Unlock()
	if open {
		if err := m.Send(NewGetMessages(itemID, renterID)); err != nil {
			m.logger.Warn("relay: focus bootstrap request failed", "error", err)
		}
	}
}

// Close tears the connection down deterministically: the pending
// reconnect timer is invalidated, the socket closed and any in-flight
// read pump detached. The manager cannot be reused afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.status = StatusClosing
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.gen++
	m.status = StatusDisconnected
	m.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}
	m.logger.Info("relay: closed")
}

// Status reports the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastError reports the most recent connection error, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) readPump(ctx context.Context, conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleReadError(ctx, gen, err)
			return
		}
		msgs, nerr := Normalize(data)
		if nerr != nil {
			m.logger.Warn("relay: malformed frame dropped", "error", nerr)
			continue
		}
		if m.stale(gen) {
			return
		}
		m.handler(msgs)
	}
}

func (m *Manager) stale(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed || m.gen != gen
}

func (m *Manager) handleReadError(ctx context.Context, gen uint64, err error) {
	m.mu.Lock()
	if m.closed || m.gen != gen {
		// Intentional teardown or a newer connection took over.
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.status = StatusDisconnected
	m.lastErr = err
	m.scheduleReconnectLocked(ctx)
	m.mu.Unlock()
	m.logger.Warn("relay: connection lost, reconnecting", "error", err, "delay", m.delay)
}

func (m *Manager) failAttempt(ctx context.Context, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.status = StatusDisconnected
	m.lastErr = err
	m.scheduleReconnectLocked(ctx)
}

// scheduleReconnectLocked arms the single reconnect timer. The delay
// is fixed, not exponential; at most one attempt is ever pending.
func (m *Manager) scheduleReconnectLocked(ctx context.Context) {
	if m.closed || m.timer != nil {
		return
	}
	m.timer = time.AfterFunc(m.delay, func() {
		m.mu.Lock()
		m.timer = nil
		closed := m.closed
		m.mu.Unlock()
		if closed || ctx.Err() != nil {
			return
		}
		m.Connect(ctx)
	})
}

func authenticatedURL(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
