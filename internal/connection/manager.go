// internal/connection/manager.go
package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/kou050223/duelclient/internal/auth"
	"github.com/kou050223/duelclient/internal/middleware"
	"github.com/kou050223/duelclient/internal/protocol"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotConnected is returned by Send when no channel is open.
	ErrNotConnected = errors.New("connection: not connected")
	// ErrNoIdentity is returned by Connect when nobody is signed in.
	ErrNoIdentity = errors.New("connection: no identity")
	// ErrNoTarget is returned by Connect when no channel url is configured.
	ErrNoTarget = errors.New("connection: no channel url")
)

// State is the lifecycle state of the manager.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateBackoff:
		return "backoff"
	default:
		return "idle"
	}
}

// FrameHandler consumes inbound text frames in arrival order.
type FrameHandler interface {
	Dispatch(ctx context.Context, raw []byte)
}

// StatusSink receives connection status changes. It is never called while
// the manager holds its lock.
type StatusSink interface {
	SetConnectionStatus(connected bool, errMsg string)
}

// Config tunes the manager. Zero fields take the defaults from DefaultConfig.
type Config struct {
	URL                  string
	MaxReconnectAttempts int
	BaseDelay            time.Duration
	MaxReconnectDelay    time.Duration
	MaxJitter            time.Duration
	HeartbeatInterval    time.Duration
	HeartbeatSettle      time.Duration
	DialTimeout          time.Duration
	WriteTimeout         time.Duration
}

func DefaultConfig(url string) Config {
	return Config{
		URL:                  url,
		MaxReconnectAttempts: 5,
		BaseDelay:            time.Second,
		MaxReconnectDelay:    30 * time.Second,
		MaxJitter:            time.Second,
		HeartbeatInterval:    30 * time.Second,
		HeartbeatSettle:      100 * time.Millisecond,
		DialTimeout:          10 * time.Second,
		WriteTimeout:         5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.URL)
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxReconnectDelay <= 0 {
		c.MaxReconnectDelay = d.MaxReconnectDelay
	}
	if c.MaxJitter < 0 {
		c.MaxJitter = 0
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.HeartbeatSettle <= 0 {
		c.HeartbeatSettle = d.HeartbeatSettle
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	return c
}

// Manager keeps at most one live channel to the duel server and reconnects
// with exponential backoff after abnormal loss.
type Manager struct {
	cfg     Config
	dial    Dialer
	handler FrameHandler
	status  StatusSink
	logger  *logrus.Logger
	jitter  func() time.Duration

	root       context.Context
	rootCancel context.CancelFunc

	mu sync.Mutex
	// All fields below are guarded by mu and cleared together by teardownLocked.
	state          State
	ch             Channel
	connID         string
	cancelConn     context.CancelFunc // stops the read loop and heartbeat
	reconnectTimer *time.Timer
	attempt        int
	manualClose    bool
	lastError      string
	// epoch changes on every explicit teardown so in-flight connects and
	// timers started before it can tell they are stale.
	epoch uint64

	identity auth.Identity
	duelID   string
	watchKey string
	watched  bool
}

// NewManager builds an idle manager. dial defaults to WebsocketDialer(nil).
func NewManager(cfg Config, dial Dialer, handler FrameHandler, status StatusSink, logger *logrus.Logger) *Manager {
	if dial == nil {
		dial = WebsocketDialer(nil)
	}
	cfg = cfg.withDefaults()
	root, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:        cfg,
		dial:       dial,
		handler:    handler,
		status:     status,
		logger:     logger,
		root:       root,
		rootCancel: cancel,
	}
	m.jitter = func() time.Duration {
		if cfg.MaxJitter == 0 {
			return 0
		}
		return time.Duration(rand.Int63n(int64(cfg.MaxJitter)))
	}
	return m
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Connected() bool { return m.State() == StateOpen }

// Attempt is the number of reconnects scheduled since the last successful open.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// LastError is the most recent transport error, kept after retries run out.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// SetIdentity replaces the identity used by the next connect.
func (m *Manager) SetIdentity(ident auth.Identity) {
	m.mu.Lock()
	m.identity = ident
	m.mu.Unlock()
}

// SetDuelID records the session correlation id sent on the next connect.
// It never touches the live channel.
func (m *Manager) SetDuelID(id string) {
	m.mu.Lock()
	m.duelID = id
	m.mu.Unlock()
}

// Watch feeds the auto-connect condition. The manager connects when both
// ident and url are present and disconnects when either goes away. Calls
// whose uid and url match the previous call are no-ops.
func (m *Manager) Watch(ctx context.Context, ident auth.Identity, url string) error {
	key := ""
	if ident != nil && ident.UID() != "" && url != "" {
		key = ident.UID() + "\x00" + url
	}

	m.mu.Lock()
	if m.watched && key == m.watchKey {
		if ident != nil {
			m.identity = ident
		}
		m.mu.Unlock()
		return nil
	}
	prev := m.watchKey
	m.watched = true
	m.watchKey = key
	m.identity = ident
	if url != "" {
		m.cfg.URL = url
	}
	m.mu.Unlock()

	if key == "" {
		m.Disconnect()
		return nil
	}
	if prev != "" {
		m.Disconnect()
	}
	return m.Connect(ctx)
}

// Connect opens a channel unless one is already open or connecting. It
// clears a previous manual disconnect.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.manualClose = false
	m.mu.Unlock()
	return m.connect(ctx)
}

// Reconnect drops the current channel, resets the attempt counter and
// connects again.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.Disconnect()
	m.mu.Lock()
	m.manualClose = false
	m.attempt = 0
	m.mu.Unlock()
	return m.connect(ctx)
}

// Disconnect closes the channel and suppresses automatic reconnection until
// the next Connect or Reconnect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.manualClose = true
	m.epoch++
	if m.ch != nil {
		m.state = StateClosing
	} else {
		m.state = StateIdle
	}
	ch, cancel, connID := m.teardownLocked()
	m.mu.Unlock()

	if ch != nil {
		_ = ch.Close(websocket.StatusNormalClosure, "client disconnect")
		middleware.LogChannelClose(m.logger, connID, int(websocket.StatusNormalClosure), nil)
	}
	if cancel != nil {
		cancel()
	}

	m.mu.Lock()
	if m.state == StateClosing {
		m.state = StateIdle
	}
	m.mu.Unlock()
	m.status.SetConnectionStatus(false, "")
}

// Close disconnects and releases the manager for good.
func (m *Manager) Close() {
	m.Disconnect()
	m.rootCancel()
}

// Send serializes msg and writes it to the open channel. Without an open
// channel the message is dropped, logged and ErrNotConnected is returned.
func (m *Manager) Send(msg protocol.Message) error {
	m.mu.Lock()
	ch := m.ch
	open := m.state == StateOpen
	m.mu.Unlock()

	if !open || ch == nil {
		m.logger.Warnf("WebSocket is not connected. Message not sent: %s", msg.Type())
		return ErrNotConnected
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type(), err)
	}
	ctx, cancel := context.WithTimeout(m.root, m.cfg.WriteTimeout)
	defer cancel()
	if err := ch.Write(ctx, websocket.MessageText, data); err != nil {
		m.logger.Warnf("Failed to send %s: %v", msg.Type(), err)
		return fmt.Errorf("send %s: %w", msg.Type(), err)
	}
	m.logger.Debugf("Sent %s", msg.Type())
	return nil
}

func (m *Manager) connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateOpen {
		m.mu.Unlock()
		return nil
	}
	if m.manualClose {
		m.mu.Unlock()
		return nil
	}
	ident := m.identity
	if ident == nil {
		m.mu.Unlock()
		return ErrNoIdentity
	}
	if m.cfg.URL == "" {
		m.mu.Unlock()
		return ErrNoTarget
	}
	stale, staleCancel, _ := m.teardownLocked()
	m.state = StateConnecting
	epoch := m.epoch
	base, duelID := m.cfg.URL, m.duelID
	connID := uuid.NewString()
	m.mu.Unlock()

	if stale != nil {
		_ = stale.Close(websocket.StatusNormalClosure, "superseded")
	}
	if staleCancel != nil {
		staleCancel()
	}

	log := m.logger.WithFields(logrus.Fields{"conn": connID, "attempt": m.Attempt()})
	log.Info("Connecting to WebSocket")

	token, err := ident.Token(ctx)
	if err != nil {
		return m.failConnect(epoch, fmt.Errorf("resolve token: %w", err), false)
	}
	if !m.current(epoch) {
		return nil
	}
	target, err := BuildURL(base, token, ident.UID(), duelID)
	if err != nil {
		return m.failConnect(epoch, err, false)
	}

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	ch, err := m.dial(dialCtx, target)
	cancel()
	if err != nil {
		return m.failConnect(epoch, fmt.Errorf("dial: %w", err), true)
	}

	m.mu.Lock()
	if m.epoch != epoch || m.manualClose {
		m.mu.Unlock()
		_ = ch.Close(websocket.StatusNormalClosure, "connection no longer wanted")
		return nil
	}
	connCtx, cancelConn := context.WithCancel(m.root)
	m.ch = ch
	m.connID = connID
	m.cancelConn = cancelConn
	m.state = StateOpen
	m.attempt = 0
	m.lastError = ""
	m.mu.Unlock()

	middleware.LogChannelOpen(m.logger, connID, RedactURL(target))
	m.status.SetConnectionStatus(true, "")

	go m.readLoop(connCtx, ch)
	go m.heartbeat(connCtx)
	return nil
}

func (m *Manager) current(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch == epoch && !m.manualClose
}

// failConnect records a failed open. Dial failures count as abnormal loss
// and are retried; token and url failures are not.
func (m *Manager) failConnect(epoch uint64, err error, retry bool) error {
	m.mu.Lock()
	if m.epoch != epoch || m.manualClose {
		m.mu.Unlock()
		return err
	}
	m.lastError = err.Error()
	m.state = StateIdle
	var delay time.Duration
	scheduled := false
	if retry {
		delay, scheduled = m.scheduleReconnectLocked()
	}
	attempt := m.attempt
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{"attempt": attempt, "error": err}).Warn("WebSocket connection failed")
	m.logScheduled(scheduled, delay, attempt)
	m.status.SetConnectionStatus(false, "WebSocket error: "+err.Error())
	return err
}

func (m *Manager) readLoop(ctx context.Context, ch Channel) {
	for {
		typ, data, err := ch.Read(ctx)
		if err != nil {
			m.handleClose(ch, err)
			return
		}
		if typ != websocket.MessageText {
			m.logger.Warnf("Ignoring non-text frame (%v)", typ)
			continue
		}
		m.handler.Dispatch(ctx, data)
	}
}

func (m *Manager) heartbeat(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.cfg.HeartbeatSettle):
	}

	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Send(protocol.Ping()); err != nil {
				m.logger.Debugf("Heartbeat skipped: %v", err)
			}
		}
	}
}

// handleClose runs when the read loop of ch ends. Channels that were torn
// down on purpose are no longer current and are ignored.
func (m *Manager) handleClose(ch Channel, err error) {
	code, clean := closeInfo(err)

	m.mu.Lock()
	if m.ch != ch {
		m.mu.Unlock()
		return
	}
	_, cancel, connID := m.teardownLocked()
	m.state = StateIdle

	errMsg := ""
	var delay time.Duration
	scheduled := false
	if shouldReconnect(code, clean) {
		m.lastError = describeClose(code, err)
		errMsg = m.lastError
		if !m.manualClose {
			delay, scheduled = m.scheduleReconnectLocked()
		}
	} else if code != websocket.StatusNormalClosure && code != websocket.StatusGoingAway {
		m.lastError = describeClose(code, err)
		errMsg = m.lastError
	}
	attempt := m.attempt
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	middleware.LogChannelClose(m.logger, connID, int(code), err)
	m.logScheduled(scheduled, delay, attempt)
	m.status.SetConnectionStatus(false, errMsg)
}

// scheduleReconnectLocked arms the reconnect timer if attempts remain.
// The counter is incremented after the delay is computed.
func (m *Manager) scheduleReconnectLocked() (time.Duration, bool) {
	if m.manualClose || m.attempt >= m.cfg.MaxReconnectAttempts {
		m.state = StateIdle
		return 0, false
	}
	delay := ReconnectDelay(m.attempt, m.cfg.BaseDelay, m.cfg.MaxReconnectDelay, m.jitter())
	epoch := m.epoch
	m.reconnectTimer = time.AfterFunc(delay, func() { m.onReconnectTimer(epoch) })
	m.attempt++
	m.state = StateBackoff
	return delay, true
}

func (m *Manager) onReconnectTimer(epoch uint64) {
	m.mu.Lock()
	if m.epoch != epoch || m.manualClose || m.state != StateBackoff {
		m.mu.Unlock()
		return
	}
	m.reconnectTimer = nil
	m.mu.Unlock()

	_ = m.connect(m.root)
}

func (m *Manager) logScheduled(scheduled bool, delay time.Duration, attempt int) {
	if scheduled {
		m.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Infof("Reconnect scheduled (%d/%d)", attempt, m.cfg.MaxReconnectAttempts)
		return
	}
	if attempt >= m.cfg.MaxReconnectAttempts {
		m.logger.Warnf("Giving up after %d reconnect attempts", attempt)
	}
}

// teardownLocked clears every per-channel field at once: the reconnect timer,
// the channel and the context that runs its read loop and heartbeat. The
// caller closes the returned channel and cancels the returned context after
// releasing mu.
func (m *Manager) teardownLocked() (Channel, context.CancelFunc, string) {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	ch, cancel, connID := m.ch, m.cancelConn, m.connID
	m.ch = nil
	m.cancelConn = nil
	m.connID = ""
	return ch, cancel, connID
}
