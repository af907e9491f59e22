// Package realtime owns the persistent push channel: one duplex websocket
// per local user id, with automatic bounded reconnect. Events are delivered
// unfiltered; conversation filtering is the store's job.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"heartlink/pkg/logger"
	"heartlink/pkg/models"
	"heartlink/pkg/telemetry"
)

// EventType discriminates Manager events.
type EventType int

const (
	// EventConnected fires on every successful connect, including
	// reconnects. Callers must treat each one as "resume, don't reset".
	EventConnected EventType = iota
	// EventDisconnected fires on transport loss. Never fatal.
	EventDisconnected
	// EventMessage carries one inbound pushed message.
	EventMessage
)

// Event is one typed occurrence on the push channel.
type Event struct {
	Type    EventType
	Message *models.Message
	Err     error
}

// envelope is the wire frame of the duplex channel.
type envelope struct {
	Type    string          `json:"type"`
	UserID  string          `json:"userId,omitempty"`
	Message *models.Message `json:"message,omitempty"`
}

const (
	defaultMaxRetries   = 8
	defaultBackoff      = 2 * time.Second
	defaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
	pongWait            = 60 * time.Second
)

// ErrClosed is returned by Open after Close.
var ErrClosed = errors.New("connection manager closed")

// Manager maintains the single push connection for one local user. Obtain
// one per process and share it; do not construct one per conversation.
type Manager struct {
	url          string
	maxRetries   int
	backoff      time.Duration
	pingInterval time.Duration
	dialer       *websocket.Dialer

	state  atomic.Int32
	events chan Event

	mu     sync.Mutex
	userID string
	opened bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager returns an unopened manager. Zero options select defaults.
func NewManager(url string, maxRetries int, backoff, pingInterval time.Duration) *Manager {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &Manager{
		url:          url,
		maxRetries:   maxRetries,
		backoff:      backoff,
		pingInterval: pingInterval,
		dialer:       websocket.DefaultDialer,
		events:       make(chan Event, 256),
	}
}

// Events returns the stream of typed connection events. The channel is
// closed when the manager shuts down for good (explicit Close or retry
// budget exhausted).
func (m *Manager) Events() <-chan Event { return m.events }

// State returns the current connection state.
func (m *Manager) State() models.ConnectionState {
	return models.ConnectionState(m.state.Load())
}

// Open starts the connection loop for localUserID. It returns after the
// first dial attempt is underway; connectivity is reported via Events.
func (m *Manager) Open(ctx context.Context, localUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opened {
		return fmt.Errorf("already open for user %s", m.userID)
	}
	if localUserID == "" {
		return errors.New("empty local user id")
	}
	m.opened = true
	m.userID = localUserID
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(runCtx)
	return nil
}

// Close tears the connection down and waits for the loop to exit.
func (m *Manager) Close() error {
	m.mu.Lock()
	if !m.opened {
		m.mu.Unlock()
		return nil
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	cancel()
	<-done
	return nil
}

// run dials, pumps, and redials until the context ends or retries run out.
func (m *Manager) run(ctx context.Context) {
	defer func() {
		m.state.Store(int32(models.Disconnected))
		telemetry.ConnectionUp.Set(0)
		close(m.events)
		close(m.done)
	}()

	attempts := 0
	connectedOnce := false
	for {
		if ctx.Err() != nil {
			return
		}
		m.state.Store(int32(models.Connecting))

		conn, err := m.dial(ctx)
		if err == nil {
			// Every (re)connect re-announces presence: the server holds
			// no state across reconnects.
			if jerr := m.join(conn); jerr != nil {
				_ = conn.Close()
				err = fmt.Errorf("announce presence: %w", jerr)
			}
		}
		if err != nil {
			attempts++
			logger.Warn("push_connect_failed", "url", m.url, "attempt", attempts, "error", err)
			m.emit(ctx, Event{Type: EventDisconnected, Err: err})
			if attempts >= m.maxRetries {
				logger.Error("push_retries_exhausted", "url", m.url, "attempts", attempts)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.backoff):
			}
			continue
		}

		attempts = 0
		if connectedOnce {
			telemetry.ReconnectsTotal.Inc()
		}
		connectedOnce = true
		m.state.Store(int32(models.Connected))
		telemetry.ConnectionUp.Set(1)
		logger.Info("push_connected", "user", m.userID)
		m.emit(ctx, Event{Type: EventConnected})

		err = m.pump(ctx, conn)
		_ = conn.Close()
		m.state.Store(int32(models.Connecting))
		telemetry.ConnectionUp.Set(0)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("push_disconnected", "error", err)
		m.emit(ctx, Event{Type: EventDisconnected, Err: err})
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.backoff):
		}
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	conn, _, err := m.dialer.DialContext(dialCtx, m.url, nil)
	return conn, err
}

func (m *Manager) join(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(envelope{Type: "join", UserID: m.userID})
}

// pump reads frames until the connection or context dies. A ping ticker
// keeps intermediaries from reaping the idle connection.
func (m *Manager) pump(ctx context.Context, conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		t := time.NewTicker(m.pingInterval)
		defer t.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ctx.Done():
				// unblock the read loop promptly on shutdown
				_ = conn.Close()
				return
			case <-t.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		switch env.Type {
		case "new_message":
			if env.Message == nil {
				logger.Warn("push_frame_missing_message")
				continue
			}
			msg := *env.Message
			msg.Status = models.StatusConfirmed
			m.emit(ctx, Event{Type: EventMessage, Message: &msg})
		case "joined", "pong", "":
			// advisory frames, nothing to do
		default:
			logger.Debug("push_frame_ignored", "type", env.Type)
		}
	}
}

// emit delivers an event unless shutdown wins the race.
func (m *Manager) emit(ctx context.Context, ev Event) {
	select {
	case m.events <- ev:
	case <-ctx.Done():
	}
}
