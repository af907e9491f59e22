// Package chat is the facade the UI consumes: conversation selection,
// subscription, sending and connectivity status, glued over the sync
// engine's parts.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"heartlink/pkg/convo"
	"heartlink/pkg/history"
	"heartlink/pkg/logger"
	"heartlink/pkg/models"
	"heartlink/pkg/reactions"
	"heartlink/pkg/realtime"
	"heartlink/pkg/send"
	"heartlink/pkg/session"
)

// EventSource is the push channel as the facade sees it; satisfied by
// *realtime.Manager.
type EventSource interface {
	Open(ctx context.Context, localUserID string) error
	Events() <-chan realtime.Event
	State() models.ConnectionState
	Close() error
}

// ErrNoConversation is returned by Send before any SelectConversation.
var ErrNoConversation = errors.New("no active conversation")

// ErrThrottled is returned when the outgoing send rate limit is exceeded.
var ErrThrottled = errors.New("sending too fast, slow down")

// Options configures a Client.
type Options struct {
	LocalUserID string
	Store       *convo.Store
	History     *history.Loader
	Reactions   *reactions.Index
	Source      EventSource
	Coordinator *send.Coordinator
	// SendRPS/SendBurst throttle outgoing sends; zero disables the
	// throttle.
	SendRPS   float64
	SendBurst int
}

// Client is the per-process chat engine facade. Methods are safe for
// concurrent use; conversation mutation is serialized by the store.
type Client struct {
	self    string
	store   *convo.Store
	history *history.Loader
	idx     *reactions.Index
	source  EventSource
	coord   *send.Coordinator
	limiter *rate.Limiter

	mu        sync.Mutex
	activeKey models.ConversationKey
	hasActive bool
	// epoch guards every async continuation: a conversation switch
	// invalidates in-flight loads for the previous peer.
	epoch     uint64
	unsub     func()
	listeners map[int]func([]models.Message)
	nextID    int

	pumpDone  chan struct{}
	started   bool
	startOnce sync.Once
	closeOnce sync.Once
}

// New builds an unstarted client.
func New(opts Options) (*Client, error) {
	if opts.LocalUserID == "" {
		return nil, session.ErrSignedOut
	}
	if opts.Store == nil || opts.History == nil || opts.Source == nil || opts.Coordinator == nil {
		return nil, errors.New("chat: missing collaborator")
	}
	var limiter *rate.Limiter
	if opts.SendRPS > 0 {
		burst := opts.SendBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.SendRPS), burst)
	}
	return &Client{
		self:      opts.LocalUserID,
		store:     opts.Store,
		history:   opts.History,
		idx:       opts.Reactions,
		source:    opts.Source,
		coord:     opts.Coordinator,
		limiter:   limiter,
		listeners: make(map[int]func([]models.Message)),
		pumpDone:  make(chan struct{}),
	}, nil
}

// Start opens the push channel and begins pumping events into the store.
func (c *Client) Start(ctx context.Context) error {
	var err error
	c.startOnce.Do(func() {
		if e := c.source.Open(ctx, c.self); e != nil {
			err = fmt.Errorf("open push channel: %w", e)
			return
		}
		c.started = true
		go c.pump()
	})
	return err
}

// pump feeds push events into the store until the source closes its
// stream. Connected transitions are "resume, don't reset": no local state
// is cleared, the store keeps whatever was already merged.
func (c *Client) pump() {
	defer close(c.pumpDone)
	for ev := range c.source.Events() {
		switch ev.Type {
		case realtime.EventMessage:
			msg := *ev.Message
			// the store drops foreign-peer events itself
			c.store.Merge(msg.Key(), msg)
		case realtime.EventConnected:
			logger.Info("chat_connection_resumed", "user", c.self)
		case realtime.EventDisconnected:
			// advisory only; composing and sending stay available
			logger.Warn("chat_connection_lost", "error", ev.Err)
		}
	}
}

// SelectConversation makes peerID's conversation active and populates it
// from the history and reaction collaborators. Late responses from a
// previous selection are discarded.
func (c *Client) SelectConversation(ctx context.Context, peerID string) error {
	if peerID == "" || peerID == c.self {
		return fmt.Errorf("invalid peer id %q", peerID)
	}
	key := models.KeyOf(c.self, peerID)

	c.mu.Lock()
	c.epoch++
	myEpoch := c.epoch
	c.activeKey = key
	c.hasActive = true
	if c.unsub != nil {
		c.unsub()
	}
	c.store.SetActive(key)
	c.unsub = c.store.Subscribe(key, c.fanout)
	c.mu.Unlock()

	// suspension point: history fetch
	msgs := c.history.Load(ctx, c.self, peerID)
	if c.stale(myEpoch) {
		return nil
	}
	c.store.Merge(key, msgs...)

	if c.idx != nil {
		// suspension point: reactions fetch; failure is non-fatal
		if err := c.idx.Load(ctx, c.self, peerID); err != nil {
			logger.Warn("reactions_load_failed", "peer", peerID, "error", err)
		}
		if c.stale(myEpoch) {
			return nil
		}
	}

	if session.Ready() {
		if err := session.SaveWatermark(key, time.Now().UTC()); err != nil {
			logger.Warn("watermark_save_failed", "key", key.String(), "error", err)
		}
	}
	return nil
}

// stale reports whether another selection superseded epoch.
func (c *Client) stale(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch != epoch
}

// Subscribe registers a callback for every change of the active
// conversation's view. The returned func unsubscribes.
func (c *Client) Subscribe(fn func([]models.Message)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// fanout forwards one view to the client's listeners. It is only ever
// invoked as a store subscriber, so the store's delivery order carries
// through to listeners unchanged.
func (c *Client) fanout(view []models.Message) {
	c.mu.Lock()
	fns := make([]func([]models.Message), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(view)
	}
}

// CurrentMessages returns the active conversation's ordered view.
func (c *Client) CurrentMessages() []models.Message {
	c.mu.Lock()
	key, ok := c.activeKey, c.hasActive
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.store.Snapshot(key)
}

// Send delivers content (and/or an attachment) to the active peer.
// Disconnection never blocks sending; the REST path stands alone.
func (c *Client) Send(ctx context.Context, content, attachmentURL string) error {
	c.mu.Lock()
	key, ok := c.activeKey, c.hasActive
	c.mu.Unlock()
	if !ok {
		return ErrNoConversation
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return ErrThrottled
	}
	return c.coord.Send(ctx, key, c.self, content, attachmentURL)
}

// React adds an emoji reaction by the local user to one message.
func (c *Client) React(ctx context.Context, messageID, emoji string) error {
	if c.idx == nil {
		return errors.New("reactions not configured")
	}
	return c.idx.Add(ctx, models.Reaction{MessageID: messageID, UserID: c.self, Emoji: emoji})
}

// Reactions returns the reactions loaded for one message.
func (c *Client) Reactions(messageID string) []models.Reaction {
	if c.idx == nil {
		return nil
	}
	return c.idx.ForMessage(messageID)
}

// ConnectionStatus reports the push channel state.
func (c *Client) ConnectionStatus() models.ConnectionState {
	return c.source.State()
}

// LocalUserID returns the identity the client acts as.
func (c *Client) LocalUserID() string { return c.self }

// Close shuts the push channel down and waits for the event pump.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.source.Close()
		if c.started {
			<-c.pumpDone
		}
	})
	return err
}
