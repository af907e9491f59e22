// Package send orchestrates one outgoing message: optimistic placeholder,
// REST call, and the race between the REST response and the push echo.
package send

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"heartlink/pkg/convo"
	"heartlink/pkg/logger"
	"heartlink/pkg/models"
	"heartlink/pkg/restapi"
	"heartlink/pkg/telemetry"
)

// API is the slice of the REST client the coordinator needs.
type API interface {
	SendMessage(ctx context.Context, req restapi.SendRequest) (models.Message, error)
}

// ErrEmptyMessage rejects sends with neither content nor attachment.
var ErrEmptyMessage = errors.New("message needs content or an attachment")

// DefaultConfirmTimeout is how long a send waits for a racing push echo
// before force-resolving its placeholder from the REST payload.
const DefaultConfirmTimeout = 5 * time.Second

// Coordinator performs sends. It holds configuration only; no state
// survives between calls.
type Coordinator struct {
	store          *convo.Store
	api            API
	confirmTimeout time.Duration
}

// New returns a coordinator writing into store. confirmTimeout <= 0
// selects the default.
func New(store *convo.Store, api API, confirmTimeout time.Duration) *Coordinator {
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultConfirmTimeout
	}
	return &Coordinator{store: store, api: api, confirmTimeout: confirmTimeout}
}

// Send delivers one message from sender to the other participant of key.
//
// The placeholder is inserted before any network I/O so the UI gets
// immediate feedback. Confirmation then races: the push echo may land
// before or after the REST response, and either order must leave exactly
// one confirmed message. The merge's id dedup makes the second arrival a
// no-op; the fallback timer covers the case where the push echo never
// arrives at all.
func (c *Coordinator) Send(ctx context.Context, key models.ConversationKey, sender, content, attachmentURL string) error {
	if content == "" && attachmentURL == "" {
		return ErrEmptyMessage
	}
	receiver := key.Other(sender)
	if receiver == "" {
		return fmt.Errorf("sender %s is not a participant of %s", sender, key.String())
	}

	tempID := newTempID()
	placeholder := models.Message{
		ID:            tempID,
		TempID:        tempID,
		SenderID:      sender,
		ReceiverID:    receiver,
		Content:       content,
		AttachmentURL: attachmentURL,
		CreatedAt:     time.Now().UTC(),
		Status:        models.StatusPending,
	}
	c.store.Merge(key, placeholder)

	resp, err := c.api.SendMessage(ctx, restapi.SendRequest{
		SenderID:      sender,
		ReceiverID:    receiver,
		Content:       content,
		AttachmentURL: attachmentURL,
		TempID:        tempID,
	})
	if err != nil {
		// rejected send: drop the placeholder, surface the error, no
		// automatic retry (manual resend only)
		c.store.Fail(key, tempID)
		telemetry.SendsTotal.WithLabelValues("failed").Inc()
		logger.Warn("send_rejected", "key", key.String(), "error", err)
		return fmt.Errorf("send message: %w", err)
	}

	// A cooperative backend echoes tempId back and the merge correlates
	// exactly; an opaque one does not, and the content heuristic applies.
	c.store.Merge(key, resp)

	// Fallback: if the merge above could not claim the placeholder (server
	// clock far outside the reconciliation window) and no push echo ever
	// does, resolve it from the REST payload rather than leaving it
	// Pending indefinitely. The timer does not abort anything; it only
	// stops waiting.
	authoritative := resp
	time.AfterFunc(c.confirmTimeout, func() {
		if c.store.ForceConfirm(key, tempID, authoritative) {
			logger.Info("send_confirm_fallback", "key", key.String(), "id", authoritative.ID)
		}
	})

	telemetry.SendsTotal.WithLabelValues("ok").Inc()
	return nil
}

// newTempID synthesizes a process-unique placeholder id.
func newTempID() string {
	return fmt.Sprintf("temp-%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}
