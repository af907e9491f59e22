package models

import "time"

// MessageStatus tracks a message's lifecycle relative to the server.
type MessageStatus string

const (
	// StatusPending marks a locally synthesized placeholder that has not
	// been confirmed by the server yet.
	StatusPending MessageStatus = "pending"
	// StatusConfirmed marks a message that matches a server record.
	StatusConfirmed MessageStatus = "confirmed"
	// StatusFailed marks a send the server rejected.
	StatusFailed MessageStatus = "failed"
)

// Message is one chat message between two users. JSON tags follow the REST
// collaborator's wire shape (camelCase).
type Message struct {
	// ID is server-assigned once persisted; placeholders carry a synthetic
	// process-unique id of the form temp-<unixnano>-<rand>.
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	// Content and AttachmentURL are both optional but at least one must be
	// present for a message to be sendable.
	Content       string    `json:"content,omitempty"`
	AttachmentURL string    `json:"attachmentUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	// Status is local bookkeeping; the server never sends it.
	Status MessageStatus `json:"-"`
	// TempID carries the client placeholder id when the backend happens to
	// echo it back. Reconciliation treats it as an opportunistic hint only;
	// the backend contract does not promise it.
	TempID string `json:"tempId,omitempty"`
}

// IsPlaceholder reports whether the message is an unconfirmed local send.
func (m Message) IsPlaceholder() bool { return m.Status == StatusPending }

// HasBody reports whether the message carries any content at all.
func (m Message) HasBody() bool { return m.Content != "" || m.AttachmentURL != "" }

// Key returns the conversation the message belongs to, regardless of
// direction.
func (m Message) Key() ConversationKey { return KeyOf(m.SenderID, m.ReceiverID) }
