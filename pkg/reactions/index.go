// Package reactions keeps the secondary messageId -> reactions index. No
// reconciliation here: reactions are fetched on conversation switch and
// appended locally on successful add. Live push merging is a known gap.
package reactions

import (
	"context"
	"sync"

	"heartlink/pkg/models"
)

// API is the slice of the REST client the index needs.
type API interface {
	FetchReactions(ctx context.Context, a, b string) ([]models.Reaction, error)
	AddReaction(ctx context.Context, r models.Reaction) error
}

// Index maps message ids to their reactions for the loaded conversation.
type Index struct {
	api API

	mu        sync.Mutex
	byMessage map[string][]models.Reaction
}

func NewIndex(api API) *Index {
	return &Index{api: api, byMessage: make(map[string][]models.Reaction)}
}

// Load replaces the index with the reactions for the (a, b) conversation.
// On failure the index is cleared and the error returned; the caller
// decides whether to surface a warning.
func (x *Index) Load(ctx context.Context, a, b string) error {
	rs, err := x.api.FetchReactions(ctx, a, b)

	x.mu.Lock()
	defer x.mu.Unlock()
	x.byMessage = make(map[string][]models.Reaction)
	if err != nil {
		return err
	}
	for _, r := range rs {
		x.byMessage[r.MessageID] = append(x.byMessage[r.MessageID], r)
	}
	return nil
}

// Add posts the reaction and appends it locally on success.
func (x *Index) Add(ctx context.Context, r models.Reaction) error {
	if err := x.api.AddReaction(ctx, r); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.byMessage[r.MessageID] = append(x.byMessage[r.MessageID], r)
	return nil
}

// ForMessage returns a copy of the reactions attached to messageID.
func (x *Index) ForMessage(messageID string) []models.Reaction {
	x.mu.Lock()
	defer x.mu.Unlock()
	rs := x.byMessage[messageID]
	if len(rs) == 0 {
		return nil
	}
	out := make([]models.Reaction, len(rs))
	copy(out, rs)
	return out
}

// Remove drops one reaction locally. The collaborator contract has no
// unreact endpoint yet, so removal is representable but not propagated.
func (x *Index) Remove(messageID, userID, emoji string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	rs := x.byMessage[messageID]
	for i, r := range rs {
		if r.UserID == userID && r.Emoji == emoji {
			x.byMessage[messageID] = append(rs[:i], rs[i+1:]...)
			return true
		}
	}
	return false
}
