// Package history fetches the authoritative message set for one
// conversation and normalizes it into a sorted slice. Deduplication is not
// done here; the conversation store owns that once history meets live and
// optimistic data.
package history

import (
	"context"
	"encoding/json"
	"sort"

	"heartlink/pkg/logger"
	"heartlink/pkg/models"
	"heartlink/pkg/telemetry"
)

// API is the slice of the REST client the loader needs.
type API interface {
	FetchMessages(ctx context.Context, me, peer string) ([]byte, error)
}

// Loader fetches and normalizes conversation history.
type Loader struct {
	api API
}

func NewLoader(api API) *Loader { return &Loader{api: api} }

// Load returns the history for the (me, peer) pair, ascending by createdAt.
// A chat with no history is a valid state, so any failure resolves to an
// empty slice with a warning rather than an error.
func (l *Loader) Load(ctx context.Context, me, peer string) []models.Message {
	raw, err := l.api.FetchMessages(ctx, me, peer)
	if err != nil {
		logger.Warn("history_fetch_failed", "me", me, "peer", peer, "error", err)
		telemetry.HistoryLoads.WithLabelValues("error").Inc()
		return nil
	}
	msgs, err := normalize(raw)
	if err != nil {
		logger.Warn("history_malformed_response", "me", me, "peer", peer, "error", err)
		telemetry.HistoryLoads.WithLabelValues("malformed").Inc()
		return nil
	}

	key := models.KeyOf(me, peer)
	out := msgs[:0]
	for _, m := range msgs {
		// the collaborator may return a superset; keep only this pair
		if !key.Matches(m.SenderID, m.ReceiverID) {
			continue
		}
		m.Status = models.StatusConfirmed
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	telemetry.HistoryLoads.WithLabelValues("ok").Inc()
	return out
}

// normalize accepts the three response shapes seen in the wild: a bare
// array, {"messages": [...]}, or some other wrapper object carrying a
// messages-like array under one of its keys.
func normalize(raw []byte) ([]models.Message, error) {
	var direct []models.Message
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, err
	}
	if inner, ok := wrapper["messages"]; ok {
		var msgs []models.Message
		if err := json.Unmarshal(inner, &msgs); err != nil {
			return nil, err
		}
		return msgs, nil
	}
	// last resort: any key whose value decodes as a message array
	for _, inner := range wrapper {
		var msgs []models.Message
		if err := json.Unmarshal(inner, &msgs); err == nil && len(msgs) > 0 {
			return msgs, nil
		}
	}
	return nil, nil
}
