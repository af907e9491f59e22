// Package convo holds the reconciliation core: the per-conversation message
// list that merges history fetches, optimistic local sends and live push
// events into one deduplicated, createdAt-ordered view.
package convo

import (
	"sort"
	"sync"
	"time"

	"heartlink/pkg/logger"
	"heartlink/pkg/models"
	"heartlink/pkg/telemetry"
)

// DefaultReconcileWindow bounds how far apart a placeholder and its server
// echo may be and still be treated as the same message.
const DefaultReconcileWindow = 10 * time.Second

// Store is the single writer for conversation state. All mutation funnels
// through Merge/Fail/ForceConfirm under one mutex, which is the Go
// rendering of the serialized event loop the merge algorithm assumes.
//
// Limitation, not an accident: only the active conversation accepts
// merges. Push events for other peers are counted and dropped, so a
// background conversation can lose live messages until it is re-selected
// and its history reloaded. Multi-conversation buffering would slot in at
// the active-key gate below.
type Store struct {
	window time.Duration

	mu        sync.Mutex
	active    models.ConversationKey
	hasActive bool
	msgs      map[models.ConversationKey][]models.Message
	subs      map[models.ConversationKey]map[int]func([]models.Message)
	nextSub   int
	rev       map[models.ConversationKey]uint64

	// deliverMu serializes subscriber notification, which happens outside
	// mu so callbacks cannot deadlock against Snapshot/Subscribe.
	deliverMu sync.Mutex
	delivered map[models.ConversationKey]uint64
}

// NewStore returns a store using the given reconciliation window
// (<= 0 selects DefaultReconcileWindow).
func NewStore(window time.Duration) *Store {
	if window <= 0 {
		window = DefaultReconcileWindow
	}
	return &Store{
		window:    window,
		msgs:      make(map[models.ConversationKey][]models.Message),
		subs:      make(map[models.ConversationKey]map[int]func([]models.Message)),
		rev:       make(map[models.ConversationKey]uint64),
		delivered: make(map[models.ConversationKey]uint64),
	}
}

// SetActive selects the conversation that accepts merges. Existing state
// for other keys is retained in memory for quick re-selection but stops
// receiving events.
func (s *Store) SetActive(key models.ConversationKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = key
	s.hasActive = true
}

// Reset discards the state of one conversation (used when a re-selection
// wants a clean history reload).
func (s *Store) Reset(key models.ConversationKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.msgs, key)
}

// Merge applies a batch of incoming messages to the conversation and
// returns the new authoritative ordered view. Rules, in order, per message:
//
//  1. a message for a non-active conversation is dropped
//  2. an exact id match is a duplicate and is discarded
//  3. a non-placeholder that matches a pending placeholder (same sender,
//     same content, same attachment presence, createdAt within the
//     reconciliation window) confirms that placeholder in place
//  4. anything else is appended (incoming placeholders keep Pending,
//     server records become Confirmed)
//
// The result is re-sorted ascending by createdAt with stable order for
// identical timestamps (arrival order; deliberately weak).
func (s *Store) Merge(key models.ConversationKey, incoming ...models.Message) []models.Message {
	s.mu.Lock()
	if s.hasActive && key != s.active {
		s.mu.Unlock()
		telemetry.ForeignPeerDropped.Add(float64(len(incoming)))
		logger.Debug("merge_dropped_foreign_peer", "key", key.String(), "count", len(incoming))
		return nil
	}

	list := s.msgs[key]
	for _, in := range incoming {
		telemetry.MergesTotal.Inc()
		if in.ID != "" && indexByID(list, in.ID) >= 0 {
			telemetry.DuplicatesDropped.Inc()
			continue
		}
		if !in.IsPlaceholder() {
			if idx := s.matchPlaceholder(list, in); idx >= 0 {
				in.Status = models.StatusConfirmed
				list[idx] = in
				telemetry.PlaceholdersReconciled.Inc()
				continue
			}
			in.Status = models.StatusConfirmed
		}
		list = append(list, in)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	s.msgs[key] = list

	view, rev, subs := s.publish(key, list)
	s.mu.Unlock()

	s.deliver(key, rev, view, subs)
	return view
}

// matchPlaceholder finds a pending placeholder the incoming server message
// confirms. Content matching (rather than a correlation id alone) is what
// tolerates an opaque backend that does not echo client ids; when the
// backend does echo a tempId the exact match is preferred. Two identical
// sends inside the window can theoretically confirm the wrong placeholder;
// accepted as a low-probability ambiguity.
func (s *Store) matchPlaceholder(list []models.Message, in models.Message) int {
	// exact correlation when the backend echoed the placeholder id
	if in.TempID != "" {
		for i, m := range list {
			if m.IsPlaceholder() && m.ID == in.TempID {
				return i
			}
		}
	}
	for i, m := range list {
		if !m.IsPlaceholder() {
			continue
		}
		if m.SenderID != in.SenderID || m.Content != in.Content {
			continue
		}
		if (m.AttachmentURL == "") != (in.AttachmentURL == "") {
			continue
		}
		if absDiff(in.CreatedAt, m.CreatedAt) > s.window {
			continue
		}
		return i
	}
	return -1
}

// Fail removes a pending placeholder after a rejected send. Reports
// whether the placeholder was still present.
func (s *Store) Fail(key models.ConversationKey, tempID string) bool {
	s.mu.Lock()
	list := s.msgs[key]
	idx := -1
	for i, m := range list {
		if m.ID == tempID && m.IsPlaceholder() {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	list = append(list[:idx], list[idx+1:]...)
	s.msgs[key] = list
	view, rev, subs := s.publish(key, list)
	s.mu.Unlock()

	s.deliver(key, rev, view, subs)
	return true
}

// ForceConfirm resolves a placeholder directly with the REST response
// payload when no confirmation was observed inside the fallback window
// (push echo silently lost). It is a no-op when the placeholder has
// already been reconciled, so racing confirmations stay exactly-once.
func (s *Store) ForceConfirm(key models.ConversationKey, tempID string, authoritative models.Message) bool {
	s.mu.Lock()
	list := s.msgs[key]
	idx := -1
	for i, m := range list {
		if m.ID == tempID && m.IsPlaceholder() {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	// drop the placeholder; keep the authoritative record, deduplicated
	// in case a late push already inserted it
	list = append(list[:idx], list[idx+1:]...)
	authoritative.Status = models.StatusConfirmed
	if authoritative.ID == "" || indexByID(list, authoritative.ID) < 0 {
		list = append(list, authoritative)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	s.msgs[key] = list
	telemetry.ForcedConfirms.Inc()
	view, rev, subs := s.publish(key, list)
	s.mu.Unlock()

	s.deliver(key, rev, view, subs)
	return true
}

// Snapshot returns a copy of the conversation's current ordered view.
func (s *Store) Snapshot(key models.ConversationKey) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.msgs[key])
}

// Subscribe registers a callback invoked with the new view after every
// mutation of the conversation. The returned func unsubscribes.
func (s *Store) Subscribe(key models.ConversationKey, fn func([]models.Message)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[key] == nil {
		s.subs[key] = make(map[int]func([]models.Message))
	}
	id := s.nextSub
	s.nextSub++
	s.subs[key][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[key], id)
	}
}

// publish stamps the mutation with the key's next revision and captures
// everything delivery needs; callers must hold s.mu.
func (s *Store) publish(key models.ConversationKey, list []models.Message) ([]models.Message, uint64, []func([]models.Message)) {
	s.rev[key]++
	var subs []func([]models.Message)
	for _, fn := range s.subs[key] {
		subs = append(subs, fn)
	}
	return snapshot(list), s.rev[key], subs
}

// deliver notifies subscribers with the view of one mutation. Mutations
// run under mu but delivery runs outside it, so two mutators can reach
// this point in either order; the revision check drops a view that a
// newer one has already superseded, keeping subscribers monotone.
func (s *Store) deliver(key models.ConversationKey, rev uint64, view []models.Message, subs []func([]models.Message)) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if rev <= s.delivered[key] {
		return
	}
	s.delivered[key] = rev
	for _, fn := range subs {
		fn(view)
	}
}

func indexByID(list []models.Message, id string) int {
	for i, m := range list {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func snapshot(list []models.Message) []models.Message {
	out := make([]models.Message, len(list))
	copy(out, list)
	return out
}

func absDiff(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d
}
