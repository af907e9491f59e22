package models

// ConversationKey identifies one chat thread by its unordered participant
// pair. The zero value is not a valid key.
type ConversationKey struct {
	// A and B are the participant ids in canonical (lexicographic) order.
	A string
	B string
}

// KeyOf returns the canonical key for the pair (a, b); KeyOf(a, b) equals
// KeyOf(b, a).
func KeyOf(a, b string) ConversationKey {
	if b < a {
		a, b = b, a
	}
	return ConversationKey{A: a, B: b}
}

// Contains reports whether id is one of the two participants.
func (k ConversationKey) Contains(id string) bool { return id == k.A || id == k.B }

// Other returns the participant that is not self, or "" when self is not a
// participant.
func (k ConversationKey) Other(self string) string {
	switch self {
	case k.A:
		return k.B
	case k.B:
		return k.A
	}
	return ""
}

// Matches reports whether a sender/receiver pair addresses this
// conversation, in either direction.
func (k ConversationKey) Matches(sender, receiver string) bool {
	return KeyOf(sender, receiver) == k
}

// String renders the key in a stable form usable as a storage key.
func (k ConversationKey) String() string { return k.A + "|" + k.B }
