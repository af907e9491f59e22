package models

import "time"

// Session is the locally persisted sign-in record the identity resolver
// reads. It survives process restarts in the session store.
type Session struct {
	UserID     string    `json:"userId"`
	Token      string    `json:"token,omitempty"`
	SignedInAt time.Time `json:"signedInAt"`
}

// Profile is the snapshot of a user profile the broader app caches locally
// for quick rendering. The sync engine only stores and expires it; the
// fields mirror what the profile endpoints return.
type Profile struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	FetchedAt   time.Time `json:"fetchedAt"`
}
