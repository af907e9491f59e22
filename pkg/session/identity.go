package session

import (
	"errors"
	"fmt"
)

// ErrSignedOut is returned when no session record exists.
var ErrSignedOut = errors.New("no signed-in user")

// Resolver derives the local actor's identity from the persisted session
// record. It is a small injectable type so callers do not reach into the
// store directly.
type Resolver struct{}

// LocalUserID returns the stable id of the signed-in user.
func (Resolver) LocalUserID() (string, error) {
	s, err := LoadSession()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrSignedOut
		}
		return "", fmt.Errorf("load session: %w", err)
	}
	if s.UserID == "" {
		return "", ErrSignedOut
	}
	return s.UserID, nil
}
