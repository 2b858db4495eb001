// Package session keeps the per-chat state needed to concatenate two photos sent in separate messages.
//
// A chat is Idle until a photo captioned "concat" arrives, then it waits for a second
// photo (AwaitingSecondImage). The session returns to Idle after the concatenation,
// after any other caption, after a failed second photo, or once it expires.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/polybot/polybot/internal/cache"
)

// State is the concat state of a chat
type State int

const (
	// Idle is the state of a chat without a pending concatenation
	Idle State = iota
	// AwaitingSecondImage is the state of a chat that sent the first photo of a concatenation
	AwaitingSecondImage
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingSecondImage:
		return "awaiting-second-image"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultTTL is how long a chat waits for the second photo
const DefaultTTL = 10 * time.Minute

// Session is the state of one chat
type Session struct {
	State      State     `json:"state"`
	FirstImage string    `json:"first_image,omitempty"` // Storage key of the first photo
	ExpiresAt  time.Time `json:"expires_at"`
}

// Store keeps sessions in a cache provider, keyed by chat id
type Store struct {
	Provider cache.Provider
	TTL      time.Duration
	Now      func() time.Time
}

// NewStore returns a Store with the given ttl, DefaultTTL when ttl is zero
func NewStore(provider cache.Provider, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Store{
		Provider: provider,
		TTL:      ttl,
		Now:      time.Now,
	}
}

func key(chatID int64) string {
	return fmt.Sprintf("session:%d", chatID)
}

// Get returns the session of a chat. Unknown and expired sessions are Idle.
func (s *Store) Get(ctx context.Context, chatID int64) (Session, error) {
	data, err := s.Provider.Get(ctx, key(chatID))
	if errors.Is(err, cache.ErrNotFound) {
		return Session{State: Idle}, nil
	}
	if err != nil {
		return Session{}, err
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("error decoding session for chat %d: %w", chatID, err)
	}

	if session.State != Idle && !s.Now().Before(session.ExpiresAt) {
		return Session{State: Idle}, s.Provider.Delete(ctx, key(chatID))
	}

	return session, nil
}

// AwaitSecondImage records the first photo of a concatenation
func (s *Store) AwaitSecondImage(ctx context.Context, chatID int64, firstImage string) error {
	data, err := json.Marshal(Session{
		State:      AwaitingSecondImage,
		FirstImage: firstImage,
		ExpiresAt:  s.Now().Add(s.TTL),
	})
	if err != nil {
		return err
	}

	return s.Provider.Set(ctx, key(chatID), data, s.TTL)
}

// Reset returns a chat to Idle
func (s *Store) Reset(ctx context.Context, chatID int64) error {
	return s.Provider.Delete(ctx, key(chatID))
}
