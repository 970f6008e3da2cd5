package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/capsule/internal/shared"
)

// Mood values suggested by the UI. Any string is accepted.
var Moods = []string{"great", "good", "okay", "low", "rough"}

// Entry is a single journal entry.
type Entry struct {
	ID          string     `json:"id" yaml:"id"`
	UserID      string     `json:"user_id" yaml:"user_id"`
	Title       string     `json:"title" yaml:"title"`
	Body        string     `json:"body" yaml:"body"`
	Mood        string     `json:"mood,omitempty" yaml:"mood,omitempty"`
	Prompt      string     `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	SealedUntil *time.Time `json:"sealed_until,omitempty" yaml:"sealed_until,omitempty"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`
}

// NewEntry creates an unsaved entry for userID.
func NewEntry(userID, title, body string) *Entry {
	now := time.Now().UTC()
	return &Entry{UserID: userID, Title: title, Body: body, CreatedAt: now, UpdatedAt: now}
}

// Validate checks that the entry can be stored.
func (e *Entry) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("%w: entry has no owner", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(e.Title) == "" && strings.TrimSpace(e.Body) == "" {
		return fmt.Errorf("%w: entry needs a title or a body", shared.ErrInvalidInput)
	}
	return nil
}

// Seal turns the entry into a time capsule that opens at until.
func (e *Entry) Seal(until, now time.Time) error {
	if !until.After(now) {
		return fmt.Errorf("%w: %s is not in the future", shared.ErrInvalidSeal, until.Format(time.DateOnly))
	}
	if e.IsSealed(now) {
		return fmt.Errorf("%w: already sealed until %s", shared.ErrEntrySealed, e.SealedUntil.Format(time.DateOnly))
	}
	u := until.UTC()
	e.SealedUntil = &u
	return nil
}

// IsSealed reports whether the capsule is still closed at now.
func (e *Entry) IsSealed(now time.Time) bool {
	return e.SealedUntil != nil && now.Before(*e.SealedUntil)
}

// IsCapsule reports whether the entry was ever sealed.
func (e *Entry) IsCapsule() bool {
	return e.SealedUntil != nil
}

// Unseal clears the seal once its date has passed.
func (e *Entry) Unseal(now time.Time) error {
	if e.SealedUntil == nil {
		return fmt.Errorf("%w: entry is not a capsule", shared.ErrInvalidSeal)
	}
	if e.IsSealed(now) {
		return fmt.Errorf("%w: opens %s", shared.ErrEntrySealed, e.SealedUntil.Format(time.DateOnly))
	}
	e.SealedUntil = nil
	return nil
}

// Visible returns a copy safe to display at now: a sealed body is replaced with a placeholder.
func (e *Entry) Visible(now time.Time) Entry {
	v := *e
	if e.IsSealed(now) {
		v.Body = fmt.Sprintf("[sealed until %s]", e.SealedUntil.Format(time.DateOnly))
	}
	return v
}

// Summary returns the title or the first line of the body, truncated to n runes.
func (e *Entry) Summary(n int) string {
	s := strings.TrimSpace(e.Title)
	if s == "" {
		s, _, _ = strings.Cut(strings.TrimSpace(e.Body), "\n")
	}
	r := []rune(s)
	if n > 0 && len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
