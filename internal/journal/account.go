package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/capsule/internal/shared"
)

// Account is the last known profile for a provider subject.
type Account struct {
	Subject     string
	Email       string
	DisplayName string
	PhotoURL    string
	LastSeenAt  time.Time
}

// AccountRepository remembers who has signed in on this machine.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates an [AccountRepository] with the given database connection
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Touch records a as seen now, inserting or refreshing the row.
func (r *AccountRepository) Touch(a Account) error {
	if a.Subject == "" {
		return fmt.Errorf("%w: account has no subject", shared.ErrInvalidInput)
	}
	if a.LastSeenAt.IsZero() {
		a.LastSeenAt = time.Now().UTC()
	}

	query := `
		INSERT INTO profiles (subject, email, display_name, photo_url, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(subject) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			photo_url = excluded.photo_url,
			last_seen_at = excluded.last_seen_at
	`

	if _, err := r.db.Exec(query, a.Subject, a.Email, a.DisplayName, a.PhotoURL, a.LastSeenAt); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// Get returns the stored account for subject.
func (r *AccountRepository) Get(subject string) (*Account, error) {
	query := `
		SELECT subject, email, display_name, photo_url, last_seen_at
		FROM profiles
		WHERE subject = ?
	`

	var a Account
	err := r.db.QueryRow(query, subject).Scan(&a.Subject, &a.Email, &a.DisplayName, &a.PhotoURL, &a.LastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no account for %s", shared.ErrNotAuthenticated, subject)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return &a, nil
}
