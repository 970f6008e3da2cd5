package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/capsule/internal/shared"
)

// ListOptions filters [Repository.List].
type ListOptions struct {
	// CapsulesOnly restricts the list to entries that were sealed.
	CapsulesOnly bool
	// Limit caps the number of entries. Zero means no limit.
	Limit int
}

// Repository persists entries in SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a [Repository] with the given database connection
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new entry with a generated ID
func (r *Repository) Create(e *Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	e.ID = shared.GenerateID()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.UpdatedAt = e.CreatedAt

	query := `
		INSERT INTO entries (id, user_id, title, body, mood, prompt, sealed_until, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, e.ID, e.UserID, e.Title, e.Body, e.Mood, e.Prompt, nullTime(e.SealedUntil), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// Get retrieves one of userID's entries, excluding soft-deleted entries
func (r *Repository) Get(userID, id string) (*Entry, error) {
	query := `
		SELECT id, user_id, title, body, mood, prompt, sealed_until, created_at, updated_at
		FROM entries
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL
	`

	e, err := scanEntry(r.db.QueryRow(query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrEntryNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entry: %w", err)
	}
	return e, nil
}

// Update writes the entry's editable fields and seal
func (r *Repository) Update(e *Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	query := `
		UPDATE entries
		SET title = ?, body = ?, mood = ?, prompt = ?, sealed_until = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, e.Title, e.Body, e.Mood, e.Prompt, nullTime(e.SealedUntil), now, e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if err := expectOne(result, e.ID); err != nil {
		return err
	}

	e.UpdatedAt = now
	return nil
}

// Delete soft-deletes an entry. Sealed capsules cannot be deleted before they open.
func (r *Repository) Delete(userID, id string, now time.Time) error {
	e, err := r.Get(userID, id)
	if err != nil {
		return err
	}
	if e.IsSealed(now) {
		return fmt.Errorf("%w: opens %s", shared.ErrEntrySealed, e.SealedUntil.Format(time.DateOnly))
	}

	query := `
		UPDATE entries
		SET deleted_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now.UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return expectOne(result, id)
}

// List retrieves userID's entries, newest first
func (r *Repository) List(userID string, opts ListOptions) ([]*Entry, error) {
	query := `
		SELECT id, user_id, title, body, mood, prompt, sealed_until, created_at, updated_at
		FROM entries
		WHERE user_id = ? AND deleted_at IS NULL
	`
	args := []any{userID}

	if opts.CapsulesOnly {
		query += " AND sealed_until IS NOT NULL"
	}
	query += " ORDER BY created_at DESC, id ASC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Seal loads an entry, seals it until the given time, and saves it.
func (r *Repository) Seal(userID, id string, until, now time.Time) (*Entry, error) {
	e, err := r.Get(userID, id)
	if err != nil {
		return nil, err
	}
	if err := e.Seal(until, now); err != nil {
		return nil, err
	}
	if err := r.Update(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Unseal loads an entry, clears an expired seal, and saves it.
func (r *Repository) Unseal(userID, id string, now time.Time) (*Entry, error) {
	e, err := r.Get(userID, id)
	if err != nil {
		return nil, err
	}
	if err := e.Unseal(now); err != nil {
		return nil, err
	}
	if err := r.Update(e); err != nil {
		return nil, err
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e           Entry
		sealedUntil sql.NullTime
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Body, &e.Mood, &e.Prompt, &sealedUntil, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sealedUntil.Valid {
		t := sealedUntil.Time.UTC()
		e.SealedUntil = &t
	}
	return &e, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func expectOne(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrEntryNotFound, id)
	}
	return nil
}
