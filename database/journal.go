package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"analyze-service/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound covers both missing entries and entries owned by someone else
	ErrNotFound = errors.New("journal entry not found")
	// ErrUnavailable wraps every storage failure
	ErrUnavailable = errors.New("journal store unavailable")
)

const schema = `CREATE TABLE IF NOT EXISTS journal_entries (
	id CHAR(36) NOT NULL PRIMARY KEY,
	user_id VARCHAR(128) NOT NULL,
	entry_date VARCHAR(10) NOT NULL,
	text TEXT NOT NULL,
	created_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	updated_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	INDEX idx_journal_user_created (user_id, created_at)
)`

// JournalStore persists journal entries
type JournalStore struct {
	db  *sql.DB
	now func() time.Time
	ids func() string
}

func NewJournalStore(db *sql.DB) *JournalStore {
	return &JournalStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		ids: uuid.NewString,
	}
}

// EnsureSchema creates the journal table if it does not exist
func (s *JournalStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: create journal_entries: %v", ErrUnavailable, err)
	}
	return nil
}

// List returns the user's entries, newest first
func (s *JournalStore) List(ctx context.Context, userID string) ([]models.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, entry_date, text, created_at
		FROM journal_entries WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	entries := []models.JournalEntry{}
	for rows.Next() {
		var e models.JournalEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Date, &e.Text, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return entries, nil
}

func (s *JournalStore) Create(ctx context.Context, userID, date, text string) (*models.JournalEntry, error) {
	e := &models.JournalEntry{
		ID:        s.ids(),
		UserID:    userID,
		Date:      date,
		Text:      text,
		CreatedAt: s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journal_entries (id, user_id, entry_date, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Date, e.Text, e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return e, nil
}

// Update replaces the text of one of the user's entries
func (s *JournalStore) Update(ctx context.Context, userID, id, text string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE journal_entries SET text = ? WHERE id = ? AND user_id = ?`, text, id, userID)
	return checkAffected(res, err)
}

func (s *JournalStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM journal_entries WHERE id = ? AND user_id = ?`, id, userID)
	return checkAffected(res, err)
}

func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
