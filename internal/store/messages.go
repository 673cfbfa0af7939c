package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/models"
)

func (s *Store) CreateMessage(ctx context.Context, m *models.Message) error {
	query := `
		INSERT INTO messages (first_name, last_name, email, phone, subject, message, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		m.FirstName, m.LastName, m.Email, m.Phone, m.Subject, m.Body, m.Status,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

func (s *Store) ListMessages(ctx context.Context, status string) ([]models.Message, error) {
	messages := []models.Message{}
	var err error
	if status == "" {
		err = s.db.SelectContext(ctx, &messages, "SELECT * FROM messages ORDER BY created_at DESC, id DESC")
	} else {
		err = s.db.SelectContext(ctx, &messages,
			"SELECT * FROM messages WHERE status = $1 ORDER BY created_at DESC, id DESC", status)
	}
	return messages, err
}

// UpdateMessageStatus sets the status; notes replace the stored admin notes
// only when non-nil.
func (s *Store) UpdateMessageStatus(ctx context.Context, id int64, status string, notes *string) (*models.Message, error) {
	var m models.Message
	err := s.db.GetContext(ctx, &m, `
		UPDATE messages SET status = $1, admin_notes = COALESCE($2, admin_notes), updated_at = NOW()
		WHERE id = $3 RETURNING *`, status, notes, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
