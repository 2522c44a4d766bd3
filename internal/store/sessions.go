package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carbonledger/analyst/internal/emissions"
)

// LoadSession returns the session with its messages in order, or nil when it
// does not exist.
func (s *Store) LoadSession(ctx context.Context, sessionID string) (*emissions.ChatSession, error) {
	var (
		sess    emissions.ChatSession
		project *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, organization_id, project_id, created_at, updated_at
		FROM chat_sessions WHERE id = $1`,
		sessionID,
	).Scan(&sess.ID, &sess.OrganizationID, &project, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess.ProjectID = deref(project)

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, role, content, attachment, created_at
		FROM chat_messages WHERE session_id = $1
		ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m    emissions.ChatMessage
			role string
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.Attachment, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = emissions.Role(role)
		m.Timestamp = m.Timestamp.UTC()
		sess.Messages = append(sess.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return &sess, nil
}

// AppendMessages writes messages to the session in one transaction, creating
// the session row on first use.
func (s *Store) AppendMessages(ctx context.Context, session emissions.ChatSession, messages []emissions.ChatMessage) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO chat_sessions (id, organization_id, project_id, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		session.ID, session.OrganizationID, session.ProjectID, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	for _, m := range messages {
		id, err := uuid.Parse(m.ID)
		if err != nil {
			return fmt.Errorf("parse message id %q: %w", m.ID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO chat_messages (id, session_id, role, content, attachment, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, session.ID, string(m.Role), m.Content, m.Attachment, m.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
