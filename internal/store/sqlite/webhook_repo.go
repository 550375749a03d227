package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

var _ domain.WebhookRepository = (*Store)(nil)

// CreateOutgoingWebhook inserts a new outgoing webhook subscription.
func (s *Store) CreateOutgoingWebhook(ctx context.Context, w *domain.OutgoingWebhook) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.CreatedAt = now()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outgoing_webhooks (id, room_id, url, events, secret, active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, w.ID, nullStr(w.RoomID), w.URL, strings.Join(w.Events, ","),
			nullStr(w.Secret), w.Active, w.CreatedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert outgoing webhook: %w", err)
	}
	return nil
}

// ListOutgoingWebhooks lists subscriptions; a nil roomID lists the global ones.
func (s *Store) ListOutgoingWebhooks(ctx context.Context, roomID *string) ([]*domain.OutgoingWebhook, error) {
	query := `SELECT id, room_id, url, events, secret, active, created_at FROM outgoing_webhooks`
	args := []any{}
	if roomID != nil {
		query += ` WHERE room_id = ?`
		args = append(args, *roomID)
	} else {
		query += ` WHERE room_id IS NULL`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list outgoing webhooks: %w", err)
	}
	defer rows.Close()
	return scanOutgoingWebhooks(rows)
}

// ListActiveOutgoingWebhooks returns every active subscription for dispatch.
func (s *Store) ListActiveOutgoingWebhooks(ctx context.Context) ([]*domain.OutgoingWebhook, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, url, events, secret, active, created_at
		FROM outgoing_webhooks WHERE active = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("list active outgoing webhooks: %w", err)
	}
	defer rows.Close()
	return scanOutgoingWebhooks(rows)
}

// UpdateOutgoingWebhook persists url/events/secret/active changes.
func (s *Store) UpdateOutgoingWebhook(ctx context.Context, w *domain.OutgoingWebhook) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE outgoing_webhooks
			SET url = ?, events = ?, secret = ?, active = ?
			WHERE id = ?
		`, w.URL, strings.Join(w.Events, ","), nullStr(w.Secret), w.Active, w.ID)
		if err != nil {
			return fmt.Errorf("update outgoing webhook: %w", err)
		}
		return requireRowAffected(res)
	})
}

// DeleteOutgoingWebhook removes a subscription scoped to its room (or the
// global scope for nil).
func (s *Store) DeleteOutgoingWebhook(ctx context.Context, roomID *string, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var res sql.Result
		var err error
		if roomID != nil {
			res, err = tx.ExecContext(ctx,
				`DELETE FROM outgoing_webhooks WHERE id = ? AND room_id = ?`, id, *roomID)
		} else {
			res, err = tx.ExecContext(ctx,
				`DELETE FROM outgoing_webhooks WHERE id = ? AND room_id IS NULL`, id)
		}
		if err != nil {
			return fmt.Errorf("delete outgoing webhook: %w", err)
		}
		return requireRowAffected(res)
	})
}

// CreateIncomingWebhook inserts a new incoming webhook.
func (s *Store) CreateIncomingWebhook(ctx context.Context, w *domain.IncomingWebhook) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.CreatedAt = now()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO incoming_webhooks (id, room_id, name, token, active, created_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, w.ID, w.RoomID, w.Name, w.Token, w.Active, nullStr(w.CreatedBy), w.CreatedAt)
		return err
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("token collision: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert incoming webhook: %w", err)
	}
	return nil
}

// ListIncomingWebhooks lists a room's incoming webhooks.
func (s *Store) ListIncomingWebhooks(ctx context.Context, roomID string) ([]*domain.IncomingWebhook, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, name, token, active, created_by, created_at
		FROM incoming_webhooks WHERE room_id = ?
		ORDER BY created_at ASC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list incoming webhooks: %w", err)
	}
	defer rows.Close()

	var res []*domain.IncomingWebhook
	for rows.Next() {
		w, err := scanIncomingWebhook(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

// GetIncomingWebhookByToken resolves a token to its webhook.
func (s *Store) GetIncomingWebhookByToken(ctx context.Context, token string) (*domain.IncomingWebhook, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, room_id, name, token, active, created_by, created_at
		FROM incoming_webhooks WHERE token = ?
	`, token)
	return scanIncomingWebhook(row)
}

// UpdateIncomingWebhook persists name/active changes.
func (s *Store) UpdateIncomingWebhook(ctx context.Context, w *domain.IncomingWebhook) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE incoming_webhooks SET name = ?, active = ? WHERE id = ? AND room_id = ?
		`, w.Name, w.Active, w.ID, w.RoomID)
		if err != nil {
			return fmt.Errorf("update incoming webhook: %w", err)
		}
		return requireRowAffected(res)
	})
}

// DeleteIncomingWebhook removes an incoming webhook scoped to its room.
func (s *Store) DeleteIncomingWebhook(ctx context.Context, roomID, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM incoming_webhooks WHERE id = ? AND room_id = ?`, id, roomID)
		if err != nil {
			return fmt.Errorf("delete incoming webhook: %w", err)
		}
		return requireRowAffected(res)
	})
}

func scanOutgoingWebhooks(rows *sql.Rows) ([]*domain.OutgoingWebhook, error) {
	var res []*domain.OutgoingWebhook
	for rows.Next() {
		w := &domain.OutgoingWebhook{}
		var roomID, secret sql.NullString
		var events string
		if err := rows.Scan(&w.ID, &roomID, &w.URL, &events, &secret, &w.Active, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outgoing webhook: %w", err)
		}
		w.RoomID = strPtr(roomID)
		w.Secret = strPtr(secret)
		if events != "" {
			w.Events = strings.Split(events, ",")
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func scanIncomingWebhook(row rowScanner) (*domain.IncomingWebhook, error) {
	w := &domain.IncomingWebhook{}
	var createdBy sql.NullString
	err := row.Scan(&w.ID, &w.RoomID, &w.Name, &w.Token, &w.Active, &createdBy, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan incoming webhook: %w", err)
	}
	w.CreatedBy = strPtr(createdBy)
	return w, nil
}
