package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

var _ domain.ReactionRepository = (*Store)(nil)

// AddReaction inserts a reaction; duplicates are conflicts.
func (s *Store) AddReaction(ctx context.Context, r *domain.Reaction) error {
	r.CreatedAt = now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reactions (message_id, emoji, sender, created_at)
			VALUES (?, ?, ?, ?)
		`, r.MessageID, r.Emoji, r.Sender, r.CreatedAt)
		return err
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("reaction exists: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert reaction: %w", err)
	}
	return nil
}

// RemoveReaction deletes a reaction; missing rows are not found.
func (s *Store) RemoveReaction(ctx context.Context, messageID, emoji, sender string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM reactions WHERE message_id = ? AND emoji = ? AND sender = ?
		`, messageID, emoji, sender)
		if err != nil {
			return fmt.Errorf("delete reaction: %w", err)
		}
		return requireRowAffected(res)
	})
}

// ListRoomReactions returns every reaction in a room, oldest first.
func (s *Store) ListRoomReactions(ctx context.Context, roomID string) ([]*domain.Reaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.message_id, r.emoji, r.sender, r.created_at
		FROM reactions r
		JOIN messages m ON m.id = r.message_id
		WHERE m.room_id = ?
		ORDER BY r.created_at ASC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list room reactions: %w", err)
	}
	defer rows.Close()
	return scanReactions(rows)
}

// ListMessageReactions returns a message's reactions, oldest first.
func (s *Store) ListMessageReactions(ctx context.Context, messageID string) ([]*domain.Reaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, emoji, sender, created_at
		FROM reactions WHERE message_id = ?
		ORDER BY created_at ASC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list message reactions: %w", err)
	}
	defer rows.Close()
	return scanReactions(rows)
}

func scanReactions(rows *sql.Rows) ([]*domain.Reaction, error) {
	var res []*domain.Reaction
	for rows.Next() {
		r := &domain.Reaction{}
		if err := rows.Scan(&r.MessageID, &r.Emoji, &r.Sender, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		res = append(res, r)
	}
	return res, rows.Err()
}
