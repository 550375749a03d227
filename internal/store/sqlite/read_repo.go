package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

var (
	_ domain.ReadPositionRepository = (*Store)(nil)
	_ domain.BookmarkRepository     = (*Store)(nil)
	_ domain.StatsRepository        = (*Store)(nil)
)

// SetReadPosition advances a sender's read position. Moves backwards are
// silently ignored; the stored (possibly unchanged) position is returned
// together with whether the row actually advanced.
func (s *Store) SetReadPosition(ctx context.Context, roomID, sender string, seq int64) (*domain.ReadPosition, bool, error) {
	ts := now()
	var advanced bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO read_positions (room_id, sender, last_read_seq, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(room_id, sender) DO UPDATE SET
				last_read_seq = excluded.last_read_seq,
				updated_at = excluded.updated_at
			WHERE excluded.last_read_seq > read_positions.last_read_seq
		`, roomID, sender, seq, ts)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		advanced = n > 0
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("set read position: %w", err)
	}

	rp := &domain.ReadPosition{}
	err = s.db.QueryRowContext(ctx, `
		SELECT room_id, sender, last_read_seq, updated_at
		FROM read_positions WHERE room_id = ? AND sender = ?
	`, roomID, sender).Scan(&rp.RoomID, &rp.Sender, &rp.LastReadSeq, &rp.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("get read position: %w", err)
	}
	return rp, advanced, nil
}

// ListRoomReadPositions returns every sender's read position in a room.
func (s *Store) ListRoomReadPositions(ctx context.Context, roomID string) ([]*domain.ReadPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id, sender, last_read_seq, updated_at
		FROM read_positions WHERE room_id = ?
		ORDER BY sender ASC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list room read positions: %w", err)
	}
	defer rows.Close()
	return scanReadPositions(rows)
}

// ListSenderReadPositions returns a sender's read positions across rooms.
func (s *Store) ListSenderReadPositions(ctx context.Context, sender string) ([]*domain.ReadPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id, sender, last_read_seq, updated_at
		FROM read_positions WHERE sender = ?
	`, sender)
	if err != nil {
		return nil, fmt.Errorf("list sender read positions: %w", err)
	}
	defer rows.Close()
	return scanReadPositions(rows)
}

func scanReadPositions(rows *sql.Rows) ([]*domain.ReadPosition, error) {
	var res []*domain.ReadPosition
	for rows.Next() {
		rp := &domain.ReadPosition{}
		if err := rows.Scan(&rp.RoomID, &rp.Sender, &rp.LastReadSeq, &rp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan read position: %w", err)
		}
		res = append(res, rp)
	}
	return res, rows.Err()
}

// SetBookmark bookmarks a room for a sender; idempotent.
func (s *Store) SetBookmark(ctx context.Context, roomID, sender string) (*domain.Bookmark, error) {
	ts := now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bookmarks (room_id, sender, bookmarked_at)
			VALUES (?, ?, ?)
			ON CONFLICT(room_id, sender) DO NOTHING
		`, roomID, sender, ts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("set bookmark: %w", err)
	}

	b := &domain.Bookmark{}
	err = s.db.QueryRowContext(ctx, `
		SELECT room_id, sender, bookmarked_at
		FROM bookmarks WHERE room_id = ? AND sender = ?
	`, roomID, sender).Scan(&b.RoomID, &b.Sender, &b.BookmarkedAt)
	if err != nil {
		return nil, fmt.Errorf("get bookmark: %w", err)
	}
	return b, nil
}

// DeleteBookmark removes a bookmark.
func (s *Store) DeleteBookmark(ctx context.Context, roomID, sender string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM bookmarks WHERE room_id = ? AND sender = ?`, roomID, sender)
		if err != nil {
			return fmt.Errorf("delete bookmark: %w", err)
		}
		return requireRowAffected(res)
	})
}

// ListBookmarks returns a sender's bookmarks, newest first.
func (s *Store) ListBookmarks(ctx context.Context, sender string) ([]*domain.Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id, sender, bookmarked_at
		FROM bookmarks WHERE sender = ?
		ORDER BY bookmarked_at DESC
	`, sender)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	var res []*domain.Bookmark
	for rows.Next() {
		b := &domain.Bookmark{}
		if err := rows.Scan(&b.RoomID, &b.Sender, &b.BookmarkedAt); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

// GetStats returns aggregate row counts for the stats endpoint.
func (s *Store) GetStats(ctx context.Context) (*domain.Stats, error) {
	st := &domain.Stats{}
	queries := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM rooms`, &st.Rooms},
		{`SELECT COUNT(*) FROM messages`, &st.Messages},
		{`SELECT COUNT(*) FROM files`, &st.Files},
		{`SELECT COUNT(*) FROM profiles`, &st.Profiles},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("get stats: %w", err)
		}
	}
	return st, nil
}
