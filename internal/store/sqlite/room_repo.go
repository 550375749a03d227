package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

var _ domain.RoomRepository = (*Store)(nil)

const roomColumns = `id, name, description, created_by, admin_key_hash,
	max_messages, max_age_hours, room_type, archived_at, created_at, updated_at`

// CreateRoom inserts a new room. ID and timestamps are assigned here; the
// caller supplies the admin key hash.
func (s *Store) CreateRoom(ctx context.Context, r *domain.Room) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	ts := now()
	r.CreatedAt = ts
	r.UpdatedAt = ts
	if r.RoomType == "" {
		r.RoomType = domain.RoomTypeStandard
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rooms (id, name, description, created_by, admin_key_hash,
				max_messages, max_age_hours, room_type, archived_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
		`, r.ID, r.Name, nullStr(r.Description), nullStr(r.CreatedBy), r.AdminKeyHash,
			nullInt(r.MaxMessages), nullInt(r.MaxAgeHours), r.RoomType, r.CreatedAt, r.UpdatedAt)
		return err
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("room name %q taken: %w", r.Name, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// GetRoom fetches a room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	return scanRoom(row)
}

// GetRoomByName fetches a non-archived room by name.
func (s *Store) GetRoomByName(ctx context.Context, name string) (*domain.Room, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+roomColumns+` FROM rooms WHERE name = ? AND archived_at IS NULL
	`, name)
	return scanRoom(row)
}

// ListRooms returns standard rooms, newest first. DM rooms never appear
// here. When bookmarkSender is set each room carries its bookmarked flag.
func (s *Store) ListRooms(ctx context.Context, includeArchived bool, bookmarkSender *string) ([]*domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE room_type = ?`
	args := []any{domain.RoomTypeStandard}
	if !includeArchived {
		query += ` AND archived_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	res, err := scanRooms(rows)
	if err != nil {
		return nil, err
	}

	if bookmarkSender != nil {
		marks, err := s.ListBookmarks(ctx, *bookmarkSender)
		if err != nil {
			return nil, err
		}
		marked := make(map[string]bool, len(marks))
		for _, b := range marks {
			marked[b.RoomID] = true
		}
		for _, r := range res {
			r.Bookmarked = marked[r.ID]
		}
	}
	return res, nil
}

// ListDMRooms returns the DM rooms the sender participates in, newest first.
// Participants are derived from the canonical dm:a|b name, so matching
// happens here rather than with LIKE patterns the sender could influence.
func (s *Store) ListDMRooms(ctx context.Context, sender string) ([]*domain.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roomColumns+` FROM rooms
		WHERE room_type = ?
		ORDER BY created_at DESC
	`, domain.RoomTypeDM)
	if err != nil {
		return nil, fmt.Errorf("list dm rooms: %w", err)
	}
	defer rows.Close()

	all, err := scanRooms(rows)
	if err != nil {
		return nil, err
	}
	var res []*domain.Room
	for _, r := range all {
		a, b, ok := domain.ParseDMName(r.Name)
		if ok && (a == sender || b == sender) {
			res = append(res, r)
		}
	}
	return res, nil
}

// UpdateRoom persists mutable room fields (name, description, retention).
func (s *Store) UpdateRoom(ctx context.Context, r *domain.Room) error {
	r.UpdatedAt = now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE rooms
			SET name = ?, description = ?, max_messages = ?, max_age_hours = ?, updated_at = ?
			WHERE id = ?
		`, r.Name, nullStr(r.Description), nullInt(r.MaxMessages), nullInt(r.MaxAgeHours),
			r.UpdatedAt, r.ID)
		if err != nil {
			return err
		}
		return requireRowAffected(res)
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("room name %q taken: %w", r.Name, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return nil
}

// DeleteRoom removes the room; messages, reactions, edits, files, read
// positions, bookmarks, and incoming webhooks cascade. FTS rows for the
// room's messages are deleted in the same transaction.
func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM messages_fts
			WHERE message_id IN (SELECT id FROM messages WHERE room_id = ?)
		`, id); err != nil {
			return fmt.Errorf("delete room fts: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		return requireRowAffected(res)
	})
}

// SetArchived archives or unarchives a room, returning the updated row.
// Archiving an archived room (or the reverse) is a conflict.
func (s *Store) SetArchived(ctx context.Context, id string, archived bool) (*domain.Room, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var archivedAt sql.NullTime
		err := tx.QueryRowContext(ctx, `SELECT archived_at FROM rooms WHERE id = ?`, id).
			Scan(&archivedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get room archive state: %w", err)
		}
		if archivedAt.Valid == archived {
			return domain.ErrConflict
		}

		ts := now()
		if archived {
			_, err = tx.ExecContext(ctx,
				`UPDATE rooms SET archived_at = ?, updated_at = ? WHERE id = ?`, ts, ts, id)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE rooms SET archived_at = NULL, updated_at = ? WHERE id = ?`, ts, id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetRoom(ctx, id)
}

// ListRetentionRooms returns rooms with a count or age policy configured.
func (s *Store) ListRetentionRooms(ctx context.Context) ([]*domain.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roomColumns+` FROM rooms
		WHERE max_messages IS NOT NULL OR max_age_hours IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("list retention rooms: %w", err)
	}
	defer rows.Close()
	return scanRooms(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*domain.Room, error) {
	r := &domain.Room{}
	var description, createdBy sql.NullString
	var maxMessages, maxAgeHours sql.NullInt64
	var archivedAt sql.NullTime
	err := row.Scan(&r.ID, &r.Name, &description, &createdBy, &r.AdminKeyHash,
		&maxMessages, &maxAgeHours, &r.RoomType, &archivedAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan room: %w", err)
	}
	r.Description = strPtr(description)
	r.CreatedBy = strPtr(createdBy)
	r.MaxMessages = intPtr(maxMessages)
	r.MaxAgeHours = intPtr(maxAgeHours)
	r.ArchivedAt = timePtr(archivedAt)
	return r, nil
}

func scanRooms(rows *sql.Rows) ([]*domain.Room, error) {
	var res []*domain.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
