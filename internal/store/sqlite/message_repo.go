package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

var _ domain.MessageRepository = (*Store)(nil)

const messageColumns = `id, room_id, seq, sender, sender_type, content, metadata,
	reply_to, edited_at, pinned_at, pinned_by, edit_count, created_at`

// pruneBatchSize caps the number of IN-clause placeholders per delete batch.
const pruneBatchSize = 500

// InsertMessage commits a new message: seq allocation, reply_to integrity,
// the row itself, and its FTS entry all happen in one transaction.
func (s *Store) InsertMessage(ctx context.Context, m *domain.Message) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if m.ReplyTo != nil {
			var parentRoom string
			err := tx.QueryRowContext(ctx,
				`SELECT room_id FROM messages WHERE id = ?`, *m.ReplyTo).Scan(&parentRoom)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("reply_to message not found: %w", domain.ErrInvalidInput)
			}
			if err != nil {
				return fmt.Errorf("check reply_to: %w", err)
			}
			if parentRoom != m.RoomID {
				return fmt.Errorf("reply_to message belongs to another room: %w", domain.ErrInvalidInput)
			}
		}

		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		m.Seq = s.allocSeq()
		m.CreatedAt = now()

		var metadata sql.NullString
		if len(m.Metadata) > 0 {
			metadata = sql.NullString{String: string(m.Metadata), Valid: true}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, room_id, seq, sender, sender_type, content, metadata,
				reply_to, edit_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		`, m.ID, m.RoomID, m.Seq, m.Sender, nullStr(m.SenderType), m.Content, metadata,
			nullStr(m.ReplyTo), m.CreatedAt); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages_fts (content, message_id) VALUES (?, ?)`,
			m.Content, m.ID); err != nil {
			return fmt.Errorf("index message: %w", err)
		}
		return nil
	})
}

// GetMessage fetches one message scoped to its room.
func (s *Store) GetMessage(ctx context.Context, roomID, id string) (*domain.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE room_id = ? AND id = ?`, roomID, id)
	return scanMessage(row)
}

// EditMessage records the previous content in edit history, updates the
// message and its FTS row, and returns the updated message. Only the original
// sender may edit; seq, reply_to, and pin state are preserved.
func (s *Store) EditMessage(ctx context.Context, roomID, id, editor, newContent string) (*domain.Message, error) {
	var updated *domain.Message
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+messageColumns+` FROM messages WHERE room_id = ? AND id = ?`, roomID, id)
		m, err := scanMessage(row)
		if err != nil {
			return err
		}
		if m.Sender != editor {
			return fmt.Errorf("only the sender may edit: %w", domain.ErrForbidden)
		}

		editedAt := now()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO edit_history (id, message_id, previous_content, editor, edited_at)
			VALUES (?, ?, ?, ?, ?)
		`, uuid.NewString(), id, m.Content, editor, editedAt); err != nil {
			return fmt.Errorf("insert edit history: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE messages SET content = ?, edited_at = ?, edit_count = edit_count + 1
			WHERE id = ?
		`, newContent, editedAt, id); err != nil {
			return fmt.Errorf("update message: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE messages_fts SET content = ? WHERE message_id = ?`,
			newContent, id); err != nil {
			return fmt.Errorf("reindex message: %w", err)
		}

		m.Content = newContent
		m.EditedAt = &editedAt
		m.EditCount++
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteMessage removes the message, its FTS row first; reactions and edit
// history cascade. Authorization happens at the service layer.
func (s *Store) DeleteMessage(ctx context.Context, roomID, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM messages_fts WHERE message_id = ?`, id); err != nil {
			return fmt.Errorf("deindex message: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM messages WHERE room_id = ? AND id = ?`, roomID, id)
		if err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
		return requireRowAffected(res)
	})
}

// ListMessages returns room messages in ascending seq order. Without a
// cursor, the latest Limit rows are returned (still ascending); with
// after_seq the window starts just past the cursor.
func (s *Store) ListMessages(ctx context.Context, roomID string, f domain.MessageFilter) ([]*domain.Message, error) {
	where := []string{"room_id = ?"}
	args := []any{roomID}

	if f.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if f.Before != nil {
		where = append(where, "created_at < ?")
		args = append(args, f.Before.UTC())
	}
	if f.AfterSeq != nil {
		where = append(where, "seq > ?")
		args = append(args, *f.AfterSeq)
	}
	if f.BeforeSeq != nil {
		where = append(where, "seq < ?")
		args = append(args, *f.BeforeSeq)
	}
	if f.Sender != nil {
		where = append(where, "sender = ?")
		args = append(args, *f.Sender)
	}
	if f.SenderType != nil {
		where = append(where, "sender_type = ?")
		args = append(args, *f.SenderType)
	}

	// A negative Limit disables the cap (SQLite treats LIMIT -1 as
	// unbounded); exports rely on this to return whole rooms.
	limit := -1
	if f.Limit >= 0 {
		limit = clampLimit(f.Limit)
	}
	base := `SELECT ` + messageColumns + ` FROM messages WHERE ` + strings.Join(where, " AND ")

	var query string
	if f.AfterSeq != nil {
		// Forward pagination from the cursor.
		query = base + ` ORDER BY seq ASC LIMIT ?`
	} else {
		// Tail of the room (optionally below before_seq), oldest first.
		query = `SELECT * FROM (` + base + ` ORDER BY seq DESC LIMIT ?) ORDER BY seq ASC`
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListActivity returns the cross-room feed, newest first.
func (s *Store) ListActivity(ctx context.Context, f domain.ActivityFilter) ([]*domain.Message, error) {
	where := []string{"1=1"}
	args := []any{}

	if f.RoomID != nil {
		where = append(where, "room_id = ?")
		args = append(args, *f.RoomID)
	}
	if f.Sender != nil {
		where = append(where, "sender = ?")
		args = append(args, *f.Sender)
	}
	if len(f.ExcludeSenders) > 0 {
		where = append(where, "sender NOT IN ("+placeholders(len(f.ExcludeSenders))+")")
		for _, s := range f.ExcludeSenders {
			args = append(args, s)
		}
	}
	if f.SenderType != nil {
		where = append(where, "sender_type = ?")
		args = append(args, *f.SenderType)
	}
	if f.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if f.AfterSeq != nil {
		where = append(where, "seq > ?")
		args = append(args, *f.AfterSeq)
	}

	args = append(args, clampLimit(f.Limit))
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY seq DESC LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListThread returns the parent followed by its replies in seq order.
func (s *Store) ListThread(ctx context.Context, roomID, parentID string) ([]*domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE room_id = ? AND (id = ? OR reply_to = ?)
		ORDER BY seq ASC
	`, roomID, parentID, parentID)
	if err != nil {
		return nil, fmt.Errorf("list thread: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListEdits returns a message's edit history, oldest first.
func (s *Store) ListEdits(ctx context.Context, messageID string) ([]*domain.EditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, previous_content, editor, edited_at
		FROM edit_history WHERE message_id = ?
		ORDER BY edited_at ASC, rowid ASC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list edits: %w", err)
	}
	defer rows.Close()

	var res []*domain.EditEntry
	for rows.Next() {
		e := &domain.EditEntry{}
		if err := rows.Scan(&e.ID, &e.MessageID, &e.PreviousContent, &e.Editor, &e.EditedAt); err != nil {
			return nil, fmt.Errorf("scan edit: %w", err)
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// SetPinned pins or unpins a message. Re-pinning and unpinning an unpinned
// message are conflicts.
func (s *Store) SetPinned(ctx context.Context, roomID, id string, pinnedBy *string, pinned bool) (*domain.Message, error) {
	var updated *domain.Message
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+messageColumns+` FROM messages WHERE room_id = ? AND id = ?`, roomID, id)
		m, err := scanMessage(row)
		if err != nil {
			return err
		}
		if m.Pinned() == pinned {
			return domain.ErrConflict
		}

		if pinned {
			ts := now()
			if _, err := tx.ExecContext(ctx,
				`UPDATE messages SET pinned_at = ?, pinned_by = ? WHERE id = ?`,
				ts, nullStr(pinnedBy), id); err != nil {
				return fmt.Errorf("pin message: %w", err)
			}
			m.PinnedAt = &ts
			m.PinnedBy = pinnedBy
		} else {
			if _, err := tx.ExecContext(ctx,
				`UPDATE messages SET pinned_at = NULL, pinned_by = NULL WHERE id = ?`, id); err != nil {
				return fmt.Errorf("unpin message: %w", err)
			}
			m.PinnedAt = nil
			m.PinnedBy = nil
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListPinned returns a room's pinned messages in seq order.
func (s *Store) ListPinned(ctx context.Context, roomID string) ([]*domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE room_id = ? AND pinned_at IS NOT NULL
		ORDER BY seq ASC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list pinned: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// Search runs a full-text query across all rooms, newest first. Terms are
// quoted so user input cannot inject FTS syntax.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*domain.Message, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedMessageColumns("m")+`
		FROM messages_fts f
		JOIN messages m ON m.id = f.message_id
		WHERE messages_fts MATCH ?
		ORDER BY m.seq DESC LIMIT ?
	`, match, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// LatestSeqPerRoom returns each room's newest seq.
func (s *Store) LatestSeqPerRoom(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id, MAX(seq) FROM messages GROUP BY room_id`)
	if err != nil {
		return nil, fmt.Errorf("latest seq per room: %w", err)
	}
	defer rows.Close()

	res := make(map[string]int64)
	for rows.Next() {
		var roomID string
		var seq int64
		if err := rows.Scan(&roomID, &seq); err != nil {
			return nil, fmt.Errorf("scan latest seq: %w", err)
		}
		res[roomID] = seq
	}
	return res, rows.Err()
}

// CountMessages returns the total message count.
func (s *Store) CountMessages(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// NonPinnedCount returns how many non-pinned messages a room holds.
func (s *Store) NonPinnedCount(ctx context.Context, roomID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE room_id = ? AND pinned_at IS NULL`, roomID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count non-pinned: %w", err)
	}
	return n, nil
}

// NonPinnedOldest returns the IDs of the room's oldest non-pinned messages.
func (s *Store) NonPinnedOldest(ctx context.Context, roomID string, excess int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM messages
		WHERE room_id = ? AND pinned_at IS NULL
		ORDER BY seq ASC LIMIT ?
	`, roomID, excess)
	if err != nil {
		return nil, fmt.Errorf("select prune candidates: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// NonPinnedOlderThan returns IDs of non-pinned messages created before cutoff.
func (s *Store) NonPinnedOlderThan(ctx context.Context, roomID string, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM messages
		WHERE room_id = ? AND pinned_at IS NULL AND created_at < ?
		ORDER BY seq ASC
	`, roomID, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("select aged prune candidates: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// PruneByIDs deletes messages in batches, each batch its own transaction
// with the FTS rows removed before the base rows. Reactions and edit history
// cascade. Returns the number of messages removed.
func (s *Store) PruneByIDs(ctx context.Context, ids []string) (int64, error) {
	var total int64
	for start := 0; start < len(ids); start += pruneBatchSize {
		end := start + pruneBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		in := placeholders(len(batch))

		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM messages_fts WHERE message_id IN (`+in+`)`, args...); err != nil {
				return fmt.Errorf("deindex batch: %w", err)
			}
			res, err := tx.ExecContext(ctx,
				`DELETE FROM messages WHERE id IN (`+in+`)`, args...)
			if err != nil {
				return fmt.Errorf("delete batch: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			total += n
			return nil
		})
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// mentionCandidateCap bounds the rows handed to the word-boundary filter.
const mentionCandidateCap = 1000

// MentionCandidates returns messages that contain @target as a substring
// (ASCII case-insensitive), excluding the target's own messages, newest
// first. Callers apply the word-boundary check.
func (s *Store) MentionCandidates(ctx context.Context, target string, f domain.MentionFilter) ([]*domain.Message, error) {
	where := []string{
		"instr(lower(content), lower(?)) > 0",
		"sender != ?",
	}
	args := []any{"@" + target, target}

	if f.RoomID != nil {
		where = append(where, "room_id = ?")
		args = append(args, *f.RoomID)
	}
	if f.AfterSeq != nil {
		where = append(where, "seq > ?")
		args = append(args, *f.AfterSeq)
	}
	args = append(args, mentionCandidateCap)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY seq DESC LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("mention candidates: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// UnreadMentionCandidates returns substring-matching messages above the
// target's read position in each room, newest first.
func (s *Store) UnreadMentionCandidates(ctx context.Context, target string) ([]*domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedMessageColumns("m")+`
		FROM messages m
		LEFT JOIN read_positions rp ON rp.room_id = m.room_id AND rp.sender = ?
		WHERE m.sender != ?
			AND instr(lower(m.content), lower(?)) > 0
			AND m.seq > COALESCE(rp.last_read_seq, 0)
		ORDER BY m.seq DESC LIMIT ?
	`, target, target, "@"+target, mentionCandidateCap)
	if err != nil {
		return nil, fmt.Errorf("unread mention candidates: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	m := &domain.Message{}
	var senderType, metadata, replyTo, pinnedBy sql.NullString
	var editedAt, pinnedAt sql.NullTime
	err := row.Scan(&m.ID, &m.RoomID, &m.Seq, &m.Sender, &senderType, &m.Content, &metadata,
		&replyTo, &editedAt, &pinnedAt, &pinnedBy, &m.EditCount, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	m.SenderType = strPtr(senderType)
	if metadata.Valid {
		m.Metadata = []byte(metadata.String)
	}
	m.ReplyTo = strPtr(replyTo)
	m.EditedAt = timePtr(editedAt)
	m.PinnedAt = timePtr(pinnedAt)
	m.PinnedBy = strPtr(pinnedBy)
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	var res []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimRight(strings.Repeat("?,", n), ",")
}

func clampLimit(limit int) int {
	const defaultLimit, maxLimit = 50, 1000
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// ftsQuery quotes each whitespace-separated term so the user string is
// treated as plain tokens rather than FTS5 syntax.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

func prefixedMessageColumns(alias string) string {
	cols := strings.Split(messageColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
