package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

var _ domain.FileRepository = (*Store)(nil)

// InsertFile stores an uploaded attachment.
func (s *Store) InsertFile(ctx context.Context, f *domain.File) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.Size = int64(len(f.Data))
	f.CreatedAt = now()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO files (id, room_id, sender, filename, content_type, size, data, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, f.ID, f.RoomID, f.Sender, f.Filename, nullStr(f.ContentType), f.Size, f.Data, f.CreatedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// GetFileInfo fetches file metadata without the payload.
func (s *Store) GetFileInfo(ctx context.Context, id string) (*domain.File, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, room_id, sender, filename, content_type, size, created_at
		FROM files WHERE id = ?
	`, id)
	return scanFileInfo(row)
}

// GetFileData fetches file metadata together with the raw bytes.
func (s *Store) GetFileData(ctx context.Context, id string) (*domain.File, error) {
	f := &domain.File{}
	var contentType sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, room_id, sender, filename, content_type, size, data, created_at
		FROM files WHERE id = ?
	`, id).Scan(&f.ID, &f.RoomID, &f.Sender, &f.Filename, &contentType, &f.Size, &f.Data, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file data: %w", err)
	}
	f.ContentType = strPtr(contentType)
	return f, nil
}

// ListFiles returns a room's files, newest first, without payloads.
func (s *Store) ListFiles(ctx context.Context, roomID string) ([]*domain.File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, sender, filename, content_type, size, created_at
		FROM files WHERE room_id = ?
		ORDER BY created_at DESC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var res []*domain.File
	for rows.Next() {
		f, err := scanFileInfo(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

// DeleteFile removes a file.
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete file: %w", err)
		}
		return requireRowAffected(res)
	})
}

func scanFileInfo(row rowScanner) (*domain.File, error) {
	f := &domain.File{}
	var contentType sql.NullString
	err := row.Scan(&f.ID, &f.RoomID, &f.Sender, &f.Filename, &contentType, &f.Size, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	f.ContentType = strPtr(contentType)
	return f, nil
}
