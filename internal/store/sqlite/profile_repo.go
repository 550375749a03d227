package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

var _ domain.ProfileRepository = (*Store)(nil)

// UpsertProfile creates or replaces a profile. The original created_at is
// preserved across upserts.
func (s *Store) UpsertProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	ts := now()
	var metadata sql.NullString
	if len(p.Metadata) > 0 {
		metadata = sql.NullString{String: string(p.Metadata), Valid: true}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (sender, display_name, sender_type, avatar_url, bio,
				status_text, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(sender) DO UPDATE SET
				display_name = excluded.display_name,
				sender_type = excluded.sender_type,
				avatar_url = excluded.avatar_url,
				bio = excluded.bio,
				status_text = excluded.status_text,
				metadata = excluded.metadata,
				updated_at = excluded.updated_at
		`, p.Sender, nullStr(p.DisplayName), nullStr(p.SenderType), nullStr(p.AvatarURL),
			nullStr(p.Bio), nullStr(p.StatusText), metadata, ts, ts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return s.GetProfile(ctx, p.Sender)
}

// GetProfile fetches a profile by sender.
func (s *Store) GetProfile(ctx context.Context, sender string) (*domain.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sender, display_name, sender_type, avatar_url, bio, status_text,
			metadata, created_at, updated_at
		FROM profiles WHERE sender = ?
	`, sender)
	return scanProfile(row)
}

// DeleteProfile removes a profile.
func (s *Store) DeleteProfile(ctx context.Context, sender string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE sender = ?`, sender)
		if err != nil {
			return fmt.Errorf("delete profile: %w", err)
		}
		return requireRowAffected(res)
	})
}

// ListProfiles returns profiles, optionally filtered by sender type.
func (s *Store) ListProfiles(ctx context.Context, senderType *string) ([]*domain.Profile, error) {
	query := `
		SELECT sender, display_name, sender_type, avatar_url, bio, status_text,
			metadata, created_at, updated_at
		FROM profiles`
	args := []any{}
	if senderType != nil {
		query += ` WHERE sender_type = ?`
		args = append(args, *senderType)
	}
	query += ` ORDER BY sender ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var res []*domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	p := &domain.Profile{}
	var displayName, senderType, avatarURL, bio, statusText, metadata sql.NullString
	err := row.Scan(&p.Sender, &displayName, &senderType, &avatarURL, &bio, &statusText,
		&metadata, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	p.DisplayName = strPtr(displayName)
	p.SenderType = strPtr(senderType)
	p.AvatarURL = strPtr(avatarURL)
	p.Bio = strPtr(bio)
	p.StatusText = strPtr(statusText)
	if metadata.Valid {
		p.Metadata = []byte(metadata.String)
	}
	return p, nil
}
