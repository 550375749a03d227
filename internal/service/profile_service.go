package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

// ProfileService manages sender profiles.
type ProfileService struct {
	profiles domain.ProfileRepository
}

func NewProfileService(profiles domain.ProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles}
}

type ProfileUpsertInput struct {
	DisplayName *string         `json:"display_name,omitempty"`
	SenderType  *string         `json:"sender_type,omitempty"`
	AvatarURL   *string         `json:"avatar_url,omitempty"`
	Bio         *string         `json:"bio,omitempty"`
	StatusText  *string         `json:"status_text,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// Upsert creates or replaces the sender's profile. created_at survives.
func (s *ProfileService) Upsert(ctx context.Context, sender string, in ProfileUpsertInput) (*domain.Profile, error) {
	if err := validateSender(sender); err != nil {
		return nil, err
	}
	if err := validateOptLen("display_name", in.DisplayName, maxDisplayLen); err != nil {
		return nil, err
	}
	if err := validateSenderType(in.SenderType); err != nil {
		return nil, err
	}
	if err := validateOptLen("avatar_url", in.AvatarURL, maxAvatarLen); err != nil {
		return nil, err
	}
	if err := validateOptLen("bio", in.Bio, maxBioLen); err != nil {
		return nil, err
	}
	if err := validateOptLen("status_text", in.StatusText, maxStatusLen); err != nil {
		return nil, err
	}
	if len(in.Metadata) > maxMetadataLen {
		return nil, fmt.Errorf("metadata exceeds %d bytes: %w", maxMetadataLen, domain.ErrInvalidInput)
	}

	return s.profiles.UpsertProfile(ctx, &domain.Profile{
		Sender:      sender,
		DisplayName: normalizeOpt(in.DisplayName),
		SenderType:  normalizeOpt(in.SenderType),
		AvatarURL:   normalizeOpt(in.AvatarURL),
		Bio:         normalizeOpt(in.Bio),
		StatusText:  normalizeOpt(in.StatusText),
		Metadata:    in.Metadata,
	})
}

// Get fetches a profile by sender.
func (s *ProfileService) Get(ctx context.Context, sender string) (*domain.Profile, error) {
	return s.profiles.GetProfile(ctx, sender)
}

// Delete removes a profile.
func (s *ProfileService) Delete(ctx context.Context, sender string) error {
	return s.profiles.DeleteProfile(ctx, sender)
}

// List returns profiles, optionally filtered by sender type.
func (s *ProfileService) List(ctx context.Context, senderType *string) ([]*domain.Profile, error) {
	if err := validateSenderType(senderType); err != nil {
		return nil, err
	}
	return s.profiles.ListProfiles(ctx, normalizeOpt(senderType))
}
