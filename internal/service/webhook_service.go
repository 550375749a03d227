package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/security"
)

// WebhookService manages outgoing subscriptions and incoming post tokens, and
// ingests messages arriving through incoming hooks.
type WebhookService struct {
	rooms    domain.RoomRepository
	webhooks domain.WebhookRepository
	messages *MessageService
}

func NewWebhookService(
	rooms domain.RoomRepository,
	webhooks domain.WebhookRepository,
	messages *MessageService,
) *WebhookService {
	return &WebhookService{rooms: rooms, webhooks: webhooks, messages: messages}
}

type OutgoingWebhookInput struct {
	URL    string   `json:"url"`
	Events []string `json:"events,omitempty"`
	Secret *string  `json:"secret,omitempty"`
	Active *bool    `json:"active,omitempty"`
}

// CreateOutgoing registers an outgoing webhook. A nil roomID subscribes to
// every room. An empty events list subscribes to every kind.
func (s *WebhookService) CreateOutgoing(ctx context.Context, roomID *string, in OutgoingWebhookInput) (*domain.OutgoingWebhook, error) {
	if err := validateWebhookURL(in.URL); err != nil {
		return nil, err
	}
	if err := validateEventKinds(in.Events); err != nil {
		return nil, err
	}
	if roomID != nil {
		if _, err := s.rooms.GetRoom(ctx, *roomID); err != nil {
			return nil, err
		}
	}

	w := &domain.OutgoingWebhook{
		RoomID: roomID,
		URL:    in.URL,
		Events: in.Events,
		Secret: normalizeOpt(in.Secret),
		Active: in.Active == nil || *in.Active,
	}
	if err := s.webhooks.CreateOutgoingWebhook(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// ListOutgoing lists a room's outgoing webhooks, or the global ones for nil.
func (s *WebhookService) ListOutgoing(ctx context.Context, roomID *string) ([]*domain.OutgoingWebhook, error) {
	if roomID != nil {
		if _, err := s.rooms.GetRoom(ctx, *roomID); err != nil {
			return nil, err
		}
	}
	return s.webhooks.ListOutgoingWebhooks(ctx, roomID)
}

// UpdateOutgoing applies changes to an outgoing webhook in the given scope.
func (s *WebhookService) UpdateOutgoing(ctx context.Context, roomID *string, id string, in OutgoingWebhookInput) (*domain.OutgoingWebhook, error) {
	existing, err := s.findOutgoing(ctx, roomID, id)
	if err != nil {
		return nil, err
	}
	if in.URL != "" {
		if err := validateWebhookURL(in.URL); err != nil {
			return nil, err
		}
		existing.URL = in.URL
	}
	if in.Events != nil {
		if err := validateEventKinds(in.Events); err != nil {
			return nil, err
		}
		existing.Events = in.Events
	}
	if in.Secret != nil {
		existing.Secret = normalizeOpt(in.Secret)
	}
	if in.Active != nil {
		existing.Active = *in.Active
	}
	if err := s.webhooks.UpdateOutgoingWebhook(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteOutgoing removes an outgoing webhook in the given scope.
func (s *WebhookService) DeleteOutgoing(ctx context.Context, roomID *string, id string) error {
	return s.webhooks.DeleteOutgoingWebhook(ctx, roomID, id)
}

type IncomingWebhookInput struct {
	Name      string  `json:"name"`
	CreatedBy *string `json:"created_by,omitempty"`
}

// CreateIncoming mints a new incoming webhook with a fresh whk_ token.
func (s *WebhookService) CreateIncoming(ctx context.Context, roomID string, in IncomingWebhookInput) (*domain.IncomingWebhook, error) {
	if err := validateName("name", in.Name); err != nil {
		return nil, err
	}
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	token, err := security.GenerateHookToken()
	if err != nil {
		return nil, err
	}
	w := &domain.IncomingWebhook{
		RoomID:    roomID,
		Name:      in.Name,
		Token:     token,
		Active:    true,
		CreatedBy: normalizeOpt(in.CreatedBy),
	}
	if err := s.webhooks.CreateIncomingWebhook(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// ListIncoming lists a room's incoming webhooks.
func (s *WebhookService) ListIncoming(ctx context.Context, roomID string) ([]*domain.IncomingWebhook, error) {
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.webhooks.ListIncomingWebhooks(ctx, roomID)
}

type IncomingWebhookUpdate struct {
	Name   *string `json:"name,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// UpdateIncoming renames or toggles an incoming webhook.
func (s *WebhookService) UpdateIncoming(ctx context.Context, roomID, id string, in IncomingWebhookUpdate) (*domain.IncomingWebhook, error) {
	hooks, err := s.webhooks.ListIncomingWebhooks(ctx, roomID)
	if err != nil {
		return nil, err
	}
	var existing *domain.IncomingWebhook
	for _, h := range hooks {
		if h.ID == id {
			existing = h
			break
		}
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}

	if in.Name != nil {
		if err := validateName("name", *in.Name); err != nil {
			return nil, err
		}
		existing.Name = *in.Name
	}
	if in.Active != nil {
		existing.Active = *in.Active
	}
	if err := s.webhooks.UpdateIncomingWebhook(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteIncoming removes an incoming webhook.
func (s *WebhookService) DeleteIncoming(ctx context.Context, roomID, id string) error {
	return s.webhooks.DeleteIncomingWebhook(ctx, roomID, id)
}

type HookPostInput struct {
	Content    string  `json:"content"`
	Sender     *string `json:"sender,omitempty"`
	SenderType *string `json:"sender_type,omitempty"`
}

// HookPost ingests a message through an incoming webhook token. The sender
// falls back to the hook's name and sender_type defaults to agent.
func (s *WebhookService) HookPost(ctx context.Context, token string, in HookPostInput) (*domain.Message, error) {
	if !strings.HasPrefix(token, security.HookTokenPrefix) {
		return nil, domain.ErrNotFound
	}
	hook, err := s.webhooks.GetIncomingWebhookByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !hook.Active {
		return nil, fmt.Errorf("webhook disabled: %w", domain.ErrForbidden)
	}

	sender := hook.Name
	if in.Sender != nil && *in.Sender != "" {
		sender = *in.Sender
	}
	senderType := domain.SenderTypeAgent
	if in.SenderType != nil && *in.SenderType != "" {
		senderType = *in.SenderType
	}

	return s.messages.Send(ctx, hook.RoomID, MessageSendInput{
		Sender:     sender,
		SenderType: &senderType,
		Content:    in.Content,
	})
}

func (s *WebhookService) findOutgoing(ctx context.Context, roomID *string, id string) (*domain.OutgoingWebhook, error) {
	hooks, err := s.webhooks.ListOutgoingWebhooks(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for _, h := range hooks {
		if h.ID == id {
			return h, nil
		}
	}
	return nil, domain.ErrNotFound
}

func validateWebhookURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url must not be empty: %w", domain.ErrInvalidInput)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be absolute http(s): %w", domain.ErrInvalidInput)
	}
	return nil
}

func validateEventKinds(events []string) error {
	for _, e := range events {
		if !domain.ValidEventKind(e) {
			return fmt.Errorf("unknown event kind %q: %w", e, domain.ErrInvalidInput)
		}
	}
	return nil
}
