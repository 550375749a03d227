package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/security"
)

func TestCreateOutgoingValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.mkRoom(t, "general")

	_, err := env.webhooks.CreateOutgoing(ctx, &room.ID, OutgoingWebhookInput{URL: "not a url"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.webhooks.CreateOutgoing(ctx, &room.ID, OutgoingWebhookInput{
		URL: "http://sink.test/hook", Events: []string{"message_created", "bogus_kind"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	w, err := env.webhooks.CreateOutgoing(ctx, &room.ID, OutgoingWebhookInput{
		URL: "http://sink.test/hook", Events: []string{"message_created"},
	})
	require.NoError(t, err)
	assert.True(t, w.Active)
}

func TestIncomingHookPostFallbacks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.mkRoom(t, "general")

	hook, err := env.webhooks.CreateIncoming(ctx, room.ID, IncomingWebhookInput{Name: "ci-bot"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hook.Token, security.HookTokenPrefix))

	// Sender falls back to the hook name, sender_type to agent.
	m, err := env.webhooks.HookPost(ctx, hook.Token, HookPostInput{Content: "build green"})
	require.NoError(t, err)
	assert.Equal(t, "ci-bot", m.Sender)
	require.NotNil(t, m.SenderType)
	assert.Equal(t, domain.SenderTypeAgent, *m.SenderType)

	// Explicit sender wins.
	human := domain.SenderTypeHuman
	m, err = env.webhooks.HookPost(ctx, hook.Token, HookPostInput{
		Content: "manual note", Sender: strptr("ops"), SenderType: &human,
	})
	require.NoError(t, err)
	assert.Equal(t, "ops", m.Sender)
	assert.Equal(t, domain.SenderTypeHuman, *m.SenderType)
}

func TestIncomingHookPostRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.mkRoom(t, "general")

	hook, err := env.webhooks.CreateIncoming(ctx, room.ID, IncomingWebhookInput{Name: "ci-bot"})
	require.NoError(t, err)

	_, err = env.webhooks.HookPost(ctx, "no-prefix-token", HookPostInput{Content: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.webhooks.HookPost(ctx, security.HookTokenPrefix+"unknown", HookPostInput{Content: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.webhooks.HookPost(ctx, hook.Token, HookPostInput{Content: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	inactive := false
	_, err = env.webhooks.UpdateIncoming(ctx, room.ID, hook.ID, IncomingWebhookUpdate{Active: &inactive})
	require.NoError(t, err)
	_, err = env.webhooks.HookPost(ctx, hook.Token, HookPostInput{Content: "x"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
