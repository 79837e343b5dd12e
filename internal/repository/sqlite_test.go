package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexiscuevases/ondesk/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedAgentConversation(t *testing.T, s *SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateAgent(ctx, &domain.Agent{
		ID: "a1", Name: "Support", SystemPrompt: "Be helpful.", Model: "gpt-4o-mini",
		Temperature: 0.2, MaxTokens: 500, Status: domain.AgentStatusActive,
	}))
	require.NoError(t, s.CreateConversation(ctx, &domain.Conversation{
		ID: "c1", AgentID: "a1", CustomerName: "Ann", Channel: "web", Priority: "high",
	}))
}

func TestSQLiteStoreConversationWithAgent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedAgentConversation(t, s)

	conv, err := s.GetConversationWithAgent(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, conv)
	require.NotNil(t, conv.Agent)
	assert.Equal(t, "Ann", conv.CustomerName)
	assert.Equal(t, "", conv.CustomerEmail)
	assert.Equal(t, domain.ConversationStatusOpen, conv.Status)
	assert.Equal(t, "Be helpful.", conv.Agent.SystemPrompt)
	assert.InDelta(t, 0.2, conv.Agent.Temperature, 1e-9)
	assert.Equal(t, 500, conv.Agent.MaxTokens)

	missing, err := s.GetConversationWithAgent(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStoreConversationWithoutAgent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreateConversation(ctx, &domain.Conversation{ID: "c2", Channel: "web", Priority: "low"}))

	conv, err := s.GetConversationWithAgent(ctx, "c2")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Nil(t, conv.Agent)
}

func TestSQLiteStoreEndpoints(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedAgentConversation(t, s)

	require.NoError(t, s.CreateEndpoint(ctx, &domain.Endpoint{
		ID: "e1", AgentID: "a1", Name: "get_user", Description: "Fetch a user",
		Method: domain.MethodGet, URL: "https://api.x.com/users/{id}",
		HeadersSchema: map[string]string{"Authorization": "Bearer k"},
		ParamsSchema: map[string]domain.ParamSpec{
			"id": {Type: "number", Required: true, Description: "user id"},
		},
		TimeoutMs: 5000, RetryCount: 1, IsActive: true,
	}))
	require.NoError(t, s.CreateEndpoint(ctx, &domain.Endpoint{
		ID: "e2", AgentID: "a1", Name: "disabled", Method: domain.MethodPost,
		URL: "https://api.x.com/off", IsActive: false,
	}))

	endpoints, err := s.ListActiveEndpoints(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, endpoints, 1)
	ep := endpoints[0]
	assert.Equal(t, "e1", ep.ID)
	assert.Equal(t, "Bearer k", ep.HeadersSchema["Authorization"])
	assert.True(t, ep.ParamsSchema["id"].Required)
	assert.Equal(t, 5000, ep.TimeoutMs)
	assert.Equal(t, 1, ep.RetryCount)

	got, err := s.GetEndpoint(ctx, "e2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsActive)
	assert.Nil(t, got.HeadersSchema)

	none, err := s.GetEndpoint(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSQLiteStoreRecentMessages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedAgentConversation(t, s)

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, content := range []string{"m0", "m1", "m2", "m3", "m4"} {
		require.NoError(t, s.CreateMessage(ctx, &domain.Message{
			ID: content, ConversationID: "c1", Role: domain.MessageRoleUser,
			Content: content, Status: domain.MessageStatusReceived,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	recent, err := s.GetRecentMessages(ctx, "c1", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "m2", recent[0].Content)
	assert.Equal(t, "m3", recent[1].Content)
	assert.Equal(t, "m4", recent[2].Content)

	all, err := s.GetMessages(ctx, "c1", 0, "")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	before, err := s.GetMessages(ctx, "c1", 10, "m2")
	require.NoError(t, err)
	require.Len(t, before, 2)
	assert.Equal(t, "m0", before[0].ID)

	require.NoError(t, s.UpdateMessageStatus(ctx, "m4", domain.MessageStatusSent))
	recent, err = s.GetRecentMessages(ctx, "c1", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, domain.MessageStatusSent, recent[0].Status)
}

func TestSQLiteStoreRecentMessagesSameTimestamp(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedAgentConversation(t, s)

	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"x1", "x2", "x3"} {
		require.NoError(t, s.CreateMessage(ctx, &domain.Message{
			ID: id, ConversationID: "c1", Role: domain.MessageRoleAgent,
			Content: id, Status: domain.MessageStatusSent, CreatedAt: ts,
		}))
	}

	recent, err := s.GetRecentMessages(ctx, "c1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "x2", recent[0].ID)
	assert.Equal(t, "x3", recent[1].ID)
}

func TestSQLiteStoreCloseConversationVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedAgentConversation(t, s)

	closedAt := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.CloseConversation(ctx, "c1", 0, closedAt))

	conv, err := s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationStatusClosed, conv.Status)
	assert.Equal(t, int64(1), conv.Version)
	require.NotNil(t, conv.ClosedAt)
	assert.True(t, closedAt.Equal(*conv.ClosedAt))

	err = s.CloseConversation(ctx, "c1", 0, closedAt)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	err = s.CloseConversation(ctx, "missing", 0, closedAt)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestSQLiteStoreEventsAndInvocations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedAgentConversation(t, s)

	require.NoError(t, s.CreateEvent(ctx, &domain.Event{
		EventID: "ev1", ConversationID: "c1", Ts: 100, Type: domain.EventTypeLLMCallDone,
		Payload: json.RawMessage(`{"pass":1}`),
	}))
	require.NoError(t, s.CreateEvent(ctx, &domain.Event{
		EventID: "ev2", ConversationID: "c1", Ts: 200, Type: domain.EventTypeDirectiveIgnored,
	}))

	events, err := s.GetEvents(ctx, "c1", 0, nil, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.JSONEq(t, `{"pass":1}`, string(events[0].Payload))

	filtered, err := s.GetEvents(ctx, "c1", 100, []string{string(domain.EventTypeDirectiveIgnored)}, 10)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "ev2", filtered[0].EventID)

	require.NoError(t, s.CreateActionInvocation(ctx, &domain.ActionInvocation{
		InvocationID: "inv1", ConversationID: "c1", EndpointID: "e1",
		Parameters: json.RawMessage(`{"id":7}`), Success: false, StatusCode: 404,
		Error: "404 Not Found", DurationMs: 12, Attempts: 1,
	}))
	invs, err := s.ListActionInvocations(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, 404, invs[0].StatusCode)
	assert.Equal(t, "404 Not Found", invs[0].Error)
	assert.JSONEq(t, `{"id":7}`, string(invs[0].Parameters))
}
