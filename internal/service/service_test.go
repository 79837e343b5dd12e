package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexiscuevases/ondesk/internal/adapter/llm"
	"github.com/alexiscuevases/ondesk/internal/adapter/lock"
	"github.com/alexiscuevases/ondesk/internal/config"
	"github.com/alexiscuevases/ondesk/internal/domain"
	"github.com/alexiscuevases/ondesk/internal/executor"
	"github.com/alexiscuevases/ondesk/internal/infra/logger"
	"github.com/alexiscuevases/ondesk/internal/policy"
	store "github.com/alexiscuevases/ondesk/internal/repository"
	"github.com/alexiscuevases/ondesk/tests/helpers"
)

// scriptedCompleter returns its replies in order and records every request.
type scriptedCompleter struct {
	mu       sync.Mutex
	replies  []string
	err      error
	panics   bool
	requests []llm.GenerateRequest
	// onCall runs before each reply is returned; n is 1-based.
	onCall func(n int)
}

func (c *scriptedCompleter) Generate(_ context.Context, req llm.GenerateRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.panics {
		panic("boom")
	}
	if c.err != nil {
		return "", c.err
	}
	if len(c.requests) > len(c.replies) {
		return "", errors.New("no scripted reply left")
	}
	if c.onCall != nil {
		c.onCall(len(c.requests))
	}
	return c.replies[len(c.requests)-1], nil
}

func (c *scriptedCompleter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

type fakeDeliverer struct {
	mu        sync.Mutex
	err       error
	delivered []*domain.Message
}

func (d *fakeDeliverer) Deliver(_ context.Context, _ *domain.Conversation, msg *domain.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.delivered = append(d.delivered, msg)
	return nil
}

type fixture struct {
	svc       *Service
	store     *store.SQLiteStore
	completer *scriptedCompleter
	locker    *lock.MemoryLocker
	deliverer *fakeDeliverer
	agent     *domain.Agent
	conv      *domain.Conversation
}

func newFixture(t *testing.T, completer *scriptedCompleter, policyEngine PolicyEvaluator) *fixture {
	t.Helper()
	ctx := context.Background()

	st := helpers.NewTestSQLiteStore(t)
	exec := executor.New(st, nil, executor.Config{
		DefaultTimeout: 2 * time.Second,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, logger.Discard())
	locker := lock.NewMemoryLocker()
	deliverer := &fakeDeliverer{}

	cfg := config.Default()
	cfg.LockWait = 100 * time.Millisecond

	svc := New(st, completer, exec, policyEngine, locker, Channels{DefaultChannel: deliverer}, cfg, logger.Discard())

	agent, err := svc.CreateAgent(ctx, &domain.Agent{
		Name:         "Support",
		SystemPrompt: "You are a helpful support agent.",
		Model:        "gpt-4o-mini",
		Temperature:  0.2,
	})
	require.NoError(t, err)

	conv, err := svc.CreateConversation(ctx, &domain.Conversation{
		AgentID:      agent.ID,
		CustomerName: "Ada",
	})
	require.NoError(t, err)

	require.NoError(t, st.CreateMessage(ctx, &domain.Message{
		ID:             "msg_1",
		ConversationID: conv.ID,
		Role:           domain.MessageRoleUser,
		Content:        "Where is my order 42?",
		Status:         domain.MessageStatusReceived,
		CreatedAt:      time.Now().UTC(),
	}))

	return &fixture{
		svc:       svc,
		store:     st,
		completer: completer,
		locker:    locker,
		deliverer: deliverer,
		agent:     agent,
		conv:      conv,
	}
}

func (f *fixture) addEndpoint(t *testing.T, id, url string) *domain.Endpoint {
	t.Helper()
	ep, err := f.svc.CreateEndpoint(context.Background(), &domain.Endpoint{
		ID:          id,
		AgentID:     f.agent.ID,
		Name:        "Order status",
		Description: "Looks up an order",
		Method:      domain.MethodGet,
		URL:         url,
		IsActive:    true,
	})
	require.NoError(t, err)
	return ep
}

func (f *fixture) eventTypes(t *testing.T) []domain.EventType {
	t.Helper()
	events, err := f.svc.GetEvents(context.Background(), f.conv.ID, 0, nil, 0)
	require.NoError(t, err)
	var types []domain.EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestGenerateResponse_Answered(t *testing.T) {
	f := newFixture(t, &scriptedCompleter{replies: []string{"Let me help you with that."}}, nil)

	res := f.svc.GenerateResponse(context.Background(), f.conv.ID)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Let me help you with that.", res.Message)
	assert.Equal(t, domain.OutcomeAnswered, res.Outcome)
	assert.False(t, res.Closed)
	require.Equal(t, 1, f.completer.calls())

	req := f.completer.requests[0]
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, 1000, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "You are a helpful support agent.")
	assert.Equal(t, llm.RoleUser, req.Messages[1].Role)

	assert.Equal(t, []domain.EventType{domain.EventTypeLLMCallDone}, f.eventTypes(t))
}

func TestGenerateResponse_ActionExecuted(t *testing.T) {
	var hits atomic.Int32
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"shipped"}`))
	}))
	defer server.Close()

	completer := &scriptedCompleter{replies: []string{
		`Let me check. [USE_ACTION: ep_orders] [PARAMETERS: {"id": 42}]`,
		"Your order has shipped.",
	}}
	f := newFixture(t, completer, nil)
	f.addEndpoint(t, "ep_orders", server.URL+"/orders/{id}")

	res := f.svc.GenerateResponse(context.Background(), f.conv.ID)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Your order has shipped.", res.Message)
	assert.Equal(t, domain.OutcomeActionExecuted, res.Outcome)
	assert.Equal(t, "ep_orders", res.ActionID)
	require.NotNil(t, res.Action)
	assert.True(t, res.Action.Success)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "/orders/42", gotPath)

	require.Equal(t, 2, completer.calls())
	first := completer.requests[0].Messages
	second := completer.requests[1].Messages
	require.Len(t, second, len(first)+2)
	assert.Contains(t, first[0].Content, "Action ID: ep_orders")
	assert.Equal(t, llm.RoleAssistant, second[len(second)-2].Role)
	assert.Equal(t, completer.replies[0], second[len(second)-2].Content)
	assert.Equal(t, llm.RoleSystem, second[len(second)-1].Role)
	assert.Contains(t, second[len(second)-1].Content, `"status":"shipped"`)

	invs, err := f.store.ListActionInvocations(context.Background(), f.conv.ID)
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, "ep_orders", invs[0].EndpointID)
	assert.True(t, invs[0].Success)

	assert.Contains(t, f.eventTypes(t), domain.EventTypeActionExecuted)
}

func TestGenerateResponse_FailedActionStillAnswers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	completer := &scriptedCompleter{replies: []string{
		`[USE_ACTION: ep_orders] [PARAMETERS: {"id": 9}]`,
		"I could not find that order.",
	}}
	f := newFixture(t, completer, nil)
	f.addEndpoint(t, "ep_orders", server.URL+"/orders/{id}")

	res := f.svc.GenerateResponse(context.Background(), f.conv.ID)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "I could not find that order.", res.Message)
	require.NotNil(t, res.Action)
	assert.False(t, res.Action.Success)
	assert.Equal(t, "404 Not Found", res.Action.Error)

	second := completer.requests[1].Messages
	assert.Contains(t, second[len(second)-1].Content, "404 Not Found")
}

func TestGenerateResponse_DirectiveIgnored(t *testing.T) {
	initial := "Checking now. [USE_ACTION: ep_missing] [PARAMETERS: {}]"
	f := newFixture(t, &scriptedCompleter{replies: []string{initial}}, nil)

	res := f.svc.GenerateResponse(context.Background(), f.conv.ID)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, initial, res.Message)
	assert.Equal(t, domain.OutcomeDirectiveIgnored, res.Outcome)
	assert.Nil(t, res.Action)
	assert.Equal(t, 1, f.completer.calls())
	assert.Contains(t, f.eventTypes(t), domain.EventTypeDirectiveIgnored)
}

func TestGenerateResponse_InactiveEndpointIsIgnored(t *testing.T) {
	f := newFixture(t, &scriptedCompleter{replies: []string{"[USE_ACTION: ep_off]"}}, nil)
	_, err := f.svc.CreateEndpoint(context.Background(), &domain.Endpoint{
		ID: "ep_off", AgentID: f.agent.ID, Name: "Off", Method: domain.MethodGet,
		URL: "http://127.0.0.1:1/off", IsActive: false,
	})
	require.NoError(t, err)

	res := f.svc.GenerateResponse(context.Background(), f.conv.ID)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, domain.OutcomeDirectiveIgnored, res.Outcome)
}

func TestGenerateResponse_PolicyBlocksAction(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy, []string{"ep_orders"})
	require.NoError(t, err)

	completer := &scriptedCompleter{replies: []string{
		`[USE_ACTION: ep_orders] [PARAMETERS: {"id": 42}]`,
		"I'm not able to look that up right now.",
	}}
	f := newFixture(t, completer, engine)
	f.addEndpoint(t, "ep_orders", server.URL+"/orders/{id}")

	res := f.svc.GenerateResponse(context.Background(), f.conv.ID)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, int32(0), hits.Load())
	require.NotNil(t, res.Action)
	assert.False(t, res.Action.Success)
	assert.Equal(t, "blocked by policy: endpoint is blocklisted", res.Action.Error)

	second := completer.requests[1].Messages
	assert.Contains(t, second[len(second)-1].Content, "blocked by policy")
	assert.Contains(t, f.eventTypes(t), domain.EventTypeActionBlocked)
}

func TestGenerateResponse_EndConversation(t *testing.T) {
	f := newFixture(t, &scriptedCompleter{replies: []string{"Glad I could help. Goodbye! [END_CONVERSATION]"}}, nil)

	res := f.svc.GenerateResponse(context.Background(), f.conv.ID)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Glad I could help. Goodbye!", res.Message)
	assert.True(t, res.Closed)

	conv, err := f.svc.GetConversation(context.Background(), f.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationStatusClosed, conv.Status)
	assert.NotNil(t, conv.ClosedAt)
	assert.Equal(t, int64(1), conv.Version)
	assert.Contains(t, f.eventTypes(t), domain.EventTypeConversationClosed)
}

func TestGenerateResponse_ClosedConversationClosesAgain(t *testing.T) {
	f := newFixture(t, &scriptedCompleter{replies: []string{
		"Goodbye! [END_CONVERSATION]",
		"Bye again. [END_CONVERSATION]",
	}}, nil)
	ctx := context.Background()

	first := f.svc.GenerateResponse(ctx, f.conv.ID)
	require.True(t, first.Success, first.Error)
	require.True(t, first.Closed)
	closed, err := f.svc.GetConversation(ctx, f.conv.ID)
	require.NoError(t, err)

	second := f.svc.GenerateResponse(ctx, f.conv.ID)
	require.True(t, second.Success, second.Error)
	assert.True(t, second.Closed)
	assert.Equal(t, "Bye again.", second.Message)

	again, err := f.svc.GetConversation(ctx, f.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationStatusClosed, again.Status)
	assert.Equal(t, closed.Version+1, again.Version)
	require.NotNil(t, again.ClosedAt)
	assert.False(t, again.ClosedAt.Before(*closed.ClosedAt))

	var closes int
	for _, typ := range f.eventTypes(t) {
		if typ == domain.EventTypeConversationClosed {
			closes++
		}
	}
	assert.Equal(t, 2, closes)
}

func TestGenerateResponse_SentinelOnlyCountsOnFinalText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"shipped"}`))
	}))
	defer server.Close()

	f := newFixture(t, &scriptedCompleter{replies: []string{
		`Let me check. [USE_ACTION: ep_orders] [PARAMETERS: {"id": "42"}] [END_CONVERSATION]`,
		"Your order has shipped. Anything else?",
	}}, nil)
	f.addEndpoint(t, "ep_orders", server.URL+"/orders/{id}")

	res := f.svc.GenerateResponse(context.Background(), f.conv.ID)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, domain.OutcomeActionExecuted, res.Outcome)
	assert.Equal(t, "Your order has shipped. Anything else?", res.Message)
	assert.False(t, res.Closed)

	conv, err := f.svc.GetConversation(context.Background(), f.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationStatusOpen, conv.Status)
	assert.Nil(t, conv.ClosedAt)
	assert.NotContains(t, f.eventTypes(t), domain.EventTypeConversationClosed)
}

func TestGenerateResponse_CloseConflictIsRecordedSeparately(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"Goodbye! [END_CONVERSATION]"}}
	f := newFixture(t, completer, nil)
	// Another writer bumps the version while the reply is being generated.
	completer.onCall = func(int) {
		require.NoError(t, f.store.CloseConversation(context.Background(), f.conv.ID, 0, time.Now().UTC()))
	}

	res := f.svc.GenerateResponse(context.Background(), f.conv.ID)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Goodbye!", res.Message)
	assert.False(t, res.Closed)

	types := f.eventTypes(t)
	assert.Contains(t, types, domain.EventTypeCloseFailed)
	assert.NotContains(t, types, domain.EventTypeConversationClosed)
}

func TestGenerateResponse_ConfigurationErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("conversation not found", func(t *testing.T) {
		f := newFixture(t, &scriptedCompleter{}, nil)
		res := f.svc.GenerateResponse(ctx, "nope")
		assert.False(t, res.Success)
		assert.Equal(t, "Conversation not found", res.Error)
		assert.Equal(t, 0, f.completer.calls())
	})

	t.Run("no agent assigned", func(t *testing.T) {
		f := newFixture(t, &scriptedCompleter{}, nil)
		conv, err := f.svc.CreateConversation(ctx, &domain.Conversation{})
		require.NoError(t, err)
		res := f.svc.GenerateResponse(ctx, conv.ID)
		assert.False(t, res.Success)
		assert.Equal(t, "No agent assigned to conversation", res.Error)
		assert.Equal(t, 0, f.completer.calls())
	})

	t.Run("inactive agent", func(t *testing.T) {
		f := newFixture(t, &scriptedCompleter{}, nil)
		agent, err := f.svc.CreateAgent(ctx, &domain.Agent{Name: "Off", Status: domain.AgentStatusInactive})
		require.NoError(t, err)
		conv, err := f.svc.CreateConversation(ctx, &domain.Conversation{AgentID: agent.ID})
		require.NoError(t, err)
		res := f.svc.GenerateResponse(ctx, conv.ID)
		assert.False(t, res.Success)
		assert.Equal(t, "Agent is not active", res.Error)
		assert.Equal(t, 0, f.completer.calls())
	})
}

func TestGenerateResponse_CompleterError(t *testing.T) {
	f := newFixture(t, &scriptedCompleter{err: errors.New("upstream down")}, nil)

	res := f.svc.GenerateResponse(context.Background(), f.conv.ID)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "upstream down")
	assert.Empty(t, res.Message)
}

func TestGenerateResponse_Panic(t *testing.T) {
	f := newFixture(t, &scriptedCompleter{panics: true}, nil)

	res := f.svc.GenerateResponse(context.Background(), f.conv.ID)

	assert.False(t, res.Success)
	assert.Equal(t, "Failed to generate response", res.Error)

	// The lock is released after a panic.
	release, err := f.locker.Acquire(context.Background(), f.conv.ID)
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))
}

func TestGenerateResponse_Busy(t *testing.T) {
	f := newFixture(t, &scriptedCompleter{replies: []string{"hi"}}, nil)

	release, err := f.locker.Acquire(context.Background(), f.conv.ID)
	require.NoError(t, err)
	defer func() { _ = release(context.Background()) }()

	res := f.svc.GenerateResponse(context.Background(), f.conv.ID)

	assert.False(t, res.Success)
	assert.Equal(t, "conversation is busy", res.Error)
	assert.Equal(t, 0, f.completer.calls())
}

func TestIngestUserMessage_ConcurrentMessagesAreQueued(t *testing.T) {
	f := newFixture(t, &scriptedCompleter{replies: []string{"First answer.", "Second answer."}}, nil)
	f.svc.config.LockWait = 5 * time.Second
	ctx := context.Background()

	// Hold the lock so both ingests have to queue.
	release, err := f.locker.Acquire(ctx, f.conv.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*domain.ReplyResult, 2)
	errs := make([]error, 2)
	for i, content := range []string{"first message", "second message"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.svc.IngestUserMessage(ctx, f.conv.ID, content)
		}()
	}

	time.Sleep(150 * time.Millisecond)
	require.NoError(t, release(ctx))
	wg.Wait()

	var answers []string
	for i := range results {
		require.NoError(t, errs[i])
		require.True(t, results[i].Success, results[i].Error)
		answers = append(answers, results[i].Message)
	}
	assert.ElementsMatch(t, []string{"First answer.", "Second answer."}, answers)
	assert.Equal(t, 2, f.completer.calls())
	assert.Len(t, f.deliverer.delivered, 2)

	msgs, err := f.svc.GetMessages(ctx, f.conv.ID, 0, "")
	require.NoError(t, err)
	assert.Len(t, msgs, 5)
}

func TestReply_StoresAndDelivers(t *testing.T) {
	f := newFixture(t, &scriptedCompleter{replies: []string{"Hello Ada!"}}, nil)

	res, err := f.svc.Reply(context.Background(), f.conv.ID)
	require.NoError(t, err)

	require.True(t, res.Success, res.Error)
	assert.True(t, res.Delivered)
	require.NotEmpty(t, res.MessageID)
	require.Len(t, f.deliverer.delivered, 1)
	assert.Equal(t, "Hello Ada!", f.deliverer.delivered[0].Content)

	msgs, err := f.svc.GetMessages(context.Background(), f.conv.ID, 0, "")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.MessageRoleAgent, msgs[1].Role)
	assert.Equal(t, domain.MessageStatusSent, msgs[1].Status)
}

func TestReply_DeliveryFailure(t *testing.T) {
	f := newFixture(t, &scriptedCompleter{replies: []string{"Hello Ada!"}}, nil)
	f.deliverer.err = errors.New("channel unavailable")

	res, err := f.svc.Reply(context.Background(), f.conv.ID)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.False(t, res.Delivered)

	msgs, err := f.svc.GetMessages(context.Background(), f.conv.ID, 0, "")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.MessageStatusFailed, msgs[1].Status)
	assert.Contains(t, f.eventTypes(t), domain.EventTypeDeliveryFailed)
}

func TestReply_GenerationFailureStoresNothing(t *testing.T) {
	f := newFixture(t, &scriptedCompleter{err: errors.New("upstream down")}, nil)

	res, err := f.svc.Reply(context.Background(), f.conv.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, f.deliverer.delivered)

	msgs, err := f.svc.GetMessages(context.Background(), f.conv.ID, 0, "")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestIngestUserMessage(t *testing.T) {
	f := newFixture(t, &scriptedCompleter{replies: []string{"Sure, one moment."}}, nil)

	res, err := f.svc.IngestUserMessage(context.Background(), f.conv.ID, "  Can you help?  ")
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	msgs, err := f.svc.GetMessages(context.Background(), f.conv.ID, 0, "")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "Can you help?", msgs[1].Content)
	assert.Equal(t, domain.MessageRoleUser, msgs[1].Role)

	last := f.completer.requests[0].Messages
	assert.Equal(t, "Can you help?", last[len(last)-1].Content)

	_, err = f.svc.IngestUserMessage(context.Background(), "nope", "hi")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)

	_, err = f.svc.IngestUserMessage(context.Background(), f.conv.ID, "   ")
	assert.Error(t, err)
}

func TestTestEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/orders/"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	f := newFixture(t, &scriptedCompleter{}, nil)
	f.addEndpoint(t, "ep_orders", server.URL+"/orders/{id}")

	res, err := f.svc.TestEndpoint(context.Background(), "ep_orders", domain.Params{"id": domain.NumberParam(5)})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, map[string]any{"ok": true}, res.Data)

	_, err = f.svc.TestEndpoint(context.Background(), "ep_missing", nil)
	assert.ErrorIs(t, err, domain.ErrEndpointNotFound)
}
