package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/teams-assistant-bot/internal/assistant"
	"github.com/xaenox/teams-assistant-bot/internal/auth"
	"github.com/xaenox/teams-assistant-bot/internal/gate"
	"github.com/xaenox/teams-assistant-bot/internal/storage"
	"github.com/xaenox/teams-assistant-bot/internal/teams"
)

const (
	testAppID    = "app-123"
	testPassword = "secret-password"
)

type fakeRelay struct {
	mu       sync.Mutex
	reply    string
	calls    int
	lastUser string
	lastText string
}

func (f *fakeRelay) GetResponse(ctx context.Context, userID, message string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastUser = userID
	f.lastText = message
	return f.reply
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []teams.Activity
	sendErr error
}

func (f *fakeSender) SendActivity(ctx context.Context, activity teams.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, activity)
	return nil
}

func (f *fakeSender) messages() []teams.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []teams.Activity
	for _, a := range f.sent {
		if a.Type == teams.ActivityMessage {
			out = append(out, a)
		}
	}
	return out
}

func newTestServer(t *testing.T, relay Responder, sender Sender, allowList []string) *Server {
	t.Helper()
	b := New(relay, gate.New(allowList, zap.NewNop()), sender, testAppID, zap.NewNop())
	return NewServer(":0", testPassword, b, zap.NewNop())
}

func postActivity(t *testing.T, srv *Server, body string, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if authenticated {
		token, err := auth.GenerateToken(testAppID, testPassword, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

const personalMessage = `{
	"type": "message",
	"id": "act-1",
	"serviceUrl": "https://smba.example.com",
	"channelId": "msteams",
	"from": {"id": "u1", "name": "Alice"},
	"recipient": {"id": "bot", "name": "Assistant"},
	"conversation": {"id": "conv-1", "conversationType": "personal", "tenantId": "tenant-a"},
	"text": "hello"
}`

func TestMessageRelayedEndToEnd(t *testing.T) {
	relay := &fakeRelay{reply: "hi there"}
	sender := &fakeSender{}
	srv := newTestServer(t, relay, sender, nil)

	rec := postActivity(t, srv, personalMessage, true)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, relay.calls)
	assert.Equal(t, "u1", relay.lastUser)
	assert.Equal(t, "hello", relay.lastText)

	replies := sender.messages()
	require.Len(t, replies, 1)
	assert.Equal(t, "hi there", replies[0].Text)
	assert.Equal(t, "u1", replies[0].Recipient.ID)
	assert.Equal(t, "act-1", replies[0].ReplyToID)

	// A typing indicator precedes the reply.
	require.NotEmpty(t, sender.sent)
	assert.Equal(t, teams.ActivityTyping, sender.sent[0].Type)
}

func TestGroupMessageSilentlyDropped(t *testing.T) {
	relay := &fakeRelay{reply: "hi there"}
	sender := &fakeSender{}
	srv := newTestServer(t, relay, sender, nil)

	body := strings.Replace(personalMessage, `"conversationType": "personal"`, `"conversationType": "channel"`, 1)
	rec := postActivity(t, srv, body, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, relay.calls)
	assert.Empty(t, sender.sent)
}

func TestTenantDenied(t *testing.T) {
	relay := &fakeRelay{reply: "hi there"}
	sender := &fakeSender{}
	srv := newTestServer(t, relay, sender, []string{"tenant-b"})

	rec := postActivity(t, srv, personalMessage, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, relay.calls)

	replies := sender.messages()
	require.Len(t, replies, 1)
	assert.Equal(t, accessDeniedText, replies[0].Text)
}

func TestTenantAllowed(t *testing.T) {
	relay := &fakeRelay{reply: "hi there"}
	sender := &fakeSender{}
	srv := newTestServer(t, relay, sender, []string{"tenant-a"})

	rec := postActivity(t, srv, personalMessage, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, relay.calls)
}

func TestMissingTokenRejected(t *testing.T) {
	relay := &fakeRelay{reply: "hi there"}
	sender := &fakeSender{}
	srv := newTestServer(t, relay, sender, nil)

	rec := postActivity(t, srv, personalMessage, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, relay.calls)
}

func TestWrongAudienceRejected(t *testing.T) {
	relay := &fakeRelay{reply: "hi there"}
	sender := &fakeSender{}
	srv := newTestServer(t, relay, sender, nil)

	token, err := auth.GenerateToken("another-app", testPassword, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(personalMessage))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, relay.calls)
}

func TestMalformedBodyRejected(t *testing.T) {
	relay := &fakeRelay{reply: "hi there"}
	sender := &fakeSender{}
	srv := newTestServer(t, relay, sender, nil)

	rec := postActivity(t, srv, `{not json`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postActivity(t, srv, `{"text": "no type"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversationUpdateSendsWelcome(t *testing.T) {
	relay := &fakeRelay{reply: "hi there"}
	sender := &fakeSender{}
	srv := newTestServer(t, relay, sender, nil)

	body := `{
		"type": "conversationUpdate",
		"serviceUrl": "https://smba.example.com",
		"channelId": "msteams",
		"recipient": {"id": "bot"},
		"conversation": {"id": "conv-1"},
		"membersAdded": [{"id": "bot"}, {"id": "u1"}]
	}`
	rec := postActivity(t, srv, body, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	replies := sender.messages()
	require.Len(t, replies, 1)
	assert.Equal(t, welcomeText, replies[0].Text)
}

func TestUnknownActivityTypeIgnored(t *testing.T) {
	relay := &fakeRelay{reply: "hi there"}
	sender := &fakeSender{}
	srv := newTestServer(t, relay, sender, nil)

	rec := postActivity(t, srv, `{"type": "messageReaction"}`, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, relay.calls)
	assert.Empty(t, sender.sent)
}

func TestReplySendFailureReturns500(t *testing.T) {
	relay := &fakeRelay{reply: "hi there"}
	sender := &fakeSender{sendErr: errors.New("connector unreachable")}
	srv := newTestServer(t, relay, sender, nil)

	rec := postActivity(t, srv, personalMessage, true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthEndpointUnauthenticated(t *testing.T) {
	relay := &fakeRelay{reply: "hi there"}
	sender := &fakeSender{}
	srv := newTestServer(t, relay, sender, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.Contains(t, rec.Body.String(), `"counters"`)
}

// threadCountingClient answers every run immediately so the webhook
// round trip can exercise the real relay and registry together.
type threadCountingClient struct {
	mu             sync.Mutex
	threadsCreated int
}

func (f *threadCountingClient) CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threadsCreated++
	return openai.Thread{ID: "thread-1"}, nil
}

func (f *threadCountingClient) CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error) {
	return openai.Message{}, nil
}

func (f *threadCountingClient) CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error) {
	return openai.Run{ID: "run-1", Status: openai.RunStatusCompleted}, nil
}

func (f *threadCountingClient) RetrieveRun(ctx context.Context, threadID, runID string) (openai.Run, error) {
	return openai.Run{ID: runID, Status: openai.RunStatusCompleted}, nil
}

func (f *threadCountingClient) ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (openai.MessagesList, error) {
	return openai.MessagesList{
		Messages: []openai.Message{{
			Role: "assistant",
			Content: []openai.MessageContent{{
				Type: "text",
				Text: &openai.MessageText{Value: "hi there"},
			}},
		}},
	}, nil
}

func TestThreadReusedAcrossWebhookCalls(t *testing.T) {
	client := &threadCountingClient{}
	relay := assistant.New(client, "asst-1", storage.NewMemoryStore(), time.Millisecond, time.Second, zap.NewNop())
	sender := &fakeSender{}
	srv := newTestServer(t, relay, sender, nil)

	rec := postActivity(t, srv, personalMessage, true)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = postActivity(t, srv, personalMessage, true)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, client.threadsCreated)

	replies := sender.messages()
	require.Len(t, replies, 2)
	assert.Equal(t, "hi there", replies[0].Text)
	assert.Equal(t, "hi there", replies[1].Text)
}
