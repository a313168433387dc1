package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/xiaot623/threads/agent"
	"github.com/xiaot623/threads/api"
	"github.com/xiaot623/threads/auth"
	"github.com/xiaot623/threads/config"
	"github.com/xiaot623/threads/domain"
	"github.com/xiaot623/threads/hub"
	"github.com/xiaot623/threads/policy"
	"github.com/xiaot623/threads/ratelimit"
	"github.com/xiaot623/threads/service"
	"github.com/xiaot623/threads/tests/helpers"
)

const testAPIKey = "test-key"

type quietResponder struct{}

func (quietResponder) Respond(ctx context.Context, sessionID string, conversation []domain.Message, emit agent.EmitFunc) error {
	return nil
}

// newTestServer stands up the full HTTP stack on an in-memory store.
func newTestServer(t *testing.T, limCfg ratelimit.Config) *httptest.Server {
	t.Helper()

	st := helpers.NewTestSQLiteStore(t)

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("failed to create policy engine: %v", err)
	}

	cfg := &config.Config{
		ResponderTimeout: 5 * time.Second,
		SweepInterval:    time.Minute,
	}
	h := hub.New()
	svc := service.New(st, ratelimit.New(limCfg), engine, quietResponder{}, h, cfg)
	handler := api.NewHandler(svc, auth.NewStaticValidator(map[string]string{testAPIKey: "cred_test"}), h)

	e := echo.New()
	handler.RegisterRoutes(e)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, body string, authed bool) *http.Response {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set(api.HeaderAPIKey, testAPIKey)
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func createThread(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := doRequest(t, srv, http.MethodPost, "/thread", "{}", true)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created domain.CreateThreadResponse
	decode(t, resp, &created)
	return created.ID
}

func generousLimits() ratelimit.Config {
	return ratelimit.Config{PerMinute: 1000, PerHour: 10000, MaxActiveSessions: 100}
}

func TestCreateThreadEndpoint(t *testing.T) {
	srv := newTestServer(t, generousLimits())

	resp := doRequest(t, srv, http.MethodPost, "/thread", "{}", true)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created domain.CreateThreadResponse
	decode(t, resp, &created)
	assert.True(t, strings.HasPrefix(created.ID, "sess_"))
	assert.False(t, created.CreatedAt.IsZero())

	// Rate-limit headers ride on every authenticated response.
	assert.Equal(t, "1000", resp.Header.Get(api.HeaderRateLimitLimit))
	assert.NotEmpty(t, resp.Header.Get(api.HeaderRateLimitRemaining))
	assert.NotEmpty(t, resp.Header.Get(api.HeaderRateLimitReset))
}

func TestMissingAPIKey(t *testing.T) {
	srv := newTestServer(t, generousLimits())

	resp := doRequest(t, srv, http.MethodPost, "/thread", "{}", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body domain.ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, "unauthorized", body.Error)
}

func TestUnknownAPIKey(t *testing.T) {
	srv := newTestServer(t, generousLimits())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/thread", strings.NewReader("{}"))
	assert.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.HeaderAPIKey, "not-a-key")

	resp, err := srv.Client().Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPostAndListMessages(t *testing.T) {
	srv := newTestServer(t, generousLimits())
	id := createThread(t, srv)

	resp := doRequest(t, srv, http.MethodPost, "/thread/"+id+"/messages", `{"message":"hello"}`, true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var ack domain.SuccessResponse
	decode(t, resp, &ack)
	assert.True(t, ack.Success)

	resp = doRequest(t, srv, http.MethodGet, "/thread/"+id+"/messages", "", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var messages []domain.Message
	decode(t, resp, &messages)
	if assert.Len(t, messages, 1) {
		assert.Equal(t, int64(1), messages[0].ID)
		assert.Equal(t, "hello", messages[0].Content)
		assert.Equal(t, domain.MessageTypeUser, messages[0].Type)
	}
}

func TestListMessagesEmptyThread(t *testing.T) {
	srv := newTestServer(t, generousLimits())
	id := createThread(t, srv)

	resp := doRequest(t, srv, http.MethodGet, "/thread/"+id+"/messages", "", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var messages []domain.Message
	decode(t, resp, &messages)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
}

func TestListMessagesLimitValidation(t *testing.T) {
	srv := newTestServer(t, generousLimits())
	id := createThread(t, srv)

	cases := []struct {
		query  string
		status int
	}{
		{"limit=0", http.StatusBadRequest},
		{"limit=101", http.StatusBadRequest},
		{"limit=abc", http.StatusBadRequest},
		{"order=sideways", http.StatusBadRequest},
		{"after=xyz", http.StatusBadRequest},
		{"limit=1", http.StatusOK},
		{"limit=100", http.StatusOK},
		{"", http.StatusOK},
	}
	for _, tc := range cases {
		path := "/thread/" + id + "/messages"
		if tc.query != "" {
			path += "?" + tc.query
		}
		resp := doRequest(t, srv, http.MethodGet, path, "", true)
		assert.Equal(t, tc.status, resp.StatusCode, "query %q", tc.query)
	}
}

func TestGetUnknownThread(t *testing.T) {
	srv := newTestServer(t, generousLimits())

	resp := doRequest(t, srv, http.MethodGet, "/thread/sess_missing", "", true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body domain.ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, "not_found", body.Error)
}

func TestPostMessageTooLong(t *testing.T) {
	srv := newTestServer(t, generousLimits())
	id := createThread(t, srv)

	payload := fmt.Sprintf(`{"message":%q}`, strings.Repeat("x", 4001))
	resp := doRequest(t, srv, http.MethodPost, "/thread/"+id+"/messages", payload, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body domain.ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, "validation_error", body.Error)
	assert.NotEmpty(t, body.Message)
}

func TestPostMessageToClosedThread(t *testing.T) {
	srv := newTestServer(t, generousLimits())
	id := createThread(t, srv)

	resp := doRequest(t, srv, http.MethodPost, "/thread/"+id+"/close", "", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodPost, "/thread/"+id+"/messages", `{"message":"hello"}`, true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var body domain.ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, "session_not_active", body.Error)
}

func TestRateLimitedRequest(t *testing.T) {
	srv := newTestServer(t, ratelimit.Config{PerMinute: 2, PerHour: 100, MaxActiveSessions: 10})

	resp := doRequest(t, srv, http.MethodGet, "/thread/sess_x", "", true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = doRequest(t, srv, http.MethodGet, "/thread/sess_x", "", true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/thread/sess_x", "", true)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get(api.HeaderRateLimitLimit))
	assert.Equal(t, "0", resp.Header.Get(api.HeaderRateLimitRemaining))

	var body domain.ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, "rate_limited", body.Error)
	assert.NotZero(t, body.ResetAt)
}

func TestGetThreadResponseShape(t *testing.T) {
	srv := newTestServer(t, generousLimits())
	id := createThread(t, srv)

	resp := doRequest(t, srv, http.MethodGet, "/thread/"+id, "", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]any
	decode(t, resp, &raw)
	assert.Equal(t, id, raw["id"])
	assert.Equal(t, string(domain.SessionStatusActive), raw["status"])
	assert.Contains(t, raw, "createdAt")
	assert.Contains(t, raw, "messageCount")
	// Internal ownership never leaks onto the wire.
	assert.NotContains(t, raw, "credentialId")
	assert.NotContains(t, raw, "CredentialID")
}

func TestHealthEndpointIsOpen(t *testing.T) {
	srv := newTestServer(t, generousLimits())

	resp := doRequest(t, srv, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}
