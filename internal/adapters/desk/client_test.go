package desk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bugdigest/bug-digest/internal/config"
)

type capturedRequest struct {
	path string
	task string
	auth string
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.task = r.URL.Query().Get("task")
		captured.auth = r.Header.Get("Authorization")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestClient_CountTickets(t *testing.T) {
	t.Parallel()

	srv, captured := newServer(t, http.StatusOK, `{"tickets": [], "pagination": {"records": 7, "pages": 1}}`)
	client := NewClient(config.TicketSourceConfig{BaseURL: srv.URL, APIKey: "desk-token"}, time.Second, zap.NewNop())

	n, err := client.CountTickets(context.Background(), "123")

	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "/desk/api/v2/search/tickets.json", captured.path)
	assert.Equal(t, "123", captured.task)
	assert.Equal(t, "Bearer desk-token", captured.auth)
}

func TestClient_CountTickets_When_CountMissing(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`{}`, `{"pagination": {}}`, `{"pagination": null}`} {
		srv, _ := newServer(t, http.StatusOK, body)
		client := NewClient(config.TicketSourceConfig{BaseURL: srv.URL}, time.Second, zap.NewNop())

		n, err := client.CountTickets(context.Background(), "1")

		require.NoError(t, err, body)
		assert.Zero(t, n, body)
	}
}

func TestClient_CountTickets_When_Failure(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		status int
		body   string
	}{
		"server error":  {http.StatusInternalServerError, "boom"},
		"rate limited":  {http.StatusTooManyRequests, `{"error": "slow down"}`},
		"not json body": {http.StatusOK, "<html>"},
	}
	for name, tc := range cases {
		srv, _ := newServer(t, tc.status, tc.body)
		client := NewClient(config.TicketSourceConfig{BaseURL: srv.URL}, time.Second, zap.NewNop())

		_, err := client.CountTickets(context.Background(), "1")

		assert.Error(t, err, name)
	}
}
