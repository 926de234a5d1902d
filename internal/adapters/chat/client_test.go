package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/bugdigest/bug-digest/pkg/util/errorutil"
)

func TestClient_Send(t *testing.T) {
	t.Parallel()

	var got map[string]string
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	}))
	defer srv.Close()

	err := NewClient(time.Second, zap.NewNop()).Send(context.Background(), srv.URL, "| a |\n| --- |")

	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, map[string]string{"body": "| a |\n| --- |"}, got)
}

func TestClient_Send_When_PlainTextResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK"))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	err := NewClient(time.Second, zap.New(core)).Send(context.Background(), srv.URL, "hello")

	require.NoError(t, err)
	entries := logs.FilterMessage("message sent").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "OK", entries[0].ContextMap()["response"])
}

func TestClient_Send_When_Non2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid token"))
	}))
	defer srv.Close()

	err := NewClient(time.Second, zap.NewNop()).Send(context.Background(), srv.URL, "hello")

	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodePublishFailed, domainErr.Code)
	assert.Equal(t, http.StatusForbidden, domainErr.Details["status"])
	assert.Equal(t, "invalid token", domainErr.Details["body"])
}

func TestClient_Send_When_EmptyURL(t *testing.T) {
	t.Parallel()

	err := NewClient(time.Second, zap.NewNop()).Send(context.Background(), " ", "hello")

	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}
