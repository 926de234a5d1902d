// Package chat posts markdown messages to a chat channel webhook.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/bugdigest/bug-digest/pkg/util/errorutil"
)

// Client publishes messages to incoming webhooks.
type Client struct {
	http   *http.Client
	logger *zap.Logger
}

type messageBody struct {
	Body string `json:"body"`
}

// NewClient builds a client. A zero timeout leaves the transport default.
func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{http: &http.Client{Timeout: timeout}, logger: logger}
}

// Send posts {"body": message} once. Success is decided by status code alone; the
// response body may be JSON or plain text.
func (c *Client) Send(ctx context.Context, webhookURL, message string) error {
	if strings.TrimSpace(webhookURL) == "" {
		return apperrors.NewValidationError("webhook url is empty", nil)
	}

	payload, err := json.Marshal(messageBody{Body: message})
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return apperrors.NewPublishFailed(webhookURL, 0, "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.NewPublishFailed(webhookURL, 0, "", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	text := strings.TrimSpace(string(raw))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewPublishFailed(webhookURL, resp.StatusCode, text,
			fmt.Errorf("webhook status=%d", resp.StatusCode))
	}

	var decoded any
	if json.Unmarshal(raw, &decoded) == nil {
		c.logger.Info("message sent", zap.Int("status", resp.StatusCode), zap.Any("response", decoded))
	} else {
		c.logger.Info("message sent", zap.Int("status", resp.StatusCode), zap.String("response", text))
	}
	return nil
}
