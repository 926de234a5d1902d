// Package desk counts support tickets linked to a task.
package desk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bugdigest/bug-digest/internal/config"
	"github.com/bugdigest/bug-digest/internal/domain"
)

// Client queries the desk ticket search endpoint.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

type searchResponse struct {
	Pagination *struct {
		Records *int `json:"records"`
	} `json:"pagination"`
}

// NewClient builds a client. A zero timeout leaves the transport default.
func NewClient(cfg config.TicketSourceConfig, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// CountTickets returns pagination.records for tickets linked to the task; a missing
// count is zero. Transport errors, non-2xx responses and undecodable bodies are errors.
func (c *Client) CountTickets(ctx context.Context, taskID domain.TaskID) (int, error) {
	q := url.Values{}
	q.Set("task", taskID.String())
	u := c.baseURL + "/desk/api/v2/search/tickets.json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("desk api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode desk search: %w", err)
	}
	if body.Pagination == nil || body.Pagination.Records == nil {
		return 0, nil
	}
	return *body.Pagination.Records, nil
}
