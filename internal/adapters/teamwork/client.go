// Package teamwork reads tasks from the project-management API.
package teamwork

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bugdigest/bug-digest/internal/config"
	"github.com/bugdigest/bug-digest/internal/domain"
	apperrors "github.com/bugdigest/bug-digest/pkg/util/errorutil"
)

// basicPassword is the fixed password paired with the API key for Basic auth.
const basicPassword = "xxx"

// CreatedBeforeLayout is the timestamp format expected by the createdBefore filter.
const CreatedBeforeLayout = "2006-01-02T15:04:05.000Z"

// Client is a task source backed by the v3 projects API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds a client. A zero timeout leaves the transport default.
func NewClient(cfg config.TaskSourceConfig, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// TasksURL returns the tasks endpoint for a list, or the global endpoint when the list id is empty.
func (c *Client) TasksURL(taskListID string, query domain.TaskQuery) string {
	path := "/projects/api/v3/tasks.json"
	if taskListID != "" {
		path = "/projects/api/v3/tasklists/" + url.PathEscape(taskListID) + "/tasks.json"
	}
	u := c.baseURL + path
	if q := QueryValues(query); len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// FetchTasks performs a single GET. Transport errors and non-2xx responses are fatal.
func (c *Client) FetchTasks(ctx context.Context, taskListID string, query domain.TaskQuery) (*domain.TaskPage, error) {
	u := c.TasksURL(taskListID, query)
	c.logger.Info("fetching tasks", zap.String("url", u))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperrors.NewFetchFailed(u, 0, err)
	}
	req.SetBasicAuth(c.apiKey, basicPassword)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewFetchFailed(u, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperrors.NewFetchFailed(u, resp.StatusCode,
			fmt.Errorf("task api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b))))
	}

	var page domain.TaskPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, apperrors.NewFetchFailed(u, resp.StatusCode, fmt.Errorf("decode tasks: %w", err))
	}
	c.logger.Info("tasks fetched", zap.Int("count", len(page.Tasks)))
	return &page, nil
}

// QueryValues encodes a TaskQuery as the API's query parameters.
func QueryValues(q domain.TaskQuery) url.Values {
	v := url.Values{}
	if !q.CreatedBefore.IsZero() {
		v.Set("createdBefore", q.CreatedBefore.UTC().Format(CreatedBeforeLayout))
		v.Set("createdFilter", "custom")
	}
	if len(q.AssigneeTeamIDs) > 0 {
		ids := make([]string, len(q.AssigneeTeamIDs))
		for i, id := range q.AssigneeTeamIDs {
			ids[i] = strconv.Itoa(id)
		}
		v.Set("assigneeTeamIds", strings.Join(ids, ","))
	}
	v.Set("skipCounts", "false")
	v.Set("includeCommentStats", strconv.FormatBool(q.IncludeCommentStats))
	v.Set("includeCompanyUserIds", strconv.FormatBool(q.IncludeCompanyUserIDs))
	v.Set("includeCustomFields", strconv.FormatBool(q.IncludeCustomFields))
	v.Set("getSubTasks", strconv.FormatBool(q.IncludeSubTasks))
	if q.OrderBy != "" {
		v.Set("orderBy", q.OrderBy)
	}
	if q.OrderMode != "" {
		v.Set("orderMode", q.OrderMode)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	return v
}
