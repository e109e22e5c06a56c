// Package bloodhound is a small client for the BloodHound Community Edition API.
package bloodhound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/oar-cd/hound/domain"
	"github.com/tidwall/gjson"
)

const (
	apiPrefix = "/api/v2"

	// maxErrorBody bounds how much of a failed response is kept for error messages
	maxErrorBody = 4096
)

// Feature is a server-side feature flag
type Feature struct {
	ID      int64
	Key     string
	Name    string
	Enabled bool
}

// Upload is one file upload job as reported by the server
type Upload struct {
	ID            int64
	Status        int64
	StatusMessage string
}

// Client holds a base URL and a bearer token. Calls are blocking and never retried.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	token      string
}

type Option func(*Client)

// WithHTTPClient replaces the pooled default client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithToken starts the client with an existing session token
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the per-request timeout of the underlying HTTP client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  "hound",
		httpClient: cleanhttp.DefaultPooledClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current session token, empty before Login
func (c *Client) Token() string {
	return c.token
}

// Login exchanges a secret for a session token and keeps it for later calls
func (c *Client) Login(ctx context.Context, username, secret string) (string, error) {
	payload := map[string]string{
		"login_method": "secret",
		"username":     username,
		"secret":       secret,
	}

	status, body, err := c.do(ctx, http.MethodPost, "/login", payload, false)
	if err != nil {
		return "", err
	}
	if !isSuccess(status) {
		return "", &domain.AuthenticationFailedError{StatusCode: status, Body: truncate(body)}
	}

	token := gjson.GetBytes(body, "data.session_token").String()
	if token == "" {
		return "", &domain.AuthenticationFailedError{StatusCode: status, Body: "response has no session token"}
	}
	c.token = token

	slog.Debug("Logged in", "layer", "bloodhound", "operation", "login", "username", username)
	return token, nil
}

// GetSelf returns the id of the authenticated user
func (c *Client) GetSelf(ctx context.Context) (string, error) {
	body, err := c.authedCall(ctx, http.MethodGet, "/self", nil, "get self")
	if err != nil {
		return "", err
	}

	id := gjson.GetBytes(body, "data.id").String()
	if id == "" {
		return "", errors.New("get self: response has no user id")
	}
	return id, nil
}

// RotatePassword sets a new secret for userID and clears the forced reset flag.
// current is sent only when non-empty.
func (c *Client) RotatePassword(ctx context.Context, userID, current, next string) error {
	payload := map[string]any{
		"needs_password_reset": false,
		"secret":               next,
	}
	if current != "" {
		payload["current_secret"] = current
	}

	_, err := c.authedCall(ctx, http.MethodPut, "/bloodhound-users/"+url.PathEscape(userID)+"/secret", payload, "rotate password")
	return err
}

func (c *Client) ListFeatures(ctx context.Context) ([]Feature, error) {
	body, err := c.authedCall(ctx, http.MethodGet, "/features", nil, "list features")
	if err != nil {
		return nil, err
	}

	var features []Feature
	gjson.GetBytes(body, "data").ForEach(func(_, value gjson.Result) bool {
		features = append(features, Feature{
			ID:      value.Get("id").Int(),
			Key:     value.Get("key").String(),
			Name:    value.Get("name").String(),
			Enabled: value.Get("enabled").Bool(),
		})
		return true
	})
	return features, nil
}

// ToggleFeature flips a feature flag. Failures come back as *domain.FeatureToggleWarning.
func (c *Client) ToggleFeature(ctx context.Context, id int64) error {
	_, err := c.authedCall(ctx, http.MethodPut, "/features/"+strconv.FormatInt(id, 10)+"/toggle", nil, "toggle feature")
	if err != nil {
		return &domain.FeatureToggleWarning{Feature: strconv.FormatInt(id, 10), Err: err}
	}
	return nil
}

// EnableFeature turns on the flag with the given key if it is off
func (c *Client) EnableFeature(ctx context.Context, key string) error {
	features, err := c.ListFeatures(ctx)
	if err != nil {
		return &domain.FeatureToggleWarning{Feature: key, Err: err}
	}

	for _, f := range features {
		if f.Key != key {
			continue
		}
		if f.Enabled {
			return nil
		}
		if err := c.ToggleFeature(ctx, f.ID); err != nil {
			return &domain.FeatureToggleWarning{Feature: key, Err: errors.Unwrap(err)}
		}
		return nil
	}
	return &domain.FeatureToggleWarning{Feature: key, Err: errors.New("feature not offered by the server")}
}

// StartUpload opens a new upload batch and returns its id
func (c *Client) StartUpload(ctx context.Context) (int64, error) {
	body, err := c.authedCall(ctx, http.MethodPost, "/file-upload/start", nil, "start upload")
	if err != nil {
		return 0, err
	}

	id := gjson.GetBytes(body, "data.id")
	if !id.Exists() {
		return 0, errors.New("start upload: response has no batch id")
	}
	return id.Int(), nil
}

// UploadFile posts one file's raw JSON as part of batch id
func (c *Client) UploadFile(ctx context.Context, id int64, data []byte) error {
	_, err := c.authedCall(ctx, http.MethodPost, "/file-upload/"+strconv.FormatInt(id, 10), json.RawMessage(data), "upload file")
	return err
}

func (c *Client) EndUpload(ctx context.Context, id int64) error {
	_, err := c.authedCall(ctx, http.MethodPost, "/file-upload/"+strconv.FormatInt(id, 10)+"/end", nil, "end upload")
	return err
}

// ListUploads returns a page of upload jobs, newest first
func (c *Client) ListUploads(ctx context.Context, skip, limit int) ([]Upload, error) {
	query := url.Values{}
	query.Set("skip", strconv.Itoa(skip))
	query.Set("limit", strconv.Itoa(limit))
	query.Set("sort_by", "-id")

	body, err := c.authedCall(ctx, http.MethodGet, "/file-upload?"+query.Encode(), nil, "list uploads")
	if err != nil {
		return nil, err
	}

	var uploads []Upload
	gjson.GetBytes(body, "data").ForEach(func(_, value gjson.Result) bool {
		uploads = append(uploads, Upload{
			ID:            value.Get("id").Int(),
			Status:        value.Get("status").Int(),
			StatusMessage: value.Get("status_message").String(),
		})
		return true
	})
	return uploads, nil
}

// ClearDatabase deletes the collected graph data. Only 204 counts as success.
func (c *Client) ClearDatabase(ctx context.Context) error {
	if c.token == "" {
		return domain.ErrUnauthenticated
	}

	payload := map[string]any{
		"deleteCollectedGraphData":  true,
		"deleteFileIngestHistory":   false,
		"deleteDataQualityHistory":  false,
		"deleteAssetGroupSelectors": []int{},
	}

	status, body, err := c.do(ctx, http.MethodPost, "/clear-database", payload, true)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return fmt.Errorf("clear database: %w", domain.ErrUnauthenticated)
	}
	if status != http.StatusNoContent {
		return &domain.ClearFailedError{StatusCode: status, Body: truncate(body)}
	}
	return nil
}

// authedCall performs a call that requires a session token and a 2xx answer
func (c *Client) authedCall(ctx context.Context, method, path string, payload any, what string) ([]byte, error) {
	if c.token == "" {
		return nil, fmt.Errorf("%s: %w", what, domain.ErrUnauthenticated)
	}

	status, body, err := c.do(ctx, method, path, payload, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if status == http.StatusUnauthorized {
		return nil, fmt.Errorf("%s: %w", what, domain.ErrUnauthenticated)
	}
	if !isSuccess(status) {
		return nil, &StatusError{Operation: what, StatusCode: status, Body: truncate(body)}
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, authed bool) (int, []byte, error) {
	var reqBody io.Reader
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		reqBody = bytes.NewReader(p)
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	slog.Debug("BloodHound API call",
		"layer", "bloodhound",
		"method", method,
		"path", path,
		"status", resp.StatusCode)

	return resp.StatusCode, body, nil
}

// StatusError is returned for unexpected non-2xx answers
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Operation, e.StatusCode, e.Body)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}
