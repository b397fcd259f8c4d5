package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"alliance.fr/admin/internal/auth"
)

// Client wraps the admin HTTP API and keeps the session in a FileStore.
type Client struct {
	baseURL string
	http    *http.Client
	store   *FileStore
}

// NewClient builds a client. Redirects are never followed so that area
// decisions can be reported as they were made.
func NewClient(baseURL string, store *FileStore, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	copied := *httpClient
	copied.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &copied,
		store:   store,
	}
}

// APIError is an error body returned by the API.
type APIError struct {
	Status    int    `json:"-"`
	Message   string `json:"error"`
	Code      string `json:"code"`
	Details   string `json:"details,omitempty"`
	Location  string `json:"location,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%d %s", e.Status, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// Is maps API error codes back onto the auth error taxonomy.
func (e *APIError) Is(target error) bool {
	switch e.Code {
	case "bad_request":
		return target == auth.ErrBadRequest
	case "not_found":
		return target == auth.ErrNotFound
	case "invalid_credentials":
		return target == auth.ErrInvalidCredentials
	case "unauthenticated":
		return target == auth.ErrUnauthenticated
	case "invalid_token":
		return target == auth.ErrInvalidToken
	case "token_expired":
		return target == auth.ErrTokenExpired
	case "server_error":
		return target == auth.ErrServer
	}
	return false
}

// LoginResult is what a successful login returns.
type LoginResult struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Employe   auth.Identity `json:"employe"`
	Redirect  *string       `json:"redirect"`
	Notice    string        `json:"notice"`
}

// Whoami is the identity bound to the stored token.
type Whoami struct {
	Employe auth.Identity `json:"employe"`
	Home    string        `json:"home"`
	Notice  string        `json:"notice"`
}

// AreaResult is the guard decision for an area.
type AreaResult struct {
	Decision string `json:"decision"`
	Route    string `json:"route"`
	Key      string `json:"key"`
	Location string `json:"location"`
}

// Login authenticates and persists the session under the fixed keys.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var res LoginResult
	body := map[string]string{"email": email, "mot_passe": password}
	if _, err := c.do(ctx, http.MethodPost, "/v1/auth/login", "", body, &res); err != nil {
		return LoginResult{}, err
	}
	if err := c.store.Save(Session{Token: res.Token, User: res.Employe}); err != nil {
		return LoginResult{}, err
	}
	return res, nil
}

// Whoami asks the API who the stored token belongs to. A rejected token
// clears the stored session.
func (c *Client) Whoami(ctx context.Context) (Whoami, error) {
	sess, err := c.store.Load()
	if err != nil {
		return Whoami{}, err
	}
	var res Whoami
	if _, err := c.do(ctx, http.MethodGet, "/v1/session", sess.Token, nil, &res); err != nil {
		return Whoami{}, c.dropOnRejection(err)
	}
	return res, nil
}

// Open runs the area guard for route. A redirect is returned as a result,
// not an error.
func (c *Client) Open(ctx context.Context, route string) (AreaResult, error) {
	sess, err := c.store.Load()
	if err != nil {
		return AreaResult{}, err
	}
	route = "/" + strings.TrimLeft(strings.TrimSpace(route), "/")
	var res AreaResult
	status, err := c.do(ctx, http.MethodGet, "/v1/areas"+route, sess.Token, nil, &res)
	if err != nil {
		return AreaResult{}, c.dropOnRejection(err)
	}
	if status == http.StatusTemporaryRedirect && res.Location == "" {
		res.Location = "/v1/areas" + res.Route
	}
	return res, nil
}

// Logout forgets the stored session. Tokens are stateless, so nothing is
// sent to the server.
func (c *Client) Logout() error {
	return c.store.Clear()
}

func (c *Client) dropOnRejection(err error) error {
	if errors.Is(err, auth.ErrTokenExpired) || errors.Is(err, auth.ErrInvalidToken) {
		if clearErr := c.store.Clear(); clearErr != nil {
			return errors.Join(err, clearErr)
		}
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode, apiErr
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
