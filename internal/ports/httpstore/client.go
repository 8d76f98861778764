// Package httpstore is the remote-client DocumentStore speaking to the
// duelhall HTTP API.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"duelhall/internal/auth"
	"duelhall/internal/domain"
	"duelhall/internal/ports"
	"duelhall/internal/ports/httpapi"
)

// Client implements ports.DocumentStore and ports.IdentityProvider over HTTP.
// Every call needs a token from SignInDevice or SetToken; without one it
// fails with ErrNotAuthenticated before any request is made.
type Client struct {
	baseURL string
	client  *http.Client

	mu     sync.RWMutex
	token  string
	userID string
}

// New returns a Client for the server at baseURL. A nil client uses
// http.DefaultClient.
func New(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// SetToken installs a previously issued token. The user id is read from the
// token's claims; the server verifies the signature on every request.
func (c *Client) SetToken(token string) error {
	userID, err := auth.UnverifiedUserID(token)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.token, c.userID = token, userID
	c.mu.Unlock()
	return nil
}

// Token returns the current token, or "" before sign-in.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Identity returns the signed-in user id.
func (c *Client) Identity(context.Context) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" || c.userID == "" {
		return "", ports.ErrNotAuthenticated
	}
	return c.userID, nil
}

// SignInDevice authenticates deviceID, creating the account on first use,
// and keeps the returned token.
func (c *Client) SignInDevice(ctx context.Context, deviceID, username string) (*httpapi.DeviceAuthResponse, error) {
	var resp httpapi.DeviceAuthResponse
	req := httpapi.DeviceAuthRequest{DeviceID: deviceID, Username: username}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/device", nil, req, &resp, false); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.token, c.userID = resp.Token, resp.UserID
	c.mu.Unlock()
	return &resp, nil
}

func documentPath(collection, key string) string {
	return "/v1/store/" + url.PathEscape(collection) + "/" + url.PathEscape(key)
}

func (c *Client) Get(ctx context.Context, ref ports.Ref) (*ports.Document, error) {
	var doc ports.Document
	if err := c.do(ctx, http.MethodGet, documentPath(ref.Collection, ref.Key), ownerQuery(ref.Owner, ""), nil, &doc, true); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) Put(ctx context.Context, ref ports.Ref, value json.RawMessage, version string) (string, error) {
	var resp httpapi.PutResponse
	if err := c.do(ctx, http.MethodPut, documentPath(ref.Collection, ref.Key), ownerQuery(ref.Owner, version), value, &resp, true); err != nil {
		return "", err
	}
	return resp.Version, nil
}

func (c *Client) Delete(ctx context.Context, ref ports.Ref, version string) error {
	return c.do(ctx, http.MethodDelete, documentPath(ref.Collection, ref.Key), ownerQuery(ref.Owner, version), nil, nil, true)
}

func (c *Client) List(ctx context.Context, collection, owner string) ([]*ports.Document, error) {
	var resp httpapi.ListResponse
	if err := c.do(ctx, http.MethodGet, "/v1/store/"+url.PathEscape(collection), ownerQuery(owner, ""), nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// Enqueue asks the server's matchmaking authority for an opponent.
func (c *Client) Enqueue(ctx context.Context, mode domain.GameType, displayName string) (*httpapi.MatchmakingResponse, error) {
	var resp httpapi.MatchmakingResponse
	body := httpapi.EnqueueRequest{DisplayName: displayName}
	if err := c.do(ctx, http.MethodPost, "/v1/matchmaking/"+url.PathEscape(string(mode)), nil, body, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel leaves the queue of mode.
func (c *Client) Cancel(ctx context.Context, mode domain.GameType) (bool, error) {
	var resp httpapi.MatchmakingResponse
	if err := c.do(ctx, http.MethodDelete, "/v1/matchmaking/"+url.PathEscape(string(mode)), nil, nil, &resp, true); err != nil {
		return false, err
	}
	return resp.Removed, nil
}

// Signal consumes the caller's match signal, returning nil while unmatched.
func (c *Client) Signal(ctx context.Context) (*domain.MatchSignal, error) {
	var resp httpapi.MatchmakingResponse
	if err := c.do(ctx, http.MethodGet, "/v1/matchmaking/signal", nil, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Signal, nil
}

func ownerQuery(owner, version string) url.Values {
	q := url.Values{}
	if owner != "" {
		q.Set("owner", owner)
	}
	if version != "" {
		q.Set("version", version)
	}
	return q
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, authed bool) error {
	token := c.Token()
	if authed && token == "" {
		return ports.ErrNotAuthenticated
	}

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case json.RawMessage:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// StatusError is a non-2xx response that maps onto no store sentinel.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func statusError(resp *http.Response) error {
	var body httpapi.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ports.ErrNotFound
	case http.StatusConflict:
		return ports.ErrVersionConflict
	case http.StatusUnauthorized:
		return ports.ErrNotAuthenticated
	}
	if body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}
	return &StatusError{Status: resp.StatusCode, Message: body.Error}
}

var (
	_ ports.DocumentStore    = (*Client)(nil)
	_ ports.IdentityProvider = (*Client)(nil)
)
