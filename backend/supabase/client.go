// Package supabase implements backend.Service against a hosted
// Supabase project: GoTrue for auth, PostgREST for the tasks table,
// and the realtime websocket for change notifications.
package supabase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"caltodo/backend"
)

const (
	// APITimeout bounds every REST call.
	APITimeout = 5 * time.Second

	authPath = "/auth/v1"
	restPath = "/rest/v1"
)

// Client talks to one Supabase project. It implements backend.Service.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	logger  *log.Logger

	mu      sync.Mutex
	session backend.Session
}

// New creates a client for the project at baseURL using the given anon
// key. The logger may be nil.
func New(baseURL, anonKey string, logger *log.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("backend url must not be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if strings.TrimSpace(anonKey) == "" {
		return nil, fmt.Errorf("backend anon key must not be empty")
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{
		baseURL: baseURL,
		anonKey: anonKey,
		http:    &http.Client{Timeout: APITimeout},
		logger:  logger,
	}, nil
}

// setSession records the active session used for bearer auth.
func (c *Client) setSession(s backend.Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

func (c *Client) clearSession() {
	c.setSession(backend.Session{})
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.AccessToken
}

// newRequest builds a request with the project's apikey header and,
// when a session is active, its bearer token. The anon key doubles as
// the bearer for unauthenticated calls, matching the vendor clients.
func (c *Client) newRequest(method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.anonKey)
	token := c.accessToken()
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes req and decodes a 2xx JSON response into out (which may
// be nil). Non-2xx responses become wrapped errors carrying the
// backend's own message.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return wrapTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// apiError extracts the service's error message so it can be surfaced
// verbatim to the user. GoTrue and PostgREST use different field names.
func apiError(status int, body []byte) error {
	var payload struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(body, &payload)

	msg := payload.Message
	if msg == "" {
		msg = payload.Msg
	}
	if msg == "" {
		msg = payload.ErrorDescription
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		if msg != "" {
			return fmt.Errorf("%w: %s", backend.ErrUnauthorized, msg)
		}
		return backend.ErrUnauthorized
	case http.StatusNotFound:
		if msg != "" {
			return fmt.Errorf("%w: %s", backend.ErrNotFound, msg)
		}
		return backend.ErrNotFound
	}
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", status)
	}
	return fmt.Errorf("%s", msg)
}

func wrapTransportError(err error) error {
	if strings.Contains(err.Error(), "context deadline exceeded") ||
		strings.Contains(err.Error(), "Client.Timeout") {
		return fmt.Errorf("request timed out")
	}
	return err
}
