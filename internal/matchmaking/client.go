// internal/matchmaking/client.go
package matchmaking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/kou050223/duelclient/internal/auth"
	"github.com/kou050223/duelclient/internal/middleware"
	"github.com/sirupsen/logrus"
)

// ErrUnauthenticated is returned when the matchmaking API rejects the caller.
var ErrUnauthenticated = errors.New("matchmaking: unauthenticated")

// Status is a matchmaking entry state as reported by the server.
type Status string

const (
	StatusMatched   Status = "matched"
	StatusSearching Status = "searching"
	StatusWaiting   Status = "waiting" // older servers report this instead of searching
	StatusCancelled Status = "cancelled"
	StatusNone      Status = "none"
)

// Terminal reports whether polling should stop on s.
func (s Status) Terminal() bool {
	switch s {
	case StatusMatched, StatusCancelled, StatusNone:
		return true
	}
	return false
}

// Result is the body of every matchmaking response.
type Result struct {
	Status Status `json:"status"`
	DuelID string `json:"duelId,omitempty"`
}

// API is the HTTP matchmaking surface the coordinator drives.
type API interface {
	Join(ctx context.Context) (Result, error)
	Status(ctx context.Context) (Result, error)
	Cancel(ctx context.Context) error
}

// Client talks to /api/matchmaking on the duel server.
type Client struct {
	base   *url.URL
	tokens auth.TokenSource
	http   *http.Client
}

// NewClient builds a client for baseURL. Requests carry the current bearer
// token when someone is signed in, and session cookies are kept in a jar.
func NewClient(baseURL string, tokens auth.TokenSource, logger *logrus.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: unsupported scheme %q", baseURL, u.Scheme)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		base:   u,
		tokens: tokens,
		http: &http.Client{
			Jar:       jar,
			Transport: middleware.LogTransport(logger, nil),
			Timeout:   10 * time.Second,
		},
	}, nil
}

func (c *Client) Join(ctx context.Context) (Result, error) {
	return c.do(ctx, http.MethodPost, "/api/matchmaking/join")
}

func (c *Client) Status(ctx context.Context) (Result, error) {
	return c.do(ctx, http.MethodGet, "/api/matchmaking/status")
}

func (c *Client) Cancel(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/matchmaking/cancel")
	return err
}

func (c *Client) do(ctx context.Context, method, path string) (Result, error) {
	var res Result
	target := c.base.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return res, err
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if ident := c.tokens.Identity(); ident != nil {
			token, err := ident.Token(ctx)
			if err != nil {
				return res, fmt.Errorf("resolve token: %w", err)
			}
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return res, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return res, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return res, ErrUnauthenticated
	case resp.StatusCode >= 300:
		return res, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, serverMessage(body))
	}

	if len(body) == 0 {
		return res, nil
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return res, fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return res, nil
}

// serverMessage extracts {"message": ...} from an error body, falling back
// to the raw text.
func serverMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(body))
}
