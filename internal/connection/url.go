package connection

import (
	"fmt"
	"net/url"
)

// BuildURL appends the per-connection auth parameters to the channel target.
// Empty values are omitted.
func BuildURL(base, token, uid, duelID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse channel url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("channel url %q: unsupported scheme %q", base, u.Scheme)
	}
	q := u.Query()
	if token != "" {
		q.Set("token", token)
	}
	if uid != "" {
		q.Set("uid", uid)
	}
	if duelID != "" {
		q.Set("duelId", duelID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// RedactURL masks the token parameter so a channel url can be logged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "***")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
