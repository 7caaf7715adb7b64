package connection

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
)

// Channel is the part of *websocket.Conn the manager depends on.
type Channel interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens a channel to url. The context bounds the handshake only.
type Dialer func(ctx context.Context, url string) (Channel, error)

// WebsocketDialer dials with coder/websocket using client for the handshake
// (http.DefaultClient when nil).
func WebsocketDialer(client *http.Client) Dialer {
	return func(ctx context.Context, url string) (Channel, error) {
		c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPClient: client})
		if err != nil {
			return nil, err
		}
		c.SetReadLimit(1 << 20)
		return c, nil
	}
}
