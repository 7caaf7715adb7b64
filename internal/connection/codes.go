// internal/connection/codes.go
package connection

import (
	"errors"
	"fmt"

	"github.com/coder/websocket"
)

// Application close codes the duel server uses to reject a channel during
// or right after the handshake.
const (
	BadSubprotocolError   websocket.StatusCode = 3000
	InvalidAuthTokenError websocket.StatusCode = 3001
	InvalidUserIDError    websocket.StatusCode = 3002
	InvalidDuelIDError    websocket.StatusCode = 3003
)

// closeInfo classifies a read error that ended a channel. clean reports
// whether the peer completed the closing handshake; a transport drop
// without a close frame reads as StatusAbnormalClosure.
func closeInfo(err error) (code websocket.StatusCode, clean bool) {
	code = websocket.CloseStatus(err)
	if code == -1 {
		return websocket.StatusAbnormalClosure, false
	}
	return code, code != websocket.StatusAbnormalClosure
}

// shouldReconnect reports whether a close with the given classification is
// eligible for automatic reconnection.
func shouldReconnect(code websocket.StatusCode, clean bool) bool {
	if clean {
		return false
	}
	return code != websocket.StatusNormalClosure && code != websocket.StatusGoingAway
}

func describeClose(code websocket.StatusCode, err error) string {
	switch code {
	case InvalidAuthTokenError:
		return "server rejected the auth token"
	case InvalidUserIDError:
		return "server rejected the user id"
	case InvalidDuelIDError:
		return "server does not know this duel"
	case BadSubprotocolError:
		return "unsupported subprotocol"
	}
	var ce websocket.CloseError
	if errors.As(err, &ce) && ce.Reason != "" {
		return fmt.Sprintf("connection closed (%d): %s", code, ce.Reason)
	}
	return fmt.Sprintf("connection closed (%d)", code)
}
