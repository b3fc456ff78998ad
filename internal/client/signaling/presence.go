package signaling

import (
	"net/url"
	"strings"
	"time"

	"peerlink/internal/core/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// PresenceKeepalive holds a WebSocket open against the relay's presence
// endpoint so the local identity stays listed in the peer directory. It
// redials with a fixed delay when the connection drops.
type PresenceKeepalive struct {
	endpoint    string
	localID     domain.PeerID
	redialDelay time.Duration
	logger      *zap.SugaredLogger

	done chan struct{}
}

func NewPresenceKeepalive(relayURL string, localID domain.PeerID, redialDelay time.Duration, logger *zap.SugaredLogger) *PresenceKeepalive {
	endpoint := strings.TrimRight(relayURL, "/")
	endpoint = strings.Replace(endpoint, "https://", "wss://", 1)
	endpoint = strings.Replace(endpoint, "http://", "ws://", 1)
	endpoint += "/ws/presence?peer_id=" + url.QueryEscape(string(localID))

	return &PresenceKeepalive{
		endpoint:    endpoint,
		localID:     localID,
		redialDelay: redialDelay,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

func (k *PresenceKeepalive) Start() {
	go k.run()
}

func (k *PresenceKeepalive) run() {
	for {
		select {
		case <-k.done:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(k.endpoint, nil)
		if err != nil {
			k.logger.Warnw("presence dial failed", "error", err)
			if !k.sleep() {
				return
			}
			continue
		}

		k.logger.Infow("presence established", "peer_id", k.localID)
		k.hold(conn)

		if !k.sleep() {
			return
		}
	}
}

// hold blocks until the socket drops or Stop is called. The gorilla client
// replies to server pings automatically from the read loop.
func (k *PresenceKeepalive) hold(conn *websocket.Conn) {
	defer conn.Close()

	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	select {
	case err := <-readErr:
		k.logger.Warnw("presence connection lost", "error", err)
	case <-k.done:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}

func (k *PresenceKeepalive) sleep() bool {
	select {
	case <-time.After(k.redialDelay):
		return true
	case <-k.done:
		return false
	}
}

// Stop closes the keepalive permanently.
func (k *PresenceKeepalive) Stop() {
	close(k.done)
}
