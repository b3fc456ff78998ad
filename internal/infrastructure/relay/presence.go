package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// PresenceMetrics tracks open presence connections; nil-safe.
type PresenceMetrics interface {
	PresenceConnectionOpened()
	PresenceConnectionClosed()
}

// PresenceServer keeps the peer directory current: a peer holds a WebSocket
// open for its process lifetime, the server touches its directory entry on
// each heartbeat and removes it when the socket drops. The directory the
// relay serves from ListPeers is maintained entirely by these keepalive
// events plus the liveness refreshes on send/poll.
type PresenceServer struct {
	directory ports.DirectoryRepository
	metrics   PresenceMetrics

	connections map[domain.PeerID]*websocket.Conn
	mu          sync.RWMutex

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration

	logger *zap.SugaredLogger
}

func NewPresenceServer(
	directory ports.DirectoryRepository,
	metrics PresenceMetrics,
	pingInterval, pongTimeout time.Duration,
	logger *zap.SugaredLogger,
) *PresenceServer {
	return &PresenceServer{
		directory:    directory,
		metrics:      metrics,
		connections:  make(map[domain.PeerID]*websocket.Conn),
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		writeTimeout: 10 * time.Second,
		logger:       logger,
	}
}

func (s *PresenceServer) HandlePresence(w http.ResponseWriter, r *http.Request) {
	peerID := domain.PeerID(r.URL.Query().Get("peer_id"))
	if peerID == "" {
		http.Error(w, "peer_id query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// A reconnecting peer supersedes its old socket.
	s.mu.Lock()
	if existing, ok := s.connections[peerID]; ok && existing != nil {
		existing.Close()
		s.logger.Infow("closing old connection for reconnecting peer", "peer_id", peerID)
	}
	s.connections[peerID] = conn
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.PresenceConnectionOpened()
	}

	ctx := r.Context()
	s.register(ctx, peerID, r.RemoteAddr)
	s.logger.Infow("peer present", "peer_id", peerID, "remote_addr", r.RemoteAddr)

	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		s.register(ctx, peerID, r.RemoteAddr)
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	errorChan := make(chan error, 1)

	// The client never sends application data; the reader exists to surface
	// pongs and closure.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				errorChan <- err
				return
			}
		}
	}()

	for {
		select {
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Infow("error sending ping", "peer_id", peerID, "error", err)
				s.cleanup(peerID)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("presence connection error", "peer_id", peerID, "error", err)
			}
			s.cleanup(peerID)
			return
		}
	}
}

func (s *PresenceServer) register(ctx context.Context, peerID domain.PeerID, addr string) {
	err := s.directory.Touch(ctx, &domain.Peer{
		ID:       peerID,
		Address:  addr,
		LastSeen: time.Now(),
	})
	if err != nil {
		s.logger.Warnw("failed to register peer presence", "peer_id", peerID, "error", err)
	}
}

func (s *PresenceServer) cleanup(peerID domain.PeerID) {
	s.mu.Lock()
	delete(s.connections, peerID)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.PresenceConnectionClosed()
	}

	if err := s.directory.Remove(context.Background(), peerID); err != nil && err != domain.ErrPeerNotFound {
		s.logger.Infow("error removing peer from directory", "peer_id", peerID, "error", err)
	}

	s.logger.Infow("peer departed", "peer_id", peerID)
}

// ConnectedPeers returns the peers currently holding a presence socket.
func (s *PresenceServer) ConnectedPeers() []domain.PeerID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]domain.PeerID, 0, len(s.connections))
	for peerID := range s.connections {
		peers = append(peers, peerID)
	}
	return peers
}
