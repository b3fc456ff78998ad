package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"peerlink/internal/client/media"
	"peerlink/internal/client/session"
	"peerlink/internal/client/signaling"
	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"
	"peerlink/pkg/config"
	"peerlink/pkg/logger"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// consoleObserver surfaces session activity to the operator; UI rendering
// and overlay drawing live outside this binary.
type consoleObserver struct {
	ports.NopObserver
	log *zap.SugaredLogger
}

func (o *consoleObserver) OnSessionState(remote domain.PeerID, state domain.SessionState) {
	o.log.Infow("session state", "remote_peer", remote, "state", state.String())
}

func (o *consoleObserver) OnSessionError(remote domain.PeerID, err error) {
	o.log.Errorw("session error", "remote_peer", remote, "error", err)
}

func (o *consoleObserver) OnRemoteTrack(remote domain.PeerID, track ports.RemoteTrack) {
	o.log.Infow("remote track", "remote_peer", remote, "track_id", track.ID(), "kind", track.Kind())
}

func (o *consoleObserver) OnRoundTrip(remote domain.PeerID, rtt time.Duration) {
	o.log.Infow("round trip", "remote_peer", remote, "rtt_ms", rtt.Milliseconds())
}

func (o *consoleObserver) OnMetricsSample(remote domain.PeerID, sample domain.MetricsSample) {
	o.log.Infow("metrics sample",
		"remote_peer", remote,
		"fps", sample.FramesPerSecond,
		"bitrate_kbps", sample.BitrateKbps,
		"packet_loss", sample.PacketLoss,
		"security_state", sample.SecurityState,
	)
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	connectTo := flag.String("connect", "", "peer id to connect to at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	// Identity is generated fresh each start and never reused.
	localID := domain.PeerID("peer-" + uuid.NewString())
	log.Infow("local identity", "peer_id", localID)

	signaler := signaling.NewClient(cfg.Client.RelayURL, cfg.Client.RequestTimeout)

	presence := signaling.NewPresenceKeepalive(cfg.Client.RelayURL, localID, cfg.Client.RedialDelay, log)
	presence.Start()

	source, err := media.NewLoopbackSource("video", "peerlink-loopback", log)
	if err != nil {
		log.Fatalw("failed to create media source", "error", err)
	}
	source.Start()

	var iceServers []webrtc.ICEServer
	for _, s := range cfg.Client.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	if len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}

	newTransport := func() (ports.SessionTransport, error) {
		return session.NewPionTransport(session.PionConfig{
			ICEServers: iceServers,
			Tracks:     []webrtc.TrackLocal{source},
		})
	}

	manager := session.NewManager(
		localID,
		signaler,
		newTransport,
		&consoleObserver{log: log},
		session.Config{
			PingInterval:  cfg.Client.PingInterval,
			StatsInterval: cfg.Client.StatsInterval,
		},
		log,
	)

	poller := signaling.NewPoller(signaler, localID, manager, cfg.Client.PollInterval, log)
	poller.Start()

	if *connectTo != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Client.RequestTimeout)
		if err := manager.Connect(ctx, domain.PeerID(*connectTo)); err != nil {
			log.Errorw("connect failed", "remote_peer", *connectTo, "error", err)
		}
		cancel()
	} else {
		peers, err := signaler.ListPeers(context.Background())
		if err != nil {
			log.Warnw("peer listing unavailable", "error", err)
		} else {
			log.Infow("known peers", "peers", peers)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	manager.Stop()
	poller.Stop()
	presence.Stop()
	source.Stop()
}
