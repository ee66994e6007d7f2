// Package server exposes the lane mixer over WebSocket. Every connection owns
// one lane: it sends audio packets in and receives the mix of the other live
// lanes back, one reply per packet.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-lane-mixer/internal/config"
	"github.com/Raikerian/go-lane-mixer/internal/discovery"
	"github.com/Raikerian/go-lane-mixer/internal/recorder"
	"github.com/Raikerian/go-lane-mixer/pkg/audiomixer"
	"github.com/Raikerian/go-lane-mixer/pkg/packet"
)

// LanesPath serves the JSON lane snapshot.
const LanesPath = "/lanes"

const writeDeadline = 10 * time.Second

// ErrServerClosed is returned by Start after Stop.
var ErrServerClosed = errors.New("server is closed")

// Server accepts producer connections and routes their packets through the mixer.
type Server struct {
	cfg     config.ServerConfig
	mixer   audiomixer.AudioMixer
	codec   *packet.Codec
	logger  *zap.Logger
	strikes *StrikeCache

	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	sessions   map[string]*session
	closed     bool
	sessionsWG sync.WaitGroup

	advertiser    *discovery.Advertiser
	recorder      *recorder.Recorder
	stopMonitor   context.CancelFunc
	monitorDone   chan struct{}
	serverStopped chan struct{}
}

// NewServerParams holds dependencies for NewServer.
type NewServerParams struct {
	fx.In

	Cfg    *config.Config
	Mixer  audiomixer.AudioMixer
	Codec  *packet.Codec
	Logger *zap.Logger
}

// NewServer creates a server. Nothing listens until Start.
func NewServer(params NewServerParams) (*Server, error) {
	if params.Cfg == nil {
		return nil, fmt.Errorf("config provided to NewServer is nil")
	}
	if params.Mixer == nil {
		return nil, fmt.Errorf("mixer provided to NewServer is nil")
	}
	if params.Codec == nil {
		return nil, fmt.Errorf("codec provided to NewServer is nil")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger provided to NewServer is nil")
	}

	s := &Server{
		cfg:     params.Cfg.Server,
		mixer:   params.Mixer,
		codec:   params.Codec,
		logger:  params.Logger.Named("server"),
		strikes: NewStrikeCache(params.Cfg.Server.StrikeCacheSize),
		upgrader: websocket.Upgrader{
			// Producers are native clients on a trusted network, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		mux:      http.NewServeMux(),
		sessions: make(map[string]*session),
	}

	s.mux.HandleFunc("GET "+s.cfg.Path, s.handleWebSocket)
	s.mux.HandleFunc("GET "+LanesPath, s.handleLanes)

	return s, nil
}

// Handler returns the HTTP handler serving the WebSocket and lane endpoints.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Start listens on the configured port and begins serving in the background.
// It also starts the monitor recording and the mDNS advertisement when enabled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.httpServer != nil {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}

	if s.cfg.RecordPath != "" {
		rec, err := recorder.Open(s.cfg.RecordPath, s.codec.Format())
		if err != nil {
			ln.Close()
			return err
		}
		s.recorder = rec

		monitorCtx, cancel := context.WithCancel(context.Background())
		s.stopMonitor = cancel
		s.monitorDone = make(chan struct{})
		go s.monitor(monitorCtx, rec)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: writeDeadline,
	}
	s.serverStopped = make(chan struct{})

	go func() {
		defer close(s.serverStopped)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	s.logger.Info("Mixing server listening",
		zap.String("name", s.cfg.Name),
		zap.Int("port", port),
		zap.String("path", s.cfg.Path))

	if s.cfg.EnableMDNS {
		s.advertiser = discovery.NewAdvertiser(s.logger, discovery.Config{
			Name: s.cfg.Name,
			Port: port,
			Path: s.cfg.Path,
		})
		if err := s.advertiser.Start(); err != nil {
			s.logger.Warn("Failed to start mDNS advertisement", zap.Error(err))
			s.advertiser = nil
		}
	}

	return nil
}

// Stop closes every session, shuts the HTTP server down and finalises the
// recording. It waits for sessions to release their lanes or for ctx to end.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	var errs []error

	if s.advertiser != nil {
		if err := s.advertiser.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down HTTP server: %w", err))
		}
		<-s.serverStopped
	}

	for _, sess := range sessions {
		sess.close(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		s.sessionsWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("sessions did not finish: %w", ctx.Err()))
	}

	if s.stopMonitor != nil {
		s.stopMonitor()
		<-s.monitorDone
	}
	if s.recorder != nil {
		frames := s.recorder.Frames()
		if err := s.recorder.Close(); err != nil {
			errs = append(errs, err)
		}
		s.logger.Info("Recording closed", zap.String("path", s.cfg.RecordPath), zap.Int("frames", frames))
	}

	s.logger.Info("Mixing server stopped")

	return errors.Join(errs...)
}

// Sessions returns the number of connected producers.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	closed := s.closed
	if !closed {
		s.sessionsWG.Add(1)
	}
	s.mu.Unlock()

	if closed {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	defer s.sessionsWG.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	sess, err := s.open(conn, remoteHost(r.RemoteAddr))
	if err != nil {
		s.logger.Warn("Rejecting connection", zap.String("remote", r.RemoteAddr), zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(writeDeadline))
		conn.Close()
		return
	}

	s.serve(sess)
}

func (s *Server) handleLanes(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.mixer.Lanes()); err != nil {
		s.logger.Warn("Failed to write lane snapshot", zap.Error(err))
	}
}

// monitor mixes every live lane once per frame into the recording.
func (s *Server) monitor(ctx context.Context, rec *recorder.Recorder) {
	defer close(s.monitorDone)

	ticker := time.NewTicker(s.codec.Format().FrameDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rec.Write(s.mixer.Mix()); err != nil {
				s.logger.Error("Monitor recording failed", zap.Error(err))
				return
			}
		}
	}
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return host
}
