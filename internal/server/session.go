package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Raikerian/go-lane-mixer/pkg/audio"
	"github.com/Raikerian/go-lane-mixer/pkg/audiomixer"
	"github.com/Raikerian/go-lane-mixer/pkg/packet"
	"github.com/Raikerian/go-lane-mixer/pkg/util"
)

var errTooManyStrikes = errors.New("too many malformed packets")

// session is one producer connection and the lane it owns.
type session struct {
	id     string
	host   string
	lane   audiomixer.LaneID
	conn   *websocket.Conn
	logger *zap.Logger

	closeOnce sync.Once
}

// close sends a close frame and tears the connection down. Only the first call
// has any effect.
func (sess *session) close(code int, reason string) {
	sess.closeOnce.Do(func() {
		_ = sess.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(writeDeadline))
		sess.conn.Close()
	})
}

// open allocates a lane for conn and registers the session.
func (s *Server) open(conn *websocket.Conn, host string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrServerClosed
	}

	laneID, err := s.mixer.CreateLane()
	if err != nil {
		return nil, err
	}

	sess := &session{
		id:   uuid.NewString(),
		host: host,
		lane: laneID,
		conn: conn,
	}
	sess.logger = s.logger.With(
		zap.String("session", sess.id),
		zap.String("remote", host),
		zap.Int("lane", int(laneID)))
	s.sessions[sess.id] = sess

	sess.logger.Info("Producer connected", zap.Int("sessions", len(s.sessions)))

	return sess, nil
}

// release removes the session and its lane.
func (s *Server) release(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	remaining := len(s.sessions)
	s.mu.Unlock()

	if err := s.mixer.RemoveLane(sess.lane); err != nil {
		sess.logger.Warn("Failed to remove lane", zap.Error(err))
	}

	sess.logger.Info("Producer disconnected", zap.Int("sessions", remaining))
}

// serve runs the read loop of sess until the connection ends.
func (s *Server) serve(sess *session) {
	defer s.release(sess)
	defer sess.close(websocket.CloseNormalClosure, "")

	if s.cfg.IdleTimeout <= 0 {
		s.readLoop(sess, func() {})
		return
	}

	idle := util.NewIdleTimer(s.cfg.IdleTimeout)
	defer idle.Stop()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-idle.Expired():
			sess.logger.Info("Closing idle connection", zap.Duration("timeout", idle.Timeout()))
			sess.close(websocket.CloseGoingAway, "idle timeout")
		case <-done:
		}
	}()

	s.readLoop(sess, idle.Touch)
}

func (s *Server) readLoop(sess *session, touch func()) {
	for {
		messageType, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.logger.Warn("WebSocket read failed", zap.Error(err))
			}
			return
		}
		touch()

		if messageType != websocket.BinaryMessage {
			sess.logger.Warn("Ignoring non-binary message", zap.Int("message_type", messageType))
			continue
		}

		if err := s.handlePacket(sess, data); err != nil {
			if errors.Is(err, errTooManyStrikes) {
				sess.logger.Warn("Closing connection", zap.Error(err))
				sess.close(websocket.ClosePolicyViolation, errTooManyStrikes.Error())
			} else {
				sess.logger.Warn("Failed to reply", zap.Error(err))
			}
			return
		}
	}
}

// handlePacket dispatches one binary message. A returned error ends the session.
func (s *Server) handlePacket(sess *session, data []byte) error {
	kind, err := packet.Classify(data)
	if err != nil {
		return s.strike(sess, err)
	}

	switch kind {
	case packet.KindAudio, packet.KindSilentAudio:
		return s.handleAudio(sess, data)
	case packet.KindVolumeModify:
		return s.handleVolumeModify(sess, data)
	default:
		return s.strike(sess, fmt.Errorf("%w: unhandled packet kind %s", audio.ErrMalformedPacket, kind))
	}
}

func (s *Server) handleAudio(sess *session, data []byte) error {
	pkt, err := s.codec.DecodeAudio(data)
	if err != nil {
		return s.strike(sess, err)
	}

	if err := s.mixer.Label(sess.lane, pkt.LaneName); err != nil {
		return err
	}

	mixed, err := s.mixer.LaneIO(sess.lane, pkt.PCM)
	if err != nil {
		return err
	}

	reply, err := s.codec.EncodeAudio(mixed, s.cfg.OutputLaneName, []byte{byte(sess.lane)})
	if err != nil {
		return err
	}

	if err := sess.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return err
	}

	return sess.conn.WriteMessage(websocket.BinaryMessage, reply)
}

func (s *Server) handleVolumeModify(sess *session, data []byte) error {
	laneID, percent, err := packet.DecodeVolumeModify(data)
	if err != nil {
		return s.strike(sess, err)
	}

	if err := s.mixer.SetVolume(audiomixer.LaneID(laneID), percent); err != nil {
		sess.logger.Warn("Volume change rejected",
			zap.Int("target_lane", laneID),
			zap.Int("volume", percent),
			zap.Error(err))
		return nil
	}

	sess.logger.Info("Volume changed", zap.Int("target_lane", laneID), zap.Int("volume", percent))

	return nil
}

// strike records a malformed packet from the session's host. It returns
// errTooManyStrikes once the host reaches the configured limit.
func (s *Server) strike(sess *session, cause error) error {
	count := s.strikes.Add(sess.host)
	sess.logger.Warn("Malformed packet", zap.Int("strikes", count), zap.Error(cause))

	if s.cfg.MaxMalformedPackets > 0 && count >= s.cfg.MaxMalformedPackets {
		return fmt.Errorf("%w: %d from %s", errTooManyStrikes, count, sess.host)
	}

	return nil
}
