package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Raikerian/go-lane-mixer/pkg/packet"
)

const closeTimeout = 5 * time.Second

// Client is a producer connection to a mixing server.
type Client struct {
	// URL is the server's WebSocket endpoint, e.g. ws://host:8765/mixer.
	URL string
	// LaneName is stamped on every audio packet (at most 3 ASCII characters).
	LaneName string
	Codec    *packet.Codec
	Logger   *zap.Logger
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Stats summarises one Run.
type Stats struct {
	Sent    int // packets sent
	Silent  int // of which silent audio packets
	Replies int // mixed frames received
	Lane    int // lane id the server assigned, -1 if no reply arrived
}

// Run sends one packet per frame, paced at the codec's frame duration, and
// counts the mixed replies. It closes the connection once every frame is sent
// and the server has answered or ctx ends.
func (c *Client) Run(ctx context.Context, frames [][]int16) (Stats, error) {
	stats := Stats{Lane: -1}

	conn, err := c.dial(ctx)
	if err != nil {
		return stats, err
	}
	defer conn.Close()

	// replies carries the lane id echoed in each reply's ext bytes, or -1.
	replies := make(chan int, len(frames))
	readDone := make(chan error, 1)
	go func() {
		defer close(replies)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readDone <- err
				return
			}
			pkt, err := c.Codec.DecodeAudio(data)
			if err != nil {
				c.logger().Warn("Ignoring undecodable reply", zap.Error(err))
				continue
			}
			lane := -1
			if len(pkt.ExtBytes) > 0 {
				lane = int(pkt.ExtBytes[0])
			}
			select {
			case replies <- lane:
			default:
			}
		}
	}()

	ticker := time.NewTicker(c.Codec.Format().FrameDuration())
	defer ticker.Stop()

	for i, frame := range frames {
		raw, err := c.Codec.EncodeAudio(frame, c.LaneName, nil)
		if err != nil {
			return stats, fmt.Errorf("frame %d: %w", i, err)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, raw); err != nil {
			return stats, fmt.Errorf("failed to send frame %d: %w", i, err)
		}
		stats.Sent++
		if raw[0] == packet.SilentAudioPacketTypeID {
			stats.Silent++
		}

		if i == len(frames)-1 {
			break
		}
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-ticker.C:
		}
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeTimeout))

	timeout := time.NewTimer(closeTimeout)
	defer timeout.Stop()

	for {
		select {
		case lane, ok := <-replies:
			if !ok {
				err := <-readDone
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					err = nil
				}
				c.logger().Info("Feed finished",
					zap.Int("sent", stats.Sent),
					zap.Int("silent", stats.Silent),
					zap.Int("replies", stats.Replies),
					zap.Int("lane", stats.Lane))
				return stats, err
			}
			stats.Replies++
			if lane >= 0 {
				stats.Lane = lane
			}
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-timeout.C:
			return stats, errors.New("timed out waiting for the server to close the connection")
		}
	}
}

// SetVolume asks the server to set lane's volume in percent.
func (c *Client) SetVolume(ctx context.Context, lane, percent int) error {
	raw, err := packet.EncodeVolumeModify(lane, percent)
	if err != nil {
		return err
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.BinaryMessage, raw); err != nil {
		return fmt.Errorf("failed to send volume change: %w", err)
	}

	c.logger().Info("Volume change sent", zap.Int("lane", lane), zap.Int("volume", percent))

	return conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeTimeout))
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.URL, err)
	}
	c.logger().Debug("Connected", zap.String("url", c.URL))

	return conn, nil
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}

	return c.Logger
}
