// Package audiomixer combines per-lane PCM frames into one output frame.
package audiomixer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Raikerian/go-lane-mixer/pkg/audio"
)

// Mixer defaults.
const (
	DefaultStalenessWindow = 200 * time.Millisecond
	DefaultMaxLanes        = 256 // lane ids must fit the volume-modify lane byte
)

// ErrLaneLimit is returned by CreateLane when every slot is taken.
var ErrLaneLimit = errors.New("lane limit reached")

// AudioMixer mixes the latest frame of every live lane.
type AudioMixer interface {
	// CreateLane allocates a silent lane at 100 % volume.
	CreateLane() (LaneID, error)

	// RemoveLane frees a lane; its id may be handed out again.
	RemoveLane(id LaneID) error

	// LaneIO stores pcm as the lane's current frame and returns the mix.
	// Store and mix happen under one lock acquisition.
	LaneIO(id LaneID, pcm []int16) ([]int16, error)

	// Push stores pcm as the lane's current frame without mixing.
	Push(id LaneID, pcm []int16) error

	// Mix returns the current mix of all live lanes.
	Mix() []int16

	// SetVolume sets the lane gain in percent (0-255).
	SetVolume(id LaneID, percent int) error

	// Volume returns the lane gain in percent.
	Volume(id LaneID) (int, error)

	// Label attaches a display name (the wire lane name) to a lane.
	Label(id LaneID, name string) error

	// Lanes returns a snapshot of all lanes ordered by id.
	Lanes() []LaneInfo

	// Len returns the number of lanes.
	Len() int
}

// Config configures a Mixer.
type Config struct {
	Format          audio.Format
	StalenessWindow time.Duration    // lanes silent for this long are muted
	MaxLanes        int              // table capacity, at most DefaultMaxLanes
	Now             func() time.Time // clock, time.Now when nil
}

// Mixer is the lane table plus the mixing pass. It is safe for concurrent
// use; every method holds one mutex for its whole duration so a mix always
// sees a consistent set of lanes.
type Mixer struct {
	logger *zap.Logger

	frameLen int
	window   time.Duration
	now      func() time.Time

	mu    sync.Mutex
	lanes []*lane // indexed by LaneID, nil marks a free slot
	count int

	// acc is the int64 accumulator reused across mixes.
	acc []int64
}

var _ AudioMixer = (*Mixer)(nil)

// NewMixer creates an empty mixer.
func NewMixer(logger *zap.Logger, cfg Config) (*Mixer, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, fmt.Errorf("mixer format: %w", err)
	}
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = DefaultStalenessWindow
	}
	if cfg.MaxLanes <= 0 {
		cfg.MaxLanes = DefaultMaxLanes
	}
	if cfg.MaxLanes > DefaultMaxLanes {
		return nil, fmt.Errorf("%w: max lanes must be at most %d, got %d",
			audio.ErrInvalidArgument, DefaultMaxLanes, cfg.MaxLanes)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Mixer{
		logger:   logger,
		frameLen: cfg.Format.FrameLen(),
		window:   cfg.StalenessWindow,
		now:      cfg.Now,
		lanes:    make([]*lane, cfg.MaxLanes),
		acc:      make([]int64, cfg.Format.FrameLen()),
	}, nil
}

// CreateLane takes the lowest free slot.
func (m *Mixer) CreateLane() (LaneID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.lanes {
		if l != nil {
			continue
		}
		id := LaneID(i)
		m.lanes[i] = newLane(id, m.frameLen)
		m.count++

		m.logger.Debug("Created lane",
			zap.Int("lane_id", i),
			zap.Int("lanes", m.count))

		return id, nil
	}

	return 0, fmt.Errorf("%w: %d lanes in use", ErrLaneLimit, len(m.lanes))
}

func (m *Mixer) RemoveLane(id LaneID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.lookup(id); err != nil {
		return err
	}
	m.lanes[id] = nil
	m.count--

	m.logger.Debug("Removed lane",
		zap.Int("lane_id", int(id)),
		zap.Int("lanes", m.count))

	return nil
}

func (m *Mixer) LaneIO(id LaneID, pcm []int16) ([]int16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.push(id, pcm); err != nil {
		return nil, err
	}
	return m.mix(), nil
}

func (m *Mixer) Push(id LaneID, pcm []int16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.push(id, pcm)
}

func (m *Mixer) Mix() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mix()
}

func (m *Mixer) SetVolume(id LaneID, percent int) error {
	if percent < 0 || percent > MaxVolumePercent {
		return fmt.Errorf("%w: volume percent must be in 0-%d, got %d",
			audio.ErrInvalidArgument, MaxVolumePercent, percent)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.lookup(id)
	if err != nil {
		return err
	}
	l.volume = percent

	m.logger.Debug("Lane volume changed",
		zap.Int("lane_id", int(id)),
		zap.Int("volume", percent))

	return nil
}

func (m *Mixer) Volume(id LaneID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	return l.volume, nil
}

func (m *Mixer) Label(id LaneID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.lookup(id)
	if err != nil {
		return err
	}
	l.name = name
	return nil
}

func (m *Mixer) Lanes() []LaneInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	infos := make([]LaneInfo, 0, m.count)
	for _, l := range m.lanes {
		if l != nil {
			infos = append(infos, l.info(now, m.window))
		}
	}
	return infos
}

func (m *Mixer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.count
}

/* --------------------------- helpers --------------------------- */

// lookup must be called with mu held.
func (m *Mixer) lookup(id LaneID) (*lane, error) {
	if id < 0 || int(id) >= len(m.lanes) || m.lanes[id] == nil {
		return nil, fmt.Errorf("%w: lane %d", audio.ErrNotFound, id)
	}
	return m.lanes[id], nil
}

// push must be called with mu held.
func (m *Mixer) push(id LaneID, pcm []int16) error {
	l, err := m.lookup(id)
	if err != nil {
		return err
	}
	if len(pcm) != m.frameLen {
		return fmt.Errorf("%w: pcm length must be %d, got %d", audio.ErrInvalidArgument, m.frameLen, len(pcm))
	}
	l.store(pcm, m.now())
	return nil
}

// mix sums every live lane scaled by its volume and saturates the result.
// It must be called with mu held.
func (m *Mixer) mix() []int16 {
	for i := range m.acc {
		m.acc[i] = 0
	}

	now := m.now()
	for _, l := range m.lanes {
		if l != nil && l.live(now, m.window) {
			l.accumulate(m.acc)
		}
	}

	out := make([]int16, m.frameLen)
	for i, v := range m.acc {
		out[i] = saturateInt16(v / 100)
	}
	return out
}

// saturateInt16 clamps v to the valid int16 range.
func saturateInt16(v int64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
