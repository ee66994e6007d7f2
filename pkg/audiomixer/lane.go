package audiomixer

import "time"

// LaneID identifies a lane within one Mixer. IDs are slot indexes and are
// reused once a lane is removed.
type LaneID int

// DefaultVolumePercent is the unity gain every lane starts with.
const DefaultVolumePercent = 100

// MaxVolumePercent is the largest gain a lane accepts; it matches the
// one-byte volume field of the volume-modify packet.
const MaxVolumePercent = 255

// LaneInfo is a read-only view of a lane.
type LaneInfo struct {
	ID         LaneID    `json:"id"`
	Name       string    `json:"name"`
	Volume     int       `json:"volume"`
	LastUpdate time.Time `json:"last_update"`
	Live       bool      `json:"live"`
}

// lane holds the most recent frame of one input. It is only touched with the
// owning Mixer's lock held.
type lane struct {
	id         LaneID
	name       string
	buf        []int16
	volume     int
	lastUpdate time.Time // zero until the first frame arrives
}

func newLane(id LaneID, frameLen int) *lane {
	return &lane{
		id:     id,
		buf:    make([]int16, frameLen),
		volume: DefaultVolumePercent,
	}
}

// store copies pcm into the lane so callers may reuse their buffer.
func (l *lane) store(pcm []int16, now time.Time) {
	copy(l.buf, pcm)
	l.lastUpdate = now
}

// live reports whether the lane's frame is recent enough to be mixed.
func (l *lane) live(now time.Time, window time.Duration) bool {
	if l.lastUpdate.IsZero() {
		return false
	}
	return now.Sub(l.lastUpdate) < window
}

// accumulate adds buf scaled by volume (in percent units) into acc.
func (l *lane) accumulate(acc []int64) {
	if l.volume == 0 {
		return
	}
	vol := int64(l.volume)
	for i, s := range l.buf {
		acc[i] += int64(s) * vol
	}
}

func (l *lane) info(now time.Time, window time.Duration) LaneInfo {
	return LaneInfo{
		ID:         l.id,
		Name:       l.name,
		Volume:     l.volume,
		LastUpdate: l.lastUpdate,
		Live:       l.live(now, window),
	}
}
