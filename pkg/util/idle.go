package util

import (
	"sync"
	"time"
)

// IdleTimer fires once when Touch has not been called for the configured
// timeout. Connections use it to detect producers that went quiet.
//
// Example usage:
//
//	idle := NewIdleTimer(30 * time.Second)
//	defer idle.Stop()
//
//	go func() {
//	    select {
//	    case <-idle.Expired():
//	        conn.Close()
//	    case <-done:
//	    }
//	}()
//
//	for packet := range packets {
//	    idle.Touch()
//	    handle(packet)
//	}
type IdleTimer struct {
	timeout time.Duration
	timer   *time.Timer
	mu      sync.Mutex
	stopped bool
}

// NewIdleTimer starts a timer that expires after timeout of inactivity.
func NewIdleTimer(timeout time.Duration) *IdleTimer {
	return &IdleTimer{
		timeout: timeout,
		timer:   time.NewTimer(timeout),
	}
}

// Touch records activity and pushes expiry back by a full timeout.
// After Stop it does nothing.
func (t *IdleTimer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	if !t.timer.Stop() {
		select {
		case <-t.timer.C:
		default:
		}
	}
	t.timer.Reset(t.timeout)
}

// Expired returns the channel that receives when the timeout elapses.
func (t *IdleTimer) Expired() <-chan time.Time {
	return t.timer.C
}

// Timeout returns the configured inactivity timeout.
func (t *IdleTimer) Timeout() time.Duration {
	return t.timeout
}

// Stop disarms the timer. It is safe to call more than once.
func (t *IdleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.stopped {
		t.timer.Stop()
		t.stopped = true
	}
}
