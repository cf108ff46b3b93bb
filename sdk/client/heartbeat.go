package client

import (
	"sync"
	"time"
)

const (
	defaultHeartbeatTime  = 15
	minHeartbeatTime      = 10
	maxHeartbeatTime      = 60
	defaultHeartbeatFails = 3
	minHeartbeatFails     = 1
	maxHeartbeatFails     = 6

	// silence after which the connection is considered dead
	defaultSilenceTimeout = 30 * time.Second
)

// heartbeatUnit scales HeartbeatTime. Tests shorten it.
var heartbeatUnit = time.Second

// ticker runs fn every interval on its own goroutine until stopped.
type ticker struct {
	stop chan struct{}
	once sync.Once
	done chan struct{}
}

func startTicker(interval time.Duration, fn func()) *ticker {
	t := &ticker{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(t.done)
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-tk.C:
				fn()
			}
		}
	}()
	return t
}

// Stop is safe to call on a nil ticker and more than once. It does not wait
// for a running fn, so it can be called from fn itself.
func (t *ticker) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.stop) })
}

func validateHeartbeatTime(n int) error {
	if n < minHeartbeatTime || n > maxHeartbeatTime {
		return heartbeatError("heartbeat time must be between 10 and 60 seconds")
	}
	return nil
}

func validateHeartbeatFails(n int) error {
	if n < minHeartbeatFails || n > maxHeartbeatFails {
		return heartbeatError("heartbeat fails must be between 1 and 6")
	}
	return nil
}

// silenceCheckInterval picks how often the silence monitor samples.
func silenceCheckInterval(timeout time.Duration) time.Duration {
	iv := timeout / 4
	if iv > time.Second {
		iv = time.Second
	}
	if iv < 5*time.Millisecond {
		iv = 5 * time.Millisecond
	}
	return iv
}
