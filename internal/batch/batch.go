// Package batch funnels state updates onto one event-loop goroutine (the
// presentation context) and coalesces near-simultaneous same-key updates so
// a single-threaded consumer is never flooded or blocked.
package batch

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultDebounceDelay is roughly one frame at 60 Hz.
const DefaultDebounceDelay = 16 * time.Millisecond

// pendingUpdate tracks the one in-flight debounce for a key. A new debounce
// under the same key cancels the old timer and bumps gen, so a stale timer
// that already fired becomes a no-op.
type pendingUpdate struct {
	timer  *time.Timer
	action func()
	gen    uint64
}

// Updater owns a single goroutine that executes all submitted closures
// serially. At most one debounced action is pending per key.
type Updater struct {
	delay time.Duration

	ops  chan func()
	quit chan struct{}
	done chan struct{}

	mu      sync.Mutex
	pending map[string]*pendingUpdate
	gen     uint64
	closed  bool

	loopGID uint64
}

// New starts an updater whose debounce delay is d; non-positive d uses
// DefaultDebounceDelay.
func New(d time.Duration) *Updater {
	if d <= 0 {
		d = DefaultDebounceDelay
	}
	u := &Updater{
		delay:   d,
		ops:     make(chan func(), 64),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		pending: make(map[string]*pendingUpdate),
	}
	started := make(chan struct{})
	go u.loop(started)
	<-started
	return u
}

func (u *Updater) loop(started chan struct{}) {
	u.loopGID = currentGID()
	close(started)
	defer close(u.done)
	for {
		select {
		case fn := <-u.ops:
			fn()
		case <-u.quit:
			// Drain whatever was already submitted before shutting down.
			for {
				select {
				case fn := <-u.ops:
					fn()
				default:
					return
				}
			}
		}
	}
}

// OnLoop reports whether the calling goroutine is the updater's loop.
func (u *Updater) OnLoop() bool {
	return currentGID() == u.loopGID
}

// Batch executes fn on the loop and waits for it to finish. All mutations
// inside fn commit together with no interleaved observation. Calling Batch
// from the loop itself runs fn inline.
func (u *Updater) Batch(fn func()) {
	if u.OnLoop() {
		fn()
		return
	}
	wait := make(chan struct{})
	u.submit(func() {
		fn()
		close(wait)
	})
	select {
	case <-wait:
	case <-u.done:
	}
}

// Debounce schedules action under key, replacing any action already pending
// for that key. When the timer fires uncancelled, the current action for the
// key runs exactly once on the loop.
func (u *Updater) Debounce(key string, action func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return
	}

	u.gen++
	gen := u.gen
	if p, ok := u.pending[key]; ok {
		p.timer.Stop()
		p.action = action
		p.gen = gen
		p.timer = time.AfterFunc(u.delay, func() { u.fire(key, gen) })
		return
	}
	p := &pendingUpdate{action: action, gen: gen}
	p.timer = time.AfterFunc(u.delay, func() { u.fire(key, gen) })
	u.pending[key] = p
}

// BatchDebounce coalesces a compound update set under key; when the timer
// fires the whole set is applied atomically on the loop.
func (u *Updater) BatchDebounce(key string, updates []func()) {
	u.Debounce(key, func() {
		for _, fn := range updates {
			fn()
		}
	})
}

// ExecuteImmediately cancels any pending debounce for key and runs action
// on the loop right away, waiting for it to complete.
func (u *Updater) ExecuteImmediately(key string, action func()) {
	u.Cancel(key)
	u.Batch(action)
}

// Cancel drops the pending action for key without executing it.
func (u *Updater) Cancel(key string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if p, ok := u.pending[key]; ok {
		p.timer.Stop()
		delete(u.pending, key)
	}
}

// CancelAll drops every pending action without executing.
func (u *Updater) CancelAll() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for key, p := range u.pending {
		p.timer.Stop()
		delete(u.pending, key)
	}
}

// Close cancels pending work and stops the loop after draining closures
// already submitted. The updater must not be used afterwards.
func (u *Updater) Close() {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return
	}
	u.closed = true
	for key, p := range u.pending {
		p.timer.Stop()
		delete(u.pending, key)
	}
	u.mu.Unlock()

	close(u.quit)
	<-u.done
}

// fire runs when a debounce timer elapses. The generation check discards
// timers that were superseded after they were scheduled.
func (u *Updater) fire(key string, gen uint64) {
	u.mu.Lock()
	p, ok := u.pending[key]
	if !ok || p.gen != gen {
		u.mu.Unlock()
		return
	}
	delete(u.pending, key)
	action := p.action
	u.mu.Unlock()

	u.submit(action)
}

func (u *Updater) submit(fn func()) {
	select {
	case u.ops <- fn:
	case <-u.done:
	}
}

// currentGID parses the goroutine id out of a stack header, the only way to
// identify a goroutine from within.
func currentGID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := strings.Fields(string(buf[:n]))
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseUint(fields[1], 10, 64)
	return id
}
