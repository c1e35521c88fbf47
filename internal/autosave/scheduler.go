// Package autosave coalesces bursts of canvas edits into infrequent saves.
//
// Notify records the latest element list and restarts a trailing timer.
// When the timer fires the pending payload is saved, unless a save is already
// in flight; that trigger is dropped and the next Notify reschedules. At most
// one save runs at a time and the newest payload always wins eventually.
package autosave

import (
	"context"
	"log"
	"sync"
	"time"

	"canvas-studio/internal/models"
)

// DefaultDelay is the quiet period before a save
const DefaultDelay = 2 * time.Second

// Saver persists a design's elements
type Saver interface {
	SaveElements(ctx context.Context, designID, room string, elements models.Elements) error
}

// Scheduler debounces saves of one design
type Scheduler struct {
	saver    Saver
	designID string
	room     string
	delay    time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	pending  models.Elements
	hasData  bool
	inFlight bool
	stopped  bool
	idle     *sync.Cond

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler; delay <= 0 uses DefaultDelay
func New(saver Saver, designID, room string, delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		saver:    saver,
		designID: designID,
		room:     room,
		delay:    delay,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Notify records elements as the pending payload and restarts the timer.
// The list is copied, later edits to the caller's elements are not seen.
func (s *Scheduler) Notify(elements models.Elements) {
	payload := models.CloneElements(elements)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.pending = payload
	s.hasData = true

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
}

// fire runs on the timer goroutine
func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.stopped || s.inFlight || !s.hasData {
		s.mu.Unlock()
		return
	}
	payload := s.take()
	s.mu.Unlock()

	defer s.release()
	s.save(s.ctx, payload)
}

// take claims the in-flight slot and the pending payload; mu must be held
func (s *Scheduler) take() models.Elements {
	payload := s.pending
	s.pending = nil
	s.hasData = false
	s.inFlight = true
	s.wg.Add(1)
	return payload
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.inFlight = false
	s.idle.Broadcast()
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Scheduler) save(ctx context.Context, payload models.Elements) {
	if err := s.saver.SaveElements(ctx, s.designID, s.room, payload); err != nil {
		log.Printf("⚠️  Autosave of design %s failed: %v", s.designID, err)
		return
	}
	log.Printf("✓ Autosaved design %s (%d elements)", s.designID, len(payload))
}

// Flush saves the pending payload now, cancelling the timer.
// A save already running finishes first; Flush then holds the in-flight
// slot itself, so a timer firing meanwhile is dropped like any other.
func (s *Scheduler) Flush(ctx context.Context) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	for s.inFlight && !s.stopped {
		s.idle.Wait()
	}
	if s.stopped || !s.hasData {
		s.mu.Unlock()
		return
	}
	payload := s.take()
	s.mu.Unlock()

	defer s.release()
	s.save(ctx, payload)
}

// Pending reports whether a timer is armed
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil && !s.stopped
}

// Stop cancels the pending timer and any in-flight save and waits for it.
// After Stop, Notify is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.idle.Broadcast()
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
