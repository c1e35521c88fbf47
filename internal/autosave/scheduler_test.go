package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"canvas-studio/internal/models"
)

type recordingSaver struct {
	mu      sync.Mutex
	saves   []models.Elements
	rooms   []string
	block   chan struct{}
	started chan struct{}
	err     error
}

func (s *recordingSaver) SaveElements(ctx context.Context, designID, room string, elements models.Elements) error {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, elements)
	s.rooms = append(s.rooms, room)
	return s.err
}

func (s *recordingSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *recordingSaver) last() models.Elements {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[len(s.saves)-1]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func listOf(ids ...string) models.Elements {
	out := models.Elements{}
	for _, id := range ids {
		out = append(out, models.NewTextElement(id, id))
	}
	return out
}

func TestBurstCoalescesIntoOneSave(t *testing.T) {
	saver := &recordingSaver{}
	s := New(saver, "d1", "design-d1", 30*time.Millisecond)
	defer s.Stop()

	s.Notify(listOf("a"))
	s.Notify(listOf("a", "b"))
	s.Notify(listOf("a", "b", "c"))

	waitFor(t, func() bool { return saver.count() == 1 })
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 1, saver.count())
	assert.Equal(t, 3, len(saver.last()))
	assert.Equal(t, "design-d1", saver.rooms[0])
}

func TestNoSaveBeforeQuietPeriod(t *testing.T) {
	saver := &recordingSaver{}
	s := New(saver, "d1", "design-d1", 200*time.Millisecond)
	defer s.Stop()

	s.Notify(listOf("a"))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, saver.count())
	assert.Equal(t, true, s.Pending())
}

func TestPayloadIsSnapshotAtNotify(t *testing.T) {
	saver := &recordingSaver{}
	s := New(saver, "d1", "design-d1", 20*time.Millisecond)
	defer s.Stop()

	els := listOf("a")
	s.Notify(els)
	els[0].Base().X = 999

	waitFor(t, func() bool { return saver.count() == 1 })
	assert.Equal(t, float64(100), saver.last()[0].Base().X)
}

func TestTriggerDuringInFlightSaveIsDropped(t *testing.T) {
	saver := &recordingSaver{block: make(chan struct{}), started: make(chan struct{}, 4)}
	s := New(saver, "d1", "design-d1", 10*time.Millisecond)
	defer s.Stop()

	s.Notify(listOf("a"))
	<-saver.started

	// fires while the first save is blocked
	s.Notify(listOf("a", "b"))
	time.Sleep(40 * time.Millisecond)

	close(saver.block)
	waitFor(t, func() bool { return saver.count() == 1 })
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, saver.count())
	assert.Equal(t, 1, len(saver.last()))

	// the next edit after completion saves the newest payload
	s.Notify(listOf("a", "b", "c"))
	<-saver.started
	waitFor(t, func() bool { return saver.count() == 2 })
	assert.Equal(t, 3, len(saver.last()))
}

func TestFailedSaveIsSwallowed(t *testing.T) {
	saver := &recordingSaver{err: errors.New("boom")}
	s := New(saver, "d1", "design-d1", 10*time.Millisecond)
	defer s.Stop()

	s.Notify(listOf("a"))
	waitFor(t, func() bool { return saver.count() == 1 })

	s.Notify(listOf("a", "b"))
	waitFor(t, func() bool { return saver.count() == 2 })
}

func TestFlushSavesImmediately(t *testing.T) {
	saver := &recordingSaver{}
	s := New(saver, "d1", "design-d1", time.Hour)
	defer s.Stop()

	s.Notify(listOf("a", "b"))
	s.Flush(context.Background())

	assert.Equal(t, 1, saver.count())
	assert.Equal(t, false, s.Pending())
}

// concurrentSaver records how many saves overlap
type concurrentSaver struct {
	recordingSaver
	hold   time.Duration
	active int
	max    int
}

func (s *concurrentSaver) SaveElements(ctx context.Context, designID, room string, elements models.Elements) error {
	s.mu.Lock()
	s.active++
	if s.active > s.max {
		s.max = s.active
	}
	s.mu.Unlock()

	time.Sleep(s.hold)

	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	return s.recordingSaver.SaveElements(ctx, designID, room, elements)
}

func (s *concurrentSaver) running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *concurrentSaver) maxConcurrent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max
}

func TestNotifyDuringFlushKeepsOneSaveInFlight(t *testing.T) {
	saver := &concurrentSaver{hold: 80 * time.Millisecond}
	s := New(saver, "d1", "design-d1", 10*time.Millisecond)
	defer s.Stop()

	s.Notify(listOf("a"))
	flushed := make(chan struct{})
	go func() {
		s.Flush(context.Background())
		close(flushed)
	}()
	waitFor(t, func() bool { return saver.running() == 1 })

	// its timer fires while the flush save is still running
	s.Notify(listOf("a", "b"))
	<-flushed
	time.Sleep(40 * time.Millisecond)

	assert.Equal(t, 1, saver.maxConcurrent())
	assert.Equal(t, 1, saver.count())
	assert.Equal(t, 1, len(saver.last()))

	// the dropped payload is still pending for the next flush
	s.Flush(context.Background())
	assert.Equal(t, 2, saver.count())
	assert.Equal(t, 2, len(saver.last()))
	assert.Equal(t, 1, saver.maxConcurrent())
}

func TestFlushWaitsForRunningSave(t *testing.T) {
	saver := &concurrentSaver{hold: 60 * time.Millisecond}
	s := New(saver, "d1", "design-d1", 5*time.Millisecond)
	defer s.Stop()

	s.Notify(listOf("a"))
	waitFor(t, func() bool { return saver.running() == 1 })

	s.Notify(listOf("a", "b"))
	s.Flush(context.Background())

	assert.Equal(t, 2, saver.count())
	assert.Equal(t, 2, len(saver.last()))
	assert.Equal(t, 1, saver.maxConcurrent())
}

func TestFlushAfterTimerSaveDoesNotResave(t *testing.T) {
	saver := &recordingSaver{}
	s := New(saver, "d1", "design-d1", 10*time.Millisecond)
	defer s.Stop()

	s.Notify(listOf("a"))
	waitFor(t, func() bool { return saver.count() == 1 })

	s.Flush(context.Background())
	assert.Equal(t, 1, saver.count())
}

func TestFlushWithoutEditsDoesNothing(t *testing.T) {
	saver := &recordingSaver{}
	s := New(saver, "d1", "design-d1", time.Hour)
	defer s.Stop()

	s.Flush(context.Background())
	assert.Equal(t, 0, saver.count())
}

func TestStopCancelsPendingSave(t *testing.T) {
	saver := &recordingSaver{}
	s := New(saver, "d1", "design-d1", 20*time.Millisecond)

	s.Notify(listOf("a"))
	s.Stop()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 0, saver.count())

	s.Notify(listOf("b"))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, saver.count())
}

func TestStopCancelsInFlightSave(t *testing.T) {
	saver := &recordingSaver{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := New(saver, "d1", "design-d1", 5*time.Millisecond)

	s.Notify(listOf("a"))
	<-saver.started

	s.Stop()
	assert.Equal(t, 0, saver.count())
}

func TestDefaultDelay(t *testing.T) {
	s := New(&recordingSaver{}, "d1", "design-d1", 0)
	defer s.Stop()
	assert.Equal(t, DefaultDelay, s.delay)
}
