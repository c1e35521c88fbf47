// Package editor runs one editing session per open design.
//
// A session owns a canvas state, the replication bridge to the design's room
// and the autosave scheduler. Every operation and every room event is
// executed on a single loop goroutine, so the engine is never touched
// concurrently and local and remote changes never interleave mid-step.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"canvas-studio/internal/autosave"
	"canvas-studio/internal/canvas"
	"canvas-studio/internal/models"
	"canvas-studio/internal/replication"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("editor session closed")

// DesignLoader fetches the stored design
type DesignLoader interface {
	GetDesign(ctx context.Context, id string) (*models.Design, error)
}

// Room is a joined collaboration room
type Room interface {
	replication.RemoteDocument
	replication.PresenceSender
	Events() <-chan models.RoomMessage
	Close() error
}

// Dialer joins the named room
type Dialer func(ctx context.Context, room string) (Room, error)

type Options struct {
	DesignID string
	Loader   DesignLoader
	Saver    autosave.Saver
	Dial     Dialer

	// Zero values use the package defaults
	AutosaveDelay  time.Duration
	SuppressWindow time.Duration

	// OnChange, if set, is called on the session loop after every
	// operation or room event. It must not call back into the session.
	OnChange func(View)
}

// View is a read-only copy of the session state
type View struct {
	DesignID          string
	Elements          models.Elements
	SelectedElementID string
	CanUndo           bool
	CanRedo           bool
	HistoryLen        int
	HistoryIndex      int
	IsSynced          bool
	CommentsMode      bool
	ConnectionID      string
	Others            []models.Participant
	Layers            models.Elements
}

type Session struct {
	designID string
	room     string

	state     *canvas.State
	bridge    *replication.Bridge
	scheduler *autosave.Scheduler
	conn      Room
	onChange  func(View)

	connectionID string

	ctx    context.Context
	cancel context.CancelFunc
	ops    chan func()
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// Open loads the design, joins its room and starts the session loop
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Loader == nil || opts.Saver == nil || opts.Dial == nil {
		return nil, fmt.Errorf("editor: loader, saver and dialer are required")
	}

	design, err := opts.Loader.GetDesign(ctx, opts.DesignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load design %s: %w", opts.DesignID, err)
	}

	state := canvas.NewState()
	if stored := design.Elements(); len(stored) > 0 {
		state.SetElements(stored)
	} else {
		state.ClearCanvas()
	}

	room := models.RoomForDesign(design.ID)
	conn, err := opts.Dial(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("failed to join room %s: %w", room, err)
	}

	scheduler := autosave.New(opts.Saver, design.ID, room, opts.AutosaveDelay)

	bridgeOpts := []replication.Option{replication.WithListener(scheduler)}
	if opts.SuppressWindow > 0 {
		bridgeOpts = append(bridgeOpts, replication.WithSuppressWindow(opts.SuppressWindow))
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		designID:  design.ID,
		room:      room,
		state:     state,
		bridge:    replication.NewBridge(state, conn, conn, bridgeOpts...),
		scheduler: scheduler,
		conn:      conn,
		onChange:  opts.OnChange,
		ctx:       sctx,
		cancel:    cancel,
		ops:       make(chan func()),
		done:      make(chan struct{}),
	}
	state.SetSyncStatus(true)

	s.wg.Add(1)
	go s.loop()

	log.Printf("✓ Opened design %s in room %s (%d elements)", design.ID, room, state.Len())
	return s, nil
}

func (s *Session) DesignID() string { return s.designID }
func (s *Session) Room() string     { return s.room }

func (s *Session) loop() {
	defer s.wg.Done()

	events := s.conn.Events()
	for {
		select {
		case <-s.done:
			return

		case op := <-s.ops:
			op()

		case msg, ok := <-events:
			if !ok {
				log.Printf("⚠️  Lost connection to room %s", s.room)
				s.state.SetSyncStatus(false)
				s.bridge.Presence().Reset()
				events = nil
				s.changed()
				continue
			}
			s.handleRoomMessage(msg)
			s.changed()
		}
	}
}

func (s *Session) handleRoomMessage(msg models.RoomMessage) {
	presence := s.bridge.Presence()

	switch msg.Type {
	case models.MessageRoomState:
		s.connectionID = msg.ConnectionID
		presence.Reset()
		for _, p := range msg.Others {
			presence.Apply(p)
		}
		value := models.EmptyStorage
		if msg.CanvasElements != nil {
			value = *msg.CanvasElements
		}
		s.bridge.HandleRemoteChange(s.ctx, value)
		s.syncSelection()

	case models.MessageStorage:
		if msg.CanvasElements != nil {
			s.bridge.HandleRemoteChange(s.ctx, *msg.CanvasElements)
			s.syncSelection()
		}

	case models.MessageJoin:
		presence.ApplyPresence(msg.ConnectionID, msg.User, msg.Presence)

	case models.MessagePresence:
		if msg.ConnectionID != s.connectionID {
			presence.ApplyPresence(msg.ConnectionID, nil, msg.Presence)
		}

	case models.MessageLeave:
		presence.RemoveParticipant(msg.ConnectionID)

	case models.MessageError:
		log.Printf("⚠️  Room %s: %s", s.room, msg.Error)
	}
}

// run executes fn on the loop and waits for it
func (s *Session) run(fn func()) error {
	finished := make(chan struct{})
	op := func() {
		defer close(finished)
		fn()
		s.changed()
	}

	select {
	case s.ops <- op:
	case <-s.done:
		return ErrClosed
	}
	<-finished
	return nil
}

// mutate runs an element mutation and then the local change reaction
func (s *Session) mutate(fn func()) error {
	return s.run(func() {
		fn()
		s.bridge.HandleLocalChange(s.ctx)
		s.syncSelection()
	})
}

// syncSelection mirrors the engine's selection into our presence
func (s *Session) syncSelection() {
	id, _ := s.state.SelectedElementID()
	s.bridge.Presence().SetSelection(s.ctx, id)
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange(s.view())
	}
}

func (s *Session) view() View {
	id, _ := s.state.SelectedElementID()
	return View{
		DesignID:          s.designID,
		Elements:          s.state.Elements(),
		SelectedElementID: id,
		CanUndo:           s.state.CanUndo(),
		CanRedo:           s.state.CanRedo(),
		HistoryLen:        s.state.HistoryLen(),
		HistoryIndex:      s.state.HistoryIndex(),
		IsSynced:          s.state.IsSynced(),
		CommentsMode:      s.state.CommentsMode(),
		ConnectionID:      s.connectionID,
		Others:            s.bridge.Presence().Others(),
		Layers:            s.state.LayerOrder(),
	}
}

// View returns a copy of the current state
func (s *Session) View() (View, error) {
	var v View
	err := s.run(func() { v = s.view() })
	return v, err
}

// AddElement adds el on top of the stack. An empty id is filled with a new
// UUID. Returns the id.
func (s *Session) AddElement(el models.Element) (string, error) {
	if el == nil {
		return "", models.ValidateElement(nil)
	}
	el = el.Clone()
	if el.Base().ID == "" {
		el.Base().ID = uuid.NewString()
	}
	if err := models.ValidateElement(el); err != nil {
		return "", err
	}

	err := s.mutate(func() {
		el.Base().ZIndex = s.state.NextZIndex()
		s.state.AddElement(el)
	})
	return el.Base().ID, err
}

// UpdateElement merges patch into an element without committing history.
// Call CommitHistory when the gesture ends.
func (s *Session) UpdateElement(id string, patch models.ElementPatch) (bool, error) {
	var found bool
	err := s.mutate(func() { found = s.state.UpdateElement(id, patch) })
	return found, err
}

func (s *Session) CommitHistory() error {
	return s.mutate(s.state.CommitHistory)
}

func (s *Session) DeleteElement(id string) error {
	return s.mutate(func() { s.state.DeleteElement(id) })
}

// SelectElement selects id ("" clears) and publishes it as presence
func (s *Session) SelectElement(id string) error {
	return s.run(func() {
		s.state.SelectElement(id)
		s.syncSelection()
	})
}

func (s *Session) BringForward(id string) error {
	return s.mutate(func() { s.state.BringForward(id) })
}

func (s *Session) SendBackward(id string) error {
	return s.mutate(func() { s.state.SendBackward(id) })
}

func (s *Session) ReorderLayer(draggedID, targetID string) error {
	return s.mutate(func() { s.state.ReorderLayer(draggedID, targetID) })
}

func (s *Session) Undo() (bool, error) {
	var moved bool
	err := s.mutate(func() { moved = s.state.Undo() })
	return moved, err
}

func (s *Session) Redo() (bool, error) {
	var moved bool
	err := s.mutate(func() { moved = s.state.Redo() })
	return moved, err
}

// SetCursor publishes the cursor position; nil hides it
func (s *Session) SetCursor(p *models.Point) error {
	return s.run(func() { s.bridge.Presence().SetCursor(s.ctx, p) })
}

func (s *Session) SetCommentsMode(on bool) error {
	return s.run(func() { s.state.SetCommentsMode(on) })
}

// Flush saves pending edits now
func (s *Session) Flush(ctx context.Context) {
	s.scheduler.Flush(ctx)
}

// Close stops the loop, cancels pending autosave and leaves the room.
// Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()

		s.state.SetSyncStatus(false)
		s.scheduler.Stop()
		s.cancel()
		err = s.conn.Close()

		log.Printf("✓ Closed design %s", s.designID)
	})
	return err
}
