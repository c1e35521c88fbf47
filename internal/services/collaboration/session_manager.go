package collaboration

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"canvas-studio/internal/middleware"
	"canvas-studio/internal/models"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
)

/*
LEARNING: ROOM HUB

Every room has one shared document (the serialized element list) and a
presence entry per connection. All room mutations go through the hub
goroutine, so for a given room:

  - writes are applied to the store and broadcast in one order
  - a joining session sees either the document before a write plus the
    write's broadcast, or the document after it; never neither

Writes are echoed to the writer too. Clients rely on that echo to confirm
their own write and ignore it.
*/

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 256
	storeTimeout = 5 * time.Second
)

// SessionManager manages all active room connections
// Learning: Central hub for coordinating real-time collaboration
type SessionManager struct {
	rooms      map[string]map[*Session]bool // roomID -> set of sessions
	register   chan *Session
	unregister chan *Session
	writes     chan *storageWrite
	presence   chan *presenceUpdate
	remote     chan models.RoomEvent
	mu         sync.RWMutex

	// Participants connected to other instances, learned from the bus
	remoteParticipants map[string]map[string]models.Participant

	store      RoomStore
	bus        RoomBus
	instanceID string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Session represents an active WebSocket connection
type Session struct {
	*models.Session
	Conn     *websocket.Conn
	Send     chan []byte // Buffered channel for outbound messages
	Manager  *SessionManager
	Presence models.Presence // owned by the hub goroutine

	lastActive atomic.Int64
}

type storageWrite struct {
	session *Session
	value   string
}

type presenceUpdate struct {
	session  *Session
	presence models.Presence
}

// NewSessionManager creates a hub over the given store. bus may be nil for a
// single-instance deployment.
func NewSessionManager(store RoomStore, bus RoomBus) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		rooms:              make(map[string]map[*Session]bool),
		register:           make(chan *Session),
		unregister:         make(chan *Session),
		writes:             make(chan *storageWrite, sendBuffer),
		presence:           make(chan *presenceUpdate, sendBuffer),
		remote:             make(chan models.RoomEvent, sendBuffer),
		remoteParticipants: make(map[string]map[string]models.Participant),
		store:              store,
		bus:                bus,
		instanceID:         ulid.Make().String(),
		ctx:                ctx,
		cancel:             cancel,
		done:               make(chan struct{}),
	}
}

// Start begins the hub event loop
// Learning: This goroutine handles all session events in order
func (sm *SessionManager) Start() {
	log.Println("🔄 Starting room session manager...")

	go func() {
		for {
			select {
			case <-sm.done:
				log.Println("Session manager shutting down...")
				return

			case session := <-sm.register:
				sm.handleRegister(session)

			case session := <-sm.unregister:
				sm.handleUnregister(session)

			case w := <-sm.writes:
				sm.handleWrite(w)

			case p := <-sm.presence:
				sm.handlePresence(p)

			case evt := <-sm.remote:
				sm.handleRemote(evt)
			}
		}
	}()

	if sm.bus != nil {
		go sm.subscribeLoop()
	}

	go sm.cleanupLoop()

	log.Printf("✓ Room session manager started (instance %s)", sm.instanceID)
}

// handleRegister adds a session to a room and sends it the room state
func (sm *SessionManager) handleRegister(session *Session) {
	ctx, cancel := context.WithTimeout(sm.ctx, storeTimeout)
	defer cancel()

	value, err := sm.store.Get(ctx, session.RoomID)
	if err != nil {
		log.Printf("⚠️  Failed to load room %s: %v", session.RoomID, err)
		value = models.EmptyStorage
	}

	sm.mu.Lock()
	if sm.rooms[session.RoomID] == nil {
		sm.rooms[session.RoomID] = make(map[*Session]bool)
	}
	others := sm.participantsLocked(session.RoomID, session)
	sm.rooms[session.RoomID][session] = true
	total := len(sm.rooms[session.RoomID])
	sm.mu.Unlock()

	log.Printf("  Session %s joined room %s (total: %d users)", session.ID, session.RoomID, total)

	session.enqueue(models.RoomMessage{
		Type:           models.MessageRoomState,
		ConnectionID:   session.ID,
		CanvasElements: &value,
		Others:         others,
	})

	user := session.User
	sm.fanOut(session.RoomID, models.RoomMessage{
		Type:         models.MessageJoin,
		ConnectionID: session.ID,
		User:         &user,
		Presence:     &models.Presence{},
	}, session)
}

// handleUnregister removes a session from its room
func (sm *SessionManager) handleUnregister(session *Session) {
	if !sm.remove(session) {
		return
	}

	sm.fanOut(session.RoomID, models.RoomMessage{
		Type:         models.MessageLeave,
		ConnectionID: session.ID,
	}, nil)
}

// remove drops the session and closes its send queue; false if already gone
func (sm *SessionManager) remove(session *Session) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sessions, ok := sm.rooms[session.RoomID]
	if !ok || !sessions[session] {
		return false
	}

	delete(sessions, session)
	close(session.Send)

	// Remove empty rooms
	if len(sessions) == 0 {
		delete(sm.rooms, session.RoomID)
	}

	log.Printf("  Session %s left room %s (remaining: %d users)", session.ID, session.RoomID, len(sessions))
	return true
}

// handleWrite stores the new document, then broadcasts it to every session
// including the writer
func (sm *SessionManager) handleWrite(w *storageWrite) {
	ctx, span := middleware.StartSpan(sm.ctx, "Room.SetStorage",
		attribute.String("room.id", w.session.RoomID),
		attribute.String("session.id", w.session.ID),
		attribute.Int("storage.size", len(w.value)),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := sm.store.Set(ctx, w.session.RoomID, w.value); err != nil {
		log.Printf("❌ Failed to store room %s: %v", w.session.RoomID, err)
		middleware.AddSpanError(ctx, err)
		w.session.enqueue(models.RoomMessage{Type: models.MessageError, Error: "failed to store document"})
		return
	}
	middleware.AddSpanEvent(ctx, "room.stored", attribute.Bool("room.relayed", sm.bus != nil))

	value := w.value
	sm.fanOut(w.session.RoomID, models.RoomMessage{
		Type:           models.MessageStorage,
		ConnectionID:   w.session.ID,
		CanvasElements: &value,
	}, nil)
}

// handlePresence records the session's presence and tells the others
func (sm *SessionManager) handlePresence(p *presenceUpdate) {
	sm.mu.Lock()
	joined := sm.rooms[p.session.RoomID][p.session]
	if joined {
		p.session.Presence = p.presence
	}
	sm.mu.Unlock()
	if !joined {
		return
	}

	presence := p.presence
	sm.fanOut(p.session.RoomID, models.RoomMessage{
		Type:         models.MessagePresence,
		ConnectionID: p.session.ID,
		Presence:     &presence,
	}, p.session)
}

// handleRemote relays a message that originated on another instance
func (sm *SessionManager) handleRemote(evt models.RoomEvent) {
	if evt.Origin == sm.instanceID {
		return
	}

	msg := evt.Message
	switch msg.Type {
	case models.MessageJoin:
		p := models.Participant{ConnectionID: msg.ConnectionID}
		if msg.User != nil {
			p.User = *msg.User
		}
		sm.setRemoteParticipant(evt.Room, p)
	case models.MessagePresence:
		sm.mu.Lock()
		if p, ok := sm.remoteParticipants[evt.Room][msg.ConnectionID]; ok && msg.Presence != nil {
			p.Presence = *msg.Presence
			sm.remoteParticipants[evt.Room][msg.ConnectionID] = p
		}
		sm.mu.Unlock()
	case models.MessageLeave:
		sm.mu.Lock()
		delete(sm.remoteParticipants[evt.Room], msg.ConnectionID)
		if len(sm.remoteParticipants[evt.Room]) == 0 {
			delete(sm.remoteParticipants, evt.Room)
		}
		sm.mu.Unlock()
	}

	sm.broadcastLocal(evt.Room, msg, nil)
}

func (sm *SessionManager) setRemoteParticipant(room string, p models.Participant) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.remoteParticipants[room] == nil {
		sm.remoteParticipants[room] = make(map[string]models.Participant)
	}
	sm.remoteParticipants[room][p.ConnectionID] = p
}

// fanOut broadcasts locally and, when a bus is configured, to other instances
func (sm *SessionManager) fanOut(room string, msg models.RoomMessage, skip *Session) {
	sm.broadcastLocal(room, msg, skip)

	if sm.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(sm.ctx, storeTimeout)
	defer cancel()
	if err := sm.bus.Publish(ctx, models.RoomEvent{Origin: sm.instanceID, Room: room, Message: msg}); err != nil {
		log.Printf("⚠️  Failed to publish %s for room %s: %v", msg.Type, room, err)
	}
}

// broadcastLocal sends a message to every session of a room on this instance
func (sm *SessionManager) broadcastLocal(room string, msg models.RoomMessage, skip *Session) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("❌ Failed to encode %s message: %v", msg.Type, err)
		return
	}

	var slow []*Session
	sm.mu.RLock()
	for session := range sm.rooms[room] {
		if session == skip {
			continue
		}
		select {
		case session.Send <- data:
		default:
			slow = append(slow, session)
		}
	}
	sm.mu.RUnlock()

	// Buffer full - connection is slow/dead
	for _, session := range slow {
		log.Printf("⚠️  Session %s buffer full, closing connection", session.ID)
		if sm.remove(session) {
			session.Conn.Close()
		}
	}
}

// participantsLocked lists the room's participants except self, sorted by
// connection id. Caller holds sm.mu.
func (sm *SessionManager) participantsLocked(room string, self *Session) []models.Participant {
	out := []models.Participant{}
	for session := range sm.rooms[room] {
		if session == self {
			continue
		}
		out = append(out, models.Participant{
			ConnectionID: session.ID,
			User:         session.User,
			Presence:     session.Presence,
		})
	}
	for _, p := range sm.remoteParticipants[room] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectionID < out[j].ConnectionID })
	return out
}

// GetSessions returns all active sessions for a room
func (sm *SessionManager) GetSessions(room string) []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	result := make([]*Session, 0, len(sm.rooms[room]))
	for session := range sm.rooms[room] {
		result = append(result, session)
	}
	return result
}

// subscribeLoop forwards bus events into the hub
func (sm *SessionManager) subscribeLoop() {
	events, err := sm.bus.Subscribe(sm.ctx)
	if err != nil {
		log.Printf("❌ Room events subscription failed: %v", err)
		return
	}
	log.Println("✓ Subscribed to room events")

	for evt := range events {
		select {
		case sm.remote <- evt:
		case <-sm.done:
			return
		}
	}
}

// cleanupLoop periodically closes sessions that stopped answering pings
func (sm *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sm.done:
			return
		case <-ticker.C:
			sm.cleanup()
		}
	}
}

// cleanup closes stale connections; their ReadPump then unregisters them
func (sm *SessionManager) cleanup() {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	now := time.Now()
	for _, sessions := range sm.rooms {
		for session := range sessions {
			if now.Sub(session.LastActive()) > pongWait {
				log.Printf("  Cleaning up inactive session %s", session.ID)
				session.Conn.Close()
			}
		}
	}
}

// Shutdown gracefully closes all connections
func (sm *SessionManager) Shutdown() {
	sm.once.Do(func() {
		log.Println("🛑 Shutting down session manager...")

		close(sm.done)
		sm.cancel()

		sm.mu.Lock()
		defer sm.mu.Unlock()

		for _, sessions := range sm.rooms {
			for session := range sessions {
				close(session.Send)
				session.Conn.Close()
			}
		}

		sm.rooms = make(map[string]map[*Session]bool)
		log.Println("✓ Session manager shutdown complete")
	})
}

// Session methods

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive is the time of the last message or pong
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// enqueue queues a message for this session alone
func (s *Session) enqueue(msg models.RoomMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("❌ Failed to encode %s message: %v", msg.Type, err)
		return
	}

	// Send is closed once the session leaves the room
	s.Manager.mu.RLock()
	defer s.Manager.mu.RUnlock()
	if !s.Manager.rooms[s.RoomID][s] {
		return
	}
	select {
	case s.Send <- data:
	default:
		log.Printf("⚠️  Session %s buffer full, dropping %s", s.ID, msg.Type)
	}
}

// submit hands an event to the hub unless it is shutting down
func submit[T any](sm *SessionManager, ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-sm.done:
		return false
	}
}

// ReadPump reads messages from the WebSocket connection until it closes
// Learning: Each session has its own goroutine reading from the WebSocket
func (s *Session) ReadPump(ctx context.Context) {
	defer func() {
		submit(s.Manager, s.Manager.unregister, s)
		s.Conn.Close()
	}()

	s.touch()
	s.Conn.SetReadDeadline(time.Now().Add(pongWait))
	s.Conn.SetPongHandler(func(string) error {
		s.Conn.SetReadDeadline(time.Now().Add(pongWait))
		s.touch()
		return nil
	})

	for {
		_, message, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		s.touch()

		msgCtx, span := middleware.StartSpan(ctx, "WebSocket.ProcessMessage",
			attribute.String("session.id", s.ID),
			attribute.String("room.id", s.RoomID),
			attribute.Int("message.size", len(message)),
		)
		s.process(msgCtx, message)
		span.End()
	}
}

func (s *Session) process(ctx context.Context, data []byte) {
	var msg models.RoomMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		middleware.AddSpanError(ctx, err)
		s.reject("malformed message")
		return
	}

	switch msg.Type {
	case models.MessageSetStorage:
		if msg.CanvasElements == nil {
			s.reject("set_storage requires canvasElements")
			return
		}
		// The document must stay a decodable element list for every client
		var elements models.Elements
		if err := json.Unmarshal([]byte(*msg.CanvasElements), &elements); err != nil {
			middleware.AddSpanError(ctx, err)
			s.reject("canvasElements is not a valid element list")
			return
		}
		submit(s.Manager, s.Manager.writes, &storageWrite{session: s, value: *msg.CanvasElements})

	case models.MessageUpdatePresence:
		if msg.Presence == nil {
			s.reject("update_presence requires presence")
			return
		}
		submit(s.Manager, s.Manager.presence, &presenceUpdate{session: s, presence: *msg.Presence})

	default:
		s.reject("unknown message type " + string(msg.Type))
	}
}

// reject answers the sender with an error message
func (s *Session) reject(reason string) {
	s.enqueue(models.RoomMessage{Type: models.MessageError, Error: reason})
}

// WritePump writes messages to the WebSocket connection
// Learning: Separate goroutine for writing prevents blocking on slow clients
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.Send:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed
				s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON document per frame
			if err := s.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
