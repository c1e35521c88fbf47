// Package replication keeps a local canvas and the shared room document in
// step without feedback loops.
//
// The shared document is a single string field holding the JSON element array.
// The bridge remembers the last value it wrote or observed; a remote change
// carrying that same value is our own echo and is dropped.
package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"canvas-studio/internal/models"
)

// DefaultSuppressWindow is how long local-change reactions are ignored after
// a remote document was applied
const DefaultSuppressWindow = 50 * time.Millisecond

// EmptyDocument is the serialized empty element list
const EmptyDocument = models.EmptyStorage

// LocalCanvas is the part of the canvas state the bridge reads and replaces
type LocalCanvas interface {
	Elements() models.Elements
	SetElements(list []models.Element)
}

// RemoteDocument writes the shared document field.
// Writes are fire-and-forget: implementations must not block on the network.
type RemoteDocument interface {
	SetStorage(ctx context.Context, value string) error
}

// ChangeListener is told about every local change the bridge pushed
type ChangeListener interface {
	Notify(elements models.Elements)
}

// Bridge is owned by the editor session loop and is not safe for concurrent use.
type Bridge struct {
	local    LocalCanvas
	remote   RemoteDocument
	listener ChangeListener

	lastKnownRemoteValue string

	// lastCanonical is our own serialization of the last applied remote
	// value; peers may format the same list differently
	lastCanonical string

	suppressUntil time.Time
	window        time.Duration
	now           func() time.Time

	presence *PresenceTracker
}

type Option func(*Bridge)

// WithSuppressWindow overrides DefaultSuppressWindow
func WithSuppressWindow(d time.Duration) Option {
	return func(b *Bridge) { b.window = d }
}

// WithClock injects the time source
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// WithListener registers the persistence hook
func WithListener(l ChangeListener) Option {
	return func(b *Bridge) { b.listener = l }
}

func NewBridge(local LocalCanvas, remote RemoteDocument, presence PresenceSender, opts ...Option) *Bridge {
	b := &Bridge{
		local:    local,
		remote:   remote,
		window:   DefaultSuppressWindow,
		now:      time.Now,
		presence: NewPresenceTracker(presence),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// HandleRemoteChange reacts to a new value of the shared document.
// Returns true when the value was applied to the local canvas.
func (b *Bridge) HandleRemoteChange(ctx context.Context, value string) bool {
	if value == b.lastKnownRemoteValue {
		return false
	}

	// Room storage not initialized yet but we already hold content:
	// local state wins and seeds the room.
	if value == EmptyDocument && len(b.local.Elements()) > 0 {
		b.push(ctx, b.local.Elements())
		return false
	}

	elements, err := Parse(value)
	if err != nil {
		log.Printf("⚠️  Failed to parse room document: %v", err)
		return false
	}

	b.lastKnownRemoteValue = value
	b.lastCanonical, _ = Serialize(elements)
	b.suppressUntil = b.now().Add(b.window)
	b.local.SetElements(elements)
	return true
}

// HandleLocalChange pushes the local element list to the room (and to the
// listener) unless it matches what the room already holds.
// Returns true when a write was issued.
func (b *Bridge) HandleLocalChange(ctx context.Context) bool {
	if b.Applying() {
		return false
	}

	elements := b.local.Elements()
	value, err := Serialize(elements)
	if err != nil {
		log.Printf("⚠️  Failed to serialize canvas: %v", err)
		return false
	}
	if value == b.lastKnownRemoteValue || value == b.lastCanonical {
		return false
	}

	b.write(ctx, value)
	if b.listener != nil {
		b.listener.Notify(elements)
	}
	return true
}

// Applying reports whether a remote update is inside its suppression window
func (b *Bridge) Applying() bool {
	return b.now().Before(b.suppressUntil)
}

// LastKnownRemoteValue is the document value last written or observed
func (b *Bridge) LastKnownRemoteValue() string {
	return b.lastKnownRemoteValue
}

// Presence returns the presence tracker of this bridge
func (b *Bridge) Presence() *PresenceTracker {
	return b.presence
}

func (b *Bridge) push(ctx context.Context, elements models.Elements) {
	value, err := Serialize(elements)
	if err != nil {
		log.Printf("⚠️  Failed to serialize canvas: %v", err)
		return
	}
	b.write(ctx, value)
}

func (b *Bridge) write(ctx context.Context, value string) {
	b.lastKnownRemoteValue = value
	b.lastCanonical = value
	if err := b.remote.SetStorage(ctx, value); err != nil {
		log.Printf("⚠️  Failed to write room document: %v", err)
	}
}

// Serialize renders elements the way they are stored in the room document
func Serialize(elements []models.Element) (string, error) {
	data, err := json.Marshal(models.Elements(elements))
	if err != nil {
		return "", fmt.Errorf("failed to serialize elements: %w", err)
	}
	return string(data), nil
}

// Parse decodes a room document value
func Parse(value string) (models.Elements, error) {
	var elements models.Elements
	if err := json.Unmarshal([]byte(value), &elements); err != nil {
		return nil, fmt.Errorf("failed to parse elements: %w", err)
	}
	if elements == nil {
		elements = models.Elements{}
	}
	return elements, nil
}
