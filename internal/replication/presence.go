package replication

import (
	"context"
	"log"
	"sort"

	"canvas-studio/internal/models"
)

// PresenceSender broadcasts this connection's presence to the room
type PresenceSender interface {
	UpdatePresence(ctx context.Context, presence models.Presence) error
}

// PresenceTracker holds our own presence and the last seen presence of every
// other participant. Last write wins per connection.
type PresenceTracker struct {
	sender PresenceSender
	self   models.Presence
	others map[string]models.Participant
}

func NewPresenceTracker(sender PresenceSender) *PresenceTracker {
	return &PresenceTracker{
		sender: sender,
		others: make(map[string]models.Participant),
	}
}

// SetCursor publishes the cursor position; nil hides it
func (p *PresenceTracker) SetCursor(ctx context.Context, cursor *models.Point) {
	if cursor != nil {
		c := *cursor
		cursor = &c
	}
	p.self.Cursor = cursor
	p.publish(ctx)
}

// SetSelection publishes the selected element; "" clears it
func (p *PresenceTracker) SetSelection(ctx context.Context, id string) {
	if id == "" {
		if p.self.SelectedElementID == nil {
			return
		}
		p.self.SelectedElementID = nil
	} else {
		if p.self.SelectedElementID != nil && *p.self.SelectedElementID == id {
			return
		}
		p.self.SelectedElementID = &id
	}
	p.publish(ctx)
}

func (p *PresenceTracker) Self() models.Presence {
	return p.self
}

// Apply records a participant's presence
func (p *PresenceTracker) Apply(participant models.Participant) {
	p.others[participant.ConnectionID] = participant
}

// ApplyPresence merges a partial update into a participant's entry.
// A nil user or presence keeps what is already known.
func (p *PresenceTracker) ApplyPresence(connectionID string, user *models.UserMeta, presence *models.Presence) {
	participant := p.others[connectionID]
	participant.ConnectionID = connectionID
	if user != nil {
		participant.User = *user
	}
	if presence != nil {
		participant.Presence = *presence
	}
	p.others[connectionID] = participant
}

// RemoveParticipant forgets a participant that left
func (p *PresenceTracker) RemoveParticipant(connectionID string) {
	delete(p.others, connectionID)
}

// Reset drops every participant, used when the room connection is lost
func (p *PresenceTracker) Reset() {
	p.others = make(map[string]models.Participant)
}

// Others lists the other participants ordered by connection id
func (p *PresenceTracker) Others() []models.Participant {
	out := make([]models.Participant, 0, len(p.others))
	for _, o := range p.others {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectionID < out[j].ConnectionID })
	return out
}

func (p *PresenceTracker) publish(ctx context.Context) {
	if p.sender == nil {
		return
	}
	if err := p.sender.UpdatePresence(ctx, p.self); err != nil {
		log.Printf("⚠️  Failed to update presence: %v", err)
	}
}
