// Package events delivers notifications about committed mutations. Services
// publish an Event only after their transaction commits; the Dispatcher
// queues it and hands it to every Sink.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type names what happened
type Type string

const (
	ContentCreated   Type = "content.created"
	ContentUpdated   Type = "content.updated"
	ContentDeleted   Type = "content.deleted"
	ScheduleCreated  Type = "schedule.created"
	ScheduleUpdated  Type = "schedule.updated"
	ScheduleDeleted  Type = "schedule.deleted"
	TagCreated       Type = "tag.created"
	TagDeleted       Type = "tag.deleted"
	CoupleFormed     Type = "couple.formed"
	CoupleUpdated    Type = "couple.updated"
	CoupleMemberLeft Type = "couple.member_left"
)

// Event describes one committed mutation
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	CoupleID   int64     `json:"couple_id"`
	ActorID    int64     `json:"actor_id,omitempty"`
	EntityID   int64     `json:"entity_id"`
	Title      string    `json:"title,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`

	// RecipientID is the partner to notify directly, if any
	RecipientID int64 `json:"-"`
}

// New creates an event with a fresh id
func New(typ Type, coupleID, actorID, entityID int64) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		CoupleID:   coupleID,
		ActorID:    actorID,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher accepts events after a successful commit. Publish must not block
// the caller.
type Publisher interface {
	Publish(e Event)
}

// Discard is a Publisher that drops every event
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}
