// 领域事件 - 用户/任务/位置变更后发布到NATS

package service

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Event types
const (
	EventUserCreated     = "user.created"
	EventUserUpdated     = "user.updated"
	EventUserDeactivated = "user.deactivated"
	EventUserActivated   = "user.activated"
	EventUserDeleted     = "user.deleted"
	EventTaskCreated     = "task.created"
	EventTaskUpdated     = "task.updated"
	EventTaskDoneToggled = "task.done_toggled"
	EventTaskDeactivated = "task.deactivated"
	EventTaskActivated   = "task.activated"
	EventTaskDeleted     = "task.deleted"
	EventLocationCreated = "location.created"
	EventLocationUpdated = "location.updated"
	EventLocationDeleted = "location.deleted"
)

// DefaultEventPrefix is the subject prefix used when none is configured
const DefaultEventPrefix = "geotasks"

// Event describes a committed change
type Event struct {
	Type   string    `json:"type"`
	ID     uint      `json:"id"`
	UserID uint      `json:"user_id"`
	At     time.Time `json:"at"`
}

// Publisher emits events after a change has been committed.
// Implementations must not block the request on delivery problems.
type Publisher interface {
	Publish(event Event)
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

// NATSPublisher publishes events as JSON on <prefix>.<type>
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher creates a NATS backed publisher
func NewNATSPublisher(conn *nats.Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultEventPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the subject an event type is published on
func (p *NATSPublisher) Subject(eventType string) string {
	return fmt.Sprintf("%s.%s", p.prefix, eventType)
}

// Publish implements Publisher
func (p *NATSPublisher) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Events] Failed to encode %s: %v", event.Type, err)
		return
	}
	if err := p.conn.Publish(p.Subject(event.Type), data); err != nil {
		log.Printf("[Events] Failed to publish %s id=%d: %v", event.Type, event.ID, err)
	}
}

func newEvent(eventType string, id, userID uint) Event {
	return Event{Type: eventType, ID: id, UserID: userID, At: time.Now().UTC()}
}
