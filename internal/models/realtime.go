package models

import "encoding/json"

// EventKind distinguishes inserts from updates on a row.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// ChangeEvent is the change notification emitted after a committed mutation.
// Topic scopes delivery: clients subscribe to the topics of the aggregates
// their view shows. Payload is the JSON of the row after the change; clients
// either patch their cached view from it or re-fetch the whole aggregate.
// No ordering is guaranteed across topics.
type ChangeEvent struct {
	Topic    string          `json:"topic"`
	Table    string          `json:"table"`
	Kind     EventKind       `json:"kind"`
	EntityID string          `json:"entity_id"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Topic constructors. Membership and message topics are scoped by chatroom
// because that is the aggregate a client view watches.

func PoolTopic(poolID string) string           { return "pool:" + poolID }
func ChatroomTopic(chatroomID string) string   { return "chatroom:" + chatroomID }
func MembershipTopic(chatroomID string) string { return "membership:" + chatroomID }
func MessageTopic(chatroomID string) string    { return "message:" + chatroomID }

// NewChangeEvent builds an event carrying the entity's JSON as payload.
// A marshal failure leaves Payload empty, which clients treat as "re-fetch".
func NewChangeEvent(kind EventKind, table, topic, entityID string, entity interface{}) ChangeEvent {
	ev := ChangeEvent{
		Topic:    topic,
		Table:    table,
		Kind:     kind,
		EntityID: entityID,
	}
	if entity != nil {
		if payload, err := json.Marshal(entity); err == nil {
			ev.Payload = payload
		}
	}
	return ev
}
