package events

import (
	"time"

	"github.com/google/uuid"
)

// SourceKernel is the event source name used on the bus
const SourceKernel = "designgraph.kernel"

// Event types
const (
	TypeGraphCreated = "graph.created"
	TypeGraphPatched = "graph.patched"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetEventID() string
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int64
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventID     string    `json:"event_id"`
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int64     `json:"version"`
}

func (e BaseEvent) GetEventID() string      { return e.EventID }
func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int64       { return e.Version }

func newBase(sessionID, eventType string, version int64, timestamp time.Time) BaseEvent {
	return BaseEvent{
		EventID:     uuid.New().String(),
		AggregateID: sessionID,
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     version,
	}
}

// Graph Events

// GraphCreated is raised when a session's graph is created
type GraphCreated struct {
	BaseEvent
	SessionID string `json:"session_id"`
}

// NewGraphCreated creates a GraphCreated event
func NewGraphCreated(sessionID string, version int64, timestamp time.Time) GraphCreated {
	return GraphCreated{
		BaseEvent: newBase(sessionID, TypeGraphCreated, version, timestamp),
		SessionID: sessionID,
	}
}

// GraphPatched is raised after a patch is committed
type GraphPatched struct {
	BaseEvent
	SessionID       string `json:"session_id"`
	PatchID         string `json:"patch_id"`
	PreviousVersion int64  `json:"previous_version"`
	OpCount         int    `json:"op_count"`
	RequestID       string `json:"request_id,omitempty"`
}

// NewGraphPatched creates a GraphPatched event
func NewGraphPatched(sessionID, patchID, requestID string, previous, version int64, opCount int, timestamp time.Time) GraphPatched {
	return GraphPatched{
		BaseEvent:       newBase(sessionID, TypeGraphPatched, version, timestamp),
		SessionID:       sessionID,
		PatchID:         patchID,
		PreviousVersion: previous,
		OpCount:         opCount,
		RequestID:       requestID,
	}
}
