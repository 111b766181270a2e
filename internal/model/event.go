// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventOpened  EventType = "OPENED"
	EventClosed  EventType = "CLOSED"
	EventIOError EventType = "IO_ERROR"
)

// IOErrorKind tells on which side of the link an I/O fault happened
type IOErrorKind string

const (
	IOErrorTransmit IOErrorKind = "TRANSMIT"
	IOErrorReceive  IOErrorKind = "RECEIVE"
	IOErrorOpen     IOErrorKind = "OPEN"
)

// ConnectionEvent is published on every connection state change and on every
// failed I/O attempt.
type ConnectionEvent struct {
	ID        uuid.UUID   `json:"id"`
	Type      EventType   `json:"event_type"`
	Port      string      `json:"port"`
	Kind      IOErrorKind `json:"kind,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Err       error       `json:"-"`
	Timestamp time.Time   `json:"timestamp"`
}

// IsError reports whether the event signals a failed I/O attempt
func (e ConnectionEvent) IsError() bool {
	return e.Type == EventIOError
}
