// Package monitor fans the queue manager's activity out to connected TCP
// observers: every transmit, receive, ack, and expiry becomes one Event on
// the wire, batched and flushed on a timer like the teacher's client writer.
package monitor

import "time"

// EventKind tags what happened to a record.
type EventKind byte

const (
	EventTx EventKind = iota + 1
	EventRx
	EventAck
	EventExpire
)

// Event is one manager activity notification.
type Event struct {
	Kind        EventKind
	At          time.Time
	QueueType   uint8
	QueueID     uint32
	Frame       int
	Destination uint32
	Bytes       int
}
