package poller

import (
	"time"

	"modpoller/pkg/modbus"
)

// EventType enumerates the scheduler's sole output contract.
type EventType int8

const (
	EventStarted EventType = iota
	EventReadings
	EventValueChanged
	EventError
	EventStopped
)

func (et EventType) String() string {
	return []string{
		"Started",
		"Readings",
		"ValueChanged",
		"Error",
		"Stopped",
	}[et]
}

// Event is what the scheduler emits. Delivery is best-effort; a full
// consumer drops events rather than stalling polling.
type Event struct {
	Type      EventType
	Group     string
	Timestamp time.Time

	// EventReadings
	Readings []*RegisterReading

	// EventValueChanged
	Register string
	Old      modbus.Value
	New      modbus.Value

	// EventError
	Err error
}

// RegisterReading is one poll's result for one register. It overwrites the
// prior last-known value for that register name.
type RegisterReading struct {
	Name      string       `json:"name"`
	Raw       []uint16     `json:"raw,omitempty"`
	Value     modbus.Value `json:"-"`
	Scaled    float64      `json:"scaled"`
	Unit      string       `json:"unit,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Err       error        `json:"-"`
	Changed   bool         `json:"changed,omitempty"`
}
