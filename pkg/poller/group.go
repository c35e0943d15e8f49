package poller

import (
	"time"

	"modpoller/pkg/runtime"
)

var _ runtime.Object = (*PollGroup)(nil)

// PollGroup is the unit of independent scheduling: a named set of registers
// read from one slave at one cadence.
type PollGroup struct {
	runtime.ObjectMeta
	Slave     uint8                 `json:"slave"`
	Interval  time.Duration         `json:"interval"`
	Endpoint  *Endpoint             `json:"endpoint,omitempty"`
	Registers []*RegisterDefinition `json:"registers"`
	Enabled   bool                  `json:"enabled"`
}

// Endpoint locates the transport the group is polled over: a host:port for
// Modbus TCP or a serial device path for RTU.
type Endpoint struct {
	Location string          `json:"location"`
	Option   *EndpointOption `json:"option,omitempty"`
}

type EndpointOption struct {
	Port     int    `json:"port,omitempty"`
	BaudRate int    `json:"baudRate,omitempty"`
	DataBits int    `json:"dataBits,omitempty"`
	Parity   string `json:"parity,omitempty"`
	StopBits string `json:"stopBits,omitempty"`
}

// snapshotRegisters copies the definition list so a tick keeps working on a
// stable view while the group is mutated concurrently.
func (g *PollGroup) snapshotRegisters() []*RegisterDefinition {
	regs := make([]*RegisterDefinition, len(g.Registers))
	copy(regs, g.Registers)
	return regs
}
