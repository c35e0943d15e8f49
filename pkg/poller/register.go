package poller

import (
	"time"

	"modpoller/pkg/modbus"
)

// RegisterDefinition declares what to read, how to decode and scale it, and
// optionally at what cadence. Immutable once registered with a group.
type RegisterDefinition struct {
	Name         string              `json:"name"`
	Address      uint16              `json:"address"`
	Quantity     uint16              `json:"quantity"` // always DataType.RegisterCount()
	RegisterType modbus.RegisterType `json:"registerType"`
	DataType     modbus.DataType     `json:"dataType"`
	Unit         string              `json:"unit,omitempty"`
	Scale        float64             `json:"scale"`
	Offset       float64             `json:"offset"`
	Interval     time.Duration       `json:"interval,omitempty"` // overrides the group cadence when set
	DetectChange bool                `json:"detectChange"`
}

// ScaledValue applies scale and offset to a decoded value.
func (rd *RegisterDefinition) ScaledValue(v modbus.Value) float64 {
	return v.Float64()*rd.Scale + rd.Offset
}

type registerSlice []*RegisterDefinition

func (rs registerSlice) Len() int {
	return len(rs)
}

func (rs registerSlice) Less(i, j int) bool {
	return rs[i].Address < rs[j].Address
}

func (rs registerSlice) Swap(i, j int) {
	rs[i], rs[j] = rs[j], rs[i]
}

// Builder assembles a RegisterDefinition fluently. Quantity is derived from
// the data type on Build, never supplied by the caller.
type Builder struct {
	def RegisterDefinition
}

func NewRegister(name string, address uint16) *Builder {
	return &Builder{def: RegisterDefinition{
		Name:         name,
		Address:      address,
		RegisterType: modbus.Holding,
		DataType:     modbus.U16,
		Scale:        1,
	}}
}

func (b *Builder) RegisterType(rt modbus.RegisterType) *Builder {
	b.def.RegisterType = rt
	return b
}

func (b *Builder) DataType(dt modbus.DataType) *Builder {
	b.def.DataType = dt
	return b
}

func (b *Builder) Unit(unit string) *Builder {
	b.def.Unit = unit
	return b
}

func (b *Builder) ScaleOffset(scale, offset float64) *Builder {
	b.def.Scale = scale
	b.def.Offset = offset
	return b
}

func (b *Builder) Interval(d time.Duration) *Builder {
	b.def.Interval = d
	return b
}

func (b *Builder) WithChangeDetection() *Builder {
	b.def.DetectChange = true
	return b
}

func (b *Builder) Build() *RegisterDefinition {
	def := b.def
	def.Quantity = def.DataType.RegisterCount()
	return &def
}
