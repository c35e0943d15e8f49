package v1

// PollGroup is the create/update payload for a polling group. Durations are
// carried as milliseconds on the wire.
type PollGroup struct {
	Name       string      `json:"name" binding:"required,min=1,max=64,excludesall=\u002F\u005C"`
	Slave      *uint8      `json:"slave" binding:"required,gte=1,lte=247"`
	IntervalMs uint        `json:"intervalMs" binding:"required,gte=10"`
	Endpoint   *Endpoint   `json:"endpoint" binding:"required"`
	Registers  []*Register `json:"registers" binding:"required,min=1,dive"`
	Enabled    *bool       `json:"enabled,omitempty"`
}

// Endpoint locates the device: host for Modbus TCP, serial device path for
// RTU. A baud rate in the option selects RTU.
type Endpoint struct {
	Location string          `json:"location" binding:"required"`
	Option   *EndpointOption `json:"option,omitempty"`
}

type EndpointOption struct {
	Port     int    `json:"port,omitempty" binding:"omitempty,gte=1,lte=65535"`
	BaudRate int    `json:"baudRate,omitempty"`
	DataBits int    `json:"dataBits,omitempty" binding:"omitempty,oneof=5 6 7 8"`
	Parity   string `json:"parity,omitempty" binding:"omitempty,oneof=N O E"`
	StopBits string `json:"stopBits,omitempty" binding:"omitempty,oneof=1 1.5 2"`
}

// Register describes one point inside a group. Either a template name fills
// the decode fields, or registerType/dataType are given explicitly.
type Register struct {
	Name         string  `json:"name" binding:"required,min=1,max=64,excludesall=\u002F\u005C"`
	Address      *uint16 `json:"address" binding:"required"`
	Template     string  `json:"template,omitempty"`
	RegisterType string  `json:"registerType,omitempty" binding:"omitempty,oneof=coil discreteInput holding input"`
	DataType     string  `json:"dataType,omitempty"`
	Unit         string  `json:"unit,omitempty"`
	Scale        float64 `json:"scale,omitempty"`
	Offset       float64 `json:"offset,omitempty"`
	IntervalMs   uint    `json:"intervalMs,omitempty"`
	DetectChange bool    `json:"detectChange,omitempty"`
}

// SetEnabled is the body for PUT .../enabled.
type SetEnabled struct {
	Enabled *bool `json:"enabled" binding:"required"`
}
