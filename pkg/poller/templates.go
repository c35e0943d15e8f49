package poller

import (
	"modpoller/pkg/modbus"
)

// Template library for common sensor registers. Each returns a ready
// definition; callers adjust via the builder when a device deviates.

var Templates = map[string]func(name string, address uint16) *RegisterDefinition{
	"temperature":   Temperature,
	"humidity":      Humidity,
	"pressureFloat": PressureFloat,
	"counterU32":    CounterU32,
	"statusWord":    StatusWord,
	"energy":        Energy,
	"voltage":       Voltage,
	"current":       Current,
	"frequency":     Frequency,
	"power":         Power,
}

// Temperature is a signed tenth-of-degree holding register.
func Temperature(name string, address uint16) *RegisterDefinition {
	return NewRegister(name, address).
		DataType(modbus.I16).
		Unit("°C").
		ScaleOffset(0.1, 0).
		WithChangeDetection().
		Build()
}

// Humidity is an unsigned tenth-of-percent holding register.
func Humidity(name string, address uint16) *RegisterDefinition {
	return NewRegister(name, address).
		Unit("%RH").
		ScaleOffset(0.1, 0).
		WithChangeDetection().
		Build()
}

// PressureFloat is an IEEE-754 float pair in big-endian word order.
func PressureFloat(name string, address uint16) *RegisterDefinition {
	return NewRegister(name, address).
		DataType(modbus.F32BE).
		Unit("bar").
		WithChangeDetection().
		Build()
}

// CounterU32 is a 32-bit accumulating counter.
func CounterU32(name string, address uint16) *RegisterDefinition {
	return NewRegister(name, address).
		DataType(modbus.U32BE).
		Build()
}

// StatusWord exposes a 16-bit flag register.
func StatusWord(name string, address uint16) *RegisterDefinition {
	return NewRegister(name, address).
		DataType(modbus.Binary).
		WithChangeDetection().
		Build()
}

// Energy is a 32-bit hundredth-of-kWh accumulator.
func Energy(name string, address uint16) *RegisterDefinition {
	return NewRegister(name, address).
		DataType(modbus.U32BE).
		Unit("kWh").
		ScaleOffset(0.01, 0).
		Build()
}

// Voltage is a tenth-of-volt input register.
func Voltage(name string, address uint16) *RegisterDefinition {
	return NewRegister(name, address).
		RegisterType(modbus.Input).
		Unit("V").
		ScaleOffset(0.1, 0).
		WithChangeDetection().
		Build()
}

// Current is a milliamp input register.
func Current(name string, address uint16) *RegisterDefinition {
	return NewRegister(name, address).
		RegisterType(modbus.Input).
		Unit("A").
		ScaleOffset(0.001, 0).
		WithChangeDetection().
		Build()
}

// Frequency is a hundredth-of-hertz input register.
func Frequency(name string, address uint16) *RegisterDefinition {
	return NewRegister(name, address).
		RegisterType(modbus.Input).
		Unit("Hz").
		ScaleOffset(0.01, 0).
		WithChangeDetection().
		Build()
}

// Power is a signed float pair in watts.
func Power(name string, address uint16) *RegisterDefinition {
	return NewRegister(name, address).
		RegisterType(modbus.Input).
		DataType(modbus.F32BE).
		Unit("W").
		WithChangeDetection().
		Build()
}
