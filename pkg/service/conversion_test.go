package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modpoller/pkg/apis/response"
	"modpoller/pkg/modbus"
	v1 "modpoller/pkg/v1"
)

func uint8p(v uint8) *uint8    { return &v }
func uint16p(v uint16) *uint16 { return &v }

func validGroup() *v1.PollGroup {
	return &v1.PollGroup{
		Name:       "boiler",
		Slave:      uint8p(1),
		IntervalMs: 1000,
		Endpoint:   &v1.Endpoint{Location: "192.168.0.7"},
		Registers: []*v1.Register{
			{Name: "temp", Address: uint16p(0), Template: "temperature"},
		},
	}
}

func TestToPollGroupFromTemplate(t *testing.T) {
	group, err := toPollGroup(validGroup())
	require.NoError(t, err)

	assert.Equal(t, "boiler", group.GetName())
	assert.Equal(t, uint8(1), group.Slave)
	assert.Equal(t, time.Second, group.Interval)
	assert.True(t, group.Enabled)

	require.Len(t, group.Registers, 1)
	def := group.Registers[0]
	assert.Equal(t, "temp", def.Name)
	assert.Equal(t, uint16(0), def.Address)
	assert.Equal(t, modbus.I16, def.DataType)
	assert.Equal(t, "°C", def.Unit)
}

func TestToPollGroupTemplateOverrides(t *testing.T) {
	in := validGroup()
	in.Registers[0].Unit = "K"
	in.Registers[0].Scale = 0.01
	in.Registers[0].Offset = 273.15
	in.Registers[0].IntervalMs = 5000

	group, err := toPollGroup(in)
	require.NoError(t, err)

	def := group.Registers[0]
	assert.Equal(t, "K", def.Unit)
	assert.Equal(t, 0.01, def.Scale)
	assert.Equal(t, 273.15, def.Offset)
	assert.Equal(t, 5*time.Second, def.Interval)
}

func TestToPollGroupExplicitRegister(t *testing.T) {
	in := validGroup()
	in.Registers = []*v1.Register{{
		Name:         "flow",
		Address:      uint16p(100),
		RegisterType: "input",
		DataType:     "float32be",
		Scale:        0.1,
		DetectChange: true,
	}}

	group, err := toPollGroup(in)
	require.NoError(t, err)

	def := group.Registers[0]
	assert.Equal(t, modbus.Input, def.RegisterType)
	assert.Equal(t, modbus.F32BE, def.DataType)
	assert.Equal(t, uint16(2), def.Quantity)
	assert.Equal(t, 0.1, def.Scale)
	assert.True(t, def.DetectChange)
}

func TestToPollGroupRejectsDuplicateNames(t *testing.T) {
	in := validGroup()
	in.Registers = append(in.Registers, &v1.Register{Name: "temp", Address: uint16p(1), Template: "temperature"})

	_, err := toPollGroup(in)
	require.Error(t, err)
	assert.True(t, response.IsResponseError(err))
}

func TestToPollGroupRejectsUnknownTemplate(t *testing.T) {
	in := validGroup()
	in.Registers[0].Template = "nonesuch"

	_, err := toPollGroup(in)
	require.Error(t, err)
}

func TestToPollGroupRequiresDataType(t *testing.T) {
	in := validGroup()
	in.Registers[0].Template = ""

	_, err := toPollGroup(in)
	require.Error(t, err)
}

func TestToV1GroupRoundTrips(t *testing.T) {
	group, err := toPollGroup(validGroup())
	require.NoError(t, err)

	out := toV1Group(group)
	assert.Equal(t, "boiler", out.Name)
	assert.Equal(t, uint8(1), *out.Slave)
	assert.Equal(t, uint(1000), out.IntervalMs)
	require.Len(t, out.Registers, 1)
	assert.Equal(t, "int16", out.Registers[0].DataType)

	back, err := toPollGroup(out)
	require.NoError(t, err)
	assert.Equal(t, group.Registers[0].DataType, back.Registers[0].DataType)
	assert.Equal(t, group.Registers[0].Scale, back.Registers[0].Scale)
}
