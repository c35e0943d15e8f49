package poller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modpoller/pkg/modbus"
)

func holdingU16(name string, address uint16) *RegisterDefinition {
	return NewRegister(name, address).Build()
}

func TestOptimizeReadsMergesAdjacent(t *testing.T) {
	defs := []*RegisterDefinition{
		holdingU16("a", 0),
		holdingU16("b", 1),
		holdingU16("c", 2),
		holdingU16("d", 100),
	}
	reads := OptimizeReads(defs)
	require.Len(t, reads, 2)
	assert.Equal(t, uint16(0), reads[0].StartAddress)
	assert.Equal(t, uint16(3), reads[0].Quantity)
	assert.Len(t, reads[0].Registers, 3)
	assert.Equal(t, uint16(100), reads[1].StartAddress)
	assert.Equal(t, uint16(1), reads[1].Quantity)
}

func TestOptimizeReadsGapThreshold(t *testing.T) {
	t.Run("gap within threshold merges", func(t *testing.T) {
		reads := OptimizeReads([]*RegisterDefinition{
			holdingU16("a", 0),
			holdingU16("b", 6), // gap of 5 after [0,1)
		})
		require.Len(t, reads, 1)
		assert.Equal(t, uint16(7), reads[0].Quantity)
	})
	t.Run("gap beyond threshold splits", func(t *testing.T) {
		reads := OptimizeReads([]*RegisterDefinition{
			holdingU16("a", 0),
			holdingU16("b", 7), // gap of 6
		})
		assert.Len(t, reads, 2)
	})
}

func TestOptimizeReadsNeverMergesAcrossTypes(t *testing.T) {
	defs := []*RegisterDefinition{
		NewRegister("coil", 0).RegisterType(modbus.Coil).Build(),
		NewRegister("holding", 1).Build(),
		NewRegister("input", 2).RegisterType(modbus.Input).Build(),
	}
	reads := OptimizeReads(defs)
	require.Len(t, reads, 3)
	for i, def := range defs {
		assert.Equal(t, def.RegisterType, reads[i].RegisterType)
	}
}

func TestOptimizeReadsCoversEveryDefinition(t *testing.T) {
	defs := []*RegisterDefinition{
		NewRegister("f", 10).DataType(modbus.F32BE).Build(),
		NewRegister("u", 12).DataType(modbus.U32BE).Build(),
		NewRegister("w", 20).Build(),
		NewRegister("far", 200).DataType(modbus.F64BE).Build(),
		NewRegister("di", 3).RegisterType(modbus.DiscreteInput).Build(),
	}
	reads := OptimizeReads(defs)

	covered := map[string]int{}
	for _, read := range reads {
		end := read.StartAddress + read.Quantity
		for _, def := range read.Registers {
			covered[def.Name]++
			assert.Equal(t, def.RegisterType, read.RegisterType)
			assert.GreaterOrEqual(t, def.Address, read.StartAddress)
			assert.LessOrEqual(t, def.Address+def.Quantity, end)
		}
	}
	for _, def := range defs {
		assert.Equal(t, 1, covered[def.Name], "definition %s covered by exactly one read", def.Name)
	}
}

func TestOptimizeReadsUnsortedInput(t *testing.T) {
	reads := OptimizeReads([]*RegisterDefinition{
		holdingU16("b", 2),
		holdingU16("a", 0),
		holdingU16("c", 1),
	})
	require.Len(t, reads, 1)
	assert.Equal(t, uint16(0), reads[0].StartAddress)
	assert.Equal(t, uint16(3), reads[0].Quantity)
	assert.Equal(t, "a", reads[0].Registers[0].Name)
}

func TestOptimizedReadSlice(t *testing.T) {
	def := NewRegister("v", 12).DataType(modbus.U32BE).Build()
	read := &OptimizedRead{StartAddress: 10, Quantity: 4, Registers: []*RegisterDefinition{def}}
	words := []uint16{1, 2, 3, 4}
	assert.Equal(t, []uint16{3, 4}, read.slice(words, def))
	assert.Nil(t, read.slice(words[:2], def))
}
