package poller

import (
	"sort"
	"time"

	"modpoller/pkg/modbus"
)

// maxMergeGap is how many unreferenced registers a merged read may span:
// a few wasted bytes buy fewer round trips.
const maxMergeGap = 5

// OptimizedRead is one wire read covering one or more definitions. It is
// ephemeral: recomputed every tick, so it stays correct even if the group
// was mutated since the previous tick.
type OptimizedRead struct {
	StartAddress uint16
	Quantity     uint16
	RegisterType modbus.RegisterType
	Registers    []*RegisterDefinition
}

// OptimizeReads merges register definitions into the fewest wire reads.
// Definitions are grouped by register type (never merged across types),
// sorted by address and greedily merged while the gap stays within
// maxMergeGap. Every definition's address range ends up fully covered by
// exactly one read of its type.
func OptimizeReads(defs []*RegisterDefinition) []*OptimizedRead {
	byType := make(map[modbus.RegisterType][]*RegisterDefinition)
	typeOrder := make([]modbus.RegisterType, 0, 4)
	for _, def := range defs {
		if _, ok := byType[def.RegisterType]; !ok {
			typeOrder = append(typeOrder, def.RegisterType)
		}
		byType[def.RegisterType] = append(byType[def.RegisterType], def)
	}

	reads := make([]*OptimizedRead, 0, len(typeOrder))
	for _, rt := range typeOrder {
		regs := make(registerSlice, len(byType[rt]))
		copy(regs, byType[rt])
		sort.Sort(regs)

		var current *OptimizedRead
		for _, def := range regs {
			if current != nil && int(def.Address) <= int(current.StartAddress)+int(current.Quantity)+maxMergeGap {
				end := def.Address + def.Quantity
				if end > current.StartAddress+current.Quantity {
					current.Quantity = end - current.StartAddress
				}
				current.Registers = append(current.Registers, def)
				continue
			}
			current = &OptimizedRead{
				StartAddress: def.Address,
				Quantity:     def.Quantity,
				RegisterType: rt,
				Registers:    []*RegisterDefinition{def},
			}
			reads = append(reads, current)
		}
	}
	return reads
}

// Readings decodes every member of the read into one reading each. A
// non-nil err marks all members as erroring instead of decoding.
func (r *OptimizedRead) Readings(words []uint16, err error, now time.Time) []*RegisterReading {
	readings := make([]*RegisterReading, 0, len(r.Registers))
	for _, def := range r.Registers {
		reading := &RegisterReading{
			Name:      def.Name,
			Unit:      def.Unit,
			Timestamp: now,
		}
		if err != nil {
			reading.Err = err
			readings = append(readings, reading)
			continue
		}
		raw := r.slice(words, def)
		if raw == nil {
			reading.Err = ErrShortRead
			readings = append(readings, reading)
			continue
		}
		reading.Raw = append([]uint16(nil), raw...)
		if value, ok := def.DataType.Convert(raw); ok {
			reading.Value = value
			reading.Scaled = def.ScaledValue(value)
		} else {
			reading.Err = ErrShortRead
		}
		readings = append(readings, reading)
	}
	return readings
}

// slice returns the member's raw words out of a completed read.
func (r *OptimizedRead) slice(words []uint16, def *RegisterDefinition) []uint16 {
	offset := int(def.Address) - int(r.StartAddress)
	if offset < 0 || offset+int(def.Quantity) > len(words) {
		return nil
	}
	return words[offset : offset+int(def.Quantity)]
}
