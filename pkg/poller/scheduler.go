package poller

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/atomic"
	"k8s.io/klog/v2"

	"modpoller/pkg/modbus"
)

const (
	// tickInterval is the fixed end-of-tick sleep before due groups are
	// re-evaluated.
	tickInterval = 10 * time.Millisecond
	// floatChangeThreshold separates jitter from a real float change.
	floatChangeThreshold = 0.0001
	// eventBufferSize bounds the event channel; a slow consumer loses
	// events instead of stalling polling.
	eventBufferSize = 256
)

// ReadFunc is the sole transport boundary: it returns exactly count words on
// success. It may suspend on I/O; the scheduler never issues two reads
// concurrently, respecting half-duplex links.
type ReadFunc func(ctx context.Context, slave uint8, registerType modbus.RegisterType, address, quantity uint16) ([]uint16, error)

type lastValue struct {
	value  modbus.Value
	scaled float64
}

// Scheduler drives per-group cadence, converts raw words into readings,
// detects changes and emits events. A single cooperative polling goroutine
// owns all timing; configuration calls are safe concurrently with it.
type Scheduler struct {
	mu           sync.RWMutex
	groups       map[string]*PollGroup
	lastPoll     map[string]time.Time // per group
	lastRegister map[string]time.Time // per register with an interval override
	lastValues   map[string]lastValue // at most one entry per register name

	events  chan *Event
	running *atomic.Bool
	exitCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		groups:       make(map[string]*PollGroup),
		lastPoll:     make(map[string]time.Time),
		lastRegister: make(map[string]time.Time),
		lastValues:   make(map[string]lastValue),
		events:       make(chan *Event, eventBufferSize),
		running:      atomic.NewBool(false),
	}
}

// Events returns the scheduler's output channel. Sends are best-effort.
func (s *Scheduler) Events() <-chan *Event {
	return s.events
}

func (s *Scheduler) AddGroup(group *PollGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group.GetName()]; ok {
		return ErrGroupExists
	}
	s.groups[group.GetName()] = group
	return nil
}

func (s *Scheduler) RemoveGroup(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[name]
	if !ok {
		return
	}
	delete(s.groups, name)
	delete(s.lastPoll, name)
	for _, def := range group.Registers {
		delete(s.lastValues, def.Name)
		delete(s.lastRegister, def.Name)
	}
}

func (s *Scheduler) SetGroupEnabled(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if group, ok := s.groups[name]; ok {
		group.Enabled = enabled
	}
}

func (s *Scheduler) Groups() []*PollGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]*PollGroup, 0, len(s.groups))
	for _, g := range s.groups {
		ret = append(ret, g)
	}
	return ret
}

// Start launches the polling loop. It is the sole entry point; a second call
// while running is a no-op returning false.
func (s *Scheduler) Start(ctx context.Context, read ReadFunc) bool {
	if !s.running.CAS(false, true) {
		return false
	}
	s.exitCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(ctx, read)
	return true
}

// Stop requests a cooperative shutdown and waits for the in-flight tick to
// complete. Safe to call concurrently and repeatedly.
func (s *Scheduler) Stop() {
	if !s.running.CAS(true, false) {
		return
	}
	close(s.exitCh)
	<-s.doneCh
}

func (s *Scheduler) run(ctx context.Context, read ReadFunc) {
	defer close(s.doneCh)

	s.emit(&Event{Type: EventStarted, Timestamp: time.Now()})
	klog.V(2).InfoS("Polling started")

	for {
		// The stop flag is observed at tick start; an in-flight tick
		// always completes.
		select {
		case <-s.exitCh:
			s.emitStopped()
			return
		case <-ctx.Done():
			s.running.Store(false)
			s.emitStopped()
			return
		default:
		}

		for _, due := range s.dueGroups(time.Now()) {
			s.pollGroup(ctx, due.group, due.registers, read)
		}

		select {
		case <-s.exitCh:
			s.emitStopped()
			return
		case <-ctx.Done():
			s.running.Store(false)
			s.emitStopped()
			return
		case <-time.After(tickInterval):
		}
	}
}

func (s *Scheduler) emitStopped() {
	s.emit(&Event{Type: EventStopped, Timestamp: time.Now()})
	klog.V(2).InfoS("Polling stopped")
}

type dueGroup struct {
	group     *PollGroup
	registers []*RegisterDefinition
}

// dueGroups snapshots the groups and marks due the enabled ones whose
// interval elapsed (or that never polled). Registers carrying their own
// interval override are scheduled independently of the group cadence. The
// lock is released before any I/O happens.
func (s *Scheduler) dueGroups(now time.Time) []dueGroup {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]dueGroup, 0, len(s.groups))
	for name, group := range s.groups {
		if !group.Enabled {
			continue
		}
		last, polled := s.lastPoll[name]
		groupDue := !polled || now.Sub(last) >= group.Interval

		var regs []*RegisterDefinition
		for _, def := range group.snapshotRegisters() {
			if def.Interval <= 0 {
				if groupDue {
					regs = append(regs, def)
				}
				continue
			}
			lastRead, ok := s.lastRegister[def.Name]
			if !ok || now.Sub(lastRead) >= def.Interval {
				regs = append(regs, def)
				s.lastRegister[def.Name] = now
			}
		}
		if groupDue {
			s.lastPoll[name] = now
		}
		if len(regs) > 0 {
			due = append(due, dueGroup{group: group, registers: regs})
		}
	}
	return due
}

// pollGroup executes one group's merged reads sequentially, converts and
// scales the results, detects changes and emits events. A failing read
// produces erroring readings plus an Error event and never stops the loop.
func (s *Scheduler) pollGroup(ctx context.Context, group *PollGroup, regs []*RegisterDefinition, read ReadFunc) {
	readings := make([]*RegisterReading, 0, len(regs))

	for _, optimized := range OptimizeReads(regs) {
		words, err := read(ctx, group.Slave, optimized.RegisterType, optimized.StartAddress, optimized.Quantity)
		now := time.Now()
		if err != nil {
			klog.V(3).InfoS("Failed to read registers", "group", group.GetName(),
				"registerType", optimized.RegisterType, "address", optimized.StartAddress, "err", err)
			for _, def := range optimized.Registers {
				readings = append(readings, &RegisterReading{
					Name:      def.Name,
					Unit:      def.Unit,
					Timestamp: now,
					Err:       err,
				})
			}
			s.emit(&Event{Type: EventError, Group: group.GetName(), Timestamp: now, Err: err})
			continue
		}

		for _, def := range optimized.Registers {
			reading := s.convert(optimized, words, def, now)
			if reading.Changed {
				old := s.swapLastValue(def.Name, reading)
				s.emit(&Event{
					Type:      EventValueChanged,
					Group:     group.GetName(),
					Timestamp: now,
					Register:  def.Name,
					Old:       old,
					New:       reading.Value,
				})
			} else if reading.Err == nil {
				s.swapLastValue(def.Name, reading)
			}
			readings = append(readings, reading)
		}
	}

	s.emit(&Event{
		Type:      EventReadings,
		Group:     group.GetName(),
		Timestamp: time.Now(),
		Readings:  readings,
	})
}

// convert decodes one member definition out of a completed read and flags a
// change when detection is on: exact equality for integer kinds, a small
// threshold for floats.
func (s *Scheduler) convert(optimized *OptimizedRead, words []uint16, def *RegisterDefinition, now time.Time) *RegisterReading {
	reading := &RegisterReading{
		Name:      def.Name,
		Unit:      def.Unit,
		Timestamp: now,
	}

	raw := optimized.slice(words, def)
	if raw == nil {
		reading.Err = ErrShortRead
		return reading
	}
	reading.Raw = append([]uint16(nil), raw...)

	value, ok := def.DataType.Convert(raw)
	if !ok {
		reading.Err = ErrShortRead
		return reading
	}
	reading.Value = value
	reading.Scaled = def.ScaledValue(value)

	if !def.DetectChange {
		return reading
	}
	s.mu.RLock()
	last, seen := s.lastValues[def.Name]
	s.mu.RUnlock()
	if !seen {
		return reading
	}
	if value.IsFloat() {
		delta := math.Abs(reading.Scaled - last.scaled)
		// a delta of exactly the threshold counts; the slack absorbs the
		// representation error of the subtraction
		slack := math.Max(math.Abs(reading.Scaled), math.Abs(last.scaled)) * 1e-12
		reading.Changed = delta+slack > floatChangeThreshold
	} else {
		reading.Changed = !value.Equal(last.value)
	}
	return reading
}

func (s *Scheduler) swapLastValue(name string, reading *RegisterReading) modbus.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.lastValues[name]
	s.lastValues[name] = lastValue{value: reading.Value, scaled: reading.Scaled}
	return old.value
}

// emit sends best-effort: a full or unread channel drops the event rather
// than blocking the polling loop.
func (s *Scheduler) emit(e *Event) {
	select {
	case s.events <- e:
	default:
		klog.V(4).InfoS("Dropped polling event", "type", e.Type, "group", e.Group)
	}
}
