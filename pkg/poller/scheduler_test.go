package poller

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modpoller/pkg/modbus"
)

func testGroup(name string, regs ...*RegisterDefinition) *PollGroup {
	g := &PollGroup{
		Slave:     1,
		Interval:  time.Millisecond,
		Registers: regs,
		Enabled:   true,
	}
	g.SetName(name)
	return g
}

func wordsForF64(f float64) []uint16 {
	bits := math.Float64bits(f)
	return []uint16{uint16(bits >> 48), uint16(bits >> 32), uint16(bits >> 16), uint16(bits)}
}

// nextEvent fails the test when the scheduler goes silent.
func nextEvent(t *testing.T, s *Scheduler) *Event {
	t.Helper()
	select {
	case e := <-s.Events():
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// collect drains events until n of the wanted type arrived.
func collect(t *testing.T, s *Scheduler, want EventType, n int) []*Event {
	t.Helper()
	var got []*Event
	for len(got) < n {
		if e := nextEvent(t, s); e.Type == want {
			got = append(got, e)
		}
	}
	return got
}

func TestSchedulerStartedFirstStoppedLast(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.AddGroup(testGroup("g", holdingU16("r", 0))))

	read := func(ctx context.Context, slave uint8, rt modbus.RegisterType, addr, qty uint16) ([]uint16, error) {
		return make([]uint16, qty), nil
	}
	require.True(t, s.Start(context.Background(), read))
	assert.False(t, s.Start(context.Background(), read), "second start must be rejected")

	first := nextEvent(t, s)
	assert.Equal(t, EventStarted, first.Type)

	collect(t, s, EventReadings, 2)
	s.Stop()

	// Drain to the end: Stopped must close the stream.
	var last *Event
	for {
		select {
		case e := <-s.Events():
			last = e
			if e.Type == EventStopped {
				assert.Empty(t, s.Events())
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no Stopped event, last seen %v", last)
		}
	}
}

func TestSchedulerReadingsContent(t *testing.T) {
	s := NewScheduler()
	group := testGroup("meters",
		NewRegister("high", 0).DataType(modbus.U32BE).ScaleOffset(2, 1).Build(),
		holdingU16("low", 2),
	)
	require.NoError(t, s.AddGroup(group))

	read := func(ctx context.Context, slave uint8, rt modbus.RegisterType, addr, qty uint16) ([]uint16, error) {
		assert.Equal(t, uint8(1), slave)
		assert.Equal(t, modbus.Holding, rt)
		assert.Equal(t, uint16(0), addr)
		assert.Equal(t, uint16(3), qty)
		return []uint16{0x0001, 0x0002, 7}, nil
	}
	require.True(t, s.Start(context.Background(), read))
	defer s.Stop()

	readings := collect(t, s, EventReadings, 1)[0]
	require.Len(t, readings.Readings, 2)

	high := readings.Readings[0]
	assert.Equal(t, "high", high.Name)
	assert.Equal(t, []uint16{0x0001, 0x0002}, high.Raw)
	assert.Equal(t, modbus.U64Value(0x00010002), high.Value)
	assert.Equal(t, float64(0x00010002)*2+1, high.Scaled)
	require.NoError(t, high.Err)

	low := readings.Readings[1]
	assert.Equal(t, "low", low.Name)
	assert.Equal(t, 7.0, low.Scaled)
}

func TestSchedulerFloatChangeDetection(t *testing.T) {
	s := NewScheduler()
	def := NewRegister("level", 0).DataType(modbus.F64BE).WithChangeDetection().Build()
	require.NoError(t, s.AddGroup(testGroup("tank", def)))

	sequence := []float64{10.0, 10.0, 10.0001}
	var mu sync.Mutex
	call := 0
	read := func(ctx context.Context, slave uint8, rt modbus.RegisterType, addr, qty uint16) ([]uint16, error) {
		mu.Lock()
		defer mu.Unlock()
		f := sequence[call]
		if call < len(sequence)-1 {
			call++
		}
		return wordsForF64(f), nil
	}
	require.True(t, s.Start(context.Background(), read))

	var changed []*Event
	for _, e := range collectAll(t, s, EventReadings, 6) {
		if e.Type == EventValueChanged {
			changed = append(changed, e)
		}
	}
	s.Stop()

	require.Len(t, changed, 1, "exactly one ValueChanged for [10.0, 10.0, 10.0001]")
	assert.Equal(t, "level", changed[0].Register)
	assert.Equal(t, 10.0, changed[0].Old.F64)
	assert.Equal(t, 10.0001, changed[0].New.F64)
}

func TestSchedulerFloatJitterBelowThresholdIgnored(t *testing.T) {
	s := NewScheduler()
	def := NewRegister("level", 0).DataType(modbus.F64BE).WithChangeDetection().Build()
	require.NoError(t, s.AddGroup(testGroup("tank", def)))

	sequence := []float64{10.0, 10.00005}
	var mu sync.Mutex
	call := 0
	read := func(ctx context.Context, slave uint8, rt modbus.RegisterType, addr, qty uint16) ([]uint16, error) {
		mu.Lock()
		defer mu.Unlock()
		f := sequence[call]
		if call < len(sequence)-1 {
			call++
		}
		return wordsForF64(f), nil
	}
	require.True(t, s.Start(context.Background(), read))

	for _, e := range collectAll(t, s, EventReadings, 6) {
		assert.NotEqual(t, EventValueChanged, e.Type)
	}
	s.Stop()
}

func TestSchedulerRegisterIntervalOverride(t *testing.T) {
	s := NewScheduler()
	fast := NewRegister("fast", 0).Build()
	slow := NewRegister("slow", 10).Interval(time.Hour).Build()
	require.NoError(t, s.AddGroup(testGroup("mix", fast, slow)))

	var mu sync.Mutex
	reads := map[uint16]int{}
	read := func(ctx context.Context, slave uint8, rt modbus.RegisterType, addr, qty uint16) ([]uint16, error) {
		mu.Lock()
		reads[addr]++
		mu.Unlock()
		return make([]uint16, qty), nil
	}
	require.True(t, s.Start(context.Background(), read))

	events := collect(t, s, EventReadings, 4)
	s.Stop()

	// first poll reads both, later polls only the group-cadence register
	require.Len(t, events[0].Readings, 2)
	for _, e := range events[1:] {
		require.Len(t, e.Readings, 1)
		assert.Equal(t, "fast", e.Readings[0].Name)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, reads[10])
	assert.GreaterOrEqual(t, reads[0], 4)
}

func TestSchedulerRegisterOverrideOutpacesGroup(t *testing.T) {
	s := NewScheduler()
	lazy := NewRegister("lazy", 0).Build()
	eager := NewRegister("eager", 10).Interval(time.Millisecond).Build()
	group := testGroup("mix", lazy, eager)
	group.Interval = time.Hour
	require.NoError(t, s.AddGroup(group))

	var mu sync.Mutex
	reads := map[uint16]int{}
	read := func(ctx context.Context, slave uint8, rt modbus.RegisterType, addr, qty uint16) ([]uint16, error) {
		mu.Lock()
		reads[addr]++
		mu.Unlock()
		return make([]uint16, qty), nil
	}
	require.True(t, s.Start(context.Background(), read))

	events := collect(t, s, EventReadings, 4)
	s.Stop()

	require.Len(t, events[0].Readings, 2)
	for _, e := range events[1:] {
		require.Len(t, e.Readings, 1)
		assert.Equal(t, "eager", e.Readings[0].Name)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, reads[0])
	assert.GreaterOrEqual(t, reads[10], 4)
}

// collectAll returns every event seen until n events of the wanted type
// arrived, preserving order.
func collectAll(t *testing.T, s *Scheduler, want EventType, n int) []*Event {
	t.Helper()
	var got []*Event
	seen := 0
	for seen < n {
		e := nextEvent(t, s)
		got = append(got, e)
		if e.Type == want {
			seen++
		}
	}
	return got
}

func TestSchedulerIntegerChangeDetection(t *testing.T) {
	s := NewScheduler()
	def := NewRegister("counter", 0).WithChangeDetection().Build()
	require.NoError(t, s.AddGroup(testGroup("c", def)))

	var mu sync.Mutex
	value := uint16(5)
	read := func(ctx context.Context, slave uint8, rt modbus.RegisterType, addr, qty uint16) ([]uint16, error) {
		mu.Lock()
		defer mu.Unlock()
		return []uint16{value}, nil
	}
	require.True(t, s.Start(context.Background(), read))
	defer s.Stop()

	collect(t, s, EventReadings, 3)

	mu.Lock()
	value = 6
	mu.Unlock()

	events := collectAll(t, s, EventValueChanged, 1)
	change := events[len(events)-1]
	assert.Equal(t, modbus.U64Value(5), change.Old)
	assert.Equal(t, modbus.U64Value(6), change.New)
}

func TestSchedulerErrorIsolation(t *testing.T) {
	s := NewScheduler()
	broken := testGroup("broken", holdingU16("dead", 0))
	healthy := testGroup("healthy", holdingU16("alive", 0))
	healthy.Slave = 2
	require.NoError(t, s.AddGroup(broken))
	require.NoError(t, s.AddGroup(healthy))

	readErr := errors.New("connection reset")
	read := func(ctx context.Context, slave uint8, rt modbus.RegisterType, addr, qty uint16) ([]uint16, error) {
		if slave == 1 {
			return nil, readErr
		}
		return []uint16{42}, nil
	}
	require.True(t, s.Start(context.Background(), read))
	defer s.Stop()

	var sawError, sawHealthy bool
	deadline := time.After(2 * time.Second)
	for !sawError || !sawHealthy {
		select {
		case e := <-s.Events():
			switch {
			case e.Type == EventError && e.Group == "broken":
				require.ErrorIs(t, e.Err, readErr)
				sawError = true
			case e.Type == EventReadings && e.Group == "healthy":
				require.Len(t, e.Readings, 1)
				require.NoError(t, e.Readings[0].Err)
				assert.Equal(t, 42.0, e.Readings[0].Scaled)
				sawHealthy = true
			case e.Type == EventReadings && e.Group == "broken":
				// failing reads still produce per-member erroring readings
				require.Len(t, e.Readings, 1)
				assert.Error(t, e.Readings[0].Err)
			}
		case <-deadline:
			t.Fatal("error in one group starved the other")
		}
	}
}

func TestSchedulerDisabledGroupNeverReads(t *testing.T) {
	s := NewScheduler()
	disabled := testGroup("off", holdingU16("r", 0))
	disabled.Enabled = false
	require.NoError(t, s.AddGroup(disabled))
	require.NoError(t, s.AddGroup(testGroup("on", holdingU16("q", 1))))

	var mu sync.Mutex
	seen := map[uint16]int{}
	read := func(ctx context.Context, slave uint8, rt modbus.RegisterType, addr, qty uint16) ([]uint16, error) {
		mu.Lock()
		seen[addr]++
		mu.Unlock()
		return make([]uint16, qty), nil
	}
	require.True(t, s.Start(context.Background(), read))
	collect(t, s, EventReadings, 3)
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, seen[0], "disabled group must not be read")
	assert.GreaterOrEqual(t, seen[0]+seen[1], 3)
}

func TestSchedulerConfigConcurrentWithLoop(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.AddGroup(testGroup("base", holdingU16("r", 0))))

	read := func(ctx context.Context, slave uint8, rt modbus.RegisterType, addr, qty uint16) ([]uint16, error) {
		return make([]uint16, qty), nil
	}
	require.True(t, s.Start(context.Background(), read))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			extra := testGroup("extra", holdingU16("x", 10))
			_ = s.AddGroup(extra)
			s.SetGroupEnabled("extra", false)
			s.SetGroupEnabled("extra", true)
			s.RemoveGroup("extra")
		}
	}()

	collect(t, s, EventReadings, 5)
	<-done
	s.Stop()
	assert.Len(t, s.Groups(), 1)
}

func TestSchedulerGroupRegistration(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.AddGroup(testGroup("g", holdingU16("r", 0))))
	assert.ErrorIs(t, s.AddGroup(testGroup("g")), ErrGroupExists)
	s.RemoveGroup("g")
	require.NoError(t, s.AddGroup(testGroup("g")))
}

func TestSchedulerContextCancel(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.AddGroup(testGroup("g", holdingU16("r", 0))))
	ctx, cancel := context.WithCancel(context.Background())

	read := func(ctx context.Context, slave uint8, rt modbus.RegisterType, addr, qty uint16) ([]uint16, error) {
		return make([]uint16, qty), nil
	}
	require.True(t, s.Start(ctx, read))
	collect(t, s, EventReadings, 1)
	cancel()
	collect(t, s, EventStopped, 1)
}
