package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"modpoller/pkg/apis"
	"modpoller/pkg/apis/response"
	"modpoller/pkg/broker"
	"modpoller/pkg/gateway"
	"modpoller/pkg/generic"
	"modpoller/pkg/poller"
	"modpoller/pkg/runtime"
	"modpoller/pkg/transport"
	"modpoller/pkg/utils/differenceutil"
	"modpoller/pkg/utils/randutil"
	"modpoller/pkg/utils/uuidutil"
	v1 "modpoller/pkg/v1"

	"os"
)

type Option func(*Manager)

// Manager owns the poll group lifecycle: persistence, the per-group polling
// runtime and the event pump into MQTT.
type Manager struct {
	gatewayMeta *gateway.GatewayMeta
	store       *generic.Store
	publisher   *broker.Publisher
	mu          *sync.Mutex
	groups      *sync.Map
	pollers     map[string]*groupPoller
	stopCh      <-chan struct{}
}

// groupPoller bundles one running group's scheduler, transport and event
// pump so they tear down together.
type groupPoller struct {
	scheduler *poller.Scheduler
	client    transport.Client
	cancel    context.CancelFunc
	pumpStop  chan struct{}
}

func NewManager(store *generic.Store, publisher *broker.Publisher, gatewayMeta *gateway.GatewayMeta, stop <-chan struct{}, opts ...Option) *Manager {
	m := &Manager{
		gatewayMeta: gatewayMeta,
		store:       store,
		publisher:   publisher,
		mu:          &sync.Mutex{},
		groups:      &sync.Map{},
		pollers:     make(map[string]*groupPoller),
		stopCh:      stop,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Init() {
	objects, _ := m.store.LoadResource()
	for _, object := range objects {
		group, ok := object.(*poller.PollGroup)
		if !ok {
			continue
		}
		m.groups.Store(group.GetID(), group)
		if err := m.readyPoll(group); err != nil {
			klog.V(2).InfoS("Failed to start polling group", "groupId", group.GetID(), "err", err)
		}
	}
}

func (m *Manager) CreateGroup(object *v1.PollGroup) (*poller.PollGroup, error) {
	if m.findByName(object.Name) != nil {
		return nil, response.NewMultiError(response.ErrResourceExists(object.Name))
	}

	group, err := toPollGroup(object)
	if err != nil {
		klog.V(2).InfoS("Failed to convert poll group", "name", object.Name, "err", err)
		return nil, err
	}
	group.SetID(uuidutil.UUID())
	group.SetVersion(strconv.FormatUint(randutil.Uint64n(), 10))
	group.SetModTime(time.Now())

	created, err := m.store.Create(group)
	if err != nil {
		klog.V(2).InfoS("Failed to store poll group", "name", object.Name, "err", err)
		return nil, err
	}
	stored := created.(*poller.PollGroup)
	m.groups.Store(stored.GetID(), stored)

	if err := m.readyPoll(stored); err != nil {
		klog.V(2).InfoS("Failed to start polling group", "groupId", stored.GetID(), "err", err)
	}
	return stored, nil
}

func (m *Manager) DeleteGroup(id string, version string) (*poller.PollGroup, error) {
	group, err := m.GetGroupById(id)
	if err != nil {
		return nil, err
	}
	if group.GetVersion() != version {
		return nil, apis.ErrMismatch
	}

	if _, err := m.store.Delete(group); err != nil {
		klog.V(2).InfoS("Failed to delete poll group", "groupId", id, "err", err)
		return nil, err
	}
	klog.V(2).InfoS("Deleted poll group", "groupId", id)

	m.cancelPoll(id)
	m.groups.Delete(id)
	return group, nil
}

func (m *Manager) GetGroupById(id string) (*poller.PollGroup, error) {
	v, exist := m.groups.Load(id)
	if !exist {
		return nil, os.ErrNotExist
	}
	return v.(*poller.PollGroup), nil
}

func (m *Manager) ListGroups(filter *runtime.GroupFilter) ([]runtime.Object, error) {
	objs := make([]runtime.Object, 0)
	m.groups.Range(func(key, value interface{}) bool {
		objs = append(objs, value.(runtime.Object))
		return true
	})
	return filter.Apply(objs), nil
}

func (m *Manager) UpdateGroupById(id string, version string, object *v1.PollGroup) (*poller.PollGroup, error) {
	old, err := m.GetGroupById(id)
	if err != nil {
		return nil, err
	}
	if version != old.GetVersion() {
		return nil, apis.ErrMismatch
	}

	group, err := toPollGroup(object)
	if err != nil {
		return nil, err
	}
	if other := m.findByName(group.GetName()); other != nil && other.GetID() != id {
		return nil, response.NewMultiError(response.ErrResourceExists(group.GetName()))
	}
	group.SetID(old.GetID())
	group.SetVersion(old.GetVersion())
	group.SetModTime(time.Now())

	logRegisterDiff(old, group)

	updated, err := m.store.Update(group)
	if err != nil {
		klog.V(2).InfoS("Failed to update poll group", "groupId", id, "err", err)
		return nil, err
	}
	stored := updated.(*poller.PollGroup)
	m.groups.Store(id, stored)

	m.cancelPoll(id)
	if err := m.readyPoll(stored); err != nil {
		klog.V(2).InfoS("Failed to restart polling group", "groupId", id, "err", err)
	}
	return stored, nil
}

func (m *Manager) SetGroupEnabled(id string, version string, enabled bool) (*poller.PollGroup, error) {
	old, err := m.GetGroupById(id)
	if err != nil {
		return nil, err
	}
	if version != old.GetVersion() {
		return nil, apis.ErrMismatch
	}
	if old.Enabled == enabled {
		return old, nil
	}

	old.Enabled = enabled
	old.SetModTime(time.Now())
	updated, err := m.store.Update(old)
	if err != nil {
		return nil, err
	}
	stored := updated.(*poller.PollGroup)
	m.groups.Store(id, stored)

	if enabled {
		if err := m.readyPoll(stored); err != nil {
			klog.V(2).InfoS("Failed to start polling group", "groupId", id, "err", err)
		}
	} else {
		m.cancelPoll(id)
	}
	return stored, nil
}

// ReadGroupNow performs one synchronous pass over the group's registers,
// bypassing the scheduler cadence. Useful for commissioning.
func (m *Manager) ReadGroupNow(ctx context.Context, id string) ([]*poller.RegisterReading, error) {
	group, err := m.GetGroupById(id)
	if err != nil {
		return nil, err
	}

	client, err := transport.Open(group.Endpoint)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	now := time.Now()
	readings := make([]*poller.RegisterReading, 0, len(group.Registers))
	for _, read := range poller.OptimizeReads(group.Registers) {
		words, err := client.Read(ctx, group.Slave, read.RegisterType, read.StartAddress, read.Quantity)
		results := read.Readings(words, err, now)
		readings = append(readings, results...)
	}
	return readings, nil
}

func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.pollers))
	for id := range m.pollers {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.cancelPoll(id)
	}
	m.publisher.Close()

	klog.V(2).InfoS("Polling manager stopped", "groups", len(ids))
	return nil
}

func (m *Manager) findByName(name string) *poller.PollGroup {
	var found *poller.PollGroup
	m.groups.Range(func(key, value interface{}) bool {
		group := value.(*poller.PollGroup)
		if group.GetName() == name {
			found = group
			return false
		}
		return true
	})
	return found
}

// readyPoll spins up the group's transport, a dedicated scheduler and the
// pump that forwards its events to MQTT.
func (m *Manager) readyPoll(group *poller.PollGroup) error {
	if !group.Enabled {
		return nil
	}

	client, err := transport.Open(group.Endpoint)
	if err != nil {
		return err
	}

	scheduler := poller.NewScheduler()
	if err := scheduler.AddGroup(group); err != nil {
		client.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx, transport.ReadFunc(client))

	pumpStop := make(chan struct{})
	go m.publisher.Run(scheduler.Events(), pumpStop)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollers[group.GetID()] = &groupPoller{
		scheduler: scheduler,
		client:    client,
		cancel:    cancel,
		pumpStop:  pumpStop,
	}
	klog.V(2).InfoS("Started polling group", "groupId", group.GetID(), "group", group.GetName())
	return nil
}

func (m *Manager) cancelPoll(id string) {
	m.mu.Lock()
	gp, ok := m.pollers[id]
	if ok {
		delete(m.pollers, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	gp.scheduler.Stop()
	gp.cancel()
	close(gp.pumpStop)
	gp.client.Close()
	klog.V(2).InfoS("Stopped polling group", "groupId", id)
}

// logRegisterDiff records which registers an update added, removed and kept.
func logRegisterDiff(old, new *poller.PollGroup) {
	key := func(v interface{}) string { return v.(*poller.RegisterDefinition).Name }
	removed, kept, added := differenceutil.DifferenceAndIntersectionSameTypeObjects(old.Registers, new.Registers, key)
	klog.V(3).InfoS("Poll group registers changed", "groupId", old.GetID(),
		"added", strings.Join(added, ","), "removed", strings.Join(removed, ","), "kept", len(kept))
}
