package broker

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"k8s.io/klog/v2"

	"modpoller/pkg/poller"
	"modpoller/pkg/runtime"
)

const (
	mqttTimeout     = 3 * time.Second
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// Connect dials the MQTT broker with auto reconnect enabled. A failed first
// connect is logged, not fatal; paho retries in the background.
func Connect(brokerURL, clientID string) mqtt.Client {
	opts := mqtt.NewClientOptions().AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		klog.V(1).InfoS("Failed to connect MQTT broker", "broker", brokerURL, "err", token.Error())
	}
	return client
}

// Publisher forwards scheduler events to MQTT. Readings go to
// data/v1/<group>, value changes to event/v1/<group>. Publishing is
// best-effort with a bounded wait so a slow broker never backs up polling.
type Publisher struct {
	client mqtt.Client
}

func NewPublisher(client mqtt.Client) *Publisher {
	return &Publisher{client: client}
}

// Run consumes scheduler events until the channel closes or stop fires.
func (p *Publisher) Run(events <-chan *poller.Event, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			p.publishEvent(event)
		}
	}
}

func (p *Publisher) publishEvent(event *poller.Event) {
	switch event.Type {
	case poller.EventReadings:
		p.PublishReadings(event.Group, event.Timestamp, event.Readings)
	case poller.EventValueChanged:
		p.PublishChange(event)
	}
}

func (p *Publisher) PublishReadings(group string, at time.Time, readings []*poller.RegisterReading) {
	points := make([]runtime.PointData, 0, len(readings))
	for _, reading := range readings {
		if reading.Err != nil {
			continue
		}
		points = append(points, runtime.PointData{
			DataPointId: reading.Name,
			Value:       reading.Scaled,
		})
	}
	if len(points) == 0 {
		return
	}

	publishData := runtime.PublishData{Payload: runtime.Payload{Data: []runtime.TimeSeriesData{{
		Timestamp: at.UTC().Format(timestampLayout),
		Values:    points,
	}}}}
	p.publish(fmt.Sprintf("data/v1/%s", group), publishData)
}

func (p *Publisher) PublishChange(event *poller.Event) {
	publishData := runtime.PublishData{Payload: runtime.Payload{Data: []runtime.TimeSeriesData{{
		Timestamp: event.Timestamp.UTC().Format(timestampLayout),
		Values: []runtime.PointData{
			{DataPointId: event.Register, Value: event.New.Float64()},
		},
	}}}}
	p.publish(fmt.Sprintf("event/v1/%s", event.Group), publishData)
}

func (p *Publisher) publish(topic string, data interface{}) {
	marshal, _ := json.Marshal(data)
	token := p.client.Publish(topic, 1, false, marshal)
	if token.WaitTimeout(mqttTimeout) && token.Error() == nil {
		klog.V(5).InfoS("Succeed to publish MQTT", "topic", topic)
	} else {
		klog.V(1).InfoS("Failed to publish MQTT", "topic", topic, "err", token.Error())
	}
}

func (p *Publisher) Close() {
	p.client.Disconnect(2000)
}
