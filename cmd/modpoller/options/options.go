package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"modpoller/cmd/modpoller/config"
	"modpoller/pkg/broker"
	"modpoller/pkg/gateway"
	"modpoller/pkg/generic"
	baseoptions "modpoller/pkg/generic/options"
	"modpoller/pkg/poller"
	"modpoller/pkg/service"
	"modpoller/pkg/storage"
)

type Options struct {
	Port     string        `json:"port"`
	Wait     time.Duration `json:"graceful-timeout"`
	Broker   string        `json:"broker"`
	ClientID string        `json:"broker-client-id"`
	baseoptions.BaseOptions
}

const (
	_defaultPort   = "32200"
	_defaultWait   = 15 * time.Second
	_defaultBroker = "tcp://127.0.0.1:1883"
)

func NewDefaultOptions() *Options {
	return &Options{
		Port:        _defaultPort,
		Wait:        _defaultWait,
		Broker:      _defaultBroker,
		BaseOptions: baseoptions.NewDefaultBaseOptions(),
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Port, "port", "P", o.Port, "Port exposed")
	fs.DurationVar(&o.Wait, "graceful-timeout", o.Wait, "The duration for which the server gracefully wait for existing connections to finish - e.g. 15s or 1m")
	fs.StringVar(&o.Broker, "broker", o.Broker, "MQTT broker url readings and change events are published to")
	fs.StringVar(&o.ClientID, "broker-client-id", o.ClientID, "MQTT client id, defaults to modpoller-<gateway id>")
}

func (o *Options) Config(stopCh <-chan struct{}) (*config.Config, error) {
	c := &config.Config{}

	gatewayMgr := gateway.NewGatewayManager(stopCh)
	gatewayMgr.Init()
	meta, err := gatewayMgr.GetGatewayMeta()
	if err != nil {
		return nil, err
	}

	clientID := o.ClientID
	if len(clientID) == 0 {
		clientID = fmt.Sprintf("modpoller-%s", meta.GetID())
	}
	publisher := broker.NewPublisher(broker.Connect(o.Broker, clientID))

	store, err := generic.NewStore(storage.StoreGroupToString[storage.StoreGroupPollGroup], storage.Groups, &poller.PollGroup{})
	if err != nil {
		return nil, err
	}

	mgr := service.NewManager(store, publisher, meta, stopCh)
	mgr.Init()

	c.Mgr = mgr
	c.GatewayMgr = gatewayMgr
	return c, nil
}
