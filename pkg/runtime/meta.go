package runtime

import (
	"fmt"
	"net/url"
	"time"
)

var (
	ErrNotObject = fmt.Errorf("object does not implement the Object interfaces")
)

// Object is the persistence contract every stored resource satisfies.
type Object interface {
	GetName() string
	SetName(string)
	GetID() string
	SetID(string)
	GetVersion() string
	SetVersion(string)
	GetModTime() time.Time
	SetModTime(time.Time)
}

type ObjectMeta struct {
	Name    string    `json:"name"`
	ID      string    `json:"id"`
	Version string    `json:"eTag"`
	ModTime time.Time `json:"modTime"`
}

func (m *ObjectMeta) GetName() string {
	return m.Name
}

func (m *ObjectMeta) SetName(name string) {
	m.Name = name
}

func (m *ObjectMeta) GetID() string {
	return m.ID
}

func (m *ObjectMeta) SetID(id string) {
	m.ID = id
}

func (m *ObjectMeta) GetVersion() string {
	return m.Version
}

func (m *ObjectMeta) SetVersion(version string) {
	m.Version = version
}

func (m *ObjectMeta) GetModTime() time.Time {
	return m.ModTime
}

func (m *ObjectMeta) SetModTime(t time.Time) {
	m.ModTime = t
}

type ObjectMetaAccessor interface {
	GetObjectMeta() Object
}

// Accessor extracts the Object interface from an arbitrary stored value.
func Accessor(obj interface{}) (Object, error) {
	switch t := obj.(type) {
	case Object:
		return t, nil
	case ObjectMetaAccessor:
		if m := t.GetObjectMeta(); m != nil {
			return m, nil
		}
		return nil, ErrNotObject
	default:
		return nil, ErrNotObject
	}
}

type ResponseModel struct {
	Groups interface{} `json:"groups,omitempty"`
}

// PublishData is the payload shape delivered to the MQTT broker.
type PublishData struct {
	Payload Payload `json:"payload"`
}

type Payload struct {
	Data []TimeSeriesData `json:"data"`
}

type TimeSeriesData struct {
	Timestamp string      `json:"timestamp"`
	Values    []PointData `json:"values"`
}

type PointData struct {
	DataPointId string      `json:"dataPointId"`
	Value       interface{} `json:"value"`
}

type CreateOptions struct {
	Query url.Values
}

type GetOptions struct {
	Version string
	Query   url.Values
}

type ListOptions struct {
	Filter map[string]interface{}
	Query  url.Values
}

type UpdateOptions struct {
	Version string
	Query   url.Values
}

type DeleteOptions struct {
	Version string
	Query   url.Values
}
