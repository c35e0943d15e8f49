package storage

import (
	"time"
)

type StoreGroup byte

const (
	StoreGroupPollGroup StoreGroup = iota
	StoreGroupGateway
)

var (
	StoreGroupToString = map[StoreGroup]string{
		StoreGroupPollGroup: "poller",
		StoreGroupGateway:   "gateway",
	}
	StoreGroupFromString = map[string]StoreGroup{
		"poller":  StoreGroupPollGroup,
		"gateway": StoreGroupGateway,
	}
)

// resources
const (
	Groups = "groups"
)

type Getter interface {
	Get(key string) (interface{}, error)
}

type Lister interface {
	List(key string) (interface{}, error)
}

type Creater interface {
	Create(key string, obj interface{}) (interface{}, error)
}

type Updater interface {
	Update(key, version string, obj interface{}) (interface{}, error)
}

type Deleter interface {
	Delete(key, version string) (interface{}, error)
}

type Storage interface {
	Getter
	Lister
	Creater
	Updater
	Deleter
}

type FileInfo struct {
	Path    string
	ModTime time.Time
}
