package gateway

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	getErr  error
	data    []byte
	created interface{}
}

func (f *fakeStore) Get(key string) (interface{}, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.data, nil
}

func (f *fakeStore) List(key string) (interface{}, error) { return nil, nil }

func (f *fakeStore) Create(key string, obj interface{}) (interface{}, error) {
	f.created = obj
	return obj, nil
}

func (f *fakeStore) Update(key, version string, obj interface{}) (interface{}, error) {
	return obj, nil
}

func (f *fakeStore) Delete(key, version string) (interface{}, error) { return nil, nil }

func TestLoadCreatesMetaOnFirstRun(t *testing.T) {
	m := NewGatewayManager(nil)
	store := &fakeStore{getErr: os.ErrNotExist}
	m.load(store)

	meta, err := m.GetGatewayMeta()
	require.NoError(t, err)
	assert.Equal(t, "modpoller", meta.GetName())
	assert.NotEmpty(t, meta.GetID())
	assert.NotEmpty(t, meta.GetVersion())
	assert.Equal(t, meta, store.created)
}

func TestLoadKeepsZeroMetaOnReadError(t *testing.T) {
	m := NewGatewayManager(nil)
	store := &fakeStore{getErr: errors.New("stale file handle")}
	m.load(store)

	meta, err := m.GetGatewayMeta()
	require.NoError(t, err)
	assert.Empty(t, meta.GetID())
	assert.Nil(t, store.created)
}

func TestLoadDecodesPersistedMeta(t *testing.T) {
	m := NewGatewayManager(nil)
	m.load(&fakeStore{data: []byte(`{"name":"modpoller","id":"abc123","eTag":"42"}`)})

	meta, err := m.GetGatewayMeta()
	require.NoError(t, err)
	assert.Equal(t, "abc123", meta.GetID())
	assert.Equal(t, "42", meta.GetVersion())
}
