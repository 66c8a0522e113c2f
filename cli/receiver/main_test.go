package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/fleettrack/cli/receiver/store/memory"
)

func TestLoadStoreDefaultsToMemory(t *testing.T) {
	s, err := loadStore(nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)
}

func TestLoadStoreExplicitMemoryKind(t *testing.T) {
	s, err := loadStore(map[string]map[string]string{"memory": {}})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)
}

func TestLoadStoreRejectsUnknownKind(t *testing.T) {
	_, err := loadStore(map[string]map[string]string{"etcd": {}})
	assert.Error(t, err)
}

func TestLoadStoreRejectsMultipleKinds(t *testing.T) {
	_, err := loadStore(map[string]map[string]string{
		"postgresql": {},
		"mysql":      {},
	})
	assert.Error(t, err)
}

func TestLoadNotifiersRejectsUnknownKind(t *testing.T) {
	_, err := loadNotifiers(map[string]map[string]string{"smoke_signals": {}})
	assert.Error(t, err)
}

func TestLoadNotifiersEmptyIsValid(t *testing.T) {
	fanout, err := loadNotifiers(nil)
	require.NoError(t, err)
	assert.NotNil(t, fanout)
}
