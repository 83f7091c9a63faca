package overlay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreSetAssignsMonotonicVersions(t *testing.T) {
	s := NewStore()
	v1 := s.Set("map-1", Descriptor{Category: CategoryClimate, Name: "rainfall"})
	v2 := s.Set("map-1", Descriptor{Category: CategoryClimate, Name: "temperature"})
	require.Greater(t, v2, v1)

	vd, ok := s.Get("map-1", CategoryClimate)
	require.True(t, ok)
	require.Equal(t, "temperature", vd.Descriptor.Name)
	require.Equal(t, v2, vd.Version)
	require.Equal(t, "map-1", vd.Descriptor.MapID)
}

func TestStoreMarkRemoval(t *testing.T) {
	s := NewStore()
	require.False(t, s.MarkRemoval("map-1", CategoryClimate))

	s.Set("map-1", Descriptor{Category: CategoryClimate, Name: "rainfall"})
	require.True(t, s.MarkRemoval("map-1", CategoryClimate))

	vd, ok := s.Get("map-1", CategoryClimate)
	require.True(t, ok)
	require.Equal(t, ActionRemove, vd.Descriptor.PendingAction)
}

func TestStoreCompleteActionIgnoresStaleVersion(t *testing.T) {
	s := NewStore()
	v1 := s.Set("map-1", Descriptor{Category: CategoryClimate, Name: "rainfall", PendingAction: ActionOpacity})
	v2 := s.Set("map-1", Descriptor{Category: CategoryClimate, Name: "rainfall", PendingAction: ActionVisibility})

	// Completing against the superseded version must not clear the newer action.
	s.CompleteAction("map-1", CategoryClimate, v1)
	vd, _ := s.Get("map-1", CategoryClimate)
	require.Equal(t, ActionVisibility, vd.Descriptor.PendingAction)

	s.CompleteAction("map-1", CategoryClimate, v2)
	vd, _ = s.Get("map-1", CategoryClimate)
	require.Empty(t, vd.Descriptor.PendingAction)
}

func TestStoreSetCountryIsIdempotent(t *testing.T) {
	s := NewStore()
	v1 := s.SetCountry("map-1", "thailand")
	v2 := s.SetCountry("map-1", "thailand")
	require.Equal(t, v1, v2)

	v3 := s.SetCountry("map-1", "vietnam")
	require.Greater(t, v3, v1)
	require.Equal(t, "vietnam", s.Snapshot("map-1").Country)
}

func TestStoreReplaceBumpsGeneration(t *testing.T) {
	s := NewStore()
	s.Set("map-1", Descriptor{Category: CategoryClimate, Name: "rainfall"})
	before := s.Snapshot("map-1")

	s.Replace("map-1", []Descriptor{
		{Category: CategoryGiri, Name: "flood"},
		{Category: CategoryEnergy, Name: "solar"},
	})
	after := s.Snapshot("map-1")
	require.Greater(t, after.Generation, before.Generation)
	require.Len(t, after.Descriptors, 2)

	_, ok := s.Get("map-1", CategoryClimate)
	require.False(t, ok)
}

func TestStoreSubscribeCoalescesTicks(t *testing.T) {
	s := NewStore()
	tick, cancel := s.Subscribe("map-1")
	defer cancel()

	s.Set("map-1", Descriptor{Category: CategoryClimate, Name: "rainfall"})
	s.Set("map-1", Descriptor{Category: CategoryGiri, Name: "flood"})
	s.SetCountry("map-1", "thailand")

	<-tick
	select {
	case <-tick:
		t.Fatal("expected ticks to coalesce into a single pending signal")
	default:
	}
}

func TestStoreSubscribeIsolatesMapInstances(t *testing.T) {
	s := NewStore()
	tick, cancel := s.Subscribe("map-1")
	defer cancel()

	s.Set("map-2", Descriptor{Category: CategoryClimate, Name: "rainfall"})
	select {
	case <-tick:
		t.Fatal("subscriber received a tick for another map instance")
	default:
	}
}
