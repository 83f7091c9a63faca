package overlay

import (
	"sync"
)

// MapState is a point-in-time view of one map instance's desired overlays.
type MapState struct {
	MapID          string
	Country        string
	CountryVersion uint64
	Generation     uint64
	Descriptors    []VersionedDescriptor
}

// VersionedDescriptor pairs a descriptor with the store version it was written at.
type VersionedDescriptor struct {
	Descriptor Descriptor
	Version    uint64
}

type mapEntry struct {
	country        string
	countryVersion uint64
	generation     uint64
	descriptors    map[Category]VersionedDescriptor
}

// Store holds the shared desired-overlay description for every map instance.
// Entries are versioned per (mapID, category) and every mutation notifies the
// subscribers registered for that mapID only, so one reconciler never reacts
// to another instance's changes while a dashboard can still snapshot all maps.
type Store struct {
	mu      sync.RWMutex
	version uint64
	maps    map[string]*mapEntry
	subs    map[string][]chan struct{}
}

// NewStore constructs an empty descriptor store.
func NewStore() *Store {
	return &Store{
		maps: make(map[string]*mapEntry),
		subs: make(map[string][]chan struct{}),
	}
}

func (s *Store) entry(mapID string) *mapEntry {
	e, ok := s.maps[mapID]
	if !ok {
		e = &mapEntry{descriptors: make(map[Category]VersionedDescriptor)}
		s.maps[mapID] = e
	}
	return e
}

// Set writes the desired descriptor for a (mapID, category) pair and returns
// the version assigned to the write.
func (s *Store) Set(mapID string, d Descriptor) uint64 {
	s.mu.Lock()
	s.version++
	v := s.version
	d.MapID = mapID
	s.entry(mapID).descriptors[d.Category] = VersionedDescriptor{Descriptor: d, Version: v}
	s.mu.Unlock()
	s.notify(mapID)
	return v
}

// Get returns the current descriptor for the pair, if any.
func (s *Store) Get(mapID string, cat Category) (VersionedDescriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.maps[mapID]
	if !ok {
		return VersionedDescriptor{}, false
	}
	vd, ok := e.descriptors[cat]
	return vd, ok
}

// MarkRemoval flags the pair for removal; the reconciler garbage-collects the
// entry once the renderer layer is gone.
func (s *Store) MarkRemoval(mapID string, cat Category) bool {
	s.mu.Lock()
	e, ok := s.maps[mapID]
	if ok {
		vd, present := e.descriptors[cat]
		if present {
			s.version++
			vd.Descriptor.PendingAction = ActionRemove
			vd.Version = s.version
			e.descriptors[cat] = vd
		}
		ok = present
	}
	s.mu.Unlock()
	if ok {
		s.notify(mapID)
	}
	return ok
}

// CompleteAction clears the pending action on a pair, but only if no newer
// write landed while the reconciler was applying it.
func (s *Store) CompleteAction(mapID string, cat Category, version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.maps[mapID]
	if !ok {
		return
	}
	vd, ok := e.descriptors[cat]
	if !ok || vd.Version != version {
		return
	}
	vd.Descriptor.PendingAction = ""
	vd.Descriptor.ActionPayload = ""
	e.descriptors[cat] = vd
}

// Delete garbage-collects a pair after its removal has been applied.
func (s *Store) Delete(mapID string, cat Category) {
	s.mu.Lock()
	if e, ok := s.maps[mapID]; ok {
		delete(e.descriptors, cat)
	}
	s.mu.Unlock()
}

// SetCountry records the selected country for a map instance. Boundary and
// mask layers are keyed on this value alone.
func (s *Store) SetCountry(mapID, country string) uint64 {
	s.mu.Lock()
	e := s.entry(mapID)
	if e.country == country {
		v := e.countryVersion
		s.mu.Unlock()
		return v
	}
	s.version++
	e.country = country
	e.countryVersion = s.version
	v := s.version
	s.mu.Unlock()
	s.notify(mapID)
	return v
}

// Replace swaps the entire desired set for a map instance. The generation bump
// tells the reconciler the set changed identity, triggering a full sweep of
// the raster and energy bands rather than a per-field diff.
func (s *Store) Replace(mapID string, descriptors []Descriptor) {
	s.mu.Lock()
	e := s.entry(mapID)
	s.version++
	e.generation = s.version
	e.descriptors = make(map[Category]VersionedDescriptor, len(descriptors))
	for _, d := range descriptors {
		s.version++
		d.MapID = mapID
		e.descriptors[d.Category] = VersionedDescriptor{Descriptor: d, Version: s.version}
	}
	s.mu.Unlock()
	s.notify(mapID)
}

// Snapshot returns a copy of the map instance's desired state.
func (s *Store) Snapshot(mapID string) MapState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := MapState{MapID: mapID}
	e, ok := s.maps[mapID]
	if !ok {
		return state
	}
	state.Country = e.country
	state.CountryVersion = e.countryVersion
	state.Generation = e.generation
	state.Descriptors = make([]VersionedDescriptor, 0, len(e.descriptors))
	for _, cat := range DescriptorCategories {
		if vd, ok := e.descriptors[cat]; ok {
			state.Descriptors = append(state.Descriptors, vd)
		}
	}
	return state
}

// MapIDs lists the map instances the store currently knows about.
func (s *Store) MapIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.maps))
	for id := range s.maps {
		ids = append(ids, id)
	}
	return ids
}

// Subscribe registers a dirty-signal channel for one map instance. Signals are
// coalesced: a subscriber that has not drained its channel receives a single
// pending tick no matter how many writes occurred, and reads the current
// snapshot when it gets around to reconciling.
func (s *Store) Subscribe(mapID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs[mapID] = append(s.subs[mapID], ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subs[mapID]
		for i, c := range subs {
			if c == ch {
				s.subs[mapID] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
	return ch, cancel
}

func (s *Store) notify(mapID string) {
	s.mu.RLock()
	subs := s.subs[mapID]
	s.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
