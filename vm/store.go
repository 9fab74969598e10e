package vm

// Store owns every region a program declares. Regions are identified by
// declaration order inside the engine (the linker resolves names to
// indices) and by name at the edges (REPL, tooling, tests).
//
// The store is the single home of all mutable program state; frames only
// hold references into it.
type Store struct {
	regions []*Region
	index   map[string]int
}

// NewStore builds a store with one zeroed region per definition.
func NewStore(defs []RegionDef) *Store {
	s := &Store{
		regions: make([]*Region, len(defs)),
		index:   make(map[string]int, len(defs)),
	}
	for i, def := range defs {
		s.regions[i] = NewRegion(def.Name, def.Size)
		s.index[def.Name] = i
	}
	return s
}

// Len returns the number of regions.
func (s *Store) Len() int {
	return len(s.regions)
}

// At returns the region at a linker-assigned index.
func (s *Store) At(i int) *Region {
	return s.regions[i]
}

// Region looks a region up by name, or nil if none is declared.
func (s *Store) Region(name string) *Region {
	i, ok := s.index[name]
	if !ok {
		return nil
	}
	return s.regions[i]
}

// Reset clears every region back to its freshly loaded state.
func (s *Store) Reset() {
	for _, r := range s.regions {
		r.Clear()
	}
}
