package catalog

// DiscoverySet accumulates discovery keys while remembering first-seen order.
// It is not safe for concurrent use; the discovery loop owns it.
type DiscoverySet struct {
	seen  map[string]struct{}
	order []string
}

// NewDiscoverySet returns an empty set.
func NewDiscoverySet() *DiscoverySet {
	return &DiscoverySet{seen: make(map[string]struct{})}
}

// Add inserts keys and returns how many were new.
func (s *DiscoverySet) Add(keys ...string) int {
	added := 0
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := s.seen[k]; ok {
			continue
		}
		s.seen[k] = struct{}{}
		s.order = append(s.order, k)
		added++
	}
	return added
}

// Len returns the number of distinct keys.
func (s *DiscoverySet) Len() int {
	return len(s.order)
}

// Keys returns the keys in insertion order.
func (s *DiscoverySet) Keys() []string {
	return append([]string(nil), s.order...)
}
