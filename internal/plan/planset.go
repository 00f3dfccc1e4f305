package plan

import "strings"

// PlanSet is an insertion-ordered mapping from entity name to ObjectPlan.
// Insertion order is the dependency-relevant order handed to the execution
// engine. Lookups are case-insensitive like entity names themselves.
type PlanSet struct {
	names  []string
	byName map[string]*ObjectPlan
}

func NewPlanSet() *PlanSet {
	return &PlanSet{byName: make(map[string]*ObjectPlan)}
}

// Add registers a plan under its entity name. A duplicate name replaces the
// earlier plan in place and reports the replacement so the caller can warn.
func (s *PlanSet) Add(p *ObjectPlan) (replaced bool) {
	key := strings.ToLower(p.Name)
	if _, ok := s.byName[key]; ok {
		s.byName[key] = p
		return true
	}
	s.byName[key] = p
	s.names = append(s.names, p.Name)
	return false
}

// Get returns the plan for an entity name, or nil.
func (s *PlanSet) Get(name string) *ObjectPlan {
	return s.byName[strings.ToLower(name)]
}

// Has reports whether a plan exists for the entity name.
func (s *PlanSet) Has(name string) bool {
	_, ok := s.byName[strings.ToLower(name)]
	return ok
}

// Names returns entity names in insertion order.
func (s *PlanSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Plans returns the plans in insertion order.
func (s *PlanSet) Plans() []*ObjectPlan {
	out := make([]*ObjectPlan, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.Get(name))
	}
	return out
}

func (s *PlanSet) Len() int { return len(s.names) }
