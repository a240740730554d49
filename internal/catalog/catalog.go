package catalog

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ServiceType is a buildable service (e.g. full_build) with its base price and duration.
// Rows are never deleted; Active=false retires them while keeping historical orders valid.
type ServiceType struct {
	ID             string `json:"id"`
	Slug           string `json:"slug"`
	Name           string `json:"name"`
	BasePriceCents int64  `json:"basePriceCents"`
	BaseDays       int    `json:"baseDays"`
	Active         bool   `json:"active"`
	SortOrder      int    `json:"sortOrder"`
}

// ComplexityLevel scales a service's base price and duration by Multiplier.
type ComplexityLevel struct {
	ID         string          `json:"id"`
	Slug       string          `json:"slug"`
	Name       string          `json:"name"`
	Multiplier decimal.Decimal `json:"multiplier"`
	SortOrder  int             `json:"sortOrder"`
	Active     bool            `json:"active"`
}

// AddOn is a fixed-price extra linked to one service type. Required add-ons are
// charged on every item of that service type whether selected or not.
type AddOn struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ServiceTypeID string `json:"serviceTypeId"`
	PriceCents    int64  `json:"priceCents"`
	Required      bool   `json:"required"`
	Active        bool   `json:"active"`
	SortOrder     int    `json:"sortOrder"`
}

// Snapshot is an immutable, indexed view of the catalog taken at one point in
// time. The estimation calculator only ever reads from a Snapshot.
type Snapshot struct {
	ServiceTypes     []ServiceType     `json:"serviceTypes"`
	ComplexityLevels []ComplexityLevel `json:"complexityLevels"`
	AddOns           []AddOn           `json:"addOns"`

	serviceByID     map[string]int
	serviceBySlug   map[string]int
	levelByID       map[string]int
	levelBySlug     map[string]int
	addOnByID       map[string]int
	addOnsByService map[string][]int
}

func NewSnapshot(serviceTypes []ServiceType, levels []ComplexityLevel, addOns []AddOn) Snapshot {
	s := Snapshot{
		ServiceTypes:     append([]ServiceType(nil), serviceTypes...),
		ComplexityLevels: append([]ComplexityLevel(nil), levels...),
		AddOns:           append([]AddOn(nil), addOns...),
	}
	sort.SliceStable(s.ServiceTypes, func(i, j int) bool { return s.ServiceTypes[i].SortOrder < s.ServiceTypes[j].SortOrder })
	sort.SliceStable(s.ComplexityLevels, func(i, j int) bool { return s.ComplexityLevels[i].SortOrder < s.ComplexityLevels[j].SortOrder })
	sort.SliceStable(s.AddOns, func(i, j int) bool { return s.AddOns[i].SortOrder < s.AddOns[j].SortOrder })

	s.serviceByID = make(map[string]int, len(s.ServiceTypes))
	s.serviceBySlug = make(map[string]int, len(s.ServiceTypes))
	for i, st := range s.ServiceTypes {
		s.serviceByID[st.ID] = i
		if st.Slug != "" {
			s.serviceBySlug[st.Slug] = i
		}
	}
	s.levelByID = make(map[string]int, len(s.ComplexityLevels))
	s.levelBySlug = make(map[string]int, len(s.ComplexityLevels))
	for i, cl := range s.ComplexityLevels {
		s.levelByID[cl.ID] = i
		if cl.Slug != "" {
			s.levelBySlug[cl.Slug] = i
		}
	}
	s.addOnByID = make(map[string]int, len(s.AddOns))
	s.addOnsByService = make(map[string][]int)
	for i, a := range s.AddOns {
		s.addOnByID[a.ID] = i
		s.addOnsByService[a.ServiceTypeID] = append(s.addOnsByService[a.ServiceTypeID], i)
	}
	return s
}

// ServiceType resolves ref as an id first, then as a slug.
func (s Snapshot) ServiceType(ref string) (ServiceType, bool) {
	if i, ok := s.serviceByID[ref]; ok {
		return s.ServiceTypes[i], true
	}
	if i, ok := s.serviceBySlug[ref]; ok {
		return s.ServiceTypes[i], true
	}
	return ServiceType{}, false
}

// ComplexityLevel resolves ref as an id first, then as a slug.
func (s Snapshot) ComplexityLevel(ref string) (ComplexityLevel, bool) {
	if i, ok := s.levelByID[ref]; ok {
		return s.ComplexityLevels[i], true
	}
	if i, ok := s.levelBySlug[ref]; ok {
		return s.ComplexityLevels[i], true
	}
	return ComplexityLevel{}, false
}

func (s Snapshot) AddOn(id string) (AddOn, bool) {
	i, ok := s.addOnByID[id]
	if !ok {
		return AddOn{}, false
	}
	return s.AddOns[i], true
}

// AddOnsFor returns the add-ons linked to serviceTypeID in sort order.
func (s Snapshot) AddOnsFor(serviceTypeID string) []AddOn {
	idx := s.addOnsByService[serviceTypeID]
	out := make([]AddOn, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.AddOns[i])
	}
	return out
}
