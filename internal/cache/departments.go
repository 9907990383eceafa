package cache

import (
	"sort"
	"sync"

	"github.com/dennisdiepolder/monti/livechat/internal/metrics"
	"github.com/dennisdiepolder/monti/livechat/internal/types"
	"github.com/rs/zerolog"
)

// DepartmentStore holds the livechat departments
type DepartmentStore struct {
	departments map[string]*types.Department
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewDepartmentStore creates a new department store
func NewDepartmentStore(logger zerolog.Logger) *DepartmentStore {
	return &DepartmentStore{
		departments: make(map[string]*types.Department),
		logger:      logger.With().Str("component", "department_store").Logger(),
	}
}

// Apply applies a change and returns it enriched with the prior record on
// removal. A change for an unknown department is dropped and delivered with
// no fields.
func (s *DepartmentStore) Apply(c types.DepartmentChange) types.DepartmentChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch c.Kind {
	case types.ChangeAdded:
		record := &types.Department{ID: c.ID}
		c.Fields.ApplyTo(record)
		s.departments[c.ID] = record

	case types.ChangeChanged:
		existing, exists := s.departments[c.ID]
		if !exists {
			s.logger.Debug().Str("department_id", c.ID).Msg("dropping change for unknown department")
			c.Fields.Present = 0
			break
		}
		c.Fields.ApplyTo(existing)

	case types.ChangeRemoved:
		if existing, exists := s.departments[c.ID]; exists {
			prior := *existing
			c.Prior = &prior
			delete(s.departments, c.ID)
		}
	}

	metrics.Get().SetSourceRecords("departments", len(s.departments))
	return c
}

// FindDepartment returns the current record of a department
func (s *DepartmentStore) FindDepartment(id string) (types.Department, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dept, ok := s.departments[id]
	if !ok {
		return types.Department{}, false
	}
	return *dept, true
}

// Departments returns a snapshot of all departments ordered by ID
func (s *DepartmentStore) Departments() []types.Department {
	s.mu.RLock()
	defer s.mu.RUnlock()

	depts := make([]types.Department, 0, len(s.departments))
	for _, dept := range s.departments {
		depts = append(depts, *dept)
	}
	sort.Slice(depts, func(i, j int) bool { return depts[i].ID < depts[j].ID })
	return depts
}

// DepartmentCount returns the number of departments
func (s *DepartmentStore) DepartmentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.departments)
}
