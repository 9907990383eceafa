package cache

import (
	"sort"
	"sync"

	"github.com/dennisdiepolder/monti/livechat/internal/metrics"
	"github.com/dennisdiepolder/monti/livechat/internal/types"
	"github.com/rs/zerolog"
)

// AgentStore maintains the current presence of all agents
type AgentStore struct {
	agents map[string]*types.Agent // agentID -> current record
	mu     sync.RWMutex
	logger zerolog.Logger
}

// NewAgentStore creates a new agent store
func NewAgentStore(logger zerolog.Logger) *AgentStore {
	return &AgentStore{
		agents: make(map[string]*types.Agent),
		logger: logger.With().Str("component", "agent_store").Logger(),
	}
}

// Apply applies a change and returns it enriched with the prior record on removal
func (s *AgentStore) Apply(c types.AgentChange) types.AgentChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch c.Kind {
	case types.ChangeAdded:
		record := &types.Agent{ID: c.ID, Status: types.StatusOffline}
		c.Fields.ApplyTo(record)
		s.agents[c.ID] = record

	case types.ChangeChanged:
		existing, exists := s.agents[c.ID]
		if !exists {
			s.logger.Debug().Str("agent_id", c.ID).Msg("dropping change for unknown agent")
			c.Fields.Present = 0
			break
		}
		c.Fields.ApplyTo(existing)

	case types.ChangeRemoved:
		if existing, exists := s.agents[c.ID]; exists {
			prior := *existing
			c.Prior = &prior
			delete(s.agents, c.ID)
		}
	}

	metrics.Get().SetSourceRecords("agents", len(s.agents))
	return c
}

// FindAgent returns the current record of an agent
func (s *AgentStore) FindAgent(id string) (types.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.agents[id]
	if !ok {
		return types.Agent{}, false
	}
	return *agent, true
}

// Agents returns a snapshot of all agents ordered by ID
func (s *AgentStore) Agents() []types.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make([]types.Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		agents = append(agents, *agent)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents
}

// Count returns the total number of tracked agents
func (s *AgentStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents)
}

// GetStatusStats returns the number of agents per status
func (s *AgentStore) GetStatusStats() map[types.AgentStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[types.AgentStatus]int, len(types.AllStatuses))
	for _, agent := range s.agents {
		stats[agent.Status.Normalize()]++
	}
	return stats
}
