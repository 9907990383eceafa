package types

import "time"

// AgentStatus represents the presence status of a livechat agent
type AgentStatus string

const (
	StatusOnline  AgentStatus = "online"
	StatusAway    AgentStatus = "away"
	StatusBusy    AgentStatus = "busy"
	StatusOffline AgentStatus = "offline"
)

// AllStatuses lists every known agent status in display order
var AllStatuses = []AgentStatus{
	StatusOnline,
	StatusAway,
	StatusBusy,
	StatusOffline,
}

// Normalize maps unknown statuses to offline
func (s AgentStatus) Normalize() AgentStatus {
	switch s {
	case StatusOnline, StatusAway, StatusBusy:
		return s
	default:
		return StatusOffline
	}
}

// Timing is the average and longest value of one metric family (seconds)
type Timing struct {
	Avg     float64 `json:"avg"`
	Longest float64 `json:"longest"`
}

// SessionMetrics holds the computed timings of a finalized session.
// A nil family means the value was never computed.
type SessionMetrics struct {
	Reaction     *Timing `json:"reaction,omitempty"`
	Response     *Timing `json:"response,omitempty"`
	ChatDuration *Timing `json:"chatDuration,omitempty"`
}

// ServedBy identifies the agent that claimed a session
type ServedBy struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
}

// Session is a single livechat conversation.
//
// A session moves from queued (no ServedBy) to claimed (ServedBy set) to
// closed (Metrics set, Open absent). Metrics are never cleared once set.
type Session struct {
	ID           string          `json:"id"`
	TS           time.Time       `json:"ts"`
	Open         *bool           `json:"open,omitempty"`
	ServedBy     *ServedBy       `json:"servedBy,omitempty"`
	DepartmentID string          `json:"departmentId,omitempty"`
	Metrics      *SessionMetrics `json:"metrics,omitempty"`
}

// IsOpen reports whether the open flag is present and true
func (s Session) IsOpen() bool {
	return s.Open != nil && *s.Open
}

// Agent is a livechat agent presence record
type Agent struct {
	ID       string      `json:"id"`
	Username string      `json:"username,omitempty"`
	Status   AgentStatus `json:"status"`
}

// Department is a livechat department
type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Label returns the display label of the department, falling back to its ID
func (d Department) Label() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}
