package types

// ChatStateCounts partitions all sessions by lifecycle state
type ChatStateCounts struct {
	Open   int `json:"open"`
	Closed int `json:"closed"`
	Queued int `json:"queued"`
}

// Total returns the number of sessions in the partition
func (c ChatStateCounts) Total() int {
	return c.Open + c.Closed + c.Queued
}

// AgentStatusCounts partitions all agents by presence status
type AgentStatusCounts struct {
	Online  int `json:"online"`
	Away    int `json:"away"`
	Busy    int `json:"busy"`
	Offline int `json:"offline"`
}

// Total returns the number of agents in the partition
func (c AgentStatusCounts) Total() int {
	return c.Online + c.Away + c.Busy + c.Offline
}

// OpenClosed counts open and closed sessions for one agent or department
type OpenClosed struct {
	Open   int `json:"open"`
	Closed int `json:"closed"`
}

// TimingSummary is the per-bucket timing aggregate of the three metric families
type TimingSummary struct {
	Reaction     Timing `json:"reaction"`
	Response     Timing `json:"response"`
	ChatDuration Timing `json:"chatDuration"`
}

// ChartID identifies a logical dashboard chart
type ChartID string

const (
	ChartChatsByState       ChartID = "chats-by-state"
	ChartAgentsByStatus     ChartID = "agents-by-status"
	ChartChatsPerAgent      ChartID = "chats-per-agent"
	ChartChatsPerDepartment ChartID = "chats-per-department"
	ChartResponseTimes      ChartID = "reaction-response-times"
	ChartChatDuration       ChartID = "chat-duration"
)

// AllCharts lists every dashboard chart in initialization order
var AllCharts = []ChartID{
	ChartChatsByState,
	ChartAgentsByStatus,
	ChartChatsPerAgent,
	ChartChatsPerDepartment,
	ChartResponseTimes,
	ChartChatDuration,
}
