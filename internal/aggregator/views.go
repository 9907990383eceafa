package aggregator

import (
	"time"

	"github.com/dennisdiepolder/monti/livechat/internal/bucket"
	"github.com/dennisdiepolder/monti/livechat/internal/types"
)

// ChatStates partitions sessions into open, closed and queued
func ChatStates(sessions []types.Session) types.ChatStateCounts {
	var counts types.ChatStateCounts
	for _, s := range sessions {
		switch {
		case s.ServedBy == nil:
			counts.Queued++
		case s.Metrics != nil:
			counts.Closed++
		default:
			counts.Open++
		}
	}
	return counts
}

// AgentStatuses partitions agents by presence status
func AgentStatuses(agents []types.Agent) types.AgentStatusCounts {
	var counts types.AgentStatusCounts
	for _, a := range agents {
		switch a.Status.Normalize() {
		case types.StatusOnline:
			counts.Online++
		case types.StatusAway:
			counts.Away++
		case types.StatusBusy:
			counts.Busy++
		default:
			counts.Offline++
		}
	}
	return counts
}

// AgentOpenClosed counts the open and closed sessions served by username
func AgentOpenClosed(sessions []types.Session, username string) types.OpenClosed {
	return openClosed(sessions, func(s types.Session) bool {
		return s.ServedBy != nil && s.ServedBy.Username == username
	})
}

// DepartmentOpenClosed counts the open and closed sessions of a department
func DepartmentOpenClosed(sessions []types.Session, departmentID string) types.OpenClosed {
	return openClosed(sessions, func(s types.Session) bool {
		return s.DepartmentID == departmentID
	})
}

func openClosed(sessions []types.Session, match func(types.Session) bool) types.OpenClosed {
	var counts types.OpenClosed
	for _, s := range sessions {
		if !match(s) {
			continue
		}
		if s.IsOpen() {
			counts.Open++
		} else if s.Open == nil {
			counts.Closed++
		}
	}
	return counts
}

// InBucket returns the sessions whose timestamp falls in the hour starting at start
func InBucket(sessions []types.Session, start time.Time) []types.Session {
	var out []types.Session
	for _, s := range sessions {
		if bucket.Contains(start, s.TS) {
			out = append(out, s)
		}
	}
	return out
}
