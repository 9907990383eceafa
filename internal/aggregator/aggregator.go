package aggregator

import (
	"time"

	"github.com/dennisdiepolder/monti/livechat/internal/bucket"
	"github.com/dennisdiepolder/monti/livechat/internal/chart"
	"github.com/dennisdiepolder/monti/livechat/internal/metrics"
	"github.com/dennisdiepolder/monti/livechat/internal/timing"
	"github.com/dennisdiepolder/monti/livechat/internal/types"
	"github.com/rs/zerolog"
)

// SessionReader gives the engine synchronous access to the session snapshot
type SessionReader interface {
	FindSession(id string) (types.Session, bool)
	Sessions() []types.Session
}

// AgentReader gives the engine synchronous access to the agent snapshot
type AgentReader interface {
	Agents() []types.Agent
}

// DepartmentReader gives the engine synchronous access to the department snapshot
type DepartmentReader interface {
	FindDepartment(id string) (types.Department, bool)
	Departments() []types.Department
	DepartmentCount() int
}

// ChartUpdater receives recomputed values; satisfied by *chart.Registry
type ChartUpdater interface {
	Update(id types.ChartID, label string, values []float64) error
}

// VisibilityNotifier is told whether the per-department chart should be shown
type VisibilityNotifier interface {
	SetDepartmentChartVisible(visible bool)
}

// Sources bundles the three collections the engine reads from
type Sources struct {
	Sessions    SessionReader
	Agents      AgentReader
	Departments DepartmentReader
}

// Skip reasons reported to metrics
const (
	skipMissingReference = "missing_reference"
	skipMalformedField   = "malformed_field"
	skipOutsideDay       = "outside_day"
)

// Engine recomputes the dashboard aggregates affected by each change
// notification and pushes them to the charts.
//
// The engine keeps no aggregate state: every push is derived from the live
// snapshot. It must only be called from a single goroutine.
type Engine struct {
	src        Sources
	charts     ChartUpdater
	visibility VisibilityNotifier
	loc        *time.Location
	now        func() time.Time
	logger     zerolog.Logger
}

// NewEngine creates a new aggregation engine. Hour buckets are computed in loc.
func NewEngine(src Sources, charts ChartUpdater, loc *time.Location, logger zerolog.Logger) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		src:    src,
		charts: charts,
		loc:    loc,
		now:    time.Now,
		logger: logger.With().Str("component", "aggregator").Logger(),
	}
}

// SetVisibilityNotifier sets the receiver of department chart visibility
// signals (set after construction to avoid circular init)
func (e *Engine) SetVisibilityNotifier(v VisibilityNotifier) {
	e.visibility = v
}

// SetClock overrides the clock used to decide the dashboard day
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// OnAgent handles an agent notification. Any change recomputes the whole
// status partition.
func (e *Engine) OnAgent(c types.AgentChange) {
	e.updateAgentStatusChart()
}

// OnDepartment handles a department notification
func (e *Engine) OnDepartment(c types.DepartmentChange) {
	switch c.Kind {
	case types.ChangeAdded, types.ChangeChanged:
		// a change the store dropped leaves the count at zero
		e.setDepartmentChartVisible(e.src.Departments.DepartmentCount() > 0)
		e.updateDepartmentsChart(c.ID, nil)

	case types.ChangeRemoved:
		if e.src.Departments.DepartmentCount() == 0 {
			e.setDepartmentChartVisible(false)
		}
		e.updateDepartmentsChart(c.ID, c.Prior)
	}
}

// OnSession handles a session notification, recomputing only the views the
// changed fields can affect
func (e *Engine) OnSession(c types.SessionChange) {
	if c.Kind == types.ChangeRemoved {
		// a removal may have touched any view, so every partition is recomputed
		if c.Prior != nil {
			e.updateTimingCharts(c.Prior.TS)
		} else {
			e.skip(skipMissingReference, "session_removed", c.ID)
		}
		e.updateAgentsChart("")
		e.updateChatsChart()
		e.updateDepartmentsChart("", nil)
		return
	}

	f := c.Fields
	chats := false

	if f.Has(types.FieldMetrics) {
		if ts, ok := e.sessionTS(c); ok {
			e.updateTimingCharts(ts)
		}
		chats = true
	}

	if f.Has(types.FieldServedBy) {
		if f.ServedBy == nil || f.ServedBy.Username == "" {
			e.skip(skipMalformedField, "served_by", c.ID)
		} else {
			e.updateAgentsChart(f.ServedBy.Username)
		}
		if c.Kind == types.ChangeChanged {
			chats = true
		}
	}

	if f.Has(types.FieldOpen) {
		chats = true
	}

	if f.Has(types.FieldDepartmentID) {
		if f.DepartmentID == "" {
			e.skip(skipMalformedField, "department_id", c.ID)
		} else {
			e.updateDepartmentsChart(f.DepartmentID, nil)
		}
	}

	if chats {
		e.updateChatsChart()
	}
}

// Refresh recomputes every aggregate from the current snapshot
func (e *Engine) Refresh() {
	e.setDepartmentChartVisible(e.src.Departments.DepartmentCount() > 0)
	e.updateChatsChart()
	e.updateAgentStatusChart()
	e.updateAgentsChart("")
	e.updateDepartmentsChart("", nil)

	sessions := e.src.Sessions.Sessions()
	for _, start := range bucket.HourStarts(e.now().In(e.loc)) {
		e.pushTimings(sessions, start)
	}

	e.logger.Debug().Int("sessions", len(sessions)).Msg("dashboard refreshed")
}

// Rollover recomputes the timing bucket containing now, so a new hour
// appears on the timing charts before any session closes in it
func (e *Engine) Rollover(now time.Time) {
	start, _ := bucket.HourRange(now.In(e.loc))
	e.pushTimings(e.src.Sessions.Sessions(), start)
	metrics.Get().RecordRollover()
}

func (e *Engine) sessionTS(c types.SessionChange) (time.Time, bool) {
	if c.Fields.Has(types.FieldTS) {
		return c.Fields.TS, true
	}
	s, ok := e.src.Sessions.FindSession(c.ID)
	if !ok {
		e.skip(skipMissingReference, "session_ts", c.ID)
		return time.Time{}, false
	}
	return s.TS, true
}

// updateTimingCharts recomputes the hour bucket containing ts
func (e *Engine) updateTimingCharts(ts time.Time) {
	local := ts.In(e.loc)
	start, _ := bucket.HourRange(local)

	if start.Before(bucket.StartOfDay(e.now().In(e.loc))) {
		e.skip(skipOutsideDay, "timing", bucket.HourLabel(local))
		return
	}

	e.pushTimings(e.src.Sessions.Sessions(), start)
}

func (e *Engine) pushTimings(sessions []types.Session, start time.Time) {
	label := bucket.HourLabel(start)
	summary := timing.Extract(InBucket(sessions, start))
	metrics.Get().RecordRecompute("timing")

	e.push(types.ChartResponseTimes, label, timing.ResponseSeries(summary))
	e.push(types.ChartChatDuration, label, timing.DurationSeries(summary))
}

// updateDepartmentsChart recomputes one department, or all of them when id is empty
func (e *Engine) updateDepartmentsChart(id string, prior *types.Department) {
	sessions := e.src.Sessions.Sessions()

	if id == "" {
		for _, dept := range e.src.Departments.Departments() {
			e.pushDepartment(sessions, dept.ID, dept.Label())
		}
		return
	}

	dept, ok := e.src.Departments.FindDepartment(id)
	switch {
	case ok:
		e.pushDepartment(sessions, id, dept.Label())
	case prior != nil:
		e.pushDepartment(sessions, id, prior.Label())
	default:
		e.skip(skipMissingReference, "department", id)
	}
}

func (e *Engine) pushDepartment(sessions []types.Session, id, label string) {
	counts := DepartmentOpenClosed(sessions, id)
	metrics.Get().RecordRecompute("department")
	e.push(types.ChartChatsPerDepartment, label, []float64{float64(counts.Open), float64(counts.Closed)})
}

// updateAgentsChart recomputes one agent, or every agent with a username when
// username is empty
func (e *Engine) updateAgentsChart(username string) {
	sessions := e.src.Sessions.Sessions()

	if username != "" {
		e.pushAgent(sessions, username)
		return
	}

	for _, agent := range e.src.Agents.Agents() {
		if agent.Username != "" {
			e.pushAgent(sessions, agent.Username)
		}
	}
}

func (e *Engine) pushAgent(sessions []types.Session, username string) {
	counts := AgentOpenClosed(sessions, username)
	metrics.Get().RecordRecompute("agent")
	e.push(types.ChartChatsPerAgent, username, []float64{float64(counts.Open), float64(counts.Closed)})
}

func (e *Engine) updateAgentStatusChart() {
	counts := AgentStatuses(e.src.Agents.Agents())
	metrics.Get().RecordRecompute("agent_status")

	e.push(types.ChartAgentsByStatus, chart.LabelOffline, []float64{float64(counts.Offline)})
	e.push(types.ChartAgentsByStatus, chart.LabelOnline, []float64{float64(counts.Online)})
	e.push(types.ChartAgentsByStatus, chart.LabelAway, []float64{float64(counts.Away)})
	e.push(types.ChartAgentsByStatus, chart.LabelBusy, []float64{float64(counts.Busy)})
}

func (e *Engine) updateChatsChart() {
	counts := ChatStates(e.src.Sessions.Sessions())
	metrics.Get().RecordRecompute("chat_state")

	e.push(types.ChartChatsByState, chart.LabelOpen, []float64{float64(counts.Open)})
	e.push(types.ChartChatsByState, chart.LabelClosed, []float64{float64(counts.Closed)})
	e.push(types.ChartChatsByState, chart.LabelQueue, []float64{float64(counts.Queued)})
}

func (e *Engine) setDepartmentChartVisible(visible bool) {
	if e.visibility != nil {
		e.visibility.SetDepartmentChartVisible(visible)
	}
}

// push sends values to a chart. A failed update is logged and dropped; it
// never stops the remaining updates of the same notification.
func (e *Engine) push(id types.ChartID, label string, values []float64) {
	m := metrics.Get()

	if err := e.charts.Update(id, label, values); err != nil {
		m.RecordChartUpdateError(id)
		e.logger.Error().
			Err(err).
			Str("chart", string(id)).
			Str("label", label).
			Msg("chart update failed")
		return
	}

	m.RecordChartUpdate(id)
	e.logger.Debug().
		Str("chart", string(id)).
		Str("label", label).
		Floats64("values", values).
		Msg("chart updated")
}

func (e *Engine) skip(reason, what, ref string) {
	metrics.Get().RecordSkip(reason)

	ev := e.logger.Debug()
	if reason == skipMalformedField {
		ev = e.logger.Warn()
	}
	ev.Str("reason", reason).
		Str("view", what).
		Str("ref", ref).
		Msg("recompute skipped")
}
