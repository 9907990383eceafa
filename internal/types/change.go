package types

import "time"

// ChangeKind tags a change notification
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeChanged ChangeKind = "changed"
	ChangeRemoved ChangeKind = "removed"
)

// Valid reports whether k is a known change kind
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeAdded, ChangeChanged, ChangeRemoved:
		return true
	}
	return false
}

// SessionField is a bit identifying one field of a session record
type SessionField uint8

const (
	FieldTS SessionField = 1 << iota
	FieldOpen
	FieldServedBy
	FieldDepartmentID
	FieldMetrics
)

// SessionFields carries the fields present in a session notification.
// A field bit set with a zero value means the field was cleared.
type SessionFields struct {
	Present      SessionField
	TS           time.Time
	Open         *bool
	ServedBy     *ServedBy
	DepartmentID string
	Metrics      *SessionMetrics
}

// Has reports whether field is present in the notification
func (f SessionFields) Has(field SessionField) bool {
	return f.Present&field != 0
}

// ApplyTo writes the present fields onto s. Clearing metrics is ignored.
// Returns false if a metrics clear was dropped.
func (f SessionFields) ApplyTo(s *Session) bool {
	if f.Has(FieldTS) {
		s.TS = f.TS
	}
	if f.Has(FieldOpen) {
		s.Open = f.Open
	}
	if f.Has(FieldServedBy) {
		s.ServedBy = f.ServedBy
	}
	if f.Has(FieldDepartmentID) {
		s.DepartmentID = f.DepartmentID
	}
	if f.Has(FieldMetrics) {
		if f.Metrics == nil && s.Metrics != nil {
			return false
		}
		s.Metrics = f.Metrics
	}
	return true
}

// SessionFieldsOf returns the full field set of s, as sent with an added notification
func SessionFieldsOf(s Session) SessionFields {
	f := SessionFields{
		Present:      FieldTS,
		TS:           s.TS,
		Open:         s.Open,
		ServedBy:     s.ServedBy,
		DepartmentID: s.DepartmentID,
		Metrics:      s.Metrics,
	}
	if s.Open != nil {
		f.Present |= FieldOpen
	}
	if s.ServedBy != nil {
		f.Present |= FieldServedBy
	}
	if s.DepartmentID != "" {
		f.Present |= FieldDepartmentID
	}
	if s.Metrics != nil {
		f.Present |= FieldMetrics
	}
	return f
}

// SessionChange is a change notification from the session source.
// Prior is the last known record on removal, when the store had one.
type SessionChange struct {
	Kind   ChangeKind
	ID     string
	Fields SessionFields
	Prior  *Session
}

// AgentField is a bit identifying one field of an agent record
type AgentField uint8

const (
	FieldUsername AgentField = 1 << iota
	FieldStatus
)

// AgentFields carries the fields present in an agent notification
type AgentFields struct {
	Present  AgentField
	Username string
	Status   AgentStatus
}

// Has reports whether field is present in the notification
func (f AgentFields) Has(field AgentField) bool {
	return f.Present&field != 0
}

// ApplyTo writes the present fields onto a
func (f AgentFields) ApplyTo(a *Agent) {
	if f.Has(FieldUsername) {
		a.Username = f.Username
	}
	if f.Has(FieldStatus) {
		a.Status = f.Status
	}
}

// AgentFieldsOf returns the full field set of a
func AgentFieldsOf(a Agent) AgentFields {
	return AgentFields{Present: FieldUsername | FieldStatus, Username: a.Username, Status: a.Status}
}

// AgentChange is a change notification from the agent source
type AgentChange struct {
	Kind   ChangeKind
	ID     string
	Fields AgentFields
	Prior  *Agent
}

// DepartmentField is a bit identifying one field of a department record
type DepartmentField uint8

const (
	FieldName DepartmentField = 1 << iota
)

// DepartmentFields carries the fields present in a department notification
type DepartmentFields struct {
	Present DepartmentField
	Name    string
}

// Has reports whether field is present in the notification
func (f DepartmentFields) Has(field DepartmentField) bool {
	return f.Present&field != 0
}

// ApplyTo writes the present fields onto d
func (f DepartmentFields) ApplyTo(d *Department) {
	if f.Has(FieldName) {
		d.Name = f.Name
	}
}

// DepartmentFieldsOf returns the full field set of d
func DepartmentFieldsOf(d Department) DepartmentFields {
	return DepartmentFields{Present: FieldName, Name: d.Name}
}

// DepartmentChange is a change notification from the department source
type DepartmentChange struct {
	Kind   ChangeKind
	ID     string
	Fields DepartmentFields
	Prior  *Department
}
