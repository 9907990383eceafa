package ingestion

import (
	"errors"
	"fmt"
	"time"

	"github.com/dennisdiepolder/monti/livechat/internal/types"
	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidPayload is returned for bodies that are not a JSON object or array
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrInvalidOp is returned for notifications without a known op
	ErrInvalidOp = errors.New("invalid op")

	// ErrMissingID is returned for notifications without an id
	ErrMissingID = errors.New("missing id")

	// ErrInvalidField is returned for fields of the wrong type
	ErrInvalidField = errors.New("invalid field")
)

// notification is one parsed {"op","id","fields"} object
type notification struct {
	kind   types.ChangeKind
	id     string
	fields gjson.Result
}

// parse splits body into notifications. A body may hold a single object or
// an array of them. Every bad entry is reported; nothing is returned unless
// all entries are valid.
func parse(body []byte) ([]notification, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidPayload
	}

	root := gjson.ParseBytes(body)
	var items []gjson.Result
	switch {
	case root.IsArray():
		items = root.Array()
	case root.IsObject():
		items = []gjson.Result{root}
	default:
		return nil, ErrInvalidPayload
	}

	var errs []error
	out := make([]notification, 0, len(items))
	for i, item := range items {
		if !item.IsObject() {
			errs = append(errs, fmt.Errorf("notification %d: %w", i, ErrInvalidPayload))
			continue
		}

		kind := types.ChangeKind(item.Get("op").String())
		if !kind.Valid() {
			errs = append(errs, fmt.Errorf("notification %d: op %q: %w", i, item.Get("op").Raw, ErrInvalidOp))
			continue
		}

		id := item.Get("id")
		if id.Type != gjson.String || id.Str == "" {
			errs = append(errs, fmt.Errorf("notification %d: %w", i, ErrMissingID))
			continue
		}

		fields := item.Get("fields")
		if fields.Exists() && fields.Type != gjson.Null && !fields.IsObject() {
			errs = append(errs, fmt.Errorf("notification %d: fields: %w", i, ErrInvalidField))
			continue
		}

		out = append(out, notification{kind: kind, id: id.Str, fields: fields})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// DecodeSessions decodes session notifications. A key set to null clears
// the field; an absent key leaves it untouched.
func DecodeSessions(body []byte) ([]types.SessionChange, error) {
	items, err := parse(body)
	if err != nil {
		return nil, err
	}

	var errs []error
	changes := make([]types.SessionChange, 0, len(items))
	for i, n := range items {
		fields, err := sessionFields(n.fields)
		if err != nil {
			errs = append(errs, fmt.Errorf("notification %d (%s): %w", i, n.id, err))
			continue
		}
		changes = append(changes, types.SessionChange{Kind: n.kind, ID: n.id, Fields: fields})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return changes, nil
}

func sessionFields(raw gjson.Result) (types.SessionFields, error) {
	var f types.SessionFields

	if v := raw.Get("ts"); v.Exists() {
		ts, err := parseTime(v)
		if err != nil {
			return f, fmt.Errorf("ts: %w", err)
		}
		f.Present |= types.FieldTS
		f.TS = ts
	}

	if v := raw.Get("open"); v.Exists() {
		switch v.Type {
		case gjson.True:
			open := true
			f.Open = &open
		case gjson.False, gjson.Null:
			// the open flag only exists while a session is unresolved
		default:
			return f, fmt.Errorf("open: %w", ErrInvalidField)
		}
		f.Present |= types.FieldOpen
	}

	if v := raw.Get("servedBy"); v.Exists() {
		switch {
		case v.Type == gjson.Null:
		case v.IsObject():
			id := v.Get("_id")
			if !id.Exists() {
				id = v.Get("id")
			}
			f.ServedBy = &types.ServedBy{ID: id.String(), Username: v.Get("username").String()}
		default:
			return f, fmt.Errorf("servedBy: %w", ErrInvalidField)
		}
		f.Present |= types.FieldServedBy
	}

	if v := raw.Get("departmentId"); v.Exists() {
		switch v.Type {
		case gjson.String:
			f.DepartmentID = v.Str
		case gjson.Null:
		default:
			return f, fmt.Errorf("departmentId: %w", ErrInvalidField)
		}
		f.Present |= types.FieldDepartmentID
	}

	if v := raw.Get("metrics"); v.Exists() {
		switch {
		case v.Type == gjson.Null:
		case v.IsObject():
			m, err := parseMetrics(v)
			if err != nil {
				return f, fmt.Errorf("metrics: %w", err)
			}
			f.Metrics = m
		default:
			return f, fmt.Errorf("metrics: %w", ErrInvalidField)
		}
		f.Present |= types.FieldMetrics
	}

	return f, nil
}

func parseMetrics(v gjson.Result) (*types.SessionMetrics, error) {
	var m types.SessionMetrics
	var err error

	if m.Reaction, err = parseTiming(v.Get("reaction")); err != nil {
		return nil, fmt.Errorf("reaction: %w", err)
	}
	if m.Response, err = parseTiming(v.Get("response")); err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}
	if m.ChatDuration, err = parseTiming(v.Get("chatDuration")); err != nil {
		return nil, fmt.Errorf("chatDuration: %w", err)
	}
	return &m, nil
}

// parseTiming accepts a bare number (a single sample) or {"avg","longest"}
func parseTiming(v gjson.Result) (*types.Timing, error) {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return nil, nil
	case v.Type == gjson.Number:
		return &types.Timing{Avg: v.Num, Longest: v.Num}, nil
	case v.IsObject():
		avg, longest := v.Get("avg"), v.Get("longest")
		if avg.Type != gjson.Number {
			return nil, ErrInvalidField
		}
		t := &types.Timing{Avg: avg.Num, Longest: avg.Num}
		if longest.Exists() {
			if longest.Type != gjson.Number {
				return nil, ErrInvalidField
			}
			t.Longest = longest.Num
		}
		return t, nil
	default:
		return nil, ErrInvalidField
	}
}

// parseTime accepts RFC 3339 strings, unix milliseconds and {"$date": ms}
func parseTime(v gjson.Result) (time.Time, error) {
	switch {
	case v.Type == gjson.Null:
		return time.Time{}, nil
	case v.Type == gjson.String:
		ts, err := time.Parse(time.RFC3339Nano, v.Str)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidField, err)
		}
		return ts, nil
	case v.Type == gjson.Number:
		return time.UnixMilli(v.Int()), nil
	case v.IsObject() && v.Get("$date").Type == gjson.Number:
		return time.UnixMilli(v.Get("$date").Int()), nil
	default:
		return time.Time{}, ErrInvalidField
	}
}

// DecodeAgents decodes agent notifications
func DecodeAgents(body []byte) ([]types.AgentChange, error) {
	items, err := parse(body)
	if err != nil {
		return nil, err
	}

	var errs []error
	changes := make([]types.AgentChange, 0, len(items))
	for i, n := range items {
		var f types.AgentFields
		if v := n.fields.Get("username"); v.Exists() {
			if v.Type != gjson.String && v.Type != gjson.Null {
				errs = append(errs, fmt.Errorf("notification %d (%s): username: %w", i, n.id, ErrInvalidField))
				continue
			}
			f.Present |= types.FieldUsername
			f.Username = v.String()
		}
		if v := n.fields.Get("status"); v.Exists() {
			if v.Type != gjson.String && v.Type != gjson.Null {
				errs = append(errs, fmt.Errorf("notification %d (%s): status: %w", i, n.id, ErrInvalidField))
				continue
			}
			f.Present |= types.FieldStatus
			f.Status = types.AgentStatus(v.String()).Normalize()
		}
		changes = append(changes, types.AgentChange{Kind: n.kind, ID: n.id, Fields: f})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return changes, nil
}

// DecodeDepartments decodes department notifications
func DecodeDepartments(body []byte) ([]types.DepartmentChange, error) {
	items, err := parse(body)
	if err != nil {
		return nil, err
	}

	var errs []error
	changes := make([]types.DepartmentChange, 0, len(items))
	for i, n := range items {
		var f types.DepartmentFields
		if v := n.fields.Get("name"); v.Exists() {
			if v.Type != gjson.String && v.Type != gjson.Null {
				errs = append(errs, fmt.Errorf("notification %d (%s): name: %w", i, n.id, ErrInvalidField))
				continue
			}
			f.Present |= types.FieldName
			f.Name = v.String()
		}
		changes = append(changes, types.DepartmentChange{Kind: n.kind, ID: n.id, Fields: f})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return changes, nil
}
