package ingestion

import (
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/livechat/internal/types"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestDecodeSessions(t *testing.T) {
	ts := time.Date(2024, 3, 5, 10, 15, 0, 0, time.UTC)

	tests := []struct {
		name string
		body string
		want []types.SessionChange
	}{
		{
			name: "added with every field",
			body: `{"op":"added","id":"s1","fields":{
				"ts":"2024-03-05T10:15:00Z","open":true,
				"servedBy":{"_id":"u1","username":"alice"},"departmentId":"D1"}}`,
			want: []types.SessionChange{{
				Kind: types.ChangeAdded,
				ID:   "s1",
				Fields: types.SessionFields{
					Present:      types.FieldTS | types.FieldOpen | types.FieldServedBy | types.FieldDepartmentID,
					TS:           ts,
					Open:         boolPtr(true),
					ServedBy:     &types.ServedBy{ID: "u1", Username: "alice"},
					DepartmentID: "D1",
				},
			}},
		},
		{
			name: "metrics as numbers and objects",
			body: `[{"op":"changed","id":"s1","fields":{"metrics":{
				"reaction":{"avg":5,"longest":9},"response":2,"chatDuration":{"avg":30}}}}]`,
			want: []types.SessionChange{{
				Kind: types.ChangeChanged,
				ID:   "s1",
				Fields: types.SessionFields{
					Present: types.FieldMetrics,
					Metrics: &types.SessionMetrics{
						Reaction:     &types.Timing{Avg: 5, Longest: 9},
						Response:     &types.Timing{Avg: 2, Longest: 2},
						ChatDuration: &types.Timing{Avg: 30, Longest: 30},
					},
				},
			}},
		},
		{
			name: "null clears",
			body: `{"op":"changed","id":"s1","fields":{"open":null,"servedBy":null,"departmentId":null}}`,
			want: []types.SessionChange{{
				Kind: types.ChangeChanged,
				ID:   "s1",
				Fields: types.SessionFields{
					Present: types.FieldOpen | types.FieldServedBy | types.FieldDepartmentID,
				},
			}},
		},
		{
			name: "epoch millis timestamps",
			body: `[{"op":"added","id":"a","fields":{"ts":1709633700000}},
				{"op":"added","id":"b","fields":{"ts":{"$date":1709633700000}}}]`,
			want: []types.SessionChange{
				{Kind: types.ChangeAdded, ID: "a", Fields: types.SessionFields{Present: types.FieldTS, TS: time.UnixMilli(1709633700000)}},
				{Kind: types.ChangeAdded, ID: "b", Fields: types.SessionFields{Present: types.FieldTS, TS: time.UnixMilli(1709633700000)}},
			},
		},
		{
			name: "removal without fields",
			body: `{"op":"removed","id":"s1"}`,
			want: []types.SessionChange{{Kind: types.ChangeRemoved, ID: "s1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSessions([]byte(tt.body))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeSessions() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeSessionsOpenFalseClears(t *testing.T) {
	got, err := DecodeSessions([]byte(`{"op":"changed","id":"s1","fields":{"open":false}}`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Fields.Has(types.FieldOpen))
	assert.Nil(t, got[0].Fields.Open)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"not json", `{op:`, ErrInvalidPayload},
		{"scalar body", `42`, ErrInvalidPayload},
		{"unknown op", `{"op":"upserted","id":"s1"}`, ErrInvalidOp},
		{"missing op", `{"id":"s1"}`, ErrInvalidOp},
		{"missing id", `{"op":"added"}`, ErrMissingID},
		{"numeric id", `{"op":"added","id":7}`, ErrMissingID},
		{"fields not object", `{"op":"added","id":"s1","fields":[1]}`, ErrInvalidField},
		{"bad ts", `{"op":"added","id":"s1","fields":{"ts":"yesterday"}}`, ErrInvalidField},
		{"bad open", `{"op":"added","id":"s1","fields":{"open":"yes"}}`, ErrInvalidField},
		{"bad timing", `{"op":"changed","id":"s1","fields":{"metrics":{"reaction":"fast"}}}`, ErrInvalidField},
		{"bad servedBy", `{"op":"changed","id":"s1","fields":{"servedBy":"alice"}}`, ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSessions([]byte(tt.body))
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, got)
		})
	}
}

func TestDecodeBatchIsAllOrNothing(t *testing.T) {
	body := `[{"op":"added","id":"ok"},{"op":"bogus","id":"bad"},{"op":"added"}]`

	got, err := DecodeSessions([]byte(body))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidOp)
	assert.ErrorIs(t, err, ErrMissingID)
	assert.Nil(t, got)
}

func TestDecodeAgents(t *testing.T) {
	body := `[
		{"op":"added","id":"a1","fields":{"username":"alice","status":"online"}},
		{"op":"changed","id":"a1","fields":{"status":"invisible"}},
		{"op":"removed","id":"a2"}
	]`

	got, err := DecodeAgents([]byte(body))
	require.NoError(t, err)

	want := []types.AgentChange{
		{Kind: types.ChangeAdded, ID: "a1", Fields: types.AgentFields{
			Present: types.FieldUsername | types.FieldStatus, Username: "alice", Status: types.StatusOnline,
		}},
		{Kind: types.ChangeChanged, ID: "a1", Fields: types.AgentFields{
			Present: types.FieldStatus, Status: types.StatusOffline,
		}},
		{Kind: types.ChangeRemoved, ID: "a2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DecodeAgents() mismatch (-want +got):\n%s", diff)
	}

	_, err = DecodeAgents([]byte(`{"op":"added","id":"a1","fields":{"status":3}}`))
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestDecodeDepartments(t *testing.T) {
	got, err := DecodeDepartments([]byte(`{"op":"added","id":"D1","fields":{"name":"Sales"}}`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.DepartmentChange{
		Kind:   types.ChangeAdded,
		ID:     "D1",
		Fields: types.DepartmentFields{Present: types.FieldName, Name: "Sales"},
	}, got[0])

	_, err = DecodeDepartments([]byte(`{"op":"added","id":"D1","fields":{"name":{"en":"Sales"}}}`))
	assert.ErrorIs(t, err, ErrInvalidField)
}
