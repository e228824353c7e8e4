package validation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/abricot-app/abricot/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Title    string              `json:"title" validate:"notblank,max=5"`
	Status   types.TaskStatus    `json:"status" validate:"omitempty,task_status"`
	Priority *types.TaskPriority `json:"priority" validate:"omitempty,task_priority"`
	Due      *string             `json:"due_date" validate:"omitempty,date"`
	Role     types.Role          `json:"role" validate:"omitempty,member_role"`
	IDs      []uint              `json:"ids" validate:"omitempty,dive,gt=0"`
	Secret   string              `json:"secret" validate:"omitempty,maxbytes=4"`
}

func TestStruct(t *testing.T) {
	urgent := types.PriorityUrgent
	bogus := types.TaskPriority("SOON")
	empty := ""
	bad := "31/12/2026"

	tests := []struct {
		name   string
		input  sample
		fields []string
	}{
		{"valid", sample{Title: "ok", Status: types.StatusDone, Priority: &urgent, Role: types.RoleAdmin}, nil},
		{"empty date clears", sample{Title: "ok", Due: &empty}, nil},
		{"blank title", sample{Title: "  "}, []string{"title"}},
		{"long title", sample{Title: "toolong"}, []string{"title"}},
		{"bad enums", sample{Title: "ok", Status: "NOPE", Priority: &bogus, Role: types.RoleOwner}, []string{"status", "priority", "role"}},
		{"bad date", sample{Title: "ok", Due: &bad}, []string{"due_date"}},
		{"secret within bytes", sample{Title: "ok", Secret: "abcd"}, nil},
		{"multibyte secret over bytes", sample{Title: "ok", Secret: "ééé"}, []string{"secret"}},
		{"zero id", sample{Title: "ok", IDs: []uint{3, 0}}, []string{"ids[1]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.input)
			if tt.fields == nil {
				require.NoError(t, err)
				return
			}

			require.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
			fields := apperr.From(err).Fields
			for _, f := range tt.fields {
				assert.Contains(t, fields, f)
			}
			assert.Len(t, fields, len(tt.fields))
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-02-03")
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC).Equal(d))

	d, err = ParseDate("2026-02-03T10:00:00+02:00")
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC).Equal(d))

	_, err = ParseDate("tomorrow")
	assert.Error(t, err)
}

func TestDecodeError(t *testing.T) {
	var body struct {
		IDs []uint `json:"assignee_ids"`
	}
	err := json.Unmarshal([]byte(`{"assignee_ids": "all"}`), &body)
	require.Error(t, err)

	fields := apperr.From(DecodeError(err)).Fields
	assert.Equal(t, []string{"must be of type array"}, fields["assignee_ids"])

	err = json.Unmarshal([]byte(`{`), &body)
	require.Error(t, err)
	assert.Contains(t, apperr.From(DecodeError(err)).Fields, "body")
}
