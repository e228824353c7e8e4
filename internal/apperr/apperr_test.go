package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
	}{
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindValidation, http.StatusBadRequest},
		{KindConflict, http.StatusConflict},
		{KindUpstream, http.StatusBadGateway},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.kind.HTTPStatus())
		})
	}
}

func TestFrom(t *testing.T) {
	cause := errors.New("connection refused")

	internal := From(cause)
	assert.Equal(t, KindInternal, internal.Kind)
	assert.Equal(t, "Internal server error", internal.Message)
	assert.ErrorIs(t, internal, cause)

	wrapped := fmt.Errorf("loading task: %w", NotFound("Task not found"))
	assert.Equal(t, KindNotFound, From(wrapped).Kind)
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindForbidden))

	assert.Nil(t, From(nil))
}

func TestInvalidField(t *testing.T) {
	err := InvalidField("assignee_ids", "unknown user ids")
	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, FieldErrors{"assignee_ids": {"unknown user ids"}}, err.Fields)
}
