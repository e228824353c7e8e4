package utils

import (
	"errors"
	"net/http"
	"testing"

	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/stretchr/testify/assert"
)

func TestErrorResponse(t *testing.T) {
	resp := ErrorResponse(apperr.Forbidden("Only the author can edit this comment"))
	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", resp.Code)
	assert.Equal(t, "Only the author can edit this comment", resp.Error)

	resp = ErrorResponse(errors.New("pq: relation does not exist"))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal server error", resp.Error)

	resp = ErrorResponse(apperr.InvalidField("title", "title is required"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apperr.FieldErrors{"title": {"title is required"}}, resp.Errors)
}
