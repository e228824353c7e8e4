package utils

import (
	"strconv"

	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/abricot-app/abricot/internal/types"
	"github.com/gin-gonic/gin"
)

// GetCurrentUser returns the user stored by the auth middleware.
func GetCurrentUser(ctx *gin.Context) (types.UserResponse, error) {
	user, exists := ctx.Get(types.ContextUserKey)
	if !exists {
		return types.UserResponse{}, apperr.Unauthenticated("")
	}

	authenticatedUser, ok := user.(types.UserResponse)
	if !ok {
		return types.UserResponse{}, apperr.Unauthenticated("")
	}

	return authenticatedUser, nil
}

// GetCurrentUserID returns 0 when no user is attached; services treat that as unauthenticated.
func GetCurrentUserID(ctx *gin.Context) uint {
	user, err := GetCurrentUser(ctx)
	if err != nil {
		return 0
	}
	return user.ID
}

// ParamID parses a positive integer path parameter.
func ParamID(ctx *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.InvalidField(name, "must be a positive integer")
	}
	return uint(id), nil
}

// QueryID parses an optional positive integer query parameter; absent is 0.
func QueryID(ctx *gin.Context, name string) (uint, error) {
	raw := ctx.Query(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.InvalidField(name, "must be a positive integer")
	}
	return uint(id), nil
}
