package middleware

import (
	"context"
	"strings"

	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/abricot-app/abricot/internal/auth"
	"github.com/abricot-app/abricot/internal/models"
	"github.com/abricot-app/abricot/internal/types"
	"github.com/abricot-app/abricot/internal/utils"
	"github.com/gin-gonic/gin"
)

// UserLoader resolves the account behind a verified token.
type UserLoader interface {
	Get(ctx context.Context, userID uint) (*models.User, error)
}

// AuthMiddleware accepts the session cookie or, failing that, a Bearer token.
func AuthMiddleware(issuer *auth.Issuer, users UserLoader, cookieName string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString := tokenFromRequest(ctx, cookieName)
		if tokenString == "" {
			utils.AbortWithError(ctx, apperr.Unauthenticated("Authentication required"))
			return
		}

		claims, err := issuer.VerifyJWT(tokenString)
		if err != nil {
			utils.AbortWithError(ctx, apperr.Unauthenticated("Invalid or expired token"))
			return
		}

		user, err := users.Get(ctx.Request.Context(), claims.UserID)
		if err != nil {
			utils.AbortWithError(ctx, err)
			return
		}

		ctx.Set(types.ContextUserKey, types.UserResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
		})
		ctx.Next()
	}
}

func tokenFromRequest(ctx *gin.Context, cookieName string) string {
	if cookie, err := ctx.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}

	parts := strings.SplitN(ctx.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
