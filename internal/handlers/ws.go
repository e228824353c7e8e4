package handlers

import (
	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/abricot-app/abricot/internal/utils"
	"github.com/gin-gonic/gin"
)

// WebSocket subscribes a project participant to refresh events.
func (h *Handler) WebSocket(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id")
	if !ok {
		return
	}

	if !h.perms.HasAccess(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0]) {
		utils.RespondError(ctx, apperr.Forbidden("You do not have access to this project"))
		return
	}

	h.hub.ServeWS(ctx.Writer, ctx.Request, p[0])
}
