package handlers

import (
	"github.com/abricot-app/abricot/internal/services"
	"github.com/abricot-app/abricot/internal/utils"
	"github.com/gin-gonic/gin"
)

func (h *Handler) Register(ctx *gin.Context) {
	var body services.RegisterInput
	if !bindJSON(ctx, &body) {
		return
	}

	session, err := h.users.Register(ctx.Request.Context(), body)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	h.setSessionCookie(ctx, session.Token, int(h.tokenTTL.Seconds()))
	utils.Created(ctx, "Account created", session)
}

func (h *Handler) Login(ctx *gin.Context) {
	var body services.LoginInput
	if !bindJSON(ctx, &body) {
		return
	}

	session, err := h.users.Login(ctx.Request.Context(), body)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	h.setSessionCookie(ctx, session.Token, int(h.tokenTTL.Seconds()))
	utils.OK(ctx, "Logged in", session)
}

// Logout clears the session cookie. Tokens are stateless, so there is nothing to revoke.
func (h *Handler) Logout(ctx *gin.Context) {
	h.setSessionCookie(ctx, "", -1)
	utils.OK(ctx, "Logged out", nil)
}

func (h *Handler) Me(ctx *gin.Context) {
	user, err := utils.GetCurrentUser(ctx)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	utils.OK(ctx, "Current user", gin.H{"user": user})
}

func (h *Handler) UpdateProfile(ctx *gin.Context) {
	var body services.UpdateProfileInput
	if !bindJSON(ctx, &body) {
		return
	}

	user, err := h.users.UpdateProfile(ctx.Request.Context(), utils.GetCurrentUserID(ctx), body)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	utils.OK(ctx, "Profile updated", gin.H{"user": user})
}

func (h *Handler) ChangePassword(ctx *gin.Context) {
	var body services.ChangePasswordInput
	if !bindJSON(ctx, &body) {
		return
	}

	if err := h.users.ChangePassword(ctx.Request.Context(), utils.GetCurrentUserID(ctx), body); err != nil {
		utils.RespondError(ctx, err)
		return
	}

	utils.OK(ctx, "Password changed", nil)
}

func (h *Handler) SearchUsers(ctx *gin.Context) {
	users, err := h.users.Search(ctx.Request.Context(), utils.GetCurrentUserID(ctx), ctx.Query("q"))
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	utils.OK(ctx, "Users", users)
}
