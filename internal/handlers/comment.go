package handlers

import (
	"github.com/abricot-app/abricot/internal/services"
	"github.com/abricot-app/abricot/internal/utils"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListComments(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id", "task_id")
	if !ok {
		return
	}

	comments, err := h.comments.List(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0], p[1])
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	utils.OK(ctx, "Comments", comments)
}

func (h *Handler) CreateComment(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id", "task_id")
	if !ok {
		return
	}
	var body services.CommentInput
	if !bindJSON(ctx, &body) {
		return
	}

	comment, err := h.comments.Create(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0], p[1], body)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	h.refresh(p[0], "comments")
	utils.Created(ctx, "Comment added", comment)
}

func (h *Handler) UpdateComment(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id", "task_id", "comment_id")
	if !ok {
		return
	}
	var body services.CommentInput
	if !bindJSON(ctx, &body) {
		return
	}

	comment, err := h.comments.Update(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0], p[1], p[2], body)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	h.refresh(p[0], "comments")
	utils.OK(ctx, "Comment updated", comment)
}

func (h *Handler) DeleteComment(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id", "task_id", "comment_id")
	if !ok {
		return
	}

	if err := h.comments.Delete(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0], p[1], p[2]); err != nil {
		utils.RespondError(ctx, err)
		return
	}

	h.refresh(p[0], "comments")
	utils.OK(ctx, "Comment deleted", nil)
}
