package handlers

import (
	"github.com/abricot-app/abricot/internal/services"
	"github.com/abricot-app/abricot/internal/utils"
	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateProject(ctx *gin.Context) {
	var body services.CreateProjectInput
	if !bindJSON(ctx, &body) {
		return
	}

	project, err := h.projects.Create(ctx.Request.Context(), utils.GetCurrentUserID(ctx), body)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	utils.Created(ctx, "Project created", project)
}

func (h *Handler) ListProjects(ctx *gin.Context) {
	projects, err := h.projects.List(ctx.Request.Context(), utils.GetCurrentUserID(ctx))
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	utils.OK(ctx, "Projects", projects)
}

func (h *Handler) GetProject(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id")
	if !ok {
		return
	}

	project, err := h.projects.Get(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0])
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	utils.OK(ctx, "Project", project)
}

func (h *Handler) UpdateProject(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id")
	if !ok {
		return
	}
	var body services.UpdateProjectInput
	if !bindJSON(ctx, &body) {
		return
	}

	project, err := h.projects.Update(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0], body)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	h.refresh(p[0], "project")
	utils.OK(ctx, "Project updated", project)
}

func (h *Handler) DeleteProject(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id")
	if !ok {
		return
	}

	if err := h.projects.Delete(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0]); err != nil {
		utils.RespondError(ctx, err)
		return
	}

	h.refresh(p[0], "project")
	utils.OK(ctx, "Project deleted", nil)
}

func (h *Handler) AddMember(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id")
	if !ok {
		return
	}
	var body services.AddMemberInput
	if !bindJSON(ctx, &body) {
		return
	}

	member, err := h.projects.AddMember(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0], body)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	h.refresh(p[0], "members")
	utils.Created(ctx, "Member added", member)
}

func (h *Handler) UpdateMember(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id", "user_id")
	if !ok {
		return
	}
	var body services.UpdateMemberInput
	if !bindJSON(ctx, &body) {
		return
	}

	member, err := h.projects.UpdateMemberRole(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0], p[1], body)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	h.refresh(p[0], "members")
	utils.OK(ctx, "Member updated", member)
}

func (h *Handler) RemoveMember(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id", "user_id")
	if !ok {
		return
	}

	if err := h.projects.RemoveMember(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0], p[1]); err != nil {
		utils.RespondError(ctx, err)
		return
	}

	h.refresh(p[0], "members")
	utils.OK(ctx, "Member removed", nil)
}
