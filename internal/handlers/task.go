package handlers

import (
	"github.com/abricot-app/abricot/internal/services"
	"github.com/abricot-app/abricot/internal/types"
	"github.com/abricot-app/abricot/internal/utils"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListTasks(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id")
	if !ok {
		return
	}
	assigneeID, err := utils.QueryID(ctx, "assignee_id")
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	filter := services.TaskFilter{
		Status:     types.TaskStatus(ctx.Query("status")),
		Priority:   types.TaskPriority(ctx.Query("priority")),
		AssigneeID: assigneeID,
		Search:     ctx.Query("q"),
	}

	tasks, err := h.tasks.List(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0], filter)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	utils.OK(ctx, "Tasks", tasks)
}

func (h *Handler) ListMyTasks(ctx *gin.Context) {
	tasks, err := h.tasks.ListMine(ctx.Request.Context(), utils.GetCurrentUserID(ctx))
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	utils.OK(ctx, "Tasks", tasks)
}

func (h *Handler) GetTask(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id", "task_id")
	if !ok {
		return
	}

	task, err := h.tasks.Get(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0], p[1])
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	utils.OK(ctx, "Task", task)
}

func (h *Handler) CreateTask(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id")
	if !ok {
		return
	}
	var body services.CreateTaskInput
	if !bindJSON(ctx, &body) {
		return
	}

	task, err := h.tasks.Create(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0], body)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	h.refresh(p[0], "tasks")
	utils.Created(ctx, "Task created", task)
}

func (h *Handler) GenerateTask(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id")
	if !ok {
		return
	}
	var body services.GenerateTaskInput
	if !bindJSON(ctx, &body) {
		return
	}

	task, err := h.generator.Generate(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0], body)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	h.refresh(p[0], "tasks")
	utils.Created(ctx, "Task generated", task)
}

func (h *Handler) UpdateTask(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id", "task_id")
	if !ok {
		return
	}
	var body services.UpdateTaskInput
	if !bindJSON(ctx, &body) {
		return
	}

	task, err := h.tasks.Update(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0], p[1], body)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	h.refresh(p[0], "tasks")
	utils.OK(ctx, "Task updated", task)
}

func (h *Handler) DeleteTask(ctx *gin.Context) {
	p, ok := ids(ctx, "project_id", "task_id")
	if !ok {
		return
	}

	if err := h.tasks.Delete(ctx.Request.Context(), utils.GetCurrentUserID(ctx), p[0], p[1]); err != nil {
		utils.RespondError(ctx, err)
		return
	}

	h.refresh(p[0], "tasks")
	utils.OK(ctx, "Task deleted", nil)
}
