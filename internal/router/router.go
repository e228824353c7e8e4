package router

import (
	"time"

	"github.com/abricot-app/abricot/internal/handlers"
	"github.com/abricot-app/abricot/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter mounts every endpoint under /api. requireAuth guards all routes
// except health, register, login and logout.
func NewRouter(h *handlers.Handler, requireAuth gin.HandlerFunc, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)
		api.GET("/ws/:project_id", requireAuth, h.WebSocket)

		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
			auth.POST("/logout", h.Logout)
			auth.GET("/me", requireAuth, h.Me)
			auth.PATCH("/me", requireAuth, h.UpdateProfile)
			auth.PUT("/password", requireAuth, h.ChangePassword)
		}

		api.GET("/users/search", requireAuth, h.SearchUsers)
		api.GET("/tasks/mine", requireAuth, h.ListMyTasks)

		projects := api.Group("/projects", requireAuth)
		{
			projects.POST("", h.CreateProject)
			projects.GET("", h.ListProjects)
			projects.GET("/:project_id", h.GetProject)
			projects.PATCH("/:project_id", h.UpdateProject)
			projects.DELETE("/:project_id", h.DeleteProject)

			projects.POST("/:project_id/members", h.AddMember)
			projects.PATCH("/:project_id/members/:user_id", h.UpdateMember)
			projects.DELETE("/:project_id/members/:user_id", h.RemoveMember)

			projects.GET("/:project_id/tasks", h.ListTasks)
			projects.POST("/:project_id/tasks", h.CreateTask)
			projects.POST("/:project_id/tasks/generate", h.GenerateTask)
			projects.GET("/:project_id/tasks/:task_id", h.GetTask)
			projects.PATCH("/:project_id/tasks/:task_id", h.UpdateTask)
			projects.DELETE("/:project_id/tasks/:task_id", h.DeleteTask)

			projects.GET("/:project_id/tasks/:task_id/comments", h.ListComments)
			projects.POST("/:project_id/tasks/:task_id/comments", h.CreateComment)
			projects.PATCH("/:project_id/tasks/:task_id/comments/:comment_id", h.UpdateComment)
			projects.DELETE("/:project_id/tasks/:task_id/comments/:comment_id", h.DeleteComment)
		}
	}

	return r
}
