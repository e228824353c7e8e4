package handlers

import (
	"time"

	"github.com/abricot-app/abricot/internal/utils"
	"github.com/gin-gonic/gin"
)

func HealthCheck(ctx *gin.Context) {
	utils.OK(ctx, "Abricot is running", gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
