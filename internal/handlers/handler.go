package handlers

import (
	"net/http"
	"time"

	"github.com/abricot-app/abricot/internal/config"
	"github.com/abricot-app/abricot/internal/permissions"
	"github.com/abricot-app/abricot/internal/realtime"
	"github.com/abricot-app/abricot/internal/services"
	"github.com/abricot-app/abricot/internal/utils"
	"github.com/abricot-app/abricot/internal/validation"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	users     *services.UserService
	projects  *services.ProjectService
	tasks     *services.TaskService
	comments  *services.CommentService
	generator *services.TaskGenerator
	perms     *permissions.Checker
	hub       *realtime.Hub
	cookie    config.CookieConfig
	tokenTTL  time.Duration
}

type Deps struct {
	Users     *services.UserService
	Projects  *services.ProjectService
	Tasks     *services.TaskService
	Comments  *services.CommentService
	Generator *services.TaskGenerator
	Perms     *permissions.Checker
	Hub       *realtime.Hub
	Cookie    config.CookieConfig
	TokenTTL  time.Duration
}

func New(d Deps) *Handler {
	return &Handler{
		users:     d.Users,
		projects:  d.Projects,
		tasks:     d.Tasks,
		comments:  d.Comments,
		generator: d.Generator,
		perms:     d.Perms,
		hub:       d.Hub,
		cookie:    d.Cookie,
		tokenTTL:  d.TokenTTL,
	}
}

// bindJSON decodes the body into dst and answers 400 on failure.
func bindJSON(ctx *gin.Context, dst any) bool {
	if err := ctx.ShouldBindJSON(dst); err != nil {
		utils.RespondError(ctx, validation.DecodeError(err))
		return false
	}
	return true
}

// ids parses the named path parameters in order, answering 400 on the first bad one.
func ids(ctx *gin.Context, names ...string) ([]uint, bool) {
	out := make([]uint, 0, len(names))
	for _, name := range names {
		id, err := utils.ParamID(ctx, name)
		if err != nil {
			utils.RespondError(ctx, err)
			return nil, false
		}
		out = append(out, id)
	}
	return out, true
}

func (h *Handler) refresh(projectID uint, resource string) {
	if h.hub != nil {
		h.hub.BroadcastRefresh(projectID, resource)
	}
}

func (h *Handler) setSessionCookie(ctx *gin.Context, token string, maxAge int) {
	sameSite := http.SameSiteLaxMode
	if h.cookie.Secure {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   maxAge,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: sameSite,
	})
}
