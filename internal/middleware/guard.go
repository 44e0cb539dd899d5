package middleware

import (
	"net/http"
	"net/url"
	"slices"

	"github.com/gin-gonic/gin"

	"admin-console/internal/models"
	"admin-console/internal/session"
)

type Action int

const (
	ActionRender Action = iota
	ActionPlaceholder
	ActionRedirectLogin
	ActionRedirectLanding
)

type Decision struct {
	Action   Action
	Location string
}

// Guard decides whether a navigation may render.
type Guard struct {
	LoginPath   string
	LandingPath string
}

// HasAccess reports whether user passes the allow-list. A nil list admits any
// signed-in user. Superusers and the admin role pass every list.
func HasAccess(user *models.Staff, allowed []string) bool {
	if user == nil {
		return false
	}
	if allowed == nil {
		return true
	}
	// Admins pass allow-lists that do not name them.
	if user.IsSuperuser || user.Role == models.RoleAdmin {
		return true
	}
	return slices.Contains(allowed, user.Role)
}

// Decide applies the guard to a navigation to target.
func (g Guard) Decide(state session.State, target string, allowed []string) Decision {
	switch {
	case state.Loading:
		return Decision{Action: ActionPlaceholder}
	case !state.IsAuthenticated():
		return Decision{Action: ActionRedirectLogin, Location: g.LoginPath + "?next=" + url.QueryEscape(target)}
	case !HasAccess(state.CurrentUser, allowed):
		return Decision{Action: ActionRedirectLanding, Location: g.LandingPath}
	default:
		return Decision{Action: ActionRender}
	}
}

// RequireAuth guards the routes below it. With no roles any signed-in user is
// admitted.
func (g Guard) RequireAuth(roles ...string) gin.HandlerFunc {
	var allowed []string
	if len(roles) > 0 {
		allowed = roles
	}
	return func(c *gin.Context) {
		m := SessionManager(c)
		if m == nil {
			abortWith(c, http.StatusInternalServerError, "Session middleware is not installed")
			return
		}
		state := m.State()

		d := g.Decide(state, c.Request.URL.RequestURI(), allowed)
		switch d.Action {
		case ActionPlaceholder:
			c.Header("Retry-After", "1")
			abortWith(c, http.StatusServiceUnavailable, "Loading...")
		case ActionRedirectLogin, ActionRedirectLanding:
			redirect(c, d.Location)
		default:
			c.Set("current_user", state.CurrentUser)
			c.Set("username", state.CurrentUser.Username)
			c.Set("role", state.CurrentUser.Role)
			c.Next()
		}
	}
}

// CurrentUser returns the user RequireAuth admitted.
func CurrentUser(c *gin.Context) *models.Staff {
	v, ok := c.Get("current_user")
	if !ok {
		return nil
	}
	u, _ := v.(*models.Staff)
	return u
}

func redirect(c *gin.Context, location string) {
	status := http.StatusFound
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		status = http.StatusSeeOther
	}
	c.Redirect(status, location)
	c.Abort()
}
