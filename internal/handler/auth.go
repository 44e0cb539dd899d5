package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"admin-console/internal/api_client"
	"admin-console/internal/cache"
	"admin-console/internal/middleware"
	"admin-console/internal/models"
	"admin-console/internal/resources"
	"admin-console/internal/web"
)

type AuthHandler interface {
	LoginPage(c *gin.Context)
	Login(c *gin.Context)
	Logout(c *gin.Context)
	PasswordPage(c *gin.Context)
	ChangeOwnPassword(c *gin.Context)
}

// Authenticator exchanges credentials for tokens; *api_client.Client
// implements it.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*models.TokenPair, error)
}

type authHandler struct {
	base
	auth  Authenticator
	staff *resources.Staff
	cache cache.Cache
}

func NewAuthHandler(auth Authenticator, staff *resources.Staff, c cache.Cache, guard middleware.Guard, notifier Notifier, logger *zap.Logger) AuthHandler {
	return &authHandler{
		base:  base{guard: guard, notifier: notifier, logger: logger},
		auth:  auth,
		staff: staff,
		cache: c,
	}
}

type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// safeNext keeps post-login redirects on this site.
func (h *authHandler) safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") ||
		strings.HasPrefix(next, h.guard.LoginPath) {
		return h.guard.LandingPath
	}
	return next
}

func (h *authHandler) loginPage(c *gin.Context, username string, errs map[string]string) web.Page {
	action := h.guard.LoginPath
	if next := c.Query("next"); next != "" {
		action += "?next=" + url.QueryEscape(next)
	}
	return web.Page{
		Layout: web.NewLayout("Sign in", "login", nil, false),
		Form: &web.Form{
			Action: action,
			Fields: []web.FormField{
				{Name: "username", Label: "Username", Type: "text", Value: username, Required: true},
				{Name: "password", Label: "Password", Type: "password", Required: true},
			},
			Submit: "Sign in",
			Errors: errs,
		},
	}
}

// LoginPage handles GET /login
func (h *authHandler) LoginPage(c *gin.Context) {
	if middleware.SessionManager(c).State().IsAuthenticated() {
		c.Redirect(http.StatusFound, h.safeNext(c.Query("next")))
		return
	}
	render(c, http.StatusOK, "login.html", h.loginPage(c, "", nil), gin.H{"authenticated": false})
}

// Login handles POST /login
func (h *authHandler) Login(c *gin.Context) {
	m := middleware.SessionManager(c)
	ctx := c.Request.Context()

	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		errs := formErrors(&req, err)
		page := h.loginPage(c, req.Username, errs)
		page.Error = formErrorSummary(errs)
		render(c, http.StatusBadRequest, "login.html", page, gin.H{"error": page.Error, "fields": errs})
		return
	}

	pair, err := h.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		page := h.loginPage(c, req.Username, nil)
		if api_client.IsUnauthorized(err) {
			h.logger.Info("Sign-in rejected", zap.String("username", req.Username))
			page.Error = "Invalid username or password."
			render(c, http.StatusUnauthorized, "login.html", page, gin.H{"error": page.Error})
			return
		}
		h.fail(c, "login.html", page, err)
		return
	}

	// A signed-in session never keeps the id it had before sign-in.
	previous := m.ID()
	m = middleware.RotateSession(c)
	if err := h.cache.Purge(ctx, previous); err != nil {
		h.logger.Warn("Failed to purge session cache", zap.Error(err))
	}
	state, err := m.Login(ctx, pair.Access, pair.Refresh)
	if err != nil || !state.IsAuthenticated() {
		page := h.loginPage(c, req.Username, nil)
		page.Error = "Signed in, but your profile could not be loaded. Please try again."
		render(c, http.StatusBadGateway, "login.html", page, gin.H{"error": page.Error})
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": state.CurrentUser})
		return
	}
	c.Redirect(http.StatusSeeOther, h.safeNext(c.Query("next")))
}

// Logout handles POST /logout
func (h *authHandler) Logout(c *gin.Context) {
	m := middleware.SessionManager(c)
	ctx := c.Request.Context()
	if err := m.Logout(ctx); err != nil {
		h.logger.Error("Failed to sign out", zap.Error(err))
	}
	if err := h.cache.Purge(ctx, m.ID()); err != nil {
		h.logger.Warn("Failed to purge session cache", zap.Error(err))
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.Redirect(http.StatusSeeOther, h.guard.LoginPath)
}

// PasswordPage handles GET /profile/password
func (h *authHandler) PasswordPage(c *gin.Context) {
	page := web.Page{Layout: h.layout(c, "Change password", "profile"), Form: passwordForm("/profile/password", "", nil)}
	render(c, http.StatusOK, "form.html", page, gin.H{"fields": []string{"new_password", "confirm_password"}})
}

// ChangeOwnPassword handles POST /profile/password
func (h *authHandler) ChangeOwnPassword(c *gin.Context) {
	page := web.Page{Layout: h.layout(c, "Change password", "profile")}

	var req PasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		errs := formErrors(&req, err)
		page.Form = passwordForm("/profile/password", "", errs)
		page.Error = formErrorSummary(errs)
		render(c, http.StatusBadRequest, "form.html", page, gin.H{"error": page.Error, "fields": errs})
		return
	}

	page.Form = passwordForm("/profile/password", "", nil)
	if err := h.staff.ChangeOwnPassword(c.Request.Context(), scope(c), req.Body()); err != nil {
		h.fail(c, "form.html", page, err)
		return
	}
	h.audit(c, "changed own password", c.GetString("username"))
	done(c, http.StatusOK, "/profile/password", "password", gin.H{"detail": "Password changed."})
}
