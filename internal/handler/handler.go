// Package handler serves the console pages. Every page negotiates between
// HTML for browsers and JSON for API clients.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"admin-console/internal/api_client"
	"admin-console/internal/middleware"
	"admin-console/internal/models"
	"admin-console/internal/resource"
	"admin-console/internal/telegram_bot"
	"admin-console/internal/web"
)

// StaffRoles is the allow-list for staff management.
var StaffRoles = []string{models.RoleAdmin}

// Notifier receives an event after each confirmed change.
type Notifier interface {
	Notify(e telegram_bot.Event)
}

var notices = map[string]string{
	"created":  "Created successfully.",
	"updated":  "Changes saved.",
	"deleted":  "Deleted.",
	"password": "Password changed.",
	"toggled":  "Status changed.",
	"read":     "Marked as read.",
}

type base struct {
	guard    middleware.Guard
	notifier Notifier
	logger   *zap.Logger
}

func (b base) layout(c *gin.Context, title, current string) web.Layout {
	user := middleware.CurrentUser(c)
	l := web.NewLayout(title, current, user, middleware.HasAccess(user, StaffRoles))
	l.Flash = notices[c.Query("notice")]
	return l
}

func scope(c *gin.Context) resource.Scope {
	return middleware.SessionManager(c).Scope()
}

func render(c *gin.Context, status int, name string, page web.Page, data any) {
	c.Negotiate(status, gin.Negotiate{
		Offered:  []string{gin.MIMEHTML, gin.MIMEJSON},
		HTMLName: name,
		HTMLData: page,
		JSONData: data,
	})
}

func wantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

// fail renders a backend failure inline on page. A rejected token sends the
// browser back to the login page instead.
func (b base) fail(c *gin.Context, name string, page web.Page, err error) {
	if api_client.IsUnauthorized(err) {
		if m := middleware.SessionManager(c); m != nil {
			m.Reconcile(c.Request.Context())
		}
		if !wantsJSON(c) {
			c.Redirect(http.StatusSeeOther, b.guard.LoginPath+"?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			return
		}
	}

	status := api_client.StatusCode(err)
	if status == 0 {
		status = http.StatusBadGateway
	}
	msg := api_client.ErrorMessage(err)
	if status >= http.StatusInternalServerError {
		b.logger.Error("Backend request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	} else {
		b.logger.Warn("Backend rejected request", zap.String("path", c.Request.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	page.Error = msg
	render(c, status, name, page, gin.H{"error": msg})
}

// done finishes a successful mutation: JSON clients get data, browsers are
// redirected to location with a notice.
func done(c *gin.Context, status int, location, notice string, data any) {
	if wantsJSON(c) {
		c.JSON(status, data)
		return
	}
	sep := "?"
	if strings.Contains(location, "?") {
		sep = "&"
	}
	c.Redirect(http.StatusSeeOther, location+sep+"notice="+notice)
}

func (b base) audit(c *gin.Context, action, target string) {
	actor := c.GetString("username")
	b.logger.Info("Console change", zap.String("actor", actor), zap.String("action", action), zap.String("target", target))
	if b.notifier != nil {
		b.notifier.Notify(telegram_bot.Event{Actor: actor, Action: action, Target: target})
	}
}

func listJSON[T any](res *models.ListResult[T], page int) gin.H {
	return gin.H{
		"count":        res.Total(),
		"page":         page,
		"has_next":     res.HasNext(),
		"has_previous": res.HasPrevious(),
		"results":      res.Items(),
	}
}

func pager[T any](c *gin.Context, res *models.ListResult[T], page int) web.Pager {
	return web.NewPager(c.Request.URL, page, res.Total(), res.HasPrevious(), res.HasNext())
}

func pageNumber(p int) int {
	if p < 1 {
		return 1
	}
	return p
}

var validationMessages = map[string]string{
	"required": "is required",
	"min":      "must be at least %s characters long",
	"max":      "must be no longer than %s characters",
	"gte":      "must be greater than or equal to %s",
	"oneof":    "must be one of %s",
	"numeric":  "must be a number",
	"eqfield":  "does not match",
}

// formErrors maps binding errors to form field names.
func formErrors(obj any, err error) map[string]string {
	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_"] = err.Error()
		return out
	}

	t := reflect.TypeOf(obj)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	for _, e := range verrs {
		name := e.StructField()
		if f, ok := t.FieldByName(e.StructField()); ok {
			if tag := strings.Split(f.Tag.Get("form"), ",")[0]; tag != "" && tag != "-" {
				name = tag
			}
		}
		msg, ok := validationMessages[e.Tag()]
		if !ok {
			msg = "is invalid"
		}
		if strings.Contains(msg, "%s") {
			msg = fmt.Sprintf(msg, e.Param())
		}
		out[name] = msg
	}
	return out
}

func formErrorSummary(errs map[string]string) string {
	if msg, ok := errs["_"]; ok {
		return msg
	}
	return "Please correct the highlighted fields."
}

// PasswordRequest is the password form; the backend only receives the new
// password.
type PasswordRequest struct {
	NewPassword     string `json:"new_password" form:"new_password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password" binding:"required,eqfield=NewPassword"`
}

func (r PasswordRequest) Body() models.ChangePassword {
	return models.ChangePassword{NewPassword: r.NewPassword}
}

func passwordForm(action, cancel string, errs map[string]string) *web.Form {
	return &web.Form{
		Action: action,
		Fields: []web.FormField{
			{Name: "new_password", Label: "New password", Type: "password", Required: true},
			{Name: "confirm_password", Label: "Confirm password", Type: "password", Required: true},
		},
		Submit: "Change password",
		Cancel: cancel,
		Errors: errs,
	}
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
