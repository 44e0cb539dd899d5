package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"admin-console/internal/middleware"
	"admin-console/internal/models"
	"admin-console/internal/resources"
	"admin-console/internal/web"
)

type SettingsHandler interface {
	Get(c *gin.Context)
	Update(c *gin.Context)
}

type settingsHandler struct {
	base
	settings *resources.Settings
}

func NewSettingsHandler(settings *resources.Settings, guard middleware.Guard, notifier Notifier, logger *zap.Logger) SettingsHandler {
	return &settingsHandler{
		base:     base{guard: guard, notifier: notifier, logger: logger},
		settings: settings,
	}
}

func settingsForm(s models.AppSettings, errs map[string]string) *web.Form {
	return &web.Form{
		Action: "/settings/app",
		Fields: []web.FormField{
			{Name: "payment_enabled", Label: "Payments enabled", Type: "checkbox", Checked: s.PaymentEnabled},
			{Name: "post_price", Label: "Post price", Type: "text", Value: s.PostPrice, Required: true},
			{Name: "post_duration_days", Label: "Post duration (days)", Type: "number", Value: strconv.Itoa(s.PostDurationDays), Required: true},
			{Name: "featured_enabled", Label: "Featured posts enabled", Type: "checkbox", Checked: s.FeaturedEnabled},
			{Name: "featured_price", Label: "Featured price", Type: "text", Value: s.FeaturedPrice, Required: true},
			{Name: "featured_duration_days", Label: "Featured duration (days)", Type: "number", Value: strconv.Itoa(s.FeaturedDurationDays), Required: true},
			{Name: "require_moderation", Label: "Require moderation", Type: "checkbox", Checked: s.RequireModeration},
			{Name: "auto_deactivate_expired", Label: "Deactivate expired posts", Type: "checkbox", Checked: s.AutoDeactivateExpired},
			{Name: "notify_expiring_days", Label: "Warn before expiry (days)", Type: "number", Value: strconv.Itoa(s.NotifyExpiringDays)},
			{Name: "max_images_per_post", Label: "Max images per post", Type: "number", Value: strconv.Itoa(s.MaxImagesPerPost)},
			{Name: "max_draft_announcements", Label: "Max drafts per user", Type: "number", Value: strconv.Itoa(s.MaxDraftAnnouncements)},
			{Name: "admin_phone", Label: "Admin phone", Type: "tel", Value: s.AdminPhone},
		},
		Submit: "Save settings",
		Errors: errs,
	}
}

// Get handles GET /settings/app
func (h *settingsHandler) Get(c *gin.Context) {
	page := web.Page{Layout: h.layout(c, "App settings", "settings")}

	s, err := h.settings.Get(c.Request.Context(), scope(c))
	if err != nil {
		h.fail(c, "form.html", page, err)
		return
	}
	page.Form = settingsForm(*s, nil)
	render(c, http.StatusOK, "form.html", page, s)
}

// Update handles POST /settings/app
func (h *settingsHandler) Update(c *gin.Context) {
	page := web.Page{Layout: h.layout(c, "App settings", "settings")}

	var req models.AppSettings
	if err := c.ShouldBind(&req); err != nil {
		errs := formErrors(&req, err)
		page.Form = settingsForm(req, errs)
		page.Error = formErrorSummary(errs)
		render(c, http.StatusBadRequest, "form.html", page, gin.H{"error": page.Error, "fields": errs})
		return
	}

	page.Form = settingsForm(req, nil)
	updated, err := h.settings.Update(c.Request.Context(), scope(c), req)
	if err != nil {
		h.fail(c, "form.html", page, err)
		return
	}
	h.audit(c, "updated app settings", "settings")
	done(c, http.StatusOK, "/settings/app", "updated", updated)
}
