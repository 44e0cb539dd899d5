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

type StaffHandler interface {
	List(c *gin.Context)
	CreatePage(c *gin.Context)
	Create(c *gin.Context)
	EditPage(c *gin.Context)
	Update(c *gin.Context)
	PasswordPage(c *gin.Context)
	ChangePassword(c *gin.Context)
	ToggleActive(c *gin.Context)
	Delete(c *gin.Context)
}

type staffHandler struct {
	base
	staff *resources.Staff
}

func NewStaffHandler(staff *resources.Staff, guard middleware.Guard, notifier Notifier, logger *zap.Logger) StaffHandler {
	return &staffHandler{
		base:  base{guard: guard, notifier: notifier, logger: logger},
		staff: staff,
	}
}

var staffRoleLabels = map[string]string{
	models.RoleAdmin:     "Administrator",
	models.RoleModerator: "Moderator",
}

func roleLabel(role string) string {
	if label, ok := staffRoleLabels[role]; ok {
		return label
	}
	return role
}

func roleOptions(selected string) []web.Option {
	return web.Options([]string{models.RoleAdmin, models.RoleModerator}, selected, roleLabel)
}

// List handles GET /staff
func (h *staffHandler) List(c *gin.Context) {
	var f resources.StaffFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		f = resources.StaffFilter{}
	}
	f.Page = pageNumber(f.Page)

	table := &web.Table{
		Columns: []string{"Username", "Full name", "Role", "Active", "Last login", "Created"},
		Filters: []web.Filter{
			{Name: "search", Label: "Search", Value: f.Search},
			{Name: "role", Label: "Role", Options: roleOptions(f.Role)},
		},
		Links: []web.Link{
			{Label: "Add staff member", URL: "/create-staff"},
			{Label: "Export JSON", URL: "/export/staff"},
		},
		Empty: "No staff members found.",
	}
	page := web.Page{Layout: h.layout(c, "Staff", "staff"), Table: table}

	res, err := h.staff.Search(c.Request.Context(), scope(c), f)
	if err != nil {
		h.fail(c, "table.html", page, err)
		return
	}
	for _, s := range res.Items() {
		prefix := "/staff/" + strconv.FormatInt(s.ID, 10)
		table.Rows = append(table.Rows, web.Row{
			Cells: []web.Cell{
				{Text: s.Username, Link: "/edit-staff/" + strconv.FormatInt(s.ID, 10)},
				{Text: s.FullName},
				{Text: roleLabel(s.Role)},
				{Text: yesNo(s.IsActive)},
				{Text: web.FormatTime(s.LastLogin)},
				{Text: web.FormatTime(s.CreatedAt)},
			},
			Actions: []web.Action{toggleAction(prefix, s.IsActive)},
		})
	}
	table.Pager = pager(c, res, f.Page)
	render(c, http.StatusOK, "table.html", page, listJSON(res, f.Page))
}

func createStaffForm(in models.StaffCreate, errs map[string]string) *web.Form {
	active := in.IsActive == nil || *in.IsActive
	return &web.Form{
		Action: "/create-staff",
		Fields: []web.FormField{
			{Name: "username", Label: "Username", Type: "text", Value: in.Username, Required: true},
			{Name: "full_name", Label: "Full name", Type: "text", Value: in.FullName, Required: true},
			{Name: "role", Label: "Role", Options: roleOptions(in.Role), Required: true},
			{Name: "password", Label: "Password", Type: "password", Required: true},
			{Name: "is_active", Label: "Active", Type: "checkbox", Checked: active},
		},
		Submit: "Create",
		Cancel: "/staff",
		Errors: errs,
	}
}

// CreatePage handles GET /create-staff
func (h *staffHandler) CreatePage(c *gin.Context) {
	page := web.Page{
		Layout: h.layout(c, "Add staff member", "staff"),
		Form:   createStaffForm(models.StaffCreate{Role: models.RoleModerator}, nil),
	}
	render(c, http.StatusOK, "form.html", page, gin.H{"roles": []string{models.RoleAdmin, models.RoleModerator}})
}

// Create handles POST /create-staff
func (h *staffHandler) Create(c *gin.Context) {
	page := web.Page{Layout: h.layout(c, "Add staff member", "staff")}

	var req models.StaffCreate
	if err := c.ShouldBind(&req); err != nil {
		errs := formErrors(&req, err)
		page.Form = createStaffForm(req, errs)
		page.Error = formErrorSummary(errs)
		render(c, http.StatusBadRequest, "form.html", page, gin.H{"error": page.Error, "fields": errs})
		return
	}
	if req.IsActive == nil && c.ContentType() != gin.MIMEJSON {
		// An unchecked box is simply absent from the form.
		inactive := false
		req.IsActive = &inactive
	}

	page.Form = createStaffForm(req, nil)
	created, err := h.staff.Create(c.Request.Context(), scope(c), req)
	if err != nil {
		h.fail(c, "form.html", page, err)
		return
	}
	h.audit(c, "created staff member", created.Username)
	done(c, http.StatusCreated, "/staff", "created", created)
}

func isSelf(c *gin.Context, id string) bool {
	user := middleware.CurrentUser(c)
	return user != nil && strconv.FormatInt(user.ID, 10) == id
}

// refreshSelf reloads the signed-in user after a change to their own account,
// so a new role or status applies from the next request on.
func (h *staffHandler) refreshSelf(c *gin.Context, id string) {
	if !isSelf(c, id) {
		return
	}
	m := middleware.SessionManager(c)
	state := m.RefreshUser(c.Request.Context())
	if user := state.CurrentUser; user != nil {
		h.logger.Info("Reloaded own profile after account change",
			zap.String("username", user.Username), zap.String("role", user.Role))
	}
}

func editStaffForm(id string, s models.StaffUpdate, errs map[string]string) *web.Form {
	return &web.Form{
		Action: "/edit-staff/" + id,
		Fields: []web.FormField{
			{Name: "username", Label: "Username", Type: "text", Value: s.Username, Required: true},
			{Name: "full_name", Label: "Full name", Type: "text", Value: s.FullName, Required: true},
			{Name: "role", Label: "Role", Options: roleOptions(s.Role), Required: true},
		},
		Submit: "Save",
		Cancel: "/staff",
		Errors: errs,
	}
}

func staffActions(id string, s *models.Staff) *web.Detail {
	d := &web.Detail{Links: []web.Link{
		{Label: "Back to staff", URL: "/staff"},
		{Label: "Change password", URL: "/edit-staff/" + id + "/password"},
	}}
	if s != nil {
		d.Actions = []web.Action{
			toggleAction("/staff/"+id, s.IsActive),
			{Label: "Delete", URL: "/staff/" + id + "/delete", Confirm: "Delete " + s.Username + "?"},
		}
	}
	return d
}

// EditPage handles GET /edit-staff/:id
func (h *staffHandler) EditPage(c *gin.Context) {
	id := c.Param("id")
	page := web.Page{Layout: h.layout(c, "Edit staff member", "staff")}

	s, err := h.staff.Get(c.Request.Context(), scope(c), id)
	if err != nil {
		h.fail(c, "form.html", page, err)
		return
	}
	page.Title = "Edit " + s.Username
	page.Form = editStaffForm(id, models.StaffUpdate{Username: s.Username, FullName: s.FullName, Role: s.Role}, nil)
	page.Detail = staffActions(id, s)
	render(c, http.StatusOK, "form.html", page, s)
}

// Update handles POST /edit-staff/:id
func (h *staffHandler) Update(c *gin.Context) {
	id := c.Param("id")
	page := web.Page{Layout: h.layout(c, "Edit staff member", "staff"), Detail: staffActions(id, nil)}

	var req models.StaffUpdate
	if err := c.ShouldBind(&req); err != nil {
		errs := formErrors(&req, err)
		page.Form = editStaffForm(id, req, errs)
		page.Error = formErrorSummary(errs)
		render(c, http.StatusBadRequest, "form.html", page, gin.H{"error": page.Error, "fields": errs})
		return
	}

	page.Form = editStaffForm(id, req, nil)
	updated, err := h.staff.Patch(c.Request.Context(), scope(c), id, req)
	if err != nil {
		h.fail(c, "form.html", page, err)
		return
	}
	h.audit(c, "updated staff member", updated.Username)
	h.refreshSelf(c, id)
	done(c, http.StatusOK, "/staff", "updated", updated)
}

// PasswordPage handles GET /edit-staff/:id/password
func (h *staffHandler) PasswordPage(c *gin.Context) {
	id := c.Param("id")
	page := web.Page{
		Layout: h.layout(c, "Change staff password", "staff"),
		Form:   passwordForm("/edit-staff/"+id+"/password", "/edit-staff/"+id, nil),
	}
	render(c, http.StatusOK, "form.html", page, gin.H{"fields": []string{"new_password", "confirm_password"}})
}

// ChangePassword handles POST /edit-staff/:id/password
func (h *staffHandler) ChangePassword(c *gin.Context) {
	id := c.Param("id")
	action, cancel := "/edit-staff/"+id+"/password", "/edit-staff/"+id
	page := web.Page{Layout: h.layout(c, "Change staff password", "staff")}

	var req PasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		errs := formErrors(&req, err)
		page.Form = passwordForm(action, cancel, errs)
		page.Error = formErrorSummary(errs)
		render(c, http.StatusBadRequest, "form.html", page, gin.H{"error": page.Error, "fields": errs})
		return
	}

	page.Form = passwordForm(action, cancel, nil)
	if err := h.staff.ChangePassword(c.Request.Context(), scope(c), id, req.Body()); err != nil {
		h.fail(c, "form.html", page, err)
		return
	}
	h.audit(c, "changed password of staff member", id)
	h.refreshSelf(c, id)
	done(c, http.StatusOK, "/edit-staff/"+id, "password", gin.H{"detail": "Password changed."})
}

// ToggleActive handles POST /staff/:id/toggle-active
func (h *staffHandler) ToggleActive(c *gin.Context) {
	id := c.Param("id")
	page := web.Page{Layout: h.layout(c, "Staff", "staff"), Message: "The account status could not be changed."}

	active, err := h.staff.ToggleActive(c.Request.Context(), scope(c), id)
	if err != nil {
		h.fail(c, "message.html", page, err)
		return
	}
	h.audit(c, activeVerb(active)+" staff member", id)
	h.refreshSelf(c, id)
	done(c, http.StatusOK, "/staff", "toggled", gin.H{"id": id, "is_active": active})
}

// Delete handles POST /staff/:id/delete
func (h *staffHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	page := web.Page{Layout: h.layout(c, "Staff", "staff")}

	if isSelf(c, id) {
		page.Message = "You cannot delete your own account."
		render(c, http.StatusConflict, "message.html", page, gin.H{"error": page.Message})
		return
	}

	if err := h.staff.Delete(c.Request.Context(), scope(c), id); err != nil {
		page.Message = "The staff member could not be deleted."
		h.fail(c, "message.html", page, err)
		return
	}
	h.audit(c, "deleted staff member", id)
	done(c, http.StatusOK, "/staff", "deleted", gin.H{"id": id, "deleted": true})
}
