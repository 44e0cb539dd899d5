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

type UserHandler interface {
	List(c *gin.Context)
	Detail(c *gin.Context)
	ToggleActive(c *gin.Context)
}

type userHandler struct {
	base
	users *resources.Users
}

func NewUserHandler(users *resources.Users, guard middleware.Guard, notifier Notifier, logger *zap.Logger) UserHandler {
	return &userHandler{
		base:  base{guard: guard, notifier: notifier, logger: logger},
		users: users,
	}
}

// List handles GET /users
func (h *userHandler) List(c *gin.Context) {
	var f resources.UserFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		f = resources.UserFilter{}
	}
	f.Page = pageNumber(f.Page)

	table := &web.Table{
		Columns: []string{"Username", "Full name", "Phone", "Telegram ID", "Agent", "Active", "Listings", "Joined"},
		Filters: []web.Filter{{Name: "search", Label: "Search", Value: f.Search}},
		Links:   []web.Link{{Label: "Export JSON", URL: "/export/users"}},
		Empty:   "No users found.",
	}
	page := web.Page{Layout: h.layout(c, "Users", "users"), Table: table}

	res, err := h.users.Search(c.Request.Context(), scope(c), f)
	if err != nil {
		h.fail(c, "table.html", page, err)
		return
	}
	for _, u := range res.Items() {
		id := strconv.FormatInt(u.ID, 10)
		table.Rows = append(table.Rows, web.Row{
			Cells: []web.Cell{
				{Text: u.Username, Link: "/users/" + id},
				{Text: u.FullName},
				{Text: deref(u.Phone)},
				{Text: strconv.FormatInt(u.TelegramID, 10)},
				{Text: yesNo(u.IsAgent)},
				{Text: yesNo(u.IsActive)},
				{Text: strconv.Itoa(u.PropertiesCount)},
				{Text: web.FormatTime(u.CreatedAt)},
			},
			Actions: []web.Action{toggleAction("/users/"+id, u.IsActive)},
		})
	}
	table.Pager = pager(c, res, f.Page)
	render(c, http.StatusOK, "table.html", page, listJSON(res, f.Page))
}

// Detail handles GET /users/:id
func (h *userHandler) Detail(c *gin.Context) {
	page := web.Page{Layout: h.layout(c, "User", "users")}

	u, err := h.users.Get(c.Request.Context(), scope(c), c.Param("id"))
	if err != nil {
		h.fail(c, "detail.html", page, err)
		return
	}
	page.Title = userTitle(u)
	page.Detail = &web.Detail{
		Links: []web.Link{{Label: "Back to users", URL: "/users"}},
		Fields: []web.Field{
			{Label: "Username", Value: u.Username},
			{Label: "Full name", Value: u.FullName},
			{Label: "Phone", Value: deref(u.Phone)},
			{Label: "Telegram ID", Value: strconv.FormatInt(u.TelegramID, 10)},
			{Label: "Agent", Value: yesNo(u.IsAgent)},
			{Label: "Active", Value: yesNo(u.IsActive)},
			{Label: "Language", Value: u.PreferredLanguage},
			{Label: "Bio", Value: u.Bio},
			{Label: "Listings", Value: strconv.Itoa(u.PropertiesCount)},
			{Label: "Views", Value: strconv.Itoa(u.ViewsCount)},
			{Label: "Joined", Value: web.FormatTime(u.CreatedAt)},
			{Label: "Updated", Value: web.FormatTime(u.UpdatedAt)},
		},
		Actions: []web.Action{toggleAction("/users/"+c.Param("id"), u.IsActive)},
	}
	if u.Avatar != nil && *u.Avatar != "" {
		page.Detail.Images = []string{*u.Avatar}
	}
	render(c, http.StatusOK, "detail.html", page, u)
}

// ToggleActive handles POST /users/:id/toggle-active
func (h *userHandler) ToggleActive(c *gin.Context) {
	id := c.Param("id")
	page := web.Page{Layout: h.layout(c, "User", "users"), Message: "The account status could not be changed."}

	active, err := h.users.ToggleActive(c.Request.Context(), scope(c), id)
	if err != nil {
		h.fail(c, "message.html", page, err)
		return
	}
	h.audit(c, activeVerb(active)+" user", id)
	done(c, http.StatusOK, "/users/"+id, "toggled", gin.H{"id": id, "is_active": active})
}

func userTitle(u *models.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

func toggleAction(prefix string, active bool) web.Action {
	if active {
		return web.Action{Label: "Deactivate", URL: prefix + "/toggle-active", Confirm: "Deactivate this account?"}
	}
	return web.Action{Label: "Activate", URL: prefix + "/toggle-active"}
}

func activeVerb(active bool) string {
	if active {
		return "activated"
	}
	return "deactivated"
}
