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

type DistrictHandler interface {
	List(c *gin.Context)
	NewPage(c *gin.Context)
	Create(c *gin.Context)
	EditPage(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

type districtHandler struct {
	base
	districts *resources.Districts
}

func NewDistrictHandler(districts *resources.Districts, guard middleware.Guard, notifier Notifier, logger *zap.Logger) DistrictHandler {
	return &districtHandler{
		base:      base{guard: guard, notifier: notifier, logger: logger},
		districts: districts,
	}
}

func translation(d models.District, lang string) string {
	return d.Translations[lang].Name
}

// List handles GET /districts
func (h *districtHandler) List(c *gin.Context) {
	var f resources.PageFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		f = resources.PageFilter{}
	}
	f.Page = pageNumber(f.Page)

	table := &web.Table{
		Columns: []string{"Name (ru)", "Name (uz)", "Name (kaa)", "Name (en)", "Order", "Active"},
		Filters: []web.Filter{{Name: "search", Label: "Search", Value: f.Search}},
		Links: []web.Link{
			{Label: "Add district", URL: "/districts/new"},
			{Label: "Export JSON", URL: "/export/districts"},
		},
		Empty: "No districts found.",
	}
	page := web.Page{Layout: h.layout(c, "Districts", "districts"), Table: table}

	res, err := h.districts.Search(c.Request.Context(), scope(c), f)
	if err != nil {
		h.fail(c, "table.html", page, err)
		return
	}
	for _, d := range res.Items() {
		prefix := "/districts/" + strconv.FormatInt(d.ID, 10)
		table.Rows = append(table.Rows, web.Row{
			Cells: []web.Cell{
				{Text: d.Name("ru"), Link: prefix + "/edit"},
				{Text: translation(d, "uz")},
				{Text: translation(d, "kaa")},
				{Text: translation(d, "en")},
				{Text: strconv.Itoa(d.Order)},
				{Text: yesNo(d.IsActive)},
			},
			Actions: []web.Action{{Label: "Delete", URL: prefix + "/delete", Confirm: "Delete " + d.Name("ru") + "?"}},
		})
	}
	table.Pager = pager(c, res, f.Page)
	render(c, http.StatusOK, "table.html", page, listJSON(res, f.Page))
}

func districtForm(action string, f models.DistrictForm, errs map[string]string) *web.Form {
	return &web.Form{
		Action: action,
		Fields: []web.FormField{
			{Name: "name_ru", Label: "Name (ru)", Type: "text", Value: f.NameRU, Required: true},
			{Name: "name_uz", Label: "Name (uz)", Type: "text", Value: f.NameUZ},
			{Name: "name_kaa", Label: "Name (kaa)", Type: "text", Value: f.NameKAA},
			{Name: "name_en", Label: "Name (en)", Type: "text", Value: f.NameEN},
			{Name: "order", Label: "Order", Type: "number", Value: strconv.Itoa(f.Order)},
			{Name: "is_active", Label: "Active", Type: "checkbox", Checked: f.IsActive},
		},
		Submit: "Save",
		Cancel: "/districts",
		Errors: errs,
	}
}

func districtFormOf(d *models.District) models.DistrictForm {
	return models.DistrictForm{
		NameRU:   translation(*d, "ru"),
		NameUZ:   translation(*d, "uz"),
		NameKAA:  translation(*d, "kaa"),
		NameEN:   translation(*d, "en"),
		Order:    d.Order,
		IsActive: d.IsActive,
	}
}

// bind reads a district form; on failure it has already rendered the
// response.
func (h *districtHandler) bind(c *gin.Context, page web.Page, action string) (models.DistrictForm, bool) {
	var req models.DistrictForm
	if err := c.ShouldBind(&req); err != nil {
		errs := formErrors(&req, err)
		page.Form = districtForm(action, req, errs)
		page.Error = formErrorSummary(errs)
		render(c, http.StatusBadRequest, "form.html", page, gin.H{"error": page.Error, "fields": errs})
		return req, false
	}
	return req, true
}

// NewPage handles GET /districts/new
func (h *districtHandler) NewPage(c *gin.Context) {
	page := web.Page{
		Layout: h.layout(c, "Add district", "districts"),
		Form:   districtForm("/districts/new", models.DistrictForm{IsActive: true}, nil),
	}
	render(c, http.StatusOK, "form.html", page, gin.H{"languages": []string{"ru", "uz", "kaa", "en"}})
}

// Create handles POST /districts/new
func (h *districtHandler) Create(c *gin.Context) {
	page := web.Page{Layout: h.layout(c, "Add district", "districts")}
	req, ok := h.bind(c, page, "/districts/new")
	if !ok {
		return
	}

	page.Form = districtForm("/districts/new", req, nil)
	created, err := h.districts.Create(c.Request.Context(), scope(c), req.Input())
	if err != nil {
		h.fail(c, "form.html", page, err)
		return
	}
	h.audit(c, "created district", created.Name("ru"))
	done(c, http.StatusCreated, "/districts", "created", created)
}

// EditPage handles GET /districts/:id/edit
func (h *districtHandler) EditPage(c *gin.Context) {
	id := c.Param("id")
	page := web.Page{Layout: h.layout(c, "Edit district", "districts")}

	d, err := h.districts.Get(c.Request.Context(), scope(c), id)
	if err != nil {
		h.fail(c, "form.html", page, err)
		return
	}
	page.Form = districtForm("/districts/"+id+"/edit", districtFormOf(d), nil)
	render(c, http.StatusOK, "form.html", page, d)
}

// Update handles POST /districts/:id/edit
func (h *districtHandler) Update(c *gin.Context) {
	id := c.Param("id")
	action := "/districts/" + id + "/edit"
	page := web.Page{Layout: h.layout(c, "Edit district", "districts")}
	req, ok := h.bind(c, page, action)
	if !ok {
		return
	}

	page.Form = districtForm(action, req, nil)
	updated, err := h.districts.Update(c.Request.Context(), scope(c), id, req.Input())
	if err != nil {
		h.fail(c, "form.html", page, err)
		return
	}
	h.audit(c, "updated district", updated.Name("ru"))
	done(c, http.StatusOK, "/districts", "updated", updated)
}

// Delete handles POST /districts/:id/delete
func (h *districtHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	page := web.Page{Layout: h.layout(c, "Districts", "districts"), Message: "The district could not be deleted."}

	if err := h.districts.Delete(c.Request.Context(), scope(c), id); err != nil {
		h.fail(c, "message.html", page, err)
		return
	}
	h.audit(c, "deleted district", id)
	done(c, http.StatusOK, "/districts", "deleted", gin.H{"id": id, "deleted": true})
}
