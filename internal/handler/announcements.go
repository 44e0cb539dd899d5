package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"admin-console/internal/middleware"
	"admin-console/internal/models"
	"admin-console/internal/resources"
	"admin-console/internal/web"
)

type AnnouncementHandler interface {
	List(c *gin.Context)
	Detail(c *gin.Context)
}

type announcementHandler struct {
	base
	announcements *resources.Announcements
}

func NewAnnouncementHandler(announcements *resources.Announcements, guard middleware.Guard, logger *zap.Logger) AnnouncementHandler {
	return &announcementHandler{
		base:          base{guard: guard, logger: logger},
		announcements: announcements,
	}
}

// List handles GET /announcements
func (h *announcementHandler) List(c *gin.Context) {
	var f resources.AnnouncementFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		h.logger.Debug("Ignoring malformed announcement filters", zap.Error(err))
		f = resources.AnnouncementFilter{}
	}
	f.Page = pageNumber(f.Page)

	table := &web.Table{
		Columns: []string{"Title", "Property", "Listing", "Price", "District", "Seller", "Status", "Created"},
		Filters: []web.Filter{
			{Name: "search", Label: "Search", Value: f.Search},
			{Name: "status", Label: "Status", Options: web.Options(resources.AnnouncementStatuses, f.Status, nil)},
			{Name: "listing_type", Label: "Listing type", Options: web.Options(resources.ListingTypes, f.ListingType, nil)},
			{Name: "property_type", Label: "Property type", Options: web.Options(resources.PropertyTypes, f.PropertyType, nil)},
		},
		Links: []web.Link{{Label: "Export JSON", URL: "/export/announcements"}},
		Empty: "No announcements found.",
	}
	page := web.Page{Layout: h.layout(c, "Announcements", "announcements"), Table: table}

	res, err := h.announcements.Search(c.Request.Context(), scope(c), f)
	if err != nil {
		h.fail(c, "table.html", page, err)
		return
	}
	for _, a := range res.Items() {
		district := "N/A"
		if a.District != nil {
			district = a.District.Name("ru")
		}
		table.Rows = append(table.Rows, web.Row{Cells: []web.Cell{
			{Text: a.Title, Link: "/announcements/" + a.ID},
			{Text: a.PropertyType},
			{Text: a.ListingType},
			{Text: strings.TrimSpace(a.Price + " " + a.Currency)},
			{Text: district},
			{Text: a.SellerName},
			{Text: a.Status},
			{Text: web.FormatTime(a.CreatedAt)},
		}})
	}
	table.Pager = pager(c, res, f.Page)
	render(c, http.StatusOK, "table.html", page, listJSON(res, f.Page))
}

// Detail handles GET /announcements/:id
func (h *announcementHandler) Detail(c *gin.Context) {
	page := web.Page{Layout: h.layout(c, "Announcement", "announcements")}

	a, err := h.announcements.Get(c.Request.Context(), scope(c), c.Param("id"))
	if err != nil {
		h.fail(c, "detail.html", page, err)
		return
	}
	page.Title = a.Title
	page.Detail = announcementDetail(a)
	render(c, http.StatusOK, "detail.html", page, a)
}

func announcementDetail(a *models.Announcement) *web.Detail {
	date := web.FormatTime
	district := "N/A"
	if a.District != nil {
		district = a.District.Name("ru")
	}
	d := &web.Detail{
		Links: []web.Link{{Label: "Back to announcements", URL: "/announcements"}},
		Fields: []web.Field{
			{Label: "Description", Value: a.Description},
			{Label: "Property type", Value: a.PropertyType},
			{Label: "Listing type", Value: a.ListingType},
			{Label: "Building", Value: deref(a.BuildingType)},
			{Label: "Condition", Value: deref(a.Condition)},
			{Label: "District", Value: district},
			{Label: "Price", Value: strings.TrimSpace(a.Price + " " + a.Currency)},
			{Label: "Area", Value: strings.TrimSpace(a.Area + " " + a.AreaUnit)},
			{Label: "Rooms", Value: optInt(a.Rooms)},
			{Label: "Floor", Value: floor(a.Floor, a.TotalFloors)},
			{Label: "Seller", Value: a.SellerName},
			{Label: "Phone", Value: a.Phone},
			{Label: "Seller phone", Value: deref(a.SellerPhone)},
			{Label: "Status", Value: a.Status},
			{Label: "Payment", Value: a.PaymentStatus},
			{Label: "Moderated", Value: yesNo(a.IsModerated)},
			{Label: "Moderated by", Value: deref(a.ModeratedByName)},
			{Label: "Moderated at", Value: date(a.ModeratedAt)},
			{Label: "Rejection reason", Value: a.RejectionReason},
			{Label: "Featured", Value: yesNo(a.IsFeatured)},
			{Label: "Featured until", Value: date(a.FeaturedUntil)},
			{Label: "Views", Value: strconv.Itoa(a.ViewsCount)},
			{Label: "Saved", Value: strconv.Itoa(a.FavoritesCount)},
			{Label: "Created", Value: date(a.CreatedAt)},
			{Label: "Posted", Value: date(a.PostedAt)},
		},
	}
	primary := a.PrimaryImage()
	if primary != nil {
		d.Images = append(d.Images, imageURL(*primary))
	}
	for _, img := range a.Images {
		if img.ID != primary.ID {
			d.Images = append(d.Images, imageURL(img))
		}
	}
	return d
}

func imageURL(img models.AnnouncementImage) string {
	for _, u := range []string{img.ImageMediumURL, img.ImageURL, img.Image} {
		if u != "" {
			return u
		}
	}
	return ""
}

func optInt(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}

func floor(n, total *int) string {
	switch {
	case n == nil:
		return "-"
	case total == nil:
		return strconv.Itoa(*n)
	}
	return strconv.Itoa(*n) + " / " + strconv.Itoa(*total)
}
