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

type NotificationHandler interface {
	List(c *gin.Context)
	MarkRead(c *gin.Context)
}

type notificationHandler struct {
	base
	notifications *resources.Notifications
}

func NewNotificationHandler(notifications *resources.Notifications, guard middleware.Guard, notifier Notifier, logger *zap.Logger) NotificationHandler {
	return &notificationHandler{
		base:          base{guard: guard, notifier: notifier, logger: logger},
		notifications: notifications,
	}
}

// readFilter maps the "read" query value to the backend's tri-state filter.
func readFilter(v string) *bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

func notificationStats(s *models.NotificationStats) []web.Stat {
	stats := []web.Stat{
		{Label: "Total", Value: s.Total},
		{Label: "Unread", Value: s.Unread},
		{Label: "Unsent", Value: s.Unsent},
	}
	for _, t := range models.NotificationTypes() {
		if n := s.ByType[t]; n > 0 {
			stats = append(stats, web.Stat{Label: models.NotificationTypeLabel(t), Value: n})
		}
	}
	return stats
}

// List handles GET /notifications
func (h *notificationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var f resources.NotificationFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		f = resources.NotificationFilter{}
	}
	f.Page = pageNumber(f.Page)
	read := c.Query("read")
	f.IsRead = readFilter(read)

	table := &web.Table{
		Columns: []string{"Title", "Type", "Recipient", "Read", "Sent", "Created"},
		Filters: []web.Filter{
			{Name: "search", Label: "Search", Value: f.Search},
			{Name: "notification_type", Label: "Type", Options: web.Options(models.NotificationTypes(), f.NotificationType, models.NotificationTypeLabel)},
			{Name: "read", Label: "Status", Options: []web.Option{
				{Value: "false", Label: "Unread", Selected: read == "false"},
				{Value: "true", Label: "Read", Selected: read == "true"},
			}},
		},
		Links: []web.Link{{Label: "Export JSON", URL: "/export/notifications"}},
		Empty: "No notifications found.",
	}
	page := web.Page{Layout: h.layout(c, "Notifications", "notifications"), Table: table}

	// The stats widget is independent of the list; a failure only hides it.
	stats, err := h.notifications.Stats(ctx, scope(c))
	if err != nil {
		h.logger.Warn("Failed to load notification stats", zap.Error(err))
	} else {
		table.Stats = notificationStats(stats)
	}

	res, err := h.notifications.Search(ctx, scope(c), f)
	if err != nil {
		h.fail(c, "table.html", page, err)
		return
	}
	for _, n := range res.Items() {
		row := web.Row{Cells: []web.Cell{
			{Text: n.Title},
			{Text: models.NotificationTypeLabel(n.NotificationType)},
			{Text: n.UserName},
			{Text: yesNo(n.IsRead)},
			{Text: yesNo(n.IsSent)},
			{Text: web.FormatTime(n.CreatedAt)},
		}}
		if !n.IsRead {
			row.Actions = []web.Action{{Label: "Mark read", URL: "/notifications/" + strconv.FormatInt(n.ID, 10) + "/read"}}
		}
		table.Rows = append(table.Rows, row)
	}
	table.Pager = pager(c, res, f.Page)

	data := listJSON(res, f.Page)
	if stats != nil {
		data["stats"] = stats
	}
	render(c, http.StatusOK, "table.html", page, data)
}

// MarkRead handles POST /notifications/:id/read
func (h *notificationHandler) MarkRead(c *gin.Context) {
	id := c.Param("id")
	page := web.Page{Layout: h.layout(c, "Notifications", "notifications"), Message: "The notification could not be updated."}

	n, err := h.notifications.MarkRead(c.Request.Context(), scope(c), id)
	if err != nil {
		h.fail(c, "message.html", page, err)
		return
	}
	done(c, http.StatusOK, "/notifications", "read", n)
}
