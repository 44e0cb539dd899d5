package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"admin-console/internal/middleware"
	"admin-console/internal/resources"
)

type ExportHandler interface {
	Export(c *gin.Context)
}

type exportHandler struct {
	base
	set *resources.Set
}

func NewExportHandler(set *resources.Set, guard middleware.Guard, notifier Notifier, logger *zap.Logger) ExportHandler {
	return &exportHandler{
		base: base{guard: guard, notifier: notifier, logger: logger},
		set:  set,
	}
}

// Export handles GET /export/:resource. It walks every page of the
// collection; a page that fails ends the walk and what was gathered so far
// is returned.
func (h *exportHandler) Export(c *gin.Context) {
	name := c.Param("resource")
	if name == "staff" && !middleware.HasAccess(middleware.CurrentUser(c), StaffRoles) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Staff export requires the admin role"})
		return
	}

	params := c.Request.URL.Query()
	params.Del("page")

	items, err := h.set.Export(c.Request.Context(), scope(c), name, params)
	if errors.Is(err, resources.ErrUnknownResource) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Unknown resource %q", name), "resources": h.set.Exportable()})
		return
	}
	if err != nil {
		h.logger.Error("Export failed", zap.String("resource", name), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	h.audit(c, "exported", name)
	filename := fmt.Sprintf("%s-%s.json", name, time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.JSON(http.StatusOK, items)
}
