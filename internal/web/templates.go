package web

import (
	"embed"
	"html/template"
	"time"

	"admin-console/internal/models"
)

//go:embed templates/*.html
var files embed.FS

// Funcs are available to every template.
var Funcs = template.FuncMap{
	"date":              FormatTime,
	"notificationLabel": models.NotificationTypeLabel,
}

// FormatTime renders a time or *time.Time for display, "-" when unset.
func FormatTime(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04")
	case *time.Time:
		if t == nil {
			return "-"
		}
		return FormatTime(*t)
	}
	return ""
}

// Templates parses the embedded page templates.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(Funcs).ParseFS(files, "templates/*.html"))
}
