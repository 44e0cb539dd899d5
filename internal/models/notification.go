package models

import "time"

type Notification struct {
	ID               int64      `json:"id"`
	User             int64      `json:"user"`
	UserName         string     `json:"user_name"`
	NotificationType string     `json:"notification_type"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	Announcement     *string    `json:"announcement"`
	IsRead           bool       `json:"is_read"`
	ReadAt           *time.Time `json:"read_at"`
	IsSent           bool       `json:"is_sent"`
	SentAt           *time.Time `json:"sent_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

type NotificationStats struct {
	Total  int            `json:"total"`
	Unread int            `json:"unread"`
	Unsent int            `json:"unsent"`
	ByType map[string]int `json:"by_type"`
}

var notificationTypeLabels = map[string]string{
	"post_rejected":    "Post Rejected",
	"post_approved":    "Post Approved",
	"post_published":   "Post Published",
	"payment_received": "Payment Received",
	"info":             "Information",
	"warning":          "Warning",
	"error":            "Error",
}

// NotificationTypeLabel returns a display label, or the raw type when unknown.
func NotificationTypeLabel(t string) string {
	if label, ok := notificationTypeLabels[t]; ok {
		return label
	}
	return t
}

// NotificationTypes lists the known types in a stable order for filter controls.
func NotificationTypes() []string {
	return []string{"post_rejected", "post_approved", "post_published", "payment_received", "info", "warning", "error"}
}
