package models

import "time"

type AppSettings struct {
	ID                    int64      `json:"id,omitempty"`
	PaymentEnabled        bool       `json:"payment_enabled" form:"payment_enabled"`
	FeaturedEnabled       bool       `json:"featured_enabled" form:"featured_enabled"`
	PostPrice             string     `json:"post_price" form:"post_price" binding:"required,numeric"`
	FeaturedPrice         string     `json:"featured_price" form:"featured_price" binding:"required,numeric"`
	PostDurationDays      int        `json:"post_duration_days" form:"post_duration_days" binding:"gte=1"`
	FeaturedDurationDays  int        `json:"featured_duration_days" form:"featured_duration_days" binding:"gte=1"`
	RequireModeration     bool       `json:"require_moderation" form:"require_moderation"`
	AutoDeactivateExpired bool       `json:"auto_deactivate_expired" form:"auto_deactivate_expired"`
	NotifyExpiringDays    int        `json:"notify_expiring_days" form:"notify_expiring_days" binding:"gte=0"`
	MaxImagesPerPost      int        `json:"max_images_per_post" form:"max_images_per_post" binding:"gte=1"`
	MaxDraftAnnouncements int        `json:"max_draft_announcements" form:"max_draft_announcements" binding:"gte=0"`
	AdminPhone            string     `json:"admin_phone" form:"admin_phone"`
	CreatedAt             *time.Time `json:"created_at,omitempty" form:"-"`
	UpdatedAt             *time.Time `json:"updated_at,omitempty" form:"-"`
}
