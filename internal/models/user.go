package models

import "time"

// User is a platform (marketplace) account, not a console operator.
type User struct {
	ID                int64     `json:"id"`
	TelegramID        int64     `json:"telegram_id"`
	Username          string    `json:"username"`
	FullName          string    `json:"full_name"`
	Phone             *string   `json:"phone"`
	Avatar            *string   `json:"avatar"`
	IsAgent           bool      `json:"is_agent"`
	IsActive          bool      `json:"is_active"`
	PreferredLanguage string    `json:"preferred_language"`
	Bio               string    `json:"bio"`
	PropertiesCount   int       `json:"properties_count"`
	ViewsCount        int       `json:"views_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
