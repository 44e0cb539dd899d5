// Package resources binds each backend collection the console manages to a
// typed service built on the resource factory.
package resources

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"

	"go.uber.org/zap"

	"admin-console/internal/cache"
	"admin-console/internal/models"
	"admin-console/internal/resource"
)

var ErrUnknownResource = errors.New("unknown resource")

// Set holds one service per collection.
type Set struct {
	Users         *Users
	Staff         *Staff
	Announcements *Announcements
	Districts     *Districts
	Notifications *Notifications
	Settings      *Settings

	exporters map[string]exporter
}

type exporter func(ctx context.Context, scope resource.Scope, params url.Values) any

func NewSet(client resource.Doer, c cache.Cache, logger *zap.Logger) *Set {
	s := &Set{
		Users:         &Users{resource.New[models.User](client, "users/", "users", c, logger)},
		Staff:         &Staff{resource.New[models.Staff](client, "staff/", "staff", c, logger)},
		Announcements: &Announcements{resource.New[models.Announcement](client, "announcements/", "announcements", c, logger)},
		Districts:     &Districts{resource.New[models.District](client, "settings/districts/", "districts", c, logger)},
		Notifications: &Notifications{resource.New[models.Notification](client, "notifications/", "notifications", c, logger)},
		Settings:      &Settings{resource.New[models.AppSettings](client, "settings/app/", "appSettings", c, logger)},
	}
	s.exporters = map[string]exporter{
		"users": func(ctx context.Context, scope resource.Scope, p url.Values) any {
			return s.Users.All(ctx, scope, p)
		},
		"staff": func(ctx context.Context, scope resource.Scope, p url.Values) any {
			return s.Staff.All(ctx, scope, p)
		},
		"announcements": func(ctx context.Context, scope resource.Scope, p url.Values) any {
			return s.Announcements.All(ctx, scope, p)
		},
		"districts": func(ctx context.Context, scope resource.Scope, p url.Values) any {
			return s.Districts.All(ctx, scope, p)
		},
		"notifications": func(ctx context.Context, scope resource.Scope, p url.Values) any {
			return s.Notifications.All(ctx, scope, p)
		},
	}
	return s
}

// Exportable lists the collections Export accepts.
func (s *Set) Exportable() []string {
	names := make([]string, 0, len(s.exporters))
	for name := range s.exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Export sweeps every page of the named collection.
func (s *Set) Export(ctx context.Context, scope resource.Scope, name string, params url.Values) (any, error) {
	export, ok := s.exporters[name]
	if !ok {
		return nil, ErrUnknownResource
	}
	return export(ctx, scope, params), nil
}

// PageFilter is the paging and search part every list screen shares.
type PageFilter struct {
	Search string `url:"search,omitempty" form:"search"`
	Page   int    `url:"page,omitempty" form:"page" binding:"omitempty,gte=1"`
}

type Users struct {
	*resource.Resource[models.User]
}

type UserFilter struct {
	PageFilter
}

func (u *Users) Search(ctx context.Context, scope resource.Scope, f UserFilter) (*models.ListResult[models.User], error) {
	return u.List(ctx, scope, f)
}

// ToggleActive flips the account's is_active flag and returns the new value.
func (u *Users) ToggleActive(ctx context.Context, scope resource.Scope, id string) (bool, error) {
	var out struct {
		IsActive bool `json:"is_active"`
	}
	if err := u.Action(ctx, scope, http.MethodPost, url.PathEscape(id)+"/toggle_active/", nil, &out); err != nil {
		return false, err
	}
	return out.IsActive, nil
}

type Staff struct {
	*resource.Resource[models.Staff]
}

type StaffFilter struct {
	PageFilter
	Role string `url:"role,omitempty" form:"role"`
}

func (s *Staff) Search(ctx context.Context, scope resource.Scope, f StaffFilter) (*models.ListResult[models.Staff], error) {
	return s.List(ctx, scope, f)
}

// Profile reads a staff row bypassing the cache; it backs the session's
// current-user lookup.
func (s *Staff) Profile(ctx context.Context, scope resource.Scope, id string) (*models.Staff, error) {
	return s.Fetch(ctx, scope, id)
}

func (s *Staff) ChangePassword(ctx context.Context, scope resource.Scope, id string, body models.ChangePassword) error {
	return s.Action(ctx, scope, http.MethodPost, url.PathEscape(id)+"/change-password/", body, nil)
}

func (s *Staff) ChangeOwnPassword(ctx context.Context, scope resource.Scope, body models.ChangePassword) error {
	return s.Action(ctx, scope, http.MethodPost, "me/change-password/", body, nil)
}

func (s *Staff) ToggleActive(ctx context.Context, scope resource.Scope, id string) (bool, error) {
	var out struct {
		IsActive bool `json:"is_active"`
	}
	if err := s.Action(ctx, scope, http.MethodPost, url.PathEscape(id)+"/toggle_active/", nil, &out); err != nil {
		return false, err
	}
	return out.IsActive, nil
}

type Announcements struct {
	*resource.Resource[models.Announcement]
}

type AnnouncementFilter struct {
	PageFilter
	Status       string `url:"status,omitempty" form:"status"`
	ListingType  string `url:"listing_type,omitempty" form:"listing_type"`
	PropertyType string `url:"property_type,omitempty" form:"property_type"`
}

func (a *Announcements) Search(ctx context.Context, scope resource.Scope, f AnnouncementFilter) (*models.ListResult[models.Announcement], error) {
	return a.List(ctx, scope, f)
}

// Filter choices offered on the announcements screen.
var (
	AnnouncementStatuses = []string{"draft", "pending", "active", "rejected", "inactive", "sold"}
	PropertyTypes        = []string{"apartment", "house", "commercial", "land"}
	ListingTypes         = []string{"sale", "rent", "rent_daily"}
)

type Districts struct {
	*resource.Resource[models.District]
}

func (d *Districts) Search(ctx context.Context, scope resource.Scope, f PageFilter) (*models.ListResult[models.District], error) {
	return d.List(ctx, scope, f)
}

type Notifications struct {
	*resource.Resource[models.Notification]
}

type NotificationFilter struct {
	PageFilter
	NotificationType string `url:"notification_type,omitempty" form:"notification_type"`
	IsRead           *bool  `url:"is_read,omitempty" form:"-"`
}

func (n *Notifications) Search(ctx context.Context, scope resource.Scope, f NotificationFilter) (*models.ListResult[models.Notification], error) {
	return n.List(ctx, scope, f)
}

// MarkRead patches is_read to true.
func (n *Notifications) MarkRead(ctx context.Context, scope resource.Scope, id string) (*models.Notification, error) {
	return n.Patch(ctx, scope, id, map[string]bool{"is_read": true})
}

func (n *Notifications) Stats(ctx context.Context, scope resource.Scope) (*models.NotificationStats, error) {
	var stats models.NotificationStats
	if err := n.Read(ctx, scope, "stats/", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Settings is the singleton app settings row.
type Settings struct {
	res *resource.Resource[models.AppSettings]
}

func (s *Settings) Get(ctx context.Context, scope resource.Scope) (*models.AppSettings, error) {
	var out models.AppSettings
	if err := s.res.Read(ctx, scope, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces the settings with PUT.
func (s *Settings) Update(ctx context.Context, scope resource.Scope, in models.AppSettings) (*models.AppSettings, error) {
	in.ID, in.CreatedAt, in.UpdatedAt = 0, nil, nil
	var out models.AppSettings
	if err := s.res.Write(ctx, scope, http.MethodPut, s.res.Path(), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
