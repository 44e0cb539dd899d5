// Package web holds the console's HTML templates and the view models they
// render.
package web

import (
	"net/url"
	"strconv"

	"admin-console/internal/models"
)

type NavItem struct {
	Key   string
	Label string
	URL   string
}

// Layout is the chrome shared by every page.
type Layout struct {
	Title           string
	CurrentPage     string
	IsAuthenticated bool
	CanManageStaff  bool
	User            *models.Staff
	Nav             []NavItem
	Flash           string
	Error           string
}

func NewLayout(title, current string, user *models.Staff, canManageStaff bool) Layout {
	l := Layout{
		Title:           title,
		CurrentPage:     current,
		IsAuthenticated: user != nil,
		CanManageStaff:  canManageStaff,
		User:            user,
	}
	if user == nil {
		return l
	}
	l.Nav = []NavItem{
		{Key: "announcements", Label: "Announcements", URL: "/announcements"},
		{Key: "users", Label: "Users", URL: "/users"},
	}
	if canManageStaff {
		l.Nav = append(l.Nav, NavItem{Key: "staff", Label: "Staff", URL: "/staff"})
	}
	l.Nav = append(l.Nav,
		NavItem{Key: "districts", Label: "Districts", URL: "/districts"},
		NavItem{Key: "notifications", Label: "Notifications", URL: "/notifications"},
		NavItem{Key: "settings", Label: "App settings", URL: "/settings/app"},
	)
	return l
}

// Page is the data every template receives; exactly one of the content
// fields is set.
type Page struct {
	Layout
	Table   *Table
	Detail  *Detail
	Form    *Form
	Message string
}

type Link struct {
	Label string
	URL   string
}

// Action is a button that POSTs to URL.
type Action struct {
	Label   string
	URL     string
	Confirm string
}

type Option struct {
	Value    string
	Label    string
	Selected bool
}

// Options builds select options from values, marking selected.
func Options(values []string, selected string, label func(string) string) []Option {
	opts := make([]Option, 0, len(values))
	for _, v := range values {
		text := v
		if label != nil {
			text = label(v)
		}
		opts = append(opts, Option{Value: v, Label: text, Selected: v == selected})
	}
	return opts
}

type Filter struct {
	Name    string
	Label   string
	Value   string
	Options []Option
}

type Cell struct {
	Text string
	Link string
}

type Row struct {
	Cells   []Cell
	Actions []Action
}

type Stat struct {
	Label string
	Value int
}

type Pager struct {
	Page     int
	Total    int
	PrevURL  string
	NextURL  string
	HasPages bool
}

// NewPager links to the neighbouring pages of current, keeping the other
// query parameters of u.
func NewPager(u *url.URL, page, total int, hasPrev, hasNext bool) Pager {
	p := Pager{Page: page, Total: total, HasPages: hasPrev || hasNext}
	if hasPrev {
		p.PrevURL = PageURL(u, page-1)
	}
	if hasNext {
		p.NextURL = PageURL(u, page+1)
	}
	return p
}

func PageURL(u *url.URL, page int) string {
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	return u.Path + "?" + q.Encode()
}

type Table struct {
	Columns []string
	Rows    []Row
	Filters []Filter
	Links   []Link
	Stats   []Stat
	Pager   Pager
	Empty   string
}

type Field struct {
	Label string
	Value string
}

type Detail struct {
	Fields  []Field
	Images  []string
	Actions []Action
	Links   []Link
}

type FormField struct {
	Name     string
	Label    string
	Type     string
	Value    string
	Checked  bool
	Required bool
	Options  []Option
}

type Form struct {
	Action string
	Fields []FormField
	Submit string
	Cancel string
	Errors map[string]string
}
