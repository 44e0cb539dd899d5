// Package fake_backend runs an in-memory imitation of the marketplace REST API
// for tests. It speaks the same envelope, auth and action endpoints the console
// talks to and counts every request it receives.
package fake_backend

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Collections served under /api, keyed by their path without slashes.
const (
	Users         = "users"
	Staff         = "staff"
	Announcements = "announcements"
	Districts     = "settings/districts"
	Notifications = "notifications"
)

type Record = map[string]any

type Backend struct {
	Server   *httptest.Server
	PageSize int

	secret []byte

	mu        sync.Mutex
	records   map[string][]Record
	settings  Record
	passwords map[string]string
	revoked   map[string]bool
	bare      map[string]bool
	hits      map[string]int
	failures  map[string]int
	nextID    int64
}

// New starts a backend that is shut down when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &Backend{
		PageSize:  20,
		secret:    []byte("fake-backend-secret"),
		records:   make(map[string][]Record),
		passwords: make(map[string]string),
		revoked:   make(map[string]bool),
		bare:      make(map[string]bool),
		hits:      make(map[string]int),
		failures:  make(map[string]int),
		settings: Record{
			"id":                      1,
			"payment_enabled":         false,
			"featured_enabled":        true,
			"post_price":              "10000.00",
			"featured_price":          "25000.00",
			"post_duration_days":      30,
			"featured_duration_days":  7,
			"require_moderation":      true,
			"auto_deactivate_expired": true,
			"notify_expiring_days":    3,
			"max_images_per_post":     10,
			"max_draft_announcements": 5,
			"admin_phone":             "+998901234567",
		},
	}
	b.Server = httptest.NewServer(b.router())
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the API base the console should be configured with.
func (b *Backend) URL() string { return b.Server.URL + "/api/" }

func (b *Backend) router() *gin.Engine {
	r := gin.New()
	api := r.Group("/api", b.track)
	api.POST("/auth/login/", b.login)

	authed := api.Group("", b.authenticate)
	for _, name := range []string{Users, Staff, Announcements, Districts, Notifications} {
		base := "/" + name + "/"
		authed.GET(base, b.list(name))
		authed.POST(base, b.create(name))
		authed.GET(base+":id/", b.get(name))
		authed.PUT(base+":id/", b.update(name, true))
		authed.PATCH(base+":id/", b.update(name, false))
		authed.DELETE(base+":id/", b.remove(name))
	}
	authed.POST("/users/:id/toggle_active/", b.toggleActive(Users))
	authed.POST("/staff/:id/toggle_active/", b.toggleActive(Staff))
	authed.POST("/staff/:id/change-password/", b.changePassword)
	authed.POST("/staff/me/change-password/", b.changePassword)
	authed.GET("/notifications/stats/", b.notificationStats)
	authed.GET("/settings/app/", b.getSettings)
	authed.PUT("/settings/app/", b.putSettings)
	return r
}

func hitKey(method, path string) string { return method + " " + path }

func (b *Backend) track(c *gin.Context) {
	method, path := c.Request.Method, c.Request.URL.Path

	b.mu.Lock()
	b.hits[hitKey(method, path)]++
	status, ok := b.failures[hitKey(method, path)]
	if !ok {
		if page := c.Query("page"); page != "" {
			status, ok = b.failures[hitKey(method, path+"?page="+page)]
		}
	}
	b.mu.Unlock()

	if ok {
		c.AbortWithStatusJSON(status, gin.H{"detail": "injected failure"})
		return
	}
	c.Next()
}

func (b *Backend) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
		return
	}

	b.mu.Lock()
	revoked := b.revoked[raw]
	b.mu.Unlock()

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return b.secret, nil
	})
	if err != nil || revoked {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Given token not valid for any token type"})
		return
	}
	c.Set("user_id", fmt.Sprint(claims["user_id"]))
	c.Next()
}

// Token mints a signed access token carrying claims.
func (b *Backend) Token(claims jwt.MapClaims) string {
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

// TokenFor mints an access token for a staff id.
func (b *Backend) TokenFor(id int64) string {
	return b.Token(jwt.MapClaims{"user_id": id, "token_type": "access"})
}

// Revoke makes the backend answer 401 to token from now on.
func (b *Backend) Revoke(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[token] = true
}

// Fail makes method+path answer status until cleared. path may carry a
// "?page=N" suffix to target one page of a collection.
func (b *Backend) Fail(method, path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[hitKey(method, path)] = status
}

func (b *Backend) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = make(map[string]int)
}

// Hits counts requests to method+path, query excluded.
func (b *Backend) Hits(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[hitKey(method, path)]
}

// ServeBare makes list endpoints of collection return a bare JSON array.
func (b *Backend) ServeBare(collection string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bare[collection] = true
}

// AddStaff seeds an operator account and returns its id.
func (b *Backend) AddStaff(username, password, role string, superuser bool) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.records[Staff] = append(b.records[Staff], Record{
		"id":           id,
		"username":     username,
		"full_name":    strings.ToUpper(username[:1]) + username[1:],
		"role":         role,
		"is_active":    true,
		"is_superuser": superuser,
		"created_at":   time.Now().UTC().Format(time.RFC3339),
	})
	b.passwords[username] = password
	return id
}

// Seed appends records to collection, assigning ids where missing.
func (b *Backend) Seed(collection string, records ...Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rec := range records {
		if _, ok := rec["id"]; !ok {
			rec["id"] = b.newID(collection)
		}
		b.records[collection] = append(b.records[collection], rec)
	}
}

// Records returns a copy of the collection.
func (b *Backend) Records(collection string) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record, 0, len(b.records[collection]))
	for _, rec := range b.records[collection] {
		cp := make(Record, len(rec))
		for k, v := range rec {
			cp[k] = v
		}
		out = append(out, cp)
	}
	return out
}

// Password returns the stored password for a staff username.
func (b *Backend) Password(username string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.passwords[username]
}

func (b *Backend) Settings() Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make(Record, len(b.settings))
	for k, v := range b.settings {
		cp[k] = v
	}
	return cp
}

func (b *Backend) newID(collection string) any {
	b.nextID++
	if collection == Announcements {
		return "ann-" + strconv.FormatInt(b.nextID, 10)
	}
	return b.nextID
}

func (b *Backend) find(collection, id string) (int, Record) {
	for i, rec := range b.records[collection] {
		if fmt.Sprint(rec["id"]) == id {
			return i, rec
		}
	}
	return -1, nil
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
}

func matches(rec Record, c *gin.Context) bool {
	for key, values := range c.Request.URL.Query() {
		if key == "page" || key == "page_size" || len(values) == 0 {
			continue
		}
		want := values[0]
		if key == "search" {
			if !containsText(rec, want) {
				return false
			}
			continue
		}
		if fmt.Sprint(rec[key]) != want {
			return false
		}
	}
	return true
}

func containsText(rec Record, needle string) bool {
	needle = strings.ToLower(needle)
	for _, v := range rec {
		switch val := v.(type) {
		case string:
			if strings.Contains(strings.ToLower(val), needle) {
				return true
			}
		case map[string]any:
			if containsText(val, needle) {
				return true
			}
		}
	}
	return false
}

func (b *Backend) list(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		defer b.mu.Unlock()

		filtered := make([]Record, 0)
		for _, rec := range b.records[collection] {
			if matches(rec, c) {
				filtered = append(filtered, rec)
			}
		}
		if b.bare[collection] {
			c.JSON(http.StatusOK, filtered)
			return
		}

		page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
		if err != nil || page < 1 {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
			return
		}
		start := (page - 1) * b.PageSize
		if start > len(filtered) || (start == len(filtered) && page > 1) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
			return
		}
		end := min(start+b.PageSize, len(filtered))

		pageURL := func(n int) string {
			q := c.Request.URL.Query()
			q.Set("page", strconv.Itoa(n))
			return b.Server.URL + c.Request.URL.Path + "?" + q.Encode()
		}
		var next, previous any
		if end < len(filtered) {
			next = pageURL(page + 1)
		}
		if page > 1 {
			previous = pageURL(page - 1)
		}
		c.JSON(http.StatusOK, gin.H{
			"count":    len(filtered),
			"next":     next,
			"previous": previous,
			"results":  filtered[start:end],
		})
	}
}

func (b *Backend) get(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, rec := b.find(collection, c.Param("id")); rec != nil {
			c.JSON(http.StatusOK, rec)
			return
		}
		notFound(c)
	}
}

func (b *Backend) create(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body Record
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		if collection == Staff {
			username, _ := body["username"].(string)
			for _, rec := range b.records[Staff] {
				if rec["username"] == username {
					c.JSON(http.StatusBadRequest, gin.H{"username": []string{"staff with this username already exists."}})
					return
				}
			}
			if password, ok := body["password"].(string); ok {
				b.passwords[username] = password
				delete(body, "password")
			}
			if _, ok := body["is_active"]; !ok {
				body["is_active"] = true
			}
			body["is_superuser"] = false
		}
		body["id"] = b.newID(collection)
		body["created_at"] = time.Now().UTC().Format(time.RFC3339)
		b.records[collection] = append(b.records[collection], body)
		c.JSON(http.StatusCreated, body)
	}
}

func (b *Backend) update(collection string, replace bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body Record
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		i, rec := b.find(collection, c.Param("id"))
		if rec == nil {
			notFound(c)
			return
		}
		updated := body
		if !replace {
			updated = rec
			for k, v := range body {
				updated[k] = v
			}
		}
		updated["id"] = rec["id"]
		updated["updated_at"] = time.Now().UTC().Format(time.RFC3339)
		b.records[collection][i] = updated
		c.JSON(http.StatusOK, updated)
	}
}

func (b *Backend) remove(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		defer b.mu.Unlock()
		i, rec := b.find(collection, c.Param("id"))
		if rec == nil {
			notFound(c)
			return
		}
		b.records[collection] = append(b.records[collection][:i], b.records[collection][i+1:]...)
		c.Status(http.StatusNoContent)
	}
}

func (b *Backend) toggleActive(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		defer b.mu.Unlock()
		_, rec := b.find(collection, c.Param("id"))
		if rec == nil {
			notFound(c)
			return
		}
		active, _ := rec["is_active"].(bool)
		rec["is_active"] = !active
		c.JSON(http.StatusOK, gin.H{"is_active": !active})
	}
}

func (b *Backend) changePassword(c *gin.Context) {
	var body struct {
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || len(body.NewPassword) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"new_password": []string{"Ensure this field has at least 8 characters."}})
		return
	}

	id := c.Param("id")
	if id == "" || id == "me" {
		id = c.GetString("user_id")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	_, rec := b.find(Staff, id)
	if rec == nil {
		notFound(c)
		return
	}
	b.passwords[fmt.Sprint(rec["username"])] = body.NewPassword
	c.JSON(http.StatusOK, gin.H{"detail": "Password changed successfully."})
}

func (b *Backend) login(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	b.mu.Lock()
	var id int64
	for _, rec := range b.records[Staff] {
		if rec["username"] == body.Username && rec["is_active"] == true {
			id, _ = rec["id"].(int64)
		}
	}
	ok := id != 0 && b.passwords[body.Username] == body.Password
	b.mu.Unlock()

	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "No active account found with the given credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access":  b.TokenFor(id),
		"refresh": b.Token(jwt.MapClaims{"user_id": id, "token_type": "refresh"}),
	})
}

func (b *Backend) notificationStats(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	total, unread, unsent := 0, 0, 0
	byType := map[string]int{}
	for _, rec := range b.records[Notifications] {
		total++
		if rec["is_read"] != true {
			unread++
		}
		if rec["is_sent"] != true {
			unsent++
		}
		byType[fmt.Sprint(rec["notification_type"])]++
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "unread": unread, "unsent": unsent, "by_type": byType})
}

func (b *Backend) getSettings(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusOK, b.settings)
}

func (b *Backend) putSettings(c *gin.Context) {
	var body Record
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if price, _ := body["post_price"].(string); price == "" {
		c.JSON(http.StatusBadRequest, gin.H{"post_price": []string{"This field is required."}})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	body["id"] = b.settings["id"]
	b.settings = body
	c.JSON(http.StatusOK, body)
}
