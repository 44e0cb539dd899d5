package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"admin-console/internal/session"
)

const (
	managerKey = "session_manager"
	rotateKey  = "session_rotate"
)

type SessionOptions struct {
	CookieName string
	Secure     bool
	MaxAge     time.Duration
}

// Session attaches the console session named by the cookie, creating one when
// needed, and settles its auth state before any handler runs. Until that
// happens nothing below it is served.
func Session(registry *session.Registry, opts SessionOptions, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(opts.CookieName)
		m, created := registry.Resolve(c.Request.Context(), id)
		if created {
			logger.Debug("Started console session", zap.String("session", m.ID()))
		}
		setSessionCookie(c, opts, m.ID())
		c.Set(rotateKey, func() *session.Manager {
			next := registry.Rotate(c.Request.Context(), SessionManager(c))
			setSessionCookie(c, opts, next.ID())
			c.Set(managerKey, next)
			return next
		})

		state := m.Initialize(c.Request.Context())
		if !state.Initialized {
			c.Header("Retry-After", "1")
			abortWith(c, http.StatusServiceUnavailable, "Initializing application...")
			return
		}
		m.Reconcile(c.Request.Context())

		c.Set(managerKey, m)
		c.Next()
	}
}

// RotateSession moves the request onto a brand-new console session and
// reissues the cookie. The previous session is signed out and its id dropped.
// It returns nil outside Session.
func RotateSession(c *gin.Context) *session.Manager {
	v, ok := c.Get(rotateKey)
	if !ok {
		return nil
	}
	rotate, _ := v.(func() *session.Manager)
	if rotate == nil {
		return nil
	}
	return rotate()
}

// setSessionCookie replaces any session cookie already queued on the response.
func setSessionCookie(c *gin.Context, opts SessionOptions, id string) {
	header := c.Writer.Header()
	var kept []string
	for _, v := range header.Values("Set-Cookie") {
		if !strings.HasPrefix(v, opts.CookieName+"=") {
			kept = append(kept, v)
		}
	}
	header.Del("Set-Cookie")
	for _, v := range kept {
		header.Add("Set-Cookie", v)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(opts.CookieName, id, int(opts.MaxAge.Seconds()), "/", "", opts.Secure, true)
}

// SessionManager returns the manager Session attached, or nil.
func SessionManager(c *gin.Context) *session.Manager {
	v, ok := c.Get(managerKey)
	if !ok {
		return nil
	}
	m, _ := v.(*session.Manager)
	return m
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

func abortWith(c *gin.Context, status int, message string) {
	if wantsJSON(c) {
		c.AbortWithStatusJSON(status, gin.H{"error": message})
		return
	}
	c.Data(status, "text/html; charset=utf-8", []byte("<!doctype html><p>"+message+"</p>"))
	c.Abort()
}
