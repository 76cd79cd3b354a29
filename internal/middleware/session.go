package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wplc/livechat/internal/config"
)

const (
	// VisitorSessionKey is the gin context key holding the visitor session id.
	VisitorSessionKey = "visitor_session_id"

	visitorSessionPrefix = "wplc_"
	minCookieSessionLen  = 10
)

// NewVisitorSessionID issues a fresh visitor session id.
func NewVisitorSessionID() string {
	return visitorSessionPrefix + uuid.NewString()
}

// VisitorSession makes sure every widget request carries a session id cookie. A cookie value
// longer than 10 characters is reused; anything else is replaced with a new id.
func VisitorSession(cfg *config.Config) gin.HandlerFunc {
	name := cfg.Chat.CookieName
	if name == "" {
		name = "wplc_session_id"
	}
	days := cfg.Chat.CookieTTLDays
	if days <= 0 {
		days = 30
	}
	return func(c *gin.Context) {
		sid, err := c.Cookie(name)
		sid = strings.TrimSpace(sid)
		if err != nil || len(sid) <= minCookieSessionLen {
			sid = NewVisitorSessionID()
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(name, sid, days*24*3600, "/", "", cfg.Chat.CookieSecure, true)
		c.Set(VisitorSessionKey, sid)
		c.Next()
	}
}

// VisitorSessionID returns the id set by VisitorSession, or "".
func VisitorSessionID(c *gin.Context) string {
	return c.GetString(VisitorSessionKey)
}
