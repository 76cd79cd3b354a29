package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wplc/livechat/internal/config"
)

func TestVisitorSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Chat: config.ChatCfg{CookieName: "wplc_session_id", CookieTTLDays: 30}}

	tests := []struct {
		name      string
		cookie    string
		wantReuse bool
	}{
		{name: "no cookie"},
		{name: "short cookie replaced", cookie: "abc"},
		{name: "exactly ten chars replaced", cookie: "0123456789"},
		{name: "long cookie reused", cookie: "wplc_existing-visitor", wantReuse: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(VisitorSession(cfg))
			var sid string
			r.GET("/w", func(c *gin.Context) {
				sid = VisitorSessionID(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/w", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "wplc_session_id", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			if tt.wantReuse {
				assert.Equal(t, tt.cookie, sid)
			} else {
				assert.True(t, strings.HasPrefix(sid, "wplc_"))
				assert.NotEqual(t, tt.cookie, sid)
			}

			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, sid, cookies[0].Value)
			assert.Equal(t, 30*24*3600, cookies[0].MaxAge)
			assert.True(t, cookies[0].HttpOnly)
		})
	}
}
