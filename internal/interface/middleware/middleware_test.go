package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/storefront-admin/internal/domain/entity"
	"github.com/oksasatya/storefront-admin/pkg/helpers"
	"github.com/oksasatya/storefront-admin/pkg/response"
)

func init() { gin.SetMode(gin.TestMode) }

func TestRequestIDKeepsValidIncomingID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(response.RequestIDKey)) })

	in := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, in)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, in, w.Body.String())
	assert.Equal(t, in, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err)
}

func TestRealIPHonoursProxyHeadersOnlyWhenTrusted(t *testing.T) {
	serve := func(trust bool) string {
		r := gin.New()
		require.NoError(t, r.SetTrustedProxies(nil))
		r.Use(RealIP(trust))
		r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, ClientIP(c)) })
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.9:5555"
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Body.String()
	}
	assert.Equal(t, "203.0.113.7", serve(true))
	assert.NotEqual(t, "203.0.113.7", serve(false))
}

func TestOnlyPrivateIP(t *testing.T) {
	r := gin.New()
	r.Use(RealIP(false), Only(PrivateIP()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClientIDIssuesCookieOnce(t *testing.T) {
	r := gin.New()
	r.Use(ClientID(helpers.NewCookie("", false)))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CtxClientID)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, helpers.ClientIDCookie, cookies[0].Name)
	assert.Equal(t, cookies[0].Value, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Result().Cookies())
	assert.Equal(t, cookies[0].Value, w.Body.String())
}

type staticLookup map[string]*entity.Identity

func (s staticLookup) IdentityFor(id string) *entity.Identity { return s[id] }

func TestRequireAdmin(t *testing.T) {
	lookup := staticLookup{
		"admin": {ID: "u1", Email: "admin@example.com"},
		"anon":  {ID: "u2", IsAnonymous: true},
	}
	serve := func(clientID string) *httptest.ResponseRecorder {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			if clientID != "" {
				c.Set(CtxClientID, clientID)
			}
			c.Next()
		}, RequireAdmin(lookup))
		r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CtxUserEmail)) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		return w
	}

	w := serve("admin")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin@example.com", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve("anon").Code)
	assert.Equal(t, http.StatusUnauthorized, serve("stranger").Code)
	assert.Equal(t, http.StatusUnauthorized, serve("").Code)
}

func TestRateLimitWithoutRedisPasses(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(nil, 1, 0, KeyByIP(), nil))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}
