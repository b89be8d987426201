package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/storefront-admin/internal/application"
	"github.com/oksasatya/storefront-admin/internal/domain/entity"
	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
	"github.com/oksasatya/storefront-admin/internal/infrastructure/memstore"
	"github.com/oksasatya/storefront-admin/internal/interface/middleware"
	"github.com/oksasatya/storefront-admin/pkg/helpers"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

func init() { gin.SetMode(gin.TestMode) }

type fakeAuth struct {
	mu               sync.Mutex
	anonCount        int
	passwordAttempts int
}

func (f *fakeAuth) SignInWithPassword(_ context.Context, email, password string) (*entity.Credential, error) {
	f.mu.Lock()
	f.passwordAttempts++
	f.mu.Unlock()
	if email != "admin@example.com" || password != "secret123" {
		return nil, fmt.Errorf("%w: INVALID_PASSWORD", repo.ErrCredentialsRejected)
	}
	return &entity.Credential{Identity: entity.Identity{ID: "uid-admin", Email: email}, Token: "tok-admin"}, nil
}

func (f *fakeAuth) SignInAnonymously(context.Context) (*entity.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.anonCount++
	id := fmt.Sprintf("anon-%d", f.anonCount)
	return &entity.Credential{Identity: entity.Identity{ID: id, IsAnonymous: true}, Token: "tok-" + id}, nil
}

func (f *fakeAuth) SignOut(context.Context, *entity.Credential) error { return nil }

func (f *fakeAuth) Resolve(_ context.Context, token string) (*entity.Credential, error) {
	if token == "tok-admin" {
		return &entity.Credential{Identity: entity.Identity{ID: "uid-admin", Email: "admin@example.com"}, Token: token}, nil
	}
	if id, ok := strings.CutPrefix(token, "tok-anon-"); ok {
		return &entity.Credential{Identity: entity.Identity{ID: "anon-" + id, IsAnonymous: true}, Token: token}, nil
	}
	return nil, errors.New("TOKEN_EXPIRED")
}

func (f *fakeAuth) passwordSignIns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.passwordAttempts
}

func (f *fakeAuth) anonymousSignIns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.anonCount
}

type fakeSearch struct {
	results []entity.Product
	err     error
	lastQ   string
}

func (f *fakeSearch) Search(_ context.Context, q string, _ int) ([]entity.Product, error) {
	f.lastQ = q
	return f.results, f.err
}

type fakeImages struct {
	mu       sync.Mutex
	uploaded []string
	removed  []string
	// afterUpload runs once the image is stored.
	afterUpload func()
}

func (f *fakeImages) Upload(_ context.Context, filename, _ string, _ io.Reader) (string, error) {
	f.mu.Lock()
	f.uploaded = append(f.uploaded, filename)
	f.mu.Unlock()
	if f.afterUpload != nil {
		f.afterUpload()
	}
	return "https://cdn.example.com/" + filename, nil
}

func (f *fakeImages) Remove(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, url)
	return nil
}

type testServer struct {
	engine   *gin.Engine
	store    *memstore.Store
	auth     *fakeAuth
	registry *DashboardRegistry
	handler  *AdminHandler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memstore.New()
	auth := &fakeAuth{}
	products := application.NewProductRepository(store, "test-app", nil, 0, nil)
	registry := NewDashboardRegistry(auth, products, nil, time.Second, time.Hour)
	t.Cleanup(registry.Close)

	h := NewAdminHandler(registry, helpers.NewCookie("", false), nil)
	h.Heartbeat = time.Hour

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RealIP(false), middleware.ClientID(h.Cookies))
	r.GET("/", h.Index)
	r.GET("/healthz", h.Health)
	r.GET("/admin", h.Page)
	r.POST("/admin/login", h.Login)
	r.POST("/admin/logout", h.Logout)
	r.POST("/admin/products", h.SaveProduct)
	r.POST("/admin/products/cancel", h.CancelEdit)
	r.POST("/admin/products/:id/edit", h.EditProduct)
	r.POST("/admin/products/:id/delete", h.DeleteProduct)
	r.GET("/admin/stream", h.Stream)
	r.GET("/api/products/search", middleware.RequireAdmin(registry), h.SearchProducts)

	return &testServer{engine: r, store: store, auth: auth, registry: registry, handler: h}
}

// browser keeps cookies between requests like a real one would.
type browser struct {
	srv     *testServer
	cookies map[string]*http.Cookie
}

func (s *testServer) browser() *browser {
	return &browser{srv: s, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	b.srv.engine.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) login(t *testing.T) {
	t.Helper()
	w := b.post("/admin/login", url.Values{"email": {"admin@example.com"}, "password": {"secret123"}})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	b.waitForPage(t, "No products added yet")
}

// waitForPage polls /admin until the body contains want.
func (b *browser) waitForPage(t *testing.T, want string) string {
	t.Helper()
	var body string
	require.Eventually(t, func() bool {
		body = b.get("/admin").Body.String()
		return strings.Contains(body, want)
	}, waitFor, tick, "page never contained %q", want)
	return body
}

func (b *browser) dashboard(t *testing.T) *application.Dashboard {
	t.Helper()
	d, ok := b.srv.registry.Lookup(b.cookies[helpers.ClientIDCookie].Value)
	require.True(t, ok)
	return d
}

// uploadRequest posts form as multipart with a PNG under "image".
func uploadRequest(t *testing.T, form url.Values, filename string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range form {
		require.NoError(t, mw.WriteField(k, v[0]))
	}
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
	hdr.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/products", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func paracetamolForm() url.Values {
	return url.Values{
		"name":        {"Paracetamol 500mg"},
		"category":    {string(entity.CategoryAllopathic)},
		"price":       {"₹50.00"},
		"description": {"Pain relief"},
	}
}
