package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/storefront-admin/internal/application"
	"github.com/oksasatya/storefront-admin/internal/domain/entity"
	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
	"github.com/oksasatya/storefront-admin/internal/interface/middleware"
	"github.com/oksasatya/storefront-admin/pkg/helpers"
	"github.com/oksasatya/storefront-admin/pkg/response"
)

const (
	adminPath     = "/admin"
	pageTitle     = "Admin Dashboard"
	maxImageBytes = 5 << 20
)

// Searcher looks products up in the search index.
type Searcher interface {
	Search(ctx context.Context, q string, size int) ([]entity.Product, error)
}

// AdminHandler serves the admin dashboard. Each browser drives its own
// Dashboard from the registry; form posts redirect back to /admin on
// success and re-render the page with an error status otherwise.
type AdminHandler struct {
	Dashboards *DashboardRegistry
	Cookies    *helpers.Manager
	Logger     *logrus.Logger

	// Optional collaborators; nil disables the feature.
	Images   repo.ImageStore
	Search   Searcher
	Notifier *application.LoginNotifier

	Heartbeat time.Duration
}

func NewAdminHandler(dashboards *DashboardRegistry, cookies *helpers.Manager, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		Dashboards: dashboards,
		Cookies:    cookies,
		Logger:     logger,
		Heartbeat:  15 * time.Second,
	}
}

type loginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
}

type productResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Price       string    `json:"price"`
	ImageURL    string    `json:"imageUrl"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (h *AdminHandler) dashboard(c *gin.Context) *application.Dashboard {
	token, _ := c.Cookie(helpers.AccessCookie)
	d := h.Dashboards.Acquire(c.Request.Context(), c.GetString(middleware.CtxClientID), token)
	h.persist(c, d, token)
	return d
}

// persist keeps the access cookie in step with the session, anonymous ones
// included, so a swept or restarted dashboard resumes the same identity.
func (h *AdminHandler) persist(c *gin.Context, d *application.Dashboard, sent string) {
	cred := d.Session.Credential()
	if cred == nil || cred.Token == "" || cred.Token == sent {
		return
	}
	h.Cookies.SetAccess(c, cred.Token, cred.ExpiresAt)
}

func (h *AdminHandler) page(d *application.Dashboard) PageData {
	return PageData{
		Title:   pageTitle,
		View:    d.View(),
		Search:  h.Search != nil,
		Uploads: h.Images != nil,
		Stream:  true,
	}
}

func (h *AdminHandler) render(c *gin.Context, status int, d *application.Dashboard) {
	c.Header("Cache-Control", "no-store")
	templ.Handler(AdminPage(h.page(d)), templ.WithStatus(status)).ServeHTTP(c.Writer, c.Request)
}

func (h *AdminHandler) back(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, adminPath)
}

func (h *AdminHandler) Index(c *gin.Context) {
	c.Redirect(http.StatusFound, adminPath)
}

// Page renders the login form or the dashboard.
func (h *AdminHandler) Page(c *gin.Context) {
	h.render(c, http.StatusOK, h.dashboard(c))
}

func (h *AdminHandler) Login(c *gin.Context) {
	d := h.dashboard(c)
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		d.ReportError("Login failed: " + err.Error())
		h.render(c, http.StatusBadRequest, d)
		return
	}

	if err := d.SubmitLogin(c.Request.Context(), form.Email, form.Password); err != nil {
		h.render(c, http.StatusUnauthorized, d)
		return
	}
	if cred := d.Session.Credential(); cred != nil && cred.Token != "" {
		h.Cookies.SetAccess(c, cred.Token, cred.ExpiresAt)
	}
	if id := d.Session.Current(); id != nil {
		h.Notifier.NotifyLogin(c.Request.Context(), id.Email, middleware.ClientIP(c), c.Request.UserAgent())
	}
	h.back(c)
}

func (h *AdminHandler) Logout(c *gin.Context) {
	d := h.dashboard(c)
	if err := d.SubmitLogout(c.Request.Context()); err != nil {
		h.render(c, http.StatusBadGateway, d)
		return
	}
	h.Cookies.ClearAccess(c)
	h.back(c)
}

// SaveProduct creates or updates the product in the form. An uploaded image
// replaces the image URL field.
func (h *AdminHandler) SaveProduct(c *gin.Context) {
	d := h.dashboard(c)
	var draft application.Draft
	if err := c.ShouldBind(&draft); err != nil {
		d.ReportError("Failed to save product: " + err.Error())
		h.render(c, http.StatusBadRequest, d)
		return
	}

	var uploaded string
	if h.Images != nil && d.Session.Current().IsAdmin() && d.Form.Check(draft) == nil {
		url, err := h.upload(c)
		if err != nil {
			d.ReportError("Failed to upload image: " + err.Error())
			h.render(c, http.StatusBadRequest, d)
			return
		}
		if url != "" {
			draft.ImageURL = url
			uploaded = url
		}
	}

	if _, err := d.SubmitProduct(c.Request.Context(), draft); err != nil {
		if uploaded != "" {
			h.discard(c.Request.Context(), uploaded)
		}
		h.render(c, statusFor(err), d)
		return
	}
	h.back(c)
}

// discard removes an image whose product was never saved.
func (h *AdminHandler) discard(ctx context.Context, url string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := h.Images.Remove(ctx, url); err != nil && h.Logger != nil {
		h.Logger.WithError(err).WithField("url", url).Warn("remove orphaned image")
	}
}

// upload stores the optional image file and returns its URL, or "" when no
// file was sent.
func (h *AdminHandler) upload(c *gin.Context) (string, error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if fh.Size > maxImageBytes {
		return "", errors.New("image is larger than " + strconv.Itoa(maxImageBytes>>20) + " MB")
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return h.Images.Upload(c.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), f)
}

func (h *AdminHandler) EditProduct(c *gin.Context) {
	d := h.dashboard(c)
	if err := d.RequestEdit(c.Param("id")); err != nil {
		h.render(c, http.StatusNotFound, d)
		return
	}
	h.back(c)
}

func (h *AdminHandler) CancelEdit(c *gin.Context) {
	h.dashboard(c).CancelEdit()
	h.back(c)
}

func (h *AdminHandler) DeleteProduct(c *gin.Context) {
	d := h.dashboard(c)
	if err := d.RequestDelete(c.Request.Context(), c.Param("id")); err != nil {
		h.render(c, statusFor(err), d)
		return
	}
	h.back(c)
}

// Stream pushes the rendered product table as "products" server-sent events
// whenever the dashboard changes, and a "reload" event when the sign-in
// state flips.
func (h *AdminHandler) Stream(c *gin.Context) {
	clientID := c.GetString(middleware.CtxClientID)
	d := h.dashboard(c)
	changes, cancel := d.Watch()
	defer cancel()

	ctx := c.Request.Context()
	initial := d.View().State
	send := func() bool {
		data := h.page(d)
		if data.View.State != initial {
			c.SSEvent("reload", "")
			c.Writer.Flush()
			return false
		}
		var buf bytes.Buffer
		if err := ProductTable(data).Render(ctx, &buf); err != nil {
			return false
		}
		c.SSEvent("products", buf.String())
		c.Writer.Flush()
		return true
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	if !send() {
		return
	}

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			h.Dashboards.Touch(clientID)
			if !send() {
				return
			}
		case <-ticker.C:
			h.Dashboards.Touch(clientID)
			c.SSEvent("ping", "")
			c.Writer.Flush()
		}
	}
}

// SearchProducts answers GET /api/products/search?q=&size=.
func (h *AdminHandler) SearchProducts(c *gin.Context) {
	if h.Search == nil {
		response.Error[any](c, http.StatusServiceUnavailable, "search is not configured", nil)
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if size <= 0 || size > 100 {
		size = 20
	}
	q := c.Query("q")
	products, err := h.Search.Search(c.Request.Context(), q, size)
	if err != nil {
		if h.Logger != nil {
			h.Logger.WithError(err).WithField("q", q).Error("product search failed")
		}
		response.Error[any](c, http.StatusBadGateway, "search failed", err.Error())
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, productResponse{
			ID:          p.ID,
			Name:        p.Name,
			Category:    string(p.Category),
			Price:       p.Price,
			ImageURL:    p.ImageURL,
			Description: p.Description,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		})
	}
	response.Success(c, http.StatusOK, out, "products", map[string]any{"q": q, "count": len(out)})
}

func (h *AdminHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "dashboards": h.Dashboards.Len()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, application.ErrInvalidDraft):
		return http.StatusUnprocessableEntity
	case errors.Is(err, application.ErrProductNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}
