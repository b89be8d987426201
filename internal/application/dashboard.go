package application

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/storefront-admin/internal/domain/entity"
)

// DisplayState is what the dashboard shows.
type DisplayState int

const (
	// StateUnauthenticated shows the login form only.
	StateUnauthenticated DisplayState = iota
	// StateAuthenticated shows the product form and table.
	StateAuthenticated
)

func (s DisplayState) String() string {
	if s == StateAuthenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// ProductCatalog is the repository surface the dashboard drives.
type ProductCatalog interface {
	ProductWriter
	Delete(ctx context.Context, id string) error
	SubscribeToProducts(fn func([]entity.Product), onErr func(error)) (func(), error)
}

// View is an immutable copy of everything a page render needs.
type View struct {
	State     DisplayState
	Identity  *entity.Identity
	Products  []entity.Product
	Loading   bool
	Draft     Draft
	EditingID string
	Message   string
	Error     string
}

// Dashboard gates the product admin views behind an email identity and keeps
// the product list in sync while one is signed in.
type Dashboard struct {
	Session  *SessionManager
	Products ProductCatalog
	Form     *ProductForm
	Logger   *logrus.Logger

	unsubscribeIdentity func()

	mu           sync.Mutex
	closed       bool
	state        DisplayState
	identity     *entity.Identity
	products     []entity.Product
	loading      bool
	message      string
	errMsg       string
	gen          uint64 // bumped on every state change; stale callbacks compare against it
	stopProducts func()
	watchers     map[int]chan struct{}
	nextWatcher  int
}

// NewDashboard subscribes to session and renders its identity right away.
func NewDashboard(session *SessionManager, products ProductCatalog, logger *logrus.Logger) *Dashboard {
	d := &Dashboard{
		Session:  session,
		Products: products,
		Form:     NewProductForm(products),
		Logger:   logger,
		watchers: make(map[int]chan struct{}),
	}
	d.unsubscribeIdentity = session.SubscribeToIdentity(d.onIdentity)
	return d
}

func (d *Dashboard) onIdentity(id *entity.Identity) {
	admin := id.IsAdmin()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.identity = id
	if admin == (d.state == StateAuthenticated) {
		d.mu.Unlock()
		d.changed()
		return
	}
	d.gen++
	gen := d.gen
	stop := d.stopProducts
	d.stopProducts = nil
	d.products = nil
	if admin {
		d.state = StateAuthenticated
		d.loading = true
	} else {
		d.state = StateUnauthenticated
		d.loading = false
	}
	d.mu.Unlock()

	if stop != nil {
		stop()
	}
	if admin {
		d.subscribe(gen)
	} else {
		d.Form.Cancel()
	}
	d.changed()
}

func (d *Dashboard) subscribe(gen uint64) {
	stop, err := d.Products.SubscribeToProducts(
		func(ps []entity.Product) { d.onProducts(gen, ps) },
		func(err error) { d.onProductsError(gen, err) },
	)
	if err != nil {
		d.onProductsError(gen, err)
		return
	}

	d.mu.Lock()
	if d.closed || d.gen != gen {
		d.mu.Unlock()
		stop()
		return
	}
	d.stopProducts = stop
	d.mu.Unlock()
}

func (d *Dashboard) onProducts(gen uint64, products []entity.Product) {
	d.mu.Lock()
	if d.closed || d.gen != gen {
		d.mu.Unlock()
		return
	}
	d.products = products
	d.loading = false
	d.mu.Unlock()
	d.changed()
}

// onProductsError keeps the last known list; nothing resubscribes.
func (d *Dashboard) onProductsError(gen uint64, err error) {
	d.mu.Lock()
	if d.closed || d.gen != gen {
		d.mu.Unlock()
		return
	}
	d.loading = false
	d.errMsg = "Failed to load products: " + err.Error()
	d.mu.Unlock()
	d.changed()
}

// SubmitLogin signs in with email and password.
func (d *Dashboard) SubmitLogin(ctx context.Context, email, password string) error {
	d.clearMessages()
	if err := d.Session.LoginWithCredentials(ctx, email, password); err != nil {
		d.setOutcome("", "Login failed: "+err.Error())
		return err
	}
	d.setOutcome("Logged in as Admin!", "")
	return nil
}

// SubmitLogout signs out. The dashboard becomes unauthenticated through the
// identity stream.
func (d *Dashboard) SubmitLogout(ctx context.Context) error {
	d.clearMessages()
	if err := d.Session.Logout(ctx); err != nil {
		d.setOutcome("", "Logout failed: "+err.Error())
		return err
	}
	d.setOutcome("Logged out.", "")
	return nil
}

// SubmitProduct validates and writes the draft. A write that completes after
// the user has signed out is not reported.
func (d *Dashboard) SubmitProduct(ctx context.Context, draft Draft) (Result, error) {
	gen := d.clearMessages()
	if !d.Session.Current().IsAdmin() {
		d.setOutcome("", "User not authenticated for this action.")
		return Result{}, fail(ErrUnauthorized, nil)
	}

	res, err := d.Form.Submit(ctx, draft)
	if err != nil {
		d.setOutcomeIf(gen, "", "Failed to save product: "+err.Error())
		return Result{}, err
	}
	if res.Updated {
		d.setOutcomeIf(gen, "Product updated successfully!", "")
	} else {
		d.setOutcomeIf(gen, "Product added successfully!", "")
	}
	return res, nil
}

// RequestEdit loads product id from the current list into the form.
func (d *Dashboard) RequestEdit(id string) error {
	d.mu.Lock()
	var (
		found entity.Product
		ok    bool
	)
	if d.state == StateAuthenticated {
		for _, p := range d.products {
			if p.ID == id {
				found, ok = p, true
				break
			}
		}
	}
	d.mu.Unlock()

	if !ok {
		return ErrProductNotFound
	}
	d.Form.Edit(found)
	d.changed()
	return nil
}

// CancelEdit returns the form to create mode.
func (d *Dashboard) CancelEdit() {
	d.Form.Cancel()
	d.changed()
}

// RequestDelete deletes product id. The identity is checked at call time and
// the store is never reached without an email identity.
func (d *Dashboard) RequestDelete(ctx context.Context, id string) error {
	gen := d.clearMessages()
	if !d.Session.Current().IsAdmin() {
		d.setOutcome("", "You must be logged in as an admin to delete products.")
		return fail(ErrUnauthorized, nil)
	}

	if err := d.Products.Delete(ctx, id); err != nil {
		d.setOutcomeIf(gen, "", "Failed to delete product: "+err.Error())
		return err
	}
	if d.Form.Editing() == id {
		d.Form.Cancel()
	}
	d.setOutcomeIf(gen, "Product deleted successfully!", "")
	return nil
}

// ReportError shows msg in the error banner, replacing any earlier outcome.
func (d *Dashboard) ReportError(msg string) {
	d.clearMessages()
	d.setOutcome("", msg)
}

// View returns a snapshot of the dashboard for rendering.
func (d *Dashboard) View() View {
	d.mu.Lock()
	v := View{
		State:    d.state,
		Identity: cloneIdentity(d.identity),
		Loading:  d.loading,
		Message:  d.message,
		Error:    d.errMsg,
	}
	if d.products != nil {
		v.Products = append([]entity.Product(nil), d.products...)
	}
	d.mu.Unlock()

	v.Draft = d.Form.Draft()
	v.EditingID = d.Form.Editing()
	return v
}

// Watch returns a channel that receives a value after every change. Signals
// coalesce; a slow reader sees at most one pending signal. The channel is
// closed when the dashboard closes. cancel releases the channel.
func (d *Dashboard) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	d.mu.Lock()
	id := d.nextWatcher
	d.nextWatcher++
	if d.closed {
		close(ch)
	} else {
		d.watchers[id] = ch
	}
	d.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.watchers, id)
			d.mu.Unlock()
		})
	}
}

// Close releases the identity and product subscriptions. It is safe to call
// more than once.
func (d *Dashboard) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.gen++
	stop := d.stopProducts
	d.stopProducts = nil
	for _, ch := range d.watchers {
		close(ch)
	}
	d.watchers = make(map[int]chan struct{})
	d.mu.Unlock()

	d.unsubscribeIdentity()
	if stop != nil {
		stop()
	}
}

// clearMessages resets the banner and returns the current generation.
func (d *Dashboard) clearMessages() uint64 {
	d.mu.Lock()
	d.message, d.errMsg = "", ""
	gen := d.gen
	d.mu.Unlock()
	return gen
}

func (d *Dashboard) setOutcome(msg, errMsg string) {
	d.mu.Lock()
	d.message, d.errMsg = msg, errMsg
	d.mu.Unlock()
	d.changed()
}

func (d *Dashboard) setOutcomeIf(gen uint64, msg, errMsg string) {
	d.mu.Lock()
	if d.gen != gen {
		d.mu.Unlock()
		if d.Logger != nil && errMsg != "" {
			d.Logger.WithField("error", errMsg).Info("dropping result of write finished after sign-out")
		}
		return
	}
	d.message, d.errMsg = msg, errMsg
	d.mu.Unlock()
	d.changed()
}

func (d *Dashboard) changed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
