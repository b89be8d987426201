package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/storefront-admin/internal/domain/entity"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func newDashboard(t *testing.T, f *fixture) (*Dashboard, *spyCatalog) {
	t.Helper()
	spy := &spyCatalog{ProductRepository: f.repo}
	d := NewDashboard(f.session, spy, nil)
	t.Cleanup(d.Close)
	return d, spy
}

func login(t *testing.T, d *Dashboard) {
	t.Helper()
	require.NoError(t, d.SubmitLogin(context.Background(), "admin@example.com", "secret123"))
}

func TestDashboardStartsUnauthenticated(t *testing.T) {
	f := newFixture(t)
	d, spy := newDashboard(t, f)

	v := d.View()
	assert.Equal(t, StateUnauthenticated, v.State)
	assert.Nil(t, v.Identity)

	f.session.BootstrapAnonymous(context.Background())
	v = d.View()
	assert.Equal(t, StateUnauthenticated, v.State, "anonymous identities see the login form")
	require.NotNil(t, v.Identity)
	assert.True(t, v.Identity.IsAnonymous)

	_, subscribes, _ := spy.counts()
	assert.Equal(t, 0, subscribes)
}

func TestDashboardLoginShowsProducts(t *testing.T) {
	f := newFixture(t)
	_, err := f.repo.Create(context.Background(), paracetamol())
	require.NoError(t, err)
	d, spy := newDashboard(t, f)

	login(t, d)
	v := d.View()
	assert.Equal(t, StateAuthenticated, v.State)
	assert.Equal(t, "Logged in as Admin!", v.Message)
	assert.Empty(t, v.Error)

	require.Eventually(t, func() bool { return len(d.View().Products) == 1 }, waitFor, tick)
	assert.False(t, d.View().Loading)
	assert.Equal(t, "Paracetamol", d.View().Products[0].Name)

	_, subscribes, active := spy.counts()
	assert.Equal(t, 1, subscribes)
	assert.Equal(t, 1, active)
}

func TestDashboardWrongPassword(t *testing.T) {
	f := newFixture(t)
	d, spy := newDashboard(t, f)

	err := d.SubmitLogin(context.Background(), "admin@example.com", "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	v := d.View()
	assert.Equal(t, StateUnauthenticated, v.State)
	assert.Nil(t, v.Identity)
	assert.Equal(t, "Login failed: credentials rejected: INVALID_PASSWORD", v.Error)

	_, subscribes, _ := spy.counts()
	assert.Equal(t, 0, subscribes)
}

func TestDashboardLogoutReleasesSubscription(t *testing.T) {
	f := newFixture(t)
	d, spy := newDashboard(t, f)
	login(t, d)

	require.NoError(t, d.SubmitLogout(context.Background()))
	v := d.View()
	assert.Equal(t, StateUnauthenticated, v.State)
	assert.Equal(t, "Logged out.", v.Message)
	assert.Empty(t, v.Products)

	_, subscribes, active := spy.counts()
	assert.Equal(t, 1, subscribes)
	assert.Equal(t, 0, active)
}

func TestDashboardHoldsOneIdentitySubscription(t *testing.T) {
	f := newFixture(t)
	d, _ := newDashboard(t, f)

	for i := 0; i < 3; i++ {
		login(t, d)
		require.NoError(t, d.SubmitLogout(context.Background()))
	}
	f.session.mu.Lock()
	n := len(f.session.listeners)
	f.session.mu.Unlock()
	assert.Equal(t, 1, n)

	d.Close()
	d.Close()
	f.session.mu.Lock()
	n = len(f.session.listeners)
	f.session.mu.Unlock()
	assert.Equal(t, 0, n)
}

func TestDashboardCloseReleasesProductSubscription(t *testing.T) {
	f := newFixture(t)
	d, spy := newDashboard(t, f)
	login(t, d)

	d.Close()
	_, _, active := spy.counts()
	assert.Equal(t, 0, active)
}

func TestDashboardUnauthorizedDeleteNeverReachesStore(t *testing.T) {
	f := newFixture(t)
	id, err := f.repo.Create(context.Background(), paracetamol())
	require.NoError(t, err)
	d, spy := newDashboard(t, f)

	// absent identity
	err = d.RequestDelete(context.Background(), id)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	// anonymous identity
	f.session.BootstrapAnonymous(context.Background())
	err = d.RequestDelete(context.Background(), id)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, "You must be logged in as an admin to delete products.", d.View().Error)

	deletes, _, _ := spy.counts()
	assert.Equal(t, 0, deletes)
	_, ok := f.mem.Get(ProductCollectionPath(testAppID), id)
	assert.True(t, ok)
}

func TestDashboardDelete(t *testing.T) {
	f := newFixture(t)
	id, err := f.repo.Create(context.Background(), paracetamol())
	require.NoError(t, err)
	d, _ := newDashboard(t, f)
	login(t, d)
	require.Eventually(t, func() bool { return len(d.View().Products) == 1 }, waitFor, tick)

	require.NoError(t, d.RequestDelete(context.Background(), id))
	assert.Equal(t, "Product deleted successfully!", d.View().Message)
	require.Eventually(t, func() bool { return len(d.View().Products) == 0 }, waitFor, tick)
}

func TestDashboardDeleteFailure(t *testing.T) {
	f := newFixture(t)
	f.store.deleteErr = errors.New("PERMISSION_DENIED")
	d, _ := newDashboard(t, f)
	login(t, d)

	err := d.RequestDelete(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrWriteFailed))
	assert.Equal(t, "Failed to delete product: PERMISSION_DENIED", d.View().Error)
}

func TestDashboardSubmitProduct(t *testing.T) {
	f := newFixture(t)
	d, _ := newDashboard(t, f)

	_, err := d.SubmitProduct(context.Background(), validDraft())
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, "User not authenticated for this action.", d.View().Error)

	login(t, d)
	res, err := d.SubmitProduct(context.Background(), validDraft())
	require.NoError(t, err)
	assert.Equal(t, "Product added successfully!", d.View().Message)
	require.Eventually(t, func() bool { return len(d.View().Products) == 1 }, waitFor, tick)

	require.NoError(t, d.RequestEdit(res.ID))
	v := d.View()
	assert.Equal(t, res.ID, v.EditingID)
	assert.Equal(t, "Paracetamol", v.Draft.Name)

	draft := v.Draft
	draft.Price = "₹22"
	_, err = d.SubmitProduct(context.Background(), draft)
	require.NoError(t, err)
	v = d.View()
	assert.Equal(t, "Product updated successfully!", v.Message)
	assert.Empty(t, v.EditingID)
	assert.Equal(t, "₹22", f.stored(t, res.ID).Price)
}

func TestDashboardSubmitInvalidProduct(t *testing.T) {
	f := newFixture(t)
	d, _ := newDashboard(t, f)
	login(t, d)

	d2 := validDraft()
	d2.Price = ""
	_, err := d.SubmitProduct(context.Background(), d2)
	assert.True(t, errors.Is(err, ErrInvalidDraft))
	assert.Equal(t, "Failed to save product: price is required", d.View().Error)
}

func TestDashboardEditUnknownProduct(t *testing.T) {
	f := newFixture(t)
	d, _ := newDashboard(t, f)
	login(t, d)

	assert.ErrorIs(t, d.RequestEdit("missing"), ErrProductNotFound)
	d.CancelEdit()
	assert.Empty(t, d.View().EditingID)
}

func TestDashboardProductStreamError(t *testing.T) {
	f := newFixture(t)
	f.store.streamErr = errors.New("PERMISSION_DENIED")
	d, _ := newDashboard(t, f)
	login(t, d)

	require.Eventually(t, func() bool {
		return d.View().Error == "Failed to load products: PERMISSION_DENIED"
	}, waitFor, tick)
	assert.Equal(t, StateAuthenticated, d.View().State)
}

// A failed product stream keeps the last list on screen and is not reopened.
func TestDashboardStreamErrorKeepsLastList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.repo.Create(ctx, paracetamol())
	require.NoError(t, err)
	syrup := paracetamol()
	syrup.Name = "Cough Syrup"
	syrup.Category = entity.CategorySyrups
	_, err = f.repo.Create(ctx, syrup)
	require.NoError(t, err)

	f.store.streamErr = errors.New("PERMISSION_DENIED")
	f.store.streamErrAt = make(chan struct{})
	d, spy := newDashboard(t, f)
	login(t, d)
	require.Eventually(t, func() bool { return len(d.View().Products) == 2 }, waitFor, tick)

	close(f.store.streamErrAt)
	require.Eventually(t, func() bool {
		return d.View().Error == "Failed to load products: PERMISSION_DENIED"
	}, waitFor, tick)

	v := d.View()
	assert.Equal(t, StateAuthenticated, v.State)
	assert.False(t, v.Loading)
	require.Len(t, v.Products, 2)
	assert.Equal(t, "Paracetamol", v.Products[0].Name)
	assert.Equal(t, "Cough Syrup", v.Products[1].Name)

	_, subscribes, active := spy.counts()
	assert.Equal(t, 1, subscribes, "no resubscription after the failure")
	assert.Equal(t, 1, active)
}

func TestDashboardWatchSignalsChanges(t *testing.T) {
	f := newFixture(t)
	d, _ := newDashboard(t, f)
	ch, cancel := d.Watch()
	defer cancel()

	login(t, d)
	select {
	case <-ch:
	case <-time.After(waitFor):
		t.Fatal("no change signal after login")
	}
	cancel()
	cancel()
}

func TestDashboardCloseEndsWatchers(t *testing.T) {
	f := newFixture(t)
	d, _ := newDashboard(t, f)
	ch, cancel := d.Watch()
	defer cancel()

	d.Close()
	_, open := <-ch
	assert.False(t, open)

	late, cancelLate := d.Watch()
	defer cancelLate()
	_, open = <-late
	assert.False(t, open)
}

// A write started before logout still lands in the store, but the signed-out
// dashboard neither reports it nor renders the refreshed list.
func TestDashboardLogoutDuringWrite(t *testing.T) {
	f := newFixture(t)
	id, err := f.repo.Create(context.Background(), paracetamol())
	require.NoError(t, err)
	d, spy := newDashboard(t, f)
	login(t, d)
	require.Eventually(t, func() bool { return len(d.View().Products) == 1 }, waitFor, tick)
	require.NoError(t, d.RequestEdit(id))

	f.store.updateEntered = make(chan struct{})
	f.store.updateRelease = make(chan struct{})

	draft := d.View().Draft
	draft.Price = "₹35"
	done := make(chan error, 1)
	go func() {
		_, err := d.SubmitProduct(context.Background(), draft)
		done <- err
	}()

	<-f.store.updateEntered
	require.NoError(t, d.SubmitLogout(context.Background()))
	assert.Equal(t, StateUnauthenticated, d.View().State)

	close(f.store.updateRelease)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("write never completed")
	}

	assert.Equal(t, "₹35", f.stored(t, id).Price)

	// give the store time to deliver a snapshot to anyone still listening
	time.Sleep(50 * time.Millisecond)
	v := d.View()
	assert.Equal(t, StateUnauthenticated, v.State)
	assert.Empty(t, v.Products)
	assert.Equal(t, "Logged out.", v.Message)
	_, _, active := spy.counts()
	assert.Equal(t, 0, active)
}
