package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"travel-booking-storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{BaseURL: server.URL, Timeout: 2 * time.Second}, nil)
	client.sleep = func(time.Duration) {}
	return client, server
}

func TestListCart_ReturnsSessionKey(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cart/", r.URL.Path)
		assert.Equal(t, "guest-abc", r.Header.Get("X-Session-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Write([]byte(`{"items":[],"session_key":"guest-abc"}`))
	}))

	resp, err := client.ListCart(context.Background(), "guest-abc")
	require.NoError(t, err)
	assert.Equal(t, "guest-abc", resp.SessionKey)
	assert.Empty(t, resp.Items)
}

func TestDo_DeduplicatesConcurrentIdenticalRequests(t *testing.T) {
	var hits int32
	release := make(chan struct{})

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		w.Write([]byte(`{"items":[]}`))
	}))

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.ListCart(context.Background(), "k")
		}(i)
	}

	// let all goroutines reach the registry before the first call settles
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "identical concurrent requests must share one network call")
}

func TestDo_SessionsNeverShareResponses(t *testing.T) {
	var hits int32
	release := make(chan struct{})

	// the backend echoes the session key that owns the cart
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		key := r.Header.Get("X-Session-Key")
		<-release
		w.Write([]byte(`{"items":[],"session_key":"` + key + `"}`))
	}))

	keys := []string{"guest-A", "guest-B"}
	resps := make([]*CartResponse, len(keys))
	errs := make([]error, len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			resps[i], errs[i] = client.ListCart(context.Background(), key)
		}(i, key)
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, key := range keys {
		require.NoError(t, errs[i])
		assert.Equal(t, key, resps[i].SessionKey,
			"a session must only ever see its own cart")
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits),
		"different sessions must not share a network call")
}

func TestDo_DistinctRequestsNotDeduplicated(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{}`))
	}))

	require.NoError(t, client.RemoveItem(context.Background(), "k", "a"))
	require.NoError(t, client.RemoveItem(context.Background(), "k", "b"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestPerform_RetriesTransportFailureOnce(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			// drop the connection without a response
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Write([]byte(`{"items":[]}`))
	}))

	_, err := client.ListCart(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestPerform_ConnectivityErrorAfterSecondFailure(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, nil)
	client.sleep = func(time.Duration) {}

	_, err := client.ListCart(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConnectivity)
}

func TestPerform_BusinessErrorsNeverRetried(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"code":"DUPLICATE_CART_ITEM","message":"already in cart"}}`))
	}))

	_, err := client.AddItem(context.Background(), "k", &models.CartItem{
		ProductType: models.ProductEvent,
		Quantity:    1,
		Event:       &models.EventBooking{PerformanceID: "p1"},
	})
	require.Error(t, err)

	cartErr, ok := models.AsCartError(err)
	require.True(t, ok)
	assert.Equal(t, models.CodeDuplicateCartItem, cartErr.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestPerform_MergeConflictCarriesStructuredData(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"code":"OVERBOOKING_CONFLICTS","message":"conflicting lines",
			"conflicts":[{"item_id":"g1","product_id":"p1","reason":"sold out"}],
			"redirect_to":"cart"}}`))
	}))

	_, err := client.MergeCart(context.Background(), "guest-abc", "attempt-1")
	require.Error(t, err)

	cartErr, ok := models.AsCartError(err)
	require.True(t, ok)
	assert.Equal(t, models.CodeOverbookingConflicts, cartErr.Code)
	require.Len(t, cartErr.Conflicts, 1)
	assert.Equal(t, "g1", cartErr.Conflicts[0].ItemID)
	assert.Equal(t, "cart", cartErr.RedirectTo)
}

type fakeTokens struct {
	mu        sync.Mutex
	token     string
	refreshed int
}

func (f *fakeTokens) Token() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.token != ""
}

func (f *fakeTokens) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	f.token = "fresh"
	return nil
}

func TestPerform_RefreshesTokenOnceOn401(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	tokens := &fakeTokens{token: "stale"}
	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second}, tokens)
	client.sleep = func(time.Duration) {}

	_, err := client.ListCart(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, tokens.refreshed)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestPerform_UnauthorizedAfterFailedRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &fakeTokens{token: "stale"}
	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second}, tokens)
	client.sleep = func(time.Duration) {}

	_, err := client.ListCart(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestPriceDryRun_UsesDryRunFlag(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cart/add/", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("dry_run"))
		w.Write([]byte(`{"base_price":"100","grand_total":"123.08","currency":"USD"}`))
	}))

	breakdown, err := client.PriceDryRun(context.Background(), "k", &models.CartItem{
		ProductType: models.ProductTransfer,
		Quantity:    1,
		Transfer:    &models.TransferBooking{RouteID: "r1", VehicleType: "sedan", TripType: models.TripOneWay, PickupTime: "12:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, "123.08", breakdown.GrandTotal.StringFixed(2))
}
