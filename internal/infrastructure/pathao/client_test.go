package pathao

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"orderdesk-backend/internal/domain"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a scripted stand-in for the courier API.
type fakeProvider struct {
	t *testing.T

	mu          sync.Mutex
	tokens      int
	validToken  string
	lastCreate  createOrderRequest
	creates     int32
	calls       map[string]int
	respond     map[string][]int // per-path status script, consumed in order
	cancelReply func(w http.ResponseWriter)
}

func newFakeProvider(t *testing.T) (*fakeProvider, *httptest.Server) {
	fp := &fakeProvider{
		t:       t,
		calls:   map[string]int{},
		respond: map[string][]int{},
	}
	srv := httptest.NewServer(http.HandlerFunc(fp.serve))
	t.Cleanup(srv.Close)
	return fp, srv
}

func (f *fakeProvider) nextStatus(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++
	script := f.respond[path]
	if len(script) == 0 {
		return http.StatusOK
	}
	status := script[0]
	f.respond[path] = script[1:]
	return status
}

func (f *fakeProvider) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, apiPrefix)

	if path == "/issue-token" {
		f.mu.Lock()
		f.tokens++
		f.validToken = "tok-" + string(rune('a'+f.tokens-1))
		tok := f.validToken
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, tokenResponse{TokenType: "Bearer", ExpiresIn: 3600, AccessToken: tok, RefreshToken: "refresh"})
		return
	}

	f.mu.Lock()
	valid := "Bearer " + f.validToken
	f.mu.Unlock()
	if r.Header.Get("Authorization") != valid {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
		return
	}

	status := f.nextStatus(path)
	if status != http.StatusOK {
		writeJSON(w, status, map[string]interface{}{"message": "scripted failure", "errors": map[string][]string{}})
		return
	}

	switch {
	case path == "/city-list":
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"code": 200, "type": "success",
			"data": map[string]interface{}{"data": []cityDTO{{CityID: 1, CityName: "Dhaka"}, {CityID: 2, CityName: "Chattogram"}}},
		})
	case path == "/cities/1/zone-list":
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{"data": []zoneDTO{{ZoneID: 10, ZoneName: "Baneshwor"}}},
		})
	case path == "/merchant/price-plan":
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": pricePlanResponse{Price: 120, Discount: 20, CODPercentage: 0.01, FinalPrice: 100},
		})
	case path == "/orders":
		body, _ := io.ReadAll(r.Body)
		var req createOrderRequest
		require.NoError(f.t, json.Unmarshal(body, &req))
		f.mu.Lock()
		f.lastCreate = req
		f.mu.Unlock()
		n := atomic.AddInt32(&f.creates, 1)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": createOrderResponse{ConsignmentID: "PTH12" + string(rune('2'+n)), MerchantOrderID: req.MerchantOrderID, OrderStatus: "Pending", DeliveryFee: 100},
		})
	case strings.HasSuffix(path, "/cancel"):
		if f.cancelReply != nil {
			f.cancelReply(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Order cancelled"})
	case strings.HasSuffix(path, "/info"):
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": orderInfoResponse{ConsignmentID: "PTH123", OrderStatusSlug: "In_Transit"},
		})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no route"})
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		Mode: ModeSandbox,
		Sandbox: Credentials{
			BaseURL:      baseURL,
			ClientID:     "id",
			ClientSecret: "secret",
			Username:     "merchant@example.com",
			Password:     "pw",
			StoreID:      77,
		},
		MaxRetries:        2,
		RetryBackoff:      time.Millisecond,
		RequestsPerSecond: 1000,
	})
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestNewClient_ModeSelectsCredentials(t *testing.T) {
	_, err := NewClient(Config{Mode: ModeLive, Sandbox: Credentials{ClientID: "a", ClientSecret: "b", StoreID: 1}})
	assert.Error(t, err, "live mode must not borrow sandbox credentials")

	_, err = NewClient(Config{Mode: "staging"})
	assert.Error(t, err)

	c, err := NewClient(Config{Mode: ModeLive, Live: Credentials{ClientID: "a", ClientSecret: "b", StoreID: 1}})
	require.NoError(t, err)
	assert.Equal(t, DefaultLiveURL, c.creds.BaseURL)
}

func TestListCities(t *testing.T) {
	_, srv := newFakeProvider(t)
	c := newTestClient(t, srv.URL)

	cities, err := c.ListCities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.City{{ID: 1, Name: "Dhaka"}, {ID: 2, Name: "Chattogram"}}, cities)

	zones, err := c.ListZones(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, int64(1), zones[0].CityID)
}

func TestCall_ReauthenticatesOnceOn401(t *testing.T) {
	fp, srv := newFakeProvider(t)
	c := newTestClient(t, srv.URL)

	_, err := c.ListCities(context.Background())
	require.NoError(t, err)

	// Provider rotates the token behind our back.
	fp.mu.Lock()
	fp.validToken = "rotated"
	fp.mu.Unlock()

	_, err = c.ListCities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fp.tokens)
}

func TestCall_RetriesServerErrors(t *testing.T) {
	fp, srv := newFakeProvider(t)
	fp.respond["/city-list"] = []int{http.StatusBadGateway, http.StatusServiceUnavailable}
	c := newTestClient(t, srv.URL)

	cities, err := c.ListCities(context.Background())
	require.NoError(t, err)
	assert.Len(t, cities, 2)
	assert.Equal(t, 3, fp.callCount("/city-list"))
}

func TestCall_ServerErrorsExhaustRetries(t *testing.T) {
	fp, srv := newFakeProvider(t)
	fp.respond["/city-list"] = []int{500, 500, 500, 500}
	c := newTestClient(t, srv.URL)

	_, err := c.ListCities(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCourierUnavailable)
	assert.Equal(t, 3, fp.callCount("/city-list"))
}

func TestCall_ClientErrorIsRejectedWithoutRetry(t *testing.T) {
	fp, srv := newFakeProvider(t)
	fp.respond["/orders"] = []int{http.StatusUnprocessableEntity}
	c := newTestClient(t, srv.URL)

	_, err := c.CreateConsignment(context.Background(), domain.ConsignmentRequest{MerchantOrderID: "o-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCourierRejected)
	assert.Equal(t, 1, fp.callCount("/orders"))
}

func TestCreateConsignment_NotRetriedOnGenericServerError(t *testing.T) {
	fp, srv := newFakeProvider(t)
	fp.respond["/orders"] = []int{http.StatusInternalServerError}
	c := newTestClient(t, srv.URL)

	_, err := c.CreateConsignment(context.Background(), domain.ConsignmentRequest{MerchantOrderID: "o-1"})
	assert.ErrorIs(t, err, domain.ErrCourierUnavailable)
	assert.Equal(t, 1, fp.callCount("/orders"))
}

func TestCreateConsignment_SendsPayloadAndDedupes(t *testing.T) {
	fp, srv := newFakeProvider(t)
	c := newTestClient(t, srv.URL)

	req := domain.ConsignmentRequest{
		MerchantOrderID:  "o-1",
		RecipientName:    "Sita",
		RecipientPhone:   "9800000000",
		RecipientAddress: "House 12, Road 5, Dhanmondi, Dhaka",
		CityID:           1,
		ZoneID:           10,
		AreaID:           100,
		Weight:           1.2,
		ItemQuantity:     2,
		AmountToCollect:  2650,
	}

	var wg sync.WaitGroup
	codes := make([]string, 5)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cons, err := c.CreateConsignment(context.Background(), req)
			if assert.NoError(t, err) {
				codes[i] = cons.TrackingCode
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&fp.creates))
	for _, code := range codes {
		assert.Equal(t, "PTH123", code)
	}
	fp.mu.Lock()
	sent := fp.lastCreate
	fp.mu.Unlock()
	assert.Equal(t, float64(2650), sent.AmountToCollect)
	assert.Equal(t, int64(77), sent.StoreID)
	assert.Equal(t, int64(100), sent.RecipientArea)
}

func TestCancelConsignment_PickedUp(t *testing.T) {
	fp, srv := newFakeProvider(t)
	fp.cancelReply = func(w http.ResponseWriter) {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Order already picked up"})
	}
	c := newTestClient(t, srv.URL)

	err := c.CancelConsignment(context.Background(), "PTH123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConsignmentPickedUp))
}

func TestCancelConsignment_AllowsRedispatch(t *testing.T) {
	fp, srv := newFakeProvider(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	first, err := c.CreateConsignment(ctx, domain.ConsignmentRequest{MerchantOrderID: "o-1"})
	require.NoError(t, err)
	require.NoError(t, c.CancelConsignment(ctx, first.TrackingCode))

	second, err := c.CreateConsignment(ctx, domain.ConsignmentRequest{MerchantOrderID: "o-1"})
	require.NoError(t, err)
	assert.NotEqual(t, first.TrackingCode, second.TrackingCode)
	assert.EqualValues(t, 2, atomic.LoadInt32(&fp.creates))
}

func TestQuotePrice_AddsCODCharge(t *testing.T) {
	_, srv := newFakeProvider(t)
	c := newTestClient(t, srv.URL)

	q, err := c.QuotePrice(context.Background(), domain.PriceQuoteRequest{CityID: 1, ZoneID: 10, Weight: 1, AmountToCollect: 1000})
	require.NoError(t, err)
	assert.Equal(t, 110.0, q.FinalPrice)

	q, err = c.QuotePrice(context.Background(), domain.PriceQuoteRequest{CityID: 1, ZoneID: 10, Weight: 1})
	require.NoError(t, err)
	assert.Equal(t, 100.0, q.FinalPrice)
}

func TestGetStatus(t *testing.T) {
	_, srv := newFakeProvider(t)
	c := newTestClient(t, srv.URL)

	status, err := c.GetStatus(context.Background(), "PTH123")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStatusInTransit, status)
}

func TestTokenFailureIsNotBypassed(t *testing.T) {
	var apiCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/issue-token") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
			return
		}
		atomic.AddInt32(&apiCalls, 1)
		writeJSON(w, http.StatusOK, map[string]interface{}{})
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	_, err := c.ListCities(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCourierRejected)
	assert.Zero(t, atomic.LoadInt32(&apiCalls))
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		slug string
		want domain.ProviderStatus
	}{
		{"Pickup_Requested", domain.ProviderStatusPending},
		{"Picked", domain.ProviderStatusPickedUp},
		{"In Transit", domain.ProviderStatusInTransit},
		{"Delivered", domain.ProviderStatusDelivered},
		{"Return", domain.ProviderStatusReturned},
		{"Pickup_Cancelled", domain.ProviderStatusCancelled},
		{"Something_New", domain.ProviderStatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeStatus(tt.slug))
		})
	}
}

func TestBackoff(t *testing.T) {
	c := &Client{cfg: Config{RetryBackoff: 100 * time.Millisecond}}
	assert.Equal(t, 100*time.Millisecond, c.backoff(0, ""))
	assert.Equal(t, 400*time.Millisecond, c.backoff(2, ""))
	assert.Equal(t, 3*time.Second, c.backoff(0, "3"))
	assert.Equal(t, maxBackoff, c.backoff(20, ""))
}
