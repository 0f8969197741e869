package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/internal/infrastructure/cache"
	"orderdesk-backend/internal/repository/memory"

	"github.com/stretchr/testify/require"
)

// stubGateway is an in-process courier. Consignments are keyed by merchant order id.
type stubGateway struct {
	mu          sync.Mutex
	createCalls int
	cancelCalls int
	quoteCalls  int
	lastQuote   domain.PriceQuoteRequest
	lastCreate  domain.ConsignmentRequest
	byOrder     map[string]string
	nextCode    int

	createDelay time.Duration
	createErr   error
	cancelErr   error
	status      domain.ProviderStatus
	price       float64

	cities []domain.City
	zones  map[int64][]domain.Zone
	areas  map[int64][]domain.Area
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		byOrder:  make(map[string]string),
		nextCode: 123,
		price:    100,
		cities:   []domain.City{{ID: 1, Name: "Dhaka"}, {ID: 2, Name: "Chittagong"}},
		zones: map[int64][]domain.Zone{
			1: {{ID: 52, CityID: 1, Name: "Dhanmondi"}, {ID: 53, CityID: 1, Name: "Gulshan"}},
			2: {{ID: 80, CityID: 2, Name: "Agrabad"}},
		},
		areas: map[int64][]domain.Area{
			52: {{ID: 100, ZoneID: 52, Name: "Road 27", HomeDeliveryAvailable: true}},
			53: {{ID: 200, ZoneID: 53, Name: "Gulshan 1"}},
		},
	}
}

func (g *stubGateway) Name() string { return "pathao" }

func (g *stubGateway) ListCities(context.Context) ([]domain.City, error) {
	return g.cities, nil
}

func (g *stubGateway) ListZones(_ context.Context, cityID int64) ([]domain.Zone, error) {
	return g.zones[cityID], nil
}

func (g *stubGateway) ListAreas(_ context.Context, zoneID int64) ([]domain.Area, error) {
	return g.areas[zoneID], nil
}

func (g *stubGateway) QuotePrice(_ context.Context, req domain.PriceQuoteRequest) (*domain.PriceQuote, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quoteCalls++
	g.lastQuote = req
	return &domain.PriceQuote{Price: g.price, FinalPrice: g.price}, nil
}

func (g *stubGateway) CreateConsignment(_ context.Context, req domain.ConsignmentRequest) (*domain.Consignment, error) {
	if g.createDelay > 0 {
		time.Sleep(g.createDelay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	g.lastCreate = req
	if g.createErr != nil {
		return nil, g.createErr
	}
	code, ok := g.byOrder[req.MerchantOrderID]
	if !ok {
		code = fmt.Sprintf("PTH%d", g.nextCode)
		g.nextCode++
		g.byOrder[req.MerchantOrderID] = code
	}
	return &domain.Consignment{TrackingCode: code, MerchantOrderID: req.MerchantOrderID, Status: "Pending"}, nil
}

func (g *stubGateway) CancelConsignment(_ context.Context, trackingCode string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelCalls++
	if g.cancelErr != nil {
		return g.cancelErr
	}
	for id, code := range g.byOrder {
		if code == trackingCode {
			delete(g.byOrder, id)
		}
	}
	return nil
}

func (g *stubGateway) GetStatus(context.Context, string) (domain.ProviderStatus, error) {
	return g.status, nil
}

func (g *stubGateway) counts() (create, cancel int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createCalls, g.cancelCalls
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.StatusEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, e domain.StatusEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func (n *recordingNotifier) all() []domain.StatusEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.StatusEvent(nil), n.events...)
}

type recordingArchive struct {
	mu       sync.Mutex
	receipts []domain.ConsignmentReceipt
}

func (a *recordingArchive) Store(_ context.Context, r domain.ConsignmentReceipt) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.receipts = append(a.receipts, r)
	return nil
}

type harness struct {
	orders   *memory.OrderRepository
	locker   *memory.OrderLocker
	riders   *memory.RiderRepository
	rates    *memory.ConfigRepository
	gateway  *stubGateway
	notifier *recordingNotifier
	archive  *recordingArchive
	settings *SettingsProvider

	writer   *OrderWriter
	shipping *ShippingUsecase
	coverage *CourierUsecase
	reversal *ReversalUsecase
	dispatch *DispatchUsecase
	order    *OrderUsecase
	payment  *PaymentUsecase
}

func defaultSettings() domain.DispatchSettings {
	return domain.DispatchSettings{
		RiderDeliveryEnabled:   true,
		CourierDeliveryEnabled: true,
		EnabledPaymentMethods:  []domain.PaymentMethod{domain.PaymentMethodCOD, domain.PaymentMethodEsewa, domain.PaymentMethodKhalti},
		FreeShippingThreshold:  5000,
		DefaultShippingCharge:  150,
		DefaultItemWeight:      0.5,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		orders: memory.NewOrderRepository(),
		riders: memory.NewRiderRepository(
			domain.Rider{ID: "rider-1", Name: "Karim", Phone: "01711111111", IsActive: true},
			domain.Rider{ID: "rider-2", Name: "Jamal", Phone: "01722222222", IsActive: false},
		),
		rates: memory.NewConfigRepository(
			domain.ShippingRate{Province: "Dhaka", Label: "Inside Dhaka", Cost: 60, IsActive: true},
			domain.ShippingRate{Province: "Sylhet", Cost: 130, FreeShippingThreshold: domain.Ptr(8000.0), IsActive: true},
		),
		gateway:  newStubGateway(),
		notifier: &recordingNotifier{},
		archive:  &recordingArchive{},
		settings: NewSettingsProvider(defaultSettings()),
	}
	h.locker = memory.NewOrderLocker()
	h.writer = NewOrderWriter(h.orders, memory.NewTransactionManager(), h.locker, h.notifier)
	h.shipping = NewShippingUsecase(h.rates, h.gateway, h.settings)
	h.coverage = NewCourierUsecase(h.gateway, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)
	h.reversal = NewReversalUsecase(h.writer, h.gateway, h.archive)
	h.dispatch = NewDispatchUsecase(h.writer, h.orders, h.riders, h.gateway, h.coverage, h.reversal, h.archive, h.settings)
	h.order = NewOrderUsecase(h.writer, h.orders, h.shipping, h.coverage, h.reversal, h.settings)
	h.payment = NewPaymentUsecase(h.writer, h.reversal)
	return h
}

// seedOrder stores an order directly, bypassing checkout pricing.
func (h *harness) seedOrder(t *testing.T, mutate func(o *domain.Order)) *domain.Order {
	t.Helper()
	o := &domain.Order{
		ID:             fmt.Sprintf("order-%d", seedSeq.Add(1)),
		CustomerName:   "Rahim",
		Status:         domain.OrderStatusPending,
		PaymentStatus:  domain.PaymentStatusUnpaid,
		PaymentMethod:  domain.PaymentMethodCOD,
		DeliveryMethod: domain.DeliveryMethodExternal,
		DeliveryType:   domain.DeliveryTypeUnassigned,
		SubTotal:       2500,
		ShippingCost:   150,
		TotalAmount:    2650,
		ShippingAddress: domain.ShippingAddress{
			Name: "Rahim", Phone: "01700000000", Street: "House 1, Road 27",
			City: "Dhaka", District: "Dhaka", Province: "Dhaka",
		},
		Items: []domain.OrderItem{{ProductID: "p1", Name: "Panjabi", Quantity: 1, Price: 2500}},
	}
	if mutate != nil {
		mutate(o)
	}
	require.NoError(t, h.orders.CreateOrder(context.Background(), o))
	stored, err := h.orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	return stored
}

var seedSeq atomic.Int64

func dhakaDispatch() ExternalDispatch {
	return ExternalDispatch{CityID: 1, ZoneID: 52, AreaID: 100}
}
