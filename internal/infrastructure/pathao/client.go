package pathao

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/logger"

	"github.com/goccy/go-json"
	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	apiPrefix   = "/aladdin/api/v1"
	maxBackoff  = 10 * time.Second
	courierName = "pathao"
)

// retryPolicy says which failures may be retried for a request.
type retryPolicy int

const (
	// retryIdempotent retries network errors, 5xx and 429.
	retryIdempotent retryPolicy = iota
	// retryUnprocessed retries only responses that prove the provider did
	// nothing (429, 503). Used for consignment creation.
	retryUnprocessed
)

func (p retryPolicy) retriesStatus(status int) bool {
	switch p {
	case retryIdempotent:
		return status >= 500 || status == http.StatusTooManyRequests
	case retryUnprocessed:
		return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
	}
	return false
}

func (p retryPolicy) retriesNetwork() bool {
	return p == retryIdempotent
}

// APIError is the provider's non-2xx answer.
type APIError struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("courier status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("courier status %d: %s %v", e.Status, e.Message, e.Fields)
}

func parseAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status, Message: http.StatusText(status)}
	var env envelope[json.RawMessage]
	if err := json.Unmarshal(raw, &env); err == nil {
		if env.Message != "" {
			apiErr.Message = env.Message
		}
		apiErr.Fields = env.Errors
	}
	return apiErr
}

// Client implements domain.CourierGateway against the Pathao merchant API.
type Client struct {
	cfg     Config
	creds   Credentials
	http    *http.Client
	tokens  *tokenSource
	limiter *rate.Limiter
	created *gocache.Cache
	group   singleflight.Group
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	creds, err := cfg.active()
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	logger.Get().Info().Str("mode", cfg.modeName()).Str("base_url", creds.BaseURL).Msg("courier gateway configured")
	return &Client{
		cfg:     cfg,
		creds:   creds,
		http:    httpClient,
		tokens:  newTokenSource(creds, httpClient),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		created: gocache.New(cfg.DedupeTTL, cfg.DedupeTTL/2),
		sleep:   sleepCtx,
	}, nil
}

func (c *Client) Name() string {
	return courierName
}

func (c *Client) ListCities(ctx context.Context) ([]domain.City, error) {
	var out envelope[listData[cityDTO]]
	if err := c.call(ctx, http.MethodGet, "/city-list", nil, &out, retryIdempotent); err != nil {
		return nil, err
	}
	cities := make([]domain.City, 0, len(out.Data.Data))
	for _, d := range out.Data.Data {
		cities = append(cities, domain.City{ID: d.CityID, Name: d.CityName})
	}
	return cities, nil
}

func (c *Client) ListZones(ctx context.Context, cityID int64) ([]domain.Zone, error) {
	var out envelope[listData[zoneDTO]]
	path := fmt.Sprintf("/cities/%d/zone-list", cityID)
	if err := c.call(ctx, http.MethodGet, path, nil, &out, retryIdempotent); err != nil {
		return nil, err
	}
	zones := make([]domain.Zone, 0, len(out.Data.Data))
	for _, d := range out.Data.Data {
		zones = append(zones, domain.Zone{ID: d.ZoneID, CityID: cityID, Name: d.ZoneName})
	}
	return zones, nil
}

func (c *Client) ListAreas(ctx context.Context, zoneID int64) ([]domain.Area, error) {
	var out envelope[listData[areaDTO]]
	path := fmt.Sprintf("/zones/%d/area-list", zoneID)
	if err := c.call(ctx, http.MethodGet, path, nil, &out, retryIdempotent); err != nil {
		return nil, err
	}
	areas := make([]domain.Area, 0, len(out.Data.Data))
	for _, d := range out.Data.Data {
		areas = append(areas, domain.Area{
			ID:                    d.AreaID,
			ZoneID:                zoneID,
			Name:                  d.AreaName,
			HomeDeliveryAvailable: d.HomeDeliveryAvailable,
		})
	}
	return areas, nil
}

// QuotePrice asks for the price plan. For cash collection the provider's COD
// percentage is added to the final price.
func (c *Client) QuotePrice(ctx context.Context, req domain.PriceQuoteRequest) (*domain.PriceQuote, error) {
	body := pricePlanRequest{
		StoreID:       c.creds.StoreID,
		ItemType:      itemTypeParcel,
		DeliveryType:  deliveryTypeNormal,
		ItemWeight:    req.Weight,
		RecipientCity: req.CityID,
		RecipientZone: req.ZoneID,
	}
	var out envelope[pricePlanResponse]
	if err := c.call(ctx, http.MethodPost, "/merchant/price-plan", body, &out, retryIdempotent); err != nil {
		return nil, err
	}

	plan := out.Data
	final := decimal.NewFromFloat(plan.FinalPrice)
	if final.IsZero() {
		final = decimal.NewFromFloat(plan.Price).
			Sub(decimal.NewFromFloat(plan.Discount)).
			Sub(decimal.NewFromFloat(plan.PromoDiscount))
	}
	if req.AmountToCollect > 0 && plan.CODPercentage > 0 {
		final = final.Add(decimal.NewFromFloat(req.AmountToCollect).Mul(decimal.NewFromFloat(plan.CODPercentage)))
	}
	return &domain.PriceQuote{
		Price:         plan.Price,
		Discount:      plan.Discount + plan.PromoDiscount,
		CODPercentage: plan.CODPercentage,
		FinalPrice:    final.Round(2).InexactFloat64(),
	}, nil
}

// CreateConsignment creates at most one consignment per merchant order id
// within the dedupe window, however many times it is called.
func (c *Client) CreateConsignment(ctx context.Context, req domain.ConsignmentRequest) (*domain.Consignment, error) {
	key := req.MerchantOrderID
	if key == "" {
		return nil, domain.NewError(domain.KindInvalidInput, "merchant order id is required", nil)
	}
	if cached, ok := c.created.Get(key); ok {
		cons := *cached.(*domain.Consignment)
		return &cons, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if cached, ok := c.created.Get(key); ok {
			return cached, nil
		}
		cons, err := c.createConsignment(ctx, req)
		if err != nil {
			return nil, err
		}
		c.created.SetDefault(key, cons)
		c.created.SetDefault(trackingKey(cons.TrackingCode), key)
		return cons, nil
	})
	if err != nil {
		return nil, err
	}
	cons := *v.(*domain.Consignment)
	return &cons, nil
}

func (c *Client) createConsignment(ctx context.Context, req domain.ConsignmentRequest) (*domain.Consignment, error) {
	body := createOrderRequest{
		StoreID:            c.creds.StoreID,
		MerchantOrderID:    req.MerchantOrderID,
		RecipientName:      req.RecipientName,
		RecipientPhone:     req.RecipientPhone,
		RecipientAddress:   req.RecipientAddress,
		RecipientCity:      req.CityID,
		RecipientZone:      req.ZoneID,
		RecipientArea:      req.AreaID,
		DeliveryType:       deliveryTypeNormal,
		ItemType:           itemTypeParcel,
		SpecialInstruction: req.Instruction,
		ItemQuantity:       req.ItemQuantity,
		ItemWeight:         req.Weight,
		AmountToCollect:    req.AmountToCollect,
		ItemDescription:    req.Description,
	}
	var out envelope[createOrderResponse]
	if err := c.call(ctx, http.MethodPost, "/orders", body, &out, retryUnprocessed); err != nil {
		return nil, err
	}
	if out.Data.ConsignmentID == "" {
		return nil, domain.NewError(domain.KindCourierRejected, "courier accepted the order without a consignment id", nil)
	}
	return &domain.Consignment{
		TrackingCode:    out.Data.ConsignmentID,
		MerchantOrderID: firstNonEmpty(out.Data.MerchantOrderID, req.MerchantOrderID),
		Status:          out.Data.OrderStatus,
		DeliveryFee:     out.Data.DeliveryFee,
	}, nil
}

// CancelConsignment reports domain.ErrConsignmentPickedUp when the parcel is
// already with the courier.
func (c *Client) CancelConsignment(ctx context.Context, trackingCode string) error {
	path := fmt.Sprintf("/orders/%s/cancel", trackingCode)
	var out envelope[json.RawMessage]
	err := c.call(ctx, http.MethodPost, path, nil, &out, retryIdempotent)

	var apiErr *APIError
	if err != nil && errors.As(err, &apiErr) && isPickedUp(apiErr) {
		c.forget(trackingCode)
		return domain.NewError(domain.KindCourierRejected, apiErr.Message, errors.Join(domain.ErrConsignmentPickedUp, apiErr))
	}
	if err != nil {
		return err
	}
	c.forget(trackingCode)
	return nil
}

func (c *Client) GetStatus(ctx context.Context, trackingCode string) (domain.ProviderStatus, error) {
	path := fmt.Sprintf("/orders/%s/info", trackingCode)
	var out envelope[orderInfoResponse]
	if err := c.call(ctx, http.MethodGet, path, nil, &out, retryIdempotent); err != nil {
		return "", err
	}
	return normalizeStatus(firstNonEmpty(out.Data.OrderStatusSlug, out.Data.OrderStatus)), nil
}

// forget drops the dedupe entry so the order can be dispatched again.
func (c *Client) forget(trackingCode string) {
	tk := trackingKey(trackingCode)
	if orderID, ok := c.created.Get(tk); ok {
		c.created.Delete(orderID.(string))
	}
	c.created.Delete(tk)
}

func trackingKey(trackingCode string) string {
	return "tracking:" + trackingCode
}

func isPickedUp(e *APIError) bool {
	if e.Status == http.StatusConflict {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "picked") || strings.Contains(msg, "cannot be cancel")
}

// call sends one logical request: rate limited, authenticated, retried per
// policy, and re-authenticated once on 401.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}, policy retryPolicy) error {
	log := logger.WithContext(ctx)

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode courier request: %w", err)
		}
	}

	reauthed := false
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.NewError(domain.KindCourierUnavailable, "courier request cancelled", err)
		}
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}

		start := time.Now()
		status, raw, header, err := c.send(ctx, method, path, payload, token)
		logger.CourierCall(ctx, method+" "+path, attempt+1, status, time.Since(start), err)

		if err != nil {
			failure := domain.NewError(domain.KindCourierUnavailable, "courier unreachable", err)
			if !policy.retriesNetwork() || attempt >= c.cfg.MaxRetries {
				return failure
			}
			if err := c.sleep(ctx, c.backoff(attempt, "")); err != nil {
				return failure
			}
			continue
		}

		switch {
		case status >= 200 && status < 300:
			if out == nil || len(raw) == 0 {
				return nil
			}
			if err := json.Unmarshal(raw, out); err != nil {
				return domain.NewError(domain.KindCourierUnavailable, "courier returned an unreadable response", err)
			}
			return nil
		case status == http.StatusUnauthorized && !reauthed:
			c.tokens.Invalidate(token)
			reauthed = true
			attempt--
			continue
		}

		apiErr := parseAPIError(status, raw)
		if policy.retriesStatus(status) && attempt < c.cfg.MaxRetries {
			log.Warn().Int("status", status).Str("path", path).Msg("courier request will be retried")
			if err := c.sleep(ctx, c.backoff(attempt, header.Get("Retry-After"))); err != nil {
				return domain.NewError(domain.KindCourierUnavailable, apiErr.Message, apiErr)
			}
			continue
		}
		if status >= 500 || status == http.StatusTooManyRequests {
			return domain.NewError(domain.KindCourierUnavailable, apiErr.Message, apiErr)
		}
		return domain.NewError(domain.KindCourierRejected, apiErr.Message, apiErr)
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (int, []byte, http.Header, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.creds.BaseURL+apiPrefix+path, reader)
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, raw, resp.Header, nil
}

// backoff doubles from RetryBackoff per attempt; a Retry-After header wins.
func (c *Client) backoff(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
			return min(time.Duration(seconds)*time.Second, maxBackoff)
		}
		if t, err := http.ParseTime(retryAfter); err == nil {
			return min(max(time.Until(t), 0), maxBackoff)
		}
	}
	return min(c.cfg.RetryBackoff<<attempt, maxBackoff)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
