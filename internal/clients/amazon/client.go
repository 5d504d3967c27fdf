package amazon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"order-ingestion-service/internal/clients"
	"order-ingestion-service/internal/mapping"
	"order-ingestion-service/internal/models"
)

const (
	// Amazon SP-API regional endpoints
	naEndpoint = "https://sellingpartnerapi-na.amazon.com"
	euEndpoint = "https://sellingpartnerapi-eu.amazon.com"
	feEndpoint = "https://sellingpartnerapi-fe.amazon.com"

	// Amazon LWA token endpoint
	lwaTokenEndpoint = "https://api.amazon.com/auth/o2/token"

	ordersPath = "/orders/v0/orders"
	rdtPath    = "/tokens/2021-03-01/restrictedDataToken"

	defaultUserAgent = "order-ingestion-service/1.0 (Language=Go)"

	authRemediation = "The access token was refreshed and the request was still forbidden. " +
		"Confirm that the seller authorized the application for the Orders API role and that the " +
		"refresh token belongs to the configured marketplace region"
)

// Config holds the SP-API client settings
type Config struct {
	Credentials

	MarketplaceID string
	Region        string // na, eu, fe
	Endpoint      string // overrides Region when set
	TokenEndpoint string
	UserAgent     string

	PageSize          int
	PageDelay         time.Duration
	ItemDelay         time.Duration
	BackoffBase       time.Duration
	MaxAttempts       int
	RequestsPerSecond float64
	HTTPTimeout       time.Duration
}

var _ clients.OrderSource = (*Client)(nil)

// Client fetches orders from the Amazon Selling Partner API
type Client struct {
	cfg         Config
	baseURL     string
	httpClient  *http.Client
	tokens      *CredentialCache
	retrier     *clients.Retrier
	rateLimiter *rate.Limiter
	sleep       clients.SleepFunc
	store       TokenStore
	logger      *logrus.Entry
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSleep replaces the pacing and backoff wait
func WithSleep(sleep clients.SleepFunc) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithTokenStore shares access tokens through store
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) { c.store = store }
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Entry) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a new Amazon SP-API client
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	c := &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.Endpoint, "/"),
	}
	if c.baseURL == "" {
		c.baseURL = getRegionalEndpoint(cfg.Region)
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if c.sleep == nil {
		c.sleep = clients.Sleep
	}
	if c.logger == nil {
		c.logger = logrus.WithField("component", "amazon_client")
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	c.rateLimiter = rate.NewLimiter(limit, 1)

	c.retrier = clients.NewRetrier(&clients.RetryConfig{
		MaxAttempts:     cfg.MaxAttempts,
		InitialBackoff:  cfg.BackoffBase,
		MaxBackoff:      5 * time.Minute,
		BackoffFactor:   2.0,
		RetryableErrors: []int{http.StatusTooManyRequests},
	}, c.sleep)

	c.tokens = NewCredentialCache(cfg.Credentials, cfg.TokenEndpoint, c.httpClient, c.store, c.logger)

	return c
}

// fetchState is what one FetchOrders call carries between its reads
type fetchState struct {
	result *clients.FetchResult
	// degraded is set once the restricted data token could not be obtained
	degraded bool
}

// FetchOrders lists every order created in [createdAfter, createdBefore), fetches
// the line items of each non-cancelled order and maps them to canonical orders.
// Item failures and a missing restricted data token are reported as warnings.
func (c *Client) FetchOrders(ctx context.Context, createdAfter, createdBefore time.Time) (*clients.FetchResult, error) {
	if err := c.cfg.Credentials.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.cfg.MarketplaceID) == "" {
		return nil, &clients.ConfigurationError{Missing: []string{"marketplace id"}}
	}

	result := &clients.FetchResult{}
	state := &fetchState{result: result}
	log := c.logger.WithFields(logrus.Fields{
		"created_after":  createdAfter.Format(time.RFC3339),
		"created_before": createdBefore.Format(time.RFC3339),
	})

	var orders []clients.ExternalOrder
	opts := &clients.OrderListOptions{
		CreatedAfter:  createdAfter,
		CreatedBefore: createdBefore,
		PageSize:      c.cfg.PageSize,
	}
	for page := 0; ; page++ {
		if page > 0 {
			if err := c.sleep(ctx, c.cfg.PageDelay); err != nil {
				return nil, err
			}
		}

		pageResult, err := c.listOrdersAuthorized(ctx, opts, state)
		if err != nil {
			return nil, err
		}
		orders = append(orders, pageResult.Orders...)

		if pageResult.NextCursor == "" {
			break
		}
		opts.Cursor = pageResult.NextCursor
	}

	for i := range orders {
		order := &orders[i]
		result.OrdersSeen++
		if order.IsCancelled() {
			result.Cancelled++
			continue
		}

		items, err := c.fetchItems(ctx, order.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var (
				rateErr *clients.RateLimitError
				authErr *clients.AuthorizationError
			)
			if errors.As(err, &rateErr) || errors.As(err, &authErr) {
				return nil, err
			}
			rowErr := &models.RowError{Ref: order.ID, Reason: "failed to fetch order items", Err: err}
			log.WithError(err).WithField("order_id", order.ID).Warn("skipping order")
			result.Warnings = append(result.Warnings, rowErr.Error())
			continue
		}
		order.LineItems = items

		for j := range items {
			if mapped := mapping.MapRemoteItem(order, &items[j]); mapped != nil {
				result.Orders = append(result.Orders, mapped)
			}
		}
	}

	log.WithFields(logrus.Fields{
		"orders":    result.OrdersSeen,
		"cancelled": result.Cancelled,
		"items":     len(result.Orders),
		"warnings":  len(result.Warnings),
	}).Info("remote order fetch complete")

	return result, nil
}

// listToken returns the token for one order list read. A restricted data token is
// scoped to the list path and requested per page, so it never outlives its lifetime;
// when it is unavailable the access token is used and the fetch is marked degraded.
func (c *Client) listToken(ctx context.Context, state *fetchState) (string, error) {
	access, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return "", err
	}

	rdt, err := c.RestrictedDataToken(ctx, access)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !state.degraded {
			state.degraded = true
			warning := fmt.Sprintf("restricted data token unavailable, buyer and shipping address data may be incomplete: %v", err)
			c.logger.WithError(err).Warn("falling back to access token")
			state.result.Warnings = append(state.result.Warnings, warning)
		}
		return access, nil
	}
	return rdt, nil
}

// fetchItems reads the line items of one order with the access token; the
// restricted data token is not valid outside the list path
func (c *Client) fetchItems(ctx context.Context, orderID string) ([]clients.ExternalLineItem, error) {
	access, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.GetOrderItems(ctx, access, orderID)
}

// listOrdersAuthorized lists one page; a 403 triggers one forced token refresh and a single retry
func (c *Client) listOrdersAuthorized(ctx context.Context, opts *clients.OrderListOptions, state *fetchState) (*clients.OrdersResult, error) {
	token, err := c.listToken(ctx, state)
	if err != nil {
		return nil, err
	}

	page, err := c.GetOrders(ctx, token, opts)
	if !isForbidden(err) {
		return page, err
	}

	c.logger.Warn("order list forbidden, forcing token refresh")
	if _, err := c.tokens.ForceRefresh(ctx); err != nil {
		return nil, err
	}
	if token, err = c.listToken(ctx, state); err != nil {
		return nil, err
	}

	page, err = c.GetOrders(ctx, token, opts)
	if isForbidden(err) {
		var apiErr *clients.APIError
		errors.As(err, &apiErr)
		return nil, &clients.AuthorizationError{
			StatusCode:  apiErr.StatusCode,
			Body:        apiErr.Body,
			Remediation: authRemediation,
		}
	}
	return page, err
}

// RestrictedDataToken requests a token that unlocks buyer info and shipping addresses on the orders path
func (c *Client) RestrictedDataToken(ctx context.Context, accessToken string) (string, error) {
	payload := map[string]interface{}{
		"restrictedResources": []map[string]interface{}{
			{
				"method":       http.MethodGet,
				"path":         ordersPath,
				"dataElements": []string{"buyerInfo", "shippingAddress"},
			},
		},
	}

	body, err := c.doRequest(ctx, "restricted data token", http.MethodPost, rdtPath, nil, payload, accessToken)
	if err != nil {
		return "", err
	}

	var response struct {
		RestrictedDataToken string `json:"restrictedDataToken"`
		ExpiresIn           int    `json:"expiresIn"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse restricted data token response: %w", err)
	}
	if response.RestrictedDataToken == "" {
		return "", fmt.Errorf("restricted data token response was empty")
	}
	return response.RestrictedDataToken, nil
}

type orderAddress struct {
	Name         string `json:"Name"`
	AddressLine1 string `json:"AddressLine1"`
	AddressLine2 string `json:"AddressLine2,omitempty"`
	AddressLine3 string `json:"AddressLine3,omitempty"`
	City         string `json:"City"`
	PostalCode   string `json:"PostalCode"`
	CountryCode  string `json:"CountryCode"`
	Phone        string `json:"Phone,omitempty"`
}

type orderPayload struct {
	AmazonOrderID string `json:"AmazonOrderId"`
	PurchaseDate  string `json:"PurchaseDate"`
	OrderStatus   string `json:"OrderStatus"`
	BuyerInfo     struct {
		BuyerEmail string `json:"BuyerEmail,omitempty"`
		BuyerName  string `json:"BuyerName,omitempty"`
	} `json:"BuyerInfo,omitempty"`
	ShippingAddress *orderAddress `json:"ShippingAddress,omitempty"`
}

// GetOrders fetches one page of the order list
func (c *Client) GetOrders(ctx context.Context, token string, opts *clients.OrderListOptions) (*clients.OrdersResult, error) {
	params := url.Values{}
	params.Set("MarketplaceIds", c.cfg.MarketplaceID)

	if !opts.CreatedAfter.IsZero() {
		params.Set("CreatedAfter", opts.CreatedAfter.UTC().Format(time.RFC3339))
	}
	if !opts.CreatedBefore.IsZero() {
		params.Set("CreatedBefore", opts.CreatedBefore.UTC().Format(time.RFC3339))
	}
	if opts.PageSize > 0 {
		params.Set("MaxResultsPerPage", strconv.Itoa(opts.PageSize))
	}
	if opts.Cursor != "" {
		params.Set("NextToken", opts.Cursor)
	}

	body, err := c.doRequest(ctx, "list orders", http.MethodGet, ordersPath, params, nil, token)
	if err != nil {
		return nil, err
	}

	var response struct {
		Payload struct {
			Orders    []orderPayload `json:"Orders"`
			NextToken string         `json:"NextToken,omitempty"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse orders response: %w", err)
	}

	orders := make([]clients.ExternalOrder, 0, len(response.Payload.Orders))
	for _, o := range response.Payload.Orders {
		order := clients.ExternalOrder{
			ID:           o.AmazonOrderID,
			PurchaseDate: o.PurchaseDate,
			Status:       o.OrderStatus,
			Email:        o.BuyerInfo.BuyerEmail,
			BuyerName:    o.BuyerInfo.BuyerName,
		}
		if a := o.ShippingAddress; a != nil {
			order.ShippingAddress = &clients.ExternalAddress{
				Name:        a.Name,
				Address1:    a.AddressLine1,
				Address2:    a.AddressLine2,
				Address3:    a.AddressLine3,
				City:        a.City,
				Zip:         a.PostalCode,
				CountryCode: a.CountryCode,
				Phone:       a.Phone,
			}
		}
		orders = append(orders, order)
	}

	return &clients.OrdersResult{
		Orders:     orders,
		NextCursor: response.Payload.NextToken,
	}, nil
}

// GetOrderItems fetches every line item of one order, waiting ItemDelay before each call
func (c *Client) GetOrderItems(ctx context.Context, token, orderID string) ([]clients.ExternalLineItem, error) {
	var items []clients.ExternalLineItem
	path := fmt.Sprintf("%s/%s/orderItems", ordersPath, url.PathEscape(orderID))
	nextToken := ""

	for {
		if err := c.sleep(ctx, c.cfg.ItemDelay); err != nil {
			return nil, err
		}

		var params url.Values
		if nextToken != "" {
			params = url.Values{}
			params.Set("NextToken", nextToken)
		}

		body, err := c.doRequest(ctx, "list order items", http.MethodGet, path, params, nil, token)
		if err != nil {
			return nil, err
		}

		var response struct {
			Payload struct {
				OrderItems []struct {
					OrderItemID     string `json:"OrderItemId"`
					SellerSKU       string `json:"SellerSKU"`
					Title           string `json:"Title"`
					QuantityOrdered int    `json:"QuantityOrdered"`
					ItemPrice       *struct {
						Amount       string `json:"Amount"`
						CurrencyCode string `json:"CurrencyCode"`
					} `json:"ItemPrice,omitempty"`
				} `json:"OrderItems"`
				NextToken string `json:"NextToken,omitempty"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, fmt.Errorf("failed to parse order items response: %w", err)
		}

		for _, it := range response.Payload.OrderItems {
			item := clients.ExternalLineItem{
				ID:       it.OrderItemID,
				SKU:      it.SellerSKU,
				Title:    it.Title,
				Quantity: it.QuantityOrdered,
			}
			if it.ItemPrice != nil {
				item.Price = it.ItemPrice.Amount
				item.Currency = it.ItemPrice.CurrencyCode
			}
			items = append(items, item)
		}

		if response.Payload.NextToken == "" {
			return items, nil
		}
		nextToken = response.Payload.NextToken
	}
}

// doRequest performs an authenticated HTTP request to the Amazon SP-API, retrying 429 answers
func (c *Client) doRequest(ctx context.Context, operation, method, path string, params url.Values, body interface{}, token string) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	resp, err := c.retrier.DoHTTP(ctx, operation, func(ctx context.Context) (*http.Response, error) {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-amz-access-token", token)
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, &clients.APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	return respBody, nil
}

func isForbidden(err error) bool {
	var apiErr *clients.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden
}

// getRegionalEndpoint returns the SP-API endpoint for a region
func getRegionalEndpoint(region string) string {
	switch strings.ToLower(region) {
	case "eu":
		return euEndpoint
	case "fe":
		return feEndpoint
	default:
		return naEndpoint
	}
}
