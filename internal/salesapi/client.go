// Package salesapi reads the third party sales feed: a single read-only endpoint that
// returns every sale as a JSON array, authenticated with an API key header.
package salesapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/rtledger/rtledger/config"
	"github.com/rtledger/rtledger/internal/cache"
	"github.com/rtledger/rtledger/internal/request"
	"github.com/rtledger/rtledger/internal/sheet"
)

// Field names used by the feed.
const (
	FieldOrderID        = "idPedido"
	FieldCompletionDate = "dataFinalizacaoPrevenda"
	FieldCustomer       = "clienteFantasia"
	FieldAmount         = "valorNota"
	FieldSalesperson    = "consultor"
	FieldPartnerID      = "idParceiro"
	FieldPartnerName    = "parceiro"
	FieldStore          = "idEmpresa"
	FieldPaymentStatus  = "statusPagamento"
)

const feedCacheKey = "salesapi:feed"

// Sale is one object of the feed, keyed by the feed's own field names.
type Sale map[string]interface{}

// Get returns field as text.
func (s Sale) Get(field string) string {
	return sheet.Cell(s[field])
}

// Client fetches the feed. When a cache is set the raw response is kept for ttl.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	cache      cache.Cache
	ttl        time.Duration
}

func NewClient(cfg config.SalesAPIConfig, c cache.Cache) *Client {
	return &Client{
		url:        cfg.Url,
		apiKey:     cfg.ApiKey,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		cache:      c,
		ttl:        time.Duration(cfg.CacheTTLSeconds) * time.Second,
	}
}

// Configured reports whether a feed URL was set.
func (c *Client) Configured() bool {
	return c != nil && c.url != ""
}

// FetchSales returns the whole feed. refresh skips the cache.
func (c *Client) FetchSales(ctx context.Context, refresh bool) ([]Sale, error) {
	ctx, span := otel.Tracer("rtledger.salesapi").Start(ctx, "FetchSales")
	defer span.End()

	if !c.Configured() {
		return nil, errors.New("sales api url is not configured")
	}

	if c.cache != nil && !refresh {
		var body []byte
		err := c.cache.Get(ctx, feedCacheKey, &body)
		if err == nil && len(body) > 0 {
			return decodeSales(body)
		}
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			logrus.WithError(err).Warn("sales feed cache read failed")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)

	var body json.RawMessage
	if _, err := request.Do(c.httpClient, req, &body); err != nil {
		span.RecordError(err)
		return nil, err
	}

	sales, err := decodeSales(body)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, feedCacheKey, []byte(body), c.ttl); err != nil {
			logrus.WithError(err).Warn("sales feed cache write failed")
		}
	}
	return sales, nil
}

// Invalidate drops the cached feed.
func (c *Client) Invalidate(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Delete(ctx, feedCacheKey)
}

func decodeSales(body []byte) ([]Sale, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var sales []Sale
	if err := decoder.Decode(&sales); err != nil {
		return nil, err
	}
	return sales, nil
}

// FilterPaid keeps the sales of partnerID whose payment status equals paidStatus.
// Other statuses are not eligible to be shown or imported.
func FilterPaid(sales []Sale, partnerID, paidStatus string) []Sale {
	var out []Sale
	for _, s := range sales {
		if s.Get(FieldPartnerID) != partnerID {
			continue
		}
		if s.Get(FieldPaymentStatus) != paidStatus {
			continue
		}
		out = append(out, s)
	}
	return out
}

// FindOrder returns the sale with the given order id.
func FindOrder(sales []Sale, orderID string) (Sale, bool) {
	orderID = strings.TrimSpace(orderID)
	for _, s := range sales {
		if s.Get(FieldOrderID) == orderID {
			return s, true
		}
	}
	return nil, false
}
