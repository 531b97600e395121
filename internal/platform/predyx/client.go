// Package predyx is a client for the Predyx Lightning prediction market API.
package predyx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

// DefaultBaseURL is the Predyx beta API root.
const DefaultBaseURL = "https://beta.predyx.com/api/v1"

var hundred = decimal.NewFromInt(100)

type marketsResponse struct {
	Data []apiMarket `json:"data"`
}

type apiMarket struct {
	MarketID    string              `json:"market_id"`
	Question    string              `json:"question"`
	Description string              `json:"description"`
	Outcomes    []string            `json:"outcomes"`
	EndDate     *string             `json:"endDate"`
	Volume      decimal.NullDecimal `json:"volume"`
}

type marketResponse struct {
	OrderBook *struct {
		Orders map[string]json.RawMessage `json:"orders"`
	} `json:"orderBook"`
}

// Client queries Predyx markets and order-book prices.
type Client struct {
	http   *resty.Client
	apiKey string
	now    func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithRetries sets how many times failed requests are retried.
func WithRetries(n int) Option {
	return func(c *Client) { c.http.SetRetryCount(n) }
}

// NewClient creates a Predyx client. An empty apiKey sends no key header.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetTimeout(30 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second).
			SetHeader("Accept", "application/json"),
		apiKey: apiKey,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Venue identifies the quotes this client produces.
func (c *Client) Venue() domain.Venue { return domain.VenueLightning }

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool { return c.apiKey != "" }

// ListMarkets returns every listed market. limit is ignored; Predyx returns
// its full list.
func (c *Client) ListMarkets(ctx context.Context, _ int) ([]domain.Market, error) {
	var out marketsResponse
	resp, err := c.request(ctx).SetResult(&out).Get("/markets")
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("predyx: list markets: %w", err)
	}

	markets := make([]domain.Market, 0, len(out.Data))
	for _, m := range out.Data {
		dm := domain.Market{
			ID:          m.MarketID,
			Question:    m.Question,
			Description: m.Description,
			Outcomes:    m.Outcomes,
			Source:      domain.VenueLightning,
		}
		if m.Volume.Valid {
			v := m.Volume.Decimal
			dm.Volume = &v
		}
		if m.EndDate != nil {
			if t, err := time.Parse(time.RFC3339, *m.EndDate); err == nil {
				dm.EndTime = &t
			}
		}
		markets = append(markets, dm)
	}
	return markets, nil
}

// Quotes reads the order book's outcome prices for marketID. Predyx quotes
// percentages, so prices are divided by 100. Outcomes are returned in
// lexical order.
func (c *Client) Quotes(ctx context.Context, marketID string) ([]domain.Quote, error) {
	var out marketResponse
	resp, err := c.request(ctx).
		SetQueryParam("include_orderbook", "true").
		SetResult(&out).
		Get("/markets/" + url.PathEscape(marketID))
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("predyx: get market %s: %w", marketID, err)
	}
	if out.OrderBook == nil {
		return nil, nil
	}

	raw, ok := out.OrderBook.Orders["outcome_prices"]
	if !ok {
		return nil, nil
	}
	var prices map[string]any
	if err := json.Unmarshal(raw, &prices); err != nil {
		return nil, fmt.Errorf("predyx: decode outcome prices: %w", err)
	}

	outcomes := make([]string, 0, len(prices))
	for outcome := range prices {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)

	now := c.now().UTC()
	quotes := make([]domain.Quote, 0, len(outcomes))
	for _, outcome := range outcomes {
		s, ok := prices[outcome].(string)
		if !ok {
			continue
		}
		pct, err := decimal.NewFromString(s)
		if err != nil {
			continue
		}
		quotes = append(quotes, domain.Quote{
			MarketID:  marketID,
			Outcome:   outcome,
			Odds:      pct.Div(hundred),
			Source:    domain.VenueLightning,
			Timestamp: now,
		})
	}
	return quotes, nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	r := c.http.R().SetContext(ctx)
	if c.apiKey != "" {
		r.SetHeader("X-API-Key", c.apiKey)
	}
	return r
}

// checkResponse maps transport failures and non-2xx responses to errors.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	if resp.IsSuccess() {
		return nil
	}
	body := resp.String()
	switch resp.StatusCode() {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, body)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, body)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, body)
	default:
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), body)
	}
}
