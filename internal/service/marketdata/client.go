package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"StockForecaster/internal/domain/errs"
	"StockForecaster/internal/domain/models"
	"StockForecaster/internal/service/upstream"
	xhttp "StockForecaster/pkg/http"
	"StockForecaster/pkg/logger"
	"StockForecaster/pkg/util"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://api.polygon.io"
	DefaultRateLimit = 5 // requests per second
	contractsLimit   = 250
)

// Client talks to a Polygon-shaped market data REST API.
type Client struct {
	baseURL string
	api     *upstream.Client
	limiter *rate.Limiter
	log     *logger.Logger
	now     func() time.Time
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithRateLimit caps outbound requests per second. Non-positive disables throttling.
func WithRateLimit(perSecond int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New builds a client over api, which must be configured for the market_data service.
func New(api *upstream.Client, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		log:     logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Status string `json:"status"`
}

func (e *envelope) Validate() error {
	if e.Status != "OK" {
		return fmt.Errorf("API returned non-OK status: %q", e.Status)
	}
	return nil
}

type aggBar struct {
	Close  float64 `json:"c"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Volume float64 `json:"v"`
	T      int64   `json:"t"` // ms
}

type prevResponse struct {
	envelope
	Results []aggBar `json:"results"`
}

type contract struct {
	StrikePrice    float64 `json:"strike_price"`
	ExpirationDate string  `json:"expiration_date"`
	ContractType   string  `json:"contract_type"`
	Ticker         string  `json:"ticker"`
}

type contractsResponse struct {
	envelope
	Results []contract `json:"results"`
}

type rangeResponse struct {
	envelope
	Results []map[string]any `json:"results"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errs.NewExternalAPIError(errs.ServiceMarketData, "rate limit wait: "+err.Error(), 0, err)
	}
	opts := &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + path,
	}
	if len(params) > 0 {
		opts.QueryParams = params
	}
	return c.api.Do(ctx, opts, dest)
}

// GetCurrentPrice returns the previous-close aggregate as a quote.
func (c *Client) GetCurrentPrice(ctx context.Context, ticker string) (*models.StockQuote, error) {
	var resp prevResponse
	if err := c.get(ctx, "/v2/aggs/ticker/"+url.PathEscape(ticker)+"/prev", nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, errs.NewExternalAPIError(errs.ServiceMarketData, "no results for "+ticker, 0, nil)
	}

	// The prev endpoint has no prior close; the bar's own close stands in.
	bar := resp.Results[0]
	q := &models.StockQuote{
		Ticker:        ticker,
		Price:         bar.Close,
		Volume:        int64(bar.Volume),
		DayChange:     bar.Close - bar.Open,
		High:          bar.High,
		Low:           bar.Low,
		Open:          bar.Open,
		PreviousClose: bar.Close,
		Timestamp:     util.FromMillis(bar.T),
	}
	if bar.Open != 0 {
		q.DayChangePct = (bar.Close - bar.Open) / bar.Open * 100
	}
	return q, nil
}

// GetOptionsChain lists active contracts and the underlying quote concurrently.
// Quote fields on each contract are zero until a quote fetch exists.
func (c *Client) GetOptionsChain(ctx context.Context, ticker string, expiration *time.Time) (*models.OptionsChain, error) {
	params := url.Values{}
	params.Set("underlying_ticker", ticker)
	params.Set("expired", "false")
	params.Set("limit", strconv.Itoa(contractsLimit))
	if expiration != nil {
		params.Set("expiration_date", util.FormatDate(*expiration))
	}

	var (
		contracts contractsResponse
		quote     *models.StockQuote
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.get(gctx, "/v3/reference/options/contracts", params, &contracts)
	})
	g.Go(func() error {
		q, err := c.GetCurrentPrice(gctx, ticker)
		quote = q
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	chain := &models.OptionsChain{
		Ticker:          ticker,
		UnderlyingPrice: quote.Price,
		Timestamp:       c.now().UTC(),
		Calls:           []models.OptionContract{},
		Puts:            []models.OptionContract{},
	}
	for _, ct := range contracts.Results {
		exp, err := time.Parse(util.DateLayout, ct.ExpirationDate)
		if err != nil {
			c.log.Warn("skipping contract with bad expiration",
				logger.String("ticker", ticker),
				logger.String("contract", ct.Ticker),
				logger.String("expiration_date", ct.ExpirationDate),
			)
			continue
		}
		oc := models.OptionContract{Strike: ct.StrikePrice, Expiration: exp}
		if ct.ContractType == string(models.Call) {
			oc.Type = models.Call
			chain.Calls = append(chain.Calls, oc)
		} else {
			oc.Type = models.Put
			chain.Puts = append(chain.Puts, oc)
		}
	}
	return chain, nil
}

// GetHistoricalData returns raw aggregate bars for [start, end] at the given timespan.
func (c *Client) GetHistoricalData(ctx context.Context, ticker string, start, end time.Time, timespan string) ([]map[string]any, error) {
	if timespan == "" {
		timespan = "day"
	}
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/%s/%s/%s",
		url.PathEscape(ticker), url.PathEscape(timespan), util.FormatDate(start), util.FormatDate(end))

	var resp rangeResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return []map[string]any{}, nil
	}
	return resp.Results, nil
}

// GetOptionsActivity reports unusual options activity. No upstream feed is wired yet.
func (c *Client) GetOptionsActivity(ctx context.Context, ticker string) ([]map[string]any, error) {
	return []map[string]any{}, nil
}
