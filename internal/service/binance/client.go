// Package binance implements the market data provider against the USDⓈ-M futures REST API.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jpillora/backoff"

	"SignalFlow/internal/domain/errs"
	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	"SignalFlow/internal/service/ratelimit"
	pkghttp "SignalFlow/pkg/http"
	"SignalFlow/pkg/logger"
)

const limiterKey = "binance:rest"

// Error codes the venue uses for overload and rate limiting.
var transientCodes = map[int]bool{-1001: true, -1003: true, -1015: true, -1016: true}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)

type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBase      time.Duration
	RetryMax       time.Duration
	RateLimitRPS   float64
	RateLimitBurst float64
}

// BracketSource fetches leverage brackets; the endpoint is signed.
type BracketSource interface {
	LeverageBrackets(ctx context.Context, symbol string) (map[string][]models.LeverageBracket, error)
}

// Client implements repository.MarketDataProvider.
type Client struct {
	cfg      Config
	http     *pkghttp.Client
	limiter  *ratelimit.Limiter
	brackets BracketSource
	metrics  repository.Metrics
	log      *logger.Logger
}

var _ repository.MarketDataProvider = (*Client)(nil)

func NewClient(cfg Config, brackets BracketSource, metrics repository.Metrics, log *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://fapi.binance.com"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 5 * time.Second
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 2 * cfg.RateLimitRPS
	}
	return &Client{
		cfg:      cfg,
		http:     pkghttp.NewClient(pkghttp.WithTimeout(cfg.RequestTimeout), pkghttp.WithUserAgent("signalflow-binance/1.0")),
		limiter:  ratelimit.New(),
		brackets: brackets,
		metrics:  metrics,
		log:      log.Component("binance"),
	}
}

// NormalizeSymbol upper-cases and validates a symbol.
func NormalizeSymbol(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !symbolPattern.MatchString(s) {
		return "", errs.Invalid("symbol", fmt.Sprintf("%q is not a valid symbol", s))
	}
	return s, nil
}

type exchangeInfoResponse struct {
	Symbols []models.SymbolInfo `json:"symbols"`
}

func (c *Client) GetExchangeInfo(ctx context.Context) (*models.ExchangeInfo, error) {
	var resp exchangeInfoResponse
	if err := c.get(ctx, "exchange_info", "/fapi/v1/exchangeInfo", nil, &resp); err != nil {
		return nil, err
	}
	return &models.ExchangeInfo{Symbols: resp.Symbols}, nil
}

func (c *Client) GetLeverageBrackets(ctx context.Context, symbol string) (map[string][]models.LeverageBracket, error) {
	if symbol != "" {
		var err error
		if symbol, err = NormalizeSymbol(symbol); err != nil {
			return nil, err
		}
	}
	if c.brackets == nil {
		return nil, errs.Invalid("credentials", "leverage brackets need API credentials")
	}
	if err := c.limiter.Wait(ctx, limiterKey, c.cfg.RateLimitBurst, c.cfg.RateLimitRPS); err != nil {
		return nil, &errs.TransientFetchError{Op: "leverage_brackets", Err: err}
	}
	start := time.Now()
	out, err := c.brackets.LeverageBrackets(ctx, symbol)
	c.metrics.RecordLatency("binance.leverage_brackets", time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordFetchError("leverage_brackets", errorKind(err))
		return nil, err
	}
	return out, nil
}

type ticker24hRow struct {
	Symbol             string `json:"symbol"`
	PriceChangePercent string `json:"priceChangePercent"`
	LastPrice          string `json:"lastPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	QuoteVolume        string `json:"quoteVolume"`
}

// Get24hTickers returns 24h statistics for symbols; nil or empty means the whole
// market. A single symbol is requested on its own, which costs weight 1 instead of 40.
func (c *Client) Get24hTickers(ctx context.Context, symbols []string) (map[string]models.Ticker24h, error) {
	if len(symbols) == 1 {
		symbol, err := NormalizeSymbol(symbols[0])
		if err != nil {
			return nil, err
		}
		var row ticker24hRow
		if err := c.get(ctx, "ticker_24h", "/fapi/v1/ticker/24hr", map[string][]string{"symbol": {symbol}}, &row); err != nil {
			return nil, err
		}
		return map[string]models.Ticker24h{row.Symbol: row.toModel()}, nil
	}

	var rows []ticker24hRow
	if err := c.get(ctx, "ticker_24h", "/fapi/v1/ticker/24hr", nil, &rows); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[strings.ToUpper(s)] = true
	}
	out := make(map[string]models.Ticker24h, len(rows))
	for _, r := range rows {
		if len(want) > 0 && !want[r.Symbol] {
			continue
		}
		out[r.Symbol] = r.toModel()
	}
	return out, nil
}

func (r ticker24hRow) toModel() models.Ticker24h {
	return models.Ticker24h{
		Symbol:         r.Symbol,
		Volume:         parseFloat(r.QuoteVolume),
		PriceChangePct: parseFloat(r.PriceChangePercent),
		High:           parseFloat(r.HighPrice),
		Low:            parseFloat(r.LowPrice),
		LastPrice:      parseFloat(r.LastPrice),
	}
}

func (c *Client) GetKlines(ctx context.Context, symbol string, interval models.Interval, limit int) (models.Klines, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if !models.IsValidInterval(interval) {
		return nil, errs.Invalid("interval", string(interval))
	}
	if limit <= 0 || limit > 1500 {
		return nil, errs.Invalid("limit", "must be within 1..1500")
	}

	var rows [][]interface{}
	q := map[string][]string{
		"symbol":   {symbol},
		"interval": {string(interval)},
		"limit":    {strconv.Itoa(limit)},
	}
	if err := c.get(ctx, "klines", "/fapi/v1/klines", q, &rows); err != nil {
		return nil, err
	}
	return parseKlines(rows)
}

type priceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (c *Client) GetTicker(ctx context.Context, symbol string) (models.PriceTicker, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return models.PriceTicker{}, err
	}
	var resp priceResponse
	if err := c.get(ctx, "ticker_price", "/fapi/v1/ticker/price", map[string][]string{"symbol": {symbol}}, &resp); err != nil {
		return models.PriceTicker{}, err
	}
	price := parseFloat(resp.Price)
	if price <= 0 {
		return models.PriceTicker{}, &errs.TransientFetchError{Op: "ticker_price", Err: fmt.Errorf("non-positive price %q", resp.Price)}
	}
	return models.PriceTicker{Symbol: resp.Symbol, Price: price}, nil
}

// get performs a public GET with rate limiting and bounded retries for transient failures.
func (c *Client) get(ctx context.Context, op, path string, query map[string][]string, dest interface{}) error {
	b := &backoff.Backoff{Min: c.cfg.RetryBase, Max: c.cfg.RetryMax, Factor: 2, Jitter: true}
	start := time.Now()
	defer func() { c.metrics.RecordLatency("binance."+op, time.Since(start).Seconds()) }()

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx, limiterKey, c.cfg.RateLimitBurst, c.cfg.RateLimitRPS); err != nil {
			return &errs.TransientFetchError{Op: op, Err: err}
		}

		err := c.http.GetJSON(ctx, c.cfg.BaseURL+path, query, dest)
		if err == nil {
			return nil
		}

		classified := classify(op, err)
		if !errs.IsTransient(classified) || attempt >= c.cfg.MaxRetries || ctx.Err() != nil {
			c.metrics.RecordFetchError(op, errorKind(classified))
			return classified
		}

		wait := b.Duration()
		if ra := errs.RetryAfter(classified); ra > wait {
			wait = ra
		}
		c.log.Debug("retrying request",
			logger.String("op", op),
			logger.Int("attempt", attempt),
			logger.Duration("wait_ms", wait),
			logger.Error(classified),
		)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			c.metrics.RecordFetchError(op, "canceled")
			return &errs.TransientFetchError{Op: op, Err: ctx.Err()}
		case <-t.C:
		}
	}
}

type apiErrorBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// classify maps transport and HTTP failures onto the error taxonomy.
func classify(op string, err error) error {
	var se *pkghttp.ResponseError
	if errors.As(err, &se) {
		var body apiErrorBody
		_ = json.Unmarshal(se.Body, &body)
		switch {
		case se.StatusCode == http.StatusTooManyRequests || se.StatusCode == http.StatusTeapot:
			return &errs.TransientFetchError{Op: op, Status: se.StatusCode, RetryAfter: se.RetryAfter(), Err: se}
		case se.StatusCode >= 500:
			return &errs.TransientFetchError{Op: op, Status: se.StatusCode, Err: se}
		case transientCodes[body.Code]:
			return &errs.TransientFetchError{Op: op, Status: se.StatusCode, Err: se}
		default:
			reason := body.Msg
			if reason == "" {
				reason = se.Error()
			}
			return &errs.ValidationError{Field: op, Reason: reason}
		}
	}
	// timeouts, resets and malformed bodies are all worth another try
	return &errs.TransientFetchError{Op: op, Err: err}
}

func errorKind(err error) string {
	switch {
	case errs.IsTransient(err):
		return "transient"
	case errs.IsValidation(err):
		return "validation"
	default:
		return "other"
	}
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseKlines decodes the venue's positional rows: [openTime, open, high, low, close, volume, ...].
func parseKlines(rows [][]interface{}) (models.Klines, error) {
	out := make(models.Klines, 0, len(rows))
	for i, r := range rows {
		if len(r) < 6 {
			return nil, &errs.TransientFetchError{Op: "klines", Err: fmt.Errorf("row %d has %d fields", i, len(r))}
		}
		openMs, ok := r[0].(float64)
		if !ok {
			return nil, &errs.TransientFetchError{Op: "klines", Err: fmt.Errorf("row %d open time %v", i, r[0])}
		}
		k := models.Kline{OpenTime: time.UnixMilli(int64(openMs)).UTC()}
		fields := []*float64{&k.Open, &k.High, &k.Low, &k.Close, &k.Volume}
		for j, dst := range fields {
			s, _ := r[j+1].(string)
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || v < 0 {
				return nil, &errs.TransientFetchError{Op: "klines", Err: fmt.Errorf("row %d field %d: %q", i, j+1, s)}
			}
			*dst = v
		}
		out = append(out, k)
	}
	return out, nil
}
