package binance

import (
	"context"
	"errors"
	"net/http"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"SignalFlow/internal/domain/errs"
	"SignalFlow/internal/domain/models"
)

// FuturesBrackets reads leverage brackets through the signed go-binance futures client.
type FuturesBrackets struct {
	client *futures.Client
}

// NewFuturesBrackets returns nil when credentials are missing so callers fall back to tiers.
func NewFuturesBrackets(apiKey, apiSecret, baseURL string) *FuturesBrackets {
	if apiKey == "" || apiSecret == "" {
		return nil
	}
	c := futures.NewClient(apiKey, apiSecret)
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	return &FuturesBrackets{client: c}
}

func (f *FuturesBrackets) LeverageBrackets(ctx context.Context, symbol string) (map[string][]models.LeverageBracket, error) {
	svc := f.client.NewGetLeverageBracketService()
	if symbol != "" {
		svc = svc.Symbol(symbol)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, classifyAPIError(err)
	}
	out := make(map[string][]models.LeverageBracket, len(res))
	for _, lb := range res {
		if lb == nil {
			continue
		}
		brackets := make([]models.LeverageBracket, 0, len(lb.Brackets))
		for _, b := range lb.Brackets {
			brackets = append(brackets, models.LeverageBracket{
				Bracket:         b.Bracket,
				InitialLeverage: b.InitialLeverage,
				NotionalCap:     b.NotionalCap,
				NotionalFloor:   b.NotionalFloor,
			})
		}
		out[lb.Symbol] = brackets
	}
	return out, nil
}

func classifyAPIError(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if transientCodes[int(apiErr.Code)] {
			return &errs.TransientFetchError{Op: "leverage_brackets", Status: http.StatusTooManyRequests, Err: err}
		}
		return &errs.ValidationError{Field: "leverage_brackets", Reason: apiErr.Message}
	}
	return &errs.TransientFetchError{Op: "leverage_brackets", Err: err}
}
