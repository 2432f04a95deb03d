package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"etrade-trader/internal/models"
	"etrade-trader/pkg/utils"
)

// GetQuotes serves live quotes from the chart endpoint's market metadata.
// It satisfies the paper broker's quote source, so simulated runs price
// against real market data. A symbol that fails is absent from the result;
// the cycle skips it.
func (p *YahooProvider) GetQuotes(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	quotes := make(map[string]models.Quote, len(symbols))
	for _, sym := range symbols {
		if ctx.Err() != nil {
			return quotes, ctx.Err()
		}
		q, err := p.fetchQuote(ctx, sym)
		if err != nil {
			p.logger.Warn().Err(err).Str("symbol", sym).Msg("Quote unavailable")
			continue
		}
		quotes[sym] = *q
	}
	return quotes, nil
}

type chartMetaResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
				RegularMarketVolume int64  `json:"regularMarketVolume"`
			} `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

func (p *YahooProvider) fetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	params := url.Values{
		"range":    {"1d"},
		"interval": {"1d"},
	}
	endpoint := fmt.Sprintf(yahooChartURL, url.PathEscape(symbol)) + "?" + params.Encode()

	body, err := utils.RetryWithResult(ctx, p.retry, func() ([]byte, error) {
		return p.fetch(ctx, endpoint)
	})
	if err != nil {
		return nil, err
	}

	var resp chartMetaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Chart.Result) == 0 || resp.Chart.Result[0].Meta.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("no market price for %s", symbol)
	}

	meta := resp.Chart.Result[0].Meta
	return &models.Quote{
		Symbol:        symbol,
		LastPrice:     meta.RegularMarketPrice,
		PreviousClose: meta.PreviousClose,
		Volume:        meta.RegularMarketVolume,
		Timestamp:     time.Now(),
	}, nil
}
