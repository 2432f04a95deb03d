package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	apperrors "etrade-trader/internal/errors"
	"etrade-trader/internal/models"
	"etrade-trader/pkg/utils"
)

const (
	yahooChartURL   = "https://query1.finance.yahoo.com/v8/finance/chart/%s"
	yahooSummaryURL = "https://query1.finance.yahoo.com/v10/finance/quoteSummary/%s"
	yahooUserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
)

// YahooProvider fetches daily history and fundamentals from Yahoo Finance's
// unauthenticated JSON endpoints.
type YahooProvider struct {
	client *http.Client
	retry  utils.RetryConfig
	logger zerolog.Logger
}

// NewYahooProvider creates a provider with default timeouts and retry policy.
func NewYahooProvider(logger zerolog.Logger) *YahooProvider {
	return &YahooProvider{
		client: &http.Client{Timeout: 20 * time.Second},
		retry:  utils.DefaultRetryConfig(),
		logger: logger,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetDailyHistory fetches daily candles for the trailing window. Days with a
// missing close (halts, partial data) are dropped.
func (p *YahooProvider) GetDailyHistory(ctx context.Context, symbol string, days int) ([]models.Candle, error) {
	// Calendar range padded so `days` trading days survive weekend gaps.
	rangeDays := days*7/5 + 10
	params := url.Values{
		"range":    {fmt.Sprintf("%dd", rangeDays)},
		"interval": {"1d"},
		"events":   {"history"},
	}
	endpoint := fmt.Sprintf(yahooChartURL, url.PathEscape(symbol)) + "?" + params.Encode()

	body, err := utils.RetryWithResult(ctx, p.retry, func() ([]byte, error) {
		return p.fetch(ctx, endpoint)
	})
	if err != nil {
		return nil, apperrors.NewDataError("history", symbol, "chart fetch failed", err)
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewDataError("history", symbol, "chart decode failed", err)
	}
	if resp.Chart.Error != nil {
		return nil, apperrors.NewDataError("history", symbol, resp.Chart.Error.Description, apperrors.ErrSymbolNotFound)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, apperrors.NewDataError("history", symbol, "empty chart result", apperrors.ErrDataNotFound)
	}

	result := resp.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	candles := make([]models.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == 0 {
			continue
		}
		candle := models.Candle{
			Timestamp: time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Close:     quote.Close[i],
		}
		if i < len(quote.Open) {
			candle.Open = quote.Open[i]
		}
		if i < len(quote.High) {
			candle.High = quote.High[i]
		}
		if i < len(quote.Low) {
			candle.Low = quote.Low[i]
		}
		if i < len(quote.Volume) {
			candle.Volume = quote.Volume[i]
		}
		candles = append(candles, candle)
	}

	if len(candles) > days {
		candles = candles[len(candles)-days:]
	}
	return candles, nil
}

type rawValue struct {
	Raw *float64 `json:"raw"`
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			SummaryDetail struct {
				TrailingPE rawValue `json:"trailingPE"`
				ForwardPE  rawValue `json:"forwardPE"`
			} `json:"summaryDetail"`
			FinancialData struct {
				RevenueGrowth     rawValue `json:"revenueGrowth"`
				EarningsGrowth    rawValue `json:"earningsGrowth"`
				ProfitMargins     rawValue `json:"profitMargins"`
				DebtToEquity      rawValue `json:"debtToEquity"`
				TargetMeanPrice   rawValue `json:"targetMeanPrice"`
				CurrentPrice      rawValue `json:"currentPrice"`
			} `json:"financialData"`
			DefaultKeyStatistics struct {
				ProfitMargins rawValue `json:"profitMargins"`
			} `json:"defaultKeyStatistics"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// GetFundamentals fetches the fundamental snapshot. Metrics the provider
// omits stay nil so the scorer treats them as neutral.
func (p *YahooProvider) GetFundamentals(ctx context.Context, symbol string) (*models.FundamentalsSnapshot, error) {
	params := url.Values{
		"modules": {"summaryDetail,financialData,defaultKeyStatistics"},
	}
	endpoint := fmt.Sprintf(yahooSummaryURL, url.PathEscape(symbol)) + "?" + params.Encode()

	body, err := utils.RetryWithResult(ctx, p.retry, func() ([]byte, error) {
		return p.fetch(ctx, endpoint)
	})
	if err != nil {
		return nil, apperrors.NewDataError("fundamentals", symbol, "summary fetch failed", err)
	}

	var resp summaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewDataError("fundamentals", symbol, "summary decode failed", err)
	}
	if resp.QuoteSummary.Error != nil {
		return nil, apperrors.NewDataError("fundamentals", symbol, resp.QuoteSummary.Error.Description, apperrors.ErrDataNotFound)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, apperrors.NewDataError("fundamentals", symbol, "empty summary result", apperrors.ErrDataNotFound)
	}

	result := resp.QuoteSummary.Result[0]
	snapshot := &models.FundamentalsSnapshot{
		Symbol:    symbol,
		Timestamp: time.Now(),
	}

	snapshot.PE = result.SummaryDetail.TrailingPE.Raw
	if snapshot.PE == nil {
		snapshot.PE = result.SummaryDetail.ForwardPE.Raw
	}
	snapshot.EPSGrowth = result.FinancialData.EarningsGrowth.Raw
	snapshot.RevenueGrowth = result.FinancialData.RevenueGrowth.Raw
	snapshot.ProfitMargin = result.FinancialData.ProfitMargins.Raw
	if snapshot.ProfitMargin == nil {
		snapshot.ProfitMargin = result.DefaultKeyStatistics.ProfitMargins.Raw
	}
	snapshot.DebtEquity = result.FinancialData.DebtToEquity.Raw
	snapshot.AnalystTarget = result.FinancialData.TargetMeanPrice.Raw
	snapshot.CurrentPrice = result.FinancialData.CurrentPrice.Raw

	return snapshot, nil
}

func (p *YahooProvider) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
