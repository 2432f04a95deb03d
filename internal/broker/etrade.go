package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "etrade-trader/internal/errors"
	"etrade-trader/internal/models"
)

const (
	sandboxBaseURL    = "https://apisb.etrade.com"
	productionBaseURL = "https://api.etrade.com"
	authBaseURL       = "https://api.etrade.com"
	authorizeURLFmt   = "https://us.etrade.com/e/t/etws/authorize?key=%s&token=%s"

	// Maximum symbols the quote endpoint accepts per request.
	quoteBatchSize = 25
)

// VerifierFunc obtains the OAuth verification code after the user authorizes
// the application at the given URL.
type VerifierFunc func(authorizeURL string) (string, error)

// ETradeConfig holds configuration for the E*TRADE broker.
type ETradeConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	Sandbox        bool
	Verifier       VerifierFunc
	Logger         zerolog.Logger
}

// ETradeBroker implements Broker against the E*TRADE REST API using an
// OAuth1 session. All requests share one rate limiter to stay inside the
// provider's limits.
type ETradeBroker struct {
	cfg           ETradeConfig
	baseURL       string
	oauthConfig   *oauth1.Config
	client        *http.Client
	limiter       *rate.Limiter
	logger        zerolog.Logger
	authenticated bool
	authedAt      time.Time
}

// NewETradeBroker creates an unauthenticated E*TRADE broker.
func NewETradeBroker(cfg ETradeConfig) *ETradeBroker {
	baseURL := productionBaseURL
	if cfg.Sandbox {
		baseURL = sandboxBaseURL
	}
	return &ETradeBroker{
		cfg:     cfg,
		baseURL: baseURL,
		oauthConfig: &oauth1.Config{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			CallbackURL:    "oob",
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: authBaseURL + "/oauth/request_token",
				AuthorizeURL:    authBaseURL + "/oauth/authorize",
				AccessTokenURL:  authBaseURL + "/oauth/access_token",
			},
		},
		limiter: rate.NewLimiter(rate.Limit(2), 4), // 2 req/s sustained
		logger:  cfg.Logger,
	}
}

// Authenticate runs the full OAuth1 flow: request token, user authorization
// via the verifier callback, access-token exchange.
func (b *ETradeBroker) Authenticate(ctx context.Context) error {
	if b.cfg.Verifier == nil {
		return fmt.Errorf("no verifier configured: %w", apperrors.ErrNotAuthenticated)
	}

	requestToken, requestSecret, err := b.oauthConfig.RequestToken()
	if err != nil {
		return apperrors.Wrap(err, "requesting OAuth token")
	}

	authorizeURL := fmt.Sprintf(authorizeURLFmt, url.QueryEscape(b.cfg.ConsumerKey), url.QueryEscape(requestToken))
	verifier, err := b.cfg.Verifier(authorizeURL)
	if err != nil {
		return apperrors.Wrap(err, "obtaining verification code")
	}

	accessToken, accessSecret, err := b.oauthConfig.AccessToken(requestToken, requestSecret, strings.TrimSpace(verifier))
	if err != nil {
		return apperrors.Wrap(err, "exchanging access token")
	}

	b.client = b.oauthConfig.Client(ctx, oauth1.NewToken(accessToken, accessSecret))
	b.client.Timeout = 30 * time.Second
	b.authenticated = true
	b.authedAt = time.Now()
	b.logger.Info().Bool("sandbox", b.cfg.Sandbox).Msg("OAuth authentication successful")
	return nil
}

// RenewToken keeps the access token alive. E*TRADE tokens go stale after
// inactivity and die at midnight US/Eastern regardless.
func (b *ETradeBroker) RenewToken(ctx context.Context) error {
	if !b.authenticated {
		return apperrors.ErrNotAuthenticated
	}
	body, err := b.get(ctx, authBaseURL+"/oauth/renew_access_token", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrRenewalFailed, err)
	}
	_ = body
	b.logger.Info().Msg("Access token renewed")
	return nil
}

// IsAuthenticated reports whether an OAuth session is active.
func (b *ETradeBroker) IsAuthenticated() bool {
	return b.authenticated
}

// ListAccounts returns the non-closed accounts for the session.
func (b *ETradeBroker) ListAccounts(ctx context.Context) ([]models.Account, error) {
	body, err := b.get(ctx, b.baseURL+"/v1/accounts/list.json", nil)
	if err != nil {
		return nil, apperrors.Wrap(err, "listing accounts")
	}

	var resp struct {
		AccountListResponse struct {
			Accounts struct {
				Account []struct {
					AccountID       string `json:"accountId"`
					AccountIDKey    string `json:"accountIdKey"`
					AccountDesc     string `json:"accountDesc"`
					InstitutionType string `json:"institutionType"`
					AccountStatus   string `json:"accountStatus"`
				} `json:"Account"`
			} `json:"Accounts"`
		} `json:"AccountListResponse"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.Wrap(err, "decoding account list")
	}

	var accounts []models.Account
	for _, a := range resp.AccountListResponse.Accounts.Account {
		if a.AccountStatus == "CLOSED" {
			continue
		}
		accounts = append(accounts, models.Account{
			AccountID:       a.AccountID,
			AccountIDKey:    a.AccountIDKey,
			Description:     strings.TrimSpace(a.AccountDesc),
			InstitutionType: a.InstitutionType,
			Status:          a.AccountStatus,
		})
	}
	return accounts, nil
}

// GetBalance returns cash buying power and total account value.
func (b *ETradeBroker) GetBalance(ctx context.Context, account *models.Account) (*models.Balance, error) {
	params := url.Values{
		"instType":    {orDefault(account.InstitutionType, "BROKERAGE")},
		"realTimeNAV": {"true"},
	}
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/balance.json", b.baseURL, account.AccountIDKey)
	body, err := b.get(ctx, endpoint, params)
	if err != nil {
		return nil, apperrors.Wrap(err, "fetching balance")
	}

	var resp struct {
		BalanceResponse struct {
			Computed struct {
				CashBuyingPower float64 `json:"cashBuyingPower"`
				RealTimeValues  struct {
					TotalAccountValue float64 `json:"totalAccountValue"`
				} `json:"RealTimeValues"`
			} `json:"Computed"`
		} `json:"BalanceResponse"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.Wrap(err, "decoding balance")
	}
	return &models.Balance{
		CashBuyingPower:   resp.BalanceResponse.Computed.CashBuyingPower,
		TotalAccountValue: resp.BalanceResponse.Computed.RealTimeValues.TotalAccountValue,
	}, nil
}

// GetPortfolio returns the account's positions.
func (b *ETradeBroker) GetPortfolio(ctx context.Context, account *models.Account) ([]models.BrokeragePosition, error) {
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/portfolio.json", b.baseURL, account.AccountIDKey)
	body, err := b.get(ctx, endpoint, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, "fetching portfolio")
	}
	if len(body) == 0 {
		return nil, nil // 204: empty portfolio
	}

	var resp struct {
		PortfolioResponse struct {
			AccountPortfolio []struct {
				Position []struct {
					SymbolDescription string  `json:"symbolDescription"`
					Quantity          int     `json:"quantity"`
					PricePaid         float64 `json:"pricePaid"`
					MarketValue       float64 `json:"marketValue"`
					TotalGain         float64 `json:"totalGain"`
					Product           struct {
						Symbol string `json:"symbol"`
					} `json:"Product"`
				} `json:"Position"`
			} `json:"AccountPortfolio"`
		} `json:"PortfolioResponse"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.Wrap(err, "decoding portfolio")
	}

	var positions []models.BrokeragePosition
	for _, ap := range resp.PortfolioResponse.AccountPortfolio {
		for _, p := range ap.Position {
			symbol := p.Product.Symbol
			if symbol == "" {
				symbol = p.SymbolDescription
			}
			if symbol == "" {
				continue
			}
			positions = append(positions, models.BrokeragePosition{
				Symbol:      symbol,
				Quantity:    p.Quantity,
				PricePaid:   p.PricePaid,
				MarketValue: p.MarketValue,
				TotalGain:   p.TotalGain,
			})
		}
	}
	return positions, nil
}

// GetQuotes fetches live quotes, batched to the provider's per-request limit.
// A failed batch is logged and skipped; other batches proceed.
func (b *ETradeBroker) GetQuotes(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	if !b.authenticated {
		return nil, apperrors.ErrNotAuthenticated
	}

	quotes := make(map[string]models.Quote, len(symbols))
	for start := 0; start < len(symbols); start += quoteBatchSize {
		end := start + quoteBatchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		endpoint := fmt.Sprintf("%s/v1/market/quote/%s.json", b.baseURL, strings.Join(batch, ","))
		body, err := b.get(ctx, endpoint, url.Values{"detailFlag": {"ALL"}})
		if err != nil {
			b.logger.Error().Err(err).Strs("batch", batch).Msg("Quote batch failed")
			continue
		}

		var resp struct {
			QuoteResponse struct {
				QuoteData []struct {
					Product struct {
						Symbol string `json:"symbol"`
					} `json:"Product"`
					All struct {
						LastTrade      float64 `json:"lastTrade"`
						Bid            float64 `json:"bid"`
						Ask            float64 `json:"ask"`
						TotalVolume    int64   `json:"totalVolume"`
						EPS            float64 `json:"eps"`
						PE             float64 `json:"pe"`
						Beta           float64 `json:"beta"`
						MarketCap      float64 `json:"marketCap"`
						Week52HiPrice  float64 `json:"week52HiPrice"`
						Week52LowPrice float64 `json:"week52LowPrice"`
						PreviousClose  float64 `json:"previousClose"`
					} `json:"All"`
				} `json:"QuoteData"`
			} `json:"QuoteResponse"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			b.logger.Error().Err(err).Msg("Quote batch decode failed")
			continue
		}

		now := time.Now()
		for _, qd := range resp.QuoteResponse.QuoteData {
			if qd.Product.Symbol == "" {
				continue
			}
			quotes[qd.Product.Symbol] = models.Quote{
				Symbol:        qd.Product.Symbol,
				LastPrice:     qd.All.LastTrade,
				Bid:           qd.All.Bid,
				Ask:           qd.All.Ask,
				Volume:        qd.All.TotalVolume,
				EPS:           qd.All.EPS,
				PE:            qd.All.PE,
				Beta:          qd.All.Beta,
				MarketCap:     qd.All.MarketCap,
				Week52High:    qd.All.Week52HiPrice,
				Week52Low:     qd.All.Week52LowPrice,
				PreviousClose: qd.All.PreviousClose,
				Timestamp:     now,
			}
		}
	}
	return quotes, nil
}

// PreviewOrder submits a LIMIT order preview.
func (b *ETradeBroker) PreviewOrder(ctx context.Context, account *models.Account, req *models.OrderRequest) (*models.OrderPreview, error) {
	clientOrderID := fmt.Sprintf("%d", 1000000000+rand.Int63n(9000000000))
	payload := orderXML("PreviewOrderRequest", clientOrderID, "", req)

	endpoint := fmt.Sprintf("%s/v1/accounts/%s/orders/preview.json", b.baseURL, account.AccountIDKey)
	body, err := b.post(ctx, endpoint, payload)
	if err != nil {
		return nil, apperrors.NewOrderError(req.Symbol, string(req.Side), "preview failed", err)
	}

	var resp struct {
		PreviewOrderResponse struct {
			PreviewIds []struct {
				PreviewID json.Number `json:"previewId"`
			} `json:"PreviewIds"`
		} `json:"PreviewOrderResponse"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewOrderError(req.Symbol, string(req.Side), "preview decode failed", err)
	}
	if len(resp.PreviewOrderResponse.PreviewIds) == 0 {
		return nil, apperrors.NewOrderError(req.Symbol, string(req.Side), "no preview IDs", apperrors.ErrOrderRejected)
	}

	return &models.OrderPreview{
		PreviewID:     resp.PreviewOrderResponse.PreviewIds[0].PreviewID.String(),
		ClientOrderID: clientOrderID,
		Request:       *req,
		EstimatedCost: float64(req.Quantity) * req.LimitPrice,
	}, nil
}

// PlaceOrder places a previously previewed order.
func (b *ETradeBroker) PlaceOrder(ctx context.Context, account *models.Account, preview *models.OrderPreview) (*models.OrderResult, error) {
	req := preview.Request
	payload := orderXML("PlaceOrderRequest", preview.ClientOrderID, preview.PreviewID, &req)

	endpoint := fmt.Sprintf("%s/v1/accounts/%s/orders/place.json", b.baseURL, account.AccountIDKey)
	body, err := b.post(ctx, endpoint, payload)
	if err != nil {
		return nil, apperrors.NewOrderError(req.Symbol, string(req.Side), "place failed", err)
	}

	var resp struct {
		PlaceOrderResponse struct {
			OrderIds []struct {
				OrderID json.Number `json:"orderId"`
			} `json:"OrderIds"`
		} `json:"PlaceOrderResponse"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewOrderError(req.Symbol, string(req.Side), "place decode failed", err)
	}

	orderID := ""
	if len(resp.PlaceOrderResponse.OrderIds) > 0 {
		orderID = resp.PlaceOrderResponse.OrderIds[0].OrderID.String()
	}
	return &models.OrderResult{
		OrderID:   orderID,
		Status:    "PLACED",
		FillPrice: req.LimitPrice,
		PlacedAt:  time.Now(),
	}, nil
}

// CancelOrder cancels an open order.
func (b *ETradeBroker) CancelOrder(ctx context.Context, account *models.Account, orderID string) error {
	payload := fmt.Sprintf(`<CancelOrderRequest><orderId>%s</orderId></CancelOrderRequest>`, orderID)
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/orders/cancel.json", b.baseURL, account.AccountIDKey)
	_, err := b.put(ctx, endpoint, payload)
	return apperrors.Wrapf(err, "cancelling order %s", orderID)
}

// orderXML renders the equity order payload shared by preview and place.
// Only LIMIT orders are ever built.
func orderXML(root, clientOrderID, previewID string, req *models.OrderRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<%s><orderType>EQ</orderType><clientOrderId>%s</clientOrderId>", root, clientOrderID)
	if previewID != "" {
		fmt.Fprintf(&sb, "<PreviewIds><previewId>%s</previewId></PreviewIds>", previewID)
	}
	fmt.Fprintf(&sb, `<Order><allOrNone>false</allOrNone><priceType>LIMIT</priceType>`+
		`<orderTerm>GOOD_FOR_DAY</orderTerm><marketSession>REGULAR</marketSession>`+
		`<stopPrice></stopPrice><limitPrice>%.2f</limitPrice>`+
		`<Instrument><Product><securityType>EQ</securityType><symbol>%s</symbol></Product>`+
		`<orderAction>%s</orderAction><quantityType>QUANTITY</quantityType><quantity>%d</quantity>`+
		`</Instrument></Order></%s>`,
		req.LimitPrice, req.Symbol, req.Side, req.Quantity, root)
	return sb.String()
}

func (b *ETradeBroker) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if params != nil {
		endpoint = endpoint + "?" + params.Encode()
	}
	return b.do(ctx, http.MethodGet, endpoint, "")
}

func (b *ETradeBroker) post(ctx context.Context, endpoint, payload string) ([]byte, error) {
	return b.do(ctx, http.MethodPost, endpoint, payload)
}

func (b *ETradeBroker) put(ctx context.Context, endpoint, payload string) ([]byte, error) {
	return b.do(ctx, http.MethodPut, endpoint, payload)
}

func (b *ETradeBroker) do(ctx context.Context, method, endpoint, payload string) ([]byte, error) {
	if b.client == nil {
		return nil, apperrors.ErrNotAuthenticated
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if payload != "" {
		bodyReader = strings.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, err
	}
	if payload != "" {
		req.Header.Set("Content-Type", "application/xml")
	}
	req.Header.Set("consumerKey", b.cfg.ConsumerKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode == http.StatusUnauthorized:
		b.authenticated = false
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSessionExpired, strings.TrimSpace(string(body)))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
