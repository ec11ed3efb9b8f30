// Package plaid wraps the Plaid SDK for the calls the dashboard needs:
// link-token creation, public-token exchange, account and transaction
// retrieval.
//
// There are no retries and no caching.
package plaid

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"finboard/internal/core"

	"github.com/google/uuid"
	plaidgo "github.com/plaid/plaid-go/v29/plaid"
	"github.com/shopspring/decimal"
)

const (
	Sandbox     = "sandbox"
	Development = "development"
	Production  = "production"

	defaultClientName = "Personal Finance App"
	dateLayout        = "2006-01-02"

	headerClientID = "PLAID-CLIENT-ID"
	headerSecret   = "PLAID-SECRET"
)

// Config holds the credentials and endpoint selection for a Client.
type Config struct {
	ClientID    string
	Secret      string
	Environment string
	// BaseURL overrides the URL derived from Environment.
	BaseURL    string
	ClientName string
	HTTPClient *http.Client
}

type Client struct {
	clientID   string
	secret     string
	baseURL    string
	clientName string
	api        *plaidgo.APIClient
}

// BaseURLFor returns the API host for a Plaid environment. Unknown values
// fall back to sandbox.
func BaseURLFor(environment string) string {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case Production:
		return "https://production.plaid.com"
	case Development:
		return "https://development.plaid.com"
	default:
		return "https://sandbox.plaid.com"
	}
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = BaseURLFor(cfg.Environment)
	}
	name := strings.TrimSpace(cfg.ClientName)
	if name == "" {
		name = defaultClientName
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	c := &Client{
		clientID:   strings.TrimSpace(cfg.ClientID),
		secret:     strings.TrimSpace(cfg.Secret),
		baseURL:    baseURL,
		clientName: name,
	}

	conf := plaidgo.NewConfiguration()
	conf.AddDefaultHeader(headerClientID, c.clientID)
	conf.AddDefaultHeader(headerSecret, c.secret)
	conf.Servers = plaidgo.ServerConfigurations{{URL: baseURL, Description: "finboard"}}
	conf.HTTPClient = hc
	c.api = plaidgo.NewAPIClient(conf)
	return c
}

// HasCredentials reports whether both client id and secret are set.
func (c *Client) HasCredentials() bool {
	return c.clientID != "" && c.secret != ""
}

// CredentialStatus describes which credentials are configured without
// exposing their values.
type CredentialStatus struct {
	HasClientID    bool   `json:"hasClientId"`
	HasSecret      bool   `json:"hasSecret"`
	ClientIDLength int    `json:"clientIdLength"`
	SecretLength   int    `json:"secretLength"`
	BaseURL        string `json:"baseUrl"`
}

func (c *Client) CredentialStatus() CredentialStatus {
	return CredentialStatus{
		HasClientID:    c.clientID != "",
		HasSecret:      c.secret != "",
		ClientIDLength: len(c.clientID),
		SecretLength:   len(c.secret),
		BaseURL:        c.baseURL,
	}
}

// CreateLinkToken requests a short-lived link token scoped to a fresh
// synthetic user id.
func (c *Client) CreateLinkToken(ctx context.Context) (string, error) {
	if !c.HasCredentials() {
		return "", ErrCredentialsMissing
	}

	user := plaidgo.NewLinkTokenCreateRequestUser("user_" + uuid.NewString())
	req := plaidgo.NewLinkTokenCreateRequest(c.clientName, "en", []plaidgo.CountryCode{plaidgo.COUNTRYCODE_US}, *user)
	req.SetProducts([]plaidgo.Products{plaidgo.PRODUCTS_TRANSACTIONS})

	start := time.Now()
	resp, httpResp, err := c.api.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*req).Execute()
	if err := c.check(ctx, "/link/token/create", start, httpResp, err, ErrAggregator); err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "Plaid link token created", "request_id", resp.GetRequestId(), "expiration", resp.GetExpiration())
	return resp.GetLinkToken(), nil
}

// ExchangePublicToken trades a one-time public token for a durable access
// token.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (string, error) {
	if strings.TrimSpace(publicToken) == "" {
		return "", fmt.Errorf("%w: %w", ErrExchangeFailed, ErrMissingToken)
	}
	if !c.HasCredentials() {
		return "", fmt.Errorf("%w: %w", ErrExchangeFailed, ErrCredentialsMissing)
	}

	req := plaidgo.NewItemPublicTokenExchangeRequest(publicToken)
	start := time.Now()
	resp, httpResp, err := c.api.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*req).Execute()
	if err := c.check(ctx, "/item/public_token/exchange", start, httpResp, err, ErrExchangeFailed); err != nil {
		return "", err
	}
	if resp.GetAccessToken() == "" {
		return "", fmt.Errorf("%w: response has no access_token", ErrExchangeFailed)
	}
	slog.InfoContext(ctx, "Plaid public token exchanged", "item_id", resp.GetItemId(), "request_id", resp.GetRequestId())
	return resp.GetAccessToken(), nil
}

func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]core.Account, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, ErrMissingToken)
	}

	req := plaidgo.NewAccountsGetRequest(accessToken)
	start := time.Now()
	resp, httpResp, err := c.api.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*req).Execute()
	if err := c.check(ctx, "/accounts/get", start, httpResp, err, ErrFetchFailed); err != nil {
		return nil, err
	}

	accounts := make([]core.Account, 0, len(resp.GetAccounts()))
	for _, a := range resp.GetAccounts() {
		b := a.GetBalances()
		accounts = append(accounts, core.Account{
			PlaidID:      a.GetAccountId(),
			Name:         a.GetName(),
			OfficialName: a.GetOfficialName(),
			Type:         string(a.GetType()),
			Subtype:      string(a.GetSubtype()),
			Balances: core.Balances{
				Available: nullDecimal(b.GetAvailableOk()),
				Current:   nullDecimal(b.GetCurrentOk()),
				Limit:     nullDecimal(b.GetLimitOk()),
			},
		})
	}
	return accounts, nil
}

// GetTransactions returns the transactions dated within window, in the
// aggregator's sign convention. Records with an unparseable date are
// logged and skipped.
func (c *Client) GetTransactions(ctx context.Context, accessToken string, window core.DateRange) ([]core.RawTransaction, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, ErrMissingToken)
	}

	req := plaidgo.NewTransactionsGetRequest(accessToken, window.Start.Format(dateLayout), window.End.Format(dateLayout))
	start := time.Now()
	resp, httpResp, err := c.api.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*req).Execute()
	if err := c.check(ctx, "/transactions/get", start, httpResp, err, ErrFetchFailed); err != nil {
		return nil, err
	}

	records := resp.GetTransactions()
	txs := make([]core.RawTransaction, 0, len(records))
	for _, t := range records {
		date, err := time.Parse(dateLayout, t.GetDate())
		if err != nil {
			slog.WarnContext(ctx, "Skipping Plaid transaction with invalid date",
				"transaction_id", t.GetTransactionId(), "date", t.GetDate())
			continue
		}
		txs = append(txs, core.RawTransaction{
			PlaidID:      t.GetTransactionId(),
			AccountID:    t.GetAccountId(),
			Amount:       decimal.NewFromFloat(t.GetAmount()),
			Name:         t.GetName(),
			MerchantName: t.GetMerchantName(),
			Date:         date,
			Category:     t.GetCategory(),
			Pending:      t.GetPending(),
		})
	}
	if total := int(resp.GetTotalTransactions()); total > len(records) {
		slog.WarnContext(ctx, "Plaid returned a partial transaction page",
			"returned", len(records), "total", total)
	}
	return txs, nil
}

// CreateSandboxPublicToken creates a public token for a sandbox institution
// without going through the Link widget.
func (c *Client) CreateSandboxPublicToken(ctx context.Context, institutionID string) (string, error) {
	if !c.HasCredentials() {
		return "", ErrCredentialsMissing
	}
	req := plaidgo.NewSandboxPublicTokenCreateRequest(institutionID, []plaidgo.Products{plaidgo.PRODUCTS_TRANSACTIONS})
	start := time.Now()
	resp, httpResp, err := c.api.PlaidApi.SandboxPublicTokenCreate(ctx).SandboxPublicTokenCreateRequest(*req).Execute()
	if err := c.check(ctx, "/sandbox/public_token/create", start, httpResp, err, ErrAggregator); err != nil {
		return "", err
	}
	return resp.GetPublicToken(), nil
}

// check logs the call and maps an SDK failure onto kind. Non-2xx responses
// become *APIError carrying the raw body.
func (c *Client) check(ctx context.Context, endpoint string, start time.Time, httpResp *http.Response, err error, kind error) error {
	status := 0
	if httpResp != nil {
		status = httpResp.StatusCode
	}
	slog.DebugContext(ctx, "Plaid response",
		"endpoint", endpoint,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds())

	if err == nil {
		return nil
	}
	if status != 0 && (status < 200 || status > 299) {
		return &APIError{Kind: kind, Endpoint: endpoint, Status: status, Body: errorBody(err)}
	}
	return fmt.Errorf("%w: %s: %w", kind, endpoint, err)
}

// errorBody extracts the raw response body the SDK keeps on its error type.
func errorBody(err error) string {
	if b, ok := err.(interface{ Body() []byte }); ok {
		return string(b.Body())
	}
	return ""
}

func nullDecimal(v *float64, ok bool) decimal.NullDecimal {
	if !ok || v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v))
}
