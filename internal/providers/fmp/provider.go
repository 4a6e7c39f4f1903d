// Package fmp implements the Financial Modeling Prep (FMP) data provider.
// FMP offers financial data via a REST API with API key authentication.
// finview uses two endpoints: the bulk company-profile CSV export and the
// per-symbol annual income statement.
//
// Free tier: 250 requests/day.
// Docs: https://financialmodelingprep.com/developer/docs
package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/finview/internal/infra"
	"github.com/seenimoa/finview/internal/provider"
	"github.com/seenimoa/finview/pkg/models"
)

const (
	providerName   = "fmp"
	DefaultBaseURL = "https://financialmodelingprep.com/stable"
	credAPIKey     = "api_key"
)

// Options configures a Provider. Zero values pick the defaults.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit int           // requests per second, 0 = unlimited
	CacheTTL  time.Duration // per-symbol statement cache, 0 = off
	Logger    zerolog.Logger
}

// Provider implements provider.Provider for FMP.
type Provider struct {
	provider.BaseProvider
	apiKey  string
	baseURL string
	http    *infra.HTTPClient
	cache   *infra.Cache[[]models.IncomeStatement]
	log     zerolog.Logger
}

var _ provider.Provider = (*Provider)(nil)

// New creates a new FMP provider. Call Init with the API key before use.
func New(opts Options) *Provider {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Financial Modeling Prep - company profiles and income statements",
			"https://financialmodelingprep.com",
			[]provider.ProviderCredential{
				{
					Name:        credAPIKey,
					Description: "FMP API key from financialmodelingprep.com",
					Required:    true,
					EnvVar:      "API_KEY",
				},
			},
		),
		baseURL: base,
		http:    infra.NewHTTPClient(opts.Timeout, infra.NewRateLimiter(opts.RateLimit, time.Second)),
		cache:   infra.NewCache[[]models.IncomeStatement](opts.CacheTTL),
		log:     opts.Logger.With().Str("provider", providerName).Logger(),
	}
}

// Init stores the API key.
func (p *Provider) Init(credentials map[string]string) error {
	if err := p.BaseProvider.Init(credentials); err != nil {
		return err
	}
	p.apiKey = p.Credential(credAPIKey)
	return nil
}

// Ping checks connectivity to FMP with a one-symbol statement request.
func (p *Provider) Ping(ctx context.Context) error {
	_, err := p.http.DoGet(ctx, "fmp ping", p.url("/income-statement", url.Values{
		"symbol": {"AAPL"},
		"limit":  {"1"},
	}), jsonHeaders())
	if err != nil {
		return fmt.Errorf("fmp ping: %w", err)
	}
	return nil
}

// APIKey returns the stored API key.
func (p *Provider) APIKey() string {
	return p.apiKey
}

// --- Shared helpers ---

func jsonHeaders() map[string]string {
	return map[string]string{"Accept": "application/json"}
}

func csvHeaders() map[string]string {
	return map[string]string{"Accept": "text/csv"}
}

// url builds a full FMP API URL with the API key appended.
func (p *Provider) url(path string, query url.Values) string {
	return fmpURL(p.baseURL, path, query, p.apiKey)
}

// fmpURL joins base and path and appends query plus apikey. The key is
// always the last parameter.
func fmpURL(base, path string, query url.Values, apiKey string) string {
	u := base + path
	enc := query.Encode()
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if enc != "" {
		u += sep + enc
		sep = "&"
	}
	return u + sep + "apikey=" + url.QueryEscape(apiKey)
}

// upstreamMessage extracts FMP's error payload ({"Error Message": "..."}),
// which the API sends with a 200 status for bad keys and exhausted plans.
func upstreamMessage(body []byte) (string, bool) {
	var e fmpErrorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return "", false
	}
	if e.ErrorMessage != "" {
		return e.ErrorMessage, true
	}
	if e.Message != "" {
		return e.Message, true
	}
	return "", false
}

// asUpstream tags err with op unless it already is an upstream error.
func asUpstream(op string, err error) error {
	var up *infra.ErrUpstream
	if errors.As(err, &up) {
		return err
	}
	return &infra.ErrUpstream{Op: op, Err: err}
}
