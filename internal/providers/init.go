// Package providers builds the configured upstream data provider.
package providers

import (
	"github.com/rs/zerolog"

	"github.com/seenimoa/finview/internal/config"
	"github.com/seenimoa/finview/internal/providers/fmp"
)

// NewUpstream creates the FMP provider from cfg and initializes it with the
// configured API key. A missing key is logged, not fatal: FMP rejects the
// unauthenticated calls and the handlers surface that as an upstream error.
func NewUpstream(cfg config.UpstreamConfig, log zerolog.Logger) (*fmp.Provider, error) {
	fp := fmp.New(fmp.Options{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		CacheTTL:  cfg.CacheTTL,
		Logger:    log,
	})

	if cfg.APIKey == "" {
		log.Warn().Msgf("no FMP API key configured; set %s in the environment or .env", config.EnvAPIKey)
		return fp, nil
	}
	if err := fp.Init(map[string]string{"api_key": cfg.APIKey}); err != nil {
		return nil, err
	}
	return fp, nil
}
