package api

import (
	"net/http"

	"github.com/seenimoa/finview/internal/config"
)

// ConfigView is the JSON shape returned by GET /config. The upstream API
// key is never included; see GET /config/keys for its status.
type ConfigView struct {
	Upstream UpstreamView       `json:"upstream"`
	API      APIView            `json:"api"`
	Logging  LoggingView        `json:"logging"`
	Keys     []config.KeyStatus `json:"keys"`
}

// UpstreamView mirrors config.UpstreamConfig without the key.
type UpstreamView struct {
	BaseURL   string `json:"base_url"`
	Timeout   string `json:"timeout"`
	RateLimit int    `json:"rate_limit"`
	CacheTTL  string `json:"cache_ttl"`
}

// APIView mirrors config.APIConfig.
type APIView struct {
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	CORSOrigins []string `json:"cors_origins"`
}

// LoggingView mirrors config.LoggingConfig.
type LoggingView struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// newConfigView builds the redacted view of cfg.
func newConfigView(cfg *config.Config) ConfigView {
	return ConfigView{
		Upstream: UpstreamView{
			BaseURL:   cfg.Upstream.BaseURL,
			Timeout:   cfg.Upstream.Timeout.String(),
			RateLimit: cfg.Upstream.RateLimit,
			CacheTTL:  cfg.Upstream.CacheTTL.String(),
		},
		API: APIView{
			Host:        cfg.API.Host,
			Port:        cfg.API.Port,
			CORSOrigins: cfg.API.CORSOrigins,
		},
		Logging: LoggingView{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		},
		Keys: config.CheckAPIKeys(cfg),
	}
}

// handleGetConfig returns the running configuration with secrets redacted.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, APIResponse{
		Status: StatusSuccess,
		Data:   newConfigView(s.cfg),
	})
}

// handleGetConfigKeys returns the status of all sensitive API keys.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, APIResponse{
		Status: StatusSuccess,
		Data:   config.CheckAPIKeys(s.cfg),
	})
}
