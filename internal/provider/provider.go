// Package provider defines the upstream data provider abstraction: the
// provider contract, its credential metadata, and the errors shared by
// concrete providers.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/seenimoa/finview/pkg/models"
)

// ProviderCredential describes a required credential for a provider.
type ProviderCredential struct {
	Name        string `json:"name"`        // e.g., "api_key"
	Description string `json:"description"` // e.g., "FMP API key from financialmodelingprep.com"
	Required    bool   `json:"required"`
	EnvVar      string `json:"env_var"` // environment variable name, e.g., "API_KEY"
}

// ProviderInfo holds metadata about a provider.
type ProviderInfo struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Website     string               `json:"website"`
	Credentials []ProviderCredential `json:"credentials"`
}

// ProfileSource returns the full company-profile list.
type ProfileSource interface {
	FetchProfiles(ctx context.Context) ([]models.CompanyProfile, error)
}

// StatementSource returns one company's annual income statements.
type StatementSource interface {
	FetchIncomeStatement(ctx context.Context, symbol string) ([]models.IncomeStatement, error)
}

// Provider is the interface an upstream financial-data provider implements.
type Provider interface {
	ProfileSource
	StatementSource

	// Info returns metadata about this provider.
	Info() ProviderInfo

	// Init initializes the provider with credentials. Returns an error if
	// required credentials are missing.
	Init(credentials map[string]string) error

	// Ping verifies the provider's connectivity and credentials.
	Ping(ctx context.Context) error
}

// ErrNoData is returned when the upstream answers successfully but with
// nothing in it. FMP does this for unknown symbols.
var ErrNoData = errors.New("no data returned")

// ErrMissingParam is returned when a required parameter is missing.
type ErrMissingParam struct {
	Param string
}

func (e *ErrMissingParam) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Param)
}

// ErrInvalidCredentials is returned when provider credentials are invalid.
type ErrInvalidCredentials struct {
	Provider string
	Detail   string
}

func (e *ErrInvalidCredentials) Error() string {
	return fmt.Sprintf("invalid credentials for provider %q: %s", e.Provider, e.Detail)
}
