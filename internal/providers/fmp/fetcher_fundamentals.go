package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/seenimoa/finview/internal/infra"
	"github.com/seenimoa/finview/internal/provider"
	"github.com/seenimoa/finview/pkg/models"
)

const opFetchIncome = "fetch income statement"

// FetchIncomeStatement returns the annual income statements for symbol.
// An empty upstream list yields provider.ErrNoData. Results are cached
// per symbol for the configured TTL; callers get their own copy.
func (p *Provider) FetchIncomeStatement(ctx context.Context, symbol string) ([]models.IncomeStatement, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, &provider.ErrMissingParam{Param: "symbol"}
	}

	if cached, ok := p.cache.Get(symbol); ok {
		p.log.Debug().Str("symbol", symbol).Msg("income statement cache hit")
		return cloneStatements(cached), nil
	}

	u := p.url("/income-statement", url.Values{
		"symbol": {symbol},
		"period": {"annual"},
	})
	body, err := p.http.DoGet(ctx, opFetchIncome, u, jsonHeaders())
	if err != nil {
		return nil, err
	}

	var stmts []models.IncomeStatement
	if err := json.Unmarshal(body, &stmts); err != nil {
		if msg, ok := upstreamMessage(body); ok {
			return nil, &infra.ErrUpstream{Op: opFetchIncome, Err: errors.New(msg)}
		}
		return nil, &infra.ErrUpstream{Op: opFetchIncome, Err: fmt.Errorf("parse FMP JSON: %w", err)}
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("fmp income statement %s: %w", symbol, provider.ErrNoData)
	}

	p.cache.Set(symbol, stmts)
	p.log.Info().Str("symbol", symbol).Int("records", len(stmts)).Msg("fetched income statement")
	return cloneStatements(stmts), nil
}

func cloneStatements(in []models.IncomeStatement) []models.IncomeStatement {
	out := make([]models.IncomeStatement, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
