package fmp

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/seenimoa/finview/pkg/models"
)

const opFetchProfiles = "fetch profiles"

// FetchProfiles downloads the bulk profile export and parses it. Any
// failure comes back as an *infra.ErrUpstream.
func (p *Provider) FetchProfiles(ctx context.Context) ([]models.CompanyProfile, error) {
	body, err := p.http.DoGet(ctx, opFetchProfiles, p.url("/profile-bulk", url.Values{"part": {"0"}}), csvHeaders())
	if err != nil {
		return nil, err
	}
	if msg, ok := upstreamMessage(body); ok {
		return nil, asUpstream(opFetchProfiles, errors.New(msg))
	}

	profiles, err := parseProfilesCSV(bytes.NewReader(body))
	if err != nil {
		return nil, asUpstream(opFetchProfiles, err)
	}
	p.log.Info().Int("profiles", len(profiles)).Msg("fetched company profiles")
	return profiles, nil
}

// parseProfilesCSV reads a header row and maps every following row onto
// it. Short rows leave trailing columns empty; extra cells are dropped.
func parseProfilesCSV(r io.Reader) ([]models.CompanyProfile, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("profile csv: empty body")
	}
	if err != nil {
		return nil, fmt.Errorf("profile csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	symbolIdx := -1
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
		if header[i] == profileSymbolColumn && symbolIdx < 0 {
			symbolIdx = i
		}
	}
	if symbolIdx < 0 {
		return nil, fmt.Errorf("profile csv: no %q column in header", profileSymbolColumn)
	}

	var profiles []models.CompanyProfile
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("profile csv line %d: %w", line, err)
		}

		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				fields[col] = row[i]
			} else {
				fields[col] = ""
			}
		}
		prof := models.CompanyProfile{Fields: fields}
		prof.Symbol = strings.TrimSpace(prof.Get(profileSymbolColumn))
		profiles = append(profiles, prof)
	}
	return profiles, nil
}
