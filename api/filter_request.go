package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/seenimoa/finview/internal/income"
)

// FilterRequest is a decoded /filter-sort-income request. Sort is nil when
// no sort_field was given.
type FilterRequest struct {
	Criteria  income.Criteria
	Sort      *income.SortSpec
	DatasetID string
}

// filterBody is the POST body. Ascending defaults to true when omitted.
type filterBody struct {
	income.Criteria
	SortField string `json:"sort_field"`
	Ascending *bool  `json:"ascending"`
	DatasetID string `json:"dataset_id"`
}

// decodeFilterBody reads a JSON request body. An empty body means no
// filters and no sort.
func decodeFilterBody(r io.Reader) (FilterRequest, error) {
	var body filterBody
	if err := json.NewDecoder(r).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return FilterRequest{}, &income.ErrInvalidInput{Param: "body", Detail: err.Error()}
	}

	asc := true
	if body.Ascending != nil {
		asc = *body.Ascending
	}
	spec, err := sortSpec(body.SortField, asc)
	if err != nil {
		return FilterRequest{}, err
	}
	return FilterRequest{
		Criteria:  body.Criteria,
		Sort:      spec,
		DatasetID: strings.TrimSpace(body.DatasetID),
	}, nil
}

// parseFilterQuery reads the same parameters from a query string. Empty
// values count as absent.
func parseFilterQuery(q url.Values) (FilterRequest, error) {
	var (
		req FilterRequest
		err error
	)
	if req.Criteria.StartYear, err = queryInt(q, "start_year"); err != nil {
		return req, err
	}
	if req.Criteria.EndYear, err = queryInt(q, "end_year"); err != nil {
		return req, err
	}
	if req.Criteria.MinRevenue, err = queryFloat(q, "min_revenue"); err != nil {
		return req, err
	}
	if req.Criteria.MaxRevenue, err = queryFloat(q, "max_revenue"); err != nil {
		return req, err
	}
	if req.Criteria.MinIncome, err = queryFloat(q, "min_income"); err != nil {
		return req, err
	}
	if req.Criteria.MaxIncome, err = queryFloat(q, "max_income"); err != nil {
		return req, err
	}

	asc := true
	if v := strings.TrimSpace(q.Get("ascending")); v != "" {
		if asc, err = strconv.ParseBool(v); err != nil {
			return req, &income.ErrInvalidInput{Param: "ascending", Detail: fmt.Sprintf("%q is not a boolean", v)}
		}
	}
	if req.Sort, err = sortSpec(strings.TrimSpace(q.Get("sort_field")), asc); err != nil {
		return req, err
	}
	req.DatasetID = strings.TrimSpace(q.Get("dataset_id"))
	return req, nil
}

func sortSpec(field string, ascending bool) (*income.SortSpec, error) {
	if field == "" {
		return nil, nil
	}
	f, err := income.ParseSortField(field)
	if err != nil {
		return nil, err
	}
	return &income.SortSpec{Field: f, Ascending: ascending}, nil
}

func queryInt(q url.Values, name string) (*int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, &income.ErrInvalidInput{Param: name, Detail: fmt.Sprintf("%q is not an integer", v)}
	}
	return &n, nil
}

func queryFloat(q url.Values, name string) (*float64, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &income.ErrInvalidInput{Param: name, Detail: fmt.Sprintf("%q is not a finite number", v)}
	}
	return &f, nil
}
