// Package income holds the single-company income statement store and the
// filter/sort pipeline that runs over its snapshots.
//
// The pipeline functions are pure: they never modify their input and always
// return a new slice.
package income

import (
	"strconv"

	"github.com/seenimoa/finview/pkg/models"
)

// Year parses the first four characters of a statement date.
func Year(date string) (int, error) {
	if len(date) < 4 {
		return 0, strconv.ErrSyntax
	}
	prefix := date[:4]
	for i := 0; i < len(prefix); i++ {
		if prefix[i] < '0' || prefix[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(prefix)
}

// recordYear is Year with the error attributed to record i.
func recordYear(i int, r models.IncomeStatement) (int, error) {
	y, err := Year(r.Date)
	if err != nil {
		return 0, &ErrMalformedRecord{Index: i, Field: models.FieldDate, Value: r.Date}
	}
	return y, nil
}

// FilterByDateRange keeps records with start <= year(date) <= end.
func FilterByDateRange(data []models.IncomeStatement, start, end int) ([]models.IncomeStatement, error) {
	out := make([]models.IncomeStatement, 0, len(data))
	for i, r := range data {
		y, err := recordYear(i, r)
		if err != nil {
			return nil, err
		}
		if y >= start && y <= end {
			out = append(out, r)
		}
	}
	return out, nil
}

// FilterByRevenueRange keeps records with min <= revenue <= max.
func FilterByRevenueRange(data []models.IncomeStatement, min, max float64) ([]models.IncomeStatement, error) {
	return filterByValue(data, models.FieldRevenue, revenueOf, min, max)
}

// FilterByNetIncomeRange keeps records with min <= netIncome <= max.
func FilterByNetIncomeRange(data []models.IncomeStatement, min, max float64) ([]models.IncomeStatement, error) {
	return filterByValue(data, models.FieldNetIncome, netIncomeOf, min, max)
}

func revenueOf(r models.IncomeStatement) *float64   { return r.Revenue }
func netIncomeOf(r models.IncomeStatement) *float64 { return r.NetIncome }

func filterByValue(data []models.IncomeStatement, field string, get func(models.IncomeStatement) *float64, min, max float64) ([]models.IncomeStatement, error) {
	out := make([]models.IncomeStatement, 0, len(data))
	for i, r := range data {
		v := get(r)
		if v == nil {
			return nil, &ErrMalformedRecord{Index: i, Field: field, Value: rawValue(r, field)}
		}
		if *v >= min && *v <= max {
			out = append(out, r)
		}
	}
	return out, nil
}

// rawValue returns the untyped upstream value for field, for error messages.
func rawValue(r models.IncomeStatement, field string) string {
	raw, ok := r.Extra[field]
	if !ok {
		return ""
	}
	return string(raw)
}
