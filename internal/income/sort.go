package income

import (
	"cmp"
	"slices"

	"github.com/seenimoa/finview/pkg/models"
)

// SortField names a sortable statement field.
type SortField string

const (
	SortByDate      SortField = models.FieldDate
	SortByRevenue   SortField = models.FieldRevenue
	SortByNetIncome SortField = models.FieldNetIncome
)

// ParseSortField validates a sort field name. Matching is exact.
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(s); f {
	case SortByDate, SortByRevenue, SortByNetIncome:
		return f, nil
	}
	return "", &ErrInvalidSortField{Field: s}
}

// SortSpec selects the sort key and direction.
type SortSpec struct {
	Field     SortField `json:"field"`
	Ascending bool      `json:"ascending"`
}

// SortBy returns a stably sorted copy of data. The key is the parsed year
// for date and the raw value for revenue and netIncome; records with equal
// keys keep their input order in both directions.
func SortBy(data []models.IncomeStatement, field SortField, ascending bool) ([]models.IncomeStatement, error) {
	if _, err := ParseSortField(string(field)); err != nil {
		return nil, err
	}

	type keyed struct {
		key float64
		rec models.IncomeStatement
	}
	items := make([]keyed, len(data))
	for i, r := range data {
		k, err := sortKey(i, r, field)
		if err != nil {
			return nil, err
		}
		items[i] = keyed{key: k, rec: r}
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		if ascending {
			return cmp.Compare(a.key, b.key)
		}
		return cmp.Compare(b.key, a.key)
	})

	out := make([]models.IncomeStatement, len(items))
	for i, it := range items {
		out[i] = it.rec
	}
	return out, nil
}

func sortKey(i int, r models.IncomeStatement, field SortField) (float64, error) {
	switch field {
	case SortByDate:
		y, err := recordYear(i, r)
		return float64(y), err
	case SortByRevenue:
		if r.Revenue == nil {
			return 0, &ErrMalformedRecord{Index: i, Field: models.FieldRevenue, Value: rawValue(r, models.FieldRevenue)}
		}
		return *r.Revenue, nil
	default:
		if r.NetIncome == nil {
			return 0, &ErrMalformedRecord{Index: i, Field: models.FieldNetIncome, Value: rawValue(r, models.FieldNetIncome)}
		}
		return *r.NetIncome, nil
	}
}
