package income

import (
	"fmt"
	"math"

	"github.com/seenimoa/finview/pkg/models"
)

// Criteria holds optional inclusive bounds. Each pair is applied only when
// both of its bounds are set.
type Criteria struct {
	StartYear  *int     `json:"start_year,omitempty"`
	EndYear    *int     `json:"end_year,omitempty"`
	MinRevenue *float64 `json:"min_revenue,omitempty"`
	MaxRevenue *float64 `json:"max_revenue,omitempty"`
	MinIncome  *float64 `json:"min_income,omitempty"`
	MaxIncome  *float64 `json:"max_income,omitempty"`
}

func (c Criteria) hasYears() bool   { return c.StartYear != nil && c.EndYear != nil }
func (c Criteria) hasRevenue() bool { return c.MinRevenue != nil && c.MaxRevenue != nil }
func (c Criteria) hasIncome() bool  { return c.MinIncome != nil && c.MaxIncome != nil }

// Validate rejects non-finite bounds and inverted ranges. A half-specified
// pair is not an error; it is ignored by Run.
func (c Criteria) Validate() error {
	for _, b := range []struct {
		name string
		v    *float64
	}{
		{"min_revenue", c.MinRevenue},
		{"max_revenue", c.MaxRevenue},
		{"min_income", c.MinIncome},
		{"max_income", c.MaxIncome},
	} {
		if b.v != nil && (math.IsNaN(*b.v) || math.IsInf(*b.v, 0)) {
			return &ErrInvalidInput{Param: b.name, Detail: fmt.Sprintf("%v is not a finite number", *b.v)}
		}
	}
	if c.hasYears() && *c.StartYear > *c.EndYear {
		return &ErrInvalidInput{Param: "start_year", Detail: fmt.Sprintf("%d is after end_year %d", *c.StartYear, *c.EndYear)}
	}
	if c.hasRevenue() && *c.MinRevenue > *c.MaxRevenue {
		return &ErrInvalidInput{Param: "min_revenue", Detail: "greater than max_revenue"}
	}
	if c.hasIncome() && *c.MinIncome > *c.MaxIncome {
		return &ErrInvalidInput{Param: "min_income", Detail: "greater than max_income"}
	}
	return nil
}

// Run filters by year, then revenue, then net income, and finally sorts
// when sort is non-nil. The input is never modified; the result is always
// a new slice, even when nothing applies.
func Run(data []models.IncomeStatement, c Criteria, sort *SortSpec) ([]models.IncomeStatement, error) {
	out := make([]models.IncomeStatement, len(data))
	copy(out, data)

	var err error
	if c.hasYears() {
		if out, err = FilterByDateRange(out, *c.StartYear, *c.EndYear); err != nil {
			return nil, err
		}
	}
	if c.hasRevenue() {
		if out, err = FilterByRevenueRange(out, *c.MinRevenue, *c.MaxRevenue); err != nil {
			return nil, err
		}
	}
	if c.hasIncome() {
		if out, err = FilterByNetIncomeRange(out, *c.MinIncome, *c.MaxIncome); err != nil {
			return nil, err
		}
	}
	if sort != nil {
		if out, err = SortBy(out, sort.Field, sort.Ascending); err != nil {
			return nil, err
		}
	}
	return out, nil
}
