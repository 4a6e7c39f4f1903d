package income

import "fmt"

// ErrMalformedRecord reports a stored record whose date or numeric field
// cannot be read.
type ErrMalformedRecord struct {
	Index int    // position in the input slice
	Field string // "date", "revenue" or "netIncome"
	Value string // offending value, "" when missing
}

func (e *ErrMalformedRecord) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("malformed record at index %d: missing or non-numeric %s", e.Index, e.Field)
	}
	return fmt.Sprintf("malformed record at index %d: invalid %s %q", e.Index, e.Field, e.Value)
}

// ErrInvalidSortField is returned for a sort field outside date, revenue
// and netIncome.
type ErrInvalidSortField struct {
	Field string
}

func (e *ErrInvalidSortField) Error() string {
	return fmt.Sprintf("invalid sort field %q: must be one of date, revenue, netIncome", e.Field)
}

// ErrInvalidInput reports a request parameter that cannot be used.
type ErrInvalidInput struct {
	Param  string
	Detail string
}

func (e *ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Detail)
}
