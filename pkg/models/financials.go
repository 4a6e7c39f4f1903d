package models

import (
	"encoding/json"
	"fmt"
)

// Upstream field names the pipeline reads.
const (
	FieldDate      = "date"
	FieldRevenue   = "revenue"
	FieldNetIncome = "netIncome"
	FieldSymbol    = "symbol"
)

// IncomeStatement is one annual income-statement entry as returned by FMP.
// Date, Revenue and NetIncome are typed; every other upstream field is kept
// verbatim in Extra so responses round-trip the full record.
//
// Revenue and NetIncome are nil when the upstream value is missing or not a
// number. Consumers that need them report the record as malformed.
type IncomeStatement struct {
	Date      string
	Revenue   *float64
	NetIncome *float64
	Extra     map[string]json.RawMessage
}

// Symbol returns the passthrough "symbol" field, or "" if absent.
func (s IncomeStatement) Symbol() string {
	raw, ok := s.Extra[FieldSymbol]
	if !ok {
		return ""
	}
	var sym string
	if err := json.Unmarshal(raw, &sym); err != nil {
		return ""
	}
	return sym
}

// Clone returns a deep copy of the record.
func (s IncomeStatement) Clone() IncomeStatement {
	out := IncomeStatement{Date: s.Date}
	if s.Revenue != nil {
		v := *s.Revenue
		out.Revenue = &v
	}
	if s.NetIncome != nil {
		v := *s.NetIncome
		out.NetIncome = &v
	}
	if s.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// UnmarshalJSON decodes an upstream object, lifting the typed fields out and
// keeping the rest. A value that cannot be typed stays in Extra untouched.
func (s *IncomeStatement) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("income statement: %w", err)
	}
	if fields == nil {
		return fmt.Errorf("income statement: expected object, got null")
	}

	*s = IncomeStatement{Extra: fields}

	if raw, ok := fields[FieldDate]; ok {
		var d string
		if err := json.Unmarshal(raw, &d); err == nil {
			s.Date = d
			delete(fields, FieldDate)
		}
	}
	s.Revenue = liftNumber(fields, FieldRevenue)
	s.NetIncome = liftNumber(fields, FieldNetIncome)
	return nil
}

// MarshalJSON writes the record back as a flat object.
func (s IncomeStatement) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+3)
	for k, v := range s.Extra {
		out[k] = v
	}
	if _, raw := s.Extra[FieldDate]; !raw {
		out[FieldDate] = s.Date
	}
	if s.Revenue != nil {
		out[FieldRevenue] = *s.Revenue
	}
	if s.NetIncome != nil {
		out[FieldNetIncome] = *s.NetIncome
	}
	return json.Marshal(out)
}

func liftNumber(fields map[string]json.RawMessage, key string) *float64 {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return nil
	}
	delete(fields, key)
	return v
}

// Float is a convenience for building records in code and tests.
func Float(v float64) *float64 { return &v }
