package models

import "encoding/json"

// CompanyProfile is one row of the FMP bulk profile export. Symbol is the
// whitespace-trimmed value of the "symbol" column; Fields holds every column
// of the row as read, keyed by the CSV header.
type CompanyProfile struct {
	Symbol string
	Fields map[string]string
}

// Get returns a column value, or "" when the column is absent.
func (p CompanyProfile) Get(column string) string {
	return p.Fields[column]
}

// MarshalJSON writes the profile as the flat column map.
func (p CompanyProfile) MarshalJSON() ([]byte, error) {
	if p.Fields == nil {
		return json.Marshal(map[string]string{FieldSymbol: p.Symbol})
	}
	return json.Marshal(p.Fields)
}
