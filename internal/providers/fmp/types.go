package fmp

// fmpErrorResponse is the body FMP returns in place of data when a request
// is rejected (invalid key, plan limits).
type fmpErrorResponse struct {
	ErrorMessage string `json:"Error Message"`
	Message      string `json:"message"`
}

// profileSymbolColumn is the CSV header of the ticker column in the bulk
// profile export.
const profileSymbolColumn = "symbol"
