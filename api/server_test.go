package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/finview/internal/config"
	"github.com/seenimoa/finview/internal/income"
	"github.com/seenimoa/finview/internal/infra"
	"github.com/seenimoa/finview/internal/profile"
	"github.com/seenimoa/finview/internal/provider"
	"github.com/seenimoa/finview/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

type stubUpstream struct {
	profiles    func(ctx context.Context) ([]models.CompanyProfile, error)
	statements  func(ctx context.Context, symbol string) ([]models.IncomeStatement, error)
	profileHits int
	mu          sync.Mutex
}

func (s *stubUpstream) FetchProfiles(ctx context.Context) ([]models.CompanyProfile, error) {
	s.mu.Lock()
	s.profileHits++
	s.mu.Unlock()
	if s.profiles == nil {
		return nil, nil
	}
	return s.profiles(ctx)
}

func (s *stubUpstream) FetchIncomeStatement(ctx context.Context, symbol string) ([]models.IncomeStatement, error) {
	if s.statements == nil {
		return nil, provider.ErrNoData
	}
	return s.statements(ctx, symbol)
}

func testConfig() *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{
			BaseURL:   "https://financialmodelingprep.com/stable",
			APIKey:    "abcdef123456",
			Timeout:   15 * time.Second,
			RateLimit: 5,
		},
		API:     config.APIConfig{Host: "127.0.0.1", Port: 5000, CORSOrigins: []string{"*"}},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func testServer(t *testing.T, up *stubUpstream) *Server {
	t.Helper()
	if up == nil {
		up = &stubUpstream{}
	}
	return NewServer(testConfig(), up, zerolog.Nop())
}

func sampleStatements() []models.IncomeStatement {
	return []models.IncomeStatement{
		{Date: "2022-01-01", Revenue: models.Float(100), NetIncome: models.Float(10)},
		{Date: "2023-01-01", Revenue: models.Float(200), NetIncome: models.Float(5)},
	}
}

func serve(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

// decodeRecords decodes a success envelope whose data is a record list.
func decodeRecords(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var resp struct {
		Status string           `json:"status"`
		Data   []map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != StatusSuccess {
		t.Fatalf("status: got %q, want %q", resp.Status, StatusSuccess)
	}
	return resp.Data
}

func fetchIncome(t *testing.T, srv *Server, symbol string) *httptest.ResponseRecorder {
	t.Helper()
	return serve(t, srv, "GET", "/fetch-income?query="+symbol, "")
}

// ════════════════════════════════════════════════════════════════════
// writeJSON / writeError tests
// ════════════════════════════════════════════════════════════════════

func TestWriteJSON(t *testing.T) {
	srv := testServer(t, nil)
	rec := httptest.NewRecorder()
	srv.writeJSON(rec, http.StatusCreated, APIResponse{Status: StatusSuccess, Data: "hello"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusCreated)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	resp := decodeResponse(t, rec)
	if resp.Status != StatusSuccess || resp.Data != "hello" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestWriteError(t *testing.T) {
	srv := testServer(t, nil)
	rec := httptest.NewRecorder()
	srv.writeError(rec, http.StatusNotFound, "not found")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
	resp := decodeResponse(t, rec)
	if resp.Status != StatusError {
		t.Errorf("status: got %q", resp.Status)
	}
	if resp.Error != "not found" || resp.Message != "not found" {
		t.Errorf("error/message: got %q / %q", resp.Error, resp.Message)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"profile not found", profile.ErrNotFound, http.StatusNotFound},
		{"no data", fmt.Errorf("wrap: %w", provider.ErrNoData), http.StatusNotFound},
		{"upstream 404", &infra.ErrUpstream{Op: "x", Status: 404}, http.StatusNotFound},
		{"upstream 503", &infra.ErrUpstream{Op: "x", Status: 503}, http.StatusInternalServerError},
		{"transport", &infra.ErrUpstream{Op: "x", Err: errors.New("refused")}, http.StatusInternalServerError},
		{"missing param", &provider.ErrMissingParam{Param: "symbol"}, http.StatusBadRequest},
		{"malformed", &income.ErrMalformedRecord{Index: 0, Field: "date"}, http.StatusBadRequest},
		{"sort field", &income.ErrInvalidSortField{Field: "marketCap"}, http.StatusBadRequest},
		{"invalid input", &income.ErrInvalidInput{Param: "start_year"}, http.StatusBadRequest},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Health / config
// ════════════════════════════════════════════════════════════════════

func TestHandleHealth(t *testing.T) {
	srv := testServer(t, nil)
	rec := serve(t, srv, "GET", "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatal("data should be a map")
	}
	if _, ok := data["profiles_loaded"]; !ok {
		t.Error("missing profiles_loaded")
	}
}

func TestHandleGetConfig_RedactsKey(t *testing.T) {
	srv := testServer(t, nil)
	rec := serve(t, srv, "GET", "/config", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if strings.Contains(body, "abcdef123456") {
		t.Fatalf("config response leaks the API key: %s", body)
	}
	if !strings.Contains(body, `"base_url":"https://financialmodelingprep.com/stable"`) {
		t.Errorf("config response missing base_url: %s", body)
	}
}

func TestHandleGetConfigKeys(t *testing.T) {
	srv := testServer(t, nil)
	rec := serve(t, srv, "GET", "/config/keys", "")

	var resp struct {
		Data []config.KeyStatus `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("keys: got %d, want 1", len(resp.Data))
	}
	if !resp.Data[0].IsSet || resp.Data[0].Masked != "abc...456" {
		t.Errorf("unexpected key status: %+v", resp.Data[0])
	}
}

// ════════════════════════════════════════════════════════════════════
// /fetch-data
// ════════════════════════════════════════════════════════════════════

func profileUpstream() *stubUpstream {
	return &stubUpstream{
		profiles: func(context.Context) ([]models.CompanyProfile, error) {
			return []models.CompanyProfile{
				{Symbol: "AAPL", Fields: map[string]string{"symbol": "AAPL", "companyName": "Apple Inc."}},
				{Symbol: "MSFT", Fields: map[string]string{"symbol": "MSFT", "companyName": "Microsoft"}},
			}, nil
		},
	}
}

func TestHandleFetchData_Found(t *testing.T) {
	up := profileUpstream()
	srv := testServer(t, up)
	rec := serve(t, srv, "GET", "/fetch-data?query=%20MSFT%20", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	var got map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["companyName"] != "Microsoft" || got["symbol"] != "MSFT" {
		t.Errorf("unexpected profile: %v", got)
	}

	// The list is loaded once.
	serve(t, srv, "GET", "/fetch-data?query=AAPL", "")
	if up.profileHits != 1 {
		t.Errorf("profile fetches: got %d, want 1", up.profileHits)
	}
}

func TestHandleFetchData_NotFound(t *testing.T) {
	srv := testServer(t, profileUpstream())
	rec := serve(t, srv, "GET", "/fetch-data?query=aapl", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
	resp := decodeResponse(t, rec)
	if resp.Error != "Company not found" {
		t.Errorf("error: got %q", resp.Error)
	}
}

func TestHandleFetchData_UpstreamDown(t *testing.T) {
	up := &stubUpstream{
		profiles: func(context.Context) ([]models.CompanyProfile, error) {
			return nil, &infra.ErrUpstream{Op: "fetch profiles", Status: 502}
		},
	}
	srv := testServer(t, up)

	rec := serve(t, srv, "GET", "/fetch-data?query=AAPL", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}

	// A failed load is retried on the next request.
	serve(t, srv, "GET", "/fetch-data?query=AAPL", "")
	if up.profileHits != 2 {
		t.Errorf("profile fetches: got %d, want 2", up.profileHits)
	}
}

func TestHandleFetchData_MissingQuery(t *testing.T) {
	srv := testServer(t, nil)
	rec := serve(t, srv, "GET", "/fetch-data", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// ════════════════════════════════════════════════════════════════════
// /fetch-income
// ════════════════════════════════════════════════════════════════════

func TestHandleFetchIncome_StoresResult(t *testing.T) {
	up := &stubUpstream{
		statements: func(_ context.Context, symbol string) ([]models.IncomeStatement, error) {
			return sampleStatements(), nil
		},
	}
	srv := testServer(t, up)
	rec := fetchIncome(t, srv, "AAPL")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	var got []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0]["date"] != "2022-01-01" {
		t.Errorf("unexpected body: %v", got)
	}

	snap := srv.Store().Current()
	if snap.Symbol != "AAPL" || len(snap.Records) != 2 {
		t.Errorf("store: got %s with %d records", snap.Symbol, len(snap.Records))
	}
	if id := rec.Header().Get(HeaderDatasetID); id == "" || id != snap.DatasetID {
		t.Errorf("%s: got %q, want %q", HeaderDatasetID, id, snap.DatasetID)
	}
}

func TestHandleFetchIncome_FailureKeepsStore(t *testing.T) {
	fail := false
	up := &stubUpstream{
		statements: func(_ context.Context, symbol string) ([]models.IncomeStatement, error) {
			if fail {
				return nil, &infra.ErrUpstream{Op: "fetch income statement", Status: 404}
			}
			return sampleStatements(), nil
		},
	}
	srv := testServer(t, up)
	fetchIncome(t, srv, "AAPL")
	before := srv.Store().Current()

	fail = true
	rec := fetchIncome(t, srv, "NOPE")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
	if decodeResponse(t, rec).Error == "" {
		t.Error("expected non-empty error")
	}

	after := srv.Store().Current()
	if after.DatasetID != before.DatasetID || after.Symbol != "AAPL" {
		t.Errorf("store changed after failed fetch: %+v", after)
	}
}

func TestHandleFetchIncome_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty list", fmt.Errorf("fmp income statement X: %w", provider.ErrNoData), http.StatusNotFound},
		{"upstream error", &infra.ErrUpstream{Op: "x", Status: 500}, http.StatusInternalServerError},
		{"transport", &infra.ErrUpstream{Op: "x", Err: context.DeadlineExceeded}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &stubUpstream{
				statements: func(context.Context, string) ([]models.IncomeStatement, error) { return nil, tt.err },
			}
			srv := testServer(t, up)
			rec := fetchIncome(t, srv, "X")
			if rec.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.want)
			}
			if !srv.Store().Current().Empty() {
				t.Error("store should stay empty")
			}
		})
	}
}

func TestHandleFetchIncome_SlowFetchDoesNotOverwrite(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	up := &stubUpstream{
		statements: func(_ context.Context, symbol string) ([]models.IncomeStatement, error) {
			if symbol == "SLOW" {
				close(started)
				<-release
			}
			return []models.IncomeStatement{{Date: "2020-01-01", Revenue: models.Float(1), NetIncome: models.Float(1)}}, nil
		},
	}
	srv := testServer(t, up)

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		req := httptest.NewRequest("GET", "/fetch-income?query=SLOW", nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		done <- rec
	}()
	<-started

	fetchIncome(t, srv, "FAST")
	close(release)
	slow := <-done

	if slow.Code != http.StatusOK {
		t.Fatalf("slow status: got %d", slow.Code)
	}
	if slow.Header().Get(HeaderDatasetID) != "" {
		t.Error("superseded fetch should not report a dataset ID")
	}
	if got := srv.Store().Current().Symbol; got != "FAST" {
		t.Errorf("resident symbol: got %q, want FAST", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// /filter-sort-income
// ════════════════════════════════════════════════════════════════════

func loadedServer(t *testing.T) *Server {
	t.Helper()
	up := &stubUpstream{
		statements: func(context.Context, string) ([]models.IncomeStatement, error) {
			return sampleStatements(), nil
		},
	}
	srv := testServer(t, up)
	if rec := fetchIncome(t, srv, "AAPL"); rec.Code != http.StatusOK {
		t.Fatalf("fetch: got %d", rec.Code)
	}
	return srv
}

func TestFilterSort_GETYearRange(t *testing.T) {
	srv := loadedServer(t)
	rec := serve(t, srv, "GET", "/filter-sort-income?start_year=2023&end_year=2023", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	data := decodeRecords(t, rec)
	if len(data) != 1 || data[0]["date"] != "2023-01-01" {
		t.Errorf("unexpected data: %v", data)
	}
	if data[0]["revenue"] != float64(200) || data[0]["netIncome"] != float64(5) {
		t.Errorf("unexpected values: %v", data[0])
	}
}

func TestFilterSort_GETSortNetIncome(t *testing.T) {
	srv := loadedServer(t)
	rec := serve(t, srv, "GET", "/filter-sort-income?sort_field=netIncome&ascending=true", "")

	data := decodeRecords(t, rec)
	if len(data) != 2 || data[0]["netIncome"] != float64(5) || data[1]["netIncome"] != float64(10) {
		t.Errorf("unexpected order: %v", data)
	}
}

func TestFilterSort_GETHalfRangeIgnored(t *testing.T) {
	srv := loadedServer(t)
	rec := serve(t, srv, "GET", "/filter-sort-income?min_revenue=150", "")

	if data := decodeRecords(t, rec); len(data) != 2 {
		t.Errorf("half-specified range should not filter: %v", data)
	}
}

func TestFilterSort_GETInvalid(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"bad sort field", "sort_field=marketCap", "marketCap"},
		{"non-integer year", "start_year=20x3&end_year=2023", "start_year"},
		{"non-numeric revenue", "min_revenue=abc&max_revenue=10", "min_revenue"},
		{"bad ascending", "sort_field=date&ascending=maybe", "ascending"},
		{"inverted years", "start_year=2024&end_year=2020", "start_year"},
		{"NaN revenue bounds", "min_revenue=NaN&max_revenue=NaN", "min_revenue"},
		{"infinite income bound", "min_income=0&max_income=Inf", "max_income"},
		{"negative infinity", "min_revenue=-Inf&max_revenue=10", "min_revenue"},
	}
	srv := loadedServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, srv, "GET", "/filter-sort-income?"+tt.query, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
			}
			resp := decodeResponse(t, rec)
			if resp.Status != StatusError {
				t.Errorf("status field: got %q", resp.Status)
			}
			if !strings.Contains(resp.Message, tt.want) {
				t.Errorf("message should mention %q: %q", tt.want, resp.Message)
			}
		})
	}
}

func TestFilterSort_POST(t *testing.T) {
	srv := loadedServer(t)
	body := `{"min_revenue":0,"max_revenue":1000,"sort_field":"date","ascending":false}`
	rec := serve(t, srv, "POST", "/filter-sort-income", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	data := decodeRecords(t, rec)
	if len(data) != 2 || data[0]["date"] != "2023-01-01" {
		t.Errorf("unexpected order: %v", data)
	}
}

func TestFilterSort_POSTAscendingDefault(t *testing.T) {
	srv := loadedServer(t)
	rec := serve(t, srv, "POST", "/filter-sort-income", `{"sort_field":"revenue"}`)

	data := decodeRecords(t, rec)
	if len(data) != 2 || data[0]["revenue"] != float64(100) {
		t.Errorf("expected ascending revenue: %v", data)
	}
}

func TestFilterSort_POSTInvalidJSON(t *testing.T) {
	srv := loadedServer(t)
	rec := serve(t, srv, "POST", "/filter-sort-income", "{invalid")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestFilterSort_DatasetMismatch(t *testing.T) {
	srv := loadedServer(t)
	rec := serve(t, srv, "POST", "/filter-sort-income", `{"dataset_id":"stale"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusConflict)
	}

	id := srv.Store().Current().DatasetID
	rec = serve(t, srv, "GET", "/filter-sort-income?dataset_id="+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestFilterSort_EmptyStore(t *testing.T) {
	srv := testServer(t, nil)
	rec := serve(t, srv, "GET", "/filter-sort-income?sort_field=date", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	if data := decodeRecords(t, rec); len(data) != 0 {
		t.Errorf("expected no records, got %v", data)
	}
}

func TestFilterSort_MalformedRecord(t *testing.T) {
	up := &stubUpstream{
		statements: func(context.Context, string) ([]models.IncomeStatement, error) {
			return []models.IncomeStatement{{Date: "20", Revenue: models.Float(1), NetIncome: models.Float(1)}}, nil
		},
	}
	srv := testServer(t, up)
	fetchIncome(t, srv, "BAD")

	rec := serve(t, srv, "GET", "/filter-sort-income?sort_field=date", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if msg := decodeResponse(t, rec).Message; !strings.Contains(msg, "malformed") {
		t.Errorf("message: got %q", msg)
	}
}

// ════════════════════════════════════════════════════════════════════
// /income/current
// ════════════════════════════════════════════════════════════════════

func TestHandleCurrentIncome(t *testing.T) {
	srv := testServer(t, nil)
	if rec := serve(t, srv, "GET", "/income/current", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("empty store: got %d, want %d", rec.Code, http.StatusNotFound)
	}

	srv = loadedServer(t)
	rec := serve(t, srv, "GET", "/income/current", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		Data DatasetInfo `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Symbol != "AAPL" || resp.Data.Records != 2 || resp.Data.DatasetID == "" {
		t.Errorf("unexpected info: %+v", resp.Data)
	}
}
