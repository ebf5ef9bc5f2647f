package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/pharmadist/internal/config"
	"github.com/JonMunkholm/pharmadist/internal/core"
	_ "github.com/JonMunkholm/pharmadist/internal/core/tables"
	"github.com/JonMunkholm/pharmadist/internal/metrics"
	"github.com/JonMunkholm/pharmadist/internal/store/pebblestore"
)

const stockCSV = "Product,Company,Batch,MRP,Rate,GST,Stock,Expiry\n" +
	"Paracetamol 500,Cipla,B1,25.50,100,12,100,12/2030\n" +
	"Pantoprazole 40,Sun,P7,120,80,12,5,01/2020\n"

type testEnv struct {
	srv     *Server
	service *core.Service
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Rate.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	store, err := pebblestore.Open(t.TempDir(), core.All())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := metrics.NewRegistry()
	service := core.NewService(store, cfg,
		core.WithRecorder(reg),
		core.WithClock(func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }),
	)
	srv := NewServer(service, cfg, WithMetrics(reg.Handler()))
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, service: service}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(data)
	}
	return e.do(t, method, path, body, http.Header{"Content-Type": {"application/json"}})
}

func (e *testEnv) upload(t *testing.T, kind, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(fw, content)
	}
	mw.Close()
	return e.do(t, http.MethodPost, "/api/import/"+kind, &buf, http.Header{"Content-Type": {mw.FormDataContentType()}})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestImportAndSearch(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.upload(t, "product", "stock.csv", stockCSV)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d, body %s", rec.Code, rec.Body)
	}
	result := decode[core.ImportResult](t, rec)
	if result.Inserted != 2 || result.Kind != core.KindProduct || result.ImportID == "" {
		t.Errorf("import result = %+v", result)
	}

	rec = env.do(t, http.MethodGet, "/api/search/products?q=para+cip", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d, body %s", rec.Code, rec.Body)
	}
	found := decode[struct {
		Records []map[string]any `json:"records"`
	}](t, rec)
	if len(found.Records) != 1 || found.Records[0]["name"] != "Paracetamol 500" {
		t.Fatalf("search records = %v", found.Records)
	}
	if found.Records[0]["mrp"] != 25.5 || found.Records[0]["manufacturer"] != "Cipla" {
		t.Errorf("normalized record = %v", found.Records[0])
	}

	rec = env.do(t, http.MethodGet, "/api/products?desc=true", nil, nil)
	list := decode[[]map[string]any](t, rec)
	if len(list) != 2 || list[0]["name"] != "Paracetamol 500" {
		t.Errorf("list desc = %v", list)
	}
}

func TestImportErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name     string
		kind     string
		file     string
		content  string
		wantCode string
		status   int
	}{
		{"bad kind", "vendor", "a.csv", stockCSV, "VAL003", http.StatusBadRequest},
		{"no file", "product", "", "", "FILE004", http.StatusBadRequest},
		{"unsupported type", "product", "a.pdf", "x", "FILE002", http.StatusBadRequest},
		{"empty file", "party", "a.csv", "\n", "FILE005", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.upload(t, tt.kind, tt.file, tt.content)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if got := decode[ErrorResponse](t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestSearchErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"unknown table", "/api/search/vendors?q=a", http.StatusNotFound, "TBL001"},
		{"unindexed field", "/api/search/products?q=a&fields=mrp", http.StatusBadRequest, "STORE005"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, nil, nil)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := decode[ErrorResponse](t, rec).Code; got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestBillingFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	if rec := env.upload(t, "products", "stock.csv", stockCSV); rec.Code != http.StatusOK {
		t.Fatalf("import status = %d", rec.Code)
	}

	rec := env.doJSON(t, http.MethodPost, "/api/parties", map[string]any{
		"name":      "Apollo Pharmacy",
		"stateCode": "24",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create party status = %d, body %s", rec.Code, rec.Body)
	}
	party := decode[core.Party](t, rec)
	if party.ID == 0 || party.Type != core.PartyWholesale {
		t.Errorf("party = %+v", party)
	}

	rec = env.doJSON(t, http.MethodPost, "/api/invoices", core.InvoiceDraft{
		PartyID: party.ID,
		Items: []core.InvoiceItem{
			{ProductName: "Paracetamol 500", Batch: "B1", Qty: 10, FreeQty: 2, Rate: 100, GSTRate: 12},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create invoice status = %d, body %s", rec.Code, rec.Body)
	}
	inv := decode[core.Invoice](t, rec)
	if inv.GrandTotal != 1120 || inv.Items[0].CGST != 60 || inv.Items[0].IGST != 0 {
		t.Errorf("invoice totals = %+v", inv)
	}

	rec = env.do(t, http.MethodGet, "/api/invoices/"+strconv.FormatInt(inv.ID, 10), nil, nil)
	if rec.Code != http.StatusOK || decode[core.Invoice](t, rec).InvoiceNo != inv.InvoiceNo {
		t.Errorf("get invoice = %d %s", rec.Code, rec.Body)
	}

	rec = env.do(t, http.MethodGet, "/api/search/products?q=paracetamol", nil, nil)
	found := decode[struct {
		Records []map[string]any `json:"records"`
	}](t, rec)
	if len(found.Records) != 1 || found.Records[0]["stock"] != 88.0 {
		t.Errorf("stock after invoice = %v", found.Records)
	}

	rec = env.do(t, http.MethodGet, "/api/dashboard", nil, nil)
	stats := decode[core.DashboardStats](t, rec)
	want := core.DashboardStats{TotalSales: 1120, InvoiceCount: 1, LowStock: 1, ExpiringSoon: 0, ProductCount: 2, PartyCount: 1}
	if stats != want {
		t.Errorf("dashboard = %+v, want %+v", stats, want)
	}
}

func TestCreateInvoiceErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed", "{", "VAL004"},
		{"no party", `{"items":[{"productName":"x","qty":1}]}`, "INV002"},
		{"missing party", `{"partyId":99,"items":[{"productName":"x","qty":1}]}`, "STORE001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/invoices", strings.NewReader(tt.body), nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if got := decode[ErrorResponse](t, rec).Code; got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestRecordsAndReset(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.doJSON(t, http.MethodPost, "/api/parties", map[string]any{"name": "City Hospital", "pricingTier": "HOSPITAL"})
	party := decode[core.Party](t, rec)
	path := "/api/parties/" + strconv.FormatInt(party.ID, 10)

	if rec := env.do(t, http.MethodGet, path, nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, path, nil, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, path, nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/parties/abc", nil, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}

	env.upload(t, "party", "parties.csv", "Party,GSTIN\nMedPlus,24ABCDE\n")
	if rec := env.do(t, http.MethodPost, "/api/reset", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/parties", nil, nil)
	if list := decode[[]map[string]any](t, rec); len(list) != 0 {
		t.Errorf("parties after reset = %v", list)
	}
}

func TestCompanySettings(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/settings/company", nil, nil)
	if got := decode[core.CompanyProfile](t, rec); got != core.DefaultCompany {
		t.Errorf("default company = %+v", got)
	}

	profile := core.DefaultCompany
	profile.Name = "SHREE MEDICALS"
	profile.StateCode = "27"
	if rec := env.doJSON(t, http.MethodPut, "/api/settings/company", profile); rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body %s", rec.Code, rec.Body)
	}
	rec = env.do(t, http.MethodGet, "/api/settings/company", nil, nil)
	if got := decode[core.CompanyProfile](t, rec); got != profile {
		t.Errorf("company = %+v, want %+v", got, profile)
	}

	rec = env.doJSON(t, http.MethodPut, "/api/settings/company", core.CompanyProfile{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty profile status = %d, want 400", rec.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Security.RequireAPIKey = true
		c.Security.APIKeys = []string{"k1"}
	})

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusForbidden},
		{"valid", "k1", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.key != "" {
				h.Set("X-API-Key", tt.key)
			}
			if rec := env.do(t, http.MethodGet, "/api/tables", nil, h); rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}

	if rec := env.do(t, http.MethodGet, "/healthz", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("healthz behind auth: %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Rate.Enabled = true
		c.Rate.RequestsPerMinute = 2
	})

	for i := 0; i < 2; i++ {
		if rec := env.do(t, http.MethodGet, "/healthz", nil, nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := env.do(t, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if decode[ErrorResponse](t, rec).Code != "RATE001" {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/api/search/products?q=x", nil, nil)

	rec := env.do(t, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `pharmadist_searches_total{table="products"} 1`) {
		t.Errorf("search not counted:\n%s", rec.Body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrNotFound, http.StatusNotFound},
		{core.ErrUnknownTable, http.StatusNotFound},
		{core.ErrTooManyImports, http.StatusServiceUnavailable},
		{core.ErrNoItems, http.StatusBadRequest},
		{errBadBody, http.StatusBadRequest},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
