package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"banco/internal/dashboard"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return NewWithService(svc, "sheet-id", "KPIs", nil)
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	if err == nil || err.Error() != "missing spreadsheet ID" {
		t.Fatalf("New() error = %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "id"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("New() error = %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "id", ServiceAccountFile: "/does/not/exist.json"}, nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("New() error = %v", err)
	}
}

func TestAppendMetrics(t *testing.T) {
	var gotPath, gotQuery string
	var body struct {
		Values [][]any `json:"values"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"updates":{"updatedRange":"KPIs!A7:F7","updatedRows":1}}`)
	})

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ref, err := c.AppendMetrics(context.Background(), at, dashboard.Metrics{
		KPIs:     dashboard.KPIs{TotalClientes: 3, TotalCustodia: decimal.NewFromInt(400), TotalTransacoes: 4},
		CashFlow: dashboard.CashFlow{Entradas: decimal.NewFromInt(1450), Saidas: decimal.NewFromInt(150)},
	})
	if err != nil {
		t.Fatalf("AppendMetrics() error = %v", err)
	}
	if ref != "KPIs!A7:F7" {
		t.Errorf("ref = %q", ref)
	}
	if !strings.Contains(gotPath, "/spreadsheets/sheet-id/values/") || !strings.HasSuffix(gotPath, ":append") {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.Contains(gotQuery, "valueInputOption=USER_ENTERED") {
		t.Errorf("query = %q", gotQuery)
	}
	if len(body.Values) != 1 || len(body.Values[0]) != 6 {
		t.Fatalf("values = %v", body.Values)
	}
	if body.Values[0][0] != "2024-05-01T12:00:00Z" || body.Values[0][4] != 1450.0 {
		t.Errorf("row = %v", body.Values[0])
	}
}

func TestReadMetrics_SkipsUnparseableRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"range":"KPIs!A1:F3","values":[
			["timestamp","totalClientes","totalCustodia","totalTransacoes","entradas","saidas"],
			["2024-05-01T12:00:00Z","3","400","4","1450","150"],
			["broken"]
		]}`)
	})

	rows, err := c.ReadMetrics(context.Background())
	if err != nil {
		t.Fatalf("ReadMetrics() error = %v", err)
	}
	if len(rows) != 1 || rows[0].TotalClientes != 3 {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestAppendMetrics_Uninitialized(t *testing.T) {
	c := &Client{}
	if _, err := c.AppendMetrics(context.Background(), time.Now(), dashboard.Metrics{}); err == nil {
		t.Fatal("expected error with nil service")
	}
}
