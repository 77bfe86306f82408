package sheets

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"banco/internal/dashboard"
)

func TestRowRoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := dashboard.Metrics{
		KPIs: dashboard.KPIs{TotalClientes: 3, TotalCustodia: decimal.RequireFromString("400.5"), TotalTransacoes: 4},
		CashFlow: dashboard.CashFlow{
			Entradas: decimal.NewFromInt(1450),
			Saidas:   decimal.NewFromInt(150),
		},
	}

	row := RowOf(at, m)
	got, err := ParseRow(row.Values())
	if err != nil {
		t.Fatalf("ParseRow() error = %v", err)
	}
	if !got.At.Equal(at) || got.TotalClientes != 3 || got.TotalTransacoes != 4 {
		t.Errorf("ParseRow() = %+v", got)
	}
	if !got.TotalCustodia.Equal(decimal.RequireFromString("400.5")) {
		t.Errorf("TotalCustodia = %s", got.TotalCustodia)
	}
	if !got.Saidas.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Saidas = %s", got.Saidas)
	}
}

func TestParseRow(t *testing.T) {
	tests := []struct {
		name    string
		cells   []any
		wantErr bool
	}{
		{"strings with decimal comma", []any{"2024-05-01T12:00:00Z", "3", "400,50", "4", "1450", "150"}, false},
		{"too short", []any{"2024-05-01T12:00:00Z", "3"}, true},
		{"header row", Header, true},
		{"bad number", []any{"2024-05-01T12:00:00Z", "3", "abc", "4", "1", "1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRow(tt.cells)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseRow() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
