package sheets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"banco/internal/dashboard"
)

var ErrNotConfigured = errors.New("KPI export is not configured")

// Header is the first row of a KPI sheet.
var Header = []any{"timestamp", "totalClientes", "totalCustodia", "totalTransacoes", "entradas", "saidas"}

// Ports for outbound adapters.
type (
	MetricsExporter interface {
		AppendMetrics(ctx context.Context, at time.Time, m dashboard.Metrics) (rowRef string, err error)
	}

	MetricsReader interface {
		ReadMetrics(ctx context.Context) ([]Row, error)
	}
)

// Row is one exported KPI snapshot.
type Row struct {
	At              time.Time       `json:"at"`
	TotalClientes   int             `json:"totalClientes"`
	TotalCustodia   decimal.Decimal `json:"totalCustodia"`
	TotalTransacoes int             `json:"totalTransacoes"`
	Entradas        decimal.Decimal `json:"entradas"`
	Saidas          decimal.Decimal `json:"saidas"`
}

func RowOf(at time.Time, m dashboard.Metrics) Row {
	return Row{
		At:              at.UTC(),
		TotalClientes:   m.KPIs.TotalClientes,
		TotalCustodia:   m.KPIs.TotalCustodia,
		TotalTransacoes: m.KPIs.TotalTransacoes,
		Entradas:        m.CashFlow.Entradas,
		Saidas:          m.CashFlow.Saidas,
	}
}

// Values renders the row in sheet column order.
func (r Row) Values() []any {
	return []any{
		r.At.Format(time.RFC3339),
		r.TotalClientes,
		r.TotalCustodia.InexactFloat64(),
		r.TotalTransacoes,
		r.Entradas.InexactFloat64(),
		r.Saidas.InexactFloat64(),
	}
}

// ParseRow reads a row as returned by the Sheets API, where cells may come
// back as strings or numbers.
func ParseRow(cells []any) (Row, error) {
	if len(cells) < len(Header) {
		return Row{}, fmt.Errorf("row has %d cells, want %d", len(cells), len(Header))
	}
	s := make([]string, len(cells))
	for i, c := range cells {
		s[i] = strings.TrimSpace(fmt.Sprint(c))
	}

	var (
		r   Row
		err error
	)
	if r.At, err = time.Parse(time.RFC3339, s[0]); err != nil {
		return Row{}, fmt.Errorf("timestamp %q: %w", s[0], err)
	}
	if r.TotalClientes, err = strconv.Atoi(s[1]); err != nil {
		return Row{}, fmt.Errorf("totalClientes %q: %w", s[1], err)
	}
	if r.TotalCustodia, err = parseNumber(s[2]); err != nil {
		return Row{}, fmt.Errorf("totalCustodia %q: %w", s[2], err)
	}
	if r.TotalTransacoes, err = strconv.Atoi(s[3]); err != nil {
		return Row{}, fmt.Errorf("totalTransacoes %q: %w", s[3], err)
	}
	if r.Entradas, err = parseNumber(s[4]); err != nil {
		return Row{}, fmt.Errorf("entradas %q: %w", s[4], err)
	}
	if r.Saidas, err = parseNumber(s[5]); err != nil {
		return Row{}, fmt.Errorf("saidas %q: %w", s[5], err)
	}
	return r, nil
}

// Sheets may render numbers with a decimal comma depending on locale.
func parseNumber(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
}
