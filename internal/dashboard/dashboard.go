// Package dashboard derives the operator dashboard figures from the user graph.
//
// Everything here is a pure function of its input: no I/O, no caching. The
// figures are recomputed from scratch on every snapshot the gateway delivers.
package dashboard

import (
	"github.com/shopspring/decimal"

	"banco/internal/core"
)

const (
	ChartCategory     = "Total Acumulado"
	InflowSeriesName  = "Entradas (R$)"
	OutflowSeriesName = "Saídas (R$)"
)

type (
	KPIs struct {
		TotalClientes   int             `json:"totalClientes"`
		TotalCustodia   decimal.Decimal `json:"totalCustodia"`
		TotalTransacoes int             `json:"totalTransacoes"`
	}

	CashFlow struct {
		Entradas decimal.Decimal `json:"entradas"`
		Saidas   decimal.Decimal `json:"saidas"`
	}

	Series struct {
		Name string            `json:"name"`
		Data []decimal.Decimal `json:"data"`
	}

	// Chart is the bar chart model: one category, one series per direction.
	Chart struct {
		Categories []string `json:"categories"`
		Series     []Series `json:"series"`
	}

	Metrics struct {
		KPIs     KPIs     `json:"kpis"`
		CashFlow CashFlow `json:"cashFlow"`
		Chart    Chart    `json:"chart"`
	}
)

// PrimaryAccountOf returns the account that represents u in the KPIs. The
// policy is the first account the backend lists; users without accounts have
// none.
func PrimaryAccountOf(u core.User) (core.Account, bool) {
	if len(u.Contas) == 0 {
		return core.Account{}, false
	}
	return u.Contas[0], true
}

// DefaultOperationTarget is the account preselected by the generic
// "new operation" action: the primary account of the first user.
func DefaultOperationTarget(users []core.User) (core.Account, bool) {
	if len(users) == 0 {
		return core.Account{}, false
	}
	return PrimaryAccountOf(users[0])
}

// ComputeKPIs counts users, and sums balance and transaction count over each
// user's primary account only.
func ComputeKPIs(users []core.User) KPIs {
	k := KPIs{TotalClientes: len(users), TotalCustodia: decimal.Zero}
	for _, u := range users {
		acc, ok := PrimaryAccountOf(u)
		if !ok {
			continue
		}
		k.TotalCustodia = k.TotalCustodia.Add(acc.Saldo)
		k.TotalTransacoes += len(acc.Transacoes)
	}
	return k
}

// ComputeCashFlow sums inflow and outflow over every account of every user.
// Unknown transaction types count in neither direction.
func ComputeCashFlow(users []core.User) CashFlow {
	cf := CashFlow{Entradas: decimal.Zero, Saidas: decimal.Zero}
	for _, u := range users {
		for _, acc := range u.Contas {
			for _, tx := range acc.Transacoes {
				switch {
				case tx.Tipo.IsInflow():
					cf.Entradas = cf.Entradas.Add(tx.Valor)
				case tx.Tipo.IsOutflow():
					cf.Saidas = cf.Saidas.Add(tx.Valor)
				}
			}
		}
	}
	return cf
}

// ChartOf renders cash flow as the two-series bar chart.
func ChartOf(cf CashFlow) Chart {
	return Chart{
		Categories: []string{ChartCategory},
		Series: []Series{
			{Name: InflowSeriesName, Data: []decimal.Decimal{cf.Entradas}},
			{Name: OutflowSeriesName, Data: []decimal.Decimal{cf.Saidas}},
		},
	}
}

// Derive computes every dashboard figure. A nil or empty user list yields
// all zeros.
func Derive(users []core.User) Metrics {
	cf := ComputeCashFlow(users)
	return Metrics{
		KPIs:     ComputeKPIs(users),
		CashFlow: cf,
		Chart:    ChartOf(cf),
	}
}
