package core

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Deposit          TransactionType = "depositar"
	Withdrawal       TransactionType = "sacar"
	TransferSent     TransactionType = "transferencia_enviada"
	TransferReceived TransactionType = "transferencia_recebida"
)

type (
	TransactionType string

	// Timestamp is a transaction date as reported by the backend. The backend
	// serializes naive datetimes, so more than one layout is accepted.
	Timestamp struct {
		time.Time
	}

	Transaction struct {
		Tipo  TransactionType `json:"tipo"`
		Valor decimal.Decimal `json:"valor"`
		Data  Timestamp       `json:"data,omitempty"`
	}

	// Account balances and limits are authoritative server values. They are
	// only ever reflected, never recomputed from transactions.
	Account struct {
		Numero     int             `json:"numero"`
		Saldo      decimal.Decimal `json:"saldo"`
		Limite     decimal.Decimal `json:"limite"`
		Transacoes []Transaction   `json:"transacoes"`
	}

	User struct {
		ID     int       `json:"id"`
		Nome   string    `json:"nome"`
		CPF    string    `json:"cpf"`
		Contas []Account `json:"contas"`
	}

	// Statement is the per-account history shown by the statement view.
	Statement struct {
		Numero     int             `json:"numero"`
		Saldo      decimal.Decimal `json:"saldo"`
		Transacoes []Transaction   `json:"transacoes"`
	}
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// IsInflow reports whether the transaction adds money to its account.
func (t TransactionType) IsInflow() bool {
	return t == Deposit || t == TransferReceived
}

// IsOutflow reports whether the transaction removes money from its account.
func (t TransactionType) IsOutflow() bool {
	return t == Withdrawal || t == TransferSent
}

func (t TransactionType) String() string {
	return string(t)
}

// IsOperation reports whether t may be submitted as a single-account operation.
func (t TransactionType) IsOperation() bool {
	return t == Deposit || t == Withdrawal
}

// ParseTimestamp accepts RFC 3339 and the naive layouts the backend emits.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return Timestamp{Time: t}, nil
		}
		lastErr = err
	}
	return Timestamp{}, lastErr
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*ts = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*ts = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Time.Format(time.RFC3339))
}

// HasAccount reports whether the user owns at least one account.
func (u User) HasAccount() bool {
	return len(u.Contas) > 0
}

// Recent returns the statement transactions most recent first. The backend
// returns them in insertion order.
func (s Statement) Recent() []Transaction {
	out := make([]Transaction, len(s.Transacoes))
	for i, tx := range s.Transacoes {
		out[len(s.Transacoes)-1-i] = tx
	}
	return out
}
