package core

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var cpfPattern = regexp.MustCompile(`^[0-9]{11}$`)

const (
	MinNameLength     = 3
	MinPasswordLength = 4
)

var minOperationAmount = decimal.NewFromInt(1)

type (
	Credentials struct {
		CPF   string `json:"cpf"`
		Senha string `json:"senha"`
	}

	NewUser struct {
		Nome           string `json:"nome"`
		CPF            string `json:"cpf"`
		DataNascimento string `json:"dataNascimento"`
		Endereco       string `json:"endereco"`
		Senha          string `json:"senha"`
	}

	AccountRequest struct {
		CPF string `json:"cpf"`
	}

	Operation struct {
		Numero int                 `json:"numeroConta"`
		Tipo   TransactionType     `json:"tipo"`
		Valor  decimal.NullDecimal `json:"valor"`
	}

	Transfer struct {
		Origem  int                 `json:"contaOrigem"`
		Destino int                 `json:"contaDestino"`
		Valor   decimal.NullDecimal `json:"valor"`
	}

	LimitChange struct {
		Numero int                 `json:"numeroConta"`
		Limite decimal.NullDecimal `json:"novoLimite"`
	}
)

func (c Credentials) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(c.CPF) == "" {
		v.Add("cpf", "required")
	}
	if c.Senha == "" {
		v.Add("senha", "required")
	}
	return v.OrNil()
}

func (u NewUser) Validate() error {
	v := &ValidationError{}

	nome := strings.TrimSpace(u.Nome)
	switch {
	case nome == "":
		v.Add("nome", "required")
	case utf8.RuneCountInString(nome) < MinNameLength:
		v.Add("nome", "must have at least 3 characters")
	}

	validateCPF(v, u.CPF)

	if strings.TrimSpace(u.DataNascimento) == "" {
		v.Add("dataNascimento", "required")
	}
	if strings.TrimSpace(u.Endereco) == "" {
		v.Add("endereco", "required")
	}

	switch {
	case u.Senha == "":
		v.Add("senha", "required")
	case utf8.RuneCountInString(u.Senha) < MinPasswordLength:
		v.Add("senha", "must have at least 4 characters")
	}

	return v.OrNil()
}

func (a AccountRequest) Validate() error {
	v := &ValidationError{}
	validateCPF(v, a.CPF)
	return v.OrNil()
}

func (o Operation) Validate() error {
	v := &ValidationError{}
	if o.Numero <= 0 {
		v.Add("numeroConta", "required")
	}
	if !o.Tipo.IsOperation() {
		v.Add("tipo", "must be depositar or sacar")
	}
	validateAmount(v, "valor", o.Valor)
	return v.OrNil()
}

func (t Transfer) Validate() error {
	v := &ValidationError{}
	if t.Origem <= 0 {
		v.Add("contaOrigem", "required")
	}
	switch {
	case t.Destino <= 0:
		v.Add("contaDestino", "required")
	case t.Destino == t.Origem:
		v.Add("contaDestino", "must differ from the source account")
	}
	validateAmount(v, "valor", t.Valor)
	return v.OrNil()
}

func (l LimitChange) Validate() error {
	v := &ValidationError{}
	if l.Numero <= 0 {
		v.Add("numeroConta", "required")
	}
	switch {
	case !l.Limite.Valid:
		v.Add("novoLimite", "required")
	case l.Limite.Decimal.IsNegative():
		v.Add("novoLimite", "must be zero or greater")
	}
	return v.OrNil()
}

func validateCPF(v *ValidationError, cpf string) {
	switch {
	case cpf == "":
		v.Add("cpf", "required")
	case !cpfPattern.MatchString(cpf):
		v.Add("cpf", "must be exactly 11 digits")
	}
}

func validateAmount(v *ValidationError, field string, amount decimal.NullDecimal) {
	switch {
	case !amount.Valid:
		v.Add(field, "required")
	case amount.Decimal.LessThan(minOperationAmount):
		v.Add(field, "must be at least 1")
	}
}
