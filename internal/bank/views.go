package bank

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"banco/internal/core"
	"banco/internal/gateway"
)

type (
	LoginResult struct {
		AccessToken string `json:"accessToken"`
		UsuarioNome string `json:"usuarioNome"`
	}

	CreatedUser struct {
		ID   int    `json:"id"`
		Nome string `json:"nome"`
	}

	CreatedAccount struct {
		Numero int `json:"numero"`
	}

	OperationResult struct {
		Saldo decimal.Decimal `json:"saldo"`
	}

	LimitResult struct {
		Limite decimal.Decimal `json:"limite"`
	}
)

// DecodeUsers reads the user graph from a GetUsuarios snapshot.
func DecodeUsers(snap gateway.Snapshot) ([]core.User, error) {
	var out struct {
		Usuarios []core.User `json:"usuarios"`
	}
	if err := snap.Decode(&out); err != nil {
		return nil, err
	}
	return out.Usuarios, nil
}

// DecodeStatement reads one account statement from a GetExtrato snapshot.
// An unknown account number decodes to ErrAccountNotFound.
func DecodeStatement(snap gateway.Snapshot, numero int) (core.Statement, error) {
	var out struct {
		Conta *core.Statement `json:"contaPorNumero"`
	}
	if err := snap.Decode(&out); err != nil {
		return core.Statement{}, err
	}
	if out.Conta == nil {
		return core.Statement{}, fmt.Errorf("%w: %d", ErrAccountNotFound, numero)
	}
	st := *out.Conta
	st.Numero = numero
	return st, nil
}

var ErrAccountNotFound = &core.Error{Kind: core.KindDomain, Op: QueryStatement, Message: "Conta não encontrada"}

func decodeField[T any](data json.RawMessage, field string) (T, error) {
	var zero T
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return zero, fmt.Errorf("decode %s: %w", field, err)
	}
	raw, ok := envelope[field]
	if !ok || string(raw) == "null" {
		return zero, fmt.Errorf("decode %s: field missing", field)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("decode %s: %w", field, err)
	}
	return v, nil
}

func DecodeLogin(data json.RawMessage) (LoginResult, error) {
	return decodeField[LoginResult](data, "login")
}

func DecodeCreatedUser(data json.RawMessage) (CreatedUser, error) {
	return decodeField[CreatedUser](data, "criarUsuario")
}

func DecodeCreatedAccount(data json.RawMessage) (CreatedAccount, error) {
	return decodeField[CreatedAccount](data, "criarConta")
}

func DecodeOperation(data json.RawMessage) (OperationResult, error) {
	return decodeField[OperationResult](data, "realizarOperacao")
}

func DecodeTransfer(data json.RawMessage) (string, error) {
	return decodeField[string](data, "transferir")
}

func DecodeLimit(data json.RawMessage) (LimitResult, error) {
	return decodeField[LimitResult](data, "atualizarLimite")
}
