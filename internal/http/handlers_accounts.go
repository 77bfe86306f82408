package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"banco/internal/core"
	"banco/internal/dashboard"
)

type (
	operationBody struct {
		Tipo  core.TransactionType `json:"tipo"`
		Valor decimal.NullDecimal  `json:"valor"`
	}

	transferBody struct {
		Destino int                 `json:"contaDestino"`
		Valor   decimal.NullDecimal `json:"valor"`
	}

	limitBody struct {
		Limite decimal.NullDecimal `json:"novoLimite"`
	}
)

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req core.AccountRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	req.CPF = SanitizeInput(req.CPF)

	acc, err := s.deps.Actions.CreateAccount(r.Context(), req)
	if err != nil {
		ErrorResponse(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(acc).Write(w)
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	numero, err := ParseAccountNumber(r, "numeroConta")
	if err != nil {
		ErrorResponse(err).Write(w)
		return
	}
	st, err := s.deps.Bank.Statement(r.Context(), numero)
	if err != nil {
		ErrorResponse(err).Write(w)
		return
	}
	if st.Transacoes == nil {
		st.Transacoes = []core.Transaction{}
	}
	NewJSONResponse().Data(st).Write(w)
}

func (s *Server) handleAccountOperation(w http.ResponseWriter, r *http.Request) {
	numero, err := ParseAccountNumber(r, "numeroConta")
	if err != nil {
		ErrorResponse(err).Write(w)
		return
	}
	var body operationBody
	if err := DecodeJSON(w, r, &body); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	s.operate(w, r, core.Operation{Numero: numero, Tipo: body.Tipo, Valor: body.Valor})
}

// handleDefaultOperation runs an operation on the account named in the body
// or, when none is given, on the default operation target.
func (s *Server) handleDefaultOperation(w http.ResponseWriter, r *http.Request) {
	var op core.Operation
	if err := DecodeJSON(w, r, &op); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if op.Numero == 0 {
		view, err := s.deps.Bank.Dashboard(r.Context())
		if err != nil {
			ErrorResponse(err).Write(w)
			return
		}
		acc, ok := dashboard.DefaultOperationTarget(view.Users)
		if !ok {
			v := &core.ValidationError{}
			v.Add("numeroConta", "no account available")
			ErrorResponse(v).Write(w)
			return
		}
		op.Numero = acc.Numero
	}
	s.operate(w, r, op)
}

func (s *Server) operate(w http.ResponseWriter, r *http.Request, op core.Operation) {
	res, err := s.deps.Actions.Operate(r.Context(), op)
	if err != nil {
		ErrorResponse(err).Write(w)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"numeroConta": op.Numero,
		"tipo":        op.Tipo,
		"saldo":       res.Saldo,
	}).Write(w)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	origem, err := ParseAccountNumber(r, "contaOrigem")
	if err != nil {
		ErrorResponse(err).Write(w)
		return
	}
	var body transferBody
	if err := DecodeJSON(w, r, &body); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	msg, err := s.deps.Actions.Transfer(r.Context(), core.Transfer{Origem: origem, Destino: body.Destino, Valor: body.Valor})
	if err != nil {
		ErrorResponse(err).Write(w)
		return
	}
	NewJSONResponse().Data(map[string]string{"mensagem": msg}).Write(w)
}

func (s *Server) handleUpdateLimit(w http.ResponseWriter, r *http.Request) {
	numero, err := ParseAccountNumber(r, "numeroConta")
	if err != nil {
		ErrorResponse(err).Write(w)
		return
	}
	var body limitBody
	if err := DecodeJSON(w, r, &body); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	res, err := s.deps.Actions.UpdateLimit(r.Context(), core.LimitChange{Numero: numero, Limite: body.Limite})
	if err != nil {
		ErrorResponse(err).Write(w)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"numeroConta": numero,
		"limite":      res.Limite,
	}).Write(w)
}
