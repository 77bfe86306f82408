// Package fakebank is an in-process GraphQL backend implementing the bank
// contract for tests. It keeps its state in memory, issues real HS256 tokens
// and can be told to fail or stall specific operations.
package fakebank

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const (
	maxWithdrawal       = 500
	maxDailyWithdrawals = 3
)

var secret = []byte("fakebank-signing-key")

type transaction struct {
	Tipo  string          `json:"tipo"`
	Valor decimal.Decimal `json:"valor"`
	Data  string          `json:"data"`
}

type account struct {
	Numero     int             `json:"numero"`
	Saldo      decimal.Decimal `json:"saldo"`
	Limite     decimal.Decimal `json:"limite"`
	Transacoes []transaction   `json:"transacoes"`
}

type user struct {
	ID     int        `json:"id"`
	Nome   string     `json:"nome"`
	CPF    string     `json:"cpf"`
	Contas []*account `json:"contas"`
	senha  string
}

// The backend types money as Float.
func (t transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Tipo  string  `json:"tipo"`
		Valor float64 `json:"valor"`
		Data  string  `json:"data"`
	}{t.Tipo, t.Valor.InexactFloat64(), t.Data})
}

func (a *account) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Numero     int           `json:"numero"`
		Saldo      float64       `json:"saldo"`
		Limite     float64       `json:"limite"`
		Transacoes []transaction `json:"transacoes"`
	}{a.Numero, a.Saldo.InexactFloat64(), a.Limite.InexactFloat64(), a.Transacoes})
}

type failure struct {
	message string
	session bool
}

// Server is the fake backend. Every exported method is safe for concurrent use.
type Server struct {
	*httptest.Server

	// RequireAuth rejects protected operations that carry no valid token.
	RequireAuth bool
	TokenTTL    time.Duration

	mu       sync.Mutex
	now      func() time.Time
	users    []*user
	accounts int
	counts   map[string]int
	tokens   []string
	fail     map[string]failure
	gates    map[string]chan struct{}
}

// public operations never require a token.
var public = map[string]bool{"Login": true, "CriarUsuario": true, "CriarConta": true}

func New() *Server {
	s := &Server{
		TokenTTL: 30 * time.Minute,
		now:      time.Now,
		counts:   make(map[string]int),
		fail:     make(map[string]failure),
		gates:    make(map[string]chan struct{}),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Endpoint is the GraphQL URL.
func (s *Server) Endpoint() string {
	return s.URL + "/graphql"
}

// AddUser registers a user with one account per balance and returns its ID.
func (s *Server) AddUser(nome, cpf, senha string, balances ...float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.addUserLocked(nome, cpf, senha)
	for _, b := range balances {
		a := s.addAccountLocked(u)
		a.Saldo = decimal.NewFromFloat(b)
	}
	return u.ID
}

// AddTransaction appends a transaction to an account without touching its balance.
func (s *Server) AddTransaction(numero int, tipo string, valor float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.accountLocked(numero); a != nil {
		a.Transacoes = append(a.Transacoes, transaction{Tipo: tipo, Valor: decimal.NewFromFloat(valor), Data: s.stamp()})
	}
}

// Balance returns the balance of an account.
func (s *Server) Balance(numero int) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accountLocked(numero)
	if a == nil {
		return decimal.Zero, false
	}
	return a.Saldo, true
}

// AccountsOf returns the account numbers of the user with cpf.
func (s *Server) AccountsOf(cpf string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, u := range s.users {
		if u.CPF == cpf {
			for _, a := range u.Contas {
				out = append(out, a.Numero)
			}
		}
	}
	return out
}

// Calls reports how many requests named op were received.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[op]
}

// FailNext makes the next request named op fail with a domain error.
func (s *Server) FailNext(op, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = failure{message: message}
}

// RejectNext makes the next request named op fail as unauthenticated.
func (s *Server) RejectNext(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = failure{message: "Token expirado", session: true}
}

// Block stalls every request named op until the returned release is called.
func (s *Server) Block(op string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[op] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gates[op] == ch {
				delete(s.gates, op)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// IssuedTokens returns every token handed out by Login.
func (s *Server) IssuedTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

// Token signs a token for cpf the way Login does.
func Token(cpf string, ttl time.Duration) string {
	claims := jwt.RegisteredClaims{
		Subject:   cpf,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		panic(err)
	}
	return signed
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil || !gjson.ValidBytes(body) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	op := gjson.GetBytes(body, "operationName").String()
	vars := gjson.GetBytes(body, "variables")

	s.mu.Lock()
	s.counts[op]++
	gate := s.gates[op]
	f, failing := s.fail[op]
	delete(s.fail, op)
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if failing {
		writeError(w, f.message, f.session)
		return
	}
	if s.RequireAuth && !public[op] && !s.authorized(r) {
		writeError(w, "Não autenticado", true)
		return
	}

	data, err := s.dispatch(op, vars)
	if err != nil {
		writeError(w, err.Error(), false)
		return
	}
	writeJSON(w, map[string]any{"data": data})
}

func (s *Server) authorized(r *http.Request) bool {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	_, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err == nil
}

// dispatch encodes under the lock since results reference live state.
func (s *Server) dispatch(op string, vars gjson.Result) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.resolveLocked(op, vars)
	if err != nil {
		return nil, err
	}
	return json.Marshal(data)
}

func (s *Server) resolveLocked(op string, vars gjson.Result) (map[string]any, error) {
	switch op {
	case "GetUsuarios":
		return map[string]any{"usuarios": s.users}, nil
	case "GetExtrato":
		a := s.accountLocked(int(vars.Get("numero").Int()))
		if a == nil {
			return map[string]any{"contaPorNumero": nil}, nil
		}
		return map[string]any{"contaPorNumero": a}, nil
	case "Login":
		return s.login(vars.Get("cpf").String(), vars.Get("senha").String())
	case "CriarUsuario":
		return s.createUser(vars)
	case "CriarConta":
		return s.createAccount(vars.Get("cpf").String())
	case "Operacao":
		return s.operate(int(vars.Get("conta").Int()), vars.Get("tipo").String(), decimal.NewFromFloat(vars.Get("valor").Float()))
	case "Transferir":
		return s.transfer(int(vars.Get("origem").Int()), int(vars.Get("destino").Int()), decimal.NewFromFloat(vars.Get("valor").Float()))
	case "AtualizarLimite":
		a := s.accountLocked(int(vars.Get("conta").Int()))
		if a == nil {
			return nil, errors.New("Conta não encontrada")
		}
		a.Limite = decimal.NewFromFloat(vars.Get("limite").Float())
		return map[string]any{"atualizarLimite": map[string]any{"limite": a.Limite.InexactFloat64()}}, nil
	case "Popular":
		s.seedLocked()
		return map[string]any{"popularBanco": "Banco populado!"}, nil
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
}

func (s *Server) login(cpf, senha string) (map[string]any, error) {
	for _, u := range s.users {
		if u.CPF == cpf && u.senha == senha {
			token := Token(u.CPF, s.TokenTTL)
			s.tokens = append(s.tokens, token)
			return map[string]any{"login": map[string]any{"accessToken": token, "usuarioNome": u.Nome}}, nil
		}
	}
	return nil, errors.New("CPF ou Senha incorretos")
}

func (s *Server) createUser(vars gjson.Result) (map[string]any, error) {
	cpf := vars.Get("cpf").String()
	if s.userLocked(cpf) != nil {
		return nil, errors.New("CPF já cadastrado!")
	}
	u := s.addUserLocked(vars.Get("nome").String(), cpf, vars.Get("senha").String())
	return map[string]any{"criarUsuario": map[string]any{"id": u.ID, "nome": u.Nome}}, nil
}

func (s *Server) createAccount(cpf string) (map[string]any, error) {
	u := s.userLocked(cpf)
	if u == nil {
		return nil, errors.New("Utilizador não encontrado!")
	}
	a := s.addAccountLocked(u)
	return map[string]any{"criarConta": map[string]any{"numero": a.Numero}}, nil
}

func (s *Server) operate(numero int, tipo string, valor decimal.Decimal) (map[string]any, error) {
	a := s.accountLocked(numero)
	if a == nil {
		return nil, errors.New("Conta não encontrada")
	}
	if !valor.IsPositive() {
		return nil, errors.New("O valor deve ser positivo")
	}
	switch tipo {
	case "sacar":
		if valor.GreaterThan(decimal.NewFromInt(maxWithdrawal)) {
			return nil, errors.New("Limite por saque é de R$ 500,00")
		}
		if s.withdrawalsToday(a) >= maxDailyWithdrawals {
			return nil, errors.New("Excedeu o limite de 3 saques diários")
		}
		if a.Saldo.LessThan(valor) {
			return nil, errors.New("Saldo insuficiente.")
		}
		a.Saldo = a.Saldo.Sub(valor)
	case "depositar":
		a.Saldo = a.Saldo.Add(valor)
	}
	a.Transacoes = append(a.Transacoes, transaction{Tipo: tipo, Valor: valor, Data: s.stamp()})
	return map[string]any{"realizarOperacao": map[string]any{"saldo": a.Saldo.InexactFloat64()}}, nil
}

func (s *Server) transfer(origem, destino int, valor decimal.Decimal) (map[string]any, error) {
	if !valor.IsPositive() {
		return nil, errors.New("Valor inválido")
	}
	from, to := s.accountLocked(origem), s.accountLocked(destino)
	if from == nil || to == nil {
		return nil, errors.New("Conta não encontrada")
	}
	if from == to {
		return nil, errors.New("Não pode transferir para a mesma conta")
	}
	if from.Saldo.LessThan(valor) {
		return nil, errors.New("Saldo insuficiente")
	}
	stamp := s.stamp()
	from.Saldo = from.Saldo.Sub(valor)
	from.Transacoes = append(from.Transacoes, transaction{Tipo: "transferencia_enviada", Valor: valor, Data: stamp})
	to.Saldo = to.Saldo.Add(valor)
	to.Transacoes = append(to.Transacoes, transaction{Tipo: "transferencia_recebida", Valor: valor, Data: stamp})
	return map[string]any{"transferir": "Transferência realizada!"}, nil
}

func (s *Server) seedLocked() {
	for i, nome := range []string{"Ana Souza", "Bruno Lima", "Carla Dias"} {
		cpf := fmt.Sprintf("%011d", 90000000000+i)
		if s.userLocked(cpf) != nil {
			continue
		}
		u := s.addUserLocked(nome, cpf, "1234")
		a := s.addAccountLocked(u)
		a.Saldo = decimal.NewFromInt(int64(100 * (i + 1)))
		a.Transacoes = append(a.Transacoes, transaction{Tipo: "depositar", Valor: a.Saldo, Data: s.stamp()})
	}
}

func (s *Server) withdrawalsToday(a *account) int {
	now := s.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	n := 0
	for _, tx := range a.Transacoes {
		if tx.Tipo != "sacar" {
			continue
		}
		at, err := time.ParseInLocation("2006-01-02T15:04:05", tx.Data, now.Location())
		if err == nil && !at.Before(day) {
			n++
		}
	}
	return n
}

func (s *Server) addUserLocked(nome, cpf, senha string) *user {
	u := &user{ID: len(s.users) + 1, Nome: nome, CPF: cpf, Contas: []*account{}, senha: senha}
	s.users = append(s.users, u)
	return u
}

// Account numbers are the running count of accounts plus one.
func (s *Server) addAccountLocked(u *user) *account {
	s.accounts++
	a := &account{Numero: s.accounts, Transacoes: []transaction{}}
	u.Contas = append(u.Contas, a)
	return a
}

func (s *Server) userLocked(cpf string) *user {
	for _, u := range s.users {
		if u.CPF == cpf {
			return u
		}
	}
	return nil
}

func (s *Server) accountLocked(numero int) *account {
	for _, u := range s.users {
		for _, a := range u.Contas {
			if a.Numero == numero {
				return a
			}
		}
	}
	return nil
}

// The backend serializes naive local datetimes.
func (s *Server) stamp() string {
	return s.now().Format("2006-01-02T15:04:05")
}

func writeError(w http.ResponseWriter, message string, session bool) {
	e := map[string]any{"message": message, "path": nil}
	if session {
		e["extensions"] = map[string]any{"code": "UNAUTHENTICATED"}
	}
	writeJSON(w, map[string]any{"data": nil, "errors": []any{e}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
