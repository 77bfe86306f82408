// Package bank is the typed catalog of the backend's GraphQL contract: the
// operation documents, their variables and the decoding of their results.
package bank

import (
	"github.com/shopspring/decimal"

	"banco/internal/core"
	"banco/internal/gateway"
)

// Query names double as invalidation targets.
const (
	QueryUsers     = "GetUsuarios"
	QueryStatement = "GetExtrato"
)

var (
	UsersQuery = gateway.Query{
		Name:   QueryUsers,
		Policy: gateway.CacheFirst,
		Document: `query GetUsuarios {
  usuarios {
    id
    nome
    cpf
    contas {
      numero
      saldo
      limite
      transacoes { tipo valor }
    }
  }
}`,
	}

	// The statement is always read fresh from the backend.
	StatementQuery = gateway.Query{
		Name:   QueryStatement,
		Policy: gateway.NetworkOnly,
		Document: `query GetExtrato($numero: Int!) {
  contaPorNumero(numero: $numero) {
    saldo
    transacoes { tipo valor data }
  }
}`,
	}

	LoginMutation = gateway.Mutation{
		Name: "Login",
		Document: `mutation Login($cpf: String!, $senha: String!) {
  login(cpf: $cpf, senha: $senha) { accessToken usuarioNome }
}`,
	}

	CreateUserMutation = gateway.Mutation{
		Name: "CriarUsuario",
		Document: `mutation CriarUsuario($nome: String!, $cpf: String!, $data: String!, $end: String!, $senha: String!) {
  criarUsuario(nome: $nome, cpf: $cpf, dataNascimento: $data, endereco: $end, senha: $senha) { id nome }
}`,
	}

	CreateAccountMutation = gateway.Mutation{
		Name: "CriarConta",
		Document: `mutation CriarConta($cpf: String!) {
  criarConta(cpfUsuario: $cpf) { numero }
}`,
	}

	OperationMutation = gateway.Mutation{
		Name: "Operacao",
		Document: `mutation Operacao($conta: Int!, $tipo: String!, $valor: Float!) {
  realizarOperacao(numeroConta: $conta, tipo: $tipo, valor: $valor) { saldo }
}`,
	}

	TransferMutation = gateway.Mutation{
		Name: "Transferir",
		Document: `mutation Transferir($origem: Int!, $destino: Int!, $valor: Float!) {
  transferir(contaOrigem: $origem, contaDestino: $destino, valor: $valor)
}`,
	}

	UpdateLimitMutation = gateway.Mutation{
		Name: "AtualizarLimite",
		Document: `mutation AtualizarLimite($conta: Int!, $limite: Float!) {
  atualizarLimite(numeroConta: $conta, novoLimite: $limite) { limite }
}`,
	}

	SeedMutation = gateway.Mutation{
		Name:     "Popular",
		Document: `mutation Popular { popularBanco }`,
	}
)

func StatementVars(numero int) map[string]any {
	return map[string]any{"numero": numero}
}

func LoginVars(c core.Credentials) map[string]any {
	return map[string]any{"cpf": c.CPF, "senha": c.Senha}
}

func CreateUserVars(u core.NewUser) map[string]any {
	return map[string]any{
		"nome":  u.Nome,
		"cpf":   u.CPF,
		"data":  u.DataNascimento,
		"end":   u.Endereco,
		"senha": u.Senha,
	}
}

func CreateAccountVars(cpf string) map[string]any {
	return map[string]any{"cpf": cpf}
}

func OperationVars(o core.Operation) map[string]any {
	return map[string]any{"conta": o.Numero, "tipo": string(o.Tipo), "valor": float(o.Valor.Decimal)}
}

func TransferVars(t core.Transfer) map[string]any {
	return map[string]any{"origem": t.Origem, "destino": t.Destino, "valor": float(t.Valor.Decimal)}
}

func UpdateLimitVars(l core.LimitChange) map[string]any {
	return map[string]any{"conta": l.Numero, "limite": float(l.Limite.Decimal)}
}

// The contract types money as Float.
func float(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
