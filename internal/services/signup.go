package services

import (
	"context"
	"fmt"

	"banco/internal/amqp"
	"banco/internal/bank"
	"banco/internal/core"
	"banco/internal/log"
)

// Signup is the outcome of the create-user saga.
type Signup struct {
	User    bank.CreatedUser    `json:"usuario"`
	Account bank.CreatedAccount `json:"conta"`
}

// PartialFailureError reports a sign-up whose user was created but whose
// account was not. The user is not removed; the gap is left for
// reconciliation.
type PartialFailureError struct {
	User   bank.CreatedUser
	CPF    string
	Err    error
	Queued bool // a reconciliation message was published
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("usuário %s criado, mas a conta não foi aberta: %v", e.User.Nome, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}

// CreateUser creates the user and then its first account. Both steps
// reload the dashboard, so a user created by a half-finished saga is
// visible right away.
func (o *Orchestrator) CreateUser(ctx context.Context, u core.NewUser) (Signup, error) {
	return run(ctx, o, ActionCreateUser, u.Validate, func(ctx context.Context) (Signup, error) {
		var out Signup

		user, err := mutate(ctx, o, bank.CreateUserMutation, bank.CreateUserVars(u), dashboardQueries, bank.DecodeCreatedUser)
		if err != nil {
			return out, err
		}
		out.User = user

		account, err := mutate(ctx, o, bank.CreateAccountMutation, bank.CreateAccountVars(u.CPF), dashboardQueries, bank.DecodeCreatedAccount)
		if err != nil {
			return out, o.partialFailure(ctx, user, u.CPF, err)
		}
		out.Account = account
		return out, nil
	})
}

func (o *Orchestrator) partialFailure(ctx context.Context, user bank.CreatedUser, cpf string, cause error) error {
	perr := &PartialFailureError{User: user, CPF: cpf, Err: cause}

	if o.publisher == nil {
		o.logger.WarnContext(ctx, "Sign-up left without account, no reconciliation queue configured",
			log.FieldCPF, cpf, log.FieldError, cause)
		return perr
	}

	msg := amqp.NewReconciliationMessage(string(ActionCreateUser), cpf, user.Nome, cause)
	if err := o.publisher.PublishReconciliation(ctx, msg); err != nil {
		o.logger.ErrorContext(ctx, "Failed to queue sign-up reconciliation",
			log.FieldCPF, cpf, log.FieldError, err)
		return perr
	}
	perr.Queued = true
	return perr
}
