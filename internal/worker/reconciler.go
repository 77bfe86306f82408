package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"banco/internal/amqp"
	"banco/internal/bank"
	"banco/internal/core"
	"banco/internal/log"
)

// UserDirectory reads the current user graph, bypassing the view store.
// *bank.Client implements it.
type UserDirectory interface {
	Refresh(ctx context.Context) (bank.DashboardView, error)
}

// AccountOpener completes the missing saga step. *services.Orchestrator
// implements it.
type AccountOpener interface {
	CreateAccount(ctx context.Context, req core.AccountRequest) (bank.CreatedAccount, error)
}

// Stats counts what the reconciler did with the messages it saw.
type Stats struct {
	Seen     int64 `json:"seen"`
	Resolved int64 `json:"resolved"`
	Skipped  int64 `json:"skipped"`
	Failed   int64 `json:"failed"`
}

// Reconciler handles half-finished sign-ups. In report mode it only logs
// them; with resolve set it opens the missing account when the user still
// has none.
type Reconciler struct {
	users   UserDirectory
	opener  AccountOpener
	resolve bool
	logger  *log.Logger

	seen, resolved, skipped, failed atomic.Int64
}

func NewReconciler(users UserDirectory, opener AccountOpener, resolve bool, logger *log.Logger) *Reconciler {
	return &Reconciler{
		users:   users,
		opener:  opener,
		resolve: resolve,
		logger:  log.OrNop(logger).WithComponent(log.ComponentReconciler),
	}
}

// HandleReconciliation processes one message. A returned error requeues it.
func (r *Reconciler) HandleReconciliation(ctx context.Context, msg *amqp.ReconciliationMessage) error {
	r.seen.Add(1)
	logger := r.logger.With("id", msg.ID, log.FieldCPF, msg.CPF)

	logger.InfoContext(ctx, "Processing reconciliation message",
		"completed_step", msg.CompletedStep,
		"failed_step", msg.FailedStep,
		"cause", msg.Error,
		"timestamp", msg.Timestamp)

	if !r.resolve {
		r.skipped.Add(1)
		logger.WarnContext(ctx, "Sign-up needs an account, run with -resolve to open it", log.FieldUser, msg.Nome)
		return nil
	}

	view, err := r.users.Refresh(ctx)
	if err != nil {
		r.failed.Add(1)
		return fmt.Errorf("read users: %w", err)
	}

	user, found := findUser(view.Users, msg.CPF)
	switch {
	case !found:
		r.skipped.Add(1)
		logger.WarnContext(ctx, "User no longer exists, nothing to reconcile")
		return nil
	case user.HasAccount():
		r.skipped.Add(1)
		logger.InfoContext(ctx, "User already has an account", log.FieldAccount, user.Contas[0].Numero)
		return nil
	}

	acc, err := r.opener.CreateAccount(ctx, core.AccountRequest{CPF: msg.CPF})
	if err != nil {
		r.failed.Add(1)
		return fmt.Errorf("create account for %s: %w", msg.CPF, err)
	}

	r.resolved.Add(1)
	logger.InfoContext(ctx, "Sign-up reconciled", log.FieldAccount, acc.Numero)
	return nil
}

func (r *Reconciler) Stats() Stats {
	return Stats{
		Seen:     r.seen.Load(),
		Resolved: r.resolved.Load(),
		Skipped:  r.skipped.Load(),
		Failed:   r.failed.Load(),
	}
}

func findUser(users []core.User, cpf string) (core.User, bool) {
	for _, u := range users {
		if u.CPF == cpf {
			return u, true
		}
	}
	return core.User{}, false
}
