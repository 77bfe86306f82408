// Package services runs operator actions: validate locally, submit one
// mutation through the gateway, then let the gateway reload what changed.
// Nothing here writes to the view store.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"banco/internal/amqp"
	"banco/internal/bank"
	"banco/internal/core"
	"banco/internal/gateway"
	"banco/internal/log"
	"banco/internal/metrics"
)

// Mutator is the gateway surface the orchestrator needs.
type Mutator interface {
	Mutate(ctx context.Context, req gateway.MutateRequest) (json.RawMessage, error)
}

// SessionStarter stores the session after a successful login.
type SessionStarter interface {
	Login(ctx context.Context, token, displayName string) error
}

// ReconciliationPublisher queues half-finished sign-ups. *amqp.Client
// implements it.
type ReconciliationPublisher interface {
	PublishReconciliation(ctx context.Context, msg *amqp.ReconciliationMessage) error
}

// Every successful write reloads the dashboard root query.
var dashboardQueries = []string{bank.QueryUsers}

type Orchestrator struct {
	gw        Mutator
	session   SessionStarter
	publisher ReconciliationPublisher
	logger    *log.Logger
	controls  map[Action]*control
}

// NewOrchestrator creates an orchestrator. publisher may be nil, in which
// case partial sign-ups are only logged.
func NewOrchestrator(gw Mutator, session SessionStarter, publisher ReconciliationPublisher, logger *log.Logger) *Orchestrator {
	o := &Orchestrator{
		gw:        gw,
		session:   session,
		publisher: publisher,
		logger:    log.OrNop(logger).WithComponent(log.ComponentMutations),
		controls:  make(map[Action]*control, len(Actions)),
	}
	for _, a := range Actions {
		o.controls[a] = newControl(a)
	}
	return o
}

// Status returns the control state of action.
func (o *Orchestrator) Status(a Action) Status {
	return o.controls[a].status()
}

// Statuses returns every control state in Actions order.
func (o *Orchestrator) Statuses() []Status {
	out := make([]Status, 0, len(Actions))
	for _, a := range Actions {
		out = append(out, o.Status(a))
	}
	return out
}

// Login authenticates and stores the session. It invalidates nothing; only
// replacing another operator's session resets the view store.
func (o *Orchestrator) Login(ctx context.Context, c core.Credentials) (bank.LoginResult, error) {
	return run(ctx, o, ActionLogin, c.Validate, func(ctx context.Context) (bank.LoginResult, error) {
		res, err := mutate(ctx, o, bank.LoginMutation, bank.LoginVars(c), nil, bank.DecodeLogin)
		if err != nil {
			return res, err
		}
		if err := o.session.Login(ctx, res.AccessToken, res.UsuarioNome); err != nil {
			return res, fmt.Errorf("store session: %w", err)
		}
		return res, nil
	})
}

// CreateAccount opens a new account for the user with cpf.
func (o *Orchestrator) CreateAccount(ctx context.Context, req core.AccountRequest) (bank.CreatedAccount, error) {
	return run(ctx, o, ActionCreateAccount, req.Validate, func(ctx context.Context) (bank.CreatedAccount, error) {
		return mutate(ctx, o, bank.CreateAccountMutation, bank.CreateAccountVars(req.CPF), dashboardQueries, bank.DecodeCreatedAccount)
	})
}

// Operate deposits into or withdraws from one account.
func (o *Orchestrator) Operate(ctx context.Context, op core.Operation) (bank.OperationResult, error) {
	return run(ctx, o, ActionOperate, op.Validate, func(ctx context.Context) (bank.OperationResult, error) {
		return mutate(ctx, o, bank.OperationMutation, bank.OperationVars(op), dashboardQueries, bank.DecodeOperation)
	})
}

// Transfer moves money between two distinct accounts. Balance checks are
// left to the backend.
func (o *Orchestrator) Transfer(ctx context.Context, t core.Transfer) (string, error) {
	return run(ctx, o, ActionTransfer, t.Validate, func(ctx context.Context) (string, error) {
		return mutate(ctx, o, bank.TransferMutation, bank.TransferVars(t), dashboardQueries, bank.DecodeTransfer)
	})
}

func (o *Orchestrator) UpdateLimit(ctx context.Context, l core.LimitChange) (bank.LimitResult, error) {
	return run(ctx, o, ActionUpdateLimit, l.Validate, func(ctx context.Context) (bank.LimitResult, error) {
		return mutate(ctx, o, bank.UpdateLimitMutation, bank.UpdateLimitVars(l), dashboardQueries, bank.DecodeLimit)
	})
}

// SeedDemoData asks the backend to populate itself with demo customers.
func (o *Orchestrator) SeedDemoData(ctx context.Context) error {
	_, err := run(ctx, o, ActionSeed, noValidation, func(ctx context.Context) (json.RawMessage, error) {
		return mutate(ctx, o, bank.SeedMutation, nil, dashboardQueries, func(data json.RawMessage) (json.RawMessage, error) {
			return data, nil
		})
	})
	return err
}

func noValidation() error { return nil }

// run drives the control of action around one submission.
func run[T any](ctx context.Context, o *Orchestrator, action Action, validate func() error, submit func(context.Context) (T, error)) (T, error) {
	var zero T
	id := uuid.NewString()
	ctrl := o.controls[action]
	logger := o.logger.With(log.FieldAction, string(action), log.FieldActionID, id)

	if err := ctrl.begin(id); err != nil {
		metrics.RecordMutation(string(action), "rejected")
		logger.WarnContext(ctx, "Submission rejected, action in progress")
		return zero, err
	}

	if err := validate(); err != nil {
		ctrl.invalid(err)
		metrics.RecordMutation(string(action), "invalid")
		logger.InfoContext(ctx, "Validation failed", log.FieldError, err)
		return zero, err
	}

	ctrl.submitting()
	start := time.Now()
	res, err := submit(ctx)
	ctrl.finish(err)

	if err != nil {
		outcome := string(PhaseFailed)
		var partial *PartialFailureError
		if errors.As(err, &partial) {
			outcome = "partial"
		}
		metrics.RecordMutation(string(action), outcome)
		logger.WarnContext(ctx, "Action failed",
			log.FieldErrorKind, string(core.KindOf(err)),
			log.FieldError, err,
			log.FieldDuration, time.Since(start).Milliseconds())
		return res, err
	}

	metrics.RecordMutation(string(action), string(PhaseSuccess))
	logger.InfoContext(ctx, "Action succeeded", log.FieldDuration, time.Since(start).Milliseconds())
	return res, nil
}

// mutate submits one mutation and decodes its result. A result that
// cannot be decoded is reported as a transport failure.
func mutate[T any](ctx context.Context, o *Orchestrator, m gateway.Mutation, vars map[string]any, invalidates []string, decode func(json.RawMessage) (T, error)) (T, error) {
	var zero T
	data, err := o.gw.Mutate(ctx, gateway.MutateRequest{
		Mutation:    m,
		Variables:   vars,
		Invalidates: invalidates,
	})
	if err != nil {
		return zero, err
	}
	res, err := decode(data)
	if err != nil {
		return zero, &core.Error{Kind: core.KindTransport, Op: m.Name, Message: "unexpected response from backend", Err: err}
	}
	return res, nil
}
