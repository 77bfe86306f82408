package services

import (
	"errors"
	"sync"
	"time"
)

// Phase is the state of one action control.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseSubmitting Phase = "submitting"
	PhaseSuccess    Phase = "success"
	PhaseFailed     Phase = "failed"
)

// Action names one operator action. Each action has its own control.
type Action string

const (
	ActionLogin         Action = "login"
	ActionCreateUser    Action = "create_user"
	ActionCreateAccount Action = "create_account"
	ActionOperate       Action = "operate"
	ActionTransfer      Action = "transfer"
	ActionUpdateLimit   Action = "update_limit"
	ActionSeed          Action = "seed"
)

var Actions = []Action{
	ActionLogin,
	ActionCreateUser,
	ActionCreateAccount,
	ActionOperate,
	ActionTransfer,
	ActionUpdateLimit,
	ActionSeed,
}

// ErrInFlight rejects a submission while the same action is still running.
var ErrInFlight = errors.New("action already in progress")

// Status is a point-in-time view of an action control.
type Status struct {
	Action    Action    `json:"action"`
	Phase     Phase     `json:"phase"`
	LastID    string    `json:"lastId,omitempty"`
	LastError string    `json:"lastError,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// control drives idle -> validating -> submitting -> success | failed. A
// failed submission settles back in idle with its error kept for display.
type control struct {
	mu      sync.Mutex
	action  Action
	phase   Phase
	lastID  string
	lastErr error
	updated time.Time
}

func newControl(a Action) *control {
	return &control{action: a, phase: PhaseIdle, updated: time.Now()}
}

func (c *control) begin(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseValidating || c.phase == PhaseSubmitting {
		return ErrInFlight
	}
	c.set(PhaseValidating)
	c.lastID = id
	c.lastErr = nil
	return nil
}

func (c *control) submitting() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(PhaseSubmitting)
}

// invalid returns to idle without a network call.
func (c *control) invalid(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	c.set(PhaseIdle)
}

func (c *control) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err
		c.set(PhaseIdle)
		return
	}
	c.set(PhaseSuccess)
}

func (c *control) set(p Phase) {
	c.phase = p
	c.updated = time.Now()
}

func (c *control) status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{Action: c.action, Phase: c.phase, LastID: c.lastID, UpdatedAt: c.updated}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}
