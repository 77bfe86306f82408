package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Saga steps named in reconciliation messages.
const (
	StepCreateUser    = "criarUsuario"
	StepCreateAccount = "criarConta"
)

// ReconciliationMessage records a sign-up that stopped halfway: the user was
// created but the account step failed. The consumer decides whether to
// complete it.
type ReconciliationMessage struct {
	ID            string    `json:"id"`
	Action        string    `json:"action"`
	CPF           string    `json:"cpf"`
	Nome          string    `json:"nome"`
	CompletedStep string    `json:"completedStep"`
	FailedStep    string    `json:"failedStep"`
	Error         string    `json:"error"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewReconciliationMessage creates a message for a sign-up whose account
// step failed with cause.
func NewReconciliationMessage(action, cpf, nome string, cause error) *ReconciliationMessage {
	msg := &ReconciliationMessage{
		ID:            uuid.NewString(),
		Action:        action,
		CPF:           cpf,
		Nome:          nome,
		CompletedStep: StepCreateUser,
		FailedStep:    StepCreateAccount,
		Timestamp:     time.Now(),
	}
	if cause != nil {
		msg.Error = cause.Error()
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *ReconciliationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReconciliationMessageFromJSON creates a message from JSON bytes
func ReconciliationMessageFromJSON(data []byte) (*ReconciliationMessage, error) {
	var msg ReconciliationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.CPF == "" {
		return nil, fmt.Errorf("reconciliation message %s carries no cpf", msg.ID)
	}
	return &msg, nil
}
