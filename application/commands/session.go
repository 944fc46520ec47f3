// Package commands defines the state-changing requests the kernel accepts.
package commands

import (
	"github.com/go-playground/validator/v10"

	"designgraph/application/orchestrator"
	"designgraph/domain/core/valueobjects"
	"designgraph/domain/patch"
)

var validate = validator.New()

// CreateSessionCommand creates the empty graph for a session
type CreateSessionCommand struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
}

// Validate checks the command fields
func (c CreateSessionCommand) Validate() error {
	return validate.Struct(c)
}

// RunTaskCommand runs one task against a session
type RunTaskCommand struct {
	SessionID string             `json:"session_id" validate:"required"`
	Task      string             `json:"task" validate:"required"`
	RequestID string             `json:"request_id"`
	Args      valueobjects.Attrs `json:"args"`
}

// Validate checks the command fields
func (c RunTaskCommand) Validate() error {
	return validate.Struct(c)
}

// Request converts the command into an orchestrator request
func (c RunTaskCommand) Request() orchestrator.Request {
	return orchestrator.Request{
		SessionID: c.SessionID,
		Task:      c.Task,
		RequestID: c.RequestID,
		Args:      c.Args,
	}
}

// ApprovePatchCommand commits a reviewed patch against the version it was
// proposed from
type ApprovePatchCommand struct {
	SessionID       string      `json:"session_id" validate:"required"`
	ExpectedVersion int64       `json:"expected_version" validate:"min=1"`
	Patch           patch.Patch `json:"patch"`
}

// Validate checks the command fields
func (c ApprovePatchCommand) Validate() error {
	return validate.Struct(c)
}
