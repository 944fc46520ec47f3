// Package handlers binds kernel commands to the orchestrator.
package handlers

import (
	"context"
	"fmt"

	"designgraph/application/commands"
	"designgraph/application/commands/bus"
	"designgraph/application/orchestrator"
	"designgraph/domain/core/aggregates"
	"designgraph/domain/patch"
)

// Kernel is the part of the orchestrator the command handlers drive
type Kernel interface {
	CreateSession(ctx context.Context, sessionID string) (*aggregates.Graph, error)
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Response, error)
	ApprovePatch(ctx context.Context, sessionID string, expectedVersion int64, p patch.Patch) (*orchestrator.Response, error)
}

// SessionHandlers handles session commands
type SessionHandlers struct {
	kernel Kernel
}

// NewSessionHandlers creates the handlers
func NewSessionHandlers(kernel Kernel) *SessionHandlers {
	return &SessionHandlers{kernel: kernel}
}

// Register adds every session command to b
func (h *SessionHandlers) Register(b *bus.CommandBus) error {
	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandlerFunc
	}{
		{commands.CreateSessionCommand{}, h.createSession},
		{commands.RunTaskCommand{}, h.runTask},
		{commands.ApprovePatchCommand{}, h.approvePatch},
	}
	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}

// createSession returns the new *aggregates.Graph
func (h *SessionHandlers) createSession(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.CreateSessionCommand)
	if !ok {
		return nil, fmt.Errorf("invalid command type %T", cmd)
	}
	return h.kernel.CreateSession(ctx, c.SessionID)
}

// runTask returns the *orchestrator.Response
func (h *SessionHandlers) runTask(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.RunTaskCommand)
	if !ok {
		return nil, fmt.Errorf("invalid command type %T", cmd)
	}
	return h.kernel.Run(ctx, c.Request())
}

func (h *SessionHandlers) approvePatch(ctx context.Context, cmd bus.Command) (interface{}, error) {
	c, ok := cmd.(commands.ApprovePatchCommand)
	if !ok {
		return nil, fmt.Errorf("invalid command type %T", cmd)
	}
	return h.kernel.ApprovePatch(ctx, c.SessionID, c.ExpectedVersion, c.Patch)
}
