// Package queries defines the read-only requests the kernel answers.
package queries

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// GetGraphQuery fetches the current graph snapshot
type GetGraphQuery struct {
	SessionID string `json:"session_id" validate:"required"`
}

// Validate checks the query fields
func (q GetGraphQuery) Validate() error { return validate.Struct(q) }

// GetLayerViewQuery projects the current graph onto one layer. An empty
// layer uses the configured default.
type GetLayerViewQuery struct {
	SessionID string `json:"session_id" validate:"required"`
	Layer     string `json:"layer"`
}

// Validate checks the query fields
func (q GetLayerViewQuery) Validate() error { return validate.Struct(q) }

// GetAppliedOpsQuery lists the op ids in a session's ledger
type GetAppliedOpsQuery struct {
	SessionID string `json:"session_id" validate:"required"`
}

// Validate checks the query fields
func (q GetAppliedOpsQuery) Validate() error { return validate.Struct(q) }

// AppliedOpsResult is the ledger of one session
type AppliedOpsResult struct {
	SessionID string   `json:"session_id"`
	OpIDs     []string `json:"op_ids"`
}
