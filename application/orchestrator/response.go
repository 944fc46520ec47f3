package orchestrator

import (
	"designgraph/domain/core/valueobjects"
	"designgraph/domain/patch"
	"designgraph/domain/policy"
)

// Status is the terminal outcome of a task request
type Status string

const (
	StatusComplete Status = "complete"
	StatusPending  Status = "pending"
	StatusBlocked  Status = "blocked"
)

// Request asks the kernel to run one task against a session
type Request struct {
	SessionID string             `json:"session_id" validate:"required"`
	Task      string             `json:"task" validate:"required"`
	RequestID string             `json:"request_id"`
	Args      valueobjects.Attrs `json:"args"`
}

// CommittedPatch identifies the graph version a commit produced
type CommittedPatch struct {
	SessionID string `json:"session_id"`
	Version   int64  `json:"version"`
}

// Response is the envelope returned for every handled request
type Response struct {
	Status        Status          `json:"status"`
	RequestID     string          `json:"request_id"`
	Patch         *CommittedPatch `json:"patch,omitempty"`
	ProposedPatch *patch.Patch    `json:"proposed_patch,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Code          string          `json:"code,omitempty"`
	Decision      policy.Decision `json:"decision,omitempty"`
	BaseVersion   int64           `json:"base_version,omitempty"`
}

func complete(requestID, sessionID string, version int64, warnings []string) *Response {
	return &Response{
		Status:    StatusComplete,
		RequestID: requestID,
		Patch:     &CommittedPatch{SessionID: sessionID, Version: version},
		Warnings:  warnings,
	}
}

func blocked(requestID, code, reason string, warnings []string) *Response {
	return &Response{
		Status:    StatusBlocked,
		RequestID: requestID,
		Code:      code,
		Reason:    reason,
		Warnings:  warnings,
	}
}
