package patch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"designgraph/domain/core/valueobjects"
	pkgerrors "designgraph/pkg/errors"
)

var validate = validator.New()

// PatchOp pairs an operation with the caller-chosen op_id used for
// idempotent replay
type PatchOp struct {
	OpID string
	Op   Operation
}

// Patch is an ordered list of operations applied atomically
type Patch struct {
	ID         string
	Operations []PatchOp
}

// New builds a patch with a generated id
func New(ops ...PatchOp) Patch {
	return Patch{ID: uuid.New().String(), Operations: ops}
}

// NewOp is shorthand for a PatchOp
func NewOp(opID string, op Operation) PatchOp {
	return PatchOp{OpID: opID, Op: op}
}

// IsEmpty reports whether the patch carries no operations
func (p Patch) IsEmpty() bool { return len(p.Operations) == 0 }

// OpIDs returns the distinct op ids in first-seen order
func (p Patch) OpIDs() []string {
	seen := make(map[string]struct{}, len(p.Operations))
	out := make([]string, 0, len(p.Operations))
	for _, op := range p.Operations {
		if _, ok := seen[op.OpID]; ok {
			continue
		}
		seen[op.OpID] = struct{}{}
		out = append(out, op.OpID)
	}
	return out
}

// Validate checks the shape of every operation without touching a graph
func (p Patch) Validate() error {
	for i, op := range p.Operations {
		if op.OpID == "" {
			return pkgerrors.NewInvalidPatch("", fmt.Sprintf("operation %d has no op_id", i))
		}
		if op.Op == nil {
			return pkgerrors.NewInvalidPatch(op.OpID, "operation is empty")
		}
		if _, isMeta := op.Op.(SetMeta); isMeta {
			continue
		}
		if err := validate.Struct(op.Op); err != nil {
			return pkgerrors.NewInvalidPatch(op.OpID, err.Error()).WithCause(err)
		}
	}
	return nil
}

type wireOp struct {
	OpID  string          `json:"op_id"`
	Op    OpKind          `json:"op"`
	Value json.RawMessage `json:"value"`
}

type wirePatch struct {
	PatchID    string    `json:"patch_id"`
	Operations []PatchOp `json:"operations"`
}

// MarshalJSON encodes the op as {op_id, op, value}
func (o PatchOp) MarshalJSON() ([]byte, error) {
	if o.Op == nil {
		return nil, pkgerrors.NewInvalidPatch(o.OpID, "operation is empty")
	}
	var (
		value []byte
		err   error
	)
	if meta, ok := o.Op.(SetMeta); ok {
		value, err = json.Marshal(meta.Values.Clone())
	} else {
		value, err = json.Marshal(o.Op)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireOp{OpID: o.OpID, Op: o.Op.Op(), Value: value})
}

// UnmarshalJSON decodes {op_id, op, value}. An unrecognized op tag fails
// with UNKNOWN_OPERATION.
func (o *PatchOp) UnmarshalJSON(data []byte) error {
	var w wireOp
	if err := json.Unmarshal(data, &w); err != nil {
		return pkgerrors.NewInvalidPatch("", err.Error()).WithCause(err)
	}
	op, err := DecodeOperation(w.Op, w.Value)
	if err != nil {
		return err
	}
	o.OpID = w.OpID
	o.Op = op
	return nil
}

// MarshalJSON encodes the patch as {patch_id, operations}
func (p Patch) MarshalJSON() ([]byte, error) {
	ops := p.Operations
	if ops == nil {
		ops = []PatchOp{}
	}
	return json.Marshal(wirePatch{PatchID: p.ID, Operations: ops})
}

// UnmarshalJSON decodes {patch_id, operations}
func (p *Patch) UnmarshalJSON(data []byte) error {
	var w wirePatch
	if err := json.Unmarshal(data, &w); err != nil {
		if pkgerrors.IsAppError(err) {
			return err
		}
		return pkgerrors.NewInvalidPatch("", err.Error()).WithCause(err)
	}
	p.ID = w.PatchID
	p.Operations = w.Operations
	return nil
}

// DecodeOperation builds the typed operation for a wire tag
func DecodeOperation(kind OpKind, raw json.RawMessage) (Operation, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = json.RawMessage("{}")
	}

	switch kind {
	case OpAddNode:
		return decodeInto[AddNode](kind, raw)
	case OpUpdateNode:
		return decodeInto[UpdateNode](kind, raw)
	case OpRemoveNode:
		return decodeInto[RemoveNode](kind, raw)
	case OpAddEdge:
		return decodeInto[AddEdge](kind, raw)
	case OpUpdateEdge:
		return decodeInto[UpdateEdge](kind, raw)
	case OpRemoveEdge:
		return decodeInto[RemoveEdge](kind, raw)
	case OpSetMeta:
		var values valueobjects.Attrs
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, pkgerrors.NewInvalidPatch("", fmt.Sprintf("set_meta value: %v", err)).WithCause(err)
		}
		return SetMeta{Values: values}, nil
	default:
		return nil, pkgerrors.NewUnknownOperation(string(kind))
	}
}

func decodeInto[T Operation](kind OpKind, raw json.RawMessage) (Operation, error) {
	var op T
	if err := json.Unmarshal(raw, &op); err != nil {
		return nil, pkgerrors.NewInvalidPatch("", fmt.Sprintf("%s value: %v", kind, err)).WithCause(err)
	}
	return op, nil
}
