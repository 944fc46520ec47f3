package router

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"designgraph/domain/core/valueobjects"
	pkgerrors "designgraph/pkg/errors"
)

var validate = validator.New()

// DecodeArgs copies task args into a typed struct and validates its tags.
// Failures are INVALID_ARGUMENTS errors naming task.
func DecodeArgs(task string, args valueobjects.Attrs, dst interface{}) error {
	if args == nil {
		args = valueobjects.Attrs{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return pkgerrors.NewInvalidArguments(task, err.Error())
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return pkgerrors.NewInvalidArguments(task, err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		return pkgerrors.NewInvalidArguments(task, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return fmt.Sprintf("field %s failed %s", fe.Field(), fe.Tag())
}

// OpID derives a deterministic op id for a request. Replaying the same
// request produces the same ids.
func OpID(requestID, task, key string) string {
	return fmt.Sprintf("%s:%s:%s", requestID, task, key)
}
