package dal

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFoundOrForbidden is returned both when a row is absent and when it
	// belongs to another organization. Callers cannot tell the two apart.
	ErrNotFoundOrForbidden = errors.New("not found")
	ErrConstraint          = errors.New("constraint violation")
	ErrValidation          = errors.New("validation failed")
	ErrTransaction         = errors.New("transaction failed")
)

type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintNotNull    ConstraintKind = "not_null"
	ConstraintOther      ConstraintKind = "integrity"
)

type ConstraintError struct {
	Code       string
	Constraint string
	Kind       ConstraintKind
	cause      error
}

func (e *ConstraintError) Error() string {
	if e.Constraint == "" {
		return fmt.Sprintf("%s constraint violated", e.Kind)
	}
	return fmt.Sprintf("%s constraint %q violated", e.Kind, e.Constraint)
}

func (e *ConstraintError) Is(target error) bool { return target == ErrConstraint }

func (e *ConstraintError) Unwrap() error { return e.cause }

type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e ValidationError) Is(target error) bool { return target == ErrValidation }

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool { return target == ErrValidation }

func Invalid(field, reason string) error {
	return ValidationError{Field: field, Reason: reason}
}

// Details extracts field level problems from err, or nil when err carries none.
func Details(err error) []ValidationError {
	var many ValidationErrors
	if errors.As(err, &many) {
		return many
	}
	var one ValidationError
	if errors.As(err, &one) {
		return []ValidationError{one}
	}
	return nil
}

// TransactionError reports a begin or commit failure while keeping the driver
// error reachable through errors.As / errors.Is.
type TransactionError struct {
	Op    string
	cause error
}

func TxFailure(op string, cause error) error {
	return &TransactionError{Op: op, cause: cause}
}

func (e *TransactionError) Error() string {
	return "transaction " + e.Op + ": " + e.cause.Error()
}

func (e *TransactionError) Is(target error) bool { return target == ErrTransaction }

func (e *TransactionError) Unwrap() error { return e.cause }
