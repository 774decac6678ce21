package shared

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"privacyhub/internal/domain/dal"
)

// Validator collects query string problems so a handler can report them all at once.
type Validator struct {
	issues dal.ValidationErrors
}

func NewValidator() *Validator {
	return &Validator{issues: make(dal.ValidationErrors, 0, 4)}
}

func (v *Validator) Add(field, reason string) {
	if v == nil {
		return
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return
	}
	v.issues = append(v.issues, dal.ValidationError{Field: strings.TrimSpace(field), Reason: reason})
}

func (v *Validator) Bool(field, raw string) *bool {
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		v.Add(field, "must be true or false")
		return nil
	}
	return &b
}

func (v *Validator) Date(field, raw string) *time.Time {
	if raw == "" {
		return nil
	}
	parsed, err := ParseDate(strings.TrimSpace(raw))
	if err != nil {
		v.Add(field, "must be an RFC3339 timestamp or YYYY-MM-DD date")
		return nil
	}
	return &parsed
}

func (v *Validator) Enum(field, value string, allowed ...string) {
	if value == "" {
		return
	}
	for _, candidate := range allowed {
		if value == candidate {
			return
		}
	}
	v.Add(field, "must be one of "+strings.Join(allowed, ", "))
}

func (v *Validator) HasIssues() bool {
	return v != nil && len(v.issues) > 0
}

// Err returns the collected issues as a validation error, or nil.
func (v *Validator) Err() error {
	if !v.HasIssues() {
		return nil
	}
	return v.issues
}

// DecodeJSON reads a single JSON object into dst. Unknown fields are rejected so
// typos in partial updates do not silently leave a column untouched.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return dal.Invalid("body", "request body too large")
		case errors.Is(err, io.EOF):
			return dal.Invalid("body", "request body is required")
		default:
			return dal.Invalid("body", "malformed JSON: "+err.Error())
		}
	}
	if dec.More() {
		return dal.Invalid("body", "request body must contain a single JSON object")
	}
	return nil
}
