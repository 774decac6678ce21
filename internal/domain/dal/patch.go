package dal

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Field distinguishes an omitted attribute from an explicit null in partial
// updates. The zero value is omitted.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func Set[T any](v T) Field[T] { return Field[T]{Set: true, Value: v} }

func Null[T any]() Field[T] { return Field[T]{Set: true, Null: true} }

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

// Ptr returns nil for null and a pointer to the value otherwise.
func (f Field[T]) Ptr() *T {
	if f.Null {
		return nil
	}
	v := f.Value
	return &v
}

// Updates accumulates SET clauses for a dynamic UPDATE statement. The leading
// args passed to NewUpdates occupy the first placeholders.
type Updates struct {
	clauses []string
	args    []any
	Changed map[string]any
}

func NewUpdates(args ...any) *Updates {
	return &Updates{args: args, Changed: map[string]any{}}
}

func (u *Updates) Add(column string, value any) {
	u.args = append(u.args, value)
	u.clauses = append(u.clauses, column+" = $"+strconv.Itoa(len(u.args)))
	u.Changed[column] = value
}

func (u *Updates) Empty() bool { return len(u.clauses) == 0 }

func (u *Updates) Clause() string {
	return strings.Join(u.clauses, ", ")
}

func (u *Updates) Args() []any { return u.args }

// ApplyField adds column when f is set, as NULL or the value.
func ApplyField[T any](u *Updates, column string, f Field[T]) {
	if !f.Set {
		return
	}
	if f.Null {
		u.Add(column, nil)
		return
	}
	u.Add(column, f.Value)
}
