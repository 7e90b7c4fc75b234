package timeseries

import (
	"errors"
	"fmt"
)

// ErrSchemaMismatch is matched by every SchemaError.
var ErrSchemaMismatch = errors.New("timeseries: schema mismatch")

// SchemaError reports a missing column or a value that does not fit its column type.
// Row is -1 when the error concerns the column itself.
type SchemaError struct {
	Column string
	Row    int
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("timeseries: schema mismatch: column %s: %s", e.Column, e.Reason)
	}
	return fmt.Sprintf("timeseries: schema mismatch: column %s row %d: %s", e.Column, e.Row, e.Reason)
}

// Is lets errors.Is(err, ErrSchemaMismatch) match.
func (e *SchemaError) Is(target error) bool { return target == ErrSchemaMismatch }

// MissingColumn builds the error for an absent required column.
func MissingColumn(name string) *SchemaError {
	return &SchemaError{Column: name, Row: -1, Reason: "missing required column"}
}

// IncompatibleColumn builds the error for a column whose declared type cannot hold kind.
func IncompatibleColumn(name string, kind Kind, actual string) *SchemaError {
	return &SchemaError{Column: name, Row: -1, Reason: fmt.Sprintf("type %s is not compatible with %s", actual, kind)}
}
