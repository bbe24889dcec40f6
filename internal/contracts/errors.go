package contracts

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error taxonomy
// =============================================================================

// Sentinel errors. Match with errors.Is.
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrNumerical        = errors.New("numerical error")
	ErrCacheCorrupt     = errors.New("cache corrupt")
	ErrSchema           = errors.New("schema error")
	ErrProvider         = errors.New("price provider error")
	ErrInvalidInput     = errors.New("invalid input")
)

// SchemaError reports a malformed portfolio snapshot
type SchemaError struct {
	Source string // file name or "request"
	Row    int    // 1-based data row, 0 when not row-specific
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %s", describe(e.Source, e.Row, e.Field, e.Reason))
}

// Unwrap makes errors.Is(err, ErrSchema) true
func (e *SchemaError) Unwrap() error {
	return ErrSchema
}

// CacheCorruptError reports an unreadable ticker risk cache
type CacheCorruptError struct {
	Source string
	Row    int
	Field  string
	Reason string
}

func (e *CacheCorruptError) Error() string {
	return fmt.Sprintf("cache corrupt: %s", describe(e.Source, e.Row, e.Field, e.Reason))
}

// Unwrap makes errors.Is(err, ErrCacheCorrupt) true
func (e *CacheCorruptError) Unwrap() error {
	return ErrCacheCorrupt
}

func describe(source string, row int, field, reason string) string {
	msg := ""
	if source != "" {
		msg = source + ": "
	}
	if row > 0 {
		msg += fmt.Sprintf("row %d: ", row)
	}
	if field != "" {
		msg += fmt.Sprintf("field %q: ", field)
	}
	return msg + reason
}
