package hostlink

import (
	"errors"
	"fmt"
)

var (
	ErrIdle      = errors.New("hostlink: no data")
	ErrMalformed = errors.New("hostlink: malformed line")
	ErrRange     = errors.New("hostlink: value out of range")
)

// ParseError reports a data line that could not be decoded.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("hostlink: parse %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
