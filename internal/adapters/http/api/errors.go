package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	// ErrBadRequest marks malformed or incomplete request input. Every
	// request validation failure wraps it before the handler writes 400.
	ErrBadRequest = errors.New("bad request")
)

// wrapOp annotates an error with the operation it came from.
func wrapOp(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
