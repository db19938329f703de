package uris

import "fmt"

// ParseError is returned by the Parse* functions in this package. It always
// wraps enough context to be logged directly without further formatting.
type ParseError struct {
	msg string
}

func (e *ParseError) Error() string { return e.msg }

func errInvalid(format string, args ...any) error {
	return &ParseError{msg: fmt.Sprintf(format, args...)}
}
