package ir

import "errors"

// Coder is implemented by errors that carry a stable, machine-readable code
// such as "FIELD_NOT_FOUND".
type Coder interface {
	Code() string
}

// ErrorCode returns the code of the first error in err's chain that has one,
// or "" if none does.
func ErrorCode(err error) string {
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}
