package ir

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type codedError struct{ code string }

func (e *codedError) Error() string { return "coded: " + e.code }
func (e *codedError) Code() string  { return e.code }

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "", ErrorCode(errors.New("plain")))
	assert.Equal(t, "UNKNOWN_SYMBOL", ErrorCode(&codedError{code: "UNKNOWN_SYMBOL"}))

	wrapped := fmt.Errorf("journal write of x: %w", &codedError{code: "TRANSPORT"})
	assert.Equal(t, "TRANSPORT", ErrorCode(wrapped))
}
