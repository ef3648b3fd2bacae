package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		err     ValidationError
		wantMsg string
	}{
		{
			name:    "with_value",
			err:     ValidationError{Field: "timeout", Value: 5, Message: "must be greater than 10"},
			wantMsg: "validation failed for field timeout (value: 5): must be greater than 10",
		},
		{
			name:    "without_value",
			err:     ValidationError{Field: "name", Message: "is required"},
			wantMsg: "validation failed for field name: is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestAttachErrorUnwrap(t *testing.T) {
	cause := errors.New("no such function")
	err := AttachError{ProgramName: "trace_tcp_sendmsg", AttachTarget: "tcp_sendmsg", Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "trace_tcp_sendmsg")
	assert.Contains(t, err.Error(), "tcp_sendmsg")
}

func TestMapErrorUnwrap(t *testing.T) {
	cause := errors.New("key not found")
	err := MapError{MapName: "net_counters", Operation: "lookup", Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "net_counters")
}
