package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// timeoutErr satisfies net.Error with Timeout() true.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: deadline exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient 503", NewTransientError(errors.New("status 503"), 503), true},
		{"transient wrapped deep", fmt.Errorf("fetch page: %w", NewTransientError(errors.New("status 429"), 429)), true},
		{"transient under eris", eris.Wrap(NewTransientError(errors.New("status 502"), 502), "catalog: delta page"), true},
		{"net timeout", timeoutErr{}, true},
		{"connection refused errno", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"reset by peer text", errors.New("read tcp: connection reset by peer"), true},
		{"dns text", errors.New("lookup vendor.example: no such host"), true},
		{"plain validation", errors.New("apn is required"), false},
		{"status 404", errors.New("status 404"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("status 503")
	te := NewTransientError(inner, 503)

	assert.Equal(t, "status 503", te.Error())
	assert.True(t, errors.Is(te, inner))

	var got *TransientError
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", te), &got))
	assert.Equal(t, 503, got.StatusCode)
}
