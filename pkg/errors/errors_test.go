package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "direct call error",
			err:  NewSignalingError("room mismatch", nil),
			want: KindSignaling,
		},
		{
			name: "wrapped call error",
			err:  fmt.Errorf("joining: %w", NewTimeoutError("no peer joined")),
			want: KindTimeout,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewPeerConnectionError("ice failed", nil)))
	assert.False(t, IsRetryable(NewExhaustedRetriesError(5, nil)))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("device busy")
	err := NewMediaError("acquire failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "MEDIA")
	assert.Contains(t, err.Error(), "device busy")
}
