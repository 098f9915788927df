package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New("base failure")
	assert.Equal(t, "base failure", err.Error())
	assert.Equal(t, 0, err.StatusCode())
	assert.Nil(t, err.Unwrap())
}

func TestMsgWrapsOriginal(t *testing.T) {
	base := New("connect failed").SetStatusCode(7)
	wrapped := base.Msg("during device query")

	assert.Equal(t, "during device query", wrapped.Error())
	assert.Equal(t, 7, wrapped.StatusCode())
	assert.True(t, errors.Is(wrapped, base))
}

func TestNewFromTemplate(t *testing.T) {
	base := New("timeout").SetStatusCode(3)
	derived := base.New("read timed out")

	assert.Equal(t, "read timed out", derived.Error())
	assert.Equal(t, 3, derived.StatusCode())
	assert.True(t, errors.Is(derived, base))
}

func TestErrAttachesErrors(t *testing.T) {
	base := New("dispatch failed")
	cause := errors.New("socket reset")
	err := base.Err(cause)

	assert.Equal(t, "dispatch failed", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.UnwrapAll(), cause)
}

func TestMsgErr(t *testing.T) {
	base := New("load failed").SetStatusCode(5)
	cause := errors.New("bad magic")
	err := base.MsgErr("module rejected", cause)

	assert.Equal(t, "module rejected", err.Error())
	assert.Equal(t, 5, err.StatusCode())
	assert.True(t, errors.Is(err, base))
	assert.True(t, errors.Is(err, cause))
}

func TestSetStatusCodeDoesNotMutate(t *testing.T) {
	base := New("oops")
	coded := base.SetStatusCode(42)

	assert.Equal(t, 0, base.StatusCode())
	assert.Equal(t, 42, coded.StatusCode())
}
