package errx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = errors.New("do the thing")

func TestWrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(errSentinel, cause)

	assert.True(t, errors.Is(err, errSentinel))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "do the thing: boom", err.Error())
}

func TestWrap_NilCause(t *testing.T) {
	err := Wrap(errSentinel, nil)
	assert.Equal(t, errSentinel, err)
}

func TestWith(t *testing.T) {
	err := With(errSentinel, ": fd=%d path=%s", 7, "/tmp/x")

	assert.True(t, errors.Is(err, errSentinel))
	assert.Equal(t, "do the thing: fd=7 path=/tmp/x", err.Error())
}
