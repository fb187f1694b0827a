package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormat(t *testing.T) {
	err := New(Discovery, "process failed")
	assert.Equal(t, "Discovery: process failed", err.Error())

	err = Newf(Sender, "device %d not found", 3)
	assert.Equal(t, "Response Sender: device 3 not found", err.Error())
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "Invalid Parameter", InvalidParameter.String())
	assert.Equal(t, "Json Response", JsonResponse.String())
	assert.Equal(t, "Events", Events.String())
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := New(Events, "no event receiver tasks started")

	assert.True(t, errors.Is(err, &Error{Kind: Events}))
	assert.False(t, errors.Is(err, &Error{Kind: Sender}))
}

func TestIsKindThroughWrapping(t *testing.T) {
	inner := New(Request, "connection refused")
	wrapped := fmt.Errorf("sending /on: %w", inner)

	assert.True(t, IsKind(wrapped, Request))
	assert.False(t, IsKind(wrapped, Discovery))
	assert.False(t, IsKind(errors.New("plain"), Request))
	assert.False(t, IsKind(nil, Request))
}
