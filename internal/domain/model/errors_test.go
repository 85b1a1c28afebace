package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(KindTranscode, "op", "msg", nil))

	cause := errors.New("boom")
	err := WrapError(KindTranscode, "compress", "transcoder failed", cause)
	assert.True(t, IsKind(err, KindTranscode))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[transcode:compress] transcoder failed: boom", err.Error())

	rewrapped := WrapError(KindOriginTransport, "fetch", "other", err)
	assert.Equal(t, KindTranscode, KindOf(rewrapped), "existing kinds are preserved")

	wrapped := fmt.Errorf("context: %w", NewError(KindSelfLoop, "proxy", "loop"))
	assert.Equal(t, KindSelfLoop, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(cause))
}
