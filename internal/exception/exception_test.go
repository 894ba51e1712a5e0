package exception

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewFetchError("kp_index", "request failed", cause, true)

	assert.Equal(t, "[kp_index] FetchError: request failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, err.IsRetryable())

	noCause := NewSchemaError("weather", "create table clima", nil)
	assert.Equal(t, "[weather] SchemaError: create table clima", noCause.Error())
}

func TestKindPredicates_FollowWrapping(t *testing.T) {
	wrapped := fmt.Errorf("cycle: %w", NewMalformedRecordError("kp_index", "time_tag missing", ErrNullKey))

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindMalformedRecord, kind)
	assert.True(t, IsMalformed(wrapped))
	assert.False(t, IsFetch(wrapped))
	assert.ErrorIs(t, wrapped, ErrNullKey)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestRetryableFlags(t *testing.T) {
	assert.True(t, IsRetryable(NewStoreError("store", "insert", nil)))
	assert.False(t, IsRetryable(NewSchemaError("store", "create", nil)))
	assert.False(t, IsRetryable(NewFetchError("device", "decode", nil, false)))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestExtractErrorMessage(t *testing.T) {
	assert.Equal(t, "", ExtractErrorMessage(nil))
	assert.Equal(t, "bad payload", ExtractErrorMessage(NewFetchError("weather", "bad payload", errors.New("eof"), false)))
	assert.Equal(t, "plain", ExtractErrorMessage(errors.New("plain")))
}
