// Package exception defines the error kinds raised while ingesting feeds.
//
// Every error that crosses a component boundary is an *IngestError carrying its
// Kind, the feed or component it came from and the wrapped cause. The
// orchestrator uses the kind to decide whether a failure aborts only the
// current feed step or excludes a single record.
package exception

import (
	"errors"
	"fmt"
)

// Kind classifies an IngestError.
type Kind string

const (
	// KindFetch marks a Record Source that was unreachable or returned a malformed payload.
	KindFetch Kind = "FetchError"
	// KindSchema marks a failed table creation.
	KindSchema Kind = "SchemaError"
	// KindMalformedRecord marks a record whose key is missing or unparseable.
	KindMalformedRecord Kind = "MalformedRecordError"
	// KindStore marks a failed read, insert or update against the Keyed Store.
	KindStore Kind = "StoreError"
	// KindConfig marks invalid configuration.
	KindConfig Kind = "ConfigError"
)

var (
	// ErrNullKey is the cause attached to records whose key field is empty.
	ErrNullKey = errors.New("record key is null")
	// ErrDeviceSnapshotMissing is returned when the weather feed runs before any device snapshot exists.
	ErrDeviceSnapshotMissing = errors.New("device snapshot is missing")
)

// IngestError is the error type shared by all ingestion components.
type IngestError struct {
	// Kind is the error classification.
	Kind Kind
	// Module is the feed or component where the error occurred (e.g. "kp_index", "store").
	Module string
	// Message is a concise description of the failure.
	Message string
	// OriginalErr is the wrapped cause.
	OriginalErr error

	retryable bool
}

func newError(kind Kind, module, message string, err error, retryable bool) *IngestError {
	return &IngestError{
		Kind:        kind,
		Module:      module,
		Message:     message,
		OriginalErr: err,
		retryable:   retryable,
	}
}

// NewFetchError creates a FetchError. retryable marks transport failures and
// upstream 5xx responses; nothing inside a cycle retries, the flag only feeds logs and metrics.
func NewFetchError(module, message string, err error, retryable bool) *IngestError {
	return newError(KindFetch, module, message, err, retryable)
}

// NewSchemaError creates a SchemaError.
func NewSchemaError(module, message string, err error) *IngestError {
	return newError(KindSchema, module, message, err, false)
}

// NewMalformedRecordError creates a MalformedRecordError.
func NewMalformedRecordError(module, message string, err error) *IngestError {
	return newError(KindMalformedRecord, module, message, err, false)
}

// NewStoreError creates a StoreError.
func NewStoreError(module, message string, err error) *IngestError {
	return newError(KindStore, module, message, err, true)
}

// NewConfigError creates a ConfigError.
func NewConfigError(module, message string, err error) *IngestError {
	return newError(KindConfig, module, message, err, false)
}

// Error implements the error interface.
func (e *IngestError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Module, e.Kind, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Module, e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *IngestError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable reports whether the next cycle is likely to succeed where this one failed.
func (e *IngestError) IsRetryable() bool {
	return e.retryable
}

// KindOf returns the Kind of the first IngestError in err's chain.
func KindOf(err error) (Kind, bool) {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Kind, true
	}
	return "", false
}

// IsKind reports whether err's chain contains an IngestError of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsFetch reports whether err is a FetchError.
func IsFetch(err error) bool { return IsKind(err, KindFetch) }

// IsSchema reports whether err is a SchemaError.
func IsSchema(err error) bool { return IsKind(err, KindSchema) }

// IsMalformed reports whether err is a MalformedRecordError.
func IsMalformed(err error) bool { return IsKind(err, KindMalformedRecord) }

// IsStore reports whether err is a StoreError.
func IsStore(err error) bool { return IsKind(err, KindStore) }

// IsRetryable reports whether err is an IngestError flagged retryable.
func IsRetryable(err error) bool {
	var ie *IngestError
	return errors.As(err, &ie) && ie.IsRetryable()
}

// ExtractErrorMessage returns the Message of an IngestError, or err.Error() otherwise.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Message
	}
	return err.Error()
}
