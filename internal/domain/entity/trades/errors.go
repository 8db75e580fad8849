package trades

import (
	"errors"
	"fmt"
)

// ErrBatchOutOfOrder is returned when a fetched batch is not newest-first.
var ErrBatchOutOfOrder = errors.New("trade batch is not in reverse-chronological order")

// FailureKind classifies transport failures of the feed and the chat sink.
type FailureKind string

const (
	FailureNetwork       FailureKind = "network"
	FailureHTTPStatus    FailureKind = "http_status"
	FailureMalformedBody FailureKind = "malformed_body"
)

// FetchError is returned by the trade feed.
type FetchError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FailureHTTPStatus {
		return fmt.Sprintf("fetch trades: unexpected status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch trades: %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DeliveryError is returned by a notification sink for a single message.
type DeliveryError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Kind == FailureHTTPStatus {
		return fmt.Sprintf("deliver notification: unexpected status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("deliver notification: %s: %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// StoreError wraps watermark persistence failures.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("watermark %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
