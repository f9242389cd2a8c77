// Package trace lets callers observe, modify or cancel statements around
// their execution.
package trace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Default keys used by the operations unless overridden.
const (
	KeyQuery           = "Query"
	KeyBatchQuery      = "BatchQuery"
	KeySkipQuery       = "SkipQuery"
	KeyCount           = "Count"
	KeyMin             = "Min"
	KeyMax             = "Max"
	KeySum             = "Sum"
	KeyAverage         = "Average"
	KeyUpdate          = "Update"
	KeyDelete          = "Delete"
	KeyInsert          = "Insert"
	KeyExists          = "Exists"
	KeyExecuteQuery    = "ExecuteQuery"
	KeyExecuteNonQuery = "ExecuteNonQuery"
	KeyExecuteScalar   = "ExecuteScalar"
)

// ErrCancelled is matched by every CancelledError.
var ErrCancelled = errors.New("trace: operation cancelled")

// CancelledError is returned when a trace cancels with throw set.
type CancelledError struct {
	Key       string
	Statement string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("trace: %s cancelled by BeforeExecution", e.Key)
}

// Is reports ErrCancelled as a match.
func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

// Trace observes statement execution.
type Trace interface {
	// BeforeExecution runs before the statement is sent. It may change the
	// statement or parameters, or cancel the call.
	BeforeExecution(ctx context.Context, log *CancellableLog)
	// AfterExecution runs once the statement completed or failed.
	AfterExecution(ctx context.Context, log *ResultLog)
}

// CancellableLog is passed to BeforeExecution.
type CancellableLog struct {
	SessionID  uuid.UUID
	Key        string
	Statement  string
	Parameters []any
	StartTime  time.Time

	cancelled bool
	throw     bool
}

// NewCancellableLog starts a new session.
func NewCancellableLog(key, statement string, params []any) *CancellableLog {
	return &CancellableLog{
		SessionID:  uuid.New(),
		Key:        key,
		Statement:  statement,
		Parameters: params,
		StartTime:  time.Now(),
	}
}

// Cancel stops the operation. With throw the caller gets a
// *CancelledError, otherwise the zero result and no error.
func (l *CancellableLog) Cancel(throw bool) {
	l.cancelled = true
	l.throw = l.throw || throw
}

// IsCancelled reports whether Cancel was called.
func (l *CancellableLog) IsCancelled() bool { return l.cancelled }

// IsThrowing reports whether the cancellation surfaces as an error.
func (l *CancellableLog) IsThrowing() bool { return l.throw }

// Err returns the cancellation error, if any.
func (l *CancellableLog) Err() error {
	if l.cancelled && l.throw {
		return &CancelledError{Key: l.Key, Statement: l.Statement}
	}
	return nil
}

// ResultLog is passed to AfterExecution.
type ResultLog struct {
	SessionID     uuid.UUID
	Key           string
	Statement     string
	Parameters    []any
	Result        any
	Err           error
	StartTime     time.Time
	ExecutionTime time.Duration
}

// NewResultLog closes the session started by before.
func NewResultLog(before *CancellableLog, result any, err error) *ResultLog {
	return &ResultLog{
		SessionID:     before.SessionID,
		Key:           before.Key,
		Statement:     before.Statement,
		Parameters:    before.Parameters,
		Result:        result,
		Err:           err,
		StartTime:     before.StartTime,
		ExecutionTime: time.Since(before.StartTime),
	}
}

// Funcs adapts plain functions to Trace. Nil funcs are skipped.
type Funcs struct {
	Before func(ctx context.Context, log *CancellableLog)
	After  func(ctx context.Context, log *ResultLog)
}

func (f Funcs) BeforeExecution(ctx context.Context, log *CancellableLog) {
	if f.Before != nil {
		f.Before(ctx, log)
	}
}

func (f Funcs) AfterExecution(ctx context.Context, log *ResultLog) {
	if f.After != nil {
		f.After(ctx, log)
	}
}

// chain fans out to several traces.
type chain []Trace

// Chain combines traces. Before hooks run in order and stop at the first
// cancellation; after hooks run in reverse order.
func Chain(traces ...Trace) Trace {
	var c chain
	for _, t := range traces {
		switch v := t.(type) {
		case nil:
		case chain:
			c = append(c, v...)
		default:
			c = append(c, v)
		}
	}
	switch len(c) {
	case 0:
		return nil
	case 1:
		return c[0]
	}
	return c
}

func (c chain) BeforeExecution(ctx context.Context, log *CancellableLog) {
	for _, t := range c {
		t.BeforeExecution(ctx, log)
		if log.IsCancelled() {
			return
		}
	}
}

func (c chain) AfterExecution(ctx context.Context, log *ResultLog) {
	for i := len(c) - 1; i >= 0; i-- {
		c[i].AfterExecution(ctx, log)
	}
}
