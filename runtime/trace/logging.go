package trace

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns a trace that logs every statement to logger at debug
// level and failures at error level.
func Logging(logger *slog.Logger) Trace {
	return Funcs{
		Before: func(ctx context.Context, log *CancellableLog) {
			logger.DebugContext(ctx, "Executing statement",
				"session", log.SessionID, "key", log.Key, "sql", log.Statement, "args", len(log.Parameters))
		},
		After: func(ctx context.Context, log *ResultLog) {
			if log.Err != nil {
				logger.ErrorContext(ctx, "Statement failed",
					"session", log.SessionID, "key", log.Key, "error", log.Err, "duration", log.ExecutionTime)
				return
			}
			logger.DebugContext(ctx, "Statement completed",
				"session", log.SessionID, "key", log.Key, "duration", log.ExecutionTime)
		},
	}
}

// Timing returns a trace that reports every execution time.
func Timing(onTiming func(key string, d time.Duration)) Trace {
	return Funcs{
		After: func(_ context.Context, log *ResultLog) {
			onTiming(log.Key, log.ExecutionTime)
		},
	}
}

// Errors returns a trace that reports failed executions.
func Errors(onError func(key string, err error)) Trace {
	return Funcs{
		After: func(_ context.Context, log *ResultLog) {
			if log.Err != nil {
				onError(log.Key, log.Err)
			}
		},
	}
}
