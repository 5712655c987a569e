package protocol

import (
	"context"
	"time"

	"github.com/orrerysim/orrery/internal/core/observability/log"
)

// WithLogging logs every handled command with its outcome and latency.
// Refusals log at warn so a scan of the log surfaces misbehaving clients.
func WithLogging(logger log.Log) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) *Response {
			start := time.Now()
			resp := next(ctx, req)

			fields := []log.Field{
				log.String("cmd", req.Cmd),
				log.Duration("elapsed", time.Since(start)),
			}
			if resp.OK {
				logger.Debug("Command handled", fields...)
			} else {
				logger.Warn("Command refused", append(fields, log.String("msg", resp.Msg))...)
			}
			return resp
		}
	}
}

// WithRecovery converts a handler panic into an internal error reply so one
// malformed command cannot take the endpoint down.
func WithRecovery(logger log.Log) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (resp *Response) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Handler panicked",
						log.String("cmd", req.Cmd),
						log.Any("panic", r))
					resp = Failure(ErrInternalError.Error())
				}
			}()
			return next(ctx, req)
		}
	}
}
