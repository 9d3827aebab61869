package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirogate/kirogate/pkg/api"
)

// Logging returns middleware that logs one line per message request:
// request ID, model, streaming mode, duration, and the error when the
// request failed. HTTP-level detail (status, path) belongs to the
// adapter's middleware, not here.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next MessageCreator) MessageCreator {
		return MessageCreatorFunc(func(ctx context.Context, req *api.MessagesRequest, w ResponseWriter) error {
			start := time.Now()

			err := next.CreateMessage(ctx, req, w)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("model", req.Model),
				slog.Bool("stream", req.Stream),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "request failed", attrs...)
				return err
			}
			logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			return nil
		})
	}
}
