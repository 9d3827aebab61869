package transport

import (
	"context"

	"github.com/kirogate/kirogate/pkg/api"
)

// Recovery converts handler panics into API errors so one bad request
// cannot take the gateway down.
func Recovery() Middleware {
	return func(next MessageCreator) MessageCreator {
		return MessageCreatorFunc(func(ctx context.Context, req *api.MessagesRequest, w ResponseWriter) (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					retErr = api.NewAPIErrorf("internal server error: %v", r)
				}
			}()
			return next.CreateMessage(ctx, req, w)
		})
	}
}
