package transport

// Middleware wraps a MessageCreator with cross-cutting behavior. The
// first middleware handed to Chain is the outermost wrapper.
type Middleware func(MessageCreator) MessageCreator

// Chain composes middleware so that Chain(a, b, c) yields
// a(b(c(creator))).
func Chain(middlewares ...Middleware) Middleware {
	return func(next MessageCreator) MessageCreator {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
