package ports

import "context"

// UnauthorizedInterceptor is invoked by the API client whenever the backend
// answers 401. It runs before the failing call returns to its caller.
type UnauthorizedInterceptor interface {
	HandleUnauthorized(ctx context.Context)
}

// InterceptorFunc adapts a function to UnauthorizedInterceptor.
type InterceptorFunc func(ctx context.Context)

func (f InterceptorFunc) HandleUnauthorized(ctx context.Context) { f(ctx) }

// Navigator sends the user to the sign-in entry point.
type Navigator interface {
	ToSignIn(ctx context.Context)
}
