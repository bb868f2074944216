package mutation

// Result is the settled outcome of a mutation: either a value or an error.
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] { return Result[T]{value: v} }

// Err wraps a failure.
func Err[T any](err error) Result[T] { return Result[T]{err: err} }

// Ok reports whether the mutation succeeded.
func (r Result[T]) Ok() bool { return r.err == nil }

// Value returns the server response, or the zero value on failure.
func (r Result[T]) Value() T { return r.value }

// Err returns the failure, or nil.
func (r Result[T]) Err() error { return r.err }

// Unwrap returns both halves for the usual Go error check.
func (r Result[T]) Unwrap() (T, error) { return r.value, r.err }
