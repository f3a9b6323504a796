package datasource

// Result is either a value or empty. Loader methods return Empty instead of
// an error when a resource cannot be read, so callers can render what
// loaded and fill in the rest.
type Result[T any] struct {
	value T
	ok    bool
}

// Ok wraps a value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Empty returns the empty result.
func Empty[T any]() Result[T] {
	return Result[T]{}
}

// Get returns the value and whether it is present.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.ok
}

// IsEmpty reports whether r holds no value.
func (r Result[T]) IsEmpty() bool {
	return !r.ok
}

// OrElse returns the value or fallback when empty.
func (r Result[T]) OrElse(fallback T) T {
	if !r.ok {
		return fallback
	}
	return r.value
}
