package store

// Option makes the possibly-absent secondary adapter explicit instead of
// spreading nil checks through the engine. A repository with no secondary
// bound still serves all reads and writes from the primary; health reporting
// distinguishes "unconfigured" from "unhealthy" through Option.
type Option[T any] struct {
	value T
	ok    bool
}

// Some wraps a present value.
func Some[T any](v T) Option[T] {
	return Option[T]{value: v, ok: true}
}

// None is the absent value.
func None[T any]() Option[T] {
	return Option[T]{}
}

// Get returns the value and whether it is present.
func (o Option[T]) Get() (T, bool) {
	return o.value, o.ok
}

// IsSome reports whether a value is present.
func (o Option[T]) IsSome() bool {
	return o.ok
}
