package querysync

// Codec converts between a domain value and the query parameters of a URL.
//
// Decode must be total: query strings it cannot make sense of decode to a
// documented default instead of failing. Encode receives the live parameters
// of the current URL and returns the parameters of the next one; it may keep,
// change or drop keys it does not own.
//
// For every value v, Decode(Encode(v, nil)) must equal v.
type Codec[T any] struct {
	Decode func(Values) T
	Encode func(value T, current Values) Values
}

// Transform converts a single parameter. Decode receives ok=false when the
// key is absent; Encode returns ok=false to remove the key.
type Transform[T any] struct {
	Decode func(raw string, ok bool) T
	Encode func(value T) (raw string, ok bool)
}

// Param adapts a single-key transform into a Codec for key. Other keys are
// left untouched.
func Param[T any](key string, t Transform[T]) Codec[T] {
	return Codec[T]{
		Decode: func(v Values) T {
			return t.Decode(v.Lookup(key))
		},
		Encode: func(value T, current Values) Values {
			raw, ok := t.Encode(value)
			if !ok {
				current.Del(key)
			} else {
				current.Set(key, raw)
			}
			return current
		},
	}
}
