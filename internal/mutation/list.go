package mutation

// Append returns a copy of the cached []T with item added. A missing or
// differently typed value starts a new list.
func Append[T any](current any, item T) any {
	list, _ := current.([]T)
	out := make([]T, 0, len(list)+1)
	out = append(out, list...)
	return append(out, item)
}

// Replace returns a copy of the cached []T with every element matching
// match replaced by item. Values that are not []T are returned unchanged.
func Replace[T any](current any, match func(T) bool, item T) any {
	list, ok := current.([]T)
	if !ok {
		return current
	}
	out := make([]T, len(list))
	for i, v := range list {
		if match(v) {
			v = item
		}
		out[i] = v
	}
	return out
}

// Remove returns a copy of the cached []T without the elements matching
// match. Values that are not []T are returned unchanged.
func Remove[T any](current any, match func(T) bool) any {
	list, ok := current.([]T)
	if !ok {
		return current
	}
	out := make([]T, 0, len(list))
	for _, v := range list {
		if !match(v) {
			out = append(out, v)
		}
	}
	return out
}
