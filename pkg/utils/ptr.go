package utils

func SafeDeref[T any](ptr *T) T {
	if ptr == nil {
		var zero T
		return zero
	}
	return *ptr
}

func ToPtr[T any](v T) *T {
	return &v
}

// NilIfEmpty returns nil for an empty string.
func NilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
