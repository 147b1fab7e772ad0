package cos

import "unsafe"

// UnsafeB reinterprets s as a byte slice without copying. Callers must not
// mutate the result and must not retain it past the lifetime of s.
func UnsafeB(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// UnsafeS reinterprets b as a string without copying. Callers must not
// mutate b afterward.
func UnsafeS(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}
