//go:build windows

package sigpipe

// Ignore is a no-op on Windows: there is no SIGPIPE to ignore.
func Ignore() {}
