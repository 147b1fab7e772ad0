//go:build !debug

// Package debug provides build-tag gated assertion helpers. With the
// "debug" build tag absent (the default) every call is a no-op so release
// builds pay nothing for the invariants sprinkled through batch, cmn/cos
// and wire.
package debug

// Assert panics with the optional args if cond is false. No-op in release
// builds; flip it on with `-tags debug` while developing.
func Assert(_ bool, _ ...any) {}

// Assertf is Assert with a format string instead of free-form args.
func Assertf(_ bool, _ string, _ ...any) {}

// AssertNoErr panics if err is non-nil.
func AssertNoErr(_ error) {}

// AssertFunc defers the condition to avoid evaluating it outside of debug
// builds, for checks too expensive to run unconditionally.
func AssertFunc(_ func() bool, _ ...any) {}
