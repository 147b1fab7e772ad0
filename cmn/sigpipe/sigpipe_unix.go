//go:build !windows

// Package sigpipe ignores SIGPIPE so a write to a connection the peer has
// already closed surfaces as an EPIPE error return instead of killing the
// process outright — the behavior every other net.Conn-based Go server in
// the pack relies on implicitly (Go's runtime already ignores SIGPIPE for
// fd-backed writes; Ignore exists so main can say so explicitly and so a
// future cgo-backed backend sharing this process doesn't reintroduce it).
package sigpipe

import (
	"os/signal"

	"golang.org/x/sys/unix"
)

// Ignore discards SIGPIPE for the lifetime of the process.
func Ignore() {
	signal.Ignore(unix.SIGPIPE)
}
