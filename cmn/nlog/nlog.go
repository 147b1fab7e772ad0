// Package nlog is JULEA's logger: leveled and safe for concurrent use. Modeled on the teacher's buffered/rotating nlog package but trimmed
// to a direct stderr writer — a single-process storage client/server has no
// multi-gigabyte-per-day log volume to manage the way a storage cluster
// node does.
package nlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var (
	mu     sync.Mutex
	out    io.Writer = os.Stderr
	minSev           = sevInfo
)

// SetOutput redirects all log output; tests use this to capture lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetLevel suppresses messages below the given severity name ("info",
// "warning", "error").
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	switch level {
	case "warning":
		minSev = sevWarn
	case "error":
		minSev = sevErr
	default:
		minSev = sevInfo
	}
}

func log(sev severity, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if sev < minSev {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(out, "%s %s %s\n", time.Now().UTC().Format(time.RFC3339Nano), sevTag(sev), msg)
}

func sevTag(sev severity) string {
	switch sev {
	case sevWarn:
		return "W"
	case sevErr:
		return "E"
	default:
		return "I"
	}
}

func Infof(format string, args ...any)    { log(sevInfo, format, args...) }
func Warningf(format string, args ...any) { log(sevWarn, format, args...) }
func Errorf(format string, args ...any)   { log(sevErr, format, args...) }

func Infoln(args ...any)    { log(sevInfo, "%s", fmt.Sprintln(args...)) }
func Warningln(args ...any) { log(sevWarn, "%s", fmt.Sprintln(args...)) }
func Errorln(args ...any)   { log(sevErr, "%s", fmt.Sprintln(args...)) }
