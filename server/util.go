package server

import "io"

// readFull reads exactly len(buf) bytes off conn: a write request's bulk
// payload, sent immediately after the frame body (see package wire's doc).
func readFull(r io.Reader, buf []byte) (int, error) {
	return io.ReadFull(r, buf)
}
