package object

import "io"

// readFullFrom reads exactly len(buf) bytes from r, the bulk payload a read
// reply streams directly off the connection (never buffered inside a
// wire.Message — see package wire's doc comment).
func readFullFrom(r io.Reader, buf []byte) (int, error) {
	return io.ReadFull(r, buf)
}
