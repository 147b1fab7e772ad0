// Package wire implements the framed request/reply protocol (C2): a fixed
// 20-byte header, an optional namespace prefix, a run of fixed-shape
// sub-operation records, and — for writes — attached bulk payload written
// immediately after the body. Reads stream their bulk payload back to the
// caller directly off the connection (see object.Client), so it never
// passes through a Message buffer.
package wire

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/SpaceCafe/julea/cmn/cos"
	"github.com/SpaceCafe/julea/cmn/debug"
	"github.com/SpaceCafe/julea/semantics"
)

// Message is a single frame, either outbound (being built with Append*/
// AddOperation) or inbound (being consumed with Get*). It is not safe for
// concurrent use; one goroutine owns a Message for its full lifetime.
type Message struct {
	op    Op
	flags uint32
	count uint32

	body []byte // namespace + sub-op records, excluding attached bulk
	bulk [][]byte

	cursor int // reply-side read position into body
}

// New allocates a frame for op carrying namespace, reserving capacityHint
// bytes for the sub-op records that follow.
func New(op Op, namespace string, capacityHint int) *Message {
	m := &Message{op: op, body: make([]byte, 0, capacityHint+len(namespace)+1)}
	m.body = append(m.body, namespace...)
	m.body = append(m.body, 0)
	return m
}

// NewReply allocates an empty outbound frame carrying request's op kind,
// with no namespace prefix; the server builds its reply in it. Incoming
// frames are not read into it: Receive allocates its own Message.
func NewReply(request *Message) *Message {
	return &Message{op: request.op, body: make([]byte, 0, 64)}
}

func (m *Message) Op() Op          { return m.op }
func (m *Message) Flags() uint32   { return m.flags }
func (m *Message) Count() uint32   { return m.count }
func (m *Message) BodyLen() int    { return len(m.body) }
func (m *Message) HasSafety(f uint32) bool { return m.flags&f != 0 }

// AppendN appends raw bytes to the current sub-op payload.
func (m *Message) AppendN(b []byte) { m.body = append(m.body, b...) }

// Append4 appends a little-endian uint32.
func (m *Message) Append4(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	m.body = append(m.body, b[:]...)
}

// Append8 appends a little-endian uint64.
func (m *Message) Append8(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	m.body = append(m.body, b[:]...)
}

// AddOperation closes the previous sub-op and opens a new one, incrementing
// Count. The subopLen argument is accepted but not used: it is neither
// stored nor checked against the bytes actually appended.
func (m *Message) AddOperation(_ uint32) {
	m.count++
}

// AddSend attaches an out-of-band bulk region (a write's payload bytes) to
// be transmitted immediately after the frame body. Regions are sent in the
// order they were added.
func (m *Message) AddSend(buf []byte) {
	m.bulk = append(m.bulk, buf)
}

// SetSafety sets the flag bits requesting a reply at sem's safety level.
func (m *Message) SetSafety(sem *semantics.Semantics) {
	switch sem.Safety() {
	case semantics.SafetyStorage:
		m.flags |= SafetyStorage
	case semantics.SafetyNetwork:
		m.flags |= SafetyNetwork
	}
}

// ForceReply sets the network-reply flag regardless of the caller's own
// safety axis. Create and status requests always need a reply to know the
// operation was accepted, independent of the batch's configured safety
// (spec §4.9).
func (m *Message) ForceReply() { m.flags |= SafetyNetwork }

// Send writes header, body and any attached bulk regions as a single
// logical frame. Callers must serialize concurrent Sends on the same
// connection themselves (the connection pool hands out one connection per
// caller, so this is naturally satisfied).
func (m *Message) Send(w io.Writer) error {
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], Magic)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(m.op))
	binary.LittleEndian.PutUint32(hdr[8:12], m.flags)
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(len(m.body)))
	binary.LittleEndian.PutUint32(hdr[16:20], m.count)

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "wire: send header")
	}
	if _, err := bw.Write(m.body); err != nil {
		return errors.Wrap(err, "wire: send body")
	}
	for _, region := range m.bulk {
		if _, err := bw.Write(region); err != nil {
			return errors.Wrap(err, "wire: send bulk region")
		}
	}
	return bw.Flush()
}

// maxBodySize bounds a single frame's declared body length, guarding
// against a corrupt or adversarial length field driving an unbounded
// allocation.
const maxBodySize = 64 << 20

// Receive reads one frame's header and body from r. Bulk payload (read
// replies' returned bytes, write requests' attached regions) is left on
// the stream for the caller to consume directly — see package doc.
func Receive(r io.Reader) (*Message, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.Wrap(err, "wire: short read on header")
	}
	magic := binary.LittleEndian.Uint32(hdr[0:4])
	if magic != Magic {
		return nil, errors.Errorf("wire: bad magic %#x", magic)
	}
	m := &Message{
		op:    Op(binary.LittleEndian.Uint32(hdr[4:8])),
		flags: binary.LittleEndian.Uint32(hdr[8:12]),
		count: binary.LittleEndian.Uint32(hdr[16:20]),
	}
	length := binary.LittleEndian.Uint32(hdr[12:16])
	if length > maxBodySize {
		return nil, errors.Errorf("wire: declared body length %d exceeds cap", length)
	}
	m.body = make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, m.body); err != nil {
			return nil, errors.Wrap(err, "wire: short read on body")
		}
	}
	return m, nil
}

// Namespace returns the null-terminated namespace prefix and advances the
// cursor past it. Must be the first reply-side accessor called.
func (m *Message) Namespace() string {
	i := 0
	for i < len(m.body) && m.body[i] != 0 {
		i++
	}
	ns := cos.UnsafeS(m.body[:i])
	m.cursor = i + 1
	return ns
}

func (m *Message) Get4() uint32 {
	debug.Assert(m.cursor+4 <= len(m.body), "wire: Get4 past end of body")
	v := binary.LittleEndian.Uint32(m.body[m.cursor:])
	m.cursor += 4
	return v
}

func (m *Message) Get8() uint64 {
	debug.Assert(m.cursor+8 <= len(m.body), "wire: Get8 past end of body")
	v := binary.LittleEndian.Uint64(m.body[m.cursor:])
	m.cursor += 8
	return v
}

// GetN returns a slice of length n directly into the message's own buffer
// (no copy); its lifetime is that of the Message.
func (m *Message) GetN(n int) []byte {
	debug.Assert(m.cursor+n <= len(m.body), "wire: GetN past end of body")
	b := m.body[m.cursor : m.cursor+n]
	m.cursor += n
	return b
}

// GetCString reads a null-terminated string starting at the cursor.
func (m *Message) GetCString() string {
	start := m.cursor
	for m.cursor < len(m.body) && m.body[m.cursor] != 0 {
		m.cursor++
	}
	s := cos.UnsafeS(m.body[start:m.cursor])
	m.cursor++ // skip NUL
	return s
}

// AppendCString appends s followed by a NUL terminator.
func (m *Message) AppendCString(s string) {
	m.body = append(m.body, s...)
	m.body = append(m.body, 0)
}

// Remaining reports whether unread bytes remain in the body.
func (m *Message) Remaining() int { return len(m.body) - m.cursor }
