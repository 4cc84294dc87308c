// Package imapparse converts IMAP wire bytes into typed values: a
// stream of server response events for a client, and complete
// client commands for a server or for round-trip testing.
//
// The package does no I/O. The driver feeds inbound bytes into a
// Buffer; when a production reads past the end of the buffered data
// the parser reports ErrNeedMoreData, the driver feeds more bytes,
// and the call is retried from a snapshot. Productions are
// side-effect-free except through cursor movement, so a restored
// snapshot makes the retry exact.
package imapparse

import (
	"errors"
)

// ErrNeedMoreData reports that the buffered bytes end before the
// current production could complete. The driver feeds more bytes
// and retries.
var ErrNeedMoreData = errors.New("imapparse: need more data")

// DefaultLineLimit bounds the bytes a single non-literal line may
// accumulate before parsing fails, protecting against a runaway
// peer.
const DefaultLineLimit = 1 << 20

// Buffer is a read-only random-access view over accumulated inbound
// bytes with a cursor.
//
// Spans returned by Take and TakeAvailable alias the buffer; they
// are valid until the next call to Compact.
type Buffer struct {
	data []byte
	pos  int

	// base is the stream offset of data[0], so positions survive
	// compaction.
	base int64
}

// Feed appends inbound bytes. The Buffer copies p.
func (b *Buffer) Feed(p []byte) {
	b.data = append(b.data, p...)
}

// Pos reports the cursor as a stream offset.
func (b *Buffer) Pos() int64 {
	return b.base + int64(b.pos)
}

// Snapshot captures the cursor for later Restore.
func (b *Buffer) Snapshot() int64 {
	return b.Pos()
}

// Restore rewinds the cursor to a snapshot. The snapshot must not
// predate the last Compact.
func (b *Buffer) Restore(snap int64) {
	pos := int(snap - b.base)
	if pos < 0 || pos > len(b.data) {
		panic("imapparse: Restore past compaction")
	}
	b.pos = pos
}

// Compact drops consumed bytes, invalidating outstanding spans and
// snapshots taken before the cursor.
func (b *Buffer) Compact() {
	if b.pos == 0 {
		return
	}
	n := copy(b.data, b.data[b.pos:])
	b.data = b.data[:n]
	b.base += int64(b.pos)
	b.pos = 0
}

// Buffered reports the number of unread bytes.
func (b *Buffer) Buffered() int {
	return len(b.data) - b.pos
}

// PeekByte reports the next byte without consuming it.
func (b *Buffer) PeekByte() (byte, error) {
	if b.pos >= len(b.data) {
		return 0, ErrNeedMoreData
	}
	return b.data[b.pos], nil
}

// ReadByte consumes and reports the next byte.
func (b *Buffer) ReadByte() (byte, error) {
	if b.pos >= len(b.data) {
		return 0, ErrNeedMoreData
	}
	c := b.data[b.pos]
	b.pos++
	return c, nil
}

// Advance consumes n bytes, which must be buffered.
func (b *Buffer) Advance(n int) {
	if b.pos+n > len(b.data) {
		panic("imapparse: Advance past end")
	}
	b.pos += n
}

// Take consumes exactly n bytes and reports them as a span aliasing
// the buffer.
func (b *Buffer) Take(n int) ([]byte, error) {
	if b.pos+n > len(b.data) {
		return nil, ErrNeedMoreData
	}
	s := b.data[b.pos : b.pos+n]
	b.pos += n
	return s, nil
}

// TakeAvailable consumes up to max buffered bytes, possibly zero.
func (b *Buffer) TakeAvailable(max int) []byte {
	n := len(b.data) - b.pos
	if n > max {
		n = max
	}
	s := b.data[b.pos : b.pos+n]
	b.pos += n
	return s
}

// TakeWhile consumes the run of bytes satisfying pred. It reports
// ErrNeedMoreData when the run reaches the end of the buffered
// bytes, because the run may continue in bytes not yet fed; a
// terminating byte must be in the buffer.
func (b *Buffer) TakeWhile(pred func(byte) bool) ([]byte, error) {
	i := b.pos
	for i < len(b.data) && pred(b.data[i]) {
		i++
	}
	if i == len(b.data) {
		return nil, ErrNeedMoreData
	}
	s := b.data[b.pos:i]
	b.pos = i
	return s, nil
}
