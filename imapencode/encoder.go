// Package imapencode renders client commands to IMAP wire bytes.
//
// Output is produced as a sequence of chunks. A chunk boundary
// occurs exactly where a synchronising literal header has been
// written: the caller transmits the chunk, waits for the server's
// continuation request, and only then transmits the next chunk.
// With LITERAL+ enabled there are no boundaries and every command
// renders as one chunk.
package imapencode

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"

	"wingmail.dev/imap/imapwire"
)

// Chunk is one transmission unit.
type Chunk struct {
	Bytes []byte

	// WaitForContinuation means a synchronising literal header
	// ends the chunk and the server must acknowledge before the
	// next chunk may be sent.
	WaitForContinuation bool
}

// Options configures encoding.
type Options struct {
	// NonSyncLiteral uses {n+} literals (server advertised
	// LITERAL+ or LITERAL-), eliminating continuation round trips.
	NonSyncLiteral bool

	// QuotedString prefers the quoted form over the atom form for
	// astring values. Either way, values that cannot be quoted
	// fall back to literals.
	QuotedString bool

	// SASLIR sends the AUTHENTICATE initial response inline
	// (RFC 4959).
	SASLIR bool

	// Capabilities lists server capabilities that gate
	// extension-specific syntax, upper-case.
	Capabilities map[string]bool
}

func (o *Options) has(capability string) bool {
	return o.Capabilities[capability]
}

// maxQuotedLen bounds the quoted string form; longer values become
// literals.
const maxQuotedLen = 4096

// Encode renders one stream part.
//
// The final chunk of a complete command never has
// WaitForContinuation set; a mid-command literal always has its
// body and the rest of the command in subsequent chunks. APPEND
// sub-parts are the exception: PartBeginMessage ends at its literal
// header, and its chunk waits for the continuation that permits the
// PartMessageBytes that follow.
func Encode(part imapwire.StreamPart, opts Options) ([]Chunk, error) {
	return NewEncoder(opts).Encode(part)
}

// Encoder renders a session's outbound stream. It is stateful only
// across the sub-parts of one APPEND CATENATE group, where wire
// separators depend on position.
type Encoder struct {
	opts Options

	// catenateSep is set once a catenate part has been written,
	// so the next part gets a leading space.
	catenateSep bool
}

func NewEncoder(opts Options) *Encoder {
	return &Encoder{opts: opts}
}

// Encode renders one stream part as chunks.
func (enc *Encoder) Encode(part imapwire.StreamPart) ([]Chunk, error) {
	e := &encoder{opts: enc.opts, enc: enc}
	if err := e.part(part); err != nil {
		return nil, err
	}
	return e.finish(), nil
}

type encoder struct {
	opts   Options
	enc    *Encoder
	chunks []Chunk
	buf    bytes.Buffer
}

func (e *encoder) finish() []Chunk {
	if e.buf.Len() > 0 {
		e.chunks = append(e.chunks, Chunk{Bytes: append([]byte(nil), e.buf.Bytes()...)})
		e.buf.Reset()
	}
	return e.chunks
}

// breakChunk closes the current chunk at a synchronising literal
// boundary.
func (e *encoder) breakChunk() {
	e.chunks = append(e.chunks, Chunk{
		Bytes:               append([]byte(nil), e.buf.Bytes()...),
		WaitForContinuation: true,
	})
	e.buf.Reset()
}

func (e *encoder) raw(s string)      { e.buf.WriteString(s) }
func (e *encoder) rawBytes(b []byte) { e.buf.Write(b) }
func (e *encoder) sp()               { e.buf.WriteByte(' ') }
func (e *encoder) crlf()             { e.buf.WriteString("\r\n") }
func (e *encoder) number(v uint32)   { e.buf.WriteString(strconv.FormatUint(uint64(v), 10)) }
func (e *encoder) number64(v uint64) { e.buf.WriteString(strconv.FormatUint(v, 10)) }

func (e *encoder) modseq(v imapwire.ModSeq) {
	e.buf.WriteString(strconv.FormatInt(int64(v), 10))
}

// literalHeader writes the {n} or {n+} marker and CRLF, breaking
// the chunk when the literal is synchronising.
func (e *encoder) literalHeader(n int) {
	e.buf.WriteByte('{')
	e.buf.WriteString(strconv.Itoa(n))
	if e.opts.NonSyncLiteral {
		e.buf.WriteByte('+')
	}
	e.buf.WriteByte('}')
	e.crlf()
	if !e.opts.NonSyncLiteral {
		e.breakChunk()
	}
}

func isAtom(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !imapwire.IsAtomChar(s[i]) {
			return false
		}
	}
	return true
}

func canQuote(s string) bool {
	if len(s) > maxQuotedLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b == '\r' || b == '\n' || !is7bitPrint(b) {
			return false
		}
	}
	return true
}

func is7bitPrint(b byte) bool {
	return b >= 0x20 && b <= 0x7e
}

func (e *encoder) quoted(s string) {
	e.buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if b := s[i]; b == '"' || b == '\\' {
			e.buf.WriteByte('\\')
		}
		e.buf.WriteByte(s[i])
	}
	e.buf.WriteByte('"')
}

func (e *encoder) literal(s string) {
	e.literalHeader(len(s))
	e.raw(s)
}

// astring chooses among the atom, quoted, and literal forms.
// Atom is preferred, quoted next, unless Options.QuotedString flips
// the first two.
func (e *encoder) astring(s string) {
	switch {
	case e.opts.QuotedString && canQuote(s):
		e.quoted(s)
	case isAtom(s):
		e.raw(s)
	case canQuote(s):
		e.quoted(s)
	default:
		e.literal(s)
	}
}

// string_ is the plain string production: quoted or literal, never
// atom.
func (e *encoder) string_(s string) {
	if canQuote(s) {
		e.quoted(s)
	} else {
		e.literal(s)
	}
}

func (e *encoder) nstring(n imapwire.NString) {
	if n.IsNil() {
		e.raw("NIL")
		return
	}
	e.string_(string(n))
}

func (e *encoder) mailbox(m imapwire.MailboxName) {
	e.astring(string(m))
}

func (e *encoder) flags(flags []imapwire.Flag) {
	e.buf.WriteByte('(')
	for i, f := range flags {
		if i > 0 {
			e.sp()
		}
		e.raw(string(f))
	}
	e.buf.WriteByte(')')
}

func (e *encoder) seqs(seqs []imapwire.SeqRange) {
	imapwire.FormatSeqs(&e.buf, seqs)
}

func (e *encoder) numSet(set imapwire.NumSet) {
	if set.SavedResult {
		e.buf.WriteByte('$')
		return
	}
	e.seqs(set.Seqs)
}

func (e *encoder) date(d imapwire.Date) {
	e.raw(d.String())
}

func (e *encoder) internalDate(d imapwire.InternalDate) {
	e.buf.WriteByte('"')
	e.raw(d.String())
	e.buf.WriteByte('"')
}

func (e *encoder) base64(data []byte) {
	n := base64.StdEncoding.EncodedLen(len(data))
	e.buf.Grow(n)
	enc := base64.NewEncoder(base64.StdEncoding, &e.buf)
	enc.Write(data)
	enc.Close()
}

func (e *encoder) part(part imapwire.StreamPart) error {
	switch part.Kind {
	case imapwire.PartCommand:
		return e.command(part.Command)

	case imapwire.PartAppendStart:
		if err := imapwire.CheckTag(part.Tag); err != nil {
			return err
		}
		e.raw(part.Tag)
		e.sp()
		e.raw("APPEND")
		e.sp()
		e.mailbox(part.Mailbox)
		return nil

	case imapwire.PartBeginMessage:
		e.appendOptions(part.Options)
		e.sp()
		e.literalHeader(int(part.Size))
		return nil

	case imapwire.PartMessageBytes, imapwire.PartCatenateBytes, imapwire.PartBytes:
		e.rawBytes(part.Bytes)
		return nil

	case imapwire.PartEndMessage:
		// The literal body carries no terminator of its own; the
		// APPEND line continues (multi-append) or finishes.
		return nil

	case imapwire.PartBeginCatenate:
		e.appendOptions(part.Options)
		e.sp()
		e.raw("CATENATE (")
		e.enc.catenateSep = false
		return nil

	case imapwire.PartCatenateURL:
		if e.enc.catenateSep {
			e.sp()
		}
		e.enc.catenateSep = true
		e.raw("URL")
		e.sp()
		e.astring(part.URL)
		return nil

	case imapwire.PartCatenateBegin:
		if e.enc.catenateSep {
			e.sp()
		}
		e.enc.catenateSep = true
		e.raw("TEXT")
		e.sp()
		e.literalHeader(int(part.Size))
		return nil

	case imapwire.PartCatenateEnd:
		return nil

	case imapwire.PartEndCatenate:
		e.raw(")")
		return nil

	case imapwire.PartAppendFinish:
		e.crlf()
		return nil

	case imapwire.PartIdleDone:
		e.raw("DONE")
		e.crlf()
		return nil

	case imapwire.PartContinuationResponse:
		if part.Bytes != nil {
			e.base64(part.Bytes)
		}
		e.crlf()
		return nil
	}
	return fmt.Errorf("imapencode: unknown stream part kind %d", part.Kind)
}

func (e *encoder) appendOptions(opts imapwire.AppendOptions) {
	if len(opts.Flags) > 0 {
		e.sp()
		e.flags(opts.Flags)
	}
	if opts.InternalDate != 0 {
		e.sp()
		e.internalDate(opts.InternalDate)
	}
}
