package imapclient

import (
	"io"

	"crawshaw.io/iox"

	"wingmail.dev/imap/imapwire"
)

// appendState is the APPEND sub-machine.
//
//	started -> awaitingLiteralContinuation -> streamingMessageBytes
//	        -> messageFinished -> (started, for multi-append)
//	        -> finished
//
// The CATENATE variant replaces the literal continuation with
// catenating, whose parts are URLs (no continuation) or data
// literals (continuation).
type appendState struct {
	tag string

	phase appendPhase

	// remaining counts unsent bytes of the current literal.
	remaining uint32
}

type appendPhase int

const (
	appendNone appendPhase = iota
	appendStarted
	appendAwaitingCont
	appendStreaming
	appendMsgFinished
	appendCatenating
	appendCatAwaitingCont
	appendCatStreaming
	appendFinished
)

func (s *Session) startAppend(part imapwire.StreamPart) (Send, error) {
	if len(s.inFlight) > 0 || s.waitingCont {
		s.queue = append(s.queue, part)
		return Send{Status: SendDeferred}, nil
	}
	send, err := s.encodeNow(part)
	if err != nil {
		return send, err
	}
	s.state = StateAppending
	s.appendSub = appendState{tag: part.Tag, phase: appendStarted}
	s.barrierTag = part.Tag
	s.inFlight = append(s.inFlight, inFlight{tag: part.Tag, name: "APPEND"})
	return send, nil
}

func (s *Session) sendAppendPart(part imapwire.StreamPart) (Send, error) {
	sub := &s.appendSub
	switch part.Kind {
	case imapwire.PartBeginMessage:
		if sub.phase != appendStarted && sub.phase != appendMsgFinished {
			return s.reject("beginMessage in append phase %d", sub.phase)
		}
		send, err := s.encodeNow(part)
		if err != nil {
			return send, err
		}
		sub.remaining = part.Size
		if s.waitingCont {
			sub.phase = appendAwaitingCont
		} else {
			sub.phase = appendStreaming
		}
		return send, nil

	case imapwire.PartMessageBytes:
		if sub.phase == appendAwaitingCont {
			return s.reject("messageBytes before the literal continuation")
		}
		if sub.phase != appendStreaming {
			return s.reject("messageBytes before beginMessage")
		}
		if uint32(len(part.Bytes)) > sub.remaining {
			return s.reject("messageBytes overruns the literal by %d bytes",
				uint32(len(part.Bytes))-sub.remaining)
		}
		send, err := s.encodeNow(part)
		if err == nil {
			sub.remaining -= uint32(len(part.Bytes))
		}
		return send, err

	case imapwire.PartEndMessage:
		if sub.phase != appendStreaming {
			return s.reject("endMessage outside a message literal")
		}
		if sub.remaining != 0 {
			return s.reject("endMessage with %d literal bytes unsent", sub.remaining)
		}
		send, err := s.encodeNow(part)
		if err == nil {
			sub.phase = appendMsgFinished
		}
		return send, err

	case imapwire.PartBeginCatenate:
		if sub.phase != appendStarted && sub.phase != appendMsgFinished {
			return s.reject("beginCatenate in append phase %d", sub.phase)
		}
		send, err := s.encodeNow(part)
		if err == nil {
			sub.phase = appendCatenating
		}
		return send, err

	case imapwire.PartCatenateURL:
		if sub.phase == appendCatAwaitingCont || sub.phase == appendCatStreaming {
			return s.reject("catenateURL in the middle of a data literal")
		}
		if sub.phase != appendCatenating {
			return s.reject("catenateURL outside CATENATE")
		}
		return s.encodeNow(part)

	case imapwire.PartCatenateBegin:
		if sub.phase != appendCatenating {
			return s.reject("catenate data outside CATENATE")
		}
		send, err := s.encodeNow(part)
		if err != nil {
			return send, err
		}
		sub.remaining = part.Size
		if s.waitingCont {
			sub.phase = appendCatAwaitingCont
		} else {
			sub.phase = appendCatStreaming
		}
		return send, nil

	case imapwire.PartCatenateBytes:
		if sub.phase == appendCatAwaitingCont {
			return s.reject("catenate bytes before the literal continuation")
		}
		if sub.phase != appendCatStreaming {
			return s.reject("catenate bytes outside a data literal")
		}
		if uint32(len(part.Bytes)) > sub.remaining {
			return s.reject("catenate bytes overrun the literal")
		}
		send, err := s.encodeNow(part)
		if err == nil {
			sub.remaining -= uint32(len(part.Bytes))
		}
		return send, err

	case imapwire.PartCatenateEnd:
		if sub.phase != appendCatStreaming {
			return s.reject("endCatenateData outside a data literal")
		}
		if sub.remaining != 0 {
			return s.reject("endCatenateData with %d literal bytes unsent", sub.remaining)
		}
		send, err := s.encodeNow(part)
		if err == nil {
			sub.phase = appendCatenating
		}
		return send, err

	case imapwire.PartEndCatenate:
		if sub.phase != appendCatenating {
			return s.reject("endCatenate outside CATENATE")
		}
		send, err := s.encodeNow(part)
		if err == nil {
			sub.phase = appendMsgFinished
		}
		return send, err

	case imapwire.PartAppendFinish:
		if sub.phase != appendMsgFinished {
			return s.reject("finish before a complete message")
		}
		send, err := s.encodeNow(part)
		if err == nil {
			sub.phase = appendFinished
		}
		return send, err
	}
	return s.reject("part kind %d during APPEND", part.Kind)
}

// appendContinuation advances the sub-machine on a continuation
// request. It reports false when the sub-machine was not waiting
// for one.
func (s *Session) appendContinuation() bool {
	sub := &s.appendSub
	switch sub.phase {
	case appendAwaitingCont:
		sub.phase = appendStreaming
		return true
	case appendCatAwaitingCont:
		sub.phase = appendCatStreaming
		return true
	}
	return false
}

// DefaultAppendChunkSize splits spooled messages into
// PartMessageBytes parts.
const DefaultAppendChunkSize = 1 << 16

// MessageParts builds the stream parts for one message of an
// APPEND from a spooled literal, the begin/bytes/end group ready
// for SendCommand. The file's contents are read from offset zero
// regardless of its seek position.
func MessageParts(opts imapwire.AppendOptions, f *iox.BufferFile, chunkSize int) ([]imapwire.StreamPart, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultAppendChunkSize
	}
	size := f.Size()
	parts := []imapwire.StreamPart{{
		Kind:    imapwire.PartBeginMessage,
		Options: opts,
		Size:    uint32(size),
	}}
	for off := int64(0); off < size; off += int64(chunkSize) {
		n := size - off
		if n > int64(chunkSize) {
			n = int64(chunkSize)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(io.NewSectionReader(f, off, n), buf); err != nil {
			return nil, err
		}
		parts = append(parts, imapwire.StreamPart{
			Kind:  imapwire.PartMessageBytes,
			Bytes: buf,
		})
	}
	return append(parts, imapwire.StreamPart{Kind: imapwire.PartEndMessage}), nil
}
