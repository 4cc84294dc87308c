// Package imapclient sequences one IMAP session: outbound commands,
// inbound response events, continuation requests, and the
// APPEND/AUTHENTICATE/IDLE sub-machines, so that a driver cannot
// push the protocol into an illegal state.
//
// The Session does no I/O and holds no locks: it is driven by a
// single goroutine that owns the connection. Outbound, the driver
// calls SendCommand and transmits the returned chunks; inbound, it
// feeds parser events to ReceiveResponse and surfaces the delivered
// ones.
package imapclient

import (
	"fmt"

	"wingmail.dev/imap/imapencode"
	"wingmail.dev/imap/imapparse"
	"wingmail.dev/imap/imapwire"
)

// State is the top-level session state.
type State int

const (
	// StateIdle is the zero value: created, greeting not yet read.
	StateIdle State = iota
	StateExpectingGreeting
	StateRunning
	StateAuthenticating
	StateAppending
	StateIdling
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExpectingGreeting:
		return "expecting-greeting"
	case StateRunning:
		return "running"
	case StateAuthenticating:
		return "authenticating"
	case StateAppending:
		return "appending"
	case StateIdling:
		return "idling"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// InvalidCommandForState rejects an outbound part. Recoverable: the
// session state is unchanged.
type InvalidCommandForState struct {
	State  State
	Detail string
}

func (e *InvalidCommandForState) Error() string {
	return fmt.Sprintf("imapclient: command invalid in state %s: %s", e.State, e.Detail)
}

// UnexpectedResponse reports a protocol violation by the server.
// Fatal: the session transitions to StateError.
type UnexpectedResponse struct {
	State  State
	Event  imapparse.EventKind
	Detail string
}

func (e *UnexpectedResponse) Error() string {
	return fmt.Sprintf("imapclient: unexpected %s response in state %s: %s", e.Event, e.State, e.Detail)
}

// SendStatus reports how SendCommand disposed of a part.
type SendStatus int

const (
	// SendOK: the part was accepted; transmit Send.Chunks.
	SendOK SendStatus = iota

	// SendDeferred: the part is queued behind an in-flight
	// non-pipelinable command and will be released by a later
	// ReceiveResponse.
	SendDeferred
)

// Send is the result of an accepted or deferred part.
type Send struct {
	Status SendStatus

	// Chunks are ready to transmit now. Transmission stops at any
	// chunk with WaitForContinuation set until the machine
	// consumes the matching continuation request.
	Chunks []imapencode.Chunk
}

// ReceiveAction reports how ReceiveResponse disposed of an event.
type ReceiveAction int

const (
	// ReceiveDeliver: surface the event to the caller.
	ReceiveDeliver ReceiveAction = iota

	// ReceiveConsumed: the event updated internal state only.
	ReceiveConsumed
)

// Receive is the result of one inbound event.
type Receive struct {
	Action ReceiveAction

	// DoneTag is the tag of the command completed by a tagged
	// response, when the event is one.
	DoneTag string

	// StartTLS is set on the tagged OK completing STARTTLS: the
	// driver must install TLS before reading further bytes.
	StartTLS bool

	// Chunks were released by this event (a literal continuation
	// arrived, or queued commands became sendable).
	Chunks []imapencode.Chunk
}

type inFlight struct {
	tag  string
	name string
}

// Session is the client state machine for one connection.
type Session struct {
	enc *imapencode.Encoder

	state State

	// inFlight tracks outstanding tagged commands in submission
	// order.
	inFlight []inFlight

	// queue holds deferred parts in FIFO order.
	queue []imapwire.StreamPart

	// heldChunks follow a synchronising literal and are released
	// by the next continuation request.
	heldChunks  []imapencode.Chunk
	waitingCont bool

	// barrierTag is the tag of the in-flight barrier command, if
	// any.
	barrierTag string

	appendSub appendState
	authTag   string
	idleSub   idleState
	idleTag   string
}

type idleState int

const (
	idleNone idleState = iota
	idleStarting
	idleIdling
	idleDoneSent
)

// NewSession builds a Session; opts configure the embedded encoder.
func NewSession(opts imapencode.Options) *Session {
	return &Session{
		enc:   imapencode.NewEncoder(opts),
		state: StateExpectingGreeting,
	}
}

// State reports the current top-level state.
func (s *Session) State() State { return s.state }

// IsWaitingForContinuationRequest reports whether transmission is
// paused at a synchronising literal.
func (s *Session) IsWaitingForContinuationRequest() bool {
	return s.waitingCont
}

func (s *Session) reject(format string, v ...interface{}) (Send, error) {
	return Send{}, &InvalidCommandForState{State: s.state, Detail: fmt.Sprintf(format, v...)}
}

// barrierCommands may not share the pipeline with any other
// command: they change parser or connection mode, or race on their
// own side effects.
var barrierCommands = map[string]bool{
	"LOGIN":        true,
	"LOGOUT":       true,
	"STARTTLS":     true,
	"AUTHENTICATE": true,
	"IDLE":         true,
	"APPEND":       true,
	"SELECT":       true,
	"EXAMINE":      true,
	"CLOSE":        true,
	"UNSELECT":     true,
}

// Pipelinable reports whether name may be sent while other
// commands are outstanding.
func Pipelinable(name string) bool {
	return !barrierCommands[name]
}

// SendCommand submits one outbound part.
//
// The returned error, if any, is an *InvalidCommandForState and the
// machine is unchanged. Otherwise Send.Status distinguishes parts
// accepted now (transmit Send.Chunks) from parts deferred behind a
// barrier.
func (s *Session) SendCommand(part imapwire.StreamPart) (Send, error) {
	switch s.state {
	case StateIdle, StateExpectingGreeting:
		return s.reject("greeting not received")
	case StateError:
		return s.reject("session is in the error state")
	case StateAuthenticating:
		if part.Kind != imapwire.PartContinuationResponse {
			return s.reject("only continuation responses during AUTHENTICATE")
		}
		return s.encodeNow(part)
	case StateIdling:
		if part.Kind != imapwire.PartIdleDone {
			return s.reject("IDLE must be terminated with DONE first")
		}
		if s.idleSub != idleIdling {
			return s.reject("IDLE not yet acknowledged")
		}
		send, err := s.encodeNow(part)
		if err == nil {
			s.idleSub = idleDoneSent
		}
		return send, err
	case StateAppending:
		return s.sendAppendPart(part)
	}

	// StateRunning.
	switch part.Kind {
	case imapwire.PartCommand:
		return s.sendTagged(part)
	case imapwire.PartAppendStart:
		return s.startAppend(part)
	case imapwire.PartIdleDone:
		return s.reject("no IDLE in progress")
	case imapwire.PartContinuationResponse:
		return s.reject("no AUTHENTICATE in progress")
	case imapwire.PartBytes:
		return s.encodeNow(part)
	}
	return s.reject("append part outside APPEND")
}

func (s *Session) sendTagged(part imapwire.StreamPart) (Send, error) {
	cmd := part.Command
	if cmd == nil {
		return s.reject("nil command")
	}
	if cmd.Name == "APPEND" {
		return s.reject("APPEND is submitted as stream parts")
	}
	for _, f := range s.inFlight {
		if f.tag == cmd.Tag {
			return s.reject("tag %q already in flight", cmd.Tag)
		}
	}

	barrier := barrierCommands[cmd.Name]
	if len(s.queue) > 0 || s.waitingCont ||
		(barrier && len(s.inFlight) > 0) ||
		(!barrier && s.barrierTag != "") {
		s.queue = append(s.queue, part)
		return Send{Status: SendDeferred}, nil
	}
	return s.acceptTagged(part)
}

// acceptTagged encodes an admissible tagged command and applies its
// state transition.
func (s *Session) acceptTagged(part imapwire.StreamPart) (Send, error) {
	cmd := part.Command
	send, err := s.encodeNow(part)
	if err != nil {
		return send, err
	}
	s.inFlight = append(s.inFlight, inFlight{tag: cmd.Tag, name: cmd.Name})
	if barrierCommands[cmd.Name] {
		s.barrierTag = cmd.Tag
	}
	switch cmd.Name {
	case "AUTHENTICATE":
		s.state = StateAuthenticating
		s.authTag = cmd.Tag
	case "IDLE":
		s.state = StateIdling
		s.idleSub = idleStarting
		s.idleTag = cmd.Tag
	}
	return send, nil
}

// encodeNow encodes a part and splits its chunks at the first
// synchronising literal; the tail is held for the continuation
// request.
func (s *Session) encodeNow(part imapwire.StreamPart) (Send, error) {
	chunks, err := s.enc.Encode(part)
	if err != nil {
		return Send{}, &InvalidCommandForState{State: s.state, Detail: err.Error()}
	}
	return Send{Status: SendOK, Chunks: s.splitChunks(chunks)}, nil
}

func (s *Session) splitChunks(chunks []imapencode.Chunk) []imapencode.Chunk {
	for i, c := range chunks {
		if c.WaitForContinuation {
			s.waitingCont = true
			s.heldChunks = append(s.heldChunks, chunks[i+1:]...)
			return chunks[:i+1]
		}
	}
	return chunks
}

// releaseHeld releases chunks held behind the continuation request
// just received, stopping again at the next synchronising literal.
func (s *Session) releaseHeld() []imapencode.Chunk {
	s.waitingCont = false
	chunks := s.heldChunks
	s.heldChunks = nil
	return s.splitChunks(chunks)
}

// drainQueue admits deferred parts now that the pipeline emptied.
func (s *Session) drainQueue() []imapencode.Chunk {
	var out []imapencode.Chunk
	for len(s.queue) > 0 && s.state == StateRunning && !s.waitingCont {
		part := s.queue[0]
		cmd := part.Command
		if part.Kind == imapwire.PartAppendStart {
			if len(s.inFlight) > 0 {
				break
			}
			s.queue = s.queue[1:]
			send, err := s.startAppend(part)
			if err != nil {
				continue
			}
			out = append(out, send.Chunks...)
			continue
		}
		barrier := barrierCommands[cmd.Name]
		if barrier && len(s.inFlight) > 0 {
			break
		}
		if !barrier && s.barrierTag != "" {
			break
		}
		s.queue = s.queue[1:]
		send, err := s.acceptTagged(part)
		if err != nil {
			// Queueing checked only the name and tag; the
			// part is first encoded here, and an encode
			// failure silently drops it.
			continue
		}
		out = append(out, send.Chunks...)
		if barrier {
			break
		}
	}
	return out
}
