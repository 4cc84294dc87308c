package imapclient

import (
	"wingmail.dev/imap/imapparse"
	"wingmail.dev/imap/imapwire"
)

// ReceiveResponse feeds one inbound parser event to the machine.
//
// A returned *UnexpectedResponse is fatal: the session has moved to
// StateError and the driver must tear down the connection. Tagged
// NO and BAD are not errors here; they are delivered verbatim.
func (s *Session) ReceiveResponse(ev imapparse.Event) (Receive, error) {
	if s.state == StateError {
		return Receive{}, s.unexpected(ev, "session is in the error state")
	}
	switch ev.Kind {
	case imapparse.EventGreeting:
		return s.receiveGreeting(ev)

	case imapparse.EventContinuation:
		return s.receiveContinuation(ev)

	case imapparse.EventTagged:
		return s.receiveTagged(ev)

	case imapparse.EventUntagged:
		if s.state == StateIdle || s.state == StateExpectingGreeting {
			return Receive{}, s.unexpected(ev, "response before greeting")
		}
		// Untagged responses pass through every sub-machine
		// untouched; a BYE is delivered too, and the tagged
		// LOGOUT completion (or connection close) follows.
		return Receive{Action: ReceiveDeliver}, nil

	case imapparse.EventFetchStart, imapparse.EventFetchAttr,
		imapparse.EventFetchStreamBegin, imapparse.EventFetchStreamBytes,
		imapparse.EventFetchStreamEnd, imapparse.EventFetchEnd:
		if s.state == StateIdle || s.state == StateExpectingGreeting {
			return Receive{}, s.unexpected(ev, "response before greeting")
		}
		return Receive{Action: ReceiveDeliver}, nil
	}
	return Receive{}, s.unexpected(ev, "unknown event kind")
}

func (s *Session) unexpected(ev imapparse.Event, detail string) error {
	err := &UnexpectedResponse{State: s.state, Event: ev.Kind, Detail: detail}
	s.state = StateError
	return err
}

func (s *Session) receiveGreeting(ev imapparse.Event) (Receive, error) {
	if s.state != StateIdle && s.state != StateExpectingGreeting {
		return Receive{}, s.unexpected(ev, "second greeting")
	}
	switch ev.Greeting.State.Kind {
	case imapwire.StateOK, imapwire.StatePreauth:
		s.state = StateRunning
	case imapwire.StateBYE:
		s.state = StateError
	}
	return Receive{Action: ReceiveDeliver}, nil
}

func (s *Session) receiveContinuation(ev imapparse.Event) (Receive, error) {
	switch s.state {
	case StateAuthenticating:
		// A challenge for the caller to answer.
		return Receive{Action: ReceiveDeliver}, nil

	case StateIdling:
		if s.idleSub == idleStarting {
			// The server acknowledged IDLE.
			s.idleSub = idleIdling
			return Receive{Action: ReceiveConsumed}, nil
		}
		return Receive{}, s.unexpected(ev, "continuation while idling")

	case StateAppending:
		if s.appendContinuation() {
			return Receive{Action: ReceiveConsumed, Chunks: s.releaseHeld()}, nil
		}
	}
	if s.waitingCont {
		// Acknowledges a synchronising literal: release the held
		// chunks.
		return Receive{Action: ReceiveConsumed, Chunks: s.releaseHeld()}, nil
	}
	return Receive{}, s.unexpected(ev, "continuation with no literal outstanding")
}

func (s *Session) receiveTagged(ev imapparse.Event) (Receive, error) {
	tag := ev.Tagged.Tag

	if s.state == StateIdling {
		if tag != s.idleTag {
			return Receive{}, s.unexpected(ev, "tagged response during IDLE")
		}
		// RFC 2177 requires DONE before the tagged response, but
		// a server replying NO/BAD to IDLE itself never saw DONE.
	}

	idx := -1
	for i, f := range s.inFlight {
		if f.tag == tag {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Receive{}, s.unexpected(ev, "tagged response for unknown tag "+tag)
	}
	done := s.inFlight[idx]
	s.inFlight = append(s.inFlight[:idx], s.inFlight[idx+1:]...)

	recv := Receive{Action: ReceiveDeliver, DoneTag: tag}

	if s.barrierTag == tag {
		s.barrierTag = ""
	}
	switch s.state {
	case StateAuthenticating:
		if tag == s.authTag {
			s.state = StateRunning
			s.authTag = ""
		}
	case StateAppending:
		if tag == s.appendSub.tag {
			s.state = StateRunning
			s.appendSub = appendState{}
			// An APPEND cut short by NO/BAD abandons any unsent
			// literal bytes.
			s.waitingCont = false
			s.heldChunks = nil
		}
	case StateIdling:
		if tag == s.idleTag {
			s.state = StateRunning
			s.idleSub = idleNone
			s.idleTag = ""
		}
	}
	if done.name == "STARTTLS" && ev.Tagged.State.Kind == imapwire.StateOK {
		recv.StartTLS = true
	}

	recv.Chunks = append(recv.Chunks, s.drainQueue()...)
	return recv, nil
}
