package imapparse

import (
	"wingmail.dev/imap/imapwire"
)

// EventKind names the kind of one parsed response event.
type EventKind int

const (
	EventNone EventKind = iota

	// EventGreeting is the first event of every connection.
	EventGreeting

	// EventUntagged carries any fully-decoded non-FETCH untagged
	// response.
	EventUntagged

	// EventTagged completes the command with the matching tag.
	EventTagged

	// EventContinuation is a server "+" line.
	EventContinuation

	// A FETCH response is decomposed into a sub-stream:
	// FetchStart, then any mix of FetchAttr and
	// FetchStreamBegin/FetchStreamBytes.../FetchStreamEnd groups,
	// then FetchEnd.
	EventFetchStart
	EventFetchAttr
	EventFetchStreamBegin
	EventFetchStreamBytes
	EventFetchStreamEnd
	EventFetchEnd
)

func (k EventKind) String() string {
	switch k {
	case EventGreeting:
		return "greeting"
	case EventUntagged:
		return "untagged"
	case EventTagged:
		return "tagged"
	case EventContinuation:
		return "continuation"
	case EventFetchStart:
		return "fetch-start"
	case EventFetchAttr:
		return "fetch-attr"
	case EventFetchStreamBegin:
		return "fetch-stream-begin"
	case EventFetchStreamBytes:
		return "fetch-stream-bytes"
	case EventFetchStreamEnd:
		return "fetch-stream-end"
	case EventFetchEnd:
		return "fetch-end"
	}
	return "unknown-event"
}

// Event is one parsed response event. Kind selects which fields
// are set.
type Event struct {
	Kind EventKind

	Greeting     *imapwire.Greeting
	Untagged     *imapwire.UntaggedResponse
	Tagged       *imapwire.TaggedResponse
	Continuation *imapwire.ContinuationRequest

	// SeqNum accompanies the fetch sub-stream events.
	SeqNum uint32

	// Attr is a fully-decoded fetch attribute (EventFetchAttr).
	Attr *imapwire.MessageAttr

	// StreamAttr names the attribute being streamed
	// (EventFetchStreamBegin).
	StreamAttr imapwire.FetchAttr

	// StreamSize is the total literal size (EventFetchStreamBegin).
	StreamSize uint32

	// StreamBytes aliases the parser's buffer and is valid only
	// until the next call into the parser (EventFetchStreamBytes).
	StreamBytes []byte
}

// Limits configures parser resource bounds. The zero value is
// usable.
type Limits struct {
	// LineLimit bounds bytes buffered for a single line.
	// Default DefaultLineLimit.
	LineLimit int

	// InlineLiteralMax bounds literals decoded into values rather
	// than streamed. Default DefaultInlineLiteralMax.
	InlineLiteralMax int
}

// Parser converts inbound wire bytes into a lazy sequence of
// response events.
//
// The driver feeds bytes into Buf and calls Next until it reports
// ErrNeedMoreData, then feeds more. Any *ParseError is fatal for
// the connection.
type Parser struct {
	Buf    Buffer
	Limits Limits

	scan scanner

	seenGreeting bool
	broken       bool

	fetch fetchState
}

type fetchPhase int

const (
	fetchIdle     fetchPhase = iota
	fetchInList              // between attributes
	fetchStreaming           // inside a streamed literal
	fetchStreamDone
)

type fetchState struct {
	phase     fetchPhase
	seqNum    uint32
	attrCount int

	streamAttr imapwire.FetchAttr
	remaining  uint32

	// pending holds a quoted body value streamed for uniformity.
	pending []byte
}

func (p *Parser) lineLimit() int {
	if p.Limits.LineLimit == 0 {
		return DefaultLineLimit
	}
	return p.Limits.LineLimit
}

// Next parses and reports the next event.
//
// ErrNeedMoreData means feed more bytes and retry; the cursor is
// restored so the retry is exact. A *ParseError is fatal: no
// further bytes will be consumed.
func (p *Parser) Next() (Event, error) {
	if p.broken {
		return Event{}, p.scan.errf(ErrKindGrammarViolation, "parser is broken")
	}
	p.scan.buf = &p.Buf
	p.scan.inlineLiteralMax = p.Limits.InlineLiteralMax

	// Consumed bytes are no longer needed: every retry restores
	// to the position this call starts from.
	p.Buf.Compact()

	snap := p.Buf.Snapshot()
	ev, err := p.next()
	if err == ErrNeedMoreData {
		p.Buf.Restore(snap)
		if p.fetch.phase != fetchStreaming && p.Buf.Buffered() > p.lineLimit() {
			p.broken = true
			return Event{}, p.scan.errf(ErrKindLiteralTooLarge, "line exceeds %d bytes", p.lineLimit())
		}
		return Event{}, ErrNeedMoreData
	}
	if err != nil {
		p.broken = true
		return Event{}, err
	}
	return ev, nil
}

func (p *Parser) next() (Event, error) {
	switch p.fetch.phase {
	case fetchStreaming:
		return p.streamBytes()
	case fetchInList, fetchStreamDone:
		return p.fetchNext()
	}

	b, err := p.Buf.PeekByte()
	if err != nil {
		return Event{}, err
	}
	switch b {
	case '+':
		p.Buf.Advance(1)
		return p.continuationRequest()
	case '*':
		p.Buf.Advance(1)
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		return p.untagged()
	}
	if !p.seenGreeting {
		return Event{}, p.scan.errf(ErrKindUnexpectedByte, "greeting must be untagged, got %q", string(b))
	}
	return p.tagged()
}

func (p *Parser) continuationRequest() (Event, error) {
	// "+" [SP text] CRLF
	if _, err := p.scan.peekIs(' '); err != nil {
		return Event{}, err
	}
	text, err := p.scan.textLine()
	if err != nil {
		return Event{}, err
	}
	cont := &imapwire.ContinuationRequest{Text: text}
	if text != "" {
		if dec, ok := decodeBase64([]byte(text)); ok {
			cont.Base64Decoded = dec
		}
	}
	return Event{Kind: EventContinuation, Continuation: cont}, nil
}

func (p *Parser) tagged() (Event, error) {
	tag, err := p.scan.tag()
	if err != nil {
		return Event{}, err
	}
	tagStr := string(tag)
	if err := p.scan.sp(); err != nil {
		return Event{}, err
	}
	state, err := p.condState()
	if err != nil {
		return Event{}, err
	}
	switch state.Kind {
	case imapwire.StateOK, imapwire.StateNO, imapwire.StateBAD:
	default:
		return Event{}, p.scan.errf(ErrKindGrammarViolation, "tagged %s response", state.Kind)
	}
	return Event{Kind: EventTagged, Tagged: &imapwire.TaggedResponse{
		Tag:   tagStr,
		State: state,
	}}, nil
}

// condStateNamed parses the [SP resp-text] CRLF that follows a
// state atom. The caller has consumed the atom and passes it as name.
func (p *Parser) condStateNamed(name string) (imapwire.CondState, error) {
	state := imapwire.CondState{Kind: imapwire.CondStateKind(name)}
	// resp-text = ["[" resp-text-code "]" SP] text
	sp, err := p.scan.peekIs(' ')
	if err != nil {
		return state, err
	}
	if sp {
		bracket, err := p.scan.peekIs('[')
		if err != nil {
			return state, err
		}
		if bracket {
			code, err := p.respCode()
			if err != nil {
				return state, err
			}
			state.Code = code
			if _, err := p.scan.peekIs(' '); err != nil {
				return state, err
			}
		}
		text, err := p.scan.textLine()
		if err != nil {
			return state, err
		}
		state.Text = text
		return state, nil
	}
	if err := p.scan.crlf(); err != nil {
		return state, err
	}
	return state, nil
}

func (p *Parser) condState() (imapwire.CondState, error) {
	atom, err := p.scan.atom()
	if err != nil {
		return imapwire.CondState{}, err
	}
	name := string(atom)
	switch name {
	case "OK", "NO", "BAD", "BYE", "PREAUTH":
	default:
		return imapwire.CondState{}, p.scan.errf(ErrKindGrammarViolation, "unknown response state %q", name)
	}
	return p.condStateNamed(name)
}

// respCode parses a resp-text-code; the '[' is already consumed.
func (p *Parser) respCode() (*imapwire.RespCode, error) {
	atom, err := p.scan.atom()
	if err != nil {
		return nil, err
	}
	code := &imapwire.RespCode{Name: string(atom)}
	switch code.Name {
	case imapwire.CodeAlert, imapwire.CodeParse, imapwire.CodeReadOnly,
		imapwire.CodeReadWrite, imapwire.CodeTryCreate, imapwire.CodeUIDNotSticky,
		imapwire.CodeClosed, imapwire.CodeNoModSeq:
		// no arguments

	case imapwire.CodeCapability:
		for {
			done, err := p.scan.peekIs(']')
			if err != nil {
				return nil, err
			}
			if done {
				return code, nil
			}
			if err := p.scan.sp(); err != nil {
				return nil, err
			}
			cap_, err := p.scan.atom()
			if err != nil {
				return nil, err
			}
			code.Caps = append(code.Caps, string(cap_))
		}

	case imapwire.CodePermanentFlags:
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		flags, err := p.scan.flagList()
		if err != nil {
			return nil, err
		}
		code.Flags = flags

	case imapwire.CodeUIDNext, imapwire.CodeUIDValidity, imapwire.CodeUnseen:
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		n, err := p.scan.number()
		if err != nil {
			return nil, err
		}
		code.Num = n

	case imapwire.CodeHighestModSeq:
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		n, err := p.scan.number64()
		if err != nil {
			return nil, err
		}
		code.ModSeq = imapwire.ModSeq(n)

	case imapwire.CodeModified:
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		seqs, err := p.scan.sequences()
		if err != nil {
			return nil, err
		}
		code.Seqs = seqs

	case imapwire.CodeAppendUID:
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		if code.UIDValidity, err = p.scan.number(); err != nil {
			return nil, err
		}
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		if code.DstUIDs, err = p.scan.sequences(); err != nil {
			return nil, err
		}

	case imapwire.CodeCopyUID:
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		if code.UIDValidity, err = p.scan.number(); err != nil {
			return nil, err
		}
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		if code.SrcUIDs, err = p.scan.sequences(); err != nil {
			return nil, err
		}
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		if code.DstUIDs, err = p.scan.sequences(); err != nil {
			return nil, err
		}

	default:
		// Unknown code: keep the raw argument text.
		text, err := p.Buf.TakeWhile(func(b byte) bool {
			return b != ']' && b != '\r' && b != '\n'
		})
		if err != nil {
			return nil, err
		}
		if len(text) > 0 && text[0] == ' ' {
			text = text[1:]
		}
		code.Text = string(text)
	}
	if err := p.scan.expectByte(']'); err != nil {
		return nil, err
	}
	return code, nil
}

func (p *Parser) untagged() (Event, error) {
	b, err := p.Buf.PeekByte()
	if err != nil {
		return Event{}, err
	}
	if isDigit(b) {
		return p.untaggedNumbered()
	}

	atom, err := p.scan.atom()
	if err != nil {
		return Event{}, err
	}
	name := string(atom)

	switch name {
	case "OK", "NO", "BAD", "BYE", "PREAUTH":
		state, err := p.condStateNamed(name)
		if err != nil {
			return Event{}, err
		}
		if !p.seenGreeting {
			p.seenGreeting = true
			switch state.Kind {
			case imapwire.StateOK, imapwire.StatePreauth, imapwire.StateBYE:
			default:
				return Event{}, p.scan.errf(ErrKindGrammarViolation, "greeting state %s", state.Kind)
			}
			return Event{Kind: EventGreeting, Greeting: &imapwire.Greeting{State: state}}, nil
		}
		return untaggedEvent(&imapwire.UntaggedResponse{
			Type: imapwire.UntaggedCond,
			Cond: state,
		}), nil
	}

	if !p.seenGreeting {
		return Event{}, p.scan.errf(ErrKindGrammarViolation, "expected greeting, got %s", name)
	}

	switch name {
	case "CAPABILITY", "ENABLED":
		r := &imapwire.UntaggedResponse{Type: imapwire.UntaggedType(name)}
		for {
			end, err := p.scan.atCRLF()
			if err != nil {
				return Event{}, err
			}
			if end {
				break
			}
			if err := p.scan.sp(); err != nil {
				return Event{}, err
			}
			cap_, err := p.scan.atom()
			if err != nil {
				return Event{}, err
			}
			r.Caps = append(r.Caps, string(cap_))
		}
		if err := p.scan.crlf(); err != nil {
			return Event{}, err
		}
		return untaggedEvent(r), nil

	case "FLAGS":
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		flags, err := p.scan.flagList()
		if err != nil {
			return Event{}, err
		}
		if err := p.scan.crlf(); err != nil {
			return Event{}, err
		}
		return untaggedEvent(&imapwire.UntaggedResponse{
			Type:  imapwire.UntaggedFlags,
			Flags: flags,
		}), nil

	case "LIST", "LSUB":
		return p.untaggedList(name)

	case "SEARCH":
		return p.untaggedSearch()

	case "ESEARCH":
		return p.untaggedESearch()

	case "STATUS":
		return p.untaggedStatus()

	case "VANISHED":
		return p.untaggedVanished()

	case "NAMESPACE":
		return p.untaggedNamespace()

	case "ID":
		return p.untaggedID()

	case "QUOTA":
		return p.untaggedQuota()

	case "QUOTAROOT":
		return p.untaggedQuotaRoot()

	case "METADATA":
		return p.untaggedMetadata()
	}
	return Event{}, p.scan.errf(ErrKindGrammarViolation, "unknown untagged response %q", name)
}

func untaggedEvent(r *imapwire.UntaggedResponse) Event {
	return Event{Kind: EventUntagged, Untagged: r}
}

func (p *Parser) untaggedNumbered() (Event, error) {
	n, err := p.scan.number()
	if err != nil {
		return Event{}, err
	}
	if err := p.scan.sp(); err != nil {
		return Event{}, err
	}
	atom, err := p.scan.atom()
	if err != nil {
		return Event{}, err
	}
	name := string(atom)
	switch name {
	case "EXISTS", "RECENT", "EXPUNGE":
		if err := p.scan.crlf(); err != nil {
			return Event{}, err
		}
		return untaggedEvent(&imapwire.UntaggedResponse{
			Type: imapwire.UntaggedType(name),
			Num:  n,
		}), nil
	case "FETCH":
		return p.fetchStart(n)
	}
	return Event{}, p.scan.errf(ErrKindGrammarViolation, "unknown numbered response %q", name)
}

func (p *Parser) untaggedList(name string) (Event, error) {
	if err := p.scan.sp(); err != nil {
		return Event{}, err
	}
	r := &imapwire.UntaggedResponse{Type: imapwire.UntaggedType(name)}
	attrs, err := p.scan.flagList()
	if err != nil {
		return Event{}, err
	}
	r.List.Attrs = attrs
	if err := p.scan.sp(); err != nil {
		return Event{}, err
	}

	// hierarchy delimiter: quoted single character or NIL
	isNil, err := p.scan.nstringIsNil()
	if err != nil {
		return Event{}, err
	}
	if !isNil {
		sep, err := p.scan.quoted()
		if err != nil {
			return Event{}, err
		}
		if len(sep) != 1 {
			return Event{}, p.scan.errf(ErrKindGrammarViolation, "hierarchy delimiter %q", sep)
		}
		r.List.Separator = sep[0]
	}
	if err := p.scan.sp(); err != nil {
		return Event{}, err
	}
	mbox, err := p.scan.astring()
	if err != nil {
		return Event{}, err
	}
	r.List.Mailbox = imapwire.MailboxName(mbox)

	// RFC 5258 mbox-list-extended
	end, err := p.scan.atCRLF()
	if err != nil {
		return Event{}, err
	}
	if !end {
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		if err := p.scan.expectByte('('); err != nil {
			return Event{}, err
		}
		for {
			done, err := p.scan.peekIs(')')
			if err != nil {
				return Event{}, err
			}
			if done {
				break
			}
			if len(r.List.Extended) > 0 {
				if err := p.scan.sp(); err != nil {
					return Event{}, err
				}
			}
			key, err := p.scan.astring()
			if err != nil {
				return Event{}, err
			}
			if err := p.scan.sp(); err != nil {
				return Event{}, err
			}
			val, err := p.extValueText()
			if err != nil {
				return Event{}, err
			}
			r.List.Extended = append(r.List.Extended, imapwire.FieldParam{
				Key:   string(key),
				Value: val,
			})
		}
	}
	if err := p.scan.crlf(); err != nil {
		return Event{}, err
	}
	return untaggedEvent(r), nil
}

// extValueText reads a tagged-ext-val as raw text, balancing
// parentheses. Extension values are preserved, not interpreted.
func (p *Parser) extValueText() (string, error) {
	b, err := p.Buf.PeekByte()
	if err != nil {
		return "", err
	}
	if b == '"' {
		v, err := p.scan.quoted()
		return string(v), err
	}
	if b != '(' {
		v, err := p.Buf.TakeWhile(func(b byte) bool {
			return b != ' ' && b != ')' && b != '\r' && b != '\n'
		})
		return string(v), err
	}
	depth := 0
	var out []byte
	for {
		c, err := p.Buf.ReadByte()
		if err != nil {
			return "", err
		}
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case '\r', '\n':
			return "", p.scan.errf(ErrKindGrammarViolation, "newline in extension value")
		}
		out = append(out, c)
		if depth == 0 {
			return string(out), nil
		}
	}
}

func (p *Parser) untaggedSearch() (Event, error) {
	r := &imapwire.UntaggedResponse{Type: imapwire.UntaggedSearch}
	for {
		end, err := p.scan.atCRLF()
		if err != nil {
			return Event{}, err
		}
		if end {
			break
		}
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		paren, err := p.scan.peekIs('(')
		if err != nil {
			return Event{}, err
		}
		if paren {
			// search-sort-mod-seq = "(" "MODSEQ" SP mod-sequence-value ")"
			atom, err := p.scan.atom()
			if err != nil {
				return Event{}, err
			}
			if string(atom) != "MODSEQ" {
				return Event{}, p.scan.errf(ErrKindGrammarViolation, "SEARCH modifier %q", atom)
			}
			if err := p.scan.sp(); err != nil {
				return Event{}, err
			}
			n, err := p.scan.number64()
			if err != nil {
				return Event{}, err
			}
			r.Search.ModSeq = imapwire.ModSeq(n)
			if err := p.scan.expectByte(')'); err != nil {
				return Event{}, err
			}
			continue
		}
		n, err := p.scan.number()
		if err != nil {
			return Event{}, err
		}
		r.Search.Nums = append(r.Search.Nums, n)
	}
	if err := p.scan.crlf(); err != nil {
		return Event{}, err
	}
	return untaggedEvent(r), nil
}

func (p *Parser) untaggedESearch() (Event, error) {
	r := &imapwire.UntaggedResponse{Type: imapwire.UntaggedESearch}
	es := &r.ESearch
	for {
		end, err := p.scan.atCRLF()
		if err != nil {
			return Event{}, err
		}
		if end {
			break
		}
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}

		paren, err := p.scan.peekIs('(')
		if err != nil {
			return Event{}, err
		}
		if paren {
			// search-correlator = "(" "TAG" SP tag-string ")"
			atom, err := p.scan.atom()
			if err != nil {
				return Event{}, err
			}
			if string(atom) != "TAG" {
				return Event{}, p.scan.errf(ErrKindGrammarViolation, "ESEARCH correlator %q", atom)
			}
			if err := p.scan.sp(); err != nil {
				return Event{}, err
			}
			tag, err := p.scan.string_()
			if err != nil {
				return Event{}, err
			}
			es.Tag = string(tag)
			if err := p.scan.expectByte(')'); err != nil {
				return Event{}, err
			}
			continue
		}

		atom, err := p.scan.atom()
		if err != nil {
			return Event{}, err
		}
		switch string(atom) {
		case "UID":
			es.UID = true
			continue
		case "MIN":
			if err := p.scan.sp(); err != nil {
				return Event{}, err
			}
			if es.Min, err = p.scan.number(); err != nil {
				return Event{}, err
			}
			es.HasMin = true
		case "MAX":
			if err := p.scan.sp(); err != nil {
				return Event{}, err
			}
			if es.Max, err = p.scan.number(); err != nil {
				return Event{}, err
			}
			es.HasMax = true
		case "COUNT":
			if err := p.scan.sp(); err != nil {
				return Event{}, err
			}
			if es.Count, err = p.scan.number(); err != nil {
				return Event{}, err
			}
			es.HasCount = true
		case "ALL":
			if err := p.scan.sp(); err != nil {
				return Event{}, err
			}
			if es.All, err = p.scan.sequences(); err != nil {
				return Event{}, err
			}
		case "MODSEQ":
			if err := p.scan.sp(); err != nil {
				return Event{}, err
			}
			n, err := p.scan.number64()
			if err != nil {
				return Event{}, err
			}
			es.ModSeq = imapwire.ModSeq(n)
		default:
			// Forward-compatible: keep the raw value text.
			if err := p.scan.sp(); err != nil {
				return Event{}, err
			}
			val, err := p.extValueText()
			if err != nil {
				return Event{}, err
			}
			es.Extensions = append(es.Extensions, imapwire.FieldParam{
				Key:   string(atom),
				Value: val,
			})
		}
	}
	if err := p.scan.crlf(); err != nil {
		return Event{}, err
	}
	return untaggedEvent(r), nil
}

func (p *Parser) untaggedStatus() (Event, error) {
	if err := p.scan.sp(); err != nil {
		return Event{}, err
	}
	r := &imapwire.UntaggedResponse{Type: imapwire.UntaggedStatus}
	mbox, err := p.scan.astring()
	if err != nil {
		return Event{}, err
	}
	r.Status.Mailbox = imapwire.MailboxName(mbox)
	if err := p.scan.sp(); err != nil {
		return Event{}, err
	}
	if err := p.scan.expectByte('('); err != nil {
		return Event{}, err
	}
	first := true
	for {
		done, err := p.scan.peekIs(')')
		if err != nil {
			return Event{}, err
		}
		if done {
			break
		}
		if !first {
			if err := p.scan.sp(); err != nil {
				return Event{}, err
			}
		}
		first = false
		atom, err := p.scan.atom()
		if err != nil {
			return Event{}, err
		}
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		switch string(atom) {
		case "MESSAGES":
			r.Status.Messages, err = p.scan.number()
			r.Status.HasMessages = true
		case "RECENT":
			r.Status.Recent, err = p.scan.number()
			r.Status.HasRecent = true
		case "UIDNEXT":
			r.Status.UIDNext, err = p.scan.number()
			r.Status.HasUIDNext = true
		case "UIDVALIDITY":
			r.Status.UIDValidity, err = p.scan.number()
			r.Status.HasUIDValidity = true
		case "UNSEEN":
			r.Status.Unseen, err = p.scan.number()
			r.Status.HasUnseen = true
		case "SIZE":
			r.Status.Size, err = p.scan.number64()
			r.Status.HasSize = true
		case "HIGHESTMODSEQ":
			var n uint64
			n, err = p.scan.number64()
			r.Status.HighestModSeq = imapwire.ModSeq(n)
		default:
			return Event{}, p.scan.errf(ErrKindGrammarViolation, "unknown STATUS item %q", atom)
		}
		if err != nil {
			return Event{}, err
		}
	}
	if err := p.scan.crlf(); err != nil {
		return Event{}, err
	}
	return untaggedEvent(r), nil
}

func (p *Parser) untaggedVanished() (Event, error) {
	if err := p.scan.sp(); err != nil {
		return Event{}, err
	}
	r := &imapwire.UntaggedResponse{Type: imapwire.UntaggedVanished}
	paren, err := p.scan.peekIs('(')
	if err != nil {
		return Event{}, err
	}
	if paren {
		atom, err := p.scan.atom()
		if err != nil {
			return Event{}, err
		}
		if string(atom) != "EARLIER" {
			return Event{}, p.scan.errf(ErrKindGrammarViolation, "VANISHED modifier %q", atom)
		}
		if err := p.scan.expectByte(')'); err != nil {
			return Event{}, err
		}
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		r.Vanished.Earlier = true
	}
	if r.Vanished.UIDs, err = p.scan.sequences(); err != nil {
		return Event{}, err
	}
	if err := p.scan.crlf(); err != nil {
		return Event{}, err
	}
	return untaggedEvent(r), nil
}

func (p *Parser) untaggedNamespace() (Event, error) {
	r := &imapwire.UntaggedResponse{Type: imapwire.UntaggedNamespace}
	for _, dst := range []*[]imapwire.NamespaceItem{
		&r.Namespace.Personal, &r.Namespace.Other, &r.Namespace.Shared,
	} {
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		isNil, err := p.scan.nstringIsNil()
		if err != nil {
			return Event{}, err
		}
		if isNil {
			continue
		}
		if err := p.scan.expectByte('('); err != nil {
			return Event{}, err
		}
		for {
			done, err := p.scan.peekIs(')')
			if err != nil {
				return Event{}, err
			}
			if done {
				break
			}
			item, err := p.namespaceItem()
			if err != nil {
				return Event{}, err
			}
			*dst = append(*dst, item)
		}
	}
	if err := p.scan.crlf(); err != nil {
		return Event{}, err
	}
	return untaggedEvent(r), nil
}

func (p *Parser) namespaceItem() (imapwire.NamespaceItem, error) {
	var item imapwire.NamespaceItem
	if err := p.scan.expectByte('('); err != nil {
		return item, err
	}
	prefix, err := p.scan.string_()
	if err != nil {
		return item, err
	}
	item.Prefix = prefix
	if err := p.scan.sp(); err != nil {
		return item, err
	}
	isNil, err := p.scan.nstringIsNil()
	if err != nil {
		return item, err
	}
	if !isNil {
		sep, err := p.scan.quoted()
		if err != nil {
			return item, err
		}
		if len(sep) != 1 {
			return item, p.scan.errf(ErrKindGrammarViolation, "namespace delimiter %q", sep)
		}
		item.Separator = sep[0]
	}
	for {
		done, err := p.scan.peekIs(')')
		if err != nil {
			return item, err
		}
		if done {
			return item, nil
		}
		if err := p.scan.sp(); err != nil {
			return item, err
		}
		key, err := p.scan.string_()
		if err != nil {
			return item, err
		}
		if err := p.scan.sp(); err != nil {
			return item, err
		}
		val, err := p.extValueText()
		if err != nil {
			return item, err
		}
		item.Extensions = append(item.Extensions, imapwire.FieldParam{
			Key:   string(key),
			Value: val,
		})
	}
}

func (p *Parser) untaggedID() (Event, error) {
	if err := p.scan.sp(); err != nil {
		return Event{}, err
	}
	r := &imapwire.UntaggedResponse{Type: imapwire.UntaggedID}
	isNil, err := p.scan.nstringIsNil()
	if err != nil {
		return Event{}, err
	}
	if !isNil {
		if err := p.scan.expectByte('('); err != nil {
			return Event{}, err
		}
		for {
			done, err := p.scan.peekIs(')')
			if err != nil {
				return Event{}, err
			}
			if done {
				break
			}
			if len(r.Params) > 0 {
				if err := p.scan.sp(); err != nil {
					return Event{}, err
				}
			}
			val, err := p.scan.nstring()
			if err != nil {
				return Event{}, err
			}
			if val == nil {
				if len(r.Params)%2 == 0 {
					return Event{}, p.scan.errf(ErrKindGrammarViolation, "ID NIL field name")
				}
				r.Params = append(r.Params, nil)
			} else {
				r.Params = imapwire.AppendValue(r.Params, val)
			}
		}
		if len(r.Params)%2 == 1 {
			return Event{}, p.scan.errf(ErrKindGrammarViolation, "ID parameter is missing value")
		}
	}
	if err := p.scan.crlf(); err != nil {
		return Event{}, err
	}
	return untaggedEvent(r), nil
}

func (p *Parser) untaggedQuota() (Event, error) {
	if err := p.scan.sp(); err != nil {
		return Event{}, err
	}
	r := &imapwire.UntaggedResponse{Type: imapwire.UntaggedQuota}
	root, err := p.scan.astring()
	if err != nil {
		return Event{}, err
	}
	r.Quota.Root = root
	if err := p.scan.sp(); err != nil {
		return Event{}, err
	}
	if err := p.scan.expectByte('('); err != nil {
		return Event{}, err
	}
	for {
		done, err := p.scan.peekIs(')')
		if err != nil {
			return Event{}, err
		}
		if done {
			break
		}
		if len(r.Quota.Resources) > 0 {
			if err := p.scan.sp(); err != nil {
				return Event{}, err
			}
		}
		var res imapwire.QuotaResource
		name, err := p.scan.atom()
		if err != nil {
			return Event{}, err
		}
		res.Name = string(name)
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		if res.Usage, err = p.scan.number64(); err != nil {
			return Event{}, err
		}
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		if res.Limit, err = p.scan.number64(); err != nil {
			return Event{}, err
		}
		r.Quota.Resources = append(r.Quota.Resources, res)
	}
	if err := p.scan.crlf(); err != nil {
		return Event{}, err
	}
	return untaggedEvent(r), nil
}

func (p *Parser) untaggedQuotaRoot() (Event, error) {
	if err := p.scan.sp(); err != nil {
		return Event{}, err
	}
	r := &imapwire.UntaggedResponse{Type: imapwire.UntaggedQuotaRoot}
	mbox, err := p.scan.astring()
	if err != nil {
		return Event{}, err
	}
	r.Quota.Mailbox = imapwire.MailboxName(mbox)
	for {
		end, err := p.scan.atCRLF()
		if err != nil {
			return Event{}, err
		}
		if end {
			break
		}
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		root, err := p.scan.astring()
		if err != nil {
			return Event{}, err
		}
		r.Quota.Roots = append(r.Quota.Roots, root)
	}
	if err := p.scan.crlf(); err != nil {
		return Event{}, err
	}
	return untaggedEvent(r), nil
}

func (p *Parser) untaggedMetadata() (Event, error) {
	if err := p.scan.sp(); err != nil {
		return Event{}, err
	}
	r := &imapwire.UntaggedResponse{Type: imapwire.UntaggedMetadata}
	mbox, err := p.scan.astring()
	if err != nil {
		return Event{}, err
	}
	r.Metadata.Mailbox = imapwire.MailboxName(mbox)
	if err := p.scan.sp(); err != nil {
		return Event{}, err
	}
	paren, err := p.scan.peekIs('(')
	if err != nil {
		return Event{}, err
	}
	if paren {
		// metadata-values: (entry SP value ...)
		for {
			done, err := p.scan.peekIs(')')
			if err != nil {
				return Event{}, err
			}
			if done {
				break
			}
			if len(r.Metadata.Entries) > 0 {
				if err := p.scan.sp(); err != nil {
					return Event{}, err
				}
			}
			entry, err := p.scan.astring()
			if err != nil {
				return Event{}, err
			}
			if err := p.scan.sp(); err != nil {
				return Event{}, err
			}
			val, err := p.scan.nstring()
			if err != nil {
				return Event{}, err
			}
			r.Metadata.Entries = append(r.Metadata.Entries, string(entry))
			r.Metadata.Values = append(r.Metadata.Values, val)
		}
	} else {
		// metadata-list: entry *(SP entry), unsolicited change
		for {
			entry, err := p.scan.astring()
			if err != nil {
				return Event{}, err
			}
			r.Metadata.Entries = append(r.Metadata.Entries, string(entry))
			end, err := p.scan.atCRLF()
			if err != nil {
				return Event{}, err
			}
			if end {
				break
			}
			if err := p.scan.sp(); err != nil {
				return Event{}, err
			}
		}
	}
	if err := p.scan.crlf(); err != nil {
		return Event{}, err
	}
	return untaggedEvent(r), nil
}
