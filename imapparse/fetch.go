package imapparse

import (
	"strings"

	"wingmail.dev/imap/imapwire"
)

// fetchStart begins the FETCH sub-stream. The caller has consumed
// "* n FETCH".
func (p *Parser) fetchStart(seqNum uint32) (Event, error) {
	if err := p.scan.sp(); err != nil {
		return Event{}, err
	}
	if err := p.scan.expectByte('('); err != nil {
		return Event{}, err
	}
	p.fetch = fetchState{phase: fetchInList, seqNum: seqNum}
	return Event{Kind: EventFetchStart, SeqNum: seqNum}, nil
}

// streamBytes advances a streamed literal.
func (p *Parser) streamBytes() (Event, error) {
	f := &p.fetch
	if f.pending != nil {
		// A quoted or inline value streamed for uniformity.
		span := f.pending
		f.pending = nil
		f.remaining = 0
		return Event{Kind: EventFetchStreamBytes, SeqNum: f.seqNum, StreamBytes: span}, nil
	}
	if f.remaining == 0 {
		f.phase = fetchInList
		return Event{Kind: EventFetchStreamEnd, SeqNum: f.seqNum}, nil
	}
	span := p.Buf.TakeAvailable(int(f.remaining))
	if len(span) == 0 {
		return Event{}, ErrNeedMoreData
	}
	f.remaining -= uint32(len(span))
	return Event{Kind: EventFetchStreamBytes, SeqNum: f.seqNum, StreamBytes: span}, nil
}

// fetchNext parses one attribute-value pair, or the end of the
// FETCH list.
func (p *Parser) fetchNext() (Event, error) {
	if p.fetch.phase == fetchStreamDone {
		p.fetch.phase = fetchInList
		return Event{Kind: EventFetchStreamEnd, SeqNum: p.fetch.seqNum}, nil
	}

	done, err := p.scan.peekIs(')')
	if err != nil {
		return Event{}, err
	}
	if done {
		if err := p.scan.crlf(); err != nil {
			return Event{}, err
		}
		seqNum := p.fetch.seqNum
		p.fetch = fetchState{}
		return Event{Kind: EventFetchEnd, SeqNum: seqNum}, nil
	}
	if p.fetch.attrCount > 0 {
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
	}

	name, err := p.Buf.TakeWhile(func(b byte) bool {
		return b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' ||
			isDigit(b) || b == '.' || b == '-'
	})
	if err != nil {
		return Event{}, err
	}
	attrName := strings.ToUpper(string(name))

	ev, err := p.fetchAttr(attrName)
	if err != nil {
		return Event{}, err
	}
	p.fetch.attrCount++
	return ev, nil
}

func (p *Parser) fetchAttr(name string) (Event, error) {
	f := &p.fetch
	attr := &imapwire.MessageAttr{Type: imapwire.MessageAttrType(name)}

	switch name {
	case "FLAGS":
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		flags, err := p.scan.flagList()
		if err != nil {
			return Event{}, err
		}
		attr.Flags = flags

	case "UID":
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		n, err := p.scan.number()
		if err != nil {
			return Event{}, err
		}
		attr.Num = uint64(n)

	case "MODSEQ":
		// fetch-mod-resp = "MODSEQ" SP "(" permsg-modsequence ")"
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		if err := p.scan.expectByte('('); err != nil {
			return Event{}, err
		}
		n, err := p.scan.number64()
		if err != nil {
			return Event{}, err
		}
		if err := p.scan.expectByte(')'); err != nil {
			return Event{}, err
		}
		attr.ModSeq = imapwire.ModSeq(n)

	case "INTERNALDATE":
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		d, err := p.scan.dateTime()
		if err != nil {
			return Event{}, err
		}
		attr.InternalDate = d

	case "RFC822.SIZE":
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		n, err := p.scan.number()
		if err != nil {
			return Event{}, err
		}
		attr.Num = uint64(n)

	case "ENVELOPE":
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		env, err := p.envelope()
		if err != nil {
			return Event{}, err
		}
		attr.Envelope = env

	case "BODYSTRUCTURE":
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		bs, err := p.bodyStructure()
		if err != nil {
			return Event{}, err
		}
		attr.Body = bs

	case "X-GM-MSGID", "X-GM-THRID":
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		n, err := p.scan.number64()
		if err != nil {
			return Event{}, err
		}
		attr.Num = n

	case "X-GM-LABELS":
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
			if len(attr.Labels) > 0 {
				if err := p.scan.sp(); err != nil {
					return Event{}, err
				}
			}
			label, err := p.gmailLabel()
			if err != nil {
				return Event{}, err
			}
			attr.Labels = append(attr.Labels, label)
		}

	case "BODY":
		bracket, err := p.scan.peekIs('[')
		if err != nil {
			return Event{}, err
		}
		if !bracket {
			// Non-extensible BODY structure form.
			if err := p.scan.sp(); err != nil {
				return Event{}, err
			}
			bs, err := p.bodyStructure()
			if err != nil {
				return Event{}, err
			}
			attr.Type = imapwire.AttrBody
			attr.Body = bs
			break
		}
		key := imapwire.FetchAttr{Type: imapwire.FetchBody, HasSection: true}
		if err := p.sectionBody(&key); err != nil {
			return Event{}, err
		}
		return p.beginStream(key)

	case "BINARY":
		if err := p.scan.expectByte('['); err != nil {
			return Event{}, err
		}
		key := imapwire.FetchAttr{Type: imapwire.FetchBinary, HasSection: true}
		if err := p.sectionBody(&key); err != nil {
			return Event{}, err
		}
		return p.beginStream(key)

	case "BINARY.SIZE":
		if err := p.scan.expectByte('['); err != nil {
			return Event{}, err
		}
		if err := p.scan.sectionPath(&attr.Section); err != nil {
			return Event{}, err
		}
		if err := p.scan.expectByte(']'); err != nil {
			return Event{}, err
		}
		if err := p.scan.sp(); err != nil {
			return Event{}, err
		}
		n, err := p.scan.number()
		if err != nil {
			return Event{}, err
		}
		attr.Num = uint64(n)

	case "RFC822", "RFC822.HEADER", "RFC822.TEXT":
		key := imapwire.FetchAttr{}
		switch name {
		case "RFC822":
			key.Type = imapwire.FetchRFC822
		case "RFC822.HEADER":
			key.Type = imapwire.FetchRFC822Header
		case "RFC822.TEXT":
			key.Type = imapwire.FetchRFC822Text
		}
		return p.beginStream(key)

	default:
		return Event{}, p.scan.errf(ErrKindGrammarViolation, "unknown FETCH attribute %q", name)
	}

	return Event{Kind: EventFetchAttr, SeqNum: f.seqNum, Attr: attr}, nil
}

// gmailLabel reads one X-GM-LABELS element: an astring that may
// carry a backslash prefix like a system flag.
func (p *Parser) gmailLabel() (string, error) {
	backslash, err := p.scan.peekIs('\\')
	if err != nil {
		return "", err
	}
	if backslash {
		v, err := p.scan.atom()
		if err != nil {
			return "", err
		}
		return `\` + string(v), nil
	}
	v, err := p.scan.astring()
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// sectionBody parses "[section]" ["<" number ">"] after a BODY or
// BINARY attribute name, leaving the cursor at the SP before the
// value.
func (p *Parser) sectionBody(key *imapwire.FetchAttr) error {
	if err := p.scan.sectionSpec(&key.Section); err != nil {
		return err
	}
	lt, err := p.scan.peekIs('<')
	if err != nil {
		return err
	}
	if lt {
		n, err := p.scan.number()
		if err != nil {
			return err
		}
		if err := p.scan.expectByte('>'); err != nil {
			return err
		}
		key.Partial.Start = n
		key.HasPartial = true
	}
	return nil
}

// sectionSpec parses "[" section "]"; the '[' is already consumed
// by the caller's peek.
func (s *scanner) sectionSpec(spec *imapwire.SectionSpecifier) error {
	if err := s.sectionPath(spec); err != nil {
		return err
	}

	b, err := s.buf.PeekByte()
	if err != nil {
		return err
	}
	if b != ']' {
		name, err := s.buf.TakeWhile(func(b byte) bool {
			return b >= 'A' && b <= 'Z' || b == '.'
		})
		if err != nil {
			return err
		}
		switch string(name) {
		case "HEADER", "TEXT":
			spec.Name = string(name)
		case "MIME":
			if len(spec.Path) == 0 {
				return s.errf(ErrKindGrammarViolation, "MIME requires a part path")
			}
			spec.Name = string(name)
		case "HEADER.FIELDS", "HEADER.FIELDS.NOT":
			spec.Name = string(name)
			if err := s.sp(); err != nil {
				return err
			}
			if err := s.expectByte('('); err != nil {
				return err
			}
			for {
				done, err := s.peekIs(')')
				if err != nil {
					return err
				}
				if done {
					break
				}
				if len(spec.Headers) > 0 {
					if err := s.sp(); err != nil {
						return err
					}
				}
				h, err := s.astring()
				if err != nil {
					return err
				}
				spec.Headers = append(spec.Headers, h)
			}
		default:
			return s.errf(ErrKindGrammarViolation, "invalid section name %q", name)
		}
	}
	return s.expectByte(']')
}

// sectionPath parses the dotted numeric part path.
func (s *scanner) sectionPath(spec *imapwire.SectionSpecifier) error {
	for {
		b, err := s.buf.PeekByte()
		if err != nil {
			return err
		}
		if !isDigit(b) {
			return nil
		}
		n, err := s.number()
		if err != nil {
			return err
		}
		if n == 0 || n >= 1<<16 {
			return s.errf(ErrKindGrammarViolation, "part number %d", n)
		}
		spec.Path = append(spec.Path, uint16(n))
		dot, err := s.peekIs('.')
		if err != nil {
			return err
		}
		if !dot {
			return nil
		}
	}
}

// beginStream starts streaming the value of key. The value is an
// nstring, a literal, or an RFC 3516 literal8; literals stream
// directly from the buffer without accumulation.
func (p *Parser) beginStream(key imapwire.FetchAttr) (Event, error) {
	if err := p.scan.sp(); err != nil {
		return Event{}, err
	}
	f := &p.fetch

	b, err := p.Buf.PeekByte()
	if err != nil {
		return Event{}, err
	}
	switch b {
	case '~': // literal8
		p.Buf.Advance(1)
		b, err = p.Buf.PeekByte()
		if err != nil {
			return Event{}, err
		}
		if b != '{' {
			return Event{}, p.scan.errf(ErrKindUnexpectedByte, "expected literal8, got ~%q", string(b))
		}
		fallthrough
	case '{':
		n, err := p.scan.literalHeader()
		if err != nil {
			return Event{}, err
		}
		f.phase = fetchStreaming
		f.remaining = n
		f.streamAttr = key
		return Event{Kind: EventFetchStreamBegin, SeqNum: f.seqNum, StreamAttr: key, StreamSize: n}, nil
	case '"':
		v, err := p.scan.quoted()
		if err != nil {
			return Event{}, err
		}
		f.remaining = 0
		f.streamAttr = key
		if len(v) == 0 {
			f.phase = fetchStreamDone
		} else {
			f.phase = fetchStreaming
			f.pending = v
		}
		return Event{Kind: EventFetchStreamBegin, SeqNum: f.seqNum, StreamAttr: key, StreamSize: uint32(len(v))}, nil
	}

	isNil, err := p.scan.nstringIsNil()
	if err != nil {
		return Event{}, err
	}
	if !isNil {
		return Event{}, p.scan.errf(ErrKindUnexpectedByte, "expected body value, got %q", string(b))
	}
	f.phase = fetchStreamDone
	f.streamAttr = key
	return Event{Kind: EventFetchStreamBegin, SeqNum: f.seqNum, StreamAttr: key, StreamSize: 0}, nil
}

// envelope parses the parenthesised ENVELOPE value.
func (p *Parser) envelope() (*imapwire.Envelope, error) {
	if err := p.scan.expectByte('('); err != nil {
		return nil, err
	}
	env := &imapwire.Envelope{}
	var err error
	if env.Date, err = p.scan.nstring(); err != nil {
		return nil, err
	}
	if err := p.scan.sp(); err != nil {
		return nil, err
	}
	if env.Subject, err = p.scan.nstring(); err != nil {
		return nil, err
	}
	for _, dst := range []*[]imapwire.Address{
		&env.From, &env.Sender, &env.ReplyTo, &env.To, &env.CC, &env.BCC,
	} {
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		if *dst, err = p.addressList(); err != nil {
			return nil, err
		}
	}
	if err := p.scan.sp(); err != nil {
		return nil, err
	}
	if env.InReplyTo, err = p.scan.nstring(); err != nil {
		return nil, err
	}
	if err := p.scan.sp(); err != nil {
		return nil, err
	}
	if env.MessageID, err = p.scan.nstring(); err != nil {
		return nil, err
	}
	if err := p.scan.expectByte(')'); err != nil {
		return nil, err
	}
	return env, nil
}

func (p *Parser) addressList() ([]imapwire.Address, error) {
	isNil, err := p.scan.nstringIsNil()
	if err != nil {
		return nil, err
	}
	if isNil {
		return nil, nil
	}
	if err := p.scan.expectByte('('); err != nil {
		return nil, err
	}
	var addrs []imapwire.Address
	for {
		done, err := p.scan.peekIs(')')
		if err != nil {
			return nil, err
		}
		if done {
			return addrs, nil
		}
		// Some servers put spaces between addresses.
		if err := p.scan.skipSpace(); err != nil {
			return nil, err
		}
		if err := p.scan.expectByte('('); err != nil {
			return nil, err
		}
		var a imapwire.Address
		if a.Name, err = p.scan.nstring(); err != nil {
			return nil, err
		}
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		if a.ADL, err = p.scan.nstring(); err != nil {
			return nil, err
		}
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		if a.Mailbox, err = p.scan.nstring(); err != nil {
			return nil, err
		}
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		if a.Host, err = p.scan.nstring(); err != nil {
			return nil, err
		}
		if err := p.scan.expectByte(')'); err != nil {
			return nil, err
		}
		addrs = append(addrs, a)
	}
}

// bodyStructure parses the recursive BODYSTRUCTURE value.
func (p *Parser) bodyStructure() (*imapwire.BodyStructure, error) {
	if err := p.scan.expectByte('('); err != nil {
		return nil, err
	}
	bs := &imapwire.BodyStructure{}

	b, err := p.Buf.PeekByte()
	if err != nil {
		return nil, err
	}
	if b == '(' {
		// body-type-mpart: 1*body SP subtype [SP ext-mpart]
		bs.Parts = []imapwire.BodyStructure{}
		for {
			child, err := p.bodyStructure()
			if err != nil {
				return nil, err
			}
			bs.Parts = append(bs.Parts, *child)
			b, err = p.Buf.PeekByte()
			if err != nil {
				return nil, err
			}
			if b != '(' {
				break
			}
		}
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		subtype, err := p.scan.string_()
		if err != nil {
			return nil, err
		}
		bs.MediaSubtype = string(subtype)

		// ext-mpart: param [SP dsp [SP lang [SP loc *(SP ext)]]]
		if more, err := p.extSP(); err != nil {
			return nil, err
		} else if more {
			if bs.Fields.Params, err = p.paramList(); err != nil {
				return nil, err
			}
			if err := p.bodyExtTail(bs); err != nil {
				return nil, err
			}
		}
		return bs, p.scan.expectByte(')')
	}

	// body-type-1part
	mediaType, err := p.scan.string_()
	if err != nil {
		return nil, err
	}
	bs.MediaType = string(mediaType)
	if err := p.scan.sp(); err != nil {
		return nil, err
	}
	subtype, err := p.scan.string_()
	if err != nil {
		return nil, err
	}
	bs.MediaSubtype = string(subtype)
	if err := p.scan.sp(); err != nil {
		return nil, err
	}
	if bs.Fields.Params, err = p.paramList(); err != nil {
		return nil, err
	}
	if err := p.scan.sp(); err != nil {
		return nil, err
	}
	if bs.Fields.ID, err = p.scan.nstring(); err != nil {
		return nil, err
	}
	if err := p.scan.sp(); err != nil {
		return nil, err
	}
	if bs.Fields.Description, err = p.scan.nstring(); err != nil {
		return nil, err
	}
	if err := p.scan.sp(); err != nil {
		return nil, err
	}
	enc, err := p.scan.string_()
	if err != nil {
		return nil, err
	}
	bs.Fields.Encoding = string(enc)
	if err := p.scan.sp(); err != nil {
		return nil, err
	}
	if bs.Fields.Octets, err = p.scan.number(); err != nil {
		return nil, err
	}

	isMessage := strings.EqualFold(bs.MediaType, "MESSAGE") &&
		strings.EqualFold(bs.MediaSubtype, "RFC822")
	if isMessage {
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		if bs.Envelope, err = p.envelope(); err != nil {
			return nil, err
		}
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		if bs.Inner, err = p.bodyStructure(); err != nil {
			return nil, err
		}
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		if bs.Lines, err = p.scan.number(); err != nil {
			return nil, err
		}
	} else if strings.EqualFold(bs.MediaType, "TEXT") {
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		if bs.Lines, err = p.scan.number(); err != nil {
			return nil, err
		}
	}

	// ext-1part: md5 [SP dsp [SP lang [SP loc *(SP ext)]]]
	if more, err := p.extSP(); err != nil {
		return nil, err
	} else if more {
		if bs.MD5, err = p.scan.nstring(); err != nil {
			return nil, err
		}
		if err := p.bodyExtTail(bs); err != nil {
			return nil, err
		}
	}
	return bs, p.scan.expectByte(')')
}

// extSP consumes the SP before an optional extension field, and
// reports whether one follows (the alternative is the closing
// paren).
func (p *Parser) extSP() (bool, error) {
	b, err := p.Buf.PeekByte()
	if err != nil {
		return false, err
	}
	if b == ')' {
		return false, nil
	}
	if err := p.scan.sp(); err != nil {
		return false, err
	}
	return true, nil
}

// bodyExtTail parses [SP dsp [SP lang [SP loc *(SP ext)]]].
func (p *Parser) bodyExtTail(bs *imapwire.BodyStructure) error {
	more, err := p.extSP()
	if err != nil || !more {
		return err
	}
	if bs.Disposition, err = p.disposition(); err != nil {
		return err
	}
	if more, err = p.extSP(); err != nil || !more {
		return err
	}
	if bs.Language, err = p.language(); err != nil {
		return err
	}
	if more, err = p.extSP(); err != nil || !more {
		return err
	}
	if bs.Location, err = p.scan.nstring(); err != nil {
		return err
	}
	for {
		if more, err = p.extSP(); err != nil || !more {
			return err
		}
		ext, err := p.bodyExtension()
		if err != nil {
			return err
		}
		bs.Extensions = append(bs.Extensions, ext)
	}
}

// paramList parses body-fld-param: "(" string SP string ... ")" or
// NIL. Order is preserved.
func (p *Parser) paramList() ([]imapwire.FieldParam, error) {
	isNil, err := p.scan.nstringIsNil()
	if err != nil {
		return nil, err
	}
	if isNil {
		return nil, nil
	}
	if err := p.scan.expectByte('('); err != nil {
		return nil, err
	}
	var params []imapwire.FieldParam
	for {
		done, err := p.scan.peekIs(')')
		if err != nil {
			return nil, err
		}
		if done {
			return params, nil
		}
		if len(params) > 0 {
			if err := p.scan.sp(); err != nil {
				return nil, err
			}
		}
		key, err := p.scan.string_()
		if err != nil {
			return nil, err
		}
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		val, err := p.scan.string_()
		if err != nil {
			return nil, err
		}
		params = append(params, imapwire.FieldParam{Key: string(key), Value: string(val)})
	}
}

// disposition parses body-fld-dsp: "(" string SP param ")" / NIL.
func (p *Parser) disposition() (*imapwire.FieldDisposition, error) {
	isNil, err := p.scan.nstringIsNil()
	if err != nil {
		return nil, err
	}
	if isNil {
		return nil, nil
	}
	if err := p.scan.expectByte('('); err != nil {
		return nil, err
	}
	kind, err := p.scan.string_()
	if err != nil {
		return nil, err
	}
	if err := p.scan.sp(); err != nil {
		return nil, err
	}
	params, err := p.paramList()
	if err != nil {
		return nil, err
	}
	if err := p.scan.expectByte(')'); err != nil {
		return nil, err
	}
	return &imapwire.FieldDisposition{Kind: string(kind), Params: params}, nil
}

// language parses body-fld-lang: nstring / "(" string *(SP string) ")".
func (p *Parser) language() ([]string, error) {
	b, err := p.Buf.PeekByte()
	if err != nil {
		return nil, err
	}
	if b == '(' {
		p.Buf.Advance(1)
		var langs []string
		for {
			done, err := p.scan.peekIs(')')
			if err != nil {
				return nil, err
			}
			if done {
				return langs, nil
			}
			if len(langs) > 0 {
				if err := p.scan.sp(); err != nil {
					return nil, err
				}
			}
			v, err := p.scan.string_()
			if err != nil {
				return nil, err
			}
			langs = append(langs, string(v))
		}
	}
	v, err := p.scan.nstring()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return []string{string(v)}, nil
}

// bodyExtension parses the recursive body-extension.
func (p *Parser) bodyExtension() (imapwire.BodyExtension, error) {
	var ext imapwire.BodyExtension
	b, err := p.Buf.PeekByte()
	if err != nil {
		return ext, err
	}
	switch {
	case b == '(':
		p.Buf.Advance(1)
		ext.List = []imapwire.BodyExtension{}
		for {
			done, err := p.scan.peekIs(')')
			if err != nil {
				return ext, err
			}
			if done {
				return ext, nil
			}
			if len(ext.List) > 0 {
				if err := p.scan.sp(); err != nil {
					return ext, err
				}
			}
			child, err := p.bodyExtension()
			if err != nil {
				return ext, err
			}
			ext.List = append(ext.List, child)
		}
	case isDigit(b):
		n, err := p.scan.number()
		if err != nil {
			return ext, err
		}
		ext.Number = &n
		return ext, nil
	default:
		v, err := p.scan.nstring()
		if err != nil {
			return ext, err
		}
		ext.Str = v
		return ext, nil
	}
}
