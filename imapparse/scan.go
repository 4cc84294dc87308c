package imapparse

import (
	"encoding/base64"
	"math"
	"strconv"

	"wingmail.dev/imap/imapwire"
)

// scanner holds the token-level productions shared by the response
// and command parsers. Every method either consumes what it
// matched, or reports an error having consumed an undefined amount;
// callers snapshot before any choice that may fail.
type scanner struct {
	buf *Buffer

	// inlineLiteralMax bounds literals decoded into memory (as
	// opposed to streamed). Zero means DefaultInlineLiteralMax.
	inlineLiteralMax int
}

// DefaultInlineLiteralMax bounds literals that are decoded into
// values rather than streamed to the caller.
const DefaultInlineLiteralMax = 1 << 16

func (s *scanner) literalMax() int {
	if s.inlineLiteralMax == 0 {
		return DefaultInlineLiteralMax
	}
	return s.inlineLiteralMax
}

func (s *scanner) errf(kind ParseErrorKind, format string, v ...interface{}) *ParseError {
	return parseErrorf(kind, s.buf.Pos(), format, v...)
}

// sp consumes whitespace before a token.
//
// RFC 3501 section 9 says SP refers to exactly one space; like the
// rest of this parser the rule is lenient and any run of space or
// tab is consumed.
func (s *scanner) sp() error {
	b, err := s.buf.PeekByte()
	if err != nil {
		return err
	}
	if b != ' ' && b != '\t' {
		return s.errf(ErrKindUnexpectedByte, "expected space, got %q", string(b))
	}
	for {
		b, err := s.buf.PeekByte()
		if err != nil {
			return err
		}
		if b != ' ' && b != '\t' {
			return nil
		}
		s.buf.Advance(1)
	}
}

func (s *scanner) skipSpace() error {
	for {
		b, err := s.buf.PeekByte()
		if err != nil {
			return err
		}
		if b != ' ' && b != '\t' {
			return nil
		}
		s.buf.Advance(1)
	}
}

// crlf consumes a line ending. Both CRLF and a bare LF are
// accepted on input; only CRLF is ever emitted.
func (s *scanner) crlf() error {
	b, err := s.buf.ReadByte()
	if err != nil {
		return err
	}
	if b == '\n' {
		return nil
	}
	if b != '\r' {
		return s.errf(ErrKindUnexpectedByte, "expected CRLF, got %q", string(b))
	}
	b, err = s.buf.ReadByte()
	if err != nil {
		return err
	}
	if b != '\n' {
		return s.errf(ErrKindUnexpectedByte, `broken CRLF, "\r" followed by %q`, string(b))
	}
	return nil
}

// atCRLF reports whether the cursor sits on a line ending, without
// consuming it.
func (s *scanner) atCRLF() (bool, error) {
	b, err := s.buf.PeekByte()
	if err != nil {
		return false, err
	}
	return b == '\r' || b == '\n', nil
}

func (s *scanner) expectByte(want byte) error {
	b, err := s.buf.ReadByte()
	if err != nil {
		return err
	}
	if b != want {
		return s.errf(ErrKindUnexpectedByte, "expected %q, got %q", string(want), string(b))
	}
	return nil
}

// peekIs consumes b when it is next and reports whether it did.
func (s *scanner) peekIs(b byte) (bool, error) {
	c, err := s.buf.PeekByte()
	if err != nil {
		return false, err
	}
	if c != b {
		return false, nil
	}
	s.buf.Advance(1)
	return true, nil
}

func isAtomChar(b byte) bool  { return imapwire.IsAtomChar(b) }
func is7bitPrint(b byte) bool { return b >= 0x20 && b <= 0x7e }
func isDigit(b byte) bool     { return b >= '0' && b <= '9' }

// atom reads 1*ATOM-CHAR. The span aliases the buffer.
func (s *scanner) atom() ([]byte, error) {
	v, err := s.buf.TakeWhile(isAtomChar)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		b, _ := s.buf.PeekByte()
		return nil, s.errf(ErrKindUnexpectedByte, "invalid atom character: %q", string(b))
	}
	return v, nil
}

// flagAtom reads an atom that may also contain '[' and ']'
// (Gmail keyword flags).
func (s *scanner) flagAtom() ([]byte, error) {
	v, err := s.buf.TakeWhile(func(b byte) bool {
		return b == '[' || b == ']' || isAtomChar(b)
	})
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		b, _ := s.buf.PeekByte()
		return nil, s.errf(ErrKindUnexpectedByte, "invalid flag character: %q", string(b))
	}
	return v, nil
}

// tag reads a command tag: an atom that may not contain '+'.
func (s *scanner) tag() ([]byte, error) {
	v, err := s.buf.TakeWhile(func(b byte) bool {
		return b != '+' && isAtomChar(b)
	})
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		b, _ := s.buf.PeekByte()
		return nil, s.errf(ErrKindUnexpectedByte, "invalid tag character: %q", string(b))
	}
	return v, nil
}

// number reads an unsigned 32-bit decimal.
//
//	number = 1*DIGIT
//		; Unsigned 32-bit integer (0 <= n < 4,294,967,296)
func (s *scanner) number() (uint32, error) {
	v, err := s.number64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, s.errf(ErrKindIntegerOverflow, "number %d overflows uint32", v)
	}
	return uint32(v), nil
}

// number64 reads a decimal fitting a 63-bit value (mod-sequences).
func (s *scanner) number64() (uint64, error) {
	digits, err := s.buf.TakeWhile(isDigit)
	if err != nil {
		return 0, err
	}
	if len(digits) == 0 {
		b, _ := s.buf.PeekByte()
		return 0, s.errf(ErrKindUnexpectedByte, "expected digit, got %q", string(b))
	}
	if len(digits) > 20 {
		return 0, s.errf(ErrKindIntegerOverflow, "number has %d digits", len(digits))
	}
	v, err := strconv.ParseUint(string(digits), 10, 63)
	if err != nil {
		return 0, s.errf(ErrKindIntegerOverflow, "number %s", digits)
	}
	return v, nil
}

// quoted reads a quoted string, decoding escapes.
//
//	quoted = DQUOTE *QUOTED-CHAR DQUOTE
func (s *scanner) quoted() ([]byte, error) {
	if err := s.expectByte('"'); err != nil {
		return nil, err
	}
	v := []byte{}
	for {
		b, err := s.buf.ReadByte()
		if err != nil {
			return nil, err
		}
		switch b {
		case '"':
			return v, nil
		case '\r', '\n':
			return nil, s.errf(ErrKindUnexpectedByte, "newline in quoted string")
		case '\\':
			b, err = s.buf.ReadByte()
			if err != nil {
				return nil, err
			}
			if b != '\\' && b != '"' {
				return nil, s.errf(ErrKindUnexpectedByte, "invalid escape character in quoted string: %q", string(b))
			}
			v = append(v, b)
		default:
			v = append(v, b)
		}
		if len(v) > s.literalMax() {
			return nil, s.errf(ErrKindLiteralTooLarge, "quoted string over %d bytes", s.literalMax())
		}
	}
}

// literalHeader reads "{" number ["+"] "}" CRLF and reports the
// octet count. The caller consumes the octets.
func (s *scanner) literalHeader() (uint32, error) {
	if err := s.expectByte('{'); err != nil {
		return 0, err
	}
	n, err := s.number()
	if err != nil {
		return 0, err
	}
	// Non-synchronising marker; meaningless in responses but
	// accepted for robustness.
	if _, err := s.peekIs('+'); err != nil {
		return 0, err
	}
	if err := s.expectByte('}'); err != nil {
		return 0, err
	}
	if err := s.crlf(); err != nil {
		return 0, err
	}
	return n, nil
}

// literal reads a complete literal into memory, bounded by the
// inline cap.
func (s *scanner) literal() ([]byte, error) {
	n, err := s.literalHeader()
	if err != nil {
		return nil, err
	}
	if int(n) > s.literalMax() {
		return nil, s.errf(ErrKindLiteralTooLarge, "literal length %d is greater than max %d", n, s.literalMax())
	}
	v, err := s.buf.Take(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), v...), nil
}

// string_ reads quoted / literal.
func (s *scanner) string_() ([]byte, error) {
	b, err := s.buf.PeekByte()
	if err != nil {
		return nil, err
	}
	switch b {
	case '"':
		return s.quoted()
	case '{':
		return s.literal()
	}
	return nil, s.errf(ErrKindUnexpectedByte, "expected string, got %q", string(b))
}

// astring reads 1*ASTRING-CHAR / string. The atom form is copied
// so the result never aliases the buffer.
func (s *scanner) astring() ([]byte, error) {
	b, err := s.buf.PeekByte()
	if err != nil {
		return nil, err
	}
	switch b {
	case '"', '{':
		return s.string_()
	}
	v, err := s.buf.TakeWhile(func(b byte) bool {
		return b == ']' || isAtomChar(b)
	})
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, s.errf(ErrKindUnexpectedByte, "invalid astring character: %q", string(b))
	}
	return append([]byte(nil), v...), nil
}

// nstringIsNil consumes the token NIL if present.
func (s *scanner) nstringIsNil() (bool, error) {
	b, err := s.buf.PeekByte()
	if err != nil {
		return false, err
	}
	if b != 'N' && b != 'n' {
		return false, nil
	}
	snap := s.buf.Snapshot()
	v, err := s.buf.TakeWhile(isAtomChar)
	if err != nil {
		return false, err
	}
	if len(v) == 3 && (v[0] == 'N' || v[0] == 'n') && (v[1] == 'I' || v[1] == 'i') && (v[2] == 'L' || v[2] == 'l') {
		return true, nil
	}
	s.buf.Restore(snap)
	return false, nil
}

// nstring reads NIL / string.
func (s *scanner) nstring() (imapwire.NString, error) {
	isNil, err := s.nstringIsNil()
	if err != nil {
		return nil, err
	}
	if isNil {
		return nil, nil
	}
	v, err := s.string_()
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = []byte{}
	}
	return imapwire.NString(v), nil
}

// sequences reads an IMAP sequence-set.
//
//	seq-number   = nz-number / "*"
//	seq-range    = seq-number ":" seq-number
//	sequence-set = (seq-number / seq-range) *("," sequence-set)
func (s *scanner) sequences() ([]imapwire.SeqRange, error) {
	var seqs []imapwire.SeqRange
	for {
		min, err := s.seqNumber()
		if err != nil {
			return nil, err
		}
		colon, err := s.peekIs(':')
		if err != nil {
			return nil, err
		}
		if colon {
			max, err := s.seqNumber()
			if err != nil {
				return nil, err
			}
			seqs = append(seqs, imapwire.NewSeqRange(min, max))
		} else {
			seqs = append(seqs, imapwire.SeqNum(min))
		}
		comma, err := s.peekIs(',')
		if err != nil {
			return nil, err
		}
		if !comma {
			return seqs, nil
		}
	}
}

func (s *scanner) seqNumber() (uint32, error) {
	star, err := s.peekIs('*')
	if err != nil {
		return 0, err
	}
	if star {
		return imapwire.SeqStar, nil
	}
	v, err := s.number()
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, s.errf(ErrKindGrammarViolation, "invalid seq-number: '0'")
	}
	return v, nil
}

// flag reads one flag, including `\*`.
func (s *scanner) flag() (imapwire.Flag, error) {
	backslash, err := s.peekIs('\\')
	if err != nil {
		return "", err
	}
	if backslash {
		star, err := s.peekIs('*')
		if err != nil {
			return "", err
		}
		if star {
			return imapwire.FlagWildcard, nil
		}
		v, err := s.atom()
		if err != nil {
			return "", err
		}
		return imapwire.Flag(`\` + string(v)), nil
	}
	v, err := s.flagAtom()
	if err != nil {
		return "", err
	}
	return imapwire.Flag(v), nil
}

// flagList reads "(" [flag *(SP flag)] ")".
func (s *scanner) flagList() ([]imapwire.Flag, error) {
	if err := s.expectByte('('); err != nil {
		return nil, err
	}
	var flags []imapwire.Flag
	for {
		done, err := s.peekIs(')')
		if err != nil {
			return nil, err
		}
		if done {
			return flags, nil
		}
		if len(flags) > 0 {
			if err := s.sp(); err != nil {
				return nil, err
			}
			if done, err := s.peekIs(')'); err != nil {
				return nil, err
			} else if done {
				return flags, nil
			}
		}
		f, err := s.flag()
		if err != nil {
			return nil, err
		}
		flags = append(flags, f)
	}
}

// date reads a date, optionally quoted.
//
//	date-text = date-day "-" date-month "-" date-year
func (s *scanner) date() (imapwire.Date, error) {
	quoted, err := s.peekIs('"')
	if err != nil {
		return 0, err
	}
	day, err := s.number()
	if err != nil {
		return 0, err
	}
	if err := s.expectByte('-'); err != nil {
		return 0, err
	}
	mon, err := s.buf.Take(3)
	if err != nil {
		return 0, err
	}
	month := imapwire.MonthFromName(mon)
	if month == 0 {
		return 0, s.errf(ErrKindInvalidDate, "invalid month: %q", mon)
	}
	if err := s.expectByte('-'); err != nil {
		return 0, err
	}
	year, err := s.number()
	if err != nil {
		return 0, err
	}
	if quoted {
		if err := s.expectByte('"'); err != nil {
			return 0, err
		}
	}
	d, ok := imapwire.NewDate(int(year), month, int(day))
	if !ok {
		return 0, s.errf(ErrKindInvalidDate, "invalid date %d-%d-%d", day, month, year)
	}
	return d, nil
}

// dateTime reads the quoted RFC 3501 date-time.
//
//	date-time = DQUOTE date-day-fixed "-" date-month "-" date-year
//	            SP time SP zone DQUOTE
func (s *scanner) dateTime() (imapwire.InternalDate, error) {
	if err := s.expectByte('"'); err != nil {
		return 0, err
	}
	// date-day-fixed = (SP DIGIT) / 2DIGIT
	if _, err := s.peekIs(' '); err != nil {
		return 0, err
	}
	day, err := s.number()
	if err != nil {
		return 0, err
	}
	if err := s.expectByte('-'); err != nil {
		return 0, err
	}
	mon, err := s.buf.Take(3)
	if err != nil {
		return 0, err
	}
	month := imapwire.MonthFromName(mon)
	if month == 0 {
		return 0, s.errf(ErrKindInvalidDate, "invalid month: %q", mon)
	}
	if err := s.expectByte('-'); err != nil {
		return 0, err
	}
	year, err := s.number()
	if err != nil {
		return 0, err
	}
	if err := s.expectByte(' '); err != nil {
		return 0, err
	}
	hour, err := s.twoDigits()
	if err != nil {
		return 0, err
	}
	if err := s.expectByte(':'); err != nil {
		return 0, err
	}
	min, err := s.twoDigits()
	if err != nil {
		return 0, err
	}
	if err := s.expectByte(':'); err != nil {
		return 0, err
	}
	sec, err := s.twoDigits()
	if err != nil {
		return 0, err
	}
	if err := s.expectByte(' '); err != nil {
		return 0, err
	}
	sign, err := s.buf.ReadByte()
	if err != nil {
		return 0, err
	}
	if sign != '+' && sign != '-' {
		return 0, s.errf(ErrKindInvalidDate, "invalid zone sign %q", string(sign))
	}
	zh, err := s.twoDigits()
	if err != nil {
		return 0, err
	}
	zm, err := s.twoDigits()
	if err != nil {
		return 0, err
	}
	if err := s.expectByte('"'); err != nil {
		return 0, err
	}
	zone := zh*60 + zm
	if sign == '-' {
		zone = -zone
	}
	d, ok := imapwire.NewInternalDate(int(year), month, int(day), hour, min, sec, zone)
	if !ok {
		return 0, s.errf(ErrKindInvalidDate, "invalid date-time")
	}
	return d, nil
}

func (s *scanner) twoDigits() (int, error) {
	v, err := s.buf.Take(2)
	if err != nil {
		return 0, err
	}
	if !isDigit(v[0]) || !isDigit(v[1]) {
		return 0, s.errf(ErrKindInvalidDate, "expected two digits, got %q", v)
	}
	return int(v[0]-'0')*10 + int(v[1]-'0'), nil
}

// textLine reads the remainder of the line up to CRLF, consuming
// the terminator.
func (s *scanner) textLine() (string, error) {
	v, err := s.buf.TakeWhile(func(b byte) bool {
		return b != '\r' && b != '\n'
	})
	if err != nil {
		return "", err
	}
	if len(v) > DefaultLineLimit {
		return "", s.errf(ErrKindLiteralTooLarge, "line over %d bytes", DefaultLineLimit)
	}
	text := string(v)
	if err := s.crlf(); err != nil {
		return "", err
	}
	return text, nil
}

func decodeBase64(v []byte) ([]byte, bool) {
	dst := make([]byte, base64.StdEncoding.DecodedLen(len(v)))
	n, err := base64.StdEncoding.Decode(dst, v)
	if err != nil {
		return nil, false
	}
	return dst[:n], true
}
