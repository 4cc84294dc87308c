package imapwire

import (
	"bytes"
	"fmt"
	"strings"

	"wingmail.dev/imap/imapwire/utf7mod"
)

// MaxMailboxNameSize bounds the wire form of a mailbox name.
// The cap is not protocol-mandated; it keeps path derivation total.
const MaxMailboxNameSize = 1000

// MailboxName is the wire form of a mailbox name: modified UTF-7
// bytes. The name INBOX is case-insensitive; every other name is
// byte-exact.
type MailboxName []byte

// Inbox is the special case-insensitive mailbox name.
var Inbox = MailboxName("INBOX")

// NewMailboxName validates the wire bytes of a mailbox name.
func NewMailboxName(wire []byte) (MailboxName, error) {
	if len(wire) == 0 {
		return nil, fmt.Errorf("imapwire: empty mailbox name")
	}
	if len(wire) > MaxMailboxNameSize {
		return nil, MailboxTooBigError{MaximumSize: MaxMailboxNameSize, ActualSize: len(wire)}
	}
	return MailboxName(wire), nil
}

// NewMailboxNameDisplay builds a mailbox name from UTF-8 display
// text, encoding through modified UTF-7.
func NewMailboxNameDisplay(display string) (MailboxName, error) {
	return NewMailboxName(utf7mod.Encode(display))
}

// IsInbox reports whether the name is INBOX, case-insensitively.
func (m MailboxName) IsInbox() bool {
	return len(m) == 5 && strings.EqualFold("INBOX", string(m))
}

// Equal reports name equality, folding only INBOX.
func (m MailboxName) Equal(o MailboxName) bool {
	if m.IsInbox() {
		return o.IsInbox()
	}
	return bytes.Equal(m, o)
}

// Key reports the form of the name used for equality and map keys:
// INBOX is folded to upper case, everything else is byte-exact.
func (m MailboxName) Key() string {
	if m.IsInbox() {
		return "INBOX"
	}
	return string(m)
}

// DisplayString decodes the modified UTF-7 wire form to UTF-8 text.
// Undecodable names are reported byte-for-byte.
func (m MailboxName) DisplayString() string {
	s, err := utf7mod.Decode(m)
	if err != nil {
		return string(m)
	}
	return s
}

func (m MailboxName) String() string { return string(m) }

// MailboxTooBigError reports a mailbox name over the size cap.
type MailboxTooBigError struct {
	MaximumSize int
	ActualSize  int
}

func (e MailboxTooBigError) Error() string {
	return fmt.Sprintf("imapwire: mailbox name is %d bytes, max is %d", e.ActualSize, e.MaximumSize)
}

// ErrInvalidPathSeparator is reported when deriving a child mailbox
// from a path whose server advertised no hierarchy separator.
var ErrInvalidPathSeparator = fmt.Errorf("imapwire: mailbox path has no separator")

// MailboxPath pairs a mailbox name with the hierarchy separator the
// server advertised for it. Separator 0 means the mailbox is flat
// (a NIL separator in LIST).
type MailboxPath struct {
	Name      MailboxName
	Separator byte
}

// MakeRootMailbox builds a top-level path from UTF-8 display text.
func MakeRootMailbox(display string, separator byte) (MailboxPath, error) {
	name, err := NewMailboxNameDisplay(display)
	if err != nil {
		return MailboxPath{}, err
	}
	return MailboxPath{Name: name, Separator: separator}, nil
}

// MakeSubMailbox derives the child of p named by the UTF-8 display
// text. It fails with ErrInvalidPathSeparator when p has no
// separator, and with MailboxTooBigError when the joined name
// exceeds MaxMailboxNameSize.
func (p MailboxPath) MakeSubMailbox(display string) (MailboxPath, error) {
	if p.Separator == 0 {
		return MailboxPath{}, ErrInvalidPathSeparator
	}
	child := utf7mod.Encode(display)
	joined := make([]byte, 0, len(p.Name)+1+len(child))
	joined = append(joined, p.Name...)
	joined = append(joined, p.Separator)
	joined = append(joined, child...)
	if len(joined) > MaxMailboxNameSize {
		return MailboxPath{}, MailboxTooBigError{MaximumSize: MaxMailboxNameSize, ActualSize: len(joined)}
	}
	return MailboxPath{Name: joined, Separator: p.Separator}, nil
}

// DisplayString decodes the full path to UTF-8 text.
func (p MailboxPath) DisplayString() string {
	return p.Name.DisplayString()
}

// DisplayStringComponents splits the decoded path on the separator.
// With omitEmpty set, empty components (doubled or trailing
// separators) are dropped.
func (p MailboxPath) DisplayStringComponents(omitEmpty bool) []string {
	s := p.DisplayString()
	if p.Separator == 0 {
		return []string{s}
	}
	parts := strings.Split(s, string(p.Separator))
	if !omitEmpty {
		return parts
	}
	kept := parts[:0]
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return kept
}
